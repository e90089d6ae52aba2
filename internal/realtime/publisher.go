// Package realtime delivers job status events to connected clients.
package realtime

import (
	"context"
	"time"
)

// Event types.
const (
	EventGenerationStatus = "generation_status_changed"
	EventUpscaleStatus    = "upscale_status_changed"
	EventEditStatus       = "edit_status_changed"
	EventVideoStatus      = "video_status_changed"
	EventModelStatus      = "model_status_changed"
)

// Publisher delivers one event to every session of an owner.
type Publisher interface {
	Publish(ctx context.Context, ownerID, eventType string, payload any) error
}

// Envelope is the wire form of an event.
type Envelope struct {
	OwnerID   string    `json:"ownerId"`
	Type      string    `json:"type"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, string, string, any) error { return nil }
