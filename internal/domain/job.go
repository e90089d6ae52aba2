package domain

import (
	"strings"
	"time"
)

// JobKind enumerates the semantic job types handled by the reconciliation pipeline.
type JobKind string

const (
	JobKindGeneration JobKind = "GENERATION"
	JobKindUpscale    JobKind = "UPSCALE"
	JobKindEdit       JobKind = "EDIT"
	JobKindVideo      JobKind = "VIDEO"
	JobKindTraining   JobKind = "TRAINING"
)

// UpscaleMarker prefixes the prompt of generation rows written before the kind
// column existed.
const UpscaleMarker = "[UPSCALED]"

// Valid reports whether k is a known kind.
func (k JobKind) Valid() bool {
	switch k {
	case JobKindGeneration, JobKindUpscale, JobKindEdit, JobKindVideo, JobKindTraining:
		return true
	}
	return false
}

// IsTraining reports whether the kind lives in the model training store.
func (k JobKind) IsTraining() bool { return k == JobKindTraining }

// JobStatus enumerates job lifecycle states for both stores.
type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
	JobStatusCancelled  JobStatus = "CANCELLED"

	ModelStatusDraft    JobStatus = "DRAFT"
	ModelStatusTraining JobStatus = "TRAINING"
	ModelStatusReady    JobStatus = "READY"
	ModelStatusError    JobStatus = "ERROR"
)

// Job is the shared lifecycle shape of generation, upscale, edit, video and
// training records.
type Job struct {
	ID               string
	ExternalJobID    string
	OwnerID          string
	Kind             JobKind
	Status           JobStatus
	Prompt           string
	ResultURLs       []string
	ThumbnailURLs    []string
	ErrorMessage     string
	CompletedAt      *time.Time
	ProcessingTimeMs *int64
	CreditsCharged   int

	// Training records only.
	Progress     int
	QualityScore *int
	ModelURL     string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ResolveGenerationKind returns the effective kind of a generation-store row.
// Rows carrying an explicit non-default kind keep it; legacy rows fall back to
// the prompt marker.
func ResolveGenerationKind(stored JobKind, prompt string) JobKind {
	if stored.Valid() && stored != JobKindGeneration && !stored.IsTraining() {
		return stored
	}
	if strings.HasPrefix(strings.TrimSpace(prompt), UpscaleMarker) {
		return JobKindUpscale
	}
	return JobKindGeneration
}

// IsTerminal reports whether the job reached a final state.
func (j *Job) IsTerminal() bool {
	if j == nil {
		return false
	}
	switch j.Status {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled, ModelStatusReady, ModelStatusError:
		return true
	case ModelStatusDraft:
		// a cancelled training returns to DRAFT with a completion stamp
		return j.Kind.IsTraining() && j.CompletedAt != nil
	}
	return false
}
