package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ChannelPrefix namespaces per-owner pub/sub channels.
const ChannelPrefix = "realtime:user:"

// Channel returns the pub/sub channel of an owner.
func Channel(ownerID string) string { return ChannelPrefix + ownerID }

type redisPublishClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisPublisher publishes events on Redis so every API instance can deliver
// them to its own sockets.
type RedisPublisher struct {
	rdb redisPublishClient
	now func() time.Time
}

func NewRedisPublisher(rdb redisPublishClient) *RedisPublisher {
	return &RedisPublisher{rdb: rdb, now: time.Now}
}

func (p *RedisPublisher) Publish(ctx context.Context, ownerID, eventType string, payload any) error {
	msg, err := json.Marshal(Envelope{OwnerID: ownerID, Type: eventType, Payload: payload, Timestamp: p.now().UTC()})
	if err != nil {
		return err
	}
	if err := p.rdb.Publish(ctx, Channel(ownerID), msg).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", eventType, err)
	}
	return nil
}

// Relay subscribes to every owner channel and hands messages to local
// sockets until ctx is cancelled.
func (h *Hub) Relay(ctx context.Context, rdb *redis.Client) error {
	sub := rdb.PSubscribe(ctx, ChannelPrefix+"*")
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s*: %w", ChannelPrefix, err)
	}
	h.logger.Info().Str("pattern", ChannelPrefix+"*").Msg("realtime relay subscribed")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return ErrRelayClosed
			}
			h.relayMessage(msg.Channel, []byte(msg.Payload))
		}
	}
}

func (h *Hub) relayMessage(channel string, payload []byte) {
	var env struct {
		OwnerID string `json:"ownerId"`
	}
	if err := json.Unmarshal(payload, &env); err != nil || env.OwnerID == "" {
		h.logger.Warn().Str("channel", channel).Msg("discarding malformed realtime message")
		return
	}
	if Channel(env.OwnerID) != channel {
		h.logger.Warn().Str("channel", channel).Str("owner_id", env.OwnerID).Msg("realtime owner does not match channel")
		return
	}
	h.deliver(env.OwnerID, payload)
}

var _ Publisher = (*RedisPublisher)(nil)
