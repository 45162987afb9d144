package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/starpath-app/starpath/internal/domain"
	"github.com/starpath-app/starpath/internal/logger"
)

// Channel is the Redis pub/sub channel shared by all instances.
const Channel = "starpath:events"

type envelope struct {
	Origin string       `json:"origin"`
	Event  domain.Event `json:"event"`
}

// RedisBridge is a Hub that also relays events through Redis so a session
// attached to another API instance sees them.
type RedisBridge struct {
	local  *Memory
	client *redis.Client
	origin string
}

// NewRedisBridge wraps local with a Redis relay.
func NewRedisBridge(local *Memory, client *redis.Client) *RedisBridge {
	return &RedisBridge{local: local, client: client, origin: uuid.NewString()}
}

// Publish delivers locally, then relays. A relay failure is logged only.
func (b *RedisBridge) Publish(ev domain.Event) {
	b.local.Publish(ev)

	data, err := json.Marshal(envelope{Origin: b.origin, Event: ev})
	if err != nil {
		logger.Warn("event encode failed", "type", ev.Type, "err", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := b.client.Publish(ctx, Channel, data).Err(); err != nil {
		logger.Warn("event relay failed", "type", ev.Type, "err", err)
	}
}

// Subscribe subscribes to the local hub.
func (b *RedisBridge) Subscribe(userID string) (<-chan domain.Event, func()) {
	return b.local.Subscribe(userID)
}

// Run re-broadcasts events from other instances into the local hub until
// ctx is cancelled.
func (b *RedisBridge) Run(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, Channel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	logger.Info("event relay subscribed", "channel", Channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				logger.Warn("event relay decode failed", "err", err)
				continue
			}
			if env.Origin == b.origin {
				continue
			}
			b.local.Publish(env.Event)
		}
	}
}
