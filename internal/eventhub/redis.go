package eventhub

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/eweinhaus/VideoGen-sub002/internal/domain"
	"github.com/eweinhaus/VideoGen-sub002/internal/infra"
)

const channelPrefix = "jobevents:"

// RedisBridge carries events between processes. The worker publishes through
// it; the API process additionally runs the receive loop, feeding its local
// hub so WebSocket subscribers see events regardless of which process
// produced them. One Redis channel per job keeps per-job publish order.
type RedisBridge struct {
	client *redis.Client
	hub    *Hub
	logger infra.Logger
}

// NewRedisBridge wires a bridge. hub may be nil on the pure-producer side.
func NewRedisBridge(client *redis.Client, hub *Hub, logger infra.Logger) *RedisBridge {
	return &RedisBridge{client: client, hub: hub, logger: logger}
}

// Publish marshals ev onto its job channel. Failures are logged and dropped;
// the durable stores remain the source of truth and catch-up covers gaps.
func (b *RedisBridge) Publish(ctx context.Context, ev domain.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		b.logger.Error().Err(err).Str("job_id", ev.JobID).Msg("eventhub: marshal event failed")
		return
	}
	if err := b.client.Publish(ctx, channelPrefix+ev.JobID, payload).Err(); err != nil {
		b.logger.Error().Err(err).Str("job_id", ev.JobID).Msg("eventhub: publish failed")
	}
}

// Run subscribes to every job channel and forwards messages into the local
// hub until ctx is done.
func (b *RedisBridge) Run(ctx context.Context) error {
	if b.hub == nil {
		return nil
	}
	sub := b.client.PSubscribe(ctx, channelPrefix+"*")
	defer func() {
		_ = sub.Close()
	}()
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev domain.Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				b.logger.Error().Err(err).Msg("eventhub: unmarshal event failed")
				continue
			}
			b.hub.Broadcast(ev)
		}
	}
}

var _ Publisher = (*RedisBridge)(nil)
