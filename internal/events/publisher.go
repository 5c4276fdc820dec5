// Package events pushes best-effort status snapshots for UI pollers and
// stream consumers. Delivery guarantee is most-recent-state-wins: every
// publish also overwrites a snapshot key, so a poller that missed the pubsub
// message still sees the latest state.
package events

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"
)

type StatusPublisher interface {
	Publish(ctx context.Context, channel string, payload any)
}

type RedisPublisher struct {
	Client *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{Client: client}
}

// Publish never fails the caller; a dropped status event is acceptable, a
// stalled queue is not.
func (p *RedisPublisher) Publish(ctx context.Context, channel string, payload any) {
	b, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[Events] marshal %s: %v", channel, err)
		return
	}
	if err := p.Client.Set(ctx, SnapshotKey(channel), b, 0).Err(); err != nil {
		log.Printf("[Events] snapshot %s: %v", channel, err)
	}
	if err := p.Client.Publish(ctx, channel, b).Err(); err != nil {
		log.Printf("[Events] publish %s: %v", channel, err)
	}
}

// SnapshotKey is where the most recent payload for a channel is kept.
func SnapshotKey(channel string) string {
	return "wablast:status:" + channel
}

// NopPublisher discards events; used in tests and the seeder.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, channel string, payload any) {}

var _ StatusPublisher = (*RedisPublisher)(nil)
var _ StatusPublisher = (NopPublisher{})
