package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// Channel carries live-status events for widget-style subscribers.
	Channel = "live-status"

	presenceKeyPrefix = "live:"
	presenceTTL       = 24 * time.Hour
)

// Event is one live-status change on the pub/sub channel.
type Event struct {
	OwnerID     string     `json:"owner_id"`
	Active      bool       `json:"active"`
	CheckInTime *time.Time `json:"check_in_time,omitempty"`
}

// Redis broadcasts through a presence key plus a pub/sub event so both
// polling and subscribing consumers can follow the live status.
type Redis struct {
	client *redis.Client
}

// NewRedis constructs a redis-backed broadcaster.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (b *Redis) Start(ctx context.Context, ownerID string, checkInTime time.Time) error {
	key := presenceKeyPrefix + ownerID
	if err := b.client.Set(ctx, key, checkInTime.Format(time.RFC3339), presenceTTL).Err(); err != nil {
		return fmt.Errorf("set presence: %w", err)
	}
	return b.publish(ctx, Event{OwnerID: ownerID, Active: true, CheckInTime: &checkInTime})
}

func (b *Redis) End(ctx context.Context, ownerID string) error {
	if err := b.client.Del(ctx, presenceKeyPrefix+ownerID).Err(); err != nil {
		return fmt.Errorf("clear presence: %w", err)
	}
	return b.publish(ctx, Event{OwnerID: ownerID, Active: false})
}

func (b *Redis) publish(ctx context.Context, event Event) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode live-status event: %w", err)
	}
	if err := b.client.Publish(ctx, Channel, raw).Err(); err != nil {
		return fmt.Errorf("publish live-status event: %w", err)
	}
	return nil
}
