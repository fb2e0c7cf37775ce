package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const markTTL = 48 * time.Hour

// Redis stores reminder marks as keys the notifier scans. Cancelling deletes
// the mark so the notification never fires.
type Redis struct {
	client *redis.Client
}

// NewRedis constructs a redis-backed reminder scheduler.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func markKey(kind Kind, ownerID string, day time.Time) string {
	return fmt.Sprintf("reminder:%s:%s:%s", kind, ownerID, day.Format("2006-01-02"))
}

func (s *Redis) Schedule(ctx context.Context, kind Kind, ownerID string, day time.Time) error {
	if err := s.client.Set(ctx, markKey(kind, ownerID, day), "1", markTTL).Err(); err != nil {
		return fmt.Errorf("schedule %s reminder: %w", kind, err)
	}
	return nil
}

func (s *Redis) Cancel(ctx context.Context, kind Kind, ownerID string, day time.Time) error {
	if err := s.client.Del(ctx, markKey(kind, ownerID, day)).Err(); err != nil {
		return fmt.Errorf("cancel %s reminder: %w", kind, err)
	}
	return nil
}
