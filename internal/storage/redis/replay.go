package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/dtroode/authkeeper-server/internal/model"
)

const reuseKeyPrefix = "authkeeper:reuse:"

// ReplayTracker counts refresh token reuse per user in Redis. The counter
// expires after the window, counted from the first reuse.
type ReplayTracker struct {
	client goredis.Cmdable
	window time.Duration
}

var _ model.ReplayTracker = (*ReplayTracker)(nil)

// NewReplayTracker creates a tracker; a non-positive window defaults to 24h.
func NewReplayTracker(client goredis.Cmdable, window time.Duration) *ReplayTracker {
	if window <= 0 {
		window = 24 * time.Hour
	}
	return &ReplayTracker{client: client, window: window}
}

// NewClient connects to addr and verifies the connection.
func NewClient(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

// TrackReuse increments the user's reuse counter and returns the new count.
// The increment and the window are applied in one transaction; the window is
// only set on a counter that has none.
func (t *ReplayTracker) TrackReuse(ctx context.Context, userID uuid.UUID, jti string) (int64, error) {
	key := reuseKeyPrefix + userID.String()

	var incr *goredis.IntCmd
	_, err := t.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, t.window)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to track reuse of %s: %w", jti, err)
	}
	return incr.Val(), nil
}
