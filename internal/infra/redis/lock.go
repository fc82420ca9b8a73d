package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only while it still holds our token, so an
// expired lock taken over by another process is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker implements payment.Locker with SET NX PX.
type Locker struct {
	client *Client
}

func NewLocker(client *Client) *Locker {
	return &Locker{client: client}
}

// TryLock attempts to take key for ttl.
func (l *Locker) TryLock(
	ctx context.Context,
	key string,
	ttl time.Duration,
) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := l.client.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("setnx failed: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		// The caller's context may already be cancelled by the time we unlock.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, l.client.rdb, []string{key}, token).Err(); err != nil {
			slog.Warn("Failed to release lock", "key", key, "error", err)
		}
	}
	return release, true, nil
}
