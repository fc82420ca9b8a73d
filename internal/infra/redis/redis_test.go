package redis

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/vietddude/payroll/internal/core/domain"
	"github.com/vietddude/payroll/internal/core/payment"
)

var (
	_ payment.Locker   = (*Locker)(nil)
	_ payment.Notifier = (*Notifier)(nil)
)

func TestEncodeNotification(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	payload, err := encodeNotification(domain.Notification{
		AttemptID: "a1",
		ChainID:   domain.ChainIDEthereum,
		Level:     domain.NotificationError,
		Kind:      domain.KindReceiptFailed,
		Message:   "transfer reverted",
		At:        at,
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(payload, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["attempt_id"] != "a1" || got["level"] != "error" {
		t.Errorf("unexpected payload %s", payload)
	}
	if _, ok := got["tx_hash"]; ok {
		t.Errorf("empty tx_hash should be omitted: %s", payload)
	}
}

func TestNewNotifierDefaultsChannel(t *testing.T) {
	if n := NewNotifier(nil, ""); n.channel != DefaultChannel {
		t.Errorf("channel = %q, want %q", n.channel, DefaultChannel)
	}
}

func liveClient(t *testing.T) *Client {
	t.Helper()
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	c, err := NewClient(Config{URL: url})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestLocker_Live(t *testing.T) {
	c := liveClient(t)
	l := NewLocker(c)
	ctx := context.Background()
	key := "payroll:test:" + time.Now().Format(time.RFC3339Nano)

	release, ok, err := l.TryLock(ctx, key, 10*time.Second)
	if err != nil || !ok {
		t.Fatalf("first TryLock = %v, %v", ok, err)
	}

	if _, ok, err := l.TryLock(ctx, key, 10*time.Second); err != nil || ok {
		t.Fatalf("second TryLock = %v, %v; want held", ok, err)
	}

	release()

	release, ok, err = l.TryLock(ctx, key, 10*time.Second)
	if err != nil || !ok {
		t.Fatalf("TryLock after release = %v, %v", ok, err)
	}
	release()
}

func TestLocker_ReleaseKeepsForeignToken(t *testing.T) {
	c := liveClient(t)
	l := NewLocker(c)
	ctx := context.Background()
	key := "payroll:test:foreign:" + time.Now().Format(time.RFC3339Nano)

	release, ok, err := l.TryLock(ctx, key, 10*time.Second)
	if err != nil || !ok {
		t.Fatalf("TryLock = %v, %v", ok, err)
	}
	// Simulate expiry and takeover by another holder.
	if err := c.rdb.Set(ctx, key, "other", 10*time.Second).Err(); err != nil {
		t.Fatalf("set: %v", err)
	}
	release()

	val, err := c.rdb.Get(ctx, key).Result()
	if err != nil || val != "other" {
		t.Fatalf("key = %q, %v; want foreign token kept", val, err)
	}
	_ = c.rdb.Del(ctx, key).Err()
}
