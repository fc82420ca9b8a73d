package payment

import (
	"context"
	"time"
)

// Locker guards a payment run across processes sharing one account.
type Locker interface {
	// TryLock acquires key for ttl. ok is false when another holder owns it.
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

func lockKey(chainID, account string) string {
	return "payroll:pay:" + chainID + ":" + account
}
