package redislock

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// Lock serializes promo redemptions per code with a short-lived redis SetNX
// lock. The conditional counter update in the ledger remains the correctness
// backstop; the lock just keeps racing redemptions from piling up on the row.
type Lock struct {
	Client *redis.Client
}

func NewLock(client *redis.Client) *Lock {
	return &Lock{Client: client}
}

// getLockTTL returns the promo lock TTL from environment variables or the
// default value.
func (l *Lock) getLockTTL() time.Duration {
	defaultTTL := 5 * time.Second

	ttlStr := os.Getenv("PROMO_LOCK_TTL_SECONDS")
	if ttlStr == "" {
		return defaultTTL
	}

	ttlSec, err := strconv.Atoi(ttlStr)
	if err != nil {
		return defaultTTL
	}
	return time.Duration(ttlSec) * time.Second
}

// Acquire takes the per-code lock for a redemption attempt. token identifies
// the owner so only the holder can release.
func (l *Lock) Acquire(ctx context.Context, code, token string) (bool, error) {
	key := "promo_lock:" + code
	ok, err := l.Client.SetNX(ctx, key, token, l.getLockTTL()).Result()
	return ok, err
}

// Release frees the lock if this token still owns it.
func (l *Lock) Release(ctx context.Context, code, token string) error {
	key := fmt.Sprintf("promo_lock:%s", code)
	val, err := l.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil // lock already expired
	}
	if err != nil {
		return err
	}
	if val == token {
		_, err := l.Client.Del(ctx, key).Result()
		return err
	}
	return nil
}

// AcquireWait retries Acquire until the lock is obtained or the context ends.
func (l *Lock) AcquireWait(ctx context.Context, code, token string) (bool, error) {
	for {
		ok, err := l.Acquire(ctx, code, token)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(25 * time.Millisecond):
		}
	}
}
