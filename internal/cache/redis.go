package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	CartLockTTL        = 5 * time.Second
	cartLockRetryDelay = 20 * time.Millisecond
)

var ErrLockTimeout = errors.New("cart lock not acquired")

// releaseScript deletes the lock only when it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// CartLocker serializes cart mutations of one user across server instances.
type CartLocker struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCartLocker(client *redis.Client) *CartLocker {
	return &CartLocker{client: client, ttl: CartLockTTL}
}

func cartLockKey(userID string) string {
	return "lock:cart:" + userID
}

// Lock blocks until the lock of userID is held or ctx is done.
// The returned func releases it and is safe to call once.
func (l *CartLocker) Lock(ctx context.Context, userID string) (func(), error) {
	key := cartLockKey(userID)
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire cart lock: %w", err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrLockTimeout, ctx.Err())
		case <-time.After(cartLockRetryDelay):
		}
	}

	return func() {
		// the request context may already be cancelled; release on a fresh one
		rctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = releaseScript.Run(rctx, l.client, []string{key}, token).Err()
	}, nil
}

// --- Rate limiting ---

// RateCounter counts attempts per key inside a sliding expiry window.
type RateCounter struct {
	client *redis.Client
}

func NewRateCounter(client *redis.Client) *RateCounter {
	return &RateCounter{client: client}
}

func (r *RateCounter) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	pipe := r.client.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

func (r *RateCounter) Get(ctx context.Context, key string) (int64, error) {
	val, err := r.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return val, err
}

// Block marks key as cooling down for d.
func (r *RateCounter) Block(ctx context.Context, key string, d time.Duration) error {
	return r.client.Set(ctx, key, "1", d).Err()
}

// Blocked returns the remaining cooldown of key, 0 when not blocked.
func (r *RateCounter) Blocked(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := r.client.PTTL(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

func (r *RateCounter) Reset(ctx context.Context, keys ...string) error {
	return r.client.Del(ctx, keys...).Err()
}
