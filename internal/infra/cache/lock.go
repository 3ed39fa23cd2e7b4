package cache

import (
	"context"
	"errors"
	"time"

	"github.com/evotodo/todo-api/internal/pkg/utils"
	"github.com/redis/go-redis/v9"
)

var ErrLockTimeout = errors.New("lock: timed out waiting for holder to release")

// compare-and-delete so a holder whose TTL expired cannot release a newer owner
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker is a single-instance Redis mutex keyed by name.
type Locker struct {
	rdb  *redis.Client
	ttl  time.Duration
	poll time.Duration
}

func NewLocker(rdb *redis.Client, ttl time.Duration) *Locker {
	return &Locker{rdb: rdb, ttl: ttl, poll: 50 * time.Millisecond}
}

// Acquire blocks until the lock is held or ctx is done. The returned release
// func is safe to call more than once.
func (l *Locker) Acquire(ctx context.Context, key string) (func(), error) {
	token, err := utils.RandomToken("lk-", 24)
	if err != nil {
		return nil, err
	}

	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()
	for {
		ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, waitErr(ctx)
			}
			return nil, err
		}
		if ok {
			released := false
			return func() {
				if released {
					return
				}
				released = true
				ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
				defer cancel()
				_ = releaseScript.Run(ctx, l.rdb, []string{key}, token).Err()
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, waitErr(ctx)
		case <-ticker.C:
		}
	}
}

func waitErr(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrLockTimeout
	}
	return ctx.Err()
}
