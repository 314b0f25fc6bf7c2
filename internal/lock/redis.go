package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/mind-engage/reshuffle/internal/logger"
)

// releaseScript deletes the key only while it still holds our token.
var releaseScript = goredis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`)

// Redis locks keys with SET NX PX so several gateways share one view.
type Redis struct {
	rdb    *goredis.Client
	log    *logger.Logger
	prefix string
	ttl    time.Duration
	retry  time.Duration
}

func NewRedis(ctx context.Context, addr, password string, log *logger.Logger) (*Redis, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    password,
		DialTimeout: 5 * time.Second,
	})
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Redis{
		rdb:    rdb,
		log:    logger.OrNop(log).With("service", "RedisLocker"),
		prefix: "reshuffle:lock:",
		ttl:    2 * time.Minute,
		retry:  100 * time.Millisecond,
	}, nil
}

func (r *Redis) Close() error { return r.rdb.Close() }

func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	k := r.prefix + key
	token := uuid.NewString()
	t := time.NewTicker(r.retry)
	defer t.Stop()
	for {
		ok, err := r.rdb.SetNX(ctx, k, token, r.ttl).Result()
		if err != nil && ctx.Err() == nil {
			return nil, fmt.Errorf("redis lock %s: %w", key, err)
		}
		if ok {
			return func() {
				// release must run even when the caller's ctx is gone
				rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
				defer cancel()
				if err := releaseScript.Run(rctx, r.rdb, []string{k}, token).Err(); err != nil {
					r.log.Warn("lock release", "key", key, "error", err)
				}
			}, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%s: %w: %v", key, ErrBusy, ctx.Err())
		case <-t.C:
		}
	}
}

// Open picks the locker named by driver (local|redis).
func Open(ctx context.Context, driver, addr, password string, log *logger.Logger) (Locker, error) {
	switch driver {
	case "", "local":
		return NewLocal(), nil
	case "redis":
		return NewRedis(ctx, addr, password, log)
	default:
		return nil, fmt.Errorf("unsupported lock driver: %s", driver)
	}
}
