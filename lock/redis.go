package lock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	. "github.com/warpfork/go-errcat"

	"github.com/Maheshkerai/update-generator"
)

const (
	defaultRedisURL = "redis://localhost:6379"
	defaultTTL      = 30 * time.Minute
	redisKeyPrefix  = "lock:"
)

// Deletes the key only if it still carries our owner token, so a run whose
// TTL lapsed cannot release a lock someone else has since taken.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

/*
	RedisLocker shares locks between build hosts through a redis server.

	Locks carry a TTL: a run that dies without releasing blocks others only
	until it expires.  Set TTL comfortably above the longest expected run.
*/
type RedisLocker struct {
	client *redis.Client
	TTL    time.Duration
}

// NewRedisLocker connects and pings the server before returning.
func NewRedisLocker(ctx context.Context, url string, ttl time.Duration) (*RedisLocker, error) {
	if url == "" {
		url = defaultRedisURL
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, Errorf(updategen.ErrConfig, "invalid redis url: %s", err)
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, Errorf(updategen.ErrIO, "cannot reach redis at %s: %s", opts.Addr, err)
	}
	return &RedisLocker{client: client, TTL: ttl}, nil
}

func (l *RedisLocker) Acquire(ctx context.Context, name string) (Release, error) {
	ttl := l.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	key := redisKeyPrefix + name
	owner := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, owner, ttl).Result()
	if err != nil {
		return nil, Errorf(updategen.ErrIO, "cannot acquire lock %s: %s", name, err)
	}
	if !ok {
		return nil, Errorf(updategen.ErrBusy, "another run holds lock %s", name)
	}
	released := false
	return func() error {
		if released {
			return nil
		}
		released = true
		// The caller's context may already be cancelled by the time we release.
		relCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(relCtx, l.client, []string{key}, owner).Err(); err != nil {
			return Errorf(updategen.ErrIO, "cannot release lock %s: %s", name, err)
		}
		return nil
	}, nil
}

func (l *RedisLocker) Close() error {
	if l == nil || l.client == nil {
		return nil
	}
	return l.client.Close()
}
