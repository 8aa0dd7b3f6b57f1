package stores

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrUnavailable wraps every backend failure of a keyed store.
var ErrUnavailable = errors.New("keyed store unavailable")

// Counter is the state of a windowed counter.
type Counter struct {
	Count int64
	TTL   time.Duration
}

// Keyed is an expiring key/value store shared across server instances.
type Keyed interface {
	// Incr atomically increments key and, when the key has no expiry yet,
	// sets it to window.
	Incr(ctx context.Context, key string, window time.Duration) (Counter, error)
	// Decr takes one back from a counter, never below zero, and keeps its
	// expiry. Missing keys stay missing.
	Decr(ctx context.Context, key string) (int64, error)
	// Peek reads a counter without modifying it. Missing keys are zero.
	Peek(ctx context.Context, key string) (Counter, error)
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
	// Take returns and deletes the value stored at key.
	Take(ctx context.Context, key string) (string, bool, error)
	Delete(ctx context.Context, keys ...string) error
}

const incrWindowScript = `
local count = redis.call("INCR", KEYS[1])
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {count, ttl}
`

var incrWindowLua = redis.NewScript(incrWindowScript)

const decrFloorScript = `
local v = tonumber(redis.call("GET", KEYS[1]) or "0")
if v <= 0 then
  return 0
end
return redis.call("DECR", KEYS[1])
`

var decrFloorLua = redis.NewScript(decrFloorScript)

// Redis implements [Keyed] on a go-redis client.
type Redis struct {
	client  redis.UniversalClient
	prefix  string
	timeout time.Duration
}

// NewRedis returns a keyed store that namespaces every key under prefix.
func NewRedis(client redis.UniversalClient, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

// WithOperationTimeout bounds every call made through r.
func (r *Redis) WithOperationTimeout(d time.Duration) *Redis {
	r.timeout = d
	return r
}

func (r *Redis) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.timeout)
}

func (r *Redis) key(k string) string {
	if r.prefix == "" {
		return k
	}
	return r.prefix + ":" + k
}

// Incr implements [Keyed].
func (r *Redis) Incr(ctx context.Context, key string, window time.Duration) (Counter, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	if window <= 0 {
		return Counter{}, errors.New("window must be positive")
	}

	res, err := incrWindowLua.Run(ctx, r.client, []string{r.key(key)}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return Counter{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(res) != 2 {
		return Counter{}, fmt.Errorf("%w: unexpected incr reply", ErrUnavailable)
	}

	return Counter{Count: res[0], TTL: time.Duration(res[1]) * time.Millisecond}, nil
}

// Decr implements [Keyed].
func (r *Redis) Decr(ctx context.Context, key string) (int64, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	n, err := decrFloorLua.Run(ctx, r.client, []string{r.key(key)}).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n, nil
}

// Peek implements [Keyed].
func (r *Redis) Peek(ctx context.Context, key string) (Counter, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	k := r.key(key)

	pipe := r.client.Pipeline()
	getCmd := pipe.Get(ctx, k)
	ttlCmd := pipe.PTTL(ctx, k)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return Counter{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	count, err := getCmd.Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Counter{}, nil
		}
		return Counter{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	ttl := ttlCmd.Val()
	if ttl < 0 {
		ttl = 0
	}
	return Counter{Count: count, TTL: ttl}, nil
}

// Put implements [Keyed].
func (r *Redis) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	if ttl <= 0 {
		return errors.New("ttl must be positive")
	}
	if err := r.client.Set(ctx, r.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Exists implements [Keyed].
func (r *Redis) Exists(ctx context.Context, key string) (bool, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	n, err := r.client.Exists(ctx, r.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n == 1, nil
}

// Take implements [Keyed].
func (r *Redis) Take(ctx context.Context, key string) (string, bool, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	v, err := r.client.GetDel(ctx, r.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return v, true, nil
}

// Delete implements [Keyed].
func (r *Redis) Delete(ctx context.Context, keys ...string) error {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.key(k)
	}
	if err := r.client.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
