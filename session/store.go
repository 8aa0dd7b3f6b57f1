package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrRedisUnavailable wraps every backend failure.
	ErrRedisUnavailable = errors.New("session: redis unavailable")
	// ErrNotFound means the session expired or was revoked.
	ErrNotFound = errors.New("session: not found")
	// ErrCorrupt is returned for a hash missing required fields.
	ErrCorrupt = errors.New("session: corrupt record")
	// ErrOwnerMismatch is returned when a refresh token names a session owned
	// by another account.
	ErrOwnerMismatch = errors.New("session: owner mismatch")
	// ErrRefreshReused is returned when a refresh token that was already
	// rotated away is presented again. The session is deleted.
	ErrRefreshReused = errors.New("session: refresh token reused")
)

const (
	rotateNotFound int64 = 0
	rotateOwner    int64 = 1
	rotateReused   int64 = 2
	rotateOK       int64 = 3
)

// KEYS[1] session, KEYS[2] account index
// ARGV[1] account id, ARGV[2] expected jti, ARGV[3] new jti, ARGV[4] now ms,
// ARGV[5] session id, ARGV[6] ttl ms
const rotateScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
local cur = redis.call("HMGET", KEYS[1], "account_id", "refresh_jti")
if cur[1] ~= ARGV[1] then
  return 1
end
if cur[2] ~= ARGV[2] then
  redis.call("DEL", KEYS[1])
  redis.call("SREM", KEYS[2], ARGV[5])
  return 2
end
redis.call("HSET", KEYS[1], "refresh_jti", ARGV[3], "last_used_at", ARGV[4])
redis.call("PEXPIRE", KEYS[1], ARGV[6])
redis.call("PEXPIRE", KEYS[2], ARGV[6])
return 3
`

// KEYS[1] session, KEYS[2] account index
// ARGV[1] account id, ARGV[2] now ms, ARGV[3] ttl ms
const touchScript = `
if redis.call("HGET", KEYS[1], "account_id") ~= ARGV[1] then
  return 0
end
redis.call("HSET", KEYS[1], "last_used_at", ARGV[2])
redis.call("PEXPIRE", KEYS[1], ARGV[3])
redis.call("PEXPIRE", KEYS[2], ARGV[3])
return 1
`

// KEYS[1] session, KEYS[2] account index
// ARGV[1] session id, ARGV[2] account id
const revokeScript = `
if redis.call("HGET", KEYS[1], "account_id") ~= ARGV[2] then
  return 0
end
redis.call("DEL", KEYS[1])
redis.call("SREM", KEYS[2], ARGV[1])
return 1
`

// KEYS[1] account index; ARGV[1] session key prefix
//
// Session keys are derived from the index members, so this script is the one
// place that touches keys it was not handed.
const revokeAllScript = `
local ids = redis.call("SMEMBERS", KEYS[1])
for i = 1, #ids do
  redis.call("DEL", ARGV[1] .. ids[i])
end
redis.call("DEL", KEYS[1])
return #ids
`

var (
	rotateLua    = redis.NewScript(rotateScript)
	touchLua     = redis.NewScript(touchScript)
	revokeLua    = redis.NewScript(revokeScript)
	revokeAllLua = redis.NewScript(revokeAllScript)
)

// Store keeps sessions as Redis hashes under "<prefix>:s:<sid>" with an
// account index set under "<prefix>:a:<accountID>".
//
// Scripts span a session key and its index key, which land in different
// cluster slots, so the client must point at a single primary (standalone,
// sentinel failover or a replica-set primary). Redis Cluster is unsupported.
type Store struct {
	redis   redis.UniversalClient
	prefix  string
	ttl     time.Duration
	now     func() time.Time
	timeout time.Duration
}

// NewStore creates a session store whose records expire after ttl without
// activity. ttl should equal the refresh token lifetime.
func NewStore(client redis.UniversalClient, prefix string, ttl time.Duration, now func() time.Time) *Store {
	if prefix == "" {
		prefix = "sess"
	}
	if now == nil {
		now = time.Now
	}
	return &Store{redis: client, prefix: prefix, ttl: ttl, now: now}
}

// WithOperationTimeout bounds every Redis call made by the store.
func (s *Store) WithOperationTimeout(d time.Duration) *Store {
	s.timeout = d
	return s
}

func (s *Store) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// NewID returns a fresh session id.
func NewID() string {
	return uuid.NewString()
}

func (s *Store) key(sid string) string {
	return s.prefix + ":s:" + sid
}

func (s *Store) indexKey(accountID string) string {
	return s.prefix + ":a:" + accountID
}

// Create saves sess and adds it to the account index in one transaction.
// An empty ID is filled with [NewID]; zero timestamps are set to now.
func (s *Store) Create(ctx context.Context, sess *Session) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	if sess == nil || sess.AccountID == "" {
		return errors.New("session: account id required")
	}
	if sess.ID == "" {
		sess.ID = NewID()
	}
	now := s.now()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now
	}
	if sess.LastUsedAt.IsZero() {
		sess.LastUsedAt = now
	}

	key := s.key(sess.ID)
	index := s.indexKey(sess.AccountID)
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, sess.fields())
		pipe.PExpire(ctx, key, s.ttl)
		pipe.SAdd(ctx, index, sess.ID)
		pipe.PExpire(ctx, index, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Get loads a live session.
func (s *Store) Get(ctx context.Context, sid string) (*Session, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	if sid == "" {
		return nil, ErrNotFound
	}
	m, err := s.redis.HGetAll(ctx, s.key(sid)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(m) == 0 {
		return nil, ErrNotFound
	}
	return fromFields(sid, m)
}

// Touch records activity and slides the expiry.
func (s *Store) Touch(ctx context.Context, sid, accountID string) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	res, err := touchLua.Run(ctx, s.redis,
		[]string{s.key(sid), s.indexKey(accountID)},
		accountID, s.now().UnixMilli(), s.ttl.Milliseconds(),
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if res == 0 {
		return ErrNotFound
	}
	return nil
}

// Rotate swaps the session's refresh jti from oldJTI to newJTI atomically.
// Only one of several concurrent callers presenting the same oldJTI wins;
// the others see [ErrRefreshReused] and the session is gone.
func (s *Store) Rotate(ctx context.Context, sid, accountID, oldJTI, newJTI string) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	res, err := rotateLua.Run(ctx, s.redis,
		[]string{s.key(sid), s.indexKey(accountID)},
		accountID, oldJTI, newJTI, s.now().UnixMilli(), sid, s.ttl.Milliseconds(),
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	switch res {
	case rotateOK:
		return nil
	case rotateNotFound:
		return ErrNotFound
	case rotateOwner:
		return ErrOwnerMismatch
	case rotateReused:
		return ErrRefreshReused
	default:
		return fmt.Errorf("%w: unknown rotate status %d", ErrRedisUnavailable, res)
	}
}

// Revoke deletes a session. Revoking a missing session is not an error.
func (s *Store) Revoke(ctx context.Context, sid string) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	key := s.key(sid)
	owner, err := s.redis.HGet(ctx, key, "account_id").Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// The owner never changes, so the script only re-checks it is still there.
	if err := revokeLua.Run(ctx, s.redis, []string{key, s.indexKey(owner)}, sid, owner).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// RevokeAll deletes every session of accountID together with its index and
// returns how many index entries were removed. Concurrent callers never count
// the same session twice.
func (s *Store) RevokeAll(ctx context.Context, accountID string) (int, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	n, err := revokeAllLua.Run(ctx, s.redis, []string{s.indexKey(accountID)}, s.key("")).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return int(n), nil
}

// List returns the live sessions of accountID, newest first. Index entries
// whose session already expired are pruned.
func (s *Store) List(ctx context.Context, accountID string) ([]*Session, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	index := s.indexKey(accountID)

	ids, err := s.redis.SMembers(ctx, index).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	pipe := s.redis.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, s.key(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	out := make([]*Session, 0, len(ids))
	var stale []string
	for i, cmd := range cmds {
		m := cmd.Val()
		if len(m) == 0 {
			stale = append(stale, ids[i])
			continue
		}
		sess, err := fromFields(ids[i], m)
		if err != nil || sess.AccountID != accountID {
			stale = append(stale, ids[i])
			continue
		}
		out = append(out, sess)
	}
	if len(stale) > 0 {
		if err := s.redis.SRem(ctx, index, toInterfaces(stale)...).Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Ping checks the backend.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func toInterfaces(ss []string) []interface{} {
	out := make([]interface{}, len(ss))
	for i, v := range ss {
		out[i] = v
	}
	return out
}

func parseMillis(v string) (time.Time, error) {
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms), nil
}
