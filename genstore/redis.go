package genstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisGenStore shares mailbox generations across processes and survives
// restarts. With a TTL the counters of silent mailboxes expire; a reader then
// observes generation 0 and the stored entry self-heals on the next Get.
//
// Counters live under "gen:<namespace>:<storage key>". Both updates run as
// Lua scripts so the increment and its expiry land together.
type RedisGenStore struct {
	rdb redis.UniversalClient
	ns  string        // should match MailboxOptions.Namespace
	ttl time.Duration // 0 disables expiry
}

var _ GenStore = (*RedisGenStore)(nil)

func NewRedisGenStore(client redis.UniversalClient, namespace string) *RedisGenStore {
	return &RedisGenStore{rdb: client, ns: namespace}
}

// NewRedisGenStoreWithTTL expires each counter ttl after its last bump.
// If ttl <= 0, keys do not expire.
func NewRedisGenStoreWithTTL(client redis.UniversalClient, namespace string, ttl time.Duration) *RedisGenStore {
	if ttl < 0 {
		ttl = 0
	}
	return &RedisGenStore{rdb: client, ns: namespace, ttl: ttl}
}

func (s *RedisGenStore) key(k string) string { return "gen:" + s.ns + ":" + k }

func parseGen(storageKey string, v any) (uint64, error) {
	var str string
	switch vv := v.(type) {
	case nil:
		return 0, nil
	case string:
		str = vv
	case []byte:
		str = string(vv)
	default:
		str = fmt.Sprint(vv)
	}
	u, err := strconv.ParseUint(str, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("genstore: redis gen at %s: %w", storageKey, err)
	}
	return u, nil
}

func (s *RedisGenStore) Snapshot(ctx context.Context, storageKey string) (uint64, error) {
	res, err := s.rdb.Get(ctx, s.key(storageKey)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return parseGen(storageKey, res)
}

// SnapshotMany reads an inbox worth of counters with one MGET.
func (s *RedisGenStore) SnapshotMany(ctx context.Context, storageKeys []string) (map[string]uint64, error) {
	out := make(map[string]uint64, len(storageKeys))
	if len(storageKeys) == 0 {
		return out, nil
	}
	keys := make([]string, len(storageKeys))
	for i, k := range storageKeys {
		keys[i] = s.key(k)
	}
	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	for i, v := range vals {
		g, err := parseGen(storageKeys[i], v)
		if err != nil {
			return nil, err
		}
		out[storageKeys[i]] = g
	}
	return out, nil
}

// KEYS[1]=gen key, ARGV[1]=ttl ms (0 = none).
var bump = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if tonumber(ARGV[1]) > 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n
`)

// KEYS[1]=gen key, ARGV[1]=observed, ARGV[2]=ttl ms (0 = none).
// Returns the new generation, or -1-current when observed is stale.
var compareAndBump = redis.NewScript(`
local cur = tonumber(redis.call('GET', KEYS[1]) or '0')
if cur ~= tonumber(ARGV[1]) then
  return -1 - cur
end
local n = redis.call('INCR', KEYS[1])
if tonumber(ARGV[2]) > 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return n
`)

// Bump increments the counter and refreshes its TTL.
func (s *RedisGenStore) Bump(ctx context.Context, storageKey string) (uint64, error) {
	v, err := bump.Run(ctx, s.rdb, []string{s.key(storageKey)}, s.ttl.Milliseconds()).Int64()
	if err != nil {
		return 0, err
	}
	return uint64(v), nil
}

// CompareAndBump checks and increments in one script, so concurrent
// deliveries and acks across processes cannot interleave.
func (s *RedisGenStore) CompareAndBump(ctx context.Context, storageKey string, observed uint64) (uint64, bool, error) {
	v, err := compareAndBump.Run(ctx, s.rdb, []string{s.key(storageKey)}, observed, s.ttl.Milliseconds()).Int64()
	if err != nil {
		return 0, false, err
	}
	if v < 0 {
		return uint64(-1 - v), false, nil
	}
	return uint64(v), true, nil
}

// Cleanup is a no-op; redis expires counters through the TTL.
func (s *RedisGenStore) Cleanup(time.Duration) {}

// Close closes the underlying Redis client. A client already closed by a
// provider sharing it is not an error.
func (s *RedisGenStore) Close(context.Context) error {
	if err := s.rdb.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
		return err
	}
	return nil
}
