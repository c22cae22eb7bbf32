package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// KEYS[1] = record hash
// ARGV[1] = hash lifetime in milliseconds, one window plus 1ms
// ARGV[2] = caller clock in unix milliseconds
//
// The hash outlives the window by 1ms: a hit exactly one window after the first still
// counts, the next one starts a fresh window.
var hitLua = redis.NewScript(`
local count = redis.call('HINCRBY', KEYS[1], 'count', 1)
if count == 1 then
  redis.call('HSET', KEYS[1], 'start', ARGV[2])
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
elseif redis.call('PTTL', KEYS[1]) < 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local start = redis.call('HGET', KEYS[1], 'start')
return {count, start}
`)

// RedisStore keeps records in Redis so every replica shares one counter per identifier.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRedisStore creates a Redis-backed store. Keys are namespaced with prefix.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "landhub:ratelimit:"
	}
	return &RedisStore{client: client, prefix: prefix, now: time.Now}
}

// Hit runs the increment script for identifier.
func (s *RedisStore) Hit(ctx context.Context, identifier string, window time.Duration) (Record, error) {
	ms := window.Milliseconds()
	if ms <= 0 {
		ms = 1
	}
	now := s.now()
	raw, err := hitLua.Run(ctx, s.client, []string{s.key(identifier)}, ms+1, now.UnixMilli()).Slice()
	if err != nil {
		return Record{}, fmt.Errorf("ratelimit: redis hit: %w", err)
	}
	if len(raw) != 2 {
		return Record{}, fmt.Errorf("ratelimit: unexpected script reply %v", raw)
	}
	count, ok := raw[0].(int64)
	if !ok {
		return Record{}, fmt.Errorf("ratelimit: unexpected count %T", raw[0])
	}
	start := now
	if startRaw, ok := raw[1].(string); ok {
		if parsed, err := strconv.ParseInt(startRaw, 10, 64); err == nil {
			start = time.UnixMilli(parsed)
		}
	}
	return Record{Identifier: identifier, AttemptCount: int(count), WindowStart: start}, nil
}

// Reset deletes the record for identifier.
func (s *RedisStore) Reset(ctx context.Context, identifier string) error {
	if err := s.client.Del(ctx, s.key(identifier)).Err(); err != nil {
		return fmt.Errorf("ratelimit: redis reset: %w", err)
	}
	return nil
}

func (s *RedisStore) key(identifier string) string {
	return s.prefix + identifier
}
