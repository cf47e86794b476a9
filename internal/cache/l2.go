package cache

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// unhealthyAfter is the number of consecutive L2 operation failures after
// which the store reports itself unhealthy; it resets on the next success.
const unhealthyAfter = 3

// L2Store is the out-of-process cache tier, backed by Redis. Every method
// degrades gracefully: a Redis failure is logged and reported as a miss
// rather than propagated, so the manager can fall back to L1-only
// operation. This mirrors the teacher's RedisCacheManager in
// internal/data/cache.go, adapted to take context.Context per call instead
// of storing one on the struct.
type L2Store struct {
	client          *redis.Client
	keyPrefix       string
	consecutiveFail atomic.Int32
}

// NewL2Store dials Redis at addr. Connection establishment is lazy (redis.Client
// does not block on construction); call Healthy(ctx) to confirm reachability.
func NewL2Store(addr, password string, db int, keyPrefix string) *L2Store {
	client := redis.NewClient(&redis.Options{
		Addr:            addr,
		Password:        password,
		DB:              db,
		PoolSize:        50,
		MinIdleConns:    5,
		DialTimeout:     5 * time.Second,
		ReadTimeout:     2 * time.Second,
		WriteTimeout:    2 * time.Second,
		MaxRetries:      2,
		MinRetryBackoff: 50 * time.Millisecond,
		MaxRetryBackoff: 500 * time.Millisecond,
	})
	return &L2Store{client: client, keyPrefix: keyPrefix}
}

func (s *L2Store) prefixed(key string) string {
	if s.keyPrefix == "" {
		return key
	}
	return s.keyPrefix + ":" + key
}

func (s *L2Store) recordSuccess() {
	s.consecutiveFail.Store(0)
}

func (s *L2Store) recordFailure(op string, err error) {
	n := s.consecutiveFail.Add(1)
	log.Warn().Str("op", op).Err(err).Int32("consecutive_failures", n).Msg("l2 cache operation failed")
}

// Healthy reports whether L2 should currently be trusted: either the last
// ping succeeded, or fewer than unhealthyAfter consecutive failures have
// been observed.
func (s *L2Store) Healthy(ctx context.Context) bool {
	if err := s.client.Ping(ctx).Err(); err != nil {
		s.recordFailure("ping", err)
		return s.consecutiveFail.Load() < unhealthyAfter
	}
	s.recordSuccess()
	return true
}

// Get returns the value for key, or false if absent, expired, or L2 is
// unreachable.
func (s *L2Store) Get(ctx context.Context, key string) ([]byte, bool) {
	v, err := s.client.Get(ctx, s.prefixed(key)).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.recordFailure("get", err)
		}
		return nil, false
	}
	s.recordSuccess()
	return v, true
}

// Set stores value under key with the given TTL. A failure is logged and
// also returned; callers should treat L2 writes as best-effort.
func (s *L2Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.prefixed(key), value, ttl).Err(); err != nil {
		s.recordFailure("set", err)
		return err
	}
	s.recordSuccess()
	return nil
}

// Invalidate removes a single key from L2.
func (s *L2Store) Invalidate(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefixed(key)).Err(); err != nil {
		s.recordFailure("del", err)
		return err
	}
	s.recordSuccess()
	return nil
}

// InvalidatePattern deletes every key matching the glob pattern (relative
// to keyPrefix) using SCAN so it never blocks Redis the way KEYS would.
func (s *L2Store) InvalidatePattern(ctx context.Context, pattern string) (int, error) {
	var cursor uint64
	removed := 0
	match := s.prefixed(pattern)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, match, 200).Result()
		if err != nil {
			s.recordFailure("scan", err)
			return removed, err
		}
		if len(keys) > 0 {
			if err := s.client.Del(ctx, keys...).Err(); err != nil {
				s.recordFailure("del", err)
				return removed, err
			}
			removed += len(keys)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	s.recordSuccess()
	return removed, nil
}

// Close releases the underlying Redis connection pool.
func (s *L2Store) Close() error {
	return s.client.Close()
}
