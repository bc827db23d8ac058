package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store wraps the Redis-compatible state store with the pipeline's naming
// conventions and atomic primitives. It is the single coordination point
// between components; there is no direct process-to-process communication.
type Store struct {
	rdb *redis.Client
}

// New connects to the state store. The URL uses the redis:// scheme.
func New(redisURL string) (*Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url %q: %w", redisURL, err)
	}
	return &Store{rdb: redis.NewClient(opts)}, nil
}

// NewFromClient wraps an existing client. Used by tests.
func NewFromClient(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

// Ping verifies connectivity. Called at startup; failure is fatal.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("state store unreachable: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.rdb.Close()
}

// TryAcquireLock attempts an atomic set-if-absent with expiry. Returns false
// without error when the lock is already held.
func (s *Store) TryAcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, key, "locked", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	return ok, nil
}

// ReleaseLock unconditionally deletes a lock key. Idempotent.
func (s *Store) ReleaseLock(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("release lock %s: %w", key, err)
	}
	return nil
}

// Enqueue pushes a payload onto the left of a queue list.
func (s *Store) Enqueue(ctx context.Context, queue string, payload []byte) error {
	if err := s.rdb.LPush(ctx, queue, payload).Err(); err != nil {
		return fmt.Errorf("enqueue to %s: %w", queue, err)
	}
	return nil
}

// DequeueBlocking pops from the right of a queue, blocking up to timeout.
// Returns (nil, nil) when the timeout elapses with no work. Cancellation of
// ctx interrupts the wait promptly.
func (s *Store) DequeueBlocking(ctx context.Context, queue string, timeout time.Duration) ([]byte, error) {
	res, err := s.rdb.BRPop(ctx, timeout, queue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("dequeue from %s: %w", queue, err)
	}
	// BRPOP returns [queue, value].
	if len(res) != 2 {
		return nil, fmt.Errorf("dequeue from %s: unexpected reply of %d elements", queue, len(res))
	}
	return []byte(res[1]), nil
}

// QueueLen returns the current depth of a queue.
func (s *Store) QueueLen(ctx context.Context, queue string) (int64, error) {
	n, err := s.rdb.LLen(ctx, queue).Result()
	if err != nil {
		return 0, fmt.Errorf("queue length of %s: %w", queue, err)
	}
	return n, nil
}

// Set operations.

func (s *Store) SAdd(ctx context.Context, set string, members ...string) error {
	if err := s.rdb.SAdd(ctx, set, toAny(members)...).Err(); err != nil {
		return fmt.Errorf("sadd %s: %w", set, err)
	}
	return nil
}

func (s *Store) SRem(ctx context.Context, set string, members ...string) error {
	if err := s.rdb.SRem(ctx, set, toAny(members)...).Err(); err != nil {
		return fmt.Errorf("srem %s: %w", set, err)
	}
	return nil
}

func (s *Store) SIsMember(ctx context.Context, set, member string) (bool, error) {
	ok, err := s.rdb.SIsMember(ctx, set, member).Result()
	if err != nil {
		return false, fmt.Errorf("sismember %s: %w", set, err)
	}
	return ok, nil
}

func (s *Store) SCard(ctx context.Context, set string) (int64, error) {
	n, err := s.rdb.SCard(ctx, set).Result()
	if err != nil {
		return 0, fmt.Errorf("scard %s: %w", set, err)
	}
	return n, nil
}

func (s *Store) SMembers(ctx context.Context, set string) ([]string, error) {
	members, err := s.rdb.SMembers(ctx, set).Result()
	if err != nil {
		return nil, fmt.Errorf("smembers %s: %w", set, err)
	}
	return members, nil
}

// Scalar operations.

// Get returns the value of a key, or ("", false, nil) when it does not exist.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return val, true, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	if err := s.rdb.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *Store) SetEx(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("setex %s: %w", key, err)
	}
	return nil
}

func (s *Store) Del(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := s.rdb.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("del: %w", err)
	}
	return n, nil
}

// Hash operations.

func (s *Store) HSet(ctx context.Context, key string, fields map[string]string) error {
	if err := s.rdb.HSet(ctx, key, fields).Err(); err != nil {
		return fmt.Errorf("hset %s: %w", key, err)
	}
	return nil
}

func (s *Store) HGet(ctx context.Context, key, field string) (string, bool, error) {
	val, err := s.rdb.HGet(ctx, key, field).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("hget %s %s: %w", key, field, err)
	}
	return val, true, nil
}

func (s *Store) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	vals, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall %s: %w", key, err)
	}
	return vals, nil
}

func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := s.rdb.Expire(ctx, key, ttl).Err(); err != nil {
		return fmt.Errorf("expire %s: %w", key, err)
	}
	return nil
}

// Scan iterates every key matching the prefix and invokes fn for each.
// Used by maintenance tooling; the cursor walk never blocks other clients.
func (s *Store) Scan(ctx context.Context, prefix string, fn func(key string) error) error {
	var cursor uint64
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, prefix+"*", 500).Result()
		if err != nil {
			return fmt.Errorf("scan %s: %w", prefix, err)
		}
		for _, k := range keys {
			if err := fn(k); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

func toAny(members []string) []interface{} {
	out := make([]interface{}, len(members))
	for i, m := range members {
		out[i] = m
	}
	return out
}
