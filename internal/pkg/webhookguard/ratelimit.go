package webhookguard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const rateLimitWindow = time.Minute

// windowState is the persisted count + reset-timestamp pair for one caller.
type windowState struct {
	Count   int
	ResetAt time.Time
}

// CounterStore persists per-key window counters. Implementations only need
// read-modify-write on a single key; the limiter is advisory and tolerates
// races under concurrent bursts from the same caller.
type CounterStore interface {
	Get(ctx context.Context, key string) (windowState, bool, error)
	Set(ctx context.Context, key string, state windowState) error
}

// RateLimiter caps requests per caller key within a fixed one-minute window.
type RateLimiter struct {
	store CounterStore
	limit int
}

// NewRateLimiter creates a limiter over an injected counter store.
func NewRateLimiter(store CounterStore, limit int) *RateLimiter {
	return &RateLimiter{store: store, limit: limit}
}

// Allow consumes one request slot for the key. Returns false when the key
// exhausted its window; the second value is when the window resets.
func (l *RateLimiter) Allow(ctx context.Context, key string) (bool, time.Time, error) {
	now := time.Now()

	state, found, err := l.store.Get(ctx, key)
	if err != nil {
		return false, time.Time{}, err
	}
	if !found || now.After(state.ResetAt) {
		state = windowState{Count: 0, ResetAt: now.Add(rateLimitWindow)}
	}

	if state.Count >= l.limit {
		return false, state.ResetAt, nil
	}

	state.Count++
	if err := l.store.Set(ctx, key, state); err != nil {
		return false, time.Time{}, err
	}
	return true, state.ResetAt, nil
}

// MemoryCounterStore keeps window counters in process memory; used in tests
// and single-instance deployments.
type MemoryCounterStore struct {
	mu     sync.Mutex
	states map[string]windowState
}

// NewMemoryCounterStore creates an empty in-memory counter store.
func NewMemoryCounterStore() *MemoryCounterStore {
	return &MemoryCounterStore{states: make(map[string]windowState)}
}

func (s *MemoryCounterStore) Get(ctx context.Context, key string) (windowState, bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[key]
	return state, ok, nil
}

func (s *MemoryCounterStore) Set(ctx context.Context, key string, state windowState) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[key] = state
	return nil
}

// RedisCounterStore persists window counters in Redis so limits survive
// restarts and apply across instances.
type RedisCounterStore struct {
	client *redis.Client
	prefix string
}

// NewRedisCounterStore creates a counter store over a Redis client.
func NewRedisCounterStore(client *redis.Client) *RedisCounterStore {
	return &RedisCounterStore{client: client, prefix: "webhookguard:ratelimit:"}
}

func (s *RedisCounterStore) Get(ctx context.Context, key string) (windowState, bool, error) {
	values, err := s.client.HGetAll(ctx, s.prefix+key).Result()
	if err != nil {
		return windowState{}, false, err
	}
	if len(values) == 0 {
		return windowState{}, false, nil
	}

	var state windowState
	fmt.Sscanf(values["count"], "%d", &state.Count)
	var resetUnix int64
	fmt.Sscanf(values["reset_at"], "%d", &resetUnix)
	state.ResetAt = time.Unix(resetUnix, 0)
	return state, true, nil
}

func (s *RedisCounterStore) Set(ctx context.Context, key string, state windowState) error {
	redisKey := s.prefix + key
	if err := s.client.HSet(ctx, redisKey,
		"count", state.Count,
		"reset_at", state.ResetAt.Unix(),
	).Err(); err != nil {
		return err
	}
	// Expire shortly after the window so stale keys clean themselves up.
	return s.client.ExpireAt(ctx, redisKey, state.ResetAt.Add(rateLimitWindow)).Err()
}
