package service

import (
	"context"
	"time"

	"github.com/karmasystem/auth-service/pkg/circuit"
)

// GuardedRevocationStore puts a circuit breaker in front of the revocation
// store. When the store keeps failing the breaker opens and calls fail fast
// instead of stacking up on timeouts; the blacklist's fail-closed policy
// turns those fast failures into rejections, which is the intended behavior.
type GuardedRevocationStore struct {
	store   RevocationStore
	breaker *circuit.Breaker
}

func NewGuardedRevocationStore(store RevocationStore, breaker *circuit.Breaker) *GuardedRevocationStore {
	return &GuardedRevocationStore{store: store, breaker: breaker}
}

func (g *GuardedRevocationStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return g.breaker.Execute(func() error {
		return g.store.Set(ctx, key, value, ttl)
	})
}

func (g *GuardedRevocationStore) Exists(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := g.breaker.Execute(func() error {
		var innerErr error
		exists, innerErr = g.store.Exists(ctx, key)
		return innerErr
	})
	return exists, err
}

// GuardedCounterStore is the same breaker treatment for the rate limit
// counters. The limiter fails open on errors, so an open breaker degrades to
// unthrottled requests rather than refused ones.
type GuardedCounterStore struct {
	store   CounterStore
	breaker *circuit.Breaker
}

func NewGuardedCounterStore(store CounterStore, breaker *circuit.Breaker) *GuardedCounterStore {
	return &GuardedCounterStore{store: store, breaker: breaker}
}

func (g *GuardedCounterStore) IncrWithExpiry(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	var count int64
	var remaining time.Duration
	err := g.breaker.Execute(func() error {
		var innerErr error
		count, remaining, innerErr = g.store.IncrWithExpiry(ctx, key, window)
		return innerErr
	})
	return count, remaining, err
}

func (g *GuardedCounterStore) Delete(ctx context.Context, key string) error {
	return g.breaker.Execute(func() error {
		return g.store.Delete(ctx, key)
	})
}
