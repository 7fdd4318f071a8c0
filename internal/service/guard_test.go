package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/karmasystem/auth-service/pkg/circuit"
)

func TestGuardedRevocationStoreFailsFastWhenOpen(t *testing.T) {
	t.Parallel()

	store := newFakeRevocationStore()
	store.failSet = true
	breaker := circuit.NewBreaker("test", circuit.Config{
		Threshold:        2,
		Timeout:          time.Hour,
		SuccessThreshold: 1,
		MaxHalfOpen:      1,
	}, nil)
	guarded := NewGuardedRevocationStore(store, breaker)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := guarded.Set(ctx, "k", "v", time.Minute); err == nil {
			t.Fatalf("attempt %d should fail", i)
		}
	}

	if !breaker.IsOpen() {
		t.Fatal("breaker should open after repeated failures")
	}

	// The open breaker rejects without reaching the store
	store.failSet = false
	if err := guarded.Set(ctx, "k", "v", time.Minute); !errors.Is(err, circuit.ErrCircuitOpen) {
		t.Errorf("err = %v, want ErrCircuitOpen", err)
	}
	if len(store.entries) != 0 {
		t.Error("open breaker must not pass calls through")
	}
}

func TestGuardedCounterStorePassesThrough(t *testing.T) {
	t.Parallel()

	store := newFakeCounterStore()
	breaker := circuit.NewBreaker("test", circuit.DefaultConfig(), nil)
	guarded := NewGuardedCounterStore(store, breaker)
	ctx := context.Background()

	count, remaining, err := guarded.IncrWithExpiry(ctx, "k", time.Minute)
	if err != nil {
		t.Fatalf("IncrWithExpiry: %v", err)
	}
	if count != 1 || remaining != time.Minute {
		t.Errorf("count = %d remaining = %v", count, remaining)
	}

	if err := guarded.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(store.counts) != 0 {
		t.Error("delete did not reach the store")
	}
}
