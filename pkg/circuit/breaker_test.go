package circuit

import (
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestNewBreaker(t *testing.T) {
	breaker := NewBreaker("redis", DefaultConfig(), nil)

	if breaker.State() != StateClosed {
		t.Errorf("Expected initial state CLOSED, got %s", breaker.State().String())
	}

	if breaker.IsOpen() {
		t.Error("Expected breaker to not be open initially")
	}
}

func TestBreaker_TransitionToOpen(t *testing.T) {
	config := Config{
		Threshold:        3,
		Timeout:          1 * time.Second,
		SuccessThreshold: 2,
		MaxHalfOpen:      2,
	}
	breaker := NewBreaker("redis", config, zap.NewNop())

	// Record failures until threshold
	for i := 0; i < 3; i++ {
		breaker.Record(errors.New("connection refused"))
	}

	if breaker.State() != StateOpen {
		t.Errorf("Expected state OPEN after %d failures, got %s", config.Threshold, breaker.State().String())
	}

	// Should reject requests when open
	if err := breaker.Allow(); err != ErrCircuitOpen {
		t.Errorf("Expected ErrCircuitOpen, got %v", err)
	}
}

func TestBreaker_TransitionToHalfOpen(t *testing.T) {
	config := Config{
		Threshold:        2,
		Timeout:          100 * time.Millisecond,
		SuccessThreshold: 2,
		MaxHalfOpen:      2,
	}
	breaker := NewBreaker("redis", config, zap.NewNop())

	breaker.Record(errors.New("connection refused"))
	breaker.Record(errors.New("connection refused"))

	if breaker.State() != StateOpen {
		t.Fatalf("Expected state OPEN, got %s", breaker.State().String())
	}

	// Wait out the open window
	time.Sleep(150 * time.Millisecond)

	// Should transition to half-open on next Allow()
	if err := breaker.Allow(); err != nil {
		t.Errorf("Expected Allow() to succeed after timeout, got %v", err)
	}

	if breaker.State() != StateHalfOpen {
		t.Errorf("Expected state HALF_OPEN, got %s", breaker.State().String())
	}
}

func TestBreaker_TransitionToClosed(t *testing.T) {
	config := Config{
		Threshold:        2,
		Timeout:          50 * time.Millisecond,
		SuccessThreshold: 2,
		MaxHalfOpen:      5,
	}
	breaker := NewBreaker("redis", config, zap.NewNop())

	breaker.Record(errors.New("connection refused"))
	breaker.Record(errors.New("connection refused"))

	time.Sleep(60 * time.Millisecond)

	// Allow to transition to half-open
	breaker.Allow()

	// Record successes to close
	breaker.Record(nil)
	breaker.Record(nil)

	if breaker.State() != StateClosed {
		t.Errorf("Expected state CLOSED after successes, got %s", breaker.State().String())
	}
}

func TestBreaker_Execute(t *testing.T) {
	breaker := NewBreaker("redis", DefaultConfig(), nil)

	err := breaker.Execute(func() error {
		return nil
	})
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}

	storeErr := errors.New("i/o timeout")
	err = breaker.Execute(func() error {
		return storeErr
	})
	if err != storeErr {
		t.Errorf("Expected store error, got %v", err)
	}
}

func TestBreaker_Stats(t *testing.T) {
	config := Config{Threshold: 5, Timeout: time.Minute, SuccessThreshold: 2, MaxHalfOpen: 2}
	breaker := NewBreaker("redis", config, nil)

	breaker.Record(nil)
	breaker.Record(errors.New("connection refused"))
	breaker.Record(errors.New("connection refused"))

	stats := breaker.Stats()
	if stats["name"] != "redis" {
		t.Errorf("Expected name redis, got %v", stats["name"])
	}
	if stats["state"] != "CLOSED" {
		t.Errorf("Expected state CLOSED below threshold, got %v", stats["state"])
	}
	if stats["failures"] != 2 {
		t.Errorf("Expected 2 consecutive failures, got %v", stats["failures"])
	}
}

func TestBreaker_Reset(t *testing.T) {
	config := Config{Threshold: 1, Timeout: time.Hour}
	breaker := NewBreaker("redis", config, nil)

	breaker.Record(errors.New("connection refused"))

	if breaker.State() != StateOpen {
		t.Fatal("Expected state OPEN")
	}

	breaker.Reset()

	if breaker.State() != StateClosed {
		t.Errorf("Expected state CLOSED after reset, got %s", breaker.State().String())
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state    State
		expected string
	}{
		{StateClosed, "CLOSED"},
		{StateOpen, "OPEN"},
		{StateHalfOpen, "HALF_OPEN"},
		{State(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.expected {
			t.Errorf("State(%d).String() = %s, want %s", tt.state, got, tt.expected)
		}
	}
}
