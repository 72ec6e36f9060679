package utils

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned while the breaker refuses calls after too many
// upstream failures.
var ErrCircuitOpen = errors.New("circuit breaker is open")

type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerHalfOpen
	BreakerOpen
)

// CircuitBreaker guards an upstream dependency. It trips open once the
// failure ratio inside the current window crosses the threshold, waits out
// a cooldown, then probes with a limited number of half-open calls.
type CircuitBreaker struct {
	name          string
	windowSize    uint32
	cooldown      time.Duration
	failureRatio  float64
	halfOpenProbe uint32

	mu        sync.Mutex
	state     BreakerState
	requests  uint32
	failures  uint32
	openUntil time.Time
}

func NewCircuitBreaker(name string) *CircuitBreaker {
	return &CircuitBreaker{
		name:          name,
		windowSize:    20,
		cooldown:      30 * time.Second,
		failureRatio:  0.6,
		halfOpenProbe: 3,
		state:         BreakerClosed,
	}
}

// Allow reports whether a call may proceed. The caller must report the
// outcome with Success or Failure.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case BreakerOpen:
		if time.Now().Before(cb.openUntil) {
			return ErrCircuitOpen
		}
		cb.state = BreakerHalfOpen
		cb.requests = 0
		cb.failures = 0
	case BreakerHalfOpen:
		if cb.requests >= cb.halfOpenProbe {
			return ErrCircuitOpen
		}
	}

	cb.requests++
	return nil
}

func (cb *CircuitBreaker) Success() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == BreakerHalfOpen {
		cb.state = BreakerClosed
		cb.requests = 0
		cb.failures = 0
	}
}

func (cb *CircuitBreaker) Failure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++

	if cb.state == BreakerHalfOpen {
		cb.trip()
		return
	}
	if cb.requests >= cb.windowSize &&
		float64(cb.failures)/float64(cb.requests) >= cb.failureRatio {
		cb.trip()
	}
}

func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) trip() {
	cb.state = BreakerOpen
	cb.openUntil = time.Now().Add(cb.cooldown)
	cb.requests = 0
	cb.failures = 0
}
