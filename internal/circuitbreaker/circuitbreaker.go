// Package circuitbreaker stops calling a failing upstream for a cool-down period.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// ErrOpen is returned without calling the upstream while the circuit is open.
var ErrOpen = errors.New("circuit breaker open")

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

// State is the circuit breaker state (Closed, Open, HalfOpen).
type State int

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// CircuitBreaker opens after repeated failures and allows trial calls in half-open state.
type CircuitBreaker struct {
	mu               sync.Mutex
	state            State
	failureCount     int
	successCount     int
	lastFailureTime  time.Time
	failureThreshold int
	successThreshold int
	timeout          time.Duration
	component        string
	clock            clockwork.Clock
	isFailure        func(error) bool
	onStateChange    func(component string, from, to State)
}

// Config holds circuit breaker parameters. Zero values take defaults.
type Config struct {
	FailureThreshold int
	SuccessThreshold int
	Timeout          time.Duration
	Component        string
	// Clock defaults to the real clock.
	Clock clockwork.Clock
	// IsFailure decides which errors count; nil counts every error.
	IsFailure func(error) bool
	// OnStateChange is called outside the lock after each transition.
	OnStateChange func(component string, from, to State)
}

// New creates a new CircuitBreaker with the given config.
func New(cfg Config) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.IsFailure == nil {
		cfg.IsFailure = func(err error) bool { return err != nil }
	}
	return &CircuitBreaker{
		state:            StateClosed,
		failureThreshold: cfg.FailureThreshold,
		successThreshold: cfg.SuccessThreshold,
		timeout:          cfg.Timeout,
		component:        cfg.Component,
		clock:            cfg.Clock,
		isFailure:        cfg.IsFailure,
		onStateChange:    cfg.OnStateChange,
	}
}

// Call runs fn when the circuit allows it. While open and before the timeout elapses it
// returns ErrOpen; after the timeout the circuit goes half-open and fn runs as a trial call.
// fn's error is always returned unchanged.
func (cb *CircuitBreaker) Call(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	cb.mu.Lock()
	if cb.state == StateOpen {
		if cb.clock.Since(cb.lastFailureTime) < cb.timeout {
			cb.mu.Unlock()
			return ErrOpen
		}
		cb.state = StateHalfOpen
		cb.successCount = 0
		cb.mu.Unlock()
		cb.notify(StateOpen, StateHalfOpen)
	} else {
		cb.mu.Unlock()
	}

	err := fn()

	cb.mu.Lock()
	from := cb.state
	to := cb.record(err)
	cb.mu.Unlock()

	if from != to {
		cb.notify(from, to)
	}
	return err
}

// record updates counters for one outcome and returns the resulting state. Caller holds mu.
func (cb *CircuitBreaker) record(err error) State {
	if cb.isFailure(err) {
		cb.failureCount++
		cb.lastFailureTime = cb.clock.Now()
		if cb.state == StateHalfOpen || cb.failureCount >= cb.failureThreshold {
			cb.state = StateOpen
			cb.failureCount = 0
		}
		return cb.state
	}

	cb.failureCount = 0
	if cb.state == StateHalfOpen {
		cb.successCount++
		if cb.successCount >= cb.successThreshold {
			cb.state = StateClosed
			cb.successCount = 0
		}
	}
	return cb.state
}

func (cb *CircuitBreaker) notify(from, to State) {
	if cb.onStateChange != nil {
		cb.onStateChange(cb.component, from, to)
	}
}

// State returns the current state (for metrics and health).
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
