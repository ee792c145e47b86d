// Package circuitbreaker guards calls to an unreliable dependency. After a
// run of failures the breaker opens and rejects calls immediately, giving
// the dependency room to recover; after a cooldown it lets a few probe
// calls through and closes again once they succeed.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State is one of the three breaker states.
type State int

const (
	// StateClosed lets all calls through.
	StateClosed State = iota
	// StateOpen rejects all calls until the cooldown passes.
	StateOpen
	// StateHalfOpen lets a bounded number of probe calls through.
	StateHalfOpen
)

var stateNames = map[State]string{
	StateClosed:   "closed",
	StateOpen:     "open",
	StateHalfOpen: "half-open",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

var (
	// ErrCircuitOpen is returned while the breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrTooManyRequests is returned when the half-open probe budget is
	// already in use.
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

// Counts tracks call outcomes since the breaker was created.
type Counts struct {
	Requests             int
	TotalSuccesses       int
	TotalFailures        int
	ConsecutiveSuccesses int
	ConsecutiveFailures  int
}

// Option adjusts breaker settings.
type Option func(*CircuitBreaker)

// WithFailureThreshold sets how many consecutive failures open the breaker.
func WithFailureThreshold(n int) Option {
	return func(cb *CircuitBreaker) {
		if n > 0 {
			cb.failureThreshold = n
		}
	}
}

// WithSuccessThreshold sets how many consecutive half-open successes close it.
func WithSuccessThreshold(n int) Option {
	return func(cb *CircuitBreaker) {
		if n > 0 {
			cb.successThreshold = n
		}
	}
}

// WithTimeout sets the open-state cooldown before probing resumes.
func WithTimeout(d time.Duration) Option {
	return func(cb *CircuitBreaker) {
		if d > 0 {
			cb.cooldown = d
		}
	}
}

// WithMaxHalfOpenRequests bounds concurrent probe calls in half-open state.
func WithMaxHalfOpenRequests(n int) Option {
	return func(cb *CircuitBreaker) {
		if n > 0 {
			cb.maxHalfOpen = n
		}
	}
}

// WithOnStateChange installs a callback fired on every state transition.
func WithOnStateChange(fn func(name string, from, to State)) Option {
	return func(cb *CircuitBreaker) { cb.onStateChange = fn }
}

// WithIsFailure installs a predicate deciding which errors count against
// the breaker. Without it, every non-nil error counts.
func WithIsFailure(fn func(error) bool) Option {
	return func(cb *CircuitBreaker) { cb.isFailure = fn }
}

// CircuitBreaker tracks failures of one dependency.
type CircuitBreaker struct {
	name             string
	failureThreshold int
	successThreshold int
	cooldown         time.Duration
	maxHalfOpen      int
	onStateChange    func(name string, from, to State)
	isFailure        func(error) bool

	mu          sync.Mutex
	state       State
	counts      Counts
	openedAt    time.Time
	halfOpenUse int
}

// New creates a breaker with the given name: 5 consecutive failures open
// it, the cooldown is 30 seconds, and 2 probe successes close it again.
func New(name string, opts ...Option) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:             name,
		failureThreshold: 5,
		successThreshold: 2,
		cooldown:         30 * time.Second,
		maxHalfOpen:      1,
		state:            StateClosed,
	}
	for _, opt := range opts {
		opt(cb)
	}
	return cb
}

// Name returns the name given at construction.
func (cb *CircuitBreaker) Name() string { return cb.name }

// Execute runs fn if the breaker allows it and records the outcome.
// The error from fn is passed through unchanged.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := cb.allow(); err != nil {
		return err
	}

	err := fn(ctx)
	cb.observe(err)
	return err
}

// allow decides whether a call may proceed, moving an expired open state
// to half-open on the way.
func (cb *CircuitBreaker) allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return nil
	case StateOpen:
		if time.Since(cb.openedAt) < cb.cooldown {
			return ErrCircuitOpen
		}
		cb.transition(StateHalfOpen)
		cb.halfOpenUse = 1
		return nil
	case StateHalfOpen:
		if cb.halfOpenUse >= cb.maxHalfOpen {
			return ErrTooManyRequests
		}
		cb.halfOpenUse++
		return nil
	}
	return ErrCircuitOpen
}

// observe records a call outcome and applies state transitions.
func (cb *CircuitBreaker) observe(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	// The probe slot taken in allow() is free again.
	if cb.state == StateHalfOpen && cb.halfOpenUse > 0 {
		cb.halfOpenUse--
	}

	cb.counts.Requests++

	failed := err != nil
	if failed && cb.isFailure != nil {
		failed = cb.isFailure(err)
	}

	if !failed {
		cb.counts.TotalSuccesses++
		cb.counts.ConsecutiveSuccesses++
		cb.counts.ConsecutiveFailures = 0
		if cb.state == StateHalfOpen && cb.counts.ConsecutiveSuccesses >= cb.successThreshold {
			cb.transition(StateClosed)
		}
		return
	}

	cb.counts.TotalFailures++
	cb.counts.ConsecutiveFailures++
	cb.counts.ConsecutiveSuccesses = 0

	switch cb.state {
	case StateClosed:
		if cb.counts.ConsecutiveFailures >= cb.failureThreshold {
			cb.openedAt = time.Now()
			cb.transition(StateOpen)
		}
	case StateHalfOpen:
		// A failed probe reopens immediately.
		cb.openedAt = time.Now()
		cb.transition(StateOpen)
	}
}

// transition changes state and notifies the callback. Caller holds the lock.
func (cb *CircuitBreaker) transition(to State) {
	if cb.state == to {
		return
	}
	from := cb.state
	cb.state = to
	cb.counts.ConsecutiveSuccesses = 0
	cb.counts.ConsecutiveFailures = 0
	cb.halfOpenUse = 0

	if cb.onStateChange != nil {
		cb.onStateChange(cb.name, from, to)
	}
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Counts returns a snapshot of the outcome counters.
func (cb *CircuitBreaker) Counts() Counts {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.counts
}

// Reset closes the breaker and clears all counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.counts = Counts{}
	cb.halfOpenUse = 0
}
