package redis

import (
	"errors"
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	StateClosed   State = 0 // Normal operation — requests pass through
	StateOpen     State = 1 // Circuit tripped — requests rejected immediately
	StateHalfOpen State = 2 // Testing — one request allowed through to probe
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned when the circuit breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreaker guards Redis writes during an outage. After threshold
// consecutive failures it opens and rejects calls for resetTimeout, then
// allows one half-open probe; a successful probe closes it again.
type CircuitBreaker struct {
	mu           sync.Mutex
	state        State
	failures     int
	threshold    int
	resetTimeout time.Duration
	lastFailure  time.Time

	// OnStateChange, when set, is called on every state transition.
	OnStateChange func(from, to State)
}

// NewCircuitBreaker creates a circuit breaker that opens after threshold
// consecutive failures and probes again after resetTimeout.
func NewCircuitBreaker(threshold int, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		threshold:    threshold,
		resetTimeout: resetTimeout,
		state:        StateClosed,
	}
}

// Execute runs fn through the circuit breaker.
// Returns ErrCircuitOpen without calling fn while the breaker is open.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	cb.mu.Lock()

	if cb.state == StateOpen {
		if time.Since(cb.lastFailure) > cb.resetTimeout {
			cb.transition(StateHalfOpen)
		} else {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
	}
	// Half-open: the mutex admits one probe at a time.

	cb.mu.Unlock()

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.failures++
		cb.lastFailure = time.Now()

		if cb.state == StateHalfOpen || cb.failures >= cb.threshold {
			cb.transition(StateOpen)
		}
		return err
	}

	if cb.state == StateHalfOpen {
		cb.transition(StateClosed)
	}
	cb.failures = 0
	return nil
}

// CurrentState returns the current circuit breaker state.
func (cb *CircuitBreaker) CurrentState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Failures returns the current consecutive-failure count (for metrics).
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

func (cb *CircuitBreaker) transition(to State) {
	from := cb.state
	cb.state = to
	if to == StateClosed {
		cb.failures = 0
	}
	if cb.OnStateChange != nil {
		cb.OnStateChange(from, to)
	}
}
