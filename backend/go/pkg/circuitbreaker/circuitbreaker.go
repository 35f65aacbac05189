package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

// State represents the state of the circuit breaker.
type State int

const (
	// Closed lets every request through and counts consecutive failures.
	Closed State = iota
	// Open rejects requests until the cool-down elapses.
	Open
	// HalfOpen admits trial requests to probe whether the dependency recovered.
	HalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case Closed:
		return "Closed"
	case Open:
		return "Open"
	case HalfOpen:
		return "Half-Open"
	default:
		return "Unknown"
	}
}

// ErrCircuitOpen is returned when the circuit breaker is in the Open state.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreaker is the interface for the circuit breaker pattern.
type CircuitBreaker interface {
	// Execute runs req unless the breaker is open.
	Execute(req func() (any, error)) (any, error)
	// State returns the current state of the circuit breaker.
	State() State
	// Name identifies the protected dependency.
	Name() string
}

// Settings configures a breaker.
type Settings struct {
	Name             string
	FailureThreshold uint32        // consecutive failures that trip the circuit
	SuccessThreshold uint32        // consecutive half-open successes that close it again
	Timeout          time.Duration // how long the circuit stays open
	// OnStateChange is called synchronously, outside the breaker lock.
	OnStateChange func(name string, from, to State)
	// Now overrides the clock. Used by tests.
	Now func() time.Time
	// IsFailure decides whether err counts against the breaker. Defaults to err != nil.
	IsFailure func(err error) bool
}

type breaker struct {
	settings Settings

	mu                   sync.Mutex
	state                State
	consecutiveFailures  uint32
	consecutiveSuccesses uint32
	openedAt             time.Time
}

// New creates a breaker with the given thresholds.
func New(failureThreshold, successThreshold uint32, timeout time.Duration) CircuitBreaker {
	return NewWithSettings(Settings{
		FailureThreshold: failureThreshold,
		SuccessThreshold: successThreshold,
		Timeout:          timeout,
	})
}

// NewWithSettings creates a breaker from Settings, filling in zero values.
func NewWithSettings(s Settings) CircuitBreaker {
	if s.FailureThreshold == 0 {
		s.FailureThreshold = 5
	}
	if s.SuccessThreshold == 0 {
		s.SuccessThreshold = 1
	}
	if s.Timeout <= 0 {
		s.Timeout = 30 * time.Second
	}
	if s.Now == nil {
		s.Now = time.Now
	}
	if s.IsFailure == nil {
		s.IsFailure = func(err error) bool { return err != nil }
	}
	return &breaker{settings: s, state: Closed}
}

func (cb *breaker) Name() string { return cb.settings.Name }

// State returns the current state, applying the open to half-open transition lazily.
func (cb *breaker) State() State {
	cb.mu.Lock()
	from, to := cb.advance()
	state := cb.state
	cb.mu.Unlock()
	cb.notify(from, to)
	return state
}

// Execute wraps the execution of a function with the circuit breaker logic.
func (cb *breaker) Execute(req func() (any, error)) (any, error) {
	cb.mu.Lock()
	from, to := cb.advance()
	if cb.state == Open {
		cb.mu.Unlock()
		cb.notify(from, to)
		return nil, ErrCircuitOpen
	}
	cb.mu.Unlock()
	cb.notify(from, to)

	res, err := req()

	cb.mu.Lock()
	if cb.settings.IsFailure(err) {
		from, to = cb.onFailure()
	} else {
		from, to = cb.onSuccess()
	}
	cb.mu.Unlock()
	cb.notify(from, to)

	if err != nil {
		return nil, err
	}
	return res, nil
}

// advance moves Open to HalfOpen once the timeout has passed. Caller holds mu.
func (cb *breaker) advance() (State, State) {
	if cb.state == Open && cb.settings.Now().Sub(cb.openedAt) >= cb.settings.Timeout {
		return cb.setState(HalfOpen)
	}
	return cb.state, cb.state
}

func (cb *breaker) onSuccess() (State, State) {
	switch cb.state {
	case HalfOpen:
		cb.consecutiveSuccesses++
		if cb.consecutiveSuccesses >= cb.settings.SuccessThreshold {
			return cb.setState(Closed)
		}
	case Closed:
		cb.consecutiveFailures = 0
	}
	return cb.state, cb.state
}

func (cb *breaker) onFailure() (State, State) {
	switch cb.state {
	case HalfOpen:
		return cb.setState(Open)
	case Closed:
		cb.consecutiveFailures++
		if cb.consecutiveFailures >= cb.settings.FailureThreshold {
			return cb.setState(Open)
		}
	}
	return cb.state, cb.state
}

func (cb *breaker) setState(to State) (State, State) {
	from := cb.state
	cb.state = to
	cb.consecutiveFailures = 0
	cb.consecutiveSuccesses = 0
	if to == Open {
		cb.openedAt = cb.settings.Now()
	}
	return from, to
}

func (cb *breaker) notify(from, to State) {
	if from != to && cb.settings.OnStateChange != nil {
		cb.settings.OnStateChange(cb.settings.Name, from, to)
	}
}
