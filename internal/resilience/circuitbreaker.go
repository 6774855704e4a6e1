// Package resilience keeps generation going when a backend misbehaves.
//
// A [CircuitBreaker] guards one backend: after enough consecutive failures it
// opens and rejects calls outright, then lets a few probe calls through once
// the reset timeout has passed. A [FallbackGroup] puts a breaker in front of
// each backend of a chain and walks the chain in order, skipping open ones.
// [TTSFallback] and [VCFallback] specialise the group for the provider
// interfaces.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [CircuitBreaker.Execute] while the breaker
// rejects calls.
var ErrCircuitOpen = errors.New("resilience: circuit open")

// State is the operating mode of a [CircuitBreaker].
type State int

const (
	// StateClosed forwards every call.
	StateClosed State = iota

	// StateOpen rejects calls with [ErrCircuitOpen] until the reset timeout
	// has passed since the last failure.
	StateOpen

	// StateHalfOpen lets up to HalfOpenMax probe calls through. Enough
	// successes close the breaker; a single failure opens it again.
	StateHalfOpen
)

var stateNames = [...]string{
	StateClosed:   "closed",
	StateOpen:     "open",
	StateHalfOpen: "half-open",
}

// String returns the name reported in logs and in the status endpoint.
func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// CircuitBreakerConfig tunes a [CircuitBreaker]. Zero values take the
// defaults noted per field.
type CircuitBreakerConfig struct {
	// Name identifies the guarded backend in logs and callbacks.
	Name string

	// MaxFailures is the number of consecutive failures that opens the
	// breaker. Default 5.
	MaxFailures int

	// ResetTimeout is how long an open breaker waits before probing.
	// Default 30s.
	ResetTimeout time.Duration

	// HalfOpenMax bounds the probe calls of the half-open state and is the
	// number of successful probes needed to close. Default 3.
	HalfOpenMax int

	// OnStateChange is called after each transition, outside the lock.
	OnStateChange func(name string, from, to State)
}

// CircuitBreaker guards calls to a single backend.
type CircuitBreaker struct {
	name         string
	maxFailures  int
	resetTimeout time.Duration
	halfOpenMax  int
	onChange     func(name string, from, to State)

	mu          sync.Mutex
	state       State
	failures    int
	openedAt    time.Time
	probes      int
	probeErrors int
}

type transition struct{ from, to State }

// NewCircuitBreaker returns a closed breaker configured by cfg.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:         cfg.Name,
		maxFailures:  cfg.MaxFailures,
		resetTimeout: cfg.ResetTimeout,
		halfOpenMax:  cfg.HalfOpenMax,
		onChange:     cfg.OnStateChange,
	}
	if cb.maxFailures <= 0 {
		cb.maxFailures = 5
	}
	if cb.resetTimeout <= 0 {
		cb.resetTimeout = 30 * time.Second
	}
	if cb.halfOpenMax <= 0 {
		cb.halfOpenMax = 3
	}
	return cb
}

// Execute calls fn unless the breaker rejects the call. Errors wrapping
// context.Canceled or context.DeadlineExceeded are passed through without
// counting against the backend.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	probe, moved, err := cb.admit()
	cb.emit(moved)
	if err != nil {
		return err
	}

	err = fn()
	cb.emit(cb.settle(probe, err))
	return err
}

// admit decides whether a call may proceed and whether it counts as a
// half-open probe.
func (cb *CircuitBreaker) admit() (probe bool, moved []transition, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		if time.Since(cb.openedAt) < cb.resetTimeout {
			return false, nil, ErrCircuitOpen
		}
		moved = cb.moveTo(StateHalfOpen, moved)
		cb.probes, cb.probeErrors = 0, 0
		slog.Info("resilience: probing backend", "backend", cb.name)
	}
	if cb.state == StateHalfOpen {
		if cb.probes >= cb.halfOpenMax {
			return false, moved, ErrCircuitOpen
		}
		cb.probes++
		return true, moved, nil
	}
	return false, moved, nil
}

// settle books the outcome of an admitted call.
func (cb *CircuitBreaker) settle(probe bool, err error) []transition {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	stillProbing := probe && cb.state == StateHalfOpen
	switch {
	case isContextErr(err):
		if stillProbing {
			cb.probes--
		}
		return nil

	case err != nil && stillProbing:
		cb.probeErrors++
		cb.failures = cb.maxFailures
		cb.openedAt = time.Now()
		slog.Warn("resilience: probe failed, backend stays unavailable",
			"backend", cb.name, "err", err)
		return cb.moveTo(StateOpen, nil)

	case err != nil:
		cb.failures++
		cb.openedAt = time.Now()
		if cb.state == StateClosed && cb.failures >= cb.maxFailures {
			slog.Warn("resilience: backend marked unavailable",
				"backend", cb.name, "consecutive_failures", cb.failures, "err", err)
			return cb.moveTo(StateOpen, nil)
		}
		return nil

	case stillProbing:
		if cb.probes-cb.probeErrors < cb.halfOpenMax {
			return nil
		}
		cb.failures, cb.probes, cb.probeErrors = 0, 0, 0
		slog.Info("resilience: backend recovered", "backend", cb.name)
		return cb.moveTo(StateClosed, nil)

	default:
		cb.failures = 0
		return nil
	}
}

// moveTo changes state and records the transition. Must be called with cb.mu
// held.
func (cb *CircuitBreaker) moveTo(to State, moved []transition) []transition {
	if cb.state == to {
		return moved
	}
	moved = append(moved, transition{cb.state, to})
	cb.state = to
	return moved
}

func (cb *CircuitBreaker) emit(moved []transition) {
	if cb.onChange == nil {
		return
	}
	for _, t := range moved {
		cb.onChange(cb.name, t.from, t.to)
	}
}

// State returns the current state. An open breaker whose reset timeout has
// passed reports [StateHalfOpen]; the transition itself happens on the next
// call.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen && time.Since(cb.openedAt) >= cb.resetTimeout {
		return StateHalfOpen
	}
	return cb.state
}

// Reset closes the breaker and clears its counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	moved := cb.moveTo(StateClosed, nil)
	cb.failures, cb.probes, cb.probeErrors = 0, 0, 0
	cb.mu.Unlock()

	cb.emit(moved)
	slog.Info("resilience: breaker reset", "backend", cb.name)
}
