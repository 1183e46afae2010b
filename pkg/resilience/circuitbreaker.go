// Package resilience holds the fault-tolerance helpers shared by the search
// service: a circuit breaker around optional backends such as the Redis query
// cache, retry with exponential backoff for startup connections, and a
// deadline wrapper for query execution.
package resilience

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by Execute while the breaker rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
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

// CircuitBreakerConfig controls when the breaker trips and how it recovers.
// Zero fields take the defaults: 5 failures, 30s cool-down, 1 probe.
type CircuitBreakerConfig struct {
	FailureThreshold    int
	ResetTimeout        time.Duration
	HalfOpenMaxRequests int
	// OnStateChange, when set, is called with the breaker's lock released
	// after every transition.
	OnStateChange func(name string, from, to State)
}

// CircuitBreaker trips open after FailureThreshold consecutive failures,
// rejects calls for ResetTimeout, then lets HalfOpenMaxRequests probes
// through. A successful probe closes it again.
type CircuitBreaker struct {
	name   string
	cfg    CircuitBreakerConfig
	logger *slog.Logger
	now    func() time.Time

	mu          sync.Mutex
	state       State
	failures    int
	openedAt    time.Time
	probesInUse int
}

func NewCircuitBreaker(name string, cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMaxRequests <= 0 {
		cfg.HalfOpenMaxRequests = 1
	}
	return &CircuitBreaker{
		name:   name,
		cfg:    cfg,
		logger: slog.Default().With("component", "circuit-breaker", "name", name),
		now:    time.Now,
		state:  StateClosed,
	}
}

// Execute runs fn unless the breaker is open, and records its outcome.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.admit(); err != nil {
		return err
	}
	err := fn()
	cb.record(err)
	return err
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// Reset closes the breaker and clears its failure count.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	from := cb.state
	cb.state = StateClosed
	cb.failures = 0
	cb.probesInUse = 0
	cb.mu.Unlock()
	cb.logger.Info("circuit manually reset")
	cb.notify(from, StateClosed)
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	switch cb.state {
	case StateOpen:
		wait := cb.cfg.ResetTimeout - cb.now().Sub(cb.openedAt)
		if wait > 0 {
			cb.mu.Unlock()
			return fmt.Errorf("%w: %s (retry after %v)", ErrCircuitOpen, cb.name, wait.Round(time.Millisecond))
		}
		cb.state = StateHalfOpen
		cb.probesInUse = 1
		cb.mu.Unlock()
		cb.logger.Info("circuit half-open", "after", cb.cfg.ResetTimeout)
		cb.notify(StateOpen, StateHalfOpen)
		return nil
	case StateHalfOpen:
		defer cb.mu.Unlock()
		if cb.probesInUse >= cb.cfg.HalfOpenMaxRequests {
			return fmt.Errorf("%w: %s (probe in flight)", ErrCircuitOpen, cb.name)
		}
		cb.probesInUse++
		return nil
	default:
		cb.mu.Unlock()
		return nil
	}
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	from := cb.state
	if err == nil {
		cb.failures = 0
		if cb.state == StateHalfOpen {
			cb.state = StateClosed
			cb.probesInUse = 0
		}
	} else {
		cb.failures++
		if cb.state == StateHalfOpen || cb.failures >= cb.cfg.FailureThreshold {
			cb.state = StateOpen
			cb.openedAt = cb.now()
			cb.probesInUse = 0
		}
	}
	to, failures := cb.state, cb.failures
	cb.mu.Unlock()

	if from == to {
		return
	}
	switch to {
	case StateOpen:
		cb.logger.Warn("circuit opened", "consecutive_failures", failures, "error", err)
	case StateClosed:
		cb.logger.Info("circuit closed")
	}
	cb.notify(from, to)
}

func (cb *CircuitBreaker) notify(from, to State) {
	if cb.cfg.OnStateChange != nil && from != to {
		cb.cfg.OnStateChange(cb.name, from, to)
	}
}
