package resilience

import (
	"sync"
	"time"

	"github.com/pkg/errors"
)

// ErrCircuitOpen is returned when the breaker rejects a call.
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
		return "half_open"
	default:
		return "unknown"
	}
}

type BreakerConfig struct {
	// FailureThreshold opens the circuit after this many consecutive failures.
	FailureThreshold int
	// RecoveryTimeout is how long to wait before probing in half-open.
	RecoveryTimeout time.Duration
	// HalfOpenMaxCalls limits concurrent probe calls in half-open.
	HalfOpenMaxCalls int
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		RecoveryTimeout:  60 * time.Second,
		HalfOpenMaxCalls: 3,
	}
}

// BreakerStats is a point-in-time snapshot for the status endpoint.
type BreakerStats struct {
	Name            string    `json:"name"`
	State           string    `json:"state"`
	TotalRequests   int64     `json:"total_requests"`
	SuccessRequests int64     `json:"successful_requests"`
	FailedRequests  int64     `json:"failed_requests"`
	SuccessRate     float64   `json:"success_rate"`
	LastFailureTime time.Time `json:"last_failure_time,omitempty"`
	LastStateChange time.Time `json:"last_state_change"`
}

// CircuitBreaker guards calls to a single upstream model service.
type CircuitBreaker struct {
	name   string
	config BreakerConfig

	mu                  sync.Mutex
	state               State
	consecutiveFailures int
	halfOpenCalls       int
	totalRequests       int64
	successRequests     int64
	failedRequests      int64
	lastFailureTime     time.Time
	lastStateChange     time.Time

	onStateChange func(name string, from, to State)
}

func NewCircuitBreaker(name string, config BreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{
		name:            name,
		config:          config,
		state:           StateClosed,
		lastStateChange: time.Now(),
	}
}

// OnStateChange registers a hook invoked after each transition. Must be
// set before the breaker is shared.
func (cb *CircuitBreaker) OnStateChange(fn func(name string, from, to State)) {
	cb.onStateChange = fn
}

// Execute runs fn under the breaker's state machine.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.allow(); err != nil {
		return err
	}
	err := fn()
	cb.record(err)
	return err
}

func (cb *CircuitBreaker) allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.totalRequests++

	switch cb.state {
	case StateClosed:
		return nil
	case StateOpen:
		if time.Since(cb.lastFailureTime) >= cb.config.RecoveryTimeout {
			cb.transitionTo(StateHalfOpen)
			cb.halfOpenCalls = 1
			return nil
		}
		cb.failedRequests++
		return errors.Wrap(ErrCircuitOpen, cb.name)
	case StateHalfOpen:
		if cb.halfOpenCalls < cb.config.HalfOpenMaxCalls {
			cb.halfOpenCalls++
			return nil
		}
		cb.failedRequests++
		return errors.Wrap(ErrCircuitOpen, cb.name)
	}
	return errors.Wrap(ErrCircuitOpen, cb.name)
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err == nil {
		cb.successRequests++
		cb.consecutiveFailures = 0
		if cb.state == StateHalfOpen {
			cb.transitionTo(StateClosed)
		}
		return
	}

	cb.failedRequests++
	cb.consecutiveFailures++
	cb.lastFailureTime = time.Now()

	switch cb.state {
	case StateClosed:
		if cb.consecutiveFailures >= cb.config.FailureThreshold {
			cb.transitionTo(StateOpen)
		}
	case StateHalfOpen:
		cb.transitionTo(StateOpen)
	}
}

// transitionTo must be called with the lock held.
func (cb *CircuitBreaker) transitionTo(newState State) {
	old := cb.state
	if old == newState {
		return
	}
	cb.state = newState
	cb.lastStateChange = time.Now()
	cb.halfOpenCalls = 0
	if newState == StateClosed {
		cb.consecutiveFailures = 0
	}
	if cb.onStateChange != nil {
		go cb.onStateChange(cb.name, old, newState)
	}
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) Stats() BreakerStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	rate := 0.0
	if cb.totalRequests > 0 {
		rate = float64(cb.successRequests) / float64(cb.totalRequests)
	}
	return BreakerStats{
		Name:            cb.name,
		State:           cb.state.String(),
		TotalRequests:   cb.totalRequests,
		SuccessRequests: cb.successRequests,
		FailedRequests:  cb.failedRequests,
		SuccessRate:     rate,
		LastFailureTime: cb.lastFailureTime,
		LastStateChange: cb.lastStateChange,
	}
}

// Reset returns the breaker to closed with counters intact.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.transitionTo(StateClosed)
	cb.consecutiveFailures = 0
}
