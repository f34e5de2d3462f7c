package resilience

import (
	"context"
	"sort"
	"sync"
	"time"
)

type WrapperConfig struct {
	Breaker        BreakerConfig
	Retry          RetryConfig
	AttemptTimeout time.Duration
}

func DefaultWrapperConfig() WrapperConfig {
	return WrapperConfig{
		Breaker:        DefaultBreakerConfig(),
		Retry:          DefaultRetryConfig(),
		AttemptTimeout: 30 * time.Second,
	}
}

// Wrapper stacks a circuit breaker over retries over a per-attempt timeout.
// The breaker sits outermost so a tripped circuit fails fast without
// burning retry attempts.
type Wrapper struct {
	name    string
	breaker *CircuitBreaker
	retry   RetryConfig
	timeout time.Duration
}

func NewWrapper(name string, config WrapperConfig) *Wrapper {
	return &Wrapper{
		name:    name,
		breaker: NewCircuitBreaker(name, config.Breaker),
		retry:   config.Retry,
		timeout: config.AttemptTimeout,
	}
}

func (w *Wrapper) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return w.breaker.Execute(func() error {
		return Retry(ctx, w.retry, func(ctx context.Context) error {
			attemptCtx, cancel := context.WithTimeout(ctx, w.timeout)
			defer cancel()
			return fn(attemptCtx)
		})
	})
}

func (w *Wrapper) Breaker() *CircuitBreaker { return w.breaker }
func (w *Wrapper) Name() string             { return w.name }

// RetryPolicy describes a wrapper's retry settings for the status endpoint.
type RetryPolicy struct {
	MaxAttempts    int     `json:"max_attempts"`
	BaseDelayMs    int64   `json:"base_delay_ms"`
	MaxDelayMs     int64   `json:"max_delay_ms"`
	Multiplier     float64 `json:"multiplier"`
	JitterFraction float64 `json:"jitter_fraction"`
	AttemptTimeout string  `json:"attempt_timeout"`
}

func (w *Wrapper) RetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    w.retry.MaxAttempts,
		BaseDelayMs:    w.retry.BaseDelay.Milliseconds(),
		MaxDelayMs:     w.retry.MaxDelay.Milliseconds(),
		Multiplier:     w.retry.Multiplier,
		JitterFraction: w.retry.JitterFraction,
		AttemptTimeout: w.timeout.String(),
	}
}

// Registry holds one wrapper per upstream service.
type Registry struct {
	mu       sync.RWMutex
	wrappers map[string]*Wrapper
}

func NewRegistry() *Registry {
	return &Registry{wrappers: make(map[string]*Wrapper)}
}

// Register creates and stores a wrapper for the named service.
func (r *Registry) Register(name string, config WrapperConfig) *Wrapper {
	r.mu.Lock()
	defer r.mu.Unlock()
	w := NewWrapper(name, config)
	r.wrappers[name] = w
	return w
}

func (r *Registry) Get(name string) (*Wrapper, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.wrappers[name]
	return w, ok
}

// Stats returns breaker statistics for every registered service,
// sorted by name for stable JSON output.
func (r *Registry) Stats() []BreakerStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]BreakerStats, 0, len(r.wrappers))
	for _, w := range r.wrappers {
		out = append(out, w.breaker.Stats())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// RetryPolicies returns each service's retry settings.
func (r *Registry) RetryPolicies() map[string]RetryPolicy {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]RetryPolicy, len(r.wrappers))
	for name, w := range r.wrappers {
		out[name] = w.RetryPolicy()
	}
	return out
}

// ResetAll closes every breaker. Used by the admin reset endpoint.
func (r *Registry) ResetAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, w := range r.wrappers {
		w.breaker.Reset()
	}
}
