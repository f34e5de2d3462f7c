package health

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
)

// Probe checks a single dependency.
type Probe interface {
	Name() string
	Check(ctx context.Context) error
}

// ProbeFunc adapts a function to the Probe interface.
type ProbeFunc struct {
	ProbeName string
	Fn        func(ctx context.Context) error
}

func (p ProbeFunc) Name() string                    { return p.ProbeName }
func (p ProbeFunc) Check(ctx context.Context) error { return p.Fn(ctx) }

// ServiceStatus is the per-dependency result in a health snapshot.
type ServiceStatus struct {
	Name      string `json:"name"`
	Healthy   bool   `json:"healthy"`
	Error     string `json:"error,omitempty"`
	LatencyMs int64  `json:"latency_ms"`
}

// Snapshot summarizes system health for /health and the WebSocket feed.
type Snapshot struct {
	Status    string          `json:"status"`
	Services  []ServiceStatus `json:"services"`
	Timestamp time.Time       `json:"timestamp"`
}

const probeTimeout = 5 * time.Second

// Checker runs registered probes concurrently and aggregates failures.
type Checker struct {
	probes []Probe
	logger *zap.Logger
}

func NewChecker(logger *zap.Logger, probes ...Probe) *Checker {
	return &Checker{probes: probes, logger: logger}
}

// Register adds a probe. Not safe to call after the checker is in use.
func (c *Checker) Register(p Probe) {
	c.probes = append(c.probes, p)
}

// Check runs all probes and returns the combined error, if any.
func (c *Checker) Check(ctx context.Context) error {
	snap := c.Snapshot(ctx)
	var result *multierror.Error
	for _, s := range snap.Services {
		if !s.Healthy {
			result = multierror.Append(result, &probeError{name: s.Name, message: s.Error})
		}
	}
	return result.ErrorOrNil()
}

type probeError struct {
	name    string
	message string
}

func (e *probeError) Error() string { return e.name + ": " + e.message }

// Snapshot runs all probes in parallel with a shared timeout.
func (c *Checker) Snapshot(ctx context.Context) Snapshot {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	statuses := make([]ServiceStatus, len(c.probes))
	var wg sync.WaitGroup
	for i, probe := range c.probes {
		wg.Add(1)
		go func(i int, probe Probe) {
			defer wg.Done()
			start := time.Now()
			err := probe.Check(ctx)
			status := ServiceStatus{
				Name:      probe.Name(),
				Healthy:   err == nil,
				LatencyMs: time.Since(start).Milliseconds(),
			}
			if err != nil {
				status.Error = err.Error()
				c.logger.Warn("health probe failed",
					zap.String("probe", probe.Name()),
					zap.Error(err))
			}
			statuses[i] = status
		}(i, probe)
	}
	wg.Wait()

	overall := "healthy"
	unhealthy := 0
	for _, s := range statuses {
		if !s.Healthy {
			unhealthy++
		}
	}
	switch {
	case unhealthy == 0:
	case unhealthy < len(statuses):
		overall = "degraded"
	default:
		overall = "unhealthy"
	}

	return Snapshot{
		Status:    overall,
		Services:  statuses,
		Timestamp: time.Now(),
	}
}
