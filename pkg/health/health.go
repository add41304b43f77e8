// Package health reduces the reachability of the relay's dependencies to a
// single healthy/unhealthy verdict.
package health

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"chat-relay/backend/pkg/logger"
	"chat-relay/backend/pkg/metrics"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// Status is the reachability of one dependency
type Status string

const (
	StatusUp   Status = "up"
	StatusDown Status = "down"
)

// Overall is the aggregated verdict
type Overall string

const (
	Healthy   Overall = "healthy"
	Unhealthy Overall = "unhealthy"
)

// Well-known component names
const (
	ComponentStore   = "store"
	ComponentChannel = "channel"
)

// Probe is a side-effect free round trip to a dependency
type Probe func(ctx context.Context) error

// Report is the result of one health check
type Report struct {
	Status   Overall           `json:"status"`
	Services map[string]Status `json:"services"`
}

// Healthy reports whether every service is up
func (r Report) Healthy() bool {
	return r.Status == Healthy
}

// Checker runs registered probes on demand. Results are never cached.
type Checker struct {
	mu      sync.RWMutex
	probes  map[string]Probe
	timeout time.Duration
	log     *logger.Logger
	metrics *metrics.Metrics
}

// NewChecker creates a checker; every probe runs under its own timeout
func NewChecker(timeout time.Duration, log *logger.Logger, m *metrics.Metrics) *Checker {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	if log == nil {
		log = logger.GetGlobal()
	}
	return &Checker{
		probes:  make(map[string]Probe),
		timeout: timeout,
		log:     log,
		metrics: m,
	}
}

// Register adds or replaces the probe for name
func (c *Checker) Register(name string, probe Probe) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.probes[name] = probe
}

// Names returns the registered component names in order
func (c *Checker) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := lo.Keys(c.probes)
	sort.Strings(names)
	return names
}

// Check probes every component concurrently and aggregates the results.
// A checker with no probes is healthy.
func (c *Checker) Check(ctx context.Context) Report {
	c.mu.RLock()
	probes := make(map[string]Probe, len(c.probes))
	for name, p := range c.probes {
		probes[name] = p
	}
	c.mu.RUnlock()

	var (
		mu       sync.Mutex
		g        errgroup.Group
		services = make(map[string]Status, len(probes))
	)
	// A failed probe is a down status, not a group error.
	for name, probe := range probes {
		g.Go(func() error {
			status := c.run(ctx, name, probe)

			mu.Lock()
			services[name] = status
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	report := Report{Status: Healthy, Services: services}
	for _, status := range services {
		if status != StatusUp {
			report.Status = Unhealthy
			break
		}
	}
	return report
}

func (c *Checker) run(ctx context.Context, name string, probe Probe) (status Status) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			c.log.Error("Health probe panicked", "component", name, "panic", fmt.Sprint(r))
			status = StatusDown
		}
		c.metrics.HealthProbe(ctx, name, string(status))
	}()

	if err := probe(ctx); err != nil {
		c.log.Warn("Health probe failed", "component", name, "error", err.Error())
		return StatusDown
	}
	return StatusUp
}
