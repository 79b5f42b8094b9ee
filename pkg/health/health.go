// Package health runs named probes for the ops server's liveness and
// readiness endpoints.
package health

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lewisedginton/milordbot/pkg/logger"
)

// Probe is a single named health probe. A nil error means healthy.
type Probe interface {
	Name() string
	Probe(ctx context.Context) error
}

// ProbeFunc adapts a function into a Probe.
type ProbeFunc struct {
	name string
	fn   func(context.Context) error
}

// NewProbeFunc creates a ProbeFunc.
func NewProbeFunc(name string, fn func(context.Context) error) *ProbeFunc {
	return &ProbeFunc{name: name, fn: fn}
}

func (p *ProbeFunc) Name() string { return p.name }

func (p *ProbeFunc) Probe(ctx context.Context) error { return p.fn(ctx) }

// Result is the outcome of one probe run.
type Result struct {
	Name    string
	Healthy bool
	Error   string
	Latency time.Duration
}

// Report aggregates the results of a probe set.
type Report struct {
	Healthy bool
	Results []Result
}

// Failed lists the names of unhealthy probes, sorted.
func (r *Report) Failed() []string {
	var names []string
	for _, res := range r.Results {
		if !res.Healthy {
			names = append(names, res.Name)
		}
	}
	sort.Strings(names)
	return names
}

// Checker holds the liveness and readiness probe sets. A probe only
// reports unhealthy after failing threshold times in a row.
type Checker struct {
	mu        sync.Mutex
	liveness  []Probe
	readiness []Probe
	timeout   time.Duration
	threshold int
	failures  map[string]int
	logger    logger.Logger
}

// Option configures a Checker.
type Option func(*Checker)

// WithTimeout bounds each probe run. Default 5s.
func WithTimeout(d time.Duration) Option {
	return func(c *Checker) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithFailureThreshold sets the consecutive failure count before a probe
// turns unhealthy. Default 3.
func WithFailureThreshold(n int) Option {
	return func(c *Checker) {
		if n > 0 {
			c.threshold = n
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Checker) {
		c.logger = l
	}
}

// New creates a Checker.
func New(opts ...Option) *Checker {
	c := &Checker{
		timeout:   5 * time.Second,
		threshold: 3,
		failures:  make(map[string]int),
		logger:    logger.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AddLiveness registers a probe that decides whether the process should be restarted.
func (c *Checker) AddLiveness(p Probe) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.liveness = append(c.liveness, p)
}

// AddReadiness registers a probe that decides whether the bot can serve commands.
func (c *Checker) AddReadiness(p Probe) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readiness = append(c.readiness, p)
}

// Liveness runs the liveness probes.
func (c *Checker) Liveness(ctx context.Context) (*Report, error) {
	c.mu.Lock()
	probes := append([]Probe(nil), c.liveness...)
	c.mu.Unlock()
	return c.run(ctx, probes)
}

// Readiness runs the readiness probes.
func (c *Checker) Readiness(ctx context.Context) (*Report, error) {
	c.mu.Lock()
	probes := append([]Probe(nil), c.readiness...)
	c.mu.Unlock()
	return c.run(ctx, probes)
}

func (c *Checker) run(ctx context.Context, probes []Probe) (*Report, error) {
	report := &Report{Healthy: true, Results: make([]Result, len(probes))}
	if len(probes) == 0 {
		return report, nil
	}

	var g errgroup.Group
	for i, p := range probes {
		i, p := i, p
		g.Go(func() error {
			report.Results[i] = c.runOne(ctx, p)
			return nil
		})
	}
	_ = g.Wait()

	for _, res := range report.Results {
		if !res.Healthy {
			report.Healthy = false
		}
	}
	if !report.Healthy {
		return report, fmt.Errorf("health probes failed: %v", report.Failed())
	}
	return report, nil
}

func (c *Checker) runOne(parent context.Context, p Probe) Result {
	ctx, cancel := context.WithTimeout(parent, c.timeout)
	defer cancel()

	start := time.Now()
	err := p.Probe(ctx)
	res := Result{Name: p.Name(), Healthy: true, Latency: time.Since(start)}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err == nil {
		c.failures[res.Name] = 0
		return res
	}

	c.failures[res.Name]++
	n := c.failures[res.Name]
	fields := []logger.LogField{
		logger.StringField("probe", res.Name),
		logger.ErrorField(err),
		logger.IntField("failures", n),
	}
	if n < c.threshold {
		c.logger.Debug("Health probe failed below threshold", fields...)
		return res
	}

	res.Healthy = false
	res.Error = err.Error()
	c.logger.Warn("Health probe failed", fields...)
	return res
}
