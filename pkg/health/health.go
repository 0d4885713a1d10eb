// Package health provides a concurrent health-check framework. Components
// register Check functions, and the Checker runs them in parallel to produce
// an aggregate Report suitable for Kubernetes liveness and readiness probes.
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Status represents the health state of a component or the system overall.
type Status string

const (
	StatusUp       Status = "up"
	StatusDown     Status = "down"
	StatusDegraded Status = "degraded"
)

// Check is a function that probes a single dependency and returns its status.
type Check func(ctx context.Context) ComponentHealth

// ComponentHealth holds the result of a single component check. Optional
// components can only degrade the aggregate, never take it down.
type ComponentHealth struct {
	Status   Status `json:"status"`
	Message  string `json:"message,omitempty"`
	Latency  string `json:"latency,omitempty"`
	Optional bool   `json:"optional,omitempty"`
}

// Report is the aggregated result of all component checks.
type Report struct {
	Status     Status                     `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
	Timestamp  string                     `json:"timestamp"`
}

type registered struct {
	check    Check
	optional bool
}

// Checker manages registered health checks and runs them concurrently.
// Each check gets at most CheckTimeout of the caller's deadline.
type Checker struct {
	CheckTimeout time.Duration

	mu     sync.RWMutex
	checks map[string]registered
	logger *slog.Logger
}

func NewChecker() *Checker {
	return &Checker{
		CheckTimeout: 2 * time.Second,
		checks:       make(map[string]registered),
		logger:       slog.Default().With("component", "health"),
	}
}

// Register adds a named health check. A down result takes the whole
// system down.
func (c *Checker) Register(name string, check Check) {
	c.add(name, registered{check: check})
}

// RegisterOptional adds a check for a dependency the service can run
// without: a down result only degrades the aggregate status.
func (c *Checker) RegisterOptional(name string, check Check) {
	c.add(name, registered{check: check, optional: true})
}

func (c *Checker) add(name string, r registered) {
	c.mu.Lock()
	c.checks[name] = r
	c.mu.Unlock()
}

// Pinger adapts a dependency's ping method into a Check.
func Pinger(ping func(ctx context.Context) error) Check {
	return func(ctx context.Context) ComponentHealth {
		if err := ping(ctx); err != nil {
			return ComponentHealth{Status: StatusDown, Message: err.Error()}
		}
		return ComponentHealth{Status: StatusUp}
	}
}

// Run executes all registered checks concurrently. The aggregate is the
// worst effective status, where a down optional component counts as
// degraded.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.RLock()
	names := make([]string, 0, len(c.checks))
	regs := make([]registered, 0, len(c.checks))
	for name, r := range c.checks {
		names = append(names, name)
		regs = append(regs, r)
	}
	c.mu.RUnlock()

	results := make([]ComponentHealth, len(regs))
	var wg sync.WaitGroup
	for i, r := range regs {
		wg.Go(func() {
			results[i] = c.runOne(ctx, names[i], r)
		})
	}
	wg.Wait()

	report := Report{
		Status:     StatusUp,
		Components: make(map[string]ComponentHealth, len(results)),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
	for i, res := range results {
		report.Components[names[i]] = res
		if eff := effective(res); severity(eff) > severity(report.Status) {
			report.Status = eff
		}
		if res.Status != StatusUp {
			c.logger.Debug("component unhealthy", "name", names[i], "status", res.Status, "message", res.Message)
		}
	}
	return report
}

func (c *Checker) runOne(ctx context.Context, name string, r registered) (res ComponentHealth) {
	if c.CheckTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.CheckTimeout)
		defer cancel()
	}
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			c.logger.Error("health check panicked", "name", name, "panic", p)
			res = ComponentHealth{Status: StatusDown, Message: "check panicked"}
		}
		res.Latency = time.Since(start).Round(time.Millisecond).String()
		res.Optional = r.optional
	}()
	return r.check(ctx)
}

func effective(h ComponentHealth) Status {
	if h.Status == StatusDown && h.Optional {
		return StatusDegraded
	}
	return h.Status
}

func severity(s Status) int {
	switch s {
	case StatusUp:
		return 0
	case StatusDegraded:
		return 1
	default:
		return 2
	}
}

// LiveHandler answers liveness probes. It never runs checks: a process
// that can serve HTTP is alive.
func (c *Checker) LiveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
	}
}

// ReadyHandler answers readiness probes. Only a down system reports 503;
// degraded optional dependencies stay ready.
func (c *Checker) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		report := c.Run(ctx)
		code := http.StatusOK
		if report.Status == StatusDown {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, report)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
