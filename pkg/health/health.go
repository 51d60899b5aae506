// Package health serves liveness, readiness and dependency probes.
package health

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

type CheckResult struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

type Response struct {
	Status     Status                 `json:"status"`
	Version    string                 `json:"version,omitempty"`
	Uptime     string                 `json:"uptime,omitempty"`
	Checks     map[string]CheckResult `json:"checks,omitempty"`
	ReportedAt time.Time              `json:"reported_at"`
}

// Pinger is satisfied by database.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Check probes one dependency. A failing critical check makes the service unhealthy;
// any other failing check only degrades it.
type Check struct {
	Name     string
	Critical bool
	Probe    func(ctx context.Context) error
}

func DatabaseCheck(db Pinger) Check {
	return Check{Name: "database", Critical: true, Probe: db.PingContext}
}

type Checker struct {
	checks  []Check
	version string
	started time.Time
	timeout time.Duration
	ready   atomic.Bool
}

func NewChecker(version string, checks ...Check) *Checker {
	return &Checker{
		checks:  checks,
		version: version,
		started: time.Now(),
		timeout: 5 * time.Second,
	}
}

// SetReady flips readiness once startup finishes, and back during shutdown.
func (c *Checker) SetReady(ready bool) {
	c.ready.Store(ready)
}

func (c *Checker) IsReady() bool {
	return c.ready.Load()
}

// RegisterRoutes registers GET /api/v1/health, /live and /ready.
func (c *Checker) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/v1/health")
	g.GET("", c.HealthHandler)
	g.GET("/live", c.LivenessHandler)
	g.GET("/ready", c.ReadinessHandler)
}

// LivenessHandler answers 200 while the process can serve requests at all.
func (c *Checker) LivenessHandler(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, c.report(StatusHealthy, nil))
}

// ReadinessHandler answers 503 until SetReady(true), then runs the checks.
func (c *Checker) ReadinessHandler(ctx echo.Context) error {
	if !c.IsReady() {
		return ctx.JSON(http.StatusServiceUnavailable, c.report(StatusUnhealthy, map[string]CheckResult{
			"startup": {Status: StatusUnhealthy, Message: "service is not ready"},
		}))
	}
	return c.HealthHandler(ctx)
}

// HealthHandler runs every check and answers 503 when a critical one fails.
func (c *Checker) HealthHandler(ctx echo.Context) error {
	results := make(map[string]CheckResult, len(c.checks))
	overall := StatusHealthy
	for _, check := range c.checks {
		res := c.probe(ctx.Request().Context(), check)
		results[check.Name] = res
		overall = worst(overall, res.Status)
	}

	code := http.StatusOK
	if overall == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	return ctx.JSON(code, c.report(overall, results))
}

func (c *Checker) report(status Status, checks map[string]CheckResult) Response {
	return Response{
		Status:     status,
		Version:    c.version,
		Uptime:     time.Since(c.started).Round(time.Second).String(),
		Checks:     checks,
		ReportedAt: time.Now().UTC(),
	}
}

func (c *Checker) probe(ctx context.Context, check Check) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	err := check.Probe(ctx)
	res := CheckResult{Status: StatusHealthy, Latency: time.Since(start).String()}
	if err != nil {
		res.Message = err.Error()
		res.Status = StatusDegraded
		if check.Critical {
			res.Status = StatusUnhealthy
		}
	}
	return res
}

func worst(a, b Status) Status {
	rank := map[Status]int{StatusHealthy: 0, StatusDegraded: 1, StatusUnhealthy: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}
