// Package health runs dependency checks for the liveness and readiness
// endpoints. Required components (the corpus index) make the service unready
// when down; optional ones (cache, analytics, metadata store) only degrade it.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

type Status string

const (
	StatusUp       Status = "up"
	StatusDown     Status = "down"
	StatusDegraded Status = "degraded"
)

// Check probes one dependency.
type Check func(ctx context.Context) error

type ComponentHealth struct {
	Status   Status `json:"status"`
	Required bool   `json:"required"`
	Message  string `json:"message,omitempty"`
	Latency  string `json:"latency"`
}

type Report struct {
	Status     Status                     `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
	Timestamp  string                     `json:"timestamp"`
}

type registered struct {
	check    Check
	required bool
}

type Checker struct {
	mu     sync.RWMutex
	checks map[string]registered
}

func NewChecker() *Checker {
	return &Checker{checks: make(map[string]registered)}
}

// Require registers a check whose failure makes the service down.
func (c *Checker) Require(name string, check Check) {
	c.register(name, check, true)
}

// Optional registers a check whose failure only degrades the service.
func (c *Checker) Optional(name string, check Check) {
	c.register(name, check, false)
}

func (c *Checker) register(name string, check Check, required bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = registered{check: check, required: required}
}

// Run executes all checks concurrently. The overall status is down if any
// required check failed, degraded if only optional ones did, and up otherwise.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.RLock()
	checks := make(map[string]registered, len(c.checks))
	for name, r := range c.checks {
		checks[name] = r
	}
	c.mu.RUnlock()

	report := Report{
		Status:     StatusUp,
		Components: make(map[string]ComponentHealth, len(checks)),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for name, r := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			err := r.check(ctx)
			ch := ComponentHealth{
				Status:   StatusUp,
				Required: r.required,
				Latency:  time.Since(start).Round(time.Microsecond).String(),
			}
			if err != nil {
				ch.Status = StatusDown
				ch.Message = err.Error()
			}
			mu.Lock()
			report.Components[name] = ch
			mu.Unlock()
		}()
	}
	wg.Wait()

	for _, ch := range report.Components {
		if ch.Status != StatusDown {
			continue
		}
		if ch.Required {
			report.Status = StatusDown
			break
		}
		report.Status = StatusDegraded
	}
	return report
}

func (c *Checker) LiveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
	}
}

// ReadyHandler answers 200 unless a required component is down.
func (c *Checker) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		report := c.Run(ctx)
		status := http.StatusOK
		if report.Status == StatusDown {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, report)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
