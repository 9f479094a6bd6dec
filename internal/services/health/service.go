// Package health reports whether the API's backing services are reachable.
package health

import (
	"context"
	"sort"
	"time"
)

const defaultTimeout = 2 * time.Second

// Check probes one dependency.
type Check func(ctx context.Context) error

// Service encapsulates health-related checks.
type Service struct {
	checks  map[string]Check
	timeout time.Duration
}

// NewService constructs a new health service.
func NewService() *Service {
	return &Service{checks: map[string]Check{}, timeout: defaultTimeout}
}

// Register adds a named readiness check.
func (s *Service) Register(name string, check Check) {
	if check != nil {
		s.checks[name] = check
	}
}

// Status returns a simple liveness payload.
func (s *Service) Status() map[string]bool {
	return map[string]bool{"ok": true}
}

// Report is the outcome of every readiness check.
type Report struct {
	OK     bool              `json:"ok"`
	Checks map[string]string `json:"checks"`
}

// Ready runs every check with a shared deadline.
func (s *Service) Ready(ctx context.Context) Report {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	report := Report{OK: true, Checks: make(map[string]string, len(names))}
	for _, name := range names {
		if err := s.checks[name](ctx); err != nil {
			report.OK = false
			report.Checks[name] = err.Error()
			continue
		}
		report.Checks[name] = "ok"
	}
	return report
}
