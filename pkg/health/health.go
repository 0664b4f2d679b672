// Package health exposes liveness and readiness probes for the service.
//
// Registered checks run periodically on a single background goroutine; probe
// endpoints serve the most recent results so they stay cheap even when a
// check itself is slow.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// CheckFunc probes one component. A nil return means healthy.
type CheckFunc func(ctx context.Context) error

type kind int

const (
	liveness kind = iota
	readiness
)

type check struct {
	name    string
	kind    kind
	timeout time.Duration
	fn      CheckFunc
}

// Service runs health checks and serves probe endpoints.
type Service struct {
	mu      sync.Mutex
	checks  []check
	results map[string]error
	ready   bool
	cancel  context.CancelFunc
}

// New returns a Service with no checks registered. The service starts
// not-ready; call SetReady(true) once initialization completes.
func New() *Service {
	return &Service{results: make(map[string]error)}
}

// AddLivenessCheck registers a check that gates the /livez probe.
func (s *Service) AddLivenessCheck(name string, timeout time.Duration, fn CheckFunc) {
	s.add(check{name: name, kind: liveness, timeout: timeout, fn: fn})
}

// AddReadinessCheck registers a check that gates the /readyz probe.
func (s *Service) AddReadinessCheck(name string, timeout time.Duration, fn CheckFunc) {
	s.add(check{name: name, kind: readiness, timeout: timeout, fn: fn})
}

func (s *Service) add(c check) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks = append(s.checks, c)
}

// Start launches the background runner. Checks execute once immediately and
// then every interval until Stop is called or ctx is cancelled.
func (s *Service) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		s.runAll(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runAll(ctx)
			}
		}
	}()
}

// Stop cancels the background runner. Safe to call more than once.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Service) runAll(ctx context.Context) {
	s.mu.Lock()
	checks := make([]check, len(s.checks))
	copy(checks, s.checks)
	s.mu.Unlock()

	for _, c := range checks {
		checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
		err := c.fn(checkCtx)
		cancel()

		s.mu.Lock()
		s.results[c.name] = err
		s.mu.Unlock()
	}
}

// SetReady flips the manual readiness gate. Flip to false during graceful
// shutdown so load balancers stop routing new traffic.
func (s *Service) SetReady(ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = ready
}

// IsReady reports whether the service is marked ready and every readiness
// check passed on its last run.
func (s *Service) IsReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		return false
	}
	for _, c := range s.checks {
		if c.kind == readiness && s.results[c.name] != nil {
			return false
		}
	}
	return true
}

func (s *Service) failures(k kind) map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]string)
	for _, c := range s.checks {
		if c.kind != k {
			continue
		}
		if err := s.results[c.name]; err != nil {
			out[c.name] = err.Error()
		}
	}
	return out
}

// LiveEndpoint serves the /livez probe: 200 when all liveness checks pass,
// 503 with per-check errors otherwise.
func (s *Service) LiveEndpoint(w http.ResponseWriter, r *http.Request) {
	writeProbe(w, s.failures(liveness))
}

// ReadyEndpoint serves the /readyz probe: 200 when the service is marked
// ready and all readiness checks pass, 503 with details otherwise.
func (s *Service) ReadyEndpoint(w http.ResponseWriter, r *http.Request) {
	fails := s.failures(readiness)

	s.mu.Lock()
	ready := s.ready
	s.mu.Unlock()
	if !ready {
		fails["_readiness"] = "service is not ready"
	}
	writeProbe(w, fails)
}

type probeResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func writeProbe(w http.ResponseWriter, fails map[string]string) {
	resp := probeResponse{Status: "ok"}
	code := http.StatusOK
	if len(fails) > 0 {
		resp.Status = "unhealthy"
		resp.Checks = fails
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}
