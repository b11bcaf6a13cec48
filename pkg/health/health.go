// Package health serves liveness and readiness probes backed by periodic
// background checks.
//
// A check flips to failing only after FailureThreshold consecutive errors
// and back to passing after one success, so a single slow ping does not take
// the pod out of rotation.
package health

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/jx"
	"golang.org/x/sync/errgroup"
)

// Probe selects the endpoint a check reports on.
type Probe uint8

const (
	Liveness Probe = iota
	Readiness
)

// String implements fmt.Stringer.
func (p Probe) String() string {
	if p == Readiness {
		return "readiness"
	}
	return "liveness"
}

// CheckFunc reports a component as healthy by returning nil.
type CheckFunc func(ctx context.Context) error

// Check describes one registered check.
type Check struct {
	Name  string
	Probe Probe
	Func  CheckFunc
	// Timeout bounds one run. Defaults to one second.
	Timeout time.Duration
	// FailureThreshold is the number of consecutive errors before the check
	// reports failing. Defaults to 3.
	FailureThreshold int
}

type state struct {
	Check

	passing atomic.Bool
	lastErr atomic.Pointer[string]

	// Owned by the goroutine running the check.
	fails int
}

func (s *state) run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	if err := s.Func(ctx); err != nil {
		msg := err.Error()
		s.lastErr.Store(&msg)
		s.fails++
		if s.fails >= s.FailureThreshold {
			s.passing.Store(false)
		}
		return
	}
	s.lastErr.Store(nil)
	s.fails = 0
	s.passing.Store(true)
}

func (s *state) failure() (string, bool) {
	if s.passing.Load() {
		return "", false
	}
	if msg := s.lastErr.Load(); msg != nil {
		return *msg, true
	}
	return "check is failing", true
}

// Monitor owns the registered checks and the manual readiness flag.
type Monitor struct {
	ready atomic.Bool

	mu     sync.RWMutex
	checks []*state
}

// New returns a monitor that is not ready until SetReady(true).
func New() *Monitor {
	return &Monitor{}
}

// Add registers c. Checks start out passing.
func (m *Monitor) Add(c Check) {
	if c.Timeout <= 0 {
		c.Timeout = time.Second
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 3
	}
	s := &state{Check: c}
	s.passing.Store(true)

	m.mu.Lock()
	m.checks = append(m.checks, s)
	m.mu.Unlock()
}

// Run executes every check immediately and then every interval until ctx
// is done.
func (m *Monitor) Run(ctx context.Context, interval time.Duration) error {
	m.mu.RLock()
	checks := slices.Clone(m.checks)
	m.mu.RUnlock()

	g, ctx := errgroup.WithContext(ctx)
	for _, s := range checks {
		g.Go(func() error {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				s.run(ctx)
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
				}
			}
		})
	}
	return g.Wait()
}

// SetReady toggles the manual readiness flag. It is cleared during shutdown
// so load balancers stop routing before the server drains.
func (m *Monitor) SetReady(ready bool) {
	m.ready.Store(ready)
}

// Failures returns the failing checks of probe by name.
func (m *Monitor) Failures(probe Probe) map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]string)
	for _, s := range m.checks {
		if s.Probe != probe {
			continue
		}
		if msg, failing := s.failure(); failing {
			out[s.Name] = msg
		}
	}
	if probe == Readiness && !m.ready.Load() {
		out["_readiness"] = "service is not ready"
	}
	return out
}

// Ready reports whether the service is marked ready and every readiness
// check passes.
func (m *Monitor) Ready() bool {
	return len(m.Failures(Readiness)) == 0
}

// Handler serves the status of probe as JSON: 200 {"status":"ok"} or 503
// {"status":"unhealthy","checks":{...}}.
func (m *Monitor) Handler(probe Probe) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		failures := m.Failures(probe)

		var e jx.Encoder
		e.ObjStart()
		e.FieldStart("status")
		status := http.StatusOK
		if len(failures) == 0 {
			e.Str("ok")
		} else {
			status = http.StatusServiceUnavailable
			e.Str("unhealthy")
			e.FieldStart("checks")
			e.ObjStart()
			names := make([]string, 0, len(failures))
			for name := range failures {
				names = append(names, name)
			}
			slices.Sort(names)
			for _, name := range names {
				e.FieldStart(name)
				e.Str(failures[name])
			}
			e.ObjEnd()
		}
		e.ObjEnd()

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(status)
		_, _ = w.Write(e.Bytes())
	})
}
