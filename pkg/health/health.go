// Package health tracks service readiness and serves liveness and
// readiness probes.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// State constants for the readiness state machine.
const (
	stateStarting int32 = iota
	stateReady
	stateDraining
)

// DefaultPingTimeout bounds each dependency check.
const DefaultPingTimeout = 2 * time.Second

// Pinger is a dependency whose reachability gates readiness, such as
// *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Checker tracks the readiness state of the service and its dependencies.
// It is safe for concurrent use.
type Checker struct {
	state atomic.Int32

	mu          sync.RWMutex
	deps        map[string]Pinger
	pingTimeout time.Duration
}

// NewChecker creates a Checker in the Starting state.
func NewChecker() *Checker {
	return &Checker{deps: map[string]Pinger{}, pingTimeout: DefaultPingTimeout}
}

// AddDependency registers a dependency checked on every readiness probe.
func (c *Checker) AddDependency(name string, p Pinger) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deps[name] = p
}

// SetReady transitions to the Ready state.
func (c *Checker) SetReady() {
	c.state.Store(stateReady)
}

// SetDraining transitions to the Draining state.
func (c *Checker) SetDraining() {
	c.state.Store(stateDraining)
}

// IsReady returns true when the state is Ready.
func (c *Checker) IsReady() bool {
	return c.state.Load() == stateReady
}

// State returns the current state as a human-readable string.
func (c *Checker) State() string {
	switch c.state.Load() {
	case stateReady:
		return "ready"
	case stateDraining:
		return "draining"
	default:
		return "starting"
	}
}

// healthResponse is the JSON body returned by health endpoints.
type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Check pings every dependency and returns a per-dependency result, "ok" or
// the error text, and whether all of them succeeded.
func (c *Checker) Check(ctx context.Context) (map[string]string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	results := make(map[string]string, len(c.deps))
	healthy := true
	for name, p := range c.deps {
		pingCtx, cancel := context.WithTimeout(ctx, c.pingTimeout)
		err := p.PingContext(pingCtx)
		cancel()
		if err != nil {
			results[name] = err.Error()
			healthy = false
			continue
		}
		results[name] = "ok"
	}
	return results, healthy
}

// LivenessHandler returns an http.HandlerFunc that always responds 200 OK.
func (*Checker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
	}
}

// ReadinessHandler returns an http.HandlerFunc that responds 200 when ready
// and every dependency answers, and 503 otherwise.
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !c.IsReady() {
			writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: c.State()})
			return
		}
		checks, healthy := c.Check(r.Context())
		if !healthy {
			writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "degraded", Checks: checks})
			return
		}
		writeJSON(w, http.StatusOK, healthResponse{Status: c.State(), Checks: checks})
	}
}

func writeJSON(w http.ResponseWriter, code int, v healthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
