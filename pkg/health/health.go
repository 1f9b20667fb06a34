// Package health implements liveness and readiness probes with the counting
// rules of container health checks.
//
// A registered check runs on its own ticker. It turns unhealthy after
// failureThreshold consecutive counted failures and healthy again after
// successThreshold consecutive passes. Failures inside the start period are
// recorded but not counted, so a dependency that is still booting cannot
// flip the gateway to unready. WaitHealthy applies the same rules to a
// blocking start-up wait.
package health

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/jx"
)

// CheckFunc returns nil when the checked component is healthy.
type CheckFunc func(ctx context.Context) error

// CheckOption customises a single registered check.
type CheckOption func(c *check)

// WithFailureThreshold sets how many consecutive counted failures mark the
// check unhealthy. Values below 1 are ignored.
func WithFailureThreshold(n int) CheckOption {
	return func(c *check) {
		if n > 0 {
			c.tally.failureThreshold = n
		}
	}
}

// WithSuccessThreshold sets how many consecutive passes mark the check
// healthy again. Values below 1 are ignored.
func WithSuccessThreshold(n int) CheckOption {
	return func(c *check) {
		if n > 0 {
			c.tally.successThreshold = n
		}
	}
}

// WithStartPeriod sets the grace window, measured from Start, during which
// failures are not counted.
func WithStartPeriod(d time.Duration) CheckOption {
	return func(c *check) {
		c.tally.startPeriod = d
	}
}

// tally counts consecutive outcomes. It is not safe for concurrent use.
type tally struct {
	failureThreshold int
	successThreshold int
	startPeriod      time.Duration
	started          time.Time

	fails  int
	passes int
}

// observe records one outcome seen at now and reports whether a failure
// counted toward the failure threshold.
func (t *tally) observe(err error, now time.Time) bool {
	if err == nil {
		t.fails = 0
		t.passes++
		return false
	}
	t.passes = 0
	if t.startPeriod > 0 && !t.started.IsZero() && now.Sub(t.started) < t.startPeriod {
		return false
	}
	t.fails++
	return true
}

func (t *tally) failing() bool { return t.fails >= t.failureThreshold }
func (t *tally) passing() bool { return t.passes >= t.successThreshold }

// check is one registered probe. run is only called from the check's own
// goroutine; state and lastErr are read by HTTP handlers.
type check struct {
	name    string
	timeout time.Duration
	fn      CheckFunc
	now     func() time.Time
	tally   tally

	state   atomic.Bool
	lastErr atomic.Pointer[error]
}

func newCheck(name string, timeout time.Duration, fn CheckFunc, opts []CheckOption) *check {
	c := &check{
		name:    name,
		timeout: timeout,
		fn:      fn,
		now:     time.Now,
		tally:   tally{failureThreshold: 3, successThreshold: 1},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.state.Store(true)
	return c
}

func (c *check) ok() bool { return c.state.Load() }

func (c *check) lastError() error {
	if p := c.lastErr.Load(); p != nil {
		return *p
	}
	return nil
}

func (c *check) run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.fn(ctx)
	c.lastErr.Store(&err)
	c.tally.observe(err, c.now())
	switch {
	case err != nil && c.tally.failing():
		c.state.Store(false)
	case err == nil && c.tally.passing():
		c.state.Store(true)
	}
}

func (c *check) loop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		c.run(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Health serves /livez and /readyz from the last results of its checks.
type Health struct {
	marked atomic.Bool

	mu        sync.RWMutex
	liveness  []*check
	readiness []*check
	cancel    context.CancelFunc
}

// New returns a Health that is not ready until SetReady(true).
func New() *Health {
	return &Health{}
}

// AddLivenessCheck registers a check of the process itself.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, fn CheckFunc, opts ...CheckOption) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.liveness = append(h.liveness, newCheck(name, timeout, fn, opts))
}

// AddReadinessCheck registers a check of a dependency the gateway needs to
// serve traffic.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, fn CheckFunc, opts ...CheckOption) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readiness = append(h.readiness, newCheck(name, timeout, fn, opts))
}

// Start runs every registered check each interval until Stop or ctx is done.
// Start periods are measured from this call.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	h.cancel = cancel
	checks := append(append([]*check(nil), h.liveness...), h.readiness...)
	h.mu.Unlock()

	for _, c := range checks {
		c.tally.started = c.now()
		go c.loop(ctx, interval)
	}
}

// Stop cancels the check goroutines. It is idempotent.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

// SetReady marks the gateway ready after start-up and unready while draining.
func (h *Health) SetReady(ready bool) {
	h.marked.Store(ready)
}

// IsReady reports whether the gateway is marked ready and every readiness
// check passes.
func (h *Health) IsReady() bool {
	return h.marked.Load() && len(failures(h.snapshot(false))) == 0
}

func (h *Health) snapshot(live bool) []*check {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if live {
		return append([]*check(nil), h.liveness...)
	}
	return append([]*check(nil), h.readiness...)
}

// LiveEndpoint serves /livez: 200 {"status":"ok"} when every liveness check
// passes, 503 with the failing checks otherwise.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	writeStatus(w, failures(h.snapshot(true)))
}

// ReadyEndpoint serves /readyz: 200 when the gateway is marked ready and
// every readiness check passes, 503 with details otherwise.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	failed := failures(h.snapshot(false))
	if !h.marked.Load() {
		failed = append(failed, failure{name: "_readiness", reason: "service is not ready"})
	}
	writeStatus(w, failed)
}

type failure struct {
	name   string
	reason string
}

func failures(checks []*check) []failure {
	var out []failure
	for _, c := range checks {
		if c.ok() {
			continue
		}
		reason := "check is unhealthy"
		if err := c.lastError(); err != nil {
			reason = err.Error()
		}
		out = append(out, failure{name: c.name, reason: reason})
	}
	return out
}

func writeStatus(w http.ResponseWriter, failed []failure) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	status := http.StatusOK
	e.Obj(func(e *jx.Encoder) {
		if len(failed) == 0 {
			e.Field("status", func(e *jx.Encoder) { e.Str("ok") })
			return
		}
		status = http.StatusServiceUnavailable
		e.Field("status", func(e *jx.Encoder) { e.Str("unhealthy") })
		e.Field("checks", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				for _, f := range failed {
					e.Field(f.name, func(e *jx.Encoder) { e.Str(f.reason) })
				}
			})
		})
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
