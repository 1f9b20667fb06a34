package health

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
)

// ErrProbeExhausted is returned by WaitHealthy when the check kept failing
// after the start period for the configured number of retries.
var ErrProbeExhausted = errors.New("probe retries exhausted")

// ProbeConfig mirrors a container health check: the check runs every
// Interval, each attempt is bounded by Timeout, failures inside StartPeriod do
// not count, and Retries consecutive counted failures give up.
type ProbeConfig struct {
	Interval    time.Duration `default:"5s"  usage:"Delay between probe attempts"`
	Timeout     time.Duration `default:"3s"  usage:"Per-attempt probe timeout"`
	StartPeriod time.Duration `default:"10s" usage:"Grace period during which failures are not counted" flag:"start-period"`
	Retries     int           `default:"5"   usage:"Consecutive counted failures before giving up"`
}

func (c ProbeConfig) withDefaults() ProbeConfig {
	if c.Interval <= 0 {
		c.Interval = 5 * time.Second
	}
	if c.Timeout <= 0 {
		c.Timeout = 3 * time.Second
	}
	if c.Retries <= 0 {
		c.Retries = 5
	}
	if c.StartPeriod < 0 {
		c.StartPeriod = 0
	}
	return c
}

// ProbeOption customises WaitHealthy.
type ProbeOption func(*probeState)

// OnProbeFailure registers a callback invoked after every failed attempt.
// counted reports whether the failure counted toward Retries.
func OnProbeFailure(fn func(attempt int, counted bool, err error)) ProbeOption {
	return func(s *probeState) {
		s.onFailure = fn
	}
}

type probeState struct {
	onFailure func(attempt int, counted bool, err error)
	now       func() time.Time
}

// WaitHealthy blocks until check succeeds once. It returns an error wrapping
// both ErrProbeExhausted and the last check error when retries run out, or the
// context error when ctx is cancelled first.
func WaitHealthy(ctx context.Context, check CheckFunc, cfg ProbeConfig, opts ...ProbeOption) error {
	cfg = cfg.withDefaults()
	state := probeState{now: time.Now}
	for _, opt := range opts {
		opt(&state)
	}

	t := tally{
		failureThreshold: cfg.Retries,
		successThreshold: 1,
		startPeriod:      cfg.StartPeriod,
		started:          state.now(),
	}
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		err := check(attemptCtx)
		cancel()
		if err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		counted := t.observe(err, state.now())
		if state.onFailure != nil {
			state.onFailure(attempt, counted, err)
		}
		if t.failing() {
			return fmt.Errorf("%w after %d attempts: %w", ErrProbeExhausted, attempt, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
