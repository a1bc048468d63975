package polling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// State is the position of a poll loop.
type State int

const (
	Polling State = iota
	Done
	TimedOut
	Failed
)

func (s State) String() string {
	switch s {
	case Polling:
		return "polling"
	case Done:
		return "done"
	case TimedOut:
		return "timed_out"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrTimedOut is returned by Run when the budget runs out while still Polling.
var ErrTimedOut = errors.New("polling timed out")

// Step performs one attempt. Returning Polling with a non-nil error marks a
// soft failure that is retried on the next tick; Failed must carry an error.
type Step func(ctx context.Context) (State, error)

// Poller drives a Step until it reports Done or Failed, or the budget runs out.
type Poller struct {
	config *Config
	logger *slog.Logger
}

// NewPoller creates a new poller instance
func NewPoller(cfg *Config, logger *slog.Logger) *Poller {
	defaults := NewConfig()
	if cfg == nil {
		cfg = defaults
	}
	c := *cfg
	if c.Interval <= 0 {
		c.Interval = defaults.Interval
	}
	if c.Timeout <= 0 {
		c.Timeout = defaults.Timeout
	}
	return &Poller{config: &c, logger: logger}
}

// Run calls step once immediately and then once per interval. Steps never
// overlap. The context passed to step expires at the loop deadline.
func (p *Poller) Run(ctx context.Context, step Step) error {
	start := time.Now()
	deadline := start.Add(p.config.Timeout)

	stepCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	var lastErr error
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		state, err := step(stepCtx)

		// Cancellation by the caller wins over whatever the step saw.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		switch state {
		case Done:
			p.logger.Debug("poll finished", "attempts", attempt, "elapsed", time.Since(start))
			return nil
		case Failed:
			if err == nil {
				err = errors.New("poll step failed")
			}
			return err
		case TimedOut:
			return p.timeout(start, attempt, err)
		}

		if err != nil {
			lastErr = err
			p.logger.Debug("poll attempt failed, will retry", "attempt", attempt, "error", err)
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return p.timeout(start, attempt, lastErr)
		}

		wait := p.config.Interval
		if wait > remaining {
			wait = remaining
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		if !time.Now().Before(deadline) {
			return p.timeout(start, attempt, lastErr)
		}
	}
}

func (p *Poller) timeout(start time.Time, attempts int, lastErr error) error {
	elapsed := time.Since(start).Round(time.Millisecond)
	p.logger.Warn("poll budget exhausted", "attempts", attempts, "elapsed", elapsed, "timeout", p.config.Timeout)
	if lastErr != nil {
		return fmt.Errorf("%w after %s (%d attempts), last error: %w", ErrTimedOut, elapsed, attempts, lastErr)
	}
	return fmt.Errorf("%w after %s (%d attempts)", ErrTimedOut, elapsed, attempts)
}
