package submitter

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/securemint/lp-bundler/internal/clients"
)

// DefaultPollInterval is the fixed delay between status queries
const DefaultPollInterval = 2 * time.Second

// timing drives every wait loop in this package
type timing struct {
	interval time.Duration
	now      func() time.Time
	sleep    SleepFunc
}

func newTiming(opts []PollerOption) timing {
	t := timing{interval: DefaultPollInterval, now: time.Now, sleep: SleepContext}
	for _, opt := range opts {
		opt(&t)
	}
	return t
}

// PollerOption customizes the wait loop of a Poller or PublicFallback
type PollerOption func(*timing)

// WithPollInterval sets the delay between status queries
func WithPollInterval(d time.Duration) PollerOption {
	return func(t *timing) { t.interval = d }
}

// WithClock replaces the time source and the sleep function
func WithClock(now func() time.Time, sleep SleepFunc) PollerOption {
	return func(t *timing) {
		t.now = now
		t.sleep = sleep
	}
}

// Poller waits for a bundle to reach a terminal status
type Poller struct {
	timing
	relay  Relay
	logger *zap.Logger
}

// NewPoller creates a new confirmation poller
func NewPoller(logger *zap.Logger, relay Relay, opts ...PollerOption) *Poller {
	return &Poller{
		timing: newTiming(opts),
		relay:  relay,
		logger: logger.With(zap.String("component", "Poller")),
	}
}

// WaitForConfirmation polls until the bundle is confirmed or finalized (true), the timeout
// elapses (false), or the relay reports a failure (*BundleFailedError).
// Status query errors are absorbed. Cancelling ctx stops the loop with ctx's error.
func (p *Poller) WaitForConfirmation(ctx context.Context, handle clients.BundleHandle, timeout time.Duration) (bool, error) {
	if handle.Relay != p.relay.URL() {
		return false, fmt.Errorf("%w: handle from %s, polling %s", ErrForeignHandle, handle.Relay, p.relay.URL())
	}

	deadline := p.now().Add(timeout)
	polls := 0
	last := clients.BundleStatusUnknown

	// pctx bounds in-flight status queries by the same budget as the loop
	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for p.now().Before(deadline) && pctx.Err() == nil {
		polls++
		report, err := p.relay.GetBundleStatus(pctx, handle.ID)
		if err != nil {
			if ctx.Err() != nil {
				return false, fmt.Errorf("stopped waiting for bundle %s: %w", handle.ID, ctx.Err())
			}
			p.logger.Debug("Status query failed, polling again",
				zap.String("bundleID", handle.ID),
				zap.Int("poll", polls),
				zap.Error(err))
		} else {
			last = report.Status
			switch {
			case report.Status.IsSuccess():
				p.logger.Info("Bundle landed",
					zap.String("bundleID", handle.ID),
					zap.Stringer("status", report.Status),
					zap.Uint64("slot", report.Slot),
					zap.Int("polls", polls))
				return true, nil
			case report.Status == clients.BundleStatusFailed:
				return false, &BundleFailedError{BundleID: handle.ID, Reason: report.Reason}
			}
		}

		if err := p.sleep(pctx, p.interval); err != nil {
			if ctx.Err() != nil {
				return false, fmt.Errorf("stopped waiting for bundle %s: %w", handle.ID, ctx.Err())
			}
			break
		}
	}

	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("stopped waiting for bundle %s: %w", handle.ID, err)
	}

	p.logger.Warn("Bundle not confirmed before timeout",
		zap.String("bundleID", handle.ID),
		zap.Duration("timeout", timeout),
		zap.Stringer("lastStatus", last),
		zap.Int("polls", polls))

	return false, nil
}
