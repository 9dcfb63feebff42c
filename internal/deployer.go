package internal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/securemint/lp-bundler/internal/bundle"
	"github.com/securemint/lp-bundler/internal/clients"
	"github.com/securemint/lp-bundler/internal/submitter"
)

// DefaultMaxRetries is the number of bundle attempts before falling back to the public path
const DefaultMaxRetries = 3

// BundleSubmitter sends a transaction set to the relay
type BundleSubmitter interface {
	SubmitBundle(ctx context.Context, set bundle.SignedTransactionSet) (clients.BundleHandle, error)
}

// ConfirmationPoller waits for a submitted bundle
type ConfirmationPoller interface {
	WaitForConfirmation(ctx context.Context, handle clients.BundleHandle, timeout time.Duration) (bool, error)
}

// FallbackSubmitter sends a transaction set through a public node
type FallbackSubmitter interface {
	SubmitAndConfirm(ctx context.Context, set bundle.SignedTransactionSet) (*submitter.FallbackRecord, error)
}

// BundleSimulator simulates a transaction set without submitting it
type BundleSimulator interface {
	Simulate(ctx context.Context, set bundle.SignedTransactionSet) (*submitter.SimulationReport, error)
}

// DeployerConfig holds the orchestration settings
type DeployerConfig struct {
	MaxRetries     int
	ConfirmTimeout time.Duration
	BackoffUnit    time.Duration
	MaxBackoff     time.Duration // zero means uncapped
	DryRun         bool
}

// Deployer drives the submit and poll cycle, retries with exponential backoff,
// and falls back to public submission once retries are exhausted
type Deployer struct {
	config    DeployerConfig
	submitter BundleSubmitter
	poller    ConfirmationPoller
	fallback  FallbackSubmitter
	simulator BundleSimulator
	now       func() time.Time
	sleep     submitter.SleepFunc
	logger    *zap.Logger
}

// DeployerOption customizes a Deployer
type DeployerOption func(*Deployer)

// WithDeployerClock replaces the time source and the backoff sleep
func WithDeployerClock(now func() time.Time, sleep submitter.SleepFunc) DeployerOption {
	return func(d *Deployer) {
		d.now = now
		d.sleep = sleep
	}
}

// NewDeployer creates a new deployer. simulator may be nil unless config.DryRun is set.
func NewDeployer(
	logger *zap.Logger,
	config DeployerConfig,
	bundles BundleSubmitter,
	poller ConfirmationPoller,
	fallback FallbackSubmitter,
	simulator BundleSimulator,
	opts ...DeployerOption,
) (*Deployer, error) {
	if config.MaxRetries < 1 {
		return nil, fmt.Errorf("max retries must be at least 1, got %d", config.MaxRetries)
	}
	if config.DryRun && simulator == nil {
		return nil, fmt.Errorf("dry run requires a simulator")
	}
	if !config.DryRun && (bundles == nil || poller == nil || fallback == nil) {
		return nil, fmt.Errorf("submitter, poller and fallback are required")
	}
	if config.ConfirmTimeout <= 0 {
		config.ConfirmTimeout = submitter.DefaultConfirmTimeout
	}
	if config.BackoffUnit <= 0 {
		config.BackoffUnit = DefaultBackoffUnit
	}

	d := &Deployer{
		config:    config,
		submitter: bundles,
		poller:    poller,
		fallback:  fallback,
		simulator: simulator,
		now:       time.Now,
		sleep:     submitter.SleepContext,
		logger:    logger.With(zap.String("component", "Deployer")),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Deploy lands set through the relay or, failing that, through the public node.
// The result is never nil. A cancelled ctx aborts without entering the fallback.
func (d *Deployer) Deploy(ctx context.Context, set bundle.SignedTransactionSet) (*DeploymentResult, error) {
	result := &DeploymentResult{Fingerprint: Fingerprint(set)}
	logger := d.logger.With(zap.String("fingerprint", result.Fingerprint))

	if set.Len() == 0 {
		return result, fmt.Errorf("nothing to deploy")
	}

	if d.config.DryRun {
		return d.simulate(ctx, logger, set, result)
	}

	logger.Info("Starting deployment",
		zap.Int("transactions", set.Len()),
		zap.Int("maxRetries", d.config.MaxRetries),
		zap.Duration("confirmTimeout", d.config.ConfirmTimeout))

	for n := 1; n <= d.config.MaxRetries; n++ {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("deployment aborted before attempt %d: %w", n, err)
		}

		attempt := d.attempt(ctx, logger, n, set)
		if attempt.Outcome == AttemptConfirmed {
			result.Attempts = append(result.Attempts, attempt)
			result.Outcome = OutcomeBundleConfirmed
			result.Handle = attempt.Handle
			logger.Info("Deployment confirmed through relay",
				zap.Int("attempts", n),
				zap.String("bundleID", attempt.Handle.ID))
			return result, nil
		}
		if err := ctx.Err(); err != nil {
			result.Attempts = append(result.Attempts, attempt)
			return result, fmt.Errorf("deployment aborted during attempt %d: %w", n, err)
		}

		if n < d.config.MaxRetries {
			attempt.Backoff = BackoffDelay(n, d.config.BackoffUnit, d.config.MaxBackoff)
		}
		result.Attempts = append(result.Attempts, attempt)

		logger.Warn("Bundle attempt failed",
			zap.Int("attempt", n),
			zap.Stringer("outcome", attempt.Outcome),
			zap.Duration("backoff", attempt.Backoff),
			zap.Error(attempt.Err))

		if attempt.Backoff > 0 {
			if err := d.sleep(ctx, attempt.Backoff); err != nil {
				return result, fmt.Errorf("deployment aborted during backoff: %w", err)
			}
		}
	}

	return d.fallbackDeploy(ctx, logger, set, result)
}

func (d *Deployer) attempt(ctx context.Context, logger *zap.Logger, n int, set bundle.SignedTransactionSet) DeploymentAttempt {
	start := d.now()
	attempt := DeploymentAttempt{Number: n}

	logger.Info("Bundle attempt", zap.Int("attempt", n), zap.Int("of", d.config.MaxRetries))

	handle, err := d.submitter.SubmitBundle(ctx, set)
	if err != nil {
		attempt.Outcome = AttemptSubmitFailed
		attempt.Err = err
		attempt.Elapsed = d.now().Sub(start)
		return attempt
	}
	attempt.Handle = &handle

	confirmed, err := d.poller.WaitForConfirmation(ctx, handle, d.config.ConfirmTimeout)
	switch {
	case confirmed:
		attempt.Outcome = AttemptConfirmed
	case err == nil:
		attempt.Outcome = AttemptTimedOut
		attempt.Err = fmt.Errorf("bundle %s not confirmed within %s", handle.ID, d.config.ConfirmTimeout)
	default:
		attempt.Outcome = AttemptBundleFailed
		attempt.Err = err
		var failed *submitter.BundleFailedError
		if !errors.As(err, &failed) {
			logger.Debug("Poll ended with a non-bundle error", zap.Error(err))
		}
	}
	attempt.Elapsed = d.now().Sub(start)
	return attempt
}

func (d *Deployer) fallbackDeploy(ctx context.Context, logger *zap.Logger, set bundle.SignedTransactionSet, result *DeploymentResult) (*DeploymentResult, error) {
	logger.Warn("Bundle retries exhausted, submitting through the public node. Transactions will be visible in the public mempool",
		zap.Int("attempts", len(result.Attempts)),
		zap.Bool("privacyLost", true))

	record, err := d.fallback.SubmitAndConfirm(ctx, set)
	result.Fallback = record
	result.PrivacyLost = record != nil && len(record.Signatures) > 0
	if err != nil {
		logger.Error("Public fallback failed", zap.Error(err))
		return result, &submitter.FallbackExhaustedError{Record: record, Cause: err}
	}

	result.Outcome = OutcomeFallbackConfirmed
	result.PrivacyLost = true
	logger.Warn("Deployment confirmed through public fallback",
		zap.String("signature", record.Signature().String()),
		zap.Bool("privacyLost", true))
	return result, nil
}

func (d *Deployer) simulate(ctx context.Context, logger *zap.Logger, set bundle.SignedTransactionSet, result *DeploymentResult) (*DeploymentResult, error) {
	logger.Info("Dry run, simulating without submitting", zap.Int("transactions", set.Len()))

	report, err := d.simulator.Simulate(ctx, set)
	if err != nil {
		return result, fmt.Errorf("dry run failed: %w", err)
	}
	result.Outcome = OutcomeSimulated
	result.Simulation = report

	logger.Info("Simulation complete", zap.Bool("passed", report.Passed()))
	return result, nil
}
