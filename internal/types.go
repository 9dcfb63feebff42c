package internal

import (
	"time"

	"github.com/securemint/lp-bundler/internal/clients"
	"github.com/securemint/lp-bundler/internal/submitter"
)

// AttemptOutcome is how a single submit and poll cycle ended
type AttemptOutcome int

const (
	AttemptSubmitFailed AttemptOutcome = iota
	AttemptBundleFailed
	AttemptTimedOut
	AttemptConfirmed
)

func (o AttemptOutcome) String() string {
	switch o {
	case AttemptSubmitFailed:
		return "submit_failed"
	case AttemptBundleFailed:
		return "bundle_failed"
	case AttemptTimedOut:
		return "timed_out"
	case AttemptConfirmed:
		return "confirmed"
	default:
		return "unknown"
	}
}

// DeploymentAttempt records one submit and poll cycle
type DeploymentAttempt struct {
	Number  int                   // 1-based
	Handle  *clients.BundleHandle // nil when submission failed
	Outcome AttemptOutcome
	Err     error
	Elapsed time.Duration
	Backoff time.Duration // delay waited after this attempt, zero for the last one
}

// Outcome is the terminal state of a deployment
type Outcome int

const (
	// OutcomeBundleConfirmed means the bundle landed through the relay
	OutcomeBundleConfirmed Outcome = iota
	// OutcomeFallbackConfirmed means every transaction confirmed through the public node
	OutcomeFallbackConfirmed
	// OutcomeSimulated means nothing was submitted
	OutcomeSimulated
)

func (o Outcome) String() string {
	switch o {
	case OutcomeBundleConfirmed:
		return "SUCCESS"
	case OutcomeFallbackConfirmed:
		return "FALLBACK_SUCCESS"
	case OutcomeSimulated:
		return "SIMULATED"
	default:
		return "UNKNOWN"
	}
}

// DeploymentResult is what a deployment produced
type DeploymentResult struct {
	Outcome     Outcome
	Fingerprint string
	Handle      *clients.BundleHandle     // set for OutcomeBundleConfirmed
	Fallback    *submitter.FallbackRecord // set once the public path was entered
	Attempts    []DeploymentAttempt
	PrivacyLost bool // transactions were exposed to the public mempool
	Simulation  *submitter.SimulationReport
}
