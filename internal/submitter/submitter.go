package submitter

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/securemint/lp-bundler/internal/clients"
)

// Relay is the block engine surface used to submit and track bundles
type Relay interface {
	URL() string
	SendBundle(ctx context.Context, encodedTxs []string) clients.SendBundleResult
	GetBundleStatus(ctx context.Context, bundleID string) (clients.BundleStatusReport, error)
}

// PublicNode is the general purpose node surface used by the public fallback
type PublicNode interface {
	SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
	SignatureStatus(ctx context.Context, sig solana.Signature) (*rpc.SignatureStatusesResult, error)
}

// SimulationNode runs transactions against current chain state
type SimulationNode interface {
	Simulate(ctx context.Context, tx *solana.Transaction) (*rpc.SimulateTransactionResult, error)
}

// SleepFunc blocks for d or until ctx is done, whichever comes first
type SleepFunc func(ctx context.Context, d time.Duration) error

// SleepContext is the real SleepFunc
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
