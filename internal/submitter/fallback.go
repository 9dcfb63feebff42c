package submitter

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/securemint/lp-bundler/internal/bundle"
)

// DefaultConfirmTimeout bounds the wait for each publicly submitted transaction
const DefaultConfirmTimeout = 60 * time.Second

// FallbackRecord is the outcome of submitting a bundle's transactions publicly
type FallbackRecord struct {
	Signatures []solana.Signature         // one per transaction sent, in bundle order
	Confirmed  int                        // number of transactions confirmed
	Status     rpc.ConfirmationStatusType // status of the last confirmed transaction
}

// Signature returns the signature of the first transaction sent
func (r *FallbackRecord) Signature() solana.Signature {
	if r == nil || len(r.Signatures) == 0 {
		return solana.Signature{}
	}
	return r.Signatures[0]
}

// AllConfirmed reports whether every transaction of a set of size n confirmed
func (r *FallbackRecord) AllConfirmed(n int) bool {
	return r != nil && r.Confirmed == n && n > 0
}

// PublicFallback submits the same signed transactions through a standard node,
// without a bundle wrapper. The transactions become publicly visible.
type PublicFallback struct {
	timing
	node    PublicNode
	timeout time.Duration
	logger  *zap.Logger
}

// NewPublicFallback creates a fallback submitter waiting up to confirmTimeout per transaction
func NewPublicFallback(logger *zap.Logger, node PublicNode, confirmTimeout time.Duration, opts ...PollerOption) *PublicFallback {
	if confirmTimeout <= 0 {
		confirmTimeout = DefaultConfirmTimeout
	}
	return &PublicFallback{
		timing:  newTiming(opts),
		node:    node,
		timeout: confirmTimeout,
		logger:  logger.With(zap.String("component", "PublicFallback")),
	}
}

// SubmitAndConfirm sends each transaction in order and waits for it to confirm before the next.
// The returned record is never nil, even on error.
func (f *PublicFallback) SubmitAndConfirm(ctx context.Context, set bundle.SignedTransactionSet) (*FallbackRecord, error) {
	record := &FallbackRecord{}

	txs, err := set.Decode()
	if err != nil {
		return record, err
	}

	for i, tx := range txs {
		f.logger.Warn("Submitting transaction publicly",
			zap.Int("index", i),
			zap.Int("total", len(txs)))

		sig, err := f.node.SendTransaction(ctx, tx)
		if err != nil {
			return record, fmt.Errorf("public submission of transaction %d failed: %w", i, err)
		}
		record.Signatures = append(record.Signatures, sig)

		status, err := f.confirm(ctx, sig)
		if err != nil {
			return record, fmt.Errorf("transaction %d (%s): %w", i, sig, err)
		}
		record.Confirmed++
		record.Status = status

		f.logger.Info("Public transaction confirmed",
			zap.String("signature", sig.String()),
			zap.String("status", string(status)))
	}

	return record, nil
}

func (f *PublicFallback) confirm(ctx context.Context, sig solana.Signature) (rpc.ConfirmationStatusType, error) {
	deadline := f.now().Add(f.timeout)

	cctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	for f.now().Before(deadline) && cctx.Err() == nil {
		status, err := f.node.SignatureStatus(cctx, sig)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			f.logger.Debug("Signature status query failed", zap.Error(err))
		case status == nil:
			// not seen yet
		case status.Err != nil:
			return "", fmt.Errorf("transaction failed on chain: %v", status.Err)
		case status.ConfirmationStatus == rpc.ConfirmationStatusConfirmed,
			status.ConfirmationStatus == rpc.ConfirmationStatusFinalized:
			return status.ConfirmationStatus, nil
		}

		if err := f.sleep(cctx, f.interval); err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			break
		}
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("not confirmed within %s", f.timeout)
}
