package bundle

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

// InstructionBuilder supplies the liquidity instructions (pool creation + add liquidity).
// Building them is left to the AMM SDK integration.
type InstructionBuilder interface {
	BuildLiquidityInstructions(ctx context.Context, payer solana.PublicKey) ([]solana.Instruction, error)
}

// BlockhashSource returns a recent blockhash to anchor new transactions
type BlockhashSource interface {
	LatestBlockhash(ctx context.Context) (solana.Hash, error)
}

// Builder assembles and signs the transactions of a bundle, always including exactly one tip
type Builder struct {
	payer       solana.PrivateKey
	blockhashes BlockhashSource
	tips        *TipSelector
	tipLamports uint64
	logger      *zap.Logger
}

// NewBuilder creates a new bundle builder
func NewBuilder(logger *zap.Logger, payer solana.PrivateKey, blockhashes BlockhashSource, tips *TipSelector, tipLamports uint64) (*Builder, error) {
	if tipLamports == 0 {
		return nil, fmt.Errorf("tip amount must be greater than zero")
	}
	return &Builder{
		payer:       payer,
		blockhashes: blockhashes,
		tips:        tips,
		tipLamports: tipLamports,
		logger:      logger.With(zap.String("component", "BundleBuilder")),
	}, nil
}

// Build fetches liquidity instructions from source and returns them as a single tipped transaction
func (b *Builder) Build(ctx context.Context, source InstructionBuilder) (SignedTransactionSet, error) {
	ixs, err := source.BuildLiquidityInstructions(ctx, b.payer.PublicKey())
	if err != nil {
		return SignedTransactionSet{}, fmt.Errorf("failed to build liquidity instructions: %w", err)
	}
	return b.BuildCombined(ctx, ixs)
}

// BuildCombined signs one transaction holding the liquidity instructions followed by the tip transfer
func (b *Builder) BuildCombined(ctx context.Context, lpInstructions []solana.Instruction) (SignedTransactionSet, error) {
	tipIx, tipAccount, err := b.tips.TransferInstruction(b.payer.PublicKey(), b.tipLamports)
	if err != nil {
		return SignedTransactionSet{}, err
	}

	ixs := make([]solana.Instruction, 0, len(lpInstructions)+1)
	ixs = append(ixs, lpInstructions...)
	ixs = append(ixs, tipIx)

	tx, err := b.signed(ctx, ixs)
	if err != nil {
		return SignedTransactionSet{}, err
	}

	b.logger.Debug("Built combined bundle transaction",
		zap.Int("lpInstructions", len(lpInstructions)),
		zap.String("tipAccount", tipAccount.String()),
		zap.Uint64("tipLamports", b.tipLamports))

	return NewSignedTransactionSetFromTransactions(tx)
}

// AppendTipTransaction adds a standalone signed tip transaction as the last entry of set.
// The set must not already pay a tip.
func (b *Builder) AppendTipTransaction(ctx context.Context, set SignedTransactionSet) (SignedTransactionSet, error) {
	existing, err := CountTipTransfers(set, b.tips.Accounts())
	if err != nil {
		return SignedTransactionSet{}, err
	}
	if existing > 0 {
		return SignedTransactionSet{}, fmt.Errorf("bundle already contains %d tip transfer(s)", existing)
	}
	if set.Len() >= MaxBundleSize {
		return SignedTransactionSet{}, fmt.Errorf("no room for a tip transaction: bundle already has %d transactions", set.Len())
	}

	tipIx, tipAccount, err := b.tips.TransferInstruction(b.payer.PublicKey(), b.tipLamports)
	if err != nil {
		return SignedTransactionSet{}, err
	}

	tx, err := b.signed(ctx, []solana.Instruction{tipIx})
	if err != nil {
		return SignedTransactionSet{}, err
	}

	raw, err := tx.MarshalBinary()
	if err != nil {
		return SignedTransactionSet{}, fmt.Errorf("failed to serialize tip transaction: %w", err)
	}

	b.logger.Debug("Appended tip transaction",
		zap.String("tipAccount", tipAccount.String()),
		zap.Uint64("tipLamports", b.tipLamports),
		zap.Int("bundleSize", set.Len()+1))

	return set.Append(raw)
}

func (b *Builder) signed(ctx context.Context, ixs []solana.Instruction) (*solana.Transaction, error) {
	blockhash, err := b.blockhashes.LatestBlockhash(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent blockhash: %w", err)
	}

	tx, err := solana.NewTransaction(ixs, blockhash, solana.TransactionPayer(b.payer.PublicKey()))
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}

	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(b.payer.PublicKey()) {
			return &b.payer
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	return tx, nil
}
