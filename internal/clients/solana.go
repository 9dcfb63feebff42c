package clients

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
)

// DefaultSolanaRPCURL is the public mainnet endpoint
const DefaultSolanaRPCURL = "https://api.mainnet-beta.solana.com"

// SolanaClient handles interactions with a general purpose Solana node
type SolanaClient struct {
	client     *rpc.Client
	commitment rpc.CommitmentType
	logger     *zap.Logger
}

// NewSolanaClient creates a new Solana client reading at confirmed commitment
func NewSolanaClient(logger *zap.Logger, rpcURL string) *SolanaClient {
	client := &SolanaClient{
		client:     rpc.New(rpcURL),
		commitment: rpc.CommitmentConfirmed,
		logger:     logger.With(zap.String("component", "SolanaClient")),
	}

	client.logger.Info("Connecting to Solana", zap.String("rpcURL", rpcURL))

	return client
}

// LatestBlockhash returns a recent blockhash
func (c *SolanaClient) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	recent, err := c.client.GetLatestBlockhash(ctx, c.commitment)
	if err != nil {
		return solana.Hash{}, fmt.Errorf("failed to get recent blockhash: %w", err)
	}
	return recent.Value.Blockhash, nil
}

// Balance returns the lamport balance of account
func (c *SolanaClient) Balance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	out, err := c.client.GetBalance(ctx, account, c.commitment)
	if err != nil {
		return 0, fmt.Errorf("failed to get balance of %s: %w", account, err)
	}
	return out.Value, nil
}

// SendTransaction sends an already signed transaction with preflight checks
func (c *SolanaClient) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	sig, err := c.client.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: c.commitment,
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to send transaction: %w", err)
	}

	c.logger.Info("Transaction sent", zap.String("signature", sig.String()))

	return sig, nil
}

// SignatureStatus returns the node's status for sig, or nil when the node has not seen it
func (c *SolanaClient) SignatureStatus(ctx context.Context, sig solana.Signature) (*rpc.SignatureStatusesResult, error) {
	out, err := c.client.GetSignatureStatuses(ctx, true, sig)
	if err != nil {
		return nil, fmt.Errorf("failed to get signature status: %w", err)
	}
	if out == nil || len(out.Value) == 0 {
		return nil, nil
	}
	return out.Value[0], nil
}

// Simulate runs tx against current chain state without submitting it
func (c *SolanaClient) Simulate(ctx context.Context, tx *solana.Transaction) (*rpc.SimulateTransactionResult, error) {
	out, err := c.client.SimulateTransaction(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("failed to simulate transaction: %w", err)
	}
	if out == nil || out.Value == nil {
		return nil, fmt.Errorf("simulation returned no result")
	}
	return out.Value, nil
}

// GetAccountInfoWithOpts reads a single account
func (c *SolanaClient) GetAccountInfoWithOpts(ctx context.Context, account solana.PublicKey, opts *rpc.GetAccountInfoOpts) (*rpc.GetAccountInfoResult, error) {
	return c.client.GetAccountInfoWithOpts(ctx, account, opts)
}
