package verifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Token2022ProgramID is the token extensions program
var Token2022ProgramID = solana.MustPublicKeyFromBase58("TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb")

// ErrUnresolvedTokenProgram means the mint is not owned by a known token program.
// It is the only error Verify returns.
var ErrUnresolvedTokenProgram = errors.New("could not resolve the token program of the mint")

// AccountFetcher reads single accounts. *clients.SolanaClient and *rpc.Client both satisfy it.
type AccountFetcher interface {
	GetAccountInfoWithOpts(ctx context.Context, account solana.PublicKey, opts *rpc.GetAccountInfoOpts) (*rpc.GetAccountInfoResult, error)
}

// Config selects what to verify. Nil optional addresses skip their check.
type Config struct {
	Mint                 solana.PublicKey
	TreasuryTokenAccount *solana.PublicKey
	ExpectedOwner        *solana.PublicKey
	LPMint               *solana.PublicKey
}

// Verifier runs the post-deploy authority checks. It only reads chain state.
type Verifier struct {
	fetcher AccountFetcher
	config  Config
	logger  *zap.Logger
}

// NewVerifier creates a new verifier for config.Mint
func NewVerifier(logger *zap.Logger, fetcher AccountFetcher, config Config) *Verifier {
	return &Verifier{
		fetcher: fetcher,
		config:  config,
		logger:  logger.With(zap.String("component", "Verifier"), zap.String("mint", config.Mint.String())),
	}
}

// TokenStandard names the token program
func TokenStandard(program solana.PublicKey) string {
	switch {
	case program.Equals(solana.TokenProgramID):
		return "SPL Token"
	case program.Equals(Token2022ProgramID):
		return "Token-2022"
	default:
		return "unknown"
	}
}

// ResolveTokenProgram returns the program that owns the mint account
func (v *Verifier) ResolveTokenProgram(ctx context.Context) (solana.PublicKey, error) {
	account, err := v.fetch(ctx, v.config.Mint)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: %v", ErrUnresolvedTokenProgram, err)
	}
	if account == nil {
		return solana.PublicKey{}, fmt.Errorf("%w: mint account %s not found", ErrUnresolvedTokenProgram, v.config.Mint)
	}
	owner := account.Owner
	if !owner.Equals(solana.TokenProgramID) && !owner.Equals(Token2022ProgramID) {
		return solana.PublicKey{}, fmt.Errorf("%w: mint is owned by %s", ErrUnresolvedTokenProgram, owner)
	}
	return owner, nil
}

// Verify runs all six checks and returns the report in fixed order. Individual check
// failures, fetch errors included, are encoded in the report and never returned.
func (v *Verifier) Verify(ctx context.Context) (*Report, error) {
	program, err := v.ResolveTokenProgram(ctx)
	if err != nil {
		return nil, err
	}

	v.logger.Info("Running authority checks",
		zap.String("tokenProgram", program.String()),
		zap.String("standard", TokenStandard(program)))

	checks := []func(context.Context) CheckResult{
		v.checkMintAuthority,
		v.checkFreezeAuthority,
		v.checkMetadataUpdateAuthority,
		v.checkMetadataIsMutable,
		v.checkTokenAccountOwnership,
		v.checkLPLockStatus,
	}

	results := make([]CheckResult, len(checks))
	g, gctx := errgroup.WithContext(ctx)
	for i, check := range checks {
		g.Go(func() error {
			results[i] = check(gctx)
			return nil
		})
	}
	// checks record failures in their result, so the group never errors
	g.Wait()

	report := &Report{
		Mint:         v.config.Mint,
		TokenProgram: program,
		Standard:     TokenStandard(program),
		Results:      results,
	}

	v.logger.Info("Authority checks complete",
		zap.Int("passed", report.PassCount()),
		zap.Int("total", len(results)),
		zap.Bool("allPassed", report.AllPassed()))

	return report, nil
}

// fetch returns nil, nil when the account does not exist
func (v *Verifier) fetch(ctx context.Context, account solana.PublicKey) (*rpc.Account, error) {
	out, err := v.fetcher.GetAccountInfoWithOpts(ctx, account, &rpc.GetAccountInfoOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: rpc.CommitmentConfirmed,
	})
	if errors.Is(err, rpc.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if out == nil || out.Value == nil {
		return nil, nil
	}
	return out.Value, nil
}
