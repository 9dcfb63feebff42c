package verifier

import (
	"context"
	"fmt"

	"filippo.io/edwards25519"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"go.uber.org/zap"
)

const (
	checkMintAuthority     = "Mint Authority"
	checkFreezeAuthority   = "Freeze Authority"
	checkMetadataAuthority = "Metadata Update Authority"
	checkMetadataMutable   = "Metadata isMutable"
	checkTokenAccountOwner = "Token Account Ownership"
	checkLPLock            = "LP Lock Status"

	none         = "None"
	noMetadata   = "No Metaplex metadata"
	expectPDA    = "PDA (program-owned)"
	expectLocked = "Locked or Burned"
)

func errorResult(name, expected, what string, err error) CheckResult {
	actual := "ERROR: " + what
	if err != nil {
		actual = fmt.Sprintf("%s: %v", actual, err)
	}
	return CheckResult{Name: name, Expected: expected, Actual: actual, Passed: false}
}

func authorityResult(name string, authority *solana.PublicKey) CheckResult {
	if authority == nil {
		return CheckResult{Name: name, Expected: none, Actual: none, Passed: true}
	}
	return CheckResult{Name: name, Expected: none, Actual: authority.String(), Passed: false}
}

func (v *Verifier) fetchMint(ctx context.Context, address solana.PublicKey) (*token.Mint, error) {
	account, err := v.fetch(ctx, address)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, fmt.Errorf("account %s not found", address)
	}

	var mint token.Mint
	if err := bin.NewBinDecoder(account.Data.GetBinary()).Decode(&mint); err != nil {
		return nil, fmt.Errorf("failed to decode mint %s: %w", address, err)
	}
	return &mint, nil
}

func (v *Verifier) checkMintAuthority(ctx context.Context) CheckResult {
	mint, err := v.fetchMint(ctx, v.config.Mint)
	if err != nil {
		v.logger.Warn("Mint authority check could not fetch the mint", zap.Error(err))
		return errorResult(checkMintAuthority, none, "could not fetch mint", err)
	}
	return authorityResult(checkMintAuthority, mint.MintAuthority)
}

func (v *Verifier) checkFreezeAuthority(ctx context.Context) CheckResult {
	mint, err := v.fetchMint(ctx, v.config.Mint)
	if err != nil {
		v.logger.Warn("Freeze authority check could not fetch the mint", zap.Error(err))
		return errorResult(checkFreezeAuthority, none, "could not fetch mint", err)
	}
	return authorityResult(checkFreezeAuthority, mint.FreezeAuthority)
}

// fetchMetadataRaw returns nil data when the mint has no metadata account
func (v *Verifier) fetchMetadataRaw(ctx context.Context) ([]byte, error) {
	address, err := MetadataAddress(v.config.Mint)
	if err != nil {
		return nil, err
	}
	account, err := v.fetch(ctx, address)
	if err != nil || account == nil {
		return nil, err
	}
	return account.Data.GetBinary(), nil
}

func (v *Verifier) checkMetadataUpdateAuthority(ctx context.Context) CheckResult {
	data, err := v.fetchMetadataRaw(ctx)
	if err != nil {
		return errorResult(checkMetadataAuthority, none, "could not fetch metadata", err)
	}
	if data == nil {
		return CheckResult{Name: checkMetadataAuthority, Expected: none, Actual: noMetadata, Passed: true}
	}

	authority, err := UpdateAuthority(data)
	if err != nil {
		return errorResult(checkMetadataAuthority, none, "could not decode metadata", err)
	}
	return authorityResult(checkMetadataAuthority, authority)
}

func (v *Verifier) checkMetadataIsMutable(ctx context.Context) CheckResult {
	result := CheckResult{Name: checkMetadataMutable, Expected: "false"}

	data, err := v.fetchMetadataRaw(ctx)
	if err != nil {
		return errorResult(checkMetadataMutable, result.Expected, "could not fetch metadata", err)
	}
	if data == nil {
		result.Actual, result.Passed = noMetadata, true
		return result
	}

	md, err := DecodeMetadata(data)
	if err == nil {
		result.Actual = fmt.Sprintf("%t", md.IsMutable)
		result.Passed = !md.IsMutable
		return result
	}
	v.logger.Debug("Metadata layout unreadable, falling back to the update authority", zap.Error(err))

	// Heuristic: a revoked update authority means no one can change the record
	authority, err := UpdateAuthority(data)
	if err != nil {
		return errorResult(checkMetadataMutable, result.Expected, "could not decode metadata", err)
	}
	if authority == nil {
		result.Actual, result.Passed = "false (authority revoked)", true
	} else {
		result.Actual = "true (authority active)"
	}
	return result
}

func (v *Verifier) checkTokenAccountOwnership(ctx context.Context) CheckResult {
	expected := expectPDA
	if v.config.ExpectedOwner != nil {
		expected = v.config.ExpectedOwner.String()
	}
	if v.config.TreasuryTokenAccount == nil {
		return CheckResult{Name: checkTokenAccountOwner, Expected: expected, Actual: "SKIPPED (TREASURY_TOKEN_ACCOUNT not set)", Passed: true}
	}

	address := *v.config.TreasuryTokenAccount
	account, err := v.fetch(ctx, address)
	if err != nil || account == nil {
		return errorResult(checkTokenAccountOwner, expected, "could not fetch token account", err)
	}

	var tokenAccount token.Account
	if err := bin.NewBinDecoder(account.Data.GetBinary()).Decode(&tokenAccount); err != nil {
		return errorResult(checkTokenAccountOwner, expected, "could not decode token account", err)
	}

	owner := tokenAccount.Owner
	var passed bool
	if v.config.ExpectedOwner != nil {
		passed = owner.Equals(*v.config.ExpectedOwner)
	} else {
		passed = !IsOnCurve(owner)
	}
	return CheckResult{Name: checkTokenAccountOwner, Expected: expected, Actual: owner.String(), Passed: passed}
}

func (v *Verifier) checkLPLockStatus(ctx context.Context) CheckResult {
	if v.config.LPMint == nil {
		return CheckResult{Name: checkLPLock, Expected: expectLocked, Actual: "SKIPPED (LP_MINT not set)", Passed: true}
	}

	lp, err := v.fetchMint(ctx, *v.config.LPMint)
	if err != nil {
		return errorResult(checkLPLock, expectLocked, "could not fetch LP mint", err)
	}

	switch {
	case lp.Supply == 0:
		return CheckResult{Name: checkLPLock, Expected: expectLocked, Actual: "BURNED (supply = 0)", Passed: true}
	case lp.MintAuthority == nil:
		return CheckResult{Name: checkLPLock, Expected: expectLocked, Actual: fmt.Sprintf("Active (supply: %d), verify lock contract", lp.Supply), Passed: true}
	default:
		return CheckResult{Name: checkLPLock, Expected: expectLocked, Actual: "WARNING: LP mint authority active", Passed: false}
	}
}

// IsOnCurve reports whether key is a valid ed25519 point, i.e. could have a private key.
// Program-derived addresses are off the curve.
func IsOnCurve(key solana.PublicKey) bool {
	_, err := new(edwards25519.Point).SetBytes(key[:])
	return err == nil
}
