package bundle

import (
	"fmt"
	"math/rand/v2"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
)

// DefaultTipAccounts are the mainnet block engine tip accounts
var DefaultTipAccounts = []string{
	"96gYZGLnJYVFmbjzopPSU6QiEV5fGqZNyN9nmNhvrZU5",
	"HFqU5x63VTqvQss8hp11i4bPYoTAzs9uRqeS3DHP29us",
	"Cw8CFyM9FkoMi7K7Crf6HNQqf4uEMzpKw6QNghXLvLkY",
	"ADaUMid9yfUytqMBgopwjb2DTLSLSRhQTnqPYbo87Zqx",
	"DfXygSm4jCyNCybVYYK6DwvWqjKee8pbDmJGcLWNDXjh",
	"ADuUkR4vqLUMWXxW9gh6D6L8pMSawimctcNZ5pGwDcEt",
	"DttWaMuVvTiduZRnguLF7jNxTgiMBZ1hyAumKUiL2KRL",
	"3AVi9Tg9Uo68tJfuvoKvqKNWKkC5wPdSSdeBnizKZ6jT",
}

// Intn is the random source used to pick a tip account
type Intn interface {
	IntN(n int) int
}

// TipSelector picks tip destinations uniformly from a fixed account set
type TipSelector struct {
	accounts []solana.PublicKey
	rand     Intn
}

// ParseTipAccounts parses base58 tip account addresses
func ParseTipAccounts(addresses []string) ([]solana.PublicKey, error) {
	accounts := make([]solana.PublicKey, 0, len(addresses))
	for _, addr := range addresses {
		pk, err := solana.PublicKeyFromBase58(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid tip account %q: %v", addr, err)
		}
		accounts = append(accounts, pk)
	}
	return accounts, nil
}

// NewTipSelector creates a selector over accounts. A nil rand uses a process-seeded source.
func NewTipSelector(accounts []solana.PublicKey, r Intn) (*TipSelector, error) {
	if len(accounts) == 0 {
		return nil, fmt.Errorf("at least one tip account is required")
	}
	if r == nil {
		r = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &TipSelector{
		accounts: append([]solana.PublicKey(nil), accounts...),
		rand:     r,
	}, nil
}

// Accounts returns a copy of the configured tip accounts
func (s *TipSelector) Accounts() []solana.PublicKey {
	return append([]solana.PublicKey(nil), s.accounts...)
}

// Select returns one tip account
func (s *TipSelector) Select() solana.PublicKey {
	return s.accounts[s.rand.IntN(len(s.accounts))]
}

// TransferInstruction builds a system transfer of lamports from payer to a freshly selected tip account
func (s *TipSelector) TransferInstruction(payer solana.PublicKey, lamports uint64) (solana.Instruction, solana.PublicKey, error) {
	if lamports == 0 {
		return nil, solana.PublicKey{}, fmt.Errorf("tip amount must be greater than zero")
	}
	tipAccount := s.Select()
	ix := system.NewTransferInstruction(lamports, payer, tipAccount).Build()
	return ix, tipAccount, nil
}
