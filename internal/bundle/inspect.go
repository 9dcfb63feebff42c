package bundle

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
)

// TipTransfer describes a system transfer to a tip account found in a bundle
type TipTransfer struct {
	TxIndex     int
	Instruction int
	Account     solana.PublicKey
	Lamports    uint64
}

// FindTipTransfers returns every system transfer in set whose recipient is one of tipAccounts.
// Only statically addressed accounts are inspected; lookup-table entries are ignored.
func FindTipTransfers(set SignedTransactionSet, tipAccounts []solana.PublicKey) ([]TipTransfer, error) {
	txs, err := set.Decode()
	if err != nil {
		return nil, err
	}

	tips := make(map[solana.PublicKey]struct{}, len(tipAccounts))
	for _, a := range tipAccounts {
		tips[a] = struct{}{}
	}

	var found []TipTransfer
	for txIndex, tx := range txs {
		keys := tx.Message.AccountKeys
		for ixIndex, ci := range tx.Message.Instructions {
			if int(ci.ProgramIDIndex) >= len(keys) || !keys[ci.ProgramIDIndex].Equals(solana.SystemProgramID) {
				continue
			}

			accounts := make([]*solana.AccountMeta, 0, len(ci.Accounts))
			for _, idx := range ci.Accounts {
				if int(idx) >= len(keys) {
					accounts = nil
					break
				}
				accounts = append(accounts, solana.Meta(keys[idx]))
			}
			if len(accounts) < 2 {
				continue
			}

			decoded, err := system.DecodeInstruction(accounts, ci.Data)
			if err != nil {
				continue
			}
			transfer, ok := decoded.Impl.(*system.Transfer)
			if !ok {
				continue
			}

			recipient := transfer.GetRecipientAccount().PublicKey
			if _, isTip := tips[recipient]; !isTip {
				continue
			}

			var lamports uint64
			if transfer.Lamports != nil {
				lamports = *transfer.Lamports
			}
			found = append(found, TipTransfer{
				TxIndex:     txIndex,
				Instruction: ixIndex,
				Account:     recipient,
				Lamports:    lamports,
			})
		}
	}
	return found, nil
}

// CountTipTransfers returns the number of tip transfers in set
func CountTipTransfers(set SignedTransactionSet, tipAccounts []solana.PublicKey) (int, error) {
	found, err := FindTipTransfers(set, tipAccounts)
	if err != nil {
		return 0, err
	}
	return len(found), nil
}

// ValidateTip requires exactly one tip transfer in the bundle
func ValidateTip(set SignedTransactionSet, tipAccounts []solana.PublicKey) (TipTransfer, error) {
	found, err := FindTipTransfers(set, tipAccounts)
	if err != nil {
		return TipTransfer{}, err
	}
	if len(found) != 1 {
		return TipTransfer{}, fmt.Errorf("bundle must contain exactly one tip transfer, found %d", len(found))
	}
	return found[0], nil
}
