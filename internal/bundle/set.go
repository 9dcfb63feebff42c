package bundle

import (
	"encoding/base64"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// MaxBundleSize is the block engine's limit on transactions per bundle
const MaxBundleSize = 5

// SignedTransactionSet is an ordered, immutable list of serialized signed transactions.
// Order matters: the block engine executes the entries sequentially in one slot.
type SignedTransactionSet struct {
	txs [][]byte
}

// NewSignedTransactionSet copies the given serialized transactions into a new set
func NewSignedTransactionSet(txs ...[]byte) (SignedTransactionSet, error) {
	if len(txs) == 0 {
		return SignedTransactionSet{}, fmt.Errorf("bundle must contain at least one transaction")
	}
	if len(txs) > MaxBundleSize {
		return SignedTransactionSet{}, fmt.Errorf("bundle has %d transactions, limit is %d", len(txs), MaxBundleSize)
	}

	copied := make([][]byte, len(txs))
	for i, tx := range txs {
		if len(tx) == 0 {
			return SignedTransactionSet{}, fmt.Errorf("transaction %d is empty", i)
		}
		copied[i] = append([]byte(nil), tx...)
	}
	return SignedTransactionSet{txs: copied}, nil
}

// NewSignedTransactionSetFromTransactions serializes already signed transactions into a set
func NewSignedTransactionSetFromTransactions(txs ...*solana.Transaction) (SignedTransactionSet, error) {
	raw := make([][]byte, len(txs))
	for i, tx := range txs {
		if len(tx.Signatures) == 0 {
			return SignedTransactionSet{}, fmt.Errorf("transaction %d is not signed", i)
		}
		b, err := tx.MarshalBinary()
		if err != nil {
			return SignedTransactionSet{}, fmt.Errorf("failed to serialize transaction %d: %w", i, err)
		}
		raw[i] = b
	}
	return NewSignedTransactionSet(raw...)
}

// ParseBase64 builds a set from base64 encoded transactions, the same encoding the relay expects
func ParseBase64(encoded ...string) (SignedTransactionSet, error) {
	raw := make([][]byte, len(encoded))
	for i, s := range encoded {
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return SignedTransactionSet{}, fmt.Errorf("transaction %d is not valid base64: %w", i, err)
		}
		raw[i] = b
	}
	return NewSignedTransactionSet(raw...)
}

// Len returns the number of transactions in the set
func (s SignedTransactionSet) Len() int {
	return len(s.txs)
}

// Transaction returns a copy of the i-th serialized transaction
func (s SignedTransactionSet) Transaction(i int) []byte {
	return append([]byte(nil), s.txs[i]...)
}

// EncodeBase64 returns every transaction base64 encoded, preserving order
func (s SignedTransactionSet) EncodeBase64() []string {
	out := make([]string, len(s.txs))
	for i, tx := range s.txs {
		out[i] = base64.StdEncoding.EncodeToString(tx)
	}
	return out
}

// Decode deserializes every transaction in the set
func (s SignedTransactionSet) Decode() ([]*solana.Transaction, error) {
	out := make([]*solana.Transaction, len(s.txs))
	for i, raw := range s.txs {
		tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
		if err != nil {
			return nil, fmt.Errorf("failed to decode transaction %d: %w", i, err)
		}
		out[i] = tx
	}
	return out, nil
}

// Append returns a new set with tx added as the last entry
func (s SignedTransactionSet) Append(tx []byte) (SignedTransactionSet, error) {
	return NewSignedTransactionSet(append(append([][]byte(nil), s.txs...), tx)...)
}
