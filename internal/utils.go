package internal

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/securemint/lp-bundler/internal/bundle"
)

// Fingerprint computes a short stable key for a transaction set, used to correlate log lines
// across attempts since every attempt gets a fresh bundle id
func Fingerprint(set bundle.SignedTransactionSet) string {
	h := sha256.New()
	for i := 0; i < set.Len(); i++ {
		h.Write(set.Transaction(i))
	}
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:8])
}

// TailLines returns at most the last n lines
func TailLines(lines []string, n int) []string {
	if n <= 0 {
		return nil
	}
	if len(lines) <= n {
		return lines
	}
	return lines[len(lines)-n:]
}
