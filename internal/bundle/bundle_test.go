package bundle

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type staticBlockhash struct{}

func (staticBlockhash) LatestBlockhash(context.Context) (solana.Hash, error) {
	return solana.Hash{1, 2, 3, 4}, nil
}

type fixedIntn int

func (f fixedIntn) IntN(n int) int { return int(f) % n }

type lpSource struct {
	recipient solana.PublicKey
}

func (s lpSource) BuildLiquidityInstructions(_ context.Context, payer solana.PublicKey) ([]solana.Instruction, error) {
	return []solana.Instruction{system.NewTransferInstruction(5, payer, s.recipient).Build()}, nil
}

func newTestBuilder(t *testing.T, r Intn) (*Builder, solana.PrivateKey, []solana.PublicKey) {
	t.Helper()
	payer, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	accounts, err := ParseTipAccounts(DefaultTipAccounts)
	require.NoError(t, err)
	selector, err := NewTipSelector(accounts, r)
	require.NoError(t, err)
	builder, err := NewBuilder(zap.NewNop(), payer, staticBlockhash{}, selector, 10_000)
	require.NoError(t, err)
	return builder, payer, accounts
}

func TestNewSignedTransactionSetBounds(t *testing.T) {
	_, err := NewSignedTransactionSet()
	assert.Error(t, err)

	six := make([][]byte, MaxBundleSize+1)
	for i := range six {
		six[i] = []byte{byte(i + 1)}
	}
	_, err = NewSignedTransactionSet(six...)
	assert.Error(t, err)

	_, err = NewSignedTransactionSet([]byte{1}, nil)
	assert.Error(t, err)
}

func TestSignedTransactionSetIsImmutable(t *testing.T) {
	raw := []byte{1, 2, 3}
	set, err := NewSignedTransactionSet(raw)
	require.NoError(t, err)

	raw[0] = 9
	assert.Equal(t, byte(1), set.Transaction(0)[0])

	out := set.Transaction(0)
	out[1] = 9
	assert.Equal(t, byte(2), set.Transaction(0)[1])
}

func TestEncodeBase64RoundTripPreservesOrder(t *testing.T) {
	set, err := NewSignedTransactionSet([]byte("first"), []byte("second"))
	require.NoError(t, err)

	parsed, err := ParseBase64(set.EncodeBase64()...)
	require.NoError(t, err)
	require.Equal(t, 2, parsed.Len())
	assert.Equal(t, []byte("first"), parsed.Transaction(0))
	assert.Equal(t, []byte("second"), parsed.Transaction(1))
}

func TestTipSelectorUsesInjectedSource(t *testing.T) {
	accounts, err := ParseTipAccounts(DefaultTipAccounts)
	require.NoError(t, err)

	selector, err := NewTipSelector(accounts, fixedIntn(3))
	require.NoError(t, err)
	assert.Equal(t, accounts[3], selector.Select())

	_, err = NewTipSelector(nil, nil)
	assert.Error(t, err)
}

func TestTipSelectorStaysWithinSet(t *testing.T) {
	accounts, err := ParseTipAccounts(DefaultTipAccounts)
	require.NoError(t, err)
	selector, err := NewTipSelector(accounts, rand.New(rand.NewPCG(1, 2)))
	require.NoError(t, err)

	for i := 0; i < 200; i++ {
		assert.Contains(t, accounts, selector.Select())
	}
}

func TestBuildCombinedContainsExactlyOneTip(t *testing.T) {
	builder, _, accounts := newTestBuilder(t, rand.New(rand.NewPCG(7, 7)))

	set, err := builder.Build(context.Background(), lpSource{recipient: solana.NewWallet().PublicKey()})
	require.NoError(t, err)
	require.Equal(t, 1, set.Len())

	tip, err := ValidateTip(set, accounts)
	require.NoError(t, err)
	assert.Contains(t, accounts, tip.Account)
	assert.Equal(t, uint64(10_000), tip.Lamports)
	assert.Equal(t, 1, tip.Instruction, "tip is appended after the liquidity instructions")
}

func TestAppendTipTransaction(t *testing.T) {
	builder, payer, accounts := newTestBuilder(t, fixedIntn(0))

	lp, err := solana.NewTransaction(
		[]solana.Instruction{system.NewTransferInstruction(1, payer.PublicKey(), solana.NewWallet().PublicKey()).Build()},
		solana.Hash{9},
		solana.TransactionPayer(payer.PublicKey()),
	)
	require.NoError(t, err)
	_, err = lp.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(payer.PublicKey()) {
			return &payer
		}
		return nil
	})
	require.NoError(t, err)

	set, err := NewSignedTransactionSetFromTransactions(lp)
	require.NoError(t, err)

	tipped, err := builder.AppendTipTransaction(context.Background(), set)
	require.NoError(t, err)
	require.Equal(t, 2, tipped.Len())

	tip, err := ValidateTip(tipped, accounts)
	require.NoError(t, err)
	assert.Equal(t, 1, tip.TxIndex)
	assert.Equal(t, accounts[0], tip.Account)

	_, err = builder.AppendTipTransaction(context.Background(), tipped)
	assert.Error(t, err, "a second tip must be refused")
}

func TestValidateTipRejectsMissingTip(t *testing.T) {
	payer, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	accounts, err := ParseTipAccounts(DefaultTipAccounts)
	require.NoError(t, err)

	tx, err := solana.NewTransaction(
		[]solana.Instruction{system.NewTransferInstruction(1, payer.PublicKey(), solana.NewWallet().PublicKey()).Build()},
		solana.Hash{9},
		solana.TransactionPayer(payer.PublicKey()),
	)
	require.NoError(t, err)
	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey { return &payer })
	require.NoError(t, err)

	set, err := NewSignedTransactionSetFromTransactions(tx)
	require.NoError(t, err)

	_, err = ValidateTip(set, accounts)
	assert.Error(t, err)
}

func TestNewBuilderRejectsZeroTip(t *testing.T) {
	accounts, err := ParseTipAccounts(DefaultTipAccounts)
	require.NoError(t, err)
	selector, err := NewTipSelector(accounts, fixedIntn(0))
	require.NoError(t, err)

	_, err = NewBuilder(zap.NewNop(), solana.PrivateKey{}, staticBlockhash{}, selector, 0)
	assert.Error(t, err)
}
