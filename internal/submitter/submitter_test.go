package submitter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/securemint/lp-bundler/internal/bundle"
	"github.com/securemint/lp-bundler/internal/clients"
)

const testRelayURL = "https://relay.test"

type statusReply struct {
	report clients.BundleStatusReport
	err    error
}

type fakeRelay struct {
	sendResults []clients.SendBundleResult
	statuses    []statusReply
	sent        [][]string
	statusCalls int
}

func (r *fakeRelay) URL() string { return testRelayURL }

func (r *fakeRelay) SendBundle(_ context.Context, encoded []string) clients.SendBundleResult {
	r.sent = append(r.sent, encoded)
	res := r.sendResults[0]
	if len(r.sendResults) > 1 {
		r.sendResults = r.sendResults[1:]
	}
	return res
}

func (r *fakeRelay) GetBundleStatus(context.Context, string) (clients.BundleStatusReport, error) {
	r.statusCalls++
	if len(r.statuses) == 0 {
		return clients.BundleStatusReport{Status: clients.BundleStatusUnknown}, nil
	}
	reply := r.statuses[0]
	if len(r.statuses) > 1 {
		r.statuses = r.statuses[1:]
	}
	return reply.report, reply.err
}

type fakeClock struct {
	now   time.Time
	slept []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.slept = append(c.slept, d)
	c.now = c.now.Add(d)
	return nil
}

func newSignedSet(t *testing.T, n int) bundle.SignedTransactionSet {
	t.Helper()
	payer, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	txs := make([]*solana.Transaction, n)
	for i := range txs {
		tx, err := solana.NewTransaction(
			[]solana.Instruction{system.NewTransferInstruction(uint64(i+1), payer.PublicKey(), solana.NewWallet().PublicKey()).Build()},
			solana.Hash{byte(i + 1)},
			solana.TransactionPayer(payer.PublicKey()),
		)
		require.NoError(t, err)
		_, err = tx.Sign(func(solana.PublicKey) *solana.PrivateKey { return &payer })
		require.NoError(t, err)
		txs[i] = tx
	}

	set, err := bundle.NewSignedTransactionSetFromTransactions(txs...)
	require.NoError(t, err)
	return set
}

func okHandle(id string) clients.BundleHandle {
	return clients.BundleHandle{ID: id, Relay: testRelayURL}
}

func TestSubmitBundleSendsWholeSetInOrder(t *testing.T) {
	relay := &fakeRelay{sendResults: []clients.SendBundleResult{{Kind: clients.SendOK, Handle: okHandle("b1")}}}
	set, err := bundle.NewSignedTransactionSet([]byte("a"), []byte("b"), []byte("c"))
	require.NoError(t, err)

	handle, err := NewBundleSubmitter(zap.NewNop(), relay).SubmitBundle(context.Background(), set)
	require.NoError(t, err)
	assert.Equal(t, "b1", handle.ID)

	require.Len(t, relay.sent, 1)
	assert.Equal(t, set.EncodeBase64(), relay.sent[0])
}

func TestSubmitBundleErrors(t *testing.T) {
	set, err := bundle.NewSignedTransactionSet([]byte("a"))
	require.NoError(t, err)

	relay := &fakeRelay{sendResults: []clients.SendBundleResult{{Kind: clients.SendRelayError, Code: -32602, Message: "tip too low"}}}
	_, err = NewBundleSubmitter(zap.NewNop(), relay).SubmitBundle(context.Background(), set)
	var rejected *RelayRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, -32602, rejected.Code)
	assert.NotErrorIs(t, err, ErrRelayUnreachable)

	cause := errors.New("connection refused")
	relay = &fakeRelay{sendResults: []clients.SendBundleResult{{Kind: clients.SendTransportError, Err: cause}}}
	_, err = NewBundleSubmitter(zap.NewNop(), relay).SubmitBundle(context.Background(), set)
	assert.ErrorIs(t, err, ErrRelayUnreachable)
	assert.ErrorIs(t, err, cause)

	_, err = NewBundleSubmitter(zap.NewNop(), relay).SubmitBundle(context.Background(), bundle.SignedTransactionSet{})
	assert.Error(t, err)
}

func TestPollerConfirmsAfterPendingAndTransportBlips(t *testing.T) {
	clock := newFakeClock()
	relay := &fakeRelay{statuses: []statusReply{
		{report: clients.BundleStatusReport{Status: clients.BundleStatusUnknown}},
		{err: errors.New("i/o timeout")},
		{err: errors.New("i/o timeout")},
		{report: clients.BundleStatusReport{Status: clients.BundleStatusPending}},
		{report: clients.BundleStatusReport{Status: clients.BundleStatusConfirmed, Slot: 42}},
	}}
	poller := NewPoller(zap.NewNop(), relay, WithClock(clock.Now, clock.Sleep))

	ok, err := poller.WaitForConfirmation(context.Background(), okHandle("b1"), time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 5, relay.statusCalls)
	assert.Len(t, clock.slept, 4)
	for _, d := range clock.slept {
		assert.Equal(t, DefaultPollInterval, d)
	}
}

func TestPollerFinalizedIsSuccess(t *testing.T) {
	clock := newFakeClock()
	relay := &fakeRelay{statuses: []statusReply{{report: clients.BundleStatusReport{Status: clients.BundleStatusFinalized}}}}
	poller := NewPoller(zap.NewNop(), relay, WithClock(clock.Now, clock.Sleep))

	ok, err := poller.WaitForConfirmation(context.Background(), okHandle("b1"), time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, clock.slept)
}

func TestPollerFailsImmediatelyOnBundleError(t *testing.T) {
	clock := newFakeClock()
	relay := &fakeRelay{statuses: []statusReply{
		{report: clients.BundleStatusReport{Status: clients.BundleStatusPending}},
		{report: clients.BundleStatusReport{Status: clients.BundleStatusFailed, Reason: `{"Err":"dropped"}`}},
	}}
	poller := NewPoller(zap.NewNop(), relay, WithClock(clock.Now, clock.Sleep))

	ok, err := poller.WaitForConfirmation(context.Background(), okHandle("b1"), time.Minute)
	assert.False(t, ok)
	var failed *BundleFailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, "b1", failed.BundleID)
	assert.Contains(t, failed.Reason, "dropped")
	assert.Equal(t, 2, relay.statusCalls)
	assert.Len(t, clock.slept, 1, "no waiting for the timeout after a failure")
}

func TestPollerTimesOutAfterFullDuration(t *testing.T) {
	clock := newFakeClock()
	start := clock.Now()
	relay := &fakeRelay{statuses: []statusReply{{report: clients.BundleStatusReport{Status: clients.BundleStatusPending}}}}
	poller := NewPoller(zap.NewNop(), relay, WithClock(clock.Now, clock.Sleep))

	ok, err := poller.WaitForConfirmation(context.Background(), okHandle("b1"), 10*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 5, relay.statusCalls)
	assert.GreaterOrEqual(t, clock.Now().Sub(start), 10*time.Second)
}

func TestPollerRejectsForeignHandle(t *testing.T) {
	relay := &fakeRelay{}
	poller := NewPoller(zap.NewNop(), relay)

	_, err := poller.WaitForConfirmation(context.Background(), clients.BundleHandle{ID: "b1", Relay: "https://other.relay"}, time.Second)
	assert.ErrorIs(t, err, ErrForeignHandle)
	assert.Zero(t, relay.statusCalls)
}

func TestPollerStopsOnCancel(t *testing.T) {
	clock := newFakeClock()
	relay := &fakeRelay{statuses: []statusReply{{report: clients.BundleStatusReport{Status: clients.BundleStatusPending}}}}
	ctx, cancel := context.WithCancel(context.Background())

	sleep := func(ctx context.Context, d time.Duration) error {
		cancel()
		return clock.Sleep(ctx, d)
	}
	poller := NewPoller(zap.NewNop(), relay, WithClock(clock.Now, sleep))

	ok, err := poller.WaitForConfirmation(ctx, okHandle("b1"), time.Hour)
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, relay.statusCalls)
}

func TestSleepContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, SleepContext(ctx, time.Hour), context.Canceled)
	assert.NoError(t, SleepContext(context.Background(), time.Millisecond))
}

type fakeNode struct {
	sendErr  error
	statuses map[solana.Signature][]*rpc.SignatureStatusesResult
	sent     []solana.Signature
	simErr   any
}

func (n *fakeNode) SendTransaction(_ context.Context, tx *solana.Transaction) (solana.Signature, error) {
	if n.sendErr != nil {
		return solana.Signature{}, n.sendErr
	}
	sig := tx.Signatures[0]
	n.sent = append(n.sent, sig)
	return sig, nil
}

func (n *fakeNode) SignatureStatus(_ context.Context, sig solana.Signature) (*rpc.SignatureStatusesResult, error) {
	queue := n.statuses[sig]
	if len(queue) == 0 {
		return &rpc.SignatureStatusesResult{ConfirmationStatus: rpc.ConfirmationStatusConfirmed}, nil
	}
	next := queue[0]
	n.statuses[sig] = queue[1:]
	return next, nil
}

func (n *fakeNode) Simulate(context.Context, *solana.Transaction) (*rpc.SimulateTransactionResult, error) {
	return &rpc.SimulateTransactionResult{Err: n.simErr, Logs: []string{"Program log: ok"}}, nil
}

func TestPublicFallbackConfirmsEveryTransactionInOrder(t *testing.T) {
	set := newSignedSet(t, 2)
	txs, err := set.Decode()
	require.NoError(t, err)

	clock := newFakeClock()
	node := &fakeNode{statuses: map[solana.Signature][]*rpc.SignatureStatusesResult{
		txs[0].Signatures[0]: {nil, {ConfirmationStatus: rpc.ConfirmationStatusProcessed}, {ConfirmationStatus: rpc.ConfirmationStatusFinalized}},
	}}
	fallback := NewPublicFallback(zap.NewNop(), node, time.Minute, WithClock(clock.Now, clock.Sleep))

	record, err := fallback.SubmitAndConfirm(context.Background(), set)
	require.NoError(t, err)
	assert.True(t, record.AllConfirmed(2))
	assert.Equal(t, []solana.Signature{txs[0].Signatures[0], txs[1].Signatures[0]}, record.Signatures)
	assert.Equal(t, txs[0].Signatures[0], record.Signature())
	assert.Len(t, clock.slept, 2)
}

func TestPublicFallbackOnChainFailure(t *testing.T) {
	set := newSignedSet(t, 2)
	txs, err := set.Decode()
	require.NoError(t, err)

	clock := newFakeClock()
	node := &fakeNode{statuses: map[solana.Signature][]*rpc.SignatureStatusesResult{
		txs[0].Signatures[0]: {{Err: map[string]any{"InstructionError": []any{0, "Custom"}}}},
	}}
	fallback := NewPublicFallback(zap.NewNop(), node, time.Minute, WithClock(clock.Now, clock.Sleep))

	record, err := fallback.SubmitAndConfirm(context.Background(), set)
	require.Error(t, err)
	assert.Len(t, record.Signatures, 1, "second transaction is never sent")
	assert.Zero(t, record.Confirmed)
}

func TestPublicFallbackTimeout(t *testing.T) {
	set := newSignedSet(t, 1)
	txs, err := set.Decode()
	require.NoError(t, err)

	pending := make([]*rpc.SignatureStatusesResult, 100)
	clock := newFakeClock()
	node := &fakeNode{statuses: map[solana.Signature][]*rpc.SignatureStatusesResult{txs[0].Signatures[0]: pending}}
	fallback := NewPublicFallback(zap.NewNop(), node, 10*time.Second, WithClock(clock.Now, clock.Sleep))

	record, err := fallback.SubmitAndConfirm(context.Background(), set)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not confirmed")
	assert.False(t, record.AllConfirmed(1))
}

func TestPublicFallbackSendError(t *testing.T) {
	set := newSignedSet(t, 1)
	node := &fakeNode{sendErr: errors.New("blockhash not found")}
	fallback := NewPublicFallback(zap.NewNop(), node, time.Second)

	record, err := fallback.SubmitAndConfirm(context.Background(), set)
	require.Error(t, err)
	require.NotNil(t, record)
	assert.Empty(t, record.Signatures)
}

func TestSimulator(t *testing.T) {
	set := newSignedSet(t, 2)

	report, err := NewSimulator(zap.NewNop(), &fakeNode{}).Simulate(context.Background(), set)
	require.NoError(t, err)
	assert.True(t, report.Passed())
	assert.Len(t, report.Results, 2)

	report, err = NewSimulator(zap.NewNop(), &fakeNode{simErr: "InsufficientFundsForRent"}).Simulate(context.Background(), set)
	require.NoError(t, err)
	assert.False(t, report.Passed())
}

func TestFallbackExhaustedError(t *testing.T) {
	cause := errors.New("node down")
	err := error(&FallbackExhaustedError{Record: &FallbackRecord{}, Cause: cause})
	assert.ErrorIs(t, err, ErrFallbackExhausted)
	assert.ErrorIs(t, err, cause)
}

// stalledRelay never answers a status query until the caller gives up
type stalledRelay struct {
	fakeRelay
}

func (r *stalledRelay) GetBundleStatus(ctx context.Context, _ string) (clients.BundleStatusReport, error) {
	r.statusCalls++
	select {
	case <-ctx.Done():
		return clients.BundleStatusReport{}, ctx.Err()
	case <-time.After(5 * time.Second):
		return clients.BundleStatusReport{Status: clients.BundleStatusPending}, nil
	}
}

func TestPollerTimeoutBoundsStalledQuery(t *testing.T) {
	relay := &stalledRelay{}
	poller := NewPoller(zap.NewNop(), relay)

	start := time.Now()
	ok, err := poller.WaitForConfirmation(context.Background(), okHandle("b1"), 100*time.Millisecond)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, relay.statusCalls)
	assert.Less(t, elapsed, 2*time.Second, "the wait must not outlive its timeout")
}

func TestPollerCancelDuringStalledQuery(t *testing.T) {
	relay := &stalledRelay{}
	poller := NewPoller(zap.NewNop(), relay)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	ok, err := poller.WaitForConfirmation(ctx, okHandle("b1"), time.Minute)
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type stalledNode struct {
	fakeNode
}

func (n *stalledNode) SignatureStatus(ctx context.Context, _ solana.Signature) (*rpc.SignatureStatusesResult, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(5 * time.Second):
		return nil, nil
	}
}

func TestPublicFallbackTimeoutBoundsStalledQuery(t *testing.T) {
	set := newSignedSet(t, 1)
	node := &stalledNode{}
	fallback := NewPublicFallback(zap.NewNop(), node, 100*time.Millisecond)

	start := time.Now()
	record, err := fallback.SubmitAndConfirm(context.Background(), set)
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not confirmed")
	assert.Len(t, record.Signatures, 1)
	assert.Less(t, elapsed, 2*time.Second, "the wait must not outlive its timeout")
}
