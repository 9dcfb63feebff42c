package internal_test

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/securemint/lp-bundler/internal"
	"github.com/securemint/lp-bundler/internal/bundle"
	"github.com/securemint/lp-bundler/internal/clients"
	"github.com/securemint/lp-bundler/internal/submitter"
)

type downRelay struct{}

func (downRelay) SubmitBundle(context.Context, bundle.SignedTransactionSet) (clients.BundleHandle, error) {
	return clients.BundleHandle{}, submitter.ErrRelayUnreachable
}

type unusedPoller struct{}

func (unusedPoller) WaitForConfirmation(context.Context, clients.BundleHandle, time.Duration) (bool, error) {
	return false, nil
}

type publicNode struct{}

func (publicNode) SubmitAndConfirm(_ context.Context, set bundle.SignedTransactionSet) (*submitter.FallbackRecord, error) {
	return &submitter.FallbackRecord{Confirmed: set.Len()}, nil
}

func noSleep(context.Context, time.Duration) error { return nil }

// A relay that never answers degrades to the public path after every retry is spent
func ExampleDeployer_Deploy() {
	set, _ := bundle.NewSignedTransactionSet([]byte("signed lp transaction"))

	deployer, err := internal.NewDeployer(zap.NewNop(),
		internal.DeployerConfig{MaxRetries: 3},
		downRelay{}, unusedPoller{}, publicNode{}, nil,
		internal.WithDeployerClock(time.Now, noSleep))
	if err != nil {
		fmt.Println(err)
		return
	}

	result, err := deployer.Deploy(context.Background(), set)
	if err != nil {
		fmt.Println(err)
		return
	}

	fmt.Println(result.Outcome)
	for _, a := range result.Attempts {
		fmt.Printf("attempt %d: %s, backoff %s\n", a.Number, a.Outcome, a.Backoff)
	}
	fmt.Println("privacy lost:", result.PrivacyLost)
	// Output:
	// FALLBACK_SUCCESS
	// attempt 1: submit_failed, backoff 2s
	// attempt 2: submit_failed, backoff 4s
	// attempt 3: submit_failed, backoff 0s
	// privacy lost: true
}
