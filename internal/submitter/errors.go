package submitter

import (
	"errors"
	"fmt"
)

var (
	// ErrRelayUnreachable means the submission request never got an answer
	ErrRelayUnreachable = errors.New("relay unreachable")

	// ErrForeignHandle means a handle was presented to a relay that did not issue it
	ErrForeignHandle = errors.New("bundle handle was issued by a different relay")

	// ErrFallbackExhausted means both the bundle path and the public path failed
	ErrFallbackExhausted = errors.New("public fallback failed")
)

// RelayRejectedError is an application level refusal of a bundle by the relay
type RelayRejectedError struct {
	Code    int
	Message string
}

func (e *RelayRejectedError) Error() string {
	return fmt.Sprintf("relay rejected bundle (code %d): %s", e.Code, e.Message)
}

// BundleFailedError is a relay-confirmed terminal failure of a bundle.
// The bundle can be resubmitted as a new bundle but the handle is dead.
type BundleFailedError struct {
	BundleID string
	Reason   string
}

func (e *BundleFailedError) Error() string {
	return fmt.Sprintf("bundle %s failed: %s", e.BundleID, e.Reason)
}

// FallbackExhaustedError carries what the public path achieved before it failed
type FallbackExhaustedError struct {
	Record *FallbackRecord
	Cause  error
}

func (e *FallbackExhaustedError) Error() string {
	sent := 0
	if e.Record != nil {
		sent = len(e.Record.Signatures)
	}
	return fmt.Sprintf("%v after %d public submission(s): %v", ErrFallbackExhausted, sent, e.Cause)
}

func (e *FallbackExhaustedError) Is(target error) bool {
	return target == ErrFallbackExhausted
}

func (e *FallbackExhaustedError) Unwrap() error {
	return e.Cause
}
