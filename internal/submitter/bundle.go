package submitter

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/securemint/lp-bundler/internal/bundle"
	"github.com/securemint/lp-bundler/internal/clients"
)

// BundleSubmitter sends a whole transaction set to the relay as one bundle.
// It does not retry.
type BundleSubmitter struct {
	relay  Relay
	logger *zap.Logger
}

// NewBundleSubmitter creates a new bundle submitter instance
func NewBundleSubmitter(logger *zap.Logger, relay Relay) *BundleSubmitter {
	return &BundleSubmitter{
		relay:  relay,
		logger: logger.With(zap.String("component", "BundleSubmitter")),
	}
}

// SubmitBundle submits set and returns the relay's handle for it
func (s *BundleSubmitter) SubmitBundle(ctx context.Context, set bundle.SignedTransactionSet) (clients.BundleHandle, error) {
	if set.Len() == 0 {
		return clients.BundleHandle{}, fmt.Errorf("cannot submit an empty bundle")
	}

	s.logger.Info("Submitting bundle",
		zap.Int("transactions", set.Len()),
		zap.String("relay", s.relay.URL()))

	res := s.relay.SendBundle(ctx, set.EncodeBase64())
	switch res.Kind {
	case clients.SendOK:
		s.logger.Info("Bundle accepted", zap.String("bundleID", res.Handle.ID))
		return res.Handle, nil
	case clients.SendRelayError:
		s.logger.Warn("Bundle rejected by relay",
			zap.Int("code", res.Code),
			zap.String("message", res.Message))
		return clients.BundleHandle{}, &RelayRejectedError{Code: res.Code, Message: res.Message}
	case clients.SendTransportError:
		s.logger.Warn("Relay unreachable", zap.Error(res.Err))
		return clients.BundleHandle{}, fmt.Errorf("%w: %w", ErrRelayUnreachable, res.Err)
	default:
		return clients.BundleHandle{}, fmt.Errorf("unexpected relay result kind %d", res.Kind)
	}
}
