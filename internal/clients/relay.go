package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
)

// DefaultRelayURL is the mainnet block engine
const DefaultRelayURL = "https://mainnet.block-engine.jito.wtf"

// BundlesPath is the JSON-RPC endpoint for bundle submission and status queries
const BundlesPath = "/api/v1/bundles"

// BundleHandle identifies a bundle at the relay that accepted it.
// It has no meaning against any other relay.
type BundleHandle struct {
	ID    string
	Relay string
}

func (h BundleHandle) String() string {
	return h.ID
}

// SendBundleKind tags the outcome of a sendBundle call
type SendBundleKind int

const (
	// SendOK means the relay accepted the bundle and returned an id
	SendOK SendBundleKind = iota
	// SendRelayError means the relay answered with an application level error
	SendRelayError
	// SendTransportError means no answer was received
	SendTransportError
)

// SendBundleResult is the tagged result of a sendBundle call.
// Exactly the fields matching Kind are populated.
type SendBundleResult struct {
	Kind    SendBundleKind
	Handle  BundleHandle // SendOK
	Code    int          // SendRelayError: JSON-RPC code, or HTTP status for non-2xx replies
	Message string       // SendRelayError
	Err     error        // SendTransportError
}

// BundleStatus is the relay's view of a bundle
type BundleStatus byte

const (
	// BundleStatusUnknown means the relay has no record yet
	BundleStatusUnknown BundleStatus = iota
	// BundleStatusPending means the bundle is known but not landed
	BundleStatusPending
	// BundleStatusConfirmed means the bundle landed at confirmed commitment
	BundleStatusConfirmed
	// BundleStatusFinalized means the bundle landed at finalized commitment
	BundleStatusFinalized
	// BundleStatusFailed means the relay reported an error for the bundle
	BundleStatusFailed
)

func (s BundleStatus) String() string {
	switch s {
	case BundleStatusPending:
		return "pending"
	case BundleStatusConfirmed:
		return "confirmed"
	case BundleStatusFinalized:
		return "finalized"
	case BundleStatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsSuccess reports whether s is terminal success
func (s BundleStatus) IsSuccess() bool {
	return s == BundleStatusConfirmed || s == BundleStatusFinalized
}

// BundleStatusEntry is one element of getBundleStatuses' value list
type BundleStatusEntry struct {
	BundleID           string          `json:"bundle_id"`
	Transactions       []string        `json:"transactions"`
	Slot               uint64          `json:"slot"`
	ConfirmationStatus string          `json:"confirmation_status"`
	Err                json.RawMessage `json:"err"`
}

type bundleStatusesResult struct {
	Context struct {
		Slot uint64 `json:"slot"`
	} `json:"context"`
	Value []*BundleStatusEntry `json:"value"`
}

// BundleStatusReport is the interpreted status of a single bundle
type BundleStatusReport struct {
	Status BundleStatus
	Slot   uint64
	Reason string // set when Status is BundleStatusFailed
}

// Interpret maps a raw status entry to a BundleStatus.
// Landed commitment wins over the err field; {"Ok":null} is not an error.
func Interpret(entry *BundleStatusEntry) BundleStatusReport {
	if entry == nil {
		return BundleStatusReport{Status: BundleStatusUnknown}
	}

	switch entry.ConfirmationStatus {
	case "confirmed":
		return BundleStatusReport{Status: BundleStatusConfirmed, Slot: entry.Slot}
	case "finalized":
		return BundleStatusReport{Status: BundleStatusFinalized, Slot: entry.Slot}
	}

	if hasError(entry.Err) {
		return BundleStatusReport{Status: BundleStatusFailed, Slot: entry.Slot, Reason: string(entry.Err)}
	}

	if entry.ConfirmationStatus == "" {
		return BundleStatusReport{Status: BundleStatusUnknown, Slot: entry.Slot}
	}
	return BundleStatusReport{Status: BundleStatusPending, Slot: entry.Slot}
}

// hasError is false for an empty err and for the Jito success shape {"Ok":null}
func hasError(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return false
	}
	var variant map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &variant); err == nil && len(variant) == 1 {
		if _, isOk := variant["Ok"]; isOk {
			return false
		}
	}
	return true
}

// RelayClient talks JSON-RPC to a block engine
type RelayClient struct {
	baseURL   string
	rpcClient *rpc.Client
	logger    *zap.Logger
}

// NewRelayClient creates a client for the block engine at baseURL.
// The HTTP client timeout bounds every call.
func NewRelayClient(logger *zap.Logger, baseURL string, timeout time.Duration) (*RelayClient, error) {
	baseURL = strings.TrimSuffix(baseURL, "/")
	client := &RelayClient{
		baseURL: baseURL,
		logger:  logger.With(zap.String("component", "RelayClient")),
	}

	client.logger.Info("Connecting to block engine", zap.String("relayURL", baseURL))

	rpcClient, err := rpc.DialHTTPWithClient(baseURL+BundlesPath, &http.Client{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to create RPC client: %v", err)
	}
	client.rpcClient = rpcClient

	return client, nil
}

// URL returns the relay base URL
func (c *RelayClient) URL() string {
	return c.baseURL
}

// Close releases the underlying RPC client
func (c *RelayClient) Close() {
	c.rpcClient.Close()
}

// SendBundle submits the base64 encoded transactions as one bundle
func (c *RelayClient) SendBundle(ctx context.Context, encodedTxs []string) SendBundleResult {
	c.logger.Debug("Sending bundle", zap.Int("transactions", len(encodedTxs)))

	var bundleID string
	err := c.rpcClient.CallContext(ctx, &bundleID, "sendBundle", encodedTxs)
	if err != nil {
		return classify(err)
	}
	if bundleID == "" {
		return SendBundleResult{Kind: SendRelayError, Message: "relay returned an empty bundle id"}
	}

	return SendBundleResult{
		Kind:   SendOK,
		Handle: BundleHandle{ID: bundleID, Relay: c.baseURL},
	}
}

// GetBundleStatus queries the relay for the status of a single bundle.
// Returned errors are transport or protocol errors, never bundle outcomes.
func (c *RelayClient) GetBundleStatus(ctx context.Context, bundleID string) (BundleStatusReport, error) {
	var result *bundleStatusesResult
	if err := c.rpcClient.CallContext(ctx, &result, "getBundleStatuses", []string{bundleID}); err != nil {
		return BundleStatusReport{}, fmt.Errorf("getBundleStatuses failed: %w", err)
	}
	if result == nil || len(result.Value) == 0 {
		return BundleStatusReport{Status: BundleStatusUnknown}, nil
	}
	return Interpret(result.Value[0]), nil
}

func classify(err error) SendBundleResult {
	if errors.Is(err, rpc.ErrNoResult) {
		return SendBundleResult{Kind: SendRelayError, Message: "relay returned no result"}
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return SendBundleResult{Kind: SendRelayError, Code: rpcErr.ErrorCode(), Message: rpcErr.Error()}
	}
	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) {
		msg := httpErr.Status
		if len(httpErr.Body) > 0 {
			msg = fmt.Sprintf("%s: %s", httpErr.Status, strings.TrimSpace(string(httpErr.Body)))
		}
		return SendBundleResult{Kind: SendRelayError, Code: httpErr.StatusCode, Message: msg}
	}
	return SendBundleResult{Kind: SendTransportError, Err: err}
}
