package providers

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrTimeout marks a gateway call that did not answer in time.
var ErrTimeout = errors.New("gateway timeout")

// APIError is a non-2xx or status=false answer from the gateway.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

// InitializeRequest describes a transaction to open at the gateway.
type InitializeRequest struct {
	Email       string
	Amount      decimal.Decimal // major units
	Currency    string
	CallbackURL string
	Channels    []string
	Metadata    map[string]interface{}
}

// InitializeResult is the gateway's answer to an initialization.
type InitializeResult struct {
	Reference        string          `json:"reference"`
	AuthorizationURL string          `json:"authorization_url"`
	AccessCode       string          `json:"access_code"`
	Raw              json.RawMessage `json:"-"`
}

// VerifyResult is the gateway's authoritative view of a transaction.
type VerifyResult struct {
	Reference       string                 `json:"reference"`
	Status          string                 `json:"status"`
	Amount          decimal.Decimal        `json:"amount"` // major units
	Currency        string                 `json:"currency"`
	Channel         string                 `json:"channel,omitempty"`
	GatewayResponse string                 `json:"gateway_response,omitempty"`
	PaidAt          *time.Time             `json:"paid_at,omitempty"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
	Raw             json.RawMessage        `json:"-"`
}

// PaymentGateway defines the operations every gateway integration must implement.
type PaymentGateway interface {
	// Initialize opens a transaction and returns the gateway reference and checkout URL.
	Initialize(ctx context.Context, req InitializeRequest) (*InitializeResult, error)

	// Verify fetches the current status of a transaction by reference.
	Verify(ctx context.Context, reference string) (*VerifyResult, error)
}
