package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

const paystackBaseURL = "https://api.paystack.co"

// DefaultTimeout applies when no positive timeout is configured.
const DefaultTimeout = 15 * time.Second

var hundred = decimal.NewFromInt(100)

// PaystackClient implements PaymentGateway against the Paystack REST API.
type PaystackClient struct {
	client *resty.Client
}

// NewPaystackClient creates a client with bearer auth and a per-request timeout.
func NewPaystackClient(baseURL, secretKey string, timeout time.Duration) *PaystackClient {
	if baseURL == "" {
		baseURL = paystackBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetAuthToken(secretKey).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetTimeout(timeout)
	return &PaystackClient{client: client}
}

// Timeout returns the client-wide request timeout.
func (p *PaystackClient) Timeout() time.Duration {
	return p.client.GetClient().Timeout
}

// ---- Paystack wire structs ----

type paystackEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type paystackInitializeRequest struct {
	Email       string                 `json:"email"`
	Amount      int64                  `json:"amount"` // minor units
	Currency    string                 `json:"currency"`
	CallbackURL string                 `json:"callback_url,omitempty"`
	Channels    []string               `json:"channels,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

type paystackVerifyData struct {
	Reference       string                 `json:"reference"`
	Status          string                 `json:"status"`
	Amount          int64                  `json:"amount"`
	Currency        string                 `json:"currency"`
	Channel         string                 `json:"channel"`
	GatewayResponse string                 `json:"gateway_response"`
	PaidAt          *time.Time             `json:"paid_at"`
	Metadata        map[string]interface{} `json:"-"`
	RawMetadata     json.RawMessage        `json:"metadata"`
}

// ToMinorUnits converts a major-unit amount to the gateway's integer subunit.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

// FromMinorUnits converts a gateway subunit amount back to major units.
func FromMinorUnits(amount int64) decimal.Decimal {
	return decimal.NewFromInt(amount).Div(hundred)
}

// ---- PaymentGateway implementation ----

// Initialize opens a Paystack transaction.
func (p *PaystackClient) Initialize(ctx context.Context, req InitializeRequest) (*InitializeResult, error) {
	body := paystackInitializeRequest{
		Email:       req.Email,
		Amount:      ToMinorUnits(req.Amount),
		Currency:    req.Currency,
		CallbackURL: req.CallbackURL,
		Channels:    req.Channels,
		Metadata:    req.Metadata,
	}

	data, err := p.doRequest(ctx, resty.MethodPost, "/transaction/initialize", body)
	if err != nil {
		return nil, fmt.Errorf("paystack Initialize: %w", err)
	}

	var result InitializeResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("paystack Initialize: decode data: %w", err)
	}
	if result.Reference == "" || result.AuthorizationURL == "" {
		return nil, fmt.Errorf("paystack Initialize: %w", &APIError{Message: "response missing reference or authorization_url"})
	}
	result.Raw = data
	return &result, nil
}

// Verify fetches a Paystack transaction by reference.
func (p *PaystackClient) Verify(ctx context.Context, reference string) (*VerifyResult, error) {
	data, err := p.doRequest(ctx, resty.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil)
	if err != nil {
		return nil, fmt.Errorf("paystack Verify: %w", err)
	}

	var d paystackVerifyData
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("paystack Verify: decode data: %w", err)
	}
	// Paystack sends metadata as an object, an empty string, or a JSON-encoded string.
	d.Metadata = decodeMetadata(d.RawMetadata)

	if d.Reference == "" {
		d.Reference = reference
	}
	return &VerifyResult{
		Reference:       d.Reference,
		Status:          strings.ToLower(d.Status),
		Amount:          FromMinorUnits(d.Amount),
		Currency:        d.Currency,
		Channel:         d.Channel,
		GatewayResponse: d.GatewayResponse,
		PaidAt:          d.PaidAt,
		Metadata:        d.Metadata,
		Raw:             data,
	}, nil
}

// doRequest sends a request and returns the envelope's data field.
func (p *PaystackClient) doRequest(ctx context.Context, method, path string, payload interface{}) (json.RawMessage, error) {
	var env paystackEnvelope
	req := p.client.R().
		SetContext(ctx).
		SetResult(&env).
		SetError(&env)
	if payload != nil {
		req.SetBody(payload)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return nil, err
	}

	if resp.IsError() {
		msg := env.Message
		if msg == "" {
			msg = fmt.Sprintf("unexpected status %d", resp.StatusCode())
		}
		return nil, &APIError{StatusCode: resp.StatusCode(), Message: msg}
	}
	if !env.Status {
		return nil, &APIError{StatusCode: resp.StatusCode(), Message: env.Message}
	}
	return env.Data, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func decodeMetadata(raw json.RawMessage) map[string]interface{} {
	if len(raw) == 0 {
		return nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err == nil {
		return m
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil && s != "" {
		if err := json.Unmarshal([]byte(s), &m); err == nil {
			return m
		}
	}
	return nil
}
