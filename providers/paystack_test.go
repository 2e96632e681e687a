package providers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/NewtonMutugi/ict-innovations-africa-backend/providers"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestInitialize_Success(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/transaction/initialize", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, http.StatusOK, `{"status":true,"message":"Authorization URL created",
			"data":{"authorization_url":"https://checkout.paystack.com/abc","access_code":"abc","reference":"REF123"}}`)
	}))
	defer srv.Close()

	client := providers.NewPaystackClient(srv.URL, "sk_test", 2*time.Second)
	res, err := client.Initialize(context.Background(), providers.InitializeRequest{
		Email:       "jane@example.com",
		Amount:      decimal.NewFromInt(5000),
		Currency:    "KES",
		CallbackURL: "https://example.com/callback",
		Channels:    []string{"mobile_money", "card"},
		Metadata:    map[string]interface{}{"full_name": "Jane"},
	})

	require.NoError(t, err)
	assert.Equal(t, "REF123", res.Reference)
	assert.Equal(t, "https://checkout.paystack.com/abc", res.AuthorizationURL)
	assert.Equal(t, "abc", res.AccessCode)
	assert.JSONEq(t, `{"authorization_url":"https://checkout.paystack.com/abc","access_code":"abc","reference":"REF123"}`, string(res.Raw))
	assert.Equal(t, float64(500000), got["amount"])
	assert.Equal(t, "KES", got["currency"])
}

func TestInitialize_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, `{"status":false,"message":"Invalid key"}`)
	}))
	defer srv.Close()

	client := providers.NewPaystackClient(srv.URL, "bad", 2*time.Second)
	_, err := client.Initialize(context.Background(), providers.InitializeRequest{Email: "a@b.co", Amount: decimal.NewFromInt(1), Currency: "KES"})

	var apiErr *providers.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "Invalid key", apiErr.Message)
	assert.False(t, errors.Is(err, providers.ErrTimeout))
}

func TestInitialize_StatusFalseOn200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"status":false,"message":"Currency not supported"}`)
	}))
	defer srv.Close()

	client := providers.NewPaystackClient(srv.URL, "sk", 2*time.Second)
	_, err := client.Initialize(context.Background(), providers.InitializeRequest{Email: "a@b.co", Amount: decimal.NewFromInt(1), Currency: "XYZ"})
	assert.ErrorContains(t, err, "Currency not supported")
}

func TestVerify_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/transaction/verify/REF123", r.URL.Path)
		writeJSON(w, http.StatusOK, `{"status":true,"message":"Verification successful","data":{
			"reference":"REF123","status":"success","amount":500000,"currency":"KES",
			"channel":"mobile_money","gateway_response":"Approved","paid_at":"2026-01-02T10:00:00Z",
			"metadata":{"full_name":"Jane"}}}`)
	}))
	defer srv.Close()

	client := providers.NewPaystackClient(srv.URL, "sk", 2*time.Second)
	res, err := client.Verify(context.Background(), "REF123")

	require.NoError(t, err)
	assert.Equal(t, "success", res.Status)
	assert.True(t, res.Amount.Equal(decimal.NewFromInt(5000)))
	assert.Equal(t, "Jane", res.Metadata["full_name"])
	require.NotNil(t, res.PaidAt)
	assert.Equal(t, 2026, res.PaidAt.Year())
	assert.NotEmpty(t, res.Raw)
}

func TestVerify_StringMetadata(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"status":true,"data":{"reference":"R1","status":"abandoned","amount":100,"metadata":""}}`)
	}))
	defer srv.Close()

	client := providers.NewPaystackClient(srv.URL, "sk", 2*time.Second)
	res, err := client.Verify(context.Background(), "R1")

	require.NoError(t, err)
	assert.Equal(t, "abandoned", res.Status)
	assert.Nil(t, res.Metadata)
	assert.Nil(t, res.PaidAt)
}

func TestVerify_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		writeJSON(w, http.StatusOK, `{"status":true,"data":{}}`)
	}))
	defer srv.Close()

	client := providers.NewPaystackClient(srv.URL, "sk", 50*time.Millisecond)
	_, err := client.Verify(context.Background(), "REF123")

	assert.True(t, errors.Is(err, providers.ErrTimeout))
}

func TestNewPaystackClient_NonPositiveTimeoutFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"status":true,"data":{"reference":"REF123","status":"success","amount":500000}}`)
	}))
	defer srv.Close()

	client := providers.NewPaystackClient(srv.URL, "sk_test", 0)
	assert.Equal(t, providers.DefaultTimeout, client.Timeout())

	_, err := client.Verify(context.Background(), "REF123")
	assert.NoError(t, err)
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(500000), providers.ToMinorUnits(decimal.NewFromInt(5000)))
	assert.Equal(t, int64(1999), providers.ToMinorUnits(decimal.RequireFromString("19.99")))
	assert.True(t, providers.FromMinorUnits(1999).Equal(decimal.RequireFromString("19.99")))
}
