package routes_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/NewtonMutugi/ict-innovations-africa-backend/common/middleware"
	"github.com/NewtonMutugi/ict-innovations-africa-backend/controllers"
	"github.com/NewtonMutugi/ict-innovations-africa-backend/models"
	"github.com/NewtonMutugi/ict-innovations-africa-backend/providers"
	"github.com/NewtonMutugi/ict-innovations-africa-backend/routes"
	"github.com/NewtonMutugi/ict-innovations-africa-backend/services"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

type stubSvc struct{}

func (stubSvc) Initialize(context.Context, *services.InitializeRequest) (*providers.InitializeResult, error) {
	return &providers.InitializeResult{Reference: "REF123"}, nil
}
func (stubSvc) Verify(_ context.Context, ref string) (*services.VerifyResponse, error) {
	return &services.VerifyResponse{Verification: &providers.VerifyResult{Reference: ref, Status: "success"}}, nil
}
func (stubSvc) Callback(_ context.Context, ref string) (*services.CallbackResult, error) {
	return &services.CallbackResult{Record: &models.Payment{Reference: ref}}, nil
}
func (stubSvc) List(context.Context, int, int) (*services.PaymentPage, error) {
	return &services.PaymentPage{Items: []models.Payment{}, Page: 1, Limit: 20}, nil
}

var secret = []byte("test-secret")

func setupRouter(limiter *middleware.RateLimiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	routes.RegisterPaymentRoutes(r, controllers.NewPaymentController(stubSvc{}), limiter, secret)
	return r
}

func serve(r *gin.Engine, req *http.Request) int {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRoutes_Registered(t *testing.T) {
	r := setupRouter(nil)

	tests := []struct {
		method, path string
		code         int
	}{
		{http.MethodGet, "/", http.StatusOK},
		{http.MethodGet, "/api/paystack/verify?reference=REF123", http.StatusOK},
		{http.MethodPost, "/api/paystack/verify?reference=REF123", http.StatusOK},
		{http.MethodGet, "/api/paystack/callback?trxref=REF123", http.StatusOK},
		{http.MethodPost, "/api/paystack/callback?reference=REF123", http.StatusOK},
		{http.MethodGet, "/api/paystack/initialize", http.StatusNotFound},
		{http.MethodGet, "/api/payments", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			assert.Equal(t, tt.code, serve(r, httptest.NewRequest(tt.method, tt.path, nil)))
		})
	}
}

func TestRoutes_AdminListWithToken(t *testing.T) {
	r := setupRouter(nil)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"role": "admin",
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString(secret)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/payments", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	assert.Equal(t, http.StatusOK, serve(r, req))
}

func TestRoutes_InitializeRateLimited(t *testing.T) {
	r := setupRouter(middleware.NewRateLimiter(rate.Limit(0.001), 1, time.Minute))

	first := httptest.NewRequest(http.MethodPost, "/api/paystack/initialize", nil)
	second := httptest.NewRequest(http.MethodPost, "/api/paystack/initialize", nil)

	// The empty body is rejected by the handler; the second is stopped earlier.
	assert.Equal(t, http.StatusBadRequest, serve(r, first))
	assert.Equal(t, http.StatusTooManyRequests, serve(r, second))
}
