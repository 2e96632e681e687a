package controllers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	apperrors "github.com/NewtonMutugi/ict-innovations-africa-backend/common/errors"
	"github.com/NewtonMutugi/ict-innovations-africa-backend/services"
	"github.com/gin-gonic/gin"
)

// PaymentController handles HTTP requests for the Paystack payment flow.
type PaymentController struct {
	paymentService services.PaymentService
}

// NewPaymentController creates a new PaymentController.
func NewPaymentController(svc services.PaymentService) *PaymentController {
	return &PaymentController{paymentService: svc}
}

type referenceRequest struct {
	Reference string `json:"reference"`
}

// Root handles GET /
func (pc *PaymentController) Root(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"message": "Online Payment API"})
}

// Initialize handles POST /api/paystack/initialize
func (pc *PaymentController) Initialize(ctx *gin.Context) {
	var req services.InitializeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		respondError(ctx, apperrors.Validation("Invalid request body"))
		return
	}

	res, err := pc.paymentService.Initialize(ctx.Request.Context(), &req)
	if err != nil {
		respondError(ctx, err)
		return
	}

	// The gateway payload is passed through as-is when present.
	var data interface{} = res
	if len(res.Raw) > 0 {
		data = res.Raw
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "Payment initialized successfully", "data": data})
}

// Verify handles POST|GET /api/paystack/verify
func (pc *PaymentController) Verify(ctx *gin.Context) {
	reference, err := referenceFrom(ctx)
	if err != nil {
		respondError(ctx, err)
		return
	}

	res, err := pc.paymentService.Verify(ctx.Request.Context(), reference)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, res)
}

// Callback handles POST|GET /api/paystack/callback
func (pc *PaymentController) Callback(ctx *gin.Context) {
	reference, err := referenceFrom(ctx)
	if err != nil {
		respondError(ctx, err)
		return
	}

	res, err := pc.paymentService.Callback(ctx.Request.Context(), reference)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, res)
}

// ListPayments handles GET /api/payments
func (pc *PaymentController) ListPayments(ctx *gin.Context) {
	page, limit := parsePaginationParams(ctx)

	res, err := pc.paymentService.List(ctx.Request.Context(), page, limit)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, res)
}

// referenceFrom reads the reference from a JSON body, falling back to the
// reference or trxref query parameters the gateway redirect uses.
func referenceFrom(ctx *gin.Context) (string, error) {
	if ctx.Request.Body != nil && ctx.Request.ContentLength != 0 && ctx.Request.Method != http.MethodGet {
		var body referenceRequest
		if err := ctx.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
			return "", apperrors.Validation("Invalid request body")
		}
		if ref := strings.TrimSpace(body.Reference); ref != "" {
			return ref, nil
		}
	}
	for _, key := range []string{"reference", "trxref"} {
		if ref := strings.TrimSpace(ctx.Query(key)); ref != "" {
			return ref, nil
		}
	}
	return "", apperrors.Validation("reference is required")
}

// parsePaginationParams extracts page/limit query params. Bounds are applied
// by the service.
func parsePaginationParams(ctx *gin.Context) (int, int) {
	page, limit := 1, 20
	if p, err := strconv.Atoi(ctx.DefaultQuery("page", "1")); err == nil {
		page = p
	}
	if l, err := strconv.Atoi(ctx.DefaultQuery("limit", "20")); err == nil {
		limit = l
	}
	return page, limit
}

func respondError(ctx *gin.Context, err error) {
	appErr := apperrors.From(err)
	_ = ctx.Error(err)
	ctx.AbortWithStatusJSON(appErr.Code, gin.H{"error": appErr.Public()})
}
