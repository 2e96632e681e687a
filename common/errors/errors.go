package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Kind classifies an application error so callers can tell retryable
// upstream failures from terminal client or business failures.
type Kind string

const (
	KindValidation           Kind = "validation"
	KindNotFound             Kind = "not_found"
	KindRecordNotFound       Kind = "record_not_found"
	KindConflict             Kind = "conflict"
	KindGateway              Kind = "gateway"
	KindGatewayTimeout       Kind = "gateway_timeout"
	KindPaymentNotSuccessful Kind = "payment_not_successful"
	KindPaymentFailed        Kind = "payment_failed"
	KindUnauthorized         Kind = "unauthorized"
	KindInternal             Kind = "internal"
)

// Error represents an application error
type Error struct {
	Code    int    `json:"code"`
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	// GatewayStatus is the status reported by the payment gateway, when relevant.
	GatewayStatus string `json:"gateway_status,omitempty"`
	Err           error  `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches errors of the same Kind, so errors.Is(err, ErrConflict) works
// against any conflict regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Retryable reports whether the failure came from an upstream or transient
// condition that a caller may retry.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindGateway, KindGatewayTimeout, KindInternal:
		return true
	}
	return false
}

// Public returns the copy of the error safe to send to clients. Server-side
// failures lose their detail.
func (e *Error) Public() *Error {
	if e.Code >= http.StatusInternalServerError {
		return &Error{Code: e.Code, Kind: e.Kind, Message: http.StatusText(e.Code)}
	}
	return &Error{Code: e.Code, Kind: e.Kind, Message: e.Message, GatewayStatus: e.GatewayStatus}
}

// New creates a new Error
func New(code int, kind Kind, message string, err error) *Error {
	return &Error{
		Code:    code,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Sentinels for errors.Is comparisons.
var (
	ErrValidation           = New(http.StatusBadRequest, KindValidation, "Validation error", nil)
	ErrNotFound             = New(http.StatusNotFound, KindNotFound, "Not found", nil)
	ErrRecordNotFound       = New(http.StatusNotFound, KindRecordNotFound, "Payment record not found", nil)
	ErrConflict             = New(http.StatusConflict, KindConflict, "Conflict", nil)
	ErrGateway              = New(http.StatusBadGateway, KindGateway, "Payment gateway error", nil)
	ErrGatewayTimeout       = New(http.StatusGatewayTimeout, KindGatewayTimeout, "Payment gateway timeout", nil)
	ErrPaymentNotSuccessful = New(http.StatusBadRequest, KindPaymentNotSuccessful, "Payment not successful", nil)
	ErrPaymentFailed        = New(http.StatusBadRequest, KindPaymentFailed, "Payment failed or not successful", nil)
	ErrUnauthorized         = New(http.StatusUnauthorized, KindUnauthorized, "Unauthorized", nil)
	ErrInternalServer       = New(http.StatusInternalServerError, KindInternal, "Internal server error", nil)
)

func Validation(message string) *Error {
	return New(http.StatusBadRequest, KindValidation, message, nil)
}

func NotFound(message string) *Error {
	return New(http.StatusNotFound, KindNotFound, message, nil)
}

// RecordNotFound means the gateway knows a reference this service never
// initialized.
func RecordNotFound(reference string) *Error {
	return New(http.StatusNotFound, KindRecordNotFound, fmt.Sprintf("Payment %s not found", reference), nil)
}

func Conflict(message string, err error) *Error {
	return New(http.StatusConflict, KindConflict, message, err)
}

func Gateway(op string, err error) *Error {
	return New(http.StatusBadGateway, KindGateway, fmt.Sprintf("Payment gateway %s failed", op), err)
}

func GatewayTimeout(op string, err error) *Error {
	return New(http.StatusGatewayTimeout, KindGatewayTimeout, fmt.Sprintf("Payment gateway %s timed out", op), err)
}

func PaymentNotSuccessful(status string) *Error {
	e := New(http.StatusBadRequest, KindPaymentNotSuccessful, fmt.Sprintf("Transaction: %s", status), nil)
	e.GatewayStatus = status
	return e
}

func PaymentFailed(status string) *Error {
	e := New(http.StatusBadRequest, KindPaymentFailed, "Payment failed or not successful", nil)
	e.GatewayStatus = status
	return e
}

func Internal(message string, err error) *Error {
	return New(http.StatusInternalServerError, KindInternal, message, err)
}

// From normalises any error into an *Error. Unknown errors become internal.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return Internal("Internal server error", err)
}

// ErrorMiddleware renders the last error attached to the gin context.
func ErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			appErr := From(c.Errors.Last().Err).Public()
			c.AbortWithStatusJSON(appErr.Code, gin.H{"error": appErr})
		}
	}
}
