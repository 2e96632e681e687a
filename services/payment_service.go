package services

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/NewtonMutugi/ict-innovations-africa-backend/cache"
	apperrors "github.com/NewtonMutugi/ict-innovations-africa-backend/common/errors"
	"github.com/NewtonMutugi/ict-innovations-africa-backend/common/logger"
	"github.com/NewtonMutugi/ict-innovations-africa-backend/events"
	"github.com/NewtonMutugi/ict-innovations-africa-backend/models"
	awspkg "github.com/NewtonMutugi/ict-innovations-africa-backend/pkg/aws"
	"github.com/NewtonMutugi/ict-innovations-africa-backend/providers"
	"github.com/NewtonMutugi/ict-innovations-africa-backend/repository"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	metricTimeout   = 2 * time.Second
)

// InitializeRequest is the payload for opening a hosting payment.
type InitializeRequest struct {
	Email         string `json:"email" validate:"required,email"`
	FullName      string `json:"full_name" validate:"required,max=255"`
	Phone         string `json:"phone" validate:"omitempty,max=32"`
	HostingPlanID *uint  `json:"hosting_plan_id" validate:"omitempty,gt=0"`
	Country       string `json:"country" validate:"omitempty,len=2,alpha"`
	BillingCycle  string `json:"billing_cycle" validate:"omitempty,oneof=annual monthly"`
}

func (r *InitializeRequest) normalize() {
	r.Email = strings.TrimSpace(r.Email)
	r.FullName = strings.TrimSpace(r.FullName)
	r.Phone = strings.TrimSpace(r.Phone)
	r.Country = strings.ToUpper(strings.TrimSpace(r.Country))
	r.BillingCycle = strings.ToLower(strings.TrimSpace(r.BillingCycle))
}

// VerifyResponse pairs the gateway verification with the local record, which
// is nil when this service never initialized the reference.
type VerifyResponse struct {
	Verification *providers.VerifyResult `json:"verification"`
	Record       *models.Payment         `json:"record"`
}

// CallbackResult reports the record after a callback and whether this call
// changed it.
type CallbackResult struct {
	Record  *models.Payment `json:"record"`
	Changed bool            `json:"changed"`
}

// PaymentPage is one page of payment records.
type PaymentPage struct {
	Items []models.Payment `json:"items"`
	Total int64            `json:"total"`
	Page  int              `json:"page"`
	Limit int              `json:"limit"`
}

// Callbacker is the part of PaymentService background workers drive.
type Callbacker interface {
	Callback(ctx context.Context, reference string) (*CallbackResult, error)
}

// PaymentService defines the payment reconciliation flow.
type PaymentService interface {
	Callbacker
	Initialize(ctx context.Context, req *InitializeRequest) (*providers.InitializeResult, error)
	Verify(ctx context.Context, reference string) (*VerifyResponse, error)
	List(ctx context.Context, page, limit int) (*PaymentPage, error)
}

// Options holds values sent with every gateway initialization.
type Options struct {
	CallbackURL string
	Channels    []string
}

type paymentServiceImpl struct {
	repo      repository.PaymentRepository
	gateway   providers.PaymentGateway
	resolver  AmountResolver
	publisher events.Publisher
	cache     cache.VerificationCache
	metrics   awspkg.MetricsRecorder
	opts      Options
	validate  *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewPaymentService creates a new PaymentService. publisher, verifyCache and
// metrics may be nil.
func NewPaymentService(
	repo repository.PaymentRepository,
	gateway providers.PaymentGateway,
	resolver AmountResolver,
	publisher events.Publisher,
	verifyCache cache.VerificationCache,
	metrics awspkg.MetricsRecorder,
	opts Options,
	logger *zap.Logger,
) PaymentService {
	if publisher == nil {
		publisher = events.Noop{}
	}
	if verifyCache == nil {
		verifyCache = cache.Noop{}
	}
	return &paymentServiceImpl{
		repo:      repo,
		gateway:   gateway,
		resolver:  resolver,
		publisher: publisher,
		cache:     verifyCache,
		metrics:   metrics,
		opts:      opts,
		validate:  newValidator(),
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Initialize opens a gateway transaction and records it as pending.
func (s *paymentServiceImpl) Initialize(ctx context.Context, req *InitializeRequest) (*providers.InitializeResult, error) {
	log := logger.For(ctx, s.logger)
	if req == nil {
		return nil, apperrors.Validation("request body is required")
	}
	req.normalize()
	if err := s.validate.Struct(req); err != nil {
		return nil, apperrors.Validation(validationMessage(err))
	}

	amount, err := s.resolver.Resolve(ctx, AmountRequest{
		HostingPlanID: req.HostingPlanID,
		Country:       req.Country,
		BillingCycle:  defaultBillingCycle(req.BillingCycle),
	})
	if err != nil {
		return nil, err
	}
	if err := validateAmount(amount); err != nil {
		return nil, err
	}

	metadata := map[string]interface{}{
		"amount":    amount.Value.StringFixed(2),
		"email":     req.Email,
		"full_name": req.FullName,
		"phone":     req.Phone,
	}
	if amount.PlanID != nil {
		metadata["hosting_plan_id"] = *amount.PlanID
		metadata["billing_cycle"] = defaultBillingCycle(req.BillingCycle)
	}
	if req.Country != "" {
		metadata["country"] = req.Country
	}

	res, err := s.gateway.Initialize(ctx, providers.InitializeRequest{
		Email:       req.Email,
		Amount:      amount.Value,
		Currency:    amount.Currency,
		CallbackURL: s.opts.CallbackURL,
		Channels:    s.opts.Channels,
		Metadata:    metadata,
	})
	if err != nil {
		log.Error("Gateway initialize failed",
			zap.String("operation", "initialize"),
			zap.String("email", req.Email),
			zap.Error(err),
		)
		return nil, s.gatewayError("initialize", err)
	}

	payment := &models.Payment{
		Reference:        res.Reference,
		Email:            req.Email,
		FullName:         req.FullName,
		Phone:            req.Phone,
		HostingPlanID:    amount.PlanID,
		Country:          req.Country,
		Amount:           amount.Value,
		Currency:         amount.Currency,
		Status:           models.StatusPending,
		AuthorizationURL: res.AuthorizationURL,
		AccessCode:       res.AccessCode,
	}
	if err := s.repo.Create(ctx, payment); err != nil {
		if errors.Is(err, repository.ErrDuplicateReference) {
			log.Warn("Duplicate gateway reference", zap.String("reference", res.Reference))
			return nil, apperrors.Conflict(fmt.Sprintf("Payment %s already exists", res.Reference), err)
		}
		// The gateway transaction exists without a local row from here on.
		log.Error("Failed to persist initialized payment, manual reconciliation required",
			zap.String("operation", "initialize"),
			zap.String("reference", res.Reference),
			zap.Error(err),
		)
		return nil, apperrors.Internal("Failed to save payment record", err)
	}

	log.Info("Payment initialized",
		zap.String("reference", res.Reference),
		zap.String("amount", amount.Value.StringFixed(2)),
		zap.String("currency", amount.Currency),
	)
	s.recordMetric(awspkg.MetricPaymentInitialized)
	return res, nil
}

// Verify reports the gateway status of a reference without touching the store.
func (s *paymentServiceImpl) Verify(ctx context.Context, reference string) (*VerifyResponse, error) {
	reference = strings.TrimSpace(reference)
	log := logger.For(ctx, s.logger).With(zap.String("reference", reference))
	if reference == "" {
		return nil, apperrors.Validation("reference is required")
	}

	result, err := s.cache.Get(ctx, reference)
	if err != nil {
		log.Warn("Verification cache read failed", zap.Error(err))
	}
	if result == nil {
		result, err = s.gateway.Verify(ctx, reference)
		if err != nil {
			log.Error("Gateway verify failed", zap.String("operation", "verify"), zap.Error(err))
			return nil, s.gatewayError("verify", err)
		}
		if result.Status == models.StatusSuccess {
			if err := s.cache.Set(ctx, result); err != nil {
				log.Warn("Verification cache write failed", zap.Error(err))
			}
		}
	}

	if result.Status != models.StatusSuccess {
		return nil, apperrors.PaymentNotSuccessful(result.Status)
	}

	record, err := s.repo.FindByReference(ctx, reference)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		log.Error("Failed to load payment record", zap.Error(err))
		return nil, apperrors.Internal("Failed to load payment record", err)
	}
	return &VerifyResponse{Verification: result, Record: record}, nil
}

// Callback re-verifies a reference with the gateway and applies the resulting
// transition at most once.
func (s *paymentServiceImpl) Callback(ctx context.Context, reference string) (*CallbackResult, error) {
	reference = strings.TrimSpace(reference)
	log := logger.For(ctx, s.logger).With(zap.String("reference", reference))
	if reference == "" {
		return nil, apperrors.Validation("reference is required")
	}

	result, err := s.gateway.Verify(ctx, reference)
	if err != nil {
		log.Error("Gateway verify failed", zap.String("operation", "callback"), zap.Error(err))
		return nil, s.gatewayError("verify", err)
	}

	var target string
	switch result.Status {
	case models.StatusSuccess, models.StatusAbandoned:
		target = result.Status
	default:
		log.Info("Callback for unsettled payment", zap.String("gateway_status", result.Status))
		return nil, apperrors.PaymentFailed(result.Status)
	}

	record, err := s.repo.FindByReference(ctx, reference)
	if errors.Is(err, repository.ErrNotFound) {
		log.Warn("Callback for unknown reference")
		s.recordMetric(awspkg.MetricRecordNotFound)
		return nil, apperrors.RecordNotFound(reference)
	}
	if err != nil {
		log.Error("Failed to load payment record", zap.Error(err))
		return nil, apperrors.Internal("Failed to load payment record", err)
	}

	if record.Status == target {
		log.Info("Skipping duplicate callback", zap.String("status", record.Status))
		return &CallbackResult{Record: record, Changed: false}, nil
	}
	if models.IsTerminal(record.Status) {
		return nil, conflictFor(record, target)
	}

	now := s.now()
	applied, err := s.repo.ApplyTransition(ctx, repository.Transition{
		Reference: reference,
		From:      models.StatusPending,
		To:        target,
		Payload:   datatypes.JSON(result.Raw),
		At:        now,
	})
	if err != nil {
		log.Error("Failed to update payment status", zap.String("to", target), zap.Error(err))
		return nil, apperrors.Internal("Failed to update payment record", err)
	}

	if !applied {
		// Another delivery moved the record between the read and the update.
		current, err := s.repo.FindByReference(ctx, reference)
		if err != nil {
			return nil, apperrors.Internal("Failed to reload payment record", err)
		}
		if current.Status == target {
			return &CallbackResult{Record: current, Changed: false}, nil
		}
		return nil, conflictFor(current, target)
	}

	record.Status = target
	record.UpdatedAt = now
	if len(result.Raw) > 0 {
		record.GatewayPayload = datatypes.JSON(result.Raw)
	}
	if target == models.StatusSuccess {
		record.PaidAt = &now
		if err := s.cache.Set(ctx, result); err != nil {
			log.Warn("Verification cache write failed", zap.Error(err))
		}
		s.recordMetric(awspkg.MetricPaymentSucceeded)
	} else {
		s.recordMetric(awspkg.MetricPaymentAbandoned)
	}

	log.Info("Payment status updated", zap.String("status", target))
	s.publish(ctx, record)
	return &CallbackResult{Record: record, Changed: true}, nil
}

// List returns payment records newest first.
func (s *paymentServiceImpl) List(ctx context.Context, page, limit int) (*PaymentPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	items, total, err := s.repo.FindAll(ctx, page, limit)
	if err != nil {
		logger.For(ctx, s.logger).Error("Failed to list payments", zap.Error(err))
		return nil, apperrors.Internal("Failed to list payments", err)
	}
	if items == nil {
		items = []models.Payment{}
	}
	return &PaymentPage{Items: items, Total: total, Page: page, Limit: limit}, nil
}

func (s *paymentServiceImpl) gatewayError(op string, err error) error {
	if errors.Is(err, providers.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		s.recordMetric(awspkg.MetricGatewayTimeouts)
		return apperrors.GatewayTimeout(op, err)
	}
	s.recordMetric(awspkg.MetricGatewayErrors)
	return apperrors.Gateway(op, err)
}

// publish is best effort. Delivery failures are logged, not returned, since
// the transition is already committed.
func (s *paymentServiceImpl) publish(ctx context.Context, p *models.Payment) {
	event := models.PaymentEvent{
		EventID:   uuid.NewString(),
		Type:      models.EventTypeFor(p.Status),
		Reference: p.Reference,
		Email:     p.Email,
		FullName:  p.FullName,
		PlanID:    p.HostingPlanID,
		Status:    p.Status,
		Amount:    p.Amount,
		Currency:  p.Currency,
		Timestamp: p.UpdatedAt,
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Error("Failed to publish payment event",
			zap.String("reference", p.Reference),
			zap.String("event_type", event.Type),
			zap.Error(err),
		)
		return
	}
	s.logger.Info("Published payment event", zap.String("reference", p.Reference), zap.String("event_type", event.Type))
}

// recordMetric blocks the caller for at most metricTimeout.
func (s *paymentServiceImpl) recordMetric(name string) {
	if s.metrics == nil || !s.metrics.IsEnabled() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), metricTimeout)
	defer cancel()
	if err := s.metrics.RecordCount(ctx, name, map[string]string{"Service": "hosting-payments"}); err != nil {
		s.logger.Debug("Metric not recorded", zap.String("metric", name), zap.Error(err))
	}
}

func conflictFor(p *models.Payment, target string) error {
	return apperrors.Conflict(fmt.Sprintf("Payment %s is already %s, cannot mark %s", p.Reference, p.Status, target), nil)
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return fmt.Sprintf("%s must be a valid email address", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	case "len":
		return fmt.Sprintf("%s must be %s characters", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
