package repository

import (
	"context"
	"errors"
	"time"

	"github.com/NewtonMutugi/ict-innovations-africa-backend/models"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when no row matches the lookup.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateReference is returned when a reference is already stored.
	ErrDuplicateReference = errors.New("duplicate payment reference")
)

const uniqueViolation = "23505"

// Transition is a guarded status change applied only while the row still
// holds From.
type Transition struct {
	Reference string
	From      string
	To        string
	Payload   datatypes.JSON
	At        time.Time
}

// PaymentRepository defines data-access operations for payment records.
type PaymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	FindByReference(ctx context.Context, reference string) (*models.Payment, error)
	// ApplyTransition reports whether the row was changed by this call.
	ApplyTransition(ctx context.Context, t Transition) (bool, error)
	FindAll(ctx context.Context, page, limit int) ([]models.Payment, int64, error)
	FindStalePending(ctx context.Context, olderThan time.Time, limit int) ([]models.Payment, error)
}

// GormPaymentRepository implements PaymentRepository using GORM.
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewGormPaymentRepository creates a new GormPaymentRepository.
func NewGormPaymentRepository(db *gorm.DB) PaymentRepository {
	return &GormPaymentRepository{db: db}
}

func (r *GormPaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	if err := r.db.WithContext(ctx).Create(payment).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateReference
		}
		return err
	}
	return nil
}

func (r *GormPaymentRepository) FindByReference(ctx context.Context, reference string) (*models.Payment, error) {
	var p models.Payment
	if err := r.db.WithContext(ctx).
		Where("reference = ?", reference).
		First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *GormPaymentRepository) ApplyTransition(ctx context.Context, t Transition) (bool, error) {
	updates := map[string]interface{}{
		"status":     t.To,
		"updated_at": t.At,
	}
	if len(t.Payload) > 0 {
		updates["gateway_payload"] = t.Payload
	}
	if t.To == models.StatusSuccess {
		updates["paid_at"] = t.At
	}

	res := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("reference = ? AND status = ?", t.Reference, t.From).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *GormPaymentRepository) FindAll(ctx context.Context, page, limit int) ([]models.Payment, int64, error) {
	var payments []models.Payment
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Payment{})
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := query.
		Offset(offset).Limit(limit).
		Order("created_at DESC").
		Find(&payments).Error; err != nil {
		return nil, 0, err
	}

	return payments, total, nil
}

func (r *GormPaymentRepository) FindStalePending(ctx context.Context, olderThan time.Time, limit int) ([]models.Payment, error) {
	var payments []models.Payment
	if err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", models.StatusPending, olderThan).
		Order("created_at ASC").
		Limit(limit).
		Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
