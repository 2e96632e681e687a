package repository

import (
	"context"
	"errors"

	"github.com/NewtonMutugi/ict-innovations-africa-backend/models"
	"gorm.io/gorm"
)

// HostingPlanRepository is the read side of the plan catalogue.
type HostingPlanRepository interface {
	FindByID(ctx context.Context, id uint) (*models.HostingPlan, error)
}

type GormHostingPlanRepository struct {
	db *gorm.DB
}

func NewGormHostingPlanRepository(db *gorm.DB) HostingPlanRepository {
	return &GormHostingPlanRepository{db: db}
}

func (r *GormHostingPlanRepository) FindByID(ctx context.Context, id uint) (*models.HostingPlan, error) {
	var plan models.HostingPlan
	if err := r.db.WithContext(ctx).First(&plan, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &plan, nil
}
