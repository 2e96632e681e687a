package database

import (
	"context"
	"fmt"
	"time"

	"github.com/NewtonMutugi/ict-innovations-africa-backend/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const maxAttempts = 10

// ConnectPostgres opens the database with retry and pool settings, then
// migrates the given models.
func ConnectPostgres(ctx context.Context, dsn string, logger *zap.Logger, autoMigrateModels ...interface{}) (*gorm.DB, error) {
	var db *gorm.DB
	var err error

	for i := 0; i < maxAttempts; i++ {
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
		if err == nil {
			sqlDB, poolErr := db.DB()
			if poolErr == nil {
				sqlDB.SetMaxOpenConns(25)
				sqlDB.SetMaxIdleConns(5)
				sqlDB.SetConnMaxLifetime(5 * time.Minute)
			}

			logger.Info("Connected to PostgreSQL successfully")

			if len(autoMigrateModels) > 0 {
				if err := db.WithContext(ctx).AutoMigrate(autoMigrateModels...); err != nil {
					return nil, fmt.Errorf("AutoMigrate failed: %w", err)
				}
			}
			return db, nil
		}

		logger.Warn("DB connection failed, retrying",
			zap.Int("attempt", i+1),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(i+1) * 2 * time.Second):
		}
	}

	return nil, fmt.Errorf("failed to connect to PostgreSQL after retries: %w", err)
}

// Connect opens the payment database and migrates its tables.
func Connect(ctx context.Context, dsn string, logger *zap.Logger) (*gorm.DB, error) {
	db, err := ConnectPostgres(ctx, dsn, logger,
		&models.HostingPlan{},
		&models.HostingPlanFeature{},
		&models.Payment{},
	)
	if err != nil {
		logger.Error("Failed to connect to PostgreSQL", zap.Error(err))
		return nil, err
	}
	return db, nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	return sqlDB.Close()
}

// DefaultPlans are the plans offered on the hosting page.
func DefaultPlans() []models.HostingPlan {
	return []models.HostingPlan{
		{
			ID: 1, Title: "Starter", Subtitle: "For personal sites",
			AnnualPrice: decimal.NewFromInt(5000), MonthlyPrice: decimal.NewFromInt(500),
			Features: []models.HostingPlanFeature{{Feature: "1 website"}, {Feature: "10 GB SSD storage"}, {Feature: "Free SSL"}},
		},
		{
			ID: 2, Title: "Business", Subtitle: "For growing teams",
			AnnualPrice: decimal.NewFromInt(12000), MonthlyPrice: decimal.NewFromInt(1200),
			Features: []models.HostingPlanFeature{{Feature: "10 websites"}, {Feature: "50 GB SSD storage"}, {Feature: "Daily backups"}},
		},
	}
}

// SeedPlans inserts plans that do not exist yet, keyed by id.
func SeedPlans(ctx context.Context, db *gorm.DB, plans []models.HostingPlan) error {
	for i := range plans {
		res := db.WithContext(ctx).Omit("Features").Clauses(clause.OnConflict{DoNothing: true}).Create(&plans[i])
		if res.Error != nil {
			return fmt.Errorf("seed plan %d: %w", plans[i].ID, res.Error)
		}
		if res.RowsAffected == 0 {
			continue
		}
		for j := range plans[i].Features {
			plans[i].Features[j].PlanID = plans[i].ID
		}
		if len(plans[i].Features) > 0 {
			if err := db.WithContext(ctx).Create(&plans[i].Features).Error; err != nil {
				return fmt.Errorf("seed features for plan %d: %w", plans[i].ID, err)
			}
		}
	}
	return nil
}
