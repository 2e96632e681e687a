package services

import (
	"context"
	"errors"
	"time"

	apperrors "github.com/NewtonMutugi/ict-innovations-africa-backend/common/errors"
	"github.com/NewtonMutugi/ict-innovations-africa-backend/repository"
	"go.uber.org/zap"
)

// ReconcileSummary counts the outcomes of one sweep.
type ReconcileSummary struct {
	Checked   int
	Updated   int
	Unsettled int
	Errors    int
}

// Reconciler re-drives payments left pending, for customers who never
// returned through the gateway redirect.
type Reconciler struct {
	repo     repository.PaymentRepository
	svc      Callbacker
	interval time.Duration
	after    time.Duration
	batch    int
	logger   *zap.Logger
	now      func() time.Time
}

const defaultReconcileInterval = 5 * time.Minute

func NewReconciler(repo repository.PaymentRepository, svc Callbacker, interval, after time.Duration, batch int, logger *zap.Logger) *Reconciler {
	if batch < 1 {
		batch = 50
	}
	if interval <= 0 {
		interval = defaultReconcileInterval
	}
	return &Reconciler{
		repo:     repo,
		svc:      svc,
		interval: interval,
		after:    after,
		batch:    batch,
		logger:   logger,
		now:      time.Now,
	}
}

// Run sweeps every interval until ctx is done.
func (r *Reconciler) Run(ctx context.Context) {
	r.logger.Info("Starting reconciler",
		zap.Duration("interval", r.interval),
		zap.Duration("after", r.after),
		zap.Int("batch", r.batch),
	)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Reconciler stopped")
			return
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
				r.logger.Error("Reconcile sweep failed", zap.Error(err))
			}
		}
	}
}

// RunOnce runs Callback for each stale pending payment.
func (r *Reconciler) RunOnce(ctx context.Context) (ReconcileSummary, error) {
	var sum ReconcileSummary

	stale, err := r.repo.FindStalePending(ctx, r.now().Add(-r.after), r.batch)
	if err != nil {
		return sum, err
	}

	for _, p := range stale {
		if ctx.Err() != nil {
			return sum, ctx.Err()
		}
		sum.Checked++

		res, err := r.svc.Callback(ctx, p.Reference)
		switch {
		case err == nil:
			if res.Changed {
				sum.Updated++
			}
		case errors.Is(err, apperrors.ErrPaymentFailed):
			sum.Unsettled++
		default:
			sum.Errors++
			r.logger.Warn("Reconcile callback failed", zap.String("reference", p.Reference), zap.Error(err))
		}
	}

	if sum.Checked > 0 {
		r.logger.Info("Reconcile sweep finished",
			zap.Int("checked", sum.Checked),
			zap.Int("updated", sum.Updated),
			zap.Int("unsettled", sum.Unsettled),
			zap.Int("errors", sum.Errors),
		)
	}
	return sum, nil
}
