package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	apperrors "github.com/NewtonMutugi/ict-innovations-africa-backend/common/errors"
	"github.com/NewtonMutugi/ict-innovations-africa-backend/models"
	"github.com/NewtonMutugi/ict-innovations-africa-backend/repository"
	"github.com/shopspring/decimal"
)

// AmountRequest carries the determinants an amount is resolved from. At most
// one of HostingPlanID and Country may be set; with neither the fixed tariff
// applies.
type AmountRequest struct {
	HostingPlanID *uint
	Country       string
	BillingCycle  string
}

// Amount is a resolved charge in major units.
type Amount struct {
	Value    decimal.Decimal
	Currency string
	PlanID   *uint
}

// AmountResolver turns request determinants into a charge.
type AmountResolver interface {
	Resolve(ctx context.Context, req AmountRequest) (Amount, error)
}

// FixedTariff charges the same amount for every request.
type FixedTariff struct {
	Value    decimal.Decimal
	Currency string
}

func (f FixedTariff) Resolve(_ context.Context, _ AmountRequest) (Amount, error) {
	return Amount{Value: f.Value, Currency: f.Currency}, nil
}

// CountryTariff charges by ISO country code.
type CountryTariff struct {
	Tariffs  map[string]decimal.Decimal
	Currency string
}

func (c CountryTariff) Resolve(_ context.Context, req AmountRequest) (Amount, error) {
	code := strings.ToUpper(strings.TrimSpace(req.Country))
	v, ok := c.Tariffs[code]
	if !ok {
		return Amount{}, apperrors.Validation(fmt.Sprintf("No tariff configured for country %s", code))
	}
	return Amount{Value: v, Currency: c.Currency}, nil
}

// PlanPricing charges the price of a stored hosting plan.
type PlanPricing struct {
	Plans    repository.HostingPlanRepository
	Currency string
}

func (p PlanPricing) Resolve(ctx context.Context, req AmountRequest) (Amount, error) {
	if req.HostingPlanID == nil {
		return Amount{}, apperrors.Validation("hosting_plan_id is required")
	}
	plan, err := p.Plans.FindByID(ctx, *req.HostingPlanID)
	if errors.Is(err, repository.ErrNotFound) {
		return Amount{}, apperrors.NotFound(fmt.Sprintf("Hosting plan %d not found", *req.HostingPlanID))
	}
	if err != nil {
		return Amount{}, apperrors.Internal("Failed to load hosting plan", err)
	}
	id := plan.ID
	return Amount{Value: plan.PriceFor(req.BillingCycle), Currency: p.Currency, PlanID: &id}, nil
}

// TariffResolver dispatches to plan, country or fixed pricing depending on
// which determinant the request carries.
type TariffResolver struct {
	Fixed   AmountResolver
	Country AmountResolver
	Plan    AmountResolver
}

func (t TariffResolver) Resolve(ctx context.Context, req AmountRequest) (Amount, error) {
	hasPlan := req.HostingPlanID != nil
	hasCountry := strings.TrimSpace(req.Country) != ""

	switch {
	case hasPlan && hasCountry:
		return Amount{}, apperrors.Validation("Provide either hosting_plan_id or country, not both")
	case hasPlan && t.Plan != nil:
		return t.Plan.Resolve(ctx, req)
	case hasCountry && t.Country != nil:
		return t.Country.Resolve(ctx, req)
	case !hasPlan && !hasCountry && t.Fixed != nil:
		return t.Fixed.Resolve(ctx, req)
	}
	return Amount{}, apperrors.Validation("Unsupported amount determinant")
}

// validateAmount rejects charges the gateway would refuse.
func validateAmount(a Amount) error {
	if !a.Value.IsPositive() {
		return apperrors.Validation("amount must be greater than zero")
	}
	if strings.TrimSpace(a.Currency) == "" {
		return apperrors.Validation("currency is required")
	}
	return nil
}

// defaultBillingCycle keeps plan pricing annual unless monthly is asked for.
func defaultBillingCycle(cycle string) string {
	if strings.EqualFold(cycle, models.BillingMonthly) {
		return models.BillingMonthly
	}
	return models.BillingAnnual
}
