package models

import "github.com/shopspring/decimal"

// Billing cycles select which plan price is charged.
const (
	BillingAnnual  = "annual"
	BillingMonthly = "monthly"
)

type HostingPlan struct {
	ID           uint                 `gorm:"primaryKey" json:"id"`
	Title        string               `gorm:"type:varchar(128);not null" json:"title"`
	Subtitle     string               `gorm:"type:varchar(255)" json:"subtitle"`
	AnnualPrice  decimal.Decimal      `gorm:"type:numeric(14,2);not null" json:"annual_price"`
	MonthlyPrice decimal.Decimal      `gorm:"type:numeric(14,2);not null" json:"monthly_price"`
	Features     []HostingPlanFeature `gorm:"foreignKey:PlanID" json:"features"`
}

type HostingPlanFeature struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	PlanID  uint   `gorm:"index;not null" json:"-"`
	Feature string `gorm:"type:varchar(255);not null" json:"feature"`
}

// PriceFor returns the plan price for a billing cycle. Anything other than
// monthly is billed annually.
func (p *HostingPlan) PriceFor(cycle string) decimal.Decimal {
	if cycle == BillingMonthly {
		return p.MonthlyPrice
	}
	return p.AnnualPrice
}
