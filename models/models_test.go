package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestIsTerminal(t *testing.T) {
	assert.False(t, IsTerminal(StatusPending))
	assert.True(t, IsTerminal(StatusSuccess))
	assert.True(t, IsTerminal(StatusAbandoned))
	assert.True(t, IsTerminal(StatusFailed))
	assert.False(t, IsTerminal("ongoing"))
}

func TestPriceFor(t *testing.T) {
	plan := &HostingPlan{AnnualPrice: decimal.NewFromInt(5000), MonthlyPrice: decimal.NewFromInt(500)}
	assert.True(t, plan.PriceFor(BillingMonthly).Equal(decimal.NewFromInt(500)))
	assert.True(t, plan.PriceFor(BillingAnnual).Equal(decimal.NewFromInt(5000)))
	assert.True(t, plan.PriceFor("").Equal(decimal.NewFromInt(5000)))
}

func TestEventTypeFor(t *testing.T) {
	assert.Equal(t, EventPaymentSuccess, EventTypeFor(StatusSuccess))
	assert.Equal(t, EventPaymentAbandoned, EventTypeFor(StatusAbandoned))
}
