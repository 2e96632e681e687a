package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Payment status constants. A record moves pending -> success|abandoned once.
// StatusFailed is a valid stored value that no flow in this service writes.
const (
	StatusPending   = "pending"
	StatusSuccess   = "success"
	StatusAbandoned = "abandoned"
	StatusFailed    = "failed"
)

// IsTerminal reports whether status is a final state.
func IsTerminal(status string) bool {
	switch status {
	case StatusSuccess, StatusAbandoned, StatusFailed:
		return true
	}
	return false
}

// Payment is the local record of one gateway transaction.
type Payment struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	Reference     string          `gorm:"type:varchar(128);uniqueIndex;not null" json:"reference"`
	Email         string          `gorm:"type:varchar(255);not null;index" json:"email"`
	FullName      string          `gorm:"type:varchar(255);not null" json:"full_name"`
	Phone         string          `gorm:"type:varchar(32)" json:"phone,omitempty"`
	HostingPlanID *uint           `gorm:"index" json:"hosting_plan_id,omitempty"`
	Country       string          `gorm:"type:varchar(2)" json:"country,omitempty"`
	Amount        decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"amount"`
	Currency      string          `gorm:"type:varchar(3);not null" json:"currency"`
	Status        string          `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`

	AuthorizationURL string         `gorm:"type:varchar(1024)" json:"authorization_url,omitempty"`
	AccessCode       string         `gorm:"type:varchar(128)" json:"access_code,omitempty"`
	GatewayPayload   datatypes.JSON `gorm:"type:jsonb" json:"gateway_payload,omitempty"` // last verified payload
	PaidAt           *time.Time     `json:"paid_at,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Payment) TableName() string { return "hosting_payments" }

// PaymentEvent is published once per applied status transition.
type PaymentEvent struct {
	EventID   string          `json:"event_id"`
	Type      string          `json:"type"` // payment_success or payment_abandoned
	Reference string          `json:"reference"`
	Email     string          `json:"email"`
	FullName  string          `json:"full_name"`
	PlanID    *uint           `json:"hosting_plan_id,omitempty"`
	Status    string          `json:"status"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Timestamp time.Time       `json:"timestamp"`
}

// Event types.
const (
	EventPaymentSuccess   = "payment_success"
	EventPaymentAbandoned = "payment_abandoned"
)

// EventTypeFor maps a terminal status to its event type.
func EventTypeFor(status string) string {
	if status == StatusSuccess {
		return EventPaymentSuccess
	}
	return EventPaymentAbandoned
}
