package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Stored subscription statuses. Active rows may still be expired; effective
// state is always derived from the period boundaries at read time.
const (
	SubscriptionStatusActive    = "active"
	SubscriptionStatusCancelled = "cancelled"
)

// Payment methods accepted at subscription purchase.
const (
	PaymentMethodGateway   = "gateway"
	PaymentMethodPromoCode = "promo_code"
)

type Subscription struct {
	bun.BaseModel `bun:"table:subscriptions"`

	ID                 string    `bun:"id,pk" json:"id"`
	UserID             string    `bun:"user_id,notnull" json:"user_id"`
	PlanType           string    `bun:"plan_type,notnull" json:"plan_type"`
	Status             string    `bun:"status,notnull" json:"status"`
	CurrentPeriodStart time.Time `bun:"current_period_start,notnull" json:"current_period_start"`
	CurrentPeriodEnd   time.Time `bun:"current_period_end,notnull" json:"current_period_end"`
	PaymentMethod      string    `bun:"payment_method,notnull" json:"payment_method"`
	GatewayRef         string    `bun:"gateway_ref,nullzero" json:"gateway_ref,omitempty"`
	CreatedAt          time.Time `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt          time.Time `bun:"updated_at,nullzero" json:"updated_at"`
}
