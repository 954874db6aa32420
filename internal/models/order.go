package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Order statuses. Transitions only move forward:
// pending -> paid -> shipped -> delivered, or pending -> cancelled.
const (
	OrderStatusPending   = "pending"
	OrderStatusPaid      = "paid"
	OrderStatusShipped   = "shipped"
	OrderStatusDelivered = "delivered"
	OrderStatusCancelled = "cancelled"
)

type Order struct {
	bun.BaseModel `bun:"table:orders"`

	ID           string    `bun:"id,pk" json:"id"`
	OrderNumber  string    `bun:"order_number,unique,notnull" json:"order_number"`
	StoreID      string    `bun:"store_id,notnull" json:"store_id"`
	UserID       string    `bun:"user_id,notnull" json:"user_id"`
	Total        float64   `bun:"total,notnull" json:"total"`
	Status       string    `bun:"status,notnull" json:"status"`
	GatewayTxRef string    `bun:"gateway_tx_ref,nullzero" json:"gateway_tx_ref,omitempty"`
	CreatedAt    time.Time `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt    time.Time `bun:"updated_at,nullzero" json:"updated_at"`
}

// FulfillmentNext maps a current order status to the only statuses an operator
// may move it to. The pending->paid edge is reserved for the gateway webhook.
var FulfillmentNext = map[string][]string{
	OrderStatusPending: {OrderStatusCancelled},
	OrderStatusPaid:    {OrderStatusShipped},
	OrderStatusShipped: {OrderStatusDelivered},
}

// CanAdvanceTo reports whether an operator transition from -> to is allowed.
func CanAdvanceTo(from, to string) bool {
	for _, next := range FulfillmentNext[from] {
		if next == to {
			return true
		}
	}
	return false
}
