package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Transaction statuses.
const (
	TxStatusPending = "pending"
	TxStatusSuccess = "success"
	TxStatusFailed  = "failed"
)

// Transaction is one settlement attempt against an order. The raw payload is
// stored verbatim for audit; at most one success row exists per order.
type Transaction struct {
	bun.BaseModel `bun:"table:transactions"`

	ID          string    `bun:"id,pk" json:"id"`
	OrderID     string    `bun:"order_id,notnull" json:"order_id"`
	GatewayTxID string    `bun:"gateway_tx_id,notnull" json:"gateway_tx_id"`
	Amount      float64   `bun:"amount,notnull" json:"amount"`
	Status      string    `bun:"status,notnull" json:"status"`
	RawPayload  string    `bun:"raw_payload,nullzero" json:"-"`
	AuditNote   string    `bun:"audit_note,nullzero" json:"audit_note,omitempty"`
	CreatedAt   time.Time `bun:"created_at,notnull" json:"created_at"`
}
