package models

import (
	"time"

	"github.com/uptrace/bun"
)

// PromoCode grants a discount at subscription purchase. MaxUses of zero means
// unlimited; a zero ValidUntil means the code never expires.
type PromoCode struct {
	bun.BaseModel `bun:"table:promo_codes"`

	Code               string    `bun:"code,pk" json:"code"`
	DiscountPercentage float64   `bun:"discount_percentage,notnull" json:"discount_percentage"`
	ValidUntil         time.Time `bun:"valid_until,nullzero" json:"valid_until,omitempty"`
	MaxUses            int       `bun:"max_uses,notnull,default:0" json:"max_uses"`
	UsesCount          int       `bun:"uses_count,notnull,default:0" json:"uses_count"`
	CreatedAt          time.Time `bun:"created_at,notnull" json:"created_at"`
}
