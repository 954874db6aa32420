package ledger

import (
	"context"
	"database/sql"
	"errors"

	"ms-marketplace/internal/models"

	"github.com/uptrace/bun"
)

// ErrPromoExhausted is returned when the conditional usage increment finds no
// remaining uses. It is the race-safe backstop for max_uses enforcement.
var ErrPromoExhausted = errors.New("ledger: promo code usage limit reached")

func (d *DB) GetPromoCode(ctx context.Context, code string) (*models.PromoCode, error) {
	var promo models.PromoCode
	err := d.Bun.NewSelect().
		Model(&promo).
		Where("code = ?", code).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &promo, nil
}

func (d *DB) CreatePromoCode(ctx context.Context, promo models.PromoCode) error {
	_, err := d.Bun.NewInsert().Model(&promo).Exec(ctx)
	return err
}

// RedeemPromoAndCreateSubscription increments the promo usage counter and
// inserts the dependent subscription in one transaction. The increment is
// conditional (not read-then-write) so concurrent redemptions racing on the
// last remaining use cannot both succeed; the loser rolls back with
// ErrPromoExhausted and no subscription row.
func (d *DB) RedeemPromoAndCreateSubscription(ctx context.Context, code string, sub models.Subscription) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*models.PromoCode)(nil)).
			Set("uses_count = uses_count + 1").
			Where("code = ?", code).
			Where("max_uses = 0 OR max_uses IS NULL OR uses_count < max_uses").
			Exec(ctx)
		if err != nil {
			return err
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrPromoExhausted
		}

		_, err = tx.NewInsert().Model(&sub).Exec(ctx)
		return err
	})
}
