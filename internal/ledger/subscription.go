package ledger

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"ms-marketplace/internal/models"
)

func (d *DB) GetSubscriptionByID(ctx context.Context, id string) (*models.Subscription, error) {
	var sub models.Subscription
	err := d.Bun.NewSelect().
		Model(&sub).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (d *DB) GetSubscriptionsByUser(ctx context.Context, userID string) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := d.Bun.NewSelect().
		Model(&subs).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return subs, nil
}

func (d *DB) CreateSubscription(ctx context.Context, sub models.Subscription) error {
	_, err := d.Bun.NewInsert().Model(&sub).Exec(ctx)
	return err
}

// RenewSubscription extends the billing period after a gateway settlement.
func (d *DB) RenewSubscription(ctx context.Context, id string, periodStart, periodEnd time.Time) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Subscription)(nil)).
		Set("current_period_start = ?", periodStart).
		Set("current_period_end = ?", periodEnd).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Where("status = ?", models.SubscriptionStatusActive).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// CancelSubscription marks a subscription administratively cancelled. Rows are
// never deleted.
func (d *DB) CancelSubscription(ctx context.Context, id string) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Subscription)(nil)).
		Set("status = ?", models.SubscriptionStatusCancelled).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Where("status = ?", models.SubscriptionStatusActive).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}
