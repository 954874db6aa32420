package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ms-marketplace/internal/models"

	"github.com/uptrace/bun"
)

// ErrNotFound is returned when a looked-up row does not exist.
var ErrNotFound = errors.New("ledger: not found")

// DB is the durable store for orders, transactions, subscriptions and promo
// codes. All mutating order operations are guarded by conditional updates so
// the order row acts as the serialization point for concurrent webhook
// deliveries.
type DB struct {
	Bun *bun.DB
}

// ---------------- ORDERS ----------------

func (d *DB) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := d.Bun.NewSelect().
		Model(&order).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderByNumber fetches an order by its human-readable order number, the
// reference the payment gateway echoes back in settlement events.
func (d *DB) GetOrderByNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	var order models.Order
	err := d.Bun.NewSelect().
		Model(&order).
		Where("order_number = ?", orderNumber).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (d *DB) CreateOrder(ctx context.Context, order models.Order) error {
	_, err := d.Bun.NewInsert().Model(&order).Exec(ctx)
	return err
}

// ApplyPaidTransition commits the pending->paid transition together with the
// successful transaction row in a single database transaction. The order
// update is conditional on the row still being pending; when a concurrent
// delivery has already won, no rows are touched and applied is false.
func (d *DB) ApplyPaidTransition(ctx context.Context, order *models.Order, txRow models.Transaction) (applied bool, err error) {
	err = d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*models.Order)(nil)).
			Set("status = ?", models.OrderStatusPaid).
			Set("gateway_tx_ref = ?", txRow.GatewayTxID).
			Set("updated_at = ?", time.Now()).
			Where("id = ?", order.ID).
			Where("status = ?", models.OrderStatusPending).
			Exec(ctx)
		if err != nil {
			return err
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			// Another delivery already applied the transition.
			return nil
		}

		if _, err := tx.NewInsert().Model(&txRow).Exec(ctx); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("paid transition for order %s: %w", order.OrderNumber, err)
	}
	return applied, nil
}

// AdvanceOrderStatus moves an order from one fulfillment status to the next.
// The update is conditional on the current status so two operators cannot
// both apply the same transition.
func (d *DB) AdvanceOrderStatus(ctx context.Context, orderID, from, to string) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("status = ?", to).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", orderID).
		Where("status = ?", from).
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

// ---------------- TRANSACTIONS ----------------

func (d *DB) GetTransactionsByOrder(ctx context.Context, orderID string) ([]models.Transaction, error) {
	var txs []models.Transaction
	err := d.Bun.NewSelect().
		Model(&txs).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return txs, nil
}

func (d *DB) InsertTransaction(ctx context.Context, txRow models.Transaction) error {
	_, err := d.Bun.NewInsert().Model(&txRow).Exec(ctx)
	return err
}
