package reconciler

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"ms-marketplace/internal/ledger"
	"ms-marketplace/internal/logger"
	"ms-marketplace/internal/models"

	"github.com/google/uuid"
)

// LedgerStore is the slice of the ledger the reconciler needs.
type LedgerStore interface {
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	GetOrderByNumber(ctx context.Context, orderNumber string) (*models.Order, error)
	ApplyPaidTransition(ctx context.Context, order *models.Order, txRow models.Transaction) (bool, error)
	AdvanceOrderStatus(ctx context.Context, orderID, from, to string) (bool, error)
}

// Notifier issues best-effort notifications after a committed transition.
// Implementations must never block the caller or surface failures back.
type Notifier interface {
	NotifyBuyerOrderPaid(order models.Order)
	NotifyBuyerOrderStatus(order models.Order, status string)
	NotifySellerNewOrder(order models.Order)
}

// Result describes the outcome of reconciling one settlement event.
type Result struct {
	OrderID        string
	OrderNumber    string
	Applied        bool // true when this delivery performed the pending->paid transition
	Replay         bool // true when the event was an idempotent replay
	Ignored        bool // true when the event carried a non-success settlement
	AmountMismatch bool // settled amount differed from the order total beyond epsilon
}

// Service is the state machine that maps verified gateway events onto order
// and transaction transitions. It owns idempotency and the amount
// verification policy.
type Service struct {
	DB            LedgerStore
	Notifier      Notifier
	AmountEpsilon float64
	Log           *logger.Logger
}

func NewService(db LedgerStore, notifier Notifier, amountEpsilon float64, log *logger.Logger) *Service {
	return &Service{
		DB:            db,
		Notifier:      notifier,
		AmountEpsilon: amountEpsilon,
		Log:           log,
	}
}

// Reconcile applies one gateway settlement event to the ledger. Delivery is
// at-least-once, so every step re-checks state: replays of an already-paid
// order succeed without re-applying side effects.
func (s *Service) Reconcile(ctx context.Context, event models.GatewayEvent) (*Result, error) {
	result := &Result{OrderNumber: event.TxRef}

	// Only successful settlements drive state change.
	if !event.IsSuccessful() {
		s.Log.LogWebhook(event.Event, event.TxRef, fmt.Sprintf("Ignoring settlement with status %q", event.Status))
		result.Ignored = true
		return result, nil
	}

	order, err := s.DB.GetOrderByNumber(ctx, event.TxRef)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			s.Log.Error("RECONCILE", fmt.Sprintf("No order found for reference %s", event.TxRef))
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	result.OrderID = order.ID

	// Cross-check the settled amount. A mismatch is flagged for manual review
	// but does not block the transition: gateway settlement is authoritative
	// evidence of payment, and a paid customer must not be left pending.
	auditNote := ""
	if diff := math.Abs(order.Total - event.Amount); diff > s.AmountEpsilon {
		result.AmountMismatch = true
		auditNote = fmt.Sprintf("amount mismatch: order total %.2f, settled %.2f", order.Total, event.Amount)
		s.Log.Warn("RECONCILE", fmt.Sprintf("Order %s: %s - flagged for review", order.OrderNumber, auditNote))
	}

	// Idempotency guard: a non-pending order means this delivery is a replay.
	if order.Status != models.OrderStatusPending {
		s.Log.LogOrder("REPLAY", order.OrderNumber, fmt.Sprintf("Order already %s, treating delivery as idempotent replay", order.Status))
		result.Replay = true
		return result, nil
	}

	txRow := models.Transaction{
		ID:          uuid.New().String(),
		OrderID:     order.ID,
		GatewayTxID: event.GatewayTxID,
		Amount:      event.Amount,
		Status:      models.TxStatusSuccess,
		RawPayload:  string(event.Raw),
		AuditNote:   auditNote,
		CreatedAt:   time.Now(),
	}

	applied, err := s.DB.ApplyPaidTransition(ctx, order, txRow)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if !applied {
		// A concurrent delivery won the conditional update.
		s.Log.LogOrder("REPLAY", order.OrderNumber, "Concurrent delivery already applied pending->paid")
		result.Replay = true
		return result, nil
	}

	s.Log.LogOrder("PAID", order.OrderNumber, fmt.Sprintf("Order marked paid (gateway tx %s)", event.GatewayTxID))
	result.Applied = true

	// Side effects only after the commit, and only on the winning delivery.
	order.Status = models.OrderStatusPaid
	order.GatewayTxRef = event.GatewayTxID
	s.Notifier.NotifyBuyerOrderPaid(*order)
	s.Notifier.NotifySellerNewOrder(*order)

	return result, nil
}

// AdvanceFulfillment moves a paid order through shipment by operator action.
// Transitions that are not adjacent in the fulfillment graph are rejected;
// pending->paid in particular is reserved for the gateway.
func (s *Service) AdvanceFulfillment(ctx context.Context, orderID, newStatus string) (*models.Order, error) {
	order, err := s.DB.GetOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	if !models.CanAdvanceTo(order.Status, newStatus) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, newStatus)
	}

	applied, err := s.DB.AdvanceOrderStatus(ctx, orderID, order.Status, newStatus)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if !applied {
		// The row moved under us; re-read and report the conflict.
		current, rerr := s.DB.GetOrderByID(ctx, orderID)
		if rerr == nil {
			return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, newStatus)
		}
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, newStatus)
	}

	s.Log.LogOrder("FULFILL", order.OrderNumber, fmt.Sprintf("Status advanced %s -> %s", order.Status, newStatus))

	order.Status = newStatus
	if newStatus == models.OrderStatusShipped || newStatus == models.OrderStatusDelivered {
		s.Notifier.NotifyBuyerOrderStatus(*order, newStatus)
	}

	return order, nil
}
