package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ms-marketplace/internal/ledger"
	"ms-marketplace/internal/logger"
	"ms-marketplace/internal/models"
	"ms-marketplace/internal/promo"

	"github.com/google/uuid"
)

// ErrSubscriptionNotFound is returned when a subscription id does not exist.
var ErrSubscriptionNotFound = errors.New("subscription not found")

// Store is the slice of the ledger the subscription service needs.
type Store interface {
	GetSubscriptionByID(ctx context.Context, id string) (*models.Subscription, error)
	GetSubscriptionsByUser(ctx context.Context, userID string) ([]models.Subscription, error)
	CreateSubscription(ctx context.Context, sub models.Subscription) error
	RenewSubscription(ctx context.Context, id string, periodStart, periodEnd time.Time) (bool, error)
	CancelSubscription(ctx context.Context, id string) (bool, error)
}

// Redeemer validates a promo code and atomically couples its usage increment
// with the subscription insert.
type Redeemer interface {
	Redeem(ctx context.Context, code string, sub models.Subscription) (*promo.Redemption, error)
}

type Service struct {
	DB     Store
	Promo  Redeemer
	Period time.Duration
	Log    *logger.Logger
}

// NewService builds the subscription service. period is the billing period
// granted per purchase or renewal.
func NewService(db Store, promoSvc Redeemer, period time.Duration, log *logger.Logger) *Service {
	return &Service{DB: db, Promo: promoSvc, Period: period, Log: log}
}

// CreateResult carries the created subscription and, for promo redemptions,
// the discount that was applied.
type CreateResult struct {
	Subscription models.Subscription `json:"subscription"`
	Discount     float64             `json:"discount_percentage,omitempty"`
}

// Create provisions a subscription. For promo_code purchases the usage
// increment and the insert commit together or not at all.
func (s *Service) Create(ctx context.Context, userID, planType, paymentMethod, promoCode, gatewayRef string) (*CreateResult, error) {
	now := time.Now()
	sub := models.Subscription{
		ID:                 uuid.New().String(),
		UserID:             userID,
		PlanType:           planType,
		Status:             models.SubscriptionStatusActive,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   now.Add(s.Period),
		PaymentMethod:      paymentMethod,
		GatewayRef:         gatewayRef,
		CreatedAt:          now,
	}

	switch paymentMethod {
	case models.PaymentMethodPromoCode:
		redemption, err := s.Promo.Redeem(ctx, promoCode, sub)
		if err != nil {
			return nil, err
		}
		s.Log.Info("SUBSCRIPTION", fmt.Sprintf("Subscription %s created for user %s via promo %s (%.0f%% off)",
			sub.ID, userID, redemption.Code, redemption.DiscountPercentage))
		return &CreateResult{Subscription: sub, Discount: redemption.DiscountPercentage}, nil

	case models.PaymentMethodGateway:
		if err := s.DB.CreateSubscription(ctx, sub); err != nil {
			return nil, err
		}
		s.Log.Info("SUBSCRIPTION", fmt.Sprintf("Subscription %s created for user %s via gateway (%s)", sub.ID, userID, gatewayRef))
		return &CreateResult{Subscription: sub}, nil

	default:
		return nil, fmt.Errorf("unsupported payment method: %s", paymentMethod)
	}
}

// Status returns the derived lifecycle state for access-control checkpoints.
func (s *Service) Status(ctx context.Context, id string, now time.Time) (*models.Subscription, LifecycleStatus, error) {
	sub, err := s.DB.GetSubscriptionByID(ctx, id)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return nil, LifecycleStatus{}, ErrSubscriptionNotFound
		}
		return nil, LifecycleStatus{}, err
	}
	return sub, Evaluate(sub, now), nil
}

// Renew extends the current period after a gateway settlement confirms the
// renewal charge.
func (s *Service) Renew(ctx context.Context, id string) (*models.Subscription, error) {
	sub, err := s.DB.GetSubscriptionByID(ctx, id)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}

	// Renewing during the period extends from the current expiry; renewing
	// after expiry starts a fresh period from now.
	now := time.Now()
	start := now
	if sub.CurrentPeriodEnd.After(now) {
		start = sub.CurrentPeriodEnd
	}
	end := start.Add(s.Period)

	applied, err := s.DB.RenewSubscription(ctx, id, start, end)
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, ErrSubscriptionNotFound
	}

	sub.CurrentPeriodStart = start
	sub.CurrentPeriodEnd = end
	s.Log.Info("SUBSCRIPTION", fmt.Sprintf("Subscription %s renewed until %s", id, end.Format(time.RFC3339)))
	return sub, nil
}

// Cancel marks a subscription administratively cancelled.
func (s *Service) Cancel(ctx context.Context, id string) error {
	applied, err := s.DB.CancelSubscription(ctx, id)
	if err != nil {
		return err
	}
	if !applied {
		return ErrSubscriptionNotFound
	}
	s.Log.Info("SUBSCRIPTION", fmt.Sprintf("Subscription %s cancelled", id))
	return nil
}
