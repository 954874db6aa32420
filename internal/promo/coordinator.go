package promo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ms-marketplace/internal/ledger"
	"ms-marketplace/internal/logger"
	"ms-marketplace/internal/models"

	"github.com/google/uuid"
)

var (
	// ErrInvalidCode means the code does not exist. Matching is exact and
	// case-sensitive.
	ErrInvalidCode = errors.New("invalid promo code")

	// ErrExpired means the code's validity window has passed.
	ErrExpired = errors.New("promo code has expired")

	// ErrLimitReached means the code's usage limit is exhausted.
	ErrLimitReached = errors.New("promo code usage limit reached")
)

// Store is the slice of the ledger the coordinator needs.
type Store interface {
	GetPromoCode(ctx context.Context, code string) (*models.PromoCode, error)
	RedeemPromoAndCreateSubscription(ctx context.Context, code string, sub models.Subscription) error
}

// CodeLock serializes redemption attempts for the same code.
type CodeLock interface {
	AcquireWait(ctx context.Context, code, token string) (bool, error)
	Release(ctx context.Context, code, token string) error
}

// Redemption is the result handed back to pricing.
type Redemption struct {
	Code               string  `json:"code"`
	DiscountPercentage float64 `json:"discount_percentage"`
}

// Coordinator validates promo codes and couples the usage increment with the
// dependent subscription insert so neither can land without the other.
type Coordinator struct {
	DB   Store
	Lock CodeLock
	Log  *logger.Logger
}

func NewCoordinator(db Store, lock CodeLock, log *logger.Logger) *Coordinator {
	return &Coordinator{DB: db, Lock: lock, Log: log}
}

// Validate runs the redemption checks without mutating anything. Used by the
// preview endpoint and as the first pass of Redeem.
func (c *Coordinator) Validate(ctx context.Context, code string) (*models.PromoCode, error) {
	promo, err := c.DB.GetPromoCode(ctx, code)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return nil, ErrInvalidCode
		}
		return nil, err
	}

	if !promo.ValidUntil.IsZero() && promo.ValidUntil.Before(time.Now()) {
		return nil, ErrExpired
	}

	if promo.MaxUses > 0 && promo.UsesCount >= promo.MaxUses {
		return nil, ErrLimitReached
	}

	return promo, nil
}

// Redeem validates the code and, in one ledger transaction, increments its
// usage counter and inserts the dependent subscription. Concurrent attempts
// on the same code are serialized by the per-code lock; the conditional
// increment guarantees at most max_uses successes even if the lock expires.
func (c *Coordinator) Redeem(ctx context.Context, code string, sub models.Subscription) (*Redemption, error) {
	if c.Lock != nil {
		token := uuid.New().String()
		ok, err := c.Lock.AcquireWait(ctx, code, token)
		if err != nil {
			return nil, fmt.Errorf("promo lock: %w", err)
		}
		if ok {
			defer func() {
				if rerr := c.Lock.Release(ctx, code, token); rerr != nil {
					c.Log.Error("PROMO", fmt.Sprintf("Failed to release lock for code %s: %v", code, rerr))
				}
			}()
		}
	}

	promo, err := c.Validate(ctx, code)
	if err != nil {
		return nil, err
	}

	if err := c.DB.RedeemPromoAndCreateSubscription(ctx, code, sub); err != nil {
		if errors.Is(err, ledger.ErrPromoExhausted) {
			return nil, ErrLimitReached
		}
		return nil, err
	}

	c.Log.Info("PROMO", fmt.Sprintf("Code %s redeemed (use %d of %d)", code, promo.UsesCount+1, promo.MaxUses))

	return &Redemption{
		Code:               promo.Code,
		DiscountPercentage: promo.DiscountPercentage,
	}, nil
}
