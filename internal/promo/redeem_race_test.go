package promo

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"ms-marketplace/internal/ledger"
	"ms-marketplace/internal/logger"
	"ms-marketplace/internal/models"
	"ms-marketplace/internal/promo/redislock"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// setupRedeemStack wires a real Coordinator against a sqlite-backed ledger and
// a miniredis-backed per-code lock.
func setupRedeemStack(t *testing.T) (*Coordinator, *ledger.DB, func()) {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, "file::memory:?cache=shared")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	ctx := context.Background()
	for _, model := range []interface{}{
		(*models.PromoCode)(nil),
		(*models.Subscription)(nil),
	} {
		require.NoError(t, bunDB.ResetModel(ctx, model))
	}

	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	store := &ledger.DB{Bun: bunDB}
	c := NewCoordinator(store, redislock.NewLock(client), logger.NewLogger())

	cleanup := func() {
		client.Close()
		mr.Close()
		bunDB.Close()
	}
	return c, store, cleanup
}

func redeemTestSub(userID string) models.Subscription {
	now := time.Now().Round(time.Second)
	return models.Subscription{
		ID:                 uuid.New().String(),
		UserID:             userID,
		PlanType:           "pro",
		Status:             models.SubscriptionStatusActive,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   now.AddDate(0, 1, 0),
		PaymentMethod:      models.PaymentMethodPromoCode,
		CreatedAt:          now,
	}
}

func TestRedeemConcurrentAttemptsOnLastUse(t *testing.T) {
	c, store, cleanup := setupRedeemStack(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, store.CreatePromoCode(ctx, models.PromoCode{
		Code:               "ONESHOT",
		DiscountPercentage: 100,
		MaxUses:            1,
		CreatedAt:          time.Now(),
	}))

	// Two goroutines race through the full Redeem path (lock, validate,
	// conditional increment, subscription insert) for the single remaining use.
	subs := []models.Subscription{redeemTestSub("user-001"), redeemTestSub("user-002")}
	errs := make([]error, len(subs))

	var wg sync.WaitGroup
	for i := range subs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.Redeem(ctx, "ONESHOT", subs[i])
		}(i)
	}
	wg.Wait()

	var won, limited int
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, ErrLimitReached):
			limited++
		default:
			t.Fatalf("unexpected redemption error: %v", err)
		}
	}
	assert.Equal(t, 1, won, "exactly one attempt should win the last use")
	assert.Equal(t, 1, limited, "the other attempt should hit the usage limit")

	promoRow, err := store.GetPromoCode(ctx, "ONESHOT")
	require.NoError(t, err)
	assert.Equal(t, 1, promoRow.UsesCount, "counter must never pass max_uses")

	count, err := store.Bun.NewSelect().Model((*models.Subscription)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "the losing attempt must not leave a subscription row")
}
