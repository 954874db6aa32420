package ledger_test

import (
	"context"
	"testing"
	"time"

	"ms-marketplace/internal/ledger"
	"ms-marketplace/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSubscription(userID string) models.Subscription {
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

func TestGetPromoCode(t *testing.T) {
	db, bunDB := setupTestDB(t)
	defer bunDB.Close()

	ctx := context.Background()
	require.NoError(t, db.CreatePromoCode(ctx, models.PromoCode{
		Code:               "WELCOME10",
		DiscountPercentage: 10,
		MaxUses:            0,
		CreatedAt:          time.Now(),
	}))

	promo, err := db.GetPromoCode(ctx, "WELCOME10")
	require.NoError(t, err)
	assert.Equal(t, 10.0, promo.DiscountPercentage)

	// Matching is exact and case-sensitive.
	_, err = db.GetPromoCode(ctx, "welcome10")
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestRedeemPromoAndCreateSubscription(t *testing.T) {
	db, bunDB := setupTestDB(t)
	defer bunDB.Close()

	ctx := context.Background()
	require.NoError(t, db.CreatePromoCode(ctx, models.PromoCode{
		Code:               "LAUNCH50",
		DiscountPercentage: 50,
		MaxUses:            2,
		CreatedAt:          time.Now(),
	}))

	sub := testSubscription("user-001")
	require.NoError(t, db.RedeemPromoAndCreateSubscription(ctx, "LAUNCH50", sub))

	promo, err := db.GetPromoCode(ctx, "LAUNCH50")
	require.NoError(t, err)
	assert.Equal(t, 1, promo.UsesCount)

	created, err := db.GetSubscriptionByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, "user-001", created.UserID)
}

func TestRedeemPromoLastUseRace(t *testing.T) {
	db, bunDB := setupTestDB(t)
	defer bunDB.Close()

	ctx := context.Background()
	require.NoError(t, db.CreatePromoCode(ctx, models.PromoCode{
		Code:               "ONESHOT",
		DiscountPercentage: 100,
		MaxUses:            1,
		CreatedAt:          time.Now(),
	}))

	first := testSubscription("user-001")
	second := testSubscription("user-002")

	require.NoError(t, db.RedeemPromoAndCreateSubscription(ctx, "ONESHOT", first))

	// The second attempt on the exhausted code fails and rolls back the whole
	// transaction: no counter bump past the limit, no orphan subscription.
	err := db.RedeemPromoAndCreateSubscription(ctx, "ONESHOT", second)
	assert.ErrorIs(t, err, ledger.ErrPromoExhausted)

	promo, err := db.GetPromoCode(ctx, "ONESHOT")
	require.NoError(t, err)
	assert.Equal(t, 1, promo.UsesCount)

	_, err = db.GetSubscriptionByID(ctx, second.ID)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestRedeemPromoUnlimitedUses(t *testing.T) {
	db, bunDB := setupTestDB(t)
	defer bunDB.Close()

	ctx := context.Background()
	require.NoError(t, db.CreatePromoCode(ctx, models.PromoCode{
		Code:               "FOREVER",
		DiscountPercentage: 5,
		MaxUses:            0, // unlimited
		CreatedAt:          time.Now(),
	}))

	for i := 0; i < 5; i++ {
		sub := testSubscription(uuid.New().String())
		require.NoError(t, db.RedeemPromoAndCreateSubscription(ctx, "FOREVER", sub))
	}

	promo, err := db.GetPromoCode(ctx, "FOREVER")
	require.NoError(t, err)
	assert.Equal(t, 5, promo.UsesCount)
}

func TestRedeemUnknownPromo(t *testing.T) {
	db, bunDB := setupTestDB(t)
	defer bunDB.Close()

	err := db.RedeemPromoAndCreateSubscription(context.Background(), "NOPE", testSubscription("user-001"))
	assert.ErrorIs(t, err, ledger.ErrPromoExhausted)
}
