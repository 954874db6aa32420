package promo

import (
	"context"
	"testing"
	"time"

	"ms-marketplace/internal/ledger"
	"ms-marketplace/internal/logger"
	"ms-marketplace/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockPromoStore struct {
	codes     map[string]*models.PromoCode
	subs      []models.Subscription
	exhausted bool
}

func newMockPromoStore() *mockPromoStore {
	return &mockPromoStore{codes: make(map[string]*models.PromoCode)}
}

func (m *mockPromoStore) GetPromoCode(ctx context.Context, code string) (*models.PromoCode, error) {
	promo, ok := m.codes[code]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	copy := *promo
	return &copy, nil
}

func (m *mockPromoStore) RedeemPromoAndCreateSubscription(ctx context.Context, code string, sub models.Subscription) error {
	if m.exhausted {
		return ledger.ErrPromoExhausted
	}
	m.codes[code].UsesCount++
	m.subs = append(m.subs, sub)
	return nil
}

type mockLock struct {
	held     map[string]string
	acquired int
	released int
}

func newMockLock() *mockLock {
	return &mockLock{held: make(map[string]string)}
}

func (m *mockLock) AcquireWait(ctx context.Context, code, token string) (bool, error) {
	m.acquired++
	m.held[code] = token
	return true, nil
}

func (m *mockLock) Release(ctx context.Context, code, token string) error {
	m.released++
	delete(m.held, code)
	return nil
}

func setupCoordinator() (*Coordinator, *mockPromoStore, *mockLock) {
	store := newMockPromoStore()
	lock := newMockLock()
	return NewCoordinator(store, lock, logger.NewLogger()), store, lock
}

func TestValidateUnknownCode(t *testing.T) {
	c, _, _ := setupCoordinator()

	_, err := c.Validate(context.Background(), "NOPE")
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestValidateIsCaseSensitive(t *testing.T) {
	c, store, _ := setupCoordinator()
	store.codes["LAUNCH50"] = &models.PromoCode{Code: "LAUNCH50", DiscountPercentage: 50}

	_, err := c.Validate(context.Background(), "launch50")
	assert.ErrorIs(t, err, ErrInvalidCode)

	promo, err := c.Validate(context.Background(), "LAUNCH50")
	require.NoError(t, err)
	assert.Equal(t, 50.0, promo.DiscountPercentage)
}

func TestValidateExpiredCode(t *testing.T) {
	c, store, _ := setupCoordinator()
	store.codes["OLD"] = &models.PromoCode{
		Code:       "OLD",
		ValidUntil: time.Now().Add(-time.Hour),
	}

	_, err := c.Validate(context.Background(), "OLD")
	assert.ErrorIs(t, err, ErrExpired)
}

func TestValidateNoExpiryNeverExpires(t *testing.T) {
	c, store, _ := setupCoordinator()
	store.codes["FOREVER"] = &models.PromoCode{Code: "FOREVER", DiscountPercentage: 5}

	_, err := c.Validate(context.Background(), "FOREVER")
	assert.NoError(t, err)
}

func TestValidateExhaustedCode(t *testing.T) {
	c, store, _ := setupCoordinator()
	store.codes["FULL"] = &models.PromoCode{Code: "FULL", MaxUses: 10, UsesCount: 10}

	_, err := c.Validate(context.Background(), "FULL")
	assert.ErrorIs(t, err, ErrLimitReached)
}

func TestRedeemHappyPath(t *testing.T) {
	c, store, lock := setupCoordinator()
	store.codes["LAUNCH50"] = &models.PromoCode{Code: "LAUNCH50", DiscountPercentage: 50, MaxUses: 100}

	sub := models.Subscription{ID: "sub-001", UserID: "user-001"}
	redemption, err := c.Redeem(context.Background(), "LAUNCH50", sub)
	require.NoError(t, err)

	assert.Equal(t, "LAUNCH50", redemption.Code)
	assert.Equal(t, 50.0, redemption.DiscountPercentage)
	assert.Equal(t, 1, store.codes["LAUNCH50"].UsesCount)
	require.Len(t, store.subs, 1)
	assert.Equal(t, "sub-001", store.subs[0].ID)

	// Lock is taken and released exactly once.
	assert.Equal(t, 1, lock.acquired)
	assert.Equal(t, 1, lock.released)
	assert.Empty(t, lock.held)
}

func TestRedeemValidationFailureDoesNotTouchStore(t *testing.T) {
	c, store, lock := setupCoordinator()
	store.codes["FULL"] = &models.PromoCode{Code: "FULL", MaxUses: 1, UsesCount: 1}

	_, err := c.Redeem(context.Background(), "FULL", models.Subscription{ID: "sub-001"})
	assert.ErrorIs(t, err, ErrLimitReached)
	assert.Empty(t, store.subs)
	assert.Equal(t, 1, lock.released)
}

func TestRedeemConditionalIncrementBackstop(t *testing.T) {
	c, store, _ := setupCoordinator()
	// Validation passes but the conditional increment loses the race.
	store.codes["LAST"] = &models.PromoCode{Code: "LAST", MaxUses: 2, UsesCount: 1}
	store.exhausted = true

	_, err := c.Redeem(context.Background(), "LAST", models.Subscription{ID: "sub-001"})
	assert.ErrorIs(t, err, ErrLimitReached)
	assert.Empty(t, store.subs)
}

func TestRedeemWithoutLockStillWorks(t *testing.T) {
	store := newMockPromoStore()
	store.codes["LAUNCH50"] = &models.PromoCode{Code: "LAUNCH50", DiscountPercentage: 50}
	c := NewCoordinator(store, nil, logger.NewLogger())

	_, err := c.Redeem(context.Background(), "LAUNCH50", models.Subscription{ID: "sub-001"})
	assert.NoError(t, err)
}
