package subscription

import (
	"context"
	"testing"
	"time"

	"ms-marketplace/internal/ledger"
	"ms-marketplace/internal/logger"
	"ms-marketplace/internal/models"
	"ms-marketplace/internal/promo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSubStore struct {
	subs map[string]*models.Subscription
}

func newMockSubStore() *mockSubStore {
	return &mockSubStore{subs: make(map[string]*models.Subscription)}
}

func (m *mockSubStore) GetSubscriptionByID(ctx context.Context, id string) (*models.Subscription, error) {
	sub, ok := m.subs[id]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	copy := *sub
	return &copy, nil
}

func (m *mockSubStore) GetSubscriptionsByUser(ctx context.Context, userID string) ([]models.Subscription, error) {
	var out []models.Subscription
	for _, sub := range m.subs {
		if sub.UserID == userID {
			out = append(out, *sub)
		}
	}
	return out, nil
}

func (m *mockSubStore) CreateSubscription(ctx context.Context, sub models.Subscription) error {
	m.subs[sub.ID] = &sub
	return nil
}

func (m *mockSubStore) RenewSubscription(ctx context.Context, id string, periodStart, periodEnd time.Time) (bool, error) {
	sub, ok := m.subs[id]
	if !ok || sub.Status != models.SubscriptionStatusActive {
		return false, nil
	}
	sub.CurrentPeriodStart = periodStart
	sub.CurrentPeriodEnd = periodEnd
	return true, nil
}

func (m *mockSubStore) CancelSubscription(ctx context.Context, id string) (bool, error) {
	sub, ok := m.subs[id]
	if !ok || sub.Status != models.SubscriptionStatusActive {
		return false, nil
	}
	sub.Status = models.SubscriptionStatusCancelled
	return true, nil
}

type mockRedeemer struct {
	store    *mockSubStore
	fail     error
	redeemed []string
}

func (m *mockRedeemer) Redeem(ctx context.Context, code string, sub models.Subscription) (*promo.Redemption, error) {
	if m.fail != nil {
		return nil, m.fail
	}
	m.redeemed = append(m.redeemed, code)
	m.store.subs[sub.ID] = &sub
	return &promo.Redemption{Code: code, DiscountPercentage: 100}, nil
}

func setupSubService() (*Service, *mockSubStore, *mockRedeemer) {
	store := newMockSubStore()
	redeemer := &mockRedeemer{store: store}
	svc := NewService(store, redeemer, 30*24*time.Hour, logger.NewLogger())
	return svc, store, redeemer
}

func TestCreateViaGateway(t *testing.T) {
	svc, store, redeemer := setupSubService()

	result, err := svc.Create(context.Background(), "user-001", "pro", models.PaymentMethodGateway, "", "FLW-SUB-1")
	require.NoError(t, err)

	assert.Equal(t, models.SubscriptionStatusActive, result.Subscription.Status)
	assert.Equal(t, "FLW-SUB-1", result.Subscription.GatewayRef)
	assert.Zero(t, result.Discount)
	assert.Len(t, store.subs, 1)
	assert.Empty(t, redeemer.redeemed)

	// Period end is one billing period out.
	expected := result.Subscription.CurrentPeriodStart.Add(30 * 24 * time.Hour)
	assert.Equal(t, expected, result.Subscription.CurrentPeriodEnd)
}

func TestCreateViaPromoCode(t *testing.T) {
	svc, store, redeemer := setupSubService()

	result, err := svc.Create(context.Background(), "user-001", "pro", models.PaymentMethodPromoCode, "LAUNCH50", "")
	require.NoError(t, err)

	assert.Equal(t, 100.0, result.Discount)
	assert.Equal(t, []string{"LAUNCH50"}, redeemer.redeemed)
	assert.Len(t, store.subs, 1)
}

func TestCreatePromoFailureCreatesNothing(t *testing.T) {
	svc, store, redeemer := setupSubService()
	redeemer.fail = promo.ErrLimitReached

	_, err := svc.Create(context.Background(), "user-001", "pro", models.PaymentMethodPromoCode, "FULL", "")
	assert.ErrorIs(t, err, promo.ErrLimitReached)
	assert.Empty(t, store.subs)
}

func TestCreateUnsupportedPaymentMethod(t *testing.T) {
	svc, _, _ := setupSubService()

	_, err := svc.Create(context.Background(), "user-001", "pro", "cash", "", "")
	assert.Error(t, err)
}

func TestStatusDerivesLifecycle(t *testing.T) {
	svc, store, _ := setupSubService()

	expiry := time.Now().Add(-2 * time.Hour)
	store.subs["sub-001"] = &models.Subscription{
		ID:               "sub-001",
		UserID:           "user-001",
		Status:           models.SubscriptionStatusActive,
		CurrentPeriodEnd: expiry,
	}

	sub, status, err := svc.Status(context.Background(), "sub-001", time.Now())
	require.NoError(t, err)
	assert.Equal(t, "sub-001", sub.ID)
	assert.True(t, status.Active)
	assert.True(t, status.InGracePeriod)

	_, _, err = svc.Status(context.Background(), "missing", time.Now())
	assert.ErrorIs(t, err, ErrSubscriptionNotFound)
}

func TestRenewExtendsFromCurrentExpiry(t *testing.T) {
	svc, store, _ := setupSubService()

	expiry := time.Now().Add(10 * 24 * time.Hour).Round(time.Second)
	store.subs["sub-001"] = &models.Subscription{
		ID:               "sub-001",
		Status:           models.SubscriptionStatusActive,
		CurrentPeriodEnd: expiry,
	}

	sub, err := svc.Renew(context.Background(), "sub-001")
	require.NoError(t, err)
	assert.Equal(t, expiry.Add(30*24*time.Hour), sub.CurrentPeriodEnd)
}

func TestRenewAfterExpiryStartsFresh(t *testing.T) {
	svc, store, _ := setupSubService()

	store.subs["sub-001"] = &models.Subscription{
		ID:               "sub-001",
		Status:           models.SubscriptionStatusActive,
		CurrentPeriodEnd: time.Now().Add(-5 * 24 * time.Hour),
	}

	before := time.Now()
	sub, err := svc.Renew(context.Background(), "sub-001")
	require.NoError(t, err)

	// Fresh period starts now, not stacked onto the lapsed expiry.
	assert.True(t, sub.CurrentPeriodStart.After(before.Add(-time.Second)))
	assert.WithinDuration(t, before.Add(30*24*time.Hour), sub.CurrentPeriodEnd, 5*time.Second)
}

func TestCancel(t *testing.T) {
	svc, store, _ := setupSubService()

	store.subs["sub-001"] = &models.Subscription{
		ID:     "sub-001",
		Status: models.SubscriptionStatusActive,
	}

	require.NoError(t, svc.Cancel(context.Background(), "sub-001"))
	assert.Equal(t, models.SubscriptionStatusCancelled, store.subs["sub-001"].Status)

	// Second cancel finds no active row.
	err := svc.Cancel(context.Background(), "sub-001")
	assert.ErrorIs(t, err, ErrSubscriptionNotFound)
}
