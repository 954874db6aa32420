package subscription

import (
	"time"

	"ms-marketplace/internal/models"
)

// GracePeriod is the window after expiry during which access stays active but
// a renewal warning is owed.
const GracePeriod = 24 * time.Hour

// Lifecycle reasons reported to access-control callers.
const (
	ReasonExpiredLocked = "expired_locked"
	ReasonCancelled     = "cancelled"
)

// LifecycleStatus is the derived subscription state. The stored status field
// only distinguishes administratively cancelled rows; everything else is
// computed from the period boundaries at read time.
type LifecycleStatus struct {
	Active        bool   `json:"active"`
	InGracePeriod bool   `json:"in_grace_period"`
	Reason        string `json:"reason,omitempty"`
}

// Evaluate computes the effective status of a subscription at a given time.
// Pure: no stored field is mutated, so every access-control checkpoint must
// call it rather than trust the stored row.
func Evaluate(sub *models.Subscription, now time.Time) LifecycleStatus {
	if sub.Status == models.SubscriptionStatusCancelled {
		return LifecycleStatus{Reason: ReasonCancelled}
	}

	expiry := sub.CurrentPeriodEnd
	graceEnd := expiry.Add(GracePeriod)

	switch {
	case !now.After(expiry):
		return LifecycleStatus{Active: true}
	case !now.After(graceEnd):
		return LifecycleStatus{Active: true, InGracePeriod: true}
	default:
		return LifecycleStatus{Reason: ReasonExpiredLocked}
	}
}
