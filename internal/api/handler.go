package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"ms-marketplace/internal/auth"
	"ms-marketplace/internal/ledger"
	"ms-marketplace/internal/logger"
	"ms-marketplace/internal/models"
	"ms-marketplace/internal/promo"
	"ms-marketplace/internal/reconciler"
	"ms-marketplace/internal/subscription"
	"ms-marketplace/internal/utils"

	"github.com/go-chi/chi/v5"
)

// OrderService is the operator-facing slice of the reconciler plus order
// reads.
type OrderService interface {
	AdvanceFulfillment(ctx context.Context, orderID, newStatus string) (*models.Order, error)
}

// OrderReader fetches orders and their payment attempts for display.
type OrderReader interface {
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	GetTransactionsByOrder(ctx context.Context, orderID string) ([]models.Transaction, error)
}

// SubscriptionService covers creation, lifecycle checks and renewal.
type SubscriptionService interface {
	Create(ctx context.Context, userID, planType, paymentMethod, promoCode, gatewayRef string) (*subscription.CreateResult, error)
	Status(ctx context.Context, id string, now time.Time) (*models.Subscription, subscription.LifecycleStatus, error)
	Renew(ctx context.Context, id string) (*models.Subscription, error)
	Cancel(ctx context.Context, id string) error
}

// PromoValidator previews a code without redeeming it.
type PromoValidator interface {
	Validate(ctx context.Context, code string) (*models.PromoCode, error)
}

type Handler struct {
	Orders        OrderService
	OrderStore    OrderReader
	Subscriptions SubscriptionService
	Promos        PromoValidator
	Logger        *logger.Logger
}

// RegisterRoutes mounts the operator and user endpoints. Callers wrap the
// group in the auth middleware; access-control decisions inside gated
// features go through the subscription status endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Get("/{orderID}", h.GetOrder)
		r.Patch("/{orderID}/status", h.AdvanceFulfillment)
	})
	r.Route("/subscriptions", func(r chi.Router) {
		r.Post("/", h.CreateSubscription)
		r.Get("/{subscriptionID}/status", h.SubscriptionStatus)
		r.Post("/{subscriptionID}/renew", h.RenewSubscription)
		r.Delete("/{subscriptionID}", h.CancelSubscription)
	})
	r.Get("/promos/{code}", h.PreviewPromo)
}

// GetOrder returns an order with its payment attempts.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	order, err := h.OrderStore.GetOrderByID(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			h.writeJSON(w, http.StatusNotFound, utils.ErrorResponse("Order not found", orderID))
			return
		}
		h.Logger.Error("API", fmt.Sprintf("Failed to fetch order %s: %v", orderID, err))
		h.writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Failed to fetch order", err.Error()))
		return
	}

	txs, err := h.OrderStore.GetTransactionsByOrder(r.Context(), orderID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("Failed to fetch transactions for order %s: %v", orderID, err))
		txs = nil
	}

	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Order fetched", map[string]interface{}{
		"order":        order,
		"transactions": txs,
	}))
}

// AdvanceFulfillment moves a paid order along the fulfillment graph.
func (h *Handler) AdvanceFulfillment(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Status == "" {
		h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", "status is required"))
		return
	}

	order, err := h.Orders.AdvanceFulfillment(r.Context(), orderID, req.Status)
	if err != nil {
		switch {
		case errors.Is(err, reconciler.ErrOrderNotFound):
			h.writeJSON(w, http.StatusNotFound, utils.ErrorResponse("Order not found", orderID))
		case errors.Is(err, reconciler.ErrInvalidTransition):
			h.writeJSON(w, http.StatusUnprocessableEntity, utils.ErrorResponse("Invalid status transition", err.Error()))
		default:
			h.Logger.Error("API", fmt.Sprintf("Failed to advance order %s: %v", orderID, err))
			h.writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Failed to update order", err.Error()))
		}
		return
	}

	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Order status updated", order))
}

// CreateSubscription provisions a subscription for the authenticated user.
func (h *Handler) CreateSubscription(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	if userID == "" {
		// Machine clients that bypass the OIDC middleware still carry a
		// bearer token; read the sub claim from it directly.
		token, err := auth.ExtractTokenFromRequest(r)
		if err == nil {
			userID, _ = auth.ExtractUserIDFromJWT(token)
		}
	}
	if userID == "" {
		h.writeJSON(w, http.StatusUnauthorized, utils.ErrorResponse("Unauthorized", "no user identity"))
		return
	}

	var req struct {
		PlanType      string `json:"plan_type"`
		PaymentMethod string `json:"payment_method"`
		PromoCode     string `json:"promo_code,omitempty"`
		GatewayRef    string `json:"gateway_ref,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
		return
	}
	if req.PlanType == "" || req.PaymentMethod == "" {
		h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", "plan_type and payment_method are required"))
		return
	}

	result, err := h.Subscriptions.Create(r.Context(), userID, req.PlanType, req.PaymentMethod, req.PromoCode, req.GatewayRef)
	if err != nil {
		if status, msg := promoErrorStatus(err); status != 0 {
			h.writeJSON(w, status, utils.ErrorResponse(msg, err.Error()))
			return
		}
		h.Logger.Error("API", fmt.Sprintf("Failed to create subscription for user %s: %v", userID, err))
		h.writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Failed to create subscription", err.Error()))
		return
	}

	h.writeJSON(w, http.StatusCreated, utils.SuccessResponse("Subscription created", result))
}

// SubscriptionStatus is the access-control checkpoint: gated features branch
// on the derived lifecycle state returned here.
func (h *Handler) SubscriptionStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "subscriptionID")

	sub, status, err := h.Subscriptions.Status(r.Context(), id, time.Now())
	if err != nil {
		if errors.Is(err, subscription.ErrSubscriptionNotFound) {
			h.writeJSON(w, http.StatusNotFound, utils.ErrorResponse("Subscription not found", id))
			return
		}
		h.Logger.Error("API", fmt.Sprintf("Failed to evaluate subscription %s: %v", id, err))
		h.writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Failed to evaluate subscription", err.Error()))
		return
	}

	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Subscription status", map[string]interface{}{
		"subscription": sub,
		"lifecycle":    status,
	}))
}

// RenewSubscription extends the billing period after a confirmed renewal
// charge.
func (h *Handler) RenewSubscription(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "subscriptionID")

	sub, err := h.Subscriptions.Renew(r.Context(), id)
	if err != nil {
		if errors.Is(err, subscription.ErrSubscriptionNotFound) {
			h.writeJSON(w, http.StatusNotFound, utils.ErrorResponse("Subscription not found", id))
			return
		}
		h.Logger.Error("API", fmt.Sprintf("Failed to renew subscription %s: %v", id, err))
		h.writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Failed to renew subscription", err.Error()))
		return
	}

	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Subscription renewed", sub))
}

// CancelSubscription marks a subscription cancelled. Rows are never deleted.
func (h *Handler) CancelSubscription(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "subscriptionID")

	if err := h.Subscriptions.Cancel(r.Context(), id); err != nil {
		if errors.Is(err, subscription.ErrSubscriptionNotFound) {
			h.writeJSON(w, http.StatusNotFound, utils.ErrorResponse("Subscription not found", id))
			return
		}
		h.Logger.Error("API", fmt.Sprintf("Failed to cancel subscription %s: %v", id, err))
		h.writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Failed to cancel subscription", err.Error()))
		return
	}

	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Subscription cancelled", nil))
}

// PreviewPromo validates a code without consuming a use.
func (h *Handler) PreviewPromo(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	promoCode, err := h.Promos.Validate(r.Context(), code)
	if err != nil {
		if status, msg := promoErrorStatus(err); status != 0 {
			h.writeJSON(w, status, utils.ErrorResponse(msg, err.Error()))
			return
		}
		h.Logger.Error("API", fmt.Sprintf("Failed to validate promo %s: %v", code, err))
		h.writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Failed to validate promo code", err.Error()))
		return
	}

	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Promo code valid", map[string]interface{}{
		"code":                promoCode.Code,
		"discount_percentage": promoCode.DiscountPercentage,
	}))
}

func promoErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, promo.ErrInvalidCode):
		return http.StatusNotFound, "Promo code not found"
	case errors.Is(err, promo.ErrExpired):
		return http.StatusGone, "Promo code expired"
	case errors.Is(err, promo.ErrLimitReached):
		return http.StatusConflict, "Promo code usage limit reached"
	}
	return 0, ""
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
