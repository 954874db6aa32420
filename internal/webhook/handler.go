package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"ms-marketplace/internal/logger"
	"ms-marketplace/internal/models"
	"ms-marketplace/internal/reconciler"
)

// Gateways differ on the signature header name; we accept both common forms.
var signatureHeaders = []string{"verif-hash", "X-Gateway-Signature"}

const maxBodyBytes = 1 << 20 // webhook payloads are small; cap reads at 1MB

// Reconciler applies a verified settlement event to the ledger.
type Reconciler interface {
	Reconcile(ctx context.Context, event models.GatewayEvent) (*reconciler.Result, error)
}

// Handler terminates the gateway webhook. Response codes drive the gateway's
// retry behavior: 200 means processed or safely ignored, 401 means signature
// failure, 404 means unknown order, 500 means retry later.
type Handler struct {
	Verifier   *Verifier
	Reconciler Reconciler
	Logger     *logger.Logger
}

func (h *Handler) HandleGatewayEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]interface{}{"received": false, "error": "unreadable body"})
		return
	}

	if !h.Verifier.Verify(body, h.signature(r)) {
		h.Logger.LogSecurity("WEBHOOK", "Rejected webhook with missing or invalid signature")
		h.writeJSON(w, http.StatusUnauthorized, map[string]interface{}{"received": false, "error": "invalid signature"})
		return
	}

	var event models.GatewayEvent
	if err := json.Unmarshal(body, &event); err != nil {
		h.Logger.Error("WEBHOOK", fmt.Sprintf("Malformed webhook payload: %v", err))
		h.writeJSON(w, http.StatusBadRequest, map[string]interface{}{"received": false, "error": "malformed payload"})
		return
	}

	result, err := h.Reconciler.Reconcile(r.Context(), event)
	if err != nil {
		switch {
		case errors.Is(err, reconciler.ErrOrderNotFound):
			h.writeJSON(w, http.StatusNotFound, map[string]interface{}{"received": false, "error": "order not found"})
		default:
			// Persistence failures signal the gateway to retry; the
			// idempotency guard makes the retry safe.
			h.Logger.Error("WEBHOOK", fmt.Sprintf("Reconciliation failed for %s: %v", event.TxRef, err))
			h.writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"received": false, "error": "processing failure"})
		}
		return
	}

	if result.AmountMismatch {
		h.Logger.Warn("WEBHOOK", fmt.Sprintf("Order %s settled with mismatched amount - flagged for review", result.OrderNumber))
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"received": true})
}

func (h *Handler) signature(r *http.Request) string {
	for _, name := range signatureHeaders {
		if v := r.Header.Get(name); v != "" {
			return v
		}
	}
	return ""
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
