package feepayment

import (
	"encoding/json"
	"net/http"
	"slices"
	"strings"

	"github.com/go-chi/chi"

	errors "github.com/bhs-school/fee-payments/internal"
	"github.com/bhs-school/fee-payments/internal/transport"
)

// OriginPolicy picks the base URL the payer is redirected back to after checkout.
type OriginPolicy struct {
	BaseURL string
	Allowed []string
}

// Resolve returns the request Origin when it is allow-listed, else the configured base URL.
func (p OriginPolicy) Resolve(r *http.Request) string {
	origin := strings.TrimRight(r.Header.Get("Origin"), "/")
	if origin != "" && (slices.Contains(p.Allowed, origin) || slices.Contains(p.Allowed, "*")) {
		return origin
	}
	return strings.TrimRight(p.BaseURL, "/")
}

type Handler struct {
	*transport.BaseHandler
	service ServiceAPI
	origins OriginPolicy
}

func NewHandler(base *transport.BaseHandler, service ServiceAPI, origins OriginPolicy) *Handler {
	return &Handler{
		BaseHandler: base,
		service:     service,
		origins:     origins,
	}
}

// InitiatePayment handles POST /api/v1/fees/payments/initiate. Every failure is a 400.
func (h *Handler) InitiatePayment(w http.ResponseWriter, r *http.Request) {
	var req InitiatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Info("InitiatePayment: failed to parse request body", "error", err)
		h.HandleServiceErrorWithStatus(w, errors.NewValidationError("invalid request body", errors.ErrCodeInvalidPayload), http.StatusBadRequest)
		return
	}
	req.OriginURL = h.origins.Resolve(r)

	resp, err := h.service.Initiate(r.Context(), &req)
	if err != nil {
		h.HandleServiceErrorWithStatus(w, err, http.StatusBadRequest)
		return
	}

	h.WriteJSON(w, http.StatusOK, resp)
}

// GetPaymentStatus handles GET /api/v1/fees/payments/{txRef} for the redirect page poll.
func (h *Handler) GetPaymentStatus(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.GetPaymentStatus(r.Context(), chi.URLParam(r, "txRef"))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, resp)
}
