package feepayment

import (
	"net/http"

	"github.com/go-chi/chi"

	"github.com/bhs-school/fee-payments/internal/transport"
)

// AdminHandler serves bursar reporting. Routes are mounted behind the admin token middleware.
type AdminHandler struct {
	*transport.BaseHandler
	service ServiceAPI
}

func NewAdminHandler(base *transport.BaseHandler, service ServiceAPI) *AdminHandler {
	return &AdminHandler{BaseHandler: base, service: service}
}

func (h *AdminHandler) LedgerStats(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.LedgerStats(r.Context())
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, resp)
}

func (h *AdminHandler) ListStudentPayments(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.ListStudentPayments(r.Context(), chi.URLParam(r, "studentID"))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, resp)
}
