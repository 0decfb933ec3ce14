package feepayment

import (
	"context"
	"net/http"
	"strings"

	"github.com/bhs-school/fee-payments/internal/transport"
)

const SignatureHeader = "verif-hash"

type WebhookAPI interface {
	HandleNotification(ctx context.Context, d Delivery) (*WebhookResult, error)
}

type WebhookHandler struct {
	*transport.BaseHandler
	verifier WebhookAPI
}

func NewWebhookHandler(base *transport.BaseHandler, verifier WebhookAPI) *WebhookHandler {
	return &WebhookHandler{BaseHandler: base, verifier: verifier}
}

// HandleWebhook handles POST /api/v1/fees/payments/webhook.
//
//	401 bad or missing verif-hash
//	400 malformed payload, verification failed, currency or amount rejected
//	200 completed, already processed (including terminal rows), unknown reference
//	500 gateway or store unreachable during verification
func (h *WebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	result, err := h.verifier.HandleNotification(r.Context(), Delivery{
		Signature: r.Header.Get(SignatureHeader),
		Body:      r.Body,
	})
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	status := http.StatusOK
	label := "success"
	if !result.Outcome.Accepted() {
		status = http.StatusBadRequest
		label = strings.ReplaceAll(string(result.Outcome), "_", " ")
	}

	h.WriteJSON(w, status, WebhookResponse{
		Status:  label,
		Code:    result.Code,
		Message: result.Message,
		TxRef:   result.TxRef,
	})
}
