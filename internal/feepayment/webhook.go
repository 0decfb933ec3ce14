package feepayment

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"io"
	"log/slog"
	"strings"

	errors "github.com/bhs-school/fee-payments/internal"
	datamodel "github.com/bhs-school/fee-payments/internal/core/datamodel/feepayment"
	gatewaytypes "github.com/bhs-school/fee-payments/internal/core/datamodel/paymentgateway"
	"gorm.io/datatypes"
)

const maxWebhookBytes = 1 << 20

// Delivery is one inbound gateway callback.
type Delivery struct {
	Signature string
	Body      io.Reader
}

type WebhookResult struct {
	Outcome Outcome
	TxRef   string
	Message string
	Code    errors.ErrorCode
}

// Notification is a callback body reduced to the fields the verifier reads.
// Nothing in it is trusted beyond locating the ledger row.
type Notification struct {
	Event       string
	TxRef       string
	GatewayTxID string
	Status      string
}

type notificationEnvelope struct {
	Event     string             `json:"event"`
	EventType string             `json:"event.type"`
	TxRef     string             `json:"tx_ref"`
	TxRefAlt  string             `json:"txRef"`
	ID        json.RawMessage    `json:"id"`
	Status    string             `json:"status"`
	Data      *notificationInner `json:"data"`
}

type notificationInner struct {
	ID       json.RawMessage `json:"id"`
	TxRef    string          `json:"tx_ref"`
	TxRefAlt string          `json:"txRef"`
	Status   string          `json:"status"`
}

// ParseNotification accepts both the nested data.tx_ref layout and the flat
// txRef layout older dashboards still send.
func ParseNotification(body []byte) (*Notification, error) {
	var env notificationEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, errors.NewValidationError("malformed webhook payload", errors.ErrCodeInvalidPayload).WithCause(err)
	}

	n := &Notification{
		Event:       firstNonEmpty(env.Event, env.EventType),
		GatewayTxID: gatewaytypes.IDString(env.ID),
		Status:      env.Status,
	}
	if env.Data != nil {
		n.TxRef = firstNonEmpty(env.Data.TxRef, env.Data.TxRefAlt)
		if id := gatewaytypes.IDString(env.Data.ID); id != "" {
			n.GatewayTxID = id
		}
		n.Status = firstNonEmpty(env.Data.Status, n.Status)
	}
	n.TxRef = firstNonEmpty(n.TxRef, env.TxRef, env.TxRefAlt)

	if n.TxRef == "" {
		return nil, errors.NewValidationError("webhook payload carries no tx_ref", errors.ErrCodeMissingTxRef)
	}
	return n, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// WebhookVerifier confirms payments from gateway callbacks. The callback only
// says which reference to look at; the outcome always comes from a fresh
// verification call, and the transition is the ledger's conditional update.
type WebhookVerifier struct {
	secret   []byte
	gateway  Gateway
	repo     RepositoryAPI
	eventLog EventLogAPI
	ledger   *ledger
	logger   *slog.Logger
}

func NewWebhookVerifier(secret string, gateway Gateway, repo RepositoryAPI, eventLog EventLogAPI, publisher EventPublisher, enforceAmountMatch bool, logger *slog.Logger) *WebhookVerifier {
	return &WebhookVerifier{
		secret:   []byte(secret),
		gateway:  gateway,
		repo:     repo,
		eventLog: eventLog,
		ledger:   newLedger(repo, publisher, enforceAmountMatch, logger),
		logger:   logger,
	}
}

// Authenticate compares the verif-hash header with the shared secret in constant time.
func (v *WebhookVerifier) Authenticate(signature string) error {
	if len(v.secret) == 0 || signature == "" {
		return errors.ErrInvalidSignature
	}
	if subtle.ConstantTimeCompare([]byte(signature), v.secret) != 1 {
		return errors.ErrInvalidSignature
	}
	return nil
}

func (v *WebhookVerifier) HandleNotification(ctx context.Context, d Delivery) (*WebhookResult, error) {
	if err := v.Authenticate(d.Signature); err != nil {
		v.logger.Warn("webhook rejected: invalid signature")
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(d.Body, maxWebhookBytes))
	if err != nil {
		return nil, errors.NewValidationError("unreadable webhook body", errors.ErrCodeInvalidPayload).WithCause(err)
	}

	n, err := ParseNotification(body)
	if err != nil {
		v.logger.Warn("webhook rejected: unusable payload", "error", err)
		v.record(ctx, &Notification{}, body, OutcomeRejected, err.Error())
		return nil, err
	}

	log := v.logger.With("tx_ref", n.TxRef, "gateway_tx_id", n.GatewayTxID, "event", n.Event)
	log.Info("webhook received", "reported_status", n.Status)

	verification, err := v.gateway.VerifyByReference(ctx, n.TxRef)
	if err != nil {
		log.Error("gateway verification failed", "error", err)
		v.record(ctx, n, body, OutcomeError, err.Error())
		return nil, errors.NewInternalError("could not verify transaction with gateway", err)
	}

	record, err := v.repo.GetByTxRef(ctx, n.TxRef)
	if err != nil {
		if errors.Is(err, ErrPaymentNotFound) {
			log.Warn("webhook for unknown fee payment")
			v.record(ctx, n, body, OutcomeUnknownReference, "no ledger row for tx_ref")
			return &WebhookResult{Outcome: OutcomeUnknownReference, TxRef: n.TxRef, Message: "unknown reference"}, nil
		}
		log.Error("failed to load fee payment", "error", err)
		v.record(ctx, n, body, OutcomeError, err.Error())
		return nil, errors.NewInternalError("could not load fee payment", err)
	}

	decision, err := v.ledger.settle(ctx, record, verification, n.GatewayTxID, true)
	if err != nil {
		log.Error("failed to apply verification", "error", err)
		v.record(ctx, n, body, OutcomeError, err.Error())
		return nil, err
	}

	v.record(ctx, n, body, decision.Outcome, decision.Reason)

	return &WebhookResult{Outcome: decision.Outcome, TxRef: n.TxRef, Message: decision.Reason, Code: decision.Code}, nil
}

// record writes the delivery log. It never changes the response.
func (v *WebhookVerifier) record(ctx context.Context, n *Notification, body []byte, outcome Outcome, detail string) {
	if v.eventLog == nil {
		return
	}
	entry := &datamodel.FeePaymentEvent{
		TxRef:       n.TxRef,
		GatewayTxID: n.GatewayTxID,
		EventType:   n.Event,
		Outcome:     string(outcome),
		Detail:      detail,
	}
	if json.Valid(body) {
		entry.Payload = datatypes.JSON(body)
	}
	if err := v.eventLog.Record(ctx, entry); err != nil {
		v.logger.Error("failed to record webhook delivery", "tx_ref", n.TxRef, "error", err)
	}
}
