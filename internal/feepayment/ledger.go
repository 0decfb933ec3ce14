package feepayment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	errors "github.com/bhs-school/fee-payments/internal"
	datamodel "github.com/bhs-school/fee-payments/internal/core/datamodel/feepayment"
	gatewaytypes "github.com/bhs-school/fee-payments/internal/core/datamodel/paymentgateway"
	"github.com/bhs-school/fee-payments/internal/core/events"
)

// Outcome is what a verification did to a ledger row.
type Outcome string

const (
	OutcomeCompleted        Outcome = "completed"
	OutcomeAlreadyProcessed Outcome = "already_processed"
	OutcomeFailed           Outcome = "failed"
	OutcomeRejected         Outcome = "rejected"
	OutcomeUnknownReference Outcome = "unknown_reference"
	OutcomeStillPending     Outcome = "still_pending"
	OutcomeError            Outcome = "error"
)

// Accepted reports whether the gateway should stop redelivering.
func (o Outcome) Accepted() bool {
	return o == OutcomeCompleted || o == OutcomeAlreadyProcessed || o == OutcomeUnknownReference
}

type Decision struct {
	Outcome Outcome
	// Applied is true only for the caller whose conditional update moved the row.
	Applied bool
	Reason  string
	// Code classifies a refusal; empty for accepted outcomes.
	Code errors.ErrorCode
}

// ledger applies gateway verifications to pending rows. Both the webhook and
// the reconciler go through it so they cannot disagree on a transition.
type ledger struct {
	repo               RepositoryAPI
	publisher          EventPublisher
	enforceAmountMatch bool
	now                func() time.Time
	logger             *slog.Logger
}

func newLedger(repo RepositoryAPI, publisher EventPublisher, enforceAmountMatch bool, logger *slog.Logger) *ledger {
	return &ledger{
		repo:               repo,
		publisher:          publisher,
		enforceAmountMatch: enforceAmountMatch,
		now:                time.Now,
		logger:             logger,
	}
}

// settle decides and applies the transition for record. When failUnsettled is
// false an in-flight gateway transaction leaves the row pending.
func (l *ledger) settle(ctx context.Context, record *datamodel.FeePayment, v *gatewaytypes.Verification, notifiedID string, failUnsettled bool) (Decision, error) {
	if !v.Settled {
		if !failUnsettled && !v.ExplicitlyFailed() {
			return Decision{Outcome: OutcomeStillPending, Reason: "gateway transaction still in progress"}, nil
		}
		return l.fail(ctx, record, v, OutcomeFailed, errors.ErrCodeVerificationFailed, "verification: "+describeUnsettled(v))
	}

	if v.TxRef != "" && v.TxRef != record.TxRef {
		return l.fail(ctx, record, v, OutcomeRejected, errors.ErrCodeVerificationFailed,
			fmt.Sprintf("verification: gateway returned reference %s", v.TxRef))
	}

	if v.Currency != datamodel.CurrencyUGX {
		return l.fail(ctx, record, v, OutcomeRejected, errors.ErrCodeCurrencyMismatch,
			fmt.Sprintf("currency mismatch: expected %s, got %s", datamodel.CurrencyUGX, v.Currency))
	}

	var remark string
	if !v.Amount.Equal(record.AmountPaid) {
		remark = fmt.Sprintf("amount mismatch: expected %s, gateway settled %s", record.AmountPaid.String(), v.Amount.String())
		if l.enforceAmountMatch {
			return l.fail(ctx, record, v, OutcomeRejected, errors.ErrCodeAmountMismatch, remark)
		}
		l.logger.Warn("settled amount differs from requested amount",
			"tx_ref", record.TxRef,
			"requested", record.AmountPaid.String(),
			"settled", v.Amount.String())
	}

	externalRef := v.GatewayTxID
	if externalRef == "" {
		externalRef = notifiedID
	}
	if externalRef == "" {
		return l.fail(ctx, record, v, OutcomeRejected, errors.ErrCodeVerificationFailed, "verification: gateway returned no transaction id")
	}

	return l.complete(ctx, record, v, externalRef, remark)
}

func (l *ledger) complete(ctx context.Context, record *datamodel.FeePayment, v *gatewaytypes.Verification, externalRef, remark string) (Decision, error) {
	snap := decodeSnapshot(record.RawResponse)
	snap.Verification = v.RawBody

	rows, err := l.repo.TransitionFromPending(ctx, record.TxRef, datamodel.Transition{
		Status:      datamodel.StatusCompleted,
		ExternalRef: &externalRef,
		Remark:      remark,
		RawResponse: snap.encode(),
	})
	if err != nil {
		return Decision{}, errors.NewPersistenceError("could not complete fee payment", errors.ErrCodeStoreFailure, err)
	}

	if rows == 0 {
		l.logger.Info("fee payment already processed", "tx_ref", record.TxRef, "status", record.Status)
		return Decision{Outcome: OutcomeAlreadyProcessed, Reason: "already processed"}, nil
	}

	l.logger.Info("fee payment completed",
		"tx_ref", record.TxRef,
		"student_id", record.StudentID,
		"external_ref", externalRef)

	record.Status = datamodel.StatusCompleted
	record.ExternalRef = &externalRef
	l.publish(ctx, receiptEvent(record, snap, v, l.now()))

	return Decision{Outcome: OutcomeCompleted, Applied: true, Reason: "payment confirmed"}, nil
}

// fail moves a pending row to failed. A row that is already terminal is left
// alone and reported as already processed so the gateway stops redelivering.
func (l *ledger) fail(ctx context.Context, record *datamodel.FeePayment, v *gatewaytypes.Verification, outcome Outcome, code errors.ErrorCode, reason string) (Decision, error) {
	snap := decodeSnapshot(record.RawResponse)
	if v != nil {
		snap.Verification = v.RawBody
	}

	rows, err := l.repo.TransitionFromPending(ctx, record.TxRef, datamodel.Transition{
		Status:      datamodel.StatusFailed,
		Remark:      reason,
		RawResponse: snap.encode(),
	})
	if err != nil {
		return Decision{}, errors.NewPersistenceError("could not fail fee payment", errors.ErrCodeStoreFailure, err)
	}

	if rows == 0 {
		l.logger.Info("fee payment already processed, failure not applied",
			"tx_ref", record.TxRef,
			"status", record.Status,
			"reason", reason)
		return Decision{Outcome: OutcomeAlreadyProcessed, Reason: "already processed"}, nil
	}

	l.logger.Warn("fee payment failed", "tx_ref", record.TxRef, "reason", reason)
	record.Status = datamodel.StatusFailed
	l.publish(ctx, events.NewFeePaymentFailedEvent(record.TxRef, record.StudentID, record.AmountPaid, reason))

	return Decision{Outcome: outcome, Applied: true, Reason: reason, Code: code}, nil
}

func (l *ledger) publish(ctx context.Context, event events.Event) {
	if l.publisher == nil {
		return
	}
	if err := l.publisher.Publish(ctx, event); err != nil {
		l.logger.Error("failed to publish fee payment event",
			"event_type", event.EventType(),
			"event_id", event.EventID(),
			"error", err)
	}
}

func describeUnsettled(v *gatewaytypes.Verification) string {
	switch {
	case v.Status != "":
		return fmt.Sprintf("transaction %s", v.Status)
	case v.Message != "":
		return v.Message
	default:
		return "transaction not settled"
	}
}

// receiptEvent builds the completion event for a completed row. Payer details
// come from the initiation audit, falling back to the gateway's customer record.
func receiptEvent(record *datamodel.FeePayment, snap snapshot, v *gatewaytypes.Verification, paidAt time.Time) *events.FeePaymentCompletedEvent {
	p := events.FeePaymentCompleted{
		TxRef:     record.TxRef,
		StudentID: record.StudentID,
		Amount:    record.AmountPaid,
		Currency:  record.Currency,
		PaidAt:    paidAt.UTC(),
	}
	if record.ExternalRef != nil {
		p.ExternalRef = *record.ExternalRef
	}
	if snap.Initiation != nil {
		p.StudentName = snap.Initiation.StudentName
		p.PayerName = snap.Initiation.Payer.Name
		p.PayerEmail = snap.Initiation.Payer.Email
	}
	if v != nil {
		if p.PayerEmail == "" {
			p.PayerEmail = v.CustomerEmail
		}
		if p.PayerName == "" {
			p.PayerName = v.CustomerName
		}
	}
	return events.NewFeePaymentCompletedEvent(p)
}

// ReceiptEventFor rebuilds the completion event from a stored row.
func ReceiptEventFor(record *datamodel.FeePayment) (*events.FeePaymentCompletedEvent, error) {
	if record.Status != datamodel.StatusCompleted {
		return nil, errors.NewValidationError(
			fmt.Sprintf("fee payment %s is %s, not completed", record.TxRef, record.Status),
			errors.ErrCodeValidationFailed)
	}
	return receiptEvent(record, decodeSnapshot(record.RawResponse), nil, record.UpdatedAt), nil
}
