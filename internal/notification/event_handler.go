package notification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bhs-school/fee-payments/internal/core/events"
)

type EventHandler struct {
	notifier   Notifier
	schoolName string
	logger     *slog.Logger
}

func NewEventHandler(notifier Notifier, schoolName string, logger *slog.Logger) *EventHandler {
	return &EventHandler{
		notifier:   notifier,
		schoolName: schoolName,
		logger:     logger,
	}
}

func (h *EventHandler) HandleFeePaymentCompleted(ctx context.Context, event events.Event) error {
	completed, ok := event.(*events.FeePaymentCompletedEvent)
	if !ok {
		h.logger.Error("invalid event type for fee payment completed handler", "event_type", event.EventType())
		return fmt.Errorf("expected FeePaymentCompletedEvent, got %T", event)
	}

	if completed.PayerEmail == "" {
		h.logger.Warn("no payer email on completed fee payment, receipt skipped",
			"tx_ref", completed.TxRef,
			"event_id", completed.EventID())
		return nil
	}

	receipt := Receipt{
		TxRef:       completed.TxRef,
		StudentID:   completed.StudentID,
		StudentName: completed.StudentName,
		PayerName:   completed.PayerName,
		PayerEmail:  completed.PayerEmail,
		Amount:      completed.Amount,
		Currency:    completed.Currency,
		ExternalRef: completed.ExternalRef,
		PaidAt:      completed.PaidAt,
		SchoolName:  h.schoolName,
	}

	if err := h.notifier.SendPaymentReceipt(ctx, receipt); err != nil {
		h.logger.Error("failed to send fee payment receipt",
			"error", err,
			"tx_ref", completed.TxRef,
			"event_id", completed.EventID())
		return fmt.Errorf("receipt for %s: %w", completed.TxRef, err)
	}

	h.logger.Info("fee payment receipt sent",
		"tx_ref", completed.TxRef,
		"payer_email", completed.PayerEmail,
		"event_id", completed.EventID())
	return nil
}

func (h *EventHandler) HandleFeePaymentFailed(ctx context.Context, event events.Event) error {
	failed, ok := event.(*events.FeePaymentFailedEvent)
	if !ok {
		return fmt.Errorf("expected FeePaymentFailedEvent, got %T", event)
	}
	h.logger.Info("fee payment failed",
		"tx_ref", failed.TxRef,
		"student_id", failed.StudentID,
		"reason", failed.Reason)
	return nil
}

func (h *EventHandler) RegisterEventHandlers(eventBus *events.EventBus) {
	eventBus.Subscribe(events.EventTypeFeePaymentCompleted, h.HandleFeePaymentCompleted)
	eventBus.Subscribe(events.EventTypeFeePaymentFailed, h.HandleFeePaymentFailed)

	h.logger.Info("notification event handlers registered",
		"handlers", []string{events.EventTypeFeePaymentCompleted, events.EventTypeFeePaymentFailed})
}
