package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventTypeFeePaymentCompleted = "fee_payment.completed"
	EventTypeFeePaymentFailed    = "fee_payment.failed"
)

// FeePaymentCompletedEvent is emitted once, by whichever caller moved the
// payment from pending to completed.
type FeePaymentCompletedEvent struct {
	BaseEvent
	TxRef       string          `json:"tx_ref"`
	StudentID   string          `json:"student_id"`
	StudentName string          `json:"student_name"`
	PayerName   string          `json:"payer_name"`
	PayerEmail  string          `json:"payer_email"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	ExternalRef string          `json:"external_ref"`
	PaidAt      time.Time       `json:"paid_at"`
}

type FeePaymentCompleted struct {
	TxRef       string
	StudentID   string
	StudentName string
	PayerName   string
	PayerEmail  string
	Amount      decimal.Decimal
	Currency    string
	ExternalRef string
	PaidAt      time.Time
}

func NewFeePaymentCompletedEvent(p FeePaymentCompleted) *FeePaymentCompletedEvent {
	return &FeePaymentCompletedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeFeePaymentCompleted,
			Timestamp: time.Now().UTC(),
			Data: map[string]interface{}{
				"tx_ref":       p.TxRef,
				"student_id":   p.StudentID,
				"amount":       p.Amount.String(),
				"currency":     p.Currency,
				"external_ref": p.ExternalRef,
			},
		},
		TxRef:       p.TxRef,
		StudentID:   p.StudentID,
		StudentName: p.StudentName,
		PayerName:   p.PayerName,
		PayerEmail:  p.PayerEmail,
		Amount:      p.Amount,
		Currency:    p.Currency,
		ExternalRef: p.ExternalRef,
		PaidAt:      p.PaidAt,
	}
}

type FeePaymentFailedEvent struct {
	BaseEvent
	TxRef     string          `json:"tx_ref"`
	StudentID string          `json:"student_id"`
	Amount    decimal.Decimal `json:"amount"`
	Reason    string          `json:"reason"`
}

func NewFeePaymentFailedEvent(txRef, studentID string, amount decimal.Decimal, reason string) *FeePaymentFailedEvent {
	return &FeePaymentFailedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeFeePaymentFailed,
			Timestamp: time.Now().UTC(),
			Data: map[string]interface{}{
				"tx_ref":     txRef,
				"student_id": studentID,
				"amount":     amount.String(),
				"reason":     reason,
			},
		},
		TxRef:     txRef,
		StudentID: studentID,
		Amount:    amount,
		Reason:    reason,
	}
}
