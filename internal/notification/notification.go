package notification

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
)

// Receipt is what a parent is told once a fee payment is confirmed.
type Receipt struct {
	TxRef       string
	StudentID   string
	StudentName string
	PayerName   string
	PayerEmail  string
	Amount      decimal.Decimal
	Currency    string
	ExternalRef string
	PaidAt      time.Time
	SchoolName  string
}

type Notifier interface {
	SendPaymentReceipt(ctx context.Context, receipt Receipt) error
}

// LogNotifier writes receipts to the structured log. Email delivery is done
// by whatever service tails these lines.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) SendPaymentReceipt(ctx context.Context, receipt Receipt) error {
	n.logger.InfoContext(ctx, "fee payment receipt",
		"tx_ref", receipt.TxRef,
		"student_id", receipt.StudentID,
		"student_name", receipt.StudentName,
		"payer_name", receipt.PayerName,
		"payer_email", receipt.PayerEmail,
		"amount", receipt.Amount.StringFixed(2),
		"currency", receipt.Currency,
		"external_ref", receipt.ExternalRef,
		"paid_at", receipt.PaidAt.Format(time.RFC3339),
		"school", receipt.SchoolName)
	return nil
}
