package feepayment

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	errors "github.com/bhs-school/fee-payments/internal"
	"github.com/bhs-school/fee-payments/internal/core/common/validation"
	datamodel "github.com/bhs-school/fee-payments/internal/core/datamodel/feepayment"
)

// InitiatePaymentRequest is the parent-facing checkout request. OriginURL is
// resolved by the transport from the request origin, never from the body.
type InitiatePaymentRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	StudentID   string          `json:"student_id"`
	Phone       string          `json:"phone"`
	Email       string          `json:"email"`
	Name        string          `json:"name"`
	StudentName string          `json:"student_name,omitempty"`
	OriginURL   string          `json:"-"`
}

func (r *InitiatePaymentRequest) Normalize() {
	r.StudentID = strings.TrimSpace(r.StudentID)
	r.Phone = strings.TrimSpace(r.Phone)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Name = strings.TrimSpace(r.Name)
	r.StudentName = strings.TrimSpace(r.StudentName)
	r.OriginURL = strings.TrimRight(strings.TrimSpace(r.OriginURL), "/")
}

func (r *InitiatePaymentRequest) Validate() error {
	validator := validation.NewValidator()

	validator.Field("amount", r.Amount).
		Positive(errors.ErrCodeInvalidAmount).
		MaxDecimalPlaces(2, errors.ErrCodeInvalidAmount)
	validator.Field("student_id", r.StudentID).Required().MaxLength(64)
	validator.Field("phone", r.Phone).Required().Phone()
	validator.Field("email", r.Email).Required().Email()
	validator.Field("name", r.Name).Required().MaxLength(120)
	validator.Field("student_name", r.StudentName).MaxLength(120)
	validator.Field("origin_url", r.OriginURL).Required()

	if appErr := validator.Validate(); appErr != nil {
		return appErr
	}
	return nil
}

type InitiatePaymentResponse struct {
	Link  string `json:"link"`
	TxRef string `json:"tx_ref"`
}

type PaymentStatusResponse struct {
	TxRef         string          `json:"tx_ref"`
	StudentID     string          `json:"student_id"`
	Status        string          `json:"status"`
	Amount        decimal.Decimal `json:"amount_paid"`
	Currency      string          `json:"currency"`
	PaymentMethod string          `json:"payment_method"`
	Provider      string          `json:"provider"`
	ExternalRef   *string         `json:"external_ref"`
	Remarks       string          `json:"remarks,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func ToPaymentStatusResponse(p *datamodel.FeePayment) PaymentStatusResponse {
	return PaymentStatusResponse{
		TxRef:         p.TxRef,
		StudentID:     p.StudentID,
		Status:        p.Status,
		Amount:        p.AmountPaid,
		Currency:      p.Currency,
		PaymentMethod: p.PaymentMethod,
		Provider:      p.Provider,
		ExternalRef:   p.ExternalRef,
		Remarks:       p.Remarks,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

type StudentPaymentsResponse struct {
	StudentID string                  `json:"student_id"`
	Payments  []PaymentStatusResponse `json:"payments"`
}

type LedgerStatsResponse struct {
	Totals      []datamodel.StatusTotal `json:"totals"`
	GeneratedAt time.Time               `json:"generated_at"`
}

type WebhookResponse struct {
	Status  string           `json:"status"`
	Code    errors.ErrorCode `json:"code,omitempty"`
	Message string           `json:"message"`
	TxRef   string           `json:"tx_ref,omitempty"`
}
