package feepayment

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

const (
	MethodMobileMoney  = "mobile_money"
	MethodCard         = "card"
	MethodCash         = "cash"
	MethodBankTransfer = "bank_transfer"
)

const (
	ProviderFlutterwave = "flutterwave"
	ProviderManual      = "manual"
)

// CurrencyUGX is the only currency a payment can be confirmed in.
const CurrencyUGX = "UGX"

type FeePayment struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	StudentID     string          `gorm:"column:student_id;not null;index"`
	AmountPaid    decimal.Decimal `gorm:"column:amount_paid;type:numeric(14,2);not null"`
	Currency      string          `gorm:"column:currency;not null;default:UGX"`
	PaymentMethod string          `gorm:"column:payment_method;not null"`
	Provider      string          `gorm:"column:provider;not null"`
	Status        string          `gorm:"column:status;not null;default:pending;index"`
	TxRef         string          `gorm:"column:tx_ref;not null;uniqueIndex"`
	ExternalRef   *string         `gorm:"column:external_ref"`
	Remarks       string          `gorm:"column:remarks;not null;default:''"`
	RawResponse   datatypes.JSON  `gorm:"column:raw_response"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime:false"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime:false"`
}

func (FeePayment) TableName() string {
	return "fee_payments"
}

func (p *FeePayment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}
	return nil
}

func (p *FeePayment) IsTerminal() bool {
	return p.Status == StatusCompleted || p.Status == StatusFailed
}

// Transition describes a pending -> terminal move. It is applied only while
// the row is still pending.
type Transition struct {
	Status      string
	ExternalRef *string
	Remark      string
	RawResponse datatypes.JSON
}

// StatusTotal is one row of the per-status ledger summary.
type StatusTotal struct {
	Status   string          `db:"status" json:"status"`
	Payments int64           `db:"payments" json:"payments"`
	Amount   decimal.Decimal `db:"amount" json:"amount"`
}
