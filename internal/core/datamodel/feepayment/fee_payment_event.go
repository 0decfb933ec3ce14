package feepayment

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// FeePaymentEvent is one authenticated webhook delivery and what was decided for it.
type FeePaymentEvent struct {
	ID          uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	TxRef       string         `gorm:"column:tx_ref;index"`
	GatewayTxID string         `gorm:"column:gateway_tx_id"`
	EventType   string         `gorm:"column:event_type"`
	Payload     datatypes.JSON `gorm:"column:payload"`
	Outcome     string         `gorm:"column:outcome;not null"`
	Detail      string         `gorm:"column:detail"`
	ReceivedAt  time.Time      `gorm:"column:received_at;not null"`
}

func (FeePaymentEvent) TableName() string {
	return "fee_payment_events"
}

func (e *FeePaymentEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.ReceivedAt.IsZero() {
		e.ReceivedAt = time.Now().UTC()
	}
	return nil
}
