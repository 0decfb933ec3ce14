package postgres

import (
	"context"

	"gorm.io/gorm"

	datamodel "github.com/bhs-school/fee-payments/internal/core/datamodel/feepayment"
	feepaymentpkg "github.com/bhs-school/fee-payments/internal/feepayment"
)

var _ feepaymentpkg.EventLogAPI = (*EventLogRepository)(nil)

// EventLogRepository appends webhook deliveries. Rows are never updated.
type EventLogRepository struct {
	db *gorm.DB
}

func NewEventLogRepository(db *gorm.DB) *EventLogRepository {
	return &EventLogRepository{db: db}
}

func (r *EventLogRepository) Record(ctx context.Context, e *datamodel.FeePaymentEvent) error {
	return r.db.WithContext(ctx).Create(e).Error
}

// ListByTxRef returns deliveries for txRef, oldest first.
func (r *EventLogRepository) ListByTxRef(ctx context.Context, txRef string) ([]*datamodel.FeePaymentEvent, error) {
	var entries []*datamodel.FeePaymentEvent
	err := r.db.WithContext(ctx).Where("tx_ref = ?", txRef).Order("received_at ASC").Find(&entries).Error
	return entries, err
}
