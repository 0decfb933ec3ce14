package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	errors "github.com/bhs-school/fee-payments/internal"
	datamodel "github.com/bhs-school/fee-payments/internal/core/datamodel/feepayment"
	feepaymentpkg "github.com/bhs-school/fee-payments/internal/feepayment"
)

const pgUniqueViolation = "23505"

type FeePaymentRepository struct {
	db *gorm.DB
}

func NewFeePaymentRepository(db *gorm.DB) feepaymentpkg.RepositoryAPI {
	return &FeePaymentRepository{
		db: db,
	}
}

func (r *FeePaymentRepository) Create(ctx context.Context, p *datamodel.FeePayment) error {
	err := r.db.WithContext(ctx).Create(p).Error
	if isUniqueViolation(err) {
		return feepaymentpkg.ErrDuplicateTxRef.WithCause(err)
	}
	return err
}

func (r *FeePaymentRepository) GetByTxRef(ctx context.Context, txRef string) (*datamodel.FeePayment, error) {
	var p datamodel.FeePayment
	err := r.db.WithContext(ctx).Where("tx_ref = ?", txRef).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, feepaymentpkg.ErrPaymentNotFound
		}
		return nil, err
	}
	return &p, nil
}

// TransitionFromPending moves the row to a terminal status only if it is still
// pending. Concurrent callers race on this single UPDATE; the row count tells
// each one whether it won.
func (r *FeePaymentRepository) TransitionFromPending(ctx context.Context, txRef string, t datamodel.Transition) (int64, error) {
	switch t.Status {
	case datamodel.StatusCompleted:
		if t.ExternalRef == nil || *t.ExternalRef == "" {
			return 0, fmt.Errorf("completing %s requires an external reference", txRef)
		}
	case datamodel.StatusFailed:
	default:
		return 0, fmt.Errorf("invalid target status %q", t.Status)
	}

	updates := map[string]interface{}{
		"status":     t.Status,
		"updated_at": time.Now().UTC(),
	}
	if t.ExternalRef != nil {
		updates["external_ref"] = *t.ExternalRef
	}
	if len(t.RawResponse) > 0 {
		updates["raw_response"] = t.RawResponse
	}
	if t.Remark != "" {
		updates["remarks"] = gorm.Expr("CASE WHEN COALESCE(remarks, '') = '' THEN ? ELSE remarks || ? END", t.Remark, "; "+t.Remark)
	}

	result := r.db.WithContext(ctx).
		Model(&datamodel.FeePayment{}).
		Where("tx_ref = ? AND status = ?", txRef, datamodel.StatusPending).
		Updates(updates)
	return result.RowsAffected, result.Error
}

func (r *FeePaymentRepository) ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]*datamodel.FeePayment, error) {
	var payments []*datamodel.FeePayment
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", datamodel.StatusPending, createdBefore.UTC()).
		Order("created_at ASC").
		Limit(limit).
		Find(&payments).Error
	return payments, err
}

func (r *FeePaymentRepository) ListByStudent(ctx context.Context, studentID string) ([]*datamodel.FeePayment, error) {
	var payments []*datamodel.FeePayment
	err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("created_at DESC").
		Find(&payments).Error
	return payments, err
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
