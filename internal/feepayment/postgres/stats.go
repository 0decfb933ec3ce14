package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	datamodel "github.com/bhs-school/fee-payments/internal/core/datamodel/feepayment"
	feepaymentpkg "github.com/bhs-school/fee-payments/internal/feepayment"
)

const statusTotalsQuery = `
SELECT status,
       COUNT(*) AS payments,
       COALESCE(SUM(amount_paid), 0) AS amount
FROM fee_payments
GROUP BY status
ORDER BY status`

// StatsRepository runs reporting queries directly through sqlx.
type StatsRepository struct {
	db *sqlx.DB
}

func NewStatsRepository(db *sqlx.DB) feepaymentpkg.StatsAPI {
	return &StatsRepository{db: db}
}

func (r *StatsRepository) StatusTotals(ctx context.Context) ([]datamodel.StatusTotal, error) {
	totals := []datamodel.StatusTotal{}
	if err := r.db.SelectContext(ctx, &totals, statusTotalsQuery); err != nil {
		return nil, err
	}
	return totals, nil
}
