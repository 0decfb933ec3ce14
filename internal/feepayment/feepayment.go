package feepayment

import (
	"context"
	"time"

	errors "github.com/bhs-school/fee-payments/internal"
	datamodel "github.com/bhs-school/fee-payments/internal/core/datamodel/feepayment"
	gatewaytypes "github.com/bhs-school/fee-payments/internal/core/datamodel/paymentgateway"
	studentmodel "github.com/bhs-school/fee-payments/internal/core/datamodel/student"
	"github.com/bhs-school/fee-payments/internal/core/events"
)

// RepositoryAPI is the fee payment ledger. TransitionFromPending is the only
// way a row leaves pending and returns the number of rows it moved.
type RepositoryAPI interface {
	Create(ctx context.Context, p *datamodel.FeePayment) error
	GetByTxRef(ctx context.Context, txRef string) (*datamodel.FeePayment, error)
	TransitionFromPending(ctx context.Context, txRef string, t datamodel.Transition) (int64, error)
	ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]*datamodel.FeePayment, error)
	ListByStudent(ctx context.Context, studentID string) ([]*datamodel.FeePayment, error)
}

type EventLogAPI interface {
	Record(ctx context.Context, e *datamodel.FeePaymentEvent) error
}

type StatsAPI interface {
	StatusTotals(ctx context.Context) ([]datamodel.StatusTotal, error)
}

// StudentDirectory resolves a payable student or returns a validation error.
type StudentDirectory interface {
	Lookup(ctx context.Context, studentID string) (*studentmodel.Student, error)
}

type Gateway interface {
	CreateSession(ctx context.Context, req *gatewaytypes.SessionRequest) (*gatewaytypes.SessionResult, error)
	VerifyByReference(ctx context.Context, txRef string) (*gatewaytypes.Verification, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

var (
	ErrPaymentNotFound = errors.NewNotFoundError("fee payment not found", errors.ErrCodePaymentNotFound)
	ErrDuplicateTxRef  = errors.NewPersistenceError("transaction reference already exists", errors.ErrCodeDuplicateTxRef, nil)
)
