package feepayment_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	errors "github.com/bhs-school/fee-payments/internal"
	datamodel "github.com/bhs-school/fee-payments/internal/core/datamodel/feepayment"
	gatewaytypes "github.com/bhs-school/fee-payments/internal/core/datamodel/paymentgateway"
	studentmodel "github.com/bhs-school/fee-payments/internal/core/datamodel/student"
	"github.com/bhs-school/fee-payments/internal/core/events"
	"github.com/bhs-school/fee-payments/internal/feepayment"
)

// MockRepository keeps the ledger in memory and honours the pending-only transition rule.
type MockRepository struct {
	mu            sync.Mutex
	rows          map[string]*datamodel.FeePayment
	createErr     error
	getErr        error
	transitionErr error
	transitions   int
}

func NewMockRepository() *MockRepository {
	return &MockRepository{rows: make(map[string]*datamodel.FeePayment)}
}

func (m *MockRepository) Create(ctx context.Context, p *datamodel.FeePayment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if _, exists := m.rows[p.TxRef]; exists {
		return feepayment.ErrDuplicateTxRef
	}
	row := *p
	m.rows[p.TxRef] = &row
	return nil
}

func (m *MockRepository) GetByTxRef(ctx context.Context, txRef string) (*datamodel.FeePayment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	row, ok := m.rows[txRef]
	if !ok {
		return nil, feepayment.ErrPaymentNotFound
	}
	clone := *row
	return &clone, nil
}

func (m *MockRepository) TransitionFromPending(ctx context.Context, txRef string, t datamodel.Transition) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.transitionErr != nil {
		return 0, m.transitionErr
	}
	row, ok := m.rows[txRef]
	if !ok || row.Status != datamodel.StatusPending {
		return 0, nil
	}
	m.transitions++
	row.Status = t.Status
	row.UpdatedAt = time.Now().UTC()
	if t.ExternalRef != nil {
		ref := *t.ExternalRef
		row.ExternalRef = &ref
	}
	if t.Remark != "" {
		if row.Remarks == "" {
			row.Remarks = t.Remark
		} else {
			row.Remarks += "; " + t.Remark
		}
	}
	if t.RawResponse != nil {
		row.RawResponse = t.RawResponse
	}
	return 1, nil
}

func (m *MockRepository) ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]*datamodel.FeePayment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*datamodel.FeePayment
	for _, row := range m.rows {
		if row.Status == datamodel.StatusPending && row.CreatedAt.Before(createdBefore) {
			clone := *row
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockRepository) ListByStudent(ctx context.Context, studentID string) ([]*datamodel.FeePayment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*datamodel.FeePayment
	for _, row := range m.rows {
		if row.StudentID == studentID {
			clone := *row
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (m *MockRepository) row(txRef string) *datamodel.FeePayment {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[txRef]
	if !ok {
		return nil
	}
	clone := *row
	return &clone
}

func (m *MockRepository) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

type MockGateway struct {
	mu          sync.Mutex
	sessionLink string
	sessionErr  error
	sessions    []*gatewaytypes.SessionRequest
	verify      func(txRef string) (*gatewaytypes.Verification, error)
	verifyCalls int
}

func NewMockGateway() *MockGateway {
	return &MockGateway{sessionLink: "https://checkout.flutterwave.com/v3/hosted/pay/abc123"}
}

func (g *MockGateway) CreateSession(ctx context.Context, req *gatewaytypes.SessionRequest) (*gatewaytypes.SessionResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sessions = append(g.sessions, req)
	if g.sessionErr != nil {
		return nil, g.sessionErr
	}
	return &gatewaytypes.SessionResult{Link: g.sessionLink, RawBody: []byte(`{"status":"success"}`)}, nil
}

func (g *MockGateway) VerifyByReference(ctx context.Context, txRef string) (*gatewaytypes.Verification, error) {
	g.mu.Lock()
	g.verifyCalls++
	verify := g.verify
	g.mu.Unlock()
	if verify == nil {
		return nil, errors.NewInternalError("no verification configured", nil)
	}
	return verify(txRef)
}

func (g *MockGateway) sessionCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sessions)
}

func (g *MockGateway) verifications() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.verifyCalls
}

// settled returns a successful UGX verification for txRef.
func settled(txRef, gatewayID string, amount int64) *gatewaytypes.Verification {
	return &gatewaytypes.Verification{
		Settled:       true,
		ResponseState: gatewaytypes.ResponseStatusSuccess,
		Status:        gatewaytypes.TransactionSuccessful,
		Message:       "Transaction fetched successfully",
		TxRef:         txRef,
		GatewayTxID:   gatewayID,
		Amount:        decimal.NewFromInt(amount),
		Currency:      "UGX",
		CustomerEmail: "jane@example.com",
		RawBody:       []byte(`{"status":"success","data":{"status":"successful"}}`),
	}
}

func unsettled(status string) *gatewaytypes.Verification {
	return &gatewaytypes.Verification{
		ResponseState: gatewaytypes.ResponseStatusSuccess,
		Status:        status,
		Message:       "Transaction fetched successfully",
		Currency:      "UGX",
		RawBody:       []byte(`{"status":"success","data":{"status":"` + status + `"}}`),
	}
}

type MockStudentDirectory struct {
	students map[string]*studentmodel.Student
}

func NewMockStudentDirectory() *MockStudentDirectory {
	return &MockStudentDirectory{students: map[string]*studentmodel.Student{
		"S123": {ID: "S123", FullName: "Tom Pupil", ClassName: "P5", IsActive: true},
	}}
}

func (d *MockStudentDirectory) Lookup(ctx context.Context, studentID string) (*studentmodel.Student, error) {
	s, ok := d.students[studentID]
	if !ok {
		return nil, errors.NewValidationFieldError("student_id", "unknown student", errors.ErrCodeUnknownStudent)
	}
	return s, nil
}

type RecordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *RecordingPublisher) Publish(ctx context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *RecordingPublisher) ofType(eventType string) []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.Event
	for _, e := range p.events {
		if e.EventType() == eventType {
			out = append(out, e)
		}
	}
	return out
}

type MockEventLog struct {
	mu      sync.Mutex
	entries []*datamodel.FeePaymentEvent
}

func (l *MockEventLog) Record(ctx context.Context, e *datamodel.FeePaymentEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
	return nil
}

func (l *MockEventLog) recorded() []*datamodel.FeePaymentEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*datamodel.FeePaymentEvent(nil), l.entries...)
}

type StubStats struct {
	totals []datamodel.StatusTotal
	err    error
}

func (s *StubStats) StatusTotals(ctx context.Context) ([]datamodel.StatusTotal, error) {
	return s.totals, s.err
}
