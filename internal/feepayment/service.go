package feepayment

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	errors "github.com/bhs-school/fee-payments/internal"
	datamodel "github.com/bhs-school/fee-payments/internal/core/datamodel/feepayment"
	gatewaytypes "github.com/bhs-school/fee-payments/internal/core/datamodel/paymentgateway"
	"github.com/bhs-school/fee-payments/internal/paymentgateway"
)

// Settings carries the school specific parts of a checkout session.
type Settings struct {
	RefPrefix      string
	SchoolName     string
	SchoolLogoURL  string
	PaymentOptions string
	RedirectPath   string
}

type ServiceAPI interface {
	Initiate(ctx context.Context, req *InitiatePaymentRequest) (*InitiatePaymentResponse, error)
	GetPaymentStatus(ctx context.Context, txRef string) (*PaymentStatusResponse, error)
	ListStudentPayments(ctx context.Context, studentID string) (*StudentPaymentsResponse, error)
	LedgerStats(ctx context.Context) (*LedgerStatsResponse, error)
}

type Service struct {
	repo     RepositoryAPI
	students StudentDirectory
	gateway  Gateway
	stats    StatsAPI
	settings Settings
	now      func() time.Time
	logger   *slog.Logger
}

func NewService(repo RepositoryAPI, students StudentDirectory, gateway Gateway, stats StatsAPI, settings Settings, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		students: students,
		gateway:  gateway,
		stats:    stats,
		settings: settings,
		now:      time.Now,
		logger:   logger,
	}
}

// WithClock replaces the clock used for references and timestamps.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Initiate records a pending fee payment and opens a checkout session for it.
// The row is written before the gateway is called; if the gateway refuses, the
// same row is failed with the gateway's message.
func (s *Service) Initiate(ctx context.Context, req *InitiatePaymentRequest) (*InitiatePaymentResponse, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		s.logger.Info("fee payment request rejected", "student_id", req.StudentID, "error", err)
		return nil, err
	}

	student, err := s.students.Lookup(ctx, req.StudentID)
	if err != nil {
		return nil, err
	}
	studentName := req.StudentName
	if studentName == "" {
		studentName = student.FullName
	}

	now := s.now().UTC()
	txRef := NewReference(s.settings.RefPrefix, req.StudentID, now)

	snap := snapshot{Initiation: &initiationAudit{
		Payer:       payerContact{Name: req.Name, Email: req.Email, Phone: req.Phone},
		StudentName: studentName,
		OriginURL:   req.OriginURL,
		InitiatedAt: now,
	}}

	record := &datamodel.FeePayment{
		StudentID:     req.StudentID,
		AmountPaid:    req.Amount.Round(2),
		Currency:      datamodel.CurrencyUGX,
		PaymentMethod: datamodel.MethodMobileMoney,
		Provider:      datamodel.ProviderFlutterwave,
		Status:        datamodel.StatusPending,
		TxRef:         txRef,
		RawResponse:   snap.encode(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.repo.Create(ctx, record); err != nil {
		s.logger.Error("failed to record fee payment", "tx_ref", txRef, "error", err)
		if errors.Is(err, ErrDuplicateTxRef) {
			return nil, err
		}
		return nil, errors.NewPersistenceError("could not record payment attempt", errors.ErrCodeStoreFailure, err)
	}

	s.logger.Info("fee payment recorded",
		"tx_ref", txRef,
		"student_id", req.StudentID,
		"amount", record.AmountPaid.String())

	session, err := s.gateway.CreateSession(ctx, s.sessionRequest(record, req, studentName))
	if err != nil {
		return nil, s.failInitiation(ctx, record, snap, err)
	}

	s.logger.Info("checkout session created", "tx_ref", txRef)

	return &InitiatePaymentResponse{Link: session.Link, TxRef: txRef}, nil
}

func (s *Service) sessionRequest(record *datamodel.FeePayment, req *InitiatePaymentRequest, studentName string) *gatewaytypes.SessionRequest {
	redirect := fmt.Sprintf("%s%s?tx_ref=%s&status=verifying",
		req.OriginURL, s.settings.RedirectPath, url.QueryEscape(record.TxRef))

	return &gatewaytypes.SessionRequest{
		TxRef:          record.TxRef,
		Amount:         json.Number(record.AmountPaid.String()),
		Currency:       datamodel.CurrencyUGX,
		RedirectURL:    redirect,
		PaymentOptions: s.settings.PaymentOptions,
		Customer: gatewaytypes.Customer{
			Email:       req.Email,
			PhoneNumber: req.Phone,
			Name:        req.Name,
		},
		Customizations: gatewaytypes.Customizations{
			Title:       s.settings.SchoolName,
			Description: fmt.Sprintf("School fees for %s", studentName),
			Logo:        s.settings.SchoolLogoURL,
		},
		Meta: map[string]string{"student_id": record.StudentID},
	}
}

func (s *Service) failInitiation(ctx context.Context, record *datamodel.FeePayment, snap snapshot, cause error) error {
	message := cause.Error()
	code := errors.ErrCodeGatewayUnavailable

	var gwErr *paymentgateway.GatewayError
	if errors.As(cause, &gwErr) {
		message = gwErr.Message
		code = errors.ErrCodeGatewayRejected
		snap.Gateway = gwErr.RawBody
	}

	rows, err := s.repo.TransitionFromPending(ctx, record.TxRef, datamodel.Transition{
		Status:      datamodel.StatusFailed,
		Remark:      "gateway: " + message,
		RawResponse: snap.encode(),
	})
	if err != nil {
		s.logger.Error("failed to mark fee payment failed after gateway error",
			"tx_ref", record.TxRef,
			"error", err)
	} else if rows == 0 {
		s.logger.Warn("fee payment left pending state before gateway failure was recorded", "tx_ref", record.TxRef)
	}

	s.logger.Warn("checkout session refused", "tx_ref", record.TxRef, "reason", message)

	return errors.NewGatewayError(message, code, cause)
}

func (s *Service) GetPaymentStatus(ctx context.Context, txRef string) (*PaymentStatusResponse, error) {
	if txRef == "" {
		return nil, errors.NewValidationError("tx_ref is required", errors.ErrCodeMissingTxRef)
	}
	record, err := s.repo.GetByTxRef(ctx, txRef)
	if err != nil {
		if errors.Is(err, ErrPaymentNotFound) {
			return nil, err
		}
		return nil, errors.NewPersistenceError("could not load fee payment", errors.ErrCodeStoreFailure, err)
	}
	resp := ToPaymentStatusResponse(record)
	return &resp, nil
}

func (s *Service) ListStudentPayments(ctx context.Context, studentID string) (*StudentPaymentsResponse, error) {
	records, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, errors.NewPersistenceError("could not list fee payments", errors.ErrCodeStoreFailure, err)
	}
	resp := &StudentPaymentsResponse{
		StudentID: studentID,
		Payments:  make([]PaymentStatusResponse, 0, len(records)),
	}
	for _, record := range records {
		resp.Payments = append(resp.Payments, ToPaymentStatusResponse(record))
	}
	return resp, nil
}

func (s *Service) LedgerStats(ctx context.Context) (*LedgerStatsResponse, error) {
	if s.stats == nil {
		return nil, errors.NewInternalError("ledger statistics are not configured", nil)
	}
	totals, err := s.stats.StatusTotals(ctx)
	if err != nil {
		return nil, errors.NewPersistenceError("could not load ledger statistics", errors.ErrCodeStoreFailure, err)
	}
	return &LedgerStatsResponse{Totals: totals, GeneratedAt: s.now().UTC()}, nil
}
