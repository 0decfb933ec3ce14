package feepayment_test

import (
	"context"
	"encoding/json"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	errors "github.com/bhs-school/fee-payments/internal"
	datamodel "github.com/bhs-school/fee-payments/internal/core/datamodel/feepayment"
	"github.com/bhs-school/fee-payments/internal/feepayment"
	"github.com/bhs-school/fee-payments/internal/paymentgateway"
	"github.com/bhs-school/fee-payments/pkg/logger"
)

var _ = Describe("Service", func() {
	var (
		repo     *MockRepository
		gateway  *MockGateway
		students *MockStudentDirectory
		stats    *StubStats
		service  *feepayment.Service
		ctx      context.Context
		now      time.Time
	)

	validRequest := func() *feepayment.InitiatePaymentRequest {
		return &feepayment.InitiatePaymentRequest{
			Amount:    decimal.NewFromInt(50000),
			StudentID: "S123",
			Phone:     "+256700000001",
			Email:     " Jane@Example.com ",
			Name:      "Jane Parent",
			OriginURL: "https://bhs.example/",
		}
	}

	BeforeEach(func() {
		repo = NewMockRepository()
		gateway = NewMockGateway()
		students = NewMockStudentDirectory()
		stats = &StubStats{}
		now = time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
		service = feepayment.NewService(repo, students, gateway, stats, feepayment.Settings{
			RefPrefix:      "BHS",
			SchoolName:     "Bright Horizons School",
			SchoolLogoURL:  "https://bhs.example/logo.png",
			PaymentOptions: "mobilemoneyuganda,card",
			RedirectPath:   "/fees/payment-status",
		}, logger.Discard()).WithClock(func() time.Time { return now })
		ctx = context.Background()
	})

	Describe("Initiate", func() {
		It("records a pending payment and returns the checkout link", func() {
			resp, err := service.Initiate(ctx, validRequest())

			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Link).To(Equal("https://checkout.flutterwave.com/v3/hosted/pay/abc123"))
			Expect(resp.TxRef).To(MatchRegexp(`^BHS-\d{4}-S123-\d+$`))

			row := repo.row(resp.TxRef)
			Expect(row).NotTo(BeNil())
			Expect(row.Status).To(Equal(datamodel.StatusPending))
			Expect(row.StudentID).To(Equal("S123"))
			Expect(row.AmountPaid.Equal(decimal.NewFromInt(50000))).To(BeTrue())
			Expect(row.PaymentMethod).To(Equal(datamodel.MethodMobileMoney))
			Expect(row.Provider).To(Equal(datamodel.ProviderFlutterwave))
			Expect(row.ExternalRef).To(BeNil())
		})

		It("sends the gateway a UGX session that redirects back to the origin", func() {
			resp, err := service.Initiate(ctx, validRequest())
			Expect(err).NotTo(HaveOccurred())

			Expect(gateway.sessions).To(HaveLen(1))
			session := gateway.sessions[0]
			Expect(session.TxRef).To(Equal(resp.TxRef))
			Expect(session.Amount.String()).To(Equal("50000"))
			Expect(session.Currency).To(Equal("UGX"))
			Expect(session.PaymentOptions).To(Equal("mobilemoneyuganda,card"))
			Expect(session.RedirectURL).To(Equal("https://bhs.example/fees/payment-status?tx_ref=" + resp.TxRef + "&status=verifying"))
			Expect(session.Customer.Email).To(Equal("jane@example.com"))
			Expect(session.Customer.PhoneNumber).To(Equal("+256700000001"))
			Expect(session.Customizations.Title).To(Equal("Bright Horizons School"))
			Expect(session.Customizations.Description).To(ContainSubstring("Tom Pupil"))
		})

		It("keeps the payer contact in the raw response", func() {
			resp, err := service.Initiate(ctx, validRequest())
			Expect(err).NotTo(HaveOccurred())

			var raw map[string]map[string]interface{}
			Expect(json.Unmarshal(repo.row(resp.TxRef).RawResponse, &raw)).To(Succeed())
			Expect(raw["initiation"]["origin_url"]).To(Equal("https://bhs.example"))
			Expect(raw["initiation"]["student_name"]).To(Equal("Tom Pupil"))
			Expect(raw["initiation"]["payer"]).To(HaveKeyWithValue("email", "jane@example.com"))
		})

		It("prefers the submitted student name", func() {
			req := validRequest()
			req.StudentName = "Thomas P."

			_, err := service.Initiate(ctx, req)

			Expect(err).NotTo(HaveOccurred())
			Expect(gateway.sessions[0].Customizations.Description).To(ContainSubstring("Thomas P."))
		})

		DescribeTable("rejects invalid requests before any side effect",
			func(mutate func(r *feepayment.InitiatePaymentRequest)) {
				req := validRequest()
				mutate(req)

				_, err := service.Initiate(ctx, req)

				appErr, ok := errors.IsAppError(err)
				Expect(ok).To(BeTrue())
				Expect(appErr.Type).To(Equal(errors.ErrorTypeValidation))
				Expect(repo.count()).To(BeZero())
				Expect(gateway.sessionCount()).To(BeZero())
			},
			Entry("zero amount", func(r *feepayment.InitiatePaymentRequest) { r.Amount = decimal.Zero }),
			Entry("negative amount", func(r *feepayment.InitiatePaymentRequest) { r.Amount = decimal.NewFromInt(-5) }),
			Entry("fractional cents", func(r *feepayment.InitiatePaymentRequest) { r.Amount = decimal.RequireFromString("10.005") }),
			Entry("missing student", func(r *feepayment.InitiatePaymentRequest) { r.StudentID = "" }),
			Entry("missing phone", func(r *feepayment.InitiatePaymentRequest) { r.Phone = "" }),
			Entry("malformed phone", func(r *feepayment.InitiatePaymentRequest) { r.Phone = "call me" }),
			Entry("missing email", func(r *feepayment.InitiatePaymentRequest) { r.Email = "" }),
			Entry("malformed email", func(r *feepayment.InitiatePaymentRequest) { r.Email = "jane.example.com" }),
			Entry("missing name", func(r *feepayment.InitiatePaymentRequest) { r.Name = "  " }),
			Entry("unknown student", func(r *feepayment.InitiatePaymentRequest) { r.StudentID = "S404" }),
		)

		It("fails the row with the gateway message when the session is refused", func() {
			gateway.sessionErr = &paymentgateway.GatewayError{
				Operation:  "create session",
				StatusCode: 400,
				Message:    "Invalid currency",
				RawBody:    []byte(`{"status":"error","message":"Invalid currency"}`),
			}

			_, err := service.Initiate(ctx, validRequest())

			appErr, ok := errors.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(errors.ErrorTypeGateway))
			Expect(appErr.Code).To(Equal(errors.ErrCodeGatewayRejected))
			Expect(appErr.Message).To(Equal("Invalid currency"))

			row := repo.row(feepayment.NewReference("BHS", "S123", now))
			Expect(row.Status).To(Equal(datamodel.StatusFailed))
			Expect(row.Remarks).To(Equal("gateway: Invalid currency"))
			Expect(row.ExternalRef).To(BeNil())
		})

		It("reports an unreachable gateway as a gateway error", func() {
			gateway.sessionErr = paymentgateway.ErrUnavailable

			_, err := service.Initiate(ctx, validRequest())

			appErr, ok := errors.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(errors.ErrCodeGatewayUnavailable))
			Expect(repo.row(feepayment.NewReference("BHS", "S123", now)).Status).To(Equal(datamodel.StatusFailed))
		})

		It("does not call the gateway when the row cannot be written", func() {
			repo.createErr = context.DeadlineExceeded

			_, err := service.Initiate(ctx, validRequest())

			appErr, ok := errors.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(errors.ErrorTypePersistence))
			Expect(gateway.sessionCount()).To(BeZero())
		})

		It("refuses a second initiation in the same millisecond", func() {
			_, err := service.Initiate(ctx, validRequest())
			Expect(err).NotTo(HaveOccurred())

			_, err = service.Initiate(ctx, validRequest())

			Expect(errors.Is(err, feepayment.ErrDuplicateTxRef)).To(BeTrue())
			Expect(gateway.sessionCount()).To(Equal(1))
		})
	})

	Describe("GetPaymentStatus", func() {
		It("returns the stored payment", func() {
			resp, err := service.Initiate(ctx, validRequest())
			Expect(err).NotTo(HaveOccurred())

			status, err := service.GetPaymentStatus(ctx, resp.TxRef)

			Expect(err).NotTo(HaveOccurred())
			Expect(status.Status).To(Equal(datamodel.StatusPending))
			Expect(status.Currency).To(Equal("UGX"))
		})

		It("returns not found for unknown references", func() {
			_, err := service.GetPaymentStatus(ctx, "BHS-2025-NOPE-1")
			Expect(errors.Is(err, feepayment.ErrPaymentNotFound)).To(BeTrue())
		})
	})

	Describe("ListStudentPayments", func() {
		It("lists payments for one student", func() {
			_, err := service.Initiate(ctx, validRequest())
			Expect(err).NotTo(HaveOccurred())

			resp, err := service.ListStudentPayments(ctx, "S123")

			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StudentID).To(Equal("S123"))
			Expect(resp.Payments).To(HaveLen(1))
		})
	})

	Describe("LedgerStats", func() {
		It("returns totals from the stats store", func() {
			stats.totals = []datamodel.StatusTotal{{Status: "completed", Payments: 2, Amount: decimal.NewFromInt(100000)}}

			resp, err := service.LedgerStats(ctx)

			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Totals).To(HaveLen(1))
			Expect(resp.GeneratedAt).To(BeTemporally("==", now))
		})

		It("wraps store failures", func() {
			stats.err = context.Canceled

			_, err := service.LedgerStats(ctx)

			appErr, ok := errors.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(errors.ErrorTypePersistence))
		})
	})
})
