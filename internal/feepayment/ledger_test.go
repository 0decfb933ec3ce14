package feepayment_test

import (
	"context"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	errors "github.com/bhs-school/fee-payments/internal"
	datamodel "github.com/bhs-school/fee-payments/internal/core/datamodel/feepayment"
	gatewaytypes "github.com/bhs-school/fee-payments/internal/core/datamodel/paymentgateway"
	"github.com/bhs-school/fee-payments/internal/core/events"
	"github.com/bhs-school/fee-payments/internal/feepayment"
	"github.com/bhs-school/fee-payments/pkg/logger"
)

var _ = Describe("ReceiptEventFor", func() {
	var repo *MockRepository

	BeforeEach(func() {
		repo = NewMockRepository()
		seedPending(repo, pendingRef, 50000, time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC))
	})

	It("refuses a payment that is still pending", func() {
		_, err := feepayment.ReceiptEventFor(repo.row(pendingRef))

		appErr, ok := errors.IsAppError(err)
		Expect(ok).To(BeTrue())
		Expect(appErr.Type).To(Equal(errors.ErrorTypeValidation))
		Expect(appErr.StatusCode).To(Equal(400))
		Expect(appErr.Message).To(ContainSubstring("is pending, not completed"))
	})

	It("refuses a failed payment", func() {
		_, err := repo.TransitionFromPending(context.Background(), pendingRef, datamodel.Transition{
			Status: datamodel.StatusFailed,
			Remark: "verification: transaction failed",
		})
		Expect(err).NotTo(HaveOccurred())

		_, err = feepayment.ReceiptEventFor(repo.row(pendingRef))

		Expect(err).To(MatchError(ContainSubstring("is failed, not completed")))
	})

	It("rebuilds the receipt from a completed row after confirmation", func() {
		gateway := NewMockGateway()
		gateway.verify = func(txRef string) (*gatewaytypes.Verification, error) {
			v := settled(txRef, "987654", 50000)
			v.CustomerEmail = "someone-else@example.com"
			return v, nil
		}
		verifier := feepayment.NewWebhookVerifier(webhookSecret, gateway, repo, &MockEventLog{}, &RecordingPublisher{}, false, logger.Discard())
		_, err := verifier.HandleNotification(context.Background(), feepayment.Delivery{
			Signature: webhookSecret,
			Body:      strings.NewReader(notificationBody(pendingRef)),
		})
		Expect(err).NotTo(HaveOccurred())

		row := repo.row(pendingRef)
		event, err := feepayment.ReceiptEventFor(row)

		Expect(err).NotTo(HaveOccurred())
		Expect(event.EventType()).To(Equal(events.EventTypeFeePaymentCompleted))
		Expect(event.TxRef).To(Equal(pendingRef))
		Expect(event.StudentID).To(Equal("S123"))
		Expect(event.StudentName).To(Equal("Tom Pupil"))
		Expect(event.PayerName).To(Equal("Jane Parent"))
		Expect(event.PayerEmail).To(Equal("jane@example.com"))
		Expect(event.ExternalRef).To(Equal("987654"))
		Expect(event.Amount.Equal(decimal.NewFromInt(50000))).To(BeTrue())
		Expect(event.Currency).To(Equal(datamodel.CurrencyUGX))
		Expect(event.PaidAt).To(BeTemporally("==", row.UpdatedAt))
	})

	It("leaves payer fields empty when the row has no initiation audit", func() {
		ref := "manual-entry"
		row := &datamodel.FeePayment{
			StudentID:   "S123",
			AmountPaid:  decimal.NewFromInt(20000),
			Currency:    datamodel.CurrencyUGX,
			Status:      datamodel.StatusCompleted,
			TxRef:       "BHS-2024-S123-1",
			ExternalRef: &ref,
			RawResponse: datatypes.JSON(`{"legacy":true}`),
			UpdatedAt:   time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC),
		}

		event, err := feepayment.ReceiptEventFor(row)

		Expect(err).NotTo(HaveOccurred())
		Expect(event.PayerEmail).To(BeEmpty())
		Expect(event.StudentName).To(BeEmpty())
		Expect(event.ExternalRef).To(Equal("manual-entry"))
	})
})
