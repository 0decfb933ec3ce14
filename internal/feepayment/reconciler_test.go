package feepayment_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	datamodel "github.com/bhs-school/fee-payments/internal/core/datamodel/feepayment"
	gatewaytypes "github.com/bhs-school/fee-payments/internal/core/datamodel/paymentgateway"
	"github.com/bhs-school/fee-payments/internal/core/events"
	"github.com/bhs-school/fee-payments/internal/feepayment"
	"github.com/bhs-school/fee-payments/internal/paymentgateway"
	"github.com/bhs-school/fee-payments/pkg/logger"
)

var _ = Describe("Reconciler", func() {
	const (
		settledRef  = "BHS-2025-S123-1000"
		inFlightRef = "BHS-2025-S123-2000"
		declinedRef = "BHS-2025-S123-3000"
		unreachRef  = "BHS-2025-S123-4000"
		freshRef    = "BHS-2025-S123-5000"
	)

	var (
		repo       *MockRepository
		gateway    *MockGateway
		publisher  *RecordingPublisher
		reconciler *feepayment.Reconciler
		now        time.Time
	)

	BeforeEach(func() {
		repo = NewMockRepository()
		gateway = NewMockGateway()
		publisher = &RecordingPublisher{}
		now = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

		seedPending(repo, settledRef, 50000, now.Add(-2*time.Hour))
		seedPending(repo, inFlightRef, 50000, now.Add(-90*time.Minute))
		seedPending(repo, declinedRef, 50000, now.Add(-time.Hour))
		seedPending(repo, unreachRef, 50000, now.Add(-30*time.Minute))
		seedPending(repo, freshRef, 50000, now.Add(-time.Minute))

		gateway.verify = func(txRef string) (*gatewaytypes.Verification, error) {
			switch txRef {
			case settledRef, freshRef:
				return settled(txRef, "555", 50000), nil
			case inFlightRef:
				return unsettled(gatewaytypes.TransactionPending), nil
			case declinedRef:
				return unsettled(gatewaytypes.TransactionFailed), nil
			default:
				return nil, paymentgateway.ErrUnavailable
			}
		}

		reconciler = feepayment.NewReconciler(repo, gateway, publisher, false, feepayment.ReconcilerConfig{
			StaleAfter: 15 * time.Minute,
			BatchSize:  10,
			Workers:    3,
		}, logger.Discard()).WithClock(func() time.Time { return now })
	})

	It("settles stale payments the gateway has decided", func() {
		summary, err := reconciler.RunOnce(context.Background())

		Expect(err).NotTo(HaveOccurred())
		Expect(summary.Scanned).To(Equal(int64(4)))
		Expect(summary.Completed).To(Equal(int64(1)))
		Expect(summary.Failed).To(Equal(int64(1)))
		Expect(summary.StillPending).To(Equal(int64(1)))
		Expect(summary.Errors).To(Equal(int64(1)))

		Expect(repo.row(settledRef).Status).To(Equal(datamodel.StatusCompleted))
		Expect(*repo.row(settledRef).ExternalRef).To(Equal("555"))
		Expect(repo.row(declinedRef).Status).To(Equal(datamodel.StatusFailed))
		Expect(publisher.ofType(events.EventTypeFeePaymentCompleted)).To(HaveLen(1))
	})

	It("leaves in-flight, unreachable and fresh payments pending", func() {
		_, err := reconciler.RunOnce(context.Background())
		Expect(err).NotTo(HaveOccurred())

		Expect(repo.row(inFlightRef).Status).To(Equal(datamodel.StatusPending))
		Expect(repo.row(unreachRef).Status).To(Equal(datamodel.StatusPending))
		Expect(repo.row(freshRef).Status).To(Equal(datamodel.StatusPending))
	})

	It("is idempotent across sweeps", func() {
		_, err := reconciler.RunOnce(context.Background())
		Expect(err).NotTo(HaveOccurred())

		summary, err := reconciler.RunOnce(context.Background())

		Expect(err).NotTo(HaveOccurred())
		Expect(summary.Scanned).To(Equal(int64(2)))
		Expect(summary.Completed).To(BeZero())
		Expect(publisher.ofType(events.EventTypeFeePaymentCompleted)).To(HaveLen(1))
	})

	It("does nothing when no payment is stale", func() {
		reconciler.WithClock(func() time.Time { return now.Add(-3 * time.Hour) })

		summary, err := reconciler.RunOnce(context.Background())

		Expect(err).NotTo(HaveOccurred())
		Expect(summary.Scanned).To(BeZero())
		Expect(gateway.verifications()).To(BeZero())
	})

	It("respects the batch size", func() {
		reconciler = feepayment.NewReconciler(repo, gateway, publisher, false, feepayment.ReconcilerConfig{
			StaleAfter: 15 * time.Minute,
			BatchSize:  1,
		}, logger.Discard()).WithClock(func() time.Time { return now })

		summary, err := reconciler.RunOnce(context.Background())

		Expect(err).NotTo(HaveOccurred())
		Expect(summary.Scanned).To(Equal(int64(1)))
		Expect(repo.row(settledRef).Status).To(Equal(datamodel.StatusCompleted))
	})

	It("rejects an invalid schedule", func() {
		_, err := reconciler.Schedule(context.Background(), "every so often")
		Expect(err).To(HaveOccurred())
	})

	It("accepts a descriptor schedule", func() {
		c, err := reconciler.Schedule(context.Background(), "@every 10m")
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Entries()).To(HaveLen(1))
	})
})
