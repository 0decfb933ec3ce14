package feepayment

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bhs-school/fee-payments/internal"
	datamodel "github.com/bhs-school/fee-payments/internal/core/datamodel/feepayment"
)

type ReconcilerConfig struct {
	StaleAfter    time.Duration
	BatchSize     int
	Workers       int
	VerifyTimeout time.Duration
}

// ReconcileSummary counts what one sweep did.
type ReconcileSummary struct {
	Scanned      int64 `json:"scanned"`
	Completed    int64 `json:"completed"`
	Failed       int64 `json:"failed"`
	StillPending int64 `json:"still_pending"`
	Skipped      int64 `json:"skipped"`
	Errors       int64 `json:"errors"`
}

type reconcileCounters struct {
	completed, failed, stillPending, skipped, errors atomic.Int64
}

// Reconciler re-verifies payments that stayed pending because their webhook
// never arrived. It uses the same conditional transitions as the webhook, so
// a sweep racing a late callback cannot double-apply.
type Reconciler struct {
	repo    RepositoryAPI
	gateway Gateway
	ledger  *ledger
	config  ReconcilerConfig
	now     func() time.Time
	logger  *slog.Logger
}

func NewReconciler(repo RepositoryAPI, gateway Gateway, publisher EventPublisher, enforceAmountMatch bool, config ReconcilerConfig, logger *slog.Logger) *Reconciler {
	if config.StaleAfter <= 0 {
		config.StaleAfter = 15 * time.Minute
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 50
	}
	if config.Workers <= 0 {
		config.Workers = 4
	}
	return &Reconciler{
		repo:    repo,
		gateway: gateway,
		ledger:  newLedger(repo, publisher, enforceAmountMatch, logger),
		config:  config,
		now:     time.Now,
		logger:  logger,
	}
}

func (r *Reconciler) WithClock(now func() time.Time) *Reconciler {
	r.now = now
	return r
}

type reconcileWorker struct {
	id     int
	jobs   <-chan *datamodel.FeePayment
	logger *slog.Logger
}

func (w *reconcileWorker) Start(ctx context.Context, wg *sync.WaitGroup, process func(context.Context, *datamodel.FeePayment)) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case job, ok := <-w.jobs:
				if !ok {
					return
				}
				w.logger.Debug("worker reconciling payment", "worker_id", w.id, "tx_ref", job.TxRef)
				process(ctx, job)
			case <-ctx.Done():
				w.logger.Debug("worker shutting down", "worker_id", w.id)
				return
			}
		}
	}()
}

// RunOnce sweeps one batch of stale pending payments.
func (r *Reconciler) RunOnce(ctx context.Context) (*ReconcileSummary, error) {
	cutoff := r.now().UTC().Add(-r.config.StaleAfter)

	stale, err := r.repo.ListStalePending(ctx, cutoff, r.config.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("list stale pending payments: %w", err)
	}
	if len(stale) == 0 {
		r.logger.Debug("no stale pending fee payments", "cutoff", cutoff)
		return &ReconcileSummary{}, nil
	}

	r.logger.Info("reconciling stale fee payments", "count", len(stale), "cutoff", cutoff)

	var counters reconcileCounters
	jobs := make(chan *datamodel.FeePayment)
	var wg sync.WaitGroup

	workers := min(r.config.Workers, len(stale))
	for i := 0; i < workers; i++ {
		w := &reconcileWorker{id: i, jobs: jobs, logger: r.logger}
		w.Start(ctx, &wg, func(ctx context.Context, p *datamodel.FeePayment) {
			r.reconcile(ctx, p, &counters)
		})
	}

dispatch:
	for _, p := range stale {
		select {
		case jobs <- p:
		case <-ctx.Done():
			break dispatch
		}
	}
	close(jobs)
	wg.Wait()

	summary := &ReconcileSummary{
		Scanned:      int64(len(stale)),
		Completed:    counters.completed.Load(),
		Failed:       counters.failed.Load(),
		StillPending: counters.stillPending.Load(),
		Skipped:      counters.skipped.Load(),
		Errors:       counters.errors.Load(),
	}

	r.logger.Info("reconciliation sweep finished",
		"scanned", summary.Scanned,
		"completed", summary.Completed,
		"failed", summary.Failed,
		"still_pending", summary.StillPending,
		"errors", summary.Errors)

	return summary, ctx.Err()
}

func (r *Reconciler) reconcile(ctx context.Context, p *datamodel.FeePayment, counters *reconcileCounters) {
	verifyCtx, cancel := internal.WithOptionalTimeout(ctx, r.config.VerifyTimeout)
	defer cancel()

	verification, err := r.gateway.VerifyByReference(verifyCtx, p.TxRef)
	if err != nil {
		counters.errors.Add(1)
		r.logger.Warn("reconcile verification failed", "tx_ref", p.TxRef, "error", err)
		return
	}

	decision, err := r.ledger.settle(ctx, p, verification, "", false)
	if err != nil {
		counters.errors.Add(1)
		r.logger.Error("reconcile transition failed", "tx_ref", p.TxRef, "error", err)
		return
	}

	switch {
	case decision.Outcome == OutcomeStillPending:
		counters.stillPending.Add(1)
	case !decision.Applied:
		counters.skipped.Add(1)
	case decision.Outcome == OutcomeCompleted:
		counters.completed.Add(1)
	default:
		counters.failed.Add(1)
	}
}

// Schedule registers RunOnce on a cron schedule. Overlapping runs are skipped.
// The caller starts and stops the returned scheduler.
func (r *Reconciler) Schedule(ctx context.Context, spec string) (*cron.Cron, error) {
	cl := cronLogger{r.logger}
	c := cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))

	_, err := c.AddFunc(spec, func() {
		if _, err := r.RunOnce(ctx); err != nil {
			r.logger.Error("reconciliation sweep failed", "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid reconciler schedule %q: %w", spec, err)
	}
	return c, nil
}

type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
