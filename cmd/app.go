package cmd

import (
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/bhs-school/fee-payments/internal"
	"github.com/bhs-school/fee-payments/internal/core/events"
	"github.com/bhs-school/fee-payments/internal/feepayment"
	feepaymentPostgres "github.com/bhs-school/fee-payments/internal/feepayment/postgres"
	"github.com/bhs-school/fee-payments/internal/notification"
	"github.com/bhs-school/fee-payments/internal/paymentgateway"
	studentpkg "github.com/bhs-school/fee-payments/internal/student"
	studentPostgres "github.com/bhs-school/fee-payments/internal/student/postgres"
)

// application is the object graph shared by the server, worker and CLI commands.
type application struct {
	config   *internal.Config
	logger   *slog.Logger
	db       *sqlx.DB
	orm      *gorm.DB
	bus      *events.EventBus
	gateway  *paymentgateway.Client
	payments feepayment.RepositoryAPI
	eventLog *feepaymentPostgres.EventLogRepository
	stats    feepayment.StatsAPI
	students studentpkg.RepositoryAPI
}

func newApplication(cfg *internal.Config, logger *slog.Logger) (*application, error) {
	db, err := initDB(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	orm, err := initGorm(db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize gorm: %w", err)
	}

	bus := events.NewEventBus(logger)
	notification.NewEventHandler(notification.NewLogNotifier(logger), cfg.School.Name, logger).
		RegisterEventHandlers(bus)

	return &application{
		config: cfg,
		logger: logger,
		db:     db,
		orm:    orm,
		bus:    bus,
		gateway: paymentgateway.NewClient(paymentgateway.Config{
			BaseURL:   cfg.Payment.BaseURL,
			SecretKey: cfg.Payment.SecretKey,
			Timeout:   cfg.Payment.GatewayTimeout,
		}, logger),
		payments: feepaymentPostgres.NewFeePaymentRepository(orm),
		eventLog: feepaymentPostgres.NewEventLogRepository(orm),
		stats:    feepaymentPostgres.NewStatsRepository(db),
		students: studentPostgres.NewStudentRepository(orm),
	}, nil
}

func (a *application) service() *feepayment.Service {
	return feepayment.NewService(
		a.payments,
		studentpkg.NewDirectory(a.students, a.logger),
		a.gateway,
		a.stats,
		feepayment.Settings{
			RefPrefix:      a.config.School.RefPrefix,
			SchoolName:     a.config.School.Name,
			SchoolLogoURL:  a.config.School.LogoURL,
			PaymentOptions: a.config.Payment.PaymentOptions,
			RedirectPath:   a.config.Payment.RedirectPath,
		},
		a.logger)
}

func (a *application) webhookVerifier() *feepayment.WebhookVerifier {
	return feepayment.NewWebhookVerifier(
		a.config.Payment.WebhookHash,
		a.gateway,
		a.payments,
		a.eventLog,
		a.bus,
		a.config.Payment.EnforceAmountMatch,
		a.logger)
}

func (a *application) reconciler() *feepayment.Reconciler {
	return feepayment.NewReconciler(
		a.payments,
		a.gateway,
		a.bus,
		a.config.Payment.EnforceAmountMatch,
		feepayment.ReconcilerConfig{
			StaleAfter:    a.config.Reconciler.StaleAfter,
			BatchSize:     a.config.Reconciler.BatchSize,
			Workers:       a.config.Reconciler.Workers,
			VerifyTimeout: a.config.Payment.GatewayTimeout,
		},
		a.logger)
}

func (a *application) close() {
	if err := a.db.Close(); err != nil {
		a.logger.Error("database close error", "error", err)
	}
}

// initDB opens the pgx backed pool shared by sqlx and gorm.
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	db, err := sqlx.Connect(driver, cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return db, nil
}

func initGorm(db *sqlx.DB) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{Conn: db.DB}), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
}
