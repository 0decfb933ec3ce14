package rest

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"

	"github.com/bhs-school/fee-payments/api"
	"github.com/bhs-school/fee-payments/internal/feepayment"
	"github.com/bhs-school/fee-payments/internal/transport"
	"github.com/bhs-school/fee-payments/internal/transport/middleware"
	"github.com/bhs-school/fee-payments/internal/transport/swagger"
)

const (
	APIPrefix   = "/api/v1"
	WebhookPath = APIPrefix + "/fees/payments/webhook"
)

// Handlers are the route targets. AdminHandler and AdminAuth are optional;
// without both the admin routes are not mounted.
type Handlers struct {
	Base           *transport.BaseHandler
	Health         *HealthHandler
	FeePayment     *feepayment.Handler
	Webhook        *feepayment.WebhookHandler
	AdminHandler   *feepayment.AdminHandler
	AdminAuth      *middleware.AdminAuthenticator
	AllowedOrigins []string
}

func RegisterAllRoutes(router *chi.Mux, doc *openapi3.T, h Handlers, logger *slog.Logger) error {
	validateInitiate, err := middleware.ValidateJSONBody(h.Base, doc, "InitiatePaymentRequest")
	if err != nil {
		return fmt.Errorf("initiate request validation: %w", err)
	}

	// Apply global middleware
	router.Use(middleware.CORS(h.AllowedOrigins))
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RequestID)
	router.Use(middleware.LoggingMiddleware(logger, WebhookPath))
	router.Use(middleware.RecoveryMiddleware(logger))

	// Serve OpenAPI spec at root (outside API prefix)
	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(api.Document)
	})
	router.Handle("/swagger/*", swagger.Handler())

	router.Route(APIPrefix, func(r chi.Router) {
		r.Get("/health", h.Health.healthCheckHandler)
		r.Get("/ping", h.Health.pingHandler)

		r.Route("/fees/payments", func(fr chi.Router) {
			fr.With(validateInitiate).Post("/initiate", h.FeePayment.InitiatePayment)
			fr.Post("/webhook", h.Webhook.HandleWebhook)
			fr.Get("/{txRef}", h.FeePayment.GetPaymentStatus)
		})

		if h.AdminHandler != nil && h.AdminAuth != nil {
			r.Route("/admin", func(ar chi.Router) {
				ar.Use(h.AdminAuth.Middleware)
				ar.Use(middleware.RequirePermissions(h.Base, middleware.PermissionViewFeePayments))

				ar.Get("/fee-payments/stats", h.AdminHandler.LedgerStats)
				ar.Get("/students/{studentID}/fee-payments", h.AdminHandler.ListStudentPayments)
			})
		} else {
			logger.Info("admin routes disabled: no admin token secret configured")
		}
	})

	return nil
}
