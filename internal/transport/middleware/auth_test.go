package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/golang-jwt/jwt/v5"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	errors "github.com/bhs-school/fee-payments/internal"
	"github.com/bhs-school/fee-payments/internal/transport"
	"github.com/bhs-school/fee-payments/internal/transport/middleware"
	"github.com/bhs-school/fee-payments/pkg/logger"
)

const adminSecret = "a-very-long-admin-token-secret-for-tests"

func signAdminToken(secret string, claims middleware.AdminClaims) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	Expect(err).NotTo(HaveOccurred())
	return signed
}

func bursarClaims(expiresIn time.Duration, permissions ...string) middleware.AdminClaims {
	return middleware.AdminClaims{
		Permissions: permissions,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "bursar@bhs.example",
			Issuer:    "bhs-admin",
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
		},
	}
}

var _ = Describe("AdminAuthenticator", func() {
	var (
		base          *transport.BaseHandler
		authenticator *middleware.AdminAuthenticator
		protected     http.Handler
		seen          *errors.AdminPrincipal
	)

	BeforeEach(func() {
		seen = nil
		base = transport.NewBaseHandler(logger.Discard())
		authenticator = middleware.NewAdminAuthenticator(base, adminSecret, "bhs-admin")

		protected = authenticator.Middleware(
			middleware.RequirePermissions(base, middleware.PermissionViewFeePayments)(
				http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					seen, _ = errors.AdminFromContext(r.Context())
					w.WriteHeader(http.StatusOK)
				})))
	})

	call := func(token string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/fee-payments/stats", nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)
		return rec.Code
	}

	It("admits a valid token with the required permission", func() {
		token := signAdminToken(adminSecret, bursarClaims(time.Hour, middleware.PermissionViewFeePayments))

		Expect(call(token)).To(Equal(http.StatusOK))
		Expect(seen).NotTo(BeNil())
		Expect(seen.Subject).To(Equal("bursar@bhs.example"))
	})

	It("returns 403 when the permission is missing", func() {
		token := signAdminToken(adminSecret, bursarClaims(time.Hour, "view_students"))
		Expect(call(token)).To(Equal(http.StatusForbidden))
	})

	It("returns 401 without a token", func() {
		Expect(call("")).To(Equal(http.StatusUnauthorized))
	})

	It("returns 401 for a token signed with another secret", func() {
		token := signAdminToken("some-other-secret-that-is-long-enough", bursarClaims(time.Hour, middleware.PermissionViewFeePayments))
		Expect(call(token)).To(Equal(http.StatusUnauthorized))
	})

	It("reports expired tokens as expired", func() {
		token := signAdminToken(adminSecret, bursarClaims(-time.Hour, middleware.PermissionViewFeePayments))

		_, err := authenticator.ValidateToken(token)

		Expect(errors.Is(err, errors.ErrTokenExpired)).To(BeTrue())
	})

	It("rejects tokens from another issuer", func() {
		claims := bursarClaims(time.Hour, middleware.PermissionViewFeePayments)
		claims.Issuer = "someone-else"

		_, err := authenticator.ValidateToken(signAdminToken(adminSecret, claims))

		Expect(errors.Is(err, errors.ErrInvalidToken)).To(BeTrue())
	})

	It("rejects unsigned tokens", func() {
		token := jwt.NewWithClaims(jwt.SigningMethodNone, bursarClaims(time.Hour, middleware.PermissionViewFeePayments))
		unsigned, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
		Expect(err).NotTo(HaveOccurred())

		Expect(call(unsigned)).To(Equal(http.StatusUnauthorized))
	})
})
