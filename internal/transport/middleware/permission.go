package middleware

import (
	"net/http"

	errors "github.com/bhs-school/fee-payments/internal"
	"github.com/bhs-school/fee-payments/internal/transport"
)

const PermissionViewFeePayments = "view_fee_payments"

// RequirePermissions lets the request through when the admin holds any of permissions.
func RequirePermissions(base *transport.BaseHandler, permissions ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := errors.AdminFromContext(r.Context())
			if !ok {
				base.HandleServiceError(w, errors.ErrInvalidToken)
				return
			}

			for _, permission := range permissions {
				if principal.HasPermission(permission) {
					next.ServeHTTP(w, r)
					return
				}
			}

			base.Logger.Warn("access denied: admin lacks required permissions",
				"admin", principal.Subject,
				"required_permissions", permissions,
				"admin_permissions", principal.Permissions)
			base.HandleServiceError(w, errors.ErrInsufficientPermission)
		})
	}
}
