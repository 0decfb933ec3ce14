package middleware

import (
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	errors "github.com/bhs-school/fee-payments/internal"
	"github.com/bhs-school/fee-payments/internal/transport"
	"github.com/bhs-school/fee-payments/pkg/logger"
)

// AdminClaims is the token issued by the school's admin portal.
type AdminClaims struct {
	Permissions []string `json:"permissions"`
	jwt.RegisteredClaims
}

// AdminAuthenticator verifies HS256 admin bearer tokens. It never issues them.
type AdminAuthenticator struct {
	*transport.BaseHandler
	secret []byte
	issuer string
	leeway time.Duration
}

func NewAdminAuthenticator(base *transport.BaseHandler, secret, issuer string) *AdminAuthenticator {
	return &AdminAuthenticator{
		BaseHandler: base,
		secret:      []byte(secret),
		issuer:      issuer,
		leeway:      30 * time.Second,
	}
}

func (a *AdminAuthenticator) ValidateToken(tokenString string) (*errors.AdminPrincipal, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(a.leeway),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	claims := &AdminClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, errors.ErrTokenExpired
		}
		return nil, errors.ErrInvalidToken.WithCause(err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, errors.ErrInvalidToken
	}

	return &errors.AdminPrincipal{Subject: claims.Subject, Permissions: claims.Permissions}, nil
}

// Middleware rejects requests without a valid admin token and stores the
// principal in the request context.
func (a *AdminAuthenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := a.ExtractTokenFromHeader(r)
		if tokenString == "" {
			a.HandleServiceError(w, errors.ErrInvalidToken)
			return
		}

		principal, err := a.ValidateToken(tokenString)
		if err != nil {
			a.HandleServiceError(w, err)
			return
		}

		ctx := errors.ContextWithAdmin(r.Context(), principal)
		ctx = logger.With(ctx, "admin", principal.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
