package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/atmosguard/atmosguard/internal/api/models"
	"github.com/atmosguard/atmosguard/internal/auth"
)

type operatorKey struct{}

// OperatorAuth requires a bearer token carrying the operator role.
// Without a configured signing key every protected route answers 503.
func OperatorAuth(tokens *auth.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tokens == nil || !tokens.Enabled() {
				deny(w, r, http.StatusServiceUnavailable, "operator access is not configured")
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				deny(w, r, http.StatusUnauthorized, "a bearer token is required")
				return
			}

			claims, err := tokens.Validate(token)
			switch {
			case err == nil:
			case errors.Is(err, auth.ErrTokenExpired):
				deny(w, r, http.StatusUnauthorized, "operator token has expired")
				return
			case errors.Is(err, auth.ErrInsufficientRole):
				deny(w, r, http.StatusForbidden, "token does not grant operator access")
				return
			default:
				deny(w, r, http.StatusUnauthorized, "invalid operator token")
				return
			}

			ctx := context.WithValue(r.Context(), operatorKey{}, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extracts the token from an Authorization header. The scheme
// is matched case-insensitively.
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// deny writes the problem directly; the response package imports this one.
func deny(w http.ResponseWriter, r *http.Request, status int, detail string) {
	models.ProblemFor(status, GetRequestID(r.Context()), detail).
		WithInstance(r.URL.Path).
		Write(w)
}

// GetOperator returns the operator named in the validated token, or "" for
// anonymous requests.
func GetOperator(ctx context.Context) string {
	op, _ := ctx.Value(operatorKey{}).(string)
	return op
}
