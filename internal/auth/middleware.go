package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/sungwon/notify-dispatch/internal/metrics"
)

type contextKey string

const (
	subjectKey  contextKey = "subject"
	tenantIDKey contextKey = "tenant_id"
	userRoleKey contextKey = "user_role"
)

// SubjectFromContext retrieves the token subject from the request context.
func SubjectFromContext(ctx context.Context) string {
	s, _ := ctx.Value(subjectKey).(string)
	return s
}

// TenantFromContext retrieves the tenant the caller is bound to.
// Returns an empty string if no tenant is set.
func TenantFromContext(ctx context.Context) string {
	t, _ := ctx.Value(tenantIDKey).(string)
	return t
}

// RoleFromContext retrieves the user role from the request context.
// Returns an empty string if no role is set.
func RoleFromContext(ctx context.Context) string {
	role, _ := ctx.Value(userRoleKey).(string)
	return role
}

// WithClaims stores validated claims in ctx.
func WithClaims(ctx context.Context, claims *AccessTokenClaims) context.Context {
	ctx = context.WithValue(ctx, subjectKey, claims.Subject)
	ctx = context.WithValue(ctx, tenantIDKey, claims.TenantID)
	return context.WithValue(ctx, userRoleKey, claims.Role)
}

// TenantAllowed reports whether the caller may act for tenantID. Requests
// without claims are allowed; they only exist when authentication is off.
func TenantAllowed(ctx context.Context, tenantID string) bool {
	role := RoleFromContext(ctx)
	if role == "" || role == RoleAdmin {
		return true
	}
	return TenantFromContext(ctx) == tenantID
}

// JWTAuth returns an HTTP middleware that validates Bearer access tokens.
// On success the claims are stored in the request context.
func JWTAuth(jwtService *JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				unauthorized(w, `{"error":"authorization header required"}`)
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				unauthorized(w, `{"error":"invalid authorization format, expected Bearer <token>"}`)
				return
			}

			token := strings.TrimSpace(parts[1])
			if token == "" {
				unauthorized(w, `{"error":"empty token"}`)
				return
			}

			claims, err := jwtService.ValidateAccessToken(token)
			if err != nil {
				if err == ErrTokenExpired {
					unauthorized(w, `{"error":"token has expired"}`)
					return
				}
				unauthorized(w, `{"error":"invalid token"}`)
				return
			}

			if claims.Role != RoleAdmin && claims.TenantID == "" {
				unauthorized(w, `{"error":"invalid token claims"}`)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

func unauthorized(w http.ResponseWriter, body string) {
	metrics.APIAuthFailuresTotal.Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(body))
}
