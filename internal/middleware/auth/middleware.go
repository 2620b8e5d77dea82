package auth

import (
	"context"
	"net/http"
	"strings"

	"budgetwatch/internal/log"
)

type contextKey string

const userIDKey contextKey = "user_id"

// UserID returns the authenticated user stored by RequireAuth, or "".
func UserID(ctx context.Context) string {
	userID, _ := ctx.Value(userIDKey).(string)
	return userID
}

// WithUserID stores userID in ctx.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// ErrorWriter renders an authentication failure.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// RequireAuth rejects requests without a valid bearer token and stores the
// token's user id in the request context.
func RequireAuth(m *JWTManager, onError ErrorWriter) func(http.Handler) http.Handler {
	if onError == nil {
		onError = func(w http.ResponseWriter, _ *http.Request, err error) {
			http.Error(w, err.Error(), http.StatusUnauthorized)
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				onError(w, r, ErrMissingToken)
				return
			}

			scheme, tokenString, ok := strings.Cut(authHeader, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || tokenString == "" {
				onError(w, r, ErrInvalidToken)
				return
			}

			claims, err := m.Validate(strings.TrimSpace(tokenString))
			if err != nil {
				log.FromContext(r.Context()).WithComponent(log.ComponentAuth).
					DebugContext(r.Context(), "Rejected bearer token", log.FieldError, err)
				onError(w, r, err)
				return
			}

			ctx := WithUserID(r.Context(), claims.UserID)
			ctx = log.IntoContext(ctx, log.FromContext(ctx).With(log.FieldUserID, claims.UserID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
