package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/domain"
	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/service"

	"go.uber.org/zap"
)

type contextKey string

const ownerKey contextKey = "owner"

// OwnerResolver reads the browser session of a request
type OwnerResolver interface {
	Owner(w http.ResponseWriter, r *http.Request) (domain.Owner, error)
}

// TokenValidator verifies API bearer tokens
type TokenValidator interface {
	ValidateToken(tokenString string) (*service.Claims, error)
}

// AuthMiddleware resolves the owner of every request. The session always supplies the anonymous
// cart id; a valid bearer token, or a logged-in session, supplies the user. A bearer token that
// is present but invalid is rejected.
func AuthMiddleware(sessions OwnerResolver, tokens TokenValidator, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			owner, err := sessions.Owner(w, r)
			if err != nil {
				logger.Error("Failed to resolve session", zap.Error(err))
				RespondWithError(w, http.StatusInternalServerError, "internal server error")
				return
			}

			if authHeader := r.Header.Get("Authorization"); authHeader != "" {
				parts := strings.Split(authHeader, " ")
				if len(parts) != 2 || parts[0] != "Bearer" {
					logger.Debug("Invalid authorization header format")
					RespondWithError(w, http.StatusUnauthorized, "invalid authorization header format")
					return
				}

				claims, err := tokens.ValidateToken(parts[1])
				if err != nil {
					logger.Debug("Token validation failed", zap.Error(err))
					if errors.Is(err, service.ErrTokenExpired) {
						RespondWithError(w, http.StatusUnauthorized, "token expired")
					} else {
						RespondWithError(w, http.StatusUnauthorized, "invalid token")
					}
					return
				}

				tokenOwner := claims.Owner()
				tokenOwner.SessionID = owner.SessionID
				owner = tokenOwner
			}

			if owner.IsUser() {
				logger.Debug("User authenticated",
					zap.Int64("user_id", owner.UserID),
					zap.String("role", owner.Role),
				)
			}

			next.ServeHTTP(w, r.WithContext(WithOwner(r.Context(), owner)))
		})
	}
}

// WithOwner returns a copy of ctx carrying owner
func WithOwner(ctx context.Context, owner domain.Owner) context.Context {
	return context.WithValue(ctx, ownerKey, owner)
}

// GetOwner extracts the owner resolved by AuthMiddleware
func GetOwner(ctx context.Context) (domain.Owner, bool) {
	owner, ok := ctx.Value(ownerKey).(domain.Owner)
	return owner, ok
}

// GetUserID extracts the authenticated user id from request context
func GetUserID(ctx context.Context) (int64, bool) {
	owner, ok := GetOwner(ctx)
	if !ok || !owner.IsUser() {
		return 0, false
	}
	return owner.UserID, true
}

// GetUserRole extracts the authenticated user role from request context
func GetUserRole(ctx context.Context) (string, bool) {
	owner, ok := GetOwner(ctx)
	if !ok || !owner.IsUser() {
		return "", false
	}
	return owner.Role, true
}
