package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/votefield/canvass/internal/auth"
	"github.com/votefield/canvass/internal/repo"
	"github.com/votefield/canvass/internal/service"
)

type contextKey string

const (
	// ContextKeyPrincipal holds the authenticated *repo.User.
	ContextKeyPrincipal contextKey = "principal"
	// ContextKeyTokenID holds the jti of the presented token.
	ContextKeyTokenID contextKey = "token_id"
	// ContextKeyTokenExpiry holds the token's exp; logout denylists the
	// jti for exactly that long.
	ContextKeyTokenExpiry contextKey = "token_expiry"
)

// PrincipalSource resolves a token subject into a full user record.
type PrincipalSource interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (repo.User, error)
}

// Auth validates the bearer token and loads the principal. Every failure
// mode (malformed, expired, wrong key, missing subject, revoked, user
// deleted) is a 401; the token is re-validated on every request.
func Auth(jwtManager *auth.JWTManager, denylist *auth.Denylist, users PrincipalSource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				writeError(w, http.StatusUnauthorized, "AUTH", "missing bearer token")
				return
			}

			claims, err := jwtManager.ParseAndValidate(parts[1])
			if err != nil {
				writeError(w, http.StatusUnauthorized, "AUTH", "invalid token")
				return
			}

			if revoked, err := denylist.Revoked(r.Context(), claims.ID); err != nil {
				log.Error().Err(err).Msg("denylist lookup failed")
				writeError(w, http.StatusUnauthorized, "AUTH", "invalid token")
				return
			} else if revoked {
				writeError(w, http.StatusUnauthorized, "AUTH", "token revoked")
				return
			}

			subject, err := uuid.Parse(claims.Subject)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "AUTH", "invalid subject")
				return
			}

			user, err := users.GetUserByID(r.Context(), subject)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "AUTH", "could not validate credentials")
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyPrincipal, &user)
			ctx = context.WithValue(ctx, ContextKeyTokenID, claims.ID)
			if claims.ExpiresAt != nil {
				ctx = context.WithValue(ctx, ContextKeyTokenExpiry, claims.ExpiresAt.Time)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetPrincipal returns the authenticated user, or nil outside the auth
// middleware.
func GetPrincipal(ctx context.Context) *repo.User {
	val, _ := ctx.Value(ContextKeyPrincipal).(*repo.User)
	return val
}

// GetTokenID returns the jti of the request's token.
func GetTokenID(ctx context.Context) string {
	val, _ := ctx.Value(ContextKeyTokenID).(string)
	return val
}

// GetTokenExpiry returns the exp of the request's token, zero when
// absent.
func GetTokenExpiry(ctx context.Context) time.Time {
	val, _ := ctx.Value(ContextKeyTokenExpiry).(time.Time)
	return val
}

// RequireManager gates collection-level endpoints to managers and admins.
func RequireManager(next http.Handler) http.Handler {
	return requireCheck(next, service.ManagerOrAdmin,
		"manager or admin role required")
}

// RequireAdmin gates endpoints to admins.
func RequireAdmin(next http.Handler) http.Handler {
	return requireCheck(next, service.AdminOnly, "admin role required")
}

func requireCheck(next http.Handler, allowed func(*repo.User) bool, message string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal := GetPrincipal(r.Context())
		if principal == nil {
			writeError(w, http.StatusUnauthorized, "AUTH", "not authenticated")
			return
		}
		if !allowed(principal) {
			writeError(w, http.StatusForbidden, "FORBIDDEN", message)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"data": nil,
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}
