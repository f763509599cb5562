package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"attackwatch/internal/httpx"
)

type contextKey string

const (
	userContextKey   contextKey = "attackwatch_user"
	claimsContextKey contextKey = "attackwatch_claims"
)

// CSRFHeader carries the per-session token on unsafe requests.
const CSRFHeader = "X-CSRF-Token"

func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userContextKey, u)
}

func UserFromContext(ctx context.Context) (*User, bool) {
	u, ok := ctx.Value(userContextKey).(*User)
	return u, ok
}

func claimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsContextKey).(*Claims)
	return c, ok
}

func bearerToken(r *http.Request, allowQuery bool) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if allowQuery {
		return r.URL.Query().Get("token")
	}
	return ""
}

// JWTMiddleware authenticates the bearer token and loads the current user
// record, so deleted or demoted accounts lose access before token expiry.
// allowQuery additionally accepts ?token= for clients that cannot set
// headers (EventSource).
func JWTMiddleware(svc *Service, allowQuery bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r, allowQuery)
			if token == "" {
				httpx.WriteError(w, http.StatusUnauthorized, "not authorized, no token")
				return
			}
			claims, err := svc.ParseToken(token)
			if err != nil {
				httpx.WriteError(w, http.StatusUnauthorized, "not authorized, token failed")
				return
			}
			user, err := svc.users.GetByID(r.Context(), claims.UserID)
			if err != nil {
				if !errors.Is(err, ErrUserNotFound) {
					svc.logger.Error("load token user", zap.Int64("user_id", claims.UserID), zap.Error(err))
				}
				httpx.WriteError(w, http.StatusUnauthorized, "not authorized")
				return
			}
			ctx := WithUser(r.Context(), user)
			ctx = context.WithValue(ctx, claimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireCSRF rejects unsafe requests whose X-CSRF-Token header does not
// match the csrf claim of the session token.
func RequireCSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}
		header := r.Header.Get(CSRFHeader)
		if header == "" {
			httpx.WriteError(w, http.StatusForbidden, "missing CSRF token")
			return
		}
		claims, ok := claimsFromContext(r.Context())
		if !ok || claims.CSRF == "" {
			httpx.WriteError(w, http.StatusForbidden, "CSRF validation failed")
			return
		}
		if header != claims.CSRF {
			httpx.WriteError(w, http.StatusForbidden, "CSRF token mismatch")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func RequireRole(roles ...Role) func(http.Handler) http.Handler {
	allowed := make(map[Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok {
				httpx.WriteError(w, http.StatusUnauthorized, "not authorized")
				return
			}
			if _, ok := allowed[user.Role]; !ok {
				httpx.WriteError(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireWriteAccess blocks read-only analysts from unsafe methods.
func RequireWriteAccess(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}
		user, ok := UserFromContext(r.Context())
		if !ok {
			httpx.WriteError(w, http.StatusUnauthorized, "not authorized")
			return
		}
		if !user.CanMutate() {
			httpx.WriteError(w, http.StatusForbidden, "read-only access")
			return
		}
		next.ServeHTTP(w, r)
	})
}
