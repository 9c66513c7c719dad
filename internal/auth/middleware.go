package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/forum/internal/apperror"
	"github.com/sakif/forum/internal/model"
)

// CookieName is the cookie the login handler sets and the middleware reads
// when no Authorization header is present.
const CookieName = "token"

// Authenticator resolves a raw token to the current user row. The service
// layer implements it by validating the token and loading the user named by
// its subject, so handlers always see server-side state (admin flag
// included) rather than what the token claimed at issue time.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*model.User, error)
}

// contextKey is unexported so no other package can read or overwrite these
// values.
type contextKey string

const (
	userKey  contextKey = "user"
	tokenKey contextKey = "token"
)

// RequireAuth rejects requests without a valid token with 401 and otherwise
// stores the user and raw token in the request context. Failures that are
// not Unauthorized, such as a database or Redis outage, answer 500.
func RequireAuth(a Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := TokenFromRequest(r)
			user, err := authenticate(r.Context(), a, raw)
			if err != nil {
				writeAuthError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user, raw)))
		})
	}
}

// OptionalAuth attaches the user when a valid token is present and lets
// anonymous requests and rejected tokens through unchanged. An internal
// failure while checking a token is a 500, as in RequireAuth.
func OptionalAuth(a Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := TokenFromRequest(r)
			user, err := authenticate(r.Context(), a, raw)
			switch {
			case err == nil:
				r = r.WithContext(WithUser(r.Context(), user, raw))
			case !errors.Is(err, apperror.ErrUnauthorized):
				writeAuthError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusUnauthorized
	body := `{"error":"unauthorized","message":"valid authentication required"}`
	if !errors.Is(err, apperror.ErrUnauthorized) {
		slog.Error("authentication check failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		status = http.StatusInternalServerError
		body = `{"error":"internal_error","message":"An internal error occurred"}`
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body + "\n"))
}

// WithUser returns a context carrying user and raw token. Exported for
// handler tests that bypass the middleware.
func WithUser(ctx context.Context, user *model.User, raw string) context.Context {
	ctx = context.WithValue(ctx, userKey, user)
	return context.WithValue(ctx, tokenKey, raw)
}

// UserFromContext returns the authenticated user, or (nil, false) for an
// anonymous request.
func UserFromContext(ctx context.Context) (*model.User, bool) {
	u, ok := ctx.Value(userKey).(*model.User)
	return u, ok && u != nil
}

// TokenFromContext returns the raw token the request was authenticated with.
func TokenFromContext(ctx context.Context) (string, bool) {
	t, ok := ctx.Value(tokenKey).(string)
	return t, ok && t != ""
}

// TokenFromRequest reads "Authorization: Bearer <token>", falling back to the
// token cookie. It returns "" when neither is present.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if c, err := r.Cookie(CookieName); err == nil {
		return c.Value
	}
	return ""
}

func authenticate(ctx context.Context, a Authenticator, raw string) (*model.User, error) {
	if raw == "" {
		return nil, apperror.Unauthorized("missing token")
	}
	return a.Authenticate(ctx, raw)
}
