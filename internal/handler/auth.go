package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sakif/forum/internal/auth"
	"github.com/sakif/forum/internal/service"
)

const stateCookieName = "oauth_state"

// OAuthProvider is the part of auth.GitHubProvider the handler needs.
type OAuthProvider interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.GitHubAccount, error)
}

// GitHubHandler manages the optional GitHub sign-in flow.
//
// HANDLER RESPONSIBILITIES:
//   - HandleLogin    → redirect the browser to GitHub's authorization page
//   - HandleCallback → receive the code, resolve the forum user, issue a token
//
// The resulting token is the same bearer token a password login returns.
type GitHubHandler struct {
	github OAuthProvider
	auth   *service.AuthService
	logger *slog.Logger
}

func NewGitHubHandler(github OAuthProvider, authService *service.AuthService, logger *slog.Logger) *GitHubHandler {
	return &GitHubHandler{github: github, auth: authService, logger: logger}
}

// HandleLogin redirects the user to GitHub's authorization page.
//
// HTTP: GET /auth/github/login
//
// CSRF PROTECTION VIA STATE:
// A random state is stored in a short-lived cookie and sent to GitHub.
// HandleCallback only accepts a callback carrying the same value.
func (h *GitHubHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	state := auth.NewState()

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10 minutes
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleCallback completes the OAuth flow.
//
// HTTP: GET /auth/github/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Validate the state parameter (CSRF check)
//  2. Exchange the code for a GitHub account
//  3. Find or create the forum user linked to it
//  4. Issue a token (body + cookie)
func (h *GitHubHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	// --- Step 1: Validate CSRF state ---
	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil || stateCookie.Value == "" || q.Get("state") != stateCookie.Value {
		h.logger.Warn("github callback: state mismatch")
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "invalid OAuth state"})
		return
	}

	// The state is single-use.
	http.SetCookie(w, &http.Cookie{Name: stateCookieName, Value: "", Path: "/", MaxAge: -1})

	if errParam := q.Get("error"); errParam != "" {
		h.logger.Info("github callback: authorization denied", slog.String("error", errParam))
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "GitHub authorization was denied"})
		return
	}

	// --- Step 2: Exchange code for a GitHub account ---
	code := q.Get("code")
	if code == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "missing OAuth code"})
		return
	}
	acct, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("github callback: exchange failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, ErrorResponse{Error: "upstream_error", Message: "GitHub authentication failed"})
		return
	}

	// --- Steps 3 and 4: Resolve the user and sign them in ---
	res, err := h.auth.LoginOrRegisterGitHub(r.Context(), acct)
	if err != nil {
		writeError(w, err)
		return
	}
	writeToken(w, res)
}
