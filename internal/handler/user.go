package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/forum/internal/apperror"
	"github.com/sakif/forum/internal/auth"
	"github.com/sakif/forum/internal/model"
	"github.com/sakif/forum/internal/repository"
	"github.com/sakif/forum/internal/service"
)

// UserHandler serves registration, login and the user directory.
//
// HANDLER RESPONSIBILITIES:
//   - HandleRegister → create an account
//   - HandleLogin    → check credentials, issue a token (body + cookie)
//   - HandleLogout   → revoke the token and clear the cookie
//   - HandleMe       → the authenticated user's own profile
//   - HandleList / HandleGet → browse users
type UserHandler struct {
	auth   *service.AuthService
	users  *service.UserService
	logger *slog.Logger
}

func NewUserHandler(authService *service.AuthService, users *service.UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{auth: authService, users: users, logger: logger}
}

type registerRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenResponse is returned by every endpoint that signs a user in.
type TokenResponse struct {
	Token     string      `json:"token"`
	TokenType string      `json:"tokenType"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      *model.User `json:"user"`
}

// HandleRegister creates an account.
//
// HTTP: POST /api/users/register
// REQUEST BODY: {"username": "alice", "password": "...", "email": "..."}
func (h *UserHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.auth.Register(r.Context(), service.RegisterInput{
		Username:  req.Username,
		Password:  req.Password,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// HandleLogin exchanges credentials for a token.
//
// HTTP: POST /api/users/login
// REQUEST BODY: {"username": "alice", "password": "..."}
//
// The token is returned in the body for API clients and also set as an
// HttpOnly cookie for browsers.
func (h *UserHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeToken(w, res)
}

// HandleLogout revokes the token the request was authenticated with.
//
// HTTP: POST /api/users/logout
//
// The token is put on the revocation list until it would have expired, so
// a copy kept elsewhere stops working too.
func (h *UserHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	token, ok := auth.TokenFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("authentication required"))
		return
	}
	if err := h.auth.Logout(r.Context(), token); err != nil {
		writeError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, MessageResponse{Message: "logged out"})
}

// HandleMe returns the authenticated user.
//
// HTTP: GET /api/users/me
func (h *UserHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("authentication required"))
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleList returns one page of users. Only admins see email and names.
//
// HTTP: GET /api/users?username=al&is_admin=false&sort_by=username&sort=asc&limit=10&offset=0
func (h *UserHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sort, window, err := parseListing(q)
	if err != nil {
		writeError(w, err)
		return
	}
	isAdmin, err := queryBool(q, "is_admin")
	if err != nil {
		writeError(w, err)
		return
	}

	page, err := h.users.List(r.Context(), repository.UserFilter{
		Username: q.Get("username"),
		IsAdmin:  isAdmin,
		Sort:     sort,
		Window:   window,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	viewer, _ := auth.UserFromContext(r.Context())
	if viewer != nil && viewer.IsAdmin {
		writeJSON(w, http.StatusOK, page)
		return
	}
	public := model.Page[model.PublicUser]{
		Items:      make([]model.PublicUser, 0, len(page.Items)),
		Total:      page.Total,
		TotalPages: page.TotalPages,
		Limit:      page.Limit,
		Offset:     page.Offset,
	}
	for _, u := range page.Items {
		public.Items = append(public.Items, u.Public())
	}
	writeJSON(w, http.StatusOK, public)
}

// HandleGet returns one user. Email and names are shown to admins and to
// the user themself.
//
// HTTP: GET /api/users/{id}
func (h *UserHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	user, err := h.users.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	viewer, _ := auth.UserFromContext(r.Context())
	if viewer != nil && (viewer.IsAdmin || viewer.ID == user.ID) {
		writeJSON(w, http.StatusOK, user)
		return
	}
	writeJSON(w, http.StatusOK, user.Public())
}

// writeToken sends a sign-in result as a TokenResponse and sets the token
// cookie with the same lifetime.
//
// Cookie flags: HttpOnly keeps it away from JavaScript, SameSite=Lax keeps
// it off cross-site POSTs. Secure is left off for local HTTP development.
func writeToken(w http.ResponseWriter, res *service.AuthResult) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    res.Token,
		Path:     "/",
		Expires:  res.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, TokenResponse{
		Token:     res.Token,
		TokenType: "Bearer",
		ExpiresAt: res.ExpiresAt,
		User:      res.User,
	})
}
