package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sakif/forum/internal/auth"
	"github.com/sakif/forum/internal/model"
	"github.com/sakif/forum/internal/repository"
	"github.com/sakif/forum/internal/service"
)

// CategoryHandler exposes categories and their access lists. Reading is
// open; the service rejects every change by a non-admin.
type CategoryHandler struct {
	categories *service.CategoryService
	logger     *slog.Logger
}

func NewCategoryHandler(categories *service.CategoryService, logger *slog.Logger) *CategoryHandler {
	return &CategoryHandler{categories: categories, logger: logger}
}

type createCategoryRequest struct {
	Name      string `json:"name"`
	IsLocked  bool   `json:"isLocked"`
	IsPrivate bool   `json:"isPrivate"`
}

type renameCategoryRequest struct {
	Name string `json:"name"`
}

type grantAccessRequest struct {
	Write bool `json:"write"`
}

// DeleteCategoryResponse reports what a category delete removed.
type DeleteCategoryResponse struct {
	Message       string `json:"message"`
	TopicsDeleted bool   `json:"topicsDeleted"`
}

// HandleList returns one page of categories.
//
// HTTP: GET /api/categories?id=1&name=gen&sort_by=name&sort=desc&limit=10&offset=0
func (h *CategoryHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sort, window, err := parseListing(q)
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := queryInt64(q, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	page, err := h.categories.List(r.Context(), repository.CategoryFilter{
		ID:     id,
		Name:   q.Get("name"),
		Sort:   sort,
		Window: window,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// HTTP: GET /api/categories/{id}
func (h *CategoryHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	c, err := h.categories.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// HandleCreate adds a category.
//
// HTTP: POST /api/categories
// REQUEST BODY: {"name": "General", "isLocked": false, "isPrivate": false}
func (h *CategoryHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createCategoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	actor, _ := auth.UserFromContext(r.Context())

	c, err := h.categories.Create(r.Context(), actor, service.CategoryInput{
		Name:      req.Name,
		IsLocked:  req.IsLocked,
		IsPrivate: req.IsPrivate,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// HandleRename changes a category's name.
//
// HTTP: PATCH /api/categories/{id}
// REQUEST BODY: {"name": "Announcements"}
func (h *CategoryHandler) HandleRename(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req renameCategoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	actor, _ := auth.UserFromContext(r.Context())

	c, err := h.categories.Rename(r.Context(), actor, id, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// HandleToggleLock flips the locked flag.
//
// HTTP: POST /api/categories/{id}/lock
func (h *CategoryHandler) HandleToggleLock(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, h.categories.ToggleLock)
}

// HandleTogglePrivacy flips the private flag.
//
// HTTP: POST /api/categories/{id}/privacy
func (h *CategoryHandler) HandleTogglePrivacy(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, h.categories.TogglePrivacy)
}

type toggleFunc func(ctx context.Context, actor *model.User, id int64) (*model.Category, error)

func (h *CategoryHandler) toggle(w http.ResponseWriter, r *http.Request, fn toggleFunc) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	actor, _ := auth.UserFromContext(r.Context())

	c, err := fn(r.Context(), actor, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// HandleDelete removes a category.
//
// HTTP: DELETE /api/categories/{id}?delete_topics=true
//
// Without delete_topics=true a category that still has topics is refused
// with 409.
func (h *CategoryHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	cascade, err := queryBool(r.URL.Query(), "delete_topics")
	if err != nil {
		writeError(w, err)
		return
	}
	actor, _ := auth.UserFromContext(r.Context())

	removed, err := h.categories.Delete(r.Context(), actor, id, cascade != nil && *cascade)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteCategoryResponse{Message: "category deleted", TopicsDeleted: removed})
}

// HandleListAccess lists the permission rows of a category.
//
// HTTP: GET /api/categories/{id}/access
func (h *CategoryHandler) HandleListAccess(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	actor, _ := auth.UserFromContext(r.Context())

	perms, err := h.categories.ListAccess(r.Context(), actor, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, perms)
}

// HandleGrantAccess gives a user read (and optionally write) access.
//
// HTTP: PUT /api/categories/{id}/access/{userID}
// REQUEST BODY: {"write": true}
func (h *CategoryHandler) HandleGrantAccess(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	userID, err := pathID(r, "userID")
	if err != nil {
		writeError(w, err)
		return
	}
	var req grantAccessRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	actor, _ := auth.UserFromContext(r.Context())

	p, err := h.categories.GrantAccess(r.Context(), actor, id, userID, req.Write)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HTTP: DELETE /api/categories/{id}/access/{userID}
func (h *CategoryHandler) HandleRevokeAccess(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	userID, err := pathID(r, "userID")
	if err != nil {
		writeError(w, err)
		return
	}
	actor, _ := auth.UserFromContext(r.Context())

	if err := h.categories.RevokeAccess(r.Context(), actor, id, userID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
