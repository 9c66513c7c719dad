// Package service contains the business rules of the forum.
//
// Handlers parse HTTP and call a service; services check existence,
// uniqueness and permissions, then call the repository interfaces:
//
//	Handler (HTTP) → Service (rules) → repository interfaces → sqlite.DB
//
// Every method that acts on behalf of someone takes the acting user as a
// *model.User loaded from the database by the auth middleware. Admin checks
// read actor.IsAdmin from that row, never from the token.
//
// Errors are apperror values (NotFound, Conflict, ValidationFailed,
// Forbidden, Unauthorized) or wrapped database failures; the handler maps
// them to status codes.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/sakif/forum/internal/apperror"
	"github.com/sakif/forum/internal/filter"
	"github.com/sakif/forum/internal/model"
	"github.com/sakif/forum/internal/repository"
)

// canModify is the owner-or-admin gate used for deleting topics and
// replies and choosing a best reply.
func canModify(actor *model.User, ownerID int64) bool {
	return actor != nil && (actor.ID == ownerID || actor.IsAdmin)
}

func requireUser(actor *model.User) error {
	if actor == nil {
		return apperror.Unauthorized("authentication required")
	}
	return nil
}

func requireAdmin(actor *model.User) error {
	if err := requireUser(actor); err != nil {
		return err
	}
	if !actor.IsAdmin {
		return apperror.Forbidden("admin privileges required")
	}
	return nil
}

// viewerOf turns the acting user (nil for anonymous) into a listing viewer.
func viewerOf(actor *model.User) repository.Viewer {
	if actor == nil {
		return repository.Viewer{}
	}
	return repository.Viewer{UserID: actor.ID, Admin: actor.IsAdmin}
}

func newPage[T any](items []T, total int, w filter.Window) model.Page[T] {
	if items == nil {
		items = []T{}
	}
	return model.Page[T]{
		Items:      items,
		Total:      total,
		TotalPages: filter.TotalPages(total, w.Limit),
		Limit:      w.Limit,
		Offset:     w.Offset,
	}
}

// isDomainError reports whether err is an apperror the caller caused
// (missing row, conflict, bad input). Those are not logged as failures.
func isDomainError(err error) bool {
	var appErr *apperror.AppError
	return errors.As(err, &appErr)
}

// logFailure logs err at Error level unless it is a domain error.
func logFailure(logger *slog.Logger, msg string, err error, attrs ...any) {
	if err == nil || isDomainError(err) {
		return
	}
	logger.Error(msg, append(attrs, slog.String("error", err.Error()))...)
}

// access decides what an actor may do inside a category.
type access struct {
	perms repository.PermissionRepository
}

// canRead reports whether actor may see content of c. Public categories are
// readable by everyone; private ones by admins and users holding any
// permission row.
func (a access) canRead(ctx context.Context, actor *model.User, c *model.Category) (bool, error) {
	if !c.IsPrivate || (actor != nil && actor.IsAdmin) {
		return true, nil
	}
	if actor == nil {
		return false, nil
	}
	_, err := a.perms.GetPermission(ctx, c.ID, actor.ID)
	if errors.Is(err, apperror.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// checkPost returns nil when actor may add topics or replies to c: the
// category must be unlocked and, when private, the actor needs write access.
// Admins bypass both.
func (a access) checkPost(ctx context.Context, actor *model.User, c *model.Category) error {
	if actor.IsAdmin {
		return nil
	}
	if c.IsLocked {
		return apperror.Forbidden("category " + c.Name + " is locked")
	}
	if !c.IsPrivate {
		return nil
	}
	p, err := a.perms.GetPermission(ctx, c.ID, actor.ID)
	if errors.Is(err, apperror.ErrNotFound) {
		return apperror.Forbidden("no access to private category " + c.Name)
	}
	if err != nil {
		return err
	}
	if !p.CanWrite() {
		return apperror.Forbidden("read-only access to category " + c.Name)
	}
	return nil
}
