package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/forum/internal/apperror"
	"github.com/sakif/forum/internal/filter"
	"github.com/sakif/forum/internal/model"
	"github.com/sakif/forum/internal/repository"
)

const MaxCategoryNameLength = 64

// CategoryService manages categories and their access lists. Everything but
// reading is admin-only.
type CategoryService struct {
	categories repository.CategoryRepository
	perms      repository.PermissionRepository
	users      repository.UserRepository
	logger     *slog.Logger
}

func NewCategoryService(
	categories repository.CategoryRepository,
	perms repository.PermissionRepository,
	users repository.UserRepository,
	logger *slog.Logger,
) *CategoryService {
	return &CategoryService{categories: categories, perms: perms, users: users, logger: logger}
}

// List returns one page of categories. Sort keys: id, name.
func (s *CategoryService) List(ctx context.Context, f repository.CategoryFilter) (model.Page[model.Category], error) {
	if err := filter.ValidatePage(f.Window); err != nil {
		return model.Page[model.Category]{}, err
	}
	cats, total, err := s.categories.ListCategories(ctx, f)
	if err != nil {
		logFailure(s.logger, "failed to list categories", err)
		return model.Page[model.Category]{}, fmt.Errorf("listing categories: %w", err)
	}
	return newPage(cats, total, f.Window), nil
}

func (s *CategoryService) Get(ctx context.Context, id int64) (*model.Category, error) {
	return s.categories.GetCategoryByID(ctx, id)
}

// CategoryInput is the data accepted when creating a category.
type CategoryInput struct {
	Name      string
	IsLocked  bool
	IsPrivate bool
}

func (s *CategoryService) Create(ctx context.Context, actor *model.User, in CategoryInput) (*model.Category, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	name, err := s.checkName(ctx, in.Name)
	if err != nil {
		return nil, err
	}

	c := &model.Category{Name: name, IsLocked: in.IsLocked, IsPrivate: in.IsPrivate}
	if err := s.categories.CreateCategory(ctx, c); err != nil {
		logFailure(s.logger, "failed to create category", err, slog.String("name", name))
		return nil, fmt.Errorf("creating category: %w", err)
	}

	s.logger.Info("category created", slog.Int64("id", c.ID), slog.String("name", c.Name))
	return c, nil
}

// Rename changes the name of category id. The new name must be non-empty and
// unused.
func (s *CategoryService) Rename(ctx context.Context, actor *model.User, id int64, name string) (*model.Category, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	c, err := s.categories.GetCategoryByID(ctx, id)
	if err != nil {
		return nil, err
	}
	name, err = s.checkName(ctx, name)
	if err != nil {
		return nil, err
	}

	if err := s.categories.RenameCategory(ctx, id, name); err != nil {
		logFailure(s.logger, "failed to rename category", err, slog.Int64("id", id))
		return nil, fmt.Errorf("renaming category %d: %w", id, err)
	}

	s.logger.Info("category renamed", slog.Int64("id", id), slog.String("from", c.Name), slog.String("to", name))
	c.Name = name
	return c, nil
}

// ToggleLock flips the locked flag and returns the updated category.
func (s *CategoryService) ToggleLock(ctx context.Context, actor *model.User, id int64) (*model.Category, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	c, err := s.categories.GetCategoryByID(ctx, id)
	if err != nil {
		return nil, err
	}

	c.IsLocked = !c.IsLocked
	if err := s.categories.SetCategoryLocked(ctx, id, c.IsLocked); err != nil {
		logFailure(s.logger, "failed to lock category", err, slog.Int64("id", id))
		return nil, fmt.Errorf("locking category %d: %w", id, err)
	}

	s.logger.Info("category lock changed", slog.Int64("id", id), slog.Bool("locked", c.IsLocked))
	return c, nil
}

// TogglePrivacy flips the private flag and returns the updated category.
func (s *CategoryService) TogglePrivacy(ctx context.Context, actor *model.User, id int64) (*model.Category, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	c, err := s.categories.GetCategoryByID(ctx, id)
	if err != nil {
		return nil, err
	}

	c.IsPrivate = !c.IsPrivate
	if err := s.categories.SetCategoryPrivate(ctx, id, c.IsPrivate); err != nil {
		logFailure(s.logger, "failed to change category privacy", err, slog.Int64("id", id))
		return nil, fmt.Errorf("changing privacy of category %d: %w", id, err)
	}

	s.logger.Info("category privacy changed", slog.Int64("id", id), slog.Bool("private", c.IsPrivate))
	return c, nil
}

// Delete removes the category. With deleteTopics its topics, replies and
// votes go too; without it a category that still has topics is a Conflict.
// It reports whether any topics were removed.
func (s *CategoryService) Delete(ctx context.Context, actor *model.User, id int64, deleteTopics bool) (bool, error) {
	if err := requireAdmin(actor); err != nil {
		return false, err
	}
	if _, err := s.categories.GetCategoryByID(ctx, id); err != nil {
		return false, err
	}

	removed, err := s.categories.DeleteCategory(ctx, id, deleteTopics)
	if err != nil {
		logFailure(s.logger, "failed to delete category", err, slog.Int64("id", id))
		return false, fmt.Errorf("deleting category %d: %w", id, err)
	}

	s.logger.Info("category deleted", slog.Int64("id", id), slog.Bool("topicsDeleted", removed))
	return removed, nil
}

// GrantAccess gives userID read access to a category, plus write access when
// write is set. Granting again replaces the previous level.
func (s *CategoryService) GrantAccess(ctx context.Context, actor *model.User, categoryID, userID int64, write bool) (*model.AccessPermission, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if _, err := s.categories.GetCategoryByID(ctx, categoryID); err != nil {
		return nil, err
	}
	if _, err := s.users.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}

	p := model.AccessPermission{CategoryID: categoryID, UserID: userID}
	if write {
		p.WriteAccess = 1
	}
	if err := s.perms.SetPermission(ctx, p); err != nil {
		logFailure(s.logger, "failed to grant access", err,
			slog.Int64("categoryID", categoryID), slog.Int64("userID", userID))
		return nil, fmt.Errorf("granting access: %w", err)
	}

	s.logger.Info("category access granted",
		slog.Int64("categoryID", categoryID),
		slog.Int64("userID", userID),
		slog.Bool("write", write),
	)
	return &p, nil
}

func (s *CategoryService) RevokeAccess(ctx context.Context, actor *model.User, categoryID, userID int64) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if err := s.perms.DeletePermission(ctx, categoryID, userID); err != nil {
		logFailure(s.logger, "failed to revoke access", err,
			slog.Int64("categoryID", categoryID), slog.Int64("userID", userID))
		return fmt.Errorf("revoking access: %w", err)
	}
	s.logger.Info("category access revoked", slog.Int64("categoryID", categoryID), slog.Int64("userID", userID))
	return nil
}

func (s *CategoryService) ListAccess(ctx context.Context, actor *model.User, categoryID int64) ([]model.AccessPermission, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if _, err := s.categories.GetCategoryByID(ctx, categoryID); err != nil {
		return nil, err
	}
	perms, err := s.perms.ListPermissions(ctx, categoryID)
	if err != nil {
		logFailure(s.logger, "failed to list access", err, slog.Int64("categoryID", categoryID))
		return nil, fmt.Errorf("listing access: %w", err)
	}
	return perms, nil
}

// checkName trims and validates a category name and rejects names in use.
func (s *CategoryService) checkName(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperror.ValidationFailed("name", "category name is required")
	}
	if len(name) > MaxCategoryNameLength {
		return "", apperror.ValidationFailed("name",
			fmt.Sprintf("category name must be %d characters or less", MaxCategoryNameLength))
	}

	taken, err := s.categories.CategoryNameExists(ctx, name)
	if err != nil {
		logFailure(s.logger, "failed to check category name", err, slog.String("name", name))
		return "", fmt.Errorf("checking category name: %w", err)
	}
	if taken {
		return "", apperror.Conflict("category", name)
	}
	return name, nil
}
