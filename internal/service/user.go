package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/forum/internal/filter"
	"github.com/sakif/forum/internal/model"
	"github.com/sakif/forum/internal/repository"
)

// UserService exposes read access to user accounts.
type UserService struct {
	users  repository.UserRepository
	logger *slog.Logger
}

func NewUserService(users repository.UserRepository, logger *slog.Logger) *UserService {
	return &UserService{users: users, logger: logger}
}

func (s *UserService) Get(ctx context.Context, id int64) (*model.User, error) {
	return s.users.GetUserByID(ctx, id)
}

// List returns one page of users. Sort keys: id, username.
func (s *UserService) List(ctx context.Context, f repository.UserFilter) (model.Page[model.User], error) {
	if err := filter.ValidatePage(f.Window); err != nil {
		return model.Page[model.User]{}, err
	}
	f.Username = strings.TrimSpace(f.Username)

	users, total, err := s.users.ListUsers(ctx, f)
	if err != nil {
		logFailure(s.logger, "failed to list users", err)
		return model.Page[model.User]{}, fmt.Errorf("listing users: %w", err)
	}
	return newPage(users, total, f.Window), nil
}
