package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/forum/internal/apperror"
	"github.com/sakif/forum/internal/auth"
	"github.com/sakif/forum/internal/model"
	"github.com/sakif/forum/internal/repository/sqlite"
)

// =========================================================================
// FIXTURE
// =========================================================================

// fixture wires every service to one in-memory SQLite database.
type fixture struct {
	db         *sqlite.DB
	tokens     *auth.TokenService
	auth       *AuthService
	users      *UserService
	categories *CategoryService
	topics     *TopicService
	replies    *ReplyService
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("sqlite.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	tokens, err := auth.NewTokenService("test-secret-at-least-16-chars!!", nil)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	logger := discardLogger()
	passwords := auth.NewPasswordServiceWithCost(bcrypt.MinCost)

	return &fixture{
		db:     db,
		tokens: tokens,
		auth: NewAuthService(db, tokens, passwords, AuthConfig{
			TokenTTL:       time.Hour,
			AdminUsernames: []string{"admin"},
		}, logger),
		users:      NewUserService(db, logger),
		categories: NewCategoryService(db, db, db, logger),
		topics:     NewTopicService(db, db, db, db, logger),
		replies:    NewReplyService(db, db, db, db, db, logger),
	}
}

// user registers a user; the name "admin" gets admin rights.
func (f *fixture) user(t *testing.T, username string) *model.User {
	t.Helper()
	u, err := f.auth.Register(context.Background(), RegisterInput{Username: username, Password: "password123"})
	if err != nil {
		t.Fatalf("Register(%q): %v", username, err)
	}
	return u
}

func (f *fixture) category(t *testing.T, admin *model.User, name string) *model.Category {
	t.Helper()
	c, err := f.categories.Create(context.Background(), admin, CategoryInput{Name: name})
	if err != nil {
		t.Fatalf("Create category %q: %v", name, err)
	}
	return c
}

func (f *fixture) topic(t *testing.T, author *model.User, c *model.Category, title string) *model.TopicDetail {
	t.Helper()
	d, err := f.topics.Create(context.Background(), author, TopicInput{Title: title, Text: "first post", CategoryID: c.ID})
	if err != nil {
		t.Fatalf("Create topic %q: %v", title, err)
	}
	return d
}

func assertErrorIs(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Errorf("error = %v, want %v", err, target)
	}
}

// =========================================================================
// GATE TESTS
// =========================================================================

func TestCanModify(t *testing.T) {
	owner := &model.User{ID: 1}
	other := &model.User{ID: 2}
	admin := &model.User{ID: 3, IsAdmin: true}

	tests := []struct {
		name  string
		actor *model.User
		want  bool
	}{
		{"owner", owner, true},
		{"admin who is not the owner", admin, true},
		{"other user", other, false},
		{"anonymous", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := canModify(tt.actor, owner.ID); got != tt.want {
				t.Errorf("canModify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	assertErrorIs(t, requireAdmin(nil), apperror.ErrUnauthorized)
	assertErrorIs(t, requireAdmin(&model.User{ID: 1}), apperror.ErrForbidden)
	if err := requireAdmin(&model.User{ID: 1, IsAdmin: true}); err != nil {
		t.Errorf("requireAdmin(admin) = %v, want nil", err)
	}
}

func TestIsDomainError(t *testing.T) {
	if !isDomainError(apperror.NotFound("topic", 1)) {
		t.Error("NotFound should be a domain error")
	}
	if isDomainError(errors.New("disk I/O error")) {
		t.Error("plain error should not be a domain error")
	}
}
