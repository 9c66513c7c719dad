package handler_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/forum/internal/auth"
	"github.com/sakif/forum/internal/handler"
	"github.com/sakif/forum/internal/model"
	"github.com/sakif/forum/internal/repository/sqlite"
	"github.com/sakif/forum/internal/service"
)

// testEnv holds real services over an in-memory database and the handlers
// built on them. Handlers are called directly, the way the router would.
type testEnv struct {
	tokens     *auth.TokenService
	auth       *service.AuthService
	categories *service.CategoryService
	topics     *service.TopicService
	replies    *service.ReplyService

	users     *handler.UserHandler
	categoryH *handler.CategoryHandler
	topicH    *handler.TopicHandler
	replyH    *handler.ReplyHandler
	logger    *slog.Logger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tokens, err := auth.NewTokenService("handler-test-secret-0123456789", nil)
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	e := &testEnv{tokens: tokens, logger: logger}
	e.auth = service.NewAuthService(db, tokens, auth.NewPasswordServiceWithCost(bcrypt.MinCost),
		service.AuthConfig{TokenTTL: time.Hour, AdminUsernames: []string{"admin"}}, logger)
	e.categories = service.NewCategoryService(db, db, db, logger)
	e.topics = service.NewTopicService(db, db, db, db, logger)
	e.replies = service.NewReplyService(db, db, db, db, db, logger)

	e.users = handler.NewUserHandler(e.auth, service.NewUserService(db, logger), logger)
	e.categoryH = handler.NewCategoryHandler(e.categories, logger)
	e.topicH = handler.NewTopicHandler(e.topics, logger)
	e.replyH = handler.NewReplyHandler(e.replies, logger)
	return e
}

// user registers username with password "password123". "admin" is an admin.
func (e *testEnv) user(t *testing.T, username string) *model.User {
	t.Helper()
	u, err := e.auth.Register(context.Background(), service.RegisterInput{Username: username, Password: "password123"})
	require.NoError(t, err)
	return u
}

func (e *testEnv) category(t *testing.T, admin *model.User, name string) *model.Category {
	t.Helper()
	c, err := e.categories.Create(context.Background(), admin, service.CategoryInput{Name: name})
	require.NoError(t, err)
	return c
}

func (e *testEnv) topic(t *testing.T, author *model.User, c *model.Category, title string) *model.TopicDetail {
	t.Helper()
	d, err := e.topics.Create(context.Background(), author, service.TopicInput{Title: title, Text: "first post", CategoryID: c.ID})
	require.NoError(t, err)
	return d
}

// call is one handler invocation.
type call struct {
	method string
	target string
	body   string
	user   *model.User       // nil: anonymous
	token  string            // raw token placed in the context with user
	params map[string]string // chi URL parameters
}

func serve(h http.HandlerFunc, c call) *httptest.ResponseRecorder {
	var body io.Reader
	if c.body != "" {
		body = strings.NewReader(c.body)
	}
	req := httptest.NewRequest(c.method, c.target, body)
	if c.body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	rctx := chi.NewRouteContext()
	for k, v := range c.params {
		rctx.URLParams.Add(k, v)
	}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	if c.user != nil {
		ctx = auth.WithUser(ctx, c.user, c.token)
	}

	rr := httptest.NewRecorder()
	h(rr, req.WithContext(ctx))
	return rr
}

func id(n int64) string {
	return strconv.FormatInt(n, 10)
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&v), "body: %s", rr.Body.String())
	return v
}

func errorKind(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[handler.ErrorResponse](t, rr).Error
}
