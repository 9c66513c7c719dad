package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/forum/internal/apperror"
	"github.com/sakif/forum/internal/auth"
	"github.com/sakif/forum/internal/model"
	"github.com/sakif/forum/internal/repository"
)

const (
	MinUsernameLength = 3
	MaxUsernameLength = 32
	MinPasswordLength = 8
)

// DefaultTokenTTL is used when AuthService is built with a zero TTL.
const DefaultTokenTTL = 30 * time.Minute

// AuthService registers users, logs them in and out, and resolves tokens to
// user rows. It implements auth.Authenticator.
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	ttl       time.Duration
	admins    map[string]bool
	logger    *slog.Logger
}

var _ auth.Authenticator = (*AuthService)(nil)

// AuthConfig holds the tunables of AuthService.
type AuthConfig struct {
	// TokenTTL is the lifetime of issued tokens.
	TokenTTL time.Duration
	// AdminUsernames are granted admin rights when they register.
	AdminUsernames []string
}

func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	cfg AuthConfig,
	logger *slog.Logger,
) *AuthService {
	ttl := cfg.TokenTTL
	if ttl == 0 {
		ttl = DefaultTokenTTL
	}
	admins := make(map[string]bool, len(cfg.AdminUsernames))
	for _, name := range cfg.AdminUsernames {
		if name = strings.TrimSpace(name); name != "" {
			admins[name] = true
		}
	}
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		ttl:       ttl,
		admins:    admins,
		logger:    logger,
	}
}

// RegisterInput is the data accepted at sign-up.
type RegisterInput struct {
	Username  string
	Password  string
	Email     string
	FirstName string
	LastName  string
}

// AuthResult bundles the user and the token issued for them.
type AuthResult struct {
	User      *model.User
	Token     string
	ExpiresAt time.Time
}

// Register creates a new account. Usernames are unique; a taken one is a
// Conflict.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	username := strings.TrimSpace(in.Username)
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if len(in.Password) < MinPasswordLength {
		return nil, apperror.ValidationFailed("password",
			fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}

	taken, err := s.users.UsernameExists(ctx, username)
	if err != nil {
		logFailure(s.logger, "failed to check username", err, slog.String("username", username))
		return nil, fmt.Errorf("service/auth: checking username: %w", err)
	}
	if taken {
		return nil, apperror.Conflict("username", username)
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Username:     username,
		PasswordHash: hash,
		Email:        strings.TrimSpace(in.Email),
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		IsAdmin:      s.admins[username],
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		logFailure(s.logger, "failed to create user", err, slog.String("username", username))
		return nil, fmt.Errorf("service/auth: creating user: %w", err)
	}

	s.logger.Info("user registered",
		slog.Int64("userID", user.ID),
		slog.String("username", user.Username),
		slog.Bool("admin", user.IsAdmin),
	)
	return user, nil
}

// Login checks the credentials and issues a token. Unknown usernames and
// wrong passwords both return the same Unauthorized error.
func (s *AuthService) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	badCredentials := apperror.Unauthorized("invalid username or password")

	user, err := s.users.GetUserByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, badCredentials
	}
	if err != nil {
		logFailure(s.logger, "failed to load user for login", err, slog.String("username", username))
		return nil, fmt.Errorf("service/auth: loading user: %w", err)
	}

	// Accounts created through GitHub have no password to log in with.
	if user.PasswordHash == "" {
		return nil, badCredentials
	}
	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if errors.Is(err, apperror.ErrUnauthorized) {
			return nil, badCredentials
		}
		return nil, err
	}

	return s.issue(user)
}

// Logout revokes the token so it can no longer authenticate.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if err := s.tokens.Revoke(ctx, token); err != nil {
		logFailure(s.logger, "failed to revoke token", err)
		return err
	}
	return nil
}

// Authenticate validates token and returns the current row of the user it
// names. A token for a deleted or renamed user is Unauthorized.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*model.User, error) {
	id, err := s.tokens.Validate(ctx, token)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByUsername(ctx, id.Subject)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, apperror.Unauthorized("token refers to an unknown user")
	}
	if err != nil {
		logFailure(s.logger, "failed to load token user", err, slog.String("subject", id.Subject))
		return nil, fmt.Errorf("service/auth: loading user %q: %w", id.Subject, err)
	}
	return user, nil
}

// LoginOrRegisterGitHub signs in the user linked to the GitHub account,
// creating one on first sign-in. Accounts created here are never admins,
// even when the chosen username is listed in AdminUsernames.
func (s *AuthService) LoginOrRegisterGitHub(ctx context.Context, acct *auth.GitHubAccount) (*AuthResult, error) {
	if acct == nil {
		return nil, fmt.Errorf("service/auth: GitHub account must not be nil")
	}

	user, err := s.users.GetUserByGitHubID(ctx, acct.ID)
	if err == nil {
		s.logger.Info("user authenticated via GitHub", slog.Int64("userID", user.ID))
		return s.issue(user)
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		logFailure(s.logger, "failed to look up GitHub user", err, slog.Int64("githubID", acct.ID))
		return nil, fmt.Errorf("service/auth: looking up GitHub user %d: %w", acct.ID, err)
	}

	username, err := s.githubUsername(ctx, acct)
	if err != nil {
		return nil, err
	}

	first, last, _ := strings.Cut(strings.TrimSpace(acct.Name), " ")
	ghID := acct.ID
	user = &model.User{
		Username:  username,
		Email:     acct.Email,
		FirstName: first,
		LastName:  last,
		GitHubID:  &ghID,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		logFailure(s.logger, "failed to create GitHub user", err, slog.Int64("githubID", acct.ID))
		return nil, fmt.Errorf("service/auth: creating GitHub user: %w", err)
	}

	s.logger.Info("user registered via GitHub",
		slog.Int64("userID", user.ID),
		slog.String("username", user.Username),
	)
	return s.issue(user)
}

// maxGitHubNameAttempts bounds the suffix search in githubUsername.
const maxGitHubNameAttempts = 20

// githubUsername picks a free, valid username for a new GitHub account: the
// login itself, else login-<id>, else login-<id>-2, login-<id>-3 and so on.
// The login is shortened so every candidate fits MaxUsernameLength.
func (s *AuthService) githubUsername(ctx context.Context, acct *auth.GitHubAccount) (string, error) {
	login := strings.Join(strings.Fields(acct.Login), "")
	if login == "" {
		login = "github"
	}

	for n := 0; n < maxGitHubNameAttempts; n++ {
		var candidate string
		switch n {
		case 0:
			candidate = login
		case 1:
			candidate = withSuffix(login, fmt.Sprintf("-%d", acct.ID))
		default:
			candidate = withSuffix(login, fmt.Sprintf("-%d-%d", acct.ID, n))
		}
		if validateUsername(candidate) != nil {
			continue
		}

		taken, err := s.users.UsernameExists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("service/auth: checking username %q: %w", candidate, err)
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", apperror.Conflictf("no free username for GitHub login %q", acct.Login)
}

// withSuffix appends suffix to base, cutting base so the result is at most
// MaxUsernameLength bytes.
func withSuffix(base, suffix string) string {
	if keep := MaxUsernameLength - len(suffix); len(base) > keep {
		base = base[:max(keep, 0)]
	}
	return base + suffix
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Issue(user.Username, user.IsAdmin, s.ttl)
	if err != nil {
		return nil, fmt.Errorf("service/auth: issuing token for %q: %w", user.Username, err)
	}
	return &AuthResult{User: user, Token: token, ExpiresAt: time.Now().Add(s.ttl)}, nil
}

func validateUsername(username string) error {
	switch {
	case username == "":
		return apperror.ValidationFailed("username", "username is required")
	case len(username) < MinUsernameLength || len(username) > MaxUsernameLength:
		return apperror.ValidationFailed("username",
			fmt.Sprintf("username must be %d to %d characters", MinUsernameLength, MaxUsernameLength))
	case strings.ContainsAny(username, " \t\r\n"):
		return apperror.ValidationFailed("username", "username must not contain whitespace")
	}
	return nil
}
