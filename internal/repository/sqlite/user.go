package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/forum/internal/apperror"
	"github.com/sakif/forum/internal/filter"
	"github.com/sakif/forum/internal/model"
	"github.com/sakif/forum/internal/repository"
)

var _ repository.UserRepository = (*DB)(nil)

const userColumns = `u.user_id, u.username, u.password, u.email, u.first_name, u.last_name,
	u.is_admin, u.github_id, u.created_at`

var userSortColumns = filter.Columns{
	"id":       "u.user_id",
	"username": "u.username",
}

// CreateUser inserts a user and fills in its ID and CreatedAt.
// A taken username or GitHub ID is reported as a conflict.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	user.CreatedAt = time.Now().UTC()

	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (username, password, email, first_name, last_name, is_admin, github_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.Username,
		user.PasswordHash,
		user.Email,
		user.FirstName,
		user.LastName,
		user.IsAdmin,
		nullInt64(user.GitHubID),
		user.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user", user.Username)
		}
		return fmt.Errorf("sqlite: inserting user %q: %w", user.Username, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading user id: %w", err)
	}
	user.ID = id
	return nil
}

func (db *DB) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	u, err := db.getUser(ctx, `SELECT `+userColumns+` FROM users u WHERE u.user_id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("user", id)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting user %d: %w", id, err)
	}
	return u, nil
}

func (db *DB) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	u, err := db.getUser(ctx, `SELECT `+userColumns+` FROM users u WHERE u.username = ?`, username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFoundf("user %q not found", username)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting user %q: %w", username, err)
	}
	return u, nil
}

func (db *DB) GetUserByGitHubID(ctx context.Context, githubID int64) (*model.User, error) {
	u, err := db.getUser(ctx, `SELECT `+userColumns+` FROM users u WHERE u.github_id = ?`, githubID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFoundf("no user linked to GitHub account %d", githubID)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting user by github id %d: %w", githubID, err)
	}
	return u, nil
}

func (db *DB) UsernameExists(ctx context.Context, username string) (bool, error) {
	ok, err := db.exists(ctx, `SELECT 1 FROM users WHERE username = ? LIMIT 1`, username)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking username %q: %w", username, err)
	}
	return ok, nil
}

// ListUsers returns one page of users and the total number of matches.
func (db *DB) ListUsers(ctx context.Context, f repository.UserFilter) ([]model.User, int, error) {
	b := filter.New(`SELECT ` + userColumns + ` FROM users u`).Tiebreak("u.user_id")
	if f.Username != "" {
		b.Contains("u.username", f.Username)
	}
	if f.IsAdmin != nil {
		b.Eq("u.is_admin", *f.IsAdmin)
	}

	countQuery, countArgs := b.CountSQL()
	total, err := db.count(ctx, countQuery, countArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("sqlite: counting users: %w", err)
	}

	b.OrderBy(userSortColumns, f.Sort)
	b.Page(f.Window)
	query, args := b.SelectSQL()

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("sqlite: listing users: %w", err)
	}
	defer rows.Close()

	users := make([]model.User, 0, max(f.Window.Limit, 0))
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("sqlite: scanning user row: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("sqlite: iterating users: %w", err)
	}

	return users, total, nil
}

func (db *DB) getUser(ctx context.Context, query string, args ...any) (*model.User, error) {
	return scanUser(db.conn.QueryRowContext(ctx, query, args...))
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	var (
		u        model.User
		githubID sql.NullInt64
	)
	if err := row.Scan(
		&u.ID,
		&u.Username,
		&u.PasswordHash,
		&u.Email,
		&u.FirstName,
		&u.LastName,
		&u.IsAdmin,
		&githubID,
		&u.CreatedAt,
	); err != nil {
		return nil, err
	}
	u.GitHubID = ptrInt64(githubID)
	return &u, nil
}
