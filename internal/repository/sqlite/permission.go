package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sakif/forum/internal/apperror"
	"github.com/sakif/forum/internal/model"
	"github.com/sakif/forum/internal/repository"
)

var _ repository.PermissionRepository = (*DB)(nil)

// SetPermission grants or updates a user's access to a category.
func (db *DB) SetPermission(ctx context.Context, p model.AccessPermission) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users_categories_permissions (category_id, user_id, write_access)
		 VALUES (?, ?, ?)
		 ON CONFLICT (category_id, user_id) DO UPDATE SET write_access = excluded.write_access`,
		p.CategoryID, p.UserID, p.WriteAccess,
	)
	if err != nil {
		return fmt.Errorf("sqlite: setting permission (category=%d, user=%d): %w", p.CategoryID, p.UserID, err)
	}
	return nil
}

func (db *DB) GetPermission(ctx context.Context, categoryID, userID int64) (*model.AccessPermission, error) {
	p := model.AccessPermission{CategoryID: categoryID, UserID: userID}
	err := db.conn.QueryRowContext(ctx,
		`SELECT write_access FROM users_categories_permissions WHERE category_id = ? AND user_id = ?`,
		categoryID, userID,
	).Scan(&p.WriteAccess)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFoundf("user %d has no access to category %d", userID, categoryID)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting permission (category=%d, user=%d): %w", categoryID, userID, err)
	}
	return &p, nil
}

func (db *DB) DeletePermission(ctx context.Context, categoryID, userID int64) error {
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM users_categories_permissions WHERE category_id = ? AND user_id = ?`,
		categoryID, userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting permission (category=%d, user=%d): %w", categoryID, userID, err)
	}
	return checkAffected(res, apperror.NotFoundf("user %d has no access to category %d", userID, categoryID))
}

func (db *DB) ListPermissions(ctx context.Context, categoryID int64) ([]model.AccessPermission, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT category_id, user_id, write_access FROM users_categories_permissions
		 WHERE category_id = ? ORDER BY user_id`,
		categoryID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing permissions of category %d: %w", categoryID, err)
	}
	defer rows.Close()

	perms := []model.AccessPermission{}
	for rows.Next() {
		var p model.AccessPermission
		if err := rows.Scan(&p.CategoryID, &p.UserID, &p.WriteAccess); err != nil {
			return nil, fmt.Errorf("sqlite: scanning permission row: %w", err)
		}
		perms = append(perms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating permissions: %w", err)
	}
	return perms, nil
}
