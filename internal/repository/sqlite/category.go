package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sakif/forum/internal/apperror"
	"github.com/sakif/forum/internal/filter"
	"github.com/sakif/forum/internal/model"
	"github.com/sakif/forum/internal/repository"
)

var _ repository.CategoryRepository = (*DB)(nil)

const categoryColumns = `c.category_id, c.name, c.is_locked, c.is_private`

var categorySortColumns = filter.Columns{
	"id":   "c.category_id",
	"name": "c.name",
}

func (db *DB) CreateCategory(ctx context.Context, c *model.Category) error {
	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO categories (name, is_locked, is_private) VALUES (?, ?, ?)`,
		c.Name, c.IsLocked, c.IsPrivate,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("category", c.Name)
		}
		return fmt.Errorf("sqlite: inserting category %q: %w", c.Name, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading category id: %w", err)
	}
	c.ID = id
	return nil
}

func (db *DB) GetCategoryByID(ctx context.Context, id int64) (*model.Category, error) {
	var c model.Category
	err := db.conn.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories c WHERE c.category_id = ?`, id,
	).Scan(&c.ID, &c.Name, &c.IsLocked, &c.IsPrivate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("category", id)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting category %d: %w", id, err)
	}
	return &c, nil
}

func (db *DB) CategoryNameExists(ctx context.Context, name string) (bool, error) {
	ok, err := db.exists(ctx, `SELECT 1 FROM categories WHERE name = ? LIMIT 1`, name)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking category name %q: %w", name, err)
	}
	return ok, nil
}

func (db *DB) ListCategories(ctx context.Context, f repository.CategoryFilter) ([]model.Category, int, error) {
	b := filter.New(`SELECT ` + categoryColumns + ` FROM categories c`).Tiebreak("c.category_id")
	if f.ID != 0 {
		b.Eq("c.category_id", f.ID)
	}
	if f.Name != "" {
		b.Contains("c.name", f.Name)
	}

	countQuery, countArgs := b.CountSQL()
	total, err := db.count(ctx, countQuery, countArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("sqlite: counting categories: %w", err)
	}

	b.OrderBy(categorySortColumns, f.Sort)
	b.Page(f.Window)
	query, args := b.SelectSQL()

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("sqlite: listing categories: %w", err)
	}
	defer rows.Close()

	categories := make([]model.Category, 0, max(f.Window.Limit, 0))
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.IsLocked, &c.IsPrivate); err != nil {
			return nil, 0, fmt.Errorf("sqlite: scanning category row: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("sqlite: iterating categories: %w", err)
	}

	return categories, total, nil
}

func (db *DB) RenameCategory(ctx context.Context, id int64, name string) error {
	res, err := db.conn.ExecContext(ctx, `UPDATE categories SET name = ? WHERE category_id = ?`, name, id)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("category", name)
		}
		return fmt.Errorf("sqlite: renaming category %d: %w", id, err)
	}
	return checkAffected(res, apperror.NotFound("category", id))
}

func (db *DB) SetCategoryLocked(ctx context.Context, id int64, locked bool) error {
	res, err := db.conn.ExecContext(ctx, `UPDATE categories SET is_locked = ? WHERE category_id = ?`, locked, id)
	if err != nil {
		return fmt.Errorf("sqlite: locking category %d: %w", id, err)
	}
	return checkAffected(res, apperror.NotFound("category", id))
}

func (db *DB) SetCategoryPrivate(ctx context.Context, id int64, private bool) error {
	res, err := db.conn.ExecContext(ctx, `UPDATE categories SET is_private = ? WHERE category_id = ?`, private, id)
	if err != nil {
		return fmt.Errorf("sqlite: changing privacy of category %d: %w", id, err)
	}
	return checkAffected(res, apperror.NotFound("category", id))
}

func (db *DB) CategoryHasTopics(ctx context.Context, id int64) (bool, error) {
	ok, err := db.exists(ctx, `SELECT 1 FROM topics WHERE category_id = ? LIMIT 1`, id)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking topics of category %d: %w", id, err)
	}
	return ok, nil
}

// DeleteCategory removes a category child-first in one transaction:
// permissions, then (with cascade) votes, best-reply pointers, replies and
// topics, then the category row. Without cascade a category that still has
// topics cannot be removed and a conflict is returned.
func (db *DB) DeleteCategory(ctx context.Context, id int64, cascade bool) (bool, error) {
	topicsDeleted := false

	err := db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM users_categories_permissions WHERE category_id = ?`, id); err != nil {
			return fmt.Errorf("sqlite: deleting permissions of category %d: %w", id, err)
		}

		var hasTopics bool
		err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM topics WHERE category_id = ?)`, id).Scan(&hasTopics)
		if err != nil {
			return fmt.Errorf("sqlite: checking topics of category %d: %w", id, err)
		}

		if hasTopics {
			if !cascade {
				return apperror.Conflictf("category %d still has topics", id)
			}
			topicIDs := `SELECT topic_id FROM topics WHERE category_id = ?`
			steps := []struct {
				what  string
				query string
			}{
				{"votes", `DELETE FROM votes WHERE reply_id IN (SELECT reply_id FROM replies WHERE topic_id IN (` + topicIDs + `))`},
				{"best replies", `UPDATE topics SET best_reply_id = NULL WHERE category_id = ?`},
				{"replies", `DELETE FROM replies WHERE topic_id IN (` + topicIDs + `)`},
				{"topics", `DELETE FROM topics WHERE category_id = ?`},
			}
			for _, step := range steps {
				if _, err := tx.ExecContext(ctx, step.query, id); err != nil {
					return fmt.Errorf("sqlite: deleting %s of category %d: %w", step.what, id, err)
				}
			}
			topicsDeleted = true
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM categories WHERE category_id = ?`, id)
		if err != nil {
			return fmt.Errorf("sqlite: deleting category %d: %w", id, err)
		}
		return checkAffected(res, apperror.NotFound("category", id))
	})
	if err != nil {
		return false, err
	}
	return topicsDeleted, nil
}
