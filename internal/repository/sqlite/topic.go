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

var _ repository.TopicRepository = (*DB)(nil)

const topicSelect = `SELECT t.topic_id, t.title, t.user_id, u.username, t.is_locked,
	t.best_reply_id, t.category_id, c.name
	FROM topics t
	JOIN users u ON u.user_id = t.user_id
	JOIN categories c ON c.category_id = t.category_id`

var topicSortColumns = filter.Columns{
	"topic_id":    "t.topic_id",
	"user_id":     "t.user_id",
	"category_id": "t.category_id",
	"status":      "t.is_locked",
}

// visibleTo restricts a query joined on categories c to rows the viewer may
// read: public categories, or private ones the viewer holds a permission
// for. Admins see everything.
func visibleTo(b *filter.Builder, v repository.Viewer) {
	if v.Admin {
		return
	}
	b.Where(`(c.is_private = 0 OR EXISTS (SELECT 1 FROM users_categories_permissions ucp
		WHERE ucp.category_id = c.category_id AND ucp.user_id = ?))`, v.UserID)
}

// CreateTopic inserts the topic and its first reply in one transaction.
func (db *DB) CreateTopic(ctx context.Context, t *model.Topic, first *model.Reply) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO topics (title, user_id, is_locked, category_id) VALUES (?, ?, ?, ?)`,
			t.Title, t.UserID, t.IsLocked, t.CategoryID,
		)
		if err != nil {
			return fmt.Errorf("sqlite: inserting topic %q: %w", t.Title, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("sqlite: reading topic id: %w", err)
		}

		first.TopicID = id
		if err := insertReply(ctx, tx, first); err != nil {
			return err
		}
		t.ID = id
		return nil
	})
}

func (db *DB) GetTopicByID(ctx context.Context, id int64) (*model.Topic, error) {
	t, err := scanTopic(db.conn.QueryRowContext(ctx, topicSelect+` WHERE t.topic_id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("topic", id)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting topic %d: %w", id, err)
	}
	return t, nil
}

func (db *DB) ListTopics(ctx context.Context, f repository.TopicFilter) ([]model.Topic, int, error) {
	b := filter.New(topicSelect).Tiebreak("t.topic_id")
	if f.Search != "" {
		b.Contains("t.title", f.Search)
	}
	if f.Username != "" {
		b.Eq("u.username", f.Username)
	}
	if f.Category != "" {
		b.Eq("c.name", f.Category)
	}
	switch f.Status {
	case model.StatusOpen:
		b.Eq("t.is_locked", false)
	case model.StatusClosed:
		b.Eq("t.is_locked", true)
	}
	visibleTo(b, f.Viewer)

	countQuery, countArgs := b.CountSQL()
	total, err := db.count(ctx, countQuery, countArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("sqlite: counting topics: %w", err)
	}

	b.OrderBy(topicSortColumns, f.Sort)
	b.Page(f.Window)
	query, args := b.SelectSQL()

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("sqlite: listing topics: %w", err)
	}
	defer rows.Close()

	topics := make([]model.Topic, 0, max(f.Window.Limit, 0))
	for rows.Next() {
		t, err := scanTopic(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("sqlite: scanning topic row: %w", err)
		}
		topics = append(topics, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("sqlite: iterating topics: %w", err)
	}

	return topics, total, nil
}

func (db *DB) UpdateTopicTitle(ctx context.Context, id int64, title string) error {
	res, err := db.conn.ExecContext(ctx, `UPDATE topics SET title = ? WHERE topic_id = ?`, title, id)
	if err != nil {
		return fmt.Errorf("sqlite: renaming topic %d: %w", id, err)
	}
	return checkAffected(res, apperror.NotFound("topic", id))
}

func (db *DB) SetTopicLocked(ctx context.Context, id int64, locked bool) error {
	res, err := db.conn.ExecContext(ctx, `UPDATE topics SET is_locked = ? WHERE topic_id = ?`, locked, id)
	if err != nil {
		return fmt.Errorf("sqlite: locking topic %d: %w", id, err)
	}
	return checkAffected(res, apperror.NotFound("topic", id))
}

// SetBestReply points the topic at replyID, or clears it when replyID is nil.
func (db *DB) SetBestReply(ctx context.Context, topicID int64, replyID *int64) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE topics SET best_reply_id = ? WHERE topic_id = ?`, nullInt64(replyID), topicID)
	if err != nil {
		return fmt.Errorf("sqlite: setting best reply of topic %d: %w", topicID, err)
	}
	return checkAffected(res, apperror.NotFound("topic", topicID))
}

func (db *DB) CountTopics(ctx context.Context) (int, error) {
	n, err := db.count(ctx, `SELECT COUNT(*) FROM topics`)
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting topics: %w", err)
	}
	return n, nil
}

// DeleteTopic removes the topic together with its replies and their votes.
func (db *DB) DeleteTopic(ctx context.Context, id int64) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		steps := []struct {
			what  string
			query string
		}{
			{"best reply", `UPDATE topics SET best_reply_id = NULL WHERE topic_id = ?`},
			{"votes", `DELETE FROM votes WHERE reply_id IN (SELECT reply_id FROM replies WHERE topic_id = ?)`},
			{"replies", `DELETE FROM replies WHERE topic_id = ?`},
		}
		for _, step := range steps {
			if _, err := tx.ExecContext(ctx, step.query, id); err != nil {
				return fmt.Errorf("sqlite: deleting %s of topic %d: %w", step.what, id, err)
			}
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM topics WHERE topic_id = ?`, id)
		if err != nil {
			return fmt.Errorf("sqlite: deleting topic %d: %w", id, err)
		}
		return checkAffected(res, apperror.NotFound("topic", id))
	})
}

func scanTopic(row rowScanner) (*model.Topic, error) {
	var (
		t         model.Topic
		bestReply sql.NullInt64
	)
	if err := row.Scan(
		&t.ID,
		&t.Title,
		&t.UserID,
		&t.Username,
		&t.IsLocked,
		&bestReply,
		&t.CategoryID,
		&t.CategoryName,
	); err != nil {
		return nil, err
	}
	t.BestReplyID = ptrInt64(bestReply)
	return &t, nil
}

// insertReply is shared by CreateReply and CreateTopic. A zero Created is
// set to the current time.
func insertReply(ctx context.Context, tx *sql.Tx, r *model.Reply) error {
	if r.Created.IsZero() {
		r.Created = time.Now().UTC()
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO replies (text, user_id, topic_id, created, edited) VALUES (?, ?, ?, ?, ?)`,
		r.Text, r.UserID, r.TopicID, r.Created.UTC(), r.Edited,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting reply to topic %d: %w", r.TopicID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading reply id: %w", err)
	}
	r.ID = id
	return nil
}
