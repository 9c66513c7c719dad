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

var _ repository.ReplyRepository = (*DB)(nil)

const replyColumns = `r.reply_id, r.text, r.user_id, r.topic_id, r.created, r.edited`

const replySelect = `SELECT ` + replyColumns + `
	FROM replies r
	JOIN users u ON u.user_id = r.user_id
	JOIN topics t ON t.topic_id = r.topic_id
	JOIN categories c ON c.category_id = t.category_id`

var replySortColumns = filter.Columns{
	"user_id":  "r.user_id",
	"topic_id": "r.topic_id",
	"created":  "r.created",
}

// CreateReply inserts r and fills in its ID. A zero Created is set to now.
func (db *DB) CreateReply(ctx context.Context, r *model.Reply) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		return insertReply(ctx, tx, r)
	})
}

func (db *DB) GetReplyByID(ctx context.Context, id int64) (*model.Reply, error) {
	r, err := scanReply(db.conn.QueryRowContext(ctx,
		`SELECT `+replyColumns+` FROM replies r WHERE r.reply_id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("reply", id)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting reply %d: %w", id, err)
	}
	return r, nil
}

func (db *DB) ListReplies(ctx context.Context, f repository.ReplyFilter) ([]model.Reply, int, error) {
	b := filter.New(replySelect).Tiebreak("r.reply_id")
	if f.ReplyID != 0 {
		b.Eq("r.reply_id", f.ReplyID)
	}
	if f.Text != "" {
		b.Contains("r.text", f.Text)
	}
	if f.UserID != 0 {
		b.Eq("r.user_id", f.UserID)
	}
	if f.UserName != "" {
		b.Eq("u.username", f.UserName)
	}
	if f.TopicID != 0 {
		b.Eq("r.topic_id", f.TopicID)
	}
	if f.TopicTitle != "" {
		b.Eq("t.title", f.TopicTitle)
	}
	if f.StartDate != nil {
		b.After("r.created", *f.StartDate)
	}
	if f.EndDate != nil {
		b.Before("r.created", *f.EndDate)
	}
	visibleTo(b, f.Viewer)

	countQuery, countArgs := b.CountSQL()
	total, err := db.count(ctx, countQuery, countArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("sqlite: counting replies: %w", err)
	}

	b.OrderBy(replySortColumns, f.Sort)
	b.Page(f.Window)
	query, args := b.SelectSQL()

	replies, err := db.queryReplies(ctx, max(f.Window.Limit, 0), query, args...)
	if err != nil {
		return nil, 0, err
	}
	return replies, total, nil
}

// RepliesForTopic returns every reply of a topic, oldest first.
func (db *DB) RepliesForTopic(ctx context.Context, topicID int64) ([]model.Reply, error) {
	return db.queryReplies(ctx, 0,
		`SELECT `+replyColumns+` FROM replies r WHERE r.topic_id = ? ORDER BY r.created ASC, r.reply_id ASC`,
		topicID,
	)
}

// UpdateReplyText replaces the text and bumps the edit counter.
func (db *DB) UpdateReplyText(ctx context.Context, id int64, text string) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE replies SET text = ?, edited = edited + 1 WHERE reply_id = ?`, text, id)
	if err != nil {
		return fmt.Errorf("sqlite: editing reply %d: %w", id, err)
	}
	return checkAffected(res, apperror.NotFound("reply", id))
}

// DeleteReply removes a reply and its votes, clearing any topic that chose it
// as best reply.
func (db *DB) DeleteReply(ctx context.Context, id int64) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`UPDATE topics SET best_reply_id = NULL WHERE best_reply_id = ?`, id); err != nil {
			return fmt.Errorf("sqlite: clearing best reply %d: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM votes WHERE reply_id = ?`, id); err != nil {
			return fmt.Errorf("sqlite: deleting votes of reply %d: %w", id, err)
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM replies WHERE reply_id = ?`, id)
		if err != nil {
			return fmt.Errorf("sqlite: deleting reply %d: %w", id, err)
		}
		return checkAffected(res, apperror.NotFound("reply", id))
	})
}

func (db *DB) queryReplies(ctx context.Context, capacity int, query string, args ...any) ([]model.Reply, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing replies: %w", err)
	}
	defer rows.Close()

	replies := make([]model.Reply, 0, capacity)
	for rows.Next() {
		r, err := scanReply(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning reply row: %w", err)
		}
		replies = append(replies, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating replies: %w", err)
	}
	return replies, nil
}

func scanReply(row rowScanner) (*model.Reply, error) {
	var r model.Reply
	if err := row.Scan(&r.ID, &r.Text, &r.UserID, &r.TopicID, &r.Created, &r.Edited); err != nil {
		return nil, err
	}
	return &r, nil
}
