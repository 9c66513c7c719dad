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

var _ repository.VoteRepository = (*DB)(nil)

func (db *DB) GetVote(ctx context.Context, userID, replyID int64) (*model.Vote, error) {
	v := model.Vote{UserID: userID, ReplyID: replyID}
	err := db.conn.QueryRowContext(ctx,
		`SELECT type FROM votes WHERE user_id = ? AND reply_id = ?`, userID, replyID,
	).Scan(&v.Up)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFoundf("user %d has not voted on reply %d", userID, replyID)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting vote (user=%d, reply=%d): %w", userID, replyID, err)
	}
	return &v, nil
}

// InsertVote records a new vote. A second vote by the same user on the same
// reply violates the primary key and is reported as a conflict.
func (db *DB) InsertVote(ctx context.Context, v model.Vote) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO votes (user_id, reply_id, type) VALUES (?, ?, ?)`, v.UserID, v.ReplyID, v.Up)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflictf("user %d already voted on reply %d", v.UserID, v.ReplyID)
		}
		return fmt.Errorf("sqlite: inserting vote (user=%d, reply=%d): %w", v.UserID, v.ReplyID, err)
	}
	return nil
}

func (db *DB) UpdateVote(ctx context.Context, v model.Vote) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE votes SET type = ? WHERE user_id = ? AND reply_id = ?`, v.Up, v.UserID, v.ReplyID)
	if err != nil {
		return fmt.Errorf("sqlite: updating vote (user=%d, reply=%d): %w", v.UserID, v.ReplyID, err)
	}
	return checkAffected(res, apperror.NotFoundf("user %d has not voted on reply %d", v.UserID, v.ReplyID))
}

func (db *DB) DeleteVote(ctx context.Context, userID, replyID int64) error {
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM votes WHERE user_id = ? AND reply_id = ?`, userID, replyID)
	if err != nil {
		return fmt.Errorf("sqlite: deleting vote (user=%d, reply=%d): %w", userID, replyID, err)
	}
	return checkAffected(res, apperror.NotFoundf("user %d has not voted on reply %d", userID, replyID))
}

// ScoreReply counts the up and down votes of a reply.
func (db *DB) ScoreReply(ctx context.Context, replyID int64) (model.Score, error) {
	s := model.Score{ReplyID: replyID}
	err := db.conn.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(type = 1), 0), COALESCE(SUM(type = 0), 0) FROM votes WHERE reply_id = ?`,
		replyID,
	).Scan(&s.Upvotes, &s.Downvotes)
	if err != nil {
		return model.Score{}, fmt.Errorf("sqlite: scoring reply %d: %w", replyID, err)
	}
	return s, nil
}
