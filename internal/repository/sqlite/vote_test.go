package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/forum/internal/apperror"
	"github.com/sakif/forum/internal/model"
)

func TestVotes(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	author := createTestUser(t, db, "author")
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	c := createTestCategory(t, db, "General")
	_, reply := createTestTopic(t, db, author, c, "Hello")

	if _, err := db.GetVote(ctx, alice.ID, reply.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("GetVote() before voting error = %v, want ErrNotFound", err)
	}

	if err := db.InsertVote(ctx, model.Vote{UserID: alice.ID, ReplyID: reply.ID, Up: true}); err != nil {
		t.Fatalf("InsertVote() error = %v", err)
	}
	if err := db.InsertVote(ctx, model.Vote{UserID: bob.ID, ReplyID: reply.ID, Up: true}); err != nil {
		t.Fatalf("InsertVote() error = %v", err)
	}

	// Same user, same reply: the primary key rejects it.
	err := db.InsertVote(ctx, model.Vote{UserID: alice.ID, ReplyID: reply.ID, Up: false})
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("InsertVote() duplicate error = %v, want ErrConflict", err)
	}

	if err := db.UpdateVote(ctx, model.Vote{UserID: bob.ID, ReplyID: reply.ID, Up: false}); err != nil {
		t.Fatalf("UpdateVote() error = %v", err)
	}
	v, err := db.GetVote(ctx, bob.ID, reply.ID)
	if err != nil {
		t.Fatalf("GetVote() error = %v", err)
	}
	if v.Up {
		t.Error("bob's vote still up after UpdateVote")
	}

	score, err := db.ScoreReply(ctx, reply.ID)
	if err != nil {
		t.Fatalf("ScoreReply() error = %v", err)
	}
	if score.Upvotes != 1 || score.Downvotes != 1 {
		t.Errorf("ScoreReply() = %+v, want 1 up 1 down", score)
	}

	if err := db.DeleteVote(ctx, alice.ID, reply.ID); err != nil {
		t.Fatalf("DeleteVote() error = %v", err)
	}
	if err := db.DeleteVote(ctx, alice.ID, reply.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("DeleteVote() twice error = %v, want ErrNotFound", err)
	}
	if err := db.UpdateVote(ctx, model.Vote{UserID: alice.ID, ReplyID: reply.ID}); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("UpdateVote() without vote error = %v, want ErrNotFound", err)
	}
}

func TestScoreReply_NoVotes(t *testing.T) {
	db := newTestDB(t)

	score, err := db.ScoreReply(context.Background(), 42)
	if err != nil {
		t.Fatalf("ScoreReply() error = %v", err)
	}
	if score != (model.Score{ReplyID: 42}) {
		t.Errorf("ScoreReply() = %+v, want zero counts", score)
	}
}
