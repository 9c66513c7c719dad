package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sakif/forum/internal/apperror"
	"github.com/sakif/forum/internal/filter"
	"github.com/sakif/forum/internal/model"
	"github.com/sakif/forum/internal/repository"
)

// fakeVoteRepo is an in-memory VoteRepository keyed by (user, reply).
type fakeVoteRepo struct {
	votes map[[2]int64]bool
	calls []string
}

func newFakeVoteRepo() *fakeVoteRepo {
	return &fakeVoteRepo{votes: make(map[[2]int64]bool)}
}

func (f *fakeVoteRepo) GetVote(_ context.Context, userID, replyID int64) (*model.Vote, error) {
	up, ok := f.votes[[2]int64{userID, replyID}]
	if !ok {
		return nil, apperror.NotFoundf("no vote")
	}
	return &model.Vote{UserID: userID, ReplyID: replyID, Up: up}, nil
}

func (f *fakeVoteRepo) InsertVote(_ context.Context, v model.Vote) error {
	f.calls = append(f.calls, "insert")
	f.votes[[2]int64{v.UserID, v.ReplyID}] = v.Up
	return nil
}

func (f *fakeVoteRepo) UpdateVote(_ context.Context, v model.Vote) error {
	f.calls = append(f.calls, "update")
	f.votes[[2]int64{v.UserID, v.ReplyID}] = v.Up
	return nil
}

func (f *fakeVoteRepo) DeleteVote(_ context.Context, userID, replyID int64) error {
	f.calls = append(f.calls, "delete")
	delete(f.votes, [2]int64{userID, replyID})
	return nil
}

func (f *fakeVoteRepo) ScoreReply(_ context.Context, replyID int64) (model.Score, error) {
	s := model.Score{ReplyID: replyID}
	for k, up := range f.votes {
		if k[1] != replyID {
			continue
		}
		if up {
			s.Upvotes++
		} else {
			s.Downvotes++
		}
	}
	return s, nil
}

var _ repository.VoteRepository = (*fakeVoteRepo)(nil)

// =========================================================================
// VOTE TESTS
// =========================================================================

func TestApplyVote_StateMachine(t *testing.T) {
	tests := []struct {
		name     string
		existing *bool // nil: no vote yet
		up       bool
		want     model.VoteOutcome
		call     string
		after    *bool
	}{
		{"none + up", nil, true, model.VoteUpvoted, "insert", ptr(true)},
		{"none + down", nil, false, model.VoteDownvoted, "insert", ptr(false)},
		{"up + up", ptr(true), true, model.VoteDeleted, "delete", nil},
		{"up + down", ptr(true), false, model.VoteDownvoted, "update", ptr(false)},
		{"down + down", ptr(false), false, model.VoteDeleted, "delete", nil},
		{"down + up", ptr(false), true, model.VoteUpvoted, "update", ptr(true)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			votes := newFakeVoteRepo()
			if tt.existing != nil {
				votes.votes[[2]int64{1, 10}] = *tt.existing
			}
			s := &ReplyService{votes: votes, logger: discardLogger()}

			got, err := s.applyVote(context.Background(), model.Vote{UserID: 1, ReplyID: 10, Up: tt.up})
			if err != nil {
				t.Fatalf("applyVote() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("outcome = %q, want %q", got, tt.want)
			}
			if len(votes.calls) != 1 || votes.calls[0] != tt.call {
				t.Errorf("calls = %v, want [%s]", votes.calls, tt.call)
			}

			up, ok := votes.votes[[2]int64{1, 10}]
			switch {
			case tt.after == nil && ok:
				t.Errorf("vote still stored (up=%v), want none", up)
			case tt.after != nil && (!ok || up != *tt.after):
				t.Errorf("stored vote = %v (present %v), want %v", up, ok, *tt.after)
			}
		})
	}
}

type failingVoteRepo struct{ *fakeVoteRepo }

func (failingVoteRepo) GetVote(context.Context, int64, int64) (*model.Vote, error) {
	return nil, errors.New("database is locked")
}

func TestApplyVote_LookupFailure(t *testing.T) {
	s := &ReplyService{votes: failingVoteRepo{newFakeVoteRepo()}, logger: discardLogger()}
	if _, err := s.applyVote(context.Background(), model.Vote{UserID: 1, ReplyID: 1, Up: true}); err == nil {
		t.Fatal("applyVote() should fail when the lookup fails")
	}
}

// TestVote_Sequence runs the same toggles through SQLite and checks the
// score after each step.
func TestVote_Sequence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.user(t, "admin")
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	d := f.topic(t, alice, f.category(t, admin, "General"), "Hello")
	replyID := d.Replies[0].ID

	steps := []struct {
		actor      *model.User
		up         bool
		want       model.VoteOutcome
		ups, downs int
	}{
		{bob, true, model.VoteUpvoted, 1, 0},
		{bob, true, model.VoteDeleted, 0, 0},
		{bob, false, model.VoteDownvoted, 0, 1},
		{bob, true, model.VoteUpvoted, 1, 0},
		{alice, true, model.VoteUpvoted, 2, 0},
		{bob, false, model.VoteDownvoted, 1, 1},
	}
	for i, st := range steps {
		got, err := f.replies.Vote(ctx, st.actor, replyID, st.up)
		if err != nil {
			t.Fatalf("step %d: Vote() error = %v", i, err)
		}
		if got != st.want {
			t.Errorf("step %d: outcome = %q, want %q", i, got, st.want)
		}
		score, err := f.replies.Score(ctx, st.actor, replyID)
		if err != nil {
			t.Fatalf("step %d: Score() error = %v", i, err)
		}
		if score.Upvotes != st.ups || score.Downvotes != st.downs {
			t.Errorf("step %d: score = %+v, want %d up %d down", i, score, st.ups, st.downs)
		}
	}
}

func TestVote_Rejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.replies.Vote(ctx, nil, 1, true)
	assertErrorIs(t, err, apperror.ErrUnauthorized)

	alice := f.user(t, "alice")
	_, err = f.replies.Vote(ctx, alice, 999, true)
	assertErrorIs(t, err, apperror.ErrNotFound)
}

// =========================================================================
// CREATE / EDIT / DELETE TESTS
// =========================================================================

func TestReplyCreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.user(t, "admin")
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	d := f.topic(t, alice, f.category(t, admin, "General"), "Hello")

	r, err := f.replies.Create(ctx, bob, d.ID, "  welcome  ")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if r.Text != "welcome" || r.UserID != bob.ID || r.TopicID != d.ID || r.Edited != 0 {
		t.Errorf("Create() = %+v", r)
	}

	_, err = f.replies.Create(ctx, bob, d.ID, "")
	assertErrorIs(t, err, apperror.ErrValidation)
	_, err = f.replies.Create(ctx, bob, 999, "lost")
	assertErrorIs(t, err, apperror.ErrNotFound)
	_, err = f.replies.Create(ctx, nil, d.ID, "anon")
	assertErrorIs(t, err, apperror.ErrUnauthorized)
}

func TestReplyCreate_LockedTopic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.user(t, "admin")
	alice := f.user(t, "alice")
	d := f.topic(t, alice, f.category(t, admin, "General"), "Hello")
	if _, err := f.topics.ToggleLock(ctx, admin, d.ID); err != nil {
		t.Fatalf("ToggleLock() error = %v", err)
	}

	_, err := f.replies.Create(ctx, alice, d.ID, "one more")
	assertErrorIs(t, err, apperror.ErrForbidden)
	if _, err := f.replies.Create(ctx, admin, d.ID, "closing note"); err != nil {
		t.Errorf("admin Create() on locked topic error = %v", err)
	}
}

func TestReplyCreate_LockedCategory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.user(t, "admin")
	alice := f.user(t, "alice")
	c := f.category(t, admin, "General")
	d := f.topic(t, alice, c, "Hello")
	f.categories.ToggleLock(ctx, admin, c.ID)

	_, err := f.replies.Create(ctx, alice, d.ID, "one more")
	assertErrorIs(t, err, apperror.ErrForbidden)
}

func TestReplyEdit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.user(t, "admin")
	alice := f.user(t, "alice")
	d := f.topic(t, alice, f.category(t, admin, "General"), "Hello")
	id := d.Replies[0].ID

	r, err := f.replies.Edit(ctx, alice, id, "fixed typo")
	if err != nil {
		t.Fatalf("Edit() error = %v", err)
	}
	if r.Text != "fixed typo" || r.Edited != 1 {
		t.Errorf("Edit() = %+v, want new text and edited 1", r)
	}
	stored, _ := f.replies.Get(ctx, alice, id)
	if stored.Edited != 1 {
		t.Errorf("stored edited = %d, want 1", stored.Edited)
	}

	// Admins may delete other people's replies but not rewrite them.
	_, err = f.replies.Edit(ctx, admin, id, "admin words")
	assertErrorIs(t, err, apperror.ErrForbidden)
	_, err = f.replies.Edit(ctx, alice, id, "   ")
	assertErrorIs(t, err, apperror.ErrValidation)
}

func TestReplyDelete_Owner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.user(t, "admin")
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	d := f.topic(t, alice, f.category(t, admin, "General"), "Hello")
	r, _ := f.replies.Create(ctx, bob, d.ID, "mine")

	if err := f.replies.Delete(ctx, bob, r.ID); err != nil {
		t.Fatalf("owner Delete() error = %v", err)
	}
	_, err := f.replies.Get(ctx, bob, r.ID)
	assertErrorIs(t, err, apperror.ErrNotFound)
}

func TestReplyDelete_Admin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.user(t, "admin")
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	d := f.topic(t, alice, f.category(t, admin, "General"), "Hello")
	r, _ := f.replies.Create(ctx, bob, d.ID, "spam")

	if err := f.replies.Delete(ctx, admin, r.ID); err != nil {
		t.Fatalf("admin Delete() error = %v", err)
	}
	_, err := f.replies.Get(ctx, admin, r.ID)
	assertErrorIs(t, err, apperror.ErrNotFound)
}

func TestReplyDelete_OtherUserForbidden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.user(t, "admin")
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	d := f.topic(t, alice, f.category(t, admin, "General"), "Hello")
	r, _ := f.replies.Create(ctx, bob, d.ID, "mine")

	assertErrorIs(t, f.replies.Delete(ctx, alice, r.ID), apperror.ErrForbidden)
	if _, err := f.replies.Get(ctx, bob, r.ID); err != nil {
		t.Errorf("reply gone after forbidden delete: %v", err)
	}
}

// =========================================================================
// LIST / GET TESTS
// =========================================================================

func TestReplyList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.user(t, "admin")
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	d := f.topic(t, alice, f.category(t, admin, "General"), "Hello")
	f.replies.Create(ctx, bob, d.ID, "reply from bob")
	f.replies.Create(ctx, bob, d.ID, "another from bob")

	page, err := f.replies.List(ctx, nil, repository.ReplyFilter{UserName: "bob", Window: filter.Window{Limit: 1}})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if page.Total != 2 || len(page.Items) != 1 || page.TotalPages != 2 {
		t.Errorf("List() = %+v, want 1 of 2 over 2 pages", page)
	}

	now := time.Now()
	earlier := now.Add(-time.Hour)
	_, err = f.replies.List(ctx, nil, repository.ReplyFilter{StartDate: &now, EndDate: &earlier, Window: filter.Window{Limit: 10}})
	assertErrorIs(t, err, apperror.ErrValidation)
}

func TestReplyGet_PrivateCategory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.user(t, "admin")
	alice := f.user(t, "alice")
	c, _ := f.categories.Create(ctx, admin, CategoryInput{Name: "Staff", IsPrivate: true})
	d := f.topic(t, admin, c, "Internal")
	id := d.Replies[0].ID

	_, err := f.replies.Get(ctx, alice, id)
	assertErrorIs(t, err, apperror.ErrForbidden)
	_, err = f.replies.Get(ctx, nil, id)
	assertErrorIs(t, err, apperror.ErrForbidden)
	_, err = f.replies.Vote(ctx, alice, id, true)
	assertErrorIs(t, err, apperror.ErrForbidden)

	if _, err := f.replies.Get(ctx, admin, id); err != nil {
		t.Errorf("admin Get() error = %v", err)
	}
}

func ptr[T any](v T) *T { return &v }
