package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/forum/internal/apperror"
	"github.com/sakif/forum/internal/filter"
	"github.com/sakif/forum/internal/model"
	"github.com/sakif/forum/internal/repository"
)

// ReplyService manages replies and votes.
type ReplyService struct {
	replies    repository.ReplyRepository
	topics     repository.TopicRepository
	categories repository.CategoryRepository
	votes      repository.VoteRepository
	access     access
	logger     *slog.Logger
}

func NewReplyService(
	replies repository.ReplyRepository,
	topics repository.TopicRepository,
	categories repository.CategoryRepository,
	perms repository.PermissionRepository,
	votes repository.VoteRepository,
	logger *slog.Logger,
) *ReplyService {
	return &ReplyService{
		replies:    replies,
		topics:     topics,
		categories: categories,
		votes:      votes,
		access:     access{perms: perms},
		logger:     logger,
	}
}

// List returns one page of replies the actor may see. Sort keys: user_id,
// topic_id, created.
func (s *ReplyService) List(ctx context.Context, actor *model.User, f repository.ReplyFilter) (model.Page[model.Reply], error) {
	if err := filter.ValidatePage(f.Window); err != nil {
		return model.Page[model.Reply]{}, err
	}
	if f.StartDate != nil && f.EndDate != nil && !f.StartDate.Before(*f.EndDate) {
		return model.Page[model.Reply]{}, apperror.ValidationFailed("start_date", "start_date must be before end_date")
	}
	f.Viewer = viewerOf(actor)

	replies, total, err := s.replies.ListReplies(ctx, f)
	if err != nil {
		logFailure(s.logger, "failed to list replies", err)
		return model.Page[model.Reply]{}, fmt.Errorf("listing replies: %w", err)
	}
	return newPage(replies, total, f.Window), nil
}

func (s *ReplyService) Get(ctx context.Context, actor *model.User, id int64) (*model.Reply, error) {
	r, err := s.replies.GetReplyByID(ctx, id)
	if err != nil {
		return nil, err
	}
	_, c, err := s.topicAndCategory(ctx, r.TopicID)
	if err != nil {
		return nil, err
	}
	ok, err := s.access.canRead(ctx, actor, c)
	if err != nil {
		return nil, fmt.Errorf("checking access to category %d: %w", c.ID, err)
	}
	if !ok {
		return nil, apperror.Forbidden("reply is in a private category")
	}
	return r, nil
}

// Create adds a reply to topicID. The topic and its category must be
// unlocked, and a private category needs write access; admins bypass these.
func (s *ReplyService) Create(ctx context.Context, actor *model.User, topicID int64, text string) (*model.Reply, error) {
	if err := requireUser(actor); err != nil {
		return nil, err
	}
	text, err := checkText(text)
	if err != nil {
		return nil, err
	}

	t, c, err := s.topicAndCategory(ctx, topicID)
	if err != nil {
		return nil, err
	}
	if t.IsLocked && !actor.IsAdmin {
		return nil, apperror.Forbidden("topic is locked")
	}
	if err := s.access.checkPost(ctx, actor, c); err != nil {
		return nil, err
	}

	r := &model.Reply{Text: text, UserID: actor.ID, TopicID: topicID}
	if err := s.replies.CreateReply(ctx, r); err != nil {
		logFailure(s.logger, "failed to create reply", err, slog.Int64("topicID", topicID))
		return nil, fmt.Errorf("creating reply: %w", err)
	}

	s.logger.Info("reply created",
		slog.Int64("id", r.ID),
		slog.Int64("topicID", topicID),
		slog.Int64("userID", actor.ID),
	)
	return r, nil
}

// Edit replaces the text of a reply. Only its author may edit it.
func (s *ReplyService) Edit(ctx context.Context, actor *model.User, id int64, text string) (*model.Reply, error) {
	if err := requireUser(actor); err != nil {
		return nil, err
	}
	r, err := s.replies.GetReplyByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.UserID != actor.ID {
		return nil, apperror.Forbidden("only the author can edit a reply")
	}
	text, err = checkText(text)
	if err != nil {
		return nil, err
	}

	if err := s.replies.UpdateReplyText(ctx, id, text); err != nil {
		logFailure(s.logger, "failed to edit reply", err, slog.Int64("id", id))
		return nil, fmt.Errorf("editing reply %d: %w", id, err)
	}
	r.Text = text
	r.Edited++
	return r, nil
}

// Delete removes a reply and its votes. The author may delete their own
// reply and an admin may delete any reply.
func (s *ReplyService) Delete(ctx context.Context, actor *model.User, id int64) error {
	if err := requireUser(actor); err != nil {
		return err
	}
	r, err := s.replies.GetReplyByID(ctx, id)
	if err != nil {
		return err
	}
	if !canModify(actor, r.UserID) {
		return apperror.Forbidden("only the author or an admin can delete a reply")
	}

	if err := s.replies.DeleteReply(ctx, id); err != nil {
		logFailure(s.logger, "failed to delete reply", err, slog.Int64("id", id))
		return fmt.Errorf("deleting reply %d: %w", id, err)
	}

	s.logger.Info("reply deleted", slog.Int64("id", id), slog.Int64("by", actor.ID))
	return nil
}

// Vote applies one vote action by actor on a reply:
//
//	no vote  + up   → upvoted
//	no vote  + down → downvoted
//	up       + up   → vote deleted
//	up       + down → downvoted
//	down     + down → vote deleted
//	down     + up   → upvoted
//
// The read and the write are separate statements. Two concurrent first votes
// by the same user collide on the votes primary key and the loser gets a
// Conflict.
func (s *ReplyService) Vote(ctx context.Context, actor *model.User, replyID int64, up bool) (model.VoteOutcome, error) {
	if err := requireUser(actor); err != nil {
		return "", err
	}
	if _, err := s.Get(ctx, actor, replyID); err != nil {
		return "", err
	}

	outcome, err := s.applyVote(ctx, model.Vote{UserID: actor.ID, ReplyID: replyID, Up: up})
	if err != nil {
		logFailure(s.logger, "failed to vote", err, slog.Int64("replyID", replyID), slog.Int64("userID", actor.ID))
		return "", fmt.Errorf("voting on reply %d: %w", replyID, err)
	}
	return outcome, nil
}

func (s *ReplyService) applyVote(ctx context.Context, v model.Vote) (model.VoteOutcome, error) {
	outcome := model.VoteDownvoted
	if v.Up {
		outcome = model.VoteUpvoted
	}

	cur, err := s.votes.GetVote(ctx, v.UserID, v.ReplyID)
	if errors.Is(err, apperror.ErrNotFound) {
		return outcome, s.votes.InsertVote(ctx, v)
	}
	if err != nil {
		return "", err
	}

	if cur.Up == v.Up {
		return model.VoteDeleted, s.votes.DeleteVote(ctx, v.UserID, v.ReplyID)
	}
	return outcome, s.votes.UpdateVote(ctx, v)
}

// Score returns the up and down vote counts of a reply.
func (s *ReplyService) Score(ctx context.Context, actor *model.User, replyID int64) (model.Score, error) {
	if _, err := s.Get(ctx, actor, replyID); err != nil {
		return model.Score{}, err
	}
	score, err := s.votes.ScoreReply(ctx, replyID)
	if err != nil {
		logFailure(s.logger, "failed to score reply", err, slog.Int64("replyID", replyID))
		return model.Score{}, fmt.Errorf("scoring reply %d: %w", replyID, err)
	}
	return score, nil
}

// topicAndCategory loads a topic and its category.
func (s *ReplyService) topicAndCategory(ctx context.Context, topicID int64) (*model.Topic, *model.Category, error) {
	t, err := s.topics.GetTopicByID(ctx, topicID)
	if err != nil {
		return nil, nil, err
	}
	c, err := s.categories.GetCategoryByID(ctx, t.CategoryID)
	if err != nil {
		return nil, nil, err
	}
	return t, c, nil
}
