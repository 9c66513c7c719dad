package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/forum/internal/apperror"
	"github.com/sakif/forum/internal/filter"
	"github.com/sakif/forum/internal/model"
	"github.com/sakif/forum/internal/repository"
)

const (
	MaxTopicTitleLength = 200
	MaxReplyTextLength  = 10000
)

// TopicService manages topics. Creating a topic also creates its first reply.
type TopicService struct {
	topics     repository.TopicRepository
	replies    repository.ReplyRepository
	categories repository.CategoryRepository
	access     access
	logger     *slog.Logger
}

func NewTopicService(
	topics repository.TopicRepository,
	replies repository.ReplyRepository,
	categories repository.CategoryRepository,
	perms repository.PermissionRepository,
	logger *slog.Logger,
) *TopicService {
	return &TopicService{
		topics:     topics,
		replies:    replies,
		categories: categories,
		access:     access{perms: perms},
		logger:     logger,
	}
}

// List returns one page of topics the actor may see. Sort keys: topic_id,
// user_id, category_id, status.
func (s *TopicService) List(ctx context.Context, actor *model.User, f repository.TopicFilter) (model.Page[model.Topic], error) {
	if err := filter.ValidatePage(f.Window); err != nil {
		return model.Page[model.Topic]{}, err
	}
	switch f.Status {
	case "", model.StatusOpen, model.StatusClosed:
	default:
		return model.Page[model.Topic]{}, apperror.ValidationFailed("status", "status must be open or closed")
	}
	f.Viewer = viewerOf(actor)

	topics, total, err := s.topics.ListTopics(ctx, f)
	if err != nil {
		logFailure(s.logger, "failed to list topics", err)
		return model.Page[model.Topic]{}, fmt.Errorf("listing topics: %w", err)
	}
	return newPage(topics, total, f.Window), nil
}

// Get returns the topic with all of its replies. Topics in private
// categories the actor cannot read are Forbidden.
func (s *TopicService) Get(ctx context.Context, actor *model.User, id int64) (*model.TopicDetail, error) {
	t, err := s.topics.GetTopicByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkRead(ctx, actor, t); err != nil {
		return nil, err
	}

	replies, err := s.replies.RepliesForTopic(ctx, id)
	if err != nil {
		logFailure(s.logger, "failed to load replies", err, slog.Int64("topicID", id))
		return nil, fmt.Errorf("loading replies of topic %d: %w", id, err)
	}
	return &model.TopicDetail{Topic: *t, Status: t.Status(), Replies: replies}, nil
}

// TopicInput is the data accepted when creating a topic.
type TopicInput struct {
	Title      string
	Text       string // first reply
	CategoryID int64
}

// Create opens a topic with its first reply in one step. The category must
// exist, be unlocked, and grant write access when private; admins bypass the
// last two checks.
func (s *TopicService) Create(ctx context.Context, actor *model.User, in TopicInput) (*model.TopicDetail, error) {
	if err := requireUser(actor); err != nil {
		return nil, err
	}
	title, err := checkTitle(in.Title)
	if err != nil {
		return nil, err
	}
	text, err := checkText(in.Text)
	if err != nil {
		return nil, err
	}

	c, err := s.categories.GetCategoryByID(ctx, in.CategoryID)
	if err != nil {
		return nil, err
	}
	if err := s.access.checkPost(ctx, actor, c); err != nil {
		return nil, err
	}

	t := &model.Topic{Title: title, UserID: actor.ID, CategoryID: c.ID}
	first := &model.Reply{Text: text, UserID: actor.ID}
	if err := s.topics.CreateTopic(ctx, t, first); err != nil {
		logFailure(s.logger, "failed to create topic", err, slog.String("title", title))
		return nil, fmt.Errorf("creating topic: %w", err)
	}
	t.Username = actor.Username
	t.CategoryName = c.Name

	s.logger.Info("topic created",
		slog.Int64("id", t.ID),
		slog.Int64("categoryID", c.ID),
		slog.Int64("userID", actor.ID),
	)
	return &model.TopicDetail{Topic: *t, Status: t.Status(), Replies: []model.Reply{*first}}, nil
}

// Rename changes the title. Only the author may rename, and only while the
// topic is unlocked.
func (s *TopicService) Rename(ctx context.Context, actor *model.User, id int64, title string) (*model.Topic, error) {
	if err := requireUser(actor); err != nil {
		return nil, err
	}
	t, err := s.topics.GetTopicByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.UserID != actor.ID {
		return nil, apperror.Forbidden("only the author can rename a topic")
	}
	if t.IsLocked {
		return nil, apperror.Forbidden("topic is locked")
	}
	title, err = checkTitle(title)
	if err != nil {
		return nil, err
	}

	if err := s.topics.UpdateTopicTitle(ctx, id, title); err != nil {
		logFailure(s.logger, "failed to rename topic", err, slog.Int64("id", id))
		return nil, fmt.Errorf("renaming topic %d: %w", id, err)
	}
	t.Title = title
	return t, nil
}

// ToggleLock flips the locked flag (admin only) and returns the topic.
func (s *TopicService) ToggleLock(ctx context.Context, actor *model.User, id int64) (*model.Topic, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	t, err := s.topics.GetTopicByID(ctx, id)
	if err != nil {
		return nil, err
	}

	t.IsLocked = !t.IsLocked
	if err := s.topics.SetTopicLocked(ctx, id, t.IsLocked); err != nil {
		logFailure(s.logger, "failed to lock topic", err, slog.Int64("id", id))
		return nil, fmt.Errorf("locking topic %d: %w", id, err)
	}

	s.logger.Info("topic lock changed", slog.Int64("id", id), slog.Bool("locked", t.IsLocked))
	return t, nil
}

// ChooseBestReply marks replyID as the topic's best reply, or clears the
// choice when replyID is nil. The reply must belong to the topic.
func (s *TopicService) ChooseBestReply(ctx context.Context, actor *model.User, topicID int64, replyID *int64) (*model.Topic, error) {
	if err := requireUser(actor); err != nil {
		return nil, err
	}
	t, err := s.topics.GetTopicByID(ctx, topicID)
	if err != nil {
		return nil, err
	}
	if !canModify(actor, t.UserID) {
		return nil, apperror.Forbidden("only the author or an admin can choose the best reply")
	}

	if replyID != nil {
		r, err := s.replies.GetReplyByID(ctx, *replyID)
		if err != nil {
			return nil, err
		}
		if r.TopicID != topicID {
			return nil, apperror.ValidationFailed("replyId",
				fmt.Sprintf("reply %d does not belong to topic %d", r.ID, topicID))
		}
	}

	if err := s.topics.SetBestReply(ctx, topicID, replyID); err != nil {
		logFailure(s.logger, "failed to set best reply", err, slog.Int64("topicID", topicID))
		return nil, fmt.Errorf("setting best reply of topic %d: %w", topicID, err)
	}
	t.BestReplyID = replyID
	return t, nil
}

// Delete removes the topic with its replies and votes. Allowed for the
// author and for admins.
func (s *TopicService) Delete(ctx context.Context, actor *model.User, id int64) error {
	if err := requireUser(actor); err != nil {
		return err
	}
	t, err := s.topics.GetTopicByID(ctx, id)
	if err != nil {
		return err
	}
	if !canModify(actor, t.UserID) {
		return apperror.Forbidden("only the author or an admin can delete a topic")
	}

	if err := s.topics.DeleteTopic(ctx, id); err != nil {
		logFailure(s.logger, "failed to delete topic", err, slog.Int64("id", id))
		return fmt.Errorf("deleting topic %d: %w", id, err)
	}

	s.logger.Info("topic deleted", slog.Int64("id", id), slog.Int64("by", actor.ID))
	return nil
}

// Count returns the number of topics across all categories.
func (s *TopicService) Count(ctx context.Context) (int, error) {
	n, err := s.topics.CountTopics(ctx)
	if err != nil {
		logFailure(s.logger, "failed to count topics", err)
		return 0, fmt.Errorf("counting topics: %w", err)
	}
	return n, nil
}

func (s *TopicService) checkRead(ctx context.Context, actor *model.User, t *model.Topic) error {
	c, err := s.categories.GetCategoryByID(ctx, t.CategoryID)
	if err != nil {
		return err
	}
	ok, err := s.access.canRead(ctx, actor, c)
	if err != nil {
		return fmt.Errorf("checking access to category %d: %w", c.ID, err)
	}
	if !ok {
		return apperror.Forbidden("topic is in a private category")
	}
	return nil
}

func checkTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", apperror.ValidationFailed("title", "title is required")
	}
	if len(title) > MaxTopicTitleLength {
		return "", apperror.ValidationFailed("title",
			fmt.Sprintf("title must be %d characters or less", MaxTopicTitleLength))
	}
	return title, nil
}

func checkText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", apperror.ValidationFailed("text", "text is required")
	}
	if len(text) > MaxReplyTextLength {
		return "", apperror.ValidationFailed("text",
			fmt.Sprintf("text must be %d characters or less", MaxReplyTextLength))
	}
	return text, nil
}
