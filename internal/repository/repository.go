// Package repository declares the storage interfaces the services depend on.
// The sqlite subpackage implements all of them on a single *sqlite.DB.
//
// Lookups (GetXByID and friends) return an apperror NotFound when no row
// matches. Listings return an empty slice and a zero total instead.
package repository

import (
	"context"
	"time"

	"github.com/sakif/forum/internal/filter"
	"github.com/sakif/forum/internal/model"
)

// Viewer identifies who is listing, for private-category visibility.
// A zero UserID is an anonymous viewer.
type Viewer struct {
	UserID int64
	Admin  bool
}

type UserFilter struct {
	Username string // substring match
	IsAdmin  *bool
	Sort     filter.Sort
	Window   filter.Window
}

type CategoryFilter struct {
	ID     int64
	Name   string // substring match
	Sort   filter.Sort
	Window filter.Window
}

type TopicFilter struct {
	Search   string // substring match on title
	Username string
	Category string // exact category name
	Status   string // model.StatusOpen / model.StatusClosed, empty for both
	Viewer   Viewer
	Sort     filter.Sort
	Window   filter.Window
}

type ReplyFilter struct {
	ReplyID    int64
	Text       string // substring match
	UserID     int64
	UserName   string
	TopicID    int64
	TopicTitle string
	StartDate  *time.Time // created strictly after
	EndDate    *time.Time // created strictly before
	Viewer     Viewer
	Sort       filter.Sort
	Window     filter.Window
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	GetUserByGitHubID(ctx context.Context, githubID int64) (*model.User, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	ListUsers(ctx context.Context, f UserFilter) ([]model.User, int, error)
}

type CategoryRepository interface {
	CreateCategory(ctx context.Context, c *model.Category) error
	GetCategoryByID(ctx context.Context, id int64) (*model.Category, error)
	CategoryNameExists(ctx context.Context, name string) (bool, error)
	ListCategories(ctx context.Context, f CategoryFilter) ([]model.Category, int, error)
	RenameCategory(ctx context.Context, id int64, name string) error
	SetCategoryLocked(ctx context.Context, id int64, locked bool) error
	SetCategoryPrivate(ctx context.Context, id int64, private bool) error
	CategoryHasTopics(ctx context.Context, id int64) (bool, error)
	// DeleteCategory removes the category and its permissions. With cascade
	// it also removes topics, replies and votes; it reports whether any
	// topics were removed.
	DeleteCategory(ctx context.Context, id int64, cascade bool) (bool, error)
}

type PermissionRepository interface {
	SetPermission(ctx context.Context, p model.AccessPermission) error
	GetPermission(ctx context.Context, categoryID, userID int64) (*model.AccessPermission, error)
	DeletePermission(ctx context.Context, categoryID, userID int64) error
	ListPermissions(ctx context.Context, categoryID int64) ([]model.AccessPermission, error)
}

type TopicRepository interface {
	// CreateTopic inserts the topic and its first reply atomically, filling
	// both IDs.
	CreateTopic(ctx context.Context, t *model.Topic, first *model.Reply) error
	GetTopicByID(ctx context.Context, id int64) (*model.Topic, error)
	ListTopics(ctx context.Context, f TopicFilter) ([]model.Topic, int, error)
	UpdateTopicTitle(ctx context.Context, id int64, title string) error
	SetTopicLocked(ctx context.Context, id int64, locked bool) error
	SetBestReply(ctx context.Context, topicID int64, replyID *int64) error
	CountTopics(ctx context.Context) (int, error)
	DeleteTopic(ctx context.Context, id int64) error
}

type ReplyRepository interface {
	CreateReply(ctx context.Context, r *model.Reply) error
	GetReplyByID(ctx context.Context, id int64) (*model.Reply, error)
	ListReplies(ctx context.Context, f ReplyFilter) ([]model.Reply, int, error)
	RepliesForTopic(ctx context.Context, topicID int64) ([]model.Reply, error)
	UpdateReplyText(ctx context.Context, id int64, text string) error
	DeleteReply(ctx context.Context, id int64) error
}

type VoteRepository interface {
	GetVote(ctx context.Context, userID, replyID int64) (*model.Vote, error)
	InsertVote(ctx context.Context, v model.Vote) error
	UpdateVote(ctx context.Context, v model.Vote) error
	DeleteVote(ctx context.Context, userID, replyID int64) error
	ScoreReply(ctx context.Context, replyID int64) (model.Score, error)
}
