package model

import "time"

// Reply is a post inside a topic. Edited counts how many times the text was
// changed; zero means never edited.
type Reply struct {
	ID      int64     `json:"id"`
	Text    string    `json:"text"`
	UserID  int64     `json:"userId"`
	TopicID int64     `json:"topicId"`
	Created time.Time `json:"created"`
	Edited  int       `json:"edited"`
}

// Vote is one user's vote on one reply. Up is true for an upvote.
type Vote struct {
	UserID  int64 `json:"userId"`
	ReplyID int64 `json:"replyId"`
	Up      bool  `json:"type"`
}

// VoteOutcome describes what a vote action did.
type VoteOutcome string

const (
	VoteUpvoted   VoteOutcome = "upvoted"
	VoteDownvoted VoteOutcome = "downvoted"
	VoteDeleted   VoteOutcome = "vote deleted"
)

// Score is the vote tally of a reply.
type Score struct {
	ReplyID   int64 `json:"replyId"`
	Upvotes   int   `json:"upvotes"`
	Downvotes int   `json:"downvotes"`
}
