package model

// Topic status values, derived from IsLocked.
const (
	StatusOpen   = "open"
	StatusClosed = "closed"
)

// Topic is a discussion thread inside a category. Username and CategoryName
// are filled from joins on read and ignored on write.
type Topic struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	UserID       int64  `json:"userId"`
	Username     string `json:"username,omitempty"`
	IsLocked     bool   `json:"isLocked"`
	BestReplyID  *int64 `json:"bestReplyId"`
	CategoryID   int64  `json:"categoryId"`
	CategoryName string `json:"categoryName,omitempty"`
}

// Status returns StatusClosed for locked topics and StatusOpen otherwise.
func (t Topic) Status() string {
	if t.IsLocked {
		return StatusClosed
	}
	return StatusOpen
}

// TopicDetail is a topic together with all of its replies.
type TopicDetail struct {
	Topic
	Status  string  `json:"status"`
	Replies []Reply `json:"replies"`
}
