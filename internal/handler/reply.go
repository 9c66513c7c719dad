package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sakif/forum/internal/apperror"
	"github.com/sakif/forum/internal/auth"
	"github.com/sakif/forum/internal/model"
	"github.com/sakif/forum/internal/repository"
	"github.com/sakif/forum/internal/service"
)

// ReplyHandler exposes replies and voting.
type ReplyHandler struct {
	replies *service.ReplyService
	logger  *slog.Logger
}

func NewReplyHandler(replies *service.ReplyService, logger *slog.Logger) *ReplyHandler {
	return &ReplyHandler{replies: replies, logger: logger}
}

type replyTextRequest struct {
	Text string `json:"text"`
}

// VoteResponse reports what a vote did and the resulting tally.
type VoteResponse struct {
	Result model.VoteOutcome `json:"result"`
	Score  model.Score       `json:"score"`
}

// HandleList returns one page of replies.
//
// HTTP: GET /api/replies?reply_id=&text=&user_id=&user_name=&topic_id=&topic_title=
//
//	&start_date=2024-01-01&end_date=2024-02-01&sort_by=created&sort=desc&limit=10&offset=0
//
// Dates are exclusive bounds on the creation time.
func (h *ReplyHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sort, window, err := parseListing(q)
	if err != nil {
		writeError(w, err)
		return
	}

	f := repository.ReplyFilter{
		Text:       q.Get("text"),
		UserName:   q.Get("user_name"),
		TopicTitle: q.Get("topic_title"),
		Sort:       sort,
		Window:     window,
	}
	ids := []struct {
		name string
		dst  *int64
	}{{"reply_id", &f.ReplyID}, {"user_id", &f.UserID}, {"topic_id", &f.TopicID}}
	for _, p := range ids {
		if *p.dst, err = queryInt64(q, p.name); err != nil {
			writeError(w, err)
			return
		}
	}
	if f.StartDate, err = queryTime(q, "start_date"); err != nil {
		writeError(w, err)
		return
	}
	if f.EndDate, err = queryTime(q, "end_date"); err != nil {
		writeError(w, err)
		return
	}
	actor, _ := auth.UserFromContext(r.Context())

	page, err := h.replies.List(r.Context(), actor, f)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// HTTP: GET /api/replies/{id}
func (h *ReplyHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	actor, _ := auth.UserFromContext(r.Context())

	reply, err := h.replies.Get(r.Context(), actor, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

// HandleCreate posts a reply into a topic.
//
// HTTP: POST /api/topics/{id}/replies
// REQUEST BODY: {"text": "Welcome!"}
func (h *ReplyHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	topicID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req replyTextRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	actor, _ := auth.UserFromContext(r.Context())

	reply, err := h.replies.Create(r.Context(), actor, topicID, req.Text)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, reply)
}

// HandleEdit replaces a reply's text.
//
// HTTP: PATCH /api/replies/{id}
// REQUEST BODY: {"text": "Welcome, everyone!"}
func (h *ReplyHandler) HandleEdit(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req replyTextRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	actor, _ := auth.UserFromContext(r.Context())

	reply, err := h.replies.Edit(r.Context(), actor, id, req.Text)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

// HTTP: DELETE /api/replies/{id}
func (h *ReplyHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	actor, _ := auth.UserFromContext(r.Context())

	if err := h.replies.Delete(r.Context(), actor, id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleVote casts, switches or withdraws the caller's vote.
//
// HTTP: POST /api/replies/{id}/vote?type=true
//
// type=true is an upvote, type=false a downvote. Repeating the same vote
// withdraws it.
func (h *ReplyHandler) HandleVote(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	raw := r.URL.Query().Get("type")
	up, err := strconv.ParseBool(raw)
	if err != nil {
		writeError(w, apperror.ValidationFailed("type", "type must be true (upvote) or false (downvote)"))
		return
	}
	actor, _ := auth.UserFromContext(r.Context())

	outcome, err := h.replies.Vote(r.Context(), actor, id, up)
	if err != nil {
		writeError(w, err)
		return
	}
	score, err := h.replies.Score(r.Context(), actor, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, VoteResponse{Result: outcome, Score: score})
}

// HandleScore returns a reply's vote tally.
//
// HTTP: GET /api/replies/{id}/score
func (h *ReplyHandler) HandleScore(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	actor, _ := auth.UserFromContext(r.Context())

	score, err := h.replies.Score(r.Context(), actor, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, score)
}
