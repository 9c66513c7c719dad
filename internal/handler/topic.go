package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/forum/internal/auth"
	"github.com/sakif/forum/internal/model"
	"github.com/sakif/forum/internal/repository"
	"github.com/sakif/forum/internal/service"
)

// TopicHandler exposes topics. Replies posted into a topic are handled by
// ReplyHandler.
type TopicHandler struct {
	topics *service.TopicService
	logger *slog.Logger
}

func NewTopicHandler(topics *service.TopicService, logger *slog.Logger) *TopicHandler {
	return &TopicHandler{topics: topics, logger: logger}
}

type createTopicRequest struct {
	Title      string `json:"title"`
	Text       string `json:"text"`
	CategoryID int64  `json:"categoryId"`
}

type renameTopicRequest struct {
	Title string `json:"title"`
}

// bestReplyRequest carries the chosen reply; null clears the choice.
type bestReplyRequest struct {
	ReplyID *int64 `json:"replyId"`
}

// CountResponse is the body of GET /api/topics/count.
type CountResponse struct {
	Count int `json:"count"`
}

// HandleList returns one page of topics.
//
// HTTP: GET /api/topics?search=go&username=alice&category=General&status=open
//
//	&sort_by=topic_id&sort=desc&limit=10&offset=0
func (h *TopicHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sort, window, err := parseListing(q)
	if err != nil {
		writeError(w, err)
		return
	}
	actor, _ := auth.UserFromContext(r.Context())

	page, err := h.topics.List(r.Context(), actor, repository.TopicFilter{
		Search:   q.Get("search"),
		Username: q.Get("username"),
		Category: q.Get("category"),
		Status:   q.Get("status"),
		Sort:     sort,
		Window:   window,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// HandleGet returns a topic with all of its replies.
//
// HTTP: GET /api/topics/{id}
func (h *TopicHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	actor, _ := auth.UserFromContext(r.Context())

	d, err := h.topics.Get(r.Context(), actor, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// HandleCount returns the number of topics.
//
// HTTP: GET /api/topics/count
func (h *TopicHandler) HandleCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.topics.Count(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CountResponse{Count: n})
}

// HandleCreate opens a topic together with its first reply.
//
// HTTP: POST /api/topics
// REQUEST BODY: {"title": "Hello", "text": "First post", "categoryId": 1}
func (h *TopicHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createTopicRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	actor, _ := auth.UserFromContext(r.Context())

	d, err := h.topics.Create(r.Context(), actor, service.TopicInput{
		Title:      req.Title,
		Text:       req.Text,
		CategoryID: req.CategoryID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

// HandleRename changes a topic's title.
//
// HTTP: PATCH /api/topics/{id}
// REQUEST BODY: {"title": "Hello again"}
func (h *TopicHandler) HandleRename(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req renameTopicRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	actor, _ := auth.UserFromContext(r.Context())

	t, err := h.topics.Rename(r.Context(), actor, id, req.Title)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, withStatus(t))
}

// HandleToggleLock opens or closes a topic.
//
// HTTP: POST /api/topics/{id}/lock
func (h *TopicHandler) HandleToggleLock(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	actor, _ := auth.UserFromContext(r.Context())

	t, err := h.topics.ToggleLock(r.Context(), actor, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, withStatus(t))
}

// HandleBestReply sets or clears the best reply.
//
// HTTP: PUT /api/topics/{id}/best-reply
// REQUEST BODY: {"replyId": 12} or {"replyId": null}
func (h *TopicHandler) HandleBestReply(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req bestReplyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	actor, _ := auth.UserFromContext(r.Context())

	t, err := h.topics.ChooseBestReply(r.Context(), actor, id, req.ReplyID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, withStatus(t))
}

// HandleDelete removes a topic with its replies and votes.
//
// HTTP: DELETE /api/topics/{id}
func (h *TopicHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	actor, _ := auth.UserFromContext(r.Context())

	if err := h.topics.Delete(r.Context(), actor, id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// topicResponse is a topic with its derived status spelled out.
type topicResponse struct {
	*model.Topic
	Status string `json:"status"`
}

func withStatus(t *model.Topic) topicResponse {
	return topicResponse{Topic: t, Status: t.Status()}
}
