package handler_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/forum/internal/handler"
	"github.com/sakif/forum/internal/model"
)

func TestTopicHandler_CreateGetDelete(t *testing.T) {
	e := newTestEnv(t)
	admin := e.user(t, "admin")
	alice := e.user(t, "alice")
	general := e.category(t, admin, "General")

	rr := serve(e.topicH.HandleCreate, call{
		method: http.MethodPost, target: "/api/topics", user: alice,
		body: `{"title":"Hello","text":"First post","categoryId":` + id(general.ID) + `}`,
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := decode[model.TopicDetail](t, rr)
	assert.Equal(t, "Hello", created.Title)
	assert.Equal(t, model.StatusOpen, created.Status)
	require.Len(t, created.Replies, 1)
	assert.Equal(t, "First post", created.Replies[0].Text)

	params := map[string]string{"id": id(created.ID)}
	rr = serve(e.topicH.HandleGet, call{method: http.MethodGet, target: "/", user: alice, params: params})
	require.Equal(t, http.StatusOK, rr.Code)
	got := decode[model.TopicDetail](t, rr)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, "General", got.CategoryName)
	assert.Len(t, got.Replies, 1)

	rr = serve(e.topicH.HandleCount, call{method: http.MethodGet, target: "/api/topics/count", user: alice})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 1, decode[handler.CountResponse](t, rr).Count)

	rr = serve(e.topicH.HandleDelete, call{method: http.MethodDelete, target: "/", user: alice, params: params})
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = serve(e.topicH.HandleGet, call{method: http.MethodGet, target: "/", user: alice, params: params})
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestTopicHandler_HandleCreate_Errors(t *testing.T) {
	e := newTestEnv(t)
	admin := e.user(t, "admin")
	alice := e.user(t, "alice")
	c := e.category(t, admin, "General")

	tests := []struct {
		name     string
		body     string
		wantCode int
	}{
		{"missing title", `{"text":"x","categoryId":` + id(c.ID) + `}`, http.StatusBadRequest},
		{"missing category", `{"title":"t","text":"x","categoryId":999}`, http.StatusNotFound},
		{"wrong type", `{"title":"t","text":"x","categoryId":"one"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serve(e.topicH.HandleCreate, call{method: http.MethodPost, target: "/api/topics", user: alice, body: tt.body})
			assert.Equal(t, tt.wantCode, rr.Code)
		})
	}
}

func TestTopicHandler_HandleList(t *testing.T) {
	e := newTestEnv(t)
	admin := e.user(t, "admin")
	alice := e.user(t, "alice")
	general := e.category(t, admin, "General")
	news := e.category(t, admin, "News")
	e.topic(t, alice, general, "Go tips")
	e.topic(t, alice, news, "Go release")
	e.topic(t, admin, general, "Rules")

	tests := []struct {
		target    string
		wantTotal int
	}{
		{"/api/topics", 3},
		{"/api/topics?search=go", 2},
		{"/api/topics?search=go&category=News", 1},
		{"/api/topics?username=admin", 1},
		{"/api/topics?status=closed", 0},
		{"/api/topics?sort_by=topic_id&sort=desc&limit=2", 3},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rr := serve(e.topicH.HandleList, call{method: http.MethodGet, target: tt.target, user: alice})
			require.Equal(t, http.StatusOK, rr.Code)
			assert.Equal(t, tt.wantTotal, decode[model.Page[model.Topic]](t, rr).Total)
		})
	}

	rr := serve(e.topicH.HandleList, call{method: http.MethodGet, target: "/api/topics?sort_by=topic_id&sort=desc&limit=2", user: alice})
	page := decode[model.Page[model.Topic]](t, rr)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "Rules", page.Items[0].Title)
	assert.Equal(t, 2, page.TotalPages)

	rr = serve(e.topicH.HandleList, call{method: http.MethodGet, target: "/api/topics?status=archived", user: alice})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestTopicHandler_RenameLockBestReply(t *testing.T) {
	e := newTestEnv(t)
	admin := e.user(t, "admin")
	alice := e.user(t, "alice")
	bob := e.user(t, "bob")
	d := e.topic(t, alice, e.category(t, admin, "General"), "Draft")
	params := map[string]string{"id": id(d.ID)}

	rr := serve(e.topicH.HandleRename, call{method: http.MethodPatch, target: "/", user: bob, params: params, body: `{"title":"Mine now"}`})
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = serve(e.topicH.HandleRename, call{method: http.MethodPatch, target: "/", user: alice, params: params, body: `{"title":"Final"}`})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"title":"Final"`)

	rr = serve(e.topicH.HandleBestReply, call{
		method: http.MethodPut, target: "/", user: alice, params: params,
		body: `{"replyId":` + id(d.Replies[0].ID) + `}`,
	})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"bestReplyId":`+id(d.Replies[0].ID))

	rr = serve(e.topicH.HandleBestReply, call{method: http.MethodPut, target: "/", user: alice, params: params, body: `{"replyId":null}`})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"bestReplyId":null`)

	rr = serve(e.topicH.HandleToggleLock, call{method: http.MethodPost, target: "/", user: alice, params: params})
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = serve(e.topicH.HandleToggleLock, call{method: http.MethodPost, target: "/", user: admin, params: params})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"closed"`)
}

func TestTopicHandler_DeletePaths(t *testing.T) {
	e := newTestEnv(t)
	admin := e.user(t, "admin")
	alice := e.user(t, "alice")
	bob := e.user(t, "bob")
	c := e.category(t, admin, "General")

	tests := []struct {
		name     string
		actor    *model.User
		wantCode int
	}{
		{"other user", bob, http.StatusForbidden},
		{"owner", alice, http.StatusNoContent},
		{"admin", admin, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := e.topic(t, alice, c, "Topic for "+tt.name)
			rr := serve(e.topicH.HandleDelete, call{
				method: http.MethodDelete, target: "/", user: tt.actor, params: map[string]string{"id": id(d.ID)},
			})
			assert.Equal(t, tt.wantCode, rr.Code)
		})
	}
}
