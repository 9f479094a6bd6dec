package chat

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leaselens-backend/internal/shared/server/middleware"
)

func newChatRouter(svc *Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Auth("dev"))
	NewHandler(svc).RegisterRoutes(r.Group("/api/v1"))
	return r
}

func postChat(t *testing.T, guestID, body string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Guest-Id", guestID)
	return req
}

func readFrames(t *testing.T, body string) []frame {
	t.Helper()
	var out []frame
	for _, raw := range strings.Split(body, "\n\n") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		require.True(t, strings.HasPrefix(raw, "data:"), "frame %q", raw)
		var f frame
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(raw, "data:")), &f))
		out = append(out, f)
	}
	return out
}

func TestChatStreamsFrames(t *testing.T) {
	model := &scriptedLLM{fragments: []string{"The rent ", "", "is $4,500."}, failAfter: -1}
	svc, repo, _ := newService(model)
	r := newChatRouter(svc)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, postChat(t, "g1", `{"message":"What is the rent?"}`))

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "text/event-stream", resp.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", resp.Header().Get("Cache-Control"))

	frames := readFrames(t, resp.Body.String())
	require.Len(t, frames, 4)
	assert.Equal(t, "conversation_id", frames[0].Type)
	require.NotEmpty(t, frames[0].ID)
	assert.Equal(t, frame{Type: "text", Content: "The rent "}, frames[1])
	assert.Equal(t, frame{Type: "text", Content: "is $4,500."}, frames[2])
	assert.Equal(t, "done", frames[3].Type)

	msgs, err := repo.ListMessages(t.Context(), frames[0].ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "The rent is $4,500.", msgs[1].Content)
}

func TestChatStreamErrorFrame(t *testing.T) {
	model := &scriptedLLM{fragments: []string{"partial"}, failAfter: 1, err: errors.New("upstream closed")}
	svc, repo, _ := newService(model)
	r := newChatRouter(svc)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, postChat(t, "g1", `{"message":"question"}`))

	frames := readFrames(t, resp.Body.String())
	require.Len(t, frames, 3)
	assert.Equal(t, "text", frames[1].Type)
	assert.Equal(t, frame{Type: "error", Message: "An error occurred"}, frames[2])

	msgs, err := repo.ListMessages(t.Context(), frames[0].ID)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	svc, _, _ := newService(&scriptedLLM{failAfter: -1})
	r := newChatRouter(svc)

	for _, body := range []string{`{"message":"   "}`, `{}`, `not json`} {
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, postChat(t, "g1", body))
		assert.Equal(t, http.StatusBadRequest, resp.Code, body)
		assert.Contains(t, resp.Body.String(), "Message is required")
	}
}

func TestChatContextFailureIsServerError(t *testing.T) {
	svc, _, builder := newService(&scriptedLLM{failAfter: -1})
	builder.err = errors.New("load lease terms: db down")
	r := newChatRouter(svc)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, postChat(t, "g1", `{"message":"question"}`))
	assert.Equal(t, http.StatusInternalServerError, resp.Code)
	assert.Contains(t, resp.Body.String(), "Failed to process chat")
}

func TestConversationRoutesAreOwnerScoped(t *testing.T) {
	model := &scriptedLLM{fragments: []string{"ok"}, failAfter: -1}
	svc, _, _ := newService(model)
	r := newChatRouter(svc)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, postChat(t, "owner", `{"message":"first"}`))
	convID := readFrames(t, resp.Body.String())[0].ID

	list := httptest.NewRequest(http.MethodGet, "/api/v1/conversations", nil)
	list.Header.Set("X-Guest-Id", "owner")
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, list)
	require.Equal(t, http.StatusOK, resp.Code)
	var listed struct {
		Conversations []ConversationSummary `json:"conversations"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &listed))
	require.Len(t, listed.Conversations, 1)
	assert.Equal(t, "first", listed.Conversations[0].Title)
	assert.Equal(t, 2, listed.Conversations[0].MessageCount)

	own := httptest.NewRequest(http.MethodGet, "/api/v1/conversations/"+convID+"/messages", nil)
	own.Header.Set("X-Guest-Id", "owner")
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, own)
	require.Equal(t, http.StatusOK, resp.Code)
	var transcript struct {
		Messages []Message `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &transcript))
	require.Len(t, transcript.Messages, 2)
	assert.Equal(t, RoleUser, transcript.Messages[0].Role)

	foreign := httptest.NewRequest(http.MethodGet, "/api/v1/conversations/"+convID+"/messages", nil)
	foreign.Header.Set("X-Guest-Id", "intruder")
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, foreign)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}
