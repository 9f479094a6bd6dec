package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"leaselens-backend/internal/shared/telemetry"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	t.Cleanup(telemetry.SetOutput(&buf))
	return &buf
}

func lastLogLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var payload map[string]any
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &payload); err != nil {
		t.Fatalf("decode log json: %v", err)
	}
	return payload
}

func TestLoggingIncludesRequiredFields(t *testing.T) {
	logs := captureLogs(t)
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(RequestID(), Auth("dev"), Logging())
	router.GET("/api/v1/documents/:id", func(c *gin.Context) {
		c.Set(DocumentIDKey, "doc-1")
		c.Set(ConversationIDKey, "conv-1")
		c.Set(StatusTransitionKey, "processing->ready")
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents/doc-1", nil)
	req.Header.Set("X-Guest-Id", "guest1")
	router.ServeHTTP(httptest.NewRecorder(), req)

	payload := lastLogLine(t, logs)
	for _, key := range []string{"request_id", "user_id", "document_id", "conversation_id", "duration_ms", "status", "status_transition", "route"} {
		if _, ok := payload[key]; !ok {
			t.Fatalf("missing log field: %s", key)
		}
	}
	if payload["level"] != "info" || payload["msg"] != "request.complete" {
		t.Fatalf("unexpected level/msg: %v %v", payload["level"], payload["msg"])
	}
	if payload["user_id"] != "guest:guest1" || payload["is_guest"] != true {
		t.Fatalf("unexpected identity fields: %v %v", payload["user_id"], payload["is_guest"])
	}
	if payload["document_id"] != "doc-1" || payload["conversation_id"] != "conv-1" {
		t.Fatalf("unexpected ids: %v %v", payload["document_id"], payload["conversation_id"])
	}
	if payload["status_transition"] != "processing->ready" {
		t.Fatalf("unexpected status_transition: %v", payload["status_transition"])
	}
	if payload["route"] != "/api/v1/documents/:id" {
		t.Fatalf("unexpected route: %v", payload["route"])
	}
}

func TestLoggingUsesErrorLevelForServerErrors(t *testing.T) {
	logs := captureLogs(t)
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(Logging())
	router.GET("/api/v1/portfolio", func(c *gin.Context) {
		c.Status(http.StatusInternalServerError)
	})
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/portfolio", nil))

	if payload := lastLogLine(t, logs); payload["level"] != "error" {
		t.Fatalf("expected error level, got %v", payload["level"])
	}
}

func TestLoggingSkipsHealthChecks(t *testing.T) {
	logs := captureLogs(t)
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(Logging())
	router.GET("/api/v1/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	if logs.Len() != 0 {
		t.Fatalf("expected no request log, got %s", logs.String())
	}
}
