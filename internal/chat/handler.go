package chat

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"

	"leaselens-backend/internal/shared/metrics"
	"leaselens-backend/internal/shared/server/middleware"
	"leaselens-backend/internal/shared/server/respond"
	"leaselens-backend/internal/shared/telemetry"
)

// Handler wires chat HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches chat routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/chat", h.chat)
	rg.GET("/conversations", h.conversations)
	rg.GET("/conversations/:id/messages", h.messages)
}

type chatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversationId"`
}

// frame is the payload of one server-sent event.
type frame struct {
	Type    string `json:"type"`
	ID      string `json:"id,omitempty"`
	Content string `json:"content,omitempty"`
	Message string `json:"message,omitempty"`
}

func (h *Handler) chat(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Message) == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "Message is required", nil)
		return
	}

	ctx := c.Request.Context()
	turn, err := h.Svc.StartTurn(ctx, userID, strings.TrimSpace(req.ConversationID), req.Message)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", "Message is required", nil)
		default:
			telemetry.Error("chat.start_failed", map[string]any{
				"request_id": middleware.RequestIDFromContext(c),
				"user_id":    userID,
				"error":      err.Error(),
			})
			respond.Error(c, http.StatusInternalServerError, "internal_error", "Failed to process chat", nil)
		}
		return
	}
	c.Set(middleware.ConversationIDKey, turn.ConversationID)

	header := c.Writer.Header()
	header.Set("Content-Type", sse.ContentType)
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	c.Status(http.StatusOK)

	writeFrame(c, frame{Type: "conversation_id", ID: turn.ConversationID})

	var streamErr error
	for fragment, err := range turn.Stream(ctx) {
		if err != nil {
			streamErr = err
			break
		}
		if fragment == "" {
			continue
		}
		writeFrame(c, frame{Type: "text", Content: fragment})
	}
	if streamErr == nil {
		streamErr = turn.Finish(ctx)
	}

	if streamErr != nil {
		metrics.IncChatStreamFailed()
		telemetry.Error("chat.stream_failed", map[string]any{
			"request_id":      middleware.RequestIDFromContext(c),
			"user_id":         userID,
			"conversation_id": turn.ConversationID,
			"streamed_chars":  len(turn.Reply()),
			"error":           streamErr.Error(),
		})
		writeFrame(c, frame{Type: "error", Message: "An error occurred"})
		return
	}
	writeFrame(c, frame{Type: "done"})
}

func writeFrame(c *gin.Context, f frame) {
	if err := sse.Encode(c.Writer, sse.Event{Data: f}); err != nil {
		return
	}
	c.Writer.Flush()
}

func (h *Handler) conversations(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	convs, err := h.Svc.Conversations(c.Request.Context(), userID)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "Failed to fetch conversations", nil)
		}
		return
	}
	respond.JSON(c, http.StatusOK, gin.H{"conversations": convs})
}

func (h *Handler) messages(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	conv, msgs, err := h.Svc.Messages(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "Conversation not found", nil)
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "Failed to fetch messages", nil)
		}
		return
	}
	respond.JSON(c, http.StatusOK, gin.H{"conversation": conv, "messages": msgs})
}
