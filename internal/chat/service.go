package chat

import (
	"context"
	"errors"
	"iter"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"leaselens-backend/internal/llm"
	"leaselens-backend/internal/shared/metrics"
	"leaselens-backend/internal/shared/telemetry"
)

const (
	// HistoryLimit is how many prior messages are replayed to the model.
	HistoryLimit = 20
	maxTitleLen  = 60
)

// ErrIncomplete is returned by Finish when the reply stream did not complete.
var ErrIncomplete = errors.New("reply stream incomplete")

// ContextBuilder produces the grounding context for a chat turn.
type ContextBuilder interface {
	BuildContext(ctx context.Context, query, userID string) (string, error)
}

// Service runs chat turns over a user's conversations.
type Service struct {
	Repo    Repo
	Context ContextBuilder
	LLM     llm.Client
}

// Title derives a conversation title from its first message.
func Title(message string) string {
	if utf8.RuneCountInString(message) <= maxTitleLen {
		return message
	}
	return string([]rune(message)[:maxTitleLen-3]) + "..."
}

// Turn is one in-flight exchange. Stream must be drained before Finish.
type Turn struct {
	ConversationID string

	svc       *Service
	userID    string
	system    string
	history   []llm.Message
	startedAt time.Time
	reply     strings.Builder
	completed bool
}

// StartTurn resolves or creates the conversation, persists the user message
// and assembles context. An unknown or foreign conversationID starts a new
// conversation.
func (s *Service) StartTurn(ctx context.Context, userID, conversationID, message string) (*Turn, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(message) == "" {
		return nil, ErrInvalidInput
	}

	conv, found, err := s.resolveConversation(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}
	if !found {
		now := time.Now().UTC()
		conv = Conversation{
			ID:        uuid.NewString(),
			UserID:    userID,
			Title:     Title(message),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.Repo.CreateConversation(ctx, conv); err != nil {
			return nil, err
		}
	}

	var prior []Message
	if found {
		prior, err = s.Repo.RecentMessages(ctx, conv.ID, HistoryLimit)
		if err != nil {
			return nil, err
		}
	}

	if err := s.Repo.AddMessage(ctx, Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		Role:           RoleUser,
		Content:        message,
		CreatedAt:      time.Now().UTC(),
	}); err != nil {
		return nil, err
	}

	portfolio, err := s.Context.BuildContext(ctx, message, userID)
	if err != nil {
		return nil, err
	}

	history := make([]llm.Message, 0, len(prior)+1)
	for _, m := range prior {
		history = append(history, llm.Message{Role: m.Role, Content: m.Content})
	}
	history = append(history, llm.Message{Role: llm.RoleUser, Content: message})

	metrics.IncChatTurns()
	return &Turn{
		ConversationID: conv.ID,
		svc:            s,
		userID:         userID,
		system:         llm.ChatSystemPrompt(portfolio),
		history:        history,
		startedAt:      time.Now(),
	}, nil
}

func (s *Service) resolveConversation(ctx context.Context, userID, conversationID string) (Conversation, bool, error) {
	if strings.TrimSpace(conversationID) == "" {
		return Conversation{}, false, nil
	}
	conv, err := s.Repo.GetConversation(ctx, userID, conversationID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Conversation{}, false, nil
		}
		return Conversation{}, false, err
	}
	return conv, true, nil
}

// Stream yields reply fragments from the model and records them for Finish.
// Stopping iteration early abandons the model request through ctx.
func (t *Turn) Stream(ctx context.Context) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for fragment, err := range t.svc.LLM.StreamChat(ctx, t.system, t.history) {
			if err != nil {
				yield("", err)
				return
			}
			t.reply.WriteString(fragment)
			if !yield(fragment, nil) {
				return
			}
		}
		t.completed = true
	}
}

// Reply returns the text streamed so far.
func (t *Turn) Reply() string {
	return t.reply.String()
}

// Finish persists the completed reply as the assistant message.
func (t *Turn) Finish(ctx context.Context) error {
	if !t.completed {
		return ErrIncomplete
	}
	err := t.svc.Repo.AddMessage(ctx, Message{
		ID:             uuid.NewString(),
		ConversationID: t.ConversationID,
		Role:           RoleAssistant,
		Content:        t.reply.String(),
		CreatedAt:      time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	durationMs := float64(time.Since(t.startedAt).Microseconds()) / 1000.0
	metrics.ObserveChatDurationMs(durationMs)
	telemetry.Info("chat.reply_saved", map[string]any{
		"user_id":         t.userID,
		"conversation_id": t.ConversationID,
		"reply_chars":     utf8.RuneCountInString(t.reply.String()),
		"duration_ms":     durationMs,
	})
	return nil
}

// Conversations lists the user's conversations.
func (s *Service) Conversations(ctx context.Context, userID string) ([]ConversationSummary, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidInput
	}
	return s.Repo.ListConversations(ctx, userID)
}

// Messages returns the transcript of one of the user's conversations.
func (s *Service) Messages(ctx context.Context, userID, conversationID string) (Conversation, []Message, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(conversationID) == "" {
		return Conversation{}, nil, ErrInvalidInput
	}
	conv, err := s.Repo.GetConversation(ctx, userID, conversationID)
	if err != nil {
		return Conversation{}, nil, err
	}
	msgs, err := s.Repo.ListMessages(ctx, conv.ID)
	if err != nil {
		return Conversation{}, nil, err
	}
	return conv, msgs, nil
}
