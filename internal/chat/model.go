package chat

import "time"

// Roles persisted on messages.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Conversation is a user's linear chat thread.
type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"-"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ConversationSummary is a conversation with its message count.
type ConversationSummary struct {
	Conversation
	MessageCount int `json:"messageCount"`
}

// Message is one immutable turn of a conversation.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"createdAt"`
}
