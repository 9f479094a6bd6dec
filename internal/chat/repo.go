package chat

import "context"

// Repo persists conversations and their messages. Reads are scoped to the
// owning user.
type Repo interface {
	CreateConversation(ctx context.Context, conv Conversation) error
	GetConversation(ctx context.Context, userID, conversationID string) (Conversation, error)
	ListConversations(ctx context.Context, userID string) ([]ConversationSummary, error)
	// RecentMessages returns up to limit of the newest messages, oldest first.
	RecentMessages(ctx context.Context, conversationID string, limit int) ([]Message, error)
	ListMessages(ctx context.Context, conversationID string) ([]Message, error)
	// AddMessage appends a message and bumps the conversation's updated_at.
	AddMessage(ctx context.Context, msg Message) error
}
