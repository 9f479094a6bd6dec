package chat

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu       sync.RWMutex
	convs    map[string]Conversation
	messages map[string][]Message // conversationId -> messages in insert order
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		convs:    make(map[string]Conversation),
		messages: make(map[string][]Message),
	}
}

// CreateConversation stores a new conversation.
func (r *MemoryRepo) CreateConversation(ctx context.Context, conv Conversation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.convs[conv.ID] = conv
	return nil
}

// GetConversation returns a conversation owned by userID.
func (r *MemoryRepo) GetConversation(ctx context.Context, userID, conversationID string) (Conversation, error) {
	if err := ctx.Err(); err != nil {
		return Conversation{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	conv, ok := r.convs[conversationID]
	if !ok || conv.UserID != userID {
		return Conversation{}, ErrNotFound
	}
	return conv, nil
}

// ListConversations returns the user's conversations, most recently updated first.
func (r *MemoryRepo) ListConversations(ctx context.Context, userID string) ([]ConversationSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := []ConversationSummary{}
	for _, conv := range r.convs {
		if conv.UserID != userID {
			continue
		}
		out = append(out, ConversationSummary{Conversation: conv, MessageCount: len(r.messages[conv.ID])})
	}
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

// RecentMessages returns the newest limit messages in chronological order.
func (r *MemoryRepo) RecentMessages(ctx context.Context, conversationID string, limit int) ([]Message, error) {
	msgs, err := r.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

// ListMessages returns every message in chronological order.
func (r *MemoryRepo) ListMessages(ctx context.Context, conversationID string) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Message, len(r.messages[conversationID]))
	copy(out, r.messages[conversationID])
	return out, nil
}

// AddMessage appends a message to an existing conversation.
func (r *MemoryRepo) AddMessage(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	conv, ok := r.convs[msg.ConversationID]
	if !ok {
		return ErrNotFound
	}
	r.messages[msg.ConversationID] = append(r.messages[msg.ConversationID], msg)
	if msg.CreatedAt.After(conv.UpdatedAt) {
		conv.UpdatedAt = msg.CreatedAt
		r.convs[conv.ID] = conv
	}
	return nil
}

var _ Repo = (*MemoryRepo)(nil)

// ClaimGuest moves every conversation owned by guestUserID to authedUserID.
func (r *MemoryRepo) ClaimGuest(ctx context.Context, guestUserID, authedUserID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for id, conv := range r.convs {
		if conv.UserID != guestUserID {
			continue
		}
		conv.UserID = authedUserID
		r.convs[id] = conv
		count++
	}
	return count, nil
}
