package chat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"leaselens-backend/internal/shared/storage/db"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// CreateConversation inserts a new conversation.
func (r *PGRepo) CreateConversation(ctx context.Context, conv Conversation) error {
	const query = `
INSERT INTO conversations (id, user_id, title, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.DB.ExecContext(ctx, query, conv.ID, conv.UserID, conv.Title, conv.CreatedAt, conv.UpdatedAt); err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	return nil
}

// GetConversation returns a conversation owned by userID. Malformed IDs are
// reported as not found.
func (r *PGRepo) GetConversation(ctx context.Context, userID, conversationID string) (Conversation, error) {
	if _, err := uuid.Parse(conversationID); err != nil {
		return Conversation{}, ErrNotFound
	}
	const query = `
SELECT id, user_id, title, created_at, updated_at
FROM conversations
WHERE id = $1 AND user_id = $2`
	var conv Conversation
	err := r.DB.QueryRowContext(ctx, query, conversationID, userID).Scan(
		&conv.ID,
		&conv.UserID,
		&conv.Title,
		&conv.CreatedAt,
		&conv.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Conversation{}, ErrNotFound
		}
		return Conversation{}, err
	}
	return conv, nil
}

// ListConversations returns the user's conversations, most recently updated first.
func (r *PGRepo) ListConversations(ctx context.Context, userID string) ([]ConversationSummary, error) {
	const query = `
SELECT c.id, c.user_id, c.title, c.created_at, c.updated_at, COUNT(m.id) AS message_count
FROM conversations c
LEFT JOIN messages m ON m.conversation_id = c.id
WHERE c.user_id = $1
GROUP BY c.id
ORDER BY c.updated_at DESC`

	rows, err := r.DB.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	out := []ConversationSummary{}
	for rows.Next() {
		var s ConversationSummary
		if err := rows.Scan(&s.ID, &s.UserID, &s.Title, &s.CreatedAt, &s.UpdatedAt, &s.MessageCount); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// RecentMessages returns the newest limit messages in chronological order.
func (r *PGRepo) RecentMessages(ctx context.Context, conversationID string, limit int) ([]Message, error) {
	const query = `
SELECT id, conversation_id, role, content, created_at
FROM (
    SELECT id, conversation_id, role, content, created_at
    FROM messages
    WHERE conversation_id = $1
    ORDER BY created_at DESC
    LIMIT $2
) recent
ORDER BY created_at ASC`
	rows, err := r.DB.QueryContext(ctx, query, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent messages: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

// ListMessages returns every message in chronological order.
func (r *PGRepo) ListMessages(ctx context.Context, conversationID string) ([]Message, error) {
	const query = `
SELECT id, conversation_id, role, content, created_at
FROM messages
WHERE conversation_id = $1
ORDER BY created_at ASC`
	rows, err := r.DB.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

// AddMessage inserts a message and bumps the conversation in one transaction.
func (r *PGRepo) AddMessage(ctx context.Context, msg Message) error {
	return db.WithTx(ctx, r.DB, func(tx *sql.Tx) error {
		const insert = `
INSERT INTO messages (id, conversation_id, role, content, created_at)
VALUES ($1, $2, $3, $4, $5)`
		if _, err := tx.ExecContext(ctx, insert, msg.ID, msg.ConversationID, msg.Role, msg.Content, msg.CreatedAt); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
		const touch = `UPDATE conversations SET updated_at = $2 WHERE id = $1`
		res, err := tx.ExecContext(ctx, touch, msg.ConversationID, msg.CreatedAt)
		if err != nil {
			return fmt.Errorf("touch conversation: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func scanMessages(rows *sql.Rows) ([]Message, error) {
	out := []Message{}
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

var _ Repo = (*PGRepo)(nil)
