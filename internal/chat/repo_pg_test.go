package chat

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

const convID = "6f1c2b8e-4d0a-4d7e-9a57-0c1f6a7a9a10"

func TestPGRepoGetConversationScopesToUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1 AND user_id = $2")).
		WithArgs(convID, "u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "title", "created_at", "updated_at"}).
			AddRow(convID, "u1", "rent question", now, now))

	conv, err := repo.GetConversation(context.Background(), "u1", convID)
	if err != nil {
		t.Fatalf("GetConversation: %v", err)
	}
	if conv.Title != "rent question" || conv.UserID != "u1" {
		t.Fatalf("unexpected conversation: %+v", conv)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoGetConversationNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	mock.ExpectQuery("FROM conversations").
		WithArgs(convID, "intruder").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "title", "created_at", "updated_at"}))

	if _, err := repo.GetConversation(context.Background(), "intruder", convID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := repo.GetConversation(context.Background(), "u1", "not-a-uuid"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for malformed id, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoAddMessageTouchesConversation(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	msg := Message{ID: "m1", ConversationID: convID, Role: RoleUser, Content: "hello", CreatedAt: time.Now().UTC()}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO messages").
		WithArgs(msg.ID, msg.ConversationID, msg.Role, msg.Content, msg.CreatedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE conversations SET updated_at = $2 WHERE id = $1")).
		WithArgs(msg.ConversationID, msg.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.AddMessage(context.Background(), msg); err != nil {
		t.Fatalf("AddMessage: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoAddMessageRollsBackForMissingConversation(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	msg := Message{ID: "m1", ConversationID: convID, Role: RoleAssistant, Content: "hi", CreatedAt: time.Now().UTC()}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO messages").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE conversations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	if err := repo.AddMessage(context.Background(), msg); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoRecentMessagesReturnsChronological(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("LIMIT \\$2").
		WithArgs(convID, HistoryLimit).
		WillReturnRows(sqlmock.NewRows([]string{"id", "conversation_id", "role", "content", "created_at"}).
			AddRow("m1", convID, RoleUser, "q", t0).
			AddRow("m2", convID, RoleAssistant, "a", t0.Add(time.Second)))

	msgs, err := repo.RecentMessages(context.Background(), convID, HistoryLimit)
	if err != nil {
		t.Fatalf("RecentMessages: %v", err)
	}
	if len(msgs) != 2 || msgs[0].ID != "m1" || msgs[1].Role != RoleAssistant {
		t.Fatalf("unexpected messages: %+v", msgs)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}
