package chat

import (
	"context"
	"errors"
	"iter"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leaselens-backend/internal/llm"
)

type scriptedLLM struct {
	fragments []string
	failAfter int // yields an error after this many fragments when >= 0
	err       error

	gotSystem  string
	gotHistory []llm.Message
}

func (s *scriptedLLM) ExtractTerms(ctx context.Context, documentText string) (string, error) {
	return "", llm.ErrNotImplemented
}

func (s *scriptedLLM) StreamChat(ctx context.Context, system string, history []llm.Message) iter.Seq2[string, error] {
	s.gotSystem = system
	s.gotHistory = append([]llm.Message(nil), history...)
	return func(yield func(string, error) bool) {
		for i, f := range s.fragments {
			if s.err != nil && i == s.failAfter {
				yield("", s.err)
				return
			}
			if !yield(f, nil) {
				return
			}
		}
		if s.err != nil && s.failAfter >= len(s.fragments) {
			yield("", s.err)
		}
	}
}

type staticContext struct {
	text    string
	err     error
	queries []string
}

func (s *staticContext) BuildContext(ctx context.Context, query, userID string) (string, error) {
	s.queries = append(s.queries, query)
	return s.text, s.err
}

func newService(model *scriptedLLM) (*Service, *MemoryRepo, *staticContext) {
	repo := NewMemoryRepo()
	builder := &staticContext{text: "## Portfolio Summary\n\n"}
	return &Service{Repo: repo, Context: builder, LLM: model}, repo, builder
}

func drain(t *testing.T, turn *Turn) (string, error) {
	t.Helper()
	var b strings.Builder
	for fragment, err := range turn.Stream(context.Background()) {
		if err != nil {
			return b.String(), err
		}
		b.WriteString(fragment)
	}
	return b.String(), nil
}

func TestTitle(t *testing.T) {
	short := strings.Repeat("a", 60)
	assert.Equal(t, short, Title(short))

	long := strings.Repeat("b", 61)
	got := Title(long)
	assert.Equal(t, strings.Repeat("b", 57)+"...", got)
	assert.Len(t, got, 60)

	assert.Equal(t, strings.Repeat("é", 57)+"...", Title(strings.Repeat("é", 80)))
}

func TestTurnPersistsUserThenAssistant(t *testing.T) {
	model := &scriptedLLM{fragments: []string{"The rent ", "is $4,500."}, failAfter: -1}
	svc, repo, builder := newService(model)
	ctx := context.Background()

	turn, err := svc.StartTurn(ctx, "u1", "", "What is the rent at Harbor Way?")
	require.NoError(t, err)
	require.NotEmpty(t, turn.ConversationID)
	assert.Equal(t, []string{"What is the rent at Harbor Way?"}, builder.queries)

	msgs, err := repo.ListMessages(ctx, turn.ConversationID)
	require.NoError(t, err)
	require.Len(t, msgs, 1, "user message is stored before the reply")
	assert.Equal(t, RoleUser, msgs[0].Role)

	reply, err := drain(t, turn)
	require.NoError(t, err)
	assert.Equal(t, "The rent is $4,500.", reply)
	require.NoError(t, turn.Finish(ctx))

	msgs, err = repo.ListMessages(ctx, turn.ConversationID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, RoleAssistant, msgs[1].Role)
	assert.Equal(t, "The rent is $4,500.", msgs[1].Content)

	assert.True(t, strings.HasPrefix(model.gotSystem, "You are LeaseLens AI"))
	assert.Contains(t, model.gotSystem, "--- LEASE PORTFOLIO CONTEXT ---\n## Portfolio Summary")
	require.Len(t, model.gotHistory, 1)
	assert.Equal(t, llm.RoleUser, model.gotHistory[0].Role)

	convs, err := svc.Conversations(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, "What is the rent at Harbor Way?", convs[0].Title)
	assert.Equal(t, 2, convs[0].MessageCount)
}

func TestTurnResumesOwnConversation(t *testing.T) {
	model := &scriptedLLM{fragments: []string{"ok"}, failAfter: -1}
	svc, _, _ := newService(model)
	ctx := context.Background()

	first, err := svc.StartTurn(ctx, "u1", "", "first question")
	require.NoError(t, err)
	_, err = drain(t, first)
	require.NoError(t, err)
	require.NoError(t, first.Finish(ctx))

	second, err := svc.StartTurn(ctx, "u1", first.ConversationID, "second question")
	require.NoError(t, err)
	assert.Equal(t, first.ConversationID, second.ConversationID)

	require.Len(t, model.gotHistory, 3)
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: "first question"}, model.gotHistory[0])
	assert.Equal(t, llm.Message{Role: llm.RoleAssistant, Content: "ok"}, model.gotHistory[1])
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: "second question"}, model.gotHistory[2])
}

func TestTurnStartsNewConversationForForeignID(t *testing.T) {
	model := &scriptedLLM{failAfter: -1}
	svc, _, _ := newService(model)
	ctx := context.Background()

	owned, err := svc.StartTurn(ctx, "owner", "", "private question")
	require.NoError(t, err)

	other, err := svc.StartTurn(ctx, "intruder", owned.ConversationID, "let me in")
	require.NoError(t, err)
	assert.NotEqual(t, owned.ConversationID, other.ConversationID)

	_, _, err = svc.Messages(ctx, "intruder", owned.ConversationID)
	assert.ErrorIs(t, err, ErrNotFound)

	unknown, err := svc.StartTurn(ctx, "owner", "does-not-exist", "hello")
	require.NoError(t, err)
	assert.NotEqual(t, owned.ConversationID, unknown.ConversationID)
}

func TestTurnStreamFailureSkipsAssistantMessage(t *testing.T) {
	model := &scriptedLLM{fragments: []string{"partial ", "answer"}, failAfter: 1, err: errors.New("connection reset")}
	svc, repo, _ := newService(model)
	ctx := context.Background()

	turn, err := svc.StartTurn(ctx, "u1", "", "question")
	require.NoError(t, err)
	reply, err := drain(t, turn)
	require.Error(t, err)
	assert.Equal(t, "partial ", reply)
	assert.ErrorIs(t, turn.Finish(ctx), ErrIncomplete)

	msgs, err := repo.ListMessages(ctx, turn.ConversationID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, RoleUser, msgs[0].Role)
}

func TestTurnAbandonedStreamIsNotPersisted(t *testing.T) {
	model := &scriptedLLM{fragments: []string{"a", "b", "c"}, failAfter: -1}
	svc, repo, _ := newService(model)
	ctx := context.Background()

	turn, err := svc.StartTurn(ctx, "u1", "", "question")
	require.NoError(t, err)
	for fragment := range turn.Stream(ctx) {
		if fragment == "a" {
			break
		}
	}
	assert.ErrorIs(t, turn.Finish(ctx), ErrIncomplete)
	msgs, err := repo.ListMessages(ctx, turn.ConversationID)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestStartTurnContextFailure(t *testing.T) {
	model := &scriptedLLM{failAfter: -1}
	svc, _, builder := newService(model)
	builder.err = errors.New("load lease terms: db down")

	_, err := svc.StartTurn(context.Background(), "u1", "", "question")
	require.Error(t, err)
}

func TestStartTurnValidation(t *testing.T) {
	svc, _, _ := newService(&scriptedLLM{failAfter: -1})
	_, err := svc.StartTurn(context.Background(), "u1", "", "   ")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.StartTurn(context.Background(), "", "", "hello")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestRecentMessagesKeepsNewest(t *testing.T) {
	model := &scriptedLLM{fragments: []string{"ok"}, failAfter: -1}
	svc, repo, _ := newService(model)
	ctx := context.Background()

	turn, err := svc.StartTurn(ctx, "u1", "", "q0")
	require.NoError(t, err)
	_, _ = drain(t, turn)
	require.NoError(t, turn.Finish(ctx))
	for i := 1; i < 15; i++ {
		next, err := svc.StartTurn(ctx, "u1", turn.ConversationID, "q")
		require.NoError(t, err)
		_, _ = drain(t, next)
		require.NoError(t, next.Finish(ctx))
	}

	recent, err := repo.RecentMessages(ctx, turn.ConversationID, HistoryLimit)
	require.NoError(t, err)
	require.Len(t, recent, HistoryLimit)
	all, err := repo.ListMessages(ctx, turn.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, all[len(all)-HistoryLimit:], recent)
}
