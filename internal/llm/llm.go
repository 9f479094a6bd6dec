package llm

import (
	"context"
	"errors"
	"iter"
)

// Message roles understood by every backend.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a chat history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client abstracts LLM providers for lease-term extraction and chat.
type Client interface {
	// ExtractTerms returns the raw model output for the extraction prompt
	// applied to documentText. Callers parse it with leases.ParseTerms.
	ExtractTerms(ctx context.Context, documentText string) (string, error)
	// StreamChat yields reply fragments in order. A non-nil error ends the
	// sequence.
	StreamChat(ctx context.Context, system string, history []Message) iter.Seq2[string, error]
}

// ErrNotImplemented is returned by the placeholder client.
var ErrNotImplemented = errors.New("LLM not implemented")

// PlaceholderClient is used when no provider is configured.
type PlaceholderClient struct{}

// ExtractTerms returns ErrNotImplemented.
func (PlaceholderClient) ExtractTerms(ctx context.Context, documentText string) (string, error) {
	_ = ctx
	_ = documentText
	return "", ErrNotImplemented
}

// StreamChat yields ErrNotImplemented.
func (PlaceholderClient) StreamChat(ctx context.Context, system string, history []Message) iter.Seq2[string, error] {
	return ErrorStream(ErrNotImplemented)
}

// ErrorStream returns a sequence that yields only err.
func ErrorStream(err error) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		yield("", err)
	}
}

var _ Client = PlaceholderClient{}
