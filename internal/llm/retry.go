package llm

import (
	"context"
	"errors"
	"iter"
	"net"
	"strings"
	"time"

	"leaselens-backend/internal/shared/telemetry"
)

const retryBaseDelay = 300 * time.Millisecond

// RetryingClient retries a failed ExtractTerms call once when the failure
// looks transient. Chat streams are passed through unchanged.
type RetryingClient struct {
	Base  Client
	Delay time.Duration
}

// WithRetry wraps base in a RetryingClient.
func WithRetry(base Client) Client {
	if base == nil {
		return nil
	}
	return RetryingClient{Base: base, Delay: retryBaseDelay}
}

// ExtractTerms calls the base client, retrying once on transient errors.
func (r RetryingClient) ExtractTerms(ctx context.Context, documentText string) (string, error) {
	out, err := r.Base.ExtractTerms(ctx, documentText)
	if err == nil || !ShouldRetry(err) {
		return out, err
	}

	telemetry.Info("llm.retry", map[string]any{
		"attempt": 1,
		"error":   err.Error(),
	})
	select {
	case <-time.After(r.Delay):
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return r.Base.ExtractTerms(ctx, documentText)
}

// StreamChat delegates to the base client.
func (r RetryingClient) StreamChat(ctx context.Context, system string, history []Message) iter.Seq2[string, error] {
	return r.Base.StreamChat(ctx, system, history)
}

// ShouldRetry reports whether err looks like a transient provider failure.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotImplemented) || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "status code: 5") || strings.Contains(msg, "http status 5") || strings.Contains(msg, "server_error") {
		return true
	}
	if strings.Contains(msg, "status code: 429") || strings.Contains(msg, "rate limit") {
		return true
	}
	if strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "tls handshake timeout") ||
		strings.Contains(msg, "unexpected eof") {
		return true
	}
	return false
}

var _ Client = RetryingClient{}
