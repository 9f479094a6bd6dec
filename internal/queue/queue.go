// Package queue carries enrichment jobs from the upload path to the workers.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// MessageVersion is the payload version written by this build. Workers
// reject messages from a newer producer instead of guessing at fields.
const MessageVersion = 1

// ErrUnsupportedVersion is returned for payloads newer than MessageVersion.
var ErrUnsupportedVersion = errors.New("unsupported message version")

// Client publishes enrichment jobs.
type Client interface {
	Send(ctx context.Context, msg Message) error
}

// Message asks a worker to extract structured lease terms for one document.
type Message struct {
	DocumentID string `json:"documentId"`
	UserID     string `json:"userId"`
	RequestID  string `json:"requestId"`
	EnqueuedAt string `json:"enqueuedAt"`
	Version    int    `json:"version"`
}

// NewMessage stamps an enrichment job with the current version and time.
func NewMessage(documentID, userID, requestID string, now time.Time) Message {
	return Message{
		DocumentID: documentID,
		UserID:     userID,
		RequestID:  requestID,
		EnqueuedAt: now.UTC().Format(time.RFC3339),
		Version:    MessageVersion,
	}
}

// Age reports how long the message waited since it was enqueued. Zero when
// the timestamp is missing or unreadable.
func (m Message) Age(now time.Time) time.Duration {
	enqueued, err := time.Parse(time.RFC3339, strings.TrimSpace(m.EnqueuedAt))
	if err != nil {
		return 0
	}
	return max(now.Sub(enqueued), 0)
}

// EncodeMessage returns the JSON wire form of msg.
func EncodeMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeMessage parses a wire payload. Unknown fields are ignored; a version
// of zero is read as version 1.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	if msg.Version == 0 {
		msg.Version = 1
	}
	if msg.Version > MessageVersion {
		return Message{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, msg.Version)
	}
	return msg, nil
}
