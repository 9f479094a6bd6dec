package documents

import "context"

// DocumentsRepo defines persistence operations for documents and their chunks.
type DocumentsRepo interface {
	Create(ctx context.Context, doc Document) error
	GetByID(ctx context.Context, userID, documentID string) (Document, error)
	// Get loads a document without an ownership filter, for background work.
	Get(ctx context.Context, documentID string) (Document, error)
	ListByUser(ctx context.Context, userID string) ([]Listed, error)
	UpdateText(ctx context.Context, documentID, rawText string, pageCount int) error
	UpdateStatus(ctx context.Context, documentID, status string, errorMessage *string) error
	// ReplaceChunks stores the full chunk set of a document atomically.
	ReplaceChunks(ctx context.Context, documentID string, chunks []Chunk) error
	ListChunks(ctx context.Context, documentID string) ([]Chunk, error)
	// Delete removes a user's document with its chunks and terms atomically.
	Delete(ctx context.Context, userID, documentID string) error
}
