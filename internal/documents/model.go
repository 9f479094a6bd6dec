package documents

import (
	"time"

	"leaselens-backend/internal/leases"
)

// Processing states of a document.
const (
	StatusProcessing = "processing"
	StatusReady      = "ready"
	StatusError      = "error"
)

// Document represents an uploaded lease owned by a user.
type Document struct {
	ID           string
	UserID       string
	FileName     string
	Status       string
	RawText      *string
	PageCount    *int
	ErrorMessage *string
	StorageKey   string
	SizeBytes    int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Chunk is a stored slice of a document's normalized text.
type Chunk struct {
	ID         string
	DocumentID string
	ChunkIndex int
	Content    string
	Section    *string
	CreatedAt  time.Time
}

// Listed is a document as shown in listings.
type Listed struct {
	Document
	ChunkCount int
	Terms      *leases.LeaseTerms
}

// Detail is a document with its terms and chunks.
type Detail struct {
	Document
	Terms  *leases.LeaseTerms
	Chunks []Chunk
}

// UploadResult is the outcome of one file in an upload request.
type UploadResult struct {
	Filename string `json:"filename"`
	ID       string `json:"id,omitempty"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
	Note     string `json:"note,omitempty"`
}
