package leases

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a document has no stored terms.
var ErrNotFound = errors.New("lease terms not found")

// Repo persists LeaseTerms, at most one row per document.
type Repo interface {
	Create(ctx context.Context, terms LeaseTerms) error
	GetByDocument(ctx context.Context, documentID string) (LeaseTerms, error)
	ListByUser(ctx context.Context, userID string) ([]Entry, error)
	DeleteByDocument(ctx context.Context, documentID string) error
}

// DocumentInfo is the document metadata the memory repo needs for listings.
type DocumentInfo struct {
	UserID    string
	Filename  string
	PageCount *int
	CreatedAt time.Time
}

// DocumentLookup resolves a document id to its metadata.
type DocumentLookup func(ctx context.Context, documentID string) (DocumentInfo, bool)
