package documents

import (
	"context"
	"sort"
	"sync"
	"time"

	"leaselens-backend/internal/leases"
	"leaselens-backend/internal/search"
)

// MemoryRepo is an in-memory implementation of DocumentsRepo. It also serves
// as the search corpus and lease ownership lookup when no database is set.
type MemoryRepo struct {
	mu     sync.RWMutex
	docs   map[string]Document
	chunks map[string][]Chunk // documentId -> chunks in index order
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		docs:   make(map[string]Document),
		chunks: make(map[string][]Chunk),
	}
}

// Create stores a new document.
func (r *MemoryRepo) Create(ctx context.Context, doc Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if doc.ID == "" || doc.UserID == "" {
		return ErrInvalidInput
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[doc.ID] = doc
	return nil
}

// GetByID returns a document by ID for a user.
func (r *MemoryRepo) GetByID(ctx context.Context, userID, documentID string) (Document, error) {
	doc, err := r.Get(ctx, documentID)
	if err != nil {
		return Document{}, err
	}
	if doc.UserID != userID {
		return Document{}, ErrNotFound
	}
	return doc, nil
}

// Get returns a document by ID regardless of owner.
func (r *MemoryRepo) Get(ctx context.Context, documentID string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.docs[documentID]
	if !ok {
		return Document{}, ErrNotFound
	}
	return doc, nil
}

// ListByUser returns documents for a user, newest first, with chunk counts.
func (r *MemoryRepo) ListByUser(ctx context.Context, userID string) ([]Listed, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := []Listed{}
	for _, doc := range r.docs {
		if doc.UserID != userID {
			continue
		}
		doc.RawText = nil
		out = append(out, Listed{Document: doc, ChunkCount: len(r.chunks[doc.ID])})
	}
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// UpdateText stores extracted text and page count.
func (r *MemoryRepo) UpdateText(ctx context.Context, documentID, rawText string, pageCount int) error {
	return r.update(ctx, documentID, func(doc *Document) {
		doc.RawText = &rawText
		doc.PageCount = &pageCount
	})
}

// UpdateStatus sets the processing status and error message.
func (r *MemoryRepo) UpdateStatus(ctx context.Context, documentID, status string, errorMessage *string) error {
	return r.update(ctx, documentID, func(doc *Document) {
		doc.Status = status
		doc.ErrorMessage = errorMessage
	})
}

func (r *MemoryRepo) update(ctx context.Context, documentID string, fn func(doc *Document)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[documentID]
	if !ok {
		return ErrNotFound
	}
	fn(&doc)
	doc.UpdatedAt = time.Now().UTC()
	r.docs[documentID] = doc
	return nil
}

// ReplaceChunks swaps the chunk set of a document under one lock.
func (r *MemoryRepo) ReplaceChunks(ctx context.Context, documentID string, chunks []Chunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[documentID]; !ok {
		return ErrNotFound
	}
	stored := make([]Chunk, len(chunks))
	copy(stored, chunks)
	sort.SliceStable(stored, func(i, j int) bool { return stored[i].ChunkIndex < stored[j].ChunkIndex })
	r.chunks[documentID] = stored
	return nil
}

// ListChunks returns a document's chunks in index order.
func (r *MemoryRepo) ListChunks(ctx context.Context, documentID string) ([]Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Chunk, len(r.chunks[documentID]))
	copy(out, r.chunks[documentID])
	return out, nil
}

// Delete removes a document and its chunks if owned by userID.
func (r *MemoryRepo) Delete(ctx context.Context, userID, documentID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[documentID]
	if !ok || doc.UserID != userID {
		return ErrNotFound
	}
	delete(r.chunks, documentID)
	delete(r.docs, documentID)
	return nil
}

// UserChunks returns every chunk owned by userID with its document filename.
func (r *MemoryRepo) UserChunks(ctx context.Context, userID string) ([]search.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []search.Result
	for id, doc := range r.docs {
		if doc.UserID != userID {
			continue
		}
		for _, ch := range r.chunks[id] {
			out = append(out, search.Result{
				ChunkID:    ch.ID,
				DocumentID: id,
				Filename:   doc.FileName,
				Content:    ch.Content,
				Section:    ch.Section,
				ChunkIndex: ch.ChunkIndex,
			})
		}
	}
	return out, nil
}

// ExistingDocuments reports which of documentIDs userID still owns.
func (r *MemoryRepo) ExistingDocuments(ctx context.Context, userID string, documentIDs []string) (map[string]bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]bool, len(documentIDs))
	for _, id := range documentIDs {
		if doc, ok := r.docs[id]; ok && doc.UserID == userID {
			out[id] = true
		}
	}
	return out, nil
}

// LeaseDocument resolves document metadata for the in-memory lease repo.
func (r *MemoryRepo) LeaseDocument(ctx context.Context, documentID string) (leases.DocumentInfo, bool) {
	doc, err := r.Get(ctx, documentID)
	if err != nil {
		return leases.DocumentInfo{}, false
	}
	return leases.DocumentInfo{
		UserID:    doc.UserID,
		Filename:  doc.FileName,
		PageCount: doc.PageCount,
		CreatedAt: doc.CreatedAt,
	}, true
}

var (
	_ DocumentsRepo = (*MemoryRepo)(nil)
	_ search.Corpus = (*MemoryRepo)(nil)
)

// ClaimGuest moves every document owned by guestUserID to authedUserID.
func (r *MemoryRepo) ClaimGuest(ctx context.Context, guestUserID, authedUserID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for id, doc := range r.docs {
		if doc.UserID != guestUserID {
			continue
		}
		doc.UserID = authedUserID
		doc.UpdatedAt = time.Now().UTC()
		r.docs[id] = doc
		count++
	}
	return count, nil
}

var _ search.DocumentSet = (*MemoryRepo)(nil)
