package leases

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo stores lease terms in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu         sync.RWMutex
	byDocument map[string]LeaseTerms
	lookup     DocumentLookup
}

// NewMemoryRepo constructs a MemoryRepo. lookup supplies ownership and
// filenames for ListByUser.
func NewMemoryRepo(lookup DocumentLookup) *MemoryRepo {
	return &MemoryRepo{
		byDocument: make(map[string]LeaseTerms),
		lookup:     lookup,
	}
}

// Create stores terms, replacing any previous row for the same document.
func (r *MemoryRepo) Create(ctx context.Context, terms LeaseTerms) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byDocument[terms.DocumentID] = terms
	return nil
}

// GetByDocument returns the terms for a document.
func (r *MemoryRepo) GetByDocument(ctx context.Context, documentID string) (LeaseTerms, error) {
	if err := ctx.Err(); err != nil {
		return LeaseTerms{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	terms, ok := r.byDocument[documentID]
	if !ok {
		return LeaseTerms{}, ErrNotFound
	}
	return terms, nil
}

// ListByUser returns the user's lease-bearing documents, newest document first.
func (r *MemoryRepo) ListByUser(ctx context.Context, userID string) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	all := make([]LeaseTerms, 0, len(r.byDocument))
	for _, terms := range r.byDocument {
		all = append(all, terms)
	}
	r.mu.RUnlock()

	type row struct {
		entry Entry
		info  DocumentInfo
	}
	var rows []row
	for _, terms := range all {
		if r.lookup == nil {
			break
		}
		info, ok := r.lookup(ctx, terms.DocumentID)
		if !ok || info.UserID != userID {
			continue
		}
		rows = append(rows, row{
			entry: Entry{
				DocumentID: terms.DocumentID,
				Filename:   info.Filename,
				PageCount:  info.PageCount,
				Terms:      terms,
			},
			info: info,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].info.CreatedAt.Equal(rows[j].info.CreatedAt) {
			return rows[i].entry.DocumentID < rows[j].entry.DocumentID
		}
		return rows[i].info.CreatedAt.After(rows[j].info.CreatedAt)
	})

	out := make([]Entry, len(rows))
	for i := range rows {
		out[i] = rows[i].entry
	}
	return out, nil
}

// DeleteByDocument removes the terms for a document if present.
func (r *MemoryRepo) DeleteByDocument(ctx context.Context, documentID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byDocument, documentID)
	return nil
}

var _ Repo = (*MemoryRepo)(nil)
