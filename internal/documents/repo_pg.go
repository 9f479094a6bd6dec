package documents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"leaselens-backend/internal/search"
	"leaselens-backend/internal/shared/storage/db"
)

// PGRepo implements DocumentsRepo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const documentColumns = `id, user_id, file_name, status, raw_text, page_count, error_message, storage_key, size_bytes, created_at, updated_at`

// Create inserts a new document.
func (r *PGRepo) Create(ctx context.Context, doc Document) error {
	const query = `
INSERT INTO documents (
    id,
    user_id,
    file_name,
    status,
    storage_key,
    size_bytes,
    created_at,
    updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	status := doc.Status
	if status == "" {
		status = StatusProcessing
	}
	var storageKey sql.NullString
	if doc.StorageKey != "" {
		storageKey = sql.NullString{String: doc.StorageKey, Valid: true}
	}
	updatedAt := doc.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = doc.CreatedAt
	}

	_, err := r.DB.ExecContext(
		ctx,
		query,
		doc.ID,
		doc.UserID,
		doc.FileName,
		status,
		storageKey,
		doc.SizeBytes,
		doc.CreatedAt,
		updatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

// GetByID fetches a document by ID for a user.
func (r *PGRepo) GetByID(ctx context.Context, userID, documentID string) (Document, error) {
	query := `SELECT ` + documentColumns + `
FROM documents
WHERE id = $1 AND user_id = $2`
	return scanDocument(r.DB.QueryRowContext(ctx, query, documentID, userID))
}

// Get fetches a document by ID without an ownership filter.
func (r *PGRepo) Get(ctx context.Context, documentID string) (Document, error) {
	query := `SELECT ` + documentColumns + `
FROM documents
WHERE id = $1`
	return scanDocument(r.DB.QueryRowContext(ctx, query, documentID))
}

// ListByUser lists documents newest-first with their chunk counts. Raw text
// is not loaded.
func (r *PGRepo) ListByUser(ctx context.Context, userID string) ([]Listed, error) {
	const query = `
SELECT d.id, d.user_id, d.file_name, d.status, NULL::text, d.page_count, d.error_message, d.storage_key, d.size_bytes, d.created_at, d.updated_at,
       COUNT(dc.id) AS chunk_count
FROM documents d
LEFT JOIN document_chunks dc ON dc.document_id = d.id
WHERE d.user_id = $1
GROUP BY d.id
ORDER BY d.created_at DESC`

	rows, err := r.DB.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	out := []Listed{}
	for rows.Next() {
		var chunkCount int
		doc, err := scanDocument(rows, &chunkCount)
		if err != nil {
			return nil, err
		}
		out = append(out, Listed{Document: doc, ChunkCount: chunkCount})
	}
	return out, rows.Err()
}

// UpdateText stores extracted text and page count.
func (r *PGRepo) UpdateText(ctx context.Context, documentID, rawText string, pageCount int) error {
	const query = `
UPDATE documents
SET raw_text = $2, page_count = $3, updated_at = now()
WHERE id = $1`
	res, err := r.DB.ExecContext(ctx, query, documentID, rawText, pageCount)
	if err != nil {
		return fmt.Errorf("update document text: %w", err)
	}
	return requireAffected(res)
}

// UpdateStatus sets the processing status and error message.
func (r *PGRepo) UpdateStatus(ctx context.Context, documentID, status string, errorMessage *string) error {
	const query = `
UPDATE documents
SET status = $2, error_message = $3, updated_at = now()
WHERE id = $1`
	var msg sql.NullString
	if errorMessage != nil {
		msg = sql.NullString{String: *errorMessage, Valid: true}
	}
	res, err := r.DB.ExecContext(ctx, query, documentID, status, msg)
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	return requireAffected(res)
}

// ReplaceChunks deletes existing chunks and inserts the new set in one transaction.
func (r *PGRepo) ReplaceChunks(ctx context.Context, documentID string, chunks []Chunk) error {
	const insert = `
INSERT INTO document_chunks (id, document_id, chunk_index, content, section, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`

	return db.WithTx(ctx, r.DB, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM document_chunks WHERE document_id = $1`, documentID); err != nil {
			return fmt.Errorf("clear chunks: %w", err)
		}
		for _, ch := range chunks {
			var section sql.NullString
			if ch.Section != nil {
				section = sql.NullString{String: *ch.Section, Valid: true}
			}
			if _, err := tx.ExecContext(ctx, insert, ch.ID, documentID, ch.ChunkIndex, ch.Content, section, ch.CreatedAt); err != nil {
				return fmt.Errorf("insert chunk %d: %w", ch.ChunkIndex, err)
			}
		}
		return nil
	})
}

// ListChunks returns a document's chunks in index order.
func (r *PGRepo) ListChunks(ctx context.Context, documentID string) ([]Chunk, error) {
	const query = `
SELECT id, document_id, chunk_index, content, section, created_at
FROM document_chunks
WHERE document_id = $1
ORDER BY chunk_index ASC`

	rows, err := r.DB.QueryContext(ctx, query, documentID)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	defer rows.Close()

	out := []Chunk{}
	for rows.Next() {
		var ch Chunk
		var section sql.NullString
		if err := rows.Scan(&ch.ID, &ch.DocumentID, &ch.ChunkIndex, &ch.Content, &section, &ch.CreatedAt); err != nil {
			return nil, err
		}
		if section.Valid {
			label := section.String
			ch.Section = &label
		}
		out = append(out, ch)
	}
	return out, rows.Err()
}

// Delete locks the document row, checks ownership, and removes chunks, terms
// and the document in one transaction.
func (r *PGRepo) Delete(ctx context.Context, userID, documentID string) error {
	return db.WithTx(ctx, r.DB, func(tx *sql.Tx) error {
		var owner string
		err := tx.QueryRowContext(ctx, `SELECT user_id FROM documents WHERE id = $1 FOR UPDATE`, documentID).Scan(&owner)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("lock document: %w", err)
		}
		if owner != userID {
			return ErrNotFound
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM document_chunks WHERE document_id = $1`, documentID); err != nil {
			return fmt.Errorf("delete chunks: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM lease_terms WHERE document_id = $1`, documentID); err != nil {
			return fmt.Errorf("delete lease terms: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, documentID); err != nil {
			return fmt.Errorf("delete document: %w", err)
		}
		return nil
	})
}

// ExistingDocuments reports which of documentIDs userID still owns.
func (r *PGRepo) ExistingDocuments(ctx context.Context, userID string, documentIDs []string) (map[string]bool, error) {
	out := make(map[string]bool, len(documentIDs))
	if len(documentIDs) == 0 {
		return out, nil
	}
	args := make([]any, 0, len(documentIDs)+1)
	args = append(args, userID)
	placeholders := make([]string, len(documentIDs))
	for i, id := range documentIDs {
		args = append(args, id)
		placeholders[i] = fmt.Sprintf("$%d", i+2)
	}
	query := `SELECT id FROM documents WHERE user_id = $1 AND id IN (` + strings.Join(placeholders, ", ") + `)`

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("check documents: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = true
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner, extra ...any) (Document, error) {
	var doc Document
	var (
		rawText      sql.NullString
		pageCount    sql.NullInt64
		errorMessage sql.NullString
		storageKey   sql.NullString
	)
	dest := []any{
		&doc.ID,
		&doc.UserID,
		&doc.FileName,
		&doc.Status,
		&rawText,
		&pageCount,
		&errorMessage,
		&storageKey,
		&doc.SizeBytes,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	if rawText.Valid {
		doc.RawText = &rawText.String
	}
	if pageCount.Valid {
		n := int(pageCount.Int64)
		doc.PageCount = &n
	}
	if errorMessage.Valid {
		doc.ErrorMessage = &errorMessage.String
	}
	if storageKey.Valid {
		doc.StorageKey = storageKey.String
	}
	return doc, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

var (
	_ DocumentsRepo      = (*PGRepo)(nil)
	_ search.DocumentSet = (*PGRepo)(nil)
)
