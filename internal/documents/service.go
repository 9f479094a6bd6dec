package documents

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"leaselens-backend/internal/chunking"
	"leaselens-backend/internal/extract"
	"leaselens-backend/internal/leases"
	"leaselens-backend/internal/llm"
	"leaselens-backend/internal/queue"
	"leaselens-backend/internal/search"
	"leaselens-backend/internal/shared/metrics"
	"leaselens-backend/internal/shared/storage/object"
	"leaselens-backend/internal/shared/telemetry"
)

const (
	// MinTextLength is the shortest trimmed text accepted as a lease.
	MinTextLength = 50
	// DefaultEnrichTimeout bounds inline term extraction.
	DefaultEnrichTimeout = 90 * time.Second
	// DefaultConcurrency bounds parallel files per upload request.
	DefaultConcurrency = 4
)

// Upload is one file of a multipart upload.
type Upload struct {
	Filename string
	Open     func() (io.ReadCloser, error)
}

// Service runs the ingestion pipeline and document CRUD.
type Service struct {
	Repo  DocumentsRepo
	Terms leases.Repo
	Store object.ObjectStore
	LLM   llm.Client
	// Index mirrors chunks into an external search backend. Nil means none.
	Index search.Indexer
	// Queue hands enrichment to the worker. Nil means enrich inline.
	Queue         queue.Client
	EnrichTimeout time.Duration
	Concurrency   int
	// Extract defaults to extract.PDF.
	Extract func(ctx context.Context, data []byte) (extract.Result, error)
}

// IngestBatch runs Ingest for every file with bounded concurrency. Results
// keep the input order and one file's failure never affects another.
func (s *Service) IngestBatch(ctx context.Context, userID string, files []Upload) []UploadResult {
	results := make([]UploadResult, len(files))
	limit := s.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for i, f := range files {
		g.Go(func() error {
			rc, err := f.Open()
			if err != nil {
				results[i] = UploadResult{Filename: f.Filename, Status: StatusError, Error: "unable to read file"}
				return nil
			}
			defer rc.Close()
			results[i] = s.Ingest(ctx, userID, f.Filename, rc)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Ingest stores a PDF, extracts and chunks its text, and enriches it with
// structured terms. Failures are reported in the result, never returned.
func (s *Service) Ingest(ctx context.Context, userID, filename string, r io.Reader) UploadResult {
	result := UploadResult{Filename: filename}
	if !extract.IsPDFName(filename) {
		result.Status = StatusError
		result.Error = msgUnsupportedFile
		return result
	}

	start := time.Now()
	doc, note, err := s.ingest(ctx, userID, filename, r)
	metrics.ObserveIngestDurationMs(float64(time.Since(start).Microseconds()) / 1000.0)
	result.ID = doc.ID
	if err != nil {
		metrics.IncDocumentsFailed()
		result.Status = StatusError
		switch {
		case errors.Is(err, ErrInsufficientText):
			result.Error = msgNoText
		case errors.Is(err, ErrUnsupportedFile), errors.Is(err, extract.ErrNotPDF):
			result.Error = msgUnsupportedFile
		default:
			result.Error = err.Error()
		}
		telemetry.Error("ingest.failed", map[string]any{
			"request_id":  requestIDFromContext(ctx),
			"user_id":     userID,
			"document_id": doc.ID,
			"filename":    filename,
			"error":       err.Error(),
		})
		return result
	}

	metrics.IncDocumentsIngested()
	result.Status = StatusReady
	result.Note = note
	telemetry.Info("ingest.ready", map[string]any{
		"request_id":  requestIDFromContext(ctx),
		"user_id":     userID,
		"document_id": doc.ID,
		"filename":    filename,
		"duration_ms": float64(time.Since(start).Microseconds()) / 1000.0,
	})
	return result
}

func (s *Service) ingest(ctx context.Context, userID, filename string, r io.Reader) (Document, string, error) {
	if strings.TrimSpace(userID) == "" {
		return Document{}, "", ErrInvalidInput
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return Document{}, "", fmt.Errorf("read upload: %w", err)
	}

	storageKey, size, err := s.Store.Save(ctx, userID, filename, bytes.NewReader(data))
	if err != nil {
		return Document{}, "", fmt.Errorf("store pdf: %w", err)
	}

	now := time.Now().UTC()
	doc := Document{
		ID:         uuid.NewString(),
		UserID:     userID,
		FileName:   filename,
		Status:     StatusProcessing,
		StorageKey: storageKey,
		SizeBytes:  size,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.Repo.Create(ctx, doc); err != nil {
		return Document{}, "", err
	}

	note, err := s.process(ctx, doc, data)
	if err != nil {
		msg := err.Error()
		if errors.Is(err, ErrInsufficientText) {
			msg = msgInsufficientText
		}
		if updateErr := s.Repo.UpdateStatus(backgroundWithRequestID(ctx), doc.ID, StatusError, &msg); updateErr != nil {
			telemetry.Error("ingest.status_update_failed", map[string]any{
				"document_id": doc.ID,
				"error":       updateErr.Error(),
			})
		}
		return doc, "", err
	}
	return doc, note, nil
}

// process runs extraction, chunking and enrichment for a created document.
// Chunks are stored before the document is marked ready.
func (s *Service) process(ctx context.Context, doc Document, data []byte) (string, error) {
	extractFn := s.Extract
	if extractFn == nil {
		extractFn = extract.PDF
	}
	res, err := extractFn(ctx, data)
	if err != nil {
		return "", fmt.Errorf("extract text: %w", err)
	}
	if utf8.RuneCountInString(strings.TrimSpace(res.Text)) < MinTextLength {
		return "", ErrInsufficientText
	}
	if err := s.Repo.UpdateText(ctx, doc.ID, res.Text, res.PageCount); err != nil {
		return "", fmt.Errorf("store text: %w", err)
	}

	chunks := buildChunks(doc.ID, res.Text)
	if err := s.Repo.ReplaceChunks(ctx, doc.ID, chunks); err != nil {
		return "", fmt.Errorf("store chunks: %w", err)
	}
	s.indexChunks(ctx, doc, chunks)

	note := s.scheduleEnrichment(ctx, doc)
	if err := s.Repo.UpdateStatus(ctx, doc.ID, StatusReady, nil); err != nil {
		return "", fmt.Errorf("mark ready: %w", err)
	}
	return note, nil
}

func buildChunks(documentID, text string) []Chunk {
	split := chunking.Split(text)
	now := time.Now().UTC()
	out := make([]Chunk, 0, len(split))
	for _, c := range split {
		out = append(out, Chunk{
			ID:         uuid.NewString(),
			DocumentID: documentID,
			ChunkIndex: c.Index,
			Content:    c.Content,
			Section:    c.Section,
			CreatedAt:  now,
		})
	}
	return out
}

func (s *Service) indexChunks(ctx context.Context, doc Document, chunks []Chunk) {
	if s.Index == nil || len(chunks) == 0 {
		return
	}
	indexed := make([]search.IndexedChunk, 0, len(chunks))
	for _, ch := range chunks {
		indexed = append(indexed, search.IndexedChunk{
			Result: search.Result{
				ChunkID:    ch.ID,
				DocumentID: doc.ID,
				Filename:   doc.FileName,
				Content:    ch.Content,
				Section:    ch.Section,
				ChunkIndex: ch.ChunkIndex,
			},
			UserID: doc.UserID,
		})
	}
	if err := s.Index.IndexChunks(ctx, indexed); err != nil {
		telemetry.Error("ingest.index_failed", map[string]any{
			"document_id": doc.ID,
			"chunks":      len(chunks),
			"error":       err.Error(),
		})
	}
}

// scheduleEnrichment queues or runs term extraction and returns the note for
// the upload result. It never fails the document.
func (s *Service) scheduleEnrichment(ctx context.Context, doc Document) string {
	if s.Queue != nil {
		err := s.Queue.Send(ctx, queue.NewMessage(doc.ID, doc.UserID, requestIDFromContext(ctx), time.Now()))
		if err == nil {
			metrics.IncEnrichmentQueued()
			return noteEnrichmentQueued
		}
		telemetry.Error("ingest.enqueue_failed", map[string]any{
			"document_id": doc.ID,
			"error":       err.Error(),
		})
	}

	timeout := s.EnrichTimeout
	if timeout <= 0 {
		timeout = DefaultEnrichTimeout
	}
	enrichCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := s.Enrich(enrichCtx, doc.ID); err != nil {
		return noteEnrichmentFailed
	}
	return ""
}

// Enrich extracts structured lease terms for a document that already has
// text. It is called inline after chunking or by the queue worker.
func (s *Service) Enrich(ctx context.Context, documentID string) error {
	err := s.enrich(ctx, documentID)
	if err != nil {
		metrics.IncEnrichmentFailed()
		telemetry.Error("ingest.enrich_failed", map[string]any{
			"request_id":  requestIDFromContext(ctx),
			"document_id": documentID,
			"error":       err.Error(),
		})
	}
	return err
}

func (s *Service) enrich(ctx context.Context, documentID string) error {
	if s.LLM == nil || s.Terms == nil {
		return errors.New("enrichment not configured")
	}
	doc, err := s.Repo.Get(ctx, documentID)
	if err != nil {
		return fmt.Errorf("document lookup id=%s: %w", documentID, err)
	}
	if doc.RawText == nil || strings.TrimSpace(*doc.RawText) == "" {
		return fmt.Errorf("document %s has no text", documentID)
	}

	raw, err := s.LLM.ExtractTerms(ctx, *doc.RawText)
	if err != nil {
		return fmt.Errorf("llm extract: %w", err)
	}
	terms, err := leases.ParseTerms(raw)
	if err != nil {
		return fmt.Errorf("llm output parse: %w", err)
	}
	if len(terms.Warnings) > 0 {
		telemetry.Info("ingest.terms_coerced", map[string]any{
			"document_id": documentID,
			"warnings":    terms.Warnings,
		})
	}
	terms.ID = uuid.NewString()
	terms.DocumentID = documentID
	terms.CreatedAt = time.Now().UTC()
	if err := s.Terms.Create(ctx, terms); err != nil {
		return fmt.Errorf("store lease terms: %w", err)
	}
	return nil
}

// List returns the user's documents with chunk counts and terms.
func (s *Service) List(ctx context.Context, userID string) ([]Listed, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidInput
	}
	docs, err := s.Repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if s.Terms == nil || len(docs) == 0 {
		return docs, nil
	}
	entries, err := s.Terms.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	byDoc := make(map[string]leases.LeaseTerms, len(entries))
	for _, e := range entries {
		byDoc[e.DocumentID] = e.Terms
	}
	for i := range docs {
		if terms, ok := byDoc[docs[i].ID]; ok {
			docs[i].Terms = &terms
		}
	}
	return docs, nil
}

// Get returns one of the user's documents with its terms and chunks.
func (s *Service) Get(ctx context.Context, userID, documentID string) (Detail, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(documentID) == "" {
		return Detail{}, ErrInvalidInput
	}
	doc, err := s.Repo.GetByID(ctx, userID, documentID)
	if err != nil {
		return Detail{}, err
	}
	chunks, err := s.Repo.ListChunks(ctx, documentID)
	if err != nil {
		return Detail{}, err
	}
	detail := Detail{Document: doc, Chunks: chunks}
	if s.Terms != nil {
		terms, err := s.Terms.GetByDocument(ctx, documentID)
		switch {
		case err == nil:
			detail.Terms = &terms
		case !errors.Is(err, leases.ErrNotFound):
			return Detail{}, err
		}
	}
	return detail, nil
}

// Delete removes a user's document, then its stored PDF and index entries.
func (s *Service) Delete(ctx context.Context, userID, documentID string) error {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(documentID) == "" {
		return ErrInvalidInput
	}
	doc, err := s.Repo.GetByID(ctx, userID, documentID)
	if err != nil {
		return err
	}
	if err := s.Repo.Delete(ctx, userID, documentID); err != nil {
		return err
	}

	cleanupCtx := backgroundWithRequestID(ctx)
	if s.Terms != nil {
		if err := s.Terms.DeleteByDocument(cleanupCtx, documentID); err != nil {
			logCleanup(documentID, "lease_terms", err)
		}
	}
	if s.Index != nil {
		if err := s.Index.DeleteDocument(cleanupCtx, documentID); err != nil {
			logCleanup(documentID, "search_index", err)
		}
	}
	if doc.StorageKey != "" && s.Store != nil {
		if err := s.Store.Delete(cleanupCtx, doc.StorageKey); err != nil {
			logCleanup(documentID, "object_store", err)
		}
	}
	return nil
}

func logCleanup(documentID, target string, err error) {
	telemetry.Error("documents.cleanup_failed", map[string]any{
		"document_id": documentID,
		"target":      target,
		"error":       err.Error(),
	})
}

// OpenPDF opens the stored original of one of the user's documents.
func (s *Service) OpenPDF(ctx context.Context, userID, documentID string) (Document, io.ReadCloser, error) {
	doc, err := s.Repo.GetByID(ctx, userID, documentID)
	if err != nil {
		return Document{}, nil, err
	}
	if doc.StorageKey == "" {
		return Document{}, nil, ErrNotFound
	}
	rc, err := s.Store.Open(ctx, doc.StorageKey)
	if err != nil {
		if errors.Is(err, object.ErrNotFound) {
			return Document{}, nil, ErrNotFound
		}
		return Document{}, nil, err
	}
	return doc, rc, nil
}
