package documents

import (
	"time"

	"leaselens-backend/internal/leases"
)

// DocumentResponse is the outward-facing representation of a document.
type DocumentResponse struct {
	ID           string             `json:"id"`
	Filename     string             `json:"filename"`
	Status       string             `json:"status"`
	PageCount    *int               `json:"pageCount"`
	ErrorMessage *string            `json:"errorMessage"`
	SizeBytes    int64              `json:"sizeBytes"`
	CreatedAt    time.Time          `json:"createdAt"`
	UpdatedAt    time.Time          `json:"updatedAt"`
	LeaseTerms   *leases.LeaseTerms `json:"leaseTerms"`
	ChunkCount   *int               `json:"chunkCount,omitempty"`
	RawText      *string            `json:"rawText,omitempty"`
	Chunks       []ChunkResponse    `json:"chunks,omitempty"`
}

// ChunkResponse is a chunk as returned with a document.
type ChunkResponse struct {
	ID         string  `json:"id"`
	ChunkIndex int     `json:"chunkIndex"`
	Section    *string `json:"section"`
	Content    string  `json:"content"`
}

func toResponse(doc Document, terms *leases.LeaseTerms) DocumentResponse {
	return DocumentResponse{
		ID:           doc.ID,
		Filename:     doc.FileName,
		Status:       doc.Status,
		PageCount:    doc.PageCount,
		ErrorMessage: doc.ErrorMessage,
		SizeBytes:    doc.SizeBytes,
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
		LeaseTerms:   terms,
	}
}

func toListResponse(l Listed) DocumentResponse {
	resp := toResponse(l.Document, l.Terms)
	count := l.ChunkCount
	resp.ChunkCount = &count
	return resp
}

func toDetailResponse(d Detail) DocumentResponse {
	resp := toResponse(d.Document, d.Terms)
	resp.RawText = d.RawText
	resp.Chunks = make([]ChunkResponse, 0, len(d.Chunks))
	for _, ch := range d.Chunks {
		resp.Chunks = append(resp.Chunks, ChunkResponse{
			ID:         ch.ID,
			ChunkIndex: ch.ChunkIndex,
			Section:    ch.Section,
			Content:    ch.Content,
		})
	}
	return resp
}
