package chat

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"leaselens-backend/internal/leases"
	"leaselens-backend/internal/search"
	"leaselens-backend/internal/shared/metrics"
	"leaselens-backend/internal/shared/telemetry"
)

const (
	// ContextSearchLimit is how many chunks ground each chat turn.
	ContextSearchLimit = 15
	// DefaultMaxSectionChars bounds the Relevant Document Sections part.
	DefaultMaxSectionChars = 60000
)

// Searcher finds chunks for a query within one user's documents.
type Searcher interface {
	Search(ctx context.Context, query, userID string, limit int) ([]search.Result, error)
}

// Assembler builds the text context that grounds a chat reply.
type Assembler struct {
	Search Searcher
	Terms  leases.Repo
	// MaxSectionChars caps the rendered search hits in runes. The portfolio
	// summary is never truncated.
	MaxSectionChars int
}

// PDFPath is the link a reply can cite for a document's original file.
func PDFPath(documentID string) string {
	return "/api/v1/documents/" + documentID + "/pdf"
}

// BuildContext renders the user's full portfolio summary followed by the
// chunks most relevant to query. A failed terms load is an error; failed
// search degrades to the summary alone.
func (a *Assembler) BuildContext(ctx context.Context, query, userID string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", ErrInvalidInput
	}

	var results []search.Result
	if a.Search != nil {
		var err error
		results, err = a.Search.Search(ctx, query, userID, ContextSearchLimit)
		if err != nil {
			if !errors.Is(err, search.ErrUnavailable) {
				return "", err
			}
			metrics.IncSearchDegraded()
			telemetry.Error("search.degraded", map[string]any{
				"user_id": userID,
				"error":   err.Error(),
			})
			results = nil
		}
	}

	entries, err := a.Terms.ListByUser(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("load lease terms: %w", err)
	}

	var b strings.Builder
	writePortfolio(&b, entries)
	if len(results) > 0 {
		limit := a.MaxSectionChars
		if limit <= 0 {
			limit = DefaultMaxSectionChars
		}
		writeSections(&b, results, limit)
	}
	return b.String(), nil
}

func writePortfolio(b *strings.Builder, entries []leases.Entry) {
	b.WriteString("## Portfolio Summary\n\n")
	if len(entries) == 0 {
		b.WriteString("No lease terms have been extracted yet.\n")
		return
	}
	for _, e := range entries {
		fmt.Fprintf(b, "### %s (Document ID: %s)\n", e.Filename, e.DocumentID)
		fmt.Fprintf(b, "- Source: %s\n", PDFPath(e.DocumentID))
		for _, f := range e.Terms.Fields() {
			fmt.Fprintf(b, "- %s: %s\n", f.Label, f.Value)
		}
		if e.PageCount != nil {
			b.WriteString("- Pages: " + strconv.Itoa(*e.PageCount) + "\n")
		}
		b.WriteString("\n")
	}
}

// writeSections groups hits by document in first-seen order and stops adding
// chunks once limit runes have been written.
func writeSections(b *strings.Builder, results []search.Result, limit int) {
	type group struct {
		documentID string
		filename   string
		chunks     []search.Result
	}
	var groups []*group
	byDoc := make(map[string]*group)
	for _, r := range results {
		g, ok := byDoc[r.DocumentID]
		if !ok {
			g = &group{documentID: r.DocumentID, filename: r.Filename}
			byDoc[r.DocumentID] = g
			groups = append(groups, g)
		}
		g.chunks = append(g.chunks, r)
	}

	b.WriteString("\n## Relevant Document Sections\n\n")
	used := 0
	for _, g := range groups {
		header := fmt.Sprintf("### From: %s (Document ID: %s)\n", g.filename, g.documentID)
		wroteHeader := false
		for _, ch := range g.chunks {
			var part strings.Builder
			if ch.Section != nil {
				part.WriteString("[Section: " + *ch.Section + "]\n")
			}
			part.WriteString(ch.Content + "\n\n")
			size := utf8.RuneCountInString(part.String())
			if !wroteHeader {
				size += utf8.RuneCountInString(header)
			}
			if used+size > limit {
				return
			}
			if !wroteHeader {
				b.WriteString(header)
				wroteHeader = true
			}
			b.WriteString(part.String())
			used += size
		}
	}
}
