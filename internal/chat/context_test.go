package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leaselens-backend/internal/leases"
	"leaselens-backend/internal/search"
)

type stubSearcher struct {
	results []search.Result
	err     error
	gotUser string
	gotLim  int
}

func (s *stubSearcher) Search(ctx context.Context, query, userID string, limit int) ([]search.Result, error) {
	s.gotUser = userID
	s.gotLim = limit
	return s.results, s.err
}

type failingTerms struct{ leases.Repo }

func (failingTerms) ListByUser(ctx context.Context, userID string) ([]leases.Entry, error) {
	return nil, errors.New("db down")
}

func strPtr(s string) *string { return &s }

func ptr[T any](v T) *T { return &v }

type docMeta struct {
	user     string
	filename string
	pages    *int
	created  time.Time
}

func termsRepo(t *testing.T, docs map[string]docMeta, terms ...leases.LeaseTerms) leases.Repo {
	t.Helper()
	repo := leases.NewMemoryRepo(func(ctx context.Context, id string) (leases.DocumentInfo, bool) {
		d, ok := docs[id]
		if !ok {
			return leases.DocumentInfo{}, false
		}
		return leases.DocumentInfo{UserID: d.user, Filename: d.filename, PageCount: d.pages, CreatedAt: d.created}, true
	})
	for _, lt := range terms {
		require.NoError(t, repo.Create(context.Background(), lt))
	}
	return repo
}

func TestBuildContextIncludesWholePortfolio(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	docs := map[string]docMeta{
		"doc-a": {user: "u1", filename: "harbor.pdf", pages: ptr(12), created: base.Add(time.Hour)},
		"doc-b": {user: "u1", filename: "mill.pdf", created: base},
		"doc-c": {user: "u2", filename: "other.pdf", created: base},
	}
	end := time.Date(2027, 6, 30, 0, 0, 0, 0, time.UTC)
	repo := termsRepo(t, docs,
		leases.LeaseTerms{DocumentID: "doc-a", TenantName: strPtr("Acme Coffee"), MonthlyRent: ptr(4500.0), LeaseEnd: &end},
		leases.LeaseTerms{DocumentID: "doc-b", PropertyAddress: strPtr("9 Mill Rd")},
		leases.LeaseTerms{DocumentID: "doc-c", TenantName: strPtr("Hidden Tenant")},
	)
	searcher := &stubSearcher{results: []search.Result{
		{ChunkID: "c1", DocumentID: "doc-a", Filename: "harbor.pdf", Content: "Tenant shall pay CAM charges.", Section: strPtr("CAM Charges")},
		{ChunkID: "c2", DocumentID: "doc-a", Filename: "harbor.pdf", Content: "Operating expenses include taxes."},
	}}
	a := &Assembler{Search: searcher, Terms: repo}

	out, err := a.BuildContext(context.Background(), "what are the CAM charges", "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", searcher.gotUser)
	assert.Equal(t, ContextSearchLimit, searcher.gotLim)

	assert.True(t, strings.HasPrefix(out, "## Portfolio Summary\n\n"))
	assert.Contains(t, out, "### harbor.pdf (Document ID: doc-a)\n- Source: /api/v1/documents/doc-a/pdf\n- Tenant: Acme Coffee\n- Lease End: 2027-06-30\n- Monthly Rent: $4,500\n- Pages: 12\n")
	assert.Contains(t, out, "### mill.pdf (Document ID: doc-b)\n- Source: /api/v1/documents/doc-b/pdf\n- Property: 9 Mill Rd\n\n")
	assert.NotContains(t, out, "Hidden Tenant")
	assert.NotContains(t, out, "null")
	assert.Less(t, strings.Index(out, "harbor.pdf (Document ID"), strings.Index(out, "mill.pdf (Document ID"))

	sections := out[strings.Index(out, "## Relevant Document Sections"):]
	assert.Equal(t, 1, strings.Count(sections, "### From: harbor.pdf (Document ID: doc-a)"))
	assert.Contains(t, sections, "[Section: CAM Charges]\nTenant shall pay CAM charges.\n\n")
	assert.Contains(t, sections, "Operating expenses include taxes.\n\n")
	assert.Less(t, strings.Index(out, "## Portfolio Summary"), strings.Index(out, "## Relevant Document Sections"))
}

func TestBuildContextWithoutHits(t *testing.T) {
	repo := termsRepo(t, map[string]docMeta{})
	a := &Assembler{Search: &stubSearcher{results: []search.Result{}}, Terms: repo}

	out, err := a.BuildContext(context.Background(), "anything", "u1")
	require.NoError(t, err)
	assert.Equal(t, "## Portfolio Summary\n\nNo lease terms have been extracted yet.\n", out)
}

func TestBuildContextDegradesWhenSearchUnavailable(t *testing.T) {
	docs := map[string]docMeta{"doc-a": {user: "u1", filename: "harbor.pdf"}}
	repo := termsRepo(t, docs, leases.LeaseTerms{DocumentID: "doc-a", Summary: strPtr("Five year retail lease.")})
	searcher := &stubSearcher{err: fmt.Errorf("%w: boom", search.ErrUnavailable)}
	a := &Assembler{Search: searcher, Terms: repo}

	out, err := a.BuildContext(context.Background(), "rent", "u1")
	require.NoError(t, err)
	assert.Contains(t, out, "- Summary: Five year retail lease.")
	assert.NotContains(t, out, "Relevant Document Sections")
}

func TestBuildContextFailsWhenTermsFail(t *testing.T) {
	a := &Assembler{Search: &stubSearcher{}, Terms: failingTerms{}}

	_, err := a.BuildContext(context.Background(), "rent", "u1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load lease terms")
}

func TestBuildContextRequiresUser(t *testing.T) {
	a := &Assembler{Search: &stubSearcher{}, Terms: termsRepo(t, nil)}
	_, err := a.BuildContext(context.Background(), "rent", " ")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestBuildContextBoundsSections(t *testing.T) {
	long := strings.Repeat("x", 400)
	var results []search.Result
	for i := 0; i < 5; i++ {
		results = append(results, search.Result{
			ChunkID:    fmt.Sprintf("c%d", i),
			DocumentID: fmt.Sprintf("doc-%d", i),
			Filename:   fmt.Sprintf("f%d.pdf", i),
			Content:    long,
		})
	}
	a := &Assembler{Search: &stubSearcher{results: results}, Terms: termsRepo(t, nil), MaxSectionChars: 1000}

	out, err := a.BuildContext(context.Background(), "rent", "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, long))
	assert.NotContains(t, out, "f2.pdf")
}
