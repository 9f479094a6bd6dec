package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStrategy struct {
	name    string
	results []Result
	err     error
	calls   int
}

func (s *stubStrategy) Name() string { return s.name }

func (s *stubStrategy) Search(ctx context.Context, query, userID string, limit int) ([]Result, error) {
	s.calls++
	return s.results, s.err
}

type fakeCorpus map[string][]Result

func (f fakeCorpus) UserChunks(ctx context.Context, userID string) ([]Result, error) {
	return f[userID], nil
}

func section(label string) *string { return &label }

func TestEngineUsesPrimaryWhenItHasHits(t *testing.T) {
	primary := &stubStrategy{name: "primary", results: []Result{{ChunkID: "c1"}}}
	fallback := &stubStrategy{name: "fallback", results: []Result{{ChunkID: "c2"}}}

	got, err := NewEngine(primary, fallback).Search(context.Background(), "rent", "user-1", 15)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "c1", got[0].ChunkID)
	assert.Equal(t, 0, fallback.calls)
}

func TestEngineFallsBackOnEmptyPrimary(t *testing.T) {
	primary := &stubStrategy{name: "primary", results: []Result{}}
	fallback := &stubStrategy{name: "fallback", results: []Result{{ChunkID: "c2", Rank: 1}}}

	got, err := NewEngine(primary, fallback).Search(context.Background(), "rent", "user-1", 15)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "c2", got[0].ChunkID)
	assert.Equal(t, 1, fallback.calls)
}

func TestEngineFallsBackOnPrimaryError(t *testing.T) {
	primary := &stubStrategy{name: "primary", err: errors.New("syntax error in tsquery")}
	fallback := &stubStrategy{name: "fallback", results: []Result{{ChunkID: "c3"}}}

	got, err := NewEngine(primary, fallback).Search(context.Background(), "rent!", "user-1", 15)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "c3", got[0].ChunkID)
}

func TestEngineReportsTotalFailure(t *testing.T) {
	primary := &stubStrategy{name: "primary", err: errors.New("primary down")}
	fallback := &stubStrategy{name: "fallback", err: errors.New("fallback down")}

	got, err := NewEngine(primary, fallback).Search(context.Background(), "rent", "user-1", 15)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestEngineSwallowsFallbackErrorAfterEmptyPrimary(t *testing.T) {
	primary := &stubStrategy{name: "primary", results: []Result{}}
	fallback := &stubStrategy{name: "fallback", err: errors.New("fallback down")}

	got, err := NewEngine(primary, fallback).Search(context.Background(), "rent", "user-1", 15)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestEngineRequiresUser(t *testing.T) {
	_, err := NewEngine(&stubStrategy{}, &stubStrategy{}).Search(context.Background(), "rent", " ", 15)
	assert.ErrorIs(t, err, ErrMissingUser)
}

func TestEngineCustomPolicy(t *testing.T) {
	primary := &stubStrategy{name: "primary", results: []Result{}}
	fallback := &stubStrategy{name: "fallback", results: []Result{{ChunkID: "c2"}}}
	engine := &Engine{Primary: primary, Fallback: fallback, Policy: func([]Result, error) bool { return false }}

	got, err := engine.Search(context.Background(), "rent", "user-1", 15)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 0, fallback.calls)
}

func TestRankedTerms(t *testing.T) {
	assert.Equal(t, []string{"Whats", "the", "CAM", "rent"}, RankedTerms("What's the CAM, rent?"))
	assert.Empty(t, RankedTerms("a an ... to"))
	assert.Equal(t, "Whats & the & CAM & rent", TSQuery(RankedTerms("What's the CAM, rent?")))
}

func TestFallbackTermsCapsAtTen(t *testing.T) {
	terms := FallbackTerms("one two three four five six seven eight nine ten eleven twelve an")
	assert.Len(t, terms, 10)
	assert.Equal(t, "one", terms[0])
	assert.Equal(t, "ten", terms[9])
	assert.Equal(t, []string{"rent?"}, FallbackTerms("is rent?"))
}

func TestLikePatternEscapesWildcards(t *testing.T) {
	assert.Equal(t, `%50\%\_off%`, likePattern("50%_off"))
}

func testCorpus() fakeCorpus {
	return fakeCorpus{
		"user-a": {
			{ChunkID: "a1", DocumentID: "doc-a1", Filename: "plaza.pdf", Content: "Tenant pays CAM charges monthly with base rent.", Section: section("Rent"), ChunkIndex: 0},
			{ChunkID: "a2", DocumentID: "doc-a2", Filename: "tower.pdf", Content: "The camera system in the lobby is maintained by Landlord.", Section: section("Maintenance"), ChunkIndex: 0},
			{ChunkID: "a3", DocumentID: "doc-a1", Filename: "plaza.pdf", Content: "Insurance coverage of two million dollars.", Section: section("Insurance"), ChunkIndex: 1},
		},
		"user-b": {
			{ChunkID: "b1", DocumentID: "doc-b1", Filename: "other.pdf", Content: "CAM charges and rent for another tenant.", ChunkIndex: 0},
		},
	}
}

func memoryEngine(c Corpus) *Engine {
	return NewEngine(&MemoryRanked{Corpus: c}, &MemorySubstring{Corpus: c})
}

func TestSearchReturnsOnlyMatchingDocument(t *testing.T) {
	got, err := memoryEngine(testCorpus()).Search(context.Background(), "CAM", "user-a", 15)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "doc-a1", got[0].DocumentID)
	assert.Greater(t, got[0].Rank, 0.0)
}

func TestSearchNeverCrossesOwners(t *testing.T) {
	engine := memoryEngine(testCorpus())
	for _, q := range []string{"CAM charges", "rent", "charg", "tenant"} {
		got, err := engine.Search(context.Background(), q, "user-a", 15)
		require.NoError(t, err)
		for _, r := range got {
			assert.NotEqual(t, "doc-b1", r.DocumentID, "query %q leaked another user's chunk", q)
		}
	}
}

func TestSearchSubstringFallbackFindsPrefixes(t *testing.T) {
	got, err := memoryEngine(testCorpus()).Search(context.Background(), "charg", "user-a", 15)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a1", got[0].ChunkID)
	assert.Equal(t, 1.0, got[0].Rank)
}

func TestMemorySubstringOrdersByChunkIndex(t *testing.T) {
	s := &MemorySubstring{Corpus: testCorpus()}
	got, err := s.Search(context.Background(), "the insurance", "user-a", 15)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a2", got[0].ChunkID)
	assert.Equal(t, "a3", got[1].ChunkID)
}

func TestMemoryRankedHonorsLimit(t *testing.T) {
	corpus := fakeCorpus{"user-a": {
		{ChunkID: "x1", DocumentID: "doc-1", Content: "rent is due", ChunkIndex: 0},
		{ChunkID: "x2", DocumentID: "doc-1", Content: "rent rent rent escalates", ChunkIndex: 1},
	}}
	s := &MemoryRanked{Corpus: corpus}
	got, err := s.Search(context.Background(), "rent", "user-a", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "x2", got[0].ChunkID)
}
