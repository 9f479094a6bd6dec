package search

import (
	"context"
	"sort"
	"strings"
	"unicode"
)

// Corpus lists the chunks owned by a user. In-memory document repositories
// implement it so dev mode can search without Postgres.
type Corpus interface {
	UserChunks(ctx context.Context, userID string) ([]Result, error)
}

// MemoryRanked approximates full-text ranking: every term must appear as a
// word (after a light plural stem) and rank is term frequency over length.
type MemoryRanked struct {
	Corpus Corpus
}

// Name implements Strategy.
func (s *MemoryRanked) Name() string { return "memory_ranked" }

// Search implements Strategy.
func (s *MemoryRanked) Search(ctx context.Context, query, userID string, limit int) ([]Result, error) {
	terms := RankedTerms(query)
	if len(terms) == 0 {
		return []Result{}, nil
	}
	chunks, err := s.Corpus.UserChunks(ctx, userID)
	if err != nil {
		return nil, err
	}

	stems := make([]string, len(terms))
	for i, t := range terms {
		stems[i] = stem(strings.ToLower(t))
	}

	out := []Result{}
	for _, c := range chunks {
		words := tokenize(c.Content)
		counts := make(map[string]int, len(words))
		for _, w := range words {
			counts[stem(w)]++
		}
		hits := 0
		matched := true
		for _, st := range stems {
			n := counts[st]
			if n == 0 {
				matched = false
				break
			}
			hits += n
		}
		if !matched {
			continue
		}
		c.Rank = float64(hits) / float64(len(words)+1)
		out = append(out, c)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Rank > out[j].Rank })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// MemorySubstring mirrors PGSubstring over an in-memory corpus.
type MemorySubstring struct {
	Corpus Corpus
}

// Name implements Strategy.
func (s *MemorySubstring) Name() string { return "memory_substring" }

// Search implements Strategy.
func (s *MemorySubstring) Search(ctx context.Context, query, userID string, limit int) ([]Result, error) {
	terms := FallbackTerms(query)
	if len(terms) == 0 {
		return []Result{}, nil
	}
	chunks, err := s.Corpus.UserChunks(ctx, userID)
	if err != nil {
		return nil, err
	}

	lowered := make([]string, len(terms))
	for i, t := range terms {
		lowered[i] = strings.ToLower(t)
	}

	out := []Result{}
	for _, c := range chunks {
		content := strings.ToLower(c.Content)
		for _, t := range lowered {
			if strings.Contains(content, t) {
				c.Rank = 1.0
				out = append(out, c)
				break
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ChunkIndex != out[j].ChunkIndex {
			return out[i].ChunkIndex < out[j].ChunkIndex
		}
		return out[i].DocumentID < out[j].DocumentID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
}

func stem(word string) string {
	if len(word) > 3 && strings.HasSuffix(word, "s") && !strings.HasSuffix(word, "ss") {
		return word[:len(word)-1]
	}
	return word
}

var (
	_ Strategy = (*MemoryRanked)(nil)
	_ Strategy = (*MemorySubstring)(nil)
)
