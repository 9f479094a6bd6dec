// Package search finds document chunks relevant to a free-text query, scoped
// to the chunks of a single owning user.
package search

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"leaselens-backend/internal/shared/metrics"
	"leaselens-backend/internal/shared/telemetry"
)

const (
	// DefaultLimit caps results when callers pass a non-positive limit.
	DefaultLimit = 20
	// maxFallbackTerms bounds the number of substring clauses.
	maxFallbackTerms = 10
)

var (
	// ErrMissingUser is returned when a search has no owning user.
	ErrMissingUser = errors.New("search: user id required")
	// ErrUnavailable wraps failures of every configured strategy.
	ErrUnavailable = errors.New("search: all strategies failed")
)

// Result is one matching chunk.
type Result struct {
	ChunkID    string  `json:"chunkId"`
	DocumentID string  `json:"documentId"`
	Filename   string  `json:"filename"`
	Content    string  `json:"content"`
	Section    *string `json:"section"`
	ChunkIndex int     `json:"chunkIndex"`
	Rank       float64 `json:"rank"`
}

// Strategy is one way of matching chunks against a query.
type Strategy interface {
	Name() string
	Search(ctx context.Context, query, userID string, limit int) ([]Result, error)
}

// Policy reports whether the fallback strategy should run given the primary outcome.
type Policy func(results []Result, err error) bool

// FallbackOnEmptyOrError runs the fallback when the primary errored or found nothing.
func FallbackOnEmptyOrError(results []Result, err error) bool {
	return err != nil || len(results) == 0
}

// Engine combines a ranked primary strategy with a substring fallback.
type Engine struct {
	Primary  Strategy
	Fallback Strategy
	Policy   Policy
}

// NewEngine builds an Engine using the default fallback policy.
func NewEngine(primary, fallback Strategy) *Engine {
	return &Engine{Primary: primary, Fallback: fallback, Policy: FallbackOnEmptyOrError}
}

// Search returns matches for userID. The result slice is never nil. A non-nil
// error wrapping ErrUnavailable means every strategy failed.
func (e *Engine) Search(ctx context.Context, query, userID string, limit int) ([]Result, error) {
	if strings.TrimSpace(userID) == "" {
		return []Result{}, ErrMissingUser
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	policy := e.Policy
	if policy == nil {
		policy = FallbackOnEmptyOrError
	}

	var primaryErr error
	if e.Primary != nil {
		results, err := e.Primary.Search(ctx, query, userID, limit)
		if !policy(results, err) {
			return results, nil
		}
		if err != nil {
			primaryErr = err
			telemetry.Error("search.primary_failed", map[string]any{
				"strategy": e.Primary.Name(),
				"user_id":  userID,
				"error":    err.Error(),
			})
		}
	}

	if e.Fallback == nil {
		if primaryErr != nil {
			return []Result{}, fmt.Errorf("%w: %w", ErrUnavailable, primaryErr)
		}
		return []Result{}, nil
	}

	results, err := e.Fallback.Search(ctx, query, userID, limit)
	if err != nil {
		telemetry.Error("search.fallback_failed", map[string]any{
			"strategy": e.Fallback.Name(),
			"user_id":  userID,
			"error":    err.Error(),
		})
		if primaryErr != nil || e.Primary == nil {
			return []Result{}, fmt.Errorf("%w: %w", ErrUnavailable, errors.Join(primaryErr, err))
		}
		return []Result{}, nil
	}
	if results == nil {
		results = []Result{}
	}
	if e.Primary != nil {
		metrics.IncSearchFallback()
	}
	return results, nil
}

var nonWord = regexp.MustCompile(`[^\w]`)

// RankedTerms returns the conjunctive search terms for a query: words longer
// than two characters with non-word characters removed.
func RankedTerms(query string) []string {
	var out []string
	for _, w := range strings.Fields(query) {
		if utf8.RuneCountInString(w) <= 2 {
			continue
		}
		if cleaned := nonWord.ReplaceAllString(w, ""); cleaned != "" {
			out = append(out, cleaned)
		}
	}
	return out
}

// FallbackTerms returns up to ten raw query words longer than two characters.
func FallbackTerms(query string) []string {
	var out []string
	for _, w := range strings.Fields(query) {
		if utf8.RuneCountInString(w) <= 2 {
			continue
		}
		out = append(out, w)
		if len(out) == maxFallbackTerms {
			break
		}
	}
	return out
}

// TSQuery joins ranked terms into a Postgres to_tsquery expression.
func TSQuery(terms []string) string {
	return strings.Join(terms, " & ")
}

func likePattern(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(term) + "%"
}
