package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PGRanked scores chunks with ts_rank over the english text-search config.
type PGRanked struct {
	DB *sql.DB
}

// Name implements Strategy.
func (s *PGRanked) Name() string { return "pg_ranked" }

// Search implements Strategy.
func (s *PGRanked) Search(ctx context.Context, query, userID string, limit int) ([]Result, error) {
	terms := RankedTerms(query)
	if len(terms) == 0 {
		return []Result{}, nil
	}
	const stmt = `
SELECT dc.id, dc.document_id, d.file_name, dc.content, dc.section, dc.chunk_index,
       ts_rank(to_tsvector('english', dc.content), to_tsquery('english', $1)) AS rank
FROM document_chunks dc
JOIN documents d ON d.id = dc.document_id
WHERE d.user_id = $2
  AND to_tsvector('english', dc.content) @@ to_tsquery('english', $1)
ORDER BY rank DESC
LIMIT $3`

	rows, err := s.DB.QueryContext(ctx, stmt, TSQuery(terms), userID, limit)
	if err != nil {
		return nil, fmt.Errorf("ranked search: %w", err)
	}
	defer rows.Close()
	return scanResults(rows)
}

// PGSubstring matches chunks containing any query word, case-insensitively.
type PGSubstring struct {
	DB *sql.DB
}

// Name implements Strategy.
func (s *PGSubstring) Name() string { return "pg_substring" }

// Search implements Strategy. Every hit has rank 1 and results follow
// document order.
func (s *PGSubstring) Search(ctx context.Context, query, userID string, limit int) ([]Result, error) {
	terms := FallbackTerms(query)
	if len(terms) == 0 {
		return []Result{}, nil
	}

	args := make([]any, 0, len(terms)+2)
	args = append(args, userID)
	clauses := make([]string, 0, len(terms))
	for _, term := range terms {
		args = append(args, likePattern(term))
		clauses = append(clauses, fmt.Sprintf("dc.content ILIKE $%d", len(args)))
	}
	args = append(args, limit)

	stmt := fmt.Sprintf(`
SELECT dc.id, dc.document_id, d.file_name, dc.content, dc.section, dc.chunk_index, 1.0 AS rank
FROM document_chunks dc
JOIN documents d ON d.id = dc.document_id
WHERE d.user_id = $1
  AND (%s)
ORDER BY dc.chunk_index ASC, dc.document_id ASC
LIMIT $%d`, strings.Join(clauses, " OR "), len(args))

	rows, err := s.DB.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("substring search: %w", err)
	}
	defer rows.Close()
	return scanResults(rows)
}

func scanResults(rows *sql.Rows) ([]Result, error) {
	out := []Result{}
	for rows.Next() {
		var r Result
		var section sql.NullString
		if err := rows.Scan(&r.ChunkID, &r.DocumentID, &r.Filename, &r.Content, &section, &r.ChunkIndex, &r.Rank); err != nil {
			return nil, err
		}
		if section.Valid {
			label := section.String
			r.Section = &label
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

var (
	_ Strategy = (*PGRanked)(nil)
	_ Strategy = (*PGSubstring)(nil)
)
