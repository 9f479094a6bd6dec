package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
)

// DefaultElasticIndex is used when no index name is configured.
const DefaultElasticIndex = "lease_chunks"

// IndexedChunk is a chunk as stored in an external search index.
type IndexedChunk struct {
	Result
	UserID string
}

// Indexer mirrors chunk writes into an external search backend.
type Indexer interface {
	IndexChunks(ctx context.Context, chunks []IndexedChunk) error
	DeleteDocument(ctx context.Context, documentID string) error
}

// NopIndexer is used when chunks are searched where they are stored.
type NopIndexer struct{}

// IndexChunks implements Indexer.
func (NopIndexer) IndexChunks(context.Context, []IndexedChunk) error { return nil }

// DeleteDocument implements Indexer.
func (NopIndexer) DeleteDocument(context.Context, string) error { return nil }

// NewElasticClient connects to a single Elasticsearch address.
func NewElasticClient(url string) (*elasticsearch.Client, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{url},
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}
	return client, nil
}

type elasticDoc struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	UserID     string  `json:"user_id"`
	Filename   string  `json:"filename"`
	Content    string  `json:"content"`
	Section    *string `json:"section"`
	ChunkIndex int     `json:"chunk_index"`
}

// DocumentSet reports which documents still exist for a user in the
// authoritative store.
type DocumentSet interface {
	ExistingDocuments(ctx context.Context, userID string, documentIDs []string) (map[string]bool, error)
}

// ElasticRanked scores chunks with Elasticsearch relevance. All terms must
// match and hits are filtered to the owning user. When Documents is set, hits
// for documents missing from the store are dropped, since index deletes are
// best effort.
type ElasticRanked struct {
	Client    *elasticsearch.Client
	Index     string
	Documents DocumentSet
}

// Name implements Strategy.
func (s *ElasticRanked) Name() string { return "elastic_ranked" }

// Search implements Strategy.
func (s *ElasticRanked) Search(ctx context.Context, query, userID string, limit int) ([]Result, error) {
	terms := RankedTerms(query)
	if len(terms) == 0 {
		return []Result{}, nil
	}

	body, err := json.Marshal(map[string]any{
		"size": limit,
		"query": map[string]any{
			"bool": map[string]any{
				"must": map[string]any{
					"match": map[string]any{
						"content": map[string]any{
							"query":    strings.Join(terms, " "),
							"operator": "and",
						},
					},
				},
				"filter": map[string]any{
					"term": map[string]any{"user_id": userID},
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal search query: %w", err)
	}

	res, err := s.Client.Search(
		s.Client.Search.WithContext(ctx),
		s.Client.Search.WithIndex(s.indexName()),
		s.Client.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch search: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch search failed: %s", res.String())
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Score  float64    `json:"_score"`
				Source elasticDoc `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	out := make([]Result, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		if hit.Source.UserID != userID {
			continue
		}
		out = append(out, Result{
			ChunkID:    hit.Source.ChunkID,
			DocumentID: hit.Source.DocumentID,
			Filename:   hit.Source.Filename,
			Content:    hit.Source.Content,
			Section:    hit.Source.Section,
			ChunkIndex: hit.Source.ChunkIndex,
			Rank:       hit.Score,
		})
	}
	return s.dropStale(ctx, userID, out)
}

func (s *ElasticRanked) dropStale(ctx context.Context, userID string, results []Result) ([]Result, error) {
	if s.Documents == nil || len(results) == 0 {
		return results, nil
	}
	seen := map[string]bool{}
	ids := []string{}
	for _, r := range results {
		if !seen[r.DocumentID] {
			seen[r.DocumentID] = true
			ids = append(ids, r.DocumentID)
		}
	}
	live, err := s.Documents.ExistingDocuments(ctx, userID, ids)
	if err != nil {
		return nil, fmt.Errorf("check indexed documents: %w", err)
	}
	kept := results[:0]
	for _, r := range results {
		if live[r.DocumentID] {
			kept = append(kept, r)
		}
	}
	return kept, nil
}

func (s *ElasticRanked) indexName() string {
	if strings.TrimSpace(s.Index) == "" {
		return DefaultElasticIndex
	}
	return s.Index
}

// ElasticIndexer writes chunks to the index searched by ElasticRanked.
type ElasticIndexer struct {
	Client *elasticsearch.Client
	Index  string
}

const indexMapping = `{
  "mappings": {
    "properties": {
      "chunk_id":    {"type": "keyword"},
      "document_id": {"type": "keyword"},
      "user_id":     {"type": "keyword"},
      "filename":    {"type": "keyword"},
      "section":     {"type": "keyword"},
      "chunk_index": {"type": "integer"},
      "content":     {"type": "text", "analyzer": "english"}
    }
  }
}`

// EnsureIndex creates the chunk index with keyword ownership fields if missing.
func (x *ElasticIndexer) EnsureIndex(ctx context.Context) error {
	exists, err := x.Client.Indices.Exists(
		[]string{x.indexName()},
		x.Client.Indices.Exists.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch index exists: %w", err)
	}
	exists.Body.Close()
	if exists.StatusCode == 200 {
		return nil
	}

	res, err := x.Client.Indices.Create(
		x.indexName(),
		x.Client.Indices.Create.WithContext(ctx),
		x.Client.Indices.Create.WithBody(strings.NewReader(indexMapping)),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch create index: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("elasticsearch create index failed: %s", res.String())
	}
	return nil
}

// IndexChunks sends all chunks in one bulk request.
func (x *ElasticIndexer) IndexChunks(ctx context.Context, chunks []IndexedChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, c := range chunks {
		meta := map[string]any{"index": map[string]any{"_id": c.ChunkID}}
		if err := enc.Encode(meta); err != nil {
			return err
		}
		doc := elasticDoc{
			ChunkID:    c.ChunkID,
			DocumentID: c.DocumentID,
			UserID:     c.UserID,
			Filename:   c.Filename,
			Content:    c.Content,
			Section:    c.Section,
			ChunkIndex: c.ChunkIndex,
		}
		if err := enc.Encode(doc); err != nil {
			return err
		}
	}

	res, err := x.Client.Bulk(
		bytes.NewReader(buf.Bytes()),
		x.Client.Bulk.WithContext(ctx),
		x.Client.Bulk.WithIndex(x.indexName()),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch bulk: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("elasticsearch bulk failed: %s", res.String())
	}

	var parsed struct {
		Errors bool `json:"errors"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("decode bulk response: %w", err)
	}
	if parsed.Errors {
		return fmt.Errorf("elasticsearch bulk reported item errors")
	}
	return nil
}

// DeleteDocument removes every indexed chunk of a document.
func (x *ElasticIndexer) DeleteDocument(ctx context.Context, documentID string) error {
	body, err := json.Marshal(map[string]any{
		"query": map[string]any{
			"term": map[string]any{"document_id": documentID},
		},
	})
	if err != nil {
		return err
	}
	res, err := x.Client.DeleteByQuery(
		[]string{x.indexName()},
		bytes.NewReader(body),
		x.Client.DeleteByQuery.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch delete by query: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("elasticsearch delete by query failed: %s", res.String())
	}
	return nil
}

// OwnerReassigner moves indexed chunks from one owner to another.
type OwnerReassigner interface {
	ReassignOwner(ctx context.Context, fromUserID, toUserID string) error
}

// ReassignOwner rewrites user_id on every chunk owned by fromUserID.
func (x *ElasticIndexer) ReassignOwner(ctx context.Context, fromUserID, toUserID string) error {
	body, err := json.Marshal(map[string]any{
		"query": map[string]any{
			"term": map[string]any{"user_id": fromUserID},
		},
		"script": map[string]any{
			"source": "ctx._source.user_id = params.owner",
			"lang":   "painless",
			"params": map[string]any{"owner": toUserID},
		},
	})
	if err != nil {
		return err
	}
	res, err := x.Client.UpdateByQuery(
		[]string{x.indexName()},
		x.Client.UpdateByQuery.WithContext(ctx),
		x.Client.UpdateByQuery.WithBody(bytes.NewReader(body)),
		x.Client.UpdateByQuery.WithConflicts("proceed"),
		x.Client.UpdateByQuery.WithRefresh(true),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch update by query: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("elasticsearch update by query failed: %s", res.String())
	}
	return nil
}

func (x *ElasticIndexer) indexName() string {
	if strings.TrimSpace(x.Index) == "" {
		return DefaultElasticIndex
	}
	return x.Index
}

var (
	_ Strategy        = (*ElasticRanked)(nil)
	_ Indexer         = (*ElasticIndexer)(nil)
	_ Indexer         = NopIndexer{}
	_ OwnerReassigner = (*ElasticIndexer)(nil)
)
