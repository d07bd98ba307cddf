// Package knowledge is the retrieval collaborator behind the ask handler: a
// Bleve full-text index over the FAQ corpus plus an LLM pass that composes a
// grounded answer from the retrieved excerpts.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
)

// FAQEntry is one question/answer pair in the FAQ corpus.
type FAQEntry struct {
	ID       string `json:"id"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Index wraps a Bleve index of FAQ entries.
type Index struct {
	idx bleve.Index
}

// Open opens an existing on-disk index built by the indexer command.
func Open(path string) (*Index, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("knowledge: index path must not be empty")
	}
	idx, err := bleve.Open(path)
	if err != nil {
		return nil, fmt.Errorf("knowledge: open index %s: %w", path, err)
	}
	return &Index{idx: idx}, nil
}

// Create builds a new empty on-disk index at path.
func Create(path string) (*Index, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("knowledge: index path must not be empty")
	}
	idx, err := bleve.New(path, bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("knowledge: create index %s: %w", path, err)
	}
	return &Index{idx: idx}, nil
}

// NewMemOnly builds an in-memory index; used by tests.
func NewMemOnly() (*Index, error) {
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("knowledge: create in-memory index: %w", err)
	}
	return &Index{idx: idx}, nil
}

// IndexEntries adds the given FAQ entries in one batch. Entries without an id
// are numbered by position.
func (i *Index) IndexEntries(entries []FAQEntry) error {
	batch := i.idx.NewBatch()
	for n, e := range entries {
		id := e.ID
		if id == "" {
			id = fmt.Sprintf("faq-%d", n+1)
		}
		if err := batch.Index(id, e); err != nil {
			return fmt.Errorf("knowledge: batch entry %s: %w", id, err)
		}
	}
	if err := i.idx.Batch(batch); err != nil {
		return fmt.Errorf("knowledge: index batch: %w", err)
	}
	return nil
}

// Search returns up to limit FAQ entries matching the query, best first.
func (i *Index) Search(ctx context.Context, query string, limit int) ([]FAQEntry, error) {
	if limit <= 0 {
		limit = 3
	}
	req := bleve.NewSearchRequest(bleve.NewMatchQuery(query))
	req.Size = limit
	req.Fields = []string{"question", "answer"}

	result, err := i.idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("knowledge: search: %w", err)
	}

	entries := make([]FAQEntry, 0, len(result.Hits))
	for _, hit := range result.Hits {
		entries = append(entries, FAQEntry{
			ID:       hit.ID,
			Question: fieldString(hit.Fields, "question"),
			Answer:   fieldString(hit.Fields, "answer"),
		})
	}
	return entries, nil
}

// Close releases the underlying index.
func (i *Index) Close() error {
	return i.idx.Close()
}

func fieldString(fields map[string]any, key string) string {
	if v, ok := fields[key].(string); ok {
		return v
	}
	return ""
}
