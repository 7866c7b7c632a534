// Package keyword provides a Bleve full-text index over ingested course text.
package keyword

import (
	"context"
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/hyperjump/mokuji/internal/models"
)

// Result is one keyword search hit.
type Result struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// courseDoc is the shape indexed per course.
type courseDoc struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Index wraps a Bleve index keyed by course ID.
type Index struct {
	index bleve.Index
}

// NewIndex creates or opens a Bleve index at path. An existing index is
// reopened and reused; remove the directory to force a rebuild after a
// mapping change.
func NewIndex(path string) (*Index, error) {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) so course terms
	// match exactly as typed.
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("title", textFieldMapping)
	docMapping.AddFieldMappingsAt("content", textFieldMapping)
	im.DefaultMapping = docMapping

	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &Index{index: index}, nil
	}

	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &Index{index: index}, nil
}

// IndexCourse indexes a course's title and extracted text under its ID.
func (i *Index) IndexCourse(ctx context.Context, course *models.Course) error {
	return i.index.Index(course.ID, courseDoc{Title: course.Title, Content: course.Content})
}

// Delete removes a course from the index.
func (i *Index) Delete(ctx context.Context, id string) error {
	return i.index.Delete(id)
}

// Search runs a match query over title and content and returns up to limit hits.
func (i *Index) Search(ctx context.Context, query string, limit int) ([]*Result, error) {
	if limit <= 0 {
		limit = 10
	}
	req := bleve.NewSearchRequest(bleve.NewMatchQuery(query))
	req.Size = limit
	res, err := i.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("keyword search failed: %w", err)
	}
	results := make([]*Result, 0, len(res.Hits))
	for _, hit := range res.Hits {
		results = append(results, &Result{ID: hit.ID, Score: hit.Score})
	}
	return results, nil
}

// Close closes the underlying index.
func (i *Index) Close() error {
	return i.index.Close()
}
