// Package keyword provides Bleve-backed keyword search over initiatives.
package keyword

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"

	"github.com/citylab/agora/internal/models"
)

// Result is a single keyword search hit.
type Result struct {
	ID    string
	Score float64
}

// Index defines keyword search operations over initiatives.
type Index interface {
	Index(ctx context.Context, in *models.Initiative) error
	Search(ctx context.Context, query string, limit int) ([]*Result, error)
	Delete(ctx context.Context, id string) error
	DocCount() (uint64, error)
	Close() error
}

// initiativeDoc is the shape stored in Bleve. Only searchable fields are kept;
// full records live in SQLite.
type initiativeDoc struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

// BleveIndex implements Index using Bleve.
type BleveIndex struct {
	index bleve.Index
}

// NewBleveIndex creates or opens a Bleve index at path. An existing index is
// opened and reused. If the mapping changes in code, remove the index
// directory to force a rebuild.
func NewBleveIndex(path string) (*BleveIndex, error) {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) so exact words
	// in Estonian or English titles match without stemmer surprises.
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("title", textFieldMapping)
	docMapping.AddFieldMappingsAt("description", textFieldMapping)
	statusFieldMapping := bleve.NewKeywordFieldMapping()
	docMapping.AddFieldMappingsAt("status", statusFieldMapping)
	im.AddDocumentMapping("initiative", docMapping)
	im.DefaultType = "initiative"
	im.DefaultMapping = docMapping

	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}

	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// Index indexes an initiative's searchable fields under its ID. Re-indexing
// the same ID replaces the previous entry.
func (b *BleveIndex) Index(ctx context.Context, in *models.Initiative) error {
	return b.index.Index(in.ID, initiativeDoc{
		Title:       in.Title,
		Description: in.Description,
		Status:      in.Status,
	})
}

// Search runs match queries over title and description and returns up to
// limit hits ordered by score. Title matches are weighted above description
// matches.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int) ([]*Result, error) {
	if limit <= 0 {
		limit = 20
	}
	titleQuery := bleve.NewMatchQuery(query)
	titleQuery.SetField("title")
	titleQuery.SetBoost(2.0)
	descQuery := bleve.NewMatchQuery(query)
	descQuery.SetField("description")
	q := bleve.NewDisjunctionQuery(titleQuery, descQuery)

	req := bleve.NewSearchRequest(q)
	req.Size = limit
	results, err := b.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := make([]*Result, len(results.Hits))
	for i, hit := range results.Hits {
		out[i] = &Result{ID: hit.ID, Score: hit.Score}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

// Delete removes an initiative from the index. Deleting an absent ID is not
// an error.
func (b *BleveIndex) Delete(ctx context.Context, id string) error {
	return b.index.Delete(id)
}

// DocCount returns the number of indexed initiatives.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the underlying Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
