// Package search maintains an in-memory full-text index over the
// resolved post list.
package search

import (
	"fmt"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/cespare/xxhash/v2"

	"github.com/narkins/contentd/internal/models"
)

// DefaultLimit is the number of results returned when the caller does
// not ask for a specific count.
const DefaultLimit = 10

// Result is a single search hit.
type Result struct {
	Slug    string  `json:"slug"`
	Title   string  `json:"title"`
	Excerpt string  `json:"excerpt"`
	Date    string  `json:"date"`
	Score   float64 `json:"score"`
}

type document struct {
	Slug     string
	Title    string
	Excerpt  string
	Content  string
	Keywords string
	Date     string
}

// Index wraps a bleve index rebuilt whenever the post list changes.
type Index struct {
	mu          sync.RWMutex
	idx         bleve.Index
	fingerprint uint64
	docs        map[string]models.Post
}

// New creates an empty in-memory index.
func New() (*Index, error) {
	idx, err := bleve.NewMemOnly(buildMapping())
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}
	return &Index{idx: idx, docs: make(map[string]models.Post)}, nil
}

// buildMapping boosts titles with the English analyzer for better
// stemming; everything else uses the standard analyzer.
func buildMapping() mapping.IndexMapping {
	titleField := bleve.NewTextFieldMapping()
	titleField.Analyzer = "en"

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("Title", titleField)
	docMapping.AddFieldMappingsAt("Excerpt", bleve.NewTextFieldMapping())
	docMapping.AddFieldMappingsAt("Content", bleve.NewTextFieldMapping())
	docMapping.AddFieldMappingsAt("Keywords", bleve.NewTextFieldMapping())

	indexMapping := bleve.NewIndexMapping()
	indexMapping.AddDocumentMapping("_default", docMapping)
	return indexMapping
}

// Close closes the underlying index.
func (i *Index) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.idx.Close()
}

// Refresh reindexes the given posts when they differ from the last
// indexed set. The comparison is a cheap hash over slugs and dates, so
// refreshing with an unchanged list is nearly free.
func (i *Index) Refresh(posts []models.Post) error {
	fp := fingerprint(posts)

	i.mu.RLock()
	current := i.fingerprint
	i.mu.RUnlock()
	if current == fp {
		return nil
	}

	fresh, err := bleve.NewMemOnly(buildMapping())
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}

	batch := fresh.NewBatch()
	docs := make(map[string]models.Post, len(posts))
	for _, p := range posts {
		docs[p.Slug] = p
		doc := document{
			Slug:     p.Slug,
			Title:    p.Title,
			Excerpt:  p.Excerpt,
			Content:  p.Content,
			Keywords: p.Keywords,
			Date:     p.Date,
		}
		if err := batch.Index(p.Slug, doc); err != nil {
			fresh.Close()
			return fmt.Errorf("index %s: %w", p.Slug, err)
		}
	}
	if err := fresh.Batch(batch); err != nil {
		fresh.Close()
		return fmt.Errorf("apply batch: %w", err)
	}

	i.mu.Lock()
	old := i.idx
	i.idx = fresh
	i.fingerprint = fp
	i.docs = docs
	i.mu.Unlock()

	return old.Close()
}

// Search runs a query-string query (supports quotes, boolean
// operators, fuzzy ~) and returns the top matches.
func (i *Index) Search(query string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	i.mu.RLock()
	defer i.mu.RUnlock()

	q := bleve.NewQueryStringQuery(query)
	req := bleve.NewSearchRequestOptions(q, limit, 0, false)

	res, err := i.idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	results := make([]Result, 0, len(res.Hits))
	for _, hit := range res.Hits {
		post, ok := i.docs[hit.ID]
		if !ok {
			continue
		}
		results = append(results, Result{
			Slug:    post.Slug,
			Title:   post.Title,
			Excerpt: post.Excerpt,
			Date:    post.Date,
			Score:   hit.Score,
		})
	}
	return results, nil
}

func fingerprint(posts []models.Post) uint64 {
	h := xxhash.New()
	for _, p := range posts {
		h.WriteString(p.Slug)
		h.WriteString("\x00")
		h.WriteString(p.Date)
		h.WriteString("\x00")
		h.WriteString(p.LastModified)
		h.WriteString("\x1e")
	}
	return h.Sum64()
}
