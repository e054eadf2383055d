// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package bleve provides the full text index behind Table.CreateFTSIndex,
// one bleve index per table.
package bleve

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
)

// ErrNoFields is returned when an index is opened without fields.
var ErrNoFields = errors.New("full text index needs at least one field")

// Index is a full text index over a fixed set of string fields.
type Index struct {
	index  bleve.Index
	path   string
	fields []string
}

// Hit is one search result.
type Hit struct {
	ID    string
	Score float64
}

// Open creates or opens the index at path. An empty path keeps the index
// in memory.
func Open(path string, fields []string) (*Index, error) {
	if len(fields) == 0 {
		return nil, ErrNoFields
	}
	fields = slices.Clone(fields)

	if path == "" {
		idx, err := bleve.NewMemOnly(buildIndexMapping(fields))
		if err != nil {
			return nil, fmt.Errorf("creating index: %w", err)
		}
		return &Index{index: idx, fields: fields}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	idx, err := bleve.Open(path)
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		idx, err = bleve.New(path, buildIndexMapping(fields))
		if err != nil {
			return nil, fmt.Errorf("creating index: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("opening index: %w", err)
	}

	return &Index{index: idx, path: path, fields: fields}, nil
}

// buildIndexMapping maps every field as analyzed text.
func buildIndexMapping(fields []string) mapping.IndexMapping {
	docMapping := bleve.NewDocumentMapping()

	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = standard.Name
	for _, f := range fields {
		docMapping.AddFieldMappingsAt(f, textFieldMapping)
	}

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = standard.Name
	return indexMapping
}

// Fields returns the indexed field names.
func (x *Index) Fields() []string {
	return slices.Clone(x.fields)
}

// IndexDocuments adds or replaces documents. docs maps an id to the field
// values of that document; fields outside Fields are ignored.
func (x *Index) IndexDocuments(ctx context.Context, docs map[string]map[string]string) error {
	batch := x.index.NewBatch()
	for id, values := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}
		doc := make(map[string]any, len(x.fields))
		for _, f := range x.fields {
			if v, ok := values[f]; ok {
				doc[f] = v
			}
		}
		if err := batch.Index(id, doc); err != nil {
			return fmt.Errorf("indexing document %s: %w", id, err)
		}
	}
	if err := x.index.Batch(batch); err != nil {
		return fmt.Errorf("indexing batch: %w", err)
	}
	return nil
}

// Delete removes a document from the index.
func (x *Index) Delete(ctx context.Context, id string) error {
	if err := x.index.Delete(id); err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	return nil
}

// Search runs a match query over all fields and returns hits best first.
func (x *Index) Search(ctx context.Context, text string, limit int) ([]Hit, error) {
	text = strings.TrimSpace(text)
	if text == "" || limit <= 0 {
		return []Hit{}, nil
	}

	q := bleve.NewDisjunctionQuery()
	for _, f := range x.fields {
		m := bleve.NewMatchQuery(text)
		m.SetField(f)
		q.AddQuery(m)
	}

	req := bleve.NewSearchRequestOptions(q, limit, 0, false)
	result, err := x.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("searching: %w", err)
	}

	hits := make([]Hit, 0, len(result.Hits))
	for _, hit := range result.Hits {
		hits = append(hits, Hit{ID: hit.ID, Score: hit.Score})
	}
	return hits, nil
}

// Count returns the total number of documents in the index.
func (x *Index) Count() (uint64, error) {
	return x.index.DocCount()
}

// Close closes the index.
func (x *Index) Close() error {
	return x.index.Close()
}

// Destroy closes the index and removes it from disk.
func (x *Index) Destroy() error {
	if err := x.index.Close(); err != nil {
		return err
	}
	if x.path == "" {
		return nil
	}
	return os.RemoveAll(x.path)
}
