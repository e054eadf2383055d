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

package badger

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/poiesic/embedkit/embedding"
	"github.com/poiesic/embedkit/storage"
	"github.com/poiesic/embedkit/storage/bleve"
)

// ErrTableDropped is returned by operations on a table handle whose table
// was dropped, overwritten or whose database was closed.
var ErrTableDropped = errors.New("table handle is no longer valid")

// Table is a badger backed storage.Table.
type Table struct {
	db       *Database
	name     string
	schema   *storage.Schema
	metadata map[string]string

	mu      sync.RWMutex
	fts     *bleve.Index
	dropped bool
}

var (
	_ storage.Table         = (*Table)(nil)
	_ storage.QueryExecutor = (*Table)(nil)
)

func newTable(db *Database, name string, schema *storage.Schema, metadata map[string]string) *Table {
	if metadata == nil {
		metadata = map[string]string{}
	}
	return &Table{
		db:       db,
		name:     name,
		schema:   schema,
		metadata: maps.Clone(metadata),
	}
}

// invalidate marks the handle unusable and closes its index.
func (t *Table) invalidate() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dropped = true
	if t.fts == nil {
		return nil
	}
	err := t.fts.Close()
	t.fts = nil
	return err
}

func (t *Table) check() error {
	if t.dropped {
		return fmt.Errorf("%w: %s", ErrTableDropped, t.name)
	}
	return nil
}

// Name returns the table name.
func (t *Table) Name() string { return t.name }

// Schema returns the table schema.
func (t *Table) Schema() *storage.Schema { return t.schema }

// Add conforms rows to the schema, computes missing embedding vectors and
// writes everything in one batch.
func (t *Table) Add(ctx context.Context, rows []storage.Row) error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if err := t.check(); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	conformed := make([]storage.Row, len(rows))
	for i, r := range rows {
		c, err := storage.Conform(t.schema, r)
		if err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
		conformed[i] = c
	}

	for _, col := range t.schema.Embeddings {
		if err := t.embedColumn(ctx, col, conformed); err != nil {
			return err
		}
	}

	entries := make([]entry, len(conformed))
	for i, r := range conformed {
		data, err := storage.MarshalRow(t.schema, r)
		if err != nil {
			return fmt.Errorf("row %s: %w", r.ID(), err)
		}
		entries[i] = entry{key: makeRowKey(t.name, r.ID()), value: data}
	}
	if err := t.db.backend.WriteBatch(entries); err != nil {
		t.db.logger.Error("failed to write rows", "table", t.name, "rows", len(entries), "error", err)
		return fmt.Errorf("add rows to %s: %w", t.name, err)
	}

	if t.fts != nil {
		if err := t.indexText(ctx, conformed); err != nil {
			return err
		}
	}

	t.db.logger.Debug("added rows", "table", t.name, "rows", len(conformed))
	return nil
}

// embedColumn fills col.VectorColumn for rows that lack it.
func (t *Table) embedColumn(ctx context.Context, col embedding.ColumnConfig, rows []storage.Row) error {
	var (
		pending []int
		texts   []string
	)
	for i, r := range rows {
		if _, ok := r[col.VectorColumn]; ok {
			continue
		}
		pending = append(pending, i)
		texts = append(texts, r.String(col.SourceColumn))
	}
	if len(pending) == 0 {
		return nil
	}

	vectors, err := col.Function.ComputeSourceEmbeddings(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed %s.%s: %w", t.name, col.SourceColumn, err)
	}
	if len(vectors) != len(pending) {
		return fmt.Errorf("%w: embed %s.%s: %d vectors for %d rows",
			embedding.ErrDimensionMismatch, t.name, col.SourceColumn, len(vectors), len(pending))
	}

	field, _ := t.schema.Field(col.VectorColumn)
	for j, i := range pending {
		if len(vectors[j]) != field.Dims {
			return fmt.Errorf("%w: column %q expects %d dims, got %d",
				storage.ErrSchemaMismatch, col.VectorColumn, field.Dims, len(vectors[j]))
		}
		rows[i][col.VectorColumn] = vectors[j]
	}
	return nil
}

// Search starts a nearest neighbour query.
func (t *Table) Search(query any) *storage.Query {
	return storage.NewQuery(t, query)
}

// ExecuteQuery ranks all rows by cosine distance to the query vector.
// Ties are broken by id.
func (t *Table) ExecuteQuery(ctx context.Context, req storage.QueryRequest) ([]storage.Row, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if err := t.check(); err != nil {
		return nil, err
	}

	vectorColumn, vector, err := t.resolveQuery(ctx, req)
	if err != nil {
		return nil, err
	}

	var results []storage.Row
	err = t.scan(ctx, func(r storage.Row) error {
		stored, ok := r[vectorColumn].(embedding.Vector)
		if !ok {
			return nil
		}
		if req.Where != nil && !req.Where(r) {
			return nil
		}
		r[storage.DistanceColumn] = storage.CosineDistance(vector, stored)
		results = append(results, r)
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(results, func(a, b storage.Row) int {
		if c := cmp.Compare(a.Distance(), b.Distance()); c != 0 {
			return c
		}
		return strings.Compare(a.ID(), b.ID())
	})
	if len(results) > req.Limit {
		results = results[:req.Limit]
	}
	for i, r := range results {
		results[i] = storage.Project(r, req.Columns)
	}
	if results == nil {
		results = []storage.Row{}
	}
	return results, nil
}

func (t *Table) resolveQuery(ctx context.Context, req storage.QueryRequest) (string, embedding.Vector, error) {
	if req.Vector != nil {
		column := req.VectorColumn
		if column == "" {
			columns := t.schema.VectorColumns()
			if len(columns) == 0 {
				return "", nil, fmt.Errorf("%w: table %s has no vector column", storage.ErrInvalidQuery, t.name)
			}
			column = columns[0]
		}
		field, ok := t.schema.Field(column)
		if !ok || field.Type != storage.FieldVector {
			return "", nil, fmt.Errorf("%w: %q is not a vector column", storage.ErrInvalidQuery, column)
		}
		if len(req.Vector) != field.Dims {
			return "", nil, fmt.Errorf("%w: query has %d dims, column %q has %d",
				storage.ErrInvalidQuery, len(req.Vector), column, field.Dims)
		}
		return column, req.Vector, nil
	}

	col, ok := t.schema.Embedding(req.VectorColumn)
	if !ok {
		return "", nil, fmt.Errorf("%w: table %s has no embedding function to embed a text query",
			storage.ErrInvalidQuery, t.name)
	}
	vectors, err := col.Function.ComputeQueryEmbeddings(ctx, req.Text)
	if err != nil {
		return "", nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return "", nil, fmt.Errorf("%w: query produced %d vectors", embedding.ErrDimensionMismatch, len(vectors))
	}
	return col.VectorColumn, vectors[0], nil
}

// scan decodes every row of the table in key order.
func (t *Table) scan(ctx context.Context, fn func(storage.Row) error) error {
	return t.db.backend.ScanPrefix(makeRowPrefix(t.name), func(_, value []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		r, err := storage.UnmarshalRow(t.schema, value)
		if err != nil {
			return err
		}
		return fn(r)
	})
}

// Count returns the number of rows.
func (t *Table) Count(ctx context.Context) (int, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if err := t.check(); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return t.db.backend.CountPrefix(makeRowPrefix(t.name))
}

// CreateFTSIndex indexes fields of all current rows and keeps the index
// current on later Add calls. Calling it again replaces the field set.
func (t *Table) CreateFTSIndex(ctx context.Context, fields ...string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.check(); err != nil {
		return err
	}
	if len(fields) == 0 {
		return fmt.Errorf("%w: no fields to index", storage.ErrInvalidQuery)
	}
	for _, f := range fields {
		field, ok := t.schema.Field(f)
		if !ok || field.Type != storage.FieldString {
			return fmt.Errorf("%w: %q is not a string column", storage.ErrSchemaMismatch, f)
		}
	}

	if t.fts != nil {
		if err := t.fts.Destroy(); err != nil {
			return fmt.Errorf("replace index of %s: %w", t.name, err)
		}
		t.fts = nil
	}

	idx, err := bleve.Open(t.db.ftsPath(t.name), fields)
	if err != nil {
		return fmt.Errorf("create index of %s: %w", t.name, err)
	}
	t.fts = idx

	var rows []storage.Row
	if err := t.scan(ctx, func(r storage.Row) error {
		rows = append(rows, r)
		return nil
	}); err != nil {
		return err
	}
	if err := t.indexText(ctx, rows); err != nil {
		return err
	}

	t.metadata[metadataFTSFields] = strings.Join(fields, ",")
	def := storage.TableDefinition{Name: t.name, Fields: t.schema.Fields, Metadata: t.metadata}
	if err := t.db.saveDefinition(def); err != nil {
		return err
	}

	t.db.logger.Info("created full text index", "table", t.name, "fields", fields, "rows", len(rows))
	return nil
}

func (t *Table) indexText(ctx context.Context, rows []storage.Row) error {
	fields := t.fts.Fields()
	docs := make(map[string]map[string]string, len(rows))
	for _, r := range rows {
		values := make(map[string]string, len(fields))
		for _, f := range fields {
			values[f] = r.String(f)
		}
		docs[r.ID()] = values
	}
	if err := t.fts.IndexDocuments(ctx, docs); err != nil {
		return fmt.Errorf("index rows of %s: %w", t.name, err)
	}
	return nil
}

// SearchText runs a full text query and returns full rows with _score.
func (t *Table) SearchText(ctx context.Context, query string, limit int) ([]storage.Row, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if err := t.check(); err != nil {
		return nil, err
	}
	if t.fts == nil {
		return nil, fmt.Errorf("%w: %s", storage.ErrNoFTSIndex, t.name)
	}
	if limit <= 0 {
		limit = storage.DefaultLimit
	}

	hits, err := t.fts.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	rows := make([]storage.Row, 0, len(hits))
	err = t.db.backend.WithTx(func(tx *badger.Txn) error {
		for _, hit := range hits {
			item, err := tx.Get(makeRowKey(t.name, hit.ID))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			err = item.Value(func(val []byte) error {
				r, err := storage.UnmarshalRow(t.schema, val)
				if err != nil {
					return err
				}
				r[storage.ScoreColumn] = hit.Score
				rows = append(rows, r)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
