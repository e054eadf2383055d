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

package storage

import (
	"context"
	"fmt"
	"slices"

	"github.com/poiesic/embedkit/embedding"
)

// DefaultLimit is the number of rows a search returns unless Limit is set.
const DefaultLimit = 10

// Predicate filters rows before ranking.
type Predicate func(Row) bool

// QueryExecutor runs a built query. Table implementations provide it.
type QueryExecutor interface {
	ExecuteQuery(ctx context.Context, req QueryRequest) ([]Row, error)
}

// QueryRequest is the resolved form of a Query.
type QueryRequest struct {
	Text         string
	Vector       embedding.Vector
	VectorColumn string
	Limit        int
	Columns      []string
	Where        Predicate
}

// Query is a fluent nearest neighbour query builder.
type Query struct {
	exec QueryExecutor
	req  QueryRequest
	err  error
}

// NewQuery builds a query for exec. query must be a string, a vector or a
// []float64.
func NewQuery(exec QueryExecutor, query any) *Query {
	q := &Query{exec: exec, req: QueryRequest{Limit: DefaultLimit}}
	switch v := query.(type) {
	case string:
		q.req.Text = v
	case embedding.Vector:
		q.req.Vector = v
	case []float64:
		q.req.Vector = make(embedding.Vector, len(v))
		for i, x := range v {
			q.req.Vector[i] = float32(x)
		}
	default:
		q.err = fmt.Errorf("%w: unsupported query type %T", ErrInvalidQuery, query)
	}
	return q
}

// Limit sets the maximum number of rows returned.
func (q *Query) Limit(n int) *Query {
	if n <= 0 {
		q.err = fmt.Errorf("%w: limit must be positive, got %d", ErrInvalidQuery, n)
		return q
	}
	q.req.Limit = n
	return q
}

// Select restricts the returned columns. id and _distance are always kept.
func (q *Query) Select(columns ...string) *Query {
	q.req.Columns = slices.Clone(columns)
	return q
}

// Where keeps only rows matching pred.
func (q *Query) Where(pred Predicate) *Query {
	q.req.Where = pred
	return q
}

// VectorColumn picks the vector column to search. Default is the first
// embedding bound column, or the only vector column.
func (q *Query) VectorColumn(name string) *Query {
	q.req.VectorColumn = name
	return q
}

// Request returns the resolved request.
func (q *Query) Request() QueryRequest {
	return q.req
}

// ToList runs the query and returns rows ordered by ascending _distance.
func (q *Query) ToList(ctx context.Context) ([]Row, error) {
	if q.err != nil {
		return nil, q.err
	}
	return q.exec.ExecuteQuery(ctx, q.req)
}

// Project keeps only columns plus id and the computed search columns.
// An empty columns list keeps everything.
func Project(r Row, columns []string) Row {
	if len(columns) == 0 {
		return r
	}
	out := make(Row, len(columns)+2)
	for _, c := range columns {
		if v, ok := r[c]; ok {
			out[c] = v
		}
	}
	for _, c := range []string{IDColumn, DistanceColumn, ScoreColumn} {
		if v, ok := r[c]; ok {
			out[c] = v
		}
	}
	return out
}
