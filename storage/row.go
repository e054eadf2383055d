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
	"fmt"
	"maps"

	"github.com/poiesic/embedkit/embedding"
)

// Well known column names.
const (
	IDColumn       = "id"
	TextColumn     = "text"
	DistanceColumn = "_distance"
	ScoreColumn    = "_score"
)

// IsReservedColumn reports whether name is computed by searches.
func IsReservedColumn(name string) bool {
	return name == DistanceColumn || name == ScoreColumn
}

// Row is one table row keyed by column name.
type Row map[string]any

// ID returns the row id or "" if missing.
func (r Row) ID() string {
	id, _ := r[IDColumn].(string)
	return id
}

// String returns a string column or "" if missing.
func (r Row) String(column string) string {
	s, _ := r[column].(string)
	return s
}

// Vector returns a vector column or nil if missing.
func (r Row) Vector(column string) embedding.Vector {
	v, _ := r[column].(embedding.Vector)
	return v
}

// Distance returns the _distance of a search result.
func (r Row) Distance() float64 {
	d, _ := r[DistanceColumn].(float64)
	return d
}

// Clone returns a shallow copy of r.
func (r Row) Clone() Row {
	return maps.Clone(r)
}

// Conform checks r against schema and normalizes its values: integers
// become int64, float32 becomes float64 and []float64 becomes a vector.
// Missing columns are allowed except id.
func Conform(schema *Schema, r Row) (Row, error) {
	out := make(Row, len(r))
	for name, value := range r {
		field, ok := schema.Field(name)
		if !ok {
			return nil, fmt.Errorf("%w: unknown column %q", ErrSchemaMismatch, name)
		}
		if value == nil {
			continue
		}
		v, err := conformValue(field, value)
		if err != nil {
			return nil, err
		}
		out[name] = v
	}
	if out.ID() == "" {
		return nil, fmt.Errorf("%w: row needs a non-empty %q", ErrSchemaMismatch, IDColumn)
	}
	return out, nil
}

func conformValue(field Field, value any) (any, error) {
	mismatch := func() error {
		return fmt.Errorf("%w: column %q expects %s, got %T", ErrSchemaMismatch, field.Name, field.Type, value)
	}

	switch field.Type {
	case FieldString:
		if s, ok := value.(string); ok {
			return s, nil
		}
	case FieldInt64:
		switch n := value.(type) {
		case int:
			return int64(n), nil
		case int32:
			return int64(n), nil
		case int64:
			return n, nil
		}
	case FieldFloat64:
		switch n := value.(type) {
		case float32:
			return float64(n), nil
		case float64:
			return n, nil
		}
	case FieldBool:
		if b, ok := value.(bool); ok {
			return b, nil
		}
	case FieldVector:
		var vec embedding.Vector
		switch v := value.(type) {
		case embedding.Vector:
			vec = v
		case []float64:
			vec = make(embedding.Vector, len(v))
			for i, x := range v {
				vec[i] = float32(x)
			}
		default:
			return nil, mismatch()
		}
		if len(vec) != field.Dims {
			return nil, fmt.Errorf("%w: column %q expects %d dims, got %d", ErrSchemaMismatch, field.Name, field.Dims, len(vec))
		}
		return vec, nil
	}
	return nil, mismatch()
}
