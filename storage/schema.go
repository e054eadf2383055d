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

	"github.com/poiesic/embedkit/embedding"
)

// FieldType is the type of a table column.
type FieldType uint8

const (
	FieldString FieldType = iota + 1
	FieldInt64
	FieldFloat64
	FieldBool
	FieldVector
)

func (t FieldType) String() string {
	switch t {
	case FieldString:
		return "string"
	case FieldInt64:
		return "int64"
	case FieldFloat64:
		return "float64"
	case FieldBool:
		return "bool"
	case FieldVector:
		return "vector"
	default:
		return fmt.Sprintf("FieldType(%d)", uint8(t))
	}
}

// Field is a named, typed column. Dims is only meaningful for vectors.
type Field struct {
	Name string
	Type FieldType
	Dims int
}

// StringField declares a string column.
func StringField(name string) Field { return Field{Name: name, Type: FieldString} }

// Int64Field declares an int64 column.
func Int64Field(name string) Field { return Field{Name: name, Type: FieldInt64} }

// Float64Field declares a float64 column.
func Float64Field(name string) Field { return Field{Name: name, Type: FieldFloat64} }

// BoolField declares a bool column.
func BoolField(name string) Field { return Field{Name: name, Type: FieldBool} }

// VectorField declares a fixed size float32 vector column.
func VectorField(name string, dims int) Field {
	return Field{Name: name, Type: FieldVector, Dims: dims}
}

// Schema describes the columns of a table and which vector columns are
// derived from which source columns. Every schema has a string "id" column.
type Schema struct {
	Fields     []Field
	Embeddings []embedding.ColumnConfig
}

// NewSchema creates a schema from fields.
func NewSchema(fields ...Field) *Schema {
	return &Schema{Fields: fields}
}

// WithEmbedding derives vector column vectorColumn from sourceColumn using fn.
// If the schema has no field named vectorColumn one is added with fn.NDims().
func (s *Schema) WithEmbedding(fn embedding.Function, sourceColumn, vectorColumn string) *Schema {
	col := embedding.NewColumnConfig(fn, sourceColumn, vectorColumn)
	if _, ok := s.Field(col.VectorColumn); !ok && fn != nil {
		s.Fields = append(s.Fields, VectorField(col.VectorColumn, fn.NDims()))
	}
	s.Embeddings = append(s.Embeddings, col)
	return s
}

// Field returns the field called name.
func (s *Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Embedding returns the embedding config producing vectorColumn.
// An empty vectorColumn selects the first one.
func (s *Schema) Embedding(vectorColumn string) (embedding.ColumnConfig, bool) {
	for _, col := range s.Embeddings {
		if vectorColumn == "" || col.VectorColumn == vectorColumn {
			return col, true
		}
	}
	return embedding.ColumnConfig{}, false
}

// VectorColumns returns the names of all vector fields in declaration order.
func (s *Schema) VectorColumns() []string {
	var names []string
	for _, f := range s.Fields {
		if f.Type == FieldVector {
			names = append(names, f.Name)
		}
	}
	return names
}

// Validate checks field names, types and embedding bindings.
func (s *Schema) Validate() error {
	if s == nil || len(s.Fields) == 0 {
		return fmt.Errorf("%w: schema has no fields", ErrSchemaMismatch)
	}

	seen := make(map[string]struct{}, len(s.Fields))
	for _, f := range s.Fields {
		switch {
		case f.Name == "":
			return fmt.Errorf("%w: field with empty name", ErrSchemaMismatch)
		case IsReservedColumn(f.Name):
			return fmt.Errorf("%w: %q is a reserved column name", ErrSchemaMismatch, f.Name)
		case f.Type < FieldString || f.Type > FieldVector:
			return fmt.Errorf("%w: field %q has unknown type %d", ErrSchemaMismatch, f.Name, f.Type)
		case f.Type == FieldVector && f.Dims <= 0:
			return fmt.Errorf("%w: vector field %q needs positive dims", ErrSchemaMismatch, f.Name)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("%w: duplicate field %q", ErrSchemaMismatch, f.Name)
		}
		seen[f.Name] = struct{}{}
	}

	if id, ok := s.Field(IDColumn); !ok || id.Type != FieldString {
		return fmt.Errorf("%w: schema needs a string %q field", ErrSchemaMismatch, IDColumn)
	}

	for _, col := range s.Embeddings {
		if err := col.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrSchemaMismatch, err)
		}
		src, ok := s.Field(col.SourceColumn)
		if !ok || src.Type != FieldString {
			return fmt.Errorf("%w: source column %q must be a string field", ErrSchemaMismatch, col.SourceColumn)
		}
		vec, ok := s.Field(col.VectorColumn)
		if !ok || vec.Type != FieldVector {
			return fmt.Errorf("%w: vector column %q must be a vector field", ErrSchemaMismatch, col.VectorColumn)
		}
		if vec.Dims != col.Function.NDims() {
			return fmt.Errorf("%w: vector column %q has %d dims, function %s produces %d",
				ErrSchemaMismatch, col.VectorColumn, vec.Dims, col.Function.Name(), col.Function.NDims())
		}
	}
	return nil
}

// TextSchema returns the id/text/vector schema used for evaluation tables.
func TextSchema(fn embedding.Function) *Schema {
	return NewSchema(StringField(IDColumn), StringField(TextColumn)).
		WithEmbedding(fn, TextColumn, embedding.DefaultVectorColumn)
}
