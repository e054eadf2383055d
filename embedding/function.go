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

package embedding

import (
	"context"
	"fmt"
)

// Vector is a single embedding.
type Vector = []float32

// Function turns text into vectors for a table column.
//
// Implementations must be safe for concurrent use. Config must return a
// comparable value holding every constructor-bound setting.
type Function interface {
	// Name is the registry type name of the function.
	Name() string

	// Config returns the configuration the function was built with.
	Config() any

	// ComputeQueryEmbeddings embeds a search query.
	ComputeQueryEmbeddings(ctx context.Context, query string) ([]Vector, error)

	// ComputeSourceEmbeddings embeds source column values. input may be a
	// string, a []string, a StringArray or a ChunkedStringArray.
	ComputeSourceEmbeddings(ctx context.Context, input any) ([]Vector, error)

	// NDims is the length of every produced vector.
	NDims() int
}

// Generator is the provider side of a text embedding function.
type Generator interface {
	// GenerateEmbeddings returns one vector per text, in input order.
	GenerateEmbeddings(ctx context.Context, texts []string) ([]Vector, error)

	// NDims is the length of every generated vector.
	NDims() int
}

// DefaultVectorColumn is the vector column name used when none is given.
const DefaultVectorColumn = "vector"

// ColumnConfig binds a Function to the column it reads from and the
// column it fills.
type ColumnConfig struct {
	SourceColumn string
	VectorColumn string
	Function     Function
}

// NewColumnConfig binds fn to source and vector columns. An empty vector
// column defaults to DefaultVectorColumn.
func NewColumnConfig(fn Function, sourceColumn, vectorColumn string) ColumnConfig {
	if vectorColumn == "" {
		vectorColumn = DefaultVectorColumn
	}
	return ColumnConfig{
		SourceColumn: sourceColumn,
		VectorColumn: vectorColumn,
		Function:     fn,
	}
}

// Validate checks the binding is usable.
func (c ColumnConfig) Validate() error {
	switch {
	case c.Function == nil:
		return fmt.Errorf("%w: function is required", ErrInvalidColumnConfig)
	case c.SourceColumn == "":
		return fmt.Errorf("%w: source column is required", ErrInvalidColumnConfig)
	case c.VectorColumn == "":
		return fmt.Errorf("%w: vector column is required", ErrInvalidColumnConfig)
	case c.SourceColumn == c.VectorColumn:
		return fmt.Errorf("%w: source and vector column are both %q", ErrInvalidColumnConfig, c.SourceColumn)
	case c.Function.NDims() <= 0:
		return fmt.Errorf("%w: function %s reports %d dimensions", ErrInvalidColumnConfig, c.Function.Name(), c.Function.NDims())
	}
	return nil
}
