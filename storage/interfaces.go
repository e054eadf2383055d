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
)

// CreateMode controls what CreateTable does when the table exists.
type CreateMode string

const (
	// ModeCreate fails with ErrTableExists.
	ModeCreate CreateMode = "create"
	// ModeOverwrite drops the existing table and its rows.
	ModeOverwrite CreateMode = "overwrite"
	// ModeExistOK returns the existing table if its schema has the same fields.
	ModeExistOK CreateMode = "exist_ok"
)

// Validate reports ErrInvalidCreateMode for unknown modes.
func (m CreateMode) Validate() error {
	switch m {
	case ModeCreate, ModeOverwrite, ModeExistOK:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidCreateMode, m)
}

// Connector opens the database at path.
type Connector func(ctx context.Context, path string) (Database, error)

// Database is a collection of named tables.
type Database interface {
	// CreateTable creates a table with schema. An empty mode means ModeCreate.
	CreateTable(ctx context.Context, name string, schema *Schema, mode CreateMode) (Table, error)

	// OpenTable opens an existing table.
	// Returns ErrTableNotFound if it doesn't exist.
	OpenTable(ctx context.Context, name string) (Table, error)

	// TableNames lists tables in name order.
	TableNames(ctx context.Context) ([]string, error)

	// DropTable removes a table and all its rows.
	// Returns ErrTableNotFound if it doesn't exist.
	DropTable(ctx context.Context, name string) error

	// Close releases the database. Tables opened from it become unusable.
	Close() error
}

// Table holds rows of one schema.
type Table interface {
	// Name returns the table name.
	Name() string

	// Schema returns the table schema, including embedding bindings.
	Schema() *Schema

	// Add inserts rows in one write batch. Vector columns bound to an
	// embedding function are computed from their source column when the
	// row does not carry them. Rows with an existing id replace it.
	Add(ctx context.Context, rows []Row) error

	// Search starts a nearest neighbour query. query is either a string,
	// embedded with the table's embedding function, or a vector.
	Search(query any) *Query

	// Count returns the number of rows.
	Count(ctx context.Context) (int, error)

	// CreateFTSIndex builds a full text index over string fields. Later
	// Add calls keep it current.
	CreateFTSIndex(ctx context.Context, fields ...string) error

	// SearchText runs a full text query and returns rows with _score,
	// best first.
	SearchText(ctx context.Context, query string, limit int) ([]Row, error)
}
