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

import "errors"

var (
	// ErrTableExists indicates that CreateTable was called in create mode
	// for a table that already exists.
	ErrTableExists = errors.New("table already exists")

	// ErrTableNotFound indicates that the requested table does not exist.
	ErrTableNotFound = errors.New("table not found")

	// ErrSchemaMismatch indicates a row or schema that does not fit the table.
	ErrSchemaMismatch = errors.New("schema mismatch")

	// ErrStorageClosed indicates that the storage backend is closed.
	ErrStorageClosed = errors.New("storage is closed")

	// ErrInvalidQuery indicates invalid query parameters.
	ErrInvalidQuery = errors.New("invalid query parameters")

	// ErrInvalidCreateMode indicates an unknown table create mode.
	ErrInvalidCreateMode = errors.New("invalid create mode")

	// ErrNoFTSIndex indicates a text search on a table without an FTS index.
	ErrNoFTSIndex = errors.New("table has no full text index")

	// ErrSerializationFailed indicates a serialization/deserialization failure.
	ErrSerializationFailed = errors.New("serialization failed")

	// ErrTruncatedData indicates that data was truncated during reading.
	ErrTruncatedData = errors.New("truncated data")
)
