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


// Package storage defines the table abstraction used to hold embedded
// documents and run nearest neighbour and full text queries over them.
//
// A Database holds named tables. Each Table has a Schema of typed fields and
// zero or more embedding bindings that tie a string source column to a
// vector column through an embedding.Function. Rows added without a value in
// the vector column are embedded on write.
//
// # Constructor Return Type Pattern
//
// Backend constructors return the storage interfaces rather than concrete
// types:
//
//	db, err := badger.Connect(ctx, "/path/to/db") // returns storage.Database
//
// Internal constructors inside a backend package may return concrete types.
//
// # Usage
//
//	table, err := db.CreateTable(ctx, "docs", storage.TextSchema(fn), storage.ModeOverwrite)
//	if err != nil {
//	    return err
//	}
//	if err := table.Add(ctx, rows); err != nil {
//	    return err
//	}
//	hits, err := table.Search("what is a vector?").Limit(5).ToList(ctx)
//
// Results carry the cosine distance in the _distance column, nearest first.
//
// # Thread Safety
//
// Database and Table implementations must be safe for concurrent use.
package storage
