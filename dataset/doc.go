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

// Package dataset builds, validates and persists question/answer datasets
// used to fine-tune and evaluate embedding functions.
//
// A QADataset maps generated questions to the corpus chunk that answers
// them. Generate produces one from text nodes by prompting a chat model,
// Contextualize builds larger nodes from rolling windows of small ones, and
// Save and Load store the dataset as three parquet files:
//
//	queries.parquet        id, query
//	corpus.parquet         id, text
//	relevant_docs.parquet  query_id, doc_id (list)
package dataset
