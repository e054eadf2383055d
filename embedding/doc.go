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

// Package embedding defines pluggable embedding functions for vector columns.
//
// A Function embeds queries and source column values. TextFunction is the
// common case: a Generator (the provider call) wrapped with input
// sanitization, rate limiting, retries and metrics, where queries and
// documents share one vector space.
//
// Provider packages (embedding/hash, embedding/openai, embedding/compatible)
// expose a Register function; a Registry collects them so that column
// configs stored in table metadata can be rebuilt:
//
//	reg := embedding.NewRegistry()
//	_ = hash.Register(reg)
//	fn, err := reg.Create("hash", map[string]any{"dims": 10})
//	col := embedding.NewColumnConfig(fn, "text", "vector")
//
// Two functions are equal when their names and configs are equal; Hash and
// KeyOf are consistent with Equal.
package embedding
