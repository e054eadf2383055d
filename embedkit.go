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

// Package embedkit evaluates text embedding functions on retrieval tasks.
//
// The subpackages hold the pieces: embedding defines embedding functions
// and their registry, dataset builds and persists QA datasets, storage and
// storage/badger provide the vector store and eval runs the benchmark.
// This package wires the built-in embedding providers together:
//
//	registry, err := embedkit.NewRegistry()
//	if err != nil {
//	    return err
//	}
//	fn, err := registry.Create("openai", map[string]any{"model": "text-embedding-3-small"})
package embedkit

import (
	"github.com/poiesic/embedkit/embedding"
	"github.com/poiesic/embedkit/embedding/compatible"
	"github.com/poiesic/embedkit/embedding/hash"
	"github.com/poiesic/embedkit/embedding/openai"
)

// NewRegistry returns a registry holding the built-in embedding functions:
// hash, openai and openai-compatible. opts are passed to every function it
// builds.
func NewRegistry(opts ...embedding.Option) (*embedding.Registry, error) {
	r := embedding.NewRegistry(opts...)
	for _, register := range []func(*embedding.Registry) error{
		hash.Register,
		openai.Register,
		compatible.Register,
	} {
		if err := register(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}
