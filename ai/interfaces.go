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

package ai

import "context"

// Embedder generates vector embeddings for text.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The returned slice contains embeddings in the same order as the input texts.
	// Returns an error if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// ChatModel answers a single user prompt with free-form text.
type ChatModel interface {
	// ChatCompletion sends prompt as one user message and returns the
	// content of the first choice. An empty response is not an error.
	ChatCompletion(ctx context.Context, prompt string) (string, error)
}

// AIProvider aggregates the AI services used by dataset generation and
// evaluation.
type AIProvider interface {
	// Embedder returns the text embedding service.
	// The returned Embedder is safe for concurrent use.
	Embedder() Embedder

	// ChatModel returns the chat completion service.
	// The returned ChatModel is safe for concurrent use.
	ChatModel() ChatModel

	// Close releases resources held by the provider and its services.
	Close() error
}
