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

// Package compatible adapts any ai.Embedder, by default an OpenAI-compatible
// server such as Ollama or vLLM, into an embedding function.
package compatible

import (
	"context"
	"errors"
	"fmt"

	"github.com/poiesic/embedkit/ai"
	aiopenai "github.com/poiesic/embedkit/ai/openai"
	"github.com/poiesic/embedkit/embedding"
)

// Name is the registry name of the compatible function.
const Name = "openai-compatible"

// Config configures the compatible function. Dims must match the model's
// output size.
type Config struct {
	Host  string `yaml:"host"`
	Model string `yaml:"model"`
	Dims  int    `yaml:"dims"`

	embedding.TextSettings `yaml:",inline"`
}

// DefaultConfig returns the local Ollama defaults used by ai.DefaultConfig.
func DefaultConfig() Config {
	ac := ai.DefaultConfig()
	return Config{
		Host:         ac.EmbeddingHost,
		Model:        ac.EmbeddingModel,
		TextSettings: embedding.DefaultTextSettings(),
	}
}

type generator struct {
	embedder ai.Embedder
	dims     int
}

func (g generator) NDims() int { return g.dims }

func (g generator) GenerateEmbeddings(ctx context.Context, texts []string) ([]embedding.Vector, error) {
	return g.embedder.EmbedTexts(ctx, texts)
}

// New builds a function that talks to cfg.Host.
func New(cfg Config, opts ...embedding.Option) (*embedding.TextFunction, error) {
	ac := ai.NewConfig(
		ai.WithEmbeddingHost(cfg.Host),
		ai.WithEmbeddingModel(cfg.Model),
	)
	if err := ac.Validate(); err != nil {
		return nil, err
	}
	// Keep the config canonical so equal endpoints compare equal.
	cfg.Host = ac.EmbeddingHost

	embedder, err := aiopenai.NewEmbedder(ac)
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	return NewWithEmbedder(cfg, embedder, opts...)
}

// NewWithEmbedder builds a function around an existing embedder.
func NewWithEmbedder(cfg Config, embedder ai.Embedder, opts ...embedding.Option) (*embedding.TextFunction, error) {
	if embedder == nil {
		return nil, errors.New("compatible: embedder is required")
	}
	if cfg.Dims <= 0 {
		return nil, fmt.Errorf("compatible: dims must be positive, got %d", cfg.Dims)
	}
	return embedding.NewTextFunction(Name, generator{embedder: embedder, dims: cfg.Dims}, cfg, cfg.TextSettings, opts...)
}

// Constructor builds a compatible function from registry parameters.
func Constructor(decode embedding.Decoder, opts ...embedding.Option) (embedding.Function, error) {
	cfg := DefaultConfig()
	if err := decode(&cfg); err != nil {
		return nil, err
	}
	return New(cfg, opts...)
}

// Register adds the compatible function to r.
func Register(r *embedding.Registry) error {
	return r.Register(Name, Constructor)
}
