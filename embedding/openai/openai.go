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

// Package openai embeds text with the OpenAI embeddings API.
//
// The API key is never part of the function config, so it is never written
// to table metadata; it is read from the environment variable named by
// Config.APIKeyEnv.
package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"

	"github.com/poiesic/embedkit/embedding"
	"github.com/poiesic/embedkit/retry"
	openai "github.com/sashabaranov/go-openai"
)

// Name is the registry name of the OpenAI function.
const Name = "openai"

const (
	DefaultModel     = "text-embedding-ada-002"
	DefaultAPIKeyEnv = "OPENAI_API_KEY"
)

// ErrMissingAPIKey is returned when the API key variable is unset.
var ErrMissingAPIKey = errors.New("openai: api key is not set")

// knownDims lists native output sizes of OpenAI embedding models.
var knownDims = map[string]int{
	"text-embedding-ada-002": 1536,
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
}

// Config configures the OpenAI function.
type Config struct {
	Model string `yaml:"model"`

	// Dimensions requests shortened vectors from text-embedding-3 models.
	// Zero uses the model's native size.
	Dimensions int `yaml:"dimensions,omitempty"`

	// BaseURL overrides the API endpoint. Empty uses api.openai.com.
	BaseURL string `yaml:"base_url,omitempty"`

	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv string `yaml:"api_key_env"`

	User string `yaml:"user,omitempty"`

	embedding.TextSettings `yaml:",inline"`
}

// DefaultConfig returns the ada-002 model with default call settings.
func DefaultConfig() Config {
	return Config{
		Model:        DefaultModel,
		APIKeyEnv:    DefaultAPIKeyEnv,
		TextSettings: embedding.DefaultTextSettings(),
	}
}

// NDims resolves the vector size for the configured model.
func (c Config) NDims() (int, error) {
	if c.Dimensions > 0 {
		return c.Dimensions, nil
	}
	if dims, ok := knownDims[c.Model]; ok {
		return dims, nil
	}
	return 0, fmt.Errorf("openai: unknown model %q, set dimensions", c.Model)
}

type generator struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dims       int
	requestDim int
	user       string
	logger     *slog.Logger
}

func (g *generator) NDims() int { return g.dims }

func (g *generator) GenerateEmbeddings(ctx context.Context, texts []string) ([]embedding.Vector, error) {
	req := openai.EmbeddingRequest{
		Input:          texts,
		Model:          g.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
		User:           g.user,
	}
	if g.requestDim > 0 {
		req.Dimensions = g.requestDim
	}

	resp, err := g.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, parseAPIError(err)
	}

	data := slices.Clone(resp.Data)
	slices.SortFunc(data, func(a, b openai.Embedding) int {
		return a.Index - b.Index
	})

	out := make([]embedding.Vector, len(data))
	for i, d := range data {
		out[i] = d.Embedding
	}
	g.logger.Debug("openai embeddings", "count", len(out), "prompt_tokens", resp.Usage.PromptTokens)
	return out, nil
}

// parseAPIError turns client errors into readable errors. Client-side
// errors other than 429 are marked permanent so they are not retried.
func parseAPIError(err error) error {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		wrapped := fmt.Errorf("openai embedding request failed with status %d: %w", reqErr.HTTPStatusCode, err)
		if permanentStatus(reqErr.HTTPStatusCode) {
			return retry.Permanent(wrapped)
		}
		return wrapped
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		wrapped := fmt.Errorf("openai embedding API error %d: %s: %w", apiErr.HTTPStatusCode, apiErr.Message, err)
		if permanentStatus(apiErr.HTTPStatusCode) {
			return retry.Permanent(wrapped)
		}
		return wrapped
	}

	return fmt.Errorf("openai embedding request failed: %w", err)
}

func permanentStatus(code int) bool {
	return code >= 400 && code < 500 && code != 429 && code != 408
}

// New builds an OpenAI embedding function.
func New(cfg Config, opts ...embedding.Option) (*embedding.TextFunction, error) {
	if cfg.Model == "" {
		return nil, errors.New("openai: model is required")
	}
	dims, err := cfg.NDims()
	if err != nil {
		return nil, err
	}

	keyEnv := cfg.APIKeyEnv
	if keyEnv == "" {
		keyEnv = DefaultAPIKeyEnv
	}
	key := os.Getenv(keyEnv)
	if key == "" {
		return nil, fmt.Errorf("%w: %s is empty", ErrMissingAPIKey, keyEnv)
	}

	clientCfg := openai.DefaultConfig(key)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	gen := &generator{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      openai.EmbeddingModel(cfg.Model),
		dims:       dims,
		requestDim: cfg.Dimensions,
		user:       cfg.User,
		logger:     slog.Default().With("component", "openai-embedding", "model", cfg.Model),
	}
	return embedding.NewTextFunction(Name, gen, cfg, cfg.TextSettings, opts...)
}

// Constructor builds an OpenAI function from registry parameters.
func Constructor(decode embedding.Decoder, opts ...embedding.Option) (embedding.Function, error) {
	cfg := DefaultConfig()
	if err := decode(&cfg); err != nil {
		return nil, err
	}
	return New(cfg, opts...)
}

// Register adds the OpenAI function to r.
func Register(r *embedding.Registry) error {
	return r.Register(Name, Constructor)
}
