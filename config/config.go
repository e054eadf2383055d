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

// Package config loads the YAML configuration of the embedkit command.
//
// A file only needs the values it changes; everything else keeps the
// values of Default. ${VAR} and ${VAR:-default} are replaced with
// environment variables before parsing, so hosts and tokens can vary per
// environment:
//
//	embedding:
//	  provider: openai
//	  params:
//	    model: text-embedding-3-small
//	    base_url: ${OPENAI_BASE_URL:-https://api.openai.com/v1}
//	llm:
//	  token: ${LLM_TOKEN}
//	  max_retries: 3
//	eval:
//	  path: ./eval
//	  limit: 10
package config

import (
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the embedkit configuration.
type Config struct {
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Eval      EvalConfig      `yaml:"eval"`
	Generate  GenerateConfig  `yaml:"generate"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// EmbeddingConfig selects the embedding function under evaluation.
type EmbeddingConfig struct {
	Provider string         `yaml:"provider"` // registry name, e.g. hash, openai, openai-compatible
	Params   map[string]any `yaml:"params"`   // constructor parameters of the provider

	// Call settings override the matching provider parameters when set.
	MaxRetries *int          `yaml:"max_retries,omitempty"`
	RetryDelay time.Duration `yaml:"retry_delay,omitempty"`
	RateLimit  float64       `yaml:"rate_limit,omitempty"`
	BatchSize  int           `yaml:"batch_size,omitempty"`
}

// LLMConfig holds the chat model used to generate questions.
type LLMConfig struct {
	Host        string  `yaml:"host"`
	Model       string  `yaml:"model"`
	Token       string  `yaml:"token"`
	Temperature float64 `yaml:"temperature"`
}

// EvalConfig holds evaluation settings.
type EvalConfig struct {
	Path  string `yaml:"path"`
	Table string `yaml:"table"`
	Limit int    `yaml:"limit"`
}

// GenerateConfig holds QA generation settings.
type GenerateConfig struct {
	QuestionsPerChunk int    `yaml:"questions_per_chunk"`
	Concurrency       int    `yaml:"concurrency"`
	Window            int    `yaml:"window"` // 0 disables contextualization
	Stride            int    `yaml:"stride"`
	GroupByDoc        bool   `yaml:"group_by_doc"`
	PromptFile        string `yaml:"prompt_file"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Embedding: EmbeddingConfig{
			Provider: "hash",
			Params:   map[string]any{},
		},
		LLM: LLMConfig{
			Host: "http://localhost:11434/v1",
		},
		Eval: EvalConfig{
			Path:  "./eval",
			Table: "eval",
			Limit: 10,
		},
		Generate: GenerateConfig{
			QuestionsPerChunk: 2,
			Concurrency:       1,
			Stride:            1,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from a YAML file. An empty path returns Default.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	data = expandEnvVars(data)

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	d := Default()
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = d.Embedding.Provider
	}
	if c.Embedding.Params == nil {
		c.Embedding.Params = map[string]any{}
	}
	if c.Eval.Path == "" {
		c.Eval.Path = d.Eval.Path
	}
	if c.Eval.Table == "" {
		c.Eval.Table = d.Eval.Table
	}
	if c.Eval.Limit == 0 {
		c.Eval.Limit = d.Eval.Limit
	}
	if c.Generate.QuestionsPerChunk == 0 {
		c.Generate.QuestionsPerChunk = d.Generate.QuestionsPerChunk
	}
	if c.Generate.Concurrency == 0 {
		c.Generate.Concurrency = d.Generate.Concurrency
	}
	if c.Generate.Stride == 0 {
		c.Generate.Stride = d.Generate.Stride
	}
	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.Embedding.Provider == "" {
		return fmt.Errorf("embedding.provider is required")
	}
	if c.Embedding.MaxRetries != nil && *c.Embedding.MaxRetries < 0 {
		return fmt.Errorf("embedding.max_retries must not be negative, got %d", *c.Embedding.MaxRetries)
	}
	if c.Embedding.RetryDelay < 0 {
		return fmt.Errorf("embedding.retry_delay must not be negative, got %s", c.Embedding.RetryDelay)
	}
	if c.Embedding.RateLimit < 0 {
		return fmt.Errorf("embedding.rate_limit must not be negative, got %g", c.Embedding.RateLimit)
	}
	if c.Embedding.BatchSize < 0 {
		return fmt.Errorf("embedding.batch_size must not be negative, got %d", c.Embedding.BatchSize)
	}
	if c.Eval.Limit < 1 {
		return fmt.Errorf("eval.limit must be positive, got %d", c.Eval.Limit)
	}
	if c.Generate.QuestionsPerChunk < 1 {
		return fmt.Errorf("generate.questions_per_chunk must be positive, got %d", c.Generate.QuestionsPerChunk)
	}
	if c.Generate.Concurrency < 1 {
		return fmt.Errorf("generate.concurrency must be positive, got %d", c.Generate.Concurrency)
	}
	if c.Generate.Window < 0 {
		return fmt.Errorf("generate.window must not be negative, got %d", c.Generate.Window)
	}
	if c.Generate.Stride < 1 {
		return fmt.Errorf("generate.stride must be positive, got %d", c.Generate.Stride)
	}
	if _, err := ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	return nil
}

// FunctionParams returns the provider parameters with the call settings
// of the embedding section merged in.
func (e EmbeddingConfig) FunctionParams() map[string]any {
	params := maps.Clone(e.Params)
	if params == nil {
		params = map[string]any{}
	}
	if e.MaxRetries != nil {
		params["max_retries"] = *e.MaxRetries
	}
	if e.RetryDelay > 0 {
		params["retry_delay"] = e.RetryDelay.String()
	}
	if e.RateLimit > 0 {
		params["rate_limit"] = e.RateLimit
	}
	if e.BatchSize > 0 {
		params["batch_size"] = e.BatchSize
	}
	return params
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", level)
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
