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

package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/embedkit/retry"
	"golang.org/x/time/rate"
)

var errRateLimitWait = errors.New("rate limiter wait failed")

// TextSettings are the call settings shared by every text function.
// Providers embed them in their config with `yaml:",inline"`.
type TextSettings struct {
	// MaxRetries is the number of retries after a failed generator call.
	MaxRetries int `yaml:"max_retries"`

	// RetryDelay is the first backoff delay; it doubles on each retry.
	RetryDelay time.Duration `yaml:"retry_delay"`

	// RateLimit caps generator calls per second. Zero disables limiting.
	RateLimit float64 `yaml:"rate_limit,omitempty"`

	// BatchSize splits large inputs into calls of at most this many texts.
	// Zero sends everything in one call.
	BatchSize int `yaml:"batch_size,omitempty"`

	// Jitter randomizes retry delays.
	Jitter bool `yaml:"jitter,omitempty"`
}

// DefaultTextSettings returns seven retries starting at one second.
func DefaultTextSettings() TextSettings {
	return TextSettings{
		MaxRetries: retry.DefaultMaxRetries,
		RetryDelay: retry.DefaultBaseDelay,
	}
}

// Validate rejects negative values.
func (s TextSettings) Validate() error {
	switch {
	case s.MaxRetries < 0:
		return fmt.Errorf("max_retries must not be negative, got %d", s.MaxRetries)
	case s.RetryDelay < 0:
		return fmt.Errorf("retry_delay must not be negative, got %s", s.RetryDelay)
	case s.RateLimit < 0:
		return fmt.Errorf("rate_limit must not be negative, got %g", s.RateLimit)
	case s.BatchSize < 0:
		return fmt.Errorf("batch_size must not be negative, got %d", s.BatchSize)
	}
	return nil
}

// TextFunction is a Function whose query and source embeddings share one
// space. Every generator call goes through the rate limiter and the retry
// policy.
type TextFunction struct {
	name      string
	config    any
	generator Generator
	settings  TextSettings
	limiter   *rate.Limiter
	metrics   *Metrics
	logger    *slog.Logger
}

var _ Function = (*TextFunction)(nil)

// Option configures a TextFunction. Options are not part of a function's
// identity; Equal and Hash only look at the name and Config.
type Option func(*TextFunction)

// WithLogger sets a custom logger.
// Default is slog.Default() tagged with the function name.
func WithLogger(logger *slog.Logger) Option {
	return func(f *TextFunction) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithMetrics records generator calls on m.
func WithMetrics(m *Metrics) Option {
	return func(f *TextFunction) {
		f.metrics = m
	}
}

// NewTextFunction builds a text function named name around gen.
// config is the comparable constructor configuration reported by Config;
// settings should be the TextSettings carried inside it.
func NewTextFunction(name string, gen Generator, config any, settings TextSettings, opts ...Option) (*TextFunction, error) {
	if gen == nil {
		return nil, ErrNilGenerator
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("embedding function %s: %w", name, err)
	}

	f := &TextFunction{
		name:      name,
		config:    config,
		generator: gen,
		settings:  settings,
		logger:    slog.Default().With("component", "embedding", "function", name),
	}
	if settings.RateLimit > 0 {
		f.limiter = rate.NewLimiter(rate.Limit(settings.RateLimit), 1)
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

func (f *TextFunction) Name() string { return f.name }

func (f *TextFunction) Config() any { return f.config }

func (f *TextFunction) NDims() int { return f.generator.NDims() }

// Settings returns the call settings.
func (f *TextFunction) Settings() TextSettings { return f.settings }

// ComputeQueryEmbeddings embeds query in the same space as source rows.
func (f *TextFunction) ComputeQueryEmbeddings(ctx context.Context, query string) ([]Vector, error) {
	return f.ComputeSourceEmbeddings(ctx, query)
}

// ComputeSourceEmbeddings sanitizes input and embeds it.
func (f *TextFunction) ComputeSourceEmbeddings(ctx context.Context, input any) ([]Vector, error) {
	texts, err := SanitizeInput(input)
	if err != nil {
		return nil, err
	}
	if len(texts) == 0 {
		return []Vector{}, nil
	}

	batch := f.settings.BatchSize
	if batch <= 0 || batch > len(texts) {
		batch = len(texts)
	}

	out := make([]Vector, 0, len(texts))
	for start := 0; start < len(texts); start += batch {
		end := min(start+batch, len(texts))
		vectors, err := f.generateWithRetry(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vectors...)
	}
	return out, nil
}

func (f *TextFunction) policy() retry.Policy {
	return retry.Policy{
		MaxRetries: f.settings.MaxRetries,
		BaseDelay:  f.settings.RetryDelay,
		Jitter:     f.settings.Jitter,
		Logger:     f.logger,
		OnRetry: func(attempt int, err error) {
			f.metrics.retried(f.name)
		},
	}
}

func (f *TextFunction) generateWithRetry(ctx context.Context, texts []string) ([]Vector, error) {
	return retry.DoValue(ctx, f.policy(), func() ([]Vector, error) {
		return f.generate(ctx, texts)
	})
}

func (f *TextFunction) generate(ctx context.Context, texts []string) ([]Vector, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, retry.Permanent(fmt.Errorf("%w: %w", errRateLimitWait, err))
		}
	}

	f.logger.Debug("generating embeddings", "count", len(texts))
	start := time.Now()
	vectors, err := f.generator.GenerateEmbeddings(ctx, texts)
	if err == nil {
		err = retry.Permanent(f.checkShape(texts, vectors))
	}
	f.metrics.observe(f.name, len(texts), time.Since(start), err)
	if err != nil {
		f.logger.Debug("embedding generation failed", "count", len(texts), "error", err)
		return nil, err
	}
	return vectors, nil
}

func (f *TextFunction) checkShape(texts []string, vectors []Vector) error {
	if len(vectors) != len(texts) {
		return fmt.Errorf("%w: got %d vectors for %d texts", ErrDimensionMismatch, len(vectors), len(texts))
	}
	dims := f.generator.NDims()
	for i, v := range vectors {
		if len(v) != dims {
			return fmt.Errorf("%w: vector %d has %d dimensions, want %d", ErrDimensionMismatch, i, len(v), dims)
		}
	}
	return nil
}
