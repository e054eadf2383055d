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

// Package hash provides a deterministic, offline embedding function. Each of
// the first Dims characters of a text contributes one FNV-hashed component;
// the vector is then normalized. It is meant for tests and smoke runs.
package hash

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"

	"github.com/poiesic/embedkit/embedding"
)

// Name is the registry name of the hash function.
const Name = "hash"

// DefaultDims is the vector size used by DefaultConfig.
const DefaultDims = 10

// Config configures the hash function.
type Config struct {
	Dims                   int `yaml:"dims"`
	embedding.TextSettings `yaml:",inline"`
}

// DefaultConfig returns ten dimensions with default call settings.
func DefaultConfig() Config {
	return Config{
		Dims:         DefaultDims,
		TextSettings: embedding.DefaultTextSettings(),
	}
}

type generator struct {
	dims int
}

func (g generator) NDims() int { return g.dims }

func (g generator) GenerateEmbeddings(ctx context.Context, texts []string) ([]embedding.Vector, error) {
	out := make([]embedding.Vector, len(texts))
	for i, text := range texts {
		out[i] = Embed(text, g.dims)
	}
	return out, nil
}

// Embed returns the hash embedding of text.
func Embed(text string, dims int) embedding.Vector {
	v := make(embedding.Vector, dims)
	i := 0
	for _, r := range text {
		if i == dims {
			break
		}
		h := fnv.New32a()
		h.Write([]byte(string(r)))
		v[i] = float32(h.Sum32())
		i++
	}

	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	if sumSquares > 0 {
		norm := float32(1 / math.Sqrt(sumSquares))
		for j := range v {
			v[j] *= norm
		}
	}
	return v
}

// New builds a hash embedding function.
func New(cfg Config, opts ...embedding.Option) (*embedding.TextFunction, error) {
	if cfg.Dims <= 0 {
		return nil, fmt.Errorf("hash: dims must be positive, got %d", cfg.Dims)
	}
	return embedding.NewTextFunction(Name, generator{dims: cfg.Dims}, cfg, cfg.TextSettings, opts...)
}

// Constructor builds a hash function from registry parameters.
func Constructor(decode embedding.Decoder, opts ...embedding.Option) (embedding.Function, error) {
	cfg := DefaultConfig()
	if err := decode(&cfg); err != nil {
		return nil, err
	}
	return New(cfg, opts...)
}

// Register adds the hash function to r.
func Register(r *embedding.Registry) error {
	return r.Register(Name, Constructor)
}
