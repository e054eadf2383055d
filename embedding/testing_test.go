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
	"sync"
	"time"
)

// fakeGenerator returns len(text) in every slot and fails the first
// failures calls.
type fakeGenerator struct {
	dims     int
	failures int
	err      error

	mu    sync.Mutex
	calls [][]string
}

func (g *fakeGenerator) GenerateEmbeddings(ctx context.Context, texts []string) ([]Vector, error) {
	g.mu.Lock()
	g.calls = append(g.calls, texts)
	n := len(g.calls)
	g.mu.Unlock()

	if n <= g.failures {
		return nil, g.err
	}
	out := make([]Vector, len(texts))
	for i, text := range texts {
		v := make(Vector, g.dims)
		for j := range v {
			v[j] = float32(len(text))
		}
		out[i] = v
	}
	return out, nil
}

func (g *fakeGenerator) NDims() int { return g.dims }

func (g *fakeGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

type fakeConfig struct {
	Model        string `yaml:"model"`
	Dims         int    `yaml:"dims"`
	TextSettings `yaml:",inline"`
}

const fakeName = "fake"

func fastSettings(maxRetries int) TextSettings {
	return TextSettings{MaxRetries: maxRetries, RetryDelay: time.Millisecond}
}

func newFakeFunction(cfg fakeConfig, gen *fakeGenerator, opts ...Option) (*TextFunction, error) {
	if gen == nil {
		gen = &fakeGenerator{dims: cfg.Dims}
	}
	return NewTextFunction(fakeName, gen, cfg, cfg.TextSettings, opts...)
}

func fakeConstructor(decode Decoder, opts ...Option) (Function, error) {
	cfg := fakeConfig{Model: "default", Dims: 4, TextSettings: fastSettings(0)}
	if err := decode(&cfg); err != nil {
		return nil, err
	}
	return newFakeFunction(cfg, nil, opts...)
}
