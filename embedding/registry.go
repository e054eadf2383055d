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
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"
)

// MetadataKey is the table metadata key holding serialized column configs.
const MetadataKey = "embedding_functions"

// Decoder fills a provider config from serialized parameters.
type Decoder func(v any) error

// Constructor builds a Function from serialized parameters. opts are the
// registry's default options.
type Constructor func(decode Decoder, opts ...Option) (Function, error)

// Registry maps function type names to constructors. It has no global
// instance; build one at startup and pass it where functions are created
// or rehydrated.
type Registry struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
	options      []Option
	logger       *slog.Logger
}

// NewRegistry returns an empty registry. opts are passed to every
// constructor it invokes.
func NewRegistry(opts ...Option) *Registry {
	return &Registry{
		constructors: make(map[string]Constructor),
		options:      opts,
		logger:       slog.Default().With("component", "embedding-registry"),
	}
}

// Register adds a constructor under name.
func (r *Registry) Register(name string, c Constructor) error {
	if name == "" {
		return fmt.Errorf("register: empty function name")
	}
	if c == nil {
		return fmt.Errorf("register %s: nil constructor", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.constructors[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateFunction, name)
	}
	r.constructors[name] = c
	r.logger.Debug("registered embedding function", "name", name)
	return nil
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.constructors))
	for name := range r.constructors {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (r *Registry) lookup(name string) (Constructor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.constructors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFunction, name)
	}
	return c, nil
}

// Create builds the function registered as name from params. Keys in
// params follow the provider's YAML config field names.
func (r *Registry) Create(name string, params map[string]any) (Function, error) {
	var node yaml.Node
	if params == nil {
		params = map[string]any{}
	}
	if err := node.Encode(params); err != nil {
		return nil, fmt.Errorf("encode params for %s: %w", name, err)
	}
	return r.createFromNode(name, &node)
}

// CreateYAML builds the function registered as name from a YAML document.
func (r *Registry) CreateYAML(name string, data []byte) (Function, error) {
	var node yaml.Node
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &node); err != nil {
			return nil, fmt.Errorf("parse params for %s: %w", name, err)
		}
	}
	return r.createFromNode(name, &node)
}

func (r *Registry) createFromNode(name string, node *yaml.Node) (Function, error) {
	c, err := r.lookup(name)
	if err != nil {
		return nil, err
	}
	decode := func(v any) error {
		if node.Kind == 0 {
			return nil
		}
		return node.Decode(v)
	}
	fn, err := c(decode, r.options...)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", name, err)
	}
	return fn, nil
}

// columnRecord is the serialized form of a ColumnConfig.
type columnRecord struct {
	Name         string    `yaml:"name"`
	SourceColumn string    `yaml:"source_column"`
	VectorColumn string    `yaml:"vector_column"`
	Params       yaml.Node `yaml:"params"`
}

// MarshalColumns serializes column configs for table metadata. Each
// function's Config is stored so that ParseColumns can rebuild it.
func (r *Registry) MarshalColumns(columns []ColumnConfig) ([]byte, error) {
	records := make([]columnRecord, 0, len(columns))
	for _, col := range columns {
		if err := col.Validate(); err != nil {
			return nil, err
		}
		name := col.Function.Name()
		if _, err := r.lookup(name); err != nil {
			return nil, err
		}
		rec := columnRecord{
			Name:         name,
			SourceColumn: col.SourceColumn,
			VectorColumn: col.VectorColumn,
		}
		if cfg := col.Function.Config(); cfg != nil {
			if err := rec.Params.Encode(cfg); err != nil {
				return nil, fmt.Errorf("encode config for %s: %w", name, err)
			}
		}
		records = append(records, rec)
	}
	return yaml.Marshal(records)
}

// ParseColumns rebuilds column configs written by MarshalColumns.
func (r *Registry) ParseColumns(data []byte) ([]ColumnConfig, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var records []columnRecord
	if err := yaml.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse embedding metadata: %w", err)
	}

	columns := make([]ColumnConfig, 0, len(records))
	for _, rec := range records {
		fn, err := r.createFromNode(rec.Name, &rec.Params)
		if err != nil {
			return nil, err
		}
		col := ColumnConfig{
			SourceColumn: rec.SourceColumn,
			VectorColumn: rec.VectorColumn,
			Function:     fn,
		}
		if err := col.Validate(); err != nil {
			return nil, err
		}
		columns = append(columns, col)
	}
	return columns, nil
}
