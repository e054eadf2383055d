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

package embedkit

import (
	"context"
	"log/slog"

	"github.com/poiesic/embedkit/embedding"
	"github.com/poiesic/embedkit/storage"
	"github.com/poiesic/embedkit/storage/badger"
)

// DatabaseOption configures OpenDatabase.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	registry *embedding.Registry
	logger   *slog.Logger
	inMemory bool
}

// WithRegistry replaces the built-in registry used to persist and rebuild
// embedding functions of tables.
func WithRegistry(r *embedding.Registry) DatabaseOption {
	return func(o *databaseOptions) {
		o.registry = r
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) DatabaseOption {
	return func(o *databaseOptions) {
		o.logger = logger
	}
}

// WithInMemory keeps the database in memory.
func WithInMemory() DatabaseOption {
	return func(o *databaseOptions) {
		o.inMemory = true
	}
}

// OpenDatabase opens the badger vector store at path with a registry, so
// tables created with built-in functions can be reopened by later runs.
func OpenDatabase(ctx context.Context, path string, opts ...DatabaseOption) (storage.Database, error) {
	connect, err := Connector(opts...)
	if err != nil {
		return nil, err
	}
	return connect(ctx, path)
}

// Connector returns a storage.Connector for eval.WithConnector that opens
// registry aware badger databases.
func Connector(opts ...DatabaseOption) (storage.Connector, error) {
	options := &databaseOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(options)
	}
	if options.registry == nil {
		registry, err := NewRegistry()
		if err != nil {
			return nil, err
		}
		options.registry = registry
	}

	badgerOpts := []badger.Option{
		badger.WithRegistry(options.registry),
		badger.WithLogger(options.logger),
	}
	if options.inMemory {
		badgerOpts = append(badgerOpts, badger.WithInMemory())
	}
	return badger.Connector(badgerOpts...), nil
}
