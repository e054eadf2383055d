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

package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/poiesic/embedkit/embedding"
	"github.com/poiesic/embedkit/storage"
	"github.com/poiesic/embedkit/storage/bleve"
)

// MemoryPath opens an in-memory database when passed as the path.
const MemoryPath = ":memory:"

// Metadata keys stored in a table definition besides the embedding configs.
const (
	metadataFTSFields = "fts_fields"
)

// Database is a badger backed storage.Database. Rows of all tables share
// one badger instance; full text indexes live next to it under fts/.
type Database struct {
	backend  *Backend
	path     string
	inMemory bool
	registry *embedding.Registry
	logger   *slog.Logger

	mu     sync.Mutex
	tables map[string]*Table
	closed bool
}

var _ storage.Database = (*Database)(nil)

type dbOptions struct {
	inMemory bool
	registry *embedding.Registry
	logger   *slog.Logger
}

// Option configures a Database.
type Option func(*dbOptions)

// WithInMemory keeps all data in memory regardless of path.
func WithInMemory() Option {
	return func(o *dbOptions) {
		o.inMemory = true
	}
}

// WithRegistry sets the registry used to persist embedding function configs
// and to rebuild them when a table is opened by a later process. Without a
// registry embedding bindings only live as long as the Database.
func WithRegistry(r *embedding.Registry) Option {
	return func(o *dbOptions) {
		o.registry = r
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *dbOptions) {
		if logger == nil {
			logger = slog.Default()
		}
		o.logger = logger
	}
}

// Connect opens the database at path. Badger files go to path/data.
func Connect(ctx context.Context, path string, opts ...Option) (storage.Database, error) {
	db, err := open(ctx, path, opts...)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// Connector returns a storage.Connector that opens databases with opts.
func Connector(opts ...Option) storage.Connector {
	return func(ctx context.Context, path string) (storage.Database, error) {
		return Connect(ctx, path, opts...)
	}
}

func open(ctx context.Context, path string, opts ...Option) (*Database, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	o := &dbOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}
	if path == MemoryPath {
		o.inMemory = true
	}
	if !o.inMemory && path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	dataPath := ""
	if !o.inMemory {
		dataPath = filepath.Join(path, "data")
	}
	logger := o.logger.With("component", "badger-store")
	backend, err := OpenBackend(dataPath, o.inMemory, logger)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}

	logger.Debug("opened database", "path", path, "in_memory", o.inMemory)
	return &Database{
		backend:  backend,
		path:     path,
		inMemory: o.inMemory,
		registry: o.registry,
		logger:   logger,
		tables:   make(map[string]*Table),
	}, nil
}

func (d *Database) ftsPath(table string) string {
	if d.inMemory {
		return ""
	}
	return filepath.Join(d.path, "fts", tableKey(table))
}

// CreateTable creates a table. In ModeOverwrite an existing table and its
// rows and index are removed first.
func (d *Database) CreateTable(ctx context.Context, name string, schema *storage.Schema, mode storage.CreateMode) (storage.Table, error) {
	if mode == "" {
		mode = storage.ModeCreate
	}
	if err := mode.Validate(); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, fmt.Errorf("table name is required")
	}
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, storage.ErrStorageClosed
	}

	exists, err := d.existsLocked(name)
	if err != nil {
		return nil, err
	}
	if exists {
		switch mode {
		case storage.ModeCreate:
			return nil, fmt.Errorf("%w: %s", storage.ErrTableExists, name)
		case storage.ModeExistOK:
			existing, err := d.loadLocked(name)
			if err != nil {
				return nil, err
			}
			if !slices.Equal(existing.schema.Fields, schema.Fields) {
				return nil, fmt.Errorf("%w: table %s exists with different fields", storage.ErrSchemaMismatch, name)
			}
			return existing, nil
		case storage.ModeOverwrite:
			if err := d.dropLocked(name); err != nil {
				return nil, err
			}
		}
	}

	def := storage.TableDefinition{Name: name, Fields: schema.Fields, Metadata: map[string]string{}}
	if d.registry != nil && len(schema.Embeddings) > 0 {
		data, err := d.registry.MarshalColumns(schema.Embeddings)
		if err != nil {
			return nil, fmt.Errorf("persist embedding functions of %s: %w", name, err)
		}
		def.Metadata[embedding.MetadataKey] = string(data)
	}

	if err := d.saveDefinition(def); err != nil {
		return nil, err
	}

	t := newTable(d, name, &storage.Schema{
		Fields:     slices.Clone(schema.Fields),
		Embeddings: slices.Clone(schema.Embeddings),
	}, def.Metadata)
	d.tables[name] = t
	d.logger.Info("created table", "table", name, "mode", mode, "fields", len(schema.Fields))
	return t, nil
}

func (d *Database) saveDefinition(def storage.TableDefinition) error {
	err := d.backend.Update(func(tx *badger.Txn) error {
		return tx.Set(makeTableDefKey(def.Name), storage.MarshalTableDefinition(def))
	})
	if err != nil {
		return fmt.Errorf("save table %s: %w", def.Name, err)
	}
	return nil
}

// OpenTable opens an existing table, rebuilding its embedding functions from
// the registry if the table was created by another Database.
func (d *Database) OpenTable(ctx context.Context, name string) (storage.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, storage.ErrStorageClosed
	}
	t, err := d.loadLocked(name)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (d *Database) existsLocked(name string) (bool, error) {
	if _, ok := d.tables[name]; ok {
		return true, nil
	}
	exists := false
	err := d.backend.WithTx(func(tx *badger.Txn) error {
		_, err := tx.Get(makeTableDefKey(name))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		exists = true
		return nil
	}, false)
	return exists, err
}

func (d *Database) loadLocked(name string) (*Table, error) {
	if t, ok := d.tables[name]; ok {
		return t, nil
	}

	var def storage.TableDefinition
	err := d.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeTableDefKey(name))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", storage.ErrTableNotFound, name)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			def, err = storage.UnmarshalTableDefinition(val)
			return err
		})
	}, false)
	if err != nil {
		return nil, err
	}

	schema := &storage.Schema{Fields: def.Fields}
	if data := def.Metadata[embedding.MetadataKey]; data != "" {
		if d.registry == nil {
			return nil, fmt.Errorf("open table %s: %w: no registry to rebuild embedding functions",
				name, embedding.ErrUnknownFunction)
		}
		cols, err := d.registry.ParseColumns([]byte(data))
		if err != nil {
			return nil, fmt.Errorf("open table %s: %w", name, err)
		}
		schema.Embeddings = cols
	}
	if err := schema.Validate(); err != nil {
		return nil, fmt.Errorf("open table %s: %w", name, err)
	}

	t := newTable(d, name, schema, def.Metadata)
	if fields := def.Metadata[metadataFTSFields]; fields != "" {
		idx, err := bleve.Open(d.ftsPath(name), strings.Split(fields, ","))
		if err != nil {
			return nil, fmt.Errorf("open table %s: %w", name, err)
		}
		t.fts = idx
	}
	d.tables[name] = t
	return t, nil
}

// TableNames lists tables in name order.
func (d *Database) TableNames(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, storage.ErrStorageClosed
	}

	var names []string
	prefix := []byte(tableDefPrefix + ":")
	err := d.backend.ScanPrefix(prefix, func(key, _ []byte) error {
		names = append(names, tableNameFromDefKey(key))
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Sort(names)
	return names, nil
}

// DropTable removes a table, its rows and its full text index.
func (d *Database) DropTable(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return storage.ErrStorageClosed
	}
	exists, err := d.existsLocked(name)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", storage.ErrTableNotFound, name)
	}
	return d.dropLocked(name)
}

func (d *Database) dropLocked(name string) error {
	if t, ok := d.tables[name]; ok {
		if err := t.invalidate(); err != nil {
			d.logger.Warn("failed to close index of dropped table", "table", name, "error", err)
		}
		delete(d.tables, name)
	}
	if !d.inMemory {
		if err := os.RemoveAll(d.ftsPath(name)); err != nil {
			return fmt.Errorf("drop index of %s: %w", name, err)
		}
	}
	if err := d.backend.DropPrefix(makeRowPrefix(name)); err != nil {
		return fmt.Errorf("drop rows of %s: %w", name, err)
	}
	err := d.backend.Update(func(tx *badger.Txn) error {
		return tx.Delete(makeTableDefKey(name))
	})
	if err != nil {
		return fmt.Errorf("drop table %s: %w", name, err)
	}
	d.logger.Debug("dropped table", "table", name)
	return nil
}

// Close closes open indexes and the badger instance.
func (d *Database) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true

	var errs []error
	for name, t := range d.tables {
		errs = append(errs, t.invalidate())
		delete(d.tables, name)
	}
	errs = append(errs, d.backend.Close())
	return errors.Join(errs...)
}
