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

package eval

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/poiesic/embedkit/dataset"
	"github.com/poiesic/embedkit/embedding"
	"github.com/poiesic/embedkit/progress"
	"github.com/poiesic/embedkit/storage"
	"github.com/poiesic/embedkit/storage/badger"
)

// Defaults of an evaluation run.
const (
	DefaultPath      = "./eval"
	DefaultTableName = "eval"
	DefaultLimit     = storage.DefaultLimit
)

// Result is the outcome of one query.
type Result struct {
	QueryID   string
	Query     string
	IsHit     bool
	Retrieved []string
	Expected  string
}

// Rank returns the 1-based position of the expected document in the
// retrieved list, or 0 when it was not retrieved.
func (r Result) Rank() int {
	return slices.Index(r.Retrieved, r.Expected) + 1
}

type evaluator struct {
	path      string
	tableName string
	limit     int
	connect   storage.Connector
	logger    *slog.Logger
	progress  *progress.Tracker
	monitor   Monitor
}

// Option configures Evaluate.
type Option func(*evaluator) error

// WithPath sets the directory of the vector store.
// Default is ./eval.
func WithPath(path string) Option {
	return func(e *evaluator) error {
		if path == "" {
			return fmt.Errorf("evaluation path must not be empty")
		}
		e.path = path
		return nil
	}
}

// WithTableName sets the table the corpus is indexed into.
// Default is "eval".
func WithTableName(name string) Option {
	return func(e *evaluator) error {
		if name == "" {
			return fmt.Errorf("table name must not be empty")
		}
		e.tableName = name
		return nil
	}
}

// WithLimit sets how many documents are retrieved per query.
// Default is 10.
func WithLimit(n int) Option {
	return func(e *evaluator) error {
		if n < 1 {
			return fmt.Errorf("search limit must be positive, got %d", n)
		}
		e.limit = n
		return nil
	}
}

// WithConnector replaces the vector store.
// Default is the badger store.
func WithConnector(connect storage.Connector) Option {
	return func(e *evaluator) error {
		if connect != nil {
			e.connect = connect
		}
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *evaluator) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// WithProgress reports one increment per query.
func WithProgress(tracker *progress.Tracker) Option {
	return func(e *evaluator) error {
		e.progress = tracker
		return nil
	}
}

// WithMonitor sets a monitor that observes the run.
func WithMonitor(monitor Monitor) Option {
	return func(e *evaluator) error {
		if monitor != nil {
			e.monitor = monitor
		}
		return nil
	}
}

// Evaluate indexes the corpus of ds with fn, overwriting any previous table
// of the same name, and runs every query in dataset order. A query is a hit
// when its first relevant document is anywhere in the retrieved list.
func Evaluate(ctx context.Context, ds *dataset.QADataset, fn embedding.Function, opts ...Option) ([]Result, error) {
	if ds == nil {
		return nil, ErrDatasetRequired
	}
	if fn == nil {
		return nil, ErrFunctionRequired
	}

	e := &evaluator{
		path:      DefaultPath,
		tableName: DefaultTableName,
		limit:     DefaultLimit,
		logger:    slog.Default(),
		monitor:   &noopMonitor{},
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	e.logger = e.logger.With("component", "eval")
	if e.connect == nil {
		e.connect = badger.Connector(badger.WithLogger(e.logger))
	}

	if len(ds.Queries) == 0 && len(ds.Corpus) == 0 {
		e.logger.Debug("dataset is empty")
		return []Result{}, nil
	}
	return e.run(ctx, ds, fn)
}

func (e *evaluator) run(ctx context.Context, ds *dataset.QADataset, fn embedding.Function) ([]Result, error) {
	e.monitor.Start(len(ds.Queries))

	db, err := e.connect(ctx, e.path)
	if err != nil {
		e.logger.Error("failed to connect to vector store", "path", e.path, "err", err)
		return nil, fmt.Errorf("connect to %s: %w", e.path, err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			e.logger.Warn("failed to close vector store", "path", e.path, "err", err)
		}
	}()

	table, err := db.CreateTable(ctx, e.tableName, storage.TextSchema(fn), storage.ModeOverwrite)
	if err != nil {
		e.logger.Error("failed to create table", "table", e.tableName, "err", err)
		return nil, fmt.Errorf("create table %s: %w", e.tableName, err)
	}

	rows := make([]storage.Row, len(ds.Corpus))
	for i, doc := range ds.Corpus {
		rows[i] = storage.Row{storage.IDColumn: doc.ID, storage.TextColumn: doc.Text}
	}
	if err := table.Add(ctx, rows); err != nil {
		e.logger.Error("failed to index corpus", "table", e.tableName, "docs", len(rows), "err", err)
		return nil, fmt.Errorf("index corpus: %w", err)
	}
	e.monitor.AfterIndex(len(rows))
	e.logger.Debug("indexed corpus", "table", e.tableName, "docs", len(rows), "function", fn.Name())

	e.progress.Start()
	defer e.progress.Finish()

	results := make([]Result, 0, len(ds.Queries))
	for _, q := range ds.Queries {
		expected, err := ds.ExpectedDoc(q.ID)
		if err != nil {
			return nil, err
		}

		hits, err := table.Search(q.Text).Limit(e.limit).Select(storage.IDColumn).ToList(ctx)
		if err != nil {
			e.logger.Error("search failed", "query_id", q.ID, "err", err)
			return nil, fmt.Errorf("search query %s: %w", q.ID, err)
		}

		retrieved := make([]string, len(hits))
		for i, hit := range hits {
			retrieved[i] = hit.ID()
		}
		result := Result{
			QueryID:   q.ID,
			Query:     q.Text,
			IsHit:     slices.Contains(retrieved, expected),
			Retrieved: retrieved,
			Expected:  expected,
		}
		results = append(results, result)
		e.monitor.AfterQuery(result)
		e.progress.Increment(1)
	}

	e.monitor.Finish(results)
	e.logger.Info("evaluation complete", "queries", len(results), "function", fn.Name())
	return results, nil
}
