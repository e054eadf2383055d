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
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/embedkit/dataset"
	"github.com/poiesic/embedkit/embedding"
	"github.com/poiesic/embedkit/embedding/hash"
	"github.com/poiesic/embedkit/storage"
	"github.com/poiesic/embedkit/storage/badger"
)

func hashFunction(t *testing.T) embedding.Function {
	t.Helper()
	fn, err := hash.New(hash.DefaultConfig())
	require.NoError(t, err)
	return fn
}

func smallDataset(t *testing.T) *dataset.QADataset {
	t.Helper()
	ds, err := dataset.New(
		[]dataset.Query{{ID: "q1", Text: "text a"}},
		[]dataset.Document{{ID: "d1", Text: "text a"}, {ID: "d2", Text: "text b"}},
		map[string][]string{"q1": {"d1"}},
	)
	require.NoError(t, err)
	return ds
}

func memoryConnector() Option {
	return WithConnector(badger.Connector(badger.WithInMemory()))
}

type recordingMonitor struct {
	mu      sync.Mutex
	started int
	indexed int
	queries []string
	results []Result
}

func (m *recordingMonitor) Start(queries int) { m.started = queries }
func (m *recordingMonitor) AfterIndex(rows int) { m.indexed = rows }
func (m *recordingMonitor) AfterQuery(r Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, r.QueryID)
}
func (m *recordingMonitor) Finish(results []Result) { m.results = results }

type failingGenerator struct{ err error }

func (g failingGenerator) NDims() int { return 4 }

func (g failingGenerator) GenerateEmbeddings(context.Context, []string) ([]embedding.Vector, error) {
	return nil, g.err
}

func TestEvaluate_Deterministic(t *testing.T) {
	ctx := context.Background()
	ds := smallDataset(t)
	fn := hashFunction(t)

	first, err := Evaluate(ctx, ds, fn, WithPath(t.TempDir()))
	require.NoError(t, err)
	require.Len(t, first, 1)

	r := first[0]
	assert.Equal(t, "q1", r.QueryID)
	assert.Equal(t, "text a", r.Query)
	assert.Equal(t, "d1", r.Expected)
	assert.True(t, r.IsHit)
	assert.Equal(t, []string{"d1", "d2"}, r.Retrieved)
	assert.Equal(t, 1, r.Rank())

	second, err := Evaluate(ctx, ds, fn, WithPath(t.TempDir()))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestEvaluate_ReusesPath(t *testing.T) {
	ctx := context.Background()
	path := t.TempDir()
	ds := smallDataset(t)

	_, err := Evaluate(ctx, ds, hashFunction(t), WithPath(path), WithTableName("run"))
	require.NoError(t, err)

	results, err := Evaluate(ctx, ds, hashFunction(t), WithPath(path), WithTableName("run"))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Len(t, results[0].Retrieved, 2, "table is overwritten, not appended to")
}

func TestEvaluate_Limit(t *testing.T) {
	results, err := Evaluate(context.Background(), smallDataset(t), hashFunction(t),
		memoryConnector(), WithLimit(1))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, []string{"d1"}, results[0].Retrieved)
}

func TestEvaluate_Miss(t *testing.T) {
	ds, err := dataset.New(
		[]dataset.Query{{ID: "q1", Text: "text a"}},
		[]dataset.Document{{ID: "d1", Text: "text a"}, {ID: "d2", Text: "text b"}},
		map[string][]string{"q1": {"d2"}},
	)
	require.NoError(t, err)

	results, err := Evaluate(context.Background(), ds, hashFunction(t), memoryConnector(), WithLimit(1))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].IsHit)
	assert.Equal(t, "d2", results[0].Expected)
	assert.Zero(t, results[0].Rank())
}

func TestEvaluate_EmptyDataset(t *testing.T) {
	ds, err := dataset.New(nil, nil, nil)
	require.NoError(t, err)

	called := false
	connect := func(context.Context, string) (storage.Database, error) {
		called = true
		return nil, errors.New("unexpected connect")
	}

	results, err := Evaluate(context.Background(), ds, hashFunction(t), WithConnector(connect))
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
	assert.False(t, called)
}

func TestEvaluate_NoQueriesStillIndexes(t *testing.T) {
	ds, err := dataset.New(nil,
		[]dataset.Document{{ID: "d1", Text: "text a"}, {ID: "d2", Text: "text b"}},
		nil,
	)
	require.NoError(t, err)

	monitor := &recordingMonitor{}
	results, err := Evaluate(context.Background(), ds, hashFunction(t), memoryConnector(), WithMonitor(monitor))
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
	assert.Equal(t, 2, monitor.indexed)
	assert.Empty(t, monitor.queries)
}

func TestEvaluate_Monitor(t *testing.T) {
	ds, err := dataset.New(
		[]dataset.Query{{ID: "q1", Text: "text a"}, {ID: "q2", Text: "text b"}},
		[]dataset.Document{{ID: "d1", Text: "text a"}, {ID: "d2", Text: "text b"}},
		map[string][]string{"q1": {"d1"}, "q2": {"d2"}},
	)
	require.NoError(t, err)

	monitor := &recordingMonitor{}
	results, err := Evaluate(context.Background(), ds, hashFunction(t), memoryConnector(), WithMonitor(monitor))
	require.NoError(t, err)

	assert.Equal(t, 2, monitor.started)
	assert.Equal(t, 2, monitor.indexed)
	assert.Equal(t, []string{"q1", "q2"}, monitor.queries)
	assert.Equal(t, results, monitor.results)
}

func TestEvaluate_Errors(t *testing.T) {
	ctx := context.Background()
	ds := smallDataset(t)
	fn := hashFunction(t)

	t.Run("nil dataset", func(t *testing.T) {
		_, err := Evaluate(ctx, nil, fn)
		assert.Equal(t, ErrDatasetRequired, err)
	})

	t.Run("nil function", func(t *testing.T) {
		_, err := Evaluate(ctx, ds, nil)
		assert.Equal(t, ErrFunctionRequired, err)
	})

	t.Run("invalid options", func(t *testing.T) {
		_, err := Evaluate(ctx, ds, fn, WithLimit(0))
		assert.Error(t, err)
		_, err = Evaluate(ctx, ds, fn, WithPath(""))
		assert.Error(t, err)
		_, err = Evaluate(ctx, ds, fn, WithTableName(""))
		assert.Error(t, err)
	})

	t.Run("connect failure", func(t *testing.T) {
		boom := errors.New("boom")
		connect := func(context.Context, string) (storage.Database, error) { return nil, boom }
		_, err := Evaluate(ctx, ds, fn, WithConnector(connect))
		assert.ErrorIs(t, err, boom)
	})

	t.Run("embedding failure", func(t *testing.T) {
		boom := errors.New("provider down")
		failing, err := embedding.NewTextFunction("failing", failingGenerator{err: boom}, nil, embedding.TextSettings{})
		require.NoError(t, err)

		_, err = Evaluate(ctx, ds, failing, memoryConnector())
		assert.ErrorIs(t, err, boom)
	})

	t.Run("query without relevant docs", func(t *testing.T) {
		broken := &dataset.QADataset{
			Queries: []dataset.Query{{ID: "q1", Text: "text a"}},
			Corpus:  []dataset.Document{{ID: "d1", Text: "text a"}},
			Mode:    dataset.ModeText,
		}
		_, err := Evaluate(ctx, broken, fn, memoryConnector())
		assert.ErrorIs(t, err, dataset.ErrInvalidDataset)
	})

	t.Run("canceled context", func(t *testing.T) {
		canceled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := Evaluate(canceled, ds, fn, memoryConnector())
		assert.ErrorIs(t, err, context.Canceled)
	})
}
