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
	"testing"
	"time"

	"github.com/poiesic/embedkit/retry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextFunction_QueryMatchesSource(t *testing.T) {
	fn, err := newFakeFunction(fakeConfig{Dims: 3}, nil)
	require.NoError(t, err)

	query, err := fn.ComputeQueryEmbeddings(context.Background(), "hello")
	require.NoError(t, err)
	source, err := fn.ComputeSourceEmbeddings(context.Background(), []string{"hello"})
	require.NoError(t, err)

	assert.Equal(t, source, query)
	assert.Equal(t, []Vector{{5, 5, 5}}, query)
	assert.Equal(t, 3, fn.NDims())
}

func TestTextFunction_EmptyInput(t *testing.T) {
	gen := &fakeGenerator{dims: 2}
	fn, err := newFakeFunction(fakeConfig{Dims: 2}, gen)
	require.NoError(t, err)

	out, err := fn.ComputeSourceEmbeddings(context.Background(), []string{})
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Zero(t, gen.callCount(), "generator must not be called for empty input")
}

func TestTextFunction_UnsupportedInput(t *testing.T) {
	gen := &fakeGenerator{dims: 2}
	fn, err := newFakeFunction(fakeConfig{Dims: 2, TextSettings: fastSettings(3)}, gen)
	require.NoError(t, err)

	_, err = fn.ComputeSourceEmbeddings(context.Background(), 12)
	assert.ErrorIs(t, err, ErrUnsupportedInputType)
	assert.Zero(t, gen.callCount())
}

func TestTextFunction_Retry(t *testing.T) {
	cause := errors.New("429 too many requests")

	t.Run("recovers within budget", func(t *testing.T) {
		gen := &fakeGenerator{dims: 2, failures: 2, err: cause}
		fn, err := newFakeFunction(fakeConfig{Dims: 2, TextSettings: fastSettings(3)}, gen)
		require.NoError(t, err)

		out, err := fn.ComputeSourceEmbeddings(context.Background(), "abc")
		require.NoError(t, err)
		assert.Equal(t, []Vector{{3, 3}}, out)
		assert.Equal(t, 3, gen.callCount())
	})

	t.Run("exhausts after N+1 attempts", func(t *testing.T) {
		gen := &fakeGenerator{dims: 2, failures: 100, err: cause}
		fn, err := newFakeFunction(fakeConfig{Dims: 2, TextSettings: fastSettings(2)}, gen)
		require.NoError(t, err)

		_, err = fn.ComputeSourceEmbeddings(context.Background(), "abc")
		assert.ErrorIs(t, err, retry.ErrRetriesExhausted)
		assert.ErrorIs(t, err, cause)
		assert.Equal(t, 3, gen.callCount())
	})

	t.Run("zero retries propagates raw error", func(t *testing.T) {
		gen := &fakeGenerator{dims: 2, failures: 100, err: cause}
		fn, err := newFakeFunction(fakeConfig{Dims: 2, TextSettings: fastSettings(0)}, gen)
		require.NoError(t, err)

		_, err = fn.ComputeSourceEmbeddings(context.Background(), "abc")
		assert.Same(t, cause, err)
		assert.Equal(t, 1, gen.callCount())
	})
}

// shortGenerator always drops the last vector.
type shortGenerator struct{ calls int }

func (g *shortGenerator) GenerateEmbeddings(ctx context.Context, texts []string) ([]Vector, error) {
	g.calls++
	return make([]Vector, len(texts)-1), nil
}

func (g *shortGenerator) NDims() int { return 2 }

func TestTextFunction_ShapeMismatchNotRetried(t *testing.T) {
	gen := &shortGenerator{}
	fn, err := NewTextFunction(fakeName, gen, nil, fastSettings(5))
	require.NoError(t, err)

	_, err = fn.ComputeSourceEmbeddings(context.Background(), []string{"a", "b"})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	assert.Equal(t, 1, gen.calls)
}

func TestTextFunction_Batching(t *testing.T) {
	gen := &fakeGenerator{dims: 1}
	settings := fastSettings(0)
	settings.BatchSize = 2
	fn, err := newFakeFunction(fakeConfig{Dims: 1, TextSettings: settings}, gen)
	require.NoError(t, err)

	out, err := fn.ComputeSourceEmbeddings(context.Background(), []string{"a", "bb", "ccc", "dddd", "eeeee"})
	require.NoError(t, err)

	assert.Equal(t, []Vector{{1}, {2}, {3}, {4}, {5}}, out)
	assert.Equal(t, [][]string{{"a", "bb"}, {"ccc", "dddd"}, {"eeeee"}}, gen.calls)
}

func TestTextFunction_RateLimit(t *testing.T) {
	gen := &fakeGenerator{dims: 1}
	settings := fastSettings(0)
	settings.RateLimit = 20 // one call per 50ms after the first
	fn, err := newFakeFunction(fakeConfig{Dims: 1, TextSettings: settings}, gen)
	require.NoError(t, err)

	start := time.Now()
	for range 3 {
		_, err := fn.ComputeSourceEmbeddings(context.Background(), "x")
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestTextFunction_RateLimitCanceled(t *testing.T) {
	gen := &fakeGenerator{dims: 1}
	settings := fastSettings(5)
	settings.RateLimit = 0.01
	fn, err := newFakeFunction(fakeConfig{Dims: 1, TextSettings: settings}, gen)
	require.NoError(t, err)

	_, err = fn.ComputeSourceEmbeddings(context.Background(), "first")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = fn.ComputeSourceEmbeddings(ctx, "second")
	require.Error(t, err)
	assert.ErrorIs(t, err, errRateLimitWait)
	assert.Equal(t, 1, gen.callCount())
}

func TestTextFunction_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := NewMetrics(reg)
	require.NoError(t, err)

	gen := &fakeGenerator{dims: 1, failures: 1, err: errors.New("flaky")}
	fn, err := newFakeFunction(fakeConfig{Dims: 1, TextSettings: fastSettings(2)}, gen, WithMetrics(metrics))
	require.NoError(t, err)

	_, err = fn.ComputeSourceEmbeddings(context.Background(), []string{"a", "b"})
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Requests.WithLabelValues(fakeName, "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Requests.WithLabelValues(fakeName, "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Errors.WithLabelValues(fakeName, "generator_error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Retries.WithLabelValues(fakeName)))
	assert.Equal(t, 4.0, testutil.ToFloat64(metrics.Texts.WithLabelValues(fakeName)))

	t.Run("re-registering reuses collectors", func(t *testing.T) {
		again, err := NewMetrics(reg)
		require.NoError(t, err)
		assert.Same(t, metrics.Requests, again.Requests)
	})
}

func TestNewTextFunction_Validation(t *testing.T) {
	_, err := NewTextFunction(fakeName, nil, nil, fastSettings(0))
	assert.ErrorIs(t, err, ErrNilGenerator)

	_, err = NewTextFunction(fakeName, &fakeGenerator{dims: 1}, nil, TextSettings{MaxRetries: -1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_retries")
}

func TestDefaultTextSettings(t *testing.T) {
	s := DefaultTextSettings()
	assert.Equal(t, 7, s.MaxRetries)
	assert.Equal(t, time.Second, s.RetryDelay)
	assert.NoError(t, s.Validate())
}

func TestColumnConfig_Validate(t *testing.T) {
	fn, err := newFakeFunction(fakeConfig{Dims: 2}, nil)
	require.NoError(t, err)

	col := NewColumnConfig(fn, "text", "")
	assert.Equal(t, DefaultVectorColumn, col.VectorColumn)
	assert.NoError(t, col.Validate())

	assert.ErrorIs(t, ColumnConfig{SourceColumn: "text", VectorColumn: "v"}.Validate(), ErrInvalidColumnConfig)
	assert.ErrorIs(t, NewColumnConfig(fn, "", "v").Validate(), ErrInvalidColumnConfig)
	assert.ErrorIs(t, NewColumnConfig(fn, "v", "v").Validate(), ErrInvalidColumnConfig)
}

func TestCapabilities_NotSupported(t *testing.T) {
	fn, err := newFakeFunction(fakeConfig{Dims: 2}, nil)
	require.NoError(t, err)

	err = Finetune(context.Background(), fn, nil)
	assert.ErrorIs(t, err, ErrNotSupported)

	_, err = EvaluateCustom(context.Background(), fn, nil, "")
	assert.ErrorIs(t, err, ErrNotSupported)
}
