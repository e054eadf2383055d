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

package bleve

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, idx *Index) {
	t.Helper()
	err := idx.IndexDocuments(context.Background(), map[string]map[string]string{
		"d1": {"text": "the quick brown fox", "title": "animals"},
		"d2": {"text": "a lazy dog sleeps", "title": "animals"},
		"d3": {"text": "vector databases store embeddings", "title": "databases"},
	})
	require.NoError(t, err)
}

func TestIndex_Memory(t *testing.T) {
	idx, err := Open("", []string{"text", "title"})
	require.NoError(t, err)
	defer idx.Close()
	seed(t, idx)

	count, err := idx.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), count)

	hits, err := idx.Search(context.Background(), "fox", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "d1", hits[0].ID)
	assert.Greater(t, hits[0].Score, 0.0)

	hits, err = idx.Search(context.Background(), "databases", 10)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "d3", hits[0].ID)
}

func TestIndex_Limit(t *testing.T) {
	idx, err := Open("", []string{"text", "title"})
	require.NoError(t, err)
	defer idx.Close()
	seed(t, idx)

	hits, err := idx.Search(context.Background(), "animals", 1)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestIndex_EmptyQuery(t *testing.T) {
	idx, err := Open("", []string{"text"})
	require.NoError(t, err)
	defer idx.Close()
	seed(t, idx)

	hits, err := idx.Search(context.Background(), "  ", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestIndex_Delete(t *testing.T) {
	idx, err := Open("", []string{"text"})
	require.NoError(t, err)
	defer idx.Close()
	seed(t, idx)

	require.NoError(t, idx.Delete(context.Background(), "d1"))
	hits, err := idx.Search(context.Background(), "fox", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestIndex_DiskReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fts", "table")

	idx, err := Open(path, []string{"text"})
	require.NoError(t, err)
	seed(t, idx)
	require.NoError(t, idx.Close())

	idx, err = Open(path, []string{"text"})
	require.NoError(t, err)
	hits, err := idx.Search(context.Background(), "dog", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "d2", hits[0].ID)

	require.NoError(t, idx.Destroy())
	assert.NoDirExists(t, path)
}

func TestOpen_NoFields(t *testing.T) {
	_, err := Open("", nil)
	assert.ErrorIs(t, err, ErrNoFields)
}
