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

package mock

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockEmbedder_Deterministic(t *testing.T) {
	m := NewMockEmbedder()
	ctx := context.Background()

	vectors, err := m.EmbedTexts(ctx, []string{"alpha", "beta", "alpha"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	assert.Len(t, vectors[0], DefaultDimensions)
	assert.Equal(t, vectors[0], vectors[2])
	assert.NotEqual(t, vectors[0], vectors[1])

	var sum float64
	for _, v := range vectors[0] {
		sum += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5)

	single, err := m.EmbedText(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, vectors[0], single)

	assert.Equal(t, 2, m.CallCount())
	assert.Equal(t, []string{"alpha", "beta", "alpha", "alpha"}, m.Texts())
}

func TestMockEmbedder_Injected(t *testing.T) {
	m := NewMockEmbedder()
	boom := errors.New("boom")
	m.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, boom
	}

	_, err := m.EmbedText(context.Background(), "x")
	assert.ErrorIs(t, err, boom)

	m.Reset()
	assert.Zero(t, m.CallCount())
	assert.Empty(t, m.Texts())
	_, err = m.EmbedText(context.Background(), "x")
	assert.NoError(t, err)
}

func TestMockChatModel(t *testing.T) {
	m := NewMockChatModel("1. Q?")

	answer, err := m.ChatCompletion(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "1. Q?", answer)

	m.ChatCompletionFunc = func(ctx context.Context, prompt string) (string, error) {
		return "echo " + prompt, nil
	}
	answer, err = m.ChatCompletion(context.Background(), "again")
	require.NoError(t, err)
	assert.Equal(t, "echo again", answer)

	assert.Equal(t, 2, m.CallCount())
	assert.Equal(t, []string{"prompt", "again"}, m.Prompts())

	m.Reset()
	assert.Zero(t, m.CallCount())
}

func TestMockProvider(t *testing.T) {
	provider := NewMockProvider()
	defer provider.Close()

	mp, ok := provider.(*MockProvider)
	require.True(t, ok)
	assert.Same(t, mp.GetMockEmbedder(), provider.Embedder())
	assert.Same(t, mp.GetMockChatModel(), provider.ChatModel())

	embedder := NewMockEmbedder()
	chat := NewMockChatModel("hi")
	custom := NewMockProviderWithServices(embedder, chat)

	answer, err := custom.ChatModel().ChatCompletion(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "hi", answer)
	assert.Equal(t, 1, chat.CallCount())
	assert.NoError(t, custom.Close())
}
