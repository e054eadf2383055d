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

package dataset

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/embedkit/ai/mock"
	"github.com/poiesic/embedkit/progress"
)

func sequentialIDs() func() string {
	var n atomic.Int32
	return func() string {
		return fmt.Sprintf("q%d", n.Add(1))
	}
}

func TestParseQuestions(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     []string
	}{
		{"numbered", "1. What is X?\n2. What is Y?\n", []string{"What is X?", "What is Y?"}},
		{"parenthesis", "1) First\n2) Second", []string{"First", "Second"}},
		{"space marker", "3 Third question", []string{"Third question"}},
		{"blank lines", "\n\n1. A\n\n   \n2. B\n\n", []string{"A", "B"}},
		{"no markers", "Plain question?", []string{"Plain question?"}},
		{"empty", "", []string{}},
		{"marker only", "1.\n2.", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseQuestions(tt.response))
		})
	}
}

func TestGenerate(t *testing.T) {
	llm := mock.NewMockChatModel("1. What is X?\n2. What is Y?\n")
	nodes := []TextNode{{ID: "n1", Text: "X and Y are things."}}

	ds, err := Generate(context.Background(), nodes, llm)
	require.NoError(t, err)

	require.Len(t, ds.Queries, 2)
	assert.Equal(t, "What is X?", ds.Queries[0].Text)
	assert.Equal(t, "What is Y?", ds.Queries[1].Text)
	for _, q := range ds.Queries {
		_, err := uuid.Parse(q.ID)
		assert.NoError(t, err, "query ids are uuids")
		assert.Equal(t, []string{"n1"}, ds.RelevantDocs[q.ID])
	}
	assert.NotEqual(t, ds.Queries[0].ID, ds.Queries[1].ID)
	assert.Equal(t, []Document{{ID: "n1", Text: "X and Y are things."}}, ds.Corpus)
	assert.Equal(t, ModeText, ds.Mode)
}

func TestGenerate_Prompt(t *testing.T) {
	llm := mock.NewMockChatModel("Q?")
	nodes := []TextNode{{ID: "n1", Text: "the chunk text"}}

	_, err := Generate(context.Background(), nodes, llm, WithQuestionsPerChunk(5))
	require.NoError(t, err)

	prompts := llm.Prompts()
	require.Len(t, prompts, 1)
	assert.True(t, strings.HasPrefix(prompts[0], "Context information is below.\n"))
	assert.Contains(t, prompts[0], "---------------------\nthe chunk text\n---------------------")
	assert.Contains(t, prompts[0], "setup 5 questions for an upcoming quiz/examination")
}

func TestGenerate_CustomTemplate(t *testing.T) {
	llm := mock.NewMockChatModel("Q?")
	nodes := []TextNode{{ID: "n1", Text: "abc"}}

	_, err := Generate(context.Background(), nodes, llm,
		WithPromptTemplate("{{.NumQuestionsPerChunk}}:{{.ContextStr}}"))
	require.NoError(t, err)
	assert.Equal(t, []string{"2:abc"}, llm.Prompts())
}

func TestGenerate_BadTemplate(t *testing.T) {
	_, err := Generate(context.Background(), nil, mock.NewMockChatModel(""),
		WithPromptTemplate("{{.Broken"))
	assert.Error(t, err)
}

func TestGenerate_InvalidQuestions(t *testing.T) {
	_, err := Generate(context.Background(), nil, mock.NewMockChatModel(""),
		WithQuestionsPerChunk(0))
	assert.Error(t, err)
}

func TestGenerate_NilModel(t *testing.T) {
	_, err := Generate(context.Background(), nil, nil)
	assert.ErrorIs(t, err, ErrChatModelRequired)
}

func TestGenerate_NoNodes(t *testing.T) {
	ds, err := Generate(context.Background(), nil, mock.NewMockChatModel("1. A"))
	require.NoError(t, err)
	assert.Zero(t, ds.Len())
	assert.Empty(t, ds.Corpus)
}

func TestGenerate_ModelError(t *testing.T) {
	boom := errors.New("model down")
	llm := &mock.MockChatModel{
		ChatCompletionFunc: func(ctx context.Context, prompt string) (string, error) {
			return "", boom
		},
	}
	_, err := Generate(context.Background(), []TextNode{{ID: "n1", Text: "a"}}, llm)
	assert.ErrorIs(t, err, boom)
}

func TestGenerate_ConcurrentKeepsOrder(t *testing.T) {
	llm := &mock.MockChatModel{
		ChatCompletionFunc: func(ctx context.Context, prompt string) (string, error) {
			// Later nodes answer faster.
			idx := strings.Index(prompt, "node-")
			n := prompt[idx+5 : idx+6]
			switch n {
			case "0":
				time.Sleep(30 * time.Millisecond)
			case "1":
				time.Sleep(15 * time.Millisecond)
			}
			return "1. about node-" + n, nil
		},
	}

	nodes := make([]TextNode, 4)
	for i := range nodes {
		nodes[i] = TextNode{ID: fmt.Sprintf("n%d", i), Text: fmt.Sprintf("node-%d", i)}
	}

	ds, err := Generate(context.Background(), nodes, llm,
		WithConcurrency(4), WithIDGenerator(sequentialIDs()))
	require.NoError(t, err)

	require.Len(t, ds.Queries, 4)
	for i, q := range ds.Queries {
		assert.Equal(t, fmt.Sprintf("about node-%d", i), q.Text)
		assert.Equal(t, []string{fmt.Sprintf("n%d", i)}, ds.RelevantDocs[q.ID])
	}
	assert.Equal(t, "q1", ds.Queries[0].ID)
}

func TestGenerate_ConcurrentError(t *testing.T) {
	boom := errors.New("model down")
	llm := &mock.MockChatModel{
		ChatCompletionFunc: func(ctx context.Context, prompt string) (string, error) {
			if strings.Contains(prompt, "node-2") {
				return "", boom
			}
			return "1. ok", nil
		},
	}

	nodes := make([]TextNode, 5)
	for i := range nodes {
		nodes[i] = TextNode{ID: fmt.Sprintf("n%d", i), Text: fmt.Sprintf("node-%d", i)}
	}

	_, err := Generate(context.Background(), nodes, llm, WithConcurrency(3))
	assert.ErrorIs(t, err, boom)
}

func TestGenerate_Progress(t *testing.T) {
	var buf bytes.Buffer
	tracker := progress.New(&buf, "Generating", "chunks", 2, 1)
	nodes := []TextNode{{ID: "n1", Text: "a"}, {ID: "n2", Text: "b"}}

	_, err := Generate(context.Background(), nodes, mock.NewMockChatModel("1. Q"),
		WithProgress(tracker))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Generating: 2/2")
	assert.Equal(t, 2, tracker.Current())
}

func TestGenerate_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	llm := &mock.MockChatModel{
		ChatCompletionFunc: func(ctx context.Context, prompt string) (string, error) {
			cancel()
			return "", ctx.Err()
		},
	}

	_, err := Generate(ctx, []TextNode{{ID: "n1", Text: "a"}}, llm)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTextNode_String(t *testing.T) {
	assert.Equal(t, "chunk", TextNode{ID: "1", Text: "chunk", DocID: "d"}.String())
}
