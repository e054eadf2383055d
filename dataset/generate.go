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
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"text/template"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/poiesic/embedkit/ai"
	"github.com/poiesic/embedkit/progress"
)

// DefaultQuestionsPerChunk is the number of questions requested per node.
const DefaultQuestionsPerChunk = 2

// DefaultPromptTemplate asks the model for quiz questions about one chunk.
// It receives PromptData.
const DefaultPromptTemplate = `Context information is below.

---------------------
{{.ContextStr}}
---------------------

Given the context information and not prior knowledge.
generate only questions based on the below query.

You are a Teacher/ Professor. Your task is to setup {{.NumQuestionsPerChunk}} questions for an upcoming quiz/examination. The questions should be diverse in nature across the document. Restrict the questions to the context information provided."
`

var enumerationMarker = regexp.MustCompile(`^\d+[\).\s]`)

// PromptData is the input of the prompt template.
type PromptData struct {
	ContextStr           string
	NumQuestionsPerChunk int
}

// TextNode is a chunk of source text the generator asks questions about.
type TextNode struct {
	ID    string
	Text  string
	DocID string
}

func (n TextNode) String() string {
	return n.Text
}

type generator struct {
	prompt      *template.Template
	questions   int
	concurrency int
	newID       func() string
	progress    *progress.Tracker
	logger      *slog.Logger
}

// GenerateOption configures Generate.
type GenerateOption func(*generator) error

// WithPromptTemplate replaces the default prompt. The template is parsed
// with text/template and executed with PromptData.
func WithPromptTemplate(text string) GenerateOption {
	return func(g *generator) error {
		tmpl, err := template.New("qa").Option("missingkey=error").Parse(text)
		if err != nil {
			return fmt.Errorf("parse prompt template: %w", err)
		}
		g.prompt = tmpl
		return nil
	}
}

// WithQuestionsPerChunk sets how many questions are requested per node.
func WithQuestionsPerChunk(n int) GenerateOption {
	return func(g *generator) error {
		if n < 1 {
			return fmt.Errorf("questions per chunk must be positive, got %d", n)
		}
		g.questions = n
		return nil
	}
}

// WithConcurrency sets the number of concurrent model calls.
// Default is 1.
func WithConcurrency(n int) GenerateOption {
	return func(g *generator) error {
		if n < 1 {
			n = 1
		}
		g.concurrency = n
		return nil
	}
}

// WithIDGenerator replaces the random query id source.
func WithIDGenerator(newID func() string) GenerateOption {
	return func(g *generator) error {
		if newID != nil {
			g.newID = newID
		}
		return nil
	}
}

// WithProgress reports one increment per processed node.
func WithProgress(tracker *progress.Tracker) GenerateOption {
	return func(g *generator) error {
		g.progress = tracker
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) GenerateOption {
	return func(g *generator) error {
		if logger == nil {
			logger = slog.Default()
		}
		g.logger = logger
		return nil
	}
}

// Generate asks llm for questions about every node and builds a dataset
// where each question is relevant to the node it came from. Queries follow
// node order regardless of concurrency.
func Generate(ctx context.Context, nodes []TextNode, llm ai.ChatModel, opts ...GenerateOption) (*QADataset, error) {
	if llm == nil {
		return nil, ErrChatModelRequired
	}

	g := &generator{
		prompt:      template.Must(template.New("qa").Option("missingkey=error").Parse(DefaultPromptTemplate)),
		questions:   DefaultQuestionsPerChunk,
		concurrency: 1,
		newID:       uuid.NewString,
		logger:      slog.Default().With("component", "qa-generator"),
	}
	for _, opt := range opts {
		if err := opt(g); err != nil {
			return nil, err
		}
	}

	corpus := make([]Document, len(nodes))
	for i, node := range nodes {
		corpus[i] = Document{ID: node.ID, Text: node.Text}
	}

	questions, err := g.run(ctx, nodes, llm)
	if err != nil {
		return nil, err
	}

	var queries []Query
	relevant := make(map[string][]string)
	for i, node := range nodes {
		for _, q := range questions[i] {
			id := g.newID()
			queries = append(queries, Query{ID: id, Text: q})
			relevant[id] = []string{node.ID}
		}
	}

	g.logger.Info("generated QA dataset", "nodes", len(nodes), "queries", len(queries))
	return New(queries, corpus, relevant)
}

func (g *generator) run(ctx context.Context, nodes []TextNode, llm ai.ChatModel) ([][]string, error) {
	results := make([][]string, len(nodes))
	g.progress.Start()
	defer g.progress.Finish()

	if g.concurrency == 1 {
		for i, node := range nodes {
			qs, err := g.questionsFor(ctx, node, llm)
			if err != nil {
				return nil, err
			}
			results[i] = qs
			g.progress.Increment(1)
		}
		return results, nil
	}

	pool, err := ants.NewPool(g.concurrency)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	fail := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
	}

	for i, node := range nodes {
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			qs, err := g.questionsFor(ctx, node, llm)
			if err != nil {
				fail(err)
				return
			}
			results[i] = qs
			g.progress.Increment(1)
		})
		if submitErr != nil {
			wg.Done()
			fail(fmt.Errorf("submit node %s: %w", node.ID, submitErr))
			break
		}
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (g *generator) questionsFor(ctx context.Context, node TextNode, llm ai.ChatModel) ([]string, error) {
	var prompt strings.Builder
	data := PromptData{ContextStr: node.Text, NumQuestionsPerChunk: g.questions}
	if err := g.prompt.Execute(&prompt, data); err != nil {
		return nil, fmt.Errorf("render prompt for node %s: %w", node.ID, err)
	}

	response, err := llm.ChatCompletion(ctx, prompt.String())
	if err != nil {
		g.logger.Error("question generation failed", "node", node.ID, "error", err)
		return nil, fmt.Errorf("generate questions for node %s: %w", node.ID, err)
	}

	questions := ParseQuestions(response)
	g.logger.Debug("generated questions", "node", node.ID, "count", len(questions))
	return questions, nil
}

// ParseQuestions splits a model response into one question per line,
// stripping leading enumeration like "1." or "2)".
func ParseQuestions(response string) []string {
	lines := strings.Split(strings.TrimSpace(response), "\n")
	questions := make([]string, 0, len(lines))
	for _, line := range lines {
		q := strings.TrimSpace(enumerationMarker.ReplaceAllString(line, ""))
		if q != "" {
			questions = append(questions, q)
		}
	}
	return questions
}
