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


package main

import (
	"bufio"
	"fmt"
	"iter"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/poiesic/embedkit"
	"github.com/poiesic/embedkit/ai"
	"github.com/poiesic/embedkit/ai/openai"
	"github.com/poiesic/embedkit/config"
	"github.com/poiesic/embedkit/dataset"
	"github.com/poiesic/embedkit/embedding"
	"github.com/poiesic/embedkit/eval"
	"github.com/poiesic/embedkit/progress"
)

const (
	metadataConfig   = "config"
	metadataRegistry = "metrics-registry"
	metadataMetrics  = "metrics"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "embedkit",
		Usage: "Generate QA datasets and benchmark embedding functions on retrieval",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML configuration file",
			},
			&cli.StringFlag{
				Name:  "metrics",
				Usage: "Write embedding metrics in Prometheus text format to this file on exit",
			},
		},
		Before: setup,
		After:  writeMetrics,
		Commands: []*cli.Command{
			{
				Name:   "generate",
				Usage:  "Generate a QA dataset from text chunks with a chat model",
				Action: generateCommand,
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:     "input",
						Aliases:  []string{"i"},
						Usage:    "Text file with one chunk per line; repeat for several documents",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "output",
						Aliases:  []string{"o"},
						Usage:    "Directory to write the dataset to",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "mode",
						Usage: "Save mode (overwrite, create)",
						Value: string(dataset.SaveOverwrite),
					},
					&cli.StringFlag{
						Name:  "llm-host",
						Usage: "Chat service host URL",
					},
					&cli.StringFlag{
						Name:  "llm-model",
						Usage: "Chat model name",
					},
					&cli.IntFlag{
						Name:  "questions",
						Usage: "Number of questions per chunk",
					},
					&cli.IntFlag{
						Name:  "concurrency",
						Usage: "Number of concurrent chat requests",
					},
					&cli.IntFlag{
						Name:  "window",
						Usage: "Join this many consecutive chunks into one node (0 disables)",
					},
					&cli.IntFlag{
						Name:  "stride",
						Usage: "Step between rolling windows",
					},
					&cli.BoolFlag{
						Name:  "group-by-doc",
						Usage: "Only join chunks of the same input file",
					},
					&cli.StringFlag{
						Name:  "prompt-file",
						Usage: "Go text/template prompt with .ContextStr and .NumQuestionsPerChunk",
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N chunks",
						Value: 10,
					},
				},
			},
			{
				Name:   "evaluate",
				Usage:  "Measure the retrieval hit rate of an embedding function on a QA dataset",
				Action: evaluateCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "dataset",
						Aliases:  []string{"d"},
						Usage:    "Directory of a saved QA dataset",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "provider",
						Aliases: []string{"p"},
						Usage:   "Embedding function name (see providers)",
					},
					&cli.StringSliceFlag{
						Name:  "param",
						Usage: "Provider parameter as key=value; repeatable",
					},
					&cli.StringFlag{
						Name:  "path",
						Usage: "Directory of the vector store",
					},
					&cli.StringFlag{
						Name:  "table",
						Usage: "Table to index the corpus into",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Number of documents retrieved per query",
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for failed embedding calls",
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
					},
					&cli.BoolFlag{
						Name:  "show-misses",
						Usage: "Print every query whose expected document was not retrieved",
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N queries",
						Value: 10,
					},
				},
			},
			{
				Name:   "providers",
				Usage:  "List the available embedding functions",
				Action: providersCommand,
			},
		},
	}
}

// setup loads the configuration and configures logging and metrics.
func setup(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if c.IsSet("log-level") {
		cfg.Logging.Level = c.String("log-level")
	}
	if err := setupLogger(c, cfg.Logging.Level); err != nil {
		return err
	}
	c.App.Metadata = map[string]any{metadataConfig: cfg}

	if c.String("metrics") != "" {
		reg := prometheus.NewRegistry()
		m, err := embedding.NewMetrics(reg)
		if err != nil {
			return fmt.Errorf("failed to register metrics: %w", err)
		}
		c.App.Metadata[metadataRegistry] = reg
		c.App.Metadata[metadataMetrics] = m
	}
	return nil
}

func setupLogger(c *cli.Context, levelStr string) error {
	level, err := config.ParseLevel(levelStr)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(c.App.ErrWriter, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}

func writeMetrics(c *cli.Context) error {
	reg, ok := c.App.Metadata[metadataRegistry].(*prometheus.Registry)
	if !ok {
		return nil
	}
	if err := prometheus.WriteToTextfile(c.String("metrics"), reg); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}

func appConfig(c *cli.Context) config.Config {
	if cfg, ok := c.App.Metadata[metadataConfig].(config.Config); ok {
		return cfg
	}
	return config.Default()
}

func newRegistry(c *cli.Context) (*embedding.Registry, error) {
	var opts []embedding.Option
	if m, ok := c.App.Metadata[metadataMetrics].(*embedding.Metrics); ok {
		opts = append(opts, embedding.WithMetrics(m))
	}
	return embedkit.NewRegistry(opts...)
}

func generateCommand(c *cli.Context) error {
	ctx := c.Context
	gen := appConfig(c).Generate
	llm := appConfig(c).LLM

	if c.IsSet("llm-host") {
		llm.Host = c.String("llm-host")
	}
	if c.IsSet("llm-model") {
		llm.Model = c.String("llm-model")
	}
	if c.IsSet("questions") {
		gen.QuestionsPerChunk = c.Int("questions")
	}
	if c.IsSet("concurrency") {
		gen.Concurrency = c.Int("concurrency")
	}
	if c.IsSet("window") {
		gen.Window = c.Int("window")
	}
	if c.IsSet("stride") {
		gen.Stride = c.Int("stride")
	}
	if c.IsSet("group-by-doc") {
		gen.GroupByDoc = c.Bool("group-by-doc")
	}
	if c.IsSet("prompt-file") {
		gen.PromptFile = c.String("prompt-file")
	}
	interval := c.Int("report-interval")
	if interval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}

	nodes, err := readNodes(c.StringSlice("input"))
	if err != nil {
		return err
	}
	if gen.Window > 0 {
		nodes, err = dataset.Contextualize(nodes, gen.Window, gen.Stride, gen.GroupByDoc)
		if err != nil {
			return err
		}
	}

	aiOpts := []ai.ConfigOption{ai.WithTemperature(llm.Temperature)}
	if llm.Host != "" {
		aiOpts = append(aiOpts, ai.WithChatHost(llm.Host))
	}
	if llm.Model != "" {
		aiOpts = append(aiOpts, ai.WithChatModel(llm.Model))
	}
	if llm.Token != "" {
		aiOpts = append(aiOpts, ai.WithToken(llm.Token))
	}
	aiConfig := ai.NewConfig(aiOpts...)
	if err := aiConfig.Validate(); err != nil {
		return fmt.Errorf("invalid AI configuration: %w", err)
	}

	chat, err := openai.NewChatModel(aiConfig)
	if err != nil {
		return fmt.Errorf("failed to create chat model: %w", err)
	}

	opts := []dataset.GenerateOption{
		dataset.WithQuestionsPerChunk(gen.QuestionsPerChunk),
		dataset.WithConcurrency(gen.Concurrency),
		dataset.WithProgress(progress.New(c.App.ErrWriter, "Generating", "chunks", len(nodes), interval)),
	}
	if gen.PromptFile != "" {
		prompt, err := os.ReadFile(gen.PromptFile)
		if err != nil {
			return fmt.Errorf("failed to read prompt: %w", err)
		}
		opts = append(opts, dataset.WithPromptTemplate(string(prompt)))
	}

	fmt.Fprintf(c.App.ErrWriter, "Chat host: %s\n", aiConfig.ChatHost)
	fmt.Fprintf(c.App.ErrWriter, "Chat model: %s\n", aiConfig.ChatModel)
	fmt.Fprintf(c.App.ErrWriter, "Nodes: %d\n", len(nodes))
	fmt.Fprintln(c.App.ErrWriter)

	ds, err := dataset.Generate(ctx, nodes, chat, opts...)
	if err != nil {
		return fmt.Errorf("generation failed: %w", err)
	}

	output := c.String("output")
	if err := ds.Save(output, dataset.SaveMode(c.String("mode"))); err != nil {
		return fmt.Errorf("failed to save dataset: %w", err)
	}

	fmt.Fprintf(c.App.Writer, "Generated %d queries over %d nodes in %s\n", ds.Len(), len(ds.Corpus), output)
	return nil
}

func evaluateCommand(c *cli.Context) error {
	ctx := c.Context
	cfg := appConfig(c)
	emb := cfg.Embedding
	ev := cfg.Eval

	if c.IsSet("provider") {
		emb.Provider = c.String("provider")
		emb.Params = map[string]any{}
	}
	if c.IsSet("max-retries") {
		retries := c.Int("max-retries")
		emb.MaxRetries = &retries
	}
	if c.IsSet("retry-delay") {
		emb.RetryDelay = c.Duration("retry-delay")
	}
	if c.IsSet("path") {
		ev.Path = c.String("path")
	}
	if c.IsSet("table") {
		ev.Table = c.String("table")
	}
	if c.IsSet("limit") {
		ev.Limit = c.Int("limit")
	}
	interval := c.Int("report-interval")
	if interval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}

	params := emb.FunctionParams()
	if err := parseParams(c.StringSlice("param"), params); err != nil {
		return err
	}

	registry, err := newRegistry(c)
	if err != nil {
		return err
	}
	fn, err := registry.Create(emb.Provider, params)
	if err != nil {
		return fmt.Errorf("failed to create embedding function: %w", err)
	}

	ds, err := dataset.Load(c.String("dataset"))
	if err != nil {
		return fmt.Errorf("failed to load dataset: %w", err)
	}

	connect, err := embedkit.Connector(embedkit.WithRegistry(registry))
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.ErrWriter, "Dataset: %s (%d queries, %d documents)\n", c.String("dataset"), ds.Len(), len(ds.Corpus))
	fmt.Fprintf(c.App.ErrWriter, "Embedding function: %s (%d dims)\n", fn.Name(), fn.NDims())
	fmt.Fprintf(c.App.ErrWriter, "Vector store: %s\n", ev.Path)
	fmt.Fprintln(c.App.ErrWriter)

	results, err := eval.Evaluate(ctx, ds, fn,
		eval.WithPath(ev.Path),
		eval.WithTableName(ev.Table),
		eval.WithLimit(ev.Limit),
		eval.WithConnector(connect),
		eval.WithProgress(progress.New(c.App.ErrWriter, "Evaluating", "queries", ds.Len(), interval)),
	)
	if err != nil {
		return fmt.Errorf("evaluation failed: %w", err)
	}

	if c.Bool("show-misses") {
		for _, r := range results {
			if r.IsHit {
				continue
			}
			fmt.Fprintf(c.App.Writer, "miss %s: %q expected %s, got [%s]\n",
				r.QueryID, r.Query, r.Expected, strings.Join(r.Retrieved, ", "))
		}
	}
	fmt.Fprintln(c.App.Writer, eval.Summarize(results))
	return nil
}

func providersCommand(c *cli.Context) error {
	registry, err := newRegistry(c)
	if err != nil {
		return err
	}
	for _, name := range registry.Names() {
		fmt.Fprintln(c.App.Writer, name)
	}
	return nil
}

// parseParams adds key=value pairs to params. Values are parsed as YAML
// scalars, so numbers and booleans keep their type.
func parseParams(pairs []string, params map[string]any) error {
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return fmt.Errorf("invalid param %q: want key=value", pair)
		}
		var value any
		if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
			return fmt.Errorf("invalid param %q: %w", pair, err)
		}
		if value == nil {
			value = raw
		}
		params[key] = value
	}
	return nil
}

// readNodes turns every non-empty line of each file into a node. The file
// name is the document id.
func readNodes(paths []string) ([]dataset.TextNode, error) {
	var nodes []dataset.TextNode
	for _, path := range paths {
		lines, err := linesFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read input: %w", err)
		}
		docID := filepath.Base(path)
		n := 0
		for line := range lines {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			nodes = append(nodes, dataset.TextNode{
				ID:    fmt.Sprintf("%s:%d", docID, n),
				Text:  line,
				DocID: docID,
			})
			n++
		}
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("input files contain no text")
	}
	return nodes, nil
}

// linesFromFile returns an iterator over lines in a file.
func linesFromFile(filename string) (iter.Seq[string], error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	return func(yield func(string) bool) {
		defer f.Close()
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			if !yield(scanner.Text()) {
				return
			}
		}
	}, nil
}
