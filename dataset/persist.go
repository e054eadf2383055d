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
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"
)

// File names inside a saved dataset directory.
const (
	QueriesFile      = "queries.parquet"
	CorpusFile       = "corpus.parquet"
	RelevantDocsFile = "relevant_docs.parquet"
)

// SaveMode controls what Save does when the dataset files already exist.
type SaveMode string

const (
	// SaveOverwrite replaces existing files.
	SaveOverwrite SaveMode = "overwrite"
	// SaveCreate fails with ErrDatasetExists if any file exists.
	SaveCreate SaveMode = "create"
)

type queryRecord struct {
	ID    string `parquet:"id"`
	Query string `parquet:"query"`
}

type corpusRecord struct {
	ID   string `parquet:"id"`
	Text string `parquet:"text"`
}

type relevantDocsRecord struct {
	QueryID string   `parquet:"query_id"`
	DocID   []string `parquet:"doc_id,list"`
}

func (m SaveMode) validate() error {
	switch m {
	case SaveOverwrite, SaveCreate:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidSaveMode, m)
}

// Save writes the dataset as three parquet files under dir.
// An empty mode means SaveOverwrite.
func (d *QADataset) Save(dir string, mode SaveMode) error {
	if mode == "" {
		mode = SaveOverwrite
	}
	if err := mode.validate(); err != nil {
		return err
	}
	if err := d.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create dataset directory: %w", err)
	}

	files := []string{QueriesFile, CorpusFile, RelevantDocsFile}
	if mode == SaveCreate {
		for _, name := range files {
			_, err := os.Stat(filepath.Join(dir, name))
			if err == nil {
				return fmt.Errorf("%w: %s", ErrDatasetExists, filepath.Join(dir, name))
			}
			if !errors.Is(err, fs.ErrNotExist) {
				return err
			}
		}
	}

	queries := make([]queryRecord, len(d.Queries))
	for i, q := range d.Queries {
		queries[i] = queryRecord{ID: q.ID, Query: q.Text}
	}

	corpus := make([]corpusRecord, len(d.Corpus))
	for i, doc := range d.Corpus {
		corpus[i] = corpusRecord{ID: doc.ID, Text: doc.Text}
	}

	relevant := make([]relevantDocsRecord, 0, len(d.RelevantDocs))
	for _, q := range d.Queries {
		if docs, ok := d.RelevantDocs[q.ID]; ok {
			relevant = append(relevant, relevantDocsRecord{QueryID: q.ID, DocID: docs})
		}
	}

	if err := parquet.WriteFile(filepath.Join(dir, QueriesFile), queries); err != nil {
		return fmt.Errorf("write queries: %w", err)
	}
	if err := parquet.WriteFile(filepath.Join(dir, CorpusFile), corpus); err != nil {
		return fmt.Errorf("write corpus: %w", err)
	}
	if err := parquet.WriteFile(filepath.Join(dir, RelevantDocsFile), relevant); err != nil {
		return fmt.Errorf("write relevant docs: %w", err)
	}

	slog.Debug("saved QA dataset", "dir", dir, "queries", len(queries), "corpus", len(corpus))
	return nil
}

// Load reads a dataset written by Save.
func Load(dir string) (*QADataset, error) {
	queries, err := parquet.ReadFile[queryRecord](filepath.Join(dir, QueriesFile))
	if err != nil {
		return nil, fmt.Errorf("read queries: %w", err)
	}
	corpus, err := parquet.ReadFile[corpusRecord](filepath.Join(dir, CorpusFile))
	if err != nil {
		return nil, fmt.Errorf("read corpus: %w", err)
	}
	relevant, err := parquet.ReadFile[relevantDocsRecord](filepath.Join(dir, RelevantDocsFile))
	if err != nil {
		return nil, fmt.Errorf("read relevant docs: %w", err)
	}

	ds := &QADataset{
		Queries:      make([]Query, len(queries)),
		Corpus:       make([]Document, len(corpus)),
		RelevantDocs: make(map[string][]string, len(relevant)),
		Mode:         ModeText,
	}
	for i, q := range queries {
		ds.Queries[i] = Query{ID: q.ID, Text: q.Query}
	}
	for i, doc := range corpus {
		ds.Corpus[i] = Document{ID: doc.ID, Text: doc.Text}
	}
	for _, r := range relevant {
		docs := r.DocID
		if docs == nil {
			docs = []string{}
		}
		ds.RelevantDocs[r.QueryID] = docs
	}

	if err := ds.Validate(); err != nil {
		return nil, err
	}
	return ds, nil
}
