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
	"fmt"
	"maps"
	"slices"
)

// Mode describes what the corpus holds.
type Mode string

// ModeText is the only supported mode.
const ModeText Mode = "text"

// Query is a question with a stable id.
type Query struct {
	ID   string
	Text string
}

// Document is a corpus entry with a stable id.
type Document struct {
	ID   string
	Text string
}

// QADataset pairs queries with the corpus documents that answer them.
// Queries and Corpus keep insertion order. Treat a dataset as immutable
// once built.
type QADataset struct {
	Queries      []Query
	Corpus       []Document
	RelevantDocs map[string][]string
	Mode         Mode
}

// New builds and validates a text dataset. Inputs are copied.
func New(queries []Query, corpus []Document, relevantDocs map[string][]string) (*QADataset, error) {
	ds := &QADataset{
		Queries:      slices.Clone(queries),
		Corpus:       slices.Clone(corpus),
		RelevantDocs: make(map[string][]string, len(relevantDocs)),
		Mode:         ModeText,
	}
	for id, docs := range relevantDocs {
		ds.RelevantDocs[id] = slices.Clone(docs)
	}
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	return ds, nil
}

// Validate checks that ids are unique and that every relevant_docs entry
// refers to a known query and known documents.
func (d *QADataset) Validate() error {
	if d.Mode != "" && d.Mode != ModeText {
		return fmt.Errorf("%w: unsupported mode %q", ErrInvalidDataset, d.Mode)
	}

	queryIDs := make(map[string]struct{}, len(d.Queries))
	for _, q := range d.Queries {
		if q.ID == "" {
			return fmt.Errorf("%w: query with empty id", ErrInvalidDataset)
		}
		if _, dup := queryIDs[q.ID]; dup {
			return fmt.Errorf("%w: duplicate query id %q", ErrInvalidDataset, q.ID)
		}
		queryIDs[q.ID] = struct{}{}
	}

	docIDs := make(map[string]struct{}, len(d.Corpus))
	for _, doc := range d.Corpus {
		if doc.ID == "" {
			return fmt.Errorf("%w: document with empty id", ErrInvalidDataset)
		}
		if _, dup := docIDs[doc.ID]; dup {
			return fmt.Errorf("%w: duplicate document id %q", ErrInvalidDataset, doc.ID)
		}
		docIDs[doc.ID] = struct{}{}
	}

	for _, queryID := range slices.Sorted(maps.Keys(d.RelevantDocs)) {
		if _, ok := queryIDs[queryID]; !ok {
			return fmt.Errorf("%w: relevant docs for unknown query %q", ErrInvalidDataset, queryID)
		}
		for _, docID := range d.RelevantDocs[queryID] {
			if _, ok := docIDs[docID]; !ok {
				return fmt.Errorf("%w: query %q refers to unknown document %q", ErrInvalidDataset, queryID, docID)
			}
		}
	}
	return nil
}

// Len returns the number of queries.
func (d *QADataset) Len() int {
	return len(d.Queries)
}

// ExpectedDoc returns the first relevant document of query id.
func (d *QADataset) ExpectedDoc(queryID string) (string, error) {
	docs := d.RelevantDocs[queryID]
	if len(docs) == 0 {
		return "", fmt.Errorf("%w: query %q has no relevant documents", ErrInvalidDataset, queryID)
	}
	return docs[0], nil
}

// QueryDocPair is a query text with its relevant document ids.
type QueryDocPair struct {
	Query  string
	DocIDs []string
}

// QueryDocIDPairs returns one pair per query, in query order.
func (d *QADataset) QueryDocIDPairs() []QueryDocPair {
	pairs := make([]QueryDocPair, len(d.Queries))
	for i, q := range d.Queries {
		pairs[i] = QueryDocPair{Query: q.Text, DocIDs: d.RelevantDocs[q.ID]}
	}
	return pairs
}

// Document returns the corpus text of id.
func (d *QADataset) Document(id string) (string, bool) {
	for _, doc := range d.Corpus {
		if doc.ID == id {
			return doc.Text, true
		}
	}
	return "", false
}
