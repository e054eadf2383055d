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
	"strings"
)

// Contextualize joins rolling windows of consecutive nodes into larger
// nodes. A window starts every stride nodes and spans window nodes; the
// result keeps the ID and DocID of the window's first node. A window is
// only emitted when at least one node remains after it, so sequences of
// window nodes or fewer produce nothing.
//
// When groupByDoc is true windows never cross DocID boundaries and groups
// are emitted in DocID order.
func Contextualize(nodes []TextNode, window, stride int, groupByDoc bool) ([]TextNode, error) {
	if window < 1 || stride < 1 {
		return nil, fmt.Errorf("%w: window=%d stride=%d", ErrInvalidWindow, window, stride)
	}

	if !groupByDoc {
		return rollingWindows(nodes, window, stride), nil
	}

	groups := make(map[string][]TextNode)
	for _, node := range nodes {
		groups[node.DocID] = append(groups[node.DocID], node)
	}

	var out []TextNode
	for _, docID := range slices.Sorted(maps.Keys(groups)) {
		out = append(out, rollingWindows(groups[docID], window, stride)...)
	}
	return out, nil
}

func rollingWindows(nodes []TextNode, window, stride int) []TextNode {
	var out []TextNode
	for start := 0; start < len(nodes)-window; start += stride {
		texts := make([]string, 0, window)
		for _, node := range nodes[start : start+window] {
			texts = append(texts, node.Text)
		}
		out = append(out, TextNode{
			ID:    nodes[start].ID,
			Text:  strings.Join(texts, " "),
			DocID: nodes[start].DocID,
		})
	}
	return out
}
