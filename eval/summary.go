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

import "fmt"

// Summary aggregates a list of results.
type Summary struct {
	Total   int
	Hits    int
	HitRate float64
	HitAt1  float64
	MRR     float64
}

// Summarize computes hit rate, hit at rank one and mean reciprocal rank.
// An empty list yields a zero Summary.
func Summarize(results []Result) Summary {
	s := Summary{Total: len(results)}
	if s.Total == 0 {
		return s
	}

	var first int
	var reciprocal float64
	for _, r := range results {
		if r.IsHit {
			s.Hits++
		}
		rank := r.Rank()
		if rank == 1 {
			first++
		}
		if rank > 0 {
			reciprocal += 1 / float64(rank)
		}
	}

	n := float64(s.Total)
	s.HitRate = float64(s.Hits) / n
	s.HitAt1 = float64(first) / n
	s.MRR = reciprocal / n
	return s
}

func (s Summary) String() string {
	return fmt.Sprintf("queries=%d hits=%d hit_rate=%.4f hit@1=%.4f mrr=%.4f",
		s.Total, s.Hits, s.HitRate, s.HitAt1, s.MRR)
}
