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

package storage

import "math"

// CosineDistance returns 1 - cos(a, b), in [0, 2]. Zero vectors are at
// distance 1 from everything.
func CosineDistance(a, b []float32) float64 {
	var dot, na, nb float64
	n := min(len(a), len(b))
	for i := range n {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	for _, x := range a[n:] {
		na += float64(x) * float64(x)
	}
	for _, x := range b[n:] {
		nb += float64(x) * float64(x)
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
