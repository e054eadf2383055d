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

package embedding

import (
	"fmt"
	"slices"
)

// StringArray is a columnar array of strings. Arrow string arrays satisfy it.
type StringArray interface {
	Len() int
	Value(i int) string
}

// nullable is implemented by arrays that track null slots.
type nullable interface {
	IsNull(i int) bool
}

// ChunkedStringArray is a column split into consecutive chunks.
type ChunkedStringArray []StringArray

// StringSlice adapts a []string to StringArray.
type StringSlice []string

func (s StringSlice) Len() int           { return len(s) }
func (s StringSlice) Value(i int) string { return s[i] }

// SanitizeInput normalizes embedding input to a list of strings.
// Null array slots become empty strings.
func SanitizeInput(input any) ([]string, error) {
	switch v := input.(type) {
	case string:
		return []string{v}, nil
	case []string:
		if v == nil {
			return []string{}, nil
		}
		return slices.Clone(v), nil
	case ChunkedStringArray:
		var out []string
		for _, chunk := range v {
			out = appendArray(out, chunk)
		}
		if out == nil {
			out = []string{}
		}
		return out, nil
	case StringArray:
		return appendArray(make([]string, 0, v.Len()), v), nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedInputType, input)
	}
}

func appendArray(out []string, arr StringArray) []string {
	if arr == nil {
		return out
	}
	nulls, _ := arr.(nullable)
	for i := 0; i < arr.Len(); i++ {
		if nulls != nil && nulls.IsNull(i) {
			out = append(out, "")
			continue
		}
		out = append(out, arr.Value(i))
	}
	return out
}
