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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// nullableArray mimics an Arrow string array with a validity bitmap.
type nullableArray struct {
	values []string
	nulls  map[int]bool
}

func (a nullableArray) Len() int           { return len(a.values) }
func (a nullableArray) Value(i int) string { return a.values[i] }
func (a nullableArray) IsNull(i int) bool  { return a.nulls[i] }

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  []string
	}{
		{"string", "solo", []string{"solo"}},
		{"empty string", "", []string{""}},
		{"string slice", []string{"a", "b"}, []string{"a", "b"}},
		{"nil string slice", []string(nil), []string{}},
		{"string array", StringSlice{"x", "y", "z"}, []string{"x", "y", "z"}},
		{"nullable array", nullableArray{values: []string{"a", "ignored", "c"}, nulls: map[int]bool{1: true}}, []string{"a", "", "c"}},
		{"chunked array", ChunkedStringArray{StringSlice{"a"}, StringSlice{}, StringSlice{"b", "c"}}, []string{"a", "b", "c"}},
		{"empty chunked array", ChunkedStringArray{}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SanitizeInput(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSanitizeInput_CopiesSlice(t *testing.T) {
	in := []string{"a", "b"}
	out, err := SanitizeInput(in)
	require.NoError(t, err)

	out[0] = "changed"
	assert.Equal(t, "a", in[0], "caller slice must not be aliased")
}

func TestSanitizeInput_Unsupported(t *testing.T) {
	for _, input := range []any{42, 3.14, []int{1}, map[string]string{}, nil, []byte("bytes")} {
		_, err := SanitizeInput(input)
		require.Error(t, err, "%T", input)
		assert.ErrorIs(t, err, ErrUnsupportedInputType)
	}
}
