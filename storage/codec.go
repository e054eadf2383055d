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

import (
	"fmt"
	"maps"
	"slices"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"

	"github.com/poiesic/embedkit/embedding"
)

// serializer is the method set shared by the mus-go serializers.
type serializer[T any] interface {
	Marshal(v T, bs []byte) (n int)
	Unmarshal(bs []byte) (v T, n int, err error)
	Size(v T) (size int)
}

func appendValue[T any](bs []byte, s serializer[T], v T) []byte {
	n := s.Size(v)
	bs = slices.Grow(bs, n)
	off := len(bs)
	bs = bs[:off+n]
	s.Marshal(v, bs[off:])
	return bs
}

type decoder struct {
	bs  []byte
	off int
	err error
}

func readValue[T any](d *decoder, s serializer[T]) T {
	var zero T
	if d.err != nil {
		return zero
	}
	if d.off >= len(d.bs) {
		d.err = ErrTruncatedData
		return zero
	}
	v, n, err := s.Unmarshal(d.bs[d.off:])
	if err != nil {
		d.err = err
		return zero
	}
	d.off += n
	return v
}

func (d *decoder) length() int {
	n := readValue(d, varint.Int)
	if d.err == nil && (n < 0 || n > len(d.bs)-d.off) {
		d.err = ErrTruncatedData
	}
	return n
}

func (d *decoder) finish() error {
	if d.err != nil {
		return fmt.Errorf("%w: %w", ErrSerializationFailed, d.err)
	}
	if d.off != len(d.bs) {
		return fmt.Errorf("%w: %d trailing bytes", ErrSerializationFailed, len(d.bs)-d.off)
	}
	return nil
}

// TableDefinition is the persisted description of a table. Metadata holds
// string entries such as the embedding function configs.
type TableDefinition struct {
	Name     string
	Fields   []Field
	Metadata map[string]string
}

// MarshalTableDefinition serializes a table definition to bytes.
func MarshalTableDefinition(def TableDefinition) []byte {
	var bs []byte
	bs = appendValue(bs, ord.String, def.Name)
	bs = appendValue(bs, varint.Int, len(def.Fields))
	for _, f := range def.Fields {
		bs = appendValue(bs, ord.String, f.Name)
		bs = appendValue(bs, varint.Int, int(f.Type))
		bs = appendValue(bs, varint.Int, f.Dims)
	}
	keys := slices.Sorted(maps.Keys(def.Metadata))
	bs = appendValue(bs, varint.Int, len(keys))
	for _, k := range keys {
		bs = appendValue(bs, ord.String, k)
		bs = appendValue(bs, ord.String, def.Metadata[k])
	}
	return bs
}

// UnmarshalTableDefinition deserializes a table definition from bytes.
func UnmarshalTableDefinition(data []byte) (TableDefinition, error) {
	d := &decoder{bs: data}
	def := TableDefinition{Name: readValue(d, ord.String)}

	n := d.length()
	for i := 0; i < n && d.err == nil; i++ {
		f := Field{Name: readValue(d, ord.String)}
		f.Type = FieldType(readValue(d, varint.Int))
		f.Dims = readValue(d, varint.Int)
		def.Fields = append(def.Fields, f)
	}

	n = d.length()
	if n > 0 {
		def.Metadata = make(map[string]string, n)
	}
	for i := 0; i < n && d.err == nil; i++ {
		k := readValue(d, ord.String)
		def.Metadata[k] = readValue(d, ord.String)
	}

	if err := d.finish(); err != nil {
		return TableDefinition{}, err
	}
	return def, nil
}

// MarshalRow serializes a conformed row in schema field order.
func MarshalRow(schema *Schema, r Row) ([]byte, error) {
	var bs []byte
	for _, f := range schema.Fields {
		value, ok := r[f.Name]
		bs = appendValue(bs, ord.Bool, ok)
		if !ok {
			continue
		}

		var typeOK bool
		switch f.Type {
		case FieldString:
			var s string
			if s, typeOK = value.(string); typeOK {
				bs = appendValue(bs, ord.String, s)
			}
		case FieldInt64:
			var n int64
			if n, typeOK = value.(int64); typeOK {
				bs = appendValue(bs, varint.Int64, n)
			}
		case FieldFloat64:
			var x float64
			if x, typeOK = value.(float64); typeOK {
				bs = appendValue(bs, raw.Float64, x)
			}
		case FieldBool:
			var b bool
			if b, typeOK = value.(bool); typeOK {
				bs = appendValue(bs, ord.Bool, b)
			}
		case FieldVector:
			var vec embedding.Vector
			if vec, typeOK = value.(embedding.Vector); typeOK {
				bs = appendValue(bs, varint.Int, len(vec))
				for _, x := range vec {
					bs = appendValue(bs, raw.Float32, x)
				}
			}
		}
		if !typeOK {
			return nil, fmt.Errorf("%w: column %q holds %T, want %s", ErrSerializationFailed, f.Name, value, f.Type)
		}
	}
	return bs, nil
}

// UnmarshalRow deserializes a row written by MarshalRow with the same schema.
func UnmarshalRow(schema *Schema, data []byte) (Row, error) {
	d := &decoder{bs: data}
	r := make(Row, len(schema.Fields))
	for _, f := range schema.Fields {
		if !readValue(d, ord.Bool) {
			continue
		}
		switch f.Type {
		case FieldString:
			r[f.Name] = readValue(d, ord.String)
		case FieldInt64:
			r[f.Name] = readValue(d, varint.Int64)
		case FieldFloat64:
			r[f.Name] = readValue(d, raw.Float64)
		case FieldBool:
			r[f.Name] = readValue(d, ord.Bool)
		case FieldVector:
			n := d.length()
			vec := make(embedding.Vector, 0, n)
			for i := 0; i < n && d.err == nil; i++ {
				vec = append(vec, readValue(d, raw.Float32))
			}
			r[f.Name] = vec
		}
		if d.err != nil {
			break
		}
	}
	if err := d.finish(); err != nil {
		return nil, err
	}
	return r, nil
}
