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
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/embedkit/embedding"
	"github.com/poiesic/embedkit/embedding/hash"
)

func hashFunction(t *testing.T, dims int) embedding.Function {
	t.Helper()
	cfg := hash.DefaultConfig()
	cfg.Dims = dims
	fn, err := hash.New(cfg)
	require.NoError(t, err)
	return fn
}

func TestTextSchema(t *testing.T) {
	fn := hashFunction(t, 4)
	schema := TextSchema(fn)
	require.NoError(t, schema.Validate())

	vec, ok := schema.Field("vector")
	require.True(t, ok)
	assert.Equal(t, FieldVector, vec.Type)
	assert.Equal(t, 4, vec.Dims)

	col, ok := schema.Embedding("")
	require.True(t, ok)
	assert.Equal(t, "text", col.SourceColumn)
	assert.Equal(t, []string{"vector"}, schema.VectorColumns())
}

func TestSchema_Validate(t *testing.T) {
	fn := hashFunction(t, 4)

	tests := []struct {
		name   string
		schema *Schema
	}{
		{"empty", NewSchema()},
		{"no id", NewSchema(StringField("text"))},
		{"int id", NewSchema(Int64Field("id"))},
		{"duplicate", NewSchema(StringField("id"), StringField("id"))},
		{"reserved", NewSchema(StringField("id"), Float64Field(DistanceColumn))},
		{"zero dims", NewSchema(StringField("id"), VectorField("v", 0))},
		{"unknown type", NewSchema(StringField("id"), Field{Name: "x", Type: FieldType(99)})},
		{"missing source", NewSchema(StringField("id")).WithEmbedding(fn, "text", "vector")},
		{"source not string", NewSchema(StringField("id"), Int64Field("text")).WithEmbedding(fn, "text", "vector")},
		{"dims mismatch", NewSchema(StringField("id"), StringField("text"), VectorField("vector", 3)).
			WithEmbedding(fn, "text", "vector")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.schema.Validate(), ErrSchemaMismatch)
		})
	}
}

func TestConform(t *testing.T) {
	schema := NewSchema(StringField("id"), Int64Field("n"), Float64Field("x"),
		BoolField("ok"), VectorField("v", 2))

	row, err := Conform(schema, Row{"id": "a", "n": 3, "x": float32(1.5), "ok": true, "v": []float64{1, 2}})
	require.NoError(t, err)
	assert.Equal(t, Row{"id": "a", "n": int64(3), "x": 1.5, "ok": true, "v": embedding.Vector{1, 2}}, row)

	_, err = Conform(schema, Row{"n": 1})
	assert.ErrorIs(t, err, ErrSchemaMismatch, "id is required")

	_, err = Conform(schema, Row{"id": "a", "other": 1})
	assert.ErrorIs(t, err, ErrSchemaMismatch)

	_, err = Conform(schema, Row{"id": "a", "n": "three"})
	assert.ErrorIs(t, err, ErrSchemaMismatch)

	_, err = Conform(schema, Row{"id": "a", "v": embedding.Vector{1}})
	assert.ErrorIs(t, err, ErrSchemaMismatch)
}

func TestRowCodec(t *testing.T) {
	schema := NewSchema(StringField("id"), StringField("text"), Int64Field("n"),
		Float64Field("x"), BoolField("ok"), VectorField("v", 3))

	row := Row{"id": "doc-1", "text": "", "n": int64(-42), "x": 3.25, "ok": false, "v": embedding.Vector{0.5, -1, 2}}
	data, err := MarshalRow(schema, row)
	require.NoError(t, err)

	decoded, err := UnmarshalRow(schema, data)
	require.NoError(t, err)
	assert.Equal(t, row, decoded)
}

func TestRowCodec_MissingColumns(t *testing.T) {
	schema := NewSchema(StringField("id"), StringField("text"), VectorField("v", 2))

	data, err := MarshalRow(schema, Row{"id": "a"})
	require.NoError(t, err)

	decoded, err := UnmarshalRow(schema, data)
	require.NoError(t, err)
	assert.Equal(t, Row{"id": "a"}, decoded)
}

func TestRowCodec_WrongType(t *testing.T) {
	schema := NewSchema(StringField("id"))
	_, err := MarshalRow(schema, Row{"id": 7})
	assert.ErrorIs(t, err, ErrSerializationFailed)
}

func TestUnmarshalRow_Invalid(t *testing.T) {
	schema := NewSchema(StringField("id"), StringField("text"))
	data, err := MarshalRow(schema, Row{"id": "a", "text": "hello"})
	require.NoError(t, err)

	_, err = UnmarshalRow(schema, data[:len(data)-2])
	assert.ErrorIs(t, err, ErrSerializationFailed)

	_, err = UnmarshalRow(schema, append(data, 0))
	assert.ErrorIs(t, err, ErrSerializationFailed)

	_, err = UnmarshalRow(schema, nil)
	assert.ErrorIs(t, err, ErrSerializationFailed)
}

func TestTableDefinitionCodec(t *testing.T) {
	def := TableDefinition{
		Name:   "eval",
		Fields: []Field{StringField("id"), StringField("text"), VectorField("vector", 10)},
		Metadata: map[string]string{
			embedding.MetadataKey: "- name: hash\n",
			"fts_fields":          "text",
		},
	}

	decoded, err := UnmarshalTableDefinition(MarshalTableDefinition(def))
	require.NoError(t, err)
	assert.Equal(t, def, decoded)

	_, err = UnmarshalTableDefinition([]byte{})
	assert.ErrorIs(t, err, ErrSerializationFailed)
}

func TestCosineDistance(t *testing.T) {
	assert.InDelta(t, 0, CosineDistance([]float32{1, 0}, []float32{2, 0}), 1e-9)
	assert.InDelta(t, 1, CosineDistance([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, 2, CosineDistance([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Equal(t, 1.0, CosineDistance([]float32{0, 0}, []float32{1, 0}))
}

type recordingExecutor struct {
	req QueryRequest
}

func (e *recordingExecutor) ExecuteQuery(ctx context.Context, req QueryRequest) ([]Row, error) {
	e.req = req
	return []Row{{"id": "a"}}, nil
}

func TestQuery(t *testing.T) {
	exec := &recordingExecutor{}

	rows, err := NewQuery(exec, "hello").ToList(context.Background())
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, "hello", exec.req.Text)
	assert.Equal(t, DefaultLimit, exec.req.Limit)

	pred := func(r Row) bool { return r.ID() != "b" }
	_, err = NewQuery(exec, []float64{1, 2}).Limit(3).Select("text").Where(pred).
		VectorColumn("v").ToList(context.Background())
	require.NoError(t, err)
	assert.Equal(t, embedding.Vector{1, 2}, exec.req.Vector)
	assert.Equal(t, 3, exec.req.Limit)
	assert.Equal(t, []string{"text"}, exec.req.Columns)
	assert.Equal(t, "v", exec.req.VectorColumn)
	assert.NotNil(t, exec.req.Where)
}

func TestQuery_Invalid(t *testing.T) {
	exec := &recordingExecutor{}

	_, err := NewQuery(exec, 42).ToList(context.Background())
	assert.ErrorIs(t, err, ErrInvalidQuery)

	_, err = NewQuery(exec, "x").Limit(0).ToList(context.Background())
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestProject(t *testing.T) {
	row := Row{"id": "a", "text": "t", "vector": embedding.Vector{1}, DistanceColumn: 0.5}

	assert.Equal(t, row, Project(row, nil))
	assert.Equal(t, Row{"id": "a", "text": "t", DistanceColumn: 0.5}, Project(row, []string{"text"}))
}

func TestCreateMode_Validate(t *testing.T) {
	assert.NoError(t, ModeCreate.Validate())
	assert.NoError(t, ModeOverwrite.Validate())
	assert.NoError(t, ModeExistOK.Validate())
	assert.ErrorIs(t, CreateMode("append").Validate(), ErrInvalidCreateMode)
}
