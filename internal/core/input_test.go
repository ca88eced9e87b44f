package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func inputSchema() Schema {
	return MustSchema(
		FieldSpec{Key: "id", Constraints: []Constraint{ConstraintRequired}},
		FieldSpec{Key: "email", Constraints: []Constraint{ConstraintRequired}},
		FieldSpec{Key: "updatedAt", Type: FieldDate, MergeExempt: true},
	)
}

func TestReadCSVRecords(t *testing.T) {
	data := "\xEF\xBB\xBFid,Email,updatedAt\nW-1,a@x.com,2024-01-01\n\n,,\nW-2,=\"b@x.com\",\n"

	records, err := ReadCSVRecords(strings.NewReader(data), inputSchema(), CSVOptions{})
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "row-1", records[0].ID)
	assert.Equal(t, "W-1", records[0].Get("id"))
	assert.Equal(t, "a@x.com", records[0].Get("email"))
	assert.Equal(t, "row-2", records[1].ID)
	assert.Equal(t, "b@x.com", records[1].Get("email"))
	assert.Equal(t, "", records[1].Get("updatedAt"))
}

func TestReadCSVRecords_Preamble(t *testing.T) {
	data := "Employee export\nGenerated 2024-01-01\nid,email\nW-1,a@x.com\n"

	records, err := ReadCSVRecords(strings.NewReader(data), inputSchema(), CSVOptions{IDColumn: "ID"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "W-1", records[0].ID)
}

func TestReadCSVRecords_MissingColumns(t *testing.T) {
	_, err := ReadCSVRecords(strings.NewReader("id,name\nW-1,Ada\n"), inputSchema(), CSVOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required columns: email")
}

func TestReadCSVRecords_UnknownIDColumn(t *testing.T) {
	_, err := ReadCSVRecords(strings.NewReader("id,email\nW-1,a@x.com\n"), inputSchema(), CSVOptions{IDColumn: "rowid"})
	assert.ErrorContains(t, err, `id column "rowid" not found`)
}

func TestReadCSVRecords_InvalidUTF8(t *testing.T) {
	data := "id,email\nW-\xff1,a@x.com\n"

	records, err := ReadCSVRecords(strings.NewReader(data), inputSchema(), CSVOptions{})
	require.NoError(t, err)
	assert.Equal(t, "W-�1", records[0].Get("id"))
}

func TestReadJSONRecords(t *testing.T) {
	data := `[
		{"id": "r1", "fields": {"name": "Ada", "age": 36, "score": 9.5, "active": true, "note": null}},
		{"id": "r2", "fields": {"name": ""}}
	]`

	records, err := ReadJSONRecords(strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "Ada", records[0].Get("name"))
	assert.Equal(t, int64(36), records[0].Get("age"))
	assert.Equal(t, 9.5, records[0].Get("score"))
	assert.Equal(t, true, records[0].Get("active"))
	assert.Contains(t, records[0].Values, "note")
	assert.Nil(t, records[0].Get("note"))
	assert.Equal(t, "", records[1].Get("name"))
}

func TestReadJSONRecords_MissingID(t *testing.T) {
	_, err := ReadJSONRecords(strings.NewReader(`[{"fields": {"a": 1}}]`))
	assert.ErrorContains(t, err, "missing id")
}

func TestReadJSONRecords_Malformed(t *testing.T) {
	_, err := ReadJSONRecords(strings.NewReader(`{"id": "r1"}`))
	assert.ErrorContains(t, err, "decode records")
}

func TestRecordPlain(t *testing.T) {
	rec := NewRecord("r1", map[string]any{"a": "x", "b": nil})
	rec.AddError("a", "bad")

	assert.Equal(t, map[string]any{"a": "x", "b": nil}, rec.Plain())
}
