package core

// input.go turns exported sheets into records. CSV files are read with a
// leading UTF-8 BOM removed and invalid UTF-8 replaced, and the header row
// may sit below a few rows of export preamble.

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// MaxHeaderSearchRows is the maximum number of rows scanned for the header.
var MaxHeaderSearchRows = 20

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// RecordInput is the plain wire form of a record: field keys to raw values.
type RecordInput struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

// Record converts the input to a Record without annotations.
func (in RecordInput) Record() *Record {
	return NewRecord(in.ID, in.Fields)
}

// RecordsFromInputs converts wire records, rejecting missing ids.
func RecordsFromInputs(inputs []RecordInput) ([]*Record, error) {
	records := make([]*Record, len(inputs))
	for i, in := range inputs {
		if strings.TrimSpace(in.ID) == "" {
			return nil, fmt.Errorf("record %d: missing id", i)
		}
		records[i] = in.Record()
	}
	return records, nil
}

// Plain returns the record's values without annotations.
func (r *Record) Plain() map[string]any {
	out := make(map[string]any, len(r.Values))
	for k, c := range r.Values {
		if c != nil {
			out[k] = c.Value
		}
	}
	return out
}

// ReadJSONRecords decodes a JSON array of RecordInput.
func ReadJSONRecords(r io.Reader) ([]*Record, error) {
	var inputs []RecordInput
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&inputs); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	for i := range inputs {
		for k, v := range inputs[i].Fields {
			if n, ok := v.(json.Number); ok {
				inputs[i].Fields[k] = numberValue(n)
			}
		}
	}
	return RecordsFromInputs(inputs)
}

func numberValue(n json.Number) any {
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}

// CSVOptions controls ReadCSVRecords.
type CSVOptions struct {
	// IDColumn names the column holding record ids. When empty, records are
	// numbered "row-1", "row-2", ... in data order.
	IDColumn string
}

// ReadCSVRecords reads a CSV export into records shaped by schema. The
// header is the first row, within MaxHeaderSearchRows, that has every
// required column. Blank rows are skipped.
func ReadCSVRecords(r io.Reader, schema Schema, opts CSVOptions) ([]*Record, error) {
	rows, err := readCSV(r)
	if err != nil {
		return nil, err
	}

	headerRow := findHeader(rows, schema)
	if headerRow < 0 {
		if _, err := ValidateHeaders(firstNonEmpty(rows), schema); err != nil {
			return nil, err
		}
		return nil, errors.New("no header row found")
	}
	header := rows[headerRow]

	idCol := -1
	if opts.IDColumn != "" {
		idx := MakeHeaderIndex(header)
		col, ok := idx[strings.ToLower(opts.IDColumn)]
		if !ok {
			return nil, fmt.Errorf("id column %q not found", opts.IDColumn)
		}
		idCol = col
	}

	var records []*Record
	for _, row := range rows[headerRow+1:] {
		if isEmptyRow(row) {
			continue
		}
		id := "row-" + strconv.Itoa(len(records)+1)
		if idCol >= 0 && idCol < len(row) {
			id = CleanCell(row[idCol])
		}
		records = append(records, RecordFromRow(id, header, row, schema))
	}
	return records, nil
}

func readCSV(r io.Reader) ([][]string, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	for _, row := range rows {
		for i, cell := range row {
			row[i] = strings.ToValidUTF8(cell, "�")
		}
	}
	return rows, nil
}

func findHeader(rows [][]string, schema Schema) int {
	limit := min(len(rows), MaxHeaderSearchRows)
	for i := 0; i < limit; i++ {
		if isEmptyRow(rows[i]) {
			continue
		}
		if _, err := ValidateHeaders(rows[i], schema); err == nil {
			return i
		}
	}
	return -1
}

func firstNonEmpty(rows [][]string) []string {
	for _, row := range rows {
		if !isEmptyRow(row) {
			return row
		}
	}
	return nil
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
