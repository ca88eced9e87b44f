package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/JonMunkholm/recordqa/internal/core"
	"github.com/jedib0t/go-pretty/v6/table"
)

func renderJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

// displayValue formats a cell value for a table. Null prints as an empty cell.
func displayValue(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := core.ValueString(v); ok {
		return s
	}
	return fmt.Sprint(v)
}

// fieldOrder returns the keys of rec in schema order, followed by any keys
// the schema does not declare, sorted.
func fieldOrder(rec *core.Record, schema core.Schema) []string {
	seen := make(map[string]bool, len(rec.Values))
	var keys []string
	for _, f := range schema {
		if _, ok := rec.Values[f.Key]; ok {
			keys = append(keys, f.Key)
			seen[f.Key] = true
		}
	}

	var extra []string
	for k := range rec.Values {
		if !seen[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	return append(keys, extra...)
}
