package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/JonMunkholm/recordqa/internal/core"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// inputOptions selects and shapes the records a command reads.
type inputOptions struct {
	path      string
	blueprint string
	idColumn  string
	format    string
}

func addInputFlags(fs *pflag.FlagSet, o *inputOptions) {
	fs.StringVarP(&o.path, "in", "i", "-", `Input file, or "-" for stdin`)
	fs.StringVarP(&o.blueprint, "blueprint", "b", "", "Blueprint key")
	fs.StringVar(&o.idColumn, "id-column", "", "CSV column holding record ids (default: row numbers)")
	fs.StringVar(&o.format, "format", "", "Input format: json or csv (default: from the file extension)")
}

// inputFormat resolves the input format from --format or the file extension.
func (o *inputOptions) inputFormat() (string, error) {
	format := strings.ToLower(o.format)
	if format == "" {
		format = "json"
		if strings.EqualFold(filepath.Ext(o.path), ".csv") {
			format = "csv"
		}
	}
	switch format {
	case "json", "csv":
		return format, nil
	default:
		return "", fmt.Errorf("unknown input format %q", o.format)
	}
}

// readRecords reads the input as records. CSV input needs a schema to find
// its header row.
func (o *inputOptions) readRecords(cmd *cobra.Command, schema core.Schema) ([]*core.Record, error) {
	format, err := o.inputFormat()
	if err != nil {
		return nil, err
	}
	if format == "csv" && len(schema) == 0 {
		return nil, errors.New("csv input requires --blueprint")
	}

	var r io.Reader = cmd.InOrStdin()
	if o.path != "-" {
		f, err := os.Open(o.path)
		if err != nil {
			return nil, fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		r = f
	}

	if format == "csv" {
		return core.ReadCSVRecords(r, schema, core.CSVOptions{IDColumn: o.idColumn})
	}
	return core.ReadJSONRecords(r)
}
