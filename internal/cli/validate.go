package cli

import (
	"fmt"
	"io"

	"github.com/JonMunkholm/recordqa/internal/core"
	"github.com/JonMunkholm/recordqa/internal/reference"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

type validateOptions struct {
	input       inputOptions
	failOnError bool
}

// validateResult is the JSON form of the validate command.
type validateResult struct {
	Summary core.ValidationSummary `json:"summary"`
	Records []*core.Record         `json:"records"`
}

func newValidateCommand(root *rootOptions) *cobra.Command {
	opts := &validateOptions{}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check records against a blueprint",
		Long: `Check every record against a blueprint and list each error and info
annotation by record and field. Unique fields are also checked across the
whole input.`,
		Example: `  # Validate a CSV export, using the "Employee ID" column as record ids
  recordqa validate -b employees --in export.csv --id-column "Employee ID"

  # Fail a pipeline step when any record is invalid
  recordqa validate -b payroll --in payroll.json --fail-on-error`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runValidate(cmd, root, opts)
		},
	}

	addInputFlags(cmd.Flags(), &opts.input)
	cmd.Flags().BoolVar(&opts.failOnError, "fail-on-error", false, "Exit non-zero when any record has errors")
	_ = cmd.MarkFlagRequired("blueprint")
	return cmd
}

func runValidate(cmd *cobra.Command, root *rootOptions, opts *validateOptions) error {
	registry, err := root.registry()
	if err != nil {
		return err
	}
	bp, err := registry.Get(opts.input.blueprint)
	if err != nil {
		return err
	}

	records, err := opts.input.readRecords(cmd, bp.Schema)
	if err != nil {
		return err
	}

	validator := core.NewRecordValidator(
		core.DefaultRules(reference.Default()),
		core.WithDerivations(core.FullNameDerivation()),
	)
	validator.ValidateAll(records, bp.Schema)
	summary := core.Summarize(records)

	out := cmd.OutOrStdout()
	if root.json {
		if records == nil {
			records = []*core.Record{}
		}
		if err := renderJSON(out, validateResult{Summary: summary, Records: records}); err != nil {
			return err
		}
	} else {
		renderAnnotations(out, records, bp.Schema)
		fmt.Fprintf(out, "%d records, %d invalid, %d errors, %d info\n",
			summary.Records, summary.Invalid, summary.Errors, summary.Info)
	}

	if opts.failOnError && summary.Invalid > 0 {
		return fmt.Errorf("%d of %d records have errors", summary.Invalid, summary.Records)
	}
	return nil
}

// renderAnnotations prints one row per annotation. Nothing is printed when
// there are none.
func renderAnnotations(w io.Writer, records []*core.Record, schema core.Schema) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Record", "Field", "Value", "Level", "Message"})

	rows := 0
	for _, rec := range records {
		for _, key := range fieldOrder(rec, schema) {
			cell := rec.Values[key]
			if cell == nil {
				continue
			}
			for _, a := range cell.Errors {
				t.AppendRow(table.Row{rec.ID, key, displayValue(cell.Value), "error", a.Message})
				rows++
			}
			for _, a := range cell.Info {
				t.AppendRow(table.Row{rec.ID, key, displayValue(cell.Value), "info", a.Message})
				rows++
			}
		}
	}

	if rows > 0 {
		t.Render()
	}
}
