package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/JonMunkholm/recordqa/internal/core"
	"github.com/JonMunkholm/recordqa/internal/schema"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// maxOptionsShown limits the enum options printed per field.
const maxOptionsShown = 5

func newBlueprintsCommand(root *rootOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:     "blueprints [key]",
		Aliases: []string{"schema"},
		Short:   "List blueprints or show a blueprint's fields",
		Example: `  # List every blueprint
  recordqa blueprints

  # Show the fields of one blueprint
  recordqa blueprints employees

  # Check a blueprint file before deploying it
  recordqa blueprints --file blueprints/vendors.yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			if file != "" {
				if len(args) > 0 {
					return errors.New("pass a key or --file, not both")
				}
				bp, err := schema.LoadFile(file)
				if err != nil {
					return err
				}
				return showBlueprint(out, root, bp)
			}

			registry, err := root.registry()
			if err != nil {
				return err
			}
			if len(args) == 1 {
				bp, err := registry.Get(args[0])
				if err != nil {
					return err
				}
				return showBlueprint(out, root, bp)
			}

			all := registry.All()
			if root.json {
				return renderJSON(out, all)
			}
			t := newTable(out)
			t.AppendHeader(table.Row{"Key", "Label", "Fields"})
			for _, bp := range all {
				t.AppendRow(table.Row{bp.Key, bp.Label, len(bp.Schema)})
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Load and show a blueprint YAML file")
	return cmd
}

func showBlueprint(w io.Writer, root *rootOptions, bp core.Blueprint) error {
	if root.json {
		return renderJSON(w, bp)
	}

	fmt.Fprintf(w, "%s (%s)\n", bp.Key, bp.Label)

	t := newTable(w)
	t.AppendHeader(table.Row{"Field", "Label", "Type", "Constraints", "Depends On", "Options"})
	for _, f := range bp.Schema {
		constraints := make([]string, 0, len(f.Constraints)+1)
		for _, c := range f.Constraints {
			constraints = append(constraints, string(c))
		}
		if f.MergeExempt {
			constraints = append(constraints, "merge-exempt")
		}
		t.AppendRow(table.Row{
			f.Key,
			f.Label,
			f.Type.String(),
			strings.Join(constraints, ", "),
			f.DependsOn,
			optionSummary(f),
		})
	}
	t.Render()
	return nil
}

func optionSummary(f core.FieldSpec) string {
	if len(f.Options) == 0 {
		return ""
	}
	values := make([]string, 0, maxOptionsShown)
	for i, o := range f.Options {
		if i == maxOptionsShown {
			break
		}
		values = append(values, o.Value)
	}
	s := strings.Join(values, ", ")
	if n := len(f.Options) - maxOptionsShown; n > 0 {
		s += fmt.Sprintf(" (+%d more)", n)
	}
	return s
}
