package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/JonMunkholm/recordqa/internal/core"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

type planOptions struct {
	input   inputOptions
	exempt  []string
	groupBy string
}

func newPlanCommand(root *rootOptions) *cobra.Command {
	opts := &planOptions{}

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Merge duplicate records into a survivor",
		Long: `Merge the input records into one survivor and list the ids it replaces.
The last non-empty value of each field wins. Nothing is written back.

With --group-by, records are grouped by the value of a field and each group
of two or more records is merged separately.`,
		Example: `  # Merge every record in the file
  recordqa plan --in dupes.json

  # Merge records sharing an email, ignoring bookkeeping fields
  recordqa plan --in employees.csv -b employees --group-by email --exempt updatedAt`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPlan(cmd, root, opts)
		},
	}

	addInputFlags(cmd.Flags(), &opts.input)
	cmd.Flags().StringSliceVar(&opts.exempt, "exempt", nil, "Field keys stripped from the survivor (repeatable)")
	cmd.Flags().StringVar(&opts.groupBy, "group-by", "", "Merge each group of records sharing this field's value")
	return cmd
}

func runPlan(cmd *cobra.Command, root *rootOptions, opts *planOptions) error {
	var schema core.Schema
	if opts.input.blueprint != "" {
		registry, err := root.registry()
		if err != nil {
			return err
		}
		bp, err := registry.Get(opts.input.blueprint)
		if err != nil {
			return err
		}
		schema = bp.Schema
	}

	records, err := opts.input.readRecords(cmd, schema)
	if err != nil {
		return err
	}

	planner := core.NewMergePlanner(core.WithExemptKeys(opts.exempt...), core.WithSchema(schema))

	var plans []*core.MergePlan
	if opts.groupBy != "" {
		plans, err = planner.PlanGroups(records, opts.groupBy)
	} else {
		var plan *core.MergePlan
		plan, err = planner.Plan(records)
		plans = []*core.MergePlan{plan}
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if root.json {
		if opts.groupBy == "" {
			return renderJSON(out, plans[0])
		}
		return renderJSON(out, plans)
	}

	if len(plans) == 0 {
		fmt.Fprintf(out, "No records share a value of %q\n", opts.groupBy)
		return nil
	}
	for i, plan := range plans {
		if i > 0 {
			fmt.Fprintln(out)
		}
		renderPlan(out, plan, schema)
	}
	return nil
}

func renderPlan(w io.Writer, plan *core.MergePlan, schema core.Schema) {
	fmt.Fprintf(w, "Survivor %s", plan.Survivor.ID)
	if len(plan.Discarded) > 0 {
		fmt.Fprintf(w, " replaces %s", strings.Join(plan.Discarded, ", "))
	}
	fmt.Fprintln(w)

	t := newTable(w)
	t.AppendHeader(table.Row{"Field", "Value"})
	for _, key := range fieldOrder(plan.Survivor, schema) {
		t.AppendRow(table.Row{key, displayValue(plan.Survivor.Get(key))})
	}
	t.Render()
}
