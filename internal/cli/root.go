// Package cli provides the recordqa command-line interface.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/JonMunkholm/recordqa/internal/core"
	"github.com/JonMunkholm/recordqa/internal/logging"
	"github.com/JonMunkholm/recordqa/internal/schema"
	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "dev"

// rootOptions holds the persistent flags shared by every command.
type rootOptions struct {
	json         bool
	blueprintDir string
	logLevel     string
}

// registry returns the built-in blueprints plus any loaded from
// --blueprint-dir.
func (o *rootOptions) registry() (*core.Registry, error) {
	return schema.NewRegistry(o.blueprintDir)
}

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "recordqa",
		Short: "Merge and validate tabular records",
		Long: `recordqa reconciles duplicate records into a single survivor and checks
records against a blueprint, attaching errors to the offending fields.

Input files are JSON arrays of {"id", "fields"} objects or CSV exports.
Pass "-" to read from stdin.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			slog.SetDefault(logging.New(cmd.ErrOrStderr(), opts.logLevel, "text"))
		},
	}

	fs := cmd.PersistentFlags()
	fs.BoolVar(&opts.json, "json", false, "Print results as JSON")
	fs.StringVar(&opts.blueprintDir, "blueprint-dir", os.Getenv("BLUEPRINT_DIR"), "Directory of YAML blueprints to load")
	fs.StringVar(&opts.logLevel, "log-level", "warn", "Log level: debug, info, warn, error")

	cmd.AddCommand(
		newPlanCommand(opts),
		newValidateCommand(opts),
		newBlueprintsCommand(opts),
	)
	return cmd
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	cmd := NewRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		if core.IsUserFacing(err) {
			fmt.Fprintf(cmd.ErrOrStderr(), "  %s\n", core.FormatUserError(err))
		}
		return 1
	}
	return 0
}
