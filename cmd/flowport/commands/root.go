// Package commands implements the flowport command line interface.
package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	verbose    bool
	jsonOutput bool
)

// Execute runs the root command.
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "flowport",
		Short: "Flowport - SaaS to workflow platform migration toolkit",
		Long: `Flowport migrates process definitions from SaaS tools into a workflow
platform. It fetches entities over each vendor's REST API, transforms
them into workflows, and pushes the result.

Supported sources:
  - Asana projects (sections, tasks, custom fields)
  - Typeform forms (fields, logic jumps)
  - BPMN 2.0 processes (local files or a Camunda engine)

Runs checkpoint their progress in SQLite, so an interrupted migration
resumes without duplicating entities on the target.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "flowport.cue", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	rootCmd.AddCommand(newPlanCommand())
	rootCmd.AddCommand(newMigrateCommand())
	rootCmd.AddCommand(newResumeCommand())
	rootCmd.AddCommand(newRunsCommand())
	rootCmd.AddCommand(newConvertCommand())
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newVendorsCommand())

	return rootCmd
}
