package commands

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/flowport/flowport/pkg/migrate"
)

func newMigrateCommand() *cobra.Command {
	var (
		dryRun      bool
		yes         bool
		maxParallel int
		failFast    bool
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run a migration from the configured vendor",
		Long: `Migrate plans and executes a full run: fetch each entity, transform it
into a workflow, evaluate policies, and push to the target platform.
Progress is checkpointed after every unit, so an interrupted run can be
continued with 'flowport resume'.`,
		Example: `  # Convert everything but push nothing
  flowport migrate --dry-run

  # Full migration without the confirmation prompt
  flowport migrate --yes

  # Limit concurrency
  flowport migrate --max-parallel 2`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, !dryRun)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			plan, err := a.orch.Plan(ctx)
			if err != nil {
				return fmt.Errorf("planning failed: %w", err)
			}
			if len(plan.Units) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing to migrate.")
				return nil
			}

			if !dryRun && !yes {
				ok, err := confirm(cmd.InOrStdin(), cmd.OutOrStdout(),
					fmt.Sprintf("Migrate %d entities from %s?", len(plan.Units), plan.Vendor))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
					return nil
				}
			}

			run, err := a.orch.Execute(ctx, plan, a.executeOptions(dryRun, maxParallel, failFast))
			if run != nil {
				printRun(cmd.OutOrStdout(), run)
			}
			if err != nil {
				return fmt.Errorf("migration finished with errors: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "transform and gate entities without pushing")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	cmd.Flags().IntVar(&maxParallel, "max-parallel", 0, "override the configured parallelism")
	cmd.Flags().BoolVar(&failFast, "fail-fast", false, "stop scheduling new units after the first failure")
	return cmd
}

// confirm asks a yes/no question on the terminal.
func confirm(in io.Reader, out io.Writer, prompt string) (bool, error) {
	fmt.Fprintf(out, "%s [y/N]: ", prompt)
	reader := bufio.NewReader(in)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

// printRun renders a finished run.
func printRun(out io.Writer, run *migrate.Run) {
	if jsonOutput {
		_ = printJSON(out, run)
		return
	}
	fmt.Fprintf(out, "\nRun %s: %s\n", run.ID, run.Status)
	if run.DryRun {
		fmt.Fprintln(out, "  (dry run, nothing was pushed)")
	}
	s := run.Summary
	fmt.Fprintf(out, "  %d total: %d succeeded, %d failed, %d skipped, %d denied, %d pending\n",
		s.Total, s.Succeeded, s.Failed, s.Skipped, s.Denied, s.Pending)
	if run.CompletedAt != nil {
		fmt.Fprintf(out, "  took %s\n", run.CompletedAt.Sub(run.StartedAt).Round(timeRound))
	}
}
