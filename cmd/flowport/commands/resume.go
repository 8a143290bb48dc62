package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newResumeCommand() *cobra.Command {
	var (
		maxParallel int
		failFast    bool
	)

	cmd := &cobra.Command{
		Use:   "resume <run-id>",
		Short: "Continue an interrupted run",
		Long: `Resume re-executes the pending and failed units of an earlier run.
Units that already succeeded are skipped via the entity map, so resuming
a finished run is a no-op.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			prev, err := a.store.GetRun(ctx, args[0])
			if err != nil {
				return fmt.Errorf("load run %s: %w", args[0], err)
			}

			run, err := a.orch.Resume(ctx, prev.ID, a.executeOptions(prev.DryRun, maxParallel, failFast))
			if run != nil {
				printRun(cmd.OutOrStdout(), run)
			}
			if err != nil {
				return fmt.Errorf("resume finished with errors: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&maxParallel, "max-parallel", 0, "override the configured parallelism")
	cmd.Flags().BoolVar(&failFast, "fail-fast", false, "stop scheduling new units after the first failure")
	return cmd
}
