package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newPlanCommand() *cobra.Command {
	var outFile string

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "List migratable entities without changing anything",
		Long: `Plan lists every entity the configured vendor exposes, applies the
selection filters, and reports what a migration run would do. Entities
already recorded in the entity map are shown separately and will not be
pushed again.`,
		Example: `  # Show the plan for the configured vendor
  flowport plan

  # Save the plan as JSON
  flowport plan --out plan.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			plan, err := a.orch.Plan(ctx)
			if err != nil {
				return fmt.Errorf("planning failed: %w", err)
			}

			if outFile != "" {
				data, err := json.MarshalIndent(plan, "", "  ")
				if err != nil {
					return err
				}
				if err := os.WriteFile(outFile, data, 0o644); err != nil {
					return fmt.Errorf("failed to write plan: %w", err)
				}
			}

			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), plan)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Plan for vendor %s:\n", plan.Vendor)
			fmt.Fprintf(out, "  %d to migrate, %d already migrated, %d excluded\n\n",
				len(plan.Units), len(plan.AlreadyMigrated), len(plan.Excluded))
			for _, u := range plan.Units {
				fmt.Fprintf(out, "  + %-24s %s (%s)\n", u.Stub.Ref, u.Stub.Name, u.Stub.Kind)
			}
			for _, s := range plan.AlreadyMigrated {
				fmt.Fprintf(out, "  = %-24s %s (already migrated)\n", s.Ref, s.Name)
			}
			for _, s := range plan.Excluded {
				fmt.Fprintf(out, "  - %-24s %s (excluded)\n", s.Ref, s.Name)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outFile, "out", "o", "", "write the plan to a JSON file")
	return cmd
}
