package commands

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/flowport/flowport/pkg/migrate"
)

func newRunsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect past migration runs",
	}
	cmd.AddCommand(newRunsListCommand())
	cmd.AddCommand(newRunsShowCommand())
	cmd.AddCommand(newRunsCancelCommand())
	return cmd
}

func newRunsListCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			runs, err := a.store.ListRuns(ctx, limit, 0)
			if err != nil {
				return fmt.Errorf("list runs: %w", err)
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), runs)
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "RUN ID\tVENDOR\tSTATUS\tSTARTED\tOK\tFAILED\tSKIPPED\tDENIED")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
					r.ID, r.Vendor, r.Status, r.StartedAt.Format("2006-01-02 15:04:05"),
					r.Summary.Succeeded, r.Summary.Failed, r.Summary.Skipped, r.Summary.Denied)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to list")
	return cmd
}

func newRunsShowCommand() *cobra.Command {
	var failedOnly bool

	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a run and its work units",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			run, err := a.store.GetRun(ctx, args[0])
			if err != nil {
				return fmt.Errorf("load run %s: %w", args[0], err)
			}
			units, err := a.store.ListUnits(ctx, run.ID)
			if err != nil {
				return fmt.Errorf("list units for run %s: %w", run.ID, err)
			}
			if failedOnly {
				units = filterUnits(units, migrate.UnitStatusFailed)
			}

			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), struct {
					Run   *migrate.Run        `json:"run"`
					Units []*migrate.WorkUnit `json:"units"`
				}{run, units})
			}

			printRun(cmd.OutOrStdout(), run)
			printUnits(cmd.OutOrStdout(), units)
			return nil
		},
	}

	cmd.Flags().BoolVar(&failedOnly, "failed", false, "show only failed units")
	return cmd
}

func newRunsCancelCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <run-id>",
		Short: "Mark an active run cancelled",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			if err := a.orch.Cancel(ctx, args[0]); err != nil {
				return fmt.Errorf("cancel run %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Run %s cancelled.\n", args[0])
			return nil
		},
	}
}

func filterUnits(units []*migrate.WorkUnit, status migrate.UnitStatus) []*migrate.WorkUnit {
	kept := units[:0]
	for _, u := range units {
		if u.Status == status {
			kept = append(kept, u)
		}
	}
	return kept
}

func printUnits(out io.Writer, units []*migrate.WorkUnit) {
	if len(units) == 0 {
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\nREF\tNAME\tSTATUS\tATTEMPTS\tCONFIDENCE\tERROR")
	for _, u := range units {
		errMsg := ""
		if u.Error != nil {
			errMsg = u.Error.Error()
		}
		conf := ""
		if u.Confidence > 0 {
			conf = fmt.Sprintf("%.2f", u.Confidence)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			u.Stub.Ref, u.Stub.Name, u.Status, u.Attempts, conf, errMsg)
	}
	w.Flush()
}
