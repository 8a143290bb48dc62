package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newVendorsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "vendors",
		Short: "List the supported source vendors",
		RunE: func(cmd *cobra.Command, args []string) error {
			infos := defaultRegistry().List()
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), infos)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tENTITY\tDESCRIPTION")
			for _, info := range infos {
				fmt.Fprintf(w, "%s\t%s\t%s\n", info.Name, info.EntityKind, info.Description)
			}
			return w.Flush()
		},
	}
}
