package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/use-agent/harvest/config"
)

func newSourcesCmd(load func() *config.Config, factory Factory) *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List registered sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := factory(load())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tKIND\tPAGINATED\tURL")
			for _, s := range a.Registry.All() {
				fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", s.ID, s.Kind, s.Paginated(), s.BaseURL)
			}
			return tw.Flush()
		},
	}
}
