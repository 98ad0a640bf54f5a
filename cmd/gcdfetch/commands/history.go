package commands

import (
	"gcdfetch/lib/history"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newHistoryCommand(s *state) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Prints the dumps that were already downloaded.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := history.Open(s.cfg.History)
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.Load(cmd.Context())
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"#", "Dump"})
			for i, identity := range records {
				t.AppendRow(table.Row{i + 1, identity})
			}
			t.AppendFooter(table.Row{"", len(records)})
			t.SetStyle(table.StyleRounded)
			t.Render()
			return nil
		},
	}
}
