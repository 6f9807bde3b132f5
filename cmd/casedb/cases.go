package main

import (
	"github.com/spf13/cobra"
)

func (cli *CLI) newCasesCommand() *cobra.Command {
	var (
		session sessionFlags
		format  string
	)

	cmd := &cobra.Command{
		Use:   "cases",
		Short: "Load the cases of a domain and print them in ordinal order",
		Args:  cobra.NoArgs,
		PreRun: func(cmd *cobra.Command, args []string) {
			cli.bindAuth(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := NewOutputFormatter(format)
			if err != nil {
				return err
			}
			p, err := cli.newPipeline()
			if err != nil {
				return err
			}

			store, err := p.OpenStore(cmd.Context(), session.session(), cli.auth())
			if err != nil {
				return WrapError("list cases", err)
			}

			rows := make([]caseRow, 0, store.NumRecords())
			for it := store.Iterate(); it.HasMore(); {
				c, err := store.Read(cmd.Context(), it.NextID())
				if err != nil {
					return WrapError("list cases", err)
				}
				rows = append(rows, newCaseRow(c))
			}
			return out.WriteCases(cmd.OutOrStdout(), rows)
		},
	}

	session.register(cmd)
	cmd.Flags().StringVarP(&format, "format", "f", FormatTable, "output format (table, json, yaml)")
	return cmd
}
