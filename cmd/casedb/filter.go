package main

import (
	"github.com/spf13/cobra"

	"github.com/arthur-debert/casedb/filter"
)

func (cli *CLI) newFilterCommand() *cobra.Command {
	var (
		session sessionFlags
		expr    string
		format  string
	)

	cmd := &cobra.Command{
		Use:   "filter [expression]",
		Short: "Print the ids of the cases matching a filter expression",
		Long: `Evaluate a case predicate such as "[@case_type='patient'][@status='open']"
against the cases of a domain and print the matching case ids in store order.`,
		Args: cobra.MaximumNArgs(1),
		PreRun: func(cmd *cobra.Command, args []string) {
			cli.bindAuth(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				expr = args[0]
			}
			out, err := NewOutputFormatter(format)
			if err != nil {
				return err
			}
			p, err := cli.newPipeline()
			if err != nil {
				return err
			}

			auth := cli.auth()
			resp := p.HandleRequest(cmd.Context(), filter.NewRequest(expr, session.session(), &auth))
			if resp.Error != "" {
				return NewFilterError("filter cases", resp.Error, resp.Fatal)
			}
			return out.WriteIDs(cmd.OutOrStdout(), resp.Cases)
		},
	}

	session.register(cmd)
	_ = cmd.MarkFlagRequired("username")
	cmd.Flags().StringVarP(&expr, "expr", "e", "", "filter expression (or pass it as the argument)")
	cmd.Flags().StringVarP(&format, "format", "f", FormatTable, "output format (table, json, yaml)")
	return cmd
}
