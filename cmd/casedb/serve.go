package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/arthur-debert/casedb/server"
)

func (cli *CLI) newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve filter requests over HTTP",
		Long: `Serve filter requests on POST / and POST /filter, with /health and
Prometheus metrics on /metrics. Each request loads its own case store.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := cli.newPipeline()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return server.New(p, mainLogger).ListenAndServe(ctx, cli.viperInst.GetString(keyListen))
		},
	}

	cmd.Flags().String("listen", ":8080", "address to listen on")
	cli.bind(cmd.Flags(), map[string]string{keyListen: "listen"})
	return cmd
}
