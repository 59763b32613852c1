package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/banshee-data/hydro.report/internal/api"
)

func newServeCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the run history, run reports and metrics over HTTP",
		Long: `serve exposes the run history read-only:

  GET /api/runs               recent runs (?name=, ?limit=)
  GET /api/runs/{id}          one run with its keys
  GET /api/runs/{id}/keys     key database (?format=json|yaml|pfidb)
  GET /runs/{id}/report       HTML report of an output (?field=, ?step=)
  GET /metrics                Prometheus metrics
  GET /healthz                liveness`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := app.requireHistory()
			if err != nil {
				return err
			}
			defer h.Close()
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return api.NewServer(app.Settings.Listen, h).Run(ctx)
		},
	}
	cmd.Flags().String("listen", "", "address to listen on (default listen setting)")
	_ = app.Viper.BindPFlag("listen", cmd.Flags().Lookup("listen"))
	return cmd
}
