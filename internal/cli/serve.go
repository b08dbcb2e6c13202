package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/crudkit/internal/httpapi"
)

func newServeCmd(flags *rootFlags) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the entity API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := openApp(ctx, flags)
			if err != nil {
				return err
			}
			defer a.close(context.Background())

			if addr == "" {
				addr = a.cfg.ListenAddr
			}
			srv := httpapi.NewServer(addr, a.store, a.registry, a.engine, a.pool, a.logger)
			srv.SetRateLimit(a.cfg.RateLimit, a.cfg.RateBurst)
			return srv.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: listen_addr from config.yaml)")
	return cmd
}
