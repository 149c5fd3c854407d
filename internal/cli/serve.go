package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kent-id/athenaq/logging"
	"github.com/kent-id/athenaq/web"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve [config]",
		Short: "Serve ad-hoc queries over HTTP",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts, firstArg(args))
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Server.Addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			engine, err := newEngine(ctx, cfg)
			if err != nil {
				return err
			}
			server := web.NewServer(addr, engine, web.Info{
				Region:    cfg.AWS.Region,
				Database:  cfg.Athena.Database,
				Workgroup: cfg.Athena.Workgroup,
			})

			errCh := make(chan error, 1)
			go func() {
				errCh <- server.Start()
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
				logging.Infof("shutting down web server")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				return server.Stop(shutdownCtx)
			}
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to server.addr from the configuration)")
	return cmd
}
