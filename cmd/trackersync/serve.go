package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dbutrimov/trackersync/internal/api"
	"github.com/dbutrimov/trackersync/internal/scheduler"
)

// RunServeCommand starts the HTTP API and the background catalog
// refresh scheduler.
func RunServeCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the trackersync HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(configPath)
			if err != nil {
				return err
			}
			defer app.close()

			server := api.NewServer(app.clients, app.registry, app.store,
				app.credentials, app.sessions, app.log.Logger)

			var sched *scheduler.Scheduler
			if app.cfg.Scheduler.Enabled {
				sched, err = scheduler.New(app.log.Logger)
				if err != nil {
					return err
				}
				if err := sched.RegisterCatalogRefresh(app.clients, app.cfg.Scheduler.RefreshInterval); err != nil {
					return err
				}
				if err := sched.Start(); err != nil {
					return err
				}
			}

			errCh := make(chan error, 1)
			go func() {
				if err := server.Start(app.cfg.Server.Address()); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

			select {
			case err := <-errCh:
				return err
			case sig := <-quit:
				app.log.Info().Str("signal", sig.String()).Msg("shutting down")
			}

			if sched != nil {
				if err := sched.Stop(); err != nil {
					app.log.Error().Err(err).Msg("failed to stop scheduler")
				}
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(ctx)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to config file")
	return cmd
}
