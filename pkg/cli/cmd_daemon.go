package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"pluginsync/pkg/api"
	"pluginsync/pkg/config"
	"pluginsync/pkg/scancycle"
	"pluginsync/pkg/scheduler"
	"pluginsync/pkg/store"
)

const shutdownTimeout = 10 * time.Second

func newDaemonCmd(root *rootOptions) *cobra.Command {
	var serve bool
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Scan on start-up, on an interval and whenever the plug-ins folder changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s, err := store.FromConfig(ctx, cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			runner := scheduler.NewRunner(scheduler.CycleAction(scancycle.New(cfg, s)))
			sched := scheduler.NewScheduler(runner, cfg.PluginsPath, cfg.ScanIntervalSeconds, cfg.DebounceSeconds)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return sched.Run(gctx) })
			if serve {
				g.Go(func() error { return runServer(gctx, cfg, s, runner) })
			}
			return g.Wait()
		},
	}
	cmd.Flags().BoolVar(&serve, "serve", false, "Also serve the HTTP API on server_address")
	return cmd
}

func newServeCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve reports, diffs and update summaries over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s, err := store.FromConfig(ctx, cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			runner := scheduler.NewRunner(scheduler.CycleAction(scancycle.New(cfg, s)))
			return runServer(ctx, cfg, s, runner)
		},
	}
}

// runServer serves the API until ctx is cancelled, then shuts down gracefully.
func runServer(ctx context.Context, cfg *config.Config, s store.Store, runner *scheduler.Runner) error {
	router := gin.Default()
	api.RegisterRoutes(router, s, runner, ctx)

	listener, err := net.Listen("tcp", cfg.ServerAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.ServerAddress, err)
	}
	return serveAPI(ctx, listener, router, runner)
}

// serveAPI serves handler on listener until ctx is cancelled. It returns
// only after the server has shut down and every scan started over HTTP has
// finished, so the caller may close the store.
func serveAPI(ctx context.Context, listener net.Listener, handler http.Handler, runner *scheduler.Runner) error {
	if runner != nil {
		defer runner.Wait()
	}

	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "component", "API", "address", listener.Addr().String())
		errCh <- server.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down HTTP server", "component", "API")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	slog.Info("Waiting for running scans", "component", "API")
	return nil
}
