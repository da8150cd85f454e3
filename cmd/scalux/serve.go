package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/scalux/scalux"
	"github.com/scalux/scalux/internal/cli"
	"github.com/scalux/scalux/internal/presentation/tui"
	httpAdapter "github.com/scalux/scalux/pkg/adapters/http"
	"github.com/scalux/scalux/pkg/modetree"
	"github.com/scalux/scalux/pkg/observability"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long:  `Exposes the tree and its sessions as a JSON API, with Prometheus metrics on /metrics and live session diffs on /events.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProject(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				p.cfg.Server.Port, _ = cmd.Flags().GetInt("port")
			}

			streams := httpAdapter.NewStreamManager(p.logger)
			metrics := observability.NewMetrics()

			store, err := cli.OpenStore(p.cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			eng, err := cli.NewEngine(p.cfg, store, p.logger,
				scalux.WithLifecycleHooks(metrics.Hooks()),
				scalux.WithLifecycleHooks(observability.AuditHooks(p.logger)),
				scalux.WithLifecycleHooks(streams.Hooks()),
				scalux.WithReloadHook(func(t *modetree.Tree) { metrics.SetModes(t.Len()) }),
				scalux.WithReloadHook(streams.PublishReload),
			)
			if err != nil {
				return err
			}

			handler, err := httpAdapter.NewHandler(eng, eng.Sessions(),
				httpAdapter.WithMetrics(metrics.Handler()),
				httpAdapter.WithStreams(streams),
				httpAdapter.WithVersion(scalux.Version),
				httpAdapter.WithLogger(p.logger),
			)
			if err != nil {
				return err
			}

			ctx := cli.NewSignalContext(cmd.Context())
			defer ctx.Stop()

			if watch, _ := cmd.Flags().GetBool("watch"); watch {
				if err := eng.AutoReload(ctx); err != nil {
					p.logger.Warn("hot reload disabled", "err", err)
				}
			}

			srv := &http.Server{
				Addr:              fmt.Sprintf(":%d", p.cfg.Server.Port),
				Handler:           handler,
				ReadHeaderTimeout: 10 * time.Second,
			}

			out := cmd.OutOrStdout()
			if tui.IsTerminal(out) {
				tui.PrintBanner(out)
			}

			// Channel to listen for errors coming from the listener.
			serverErrors := make(chan error, 1)
			go func() {
				cli.PrintSystemMessage(out, "Serving %s (%d modes) on %s", p.cfg.Tree, eng.Tree().Len(), srv.Addr)
				serverErrors <- srv.ListenAndServe()
			}()

			select {
			case err := <-serverErrors:
				return fmt.Errorf("server error: %w", err)

			case <-ctx.Done():
				cli.PrintSystemMessage(out, "Shutting down (signal: %v)", ctx.Signal())

				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()

				if err := srv.Shutdown(shutdownCtx); err != nil {
					p.logger.Error("graceful shutdown did not complete", "timeout", shutdownTimeout, "err", err)
					if err := srv.Close(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						return fmt.Errorf("error killing server: %w", err)
					}
				}
				cli.PrintSystemMessage(out, "Server stopped gracefully")
				return nil
			}
		},
	}
	cmd.Flags().IntP("port", "p", 8080, "Port to listen on (overrides server.port)")
	cmd.Flags().Bool("watch", true, "Reload the tree when its file changes")
	return cmd
}
