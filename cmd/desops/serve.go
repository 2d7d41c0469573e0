package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/desops"
	"github.com/aretw0/desops/internal/cli"
	"github.com/aretw0/desops/internal/presentation/tui"
	httpAdapter "github.com/aretw0/desops/pkg/adapters/http"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Exposes the analyses and the automaton store as a JSON API over HTTP,
with Prometheus metrics on /metrics.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

		setup, err := newSetup(cmd, reg)
		if err != nil {
			return err
		}
		defer setup.Close()

		addr := setup.Config.Server.Addr
		if port, _ := cmd.Flags().GetString("port"); port != "" {
			addr = ":" + strings.TrimPrefix(port, ":")
		}
		maxBody, _ := cmd.Flags().GetInt64("max-body")

		handler := httpAdapter.NewHandler(setup.Engine,
			httpAdapter.WithMetricsHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})),
			httpAdapter.WithMaxBodyBytes(maxBody),
		)
		srv := &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		tui.PrintBanner(cmd.ErrOrStderr(), strings.TrimSpace(desops.Version))
		logger := setup.Engine.Logger()

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("starting desops server", "addr", srv.Addr, "store", setup.Config.Store.Backend)
			serverErrors <- srv.ListenAndServe()
		}()

		sc := cli.NewSignalContext(cmd.Context())
		defer sc.Cancel()

		select {
		case err := <-serverErrors:
			return fmt.Errorf("server error: %w", err)

		case <-sc.Done():
			logger.Info("start shutdown", "signal", sc.Signal())

			// Give outstanding analyses a deadline for completion.
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				logger.Warn("graceful shutdown did not complete", "timeout", shutdownTimeout, "err", err)
				if err := srv.Close(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("killing server: %w", err)
				}
			}
			logger.Info("desops server stopped gracefully")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("port", "p", "", "Port to listen on (overrides server.addr)")
	serveCmd.Flags().Int64("max-body", httpAdapter.DefaultMaxBodyBytes, "Maximum request body size in bytes")
}
