package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"agro-booking/internal/wire"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

func serveCmd() *cobra.Command {
	var noWorker bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the HTTP API.

When REDIS_ADDR is set the webhook retry worker runs in the same process
unless --no-worker is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, !noWorker)
		},
	}

	cmd.Flags().BoolVar(&noWorker, "no-worker", false, "do not run the retry worker in this process")
	return cmd
}

func runServe(ctx context.Context, withWorker bool) error {
	rt, err := bootstrap(ctx, "api")
	if err != nil {
		return err
	}
	defer rt.close()

	deps, q, err := rt.buildDeps(ctx)
	if err != nil {
		return err
	}

	// Wire all dependencies
	app := wire.Wiring(rt.repo, deps, rt.config, rt.logger)

	var wg sync.WaitGroup
	if q != nil && withWorker {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := q.Run(ctx, app.Service.Webhook.ProcessTask); err != nil {
				rt.logger.Error("Retry worker stopped", zap.Error(err))
			}
		}()
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", rt.config.App.Port),
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		rt.logger.Info("Starting HTTP server", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	rt.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		rt.logger.Error("Graceful shutdown failed", zap.Error(err))
	}

	wg.Wait()
	rt.logger.Info("Server stopped")
	return nil
}
