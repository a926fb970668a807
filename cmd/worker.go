package cmd

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"agro-booking/internal/usecase"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the webhook retry worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := bootstrap(ctx, "worker")
			if err != nil {
				return err
			}
			defer rt.close()

			deps, q, err := rt.buildDeps(ctx)
			if err != nil {
				return err
			}
			if q == nil {
				return errors.New("worker needs REDIS_ADDR")
			}

			service := usecase.NewService(rt.repo, deps, rt.config, rt.logger)

			if stats, err := q.Stats(ctx); err == nil {
				rt.logger.Info("Retry queue state",
					zap.Int64("main", stats.Main),
					zap.Int64("delayed", stats.Delayed),
					zap.Int64("processing", stats.Processing),
					zap.Int64("dlq", stats.DLQ),
				)
			}

			return q.Run(ctx, service.Webhook.ProcessTask)
		},
	}
}
