package cmd

import (
	"context"
	"fmt"
	"log"
	"os"

	"agro-booking/internal/data/repository"
	"agro-booking/internal/gateway"
	"agro-booking/internal/usecase"
	"agro-booking/pkg/database"
	"agro-booking/pkg/fxrate"
	"agro-booking/pkg/mq"
	"agro-booking/pkg/queue"
	"agro-booking/pkg/tracing"
	"agro-booking/pkg/utils"

	"github.com/spf13/cobra"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

var Version = "dev"

// Execute runs the root command.
func Execute() {
	rootCmd := &cobra.Command{
		Use:          "agro-booking",
		Short:        "Farm booking and payment reconciliation service",
		Version:      Version,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(workerCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runtime holds what every command needs: config, logger, database and tracer.
type runtime struct {
	config *utils.Config
	logger *zap.Logger
	db     *database.DB
	repo   *repository.Repository

	closers []func()
}

func bootstrap(ctx context.Context, component string) (*runtime, error) {
	// Load config
	config, err := utils.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	// Initialize logger
	logger, err := utils.InitLogger(config.App.LogPath, config.App.Debug)
	if err != nil {
		log.Printf("Failed to init logger: %v. Using standard log.", err)
		logger, _ = zap.NewProduction()
	}
	logger = logger.With(zap.String("component", component))

	rt := &runtime{config: config, logger: logger}
	rt.closers = append(rt.closers, func() { _ = logger.Sync() })

	logger.Info("Starting application",
		zap.String("app", config.App.Name),
		zap.String("env", config.App.Env),
		zap.Bool("debug", config.App.Debug),
	)

	shutdownTracer, err := tracing.InitTracer(ctx, config.App.Name, config.App.Env, config.Tracing.Endpoint)
	if err != nil {
		rt.close()
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	rt.closers = append(rt.closers, func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Warn("Failed to flush traces", zap.Error(err))
		}
	})

	// Connect to database
	db, err := database.InitDB(config.Database)
	if err != nil {
		rt.close()
		return nil, fmt.Errorf("connect database: %w", err)
	}
	rt.db = db
	rt.closers = append(rt.closers, db.Close)
	logger.Info("Database connected successfully")

	// Initialize all repositories
	rt.repo = repository.NewRepository(db, logger)

	return rt, nil
}

// close runs the registered closers in reverse order.
func (rt *runtime) close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
}

// buildDeps connects the optional external services. The retry queue is nil
// when Redis is not configured.
func (rt *runtime) buildDeps(ctx context.Context) (usecase.Deps, *queue.RedisQueue, error) {
	cfg := rt.config
	deps := usecase.Deps{
		Gateway: gateway.NewStripeGateway(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret, rt.logger),
	}

	if cfg.RabbitMQ.URL != "" {
		publisher, err := mq.NewPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
		if err != nil {
			return deps, nil, fmt.Errorf("connect rabbitmq: %w", err)
		}
		rt.closers = append(rt.closers, func() { _ = publisher.Close() })
		deps.Events = publisher
	} else {
		rt.logger.Warn("RABBITMQ_URL not set, notifications are only logged")
		deps.Events = mq.NewLogPublisher(rt.logger)
	}

	fetcher := fxrate.NewExchangeRateFetcher(&fasthttp.Client{Name: cfg.App.Name}, cfg.FX.BaseURL, cfg.FX.APIKey, cfg.FX.Timeout)
	deps.Rates = fxrate.NewCache(fetcher, cfg.FX.TTL, rt.logger)

	if cfg.Redis.Addr == "" {
		rt.logger.Warn("REDIS_ADDR not set, failed webhooks are logged for manual reconciliation")
		return deps, nil, nil
	}

	q, err := queue.NewRedisQueue(ctx, queue.Config{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		Prefix:     "agro:webhook",
		MaxRetries: cfg.Retry.MaxRetries,
		BaseDelay:  cfg.Retry.BaseDelay,
	}, rt.logger)
	if err != nil {
		return deps, nil, err
	}
	rt.closers = append(rt.closers, func() { _ = q.Close() })
	deps.Retries = q

	return deps, q, nil
}
