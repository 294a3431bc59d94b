// signal-worker runs the scheduler and worker pool that evaluate Morpho
// Blue signal definitions and dispatch webhooks on trigger.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/flare-signals/signal-engine/internal/config"
	"github.com/flare-signals/signal-engine/internal/evaluator"
	"github.com/flare-signals/signal-engine/internal/fetcher"
	"github.com/flare-signals/signal-engine/internal/fetcher/morpho"
	"github.com/flare-signals/signal-engine/internal/notifier"
	"github.com/flare-signals/signal-engine/internal/queue"
	"github.com/flare-signals/signal-engine/internal/registry"
	"github.com/flare-signals/signal-engine/internal/scheduler"
	"github.com/flare-signals/signal-engine/internal/store"
	"github.com/flare-signals/signal-engine/internal/telemetry"
	"github.com/flare-signals/signal-engine/internal/worker"
)

var (
	configPath string
	logFormat  string
)

// shutdownTimeout bounds how long telemetry flush is allowed to take
// during graceful shutdown.
const shutdownTimeout = 5 * time.Second

var rootCmd = &cobra.Command{
	Use:   "signal-worker",
	Short: "signal-worker evaluates Morpho Blue signal definitions and dispatches webhooks",
	RunE:  runWorker,
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "config.yaml", "path to the YAML configuration file")
	rootCmd.Flags().StringVar(&logFormat, "log-format", "json", "log output format: json or text")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runWorker(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := telemetry.NewLogger(telemetry.LogFormat(logFormat), slog.LevelInfo)
	providers, err := telemetry.Init(os.Stderr)
	if err != nil {
		return fmt.Errorf("signal-worker: initializing telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown failed", "error", err)
		}
	}()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("signal-worker: loading config: %w", err)
	}

	st, closeStore, err := buildStore(cfg)
	if err != nil {
		return fmt.Errorf("signal-worker: building store: %w", err)
	}
	defer closeStore()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.QueueRedisAddr})
	q := queue.NewRedisQueue(redisClient, "signal-engine:jobs", cfg.SchedulerTickInterval)
	defer q.Close()

	morphoClient, err := morpho.Dial(ctx, cfg.Chains)
	if err != nil {
		return fmt.Errorf("signal-worker: dialing morpho chains: %w", err)
	}
	defer morphoClient.Close()

	fetchers := map[string]fetcher.Fetcher{registry.MorphoBlue: morphoClient}
	registries := map[string]*registry.Registry{registry.MorphoBlue: registry.NewMorphoRegistry()}

	notif := notifier.New(cfg.WebhookSecret, cfg.WebhookMaxRetries, cfg.WebhookTimeout)
	eval := evaluator.New(logger)
	cache := worker.NewCompiledCache()

	processor := worker.NewProcessor(st, fetchers, registries, eval, notif, cache,
		worker.Config{ChainConcurrency: cfg.ChainConcurrency}, logger)
	pool := worker.NewPool(q, processor, cfg.WorkerPoolSize, logger)

	sched := scheduler.New(st, q, scheduler.Config{TickInterval: cfg.SchedulerTickInterval}, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sched.Start(gctx) })
	g.Go(func() error { return pool.Run(gctx) })

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("signal-worker: %w", err)
	}
	logger.Info("signal-worker stopped")
	return nil
}

// buildStore opens a SQLStore when cfg.StoreDSN is set, otherwise falls
// back to an in-memory store (useful for local runs against a config file
// with no database configured yet).
func buildStore(cfg *config.Config) (store.Store, func(), error) {
	if cfg.StoreDSN == "" {
		return store.NewMemStore(), func() {}, nil
	}

	db, err := sql.Open("mysql", cfg.StoreDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("opening store dsn: %w", err)
	}
	return store.NewSQLStore(db), func() { _ = db.Close() }, nil
}
