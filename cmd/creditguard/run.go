package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"overcast-labs/creditguard/pkg/config"
	"overcast-labs/creditguard/pkg/governor"
	"overcast-labs/creditguard/pkg/governor/ledger/store"
	"overcast-labs/creditguard/pkg/governor/pricing"
	"overcast-labs/creditguard/pkg/processing/tokens"
	"overcast-labs/creditguard/pkg/retention"
	"overcast-labs/creditguard/pkg/server"
	"overcast-labs/creditguard/pkg/telemetry/logging"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the creditguard proxy server",
	Long: `Start the creditguard proxy server with the specified configuration.

Examples:
  # Start with a config file
  creditguard run --config /etc/creditguard/config.yaml

  # Override the listen address
  creditguard run --listen 0.0.0.0:9090

  # Validate config without starting
  creditguard run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}

	logger, err := logging.New(logging.Config{
		Level:     cfg.Telemetry.Logging.Level,
		Format:    cfg.Telemetry.Logging.Format,
		AddSource: cfg.Telemetry.Logging.AddSource,
	})
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	if runFlags.dryRun {
		fmt.Println("configuration valid")
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, err := newBackend(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer backend.Close()

	rates, watcher, err := newRates(cfg, logger)
	if err != nil {
		return err
	}
	if watcher != nil {
		defer watcher.Stop()
	}

	var metrics *governor.Metrics
	if cfg.Telemetry.Metrics.Enabled {
		metrics = governor.NewMetrics(prometheus.DefaultRegisterer)
	}

	gov, err := governor.New(ctx, governor.Config{
		Tier:              cfg.Governor.Tier,
		Backend:           backend,
		Rates:             rates,
		Logger:            logger,
		Metrics:           metrics,
		CostTripThreshold: cfg.Governor.CostTripThreshold,
		TripCooldown:      cfg.Governor.TripCooldown,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize governor: %w", err)
	}

	if cfg.Retention.Enabled {
		sweeper, err := retention.NewSweeper(backend, retention.Config{
			Schedule: cfg.Retention.Schedule,
			MaxAge:   cfg.Retention.MaxAge,
			Logger:   logger,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize retention: %w", err)
		}
		if err := sweeper.Start(ctx); err != nil {
			return fmt.Errorf("failed to start retention: %w", err)
		}
		defer sweeper.Stop()
	}

	estimator := tokens.NewEstimator(tokens.Config{
		CharsPerToken:           cfg.Tokens.CharsPerToken,
		DefaultCompletionTokens: cfg.Tokens.DefaultCompletionTokens,
	})

	srv, err := server.New(cfg, gov, estimator, logger)
	if err != nil {
		return err
	}

	return srv.Start(ctx)
}

// newBackend builds the configured storage backend.
func newBackend(ctx context.Context, cfg *config.Config) (store.Backend, error) {
	switch cfg.Storage.Backend {
	case "sqlite":
		return store.NewSQLiteBackend(cfg.Storage.SQLite.Path)
	case "redis":
		return store.NewRedisBackend(ctx, store.RedisBackendConfig{
			Addr:      cfg.Storage.Redis.Addr,
			Password:  cfg.Storage.Redis.Password,
			DB:        cfg.Storage.Redis.DB,
			KeyPrefix: cfg.Storage.Redis.KeyPrefix,
			TTL:       cfg.Storage.Redis.TTL,
		})
	default:
		return store.NewMemoryBackend(), nil
	}
}

// newRates builds the pricing table, loading a rates file and starting
// the file watcher when configured. The returned watcher is non-nil
// only when watching is enabled; the caller owns stopping it.
func newRates(cfg *config.Config, logger *slog.Logger) (*pricing.Table, *pricing.Watcher, error) {
	table := pricing.NewTable()

	if cfg.Pricing.FilePath == "" {
		return table, nil, nil
	}

	rates, err := pricing.LoadRatesFile(cfg.Pricing.FilePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load pricing file: %w", err)
	}
	table.UpdateRates(rates)
	logger.Info("pricing rates loaded",
		"path", cfg.Pricing.FilePath,
		"models", len(rates),
	)

	if !cfg.Pricing.WatchForChanges {
		return table, nil, nil
	}

	watcher, err := pricing.NewWatcher(cfg.Pricing.FilePath, table, pricing.LoadRatesFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to watch pricing file: %w", err)
	}

	return table, watcher, nil
}
