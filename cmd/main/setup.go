package main

import (
	"fmt"

	"sentiment-observer/src/analysis"
	"sentiment-observer/src/config"
	datasource "sentiment-observer/src/data_source"
	"sentiment-observer/src/data_source/coinbase"
	"sentiment-observer/src/interfaces"
	"sentiment-observer/src/logger"
	"sentiment-observer/src/metrics"
	"sentiment-observer/src/network"
	"sentiment-observer/src/storage"
)

// app holds the components every subcommand shares.
type app struct {
	Config  *config.Config
	Logger  *logger.Logger
	Metrics *metrics.Metrics
	DB      interfaces.IDatabase
}

// -----------------------------------------------------------------------------

// setupCore loads config, builds the logger and metrics, and opens the store
// with its schema in place.
func setupCore(path string) (*app, error) {
	cfg, err := config.NewConfig(path)
	if err != nil {
		return nil, err
	}

	appLogger := logger.NewLogger(cfg.MConfig, cfg.Name)
	m := metrics.NewMetrics()

	db, err := storage.NewDatabase(&cfg.Storage, cfg.StoreTimeout(), appLogger.Named("Storage"))
	if err != nil {
		return nil, fmt.Errorf("failed to init db: %w", err)
	}
	if err := db.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to migrate db: %w", err)
	}

	return &app{Config: cfg, Logger: appLogger, Metrics: m, DB: db}, nil
}

// -----------------------------------------------------------------------------

func (a *app) Close() {
	if err := a.DB.Close(); err != nil {
		a.Logger.Error("Failed to close db: %v", err)
	}
	_ = a.Logger.Sync()
}

// -----------------------------------------------------------------------------

// newSupervisor wires the feed dialer and a connection worker that reports to the
// supervisor, which fans connection changes out to reporters.
func (a *app) newSupervisor(reporters ...interfaces.IStatusReporter) (*datasource.Supervisor, error) {
	dialer, err := network.NewFeedDialer(a.Config.HandshakeTimeout(), a.Config.Feed.Proxy, a.Logger.Named("Network"))
	if err != nil {
		return nil, err
	}

	sup := datasource.NewSupervisor(nil, a.Config.RestartDelay(), a.Logger.Named("Supervisor"), a.Metrics, reporters...)
	sup.Worker = coinbase.NewWorker(a.Config, dialer, a.DB, sup, a.Logger.Named("Feed"), a.Metrics)
	return sup, nil
}

// -----------------------------------------------------------------------------

func (a *app) newScheduler() *analysis.AggregationScheduler {
	aggregator := analysis.NewBucketAggregator(
		a.DB,
		a.Config.Aggregation.SymbolKeywords,
		a.Config.FallbackWindow(),
		a.Logger.Named("Aggregator"),
		a.Metrics,
	)
	return analysis.NewAggregationScheduler(
		a.DB,
		aggregator,
		a.Config.AggregationPeriod(),
		a.Config.Aggregation.TrailingBuckets,
		a.Config.SettleDelay(),
		a.Logger.Named("Scheduler"),
		a.Metrics,
	)
}
