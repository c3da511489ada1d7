package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"sentiment-observer/src/analysis"
	"sentiment-observer/src/grpc_control"
	"sentiment-observer/src/interfaces"
	"sentiment-observer/src/server"
)

// -----------------------------------------------------------------------------

// runPipeline runs until SIGINT/SIGTERM. Ingestion and aggregation only meet in
// the store.
func runPipeline(parent context.Context, ingest, aggregate bool) error {
	app, err := setupCore(configPath)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var reporters []interfaces.IStatusReporter
	var health *grpc_control.HealthService
	if app.Config.GrpcPort != 0 {
		health = grpc_control.NewHealthService(app.Config, app.Config.Feed.Symbols, app.Logger.Named("Health"))
		reporters = append(reporters, health)
	}

	sup, err := app.newSupervisor(reporters...)
	if err != nil {
		return err
	}
	if ingest {
		if err := sup.Start(ctx, app.Config.Feed.Symbols); err != nil {
			return err
		}
	}

	var wg sync.WaitGroup
	if aggregate {
		scheduler := app.newScheduler()
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				app.Logger.Error("Scheduler stopped: %v", err)
			}
		}()
	}

	ops := server.NewOpsServer(app.Config.MConfig, app.DB, sup, app.Metrics, app.Logger.Named("Ops"))
	servers := []interfaces.IServer{ops}
	if health != nil {
		servers = append(servers, health)
	}
	startServers(servers, app)

	<-ctx.Done()
	app.Logger.Info("Shutting down...")

	for _, srv := range servers {
		if err := srv.Stop(); err != nil {
			app.Logger.Error("Server shutdown: %v", err)
		}
	}
	_ = sup.Stop()
	wg.Wait()

	app.Logger.Info("Shutdown complete")
	return nil
}

// -----------------------------------------------------------------------------

// startServers runs each server in the background; a listener failure is logged
// but does not stop the pipeline.
func startServers(servers []interfaces.IServer, app *app) {
	for _, srv := range servers {
		go func(s interfaces.IServer) {
			if err := s.Start(); err != nil {
				app.Logger.Error("Server failed: %v", err)
			}
		}(srv)
	}
}

// -----------------------------------------------------------------------------

// aggregateOnce runs one cycle against whatever the store holds.
func aggregateOnce(ctx context.Context) error {
	app, err := setupCore(configPath)
	if err != nil {
		return err
	}
	defer app.Close()

	report, err := app.newScheduler().RunCycle(ctx)
	if err != nil {
		return err
	}

	inserted, duplicates, failed := report.Totals()
	app.Logger.Info("Evaluated %d buckets ending at %s: inserted=%d duplicates=%d failed=%d",
		report.Evaluated, report.LatestTick.Truncate(analysis.BucketWidth).Format(time.RFC3339), inserted, duplicates, failed)
	if failed > 0 {
		return errors.New("some buckets failed to commit")
	}
	return nil
}
