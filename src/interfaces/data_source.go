package interfaces

import (
	"context"

	"sentiment-observer/src/models"
)

// -----------------------------------------------------------------------------
// IConnectionWorker owns the feed subscription for one symbol.
// -----------------------------------------------------------------------------

type IConnectionWorker interface {
	// Run blocks for the lifetime of ctx, reconnecting on every transport failure.
	// It only returns once ctx is done (or on an internal fault).
	Run(ctx context.Context, symbol string) error
}

// -----------------------------------------------------------------------------
// IIngestionSupervisor keeps one worker alive per symbol.
// -----------------------------------------------------------------------------

type IIngestionSupervisor interface {
	StartSymbol(symbol string) error
	StopSymbol(symbol string) error
	Status() []models.MWorkerStatus
}

// -----------------------------------------------------------------------------
// IStatusReporter receives connection state changes from workers.
// -----------------------------------------------------------------------------

type IStatusReporter interface {
	ReportConnected(symbol string, connected bool, err error)
}
