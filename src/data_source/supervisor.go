package datasource

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"sentiment-observer/src/interfaces"
	"sentiment-observer/src/logger"
	"sentiment-observer/src/metrics"
	"sentiment-observer/src/models"
)

var errWorkerReturned = errors.New("worker returned without error")

// symbolWorker is the supervisor's handle on one running symbol.
type symbolWorker struct {
	cancel context.CancelFunc
	done   chan struct{}
	status models.MWorkerStatus
}

// -----------------------------------------------------------------------------

// Supervisor keeps exactly one connection worker alive per symbol. Symbols are
// independent; a worker that exits or panics is restarted after RestartDelay.
type Supervisor struct {
	Worker       interfaces.IConnectionWorker
	RestartDelay time.Duration
	Logger       *logger.Logger
	Metrics      *metrics.Metrics
	Reporters    []interfaces.IStatusReporter // Notified of every connection change

	mu         sync.RWMutex
	workers    map[string]*symbolWorker
	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup

	afterStopWait func() // Test hook, runs between a worker exiting and its removal
}

// -----------------------------------------------------------------------------

func NewSupervisor(
	worker interfaces.IConnectionWorker,
	restartDelay time.Duration,
	log *logger.Logger,
	m *metrics.Metrics,
	reporters ...interfaces.IStatusReporter,
) *Supervisor {
	return &Supervisor{
		Worker:       worker,
		RestartDelay: restartDelay,
		Logger:       log,
		Metrics:      m,
		Reporters:    reporters,
		workers:      make(map[string]*symbolWorker),
	}
}

// -----------------------------------------------------------------------------

// Start launches one worker per symbol. Workers live until parentCtx is done or
// Stop/StopSymbol is called.
func (s *Supervisor) Start(parentCtx context.Context, symbols []string) error {
	s.mu.Lock()
	if s.ctx != nil {
		s.mu.Unlock()
		return fmt.Errorf("supervisor is already running")
	}
	s.ctx, s.cancelFunc = context.WithCancel(parentCtx)
	s.mu.Unlock()

	for _, symbol := range symbols {
		if err := s.StartSymbol(symbol); err != nil {
			// Leave nothing behind so a later Start can succeed.
			_ = s.Stop()
			return err
		}
	}
	s.Logger.Info("Supervising %d feed workers", len(symbols))
	return nil
}

// -----------------------------------------------------------------------------

// StartSymbol adds a worker for symbol to a running supervisor.
func (s *Supervisor) StartSymbol(symbol string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx == nil {
		return fmt.Errorf("supervisor is not running")
	}
	if _, exists := s.workers[symbol]; exists {
		return fmt.Errorf("worker for %s already running", symbol)
	}

	ctx, cancel := context.WithCancel(s.ctx)
	w := &symbolWorker{
		cancel: cancel,
		done:   make(chan struct{}),
		status: models.MWorkerStatus{Symbol: symbol, Running: true, LastChanged: time.Now().UTC()},
	}
	s.workers[symbol] = w

	s.wg.Add(1)
	go s.supervise(ctx, symbol, w)
	s.Logger.Info("Started worker for %s", symbol)
	return nil
}

// -----------------------------------------------------------------------------

// StopSymbol cancels the worker for symbol and waits for it to exit.
func (s *Supervisor) StopSymbol(symbol string) error {
	s.mu.RLock()
	w, exists := s.workers[symbol]
	s.mu.RUnlock()

	if !exists {
		return fmt.Errorf("no worker for %s", symbol)
	}

	w.cancel()
	<-w.done
	if s.afterStopWait != nil {
		s.afterStopWait()
	}

	// The symbol may have been restarted meanwhile; only remove our own worker.
	s.mu.Lock()
	if s.workers[symbol] == w {
		delete(s.workers, symbol)
	}
	s.mu.Unlock()
	s.updateConnectedGauge()

	s.Logger.Info("Stopped worker for %s", symbol)
	return nil
}

// -----------------------------------------------------------------------------

// Stop cancels every worker and waits for them.
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	if s.ctx == nil {
		s.mu.Unlock()
		return nil
	}
	s.cancelFunc()
	s.mu.Unlock()

	s.wg.Wait()

	s.mu.Lock()
	s.workers = make(map[string]*symbolWorker)
	s.ctx, s.cancelFunc = nil, nil
	s.mu.Unlock()
	s.updateConnectedGauge()

	s.Logger.Info("Supervisor stopped")
	return nil
}

// -----------------------------------------------------------------------------

// Wait blocks until every worker has exited, which only happens on shutdown.
func (s *Supervisor) Wait() {
	s.wg.Wait()
}

// -----------------------------------------------------------------------------

// Status returns a snapshot of every worker, ordered by symbol.
func (s *Supervisor) Status() []models.MWorkerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.MWorkerStatus, 0, len(s.workers))
	for _, w := range s.workers {
		out = append(out, w.status)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// -----------------------------------------------------------------------------

// ReportConnected implements interfaces.IStatusReporter for the workers.
func (s *Supervisor) ReportConnected(symbol string, connected bool, err error) {
	s.mu.Lock()
	if w, ok := s.workers[symbol]; ok {
		w.status.Connected = connected
		w.status.LastChanged = time.Now().UTC()
		if err != nil {
			w.status.LastError = err.Error()
		}
	}
	s.mu.Unlock()

	s.updateConnectedGauge()
	for _, r := range s.Reporters {
		r.ReportConnected(symbol, connected, err)
	}
}

// -----------------------------------------------------------------------------

func (s *Supervisor) supervise(ctx context.Context, symbol string, w *symbolWorker) {
	defer s.wg.Done()
	defer close(w.done)

	for {
		err := s.runOnce(ctx, symbol)
		if ctx.Err() != nil {
			s.setStopped(w)
			return
		}

		s.Metrics.WorkerRestarted(symbol)
		s.mu.Lock()
		w.status.Restarts++
		w.status.LastError = err.Error()
		w.status.LastChanged = time.Now().UTC()
		s.mu.Unlock()
		s.Logger.Error("Worker for %s exited: %v (restarting in %s)", symbol, err, s.RestartDelay)

		select {
		case <-ctx.Done():
			s.setStopped(w)
			return
		case <-time.After(s.RestartDelay):
		}
	}
}

// -----------------------------------------------------------------------------

// runOnce turns a worker panic into an error so the loop can restart it.
func (s *Supervisor) runOnce(ctx context.Context, symbol string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker panic: %v", r)
		}
	}()

	if err = s.Worker.Run(ctx, symbol); err == nil {
		err = errWorkerReturned
	}
	return err
}

// -----------------------------------------------------------------------------

func (s *Supervisor) setStopped(w *symbolWorker) {
	s.mu.Lock()
	w.status.Running = false
	w.status.Connected = false
	w.status.LastChanged = time.Now().UTC()
	s.mu.Unlock()
}

// -----------------------------------------------------------------------------

func (s *Supervisor) updateConnectedGauge() {
	s.mu.RLock()
	n := 0
	for _, w := range s.workers {
		if w.status.Connected {
			n++
		}
	}
	s.mu.RUnlock()
	s.Metrics.SetConnectedWorkers(n)
}
