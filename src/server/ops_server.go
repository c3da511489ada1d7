package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"sentiment-observer/src/interfaces"
	"sentiment-observer/src/logger"
	"sentiment-observer/src/metrics"
	"sentiment-observer/src/models"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	healthCheckTimeout = 2 * time.Second
	shutdownTimeout    = 5 * time.Second
)

// HealthStore is the slice of the store the ops surface reads.
type HealthStore interface {
	Ping(ctx context.Context) error
	LatestTickTimestamp(ctx context.Context) (time.Time, bool, error)
}

// -----------------------------------------------------------------------------
// OpsServer
// -----------------------------------------------------------------------------

// OpsServer serves health, worker control and Prometheus metrics over HTTP.
type OpsServer struct {
	Config  *models.MConfig
	Logger  *logger.Logger
	Store   HealthStore
	Workers interfaces.IIngestionSupervisor
	Metrics *metrics.Metrics

	engine     *gin.Engine
	httpServer *http.Server
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewOpsServer(
	cfg *models.MConfig,
	store HealthStore,
	workers interfaces.IIngestionSupervisor,
	m *metrics.Metrics,
	log *logger.Logger,
) *OpsServer {
	if strings.ToUpper(cfg.LogLevel) != "DEBUG" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &OpsServer{
		Config:  cfg,
		Logger:  log,
		Store:   store,
		Workers: workers,
		Metrics: m,
		engine:  gin.New(),
	}
	s.engine.Use(gin.Recovery(), s.requestLogger())

	// Local dashboards only
	s.engine.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if strings.HasPrefix(origin, "http://127.0.0.1:") || strings.HasPrefix(origin, "http://localhost:") {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	s.setupRoutes()
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *OpsServer) setupRoutes() {
	api := s.engine.Group("/api")
	api.GET("/health", s.getHealth)
	api.GET("/config", s.getConfig)
	api.GET("/workers", s.getWorkers)
	api.POST("/workers/:symbol", s.startWorker)
	api.DELETE("/workers/:symbol", s.stopWorker)

	if s.Metrics != nil {
		s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.Metrics.Registry, promhttp.HandlerOpts{})))
	}
}

// Handler exposes the router for in-process tests.
func (s *OpsServer) Handler() http.Handler {
	return s.engine
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

func (s *OpsServer) Start() error {
	s.Logger.Info("Starting ops server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// -----------------------------------------------------------------------------

func (s *OpsServer) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

// -----------------------------------------------------------------------------
// Route Handlers
// -----------------------------------------------------------------------------

func (s *OpsServer) getHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	body := gin.H{"status": "ok"}
	code := http.StatusOK

	if err := s.Store.Ping(ctx); err != nil {
		body["status"] = "degraded"
		body["store_error"] = err.Error()
		code = http.StatusServiceUnavailable
	} else if latest, ok, err := s.Store.LatestTickTimestamp(ctx); err == nil && ok {
		body["latest_tick"] = latest.UTC().Format(time.RFC3339Nano)
	}

	connected := 0
	workers := s.Workers.Status()
	for _, w := range workers {
		if w.Connected {
			connected++
		}
	}
	body["workers"] = len(workers)
	body["connected"] = connected

	c.JSON(code, body)
}

// -----------------------------------------------------------------------------

func (s *OpsServer) getConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"symbols":          s.Config.Feed.Symbols,
		"feed_url":         s.Config.Feed.URL,
		"period_seconds":   s.Config.Aggregation.PeriodSeconds,
		"trailing_buckets": s.Config.Aggregation.TrailingBuckets,
		"fallback_minutes": s.Config.Aggregation.FallbackMinutes,
		"symbol_keywords":  s.Config.Aggregation.SymbolKeywords,
		"db_type":          s.Config.Storage.DBType,
	})
}

// -----------------------------------------------------------------------------

func (s *OpsServer) getWorkers(c *gin.Context) {
	c.JSON(http.StatusOK, s.Workers.Status())
}

// -----------------------------------------------------------------------------

func (s *OpsServer) startWorker(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))
	if err := s.Workers.StartSymbol(symbol); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"symbol": symbol, "state": "running"})
}

// -----------------------------------------------------------------------------

func (s *OpsServer) stopWorker(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))
	if err := s.Workers.StopSymbol(symbol); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "state": "stopped"})
}

// -----------------------------------------------------------------------------

func (s *OpsServer) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.Logger.Debug("%s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}
