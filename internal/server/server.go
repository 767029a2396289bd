// Package server is the admin HTTP surface: health, Prometheus metrics and
// a read-only view of monitors and the scheduler.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"flight-price-checker/internal/bot/scheduler"
	"flight-price-checker/internal/models"
	"flight-price-checker/internal/monitor"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	readTimeout        = 10 * time.Second
	writeTimeout       = 30 * time.Second
	idleTimeout        = 120 * time.Second
	shutdownTimeout    = 10 * time.Second
	healthCheckTimeout = 2 * time.Second
)

// Pinger is a dependency the health check pings.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SchedulerStatus is the part of the price checker the API reports on.
type SchedulerStatus interface {
	Phase() scheduler.Phase
	Stats() *models.CycleReport
}

type Deps struct {
	Registry  *monitor.Registry
	Scheduler SchedulerStatus
	// Checks are pinged by /healthz, keyed by name.
	Checks   map[string]Pinger
	Gatherer prometheus.Gatherer
	APIToken string
	Logger   *zap.Logger
}

type Server struct {
	router *gin.Engine
	server *http.Server
	logger *zap.Logger
}

func New(addr string, deps Deps) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(recoveryMiddleware(deps.Logger))
	router.Use(loggerMiddleware(deps.Logger))

	h := &handler{deps: deps}

	router.GET("/healthz", h.health)

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	v1 := router.Group("/api/v1")
	v1.Use(bearerAuth(deps.APIToken))
	v1.GET("/monitors", h.listMonitors)
	v1.GET("/monitors/:id", h.getMonitor)
	v1.GET("/scheduler", h.schedulerStatus)

	return &Server{
		router: router,
		server: &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
			IdleTimeout:  idleTimeout,
		},
		logger: deps.Logger,
	}
}

// Handler returns the router, for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", zap.String("address", s.server.Addr))
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server error: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	// ctx is already done; shut down on a fresh one
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	s.logger.Info("HTTP server stopped")
	return nil
}
