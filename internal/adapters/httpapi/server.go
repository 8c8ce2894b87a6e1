// Package httpapi serves the trader status, ledger stats and Prometheus metrics over HTTP.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alejandrodnm/wavebot/internal/adapters/storage"
	"github.com/alejandrodnm/wavebot/internal/application/trader"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StatusSource exposes the trader's last published status.
type StatusSource interface {
	Status() trader.Status
}

// StatsSource aggregates the trade ledger of a run.
type StatsSource interface {
	Stats(ctx context.Context, runID string) (storage.LedgerStats, error)
}

// Server wraps an echo instance.
type Server struct {
	echo   *echo.Echo
	addr   string
	status StatusSource
	stats  StatsSource
}

// NewServer registers the routes. stats may be nil, which disables /stats.
// gatherer defaults to the Prometheus default registry.
func NewServer(addr string, status StatusSource, stats StatsSource, gatherer prometheus.Gatherer) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(recoverer(), requestLogging())

	s := &Server{echo: e, addr: addr, status: status, stats: stats}
	e.GET("/healthz", s.healthz)
	e.GET("/status", s.getStatus)
	if stats != nil {
		e.GET("/stats", s.getStats)
	}
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	return s
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", s.addr)
		if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("httpapi.Run: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("httpapi.Run: shutdown: %w", err)
	}
	slog.Info("http server stopped")
	return nil
}

func (s *Server) healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, s.status.Status())
}

// getStats reports the ledger of ?run_id=, defaulting to the running session.
func (s *Server) getStats(c echo.Context) error {
	runID := c.QueryParam("run_id")
	if runID == "" {
		runID = s.status.Status().RunID
	}
	stats, err := s.stats.Stats(c.Request().Context(), runID)
	if err != nil {
		slog.Error("stats query failed", "run_id", runID, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "stats unavailable"})
	}
	return c.JSON(http.StatusOK, stats)
}

func recoverer() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("http handler panic", "panic", r, "path", c.Path())
					err = c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal server error"})
				}
			}()
			return next(c)
		}
	}
}

func requestLogging() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			slog.Debug("http request",
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"status", c.Response().Status,
				"latency", time.Since(start),
			)
			return err
		}
	}
}
