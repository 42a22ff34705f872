// Package statusapi exposes the monitor's state over HTTP.
//
//	GET /healthz   liveness of wfkeeper itself
//	GET /status    last health probe, last backup cycle, next wake
//	GET /history   recent cycles and health transitions (needs a history store)
package statusapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/roach88/wfkeeper/internal/history"
	"github.com/roach88/wfkeeper/internal/monitor"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 500
	shutdownTimeout     = 5 * time.Second
)

// StatusSource reports the live monitor state.
type StatusSource interface {
	Status() monitor.Status
}

// HistorySource reads the run ledger.
type HistorySource interface {
	RecentCycles(ctx context.Context, limit int) ([]history.Cycle, error)
	RecentHealth(ctx context.Context, limit int) ([]history.HealthEvent, error)
}

// Server serves the status endpoints.
type Server struct {
	monitor StatusSource
	history HistorySource
	e       *echo.Echo
}

// New builds the router. hist may be nil, in which case /history answers 404.
func New(mon StatusSource, hist HistorySource) *Server {
	s := &Server{monitor: mon, history: hist, e: echo.New()}
	s.e.HideBanner = true
	s.e.HidePort = true

	s.e.Use(middleware.Recover())
	s.e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			slog.Debug("status request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
			)
			return nil
		},
	}))

	s.e.GET("/healthz", s.healthz)
	s.e.GET("/status", s.status)
	s.e.GET("/history", s.recentHistory)
	return s
}

// Handler returns the router for embedding or tests.
func (s *Server) Handler() http.Handler {
	return s.e
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.e,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("status server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("status server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("status server shutdown", "error", err)
			return srv.Close()
		}
		slog.Info("status server stopped")
		return nil
	}
}

func (s *Server) healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(c echo.Context) error {
	return c.JSON(http.StatusOK, newStatusView(s.monitor.Status()))
}

func (s *Server) recentHistory(c echo.Context) error {
	if s.history == nil {
		return echo.NewHTTPError(http.StatusNotFound, "history is not enabled")
	}

	limit := defaultHistoryLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxHistoryLimit {
			return echo.NewHTTPError(http.StatusBadRequest,
				fmt.Sprintf("limit must be between 1 and %d", maxHistoryLimit))
		}
		limit = n
	}

	ctx := c.Request().Context()
	cycles, err := s.history.RecentCycles(ctx, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	events, err := s.history.RecentHealth(ctx, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, newHistoryView(cycles, events))
}
