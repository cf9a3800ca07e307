// Package query provides the HTTP read API over stored telemetry.
package query

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/otelvault/otelvault/internal/config"
	"github.com/otelvault/otelvault/internal/model"
	"github.com/otelvault/otelvault/internal/storage"
)

// Page limits for the list endpoints. Requests without a limit get
// defaultPageLimit; anything above maxPageLimit is clamped, not rejected.
const (
	defaultPageLimit = 50
	maxPageLimit     = 1000
)

// Server provides HTTP endpoints for reading stored telemetry.
type Server struct {
	echo   *echo.Echo
	store  storage.Store
	logger *zap.Logger
	config config.HTTPConfig
}

// NewServer creates a new query server over store.
func NewServer(store storage.Store, logger *zap.Logger, cfg config.HTTPConfig) (*Server, error) {
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(NewHTTPMetrics(logger).MetricsMiddleware())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:   e,
		store:  store,
		logger: logger,
		config: cfg,
	}

	// Register routes
	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	// Health check and Prometheus scrape endpoint
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// API v1 routes
	v1 := s.echo.Group("/api/v1")
	v1.GET("/logs", s.handleLogs)
	v1.GET("/spans", s.handleSpans)
	v1.GET("/metrics", s.handleMetrics)
	v1.GET("/traces/:traceID", s.handleTrace)
}

// LogsResponse is the response body for GET /api/v1/logs.
type LogsResponse struct {
	Logs []model.LogRecord `json:"logs"`
}

// SpansResponse is the response body for GET /api/v1/spans.
type SpansResponse struct {
	Spans []model.SpanRecord `json:"spans"`
}

// MetricsResponse is the response body for GET /api/v1/metrics.
type MetricsResponse struct {
	Metrics []model.MetricRecord `json:"metrics"`
}

// TraceResponse is the response body for GET /api/v1/traces/:traceID.
type TraceResponse struct {
	TraceID string             `json:"trace_id"`
	Spans   []model.SpanRecord `json:"spans"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// pageParams reads limit and offset from the query string.
func pageParams(c echo.Context) (int, int, error) {
	limit := defaultPageLimit
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return 0, 0, echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = parsed
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	offset := 0
	if raw := c.QueryParam("offset"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return 0, 0, echo.NewHTTPError(http.StatusBadRequest, "offset must be a non-negative integer")
		}
		offset = parsed
	}

	return limit, offset, nil
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleLogs lists stored logs, newest first. A q parameter switches to a
// case-insensitive substring search over body and attributes.
func (s *Server) handleLogs(c echo.Context) error {
	limit, offset, err := pageParams(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	var recs []model.LogRecord
	if q := c.QueryParam("q"); q != "" {
		recs, err = s.store.SearchLogs(ctx, q, limit, offset)
	} else {
		recs, err = s.store.LogPage(ctx, limit, offset)
	}
	if err != nil {
		s.logger.Error("log query failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "storage query failed")
	}

	if recs == nil {
		recs = []model.LogRecord{}
	}
	return c.JSON(http.StatusOK, LogsResponse{Logs: recs})
}

// handleSpans lists stored spans by latest start time, with optional search.
func (s *Server) handleSpans(c echo.Context) error {
	limit, offset, err := pageParams(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	var recs []model.SpanRecord
	if q := c.QueryParam("q"); q != "" {
		recs, err = s.store.SearchSpans(ctx, q, limit, offset)
	} else {
		recs, err = s.store.SpanPage(ctx, limit, offset)
	}
	if err != nil {
		s.logger.Error("span query failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "storage query failed")
	}

	if recs == nil {
		recs = []model.SpanRecord{}
	}
	return c.JSON(http.StatusOK, SpansResponse{Spans: recs})
}

// handleMetrics lists stored metric points, with optional search over
// metric names and attributes.
func (s *Server) handleMetrics(c echo.Context) error {
	limit, offset, err := pageParams(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	var recs []model.MetricRecord
	if q := c.QueryParam("q"); q != "" {
		recs, err = s.store.SearchMetrics(ctx, q, limit, offset)
	} else {
		recs, err = s.store.MetricPage(ctx, limit, offset)
	}
	if err != nil {
		s.logger.Error("metric query failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "storage query failed")
	}

	if recs == nil {
		recs = []model.MetricRecord{}
	}
	return c.JSON(http.StatusOK, MetricsResponse{Metrics: recs})
}

// handleTrace returns every stored span for one trace, earliest first. An
// unknown trace ID is an empty result, not an error.
func (s *Server) handleTrace(c echo.Context) error {
	traceID := c.Param("traceID")

	spans, err := s.store.SpansByTraceID(c.Request().Context(), traceID)
	if err != nil {
		s.logger.Error("trace query failed", zap.String("trace_id", traceID), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "storage query failed")
	}

	if spans == nil {
		spans = []model.SpanRecord{}
	}
	return c.JSON(http.StatusOK, TraceResponse{TraceID: traceID, Spans: spans})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting query server", zap.String("addr", s.config.ListenAddr))
	return s.echo.Start(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down query server")
	return s.echo.Shutdown(ctx)
}
