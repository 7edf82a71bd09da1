// Package httpapi serves the curated news and run statistics over HTTP
// for the review frontend.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/Guqie/news-workflow/internal/store"
)

// NewsStore is the persistence surface the API needs.
type NewsStore interface {
	Ping(ctx context.Context) error
	ListNews(ctx context.Context, filter store.ListFilter) ([]store.NewsItem, int64, error)
	GetNews(ctx context.Context, id string) (*store.NewsItem, error)
	UpdateNewsStatus(ctx context.Context, id, status, editedTitle string) (*store.NewsItem, error)
	LatestRun(ctx context.Context) (*store.PipelineRun, error)
	ListRejections(ctx context.Context, runID int64, limit int) ([]store.Rejection, error)
}

type Options struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type Server struct {
	store  NewsStore
	logger zerolog.Logger
	opts   Options
}

func NewServer(newsStore NewsStore, logger zerolog.Logger, opts Options) *Server {
	host := strings.TrimSpace(opts.Host)
	if host == "" {
		host = "0.0.0.0"
	}
	port := opts.Port
	if port <= 0 {
		port = 8090
	}
	readTimeout := opts.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 10 * time.Second
	}
	writeTimeout := opts.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 30 * time.Second
	}
	shutdownTimeout := opts.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}

	return &Server{
		store:  newsStore,
		logger: logger,
		opts: Options{
			Host:            host,
			Port:            port,
			ReadTimeout:     readTimeout,
			WriteTimeout:    writeTimeout,
			ShutdownTimeout: shutdownTimeout,
		},
	}
}

// Handler builds the echo instance with routes and middleware.
func (s *Server) Handler() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.httpErrorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPatch, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
		MaxAge:       3600,
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Error().
					Err(v.Error).
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Str("remote_ip", v.RemoteIP).
					Str("request_id", v.RequestID).
					Msg("http request failed")
				return nil
			}

			s.logger.Info().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Str("request_id", v.RequestID).
				Msg("http request")
			return nil
		},
	}))

	api := e.Group("/api/v1")
	api.GET("/health", s.handleHealth)
	api.GET("/news", s.handleNewsList)
	api.GET("/news/:id", s.handleNewsDetail)
	api.PATCH("/news/:id", s.handleNewsReview)
	api.GET("/runs/latest", s.handleLatestRun)
	api.GET("/runs/latest/rejections", s.handleLatestRejections)

	return e
}

// Start runs the server until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	if s == nil || s.store == nil {
		return fmt.Errorf("server is not initialized")
	}

	e := s.Handler()

	addr := fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      e,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		if shutdownErr := e.Shutdown(shutdownCtx); shutdownErr != nil {
			s.logger.Error().Err(shutdownErr).Msg("server shutdown failed")
		}
	}()

	s.logger.Info().Str("addr", addr).Msg("news review server started")

	if err := e.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start server: %w", err)
	}
	s.logger.Info().Msg("news review server stopped")
	return nil
}

func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := "Internal server error"
	if he, ok := err.(*echo.HTTPError); ok {
		status = he.Code
		switch v := he.Message.(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				message = v
			}
		default:
			if text := strings.TrimSpace(http.StatusText(status)); text != "" {
				message = text
			}
		}
	} else if err != nil {
		message = err.Error()
	}

	if status >= 500 {
		_ = internalError(c, "Internal server error")
		return
	}
	_ = fail(c, status, message, nil)
}

func (s *Server) handleHealth(c echo.Context) error {
	dbStatus := "ok"
	if err := s.store.Ping(c.Request().Context()); err != nil {
		dbStatus = "unreachable"
	}
	return success(c, map[string]any{
		"service":  "news-workflow",
		"database": dbStatus,
		"time":     time.Now().UTC(),
	})
}

func (s *Server) handleNewsList(c echo.Context) error {
	filter := store.ListFilter{
		Column: strings.TrimSpace(c.QueryParam("column")),
		Status: strings.TrimSpace(c.QueryParam("status")),
	}
	if raw := c.QueryParam("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			return fail(c, http.StatusBadRequest, "page must be a positive integer", nil)
		}
		filter.Page = page
	}
	if raw := c.QueryParam("page_size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size < 1 {
			return fail(c, http.StatusBadRequest, "page_size must be a positive integer", nil)
		}
		filter.PageSize = size
	}

	items, total, err := s.store.ListNews(c.Request().Context(), filter)
	if err != nil {
		s.logger.Error().Err(err).Msg("list news failed")
		return internalError(c, "Failed to load news")
	}

	return success(c, map[string]any{
		"items": items,
		"total": total,
	})
}

func (s *Server) handleNewsDetail(c echo.Context) error {
	item, err := s.store.GetNews(c.Request().Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		return failNotFound(c, "News item not found")
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("get news failed")
		return internalError(c, "Failed to load news item")
	}
	return success(c, item)
}

type reviewRequest struct {
	Status      string `json:"status"`
	EditedTitle string `json:"edited_title"`
}

func (s *Server) handleNewsReview(c echo.Context) error {
	var req reviewRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid request body", nil)
	}
	if req.Status == "" {
		return fail(c, http.StatusBadRequest, "status is required", nil)
	}

	item, err := s.store.UpdateNewsStatus(c.Request().Context(), c.Param("id"), req.Status, req.EditedTitle)
	if errors.Is(err, store.ErrNotFound) {
		return failNotFound(c, "News item not found")
	}
	if err != nil {
		if strings.Contains(err.Error(), "invalid status") {
			return fail(c, http.StatusBadRequest, err.Error(), nil)
		}
		s.logger.Error().Err(err).Msg("update news failed")
		return internalError(c, "Failed to update news item")
	}
	return success(c, item)
}

func (s *Server) handleLatestRun(c echo.Context) error {
	run, err := s.store.LatestRun(c.Request().Context())
	if errors.Is(err, store.ErrNotFound) {
		return failNotFound(c, "No pipeline run recorded yet")
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("latest run failed")
		return internalError(c, "Failed to load run stats")
	}
	return success(c, run)
}

func (s *Server) handleLatestRejections(c echo.Context) error {
	run, err := s.store.LatestRun(c.Request().Context())
	if errors.Is(err, store.ErrNotFound) {
		return failNotFound(c, "No pipeline run recorded yet")
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("latest run failed")
		return internalError(c, "Failed to load run stats")
	}

	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return fail(c, http.StatusBadRequest, "limit must be a positive integer", nil)
		}
	}

	rejections, err := s.store.ListRejections(c.Request().Context(), run.ID, limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("list rejections failed")
		return internalError(c, "Failed to load rejections")
	}

	return success(c, map[string]any{
		"run_id": run.ID,
		"items":  rejections,
	})
}
