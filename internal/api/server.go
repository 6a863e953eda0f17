// Package api serves the mode controller over HTTP for out-of-process
// consumers.
//
// Routes:
//
//	GET    /mode               current state and pending deferred writes
//	POST   /mode/remote        enable remote sync (runs the migration pass)
//	POST   /mode/local         disable remote sync
//	GET    /records/:kind      list records, optional ?limit=N
//	GET    /records/:kind/:id  one record
//	POST   /records/:kind      create, 201 or 202 when deferred
//	PUT    /records/:kind/:id  update, 200 or 202 when deferred
//	DELETE /records/:kind/:id  delete, 200 or 202 when deferred
//	GET    /metrics            Prometheus exposition
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/kindred/internal/mode"
	"github.com/roach88/kindred/internal/record"
	"github.com/roach88/kindred/internal/store"
)

// Author is the deferred-task author recorded for writes made over HTTP.
const Author = "http"

// shutdownTimeout bounds graceful shutdown in Run.
const shutdownTimeout = 5 * time.Second

// Controller is the subset of *mode.Controller the API needs.
type Controller interface {
	Mode() mode.State
	State() mode.State
	Pending() int
	EnableRemote(ctx context.Context) error
	DisableRemote(ctx context.Context) error
	Create(ctx context.Context, r record.Record) (mode.Receipt, error)
	Update(ctx context.Context, r record.Record) (mode.Receipt, error)
	Delete(ctx context.Context, kind record.Kind, id string) (mode.Receipt, error)
	Get(ctx context.Context, kind record.Kind, id string) (record.Record, error)
	FetchLimit(ctx context.Context, kind record.Kind, pred store.Predicate, limit int) ([]record.Record, error)
}

// Server routes HTTP requests to a Controller.
//
// Thread-safety: Server is safe for concurrent use; all state lives in the
// Controller.
type Server struct {
	ctl      Controller
	logger   *slog.Logger
	gatherer prometheus.Gatherer
	router   *gin.Engine
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. Default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithGatherer sets the registry exposed on /metrics.
// Default is prometheus.DefaultGatherer.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		if g != nil {
			s.gatherer = g
		}
	}
}

// New builds a Server and its routes.
func New(ctl Controller, opts ...Option) *Server {
	s := &Server{
		ctl:      ctl,
		logger:   slog.Default(),
		gatherer: prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(s)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), s.logRequests)

	router.GET("/mode", s.getMode)
	router.POST("/mode/remote", s.enableRemote)
	router.POST("/mode/local", s.disableRemote)

	records := router.Group("/records/:kind", s.resolveKind)
	records.GET("", s.listRecords)
	records.POST("", s.createRecord)
	records.GET("/:id", s.getRecord)
	records.PUT("/:id", s.updateRecord)
	records.DELETE("/:id", s.deleteRecord)

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	s.router = router
	return s
}

// Handler returns the HTTP handler serving all routes.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("http api listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// logRequests logs one line per request at debug level, and failures at warn.
func (s *Server) logRequests(c *gin.Context) {
	start := time.Now()
	c.Next()

	status := c.Writer.Status()
	attrs := []any{
		"method", c.Request.Method,
		"path", c.FullPath(),
		"status", status,
		"duration", time.Since(start),
	}
	if status >= http.StatusInternalServerError {
		s.logger.Warn("http request failed", append(attrs, "error", c.Errors.String())...)
		return
	}
	s.logger.Debug("http request", attrs...)
}
