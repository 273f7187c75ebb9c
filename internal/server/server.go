// Package server exposes the comparison service over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ahrav/go-sumbench/internal/application"
	"github.com/ahrav/go-sumbench/internal/domain"
)

// shutdownTimeout bounds how long in-flight comparisons may run after the
// server is asked to stop.
const shutdownTimeout = 30 * time.Second

// ComparisonAPI is the subset of application.ComparisonService the HTTP
// handlers call.
type ComparisonAPI interface {
	Compare(ctx context.Context, req domain.ComparisonRequest) (*domain.ComparisonResult, error)
	SummarizeOnce(ctx context.Context, req application.SingleSummaryRequest) (*application.SingleSummaryResult, error)
	Models() application.ModelsView
	Settings() application.SettingsView
}

// Server is the gin HTTP transport.
type Server struct {
	router  *gin.Engine
	server  *http.Server
	service ComparisonAPI
	logger  *zap.Logger
}

// New builds the router and registers every route. metrics may be nil, in
// which case /metrics is not served.
func New(cfg application.ServerConfig, service ComparisonAPI, metrics http.Handler, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(RequestID(), Tracing(), Logging(logger), gin.Recovery())

	s := &Server{
		router:  router,
		service: service,
		logger:  logger,
	}
	s.registerRoutes(metrics)

	s.server = &http.Server{
		Addr:           cfg.Addr(),
		Handler:        router,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}
	return s
}

func (s *Server) registerRoutes(metrics http.Handler) {
	s.router.GET("/health", s.health)
	if metrics != nil {
		s.router.GET("/metrics", gin.WrapH(metrics))
	}

	api := s.router.Group("/summarization")
	{
		api.POST("/compare", s.compare)
		api.POST("/test", s.summarize)
		api.GET("/config", s.settings)
		api.GET("/models", s.models)
	}
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// Addr is the address the server listens on.
func (s *Server) Addr() string { return s.server.Addr }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", s.server.Addr))
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}
