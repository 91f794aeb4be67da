package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/aleph70/reconcile-backend/internal/application/reconcile"
	"github.com/aleph70/reconcile-backend/internal/infrastructure/storage"
	"github.com/aleph70/reconcile-backend/internal/infrastructure/tolerance"
)

// Config holds API server configuration.
type Config struct {
	Port           int
	AllowedOrigins []string
}

// DefaultConfig returns sensible defaults for the API server.
func DefaultConfig() Config {
	return Config{
		Port:           8080,
		AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
	}
}

// Server is the admin HTTP API server.
type Server struct {
	config       Config
	router       *gin.Engine
	httpServer   *http.Server
	logger       *slog.Logger
	repo         storage.Repository
	tolerances   *tolerance.Store
	orchestrator *reconcile.Orchestrator
}

// NewServer creates a new API server.
// If orchestrator is nil, the reconcile trigger endpoint is not available.
func NewServer(
	cfg Config,
	repo storage.Repository,
	tolerances *tolerance.Store,
	orchestrator *reconcile.Orchestrator,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		config:       cfg,
		router:       router,
		logger:       logger,
		repo:         repo,
		tolerances:   tolerances,
		orchestrator: orchestrator,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures global middleware.
func (s *Server) setupMiddleware() {
	s.router.Use(cors.New(cors.Config{
		AllowOrigins:     s.config.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	// Health check (no /api prefix - for load balancers)
	s.router.GET("/health", s.health)

	api := s.router.Group("/api")
	{
		api.GET("/stats", s.getStats)

		api.GET("/records", s.listRecords)
		api.GET("/records/:id", s.getRecord)
		api.POST("/records/:id/discard", s.discardRecord)
		api.POST("/records/:id/reopen", s.reopenRecord)

		api.GET("/tolerance", s.getTolerance)
		api.PUT("/tolerance", s.putTolerance)

		if s.orchestrator != nil {
			api.POST("/reconcile", s.runReconcile)
		}
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting API server", "addr", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")

	if s.httpServer == nil {
		return nil
	}

	return s.httpServer.Shutdown(ctx)
}

// Router returns the gin engine for testing.
func (s *Server) Router() *gin.Engine {
	return s.router
}
