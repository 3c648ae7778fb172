// Package api exposes the synchronization engine over HTTP: a JSON REST
// surface for conversations, documents, and versions, plus a per-conversation
// SSE stream of engine events.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/reqforge/reqforge/src/config"
	"github.com/reqforge/reqforge/src/engine"
)

// Server represents the API server
type Server struct {
	echo   *echo.Echo
	engine *engine.Engine
	logger *slog.Logger
	addr   string
}

// NewServer creates a new API server
func NewServer(eng *engine.Engine, cfg config.ServerConfig, logger *slog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	if len(cfg.CORSOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: cfg.CORSOrigins,
		}))
	} else {
		e.Use(middleware.CORS())
	}

	if logger == nil {
		logger = slog.Default()
	}

	server := &Server{
		echo:   e,
		engine: eng,
		logger: logger.With("component", "api"),
		addr:   cfg.Address(),
	}

	server.setupRoutes()

	return server
}

// setupRoutes configures all API endpoints
func (s *Server) setupRoutes() {
	// Health check endpoint
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status": "healthy",
		})
	})

	// API v1 group
	v1 := s.echo.Group("/api/v1")

	// Conversation endpoints
	v1.GET("/conversations", s.listConversations)
	v1.POST("/conversations", s.createConversation)
	v1.GET("/conversations/:id", s.getConversation)
	v1.PUT("/conversations/:id", s.renameConversation)
	v1.DELETE("/conversations/:id", s.deleteConversation)
	v1.GET("/conversations/:id/events", s.streamEvents)

	// Chat turn endpoints
	v1.GET("/conversations/:id/messages", s.listMessages)
	v1.POST("/conversations/:id/messages", s.sendMessage)
	v1.POST("/conversations/:id/stop", s.stopGeneration)
	v1.POST("/messages/:id/retry", s.retryMessage)
	v1.GET("/messages/:id/draft", s.editDraft)
	v1.POST("/messages/:id/feedback", s.setFeedback)

	// Document endpoints
	v1.GET("/conversations/:id/documents", s.listDocuments)
	v1.GET("/conversations/:id/documents/:type", s.getDocument)
	v1.POST("/conversations/:id/documents/:type/generate", s.generateDocument)
	v1.POST("/conversations/:id/documents/:type/template", s.changeTemplate)
	v1.POST("/conversations/:id/documents/:type/dismiss-stale", s.dismissStale)
	v1.GET("/conversations/:id/documents/:type/versions", s.listVersions)
	v1.POST("/conversations/:id/documents/:type/restore", s.restoreVersion)
	v1.GET("/templates/:type", s.listTemplates)

	// Profile endpoint
	v1.GET("/profile", s.getProfile)
}

// Start begins serving. It blocks until the listener fails.
func (s *Server) Start() error {
	s.logger.Info("starting http server", "addr", s.addr)
	if err := s.echo.Start(s.addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
