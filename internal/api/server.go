package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sensorwatch-go/internal/config"
)

// Server represents the HTTP server with all configured routes and middleware.
type Server struct {
	app    *fiber.App
	config *config.ServerConfig
	logger *slog.Logger

	// Handlers
	messageHandler *MessageHandler
	eventHandler   *EventHandler
	historyHandler *HistoryHandler
}

// ServerDeps contains all dependencies required to create a new Server.
type ServerDeps struct {
	Config         *config.ServerConfig
	Logger         *slog.Logger
	MessageHandler *MessageHandler
	EventHandler   *EventHandler
	HistoryHandler *HistoryHandler
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(deps ServerDeps) *Server {
	// Create Fiber app with optimized settings for high throughput
	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
		// Enable strict routing for consistency
		StrictRouting: true,
		// Case sensitive routing
		CaseSensitive: true,
		// Read timeout from config
		ReadTimeout: deps.Config.ReadTimeout,
		// Write timeout from config
		WriteTimeout: deps.Config.WriteTimeout,
		// Idle timeout from config
		IdleTimeout: deps.Config.IdleTimeout,
		// Event names arrive percent-encoded in route params
		UnescapePath: true,
		// Custom error handler
		ErrorHandler: customErrorHandler,
	})

	s := &Server{
		app:            app,
		config:         deps.Config,
		logger:         deps.Logger,
		messageHandler: deps.MessageHandler,
		eventHandler:   deps.EventHandler,
		historyHandler: deps.HistoryHandler,
	}

	// Register middleware
	s.registerMiddleware()

	// Register routes
	s.registerRoutes()

	return s
}

// registerMiddleware sets up all middleware for the server.
func (s *Server) registerMiddleware() {
	// Recovery middleware to handle panics
	s.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	// Request ID middleware for tracing
	s.app.Use(requestid.New())

	// Logger middleware for request logging
	s.app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${method} | ${path} | ${error}\n",
		TimeFormat: "2006-01-02 15:04:05",
	}))
}

// registerRoutes sets up all API routes.
func (s *Server) registerRoutes() {
	// Health check endpoint (outside versioned API)
	s.app.Get("/healthz", s.healthCheck)

	// Prometheus metrics endpoint
	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// API v1 routes
	v1 := s.app.Group("/v1")

	// Message log
	v1.Get("/messages", s.messageHandler.List)
	v1.Delete("/messages", s.messageHandler.Clear)

	// Event registry and commands
	v1.Get("/events", s.eventHandler.List)
	v1.Post("/events", s.eventHandler.Create)
	v1.Get("/events/:name", s.eventHandler.Get)
	v1.Put("/events/:name", s.eventHandler.Update)
	v1.Delete("/events/:name", s.eventHandler.Delete)
	v1.Post("/events/:name/toggle", s.eventHandler.Toggle)

	// Record archive
	v1.Get("/history", s.historyHandler.List)
}

// healthCheck returns the health status of the service.
func (s *Server) healthCheck(c *fiber.Ctx) error {
	return Success(c, map[string]string{
		"status": "healthy",
	})
}

// App returns the underlying Fiber app. Tests drive it with app.Test.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	addr := s.config.Address()
	s.logger.Info("starting HTTP server", "address", addr)
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.app.ShutdownWithContext(ctx)
}

// customErrorHandler handles errors returned from handlers.
func customErrorHandler(c *fiber.Ctx, err error) error {
	// Check if it's a Fiber error
	var e *fiber.Error
	if errors.As(err, &e) {
		code := ErrCodeInternalError
		switch e.Code {
		case fiber.StatusNotFound:
			code = ErrCodeNotFound
		case fiber.StatusBadRequest:
			code = ErrCodeBadRequest
		}
		return Error(c, e.Code, code, e.Message)
	}

	// Default to internal server error
	return InternalError(c, fmt.Sprintf("unexpected error: %v", err))
}
