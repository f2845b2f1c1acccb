package http

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/custodia-labs/lowkey/internal/core/ports/driving"
)

// Pinger is a simple health check interface
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	version    string
	origins    []string

	// Services
	authService driving.AuthService
	chatService driving.ChatService // nil when no generation key is configured
	harvestJobs driving.HarvestJobs // nil when the harvest API is disabled

	// Infrastructure checked by /ready
	dependencies map[string]Pinger
}

// Config holds server configuration
type Config struct {
	Host        string
	Port        int
	Version     string
	CORSOrigins []string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:        "0.0.0.0",
		Port:        8000,
		Version:     "dev",
		CORSOrigins: []string{"http://localhost:3000"},
	}
}

// NewServer creates a new HTTP server.
// dependencies are pinged by /ready; nil entries are skipped.
func NewServer(
	cfg Config,
	authService driving.AuthService,
	chatService driving.ChatService,
	harvestJobs driving.HarvestJobs,
	dependencies map[string]Pinger,
) *Server {
	deps := make(map[string]Pinger, len(dependencies))
	for name, p := range dependencies {
		if p != nil {
			deps[name] = p
		}
	}

	s := &Server{
		router:       http.NewServeMux(),
		version:      cfg.Version,
		origins:      cfg.CORSOrigins,
		authService:  authService,
		chatService:  chatService,
		harvestJobs:  harvestJobs,
		dependencies: deps,
	}

	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:     s.Handler(),
		ReadTimeout: 30 * time.Second,
		// No WriteTimeout: chat answers stream for as long as the model talks.
		IdleTimeout: 60 * time.Second,
	}

	s.setupRoutes()
	return s
}

// Handler returns the router wrapped in recovery, logging and CORS
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.router
	h = NewCORSMiddleware(s.origins).Handler(h)
	h = NewLoggingMiddleware().Handler(h)
	h = NewRecoveryMiddleware().Handler(h)
	return h
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	authMiddleware := NewAuthMiddleware(s.authService)

	// Chat frontend
	s.router.HandleFunc("GET /{$}", s.handleRoot)
	s.router.HandleFunc("POST /api/chat", s.handleChat)

	// Health endpoints (no auth)
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /version", s.handleVersion)
	s.router.HandleFunc("GET /swagger/doc.json", s.handleSwaggerDoc)

	// Auth endpoints (public)
	s.router.HandleFunc("POST /api/v1/auth/token", s.handleIssueToken)

	// Harvest endpoints (admin-only)
	s.router.Handle("POST /api/v1/harvest",
		authMiddleware.Authenticate(
			authMiddleware.RequireAdmin(http.HandlerFunc(s.handleSubmitHarvest))))
	s.router.Handle("GET /api/v1/harvest/tasks/{id}",
		authMiddleware.Authenticate(
			authMiddleware.RequireAdmin(http.HandlerFunc(s.handleGetHarvestTask))))
}

// Start starts the HTTP server with graceful shutdown
func (s *Server) Start() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("Starting server on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-stop
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Println("Server stopped")
	return nil
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
