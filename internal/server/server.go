// Package server wires the database, catalog, vision providers, and scan
// pipeline into the pillscan HTTP server.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/carepill/pillscan/internal/api"
	"github.com/carepill/pillscan/internal/catalog"
	"github.com/carepill/pillscan/internal/config"
	"github.com/carepill/pillscan/internal/home"
	"github.com/carepill/pillscan/internal/meds"
	"github.com/carepill/pillscan/internal/scan"
	"github.com/carepill/pillscan/internal/server/endpoints"
	"github.com/carepill/pillscan/internal/svcctx"
	"github.com/carepill/pillscan/internal/vision"
)

// Server is the main pillscan HTTP server. It owns the embedded SQLite
// database lifecycle: opened on start, closed on shutdown.
type Server struct {
	httpServer *http.Server
	home       *home.Dir
	visionReg  *vision.Registry
	configMgr  *config.Manager
	logger     *slog.Logger

	db *sql.DB

	// services holds all core services for context enrichment
	services *svcctx.Services

	// endpoints registry for HTTP routes
	endpointRegistry *api.Registry

	mu      sync.RWMutex
	running bool
}

// Config holds server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1)
	Host string
	// Port is the port to listen on (default: 8080)
	Port string
	// Home is the pillscan home directory
	Home *home.Dir
	// ConfigManager provides configuration with hot-reload support
	ConfigManager *config.Manager
	// Logger is the structured logger to use
	Logger *slog.Logger
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Home == nil {
		h, err := home.New("")
		if err != nil {
			return nil, err
		}
		cfg.Home = h
	}

	// Create the vision registry and wire hot reload
	visionReg := vision.NewRegistry(vision.RegistryConfig{})
	visionReg.SetLogger(cfg.Logger)

	if cfg.ConfigManager != nil {
		visionReg.Reload(cfg.ConfigManager.Get().ToVisionRegistryConfig())

		cfg.ConfigManager.OnChange(func(c *config.Config) {
			visionReg.Reload(c.ToVisionRegistryConfig())
			cfg.Logger.Info("vision registry reloaded from config")
		})
	}

	s := &Server{
		home:      cfg.Home,
		visionReg: visionReg,
		configMgr: cfg.ConfigManager,
		logger:    cfg.Logger,
	}

	// Create endpoint registry and register all endpoints
	s.endpointRegistry = api.NewRegistry()
	for _, ep := range endpoints.All(endpoints.Config{ConfigManager: cfg.ConfigManager}) {
		s.endpointRegistry.Register(ep)
	}

	// Set up HTTP server
	mux := http.NewServeMux()
	s.endpointRegistry.RegisterRoutes(mux, s.requireInit)

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:      s.withServices(mux),
		ReadTimeout:  5 * time.Minute, // multi-shot uploads are large
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// Start opens the database, seeds the catalog, and serves HTTP.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	if err := s.home.EnsureExists(); err != nil {
		s.setNotRunning()
		return fmt.Errorf("failed to prepare home directory: %w", err)
	}

	s.logger.Info("opening database", "path", s.home.DatabasePath())
	db, err := sql.Open("sqlite3", s.home.DatabasePath()+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		s.setNotRunning()
		return fmt.Errorf("failed to open database: %w", err)
	}
	s.db = db

	catalogStore, err := catalog.NewStore(db)
	if err != nil {
		_ = s.shutdown()
		return fmt.Errorf("failed to init catalog: %w", err)
	}
	medsStore, err := meds.NewStore(db)
	if err != nil {
		_ = s.shutdown()
		return fmt.Errorf("failed to init medication store: %w", err)
	}

	// Seed the catalog when a seed file is present. Seeding is idempotent,
	// so this runs on every start to pick up new entries.
	if s.home.CatalogSeedExists() {
		n, err := catalogStore.Seed(ctx, s.home.CatalogSeedPath())
		if err != nil {
			_ = s.shutdown()
			return fmt.Errorf("failed to seed catalog: %w", err)
		}
		s.logger.Info("catalog seeded", "entries", n, "path", s.home.CatalogSeedPath())
	}

	reconciler := meds.NewReconciler(catalogStore, medsStore, s.logger)
	pipeline := scan.NewPipeline(reconciler, s.logger)

	s.mu.Lock()
	s.services = &svcctx.Services{
		Catalog:  catalogStore,
		Meds:     medsStore,
		Vision:   s.visionReg,
		Pipeline: pipeline,
		Logger:   s.logger,
		Home:     s.home,
	}
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			_ = s.shutdown()
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	return s.shutdown()
}

// shutdown performs graceful shutdown of the HTTP server and database.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("database close error", "error", err)
		}
		s.db = nil
	}

	s.setNotRunning()
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) setNotRunning() {
	s.mu.Lock()
	s.running = false
	s.services = nil
	s.mu.Unlock()
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// VisionRegistry returns the vision provider registry.
func (s *Server) VisionRegistry() *vision.Registry {
	return s.visionReg
}

// withServices wraps a handler to enrich the request context with services.
func (s *Server) withServices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		s.mu.RLock()
		services := s.services
		s.mu.RUnlock()
		if services != nil {
			ctx = svcctx.WithServices(ctx, services)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireInit is middleware that ensures the server is fully initialized.
// Returns 503 Service Unavailable until the database and stores are ready.
func (s *Server) requireInit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.RLock()
		ready := s.services != nil
		s.mu.RUnlock()
		if !ready {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"server not fully initialized"}`))
			return
		}
		next(w, r)
	}
}
