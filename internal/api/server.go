package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/amaumene/sweeparr/internal/api/handlers"
	"github.com/amaumene/sweeparr/internal/api/middleware"
	"github.com/amaumene/sweeparr/internal/config"
	"github.com/amaumene/sweeparr/internal/controllers"
	"github.com/amaumene/sweeparr/internal/models"
)

// Server represents the HTTP server
type Server struct {
	server   *http.Server
	db       *models.Database
	library  controllers.LibraryConnector
	lister   handlers.LibraryLister
	scanCtrl *controllers.ScanController
	actCtrl  *controllers.ActionController
	logger   *logrus.Logger
}

// NewServer creates a new HTTP server
func NewServer(
	cfg *config.Config,
	db *models.Database,
	library controllers.LibraryConnector,
	lister handlers.LibraryLister,
	scanCtrl *controllers.ScanController,
	actCtrl *controllers.ActionController,
	logger *logrus.Logger,
) *Server {
	s := &Server{
		db:       db,
		library:  library,
		lister:   lister,
		scanCtrl: scanCtrl,
		actCtrl:  actCtrl,
		logger:   logger,
	}

	mux := http.NewServeMux()
	s.setupRoutes(mux, cfg)

	s.server = &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      middleware.Logging(mux, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(mux *http.ServeMux, cfg *config.Config) {
	// Health check
	healthHandler := handlers.NewHealthHandler(s.logger)
	mux.HandleFunc("/health", healthHandler.ServeHTTP)

	// Status endpoint
	statusHandler := handlers.NewStatusHandler(s.db, s.logger)
	mux.HandleFunc("/status", statusHandler.ServeHTTP)

	// Prometheus metrics
	mux.Handle("/metrics", promhttp.Handler())

	// Rule CRUD
	rulesHandler := handlers.NewRulesHandler(s.db, s.logger)
	mux.HandleFunc("/api/rules", rulesHandler.ServeHTTP)
	mux.HandleFunc("/api/rules/", rulesHandler.ServeHTTP)

	// Candidates and manual overrides. The keep override files items under
	// the first configured protected collection.
	keepName := "Keep"
	if len(cfg.ProtectedCollections) > 0 {
		keepName = cfg.ProtectedCollections[0]
	}
	candidatesHandler := handlers.NewCandidatesHandler(s.db, s.library, s.actCtrl, s.scanCtrl, keepName, s.logger)
	mux.HandleFunc("/api/candidates", candidatesHandler.ServeHTTP)
	mux.HandleFunc("/api/candidates/", candidatesHandler.ServeHTTP)

	// Action log
	logsHandler := handlers.NewLogsHandler(s.db, s.logger)
	mux.HandleFunc("/api/logs", logsHandler.ServeHTTP)

	// Manual scans
	scanHandler := handlers.NewScanHandler(s.scanCtrl, s.logger)
	mux.HandleFunc("/api/scan", scanHandler.ServeHTTP)
	mux.HandleFunc("/api/scan/", scanHandler.ServeHTTP)

	// Libraries
	librariesHandler := handlers.NewLibrariesHandler(s.lister, s.logger)
	mux.HandleFunc("/api/libraries", librariesHandler.ServeHTTP)
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	s.logger.WithField("port", s.server.Addr).Info("Starting HTTP server")

	errChan := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}
