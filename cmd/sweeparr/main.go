package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/amaumene/sweeparr/internal/api"
	"github.com/amaumene/sweeparr/internal/config"
	"github.com/amaumene/sweeparr/internal/controllers"
	"github.com/amaumene/sweeparr/internal/models"
	"github.com/amaumene/sweeparr/internal/scheduler"
	"github.com/amaumene/sweeparr/internal/services/plex"
	"github.com/amaumene/sweeparr/internal/services/radarr"
	"github.com/amaumene/sweeparr/internal/services/sonarr"
	"github.com/amaumene/sweeparr/internal/utils"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// 2. Setup logger
	logger := utils.NewLogger(cfg.LogLevel)
	logger.Info("Starting Sweeparr")
	logger.WithField("config_dir", filepath.Dir(cfg.DatabaseFile)).Info("Configuration loaded")

	// 3. Initialize database
	db, err := models.NewDatabase(cfg.DatabaseFile)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()
	logger.Info("Database initialized")

	// 4. Initialize services
	plexClient, err := plex.NewClient(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize Plex client: %w", err)
	}
	if err := plexClient.TestConnection(context.Background()); err != nil {
		return fmt.Errorf("failed to reach Plex: %w", err)
	}
	logger.Info("Plex client initialized")

	// Radarr and Sonarr are optional; without them deletions fall back to
	// the Plex API.
	var radarrClient, sonarrClient controllers.DeletionService
	if cfg.RadarrURL != "" {
		client, err := radarr.NewClient(cfg, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize Radarr client: %w", err)
		}
		if err := client.TestConnection(context.Background()); err != nil {
			logger.WithError(err).Warn("Radarr unreachable at startup, continuing")
		}
		radarrClient = client
		logger.Info("Radarr client initialized")
	}
	if cfg.SonarrURL != "" {
		client, err := sonarr.NewClient(cfg, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize Sonarr client: %w", err)
		}
		if err := client.TestConnection(context.Background()); err != nil {
			logger.WithError(err).Warn("Sonarr unreachable at startup, continuing")
		}
		sonarrClient = client
		logger.Info("Sonarr client initialized")
	}

	// 5. Initialize controllers
	protected := utils.NewProtectedSet(cfg.ProtectedCollections)
	guard := controllers.NewSafetyGuard(protected, logger)
	actCtrl := controllers.NewActionController(db, plexClient, radarrClient, sonarrClient, cfg.MaxAttempts, logger)
	scanCtrl := controllers.NewScanController(db, plexClient, guard, actCtrl, logger)
	logger.WithField("protected_collections", protected.Names()).Info("Controllers initialized")

	// 6. Initialize scheduler
	sched := scheduler.NewScheduler(scanCtrl, actCtrl, cfg.ScanCron, cfg.TickCron, logger)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer sched.Stop()

	// 7. Initialize HTTP server
	server := api.NewServer(cfg, db, plexClient, plexClient, scanCtrl, actCtrl, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverErrChan := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil {
			serverErrChan <- err
		}
	}()

	// 8. Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Sweeparr is running")

	select {
	case err := <-serverErrChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		logger.WithField("signal", sig).Info("Received shutdown signal")
		cancel()
		if err := server.Shutdown(context.Background()); err != nil {
			logger.WithError(err).Error("Error during server shutdown")
		}
	}

	logger.Info("Sweeparr stopped")
	return nil
}
