package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	// Plex
	PlexURL   string
	PlexToken string

	// Radarr (optional)
	RadarrURL    string
	RadarrAPIKey string

	// Sonarr (optional)
	SonarrURL    string
	SonarrAPIKey string

	// Safety
	ProtectedCollections []string // collection names that block all rules

	// Scheduling (standard cron expressions)
	ScanCron string // library scans
	TickCron string // due-candidate processing

	// Execution
	MaxAttempts int // per delayed action, across ticks

	// Server
	ServerPort string

	// Paths
	DatabaseFile string // $CONFIG_DIR/sweeparr.db

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables and .env file
func Load() (*Config, error) {
	// Setup viper FIRST to load .env file
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Load .env file if it exists (ignore if not found)
	_ = viper.ReadInConfig()

	// Set defaults
	viper.SetDefault("PROTECTED_COLLECTIONS", "Keep,Favorites,Behalten")
	viper.SetDefault("SCAN_CRON", "0 */6 * * *")
	viper.SetDefault("TICK_CRON", "0 * * * *")
	viper.SetDefault("MAX_ATTEMPTS", 5)
	viper.SetDefault("SERVER_PORT", "8484")
	viper.SetDefault("LOG_LEVEL", "info")

	// NOW read CONFIG_DIR from viper (which has loaded .env file)
	configDir := viper.GetString("CONFIG_DIR")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config", "sweeparr")
	} else {
		// Convert relative path to absolute path
		absPath, err := filepath.Abs(configDir)
		if err != nil {
			return nil, fmt.Errorf("failed to get absolute path for CONFIG_DIR: %w", err)
		}
		configDir = absPath
	}

	// Create config directory if it doesn't exist
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	config := &Config{
		// Plex
		PlexURL:   strings.TrimRight(viper.GetString("PLEX_URL"), "/"),
		PlexToken: viper.GetString("PLEX_TOKEN"),

		// Radarr
		RadarrURL:    strings.TrimRight(viper.GetString("RADARR_URL"), "/"),
		RadarrAPIKey: viper.GetString("RADARR_API_KEY"),

		// Sonarr
		SonarrURL:    strings.TrimRight(viper.GetString("SONARR_URL"), "/"),
		SonarrAPIKey: viper.GetString("SONARR_API_KEY"),

		// Safety
		ProtectedCollections: splitList(viper.GetString("PROTECTED_COLLECTIONS")),

		// Scheduling
		ScanCron: viper.GetString("SCAN_CRON"),
		TickCron: viper.GetString("TICK_CRON"),

		// Execution
		MaxAttempts: viper.GetInt("MAX_ATTEMPTS"),

		// Server
		ServerPort: viper.GetString("SERVER_PORT"),

		// Paths
		DatabaseFile: filepath.Join(configDir, "sweeparr.db"),

		// Logging
		LogLevel: viper.GetString("LOG_LEVEL"),
	}

	// Validate required fields
	if config.PlexURL == "" {
		return nil, fmt.Errorf("PLEX_URL is required")
	}
	if config.PlexToken == "" {
		return nil, fmt.Errorf("PLEX_TOKEN is required")
	}
	if config.RadarrURL != "" && config.RadarrAPIKey == "" {
		return nil, fmt.Errorf("RADARR_API_KEY is required when RADARR_URL is set")
	}
	if config.SonarrURL != "" && config.SonarrAPIKey == "" {
		return nil, fmt.Errorf("SONARR_API_KEY is required when SONARR_URL is set")
	}
	if config.MaxAttempts < 1 {
		return nil, fmt.Errorf("MAX_ATTEMPTS must be at least 1")
	}

	return config, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
