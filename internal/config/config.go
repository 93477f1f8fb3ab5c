package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	DiscordToken string
	DatabaseDSN  string
	HTTPAddr     string

	AggregateInterval   time.Duration
	DispatcherWorkers   int
	DispatcherQueueSize int

	// Game-server panel polling; the poller is disabled when PanelURL is
	// empty.
	PanelURL           string
	PanelUser          string
	PanelPass          string
	PanelPollInterval  time.Duration
	TwitchClientID     string
	TwitchClientSecret string
	CoverDir           string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	// .env file is optional, continue with environment variables.
	_ = godotenv.Load()

	config := &Config{
		DiscordToken:       os.Getenv("DISCORD_TOKEN"),
		DatabaseDSN:        os.Getenv("DATABASE_DSN"),
		HTTPAddr:           getEnv("HTTP_ADDR", ":8080"),
		PanelURL:           os.Getenv("PANEL_URL"),
		PanelUser:          os.Getenv("PANEL_USER"),
		PanelPass:          os.Getenv("PANEL_PASS"),
		TwitchClientID:     os.Getenv("TWITCH_CLIENT_ID"),
		TwitchClientSecret: os.Getenv("TWITCH_CLIENT_SECRET"),
		CoverDir:           getEnv("COVER_DIR", "static/images"),
	}

	if config.DiscordToken == "" {
		return nil, &ConfigError{Field: "DISCORD_TOKEN", Message: "DISCORD_TOKEN is required"}
	}
	if config.DatabaseDSN == "" {
		return nil, &ConfigError{Field: "DATABASE_DSN", Message: "DATABASE_DSN is required"}
	}

	var err error
	if config.AggregateInterval, err = getDuration("AGGREGATE_INTERVAL", 15*time.Minute); err != nil {
		return nil, err
	}
	if config.PanelPollInterval, err = getDuration("PANEL_POLL_INTERVAL", 5*time.Minute); err != nil {
		return nil, err
	}
	if config.DispatcherWorkers, err = getInt("DISPATCHER_WORKERS", 8); err != nil {
		return nil, err
	}
	if config.DispatcherQueueSize, err = getInt("DISPATCHER_QUEUE_SIZE", 128); err != nil {
		return nil, err
	}

	return config, nil
}

// ConfigError represents a configuration error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, &ConfigError{Field: key, Message: fmt.Sprintf("%s must be a duration: %v", key, err)}
	}
	return d, nil
}

func getInt(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, &ConfigError{Field: key, Message: fmt.Sprintf("%s must be an integer: %v", key, err)}
	}
	return n, nil
}
