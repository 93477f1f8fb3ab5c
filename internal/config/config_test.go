package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"guildstats/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "token")
	t.Setenv("DATABASE_DSN", "postgres://localhost/guildstats")

	cfg, err := config.Load()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddr)
	require.Equal(t, 15*time.Minute, cfg.AggregateInterval)
	require.Equal(t, 5*time.Minute, cfg.PanelPollInterval)
	require.Equal(t, 8, cfg.DispatcherWorkers)
	require.Equal(t, 128, cfg.DispatcherQueueSize)
	require.Equal(t, "static/images", cfg.CoverDir)
	require.Empty(t, cfg.PanelURL)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "token")
	t.Setenv("DATABASE_DSN", "postgres://localhost/guildstats")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("AGGREGATE_INTERVAL", "1h")
	t.Setenv("DISPATCHER_WORKERS", "4")
	t.Setenv("DISPATCHER_QUEUE_SIZE", "32")
	t.Setenv("PANEL_URL", "https://panel.example.com")

	cfg, err := config.Load()
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.HTTPAddr)
	require.Equal(t, time.Hour, cfg.AggregateInterval)
	require.Equal(t, 4, cfg.DispatcherWorkers)
	require.Equal(t, 32, cfg.DispatcherQueueSize)
	require.Equal(t, "https://panel.example.com", cfg.PanelURL)
}

func TestLoadMissingRequired(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "")
	t.Setenv("DATABASE_DSN", "postgres://localhost/guildstats")

	_, err := config.Load()
	var cfgErr *config.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	require.Equal(t, "DISCORD_TOKEN", cfgErr.Field)

	t.Setenv("DISCORD_TOKEN", "token")
	t.Setenv("DATABASE_DSN", "")
	_, err = config.Load()
	require.ErrorAs(t, err, &cfgErr)
	require.Equal(t, "DATABASE_DSN", cfgErr.Field)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "token")
	t.Setenv("DATABASE_DSN", "postgres://localhost/guildstats")
	t.Setenv("AGGREGATE_INTERVAL", "soon")

	_, err := config.Load()
	var cfgErr *config.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	require.Equal(t, "AGGREGATE_INTERVAL", cfgErr.Field)

	t.Setenv("AGGREGATE_INTERVAL", "15m")
	t.Setenv("DISPATCHER_WORKERS", "many")
	_, err = config.Load()
	require.ErrorAs(t, err, &cfgErr)
	require.Equal(t, "DISPATCHER_WORKERS", cfgErr.Field)
}
