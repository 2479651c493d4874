package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 10*time.Second, cfg.HTTP.ShutdownTimeout)
	assert.Equal(t, StorageMemory, cfg.Storage.Driver)
	assert.True(t, cfg.Storage.Seed)
	assert.Equal(t, "atomic", cfg.Availability.TransitionMode)
	assert.Equal(t, "gap-free", cfg.Availability.StreamPolicy)
	assert.Zero(t, cfg.Availability.MaxBacklog)
	assert.Equal(t, "*/15 * * * *", cfg.Overdue.SweepSchedule)
	assert.Empty(t, cfg.Telemetry.OTLPEndpoint)
	require.NoError(t, cfg.Validate())
}

func TestNewConfig_Environment(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9000")
	t.Setenv("STORAGE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://u:p@db/library")
	t.Setenv("TRANSITION_MODE", "naive")
	t.Setenv("SUBSCRIBER_MAX_BACKLOG", "500")
	t.Setenv("STREAM_HEARTBEAT", "5s")
	t.Setenv("OVERDUE_SWEEP_ENABLED", "false")

	cfg := NewConfig()

	assert.Equal(t, ":9000", cfg.HTTP.Addr)
	assert.Equal(t, StoragePostgres, cfg.Storage.Driver)
	assert.Equal(t, "postgres://u:p@db/library", cfg.Storage.DatabaseURL)
	assert.Equal(t, "naive", cfg.Availability.TransitionMode)
	assert.Equal(t, 500, cfg.Availability.MaxBacklog)
	assert.Equal(t, 5*time.Second, cfg.Availability.Heartbeat)
	assert.False(t, cfg.Overdue.SweepEnabled)
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"postgres without url", func(c *Config) { c.Storage.Driver = StoragePostgres; c.Storage.DatabaseURL = "" }},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "sqlite" }},
		{"negative backlog", func(c *Config) { c.Availability.MaxBacklog = -1 }},
		{"zero stream rate", func(c *Config) { c.Availability.StreamRate = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
