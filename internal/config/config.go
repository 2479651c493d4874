package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

type (
	Config struct {
		HTTP
		Storage
		Availability
		Overdue
		Telemetry
		Log
	}

	HTTP struct {
		Addr            string
		ShutdownTimeout time.Duration
	}
	Storage struct {
		Driver      string // memory or postgres
		DatabaseURL string
		Seed        bool // load demo data into the memory backend
	}
	Availability struct {
		TransitionMode string // atomic or naive
		StreamPolicy   string // gap-free or snapshot-first
		MaxBacklog     int    // 0 keeps subscriber backlogs unbounded
		StreamRate     float64
		StreamBurst    int
		Heartbeat      time.Duration
	}
	Overdue struct {
		SweepEnabled  bool
		SweepSchedule string // Cron format: "*/15 * * * *" = every 15 minutes
	}
	Telemetry struct {
		ServiceName  string
		OTLPEndpoint string // traces are exported only when set
	}
	Log struct {
		Level  string
		Format string // json or text
	}
)

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("shutdown_timeout", "10s")
	v.SetDefault("storage_driver", StorageMemory)
	v.SetDefault("database_url", "")
	v.SetDefault("seed_data", true)
	v.SetDefault("transition_mode", "atomic")
	v.SetDefault("stream_policy", "gap-free")
	v.SetDefault("subscriber_max_backlog", 0)
	v.SetDefault("stream_connect_rate", 5)
	v.SetDefault("stream_connect_burst", 20)
	v.SetDefault("stream_heartbeat", "15s")
	v.SetDefault("overdue_sweep_enabled", true)
	v.SetDefault("overdue_sweep_schedule", "*/15 * * * *")
	v.SetDefault("otel_service_name", "bookloan")
	v.SetDefault("otel_exporter_otlp_endpoint", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")

	return &Config{
		HTTP: HTTP{
			Addr:            v.GetString("HTTP_ADDR"),
			ShutdownTimeout: v.GetDuration("SHUTDOWN_TIMEOUT"),
		},
		Storage: Storage{
			Driver:      v.GetString("STORAGE_DRIVER"),
			DatabaseURL: v.GetString("DATABASE_URL"),
			Seed:        v.GetBool("SEED_DATA"),
		},
		Availability: Availability{
			TransitionMode: v.GetString("TRANSITION_MODE"),
			StreamPolicy:   v.GetString("STREAM_POLICY"),
			MaxBacklog:     v.GetInt("SUBSCRIBER_MAX_BACKLOG"),
			StreamRate:     v.GetFloat64("STREAM_CONNECT_RATE"),
			StreamBurst:    v.GetInt("STREAM_CONNECT_BURST"),
			Heartbeat:      v.GetDuration("STREAM_HEARTBEAT"),
		},
		Overdue: Overdue{
			SweepEnabled:  v.GetBool("OVERDUE_SWEEP_ENABLED"),
			SweepSchedule: v.GetString("OVERDUE_SWEEP_SCHEDULE"),
		},
		Telemetry: Telemetry{
			ServiceName:  v.GetString("OTEL_SERVICE_NAME"),
			OTLPEndpoint: v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
		},
		Log: Log{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
	}
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case StorageMemory:
	case StoragePostgres:
		if c.Storage.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres storage driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Availability.MaxBacklog < 0 {
		return fmt.Errorf("SUBSCRIBER_MAX_BACKLOG must not be negative")
	}
	if c.Availability.StreamRate <= 0 || c.Availability.StreamBurst <= 0 {
		return fmt.Errorf("stream connect rate and burst must be positive")
	}
	return nil
}
