package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Scheduler     SchedulerConfig
	Delivery      DeliveryConfig
	Auth          AuthConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	TLS             struct {
		Enabled  bool
		CertFile string
		KeyFile  string
	}
}

// DatabaseConfig holds PostgreSQL database configuration.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence over individual fields.
type DatabaseConfig struct {
	ConnectionString string // From DATABASE_URL when set
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
	// LockTimeout bounds how long any statement waits for a row or advisory lock
	LockTimeout time.Duration
}

// SchedulerConfig holds alert evaluation settings
type SchedulerConfig struct {
	Enabled           bool
	InitialDelay      time.Duration
	Period            time.Duration
	LowStockThreshold int
	ExpiryWindowDays  int
	Timezone          string // IANA name used for "today"; empty means the process location
}

// DeliveryConfig holds notification delivery settings
type DeliveryConfig struct {
	DisplayTimeout time.Duration
	FetchLimit     int
	AckBuffer      int
	AckWorkers     int
	AckTimeout     time.Duration
}

// AuthConfig holds bearer token settings. An empty secret disables auth.
type AuthConfig struct {
	JWTSecret string
	JWTIssuer string
}

// ObservabilityConfig holds monitoring and logging configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string // json or console
	LogFile        string // optional rotating log file
	MetricsEnabled bool
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			TLS: struct {
				Enabled  bool
				CertFile string
				KeyFile  string
			}{
				Enabled:  getEnvAsBool("TLS_ENABLED", false),
				CertFile: getEnv("TLS_CERT_FILE", "certs/cert.pem"),
				KeyFile:  getEnv("TLS_KEY_FILE", "certs/key.pem"),
			},
		},
		Database: loadDatabaseConfig(),
		Scheduler: SchedulerConfig{
			Enabled:           getEnvAsBool("ALERT_ENABLED", true),
			InitialDelay:      getEnvAsDuration("ALERT_INITIAL_DELAY", 30*time.Second),
			Period:            getEnvAsDuration("ALERT_PERIOD", 60*time.Second),
			LowStockThreshold: getEnvAsInt("ALERT_LOW_STOCK_THRESHOLD", 10),
			ExpiryWindowDays:  getEnvAsInt("ALERT_EXPIRY_WINDOW_DAYS", 30),
			Timezone:          getEnv("ALERT_TIMEZONE", ""),
		},
		Delivery: DeliveryConfig{
			DisplayTimeout: getEnvAsDuration("DELIVERY_DISPLAY_TIMEOUT", 6*time.Second),
			FetchLimit:     getEnvAsInt("DELIVERY_FETCH_LIMIT", 500),
			AckBuffer:      getEnvAsInt("DELIVERY_ACK_BUFFER", 256),
			AckWorkers:     getEnvAsInt("DELIVERY_ACK_WORKERS", 2),
			AckTimeout:     getEnvAsDuration("DELIVERY_ACK_TIMEOUT", 5*time.Second),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			JWTIssuer: getEnv("JWT_ISSUER", "hms-audit"),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			LogFile:        getEnv("LOG_FILE", ""),
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
		},
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	// Database validation (DATABASE_URL or DB_* vars)
	if c.Database.ConnectionString == "" && c.Database.Host == "" {
		return fmt.Errorf("database configuration required: set DATABASE_URL or DB_HOST")
	}
	if c.Database.ConnectionString == "" {
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
	}
	if c.Database.LockTimeout <= 0 {
		return fmt.Errorf("database lock timeout must be positive")
	}

	// Scheduler validation
	if c.Scheduler.Period <= 0 {
		return fmt.Errorf("alert period must be positive")
	}
	if c.Scheduler.InitialDelay < 0 {
		return fmt.Errorf("alert initial delay must not be negative")
	}
	if c.Scheduler.LowStockThreshold < 0 {
		return fmt.Errorf("low stock threshold must not be negative")
	}
	if c.Scheduler.ExpiryWindowDays <= 0 {
		return fmt.Errorf("expiry window must be positive")
	}
	if _, err := c.Scheduler.Location(); err != nil {
		return err
	}

	// Delivery validation
	if c.Delivery.DisplayTimeout <= 0 {
		return fmt.Errorf("delivery display timeout must be positive")
	}
	if c.Delivery.AckWorkers <= 0 || c.Delivery.AckBuffer <= 0 {
		return fmt.Errorf("delivery ack workers and buffer must be positive")
	}

	// Auth is required in production
	if c.IsProduction() && !c.Auth.Enabled() {
		return fmt.Errorf("JWT_SECRET is required in production")
	}

	// Observability validation
	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// Enabled reports whether bearer tokens are checked
func (c *AuthConfig) Enabled() bool {
	return c.JWTSecret != ""
}

// Location returns the calendar location for date based rules
func (c *SchedulerConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid ALERT_TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// DSN returns the PostgreSQL connection string.
// Uses ConnectionString (from DATABASE_URL) when set; otherwise builds from individual fields.
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LogString returns a safe string for logging (no password). Parses ConnectionString when set.
func (c *DatabaseConfig) LogString() string {
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err == nil {
			host := u.Hostname()
			port := u.Port()
			if port == "" {
				port = "5432"
			}
			db := strings.TrimPrefix(u.Path, "/")
			return fmt.Sprintf("host=%s port=%s database=%s", host, port, db)
		}
		return "host=<from DATABASE_URL>"
	}
	return fmt.Sprintf("host=%s port=%d database=%s", c.Host, c.Port, c.Database)
}

// loadDatabaseConfig loads database config from DATABASE_URL or DB_* env vars
func loadDatabaseConfig() DatabaseConfig {
	cfg := DatabaseConfig{
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		LockTimeout:     getEnvAsDuration("DB_LOCK_TIMEOUT", 3*time.Second),
	}
	if dbURL := getEnv("DATABASE_URL", ""); dbURL != "" {
		cfg.ConnectionString = dbURL
		return cfg
	}
	cfg.Host = getEnv("DB_HOST", "localhost")
	cfg.Port = getEnvAsInt("DB_PORT", 5432)
	cfg.User = getEnv("DB_USER", "hms")
	cfg.Password = getEnv("DB_PASSWORD", "hms_password")
	cfg.Database = getEnv("DB_NAME", "hms")
	cfg.SSLMode = getEnv("DB_SSLMODE", "disable")
	return cfg
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 8080)
func getPort() int {
	if value := os.Getenv("PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	if value := os.Getenv("SERVER_PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	return 8080
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
