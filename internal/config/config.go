package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server  ServerConfig
	App     AppConfig
	Log     LogConfig
	Store   StoreConfig
	Cache   CacheConfig
	Lock    LockConfig
	Ingest  IngestConfig
	Archive ArchiveConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"300s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
	MaxBodyBytes    int64         `envconfig:"SERVER_MAX_BODY_BYTES" default:"33554432"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name        string   `envconfig:"APP_NAME" default:"label-printer"`
	Environment string   `envconfig:"APP_ENV" default:"development"`
	Version     string   `envconfig:"APP_VERSION" default:"1.0.0"`
	APIKeys     []string `envconfig:"API_KEYS"` // empty disables authentication
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Format string `envconfig:"LOG_FORMAT" default:"json"` // json or text
}

// StoreConfig holds database settings.
type StoreConfig struct {
	Driver string `envconfig:"STORE_DRIVER" default:"sqlite"` // sqlite, postgres, or mysql
	Path   string `envconfig:"STORE_PATH" default:"./data/inventory.db"`

	// Network database settings
	Host     string `envconfig:"STORE_HOST" default:"localhost"`
	Port     int    `envconfig:"STORE_PORT" default:"0"` // 0 picks the driver's default port
	Name     string `envconfig:"STORE_NAME" default:"inventory"`
	User     string `envconfig:"STORE_USER" default:"postgres"`
	Password string `envconfig:"STORE_PASS" default:""`
	SSLMode  string `envconfig:"STORE_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STORE_MAX_OPEN_CONNS" default:"25"`
	MaxIdleConns    int           `envconfig:"STORE_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STORE_CONN_MAX_LIFETIME" default:"5m"`
}

// CacheConfig holds cache settings.
type CacheConfig struct {
	Type string        `envconfig:"CACHE_TYPE" default:"memory"` // memory, redis, or none
	TTL  time.Duration `envconfig:"CACHE_TTL" default:"5m"`

	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
	RedisPrefix   string `envconfig:"REDIS_PREFIX" default:"label-printer:"`
}

// LockConfig holds serial-number lock settings.
type LockConfig struct {
	Backend string        `envconfig:"LOCK_BACKEND" default:"local"` // local or redis
	TTL     time.Duration `envconfig:"LOCK_TTL" default:"5m"`
	Wait    time.Duration `envconfig:"LOCK_WAIT" default:"30s"`
}

// IngestConfig holds batch ingestion settings.
type IngestConfig struct {
	Workers        int    `envconfig:"INGEST_WORKERS" default:"0"` // 0 uses the CPU count
	MaxItems       int    `envconfig:"INGEST_MAX_ITEMS" default:"10000"`
	VerifyChecksum bool   `envconfig:"INGEST_VERIFY_CHECKSUM" default:"false"`
	DefaultSource  string `envconfig:"INGEST_DEFAULT_SOURCE" default:"api"`
}

// ArchiveConfig holds log retention settings.
type ArchiveConfig struct {
	RetentionDays     int           `envconfig:"ARCHIVE_RETENTION_DAYS" default:"30"`
	Schedule          string        `envconfig:"ARCHIVE_SCHEDULE" default:"@daily"`
	ReconcileSchedule string        `envconfig:"RECONCILE_SCHEDULE" default:"@every 5m"`
	ProcessingLease   time.Duration `envconfig:"PROCESSING_LEASE" default:"30m"`
	JobTimeout        time.Duration `envconfig:"ARCHIVE_JOB_TIMEOUT" default:"5m"`
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RedisAddress returns the Redis address in host:port format.
func (c *CacheConfig) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// PostgresDSN returns the PostgreSQL connection string.
func (s *StoreConfig) PostgresDSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(s.User, s.Password),
		Host:     fmt.Sprintf("%s:%d", s.Host, s.portOr(5432)),
		Path:     "/" + s.Name,
		RawQuery: "sslmode=" + url.QueryEscape(s.SSLMode),
	}
	return u.String()
}

// MySQLDSN returns the MySQL data source name.
func (s *StoreConfig) MySQLDSN() string {
	c := mysql.NewConfig()
	c.User = s.User
	c.Passwd = s.Password
	c.Net = "tcp"
	c.Addr = fmt.Sprintf("%s:%d", s.Host, s.portOr(3306))
	c.DBName = s.Name
	c.ParseTime = true
	return c.FormatDSN()
}

// DSN returns the data source name for the configured driver.
func (s *StoreConfig) DSN() string {
	switch s.Driver {
	case "postgres":
		return s.PostgresDSN()
	case "mysql":
		return s.MySQLDSN()
	default:
		return s.Path
	}
}

func (s *StoreConfig) portOr(def int) int {
	if s.Port > 0 {
		return s.Port
	}
	return def
}

// IsDevelopment returns true if running in development mode.
func (a *AppConfig) IsDevelopment() bool {
	return a.Environment == "development"
}

// AuthEnabled reports whether API keys are required.
func (a *AppConfig) AuthEnabled() bool {
	return len(a.APIKeys) > 0
}

// Validate rejects unknown enum values and non-positive sizes.
func (c *Config) Validate() error {
	var problems []string
	check := func(ok bool, format string, args ...any) {
		if !ok {
			problems = append(problems, fmt.Sprintf(format, args...))
		}
	}

	check(oneOf(c.Store.Driver, "sqlite", "postgres", "mysql"), "STORE_DRIVER %q is not sqlite, postgres or mysql", c.Store.Driver)
	check(oneOf(c.Cache.Type, "memory", "redis", "none"), "CACHE_TYPE %q is not memory, redis or none", c.Cache.Type)
	check(oneOf(c.Lock.Backend, "local", "redis"), "LOCK_BACKEND %q is not local or redis", c.Lock.Backend)
	check(oneOf(c.Log.Format, "json", "text"), "LOG_FORMAT %q is not json or text", c.Log.Format)

	check(c.Server.Port > 0, "SERVER_PORT must be positive")
	check(c.Server.MaxBodyBytes > 0, "SERVER_MAX_BODY_BYTES must be positive")
	check(c.Store.MaxOpenConns > 0, "STORE_MAX_OPEN_CONNS must be positive")
	check(c.Ingest.MaxItems > 0, "INGEST_MAX_ITEMS must be positive")
	check(c.Ingest.Workers >= 0, "INGEST_WORKERS must not be negative")
	check(c.Archive.RetentionDays > 0, "ARCHIVE_RETENTION_DAYS must be positive")
	check(c.Archive.ProcessingLease > 0, "PROCESSING_LEASE must be positive")
	check(c.Lock.TTL > 0, "LOCK_TTL must be positive")

	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// MustLoad loads configuration or panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
