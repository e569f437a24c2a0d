package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
	DriverMongo    = "mongo"

	minSecretLength = 32
)

type Config struct {
	ServerPort     string
	StoreDriver    string
	PostgresDSN    string
	SQLitePath     string
	MongoURI       string
	MongoDB        string
	JWTSecret      string
	AllowedOrigins []string
	LogLevel       string
	LogFormat      string
	LogFile        string
	ActivityQueue  int
	RequestTimeout time.Duration
}

// Load reads an optional .env file and then the process environment.
// Variables already set in the environment win over the file.
func Load() (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds and validates a Config from a lookup function.
func FromEnv(getenv func(string) string) (*Config, error) {
	get := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	cfg := &Config{
		ServerPort:  get("SERVER_PORT", "8080"),
		StoreDriver: get("STORE_DRIVER", DriverPostgres),
		SQLitePath:  get("SQLITE_PATH", "taskboard.db"),
		MongoURI:    get("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:     get("MONGO_DB", "taskboard"),
		JWTSecret:   getenv("JWT_SECRET"),
		LogLevel:    get("LOG_LEVEL", "info"),
		LogFormat:   get("LOG_FORMAT", "json"),
		LogFile:     get("LOG_FILE", ""),
	}
	for _, origin := range strings.Split(getenv("ALLOWED_ORIGINS"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
		}
	}

	var err error
	if cfg.ActivityQueue, err = strconv.Atoi(get("ACTIVITY_QUEUE_SIZE", "256")); err != nil || cfg.ActivityQueue <= 0 {
		return nil, fmt.Errorf("ACTIVITY_QUEUE_SIZE must be a positive integer")
	}
	if cfg.RequestTimeout, err = time.ParseDuration(get("REQUEST_TIMEOUT", "5s")); err != nil || cfg.RequestTimeout <= 0 {
		return nil, fmt.Errorf("REQUEST_TIMEOUT must be a positive duration")
	}

	switch cfg.StoreDriver {
	case DriverPostgres:
		var missing []string
		for _, key := range []string{"POSTGRES_USER", "POSTGRES_PASSWORD", "POSTGRES_DB", "POSTGRES_HOST", "POSTGRES_PORT"} {
			if getenv(key) == "" {
				missing = append(missing, key)
			}
		}
		if len(missing) > 0 {
			return nil, fmt.Errorf("environment variables %s must be set", strings.Join(missing, ", "))
		}
		cfg.PostgresDSN = fmt.Sprintf(
			"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
			getenv("POSTGRES_HOST"), getenv("POSTGRES_USER"), getenv("POSTGRES_PASSWORD"),
			getenv("POSTGRES_DB"), getenv("POSTGRES_PORT"))
	case DriverSQLite, DriverMongo:
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}

	if len(cfg.JWTSecret) < minSecretLength {
		return nil, errors.New("JWT_SECRET must be at least 32 characters")
	}
	return cfg, nil
}

// SQLDSN returns the database/sql driver name and DSN for SQL drivers.
func (c *Config) SQLDSN() (driver, dsn string) {
	if c.StoreDriver == DriverSQLite {
		return DriverSQLite, c.SQLitePath
	}
	return DriverPostgres, c.PostgresDSN
}
