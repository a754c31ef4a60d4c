package helper

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/lib/pq"
)

// DatabaseConfiguration holds the connection parameters for the single
// Postgres instance backing both the graph store and the vector store.
type DatabaseConfiguration struct {
	Host     string
	Port     string
	Database string
	Username string
	Password string
	Schema   string
	SSLMode  string
}

// DSN renders the configuration as a lib/pq connection string.
func (c *DatabaseConfiguration) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s dbname=%s user=%s password=%s sslmode=%s search_path=%s",
		c.Host, c.Port, c.Database, c.Username, c.Password, c.SSLMode, c.Schema,
	)
}

// NewDatabaseConfiguration builds a DatabaseConfiguration from environment
// variables, applying the same defaults the rest of the service uses.
func NewDatabaseConfiguration() (*DatabaseConfiguration, error) {
	cfg := &DatabaseConfiguration{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", "5432"),
		Database: getEnv("DB_NAME", "database"),
		Username: getEnv("DB_USER", "user"),
		Password: getEnv("DB_PASSWORD", "password"),
		Schema:   getEnv("DB_SCHEMA", "public"),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
	}
	if cfg.Host == "" || cfg.Port == "" || cfg.Database == "" {
		return nil, fmt.Errorf("database configuration: host, port and database name are required")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// Database is the process-wide handle shared by every storage package:
// one *sql.DB connection pool and the logger every handler writes through.
type Database struct {
	Instance *sql.DB
	Logger   *slog.Logger
	Name     string
}

// NewDatabase opens the pool and blocks until the database answers a ping,
// retrying with bounded exponential backoff (ceiling 30s) per the
// connect-with-retry contract GraphDatabase.Initialize must honor. It
// returns a Database even on failure to preserve the logger-carrying
// call-site shape used across the package; callers that need the error
// should prefer Open.
func NewDatabase(name string, config *DatabaseConfiguration, logger *slog.Logger) *Database {
	db, err := Open(name, config, logger)
	if err != nil {
		logger.Error("failed to open database, continuing with unready handle", "name", name, "error", err)
		instance, _ := sql.Open("postgres", config.DSN())
		return &Database{Instance: instance, Logger: logger, Name: name}
	}
	return db
}

// Open connects to Postgres and waits for it to become reachable, retrying
// with exponential backoff up to a 30-second ceiling. Returns ConnectFailed
// if the deadline elapses first.
func Open(name string, config *DatabaseConfiguration, logger *slog.Logger) (*Database, error) {
	instance, err := sql.Open("postgres", config.DSN())
	if err != nil {
		return nil, NewKindError("open database", ConnectFailed, err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 30 * time.Second

	pingErr := backoff.Retry(func() error {
		return instance.Ping()
	}, bo)
	if pingErr != nil {
		return nil, NewKindError("ping database", ConnectFailed, pingErr)
	}

	logger.Info("connected to database", "name", name, "host", config.Host, "database", config.Database)
	return &Database{Instance: instance, Logger: logger, Name: name}, nil
}

// Close closes the underlying pool.
func (d *Database) Close() error {
	if d == nil || d.Instance == nil {
		return nil
	}
	return d.Instance.Close()
}

// NewTestDatabase is the test-suite variant of NewDatabase: it does not
// retry and fails fast, since tests run against a container that is
// already known to be healthy.
func NewTestDatabase(config *DatabaseConfiguration) *Database {
	logger := NewPrettyLogger(os.Stdout, slog.LevelWarn)
	instance, err := sql.Open("postgres", config.DSN())
	if err != nil {
		logger.Error("failed to open test database", "error", err)
	}
	return &Database{Instance: instance, Logger: logger, Name: "test"}
}
