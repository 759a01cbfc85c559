package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "AFFLUENCE"

// Storage backend names accepted by StorageConfig.Backend.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMySQL  = "mysql"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Backends lists the storage backends in the order they are documented.
var Backends = []string{BackendFile, BackendSQLite, BackendMySQL, BackendRedis, BackendMemory}

// ClientConfig holds configuration for the affluence CLI.
type ClientConfig struct {
	APIBase      string        `split_words:"true"`                // AFFLUENCE_API_BASE, global base URL override
	FrontendHTML string        `split_words:"true"`                // AFFLUENCE_FRONTEND_HTML, page carrying <meta name="api-base">
	Timeout      time.Duration `default:"20s"`                     // AFFLUENCE_TIMEOUT
	MaxRetries   int           `split_words:"true" default:"0"`    // AFFLUENCE_MAX_RETRIES, GET only
	RetryDelay   time.Duration `split_words:"true" default:"1s"`   // AFFLUENCE_RETRY_DELAY
	Output       string        `default:"text"`                    // AFFLUENCE_OUTPUT: text, json, yaml
	LogLevel     string        `split_words:"true" default:"warn"` // AFFLUENCE_LOG_LEVEL
	LogFormat    string        `split_words:"true" default:"text"` // AFFLUENCE_LOG_FORMAT
	Storage      StorageConfig
}

// StorageConfig selects and configures the persistent session store.
// Variables are read as AFFLUENCE_STORAGE_*.
type StorageConfig struct {
	Backend       string `default:"file"`
	Path          string // file or sqlite path; empty picks the default under Dir()
	MysqlDSN      string `split_words:"true"`
	RedisAddr     string `split_words:"true" default:"localhost:6379"`
	RedisPassword string `split_words:"true"`
	RedisDB       int    `split_words:"true" default:"0"`
	RedisPrefix   string `split_words:"true" default:"affluence:"`
}

// DefaultClientConfig returns the defaults without reading the environment.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:    20 * time.Second,
		RetryDelay: time.Second,
		Output:     "text",
		LogLevel:   "warn",
		LogFormat:  "text",
		Storage:    DefaultStorageConfig(),
	}
}

// DefaultStorageConfig returns the file-backed store defaults.
func DefaultStorageConfig() StorageConfig {
	return StorageConfig{
		Backend:     BackendFile,
		RedisAddr:   "localhost:6379",
		RedisPrefix: "affluence:",
	}
}

// Load reads AFFLUENCE_* variables after loading envFiles into the
// environment. With no envFiles an optional ./.env is loaded. Variables
// already set are never overridden by a file.
func Load(envFiles ...string) (ClientConfig, error) {
	if len(envFiles) == 0 {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return ClientConfig{}, fmt.Errorf("load .env: %w", err)
		}
	} else if err := godotenv.Load(envFiles...); err != nil {
		return ClientConfig{}, fmt.Errorf("load env files: %w", err)
	}

	var cfg ClientConfig
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return ClientConfig{}, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return ClientConfig{}, err
	}
	return cfg, nil
}

// Validate checks enumerated settings.
func (c ClientConfig) Validate() error {
	switch strings.ToLower(c.Output) {
	case "text", "json", "yaml":
	default:
		return fmt.Errorf("invalid output format %q (want text, json or yaml)", c.Output)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative, got %d", c.MaxRetries)
	}
	return c.Storage.Validate()
}

// Validate checks the backend name and its required settings.
func (s StorageConfig) Validate() error {
	switch s.Backend {
	case BackendFile, BackendSQLite, BackendRedis, BackendMemory:
		return nil
	case BackendMySQL:
		if s.MysqlDSN == "" {
			return fmt.Errorf("storage backend mysql requires %s_STORAGE_MYSQL_DSN", EnvPrefix)
		}
		return nil
	}
	return fmt.Errorf("unknown storage backend %q (want one of %s)", s.Backend, strings.Join(Backends, ", "))
}

// Dir returns the per-user state directory (~/.affluence).
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("find home directory: %w", err)
	}
	return filepath.Join(home, ".affluence"), nil
}

// ResolvedPath returns Path, or the backend's default file under Dir().
func (s StorageConfig) ResolvedPath() (string, error) {
	if s.Path != "" {
		return s.Path, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	switch s.Backend {
	case BackendSQLite:
		return filepath.Join(dir, "affluence.db"), nil
	default:
		return filepath.Join(dir, "storage.json"), nil
	}
}
