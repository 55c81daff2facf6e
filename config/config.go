package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Config holds all application configuration
type Config struct {
	Env      string `yaml:"env"` // "development" or "production"
	LogLevel string `yaml:"logLevel"`

	// Project being tracked
	ProjectRoot string `yaml:"projectRoot"`
	SnapshotDir string `yaml:"snapshotDir"` // relative to ProjectRoot unless absolute

	// Store backend
	StoreKind    string `yaml:"store"` // "dir" or "sqlite"
	DatabasePath string `yaml:"databasePath"`
	Workers      int    `yaml:"workers"`
	QueueSize    int    `yaml:"queueSize"`

	// Capture policy
	CaptureInterval time.Duration `yaml:"captureInterval"`

	// Host plumbing
	WatchEnabled bool   `yaml:"watch"`
	APIAddr      string `yaml:"apiAddr"` // empty disables the query API
}

var (
	cfg  *Config
	once sync.Once
)

// Get returns the global configuration (singleton)
func Get() *Config {
	once.Do(func() {
		cfg = load()
	})
	return cfg
}

// load reads configuration from environment variables, then overlays the
// YAML file named by FILEHISTORY_CONFIG if there is one.
func load() *Config {
	c := fromEnv()

	if path := os.Getenv("FILEHISTORY_CONFIG"); path != "" {
		if err := c.overlayFile(path); err != nil {
			// The logger depends on this package, so report on stderr.
			os.Stderr.WriteString("config: " + err.Error() + "\n")
		}
	}
	return c
}

func fromEnv() *Config {
	root := getEnv("FILEHISTORY_ROOT", ".")

	return &Config{
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		ProjectRoot: root,
		SnapshotDir: getEnv("FILEHISTORY_SNAPSHOT_DIR", "snapshots"),

		StoreKind:    getEnv("FILEHISTORY_STORE", "dir"),
		DatabasePath: getEnv("FILEHISTORY_DB_PATH", ""),
		Workers:      getEnvInt("FILEHISTORY_WORKERS", 4),
		QueueSize:    getEnvInt("FILEHISTORY_QUEUE_SIZE", 256),

		CaptureInterval: getEnvDuration("FILEHISTORY_CAPTURE_INTERVAL", time.Second),

		WatchEnabled: getEnvBool("FILEHISTORY_WATCH", true),
		APIAddr:      getEnv("FILEHISTORY_API_ADDR", "127.0.0.1:12346"),
	}
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env != "production"
}

// SnapshotRoot returns the absolute-or-root-relative snapshot directory
func (c *Config) SnapshotRoot() string {
	if filepath.IsAbs(c.SnapshotDir) {
		return c.SnapshotDir
	}
	return filepath.Join(c.ProjectRoot, c.SnapshotDir)
}

// DBPath returns the SQLite database path, defaulting inside the snapshot root
func (c *Config) DBPath() string {
	if c.DatabasePath != "" {
		return c.DatabasePath
	}
	return filepath.Join(c.SnapshotRoot(), "snapshots.sqlite")
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch strings.ToLower(value) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("1500ms") or bare milliseconds ("1500")
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultValue
}
