package db

import "time"

// Config holds database configuration
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	LogQueries      bool
}

func (c Config) withDefaults() Config {
	// SQLite works best with a single writer
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = 1
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = 1
	}
	return c
}
