// Package db owns the SQLite database used by the sqlite snapshot medium.
package db

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/xiaoyuanzhu-com/filehistory/log"
)

var logger = log.Component("db")

// DB is an open, migrated database
type DB struct {
	conn *sql.DB
	cfg  Config
}

// Open opens (creating if needed) the database at cfg.Path and applies
// pending migrations.
func Open(cfg Config) (*DB, error) {
	if cfg.Path == "" {
		return nil, errors.New("db: empty path")
	}
	cfg = cfg.withDefaults()

	if err := ensureDatabaseDirectory(cfg.Path); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// WAL mode, busy timeout and relaxed sync
	dsn := cfg.Path + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_cache_size=-16000"

	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", cfg.Path, err)
	}

	conn.SetMaxOpenConns(cfg.MaxOpenConns)
	conn.SetMaxIdleConns(cfg.MaxIdleConns)
	if cfg.ConnMaxLifetime > 0 {
		conn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	d := &DB{conn: conn, cfg: cfg}
	if err := d.runMigrations(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info().Str("path", cfg.Path).Msg("database initialized")
	return d, nil
}

// Close closes the database connection
func (d *DB) Close() error {
	if d == nil || d.conn == nil {
		return nil
	}
	return d.conn.Close()
}

// ensureDatabaseDirectory creates the directory for the database file if it doesn't exist
func ensureDatabaseDirectory(dbPath string) error {
	dir := filepath.Dir(dbPath)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
		logger.Info().Str("dir", dir).Msg("created database directory")
	}
	return nil
}

// Transaction executes a function within a database transaction
func (d *DB) Transaction(fn func(*sql.Tx) error) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

func (d *DB) logQuery(kind, query string, args ...any) {
	if !d.cfg.LogQueries {
		return
	}
	logger.Debug().
		Str("kind", kind).
		Str("sql", query).
		Interface("params", args).
		Msg("db query")
}
