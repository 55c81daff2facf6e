package db

import (
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

var (
	migrationsMu sync.Mutex
	// populated by the migration_*.go files
	migrations []Migration
)

// RegisterMigration adds a migration to the list
func RegisterMigration(m Migration) {
	migrationsMu.Lock()
	defer migrationsMu.Unlock()
	migrations = append(migrations, m)
}

func sortedMigrations() []Migration {
	migrationsMu.Lock()
	defer migrationsMu.Unlock()

	out := make([]Migration, len(migrations))
	copy(out, migrations)
	sort.Slice(out, func(i, j int) bool {
		return out[i].Version < out[j].Version
	})
	return out
}

// runMigrations executes all pending migrations
func (d *DB) runMigrations() error {
	_, err := d.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at TEXT,
			description TEXT
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}
	return d.applyMigrations(sortedMigrations())
}

// applyMigrations runs each migration newer than the current version in its
// own transaction, together with its schema_version row
func (d *DB) applyMigrations(list []Migration) error {
	currentVersion, err := currentVersion(d.conn)
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	for _, m := range list {
		if m.Version <= currentVersion {
			continue
		}

		logger.Info().
			Int("version", m.Version).
			Str("description", m.Description).
			Msg("applying migration")

		err := d.Transaction(func(tx *sql.Tx) error {
			if err := m.Up(tx); err != nil {
				return fmt.Errorf("migration %d failed: %w", m.Version, err)
			}
			_, err := tx.Exec(
				"INSERT INTO schema_version (version, applied_at, description) VALUES (?, ?, ?)",
				m.Version,
				time.Now().UTC().Format(time.RFC3339),
				m.Description,
			)
			if err != nil {
				return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
			}
			return nil
		})
		if err != nil {
			return err
		}

		logger.Info().
			Int("version", m.Version).
			Msg("migration applied successfully")
	}

	return nil
}

func currentVersion(db *sql.DB) (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version)
	return version, err
}

// CurrentVersion returns the current database schema version
func (d *DB) CurrentVersion() (int, error) {
	return currentVersion(d.conn)
}
