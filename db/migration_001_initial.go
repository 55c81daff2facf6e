package db

import "database/sql"

func init() {
	RegisterMigration(Migration{
		Version:     1,
		Description: "Create snapshot_records table",
		Up:          migration001_initial,
	})
}

func migration001_initial(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS snapshot_records (
			name TEXT PRIMARY KEY,
			data BLOB NOT NULL,
			mtime INTEGER NOT NULL
		)
	`)
	return err
}
