package db

import (
	"database/sql"
	"errors"
	"time"
)

// ErrRecordNotFound is returned when no record has the requested name
var ErrRecordNotFound = errors.New("record not found")

// PutRecord inserts or replaces a record in a single statement
func (d *DB) PutRecord(name string, data []byte) error {
	const q = `
		INSERT INTO snapshot_records (name, data, mtime)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET data = excluded.data, mtime = excluded.mtime
	`
	mtime := time.Now().UnixMilli()
	d.logQuery("exec", q, name, mtime)

	if _, err := d.conn.Exec(q, name, data, mtime); err != nil {
		return err
	}
	logger.Debug().Str("name", name).Int("size", len(data)).Msg("stored record")
	return nil
}

// GetRecord returns the data stored under name
func (d *DB) GetRecord(name string) ([]byte, error) {
	const q = "SELECT data FROM snapshot_records WHERE name = ?"
	d.logQuery("get", q, name)

	var data []byte
	err := d.conn.QueryRow(q, name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// RecordNames lists every record name in name order
func (d *DB) RecordNames() ([]string, error) {
	const q = "SELECT name FROM snapshot_records ORDER BY name"
	d.logQuery("select", q)

	rows, err := d.conn.Query(q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// DeleteRecord removes a record. Deleting a missing name returns
// ErrRecordNotFound.
func (d *DB) DeleteRecord(name string) error {
	const q = "DELETE FROM snapshot_records WHERE name = ?"
	d.logQuery("exec", q, name)

	res, err := d.conn.Exec(q, name)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrRecordNotFound
	}
	return nil
}
