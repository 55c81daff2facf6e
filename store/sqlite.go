package store

import (
	"errors"

	"github.com/xiaoyuanzhu-com/filehistory/db"
)

// SQLiteMedium stores one row per record in the snapshot_records table
type SQLiteMedium struct {
	db *db.DB
}

// NewSQLiteMedium wraps an open database
func NewSQLiteMedium(database *db.DB) *SQLiteMedium {
	return &SQLiteMedium{db: database}
}

func (m *SQLiteMedium) Keys() ([]string, error) {
	return m.db.RecordNames()
}

func (m *SQLiteMedium) Read(key string) ([]byte, error) {
	data, err := m.db.GetRecord(key)
	if errors.Is(err, db.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return data, err
}

func (m *SQLiteMedium) Write(key string, data []byte) error {
	return m.db.PutRecord(key, data)
}

func (m *SQLiteMedium) Remove(key string) error {
	err := m.db.DeleteRecord(key)
	if errors.Is(err, db.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
