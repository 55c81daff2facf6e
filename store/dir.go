package store

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const (
	recordExt = ".snapshot"
	tempExt   = ".tmp"
)

// DirMedium stores each record as one file in a directory
type DirMedium struct {
	dir string
}

// NewDirMedium returns a medium rooted at dir. Call Init before use.
func NewDirMedium(dir string) *DirMedium {
	return &DirMedium{dir: dir}
}

// Dir returns the storage directory
func (m *DirMedium) Dir() string {
	return m.dir
}

// Init creates the storage directory if missing and clears temp files left
// by an interrupted write. Safe to call more than once.
func (m *DirMedium) Init() error {
	if err := os.MkdirAll(m.dir, 0755); err != nil {
		return fmt.Errorf("create snapshot dir %q: %w", m.dir, err)
	}

	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return fmt.Errorf("read snapshot dir %q: %w", m.dir, err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), tempExt) {
			continue
		}
		p := filepath.Join(m.dir, e.Name())
		if err := os.Remove(p); err != nil {
			logger.Warn().Err(err).Str("file", p).Msg("failed to remove stale temp file")
			continue
		}
		logger.Info().Str("file", p).Msg("removed stale temp file")
	}
	return nil
}

// Keys lists stored record names. A missing directory holds no records.
func (m *DirMedium) Keys() ([]string, error) {
	entries, err := os.ReadDir(m.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, recordExt) {
			continue
		}
		key, err := decodeKey(strings.TrimSuffix(name, recordExt))
		if err != nil {
			logger.Warn().Err(err).Str("file", name).Msg("skipping unrecognized file in snapshot dir")
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func (m *DirMedium) Read(key string) ([]byte, error) {
	data, err := os.ReadFile(m.pathFor(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return data, err
}

// Write stores data under key via a synced temp file renamed into place
func (m *DirMedium) Write(key string, data []byte) error {
	dst := m.pathFor(key)
	tmpPath := filepath.Join(m.dir, uuid.NewString()+tempExt)

	tmp, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("create temp file in %q: %w", m.dir, err)
	}
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file %q: %w", tmpPath, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file %q: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file %q: %w", tmpPath, err)
	}

	if err := os.Rename(tmpPath, dst); err != nil {
		return fmt.Errorf("rename temp file %q to %q: %w", tmpPath, dst, err)
	}
	return nil
}

func (m *DirMedium) Remove(key string) error {
	err := os.Remove(m.pathFor(key))
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	return err
}

func (m *DirMedium) pathFor(key string) string {
	return filepath.Join(m.dir, encodeKey(key)+recordExt)
}

// encodeKey maps a record name to a portable file name. Bytes outside
// [A-Za-z0-9._-] become %XX, and a leading dot is escaped so records are
// never hidden files.
func encodeKey(key string) string {
	var b strings.Builder
	for i := 0; i < len(key); i++ {
		c := key[i]
		if isSafeKeyByte(c) && !(i == 0 && c == '.') {
			b.WriteByte(c)
			continue
		}
		fmt.Fprintf(&b, "%%%02X", c)
	}
	return b.String()
}

func decodeKey(name string) (string, error) {
	return url.PathUnescape(name)
}

func isSafeKeyByte(c byte) bool {
	return c >= 'a' && c <= 'z' ||
		c >= 'A' && c <= 'Z' ||
		c >= '0' && c <= '9' ||
		c == '.' || c == '_' || c == '-'
}
