// Package snapshot defines the immutable point-in-time copy of a file and
// its persisted record format.
package snapshot

import (
	"bytes"
	"fmt"
	"path/filepath"
	"sort"
	"time"
)

// Snapshot is a full copy of a file's content at one moment.
// Content is never modified after construction.
type Snapshot struct {
	Name      string    `json:"name"`
	FilePath  string    `json:"filePath"`
	Content   []byte    `json:"-"`
	Timestamp time.Time `json:"timestamp"`
}

// New builds a snapshot with the conventional name for path at the given
// instant. The content is copied and the timestamp truncated to milliseconds.
func New(path string, content []byte, at time.Time) Snapshot {
	ts := time.UnixMilli(at.UnixMilli())
	return Snapshot{
		Name:      NameFor(path, ts),
		FilePath:  path,
		Content:   bytes.Clone(nonNil(content)),
		Timestamp: ts,
	}
}

// NameFor returns "<base name>-<unix millis>"
func NameFor(path string, at time.Time) string {
	return fmt.Sprintf("%s-%d", filepath.Base(path), at.UnixMilli())
}

// Millis returns the capture time in Unix milliseconds
func (s Snapshot) Millis() int64 {
	return s.Timestamp.UnixMilli()
}

// Text returns the content as a string
func (s Snapshot) Text() string {
	return string(s.Content)
}

// WithPath returns a copy carrying a different file path. Name, timestamp
// and content are unchanged.
func (s Snapshot) WithPath(path string) Snapshot {
	s.FilePath = path
	return s
}

// Equal reports whether both snapshots carry the same name, path, instant
// and content.
func (s Snapshot) Equal(o Snapshot) bool {
	return s.Name == o.Name &&
		s.FilePath == o.FilePath &&
		s.Millis() == o.Millis() &&
		bytes.Equal(s.Content, o.Content)
}

// SortByTime orders snapshots oldest first, breaking ties by name
func SortByTime(snaps []Snapshot) {
	sort.SliceStable(snaps, func(i, j int) bool {
		ti, tj := snaps[i].Millis(), snaps[j].Millis()
		if ti != tj {
			return ti < tj
		}
		return snaps[i].Name < snaps[j].Name
	})
}

func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
