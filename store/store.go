// Package store persists snapshots through a pluggable medium and answers
// history queries by scanning it.
package store

import (
	"errors"
	"sort"
	"time"

	"github.com/xiaoyuanzhu-com/filehistory/log"
	"github.com/xiaoyuanzhu-com/filehistory/snapshot"
)

var logger = log.Component("store")

const (
	DefaultWorkers   = 4
	DefaultQueueSize = 256
)

// Options configures the background write pool
type Options struct {
	Workers   int
	QueueSize int // per worker
}

// Store is the snapshot repository. Saves and scheduled deletes/renames run
// on a background pool; queries and direct management calls are synchronous.
type Store struct {
	medium Medium
	pool   *pool
}

// New starts a store over medium. The medium must already be initialized.
func New(medium Medium, opts Options) *Store {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}

	logger.Info().
		Int("workers", opts.Workers).
		Int("queueSize", opts.QueueSize).
		Msg("starting snapshot store")

	return &Store{
		medium: medium,
		pool:   newPool(opts.Workers, opts.QueueSize),
	}
}

// Save queues snap for persistence and returns immediately. It reports
// whether the job was accepted; write failures are only logged.
func (s *Store) Save(snap snapshot.Snapshot) bool {
	return s.pool.submit(job{
		op:   "save",
		path: snap.FilePath,
		run:  func() { s.write(snap) },
	})
}

// ScheduleDelete queues DeleteForPath(path)
func (s *Store) ScheduleDelete(path string) bool {
	return s.pool.submit(job{
		op:   "delete",
		path: path,
		run:  func() { s.DeleteForPath(path) },
	})
}

// ScheduleRename queues RenamePath(oldPath, newPath) on oldPath's worker.
// newPath's worker waits for it, so saves, deletes and renames queued
// later for either path see the moved history.
func (s *Store) ScheduleRename(oldPath, newPath string) bool {
	return s.pool.submitLinked(job{
		op:   "rename",
		path: oldPath,
		run:  func() { s.RenamePath(oldPath, newPath) },
	}, newPath)
}

// Flush waits for every job accepted so far
func (s *Store) Flush() {
	s.pool.flush()
}

// Close stops accepting jobs and waits for queued ones to finish
func (s *Store) Close() {
	s.pool.close()
	logger.Info().Msg("snapshot store stopped")
}

func (s *Store) write(snap snapshot.Snapshot) bool {
	data, err := snapshot.Encode(snap)
	if err != nil {
		logger.Error().Err(err).Str("name", snap.Name).Msg("failed to encode snapshot")
		return false
	}
	if err := s.medium.Write(snap.Name, data); err != nil {
		logger.Error().Err(err).Str("name", snap.Name).Str("path", snap.FilePath).Msg("failed to write snapshot")
		return false
	}
	logger.Debug().
		Str("name", snap.Name).
		Str("path", snap.FilePath).
		Int("size", len(snap.Content)).
		Msg("saved snapshot")
	return true
}

// scan decodes every readable record accepted by keep. Unreadable and
// corrupt records are logged and skipped.
func (s *Store) scan(keep func(snapshot.Snapshot) bool) []snapshot.Snapshot {
	keys, err := s.medium.Keys()
	if err != nil {
		logger.Error().Err(err).Msg("failed to enumerate snapshot records")
		return []snapshot.Snapshot{}
	}

	out := make([]snapshot.Snapshot, 0, len(keys))
	for _, key := range keys {
		snap, ok := s.load(key)
		if !ok || !keep(snap) {
			continue
		}
		out = append(out, snap)
	}
	snapshot.SortByTime(out)
	return out
}

func (s *Store) load(key string) (snapshot.Snapshot, bool) {
	data, err := s.medium.Read(key)
	if err != nil {
		// a concurrent delete between Keys and Read is not worth a warning
		if errors.Is(err, ErrNotFound) {
			logger.Debug().Str("name", key).Msg("snapshot record vanished during scan")
		} else {
			logger.Warn().Err(err).Str("name", key).Msg("failed to read snapshot record")
		}
		return snapshot.Snapshot{}, false
	}
	snap, err := snapshot.Decode(data)
	if err != nil {
		logger.Warn().Err(err).Str("name", key).Msg("skipping unreadable snapshot record")
		return snapshot.Snapshot{}, false
	}
	return snap, true
}

// ListAll returns every readable snapshot ordered by timestamp, then name
func (s *Store) ListAll() []snapshot.Snapshot {
	return s.scan(func(snapshot.Snapshot) bool { return true })
}

// ListForPath returns the version history of path, oldest first
func (s *Store) ListForPath(path string) []snapshot.Snapshot {
	return s.scan(func(snap snapshot.Snapshot) bool { return snap.FilePath == path })
}

// Get looks up a single snapshot by name
func (s *Store) Get(name string) (snapshot.Snapshot, bool) {
	return s.load(name)
}

// DeleteForPath removes every snapshot recorded for path and returns how
// many were removed. Individual failures are logged and skipped.
func (s *Store) DeleteForPath(path string) int {
	if path == "" {
		logger.Error().Msg("delete requested for empty path")
		return 0
	}

	matches := s.ListForPath(path)
	removed := 0
	for _, snap := range matches {
		if err := s.medium.Remove(snap.Name); err != nil {
			logger.Warn().Err(err).Str("name", snap.Name).Msg("failed to delete snapshot")
			continue
		}
		removed++
	}

	logger.Info().Str("path", path).Int("removed", removed).Int("matched", len(matches)).Msg("deleted snapshots")
	return removed
}

// RenamePath rewrites every snapshot of oldPath to carry newPath. Names,
// timestamps and content are kept. Returns how many were rewritten.
func (s *Store) RenamePath(oldPath, newPath string) int {
	if oldPath == "" || newPath == "" {
		logger.Error().Str("oldPath", oldPath).Str("newPath", newPath).Msg("rename requested with empty path")
		return 0
	}
	if oldPath == newPath {
		return 0
	}

	matches := s.ListForPath(oldPath)
	renamed := 0
	for _, snap := range matches {
		if s.write(snap.WithPath(newPath)) {
			renamed++
		}
	}

	logger.Info().
		Str("oldPath", oldPath).
		Str("newPath", newPath).
		Int("renamed", renamed).
		Int("matched", len(matches)).
		Msg("renamed snapshots")
	return renamed
}

// FileSummary describes the history kept for one path
type FileSummary struct {
	Path   string    `json:"path"`
	Count  int       `json:"count"`
	Latest time.Time `json:"latest"`
}

// Files returns one summary per tracked path, sorted by path
func (s *Store) Files() []FileSummary {
	byPath := make(map[string]*FileSummary)
	for _, snap := range s.ListAll() {
		fs, ok := byPath[snap.FilePath]
		if !ok {
			fs = &FileSummary{Path: snap.FilePath}
			byPath[snap.FilePath] = fs
		}
		fs.Count++
		if snap.Timestamp.After(fs.Latest) {
			fs.Latest = snap.Timestamp
		}
	}

	out := make([]FileSummary, 0, len(byPath))
	for _, fs := range byPath {
		out = append(out, *fs)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Previous returns the snapshot of the same path captured just before snap
func (s *Store) Previous(snap snapshot.Snapshot) (snapshot.Snapshot, bool) {
	history := s.ListForPath(snap.FilePath)
	for i, h := range history {
		if h.Name == snap.Name {
			if i == 0 {
				return snapshot.Snapshot{}, false
			}
			return history[i-1], true
		}
	}
	return snapshot.Snapshot{}, false
}
