package watch

import (
	"path/filepath"
	"sync"
	"time"
)

// DefaultMoveTTL is how long a RENAME waits for the CREATE that completes a
// move before it is treated as a removal
const DefaultMoveTTL = 500 * time.Millisecond

// moveDetector pairs the RENAME(old) and CREATE(new) events that fsnotify
// emits for a move. A rename nobody claims within the TTL is handed to
// onExpire.
type moveDetector struct {
	mu       sync.Mutex
	renames  map[string]*pendingRename
	ttl      time.Duration
	onExpire func(oldPath string)
	now      func() time.Time
}

type pendingRename struct {
	at       time.Time
	baseName string
	dir      string
	size     int64 // 0 if unknown
	timer    *time.Timer
}

func newMoveDetector(ttl time.Duration, onExpire func(oldPath string)) *moveDetector {
	return &moveDetector{
		renames:  make(map[string]*pendingRename),
		ttl:      ttl,
		onExpire: onExpire,
		now:      time.Now,
	}
}

// TrackRename remembers that oldPath disappeared by rename. size is the last
// known size of the file, 0 if unknown.
func (m *moveDetector) TrackRename(oldPath string, size int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if prev, ok := m.renames[oldPath]; ok {
		prev.timer.Stop()
	}

	pr := &pendingRename{
		at:       m.now(),
		baseName: filepath.Base(oldPath),
		dir:      filepath.Dir(oldPath),
		size:     size,
	}
	pr.timer = time.AfterFunc(m.ttl, func() { m.expire(oldPath, pr) })
	m.renames[oldPath] = pr
}

func (m *moveDetector) expire(oldPath string, pr *pendingRename) {
	m.mu.Lock()
	cur, ok := m.renames[oldPath]
	if ok && cur == pr {
		delete(m.renames, oldPath)
	}
	m.mu.Unlock()

	if ok && cur == pr && m.onExpire != nil {
		m.onExpire(oldPath)
	}
}

// CheckMove reports whether newPath completes a tracked rename. A candidate
// matches when it has the same base name (sizes must agree when both are
// known), or failing that when it sits in the same directory with the same
// known size. The most recent candidate wins.
func (m *moveDetector) CheckMove(newPath string, newSize int64) (oldPath string, isMove bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	base := filepath.Base(newPath)
	dir := filepath.Dir(newPath)
	now := m.now()

	var byName, bySize string
	var byNameAt, bySizeAt time.Time

	for old, pr := range m.renames {
		if old == newPath || now.Sub(pr.at) > m.ttl {
			continue
		}
		sizeKnown := pr.size > 0 && newSize > 0

		if pr.baseName == base {
			if sizeKnown && pr.size != newSize {
				continue
			}
			if byName == "" || pr.at.After(byNameAt) {
				byName, byNameAt = old, pr.at
			}
			continue
		}

		if pr.dir == dir && sizeKnown && pr.size == newSize {
			if bySize == "" || pr.at.After(bySizeAt) {
				bySize, bySizeAt = old, pr.at
			}
		}
	}

	match := byName
	if match == "" {
		match = bySize
	}
	if match == "" {
		return "", false
	}

	m.renames[match].timer.Stop()
	delete(m.renames, match)
	return match, true
}

// Clear drops every tracked rename without firing onExpire
func (m *moveDetector) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, pr := range m.renames {
		pr.timer.Stop()
	}
	m.renames = make(map[string]*pendingRename)
}

// PendingCount returns the number of tracked renames
func (m *moveDetector) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.renames)
}
