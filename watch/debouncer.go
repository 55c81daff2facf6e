package watch

import (
	"sync"
	"sync/atomic"
	"time"
)

// change is the raw filesystem change fed to the debouncer
type change int

const (
	changeCreate change = iota
	changeWrite
	changeRemove
)

// DefaultDebounceDelay is the quiet period after which a burst of writes to
// one path is handed on as a single change
const DefaultDebounceDelay = 150 * time.Millisecond

func (c change) String() string {
	switch c {
	case changeCreate:
		return "create"
	case changeWrite:
		return "write"
	case changeRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// debouncer coalesces bursts of changes per path. A path fires once its
// timer runs out with no new change; removals fire at once and cancel any
// pending change for the path.
type debouncer struct {
	mu       sync.Mutex
	pending  map[string]*pendingChange
	delay    time.Duration
	fire     func(path string, c change)
	stopping atomic.Bool
}

type pendingChange struct {
	timer  *time.Timer
	change change
}

func newDebouncer(delay time.Duration, fire func(path string, c change)) *debouncer {
	return &debouncer{
		pending: make(map[string]*pendingChange),
		delay:   delay,
		fire:    fire,
	}
}

// Queue records a change for path. It returns false once the debouncer is
// stopping.
func (d *debouncer) Queue(path string, c change) bool {
	if d.stopping.Load() {
		return false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	// re-check under the lock to avoid racing Stop
	if d.stopping.Load() {
		return false
	}

	if c == changeRemove {
		if p, ok := d.pending[path]; ok {
			p.timer.Stop()
			delete(d.pending, path)
		}
		go d.fire(path, changeRemove)
		return true
	}

	d.queueLocked(path, c)
	return true
}

// queueLocked starts a fresh timer for path. A timer that already fired may
// still be waiting on d.mu; it finds a different entry and does nothing, and
// its change carries over into the new entry.
func (d *debouncer) queueLocked(path string, c change) {
	if old, ok := d.pending[path]; ok {
		old.timer.Stop()
		// a create seen anywhere in the burst wins over writes
		if old.change == changeCreate {
			c = changeCreate
		}
	}

	p := &pendingChange{change: c}
	p.timer = time.AfterFunc(d.delay, func() { d.onTimer(path, p) })
	d.pending[path] = p
}

func (d *debouncer) onTimer(path string, p *pendingChange) {
	d.mu.Lock()
	current := d.pending[path] == p
	if current {
		delete(d.pending, path)
	}
	d.mu.Unlock()

	if current && !d.stopping.Load() {
		d.fire(path, p.change)
	}
}

// Stop drops pending changes and refuses new ones
func (d *debouncer) Stop() {
	d.stopping.Store(true)

	d.mu.Lock()
	defer d.mu.Unlock()

	for _, p := range d.pending {
		p.timer.Stop()
	}
	d.pending = make(map[string]*pendingChange)
}

// PendingCount returns the number of paths waiting to fire
func (d *debouncer) PendingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}
