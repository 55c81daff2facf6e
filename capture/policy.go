// Package capture decides when a file change becomes a snapshot.
package capture

import (
	"sync"
	"time"

	"github.com/xiaoyuanzhu-com/filehistory/log"
	"github.com/xiaoyuanzhu-com/filehistory/snapshot"
)

var logger = log.Component("capture")

// Sink receives the policy's hand-offs. Implementations must not block;
// store.Store satisfies it.
type Sink interface {
	Save(snap snapshot.Snapshot) bool
	ScheduleDelete(path string) bool
	ScheduleRename(oldPath, newPath string) bool
}

// Options configures a Policy
type Options struct {
	Interval time.Duration
	Clock    func() time.Time
}

// Policy turns normalized change events into snapshot saves and store
// maintenance. It is safe for concurrent use.
type Policy struct {
	sink     Sink
	interval time.Duration
	now      func() time.Time

	mu        sync.Mutex
	states    map[string]FileState
	lastStamp int64
}

// NewPolicy creates a policy handing off to sink
func NewPolicy(sink Sink, opts Options) *Policy {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Policy{
		sink:     sink,
		interval: opts.Interval,
		now:      opts.Clock,
		states:   make(map[string]FileState),
	}
}

// Handle dispatches a normalized event
func (p *Policy) Handle(ev Event) {
	switch ev.Kind {
	case Edited:
		p.Edited(ev.Doc)
	case Created:
		p.Created(ev.Doc)
	case Removed:
		p.Removed(ev.Path)
	case Renamed:
		p.Renamed(ev.OldPath, ev.Path)
	default:
		logger.Warn().Int("kind", int(ev.Kind)).Str("path", ev.Path).Msg("ignoring unknown event kind")
	}
}

// Edited evaluates an edit notification and captures when every gate passes
func (p *Policy) Edited(doc Document) Decision {
	if doc == nil {
		logger.Error().Err(ErrNoDocument).Str("event", Edited.String()).Msg("cannot capture")
		return Decision{}
	}
	path := doc.Path()

	// skip reading the document when the burst already captured
	p.mu.Lock()
	st := p.stateLocked(path)
	p.mu.Unlock()
	if st.BurstCaptured {
		logSuppressed(path, Edited, ReasonBurstCaptured)
		return Decision{Reason: ReasonBurstCaptured}
	}

	text, ok := readText(doc, Edited)
	if !ok {
		return Decision{}
	}
	lastLine := LastLineIndex(text)

	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	st = p.stateLocked(path)
	d := DecideEdit(st, lastLine, now, p.interval)
	if !d.Capture {
		logSuppressed(path, Edited, d.Reason)
		return d
	}

	if p.captureLocked(path, text, now) {
		p.states[path] = st.AfterCapture(lastLine, now)
	}
	return d
}

// Created captures unconditionally and re-arms the file's burst
func (p *Policy) Created(doc Document) Decision {
	if doc == nil {
		logger.Error().Err(ErrNoDocument).Str("event", Created.String()).Msg("cannot capture")
		return Decision{}
	}
	path := doc.Path()

	text, ok := readText(doc, Created)
	if !ok {
		return Decision{}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	st := p.stateLocked(path)
	d := DecideCreate(st)
	if p.captureLocked(path, text, now) {
		p.states[path] = st.AfterCapture(LastLineIndex(text), now).Rearmed()
	}
	return d
}

// Removed schedules deletion of the file's history and forgets its state
func (p *Policy) Removed(path string) {
	if path == "" {
		logger.Error().Str("event", Removed.String()).Msg("removed event without path")
		return
	}

	p.mu.Lock()
	delete(p.states, path)
	p.mu.Unlock()

	if p.sink.ScheduleDelete(path) {
		logger.Debug().Str("path", path).Msg("scheduled history delete")
	}
}

// Renamed schedules the history move and carries the file's state over
func (p *Policy) Renamed(oldPath, newPath string) {
	if oldPath == "" || newPath == "" {
		logger.Error().
			Str("event", Renamed.String()).
			Str("oldPath", oldPath).
			Str("newPath", newPath).
			Msg("renamed event without both paths")
		return
	}
	if oldPath == newPath {
		return
	}

	p.mu.Lock()
	if st, ok := p.states[oldPath]; ok {
		p.states[newPath] = st
		delete(p.states, oldPath)
	}
	p.mu.Unlock()

	if p.sink.ScheduleRename(oldPath, newPath) {
		logger.Debug().Str("oldPath", oldPath).Str("newPath", newPath).Msg("scheduled history rename")
	}
}

// EndBurst marks the end of a structural change so the next edit of path
// may capture again
func (p *Policy) EndBurst(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if st, ok := p.states[path]; ok {
		p.states[path] = st.Rearmed()
	}
}

// State returns the recorded state of path
func (p *Policy) State(path string) (FileState, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	st, ok := p.states[path]
	return st, ok
}

func (p *Policy) stateLocked(path string) FileState {
	if st, ok := p.states[path]; ok {
		return st
	}
	return NewFileState()
}

// captureLocked hands a new snapshot to the sink. Stamps are strictly
// increasing across the policy so names never collide.
func (p *Policy) captureLocked(path string, text []byte, now time.Time) bool {
	ms := now.UnixMilli()
	if ms <= p.lastStamp {
		ms = p.lastStamp + 1
	}
	p.lastStamp = ms

	snap := snapshot.New(path, text, time.UnixMilli(ms))
	if !p.sink.Save(snap) {
		logger.Warn().Str("path", path).Str("name", snap.Name).Msg("snapshot not accepted by store")
		return false
	}
	logger.Debug().Str("path", path).Str("name", snap.Name).Msg("captured snapshot")
	return true
}

func readText(doc Document, kind Kind) ([]byte, bool) {
	text, err := doc.Text()
	if err != nil {
		logger.Warn().Err(err).Str("path", doc.Path()).Str("event", kind.String()).Msg("document unavailable, skipping capture")
		return nil, false
	}
	return text, true
}

func logSuppressed(path string, kind Kind, reason Reason) {
	logger.Debug().
		Str("path", path).
		Str("event", kind.String()).
		Str("reason", string(reason)).
		Msg("capture suppressed")
}
