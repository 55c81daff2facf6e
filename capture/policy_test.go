package capture

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/xiaoyuanzhu-com/filehistory/diff"
	"github.com/xiaoyuanzhu-com/filehistory/snapshot"
)

type recordingSink struct {
	mu      sync.Mutex
	saves   []snapshot.Snapshot
	deletes []string
	renames [][2]string
	reject  bool
}

func (r *recordingSink) Save(s snapshot.Snapshot) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reject {
		return false
	}
	r.saves = append(r.saves, s)
	return true
}

func (r *recordingSink) ScheduleDelete(path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deletes = append(r.deletes, path)
	return true
}

func (r *recordingSink) ScheduleRename(oldPath, newPath string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.renames = append(r.renames, [2]string{oldPath, newPath})
	return true
}

func (r *recordingSink) saveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.saves)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.UnixMilli(1700000000000)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestPolicy() (*Policy, *recordingSink, *fakeClock) {
	sink := &recordingSink{}
	clock := newFakeClock()
	return NewPolicy(sink, Options{Clock: clock.Now}), sink, clock
}

func doc(path, text string) TextDocument {
	return TextDocument{FilePath: path, Content: []byte(text)}
}

type brokenDoc struct{ path string }

func (b brokenDoc) Path() string          { return b.path }
func (b brokenDoc) Text() ([]byte, error) { return nil, errors.New("buffer gone") }

func TestDecideEdit(t *testing.T) {
	base := time.UnixMilli(10_000)
	captured := NewFileState().AfterCapture(3, base).Rearmed()

	tests := []struct {
		name     string
		st       FileState
		lastLine int
		now      time.Time
		want     Decision
	}{
		{"first capture", NewFileState(), 0, base, Decision{true, ReasonFirstCapture}},
		{"burst already captured", NewFileState().AfterCapture(3, base), 9, base.Add(time.Hour), Decision{false, ReasonBurstCaptured}},
		{"same last line", captured, 3, base.Add(time.Hour), Decision{false, ReasonNoLineChange}},
		{"inside interval", captured, 4, base.Add(999 * time.Millisecond), Decision{false, ReasonDebounced}},
		{"interval boundary", captured, 4, base.Add(time.Second), Decision{true, ReasonLineChanged}},
		{"line changed after interval", captured, 1, base.Add(5 * time.Second), Decision{true, ReasonLineChanged}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DecideEdit(tt.st, tt.lastLine, tt.now, DefaultInterval); got != tt.want {
				t.Errorf("DecideEdit() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestLastLineIndex(t *testing.T) {
	tests := map[string]int{
		"":       0,
		"x":      0,
		"x\n":    1,
		"x\ny\n": 2,
		"x\ny":   1,
		"\n\n\n": 3,
		"a\r\nb": 1,
	}
	for in, want := range tests {
		if got := LastLineIndex([]byte(in)); got != want {
			t.Errorf("LastLineIndex(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestEdited_IdempotentDebounce(t *testing.T) {
	p, sink, clock := newTestPolicy()

	for i := 0; i < 20; i++ {
		p.Edited(doc("/p/a.txt", "same\n"))
		p.EndBurst("/p/a.txt")
		clock.Advance(40 * time.Millisecond)
	}

	if n := sink.saveCount(); n != 1 {
		t.Errorf("expected exactly 1 snapshot, got %d", n)
	}
}

func TestEdited_SingleCapturePerBurst(t *testing.T) {
	p, sink, clock := newTestPolicy()

	p.Edited(doc("/p/a.txt", "a\n"))
	clock.Advance(5 * time.Second)
	d := p.Edited(doc("/p/a.txt", "a\nb\nc\n"))
	if d.Capture || d.Reason != ReasonBurstCaptured {
		t.Errorf("second edit in burst: %+v", d)
	}

	p.EndBurst("/p/a.txt")
	d = p.Edited(doc("/p/a.txt", "a\nb\nc\n"))
	if !d.Capture || d.Reason != ReasonLineChanged {
		t.Errorf("edit after re-arm: %+v", d)
	}
	if n := sink.saveCount(); n != 2 {
		t.Errorf("expected 2 snapshots, got %d", n)
	}
}

func TestEdited_DebounceWindow(t *testing.T) {
	p, sink, clock := newTestPolicy()

	p.Edited(doc("/p/a.txt", "a\n"))
	p.EndBurst("/p/a.txt")

	clock.Advance(500 * time.Millisecond)
	if d := p.Edited(doc("/p/a.txt", "a\nb\n")); d.Reason != ReasonDebounced {
		t.Errorf("expected debounce, got %+v", d)
	}

	clock.Advance(500 * time.Millisecond)
	if d := p.Edited(doc("/p/a.txt", "a\nb\n")); !d.Capture {
		t.Errorf("expected capture once interval elapsed, got %+v", d)
	}
	if n := sink.saveCount(); n != 2 {
		t.Errorf("expected 2 snapshots, got %d", n)
	}
}

func TestExampleScenario(t *testing.T) {
	p, sink, clock := newTestPolicy()
	t0 := clock.Now()

	p.Edited(doc("a.txt", "x\n"))
	p.EndBurst("a.txt")
	clock.Advance(2000 * time.Millisecond)
	p.Edited(doc("a.txt", "x\ny\n"))

	if len(sink.saves) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(sink.saves))
	}
	s1, s2 := sink.saves[0], sink.saves[1]
	if s1.Text() != "x\n" || s2.Text() != "x\ny\n" {
		t.Errorf("unexpected contents %q, %q", s1.Text(), s2.Text())
	}
	if s1.Millis() != t0.UnixMilli() || s2.Millis() != t0.UnixMilli()+2000 {
		t.Errorf("unexpected timestamps %d, %d", s1.Millis(), s2.Millis())
	}
	if s1.Name != fmt.Sprintf("a.txt-%d", t0.UnixMilli()) {
		t.Errorf("unexpected name %q", s1.Name)
	}

	hunks := diff.Compute(diff.SplitLines(s1.Text()), diff.SplitLines(s2.Text()))
	if len(hunks) != 1 || hunks[0].Kind != diff.Insert || hunks[0].NewStart != 1 || hunks[0].NewCount != 1 {
		t.Errorf("unexpected hunks %+v", hunks)
	}
}

func TestCreated_AlwaysCapturesAndRearms(t *testing.T) {
	p, sink, _ := newTestPolicy()

	p.Edited(doc("/p/a.txt", "a\n"))
	if d := p.Created(doc("/p/a.txt", "a\n")); !d.Capture || d.Reason != ReasonCreated {
		t.Errorf("Created decision %+v", d)
	}
	if n := sink.saveCount(); n != 2 {
		t.Fatalf("expected 2 snapshots, got %d", n)
	}

	st, ok := p.State("/p/a.txt")
	if !ok || st.BurstCaptured || !st.Captured || st.LastLine != 1 {
		t.Errorf("state after create: %+v", st)
	}
	if sink.saves[0].Name == sink.saves[1].Name {
		t.Errorf("captures at the same instant share a name: %s", sink.saves[0].Name)
	}
	if sink.saves[1].Millis() <= sink.saves[0].Millis() {
		t.Error("timestamps are not strictly increasing")
	}
}

func TestRemovedAndRenamed(t *testing.T) {
	p, sink, _ := newTestPolicy()

	p.Edited(doc("/p/a.txt", "a\n"))
	p.Renamed("/p/a.txt", "/p/b.txt")

	if len(sink.renames) != 1 || sink.renames[0] != [2]string{"/p/a.txt", "/p/b.txt"} {
		t.Errorf("renames = %v", sink.renames)
	}
	if _, ok := p.State("/p/a.txt"); ok {
		t.Error("state stayed under the old path")
	}
	if st, ok := p.State("/p/b.txt"); !ok || !st.Captured {
		t.Errorf("state not carried to new path: %+v", st)
	}

	p.Handle(Event{Kind: Removed, Path: "/p/b.txt"})
	if len(sink.deletes) != 1 || sink.deletes[0] != "/p/b.txt" {
		t.Errorf("deletes = %v", sink.deletes)
	}
	if _, ok := p.State("/p/b.txt"); ok {
		t.Error("state survived removal")
	}
	if n := sink.saveCount(); n != 1 {
		t.Errorf("remove or rename created a snapshot: %d saves", n)
	}

	p.Renamed("/p/x", "/p/x")
	p.Renamed("", "/p/x")
	p.Removed("")
	if len(sink.renames) != 1 || len(sink.deletes) != 1 {
		t.Error("invalid events reached the sink")
	}
}

func TestSoftFailures(t *testing.T) {
	p, sink, _ := newTestPolicy()

	p.Edited(nil)
	p.Created(nil)
	p.Handle(Event{Kind: Edited, Doc: brokenDoc{"/p/a.txt"}})
	p.Handle(Event{Kind: Created, Doc: brokenDoc{"/p/a.txt"}})
	p.Handle(Event{Kind: Kind(42), Path: "/p/a.txt"})

	if n := sink.saveCount(); n != 0 {
		t.Errorf("expected no snapshots, got %d", n)
	}
	if _, ok := p.State("/p/a.txt"); ok {
		t.Error("failed reads should not record state")
	}
}

func TestRejectedSaveDoesNotAdvanceState(t *testing.T) {
	p, sink, _ := newTestPolicy()
	sink.reject = true

	p.Edited(doc("/p/a.txt", "a\n"))
	if _, ok := p.State("/p/a.txt"); ok {
		t.Error("state recorded for a capture the store dropped")
	}

	sink.reject = false
	if d := p.Edited(doc("/p/a.txt", "a\n")); !d.Capture || d.Reason != ReasonFirstCapture {
		t.Errorf("retry after drop: %+v", d)
	}
}

func TestPolicy_ConcurrentFiles(t *testing.T) {
	p, sink, _ := newTestPolicy()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			path := fmt.Sprintf("/p/f%d.txt", i)
			for j := 0; j < 50; j++ {
				p.Edited(doc(path, "x\n"))
				p.EndBurst(path)
			}
		}(i)
	}
	wg.Wait()

	if n := sink.saveCount(); n != 16 {
		t.Errorf("expected one snapshot per file, got %d", n)
	}
	seen := make(map[string]bool)
	for _, s := range sink.saves {
		if seen[s.Name] {
			t.Errorf("duplicate snapshot name %s", s.Name)
		}
		seen[s.Name] = true
	}
}

func TestKindString(t *testing.T) {
	if Renamed.String() != "renamed" || Kind(0).String() != "unknown" {
		t.Error("unexpected kind names")
	}
}
