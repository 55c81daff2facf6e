package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xiaoyuanzhu-com/filehistory/diff"
	"github.com/xiaoyuanzhu-com/filehistory/snapshot"
	"github.com/xiaoyuanzhu-com/filehistory/store"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type fixture struct {
	store  *store.Store
	router *gin.Engine
	root   string
}

func newFixture(t *testing.T, snaps ...snapshot.Snapshot) *fixture {
	t.Helper()
	s := store.New(store.NewMemMedium(), store.Options{Workers: 1, QueueSize: 64})
	t.Cleanup(s.Close)
	for _, snap := range snaps {
		if !s.Save(snap) {
			t.Fatalf("Save(%s) was not accepted", snap.Name)
		}
	}
	s.Flush()

	root := t.TempDir()
	return &fixture{store: s, router: NewRouter(NewHandlers(s, root), true), root: root}
}

func (f *fixture) do(t *testing.T, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) ErrorCode {
	t.Helper()
	return decode[ErrorResponse](t, w).Error.Code
}

func at(ms int64) time.Time { return time.UnixMilli(ms) }

func TestListSnapshots(t *testing.T) {
	a1 := snapshot.New("/p/a.txt", []byte("one\n"), at(1000))
	a2 := snapshot.New("/p/a.txt", []byte("two\n"), at(2000))
	b1 := snapshot.New("/p/b.txt", []byte("bee\n"), at(1500))
	f := newFixture(t, a2, b1, a1)

	w := f.do(t, http.MethodGet, "/api/snapshots")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	all := decode[ListResponse[SnapshotMeta]](t, w)
	if all.Total != 3 || len(all.Data) != 3 {
		t.Fatalf("got %d snapshots, want 3", all.Total)
	}
	if strings.Contains(w.Body.String(), "content") {
		t.Error("list response should not carry content")
	}

	w = f.do(t, http.MethodGet, "/api/snapshots?path="+url.QueryEscape("/p/a.txt"))
	only := decode[ListResponse[SnapshotMeta]](t, w)
	if len(only.Data) != 2 || only.Data[0].Name != a1.Name || only.Data[1].Name != a2.Name {
		t.Fatalf("path listing = %+v", only.Data)
	}
	if only.Data[0].Size != 4 || only.Data[0].SHA256 != snapshot.Checksum([]byte("one\n")) {
		t.Errorf("meta = %+v", only.Data[0])
	}
}

func TestListSnapshots_EmptyIsArray(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/api/snapshots?path=/nothing")
	if got := strings.TrimSpace(w.Body.String()); got != `{"data":[],"total":0}` {
		t.Errorf("body = %s", got)
	}
}

func TestGetSnapshot(t *testing.T) {
	s := snapshot.New("/p/a.txt", []byte("hello\nworld\n"), at(1000))
	f := newFixture(t, s)

	w := f.do(t, http.MethodGet, "/api/snapshots/"+url.PathEscape(s.Name))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	got := decode[DataResponse[SnapshotDetail]](t, w).Data
	if got.Content != "hello\nworld\n" || got.FilePath != "/p/a.txt" || got.Millis != 1000 {
		t.Errorf("detail = %+v", got)
	}

	w = f.do(t, http.MethodGet, "/api/snapshots/missing-1")
	if w.Code != http.StatusNotFound || errorCode(t, w) != ErrCodeNotFound {
		t.Errorf("missing: status = %d body = %s", w.Code, w.Body.String())
	}
}

func TestDiffSnapshots(t *testing.T) {
	oldSnap := snapshot.New("/p/a.txt", []byte("a\nb\nc\n"), at(1000))
	newSnap := snapshot.New("/p/a.txt", []byte("a\nB\nc\nd\n"), at(2000))
	f := newFixture(t, oldSnap, newSnap)

	target := "/api/diff?old=" + url.QueryEscape(oldSnap.Name) + "&new=" + url.QueryEscape(newSnap.Name) + "&unified=1"
	w := f.do(t, http.MethodGet, target)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	var body struct {
		Data struct {
			Old   *SnapshotMeta `json:"old"`
			Hunks []struct {
				Kind     string `json:"kind"`
				OldStart int    `json:"oldStart"`
				NewStart int    `json:"newStart"`
			} `json:"hunks"`
			Rows    []json.RawMessage `json:"rows"`
			Stats   diff.Stats        `json:"stats"`
			Unified string            `json:"unified"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	d := body.Data
	if d.Old == nil || d.Old.Name != oldSnap.Name {
		t.Fatalf("old = %+v", d.Old)
	}
	if len(d.Hunks) != 2 || d.Hunks[0].Kind != "replace" || d.Hunks[1].Kind != "insert" {
		t.Errorf("hunks = %+v", d.Hunks)
	}
	if len(d.Rows) != 4 {
		t.Errorf("rows = %d, want 4", len(d.Rows))
	}
	if d.Stats != (diff.Stats{Added: 2, Removed: 1}) {
		t.Errorf("stats = %+v", d.Stats)
	}
	if !strings.Contains(d.Unified, "-b\n") || !strings.Contains(d.Unified, "+B\n") {
		t.Errorf("unified = %q", d.Unified)
	}
}

func TestDiffSnapshots_Errors(t *testing.T) {
	s := snapshot.New("/p/a.txt", []byte("x\n"), at(1000))
	f := newFixture(t, s)

	tests := []struct {
		name   string
		target string
		status int
		code   ErrorCode
	}{
		{"missing params", "/api/diff?old=" + s.Name, http.StatusBadRequest, ErrCodeBadRequest},
		{"unknown old", "/api/diff?old=nope-1&new=" + s.Name, http.StatusNotFound, ErrCodeNotFound},
		{"unknown new", "/api/diff?old=" + s.Name + "&new=nope-1", http.StatusNotFound, ErrCodeNotFound},
		{"bad context", "/api/diff?old=" + s.Name + "&new=" + s.Name + "&unified=x", http.StatusBadRequest, ErrCodeBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, http.MethodGet, tt.target)
			if w.Code != tt.status || errorCode(t, w) != tt.code {
				t.Errorf("status = %d body = %s", w.Code, w.Body.String())
			}
		})
	}
}

func TestDiffSnapshots_IdenticalHasNoHunks(t *testing.T) {
	s := snapshot.New("/p/a.txt", []byte("same\n"), at(1000))
	f := newFixture(t, s)

	w := f.do(t, http.MethodGet, "/api/diff?old="+s.Name+"&new="+s.Name)
	if !strings.Contains(w.Body.String(), `"hunks":[]`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestCompareWithPrevious(t *testing.T) {
	first := snapshot.New("/p/a.txt", []byte("one\n"), at(1000))
	second := snapshot.New("/p/a.txt", []byte("one\ntwo\n"), at(2000))
	f := newFixture(t, first, second)

	w := f.do(t, http.MethodGet, "/api/snapshots/"+second.Name+"/previous")
	got := decode[DataResponse[DiffResult]](t, w).Data
	if got.Old == nil || got.Old.Name != first.Name {
		t.Fatalf("old = %+v", got.Old)
	}
	if got.Stats != (diff.Stats{Added: 1}) {
		t.Errorf("stats = %+v", got.Stats)
	}

	// The earliest snapshot diffs against nothing.
	w = f.do(t, http.MethodGet, "/api/snapshots/"+first.Name+"/previous")
	if !strings.Contains(w.Body.String(), `"old":null`) {
		t.Errorf("body = %s", w.Body.String())
	}
	got = decode[DataResponse[DiffResult]](t, w).Data
	if len(got.Hunks) != 1 || got.Stats != (diff.Stats{Added: 1}) {
		t.Errorf("hunks = %+v stats = %+v", got.Hunks, got.Stats)
	}
}

func TestListFiles(t *testing.T) {
	f := newFixture(t,
		snapshot.New("/p/a.txt", []byte("1"), at(1000)),
		snapshot.New("/p/a.txt", []byte("2"), at(3000)),
		snapshot.New("/p/b.txt", []byte("1"), at(2000)),
	)

	w := f.do(t, http.MethodGet, "/api/files")
	files := decode[ListResponse[store.FileSummary]](t, w).Data
	if len(files) != 2 {
		t.Fatalf("files = %+v", files)
	}
	counts := map[string]int{}
	for _, fs := range files {
		counts[fs.Path] = fs.Count
	}
	if counts["/p/a.txt"] != 2 || counts["/p/b.txt"] != 1 {
		t.Errorf("counts = %v", counts)
	}
}

func TestDeleteSnapshots(t *testing.T) {
	f := newFixture(t,
		snapshot.New("/p/a.txt", []byte("1"), at(1000)),
		snapshot.New("/p/a.txt", []byte("2"), at(2000)),
		snapshot.New("/p/b.txt", []byte("1"), at(1500)),
	)

	w := f.do(t, http.MethodDelete, "/api/snapshots")
	if w.Code != http.StatusBadRequest {
		t.Errorf("no path: status = %d", w.Code)
	}

	w = f.do(t, http.MethodDelete, "/api/snapshots?path="+url.QueryEscape("/p/a.txt"))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		Data struct {
			Removed int `json:"removed"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Data.Removed != 2 {
		t.Errorf("removed = %d, want 2", body.Data.Removed)
	}
	if left := f.store.ListAll(); len(left) != 1 || left[0].FilePath != "/p/b.txt" {
		t.Errorf("remaining = %+v", left)
	}
}

func TestRestoreSnapshot(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "notes.txt")
	if err := os.WriteFile(path, []byte("current\n"), 0600); err != nil {
		t.Fatal(err)
	}

	s := snapshot.New(path, []byte("restored\n"), at(1000))
	st := store.New(store.NewMemMedium(), store.Options{Workers: 1, QueueSize: 8})
	t.Cleanup(st.Close)
	st.Save(s)
	st.Flush()
	router := NewRouter(NewHandlers(st, root), true)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/snapshots/"+url.PathEscape(s.Name)+"/restore", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "restored\n" {
		t.Errorf("file = %q", got)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}

	entries, _ := os.ReadDir(root)
	if len(entries) != 1 {
		t.Errorf("leftover files: %v", entries)
	}
}

func TestRestoreSnapshot_OutsideRoot(t *testing.T) {
	outside := filepath.Join(t.TempDir(), "elsewhere.txt")
	s := snapshot.New(outside, []byte("x"), at(1000))
	f := newFixture(t, s)

	w := f.do(t, http.MethodPost, "/api/snapshots/"+url.PathEscape(s.Name)+"/restore")
	if w.Code != http.StatusForbidden || errorCode(t, w) != ErrCodeForbidden {
		t.Errorf("status = %d body = %s", w.Code, w.Body.String())
	}
	if _, err := os.Stat(outside); !os.IsNotExist(err) {
		t.Errorf("file was written outside root: %v", err)
	}

	w = f.do(t, http.MethodPost, "/api/snapshots/nope-1/restore")
	if w.Code != http.StatusNotFound {
		t.Errorf("missing: status = %d", w.Code)
	}
}

func TestInsideRoot(t *testing.T) {
	h := NewHandlers(nil, "/srv/project")
	tests := []struct {
		path string
		want bool
	}{
		{"/srv/project/a.txt", true},
		{"/srv/project/sub/b.txt", true},
		{"/srv/project/../other/a.txt", false},
		{"/srv/projectx/a.txt", false},
		{"/etc/passwd", false},
		{"relative.txt", false},
	}
	for _, tt := range tests {
		if got := h.insideRoot(tt.path); got != tt.want {
			t.Errorf("insideRoot(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}

	if !NewHandlers(nil, "").insideRoot("/anywhere") {
		t.Error("empty root should allow any path")
	}
}

func TestRestoreSnapshot_SymlinkedDirOutsideRoot(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	link := filepath.Join(root, "linked")
	if err := os.Symlink(outside, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	s := snapshot.New(filepath.Join(link, "escape.txt"), []byte("x"), at(1000))
	st := store.New(store.NewMemMedium(), store.Options{Workers: 1, QueueSize: 8})
	t.Cleanup(st.Close)
	st.Save(s)
	st.Flush()
	router := NewRouter(NewHandlers(st, root), true)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/snapshots/"+url.PathEscape(s.Name)+"/restore", nil))
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d body = %s", w.Code, w.Body.String())
	}
	if _, err := os.Stat(filepath.Join(outside, "escape.txt")); !os.IsNotExist(err) {
		t.Errorf("file was written through the symlink: %v", err)
	}
}

func TestInsideRoot_ResolvesSymlinkedRoot(t *testing.T) {
	actual := t.TempDir()
	alias := filepath.Join(t.TempDir(), "alias")
	if err := os.Symlink(actual, alias); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	h := NewHandlers(nil, alias)
	if !h.insideRoot(filepath.Join(actual, "a.txt")) {
		t.Error("path under the resolved root should be inside")
	}
	if !h.insideRoot(filepath.Join(alias, "new", "b.txt")) {
		t.Error("not-yet-existing path under the root should be inside")
	}
}
