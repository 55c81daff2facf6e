package watch

import "testing"

func TestPathFilter_Default(t *testing.T) {
	f := DefaultPathFilter("snapshots")

	tests := []struct {
		path string
		want bool
	}{
		{"main.go", false},
		{"docs/readme.md", false},
		{"snapshots/a.txt-1.snapshot", true},
		{"docs/snapshots/notes.md", false},
		{".git/HEAD", true},
		{"src/.hidden", true},
		{".idea/workspace.xml", true},
		{"node_modules/x/index.js", true},
		{"build/out.txt", true},
		{"main.go~", true},
		{".main.go.swp", true},
		{"notes.txt.swp", true},
		{"#draft.md#", true},
		{"a/b/c.o", true},
		{"images/logo.png", true},
		{".DS_Store", true},
		{"Thumbs.db", true},
		{"../outside.txt", true},
	}

	for _, tt := range tests {
		if got := f.IsExcluded(tt.path); got != tt.want {
			t.Errorf("IsExcluded(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestPathFilter_ReservedNormalization(t *testing.T) {
	f := NewPathFilter(CategoryReserved, "./History/deep/", "../elsewhere", "")

	if !f.IsExcluded("history/x") {
		t.Error("reserved match should be case-insensitive on the first component")
	}
	if f.IsExcluded("elsewhere/x") {
		t.Error("reserved names outside the root should be ignored")
	}
	if f.IsExcluded(".git/config") {
		t.Error("only reserved category enabled")
	}
}

func TestPathFilter_None(t *testing.T) {
	f := NewPathFilter(ExcludeNone, "snapshots")
	if f.IsExcluded(".git/HEAD") || f.IsExcluded("snapshots/x") {
		t.Error("ExcludeNone should exclude nothing inside the root")
	}
}
