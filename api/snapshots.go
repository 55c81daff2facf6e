package api

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/xiaoyuanzhu-com/filehistory/diff"
	"github.com/xiaoyuanzhu-com/filehistory/log"
	"github.com/xiaoyuanzhu-com/filehistory/snapshot"
)

// SnapshotMeta describes a snapshot without its content
type SnapshotMeta struct {
	Name      string    `json:"name"`
	FilePath  string    `json:"filePath"`
	Timestamp time.Time `json:"timestamp"`
	Millis    int64     `json:"millis"`
	Size      int       `json:"size"`
	SHA256    string    `json:"sha256"`
}

// SnapshotDetail is a snapshot with its content as text
type SnapshotDetail struct {
	SnapshotMeta
	Content string `json:"content"`
}

// DiffResult compares two snapshots. Old is nil when the new side is the
// first version of its file.
type DiffResult struct {
	Old     *SnapshotMeta `json:"old"`
	New     SnapshotMeta  `json:"new"`
	Hunks   []diff.Hunk   `json:"hunks"`
	Rows    []diff.Row    `json:"rows"`
	Stats   diff.Stats    `json:"stats"`
	Unified string        `json:"unified,omitempty"`
}

func metaOf(s snapshot.Snapshot) SnapshotMeta {
	return SnapshotMeta{
		Name:      s.Name,
		FilePath:  s.FilePath,
		Timestamp: s.Timestamp.UTC(),
		Millis:    s.Millis(),
		Size:      len(s.Content),
		SHA256:    snapshot.Checksum(s.Content),
	}
}

// ListSnapshots handles GET /api/snapshots?path=
func (h *Handlers) ListSnapshots(c *gin.Context) {
	var snaps []snapshot.Snapshot
	if path := c.Query("path"); path != "" {
		snaps = h.history.ListForPath(path)
	} else {
		snaps = h.history.ListAll()
	}

	out := make([]SnapshotMeta, len(snaps))
	for i, s := range snaps {
		out[i] = metaOf(s)
	}
	RespondList(c, out)
}

// GetSnapshot handles GET /api/snapshots/:name
func (h *Handlers) GetSnapshot(c *gin.Context) {
	snap, ok := h.history.Get(c.Param("name"))
	if !ok {
		RespondNotFound(c, "Snapshot not found")
		return
	}
	RespondData(c, SnapshotDetail{SnapshotMeta: metaOf(snap), Content: snap.Text()})
}

// DiffSnapshots handles GET /api/diff?old=&new=
func (h *Handlers) DiffSnapshots(c *gin.Context) {
	oldName, newName := c.Query("old"), c.Query("new")
	if oldName == "" || newName == "" {
		RespondBadRequest(c, "Both old and new snapshot names are required")
		return
	}

	oldSnap, ok := h.history.Get(oldName)
	if !ok {
		RespondNotFound(c, "Snapshot not found: "+oldName)
		return
	}
	newSnap, ok := h.history.Get(newName)
	if !ok {
		RespondNotFound(c, "Snapshot not found: "+newName)
		return
	}

	res, err := compare(&oldSnap, newSnap, c)
	if err != nil {
		RespondBadRequest(c, err.Error())
		return
	}
	RespondData(c, res)
}

// CompareWithPrevious handles GET /api/snapshots/:name/previous
func (h *Handlers) CompareWithPrevious(c *gin.Context) {
	snap, ok := h.history.Get(c.Param("name"))
	if !ok {
		RespondNotFound(c, "Snapshot not found")
		return
	}

	var base *snapshot.Snapshot
	if prev, ok := h.history.Previous(snap); ok {
		base = &prev
	}

	res, err := compare(base, snap, c)
	if err != nil {
		RespondBadRequest(c, err.Error())
		return
	}
	RespondData(c, res)
}

// compare diffs base (nil for none) against snap. ?unified=N adds a unified
// diff with N context lines.
func compare(base *snapshot.Snapshot, snap snapshot.Snapshot, c *gin.Context) (DiffResult, error) {
	var oldLines []string
	res := DiffResult{New: metaOf(snap)}
	if base != nil {
		m := metaOf(*base)
		res.Old = &m
		oldLines = diff.SplitLines(base.Text())
	} else {
		oldLines = []string{}
	}
	newLines := diff.SplitLines(snap.Text())

	res.Hunks = diff.Compute(oldLines, newLines)
	if res.Hunks == nil {
		res.Hunks = []diff.Hunk{}
	}
	res.Rows = diff.SideBySide(oldLines, newLines, res.Hunks)
	res.Stats = diff.Summarize(res.Hunks)

	if raw := c.Query("unified"); raw != "" {
		context, err := strconv.Atoi(raw)
		if err != nil || context < 0 {
			return DiffResult{}, fmt.Errorf("invalid unified context %q", raw)
		}
		oldName := "/dev/null"
		if base != nil {
			oldName = base.Name
		}
		text, err := diff.Unified(oldName, snap.Name, oldLines, newLines, context)
		if err != nil {
			return DiffResult{}, err
		}
		res.Unified = text
	}
	return res, nil
}

// ListFiles handles GET /api/files
func (h *Handlers) ListFiles(c *gin.Context) {
	RespondList(c, h.history.Files())
}

// DeleteSnapshots handles DELETE /api/snapshots?path=
func (h *Handlers) DeleteSnapshots(c *gin.Context) {
	path := c.Query("path")
	if path == "" {
		RespondBadRequest(c, "path is required")
		return
	}

	removed := h.history.DeleteForPath(path)
	log.Info().Str("path", path).Int("removed", removed).Msg("history deleted via api")
	RespondData(c, gin.H{"path": path, "removed": removed})
}

// RestoreSnapshot handles POST /api/snapshots/:name/restore. The file at
// the snapshot's path is replaced with the snapshot content.
func (h *Handlers) RestoreSnapshot(c *gin.Context) {
	snap, ok := h.history.Get(c.Param("name"))
	if !ok {
		RespondNotFound(c, "Snapshot not found")
		return
	}

	if !h.insideRoot(snap.FilePath) {
		RespondForbidden(c, "Snapshot path is outside the project root")
		return
	}

	if err := replaceFile(snap.FilePath, snap.Content); err != nil {
		log.Error().Err(err).Str("name", snap.Name).Str("path", snap.FilePath).Msg("restore failed")
		RespondInternalError(c, "Failed to restore snapshot")
		return
	}

	log.Info().Str("name", snap.Name).Str("path", snap.FilePath).Msg("snapshot restored")
	RespondData(c, metaOf(snap))
}

// insideRoot reports whether path lies under the handlers' root once
// symlinked directories on both sides are resolved
func (h *Handlers) insideRoot(path string) bool {
	if h.root == "" {
		return true
	}
	if !filepath.IsAbs(path) {
		return false
	}

	root := resolvePath(h.root)
	target := filepath.Join(resolvePath(filepath.Dir(path)), filepath.Base(path))
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// resolvePath evaluates symlinks in the longest existing prefix of path and
// appends the components that do not exist yet
func resolvePath(path string) string {
	path = filepath.Clean(path)
	rest := ""
	for dir := path; ; {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			return filepath.Join(resolved, rest)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return path
		}
		rest = filepath.Join(filepath.Base(dir), rest)
		dir = parent
	}
}

// replaceFile swaps in new content through a temp file in the same
// directory, keeping the existing file mode
func replaceFile(path string, content []byte) error {
	mode := os.FileMode(0644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmpPath := filepath.Join(dir, "."+uuid.NewString()+".tmp")
	if err := os.WriteFile(tmpPath, content, mode); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
