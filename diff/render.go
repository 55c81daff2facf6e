package diff

import (
	"github.com/pmezard/go-difflib/difflib"
)

// Row is one line of a side-by-side view. A side whose input is shorter
// than the other renders blank (Present false). Marks are zero when the
// line is unchanged.
type Row struct {
	Old        string `json:"old"`
	New        string `json:"new"`
	OldPresent bool   `json:"oldPresent"`
	NewPresent bool   `json:"newPresent"`
	OldMark    Kind   `json:"oldMark,omitempty"`
	NewMark    Kind   `json:"newMark,omitempty"`
}

// SideBySide pairs lines by index up to the longer input and applies each
// hunk's highlight at its declared start/count: inserts on the new side,
// deletes on the old side, replacements on both. Highlights are positional
// and are not realigned to the pairing.
func SideBySide(oldLines, newLines []string, hunks []Hunk) []Row {
	n := max(len(oldLines), len(newLines))
	rows := make([]Row, n)
	for i := range rows {
		if i < len(oldLines) {
			rows[i].Old = oldLines[i]
			rows[i].OldPresent = true
		}
		if i < len(newLines) {
			rows[i].New = newLines[i]
			rows[i].NewPresent = true
		}
	}

	for _, h := range hunks {
		if h.Kind == Delete || h.Kind == Replace {
			for i := h.OldStart; i < h.OldStart+h.OldCount && i < n; i++ {
				rows[i].OldMark = h.Kind
			}
		}
		if h.Kind == Insert || h.Kind == Replace {
			for i := h.NewStart; i < h.NewStart+h.NewCount && i < n; i++ {
				rows[i].NewMark = h.Kind
			}
		}
	}
	return rows
}

// Unified renders a unified diff with the given number of context lines
func Unified(oldName, newName string, oldLines, newLines []string, context int) (string, error) {
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        withNewlines(oldLines),
		B:        withNewlines(newLines),
		FromFile: oldName,
		ToFile:   newName,
		Context:  context,
	})
}

func withNewlines(lines []string) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l + "\n"
	}
	return out
}
