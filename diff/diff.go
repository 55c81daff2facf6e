// Package diff computes line-level edit scripts between two texts.
package diff

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Kind classifies a hunk
type Kind int

const (
	// Insert hunks have OldCount == 0 and highlight only the new side
	Insert Kind = iota + 1
	// Delete hunks have NewCount == 0 and highlight only the old side
	Delete
	// Replace hunks highlight both sides at their own positions
	Replace
)

// String returns the string representation of a Kind
func (k Kind) String() string {
	switch k {
	case Insert:
		return "insert"
	case Delete:
		return "delete"
	case Replace:
		return "replace"
	default:
		return "none"
	}
}

// MarshalText lets hunks and rows serialize kinds by name
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText accepts the names MarshalText produces
func (k *Kind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "insert":
		*k = Insert
	case "delete":
		*k = Delete
	case "replace":
		*k = Replace
	default:
		return fmt.Errorf("diff: unknown hunk kind %q", b)
	}
	return nil
}

// Hunk is a contiguous difference region. Positions are 0-based line
// indices into the respective inputs.
type Hunk struct {
	Kind     Kind `json:"kind"`
	OldStart int  `json:"oldStart"`
	OldCount int  `json:"oldCount"`
	NewStart int  `json:"newStart"`
	NewCount int  `json:"newCount"`
}

// Compute returns the ordered, non-overlapping hunks that turn oldLines into
// newLines. Equal regions are not reported, so identical inputs yield nil.
func Compute(oldLines, newLines []string) []Hunk {
	if len(oldLines) == 0 && len(newLines) == 0 {
		return nil
	}

	// autoJunk off: with it on, lines that appear in more than 1% of a long
	// input are ignored when matching and the script stops being near-minimal.
	m := difflib.NewMatcherWithJunk(oldLines, newLines, false, nil)

	var hunks []Hunk
	for _, op := range m.GetOpCodes() {
		var kind Kind
		switch op.Tag {
		case 'i':
			kind = Insert
		case 'd':
			kind = Delete
		case 'r':
			kind = Replace
		default:
			continue
		}
		hunks = append(hunks, Hunk{
			Kind:     kind,
			OldStart: op.I1,
			OldCount: op.I2 - op.I1,
			NewStart: op.J1,
			NewCount: op.J2 - op.J1,
		})
	}
	return hunks
}

// ComputeText splits both texts with SplitLines and diffs them
func ComputeText(oldText, newText string) []Hunk {
	return Compute(SplitLines(oldText), SplitLines(newText))
}

// SplitLines splits text on line feeds. A single trailing empty element left
// by a final separator is dropped: "x\n" is ["x"], "" is [], and "x\n\n" is
// ["x", ""]. Carriage returns are kept as line content.
func SplitLines(text string) []string {
	if text == "" {
		return []string{}
	}
	lines := strings.Split(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// Apply replays hunks computed against oldLines, taking replacement lines
// from newLines. For hunks produced by Compute(oldLines, newLines) the result
// equals newLines.
func Apply(oldLines, newLines []string, hunks []Hunk) []string {
	out := make([]string, 0, len(newLines))
	prev := 0
	for _, h := range hunks {
		out = append(out, oldLines[prev:h.OldStart]...)
		out = append(out, newLines[h.NewStart:h.NewStart+h.NewCount]...)
		prev = h.OldStart + h.OldCount
	}
	return append(out, oldLines[prev:]...)
}

// Stats counts changed lines per side
type Stats struct {
	Added   int `json:"added"`
	Removed int `json:"removed"`
}

// Summarize totals the line counts of a hunk sequence
func Summarize(hunks []Hunk) Stats {
	var s Stats
	for _, h := range hunks {
		s.Added += h.NewCount
		s.Removed += h.OldCount
	}
	return s
}
