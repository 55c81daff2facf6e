package capture

import (
	"errors"
	"os"
)

// ErrNoDocument is logged when an edit or create arrives without a readable
// document
var ErrNoDocument = errors.New("no document for event")

// Kind is the type of a normalized change event
type Kind int

const (
	Edited Kind = iota + 1
	Created
	Removed
	Renamed
)

// String returns the string representation of a Kind
func (k Kind) String() string {
	switch k {
	case Edited:
		return "edited"
	case Created:
		return "created"
	case Removed:
		return "removed"
	case Renamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// Document is the policy's view of a file: its current path and text
type Document interface {
	Path() string
	Text() ([]byte, error)
}

// Event is one normalized change notification. Edited and Created carry a
// Doc; Removed uses Path; Renamed uses OldPath and Path.
type Event struct {
	Kind    Kind
	Doc     Document
	Path    string
	OldPath string
}

// TextDocument is an in-memory document
type TextDocument struct {
	FilePath string
	Content  []byte
}

func (d TextDocument) Path() string          { return d.FilePath }
func (d TextDocument) Text() ([]byte, error) { return d.Content, nil }

// FileDocument reads its text from disk on demand
type FileDocument string

func (d FileDocument) Path() string { return string(d) }

func (d FileDocument) Text() ([]byte, error) {
	return os.ReadFile(string(d))
}
