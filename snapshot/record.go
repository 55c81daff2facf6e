package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// RecordVersion is the schema version written by Encode
const RecordVersion = 1

var (
	// ErrCorruptRecord is returned when a record cannot be decoded or fails
	// its integrity checks
	ErrCorruptRecord = errors.New("corrupt snapshot record")
	// ErrUnsupportedVersion is returned for records written by a newer schema
	ErrUnsupportedVersion = errors.New("unsupported snapshot record version")
)

// record is the on-medium envelope. Content is base64 encoded by
// encoding/json.
type record struct {
	V       int    `json:"v"`
	Name    string `json:"name"`
	Path    string `json:"path"`
	TS      int64  `json:"ts"`
	Size    int    `json:"size"`
	SHA256  string `json:"sha256"`
	Content []byte `json:"content"`
}

// Encode serializes a snapshot into a versioned record
func Encode(s Snapshot) ([]byte, error) {
	if s.Name == "" {
		return nil, errors.New("snapshot has no name")
	}
	content := nonNil(s.Content)
	return json.Marshal(record{
		V:       RecordVersion,
		Name:    s.Name,
		Path:    s.FilePath,
		TS:      s.Millis(),
		Size:    len(content),
		SHA256:  Checksum(content),
		Content: content,
	})
}

// Decode parses a record produced by Encode and verifies its size and
// checksum.
func Decode(data []byte) (Snapshot, error) {
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	if r.V != RecordVersion {
		return Snapshot{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, r.V)
	}
	if r.Name == "" {
		return Snapshot{}, fmt.Errorf("%w: missing name", ErrCorruptRecord)
	}
	content := nonNil(r.Content)
	if len(content) != r.Size {
		return Snapshot{}, fmt.Errorf("%w: size %d, want %d", ErrCorruptRecord, len(content), r.Size)
	}
	if sum := Checksum(content); sum != r.SHA256 {
		return Snapshot{}, fmt.Errorf("%w: checksum mismatch for %s", ErrCorruptRecord, r.Name)
	}

	return Snapshot{
		Name:      r.Name,
		FilePath:  r.Path,
		Content:   content,
		Timestamp: time.UnixMilli(r.TS),
	}, nil
}

// Checksum returns the hex sha256 of content
func Checksum(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
