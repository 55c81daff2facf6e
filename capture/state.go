package capture

import (
	"bytes"
	"time"
)

// DefaultInterval is the minimum time between two edit-triggered captures
// of the same file
const DefaultInterval = 1000 * time.Millisecond

// FileState is what the policy remembers about one file
type FileState struct {
	LastLine      int // -1 until the first capture
	Captured      bool
	BurstCaptured bool
	LastCapture   time.Time
}

// NewFileState returns the state of a file not yet captured this session
func NewFileState() FileState {
	return FileState{LastLine: -1}
}

// AfterCapture records a successful capture at now
func (st FileState) AfterCapture(lastLine int, now time.Time) FileState {
	st.LastLine = lastLine
	st.Captured = true
	st.BurstCaptured = true
	st.LastCapture = now
	return st
}

// Rearmed clears the burst flag so the next edit may capture again
func (st FileState) Rearmed() FileState {
	st.BurstCaptured = false
	return st
}

// Reason explains a capture decision
type Reason string

const (
	ReasonFirstCapture  Reason = "first_capture"
	ReasonLineChanged   Reason = "line_changed"
	ReasonCreated       Reason = "created"
	ReasonBurstCaptured Reason = "burst_captured"
	ReasonNoLineChange  Reason = "no_line_change"
	ReasonDebounced     Reason = "debounced"
)

// Decision is the outcome of evaluating an event against a file's state
type Decision struct {
	Capture bool
	Reason  Reason
}

// DecideEdit applies the edit gates in order: one capture per burst, always
// capture the first time, require a last-line change, then require interval
// to have elapsed since the last capture.
func DecideEdit(st FileState, lastLine int, now time.Time, interval time.Duration) Decision {
	switch {
	case st.BurstCaptured:
		return Decision{Reason: ReasonBurstCaptured}
	case !st.Captured:
		return Decision{Capture: true, Reason: ReasonFirstCapture}
	case lastLine == st.LastLine:
		return Decision{Reason: ReasonNoLineChange}
	case now.Sub(st.LastCapture) < interval:
		return Decision{Reason: ReasonDebounced}
	default:
		return Decision{Capture: true, Reason: ReasonLineChanged}
	}
}

// DecideCreate always captures
func DecideCreate(FileState) Decision {
	return Decision{Capture: true, Reason: ReasonCreated}
}

// LastLineIndex returns the 0-based index of the last line of text, which is
// the number of line feeds it contains
func LastLineIndex(text []byte) int {
	return bytes.Count(text, []byte{'\n'})
}
