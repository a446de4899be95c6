// Package transcript merges recognition results into a growing transcript.
package transcript

import "strings"

// Accumulator holds the finalized segments of a dictation and the single
// interim hypothesis for the utterance in progress. It does no I/O and is not
// safe for concurrent use; the owning session serializes access.
type Accumulator struct {
	segments []string
	interim  string
}

// New returns an empty accumulator.
func New() *Accumulator {
	return &Accumulator{}
}

// ApplyInterim replaces the current hypothesis. Engines re-emit a growing
// hypothesis for the same utterance, so fragments are never concatenated.
// Surrounding whitespace is trimmed: InterimText is the last hypothesis as
// trimmed, not byte for byte.
func (a *Accumulator) ApplyInterim(text string) {
	a.interim = strings.TrimSpace(text)
}

// ApplyFinal commits text, trimmed, as a new segment and clears the
// hypothesis. Blank finals only clear the hypothesis and add no segment, so
// FinalText joins the non-blank finals.
func (a *Accumulator) ApplyFinal(text string) {
	a.interim = ""
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	a.segments = append(a.segments, text)
}

// DiscardInterim drops the uncommitted hypothesis and reports whether one
// was pending.
func (a *Accumulator) DiscardInterim() bool {
	had := a.interim != ""
	a.interim = ""
	return had
}

// Clear empties the transcript.
func (a *Accumulator) Clear() {
	a.segments = nil
	a.interim = ""
}

// FinalText joins the committed segments with single spaces.
func (a *Accumulator) FinalText() string {
	return strings.Join(a.segments, " ")
}

// InterimText returns the current hypothesis.
func (a *Accumulator) InterimText() string {
	return a.interim
}

// Segments returns a copy of the committed segments in recognition order.
func (a *Accumulator) Segments() []string {
	return append([]string(nil), a.segments...)
}

// Len returns the number of committed segments.
func (a *Accumulator) Len() int {
	return len(a.segments)
}
