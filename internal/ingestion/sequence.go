package ingestion

import (
	"errors"
	"fmt"
)

// ErrStaleLineSequence marks a ceiling-feed update older than one already
// applied.
var ErrStaleLineSequence = errors.New("stale ceiling feed sequence")

// LineSequenceValidator enforces per-ilk ordering on the ceiling feed.
// Each update carries the full line, so gaps are tolerated (counted, not
// rejected) — only stale sequences are refused, keeping a delayed redelivery
// from clobbering a newer line.
// Not thread-safe — only accessed from the single-threaded dispatch loop.
type LineSequenceValidator struct {
	lastSeq map[string]int64 // ilk -> last applied feed sequence
	gaps    map[string]int64 // ilk -> gap count
}

func NewLineSequenceValidator() *LineSequenceValidator {
	return &LineSequenceValidator{
		lastSeq: make(map[string]int64),
		gaps:    make(map[string]int64),
	}
}

// Validate checks feed ordering and records the sequence on success.
func (v *LineSequenceValidator) Validate(ilk string, seq int64) error {
	last, seen := v.lastSeq[ilk]
	if seen && seq <= last {
		return fmt.Errorf("%w: ilk=%s, last=%d, got=%d", ErrStaleLineSequence, ilk, last, seq)
	}
	if seen && seq > last+1 {
		v.gaps[ilk]++
	}
	v.lastSeq[ilk] = seq
	return nil
}

// LastSequence returns the last applied feed sequence for an ilk.
func (v *LineSequenceValidator) LastSequence(ilk string) (int64, bool) {
	seq, ok := v.lastSeq[ilk]
	return seq, ok
}

// Gaps returns the observed gap count for an ilk.
func (v *LineSequenceValidator) Gaps(ilk string) int64 {
	return v.gaps[ilk]
}
