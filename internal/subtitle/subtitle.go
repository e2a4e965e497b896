// Package subtitle converts raw subtitle text in either SRT or timed-text
// JSON form into one canonical sequence of timed entries.
package subtitle

import "errors"

// ErrInvalidFormat indicates subtitle content that cannot be decoded:
// malformed JSON, or a JSON document matching neither accepted shape.
var ErrInvalidFormat = errors.New("invalid subtitle format")

// Entry is one parsed caption. A parsed track is a slice of entries sorted
// ascending by start time; entries may overlap and are not deduplicated.
type Entry struct {
	Index int     `json:"index"` // 1-based sequence index from the source
	Start float64 `json:"start"` // seconds
	End   float64 `json:"end"`   // seconds, >= Start
	Text  string  `json:"text"`  // may contain embedded newlines
}

// Current returns the first entry whose range contains t, or nil when no
// entry covers it. First match in slice order wins on overlap.
func Current(entries []Entry, t float64) *Entry {
	for i := range entries {
		if t >= entries[i].Start && t <= entries[i].End {
			return &entries[i]
		}
	}
	return nil
}
