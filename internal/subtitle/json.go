package subtitle

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
)

// Two JSON timed-text wire shapes are accepted. The events shape is the
// canonical one; the content shape is normalized into it before decoding.
//
//	events:  {"events":[{"tStartMs":0,"dDurationMs":1000,"segs":[{"utf8":"hi"}]}]}
//	content: {"content":[{"text":"hi","time":0.0,"end":1.0}]}

type rawEvent struct {
	TStartMs    *float64 `json:"tStartMs"`
	DDurationMs *float64 `json:"dDurationMs"`
	Segs        []rawSeg `json:"segs"`
}

type rawSeg struct {
	Utf8 string `json:"utf8"`
}

type rawContentItem struct {
	Text *string  `json:"text"`
	Time *float64 `json:"time"` // seconds
	End  *float64 `json:"end"`  // seconds
}

// jsonShape tags which wire shape a document matched.
type jsonShape int

const (
	shapeNone jsonShape = iota
	shapeEvents
	shapeContent
)

type probe struct {
	Events  json.RawMessage `json:"events"`
	Content json.RawMessage `json:"content"`
}

func isJSONArray(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return strings.HasPrefix(trimmed, "[")
}

// detectShape resolves the tagged union once: an array-valued "events"
// field wins, an array-valued "content" field is the fallback, anything
// else is invalid.
func detectShape(data []byte) (jsonShape, []json.RawMessage, error) {
	var p probe
	if err := json.Unmarshal(data, &p); err != nil {
		return shapeNone, nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}

	var raw json.RawMessage
	var shape jsonShape
	switch {
	case isJSONArray(p.Events):
		raw, shape = p.Events, shapeEvents
	case isJSONArray(p.Content):
		raw, shape = p.Content, shapeContent
	default:
		return shapeNone, nil, fmt.Errorf("%w: no events or content array", ErrInvalidFormat)
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return shapeNone, nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	return shape, items, nil
}

// normalizeContent converts content-shape items to canonical events.
// Items with missing or mistyped fields are dropped, not fatal.
func normalizeContent(items []json.RawMessage) []rawEvent {
	var events []rawEvent
	for _, item := range items {
		var c rawContentItem
		if err := json.Unmarshal(item, &c); err != nil {
			continue
		}
		if c.Text == nil || c.Time == nil || c.End == nil {
			continue
		}
		text := strings.TrimSpace(*c.Text)
		if text == "" {
			continue
		}

		startMs := math.Max(0, math.Round(*c.Time*1000))
		endMs := math.Max(startMs, math.Round(*c.End*1000))
		durationMs := endMs - startMs

		events = append(events, rawEvent{
			TStartMs:    &startMs,
			DDurationMs: &durationMs,
			Segs:        []rawSeg{{Utf8: text}},
		})
	}
	return events
}

func decodeEvents(items []json.RawMessage) []rawEvent {
	events := make([]rawEvent, len(items))
	for i, item := range items {
		// A mistyped event decodes to zeroed fields and is skipped later.
		_ = json.Unmarshal(item, &events[i])
	}
	return events
}

// ParseJSON parses timed-text JSON in either accepted shape. Malformed JSON
// or an unrecognized top-level shape fails with ErrInvalidFormat; individual
// bad events are skipped. Entry indices are 1-based positions in the
// original events array and are not renumbered after drops.
func ParseJSON(content string) ([]Entry, error) {
	shape, items, err := detectShape([]byte(content))
	if err != nil {
		return nil, err
	}

	var events []rawEvent
	if shape == shapeContent {
		events = normalizeContent(items)
	} else {
		events = decodeEvents(items)
	}

	var entries []Entry
	for i, ev := range events {
		if ev.TStartMs == nil || ev.DDurationMs == nil {
			continue
		}

		var b strings.Builder
		for _, seg := range ev.Segs {
			b.WriteString(seg.Utf8)
		}
		text := strings.TrimSpace(b.String())
		if text == "" {
			continue
		}

		entries = append(entries, Entry{
			Index: i + 1,
			Start: *ev.TStartMs / 1000,
			End:   (*ev.TStartMs + *ev.DDurationMs) / 1000,
			Text:  text,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Start < entries[j].Start
	})
	return entries, nil
}

// IsValidJSON reports whether content is likely a JSON subtitle: it parses,
// matches one of the accepted shapes, and at least one element carries
// correctly typed fields. It shares shape detection with ParseJSON, so a
// valid document always decodes (possibly to zero entries).
func IsValidJSON(content string) bool {
	shape, items, err := detectShape([]byte(content))
	if err != nil {
		return false
	}

	if shape == shapeContent {
		for _, item := range items {
			var c rawContentItem
			if err := json.Unmarshal(item, &c); err != nil {
				continue
			}
			if c.Text != nil && c.Time != nil && c.End != nil {
				return true
			}
		}
		return false
	}

	for _, item := range items {
		var ev rawEvent
		if err := json.Unmarshal(item, &ev); err != nil {
			continue
		}
		if ev.TStartMs != nil && ev.DDurationMs != nil {
			return true
		}
	}
	return false
}
