package subtitle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSON_Events(t *testing.T) {
	content := `{"events":[
		{"tStartMs":0,"dDurationMs":1000,"segs":[{"utf8":"Hello "},{"utf8":"world"}]},
		{"tStartMs":2500,"dDurationMs":500,"segs":[{"utf8":"Bye"}]}
	]}`

	entries, err := ParseJSON(content)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, 1, entries[0].Index)
	assert.Equal(t, 0.0, entries[0].Start)
	assert.Equal(t, 1.0, entries[0].End)
	assert.Equal(t, "Hello world", entries[0].Text)

	assert.Equal(t, 2, entries[1].Index)
	assert.Equal(t, 2.5, entries[1].Start)
	assert.Equal(t, 3.0, entries[1].End)
}

func TestParseJSON_ContentShape(t *testing.T) {
	content := `{"content":[{"text":"hi","time":1.0,"end":2.0}]}`

	entries, err := ParseJSON(content)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	assert.Equal(t, 1.0, entries[0].Start)
	assert.Equal(t, 2.0, entries[0].End)
	assert.Equal(t, "hi", entries[0].Text)
}

func TestParseJSON_ContentShapeClamps(t *testing.T) {
	// Negative start clamps to zero; end before start clamps to start.
	content := `{"content":[
		{"text":"a","time":-3.0,"end":1.0},
		{"text":"b","time":5.0,"end":4.0}
	]}`

	entries, err := ParseJSON(content)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, 0.0, entries[0].Start)
	assert.Equal(t, 1.0, entries[0].End)
	assert.Equal(t, 5.0, entries[1].Start)
	assert.Equal(t, 5.0, entries[1].End)
}

func TestParseJSON_SkipsBadEvents(t *testing.T) {
	content := `{"events":[
		{"tStartMs":0,"dDurationMs":1000,"segs":[{"utf8":"first"}]},
		{"dDurationMs":1000,"segs":[{"utf8":"no start"}]},
		{"tStartMs":2000,"dDurationMs":1000,"segs":[{"utf8":"   "}]},
		{"tStartMs":3000,"dDurationMs":1000,"segs":[{"utf8":"fourth"}]}
	]}`

	entries, err := ParseJSON(content)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Indices reflect positions in the original events array, not the
	// surviving entries.
	assert.Equal(t, 1, entries[0].Index)
	assert.Equal(t, "first", entries[0].Text)
	assert.Equal(t, 4, entries[1].Index)
	assert.Equal(t, "fourth", entries[1].Text)
}

func TestParseJSON_InvalidFormat(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"malformed json", `{"events":`},
		{"no recognized array", `{"foo":[1,2,3]}`},
		{"events not an array", `{"events":{"tStartMs":0}}`},
		{"top-level array", `[1,2,3]`},
		{"empty string", ``},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseJSON(tc.content)
			assert.ErrorIs(t, err, ErrInvalidFormat)
		})
	}
}

func TestParseJSON_EventsWinOverContent(t *testing.T) {
	content := `{
		"events":[{"tStartMs":0,"dDurationMs":1000,"segs":[{"utf8":"from events"}]}],
		"content":[{"text":"from content","time":0.0,"end":1.0}]
	}`

	entries, err := ParseJSON(content)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "from events", entries[0].Text)
}

func TestIsValidJSON(t *testing.T) {
	assert.True(t, IsValidJSON(`{"events":[{"tStartMs":0,"dDurationMs":1000}]}`))
	assert.True(t, IsValidJSON(`{"content":[{"text":"hi","time":0.0,"end":1.0}]}`))

	assert.False(t, IsValidJSON(`{"events":[]}`))
	assert.False(t, IsValidJSON(`{"events":[{"segs":[{"utf8":"no times"}]}]}`))
	assert.False(t, IsValidJSON(`{"content":[{"text":"hi"}]}`))
	assert.False(t, IsValidJSON(`not json`))
	assert.False(t, IsValidJSON(`{"foo":"bar"}`))
}

// A document IsValidJSON accepts must always decode without error.
func TestIsValidJSON_ImpliesDecodable(t *testing.T) {
	docs := []string{
		`{"events":[{"tStartMs":0,"dDurationMs":1000,"segs":[{"utf8":"hi"}]}]}`,
		`{"events":[{"tStartMs":0,"dDurationMs":1000,"segs":[]}]}`,
		`{"content":[{"text":" ","time":0.0,"end":1.0}]}`,
	}
	for _, doc := range docs {
		if !IsValidJSON(doc) {
			continue
		}
		_, err := ParseJSON(doc)
		assert.NoError(t, err, "doc: %s", doc)
	}
}
