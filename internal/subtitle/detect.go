package subtitle

import (
	"path/filepath"
	"strings"

	"github.com/tubetuner/tubetuner/pkg/models"
)

// Parse decodes subtitle content for an upload, deciding the format by file
// extension first. With an ambiguous or missing extension it attempts JSON
// and falls back to SRT only on a JSON parse failure; zero entries from a
// well-formed JSON document is not a reason to re-read it as SRT.
func Parse(content, filename string) ([]Entry, models.SubtitleKind, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".srt":
		return ParseSRT(content), models.SubtitleKindSRT, nil
	case ".json":
		entries, err := ParseJSON(content)
		if err != nil {
			return nil, "", err
		}
		return entries, models.SubtitleKindJSON, nil
	}

	entries, err := ParseJSON(content)
	if err != nil {
		return ParseSRT(content), models.SubtitleKindSRT, nil
	}
	return entries, models.SubtitleKindJSON, nil
}

// ParseAs decodes content whose format is already known from a stored
// subtitle record.
func ParseAs(content string, kind models.SubtitleKind) ([]Entry, error) {
	if kind == models.SubtitleKindJSON {
		return ParseJSON(content)
	}
	return ParseSRT(content), nil
}
