package models

import "strings"

// FileUpload describes one file handed to the library by an upload surface.
type FileUpload struct {
	Name         string
	Size         int64
	Mime         string
	LastModified int64 // unix ms, 0 if the client did not report one
	Data         []byte
}

// DedupKey identifies a source file for duplicate detection. Two uploads
// with the same key are treated as the same underlying file. A struct key
// rather than a joined string, so names containing separators cannot
// collide.
type DedupKey struct {
	Name         string
	Size         int64
	LastModified int64
}

// KeyOf builds the dedup key for an upload. The name is trimmed so that
// re-uploads with stray whitespace still match.
func KeyOf(f FileUpload) DedupKey {
	return DedupKey{
		Name:         strings.TrimSpace(f.Name),
		Size:         f.Size,
		LastModified: f.LastModified,
	}
}

// RecordKey builds the dedup key for an already-stored video.
func RecordKey(v VideoRecord) DedupKey {
	return DedupKey{
		Name:         v.Name,
		Size:         v.Size,
		LastModified: v.LastModified,
	}
}
