package models

import "time"

// SubtitleKind identifies the wire format of a stored subtitle file.
type SubtitleKind string

const (
	SubtitleKindSRT  SubtitleKind = "srt"
	SubtitleKindJSON SubtitleKind = "json"
)

// SubtitleRecord represents the at-most-one subtitle track attached to a
// video. It is keyed by the video id, not an id of its own.
type SubtitleRecord struct {
	VideoID   string       `json:"video_id" db:"video_id"`
	BlobKey   string       `json:"blob_key" db:"blob_key"`
	Kind      SubtitleKind `json:"kind" db:"kind"`
	Name      string       `json:"name" db:"name"`
	Size      int64        `json:"size" db:"size"`
	CreatedAt time.Time    `json:"created_at" db:"created_at"`
}
