package models

import "time"

// VideoRecord represents one uploaded video in the library.
type VideoRecord struct {
	ID           string    `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	NameLC       string    `json:"-" db:"name_lc"` // lowercase copy used for search
	Mime         string    `json:"mime" db:"mime"`
	Size         int64     `json:"size" db:"size"`
	BlobKey      string    `json:"blob_key" db:"blob_key"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
	LastPlayedAt int64     `json:"last_played_at" db:"last_played_at"` // unix ms, 0 = never played
	LastPosition float64   `json:"last_position" db:"last_position"`   // seconds
	LastModified int64     `json:"last_modified,omitempty" db:"last_modified"` // source file mtime, unix ms, 0 = unknown
}
