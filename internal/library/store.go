package library

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/tubetuner/tubetuner/pkg/models"
)

const (
	// MaxUploadSize is the per-file size cap for video uploads (2 GiB).
	MaxUploadSize = 2 << 30
	// maxInsertNameLen is where display names get truncated on insert.
	maxInsertNameLen = 200
	// maxRenameLen is the rename length limit.
	maxRenameLen = 20
)

// Store is the media library: durable, transactional CRUD over video
// metadata, video blobs, subtitle metadata and subtitle blobs. Every
// multi-entity mutation commits atomically or not at all.
type Store interface {
	// AddVideos validates and inserts a batch of uploads in one transaction.
	// Validation order: batch-internal duplicates, MIME type, size cap,
	// duplicates against stored records. Any failure rejects the whole batch.
	AddVideos(ctx context.Context, files []models.FileUpload) ([]models.VideoRecord, error)

	// List returns all videos sorted by creation time descending.
	List(ctx context.Context) ([]models.VideoRecord, error)

	// Get returns the video with the given id, or ErrNotFound.
	Get(ctx context.Context, id string) (*models.VideoRecord, error)

	// SearchByName performs a case-insensitive substring search over display
	// names. An empty query returns List unfiltered.
	SearchByName(ctx context.Context, query string) ([]models.VideoRecord, error)

	// GetVideoBlob returns the binary payload for a blob key, or ErrNotFound.
	GetVideoBlob(ctx context.Context, blobKey string) (io.ReadCloser, int64, error)

	// GetSubtitle returns the subtitle record for a video, or (nil, nil)
	// when the video has none.
	GetSubtitle(ctx context.Context, videoID string) (*models.SubtitleRecord, error)

	// GetSubtitleBlob returns the subtitle text payload, or ErrNotFound.
	GetSubtitleBlob(ctx context.Context, blobKey string) ([]byte, error)

	// Rename trims and validates the new name (non-empty, at most 20 runes),
	// then updates name, search name and update timestamp in one transaction.
	Rename(ctx context.Context, id, name string) error

	// SetSubtitle attaches a subtitle file to a video, replacing any
	// existing one. Delete-then-insert happens in a single transaction.
	SetSubtitle(ctx context.Context, videoID string, f models.FileUpload) (*models.SubtitleRecord, error)

	// RemoveSubtitle deletes a video's subtitle record and blob if present;
	// it is a no-op otherwise.
	RemoveSubtitle(ctx context.Context, videoID string) error

	// Remove deletes the video, its blob, and any attached subtitle with its
	// blob, all in one transaction.
	Remove(ctx context.Context, id string) error

	// UpdatePosition persists a playback checkpoint in a single update.
	UpdatePosition(ctx context.Context, id string, position float64, playedAt time.Time) error

	// Stats returns the number of stored videos and their total byte size.
	Stats(ctx context.Context) (count int64, totalBytes int64, err error)

	Close() error
}

// validateUploads applies the batch validation rules in order and returns
// the first failure. It performs no writes.
func validateUploads(files []models.FileUpload, existing []models.VideoRecord) error {
	seen := make(map[models.DedupKey]struct{}, len(files))
	for _, f := range files {
		key := models.KeyOf(f)
		if _, ok := seen[key]; ok {
			return &DuplicateError{Name: f.Name, InBatch: true}
		}
		seen[key] = struct{}{}
	}

	for _, f := range files {
		if !strings.HasPrefix(f.Mime, "video/") {
			return &ValidationError{Msg: fmt.Sprintf("unsupported file type: %s", f.Name)}
		}
		if f.Size > MaxUploadSize {
			return &ValidationError{Msg: fmt.Sprintf("file too large: %s", f.Name)}
		}
	}

	stored := make(map[models.DedupKey]struct{}, len(existing))
	for _, v := range existing {
		stored[models.RecordKey(v)] = struct{}{}
	}
	for _, f := range files {
		if _, ok := stored[models.KeyOf(f)]; ok {
			return &DuplicateError{Name: f.Name}
		}
	}

	return nil
}

// displayName returns the stored display name for an upload: non-empty,
// truncated to the insert limit.
func displayName(name string) string {
	if name == "" {
		name = "video"
	}
	if r := []rune(name); len(r) > maxInsertNameLen {
		return string(r[:maxInsertNameLen])
	}
	return name
}

// validateRename trims and checks a new display name.
func validateRename(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", &ValidationError{Msg: "name is required"}
	}
	if len([]rune(trimmed)) > maxRenameLen {
		return "", &ValidationError{Msg: fmt.Sprintf("name must be at most %d characters", maxRenameLen)}
	}
	return trimmed, nil
}

// subtitleKind determines the stored subtitle kind from the file extension.
func subtitleKind(name string) (models.SubtitleKind, error) {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".srt"):
		return models.SubtitleKindSRT, nil
	case strings.HasSuffix(lower, ".json"):
		return models.SubtitleKindJSON, nil
	default:
		return "", ErrUnsupportedFormat
	}
}
