package library

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/tubetuner/tubetuner/pkg/models"
)

// SQLiteStore is the default Store backend: one local database file holding
// metadata and blobs together so multi-entity mutations share a transaction.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS videos (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	name_lc       TEXT NOT NULL,
	mime          TEXT NOT NULL,
	size          INTEGER NOT NULL,
	blob_key      TEXT NOT NULL UNIQUE,
	created_at    INTEGER NOT NULL,
	updated_at    INTEGER NOT NULL,
	last_played_at INTEGER NOT NULL DEFAULT 0,
	last_position REAL NOT NULL DEFAULT 0,
	last_modified INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_videos_created_at ON videos(created_at);
CREATE INDEX IF NOT EXISTS idx_videos_name_lc ON videos(name_lc);

CREATE TABLE IF NOT EXISTS video_blobs (
	blob_key TEXT PRIMARY KEY,
	data     BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS subtitles (
	video_id   TEXT PRIMARY KEY,
	blob_key   TEXT NOT NULL,
	kind       TEXT NOT NULL,
	name       TEXT NOT NULL,
	size       INTEGER NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS subtitle_blobs (
	blob_key TEXT PRIMARY KEY,
	data     BLOB NOT NULL
);
`

// NewSQLiteStore opens (or creates) the library database at path.
// Use ":memory:" for an ephemeral database in tests.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// sqlite has a single writer; one connection also keeps :memory:
	// databases stable under the database/sql pool.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const videoColumns = `id, name, name_lc, mime, size, blob_key, created_at, updated_at, last_played_at, last_position, last_modified`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanVideo(row rowScanner) (*models.VideoRecord, error) {
	var v models.VideoRecord
	var createdAt, updatedAt int64
	err := row.Scan(
		&v.ID, &v.Name, &v.NameLC, &v.Mime, &v.Size, &v.BlobKey,
		&createdAt, &updatedAt, &v.LastPlayedAt, &v.LastPosition, &v.LastModified,
	)
	if err != nil {
		return nil, err
	}
	v.CreatedAt = time.UnixMilli(createdAt)
	v.UpdatedAt = time.UnixMilli(updatedAt)
	return &v, nil
}

// AddVideos validates the batch and inserts all metadata and blob rows in
// one transaction. Any insert failure rolls the whole batch back.
func (s *SQLiteStore) AddVideos(ctx context.Context, files []models.FileUpload) ([]models.VideoRecord, error) {
	if len(files) == 0 {
		return nil, nil
	}

	existing, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateUploads(files, existing); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	records := make([]models.VideoRecord, 0, len(files))
	for _, f := range files {
		name := displayName(f.Name)
		rec := models.VideoRecord{
			ID:           uuid.New().String(),
			Name:         name,
			NameLC:       strings.ToLower(name),
			Mime:         f.Mime,
			Size:         f.Size,
			BlobKey:      uuid.New().String(),
			CreatedAt:    now,
			UpdatedAt:    now,
			LastModified: f.LastModified,
		}

		_, err := tx.ExecContext(ctx,
			`INSERT INTO videos (`+videoColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, rec.Name, rec.NameLC, rec.Mime, rec.Size, rec.BlobKey,
			now.UnixMilli(), now.UnixMilli(), rec.LastPlayedAt, rec.LastPosition, rec.LastModified,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to insert video: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO video_blobs (blob_key, data) VALUES (?, ?)`,
			rec.BlobKey, f.Data,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to insert video blob: %w", err)
		}

		records = append(records, rec)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return records, nil
}

// List returns all videos, newest first.
func (s *SQLiteStore) List(ctx context.Context) ([]models.VideoRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+videoColumns+` FROM videos ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list videos: %w", err)
	}
	defer rows.Close()

	var records []models.VideoRecord
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan video: %w", err)
		}
		records = append(records, *v)
	}
	return records, rows.Err()
}

// Get returns one video by id.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*models.VideoRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+videoColumns+` FROM videos WHERE id = ?`, id)
	v, err := scanVideo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get video: %w", err)
	}
	return v, nil
}

// SearchByName performs a case-insensitive substring search.
func (s *SQLiteStore) SearchByName(ctx context.Context, query string) ([]models.VideoRecord, error) {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return s.List(ctx)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+videoColumns+` FROM videos WHERE instr(name_lc, ?) > 0 ORDER BY created_at DESC`,
		needle)
	if err != nil {
		return nil, fmt.Errorf("failed to search videos: %w", err)
	}
	defer rows.Close()

	var records []models.VideoRecord
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan video: %w", err)
		}
		records = append(records, *v)
	}
	return records, rows.Err()
}

// GetVideoBlob returns the binary payload for a blob key.
func (s *SQLiteStore) GetVideoBlob(ctx context.Context, blobKey string) (io.ReadCloser, int64, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM video_blobs WHERE blob_key = ?`, blobKey).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, ErrNotFound
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get video blob: %w", err)
	}
	return io.NopCloser(bytes.NewReader(data)), int64(len(data)), nil
}

// GetSubtitle returns the subtitle record attached to a video, if any.
func (s *SQLiteStore) GetSubtitle(ctx context.Context, videoID string) (*models.SubtitleRecord, error) {
	var rec models.SubtitleRecord
	var createdAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT video_id, blob_key, kind, name, size, created_at FROM subtitles WHERE video_id = ?`,
		videoID).Scan(&rec.VideoID, &rec.BlobKey, &rec.Kind, &rec.Name, &rec.Size, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subtitle: %w", err)
	}
	rec.CreatedAt = time.UnixMilli(createdAt)
	return &rec, nil
}

// GetSubtitleBlob returns the subtitle text payload for a blob key.
func (s *SQLiteStore) GetSubtitleBlob(ctx context.Context, blobKey string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM subtitle_blobs WHERE blob_key = ?`, blobKey).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subtitle blob: %w", err)
	}
	return data, nil
}

// Rename updates a video's display name, search name and update timestamp.
func (s *SQLiteStore) Rename(ctx context.Context, id, name string) error {
	trimmed, err := validateRename(name)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE videos SET name = ?, name_lc = ?, updated_at = ? WHERE id = ?`,
		trimmed, strings.ToLower(trimmed), time.Now().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("failed to rename video: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to rename video: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// SetSubtitle replaces a video's subtitle. The old record and blob are
// deleted and the new ones inserted inside a single transaction.
func (s *SQLiteStore) SetSubtitle(ctx context.Context, videoID string, f models.FileUpload) (*models.SubtitleRecord, error) {
	kind, err := subtitleKind(f.Name)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM videos WHERE id = ?`, videoID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check video: %w", err)
	}

	var oldBlobKey string
	err = tx.QueryRowContext(ctx,
		`SELECT blob_key FROM subtitles WHERE video_id = ?`, videoID).Scan(&oldBlobKey)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to check existing subtitle: %w", err)
	}
	if err == nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM subtitles WHERE video_id = ?`, videoID); err != nil {
			return nil, fmt.Errorf("failed to delete old subtitle: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM subtitle_blobs WHERE blob_key = ?`, oldBlobKey); err != nil {
			return nil, fmt.Errorf("failed to delete old subtitle blob: %w", err)
		}
	}

	rec := models.SubtitleRecord{
		VideoID:   videoID,
		BlobKey:   uuid.New().String(),
		Kind:      kind,
		Name:      f.Name,
		Size:      f.Size,
		CreatedAt: time.Now(),
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO subtitles (video_id, blob_key, kind, name, size, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.VideoID, rec.BlobKey, rec.Kind, rec.Name, rec.Size, rec.CreatedAt.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to insert subtitle: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO subtitle_blobs (blob_key, data) VALUES (?, ?)`,
		rec.BlobKey, f.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to insert subtitle blob: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return &rec, nil
}

// RemoveSubtitle deletes a video's subtitle record and blob if present.
func (s *SQLiteStore) RemoveSubtitle(ctx context.Context, videoID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var blobKey string
	err = tx.QueryRowContext(ctx,
		`SELECT blob_key FROM subtitles WHERE video_id = ?`, videoID).Scan(&blobKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to check subtitle: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM subtitles WHERE video_id = ?`, videoID); err != nil {
		return fmt.Errorf("failed to delete subtitle: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM subtitle_blobs WHERE blob_key = ?`, blobKey); err != nil {
		return fmt.Errorf("failed to delete subtitle blob: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Remove deletes the video, its blob and any attached subtitle in one
// transaction.
func (s *SQLiteStore) Remove(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var videoBlobKey string
	err = tx.QueryRowContext(ctx, `SELECT blob_key FROM videos WHERE id = ?`, id).Scan(&videoBlobKey)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get video: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM videos WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete video: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM video_blobs WHERE blob_key = ?`, videoBlobKey); err != nil {
		return fmt.Errorf("failed to delete video blob: %w", err)
	}

	var subtitleBlobKey string
	err = tx.QueryRowContext(ctx,
		`SELECT blob_key FROM subtitles WHERE video_id = ?`, id).Scan(&subtitleBlobKey)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to check subtitle: %w", err)
	}
	if err == nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM subtitles WHERE video_id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete subtitle: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM subtitle_blobs WHERE blob_key = ?`, subtitleBlobKey); err != nil {
			return fmt.Errorf("failed to delete subtitle blob: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// UpdatePosition persists a playback checkpoint.
func (s *SQLiteStore) UpdatePosition(ctx context.Context, id string, position float64, playedAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE videos SET last_position = ?, last_played_at = ? WHERE id = ?`,
		position, playedAt.UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("failed to update position: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update position: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Stats returns the number of stored videos and their total byte size.
func (s *SQLiteStore) Stats(ctx context.Context) (int64, int64, error) {
	var count, total int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(size), 0) FROM videos`).Scan(&count, &total)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read stats: %w", err)
	}
	return count, total, nil
}
