package library

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tubetuner/tubetuner/pkg/models"
)

// PostgresStore is an alternative Store backend for deployments that already
// run Postgres. Same schema and semantics as SQLiteStore.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS videos (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	name_lc       TEXT NOT NULL,
	mime          TEXT NOT NULL,
	size          BIGINT NOT NULL,
	blob_key      TEXT NOT NULL UNIQUE,
	created_at    BIGINT NOT NULL,
	updated_at    BIGINT NOT NULL,
	last_played_at BIGINT NOT NULL DEFAULT 0,
	last_position DOUBLE PRECISION NOT NULL DEFAULT 0,
	last_modified BIGINT NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_videos_created_at ON videos(created_at);
CREATE INDEX IF NOT EXISTS idx_videos_name_lc ON videos(name_lc);

CREATE TABLE IF NOT EXISTS video_blobs (
	blob_key TEXT PRIMARY KEY,
	data     BYTEA NOT NULL
);

CREATE TABLE IF NOT EXISTS subtitles (
	video_id   TEXT PRIMARY KEY,
	blob_key   TEXT NOT NULL,
	kind       TEXT NOT NULL,
	name       TEXT NOT NULL,
	size       BIGINT NOT NULL,
	created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS subtitle_blobs (
	blob_key TEXT PRIMARY KEY,
	data     BYTEA NOT NULL
);
`

// NewPostgresStore connects to Postgres and ensures the library schema.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func scanVideoPg(row pgx.Row) (*models.VideoRecord, error) {
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
// one transaction.
func (s *PostgresStore) AddVideos(ctx context.Context, files []models.FileUpload) ([]models.VideoRecord, error) {
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

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

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

		_, err := tx.Exec(ctx,
			`INSERT INTO videos (`+videoColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			rec.ID, rec.Name, rec.NameLC, rec.Mime, rec.Size, rec.BlobKey,
			now.UnixMilli(), now.UnixMilli(), rec.LastPlayedAt, rec.LastPosition, rec.LastModified,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to insert video: %w", err)
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO video_blobs (blob_key, data) VALUES ($1, $2)`,
			rec.BlobKey, f.Data,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to insert video blob: %w", err)
		}

		records = append(records, rec)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return records, nil
}

// List returns all videos, newest first.
func (s *PostgresStore) List(ctx context.Context) ([]models.VideoRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+videoColumns+` FROM videos ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list videos: %w", err)
	}
	defer rows.Close()

	var records []models.VideoRecord
	for rows.Next() {
		v, err := scanVideoPg(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan video: %w", err)
		}
		records = append(records, *v)
	}
	return records, rows.Err()
}

// Get returns one video by id.
func (s *PostgresStore) Get(ctx context.Context, id string) (*models.VideoRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+videoColumns+` FROM videos WHERE id = $1`, id)
	v, err := scanVideoPg(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get video: %w", err)
	}
	return v, nil
}

// SearchByName performs a case-insensitive substring search.
func (s *PostgresStore) SearchByName(ctx context.Context, query string) ([]models.VideoRecord, error) {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return s.List(ctx)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+videoColumns+` FROM videos WHERE strpos(name_lc, $1) > 0 ORDER BY created_at DESC`,
		needle)
	if err != nil {
		return nil, fmt.Errorf("failed to search videos: %w", err)
	}
	defer rows.Close()

	var records []models.VideoRecord
	for rows.Next() {
		v, err := scanVideoPg(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan video: %w", err)
		}
		records = append(records, *v)
	}
	return records, rows.Err()
}

// GetVideoBlob returns the binary payload for a blob key.
func (s *PostgresStore) GetVideoBlob(ctx context.Context, blobKey string) (io.ReadCloser, int64, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM video_blobs WHERE blob_key = $1`, blobKey).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, 0, ErrNotFound
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get video blob: %w", err)
	}
	return io.NopCloser(bytes.NewReader(data)), int64(len(data)), nil
}

// GetSubtitle returns the subtitle record attached to a video, if any.
func (s *PostgresStore) GetSubtitle(ctx context.Context, videoID string) (*models.SubtitleRecord, error) {
	var rec models.SubtitleRecord
	var createdAt int64
	err := s.pool.QueryRow(ctx,
		`SELECT video_id, blob_key, kind, name, size, created_at FROM subtitles WHERE video_id = $1`,
		videoID).Scan(&rec.VideoID, &rec.BlobKey, &rec.Kind, &rec.Name, &rec.Size, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subtitle: %w", err)
	}
	rec.CreatedAt = time.UnixMilli(createdAt)
	return &rec, nil
}

// GetSubtitleBlob returns the subtitle text payload for a blob key.
func (s *PostgresStore) GetSubtitleBlob(ctx context.Context, blobKey string) ([]byte, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM subtitle_blobs WHERE blob_key = $1`, blobKey).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subtitle blob: %w", err)
	}
	return data, nil
}

// Rename updates a video's display name, search name and update timestamp.
func (s *PostgresStore) Rename(ctx context.Context, id, name string) error {
	trimmed, err := validateRename(name)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE videos SET name = $1, name_lc = $2, updated_at = $3 WHERE id = $4`,
		trimmed, strings.ToLower(trimmed), time.Now().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("failed to rename video: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetSubtitle replaces a video's subtitle inside a single transaction.
func (s *PostgresStore) SetSubtitle(ctx context.Context, videoID string, f models.FileUpload) (*models.SubtitleRecord, error) {
	kind, err := subtitleKind(f.Name)
	if err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists int
	err = tx.QueryRow(ctx, `SELECT 1 FROM videos WHERE id = $1`, videoID).Scan(&exists)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check video: %w", err)
	}

	var oldBlobKey string
	err = tx.QueryRow(ctx,
		`SELECT blob_key FROM subtitles WHERE video_id = $1`, videoID).Scan(&oldBlobKey)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to check existing subtitle: %w", err)
	}
	if err == nil {
		if _, err := tx.Exec(ctx, `DELETE FROM subtitles WHERE video_id = $1`, videoID); err != nil {
			return nil, fmt.Errorf("failed to delete old subtitle: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM subtitle_blobs WHERE blob_key = $1`, oldBlobKey); err != nil {
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

	_, err = tx.Exec(ctx,
		`INSERT INTO subtitles (video_id, blob_key, kind, name, size, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.VideoID, rec.BlobKey, rec.Kind, rec.Name, rec.Size, rec.CreatedAt.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to insert subtitle: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO subtitle_blobs (blob_key, data) VALUES ($1, $2)`,
		rec.BlobKey, f.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to insert subtitle blob: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return &rec, nil
}

// RemoveSubtitle deletes a video's subtitle record and blob if present.
func (s *PostgresStore) RemoveSubtitle(ctx context.Context, videoID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var blobKey string
	err = tx.QueryRow(ctx,
		`SELECT blob_key FROM subtitles WHERE video_id = $1`, videoID).Scan(&blobKey)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to check subtitle: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM subtitles WHERE video_id = $1`, videoID); err != nil {
		return fmt.Errorf("failed to delete subtitle: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM subtitle_blobs WHERE blob_key = $1`, blobKey); err != nil {
		return fmt.Errorf("failed to delete subtitle blob: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Remove deletes the video, its blob and any attached subtitle in one
// transaction.
func (s *PostgresStore) Remove(ctx context.Context, id string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var videoBlobKey string
	err = tx.QueryRow(ctx, `SELECT blob_key FROM videos WHERE id = $1`, id).Scan(&videoBlobKey)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get video: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM videos WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete video: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM video_blobs WHERE blob_key = $1`, videoBlobKey); err != nil {
		return fmt.Errorf("failed to delete video blob: %w", err)
	}

	var subtitleBlobKey string
	err = tx.QueryRow(ctx,
		`SELECT blob_key FROM subtitles WHERE video_id = $1`, id).Scan(&subtitleBlobKey)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("failed to check subtitle: %w", err)
	}
	if err == nil {
		if _, err := tx.Exec(ctx, `DELETE FROM subtitles WHERE video_id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete subtitle: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM subtitle_blobs WHERE blob_key = $1`, subtitleBlobKey); err != nil {
			return fmt.Errorf("failed to delete subtitle blob: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// UpdatePosition persists a playback checkpoint.
func (s *PostgresStore) UpdatePosition(ctx context.Context, id string, position float64, playedAt time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE videos SET last_position = $1, last_played_at = $2 WHERE id = $3`,
		position, playedAt.UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("failed to update position: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Stats returns the number of stored videos and their total byte size.
func (s *PostgresStore) Stats(ctx context.Context) (int64, int64, error) {
	var count, total int64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(SUM(size), 0) FROM videos`).Scan(&count, &total)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read stats: %w", err)
	}
	return count, total, nil
}
