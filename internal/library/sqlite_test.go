package library

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tubetuner/tubetuner/pkg/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func upload(name string, data string) models.FileUpload {
	return models.FileUpload{
		Name:         name,
		Size:         int64(len(data)),
		Mime:         "video/mp4",
		LastModified: 1700000000000,
		Data:         []byte(data),
	}
}

func TestAddVideosAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	records, err := store.AddVideos(ctx, []models.FileUpload{upload("a.mp4", "aaa")})
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "a.mp4", rec.Name)
	assert.Equal(t, int64(3), rec.Size)
	assert.Equal(t, "video/mp4", rec.Mime)
	assert.Zero(t, rec.LastPlayedAt)
	assert.Zero(t, rec.LastPosition)

	got, err := store.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, "a.mp4", got.Name)

	blob, size, err := store.GetVideoBlob(ctx, rec.BlobKey)
	require.NoError(t, err)
	defer blob.Close()
	data, err := io.ReadAll(blob)
	require.NoError(t, err)
	assert.Equal(t, "aaa", string(data))
	assert.Equal(t, int64(3), size)
}

func TestAddVideos_BatchDuplicate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.AddVideos(ctx, []models.FileUpload{
		upload("a.mp4", "aaa"),
		upload("a.mp4", "aaa"),
	})
	require.Error(t, err)
	assert.True(t, IsDuplicate(err))

	// The whole batch is rejected, nothing was stored.
	all, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestAddVideos_DuplicateAgainstStored(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.AddVideos(ctx, []models.FileUpload{upload("a.mp4", "aaa")})
	require.NoError(t, err)

	_, err = store.AddVideos(ctx, []models.FileUpload{upload("a.mp4", "aaa")})
	require.Error(t, err)
	assert.True(t, IsDuplicate(err))

	// Same name but different size is a different file.
	_, err = store.AddVideos(ctx, []models.FileUpload{upload("a.mp4", "aaaa")})
	assert.NoError(t, err)
}

func TestAddVideos_Validation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	bad := upload("doc.pdf", "xx")
	bad.Mime = "application/pdf"
	_, err := store.AddVideos(ctx, []models.FileUpload{bad})
	require.Error(t, err)
	assert.True(t, IsValidation(err))

	huge := upload("big.mp4", "x")
	huge.Size = MaxUploadSize + 1
	_, err = store.AddVideos(ctx, []models.FileUpload{huge})
	require.Error(t, err)
	assert.True(t, IsValidation(err))

	// One bad file rejects the whole batch.
	_, err = store.AddVideos(ctx, []models.FileUpload{upload("ok.mp4", "ok"), huge})
	require.Error(t, err)
	all, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestAddVideos_RollsBackOnInsertFailure(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Force the blob insert for the last file to fail inside the
	// transaction, after the earlier files were already inserted.
	_, err := store.db.Exec(`
		CREATE TRIGGER reject_blob BEFORE INSERT ON video_blobs
		WHEN NEW.data = CAST('boom' AS BLOB)
		BEGIN
			SELECT RAISE(ABORT, 'disk full');
		END`)
	require.NoError(t, err)

	_, err = store.AddVideos(ctx, []models.FileUpload{
		upload("a.mp4", "aaa"),
		upload("b.mp4", "bbb"),
		upload("c.mp4", "boom"),
	})
	require.Error(t, err)

	// The whole batch rolled back; no record of any of the three remains.
	all, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	var blobs int
	require.NoError(t, store.db.QueryRow(`SELECT COUNT(*) FROM video_blobs`).Scan(&blobs))
	assert.Zero(t, blobs)

	count, total, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Zero(t, total)
}

func TestAddVideos_NameDefaultsAndTruncation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	unnamed := upload("", "x")
	long := upload(strings.Repeat("n", 300), "xy")
	records, err := store.AddVideos(ctx, []models.FileUpload{unnamed, long})
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "video", records[0].Name)
	assert.Len(t, []rune(records[1].Name), 200)
}

func TestListOrderAndSearch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i, name := range []string{"Alpha.mp4", "Beta.mp4", "alphabet.mp4"} {
		u := upload(name, strings.Repeat("x", i+1))
		_, err := store.AddVideos(ctx, []models.FileUpload{u})
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond) // distinct created_at
	}

	all, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "alphabet.mp4", all[0].Name) // newest first
	assert.Equal(t, "Alpha.mp4", all[2].Name)

	matches, err := store.SearchByName(ctx, "ALPHA")
	require.NoError(t, err)
	require.Len(t, matches, 2)

	matches, err = store.SearchByName(ctx, "beta")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "Beta.mp4", matches[0].Name)

	// Empty and whitespace-only queries list everything.
	matches, err = store.SearchByName(ctx, "   ")
	require.NoError(t, err)
	assert.Len(t, matches, 3)

	matches, err = store.SearchByName(ctx, "nomatch")
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestRename(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	records, err := store.AddVideos(ctx, []models.FileUpload{upload("old.mp4", "x")})
	require.NoError(t, err)
	id := records[0].ID

	require.NoError(t, store.Rename(ctx, id, "  New Name  "))

	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "New Name", got.Name)
	assert.True(t, got.UpdatedAt.After(got.CreatedAt) || got.UpdatedAt.Equal(got.CreatedAt))

	// Search finds the new name, not the old one.
	matches, err := store.SearchByName(ctx, "new name")
	require.NoError(t, err)
	assert.Len(t, matches, 1)
	matches, err = store.SearchByName(ctx, "old")
	require.NoError(t, err)
	assert.Empty(t, matches)

	err = store.Rename(ctx, id, "   ")
	assert.True(t, IsValidation(err))

	err = store.Rename(ctx, id, strings.Repeat("x", maxRenameLen+1))
	assert.True(t, IsValidation(err))

	assert.NoError(t, store.Rename(ctx, id, strings.Repeat("x", maxRenameLen)))

	err = store.Rename(ctx, "no-such-id", "name")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetSubtitleReplaces(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	records, err := store.AddVideos(ctx, []models.FileUpload{upload("a.mp4", "x")})
	require.NoError(t, err)
	id := records[0].ID

	first, err := store.SetSubtitle(ctx, id, models.FileUpload{
		Name: "track.srt", Size: 5, Data: []byte("first"),
	})
	require.NoError(t, err)
	assert.Equal(t, models.SubtitleKindSRT, first.Kind)

	second, err := store.SetSubtitle(ctx, id, models.FileUpload{
		Name: "track.json", Size: 6, Data: []byte("second"),
	})
	require.NoError(t, err)
	assert.Equal(t, models.SubtitleKindJSON, second.Kind)
	assert.NotEqual(t, first.BlobKey, second.BlobKey)

	// At most one subtitle per video; the old blob is gone.
	got, err := store.GetSubtitle(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, second.BlobKey, got.BlobKey)

	_, err = store.GetSubtitleBlob(ctx, first.BlobKey)
	assert.ErrorIs(t, err, ErrNotFound)

	data, err := store.GetSubtitleBlob(ctx, second.BlobKey)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestSetSubtitleErrors(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.SetSubtitle(ctx, "no-such-id", models.FileUpload{Name: "t.srt"})
	assert.ErrorIs(t, err, ErrNotFound)

	records, err := store.AddVideos(ctx, []models.FileUpload{upload("a.mp4", "x")})
	require.NoError(t, err)

	_, err = store.SetSubtitle(ctx, records[0].ID, models.FileUpload{Name: "t.vtt"})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestRemoveSubtitle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	records, err := store.AddVideos(ctx, []models.FileUpload{upload("a.mp4", "x")})
	require.NoError(t, err)
	id := records[0].ID

	// Removing a subtitle that does not exist is a no-op.
	require.NoError(t, store.RemoveSubtitle(ctx, id))

	rec, err := store.SetSubtitle(ctx, id, models.FileUpload{Name: "t.srt", Data: []byte("sub")})
	require.NoError(t, err)

	require.NoError(t, store.RemoveSubtitle(ctx, id))

	got, err := store.GetSubtitle(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = store.GetSubtitleBlob(ctx, rec.BlobKey)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRemoveCascades(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	records, err := store.AddVideos(ctx, []models.FileUpload{upload("a.mp4", "xyz")})
	require.NoError(t, err)
	video := records[0]

	sub, err := store.SetSubtitle(ctx, video.ID, models.FileUpload{Name: "t.srt", Data: []byte("sub")})
	require.NoError(t, err)

	require.NoError(t, store.Remove(ctx, video.ID))

	_, err = store.Get(ctx, video.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, _, err = store.GetVideoBlob(ctx, video.BlobKey)
	assert.ErrorIs(t, err, ErrNotFound)
	got, err := store.GetSubtitle(ctx, video.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
	_, err = store.GetSubtitleBlob(ctx, sub.BlobKey)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, store.Remove(ctx, video.ID), ErrNotFound)
}

func TestUpdatePosition(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	records, err := store.AddVideos(ctx, []models.FileUpload{upload("a.mp4", "x")})
	require.NoError(t, err)
	id := records[0].ID

	playedAt := time.Now()
	require.NoError(t, store.UpdatePosition(ctx, id, 42.5, playedAt))

	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 42.5, got.LastPosition)
	assert.Equal(t, playedAt.UnixMilli(), got.LastPlayedAt)

	err = store.UpdatePosition(ctx, "no-such-id", 1.0, playedAt)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStats(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	count, total, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Zero(t, total)

	_, err = store.AddVideos(ctx, []models.FileUpload{
		upload("a.mp4", "aaa"),
		upload("b.mp4", "bbbbb"),
	})
	require.NoError(t, err)

	count, total, err = store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	assert.Equal(t, int64(8), total)
}
