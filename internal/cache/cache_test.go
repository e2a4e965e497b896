package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/tubetuner/tubetuner/pkg/models"
)

func setupTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	// Create a mini Redis server for testing
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}

	cache, err := NewCache(mr.Host(), mr.Server().Addr().Port, "", 0)
	if err != nil {
		mr.Close()
		t.Fatalf("Failed to create cache: %v", err)
	}

	return cache, mr
}

func TestNewCache(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()
	defer cache.Close()

	ctx := context.Background()
	if err := cache.Ping(ctx); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestCache_VideoOperations(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()
	defer cache.Close()

	ctx := context.Background()

	video := &models.VideoRecord{
		ID:      "test-video-1",
		Name:    "test.mp4",
		Mime:    "video/mp4",
		Size:    1024,
		BlobKey: "blob-1",
	}

	// Set video in cache
	if err := cache.SetVideo(ctx, video, time.Minute); err != nil {
		t.Fatalf("SetVideo failed: %v", err)
	}

	// Get video from cache
	got, err := cache.GetVideo(ctx, video.ID)
	if err != nil {
		t.Fatalf("GetVideo failed: %v", err)
	}
	if got == nil {
		t.Fatal("Expected cached video, got nil")
	}
	if got.ID != video.ID || got.Name != video.Name || got.Size != video.Size {
		t.Errorf("Cached video mismatch: %+v", got)
	}

	// Delete and verify miss
	if err := cache.DeleteVideo(ctx, video.ID); err != nil {
		t.Fatalf("DeleteVideo failed: %v", err)
	}
	got, err = cache.GetVideo(ctx, video.ID)
	if err != nil {
		t.Fatalf("GetVideo after delete failed: %v", err)
	}
	if got != nil {
		t.Error("Expected cache miss after delete")
	}
}

func TestCache_GetVideoMiss(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()
	defer cache.Close()

	// Miss is (nil, nil), not an error
	got, err := cache.GetVideo(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetVideo miss should not error: %v", err)
	}
	if got != nil {
		t.Error("Expected nil on cache miss")
	}
}

func TestCache_ListOperations(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()
	defer cache.Close()

	ctx := context.Background()

	// Miss before anything is cached
	videos, err := cache.GetList(ctx)
	if err != nil {
		t.Fatalf("GetList miss should not error: %v", err)
	}
	if videos != nil {
		t.Error("Expected nil list on cache miss")
	}

	list := []models.VideoRecord{
		{ID: "v1", Name: "one.mp4", Size: 10},
		{ID: "v2", Name: "two.mp4", Size: 20},
	}
	if err := cache.SetList(ctx, list, time.Minute); err != nil {
		t.Fatalf("SetList failed: %v", err)
	}

	videos, err = cache.GetList(ctx)
	if err != nil {
		t.Fatalf("GetList failed: %v", err)
	}
	if len(videos) != 2 {
		t.Fatalf("Expected 2 cached videos, got %d", len(videos))
	}
	if videos[0].ID != "v1" || videos[1].ID != "v2" {
		t.Errorf("Cached list mismatch: %+v", videos)
	}

	if err := cache.DeleteList(ctx); err != nil {
		t.Fatalf("DeleteList failed: %v", err)
	}
	videos, err = cache.GetList(ctx)
	if err != nil {
		t.Fatalf("GetList after delete failed: %v", err)
	}
	if videos != nil {
		t.Error("Expected cache miss after DeleteList")
	}
}

func TestCache_TTLExpiry(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()
	defer cache.Close()

	ctx := context.Background()
	video := &models.VideoRecord{ID: "v1", Name: "one.mp4"}

	if err := cache.SetVideo(ctx, video, time.Minute); err != nil {
		t.Fatalf("SetVideo failed: %v", err)
	}

	// miniredis lets us advance time instead of sleeping
	mr.FastForward(2 * time.Minute)

	got, err := cache.GetVideo(ctx, video.ID)
	if err != nil {
		t.Fatalf("GetVideo after expiry failed: %v", err)
	}
	if got != nil {
		t.Error("Expected entry to expire")
	}
}
