package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tubetuner/tubetuner/pkg/models"
)

// Cache provides caching for library metadata using Redis. Blobs are never
// cached, only records and record lists.
type Cache struct {
	client *redis.Client
}

// NewCache creates a new cache instance
func NewCache(host string, port int, password string, db int) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Cache{client: client}, nil
}

// Close closes the Redis connection
func (c *Cache) Close() error {
	return c.client.Close()
}

// SetVideo caches one video record
func (c *Cache) SetVideo(ctx context.Context, video *models.VideoRecord, ttl time.Duration) error {
	data, err := json.Marshal(video)
	if err != nil {
		return fmt.Errorf("failed to marshal video: %w", err)
	}

	key := fmt.Sprintf("video:%s", video.ID)
	return c.client.Set(ctx, key, data, ttl).Err()
}

// GetVideo retrieves a video record from cache; (nil, nil) on miss
func (c *Cache) GetVideo(ctx context.Context, videoID string) (*models.VideoRecord, error) {
	key := fmt.Sprintf("video:%s", videoID)
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // Cache miss
		}
		return nil, fmt.Errorf("failed to get video from cache: %w", err)
	}

	var video models.VideoRecord
	if err := json.Unmarshal(data, &video); err != nil {
		return nil, fmt.Errorf("failed to unmarshal video: %w", err)
	}

	return &video, nil
}

// DeleteVideo removes one video record from cache
func (c *Cache) DeleteVideo(ctx context.Context, videoID string) error {
	key := fmt.Sprintf("video:%s", videoID)
	return c.client.Del(ctx, key).Err()
}

// SetList caches the full video listing
func (c *Cache) SetList(ctx context.Context, videos []models.VideoRecord, ttl time.Duration) error {
	data, err := json.Marshal(videos)
	if err != nil {
		return fmt.Errorf("failed to marshal video list: %w", err)
	}
	return c.client.Set(ctx, "videos:list", data, ttl).Err()
}

// GetList retrieves the cached video listing; (nil, nil) on miss
func (c *Cache) GetList(ctx context.Context) ([]models.VideoRecord, error) {
	data, err := c.client.Get(ctx, "videos:list").Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // Cache miss
		}
		return nil, fmt.Errorf("failed to get video list from cache: %w", err)
	}

	var videos []models.VideoRecord
	if err := json.Unmarshal(data, &videos); err != nil {
		return nil, fmt.Errorf("failed to unmarshal video list: %w", err)
	}

	return videos, nil
}

// DeleteList drops the cached video listing
func (c *Cache) DeleteList(ctx context.Context) error {
	return c.client.Del(ctx, "videos:list").Err()
}

// Health check
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
