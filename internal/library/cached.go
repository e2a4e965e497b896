package library

import (
	"context"
	"time"

	"github.com/tubetuner/tubetuner/internal/cache"
	"github.com/tubetuner/tubetuner/internal/logging"
	"github.com/tubetuner/tubetuner/pkg/models"
)

// CachedStore decorates a Store with a read-through metadata cache for Get
// and List. Every mutation invalidates the affected entries. Cache failures
// degrade to the underlying store, they never fail an operation.
type CachedStore struct {
	Store
	cache *cache.Cache
	ttl   time.Duration
	log   *logging.Logger
}

var _ Store = (*CachedStore)(nil)

// NewCachedStore wraps store with the given cache.
func NewCachedStore(store Store, c *cache.Cache, ttl time.Duration, log *logging.Logger) *CachedStore {
	return &CachedStore{Store: store, cache: c, ttl: ttl, log: log}
}

func (s *CachedStore) Get(ctx context.Context, id string) (*models.VideoRecord, error) {
	if rec, err := s.cache.GetVideo(ctx, id); err == nil && rec != nil {
		return rec, nil
	} else if err != nil {
		s.log.ErrorWithErr("video cache read failed", err)
	}

	rec, err := s.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetVideo(ctx, rec, s.ttl); err != nil {
		s.log.ErrorWithErr("video cache write failed", err)
	}
	return rec, nil
}

func (s *CachedStore) List(ctx context.Context) ([]models.VideoRecord, error) {
	if records, err := s.cache.GetList(ctx); err == nil && records != nil {
		return records, nil
	} else if err != nil {
		s.log.ErrorWithErr("list cache read failed", err)
	}

	records, err := s.Store.List(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetList(ctx, records, s.ttl); err != nil {
		s.log.ErrorWithErr("list cache write failed", err)
	}
	return records, nil
}

func (s *CachedStore) AddVideos(ctx context.Context, files []models.FileUpload) ([]models.VideoRecord, error) {
	records, err := s.Store.AddVideos(ctx, files)
	if err != nil {
		return nil, err
	}
	s.invalidateList(ctx)
	return records, nil
}

func (s *CachedStore) Rename(ctx context.Context, id, name string) error {
	if err := s.Store.Rename(ctx, id, name); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

func (s *CachedStore) Remove(ctx context.Context, id string) error {
	if err := s.Store.Remove(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

func (s *CachedStore) UpdatePosition(ctx context.Context, id string, position float64, playedAt time.Time) error {
	if err := s.Store.UpdatePosition(ctx, id, position, playedAt); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

func (s *CachedStore) invalidate(ctx context.Context, id string) {
	if err := s.cache.DeleteVideo(ctx, id); err != nil {
		s.log.ErrorWithErr("video cache invalidation failed", err)
	}
	s.invalidateList(ctx)
}

func (s *CachedStore) invalidateList(ctx context.Context) {
	if err := s.cache.DeleteList(ctx); err != nil {
		s.log.ErrorWithErr("list cache invalidation failed", err)
	}
}
