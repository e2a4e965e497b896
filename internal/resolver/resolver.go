// Package resolver turns "which video should play" into a fully loaded
// playback bundle, falling back to the most recently played video when a
// requested id cannot be served.
package resolver

import (
	"context"
	"fmt"
	"io"

	"github.com/tubetuner/tubetuner/internal/library"
	"github.com/tubetuner/tubetuner/internal/logging"
	"github.com/tubetuner/tubetuner/pkg/models"
)

// Bundle is everything the playback surface needs for one video. It is
// never partial: either the video binary and any attached subtitle both
// loaded, or no bundle is returned at all.
type Bundle struct {
	Record   models.VideoRecord
	Video    io.ReadCloser
	Size     int64
	Subtitle *SubtitleText // nil when the video has no subtitle
}

// SubtitleText carries a subtitle record with its raw decoded text. Parsing
// is left to the caller so a bad subtitle never blocks playback.
type SubtitleText struct {
	Record models.SubtitleRecord
	Text   string
}

// Resolver assembles playback bundles from the library store.
type Resolver struct {
	store library.Store
	log   *logging.Logger
}

// New creates a resolver.
func New(store library.Store, log *logging.Logger) *Resolver {
	return &Resolver{store: store, log: log}
}

// Resolve loads a playback bundle. With a non-empty id the requested video
// is tried first; any failure there degrades to the most recently played
// video (ties broken by newest creation) instead of surfacing the error.
// An empty library, or a fallback that also fails to load, yields
// (nil, nil): "no data" is a valid state, not an error.
func (r *Resolver) Resolve(ctx context.Context, id string) (*Bundle, error) {
	if id != "" {
		rec, err := r.store.Get(ctx, id)
		if err == nil {
			bundle, loadErr := r.load(ctx, *rec)
			if loadErr == nil {
				return bundle, nil
			}
			r.log.WithVideoID(id).WithError(loadErr).Warn("failed to load requested video, falling back to most recent")
		} else {
			r.log.WithVideoID(id).WithError(err).Warn("requested video not found, falling back to most recent")
		}
	}

	all, err := r.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list videos: %w", err)
	}
	if len(all) == 0 {
		return nil, nil
	}

	pick := all[0]
	for _, v := range all[1:] {
		if v.LastPlayedAt > pick.LastPlayedAt ||
			(v.LastPlayedAt == pick.LastPlayedAt && v.CreatedAt.After(pick.CreatedAt)) {
			pick = v
		}
	}

	bundle, err := r.load(ctx, pick)
	if err != nil {
		r.log.WithVideoID(pick.ID).WithError(err).Warn("failed to load most recent video")
		return nil, nil
	}
	return bundle, nil
}

// load assembles the full bundle for one record; it either succeeds
// completely or returns an error with nothing held open.
func (r *Resolver) load(ctx context.Context, rec models.VideoRecord) (*Bundle, error) {
	video, size, err := r.store.GetVideoBlob(ctx, rec.BlobKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load video blob: %w", err)
	}

	sub, err := r.store.GetSubtitle(ctx, rec.ID)
	if err != nil {
		video.Close()
		return nil, fmt.Errorf("failed to load subtitle record: %w", err)
	}

	bundle := &Bundle{Record: rec, Video: video, Size: size}
	if sub != nil {
		text, err := r.store.GetSubtitleBlob(ctx, sub.BlobKey)
		if err != nil {
			video.Close()
			return nil, fmt.Errorf("failed to load subtitle blob: %w", err)
		}
		bundle.Subtitle = &SubtitleText{Record: *sub, Text: string(text)}
	}

	return bundle, nil
}
