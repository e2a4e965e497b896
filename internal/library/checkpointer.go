package library

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tubetuner/tubetuner/internal/logging"
	"github.com/tubetuner/tubetuner/internal/metrics"
)

// DefaultCheckpointWindow is how long repeated position updates for one
// video are coalesced before a single write goes to the store.
const DefaultCheckpointWindow = 2 * time.Second

type pendingPosition struct {
	position float64
	timer    *time.Timer
}

// Checkpointer throttles playback position writes. At most one write per
// video id is in flight per window; calls inside the window only replace
// the in-memory value, so a burst of per-frame updates becomes one update.
type Checkpointer struct {
	store  Store
	log    *logging.Logger
	window time.Duration

	mu      sync.Mutex
	pending map[string]*pendingPosition
	closed  bool
}

// NewCheckpointer creates a checkpointer writing through to store.
func NewCheckpointer(store Store, window time.Duration, log *logging.Logger) *Checkpointer {
	if window <= 0 {
		window = DefaultCheckpointWindow
	}
	return &Checkpointer{
		store:   store,
		log:     log,
		window:  window,
		pending: make(map[string]*pendingPosition),
	}
}

// SavePosition records the latest playback position for a video. The write
// is deferred by the throttle window; only the most recent value per id is
// kept (last-write-wins).
func (c *Checkpointer) SavePosition(id string, position float64) {
	if id == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	if entry, ok := c.pending[id]; ok {
		entry.position = position
		return
	}

	entry := &pendingPosition{position: position}
	entry.timer = time.AfterFunc(c.window, func() {
		c.flushOne(id)
	})
	c.pending[id] = entry
}

func (c *Checkpointer) flushOne(id string) {
	c.mu.Lock()
	entry, ok := c.pending[id]
	delete(c.pending, id)
	c.mu.Unlock()
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.store.UpdatePosition(ctx, id, entry.position, time.Now()); err != nil {
		// The video may have been removed while a checkpoint was pending.
		if errors.Is(err, ErrNotFound) {
			c.log.WithVideoID(id).Debug("skipped checkpoint for removed video")
			return
		}
		c.log.WithVideoID(id).ErrorWithErr("failed to persist playback position", err)
		return
	}
	metrics.CheckpointFlushesTotal.Inc()
}

// FlushAll persists every pending checkpoint immediately, best-effort.
// Failures are logged and swallowed.
func (c *Checkpointer) FlushAll(ctx context.Context) {
	c.mu.Lock()
	entries := make(map[string]float64, len(c.pending))
	for id, entry := range c.pending {
		entry.timer.Stop()
		entries[id] = entry.position
	}
	c.pending = make(map[string]*pendingPosition)
	c.mu.Unlock()

	now := time.Now()
	for id, position := range entries {
		err := c.store.UpdatePosition(ctx, id, position, now)
		if err == nil {
			metrics.CheckpointFlushesTotal.Inc()
			continue
		}
		if !errors.Is(err, ErrNotFound) {
			c.log.WithVideoID(id).ErrorWithErr("failed to flush playback position", err)
		}
	}
}

// Close flushes all pending checkpoints and rejects further saves.
func (c *Checkpointer) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c.FlushAll(ctx)
}
