// Package progress rate-limits user-visible download progress updates.
package progress

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/veranemoloko/media-downloader/internal/keylock"
	"github.com/veranemoloko/media-downloader/internal/metrics"
)

// DefaultInterval is the minimum time between two updates for one key.
const DefaultInterval = 5 * time.Second

// StatusDownloading is the only engine status that produces updates.
const StatusDownloading = "downloading"

// Event is one progress callback from the extraction engine.
type Event struct {
	Status             string
	DownloadedBytes    int64
	TotalBytes         int64
	TotalBytesEstimate int64
	Title              string
}

func (e Event) total() int64 {
	if e.TotalBytes > 0 {
		return e.TotalBytes
	}
	return e.TotalBytesEstimate
}

// Update is what the throttler lets through to the notifier.
type Update struct {
	Key     string
	Title   string
	Percent int
}

// Notifier shows an update to the user.
type Notifier interface {
	NotifyProgress(ctx context.Context, u Update) error
}

// Store keeps the last notification time per progress key.
type Store interface {
	Get(key string) (time.Time, bool)
	Set(key string, at time.Time)
	Delete(key string)
}

// MemoryStore is a mutex guarded in-memory Store.
type MemoryStore struct {
	mu   sync.Mutex
	last map[string]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{last: make(map[string]time.Time)}
}

func (s *MemoryStore) Get(key string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.last[key]
	return t, ok
}

func (s *MemoryStore) Set(key string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last[key] = at
}

func (s *MemoryStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.last, key)
}

// Len returns the number of tracked keys.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.last)
}

// Throttler decides which progress events reach the notifier.
type Throttler struct {
	store    Store
	notifier Notifier
	interval time.Duration
	now      func() time.Time
	logger   *slog.Logger

	// locks covers the read, notify, record sequence of one key.
	locks *keylock.Mutex
}

// NewThrottler creates a throttler using DefaultInterval and the wall clock.
func NewThrottler(store Store, notifier Notifier, logger *slog.Logger) *Throttler {
	return &Throttler{
		store:    store,
		notifier: notifier,
		interval: DefaultInterval,
		now:      time.Now,
		logger:   logger,
		locks:    keylock.New(),
	}
}

// Observe handles one engine progress event for key.
func (t *Throttler) Observe(ctx context.Context, key string, ev Event) {
	if ev.Status != StatusDownloading {
		return
	}

	unlock := t.locks.Lock(key)
	defer unlock()

	now := t.now()
	if last, ok := t.store.Get(key); ok && now.Sub(last) < t.interval {
		return
	}

	total := ev.total()
	if total <= 0 || ev.DownloadedBytes <= 0 {
		return
	}

	title := ev.Title
	if title == "" {
		title = "the file"
	}
	update := Update{
		Key:     key,
		Title:   title,
		Percent: int(math.Round(float64(ev.DownloadedBytes) * 100 / float64(total))),
	}
	if err := t.notifier.NotifyProgress(ctx, update); err != nil {
		t.logger.Warn("progress notification failed", "key", key, "error", err)
		return
	}
	t.store.Set(key, now)
	metrics.ProgressNotifications.Inc()
}

// Done forgets key. Safe to call when nothing was recorded.
func (t *Throttler) Done(key string) {
	t.store.Delete(key)
}
