// Package store owns the per-configuration catalog snapshot and its
// refresh policy. Reads always serve the last committed snapshot;
// refreshes replace it wholesale and never partially merge.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/snapetech/stremtv/internal/catalog"
	"github.com/snapetech/stremtv/internal/config"
	"github.com/snapetech/stremtv/internal/provider"
)

// AllChannelsGenre is the sentinel facet that never filters.
const AllChannelsGenre = "All Channels"

const (
	// DefaultUpdateInterval is the long gate: no lazy refresh fires
	// within this window after a successful one.
	DefaultUpdateInterval = time.Hour

	// DefaultRetryInterval is the short gate: a populated store does
	// not retry a failing upstream more often than this, even past
	// the long gate. An empty store retries on every read.
	DefaultRetryInterval = 15 * time.Minute
)

// Options tune one store. Zero values get the defaults above.
type Options struct {
	UpdateInterval time.Duration
	RetryInterval  time.Duration
	Log            zerolog.Logger

	// OnCommit runs after every successful refresh with the committed
	// snapshot, outside the store lock. The registry uses it to write
	// through the snapshot cache. May be nil.
	OnCommit func(catalog.Snapshot)
}

// Store is the catalog state machine for one configuration:
// EMPTY, then POPULATED after the first successful refresh, never
// back. Failed refreshes leave the previous snapshot untouched.
type Store struct {
	cfg  config.Addon
	prov provider.Provider
	opts Options

	mu          sync.RWMutex
	snap        catalog.Snapshot
	genres      []string
	populated   bool
	lastSuccess time.Time
	lastAttempt time.Time

	// episodeMemo holds lazily fetched per-series episode lists.
	// One upstream fetch per series key for the store's lifetime,
	// whatever the outcome; invalidation happens only by replacing
	// the whole store.
	memoMu      sync.Mutex
	episodeMemo map[string][]catalog.Episode

	now func() time.Time
}

// New builds a store. It performs no fetch; callers either Seed a
// cached snapshot or run Refresh for the initial forced load.
func New(cfg config.Addon, prov provider.Provider, opts Options) *Store {
	if opts.UpdateInterval <= 0 {
		opts.UpdateInterval = DefaultUpdateInterval
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = DefaultRetryInterval
	}
	return &Store{
		cfg:         cfg,
		prov:        prov,
		opts:        opts,
		episodeMemo: make(map[string][]catalog.Episode),
		now:         time.Now,
	}
}

// Seed installs a snapshot restored from cache as if it had been
// committed by a refresh at its LastUpdate time. The age carries
// over, so a stale cached snapshot is still eligible for the next
// lazy refresh.
func (s *Store) Seed(snap catalog.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = snap
	s.genres = deriveGenres(snap.Channels)
	if !snap.Empty() {
		s.populated = true
	}
	if snap.LastUpdate > 0 {
		s.lastSuccess = time.UnixMilli(snap.LastUpdate)
	}
}

// Refresh fetches upstream data and commits it. A failure of any
// kind logs and returns the error with state untouched, except that
// the attempt time advances so the retry gate sees it.
func (s *Store) Refresh(ctx context.Context) error {
	s.mu.Lock()
	s.lastAttempt = s.now()
	s.mu.Unlock()

	res, err := s.prov.FetchData(ctx, s.cfg)
	if err != nil {
		s.opts.Log.Error().Err(err).Msg("catalog refresh failed")
		return err
	}

	now := s.now()
	snap := catalog.Snapshot{
		Channels:   res.Channels,
		Movies:     res.Movies,
		Series:     res.Series,
		Episodes:   res.Episodes,
		EPG:        res.EPG,
		LastUpdate: now.UnixMilli(),
	}
	genres := deriveGenres(snap.Channels)

	s.mu.Lock()
	s.snap = snap
	s.genres = genres
	s.populated = s.populated || !snap.Empty()
	s.lastSuccess = now
	s.mu.Unlock()

	s.opts.Log.Info().
		Int("channels", len(snap.Channels)).
		Int("movies", len(snap.Movies)).
		Int("series", len(snap.Series)).
		Msg("catalog refreshed")

	if s.opts.OnCommit != nil {
		s.opts.OnCommit(snap)
	}
	return nil
}

// MaybeRefresh is the lazy read-path trigger. When the gates allow
// it, the refresh runs in the background and the caller continues
// against the current snapshot immediately.
func (s *Store) MaybeRefresh(ctx context.Context) {
	if !s.shouldRefresh() {
		return
	}
	go func() {
		// Detached from the read request's lifetime on purpose: the
		// reader never awaits the refresh, so its cancellation must
		// not abort it either.
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Minute)
		defer cancel()
		// Refresh logs its own failures.
		_ = s.Refresh(rctx)
	}()
}

func (s *Store) shouldRefresh() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := s.now()
	if now.Sub(s.lastSuccess) < s.opts.UpdateInterval {
		return false
	}
	if s.populated && now.Sub(s.lastAttempt) < s.opts.RetryInterval {
		return false
	}
	return true
}

// Snapshot returns the last committed snapshot. The returned value
// shares slices with the store; callers treat it as read-only.
func (s *Store) Snapshot() catalog.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Genres returns the channel genre facet derived atomically with the
// current snapshot. The sentinel entry is always first.
func (s *Store) Genres() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.genres
}

// Populated reports whether any refresh has ever committed data.
func (s *Store) Populated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.populated
}

// Episodes resolves the episode list for one series key. Precomputed
// playlist-derived lists win; otherwise the provider is asked once
// per key and the answer, empty or not, is memoized for the store's
// lifetime.
func (s *Store) Episodes(ctx context.Context, seriesKey string) []catalog.Episode {
	s.mu.RLock()
	pre, ok := s.snap.Episodes[seriesKey]
	s.mu.RUnlock()
	if ok {
		return pre
	}

	s.memoMu.Lock()
	defer s.memoMu.Unlock()
	if eps, ok := s.episodeMemo[seriesKey]; ok {
		return eps
	}
	eps, err := s.prov.FetchSeriesInfo(ctx, s.cfg, seriesKey)
	if err != nil {
		s.opts.Log.Warn().Err(err).Str("series", seriesKey).Msg("series info fetch failed")
		eps = nil
	}
	s.episodeMemo[seriesKey] = eps
	return eps
}

// EpisodeByID finds an episode by its full id across the precomputed
// index and the lazy memo. It never fetches: an episode id only ever
// reaches the stream path after its series was listed, which fills
// one of the two.
func (s *Store) EpisodeByID(id string) (catalog.Episode, bool) {
	s.mu.RLock()
	for _, eps := range s.snap.Episodes {
		for _, ep := range eps {
			if ep.ID == id {
				s.mu.RUnlock()
				return ep, true
			}
		}
	}
	s.mu.RUnlock()

	s.memoMu.Lock()
	defer s.memoMu.Unlock()
	for _, eps := range s.episodeMemo {
		for _, ep := range eps {
			if ep.ID == id {
				return ep, true
			}
		}
	}
	return catalog.Episode{}, false
}

// deriveGenres projects the distinct channel categories, sorted, with
// the non-filtering sentinel prepended.
func deriveGenres(channels []catalog.Item) []string {
	seen := make(map[string]struct{})
	var names []string
	for _, ch := range channels {
		cat := ch.Category
		if cat == "" {
			continue
		}
		if _, dup := seen[cat]; dup {
			continue
		}
		seen[cat] = struct{}{}
		names = append(names, cat)
	}
	sort.Strings(names)
	return append([]string{AllChannelsGenre}, names...)
}
