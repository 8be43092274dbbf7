package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/snapetech/stremtv/internal/catalog"
)

const snapshotKeyPrefix = "addon:data:"

// Snapshots is the tiered snapshot cache keyed by configuration hash.
// Reads prefer the local tier and fall back to the shared store,
// promoting hits; writes go to both, with the shared write fired
// best-effort. A nil shared store means local-only operation.
type Snapshots struct {
	local  *Memory[*catalog.Snapshot]
	shared Store
	ttl    time.Duration
	log    zerolog.Logger
}

// NewSnapshots builds the tiered cache. shared may be nil.
func NewSnapshots(maxEntries int, ttl time.Duration, shared Store, log zerolog.Logger) *Snapshots {
	return &Snapshots{
		local:  NewMemory[*catalog.Snapshot](maxEntries, ttl),
		shared: shared,
		ttl:    ttl,
		log:    log,
	}
}

// Get returns a copy of the cached snapshot for configKey. The copy
// is the caller's to mutate.
func (s *Snapshots) Get(ctx context.Context, configKey string) (*catalog.Snapshot, bool) {
	key := snapshotKeyPrefix + configKey
	if snap, ok := s.local.Get(key); ok {
		return snap.Clone(), true
	}
	if s.shared == nil {
		return nil, false
	}
	data, ok := s.shared.Get(ctx, key)
	if !ok {
		return nil, false
	}
	var snap catalog.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("shared snapshot undecodable, dropping")
		s.shared.Delete(ctx, key)
		return nil, false
	}
	s.local.Set(key, snap.Clone())
	return &snap, true
}

// Put stores a copy of snap in both tiers. The shared write happens
// on the caller's goroutine but its failure is invisible (logged by
// the Store implementation).
func (s *Snapshots) Put(ctx context.Context, configKey string, snap *catalog.Snapshot) {
	key := snapshotKeyPrefix + configKey
	s.local.Set(key, snap.Clone())
	if s.shared == nil {
		return
	}
	data, err := json.Marshal(snap)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("snapshot marshal failed")
		return
	}
	s.shared.Set(ctx, key, data, s.ttl)
}
