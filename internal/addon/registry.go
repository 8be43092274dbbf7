package addon

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/snapetech/stremtv/internal/cache"
	"github.com/snapetech/stremtv/internal/catalog"
	"github.com/snapetech/stremtv/internal/config"
	"github.com/snapetech/stremtv/internal/provider"
	"github.com/snapetech/stremtv/internal/store"
)

// RegistryOptions tune service construction and caching.
type RegistryOptions struct {
	// CacheEnabled gates both the service LRU and the snapshot
	// cache. Disabled means every request builds (and fetches) anew.
	CacheEnabled bool
	MaxEntries   int
	TTL          time.Duration

	UpdateInterval time.Duration
	RetryInterval  time.Duration

	Provider provider.Options

	// Snapshots is the tiered snapshot cache, nil when caching is
	// disabled or unconfigured.
	Snapshots *cache.Snapshots

	Log zerolog.Logger
}

// Registry hands out one Service per configuration key. Concurrent
// requests for the same cold key share a single build, so a cold
// cache costs one upstream fetch, not one per waiting client.
type Registry struct {
	opts     RegistryOptions
	services *lru.LRU[string, *Service]
	sf       singleflight.Group
}

// NewRegistry builds a registry.
func NewRegistry(opts RegistryOptions) *Registry {
	r := &Registry{opts: opts}
	if opts.CacheEnabled {
		max := opts.MaxEntries
		if max <= 0 {
			max = 100
		}
		r.services = lru.NewLRU[string, *Service](max, nil, opts.TTL)
	}
	return r
}

// Service returns the service for a configuration, building it on
// first use. Build never fails on upstream trouble: a service over a
// store that could not load answers empty catalogs until a later
// refresh succeeds.
func (r *Registry) Service(ctx context.Context, cfg config.Addon) (*Service, error) {
	key := cfg.Key()
	if r.services != nil {
		if svc, ok := r.services.Get(key); ok {
			return svc, nil
		}
	}

	v, err, _ := r.sf.Do(key, func() (interface{}, error) {
		if r.services != nil {
			if svc, ok := r.services.Get(key); ok {
				return svc, nil
			}
		}
		svc := r.build(ctx, key, cfg)
		if r.services != nil {
			r.services.Add(key, svc)
		}
		return svc, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Service), nil
}

func (r *Registry) build(ctx context.Context, key string, cfg config.Addon) *Service {
	log := r.opts.Log.With().Str("config", key).Logger()

	prov := provider.ForConfig(cfg, r.opts.Provider)
	st := store.New(cfg, prov, store.Options{
		UpdateInterval: r.opts.UpdateInterval,
		RetryInterval:  r.opts.RetryInterval,
		Log:            log,
		OnCommit: func(snap catalog.Snapshot) {
			if r.opts.Snapshots == nil {
				return
			}
			// Commit outlives the request that triggered it.
			wctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			r.opts.Snapshots.Put(wctx, key, &snap)
		},
	})

	seeded := false
	if r.opts.Snapshots != nil {
		if snap, ok := r.opts.Snapshots.Get(ctx, key); ok {
			st.Seed(*snap)
			seeded = true
			log.Debug().Int64("last_update", snap.LastUpdate).Msg("store seeded from cache")
		}
	}

	if seeded {
		// Forced refresh still happens at creation, but a seeded
		// store can answer immediately, so it runs in the background.
		go func() {
			rctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()
			_ = st.Refresh(rctx)
		}()
	} else if err := st.Refresh(ctx); err != nil {
		log.Error().Err(err).Msg("initial catalog load failed, serving empty until retry")
	}

	return NewService(cfg, st, log)
}
