package addon

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/snapetech/stremtv/internal/cache"
	"github.com/snapetech/stremtv/internal/catalog"
	"github.com/snapetech/stremtv/internal/config"
)

const registryPlaylist = `#EXTM3U
#EXTINF:-1 group-title="News",Alpha News
http://host/a.ts
`

func playlistServer(t *testing.T, hits *atomic.Int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(registryPlaylist))
	}))
}

func registryOptions(snaps *cache.Snapshots) RegistryOptions {
	return RegistryOptions{
		CacheEnabled: true,
		MaxEntries:   10,
		TTL:          time.Minute,
		Snapshots:    snaps,
		Log:          zerolog.Nop(),
	}
}

func TestRegistryReusesService(t *testing.T) {
	var hits atomic.Int64
	srv := playlistServer(t, &hits)
	defer srv.Close()

	reg := NewRegistry(registryOptions(nil))
	cfg := config.Addon{M3UURL: srv.URL, IncludeSeries: true}

	a, err := reg.Service(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Service: %v", err)
	}
	b, err := reg.Service(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Service: %v", err)
	}
	if a != b {
		t.Error("same config produced two services")
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("upstream fetches = %d; want 1", got)
	}
}

func TestRegistryCacheDisabledRebuilds(t *testing.T) {
	var hits atomic.Int64
	srv := playlistServer(t, &hits)
	defer srv.Close()

	reg := NewRegistry(RegistryOptions{Log: zerolog.Nop()})
	cfg := config.Addon{M3UURL: srv.URL}

	a, _ := reg.Service(context.Background(), cfg)
	b, _ := reg.Service(context.Background(), cfg)
	if a == b {
		t.Error("cache disabled but service instance reused")
	}
	if got := hits.Load(); got != 2 {
		t.Errorf("upstream fetches = %d; want 2 without caching", got)
	}
}

func TestRegistrySingleFlight(t *testing.T) {
	var hits atomic.Int64
	srv := playlistServer(t, &hits)
	defer srv.Close()

	reg := NewRegistry(registryOptions(nil))
	cfg := config.Addon{M3UURL: srv.URL}

	var wg sync.WaitGroup
	services := make([]*Service, 8)
	for i := range services {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			svc, err := reg.Service(context.Background(), cfg)
			if err != nil {
				t.Errorf("Service: %v", err)
				return
			}
			services[i] = svc
		}(i)
	}
	wg.Wait()

	for _, svc := range services[1:] {
		if svc != services[0] {
			t.Error("concurrent builds produced distinct services")
		}
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("upstream fetches = %d; want 1 shared build", got)
	}
}

func TestRegistryWritesThroughSnapshotCache(t *testing.T) {
	var hits atomic.Int64
	srv := playlistServer(t, &hits)
	defer srv.Close()

	snaps := cache.NewSnapshots(10, time.Minute, nil, zerolog.Nop())
	reg := NewRegistry(registryOptions(snaps))
	cfg := config.Addon{M3UURL: srv.URL}

	if _, err := reg.Service(context.Background(), cfg); err != nil {
		t.Fatalf("Service: %v", err)
	}
	snap, ok := snaps.Get(context.Background(), cfg.Key())
	if !ok {
		t.Fatal("snapshot not written through after initial refresh")
	}
	if len(snap.Channels) != 1 {
		t.Errorf("cached snapshot channels = %d; want 1", len(snap.Channels))
	}
}

func TestRegistrySeedsFromSnapshotCache(t *testing.T) {
	var hits atomic.Int64
	srv := playlistServer(t, &hits)
	defer srv.Close()

	cfg := config.Addon{M3UURL: srv.URL}
	snaps := cache.NewSnapshots(10, time.Minute, nil, zerolog.Nop())
	snaps.Put(context.Background(), cfg.Key(), &catalog.Snapshot{
		Channels:   []catalog.Item{{ID: "iptv_seeded", Name: "Seeded Channel", Type: catalog.TypeTV}},
		LastUpdate: time.Now().UnixMilli(),
	})

	reg := NewRegistry(registryOptions(snaps))
	svc, err := reg.Service(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Service: %v", err)
	}

	// The seeded snapshot is served immediately, before any upstream
	// refresh lands.
	if _, ok := svc.Stream(context.Background(), "iptv_seeded"); !ok {
		t.Error("seeded channel not resolvable right after build")
	}
}

func TestRegistryBuildSurvivesUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	reg := NewRegistry(registryOptions(nil))
	svc, err := reg.Service(context.Background(), config.Addon{M3UURL: srv.URL})
	if err != nil {
		t.Fatalf("Service: %v", err)
	}
	if metas := svc.Catalog(context.Background(), "tv", CatalogChannels, Extra{}); len(metas) != 0 {
		t.Errorf("metas = %d; want empty catalog from a store that never loaded", len(metas))
	}
}
