package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snapetech/stremtv/internal/catalog"
)

func TestMemory_lruEviction(t *testing.T) {
	m := NewMemory[int](2, time.Minute)
	m.Set("a", 1)
	m.Set("b", 2)
	if _, ok := m.Get("a"); !ok {
		t.Fatal("a should be present")
	}
	m.Set("c", 3) // evicts b (a was touched more recently)
	if _, ok := m.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	if _, ok := m.Get("a"); !ok {
		t.Error("a should survive")
	}
	if v, ok := m.Get("c"); !ok || v != 3 {
		t.Errorf("c = %d ok=%v", v, ok)
	}
}

func TestMemory_ttlExpiry(t *testing.T) {
	m := NewMemory[string](10, 20*time.Millisecond)
	m.Set("k", "v")
	if _, ok := m.Get("k"); !ok {
		t.Fatal("fresh entry missing")
	}
	time.Sleep(40 * time.Millisecond)
	if _, ok := m.Get("k"); ok {
		t.Error("entry should have expired")
	}
}

func testRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisFromClient(client, zerolog.Nop()), mr
}

func TestRedis_roundTrip(t *testing.T) {
	r, _ := testRedis(t)
	ctx := context.Background()
	if _, ok := r.Get(ctx, "missing"); ok {
		t.Fatal("unexpected hit")
	}
	r.Set(ctx, "k", []byte("value"), time.Minute)
	got, ok := r.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, []byte("value"), got)
	r.Delete(ctx, "k")
	if _, ok := r.Get(ctx, "k"); ok {
		t.Error("deleted key still present")
	}
}

func TestRedis_backendDownDegradesToMiss(t *testing.T) {
	r, mr := testRedis(t)
	mr.Close()
	ctx := context.Background()
	r.Set(ctx, "k", []byte("v"), time.Minute) // must not panic or error
	if _, ok := r.Get(ctx, "k"); ok {
		t.Error("expected miss with backend down")
	}
}

func sampleSnapshot() *catalog.Snapshot {
	return &catalog.Snapshot{
		Channels: []catalog.Item{{ID: "iptv_aa", Name: "One", URL: "http://x/1", Type: catalog.TypeTV}},
		Movies:   []catalog.Item{{ID: "iptv_bb", Name: "Film (2020)", URL: "http://x/2", Type: catalog.TypeMovie}},
		EPG: map[string][]catalog.Programme{
			"c1": {{ChannelID: "c1", Start: "20240101000000 +0000", Stop: "20240101010000 +0000", Title: "P"}},
		},
		LastUpdate: 1700000000000,
	}
}

func TestSnapshots_localOnly(t *testing.T) {
	s := NewSnapshots(10, time.Minute, nil, zerolog.Nop())
	ctx := context.Background()
	if _, ok := s.Get(ctx, "cfg1"); ok {
		t.Fatal("unexpected hit")
	}
	s.Put(ctx, "cfg1", sampleSnapshot())
	got, ok := s.Get(ctx, "cfg1")
	require.True(t, ok)
	assert.Len(t, got.Channels, 1)
	assert.Equal(t, int64(1700000000000), got.LastUpdate)

	// Served copies are isolated from the cached value.
	got.Channels[0].Name = "mutated"
	again, _ := s.Get(ctx, "cfg1")
	assert.Equal(t, "One", again.Channels[0].Name)
}

func TestSnapshots_sharedTierFallbackAndPromotion(t *testing.T) {
	shared, _ := testRedis(t)
	ctx := context.Background()

	writer := NewSnapshots(10, time.Minute, shared, zerolog.Nop())
	writer.Put(ctx, "cfg", sampleSnapshot())

	// A second process (fresh local tier) finds it via the shared store.
	reader := NewSnapshots(10, time.Minute, shared, zerolog.Nop())
	got, ok := reader.Get(ctx, "cfg")
	require.True(t, ok, "shared tier should serve the snapshot")
	assert.Equal(t, "One", got.Channels[0].Name)
	assert.Len(t, got.EPG["c1"], 1)

	// Promoted into the local tier.
	assert.Equal(t, 1, reader.local.Len())
}

func TestSnapshots_sharedTierDownIsLocalOnly(t *testing.T) {
	shared, mr := testRedis(t)
	s := NewSnapshots(10, time.Minute, shared, zerolog.Nop())
	mr.Close()
	ctx := context.Background()
	s.Put(ctx, "cfg", sampleSnapshot())
	got, ok := s.Get(ctx, "cfg")
	require.True(t, ok, "local tier must still serve")
	assert.Len(t, got.Movies, 1)
}

func TestSnapshots_corruptSharedEntryDropped(t *testing.T) {
	shared, mr := testRedis(t)
	require.NoError(t, mr.Set("addon:data:cfg", "not json"))
	s := NewSnapshots(10, time.Minute, shared, zerolog.Nop())
	if _, ok := s.Get(context.Background(), "cfg"); ok {
		t.Error("corrupt entry should be a miss")
	}
}
