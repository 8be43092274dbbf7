package addon

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/snapetech/stremtv/internal/catalog"
	"github.com/snapetech/stremtv/internal/config"
	"github.com/snapetech/stremtv/internal/provider"
	"github.com/snapetech/stremtv/internal/store"
)

type stubProvider struct {
	mu        sync.Mutex
	result    *provider.Result
	episodes  map[string][]catalog.Episode
	infoCalls int
}

func (p *stubProvider) FetchData(ctx context.Context, cfg config.Addon) (*provider.Result, error) {
	if p.result == nil {
		return &provider.Result{}, nil
	}
	return p.result, nil
}

func (p *stubProvider) FetchSeriesInfo(ctx context.Context, cfg config.Addon, seriesID string) ([]catalog.Episode, error) {
	p.mu.Lock()
	p.infoCalls++
	p.mu.Unlock()
	return p.episodes[seriesID], nil
}

func xmltvStamp(t time.Time) string {
	return t.UTC().Format("20060102150405") + " +0000"
}

func testResult() *provider.Result {
	now := time.Now()
	return &provider.Result{
		Channels: []catalog.Item{
			{
				ID: "iptv_ch1", Name: "News One", Category: "News", Type: catalog.TypeTV,
				URL:          "http://host/1.ts",
				EPGChannelID: "news1.uk",
				Attributes:   map[string]string{"tvg-id": "news1.uk", "tvg-logo": "http://logo/n1.png"},
			},
			{
				ID: "iptv_ch2", Name: "Sports Hub", Category: "Sports", Type: catalog.TypeTV,
				URL:        "http://host/2.ts",
				Attributes: map[string]string{"tvg-id": "sports.uk"},
			},
			{
				ID: "iptv_ch3", Name: "Bare Channel", Type: catalog.TypeTV,
				URL: "http://host/3.ts",
			},
		},
		Movies: []catalog.Item{
			{
				ID: "iptv_mv1", Name: "Inception (2010)", Type: catalog.TypeMovie,
				URL:        "http://host/m1.mp4",
				Attributes: map[string]string{"group-title": "Movies"},
			},
		},
		Series: []catalog.Series{
			{ID: "iptv_series_abc", SeriesID: "abc", Name: "Lost", Category: "Drama"},
		},
		Episodes: map[string][]catalog.Episode{
			"abc": {
				{ID: "iptv_series_ep_e1", Title: "Pilot", Season: 1, Episode: 1, StreamURL: "http://host/e1.mp4"},
				{ID: "iptv_series_ep_e2", Title: "Tabula Rasa", Season: 1, Episode: 2, StreamURL: "http://host/e2.mp4"},
			},
		},
		EPG: map[string][]catalog.Programme{
			"news1.uk": {
				{ChannelID: "news1.uk", Start: xmltvStamp(now.Add(-30 * time.Minute)), Stop: xmltvStamp(now.Add(30 * time.Minute)), Title: "Evening News", Description: "Headlines."},
				{ChannelID: "news1.uk", Start: xmltvStamp(now.Add(30 * time.Minute)), Stop: xmltvStamp(now.Add(60 * time.Minute)), Title: "Weather"},
				{ChannelID: "news1.uk", Start: xmltvStamp(now.Add(60 * time.Minute)), Stop: xmltvStamp(now.Add(90 * time.Minute)), Title: "Late Show"},
			},
		},
	}
}

func newTestService(t *testing.T, p provider.Provider, cfg config.Addon) *Service {
	t.Helper()
	st := store.New(cfg, p, store.Options{Log: zerolog.Nop()})
	if err := st.Refresh(context.Background()); err != nil {
		t.Fatalf("initial refresh: %v", err)
	}
	return NewService(cfg, st, zerolog.Nop())
}

func defaultConfig() config.Addon {
	return config.Addon{IncludeSeries: true}
}

func TestCatalogChannels(t *testing.T) {
	svc := newTestService(t, &stubProvider{result: testResult()}, defaultConfig())

	metas := svc.Catalog(context.Background(), "tv", CatalogChannels, Extra{})
	if len(metas) != 3 {
		t.Fatalf("metas = %d; want 3", len(metas))
	}
	first := metas[0]
	if first.Type != "tv" || first.Runtime != "Live" {
		t.Errorf("channel meta type/runtime = %q/%q; want tv/Live", first.Type, first.Runtime)
	}
	if !strings.HasPrefix(first.Description, "\U0001F4E1 Now: Evening News") {
		t.Errorf("description = %q; want now-playing prefix", first.Description)
	}
	if metas[1].Description != "\U0001F4E1 Live Channel" {
		t.Errorf("no-EPG description = %q; want generic live line", metas[1].Description)
	}
}

func TestCatalogGenreFilter(t *testing.T) {
	svc := newTestService(t, &stubProvider{result: testResult()}, defaultConfig())

	metas := svc.Catalog(context.Background(), "tv", CatalogChannels, Extra{Genre: "news"})
	if len(metas) != 1 || metas[0].Name != "News One" {
		t.Errorf("genre=news metas = %v; want only News One", metaNames(metas))
	}

	// The sentinel never filters.
	metas = svc.Catalog(context.Background(), "tv", CatalogChannels, Extra{Genre: store.AllChannelsGenre})
	if len(metas) != 3 {
		t.Errorf("sentinel genre metas = %d; want 3", len(metas))
	}
}

func TestCatalogSearch(t *testing.T) {
	svc := newTestService(t, &stubProvider{result: testResult()}, defaultConfig())

	// Name match, case-insensitive.
	metas := svc.Catalog(context.Background(), "tv", CatalogChannels, Extra{Search: "sports hub"})
	if len(metas) != 1 || metas[0].Name != "Sports Hub" {
		t.Errorf("search metas = %v; want Sports Hub", metaNames(metas))
	}

	// Channel search also covers the category.
	metas = svc.Catalog(context.Background(), "tv", CatalogChannels, Extra{Search: "news"})
	if len(metas) != 1 || metas[0].Name != "News One" {
		t.Errorf("category search metas = %v; want News One", metaNames(metas))
	}

	// Movie search is name-only.
	metas = svc.Catalog(context.Background(), "movie", CatalogMovies, Extra{Search: "inception"})
	if len(metas) != 1 {
		t.Errorf("movie search metas = %d; want 1", len(metas))
	}
}

func TestCatalogPaging(t *testing.T) {
	res := &provider.Result{}
	for i := 0; i < 150; i++ {
		res.Channels = append(res.Channels, catalog.Item{
			ID:   fmt.Sprintf("iptv_ch%03d", i),
			Name: fmt.Sprintf("Channel %03d", i),
			Type: catalog.TypeTV,
		})
	}
	svc := newTestService(t, &stubProvider{result: res}, defaultConfig())

	metas := svc.Catalog(context.Background(), "tv", CatalogChannels, Extra{})
	if len(metas) != 100 {
		t.Errorf("page = %d; want capped at 100", len(metas))
	}
	metas = svc.Catalog(context.Background(), "tv", CatalogChannels, Extra{Skip: 100})
	if len(metas) != 50 {
		t.Errorf("second page = %d; want 50", len(metas))
	}
	if len(metas) > 0 && metas[0].Name != "Channel 100" {
		t.Errorf("second page starts at %q; want Channel 100", metas[0].Name)
	}
	metas = svc.Catalog(context.Background(), "tv", CatalogChannels, Extra{Skip: 500})
	if len(metas) != 0 {
		t.Errorf("past-end page = %d; want 0", len(metas))
	}
}

func TestCatalogUnknownID(t *testing.T) {
	svc := newTestService(t, &stubProvider{result: testResult()}, defaultConfig())
	if metas := svc.Catalog(context.Background(), "tv", "not_a_catalog", Extra{}); len(metas) != 0 {
		t.Errorf("unknown catalog metas = %d; want 0", len(metas))
	}
}

func TestCatalogSeries(t *testing.T) {
	svc := newTestService(t, &stubProvider{result: testResult()}, defaultConfig())
	metas := svc.Catalog(context.Background(), "series", CatalogSeries, Extra{})
	if len(metas) != 1 {
		t.Fatalf("series metas = %d; want 1", len(metas))
	}
	if metas[0].ID != "iptv_series_abc" || metas[0].Type != "series" {
		t.Errorf("series meta = %+v; want id iptv_series_abc type series", metas[0])
	}
	if metas[0].Genres[0] != "Drama" {
		t.Errorf("series genres = %v; want [Drama]", metas[0].Genres)
	}
}

func TestChannelLogoFallbacks(t *testing.T) {
	svc := newTestService(t, &stubProvider{result: testResult()}, defaultConfig())
	metas := svc.Catalog(context.Background(), "tv", CatalogChannels, Extra{})

	if metas[0].Poster != "http://logo/n1.png" {
		t.Errorf("poster with tvg-logo = %q; want the attribute value", metas[0].Poster)
	}
	if metas[1].Poster != "logo/sports.uk.png" {
		t.Errorf("poster with tvg-id only = %q; want relative logo path", metas[1].Poster)
	}
	if !strings.HasPrefix(metas[2].Poster, "https://via.placeholder.com/") {
		t.Errorf("poster without attributes = %q; want placeholder", metas[2].Poster)
	}
}

func TestMoviePreviewFallbacks(t *testing.T) {
	svc := newTestService(t, &stubProvider{result: testResult()}, defaultConfig())
	metas := svc.Catalog(context.Background(), "movie", CatalogMovies, Extra{})
	if len(metas) != 1 {
		t.Fatalf("metas = %d; want 1", len(metas))
	}
	m := metas[0]
	if m.Year != 2010 {
		t.Errorf("year = %d; want 2010 parsed from the name", m.Year)
	}
	if m.Description != "Movie: Inception (2010)" {
		t.Errorf("description = %q; want generic fallback", m.Description)
	}
	if m.Genres[0] != "Movies" {
		t.Errorf("genres = %v; want [Movies]", m.Genres)
	}
	if !strings.HasPrefix(m.Poster, "https://via.placeholder.com/") {
		t.Errorf("poster = %q; want placeholder without artwork", m.Poster)
	}
}

func TestStream(t *testing.T) {
	svc := newTestService(t, &stubProvider{result: testResult()}, defaultConfig())

	s, ok := svc.Stream(context.Background(), "iptv_ch1")
	if !ok {
		t.Fatal("channel stream not found")
	}
	if s.URL != "http://host/1.ts" || s.Title != "News One - Live" {
		t.Errorf("channel stream = %+v; want url/1.ts and Live title", s)
	}
	if !s.BehaviorHints.NotWebReady {
		t.Error("channel stream notWebReady = false; want true")
	}

	s, ok = svc.Stream(context.Background(), "iptv_mv1")
	if !ok || s.Title != "Inception (2010)" {
		t.Errorf("movie stream = %+v ok=%v; want plain title", s, ok)
	}

	s, ok = svc.Stream(context.Background(), "iptv_series_ep_e2")
	if !ok || s.URL != "http://host/e2.mp4" {
		t.Errorf("episode stream = %+v ok=%v; want indexed episode url", s, ok)
	}

	if _, ok = svc.Stream(context.Background(), "iptv_nope"); ok {
		t.Error("unknown id resolved to a stream")
	}
}

func TestEpisodeStreamAfterLazyFetch(t *testing.T) {
	p := &stubProvider{
		result: &provider.Result{
			Series: []catalog.Series{{ID: "iptv_series_30", SeriesID: "30", Name: "Panel Show"}},
		},
		episodes: map[string][]catalog.Episode{
			"30": {{ID: "iptv_series_ep_300", Title: "Opener", Season: 1, Episode: 1, StreamURL: "http://panel/300.mkv"}},
		},
	}
	svc := newTestService(t, p, defaultConfig())

	// Before the series meta was requested nothing is resolvable.
	if _, ok := svc.Stream(context.Background(), "iptv_series_ep_300"); ok {
		t.Error("episode stream resolved before any series meta fetch")
	}

	meta, ok := svc.Meta(context.Background(), "iptv_series_30")
	if !ok {
		t.Fatal("series meta not found")
	}
	if len(meta.Videos) != 1 || meta.Videos[0].ID != "iptv_series_ep_300" {
		t.Fatalf("videos = %+v; want the fetched episode", meta.Videos)
	}

	s, ok := svc.Stream(context.Background(), "iptv_series_ep_300")
	if !ok || s.URL != "http://panel/300.mkv" {
		t.Errorf("episode stream = %+v ok=%v; want memoized url", s, ok)
	}
}

func TestChannelMetaDescription(t *testing.T) {
	svc := newTestService(t, &stubProvider{result: testResult()}, defaultConfig())

	m, ok := svc.Meta(context.Background(), "iptv_ch1")
	if !ok {
		t.Fatal("channel meta not found")
	}
	if !strings.HasPrefix(m.Description, "\U0001F4FA CHANNEL: News One") {
		t.Errorf("description = %q; want channel header", m.Description)
	}
	if !strings.Contains(m.Description, "\U0001F4E1 NOW: Evening News (") {
		t.Errorf("description = %q; want current programme with clock times", m.Description)
	}
	if !strings.Contains(m.Description, "Headlines.") {
		t.Errorf("description = %q; want programme description", m.Description)
	}
	if !strings.Contains(m.Description, "\U0001F4C5 UPCOMING:\n") {
		t.Errorf("description = %q; want upcoming section", m.Description)
	}
	if !strings.Contains(m.Description, "- Weather\n") || !strings.Contains(m.Description, "- Late Show\n") {
		t.Errorf("description = %q; want upcoming titles listed", m.Description)
	}
}

func TestChannelMetaWithoutGuide(t *testing.T) {
	svc := newTestService(t, &stubProvider{result: testResult()}, defaultConfig())
	m, ok := svc.Meta(context.Background(), "iptv_ch2")
	if !ok {
		t.Fatal("channel meta not found")
	}
	if m.Description != "\U0001F4FA CHANNEL: Sports Hub" {
		t.Errorf("description = %q; want bare header without guide data", m.Description)
	}
}

func TestMetaUnknownID(t *testing.T) {
	svc := newTestService(t, &stubProvider{result: testResult()}, defaultConfig())
	if _, ok := svc.Meta(context.Background(), "iptv_nope"); ok {
		t.Error("unknown id produced a meta")
	}
}

func TestSeriesMetaMemoizesInfoFetch(t *testing.T) {
	p := &stubProvider{
		result: &provider.Result{
			Series: []catalog.Series{{ID: "iptv_series_30", SeriesID: "30", Name: "Panel Show"}},
		},
		episodes: map[string][]catalog.Episode{
			"30": {{ID: "iptv_series_ep_300", Season: 1, Episode: 1}},
		},
	}
	svc := newTestService(t, p, defaultConfig())

	for i := 0; i < 3; i++ {
		if _, ok := svc.Meta(context.Background(), "iptv_series_30"); !ok {
			t.Fatal("series meta not found")
		}
	}
	p.mu.Lock()
	calls := p.infoCalls
	p.mu.Unlock()
	if calls != 1 {
		t.Errorf("info fetches = %d; want 1 memoized", calls)
	}
}

func TestManifest(t *testing.T) {
	svc := newTestService(t, &stubProvider{result: testResult()}, defaultConfig())
	m := svc.Manifest()

	if m.ID != AddonID || m.Version != AddonVersion {
		t.Errorf("manifest identity = %s/%s; want %s/%s", m.ID, m.Version, AddonID, AddonVersion)
	}
	if len(m.Catalogs) != 3 {
		t.Fatalf("catalogs = %d; want channels, movies, series", len(m.Catalogs))
	}
	tv := m.Catalogs[0]
	if tv.ID != CatalogChannels {
		t.Errorf("first catalog = %q; want %q", tv.ID, CatalogChannels)
	}
	if len(tv.Genres) == 0 || tv.Genres[0] != store.AllChannelsGenre {
		t.Errorf("tv genres = %v; want sentinel first", tv.Genres)
	}
	if m.Types[len(m.Types)-1] != "series" {
		t.Errorf("types = %v; want series present", m.Types)
	}
}

func TestManifestWithoutSeries(t *testing.T) {
	cfg := config.Addon{IncludeSeries: false}
	svc := newTestService(t, &stubProvider{result: testResult()}, cfg)
	m := svc.Manifest()
	if len(m.Catalogs) != 2 {
		t.Errorf("catalogs = %d; want 2 without series", len(m.Catalogs))
	}
	for _, typ := range m.Types {
		if typ == "series" {
			t.Error("types include series with includeSeries=false")
		}
	}
}

func metaNames(metas []Meta) []string {
	names := make([]string, len(metas))
	for i, m := range metas {
		names[i] = m.Name
	}
	return names
}
