// Package addon turns one configuration's catalog store into the
// Stremio-facing resource handlers: catalog listings, stream
// resolution and detailed metas.
package addon

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/snapetech/stremtv/internal/catalog"
	"github.com/snapetech/stremtv/internal/config"
	"github.com/snapetech/stremtv/internal/epg"
	"github.com/snapetech/stremtv/internal/playlist"
	"github.com/snapetech/stremtv/internal/store"
)

// pageSize caps one catalog page after skip.
const pageSize = 100

// Meta is one catalog entry, preview or detailed.
type Meta struct {
	ID          string   `json:"id"`
	Type        string   `json:"type"`
	Name        string   `json:"name"`
	Poster      string   `json:"poster,omitempty"`
	Description string   `json:"description,omitempty"`
	Genres      []string `json:"genres,omitempty"`
	Runtime     string   `json:"runtime,omitempty"`
	Year        int      `json:"year,omitempty"`
	Videos      []Video  `json:"videos,omitempty"`
}

// Video is one series episode in a detailed meta.
type Video struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Season    int    `json:"season"`
	Episode   int    `json:"episode"`
	Released  string `json:"released,omitempty"`
	Thumbnail string `json:"thumbnail,omitempty"`
}

// Stream is one playable stream for an id.
type Stream struct {
	URL           string        `json:"url"`
	Title         string        `json:"title,omitempty"`
	BehaviorHints BehaviorHints `json:"behaviorHints"`
}

type BehaviorHints struct {
	NotWebReady bool `json:"notWebReady"`
}

// Extra are the supported catalog query modifiers.
type Extra struct {
	Genre  string
	Search string
	Skip   int
}

// Service answers resource requests for one configuration. Safe for
// concurrent use; all state lives in the store.
type Service struct {
	cfg   config.Addon
	store *store.Store
	log   zerolog.Logger
}

// NewService wraps a store. The store is expected to have had its
// initial load (seed or forced refresh) already.
func NewService(cfg config.Addon, st *store.Store, log zerolog.Logger) *Service {
	return &Service{cfg: cfg, store: st, log: log}
}

// Manifest builds the manifest with the current genre facet.
func (s *Service) Manifest() Manifest {
	return buildManifest(s.cfg, s.store.Genres())
}

// Store exposes the underlying store for the registry's cache
// write-through wiring.
func (s *Service) Store() *store.Store {
	return s.store
}

func (s *Service) resolver() epg.Resolver {
	return epg.Resolver{OffsetHours: s.cfg.EPGOffsetHours}
}

// Catalog lists one catalog page. Every call arms the lazy refresh
// trigger; the listing itself always serves the current snapshot.
func (s *Service) Catalog(ctx context.Context, contentType, catalogID string, extra Extra) []Meta {
	s.store.MaybeRefresh(ctx)
	snap := s.store.Snapshot()

	switch {
	case contentType == "tv" && catalogID == CatalogChannels:
		return s.listItems(snap, snap.Channels, extra, true)
	case contentType == "movie" && catalogID == CatalogMovies:
		return s.listItems(snap, snap.Movies, extra, false)
	case contentType == "series" && catalogID == CatalogSeries && s.cfg.IncludeSeries:
		return s.listSeries(snap.Series, extra)
	}
	return []Meta{}
}

func (s *Service) listItems(snap catalog.Snapshot, items []catalog.Item, extra Extra, channels bool) []Meta {
	filtered := items
	if extra.Genre != "" && extra.Genre != store.AllChannelsGenre {
		want := strings.ToLower(extra.Genre)
		filtered = nil
		for _, it := range items {
			if strings.ToLower(itemGenre(it)) == want {
				filtered = append(filtered, it)
			}
		}
	}
	if extra.Search != "" {
		q := strings.ToLower(extra.Search)
		var hits []catalog.Item
		for _, it := range filtered {
			if strings.Contains(strings.ToLower(it.Name), q) {
				hits = append(hits, it)
				continue
			}
			if channels && strings.Contains(strings.ToLower(it.Category), q) {
				hits = append(hits, it)
			}
		}
		filtered = hits
	}

	filtered = page(filtered, extra.Skip)
	metas := make([]Meta, 0, len(filtered))
	for _, it := range filtered {
		if channels {
			metas = append(metas, s.channelPreview(snap, it))
		} else {
			metas = append(metas, moviePreview(it))
		}
	}
	return metas
}

func (s *Service) listSeries(series []catalog.Series, extra Extra) []Meta {
	filtered := series
	if extra.Search != "" {
		q := strings.ToLower(extra.Search)
		filtered = nil
		for _, se := range series {
			if strings.Contains(strings.ToLower(se.Name), q) {
				filtered = append(filtered, se)
			}
		}
	}
	filtered = page(filtered, extra.Skip)
	metas := make([]Meta, 0, len(filtered))
	for _, se := range filtered {
		metas = append(metas, seriesPreview(se))
	}
	return metas
}

func page[T any](items []T, skip int) []T {
	if skip < 0 {
		skip = 0
	}
	if skip >= len(items) {
		return nil
	}
	items = items[skip:]
	if len(items) > pageSize {
		items = items[:pageSize]
	}
	return items
}

func (s *Service) channelPreview(snap catalog.Snapshot, it catalog.Item) Meta {
	m := Meta{
		ID:      it.ID,
		Type:    "tv",
		Name:    it.Name,
		Poster:  channelLogo(it),
		Genres:  genreList(it, "Live TV"),
		Runtime: "Live",
	}
	guide := epg.Guide(snap.EPG)
	r := s.resolver()
	if current, ok := guide.Current(r, epgID(it), time.Now()); ok {
		m.Description = "\U0001F4E1 Now: " + current.Title
		if current.Description != "" {
			m.Description += "\n" + current.Description
		}
	} else {
		m.Description = "\U0001F4E1 Live Channel"
	}
	return m
}

func moviePreview(it catalog.Item) Meta {
	return Meta{
		ID:          it.ID,
		Type:        "movie",
		Name:        it.Name,
		Poster:      moviePoster(it),
		Description: moviePlot(it),
		Genres:      movieGenres(it),
		Year:        movieYear(it),
	}
}

func seriesPreview(se catalog.Series) Meta {
	poster := se.Poster
	if poster == "" {
		poster = se.Attributes["tvg-logo"]
	}
	if poster == "" {
		poster = placeholderPoster(se.Name)
	}
	desc := se.Plot
	if desc == "" {
		desc = se.Attributes["plot"]
	}
	if desc == "" {
		desc = "Series: " + se.Name
	}
	genres := []string{"Series"}
	if se.Category != "" {
		genres = []string{se.Category}
	} else if g := se.Attributes["group-title"]; g != "" {
		genres = []string{g}
	}
	return Meta{
		ID:          se.ID,
		Type:        "series",
		Name:        se.Name,
		Poster:      poster,
		Description: desc,
		Genres:      genres,
	}
}

// Stream resolves one id to its stream. Episode ids go through the
// store's episode lookup before the channel and movie scan.
func (s *Service) Stream(ctx context.Context, id string) (Stream, bool) {
	if strings.HasPrefix(id, catalog.EpisodeIDPrefix) {
		if ep, ok := s.store.EpisodeByID(id); ok {
			return Stream{
				URL:           ep.StreamURL,
				Title:         ep.Title,
				BehaviorHints: BehaviorHints{NotWebReady: true},
			}, true
		}
		return Stream{}, false
	}

	snap := s.store.Snapshot()
	for _, it := range snap.Channels {
		if it.ID == id {
			return Stream{
				URL:           it.URL,
				Title:         it.Name + " - Live",
				BehaviorHints: BehaviorHints{NotWebReady: true},
			}, true
		}
	}
	for _, it := range snap.Movies {
		if it.ID == id {
			return Stream{
				URL:           it.URL,
				Title:         it.Name,
				BehaviorHints: BehaviorHints{NotWebReady: true},
			}, true
		}
	}
	return Stream{}, false
}

// Meta builds the detailed meta for one id. Series metas carry the
// full episode list and may trigger the lazy per-series fetch.
func (s *Service) Meta(ctx context.Context, id string) (Meta, bool) {
	snap := s.store.Snapshot()

	if strings.HasPrefix(id, catalog.SeriesIDPrefix) && !strings.HasPrefix(id, catalog.EpisodeIDPrefix) {
		for _, se := range snap.Series {
			if se.ID == id {
				return s.seriesMeta(ctx, se), true
			}
		}
	}
	for _, it := range snap.Channels {
		if it.ID == id {
			return s.channelMeta(snap, it), true
		}
	}
	for _, it := range snap.Movies {
		if it.ID == id {
			return movieMeta(it), true
		}
	}
	return Meta{}, false
}

func (s *Service) seriesMeta(ctx context.Context, se catalog.Series) Meta {
	m := seriesPreview(se)
	eps := s.store.Episodes(ctx, se.SeriesID)
	m.Videos = make([]Video, 0, len(eps))
	for _, ep := range eps {
		title := ep.Title
		if title == "" {
			title = fmt.Sprintf("Episode %d", ep.Episode)
		}
		m.Videos = append(m.Videos, Video{
			ID:        ep.ID,
			Title:     title,
			Season:    ep.Season,
			Episode:   ep.Episode,
			Released:  ep.Released,
			Thumbnail: ep.Thumbnail,
		})
	}
	return m
}

func (s *Service) channelMeta(snap catalog.Snapshot, it catalog.Item) Meta {
	guide := epg.Guide(snap.EPG)
	r := s.resolver()
	now := time.Now()

	desc := "\U0001F4FA CHANNEL: " + it.Name
	if current, ok := guide.Current(r, epgID(it), now); ok {
		desc += "\n\n\U0001F4E1 NOW: " + current.Title
		if !current.StartTime.IsZero() && !current.StopTime.IsZero() {
			desc += fmt.Sprintf(" (%s-%s)", clock(current.StartTime), clock(current.StopTime))
		}
		if current.Description != "" {
			desc += "\n\n" + current.Description
		}
	}
	if upcoming := guide.Upcoming(r, epgID(it), now, 3); len(upcoming) > 0 {
		desc += "\n\n\U0001F4C5 UPCOMING:\n"
		for _, p := range upcoming {
			desc += clock(p.StartTime) + " - " + p.Title + "\n"
		}
	}

	return Meta{
		ID:          it.ID,
		Type:        "tv",
		Name:        it.Name,
		Poster:      channelLogo(it),
		Description: desc,
		Genres:      genreList(it, "Live TV"),
		Runtime:     "Live",
	}
}

func movieMeta(it catalog.Item) Meta {
	return moviePreview(it)
}

func clock(t time.Time) string {
	return t.Format("15:04")
}

// epgID picks the guide channel key for an item: explicit field, then
// the tvg-id and tvg-name attributes.
func epgID(it catalog.Item) string {
	if it.EPGChannelID != "" {
		return it.EPGChannelID
	}
	if id := it.Attr("tvg-id"); id != "" {
		return id
	}
	return it.Attr("tvg-name")
}

// channelLogo is the channel poster fallback chain: tvg-logo, then a
// relative logo path by tvg id served by the addon host, then a
// generated placeholder.
func channelLogo(it catalog.Item) string {
	if logo := strings.TrimSpace(it.Attr("tvg-logo")); logo != "" {
		return logo
	}
	if it.Logo != "" {
		return it.Logo
	}
	tvgID := it.Attr("tvg-id")
	if tvgID == "" {
		tvgID = it.Attr("tvg-name")
	}
	if tvgID == "" {
		return "https://via.placeholder.com/300x400/333333/FFFFFF?text=" + url.QueryEscape(it.Name)
	}
	return "logo/" + url.PathEscape(tvgID) + ".png"
}

func moviePoster(it catalog.Item) string {
	if it.Poster != "" {
		return it.Poster
	}
	if logo := it.Attr("tvg-logo"); logo != "" {
		return logo
	}
	return placeholderPoster(it.Name)
}

func placeholderPoster(name string) string {
	return "https://via.placeholder.com/300x450/CC6600/FFFFFF?text=" + url.QueryEscape(name)
}

// moviePlot is the movie description fallback chain: plot field, plot
// attribute, then a generic line.
func moviePlot(it catalog.Item) string {
	if it.Plot != "" {
		return it.Plot
	}
	if plot := it.Attr("plot"); plot != "" {
		return plot
	}
	return "Movie: " + it.Name
}

func movieYear(it catalog.Item) int {
	if it.Year != 0 {
		return it.Year
	}
	return playlist.YearFromName(it.Name)
}

func movieGenres(it catalog.Item) []string {
	if g := it.Attr("group-title"); g != "" {
		return []string{g}
	}
	return []string{"Movie"}
}

func itemGenre(it catalog.Item) string {
	if it.Category != "" {
		return it.Category
	}
	return it.Attr("group-title")
}

func genreList(it catalog.Item, fallback string) []string {
	if it.Category != "" {
		return []string{it.Category}
	}
	if g := it.Attr("group-title"); g != "" {
		return []string{g}
	}
	return []string{fallback}
}
