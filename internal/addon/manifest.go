package addon

import "github.com/snapetech/stremtv/internal/config"

// Addon identity served in the manifest.
const (
	AddonID      = "org.stremio.m3u-epg-addon"
	AddonName    = "M3U/EPG TV Addon"
	AddonVersion = "1.2.0"
)

// Catalog ids. The channel and movie catalogs are always present;
// the series catalog only when series are enabled.
const (
	CatalogChannels = "iptv_channels"
	CatalogMovies   = "iptv_movies"
	CatalogSeries   = "iptv_series"
)

// Manifest is the addon self-description document.
type Manifest struct {
	ID            string            `json:"id"`
	Version       string            `json:"version"`
	Name          string            `json:"name"`
	Description   string            `json:"description"`
	Resources     []string          `json:"resources"`
	Types         []string          `json:"types"`
	Catalogs      []ManifestCatalog `json:"catalogs"`
	IDPrefixes    []string          `json:"idPrefixes"`
	BehaviorHints map[string]bool   `json:"behaviorHints,omitempty"`
}

type ManifestCatalog struct {
	Type   string         `json:"type"`
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Extra  []CatalogExtra `json:"extra,omitempty"`
	Genres []string       `json:"genres,omitempty"`
}

type CatalogExtra struct {
	Name    string   `json:"name"`
	Options []string `json:"options,omitempty"`
}

// buildManifest assembles the manifest for one configuration. genres
// is the derived channel facet; it lands both in the tv catalog's
// genre extra options and its genres list.
func buildManifest(cfg config.Addon, genres []string) Manifest {
	m := Manifest{
		ID:          AddonID,
		Version:     AddonVersion,
		Name:        AddonName,
		Description: "IPTV addon with M3U, EPG & Xtream (JSON/M3U) + encrypted configs, LRU/Redis cache, cache toggle, EPG offset",
		Resources:   []string{"catalog", "stream", "meta"},
		Types:       []string{"tv", "movie"},
		IDPrefixes:  []string{"iptv_"},
		BehaviorHints: map[string]bool{
			"configurable":          true,
			"configurationRequired": false,
		},
	}
	m.Catalogs = []ManifestCatalog{
		{
			Type: "tv",
			ID:   CatalogChannels,
			Name: "IPTV Channels",
			Extra: []CatalogExtra{
				{Name: "genre", Options: genres},
				{Name: "search"},
				{Name: "skip"},
			},
			Genres: genres,
		},
		{
			Type: "movie",
			ID:   CatalogMovies,
			Name: "IPTV Movies",
			Extra: []CatalogExtra{
				{Name: "search"},
				{Name: "skip"},
			},
		},
	}
	if cfg.IncludeSeries {
		m.Types = append(m.Types, "series")
		m.Catalogs = append(m.Catalogs, ManifestCatalog{
			Type: "series",
			ID:   CatalogSeries,
			Name: "IPTV Series",
			Extra: []CatalogExtra{
				{Name: "search"},
				{Name: "skip"},
			},
		})
	}
	return m
}
