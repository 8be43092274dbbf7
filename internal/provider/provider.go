// Package provider fetches raw playlist/EPG/panel data from an
// upstream source and drives the parsers into a normalized Result.
// The variant set is closed: direct M3U, Xtream JSON API, and Xtream
// M3U-compatibility mode.
package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/snapetech/stremtv/internal/catalog"
	"github.com/snapetech/stremtv/internal/config"
	"github.com/snapetech/stremtv/internal/epg"
)

// Result is everything one refresh produced. Episodes carries the
// precomputed per-series episode lists for playlist-derived series
// (keyed by the bare series hash); panel-backed series resolve
// episodes lazily through FetchSeriesInfo instead.
type Result struct {
	Channels []catalog.Item
	Movies   []catalog.Item
	Series   []catalog.Series
	Episodes map[string][]catalog.Episode
	EPG      epg.Guide
}

// Provider is one upstream source variant.
type Provider interface {
	// FetchData performs the full catalog fetch. Configuration
	// problems and unreachable upstreams are errors; EPG trouble is
	// not: a Result with an empty guide is still a success.
	FetchData(ctx context.Context, cfg config.Addon) (*Result, error)

	// FetchSeriesInfo resolves the episode list for one series by its
	// provider-side key. Variants without a per-series endpoint
	// return an empty list; the store serves those from the
	// precomputed index instead.
	FetchSeriesInfo(ctx context.Context, cfg config.Addon, seriesID string) ([]catalog.Episode, error)
}

// Options are shared fetch knobs. Zero values get defaults from
// applyDefaults.
type Options struct {
	PlaylistTimeout   time.Duration
	EPGTimeout        time.Duration
	APITimeout        time.Duration
	SeriesInfoTimeout time.Duration
	Log               zerolog.Logger
}

func (o *Options) applyDefaults() {
	if o.PlaylistTimeout <= 0 {
		o.PlaylistTimeout = 45 * time.Second
	}
	if o.EPGTimeout <= 0 {
		o.EPGTimeout = 45 * time.Second
	}
	if o.APITimeout <= 0 {
		o.APITimeout = 30 * time.Second
	}
	if o.SeriesInfoTimeout <= 0 {
		o.SeriesInfoTimeout = 25 * time.Second
	}
}

// ForConfig selects the variant for a normalized configuration.
func ForConfig(cfg config.Addon, opts Options) Provider {
	opts.applyDefaults()
	if cfg.Provider == config.ProviderXtream || cfg.UseXtream {
		if cfg.XtreamUseM3U {
			return &XtreamM3U{opts: opts}
		}
		return &XtreamJSON{opts: opts}
	}
	return &Direct{opts: opts}
}

// ConfigError marks a configuration unusable for fetching: required
// URLs or credentials are missing. Fatal for the triggering refresh,
// but existing data stays.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "provider config: " + e.Reason
}

// FetchError wraps an upstream failure (network, timeout, non-2xx).
// Recoverable: the refresh aborts and the previous snapshot remains.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("upstream fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
