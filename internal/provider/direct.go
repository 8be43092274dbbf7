package provider

import (
	"context"

	"github.com/snapetech/stremtv/internal/catalog"
	"github.com/snapetech/stremtv/internal/config"
	"github.com/snapetech/stremtv/internal/epg"
	"github.com/snapetech/stremtv/internal/httpclient"
	"github.com/snapetech/stremtv/internal/playlist"
	"github.com/snapetech/stremtv/internal/safeurl"
	"github.com/snapetech/stremtv/internal/series"
)

// Direct fetches a plain M3U playlist URL, optionally paired with an
// XMLTV EPG URL. Series come from the grouping heuristic over the
// playlist itself, so episodes are fully known at fetch time.
type Direct struct {
	opts Options
}

func (d *Direct) FetchData(ctx context.Context, cfg config.Addon) (*Result, error) {
	if cfg.M3UURL == "" {
		return nil, &ConfigError{Reason: "direct provider requires m3uUrl"}
	}
	if err := safeurl.Check(cfg.M3UURL); err != nil {
		return nil, &ConfigError{Reason: err.Error()}
	}

	body, err := httpclient.GetBody(ctx, httpclient.WithTimeout(d.opts.PlaylistTimeout), cfg.M3UURL)
	if err != nil {
		return nil, &FetchError{URL: cfg.M3UURL, Err: err}
	}

	items := playlist.Parse(string(body))
	res := &Result{EPG: epg.Guide{}}
	var seriesItems []catalog.Item
	for _, it := range items {
		switch it.Type {
		case catalog.TypeMovie:
			res.Movies = append(res.Movies, it)
		case catalog.TypeSeries:
			seriesItems = append(seriesItems, it)
		default:
			res.Channels = append(res.Channels, it)
		}
	}

	if cfg.IncludeSeries {
		grouped := series.Group(seriesItems)
		res.Series = grouped.Series
		res.Episodes = grouped.Episodes
	}

	if cfg.EnableEPG && cfg.EPGURL != "" {
		res.EPG = fetchGuide(ctx, d.opts, cfg.EPGURL)
	}

	d.opts.Log.Debug().
		Int("channels", len(res.Channels)).
		Int("movies", len(res.Movies)).
		Int("series", len(res.Series)).
		Msg("direct fetch complete")
	return res, nil
}

// FetchSeriesInfo is a no-op for direct mode: episodes were computed
// during the playlist fetch and live in the store's index.
func (d *Direct) FetchSeriesInfo(ctx context.Context, cfg config.Addon, seriesID string) ([]catalog.Episode, error) {
	return nil, nil
}

// fetchGuide pulls and parses an XMLTV feed. Failures degrade to an
// empty guide; EPG problems never abort catalog ingestion.
func fetchGuide(ctx context.Context, opts Options, url string) epg.Guide {
	if err := safeurl.Check(url); err != nil {
		opts.Log.Warn().Err(err).Msg("epg url rejected, continuing without guide")
		return epg.Guide{}
	}
	body, err := httpclient.GetBody(ctx, httpclient.WithTimeout(opts.EPGTimeout), url)
	if err != nil {
		opts.Log.Warn().Err(err).Str("url", url).Msg("epg fetch failed, continuing without guide")
		return epg.Guide{}
	}
	guide := epg.ParseString(string(body))
	opts.Log.Debug().Int("epg_channels", len(guide)).Msg("epg parsed")
	return guide
}
