package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/snapetech/stremtv/internal/catalog"
	"github.com/snapetech/stremtv/internal/config"
	"github.com/snapetech/stremtv/internal/epg"
	"github.com/snapetech/stremtv/internal/httpclient"
	"github.com/snapetech/stremtv/internal/playlist"
	"github.com/snapetech/stremtv/internal/safeurl"
	"github.com/snapetech/stremtv/internal/series"
)

// XtreamJSON talks to an Xtream panel through player_api.php. Series
// come from get_series; their episodes are resolved lazily through
// get_series_info per series.
type XtreamJSON struct {
	opts Options
}

// XtreamM3U uses the panel's M3U compatibility endpoint (get.php) and
// runs the result through the playlist parser and the series grouper,
// the same pipeline as direct mode.
type XtreamM3U struct {
	opts Options
}

func xtreamCreds(cfg config.Addon) error {
	if cfg.XtreamURL == "" || cfg.XtreamUsername == "" || cfg.XtreamPassword == "" {
		return &ConfigError{Reason: "xtream mode requires url, username and password"}
	}
	if err := safeurl.Check(cfg.XtreamURL); err != nil {
		return &ConfigError{Reason: err.Error()}
	}
	return nil
}

func panelBase(cfg config.Addon) string {
	return strings.TrimSuffix(cfg.XtreamURL, "/")
}

func apiURL(cfg config.Addon, action string) string {
	return panelBase(cfg) + "/player_api.php?username=" + url.QueryEscape(cfg.XtreamUsername) +
		"&password=" + url.QueryEscape(cfg.XtreamPassword) +
		"&action=" + action
}

// epgSource returns the guide URL: a configured override wins,
// otherwise the panel's own XMLTV endpoint.
func epgSource(cfg config.Addon) string {
	if custom := strings.TrimSpace(cfg.EPGURL); custom != "" {
		return custom
	}
	return panelBase(cfg) + "/xmltv.php?username=" + url.QueryEscape(cfg.XtreamUsername) +
		"&password=" + url.QueryEscape(cfg.XtreamPassword)
}

// flexID tolerates the panel habit of sending ids as number or
// string, sometimes both within one response.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexID(n.String())
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexID(s)
		return nil
	}
	*f = ""
	return nil
}

func (f flexID) String() string { return string(f) }

type xtreamLiveStream struct {
	StreamID     flexID `json:"stream_id"`
	Name         string `json:"name"`
	StreamIcon   string `json:"stream_icon"`
	CategoryName string `json:"category_name"`
	EPGChannelID string `json:"epg_channel_id"`
}

type xtreamVODStream struct {
	StreamID           flexID `json:"stream_id"`
	Name               string `json:"name"`
	StreamIcon         string `json:"stream_icon"`
	ContainerExtension string `json:"container_extension"`
	Plot               string `json:"plot"`
	ReleaseDate        string `json:"releasedate"`
}

type xtreamSeries struct {
	SeriesID     flexID `json:"series_id"`
	Name         string `json:"name"`
	Cover        string `json:"cover"`
	Plot         string `json:"plot"`
	CategoryName string `json:"category_name"`
}

func (x *XtreamJSON) FetchData(ctx context.Context, cfg config.Addon) (*Result, error) {
	if err := xtreamCreds(cfg); err != nil {
		return nil, err
	}
	client := httpclient.WithTimeout(x.opts.APITimeout)
	res := &Result{EPG: epg.Guide{}}

	liveBody, err := httpclient.GetBody(ctx, client, apiURL(cfg, "get_live_streams"))
	if err != nil {
		return nil, &FetchError{URL: cfg.XtreamURL, Err: err}
	}
	var live []xtreamLiveStream
	// A panel answering 200 with an error object instead of an array
	// means no channels, not a failed refresh.
	_ = json.Unmarshal(liveBody, &live)
	for _, s := range live {
		sid := s.StreamID.String()
		if sid == "" {
			continue
		}
		res.Channels = append(res.Channels, catalog.Item{
			ID:           catalog.LiveIDPrefix + sid,
			Name:         s.Name,
			URL:          streamPath(cfg, "live", sid, "m3u8"),
			Duration:     -1,
			Type:         catalog.TypeTV,
			Logo:         s.StreamIcon,
			Category:     s.CategoryName,
			EPGChannelID: s.EPGChannelID,
			Attributes: map[string]string{
				"tvg-logo":    s.StreamIcon,
				"tvg-id":      s.EPGChannelID,
				"group-title": s.CategoryName,
			},
		})
	}

	vodBody, err := httpclient.GetBody(ctx, client, apiURL(cfg, "get_vod_streams"))
	if err != nil {
		return nil, &FetchError{URL: cfg.XtreamURL, Err: err}
	}
	var vod []xtreamVODStream
	_ = json.Unmarshal(vodBody, &vod)
	for _, s := range vod {
		sid := s.StreamID.String()
		if sid == "" {
			continue
		}
		ext := s.ContainerExtension
		if ext == "" {
			ext = "mp4"
		}
		res.Movies = append(res.Movies, catalog.Item{
			ID:       catalog.VODIDPrefix + sid,
			Name:     s.Name,
			URL:      streamPath(cfg, "movie", sid, ext),
			Type:     catalog.TypeMovie,
			Poster:   s.StreamIcon,
			Plot:     s.Plot,
			Year:     yearFromReleaseDate(s.ReleaseDate),
			Category: "Movies",
			Attributes: map[string]string{
				"tvg-logo":    s.StreamIcon,
				"group-title": "Movies",
				"plot":        s.Plot,
			},
		})
	}

	if cfg.IncludeSeries {
		res.Series = x.fetchSeriesList(ctx, client, cfg)
	}

	if cfg.EnableEPG {
		res.EPG = fetchGuide(ctx, x.opts, epgSource(cfg))
	}

	x.opts.Log.Debug().
		Int("channels", len(res.Channels)).
		Int("movies", len(res.Movies)).
		Int("series", len(res.Series)).
		Msg("xtream api fetch complete")
	return res, nil
}

// fetchSeriesList pulls get_series. The endpoint is missing or broken
// on plenty of panels; failure yields an empty list without aborting
// the refresh.
func (x *XtreamJSON) fetchSeriesList(ctx context.Context, client *http.Client, cfg config.Addon) []catalog.Series {
	body, err := httpclient.GetBody(ctx, client, apiURL(cfg, "get_series"))
	if err != nil {
		x.opts.Log.Warn().Err(err).Msg("get_series failed, continuing without series")
		return nil
	}
	var raw []xtreamSeries
	_ = json.Unmarshal(body, &raw)
	var out []catalog.Series
	for _, s := range raw {
		sid := s.SeriesID.String()
		if sid == "" {
			continue
		}
		out = append(out, catalog.Series{
			ID:       catalog.SeriesIDPrefix + sid,
			SeriesID: sid,
			Name:     s.Name,
			Poster:   s.Cover,
			Plot:     s.Plot,
			Category: s.CategoryName,
			Attributes: map[string]string{
				"tvg-logo":    s.Cover,
				"group-title": s.CategoryName,
				"plot":        s.Plot,
			},
		})
	}
	return out
}

type xtreamEpisode struct {
	ID                 flexID `json:"id"`
	Title              string `json:"title"`
	EpisodeNum         flexID `json:"episode_num"`
	Season             flexID `json:"season"`
	ContainerExtension string `json:"container_extension"`
	Info               struct {
		ReleaseDate string `json:"releasedate"`
		MovieImage  string `json:"movie_image"`
		Plot        string `json:"plot"`
	} `json:"info"`
}

// FetchSeriesInfo resolves one series through get_series_info. A
// failing or malformed response degrades to an empty episode list so
// a dead panel endpoint renders as an empty season, not an error page.
func (x *XtreamJSON) FetchSeriesInfo(ctx context.Context, cfg config.Addon, seriesID string) ([]catalog.Episode, error) {
	if err := xtreamCreds(cfg); err != nil {
		return nil, err
	}
	client := httpclient.WithTimeout(x.opts.SeriesInfoTimeout)
	infoURL := apiURL(cfg, "get_series_info") + "&series_id=" + url.QueryEscape(seriesID)
	body, err := httpclient.GetBody(ctx, client, infoURL)
	if err != nil {
		x.opts.Log.Warn().Err(err).Str("series_id", seriesID).Msg("get_series_info failed")
		return []catalog.Episode{}, nil
	}

	// episodes is a season-keyed object on most panels and an array
	// of arrays on some older ones.
	var doc struct {
		Episodes map[string][]xtreamEpisode `json:"episodes"`
	}
	var eps []xtreamEpisode
	if err := json.Unmarshal(body, &doc); err == nil && len(doc.Episodes) > 0 {
		for key, season := range doc.Episodes {
			for _, e := range season {
				if e.Season.String() == "" {
					e.Season = flexID(key)
				}
				eps = append(eps, e)
			}
		}
	} else {
		var alt struct {
			Episodes [][]xtreamEpisode `json:"episodes"`
		}
		if err := json.Unmarshal(body, &alt); err == nil {
			for _, season := range alt.Episodes {
				eps = append(eps, season...)
			}
		}
	}

	out := make([]catalog.Episode, 0, len(eps))
	for _, e := range eps {
		epID := e.ID.String()
		if epID == "" {
			continue
		}
		ext := e.ContainerExtension
		if ext == "" {
			ext = "mp4"
		}
		seasonNum := atoiDefault(e.Season.String(), 1)
		episodeNum := atoiDefault(e.EpisodeNum.String(), 0)
		out = append(out, catalog.Episode{
			ID:        catalog.EpisodeIDPrefix + epID,
			Title:     e.Title,
			Season:    seasonNum,
			Episode:   episodeNum,
			Released:  e.Info.ReleaseDate,
			Thumbnail: e.Info.MovieImage,
			StreamURL: streamPath(cfg, "series", epID, ext),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Season != out[j].Season {
			return out[i].Season < out[j].Season
		}
		return out[i].Episode < out[j].Episode
	})
	return out, nil
}

func (x *XtreamM3U) FetchData(ctx context.Context, cfg config.Addon) (*Result, error) {
	if err := xtreamCreds(cfg); err != nil {
		return nil, err
	}
	playlistURL := panelBase(cfg) + "/get.php?username=" + url.QueryEscape(cfg.XtreamUsername) +
		"&password=" + url.QueryEscape(cfg.XtreamPassword) +
		"&type=m3u_plus"
	if cfg.XtreamOutput != "" {
		playlistURL += "&output=" + url.QueryEscape(cfg.XtreamOutput)
	}

	body, err := httpclient.GetBody(ctx, httpclient.WithTimeout(x.opts.PlaylistTimeout), playlistURL)
	if err != nil {
		return nil, &FetchError{URL: cfg.XtreamURL, Err: err}
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

	if cfg.EnableEPG {
		res.EPG = fetchGuide(ctx, x.opts, epgSource(cfg))
	}

	x.opts.Log.Debug().
		Int("channels", len(res.Channels)).
		Int("movies", len(res.Movies)).
		Int("series", len(res.Series)).
		Msg("xtream m3u fetch complete")
	return res, nil
}

// FetchSeriesInfo is a no-op in M3U mode: the grouper already produced
// every episode the playlist exposes.
func (x *XtreamM3U) FetchSeriesInfo(ctx context.Context, cfg config.Addon, seriesID string) ([]catalog.Episode, error) {
	return nil, nil
}

// streamPath builds a panel stream URL of the shape
// {base}/{kind}/{user}/{pass}/{id}.{ext}.
func streamPath(cfg config.Addon, kind, id, ext string) string {
	return fmt.Sprintf("%s/%s/%s/%s/%s.%s",
		panelBase(cfg), kind,
		url.PathEscape(cfg.XtreamUsername), url.PathEscape(cfg.XtreamPassword),
		url.PathEscape(id), url.PathEscape(ext))
}

// yearFromReleaseDate reads the leading year of a panel releasedate
// ("2010-07-16" or just "2010").
func yearFromReleaseDate(s string) int {
	if len(s) < 4 {
		return 0
	}
	y, err := strconv.Atoi(s[:4])
	if err != nil || y < 1800 || y > 2200 {
		return 0
	}
	return y
}

func atoiDefault(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return n
}
