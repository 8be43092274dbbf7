// Package catalog holds the typed catalog model: playlist items
// normalized into channels, movies and series, plus the EPG guide data
// and the snapshot unit that the cache layer stores per configuration.
package catalog

import (
	"crypto/md5"
	"encoding/hex"
)

// ItemType classifies a playlist entry.
type ItemType string

const (
	TypeTV     ItemType = "tv"
	TypeMovie  ItemType = "movie"
	TypeSeries ItemType = "series"
)

// ID prefixes shared by parser, providers and the addon surface.
// Stream/meta requests route on these, so they are part of the
// external contract and must stay stable.
const (
	IDPrefix        = "iptv_"
	LiveIDPrefix    = "iptv_live_"
	VODIDPrefix     = "iptv_vod_"
	SeriesIDPrefix  = "iptv_series_"
	EpisodeIDPrefix = "iptv_series_ep_"
)

// Item is one normalized playlist entry. Channels and movies are Items
// distinguished by Type; series get their own synthetic record (see
// Series) built by the grouper.
type Item struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	URL          string            `json:"url"`
	Duration     int               `json:"duration"` // seconds; -1 for live
	Type         ItemType          `json:"type"`
	Logo         string            `json:"logo,omitempty"`
	Category     string            `json:"category,omitempty"`
	EPGChannelID string            `json:"epg_channel_id,omitempty"`
	Poster       string            `json:"poster,omitempty"` // movies
	Plot         string            `json:"plot,omitempty"`   // movies
	Year         int               `json:"year,omitempty"`   // movies
	Attributes   map[string]string `json:"attributes,omitempty"`
}

// Attr returns the raw EXTINF attribute value, or "" when absent.
func (it *Item) Attr(key string) string {
	if it.Attributes == nil {
		return ""
	}
	return it.Attributes[key]
}

// Series is a synthetic record grouping episode items that share a
// base name, or a show enumerated by an Xtream panel. Its ID never
// collides with an episode id (distinct prefixes).
type Series struct {
	ID         string            `json:"id"`
	SeriesID   string            `json:"series_id"` // provider-side key used for lazy episode fetch
	Name       string            `json:"name"`
	Poster     string            `json:"poster,omitempty"`
	Plot       string            `json:"plot,omitempty"`
	Category   string            `json:"category,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Episode belongs to exactly one series. Immutable once built;
// replaced wholesale on the next refresh.
type Episode struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Season    int    `json:"season"`
	Episode   int    `json:"episode"`
	Released  string `json:"released,omitempty"`
	Thumbnail string `json:"thumbnail,omitempty"`
	StreamURL string `json:"url"`
}

// Programme is one EPG row. ChannelID matches the XMLTV channel
// attribute, which is not necessarily an Item id. Start/Stop keep the
// raw XMLTV timestamp strings; resolution happens at lookup time so a
// configured hour offset applies uniformly.
type Programme struct {
	ChannelID   string `json:"channel"`
	Start       string `json:"start"`
	Stop        string `json:"stop"`
	Title       string `json:"title"`
	Description string `json:"desc,omitempty"`
}

// Snapshot is the unit of caching: everything one configuration's
// store committed on its last successful refresh. Holders receive
// copies, never live references.
type Snapshot struct {
	Channels []Item   `json:"channels"`
	Movies   []Item   `json:"movies"`
	Series   []Series `json:"series"`
	// Episodes carries the precomputed per-series episode lists for
	// playlist-derived series, keyed by the series provider key.
	// Panel-backed series resolve episodes lazily and are absent here.
	Episodes   map[string][]Episode   `json:"episodes,omitempty"`
	EPG        map[string][]Programme `json:"epgData,omitempty"`
	LastUpdate int64                  `json:"lastUpdate"` // unix millis of last successful refresh
}

// Clone returns a deep-enough copy: slices and the EPG map are
// duplicated so mutation of the copy is invisible to other holders.
// Items share attribute maps, which are treated as immutable after
// parse.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return &Snapshot{}
	}
	out := &Snapshot{LastUpdate: s.LastUpdate}
	out.Channels = append([]Item(nil), s.Channels...)
	out.Movies = append([]Item(nil), s.Movies...)
	out.Series = append([]Series(nil), s.Series...)
	if s.Episodes != nil {
		out.Episodes = make(map[string][]Episode, len(s.Episodes))
		for key, eps := range s.Episodes {
			out.Episodes[key] = append([]Episode(nil), eps...)
		}
	}
	if s.EPG != nil {
		out.EPG = make(map[string][]Programme, len(s.EPG))
		for ch, progs := range s.EPG {
			out.EPG[ch] = append([]Programme(nil), progs...)
		}
	}
	return out
}

// Empty reports whether the snapshot carries no catalog data at all.
func (s *Snapshot) Empty() bool {
	return s == nil || (len(s.Channels) == 0 && len(s.Movies) == 0 && len(s.Series) == 0)
}

// Digest returns the first n hex characters of the md5 of s. The
// 16-char form is the stable item/series id basis; collisions at that
// length are an accepted tradeoff inherited from the id scheme's
// original design.
func Digest(s string, n int) string {
	sum := md5.Sum([]byte(s))
	h := hex.EncodeToString(sum[:])
	if n > 0 && n < len(h) {
		return h[:n]
	}
	return h
}

// ItemID builds the deterministic playlist item id from name and url.
func ItemID(name, url string) string {
	return IDPrefix + Digest(name+url, 16)
}
