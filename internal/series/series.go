// Package series clusters series-classified playlist items into shows
// with episode lists, inferring the show name and (season, episode)
// numbering from the display titles.
package series

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/snapetech/stremtv/internal/catalog"
)

var (
	codeSuffixRe   = regexp.MustCompile(`(?i)\bS\d{1,2}E\d{1,2}\b.*$`)
	seasonSuffixRe = regexp.MustCompile(`(?i)\bSeason\s?\d+.*$`)
	sepTrailRe     = regexp.MustCompile(`[-._]+$`)

	codeRe          = regexp.MustCompile(`(?i)\bS(\d{1,2})E(\d{1,2})\b`)
	seasonEpisodeRe = regexp.MustCompile(`(?i)\bSeason\s?(\d{1,2}).*?\bEpisode\s?(\d{1,3})\b`)
	seasonEpRe      = regexp.MustCompile(`(?i)\bSeason\s?(\d{1,2}).*?\bEp\s?(\d{1,3})\b`)
)

// BaseName strips the episode suffix (S01E02..., Season 3...) and
// trailing separator punctuation from a display title. An empty
// result means the title carried no usable show name.
func BaseName(raw string) string {
	name := codeSuffixRe.ReplaceAllString(raw, "")
	name = seasonSuffixRe.ReplaceAllString(name, "")
	name = strings.TrimSpace(name)
	name = sepTrailRe.ReplaceAllString(name, "")
	return strings.TrimSpace(name)
}

// SeasonEpisode extracts numbering from a title. Patterns are tried
// in order: SxxEyy, "Season N ... Episode M", "Season N ... Ep M".
// Titles matching none default to season 1, episode 0.
func SeasonEpisode(title string) (season, episode int) {
	for _, re := range []*regexp.Regexp{codeRe, seasonEpisodeRe, seasonEpRe} {
		if m := re.FindStringSubmatch(title); m != nil {
			season, _ = strconv.Atoi(m[1])
			episode, _ = strconv.Atoi(m[2])
			if season < 1 {
				season = 1
			}
			return season, episode
		}
	}
	return 1, 0
}

// EpisodeID derives the stable episode id. Season and episode are
// part of the digest so two cuts sharing a stream URL still get
// distinct ids, and re-parsing identical input reproduces the id.
func EpisodeID(seriesID, streamURL string, season, episode int) string {
	return catalog.EpisodeIDPrefix + catalog.Digest(fmt.Sprintf("%s%s%d_%d", seriesID, streamURL, season, episode), 16)
}

// Result is the grouped output: the synthetic series records plus an
// episode index keyed by the bare series hash (the id without its
// prefix), matching what the lazy per-series lookup uses.
type Result struct {
	Series   []catalog.Series
	Episodes map[string][]catalog.Episode
}

// Group clusters items by exact base name. Items whose title strips
// to nothing contribute no series. The first-seen item seeds the
// series logo, plot and category. Grouping is recomputed in full on
// every refresh; there is no incremental merge.
//
// Base names are compared byte-for-byte: "The Wire" and "the wire"
// become two series. Known limitation for inconsistently formatted
// sources.
func Group(items []catalog.Item) Result {
	res := Result{Episodes: make(map[string][]catalog.Episode)}
	index := make(map[string]int) // base name -> position in res.Series
	for _, it := range items {
		base := BaseName(it.Name)
		if base == "" {
			continue
		}
		hash := catalog.Digest(base, 16)
		id := catalog.SeriesIDPrefix + hash
		if _, seen := index[base]; !seen {
			index[base] = len(res.Series)
			res.Series = append(res.Series, catalog.Series{
				ID:       id,
				SeriesID: hash,
				Name:     base,
				Poster:   it.Logo,
				Plot:     it.Attr("plot"),
				Category: it.Category,
				Attributes: map[string]string{
					"tvg-logo":    it.Logo,
					"group-title": it.Category,
					"plot":        it.Attr("plot"),
				},
			})
		}
		season, episode := SeasonEpisode(it.Name)
		res.Episodes[hash] = append(res.Episodes[hash], catalog.Episode{
			ID:        EpisodeID(id, it.URL, season, episode),
			Title:     it.Name,
			Season:    season,
			Episode:   episode,
			Thumbnail: it.Logo,
			StreamURL: it.URL,
		})
	}
	for hash := range res.Episodes {
		SortEpisodes(res.Episodes[hash])
	}
	return res
}

// SortEpisodes orders by (season, episode) ascending.
func SortEpisodes(eps []catalog.Episode) {
	sort.SliceStable(eps, func(i, j int) bool {
		if eps[i].Season != eps[j].Season {
			return eps[i].Season < eps[j].Season
		}
		return eps[i].Episode < eps[j].Episode
	})
}
