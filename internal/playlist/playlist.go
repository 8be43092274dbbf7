// Package playlist parses M3U text into catalog items.
//
// The format is line-oriented: a `#EXTINF:` directive carries the
// duration, an optional attribute block and the display name; the next
// non-comment line is the stream URL and finalizes the entry. Anything
// else (headers, other directives, orphan URLs) is ignored.
package playlist

import (
	"bufio"
	"regexp"
	"strconv"
	"strings"

	"github.com/snapetech/stremtv/internal/catalog"
)

const maxLineSize = 1 << 20 // 1 MiB per line

var (
	extinfRe = regexp.MustCompile(`^#EXTINF:(-?\d+)(?:\s+(.*))?,(.*)`)

	// key="value" pairs; keys are word chars and hyphens. Values stop
	// at the closing quote, so embedded quotes are not supported;
	// a known format limitation, not worth guessing around.
	attrRe = regexp.MustCompile(`([\w-]+)="([^"]*)"`)

	movieNameRe  = []*regexp.Regexp{
		regexp.MustCompile(`\(\d{4}\)`),
		regexp.MustCompile(`\d{4}\.`),
		regexp.MustCompile(`(?i)(HD|FHD|4K)$`),
	}
	seriesCodeRe   = regexp.MustCompile(`(?i)\bS\d{1,2}E\d{1,2}\b`)
	seriesSeasonRe = regexp.MustCompile(`(?i)\bSeason\s?\d+`)
)

// Parse scans M3U text and returns the entries in document order.
// Malformed EXTINF lines are skipped; an EXTINF without a following
// URL line is discarded. Parse never fails: worst case is an empty
// slice.
func Parse(text string) []catalog.Item {
	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(nil, maxLineSize)
	var items []catalog.Item
	var pending *catalog.Item
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#EXTINF:") {
			// A new EXTINF before a URL silently drops the previous
			// incomplete entry.
			pending = parseEXTINF(line)
			continue
		}
		if strings.HasPrefix(line, "#") {
			continue
		}
		if pending == nil {
			continue
		}
		it := *pending
		pending = nil
		it.URL = line
		finalize(&it)
		items = append(items, it)
	}
	return items
}

func parseEXTINF(line string) *catalog.Item {
	m := extinfRe.FindStringSubmatch(line)
	if m == nil {
		return nil
	}
	duration, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	return &catalog.Item{
		Duration:   duration,
		Attributes: parseAttributes(m[2]),
		Name:       strings.TrimSpace(m[3]),
	}
}

func parseAttributes(s string) map[string]string {
	attrs := make(map[string]string)
	for _, m := range attrRe.FindAllStringSubmatch(s, -1) {
		attrs[m[1]] = m[2] // duplicates overwrite
	}
	return attrs
}

// finalize derives the well-known fields and the stable id once the
// stream URL is known.
func finalize(it *catalog.Item) {
	it.Logo = it.Attr("tvg-logo")
	it.EPGChannelID = it.Attr("tvg-id")
	if it.EPGChannelID == "" {
		it.EPGChannelID = it.Attr("tvg-name")
	}
	it.Category = it.Attr("group-title")
	it.Type = Classify(it.Name, it.Category)
	it.ID = catalog.ItemID(it.Name, it.URL)
}

// Classify applies the three-tier policy: movie markers first, then
// series markers, else live tv. First match wins.
func Classify(name, groupTitle string) catalog.ItemType {
	group := strings.ToLower(groupTitle)
	lower := strings.ToLower(name)
	if strings.Contains(group, "movie") || strings.Contains(lower, "movie") || IsMovieFormat(name) {
		return catalog.TypeMovie
	}
	if strings.Contains(group, "series") || strings.Contains(group, "show") ||
		seriesCodeRe.MatchString(name) || seriesSeasonRe.MatchString(name) {
		return catalog.TypeSeries
	}
	return catalog.TypeTV
}

// IsMovieFormat reports whether the display name looks like a movie
// title: trailing "(YYYY)", embedded "YYYY.", or an HD/FHD/4K suffix.
func IsMovieFormat(name string) bool {
	for _, re := range movieNameRe {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

// YearFromName extracts a "(YYYY)" year from a display name, or 0.
func YearFromName(name string) int {
	m := yearRe.FindStringSubmatch(name)
	if m == nil {
		return 0
	}
	y, _ := strconv.Atoi(m[1])
	return y
}

var yearRe = regexp.MustCompile(`\((\d{4})\)`)
