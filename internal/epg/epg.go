// Package epg parses XMLTV guide data and answers time-window queries
// against it.
package epg

import (
	"encoding/xml"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/snapetech/stremtv/internal/catalog"
)

// Guide maps an XMLTV channel id to its programmes in document order.
// The source order is assumed chronological and is not re-sorted.
type Guide map[string][]catalog.Programme

// Parse decodes an XMLTV document. Any XML error yields an empty
// guide: a broken EPG feed must never take channel ingestion down
// with it.
func Parse(r io.Reader) Guide {
	dec := xml.NewDecoder(r)
	// Provider feeds routinely declare single-byte charsets; pass
	// the bytes through rather than failing on the declaration.
	dec.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		return input, nil
	}
	guide := Guide{}
	for {
		tok, err := dec.Token()
		if err != nil {
			if err == io.EOF {
				return guide
			}
			return Guide{}
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "programme" {
			continue
		}
		var node struct {
			Channel string   `xml:"channel,attr"`
			Start   string   `xml:"start,attr"`
			Stop    string   `xml:"stop,attr"`
			Title   []string `xml:"title"`
			Desc    []string `xml:"desc"`
		}
		if err := dec.DecodeElement(&node, &start); err != nil {
			return Guide{}
		}
		title := "Unknown"
		if len(node.Title) > 0 && strings.TrimSpace(node.Title[0]) != "" {
			title = strings.TrimSpace(node.Title[0])
		}
		desc := ""
		if len(node.Desc) > 0 {
			desc = strings.TrimSpace(node.Desc[0])
		}
		guide[node.Channel] = append(guide[node.Channel], catalog.Programme{
			ChannelID:   node.Channel,
			Start:       node.Start,
			Stop:        node.Stop,
			Title:       title,
			Description: desc,
		})
	}
}

// ParseString is Parse over a string, for callers holding the body
// in memory already.
func ParseString(s string) Guide {
	return Parse(strings.NewReader(s))
}

// Programme is a resolved guide entry: raw row plus wall-clock start
// and stop after timezone and offset resolution.
type Programme struct {
	catalog.Programme
	StartTime time.Time
	StopTime  time.Time
}

// Current returns the first programme (in document order) whose
// [start, stop] interval contains now, resolved through r. The second
// return is false when no interval matches.
func (g Guide) Current(r Resolver, channelID string, now time.Time) (Programme, bool) {
	for _, p := range g[channelID] {
		start := r.Resolve(p.Start)
		stop := r.Resolve(p.Stop)
		if !now.Before(start) && !now.After(stop) {
			return Programme{Programme: p, StartTime: start, StopTime: stop}, true
		}
	}
	return Programme{}, false
}

// Upcoming collects programmes starting after now. Collection stops
// once limit entries are gathered during the single forward scan, and
// only that subset is sorted by start time. Entries past the cutoff
// are never considered, even if they start earlier. Long-standing
// behavior callers depend on; do not change to a global top-K.
func (g Guide) Upcoming(r Resolver, channelID string, now time.Time, limit int) []Programme {
	if limit <= 0 {
		return nil
	}
	var out []Programme
	for _, p := range g[channelID] {
		if len(out) >= limit {
			break
		}
		start := r.Resolve(p.Start)
		if start.After(now) {
			out = append(out, Programme{
				Programme: p,
				StartTime: start,
				StopTime:  r.Resolve(p.Stop),
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out
}
