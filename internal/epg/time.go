package epg

import (
	"regexp"
	"strconv"
	"time"
)

// xmltvStampRe matches the canonical XMLTV timestamp: 14 digits
// optionally followed by a ±HHMM zone, with or without a separating
// space.
var xmltvStampRe = regexp.MustCompile(`^(\d{14})(?:\s*([+-]\d{4}))?`)

// fallbackLayouts are tried when the canonical form does not match.
// Producers in the wild emit truncated stamps and RFC shapes.
var fallbackLayouts = []string{
	"20060102150405 -0700",
	"20060102150405",
	"200601021504",
	"20060102",
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
}

// Resolver turns raw XMLTV timestamps into wall-clock times. A zone
// suffix in the stamp is honored; a stamp without one is read as
// local time in loc. XMLTV producers disagree on what a bare stamp
// means, and "local to this server" is the documented choice here.
// OffsetHours is then applied as a flat shift (fractions allowed).
type Resolver struct {
	OffsetHours float64
	Loc         *time.Location // nil = time.Local
	Now         func() time.Time
}

func (r Resolver) location() *time.Location {
	if r.Loc != nil {
		return r.Loc
	}
	return time.Local
}

func (r Resolver) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// Resolve parses raw and applies the configured offset. It never
// fails: a stamp no layout accepts resolves to the current time so
// callers comparing against "now" degrade instead of crashing.
func (r Resolver) Resolve(raw string) time.Time {
	t := r.shift(r.parse(raw))
	return t
}

func (r Resolver) shift(t time.Time) time.Time {
	if r.OffsetHours == 0 {
		return t
	}
	return t.Add(time.Duration(r.OffsetHours * float64(time.Hour)))
}

func (r Resolver) parse(raw string) time.Time {
	if m := xmltvStampRe.FindStringSubmatch(raw); m != nil {
		base, zone := m[1], m[2]
		year, _ := strconv.Atoi(base[0:4])
		month, _ := strconv.Atoi(base[4:6])
		day, _ := strconv.Atoi(base[6:8])
		hour, _ := strconv.Atoi(base[8:10])
		minute, _ := strconv.Atoi(base[10:12])
		sec, _ := strconv.Atoi(base[12:14])
		loc := r.location()
		if zone != "" {
			if z, err := parseZone(zone); err == nil {
				loc = z
			}
		}
		return time.Date(year, time.Month(month), day, hour, minute, sec, 0, loc)
	}
	for _, layout := range fallbackLayouts {
		if t, err := time.ParseInLocation(layout, raw, r.location()); err == nil {
			return t
		}
	}
	return r.now()
}

func parseZone(s string) (*time.Location, error) {
	sign := 1
	if s[0] == '-' {
		sign = -1
	}
	hh, err := strconv.Atoi(s[1:3])
	if err != nil {
		return nil, err
	}
	mm, err := strconv.Atoi(s[3:5])
	if err != nil {
		return nil, err
	}
	offset := sign * (hh*3600 + mm*60)
	return time.FixedZone(s, offset), nil
}
