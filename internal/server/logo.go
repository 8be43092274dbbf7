package server

import (
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/snapetech/stremtv/internal/httpclient"
)

// Community logo repositories tried in order, {id} replaced per
// candidate.
var logoSources = []string{
	"https://raw.githubusercontent.com/iptv-org/epg/master/logos/{id}.png",
	"https://raw.githubusercontent.com/iptv-org/iptv/master/logos/{id}.png",
}

var (
	countrySuffixRe = regexp.MustCompile(`\.[a-z]{2,3}$`)
	nonAlnumRe      = regexp.MustCompile(`[^a-zA-Z0-9]+`)
)

// logoCandidates expands one tvg id into the lookup spellings the
// community repositories use: the raw id, the id without its country
// suffix, and hyphenated/underscored forms of that.
func logoCandidates(tvgID string) []string {
	noCountry := countrySuffixRe.ReplaceAllString(tvgID, "")
	forms := []string{
		tvgID,
		noCountry,
		nonAlnumRe.ReplaceAllString(noCountry, "-"),
		nonAlnumRe.ReplaceAllString(noCountry, "_"),
	}
	seen := make(map[string]struct{}, len(forms))
	var out []string
	for _, f := range forms {
		if f == "" {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

// handleLogo proxies a channel logo from the community repositories,
// falling back to a generated placeholder when no spelling resolves.
func (s *Server) handleLogo(w http.ResponseWriter, r *http.Request) {
	tvgID := chi.URLParam(r, "tvgID")

	client := httpclient.WithTimeout(10 * time.Second)
	for _, cand := range logoCandidates(tvgID) {
		for _, template := range logoSources {
			logoURL := strings.Replace(template, "{id}", url.PathEscape(cand), 1)
			req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, logoURL, nil)
			if err != nil {
				continue
			}
			// Candidate misses are expected; the fallback chain is the
			// retry, so no per-request retry policy applies.
			release := httpclient.AcquireHost(logoURL)
			resp, err := client.Do(req)
			release()
			if err != nil {
				continue
			}
			if resp.StatusCode != http.StatusOK {
				resp.Body.Close()
				continue
			}
			ct := resp.Header.Get("Content-Type")
			if ct == "" {
				ct = "image/png"
			}
			w.Header().Set("Content-Type", ct)
			w.Header().Set("Cache-Control", "public, max-age=21600")
			_, _ = io.Copy(w, io.LimitReader(resp.Body, 4<<20))
			resp.Body.Close()
			return
		}
	}

	fallback := countrySuffixRe.ReplaceAllString(tvgID, "")
	fallback = strings.ToUpper(fallback)
	if len(fallback) > 12 {
		fallback = fallback[:12]
	}
	http.Redirect(w, r,
		"https://via.placeholder.com/300x400/333333/FFFFFF?text="+url.QueryEscape(fallback),
		http.StatusFound)
}
