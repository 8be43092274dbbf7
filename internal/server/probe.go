package server

import (
	"net/http"

	"github.com/snapetech/stremtv/internal/probe"
	"github.com/snapetech/stremtv/internal/safeurl"
)

// handleProbe is the configure page's prescan endpoint. It checks a
// playlist URL (?url=) or Xtream credentials (?xtreamUrl=&username=
// &password=) and reports reachability without installing anything.
func (s *Server) handleProbe(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if base := q.Get("xtreamUrl"); base != "" {
		if err := safeurl.Check(base); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		res := probe.XtreamAPI(r.Context(), base, q.Get("username"), q.Get("password"), nil)
		writeJSON(w, http.StatusOK, res)
		return
	}

	m3u := q.Get("url")
	if err := safeurl.Check(m3u); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, probe.Playlist(r.Context(), m3u, nil))
}
