// Package server exposes the addon over HTTP: manifest, catalog,
// stream and meta resources under a per-install configuration token,
// plus health and the channel logo proxy.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/snapetech/stremtv/internal/addon"
	"github.com/snapetech/stremtv/internal/config"
)

type ctxKey int

const configKey ctxKey = iota

// Server routes addon requests to per-configuration services.
type Server struct {
	registry *addon.Registry
	log      zerolog.Logger
	router   chi.Router
}

// New builds the server and its routes.
func New(registry *addon.Registry, log zerolog.Logger) *Server {
	s := &Server{registry: registry, log: log}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log))

	r.Get("/health", s.handleHealth)
	r.Get("/probe", s.handleProbe)
	r.Get("/favicon.ico", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	r.Route("/{token}", func(r chi.Router) {
		r.Use(s.withConfig)
		r.Get("/manifest.json", s.handleManifest)
		r.Get("/catalog/{type}/{id}.json", s.handleCatalog)
		r.Get("/catalog/{type}/{id}/{extra}.json", s.handleCatalog)
		r.Get("/stream/{type}/{id}.json", s.handleStream)
		r.Get("/meta/{type}/{id}.json", s.handleMeta)
		r.Get("/logo/{tvgID}.png", s.handleLogo)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})

	s.router = r
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe runs the server until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("http server listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// withConfig decodes the token path segment into a configuration and
// rejects garbage before any handler runs. Installs without an
// instance id get a generated one so their logs are tellable apart.
func (s *Server) withConfig(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := chi.URLParam(r, "token")
		// Too short to be a config token; treat as a missed route
		// rather than a bad configuration.
		if len(token) < 8 {
			writeError(w, http.StatusNotFound, "Not found")
			return
		}
		cfg, err := config.ParseToken(token)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid configuration token")
			return
		}
		if cfg.InstanceID == "" {
			cfg.InstanceID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), configKey, cfg)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestConfig(r *http.Request) config.Addon {
	cfg, _ := r.Context().Value(configKey).(config.Addon)
	return cfg
}

func (s *Server) service(w http.ResponseWriter, r *http.Request) (*addon.Service, bool) {
	svc, err := s.registry.Service(r.Context(), requestConfig(r))
	if err != nil {
		s.log.Error().Err(err).Msg("addon build failed")
		writeError(w, http.StatusInternalServerError, "Addon build error")
		return nil, false
	}
	return svc, true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "OK",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleManifest(w http.ResponseWriter, r *http.Request) {
	svc, ok := s.service(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, svc.Manifest())
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	svc, ok := s.service(w, r)
	if !ok {
		return
	}
	extra := parseExtra(chi.URLParam(r, "extra"))
	metas := svc.Catalog(r.Context(), chi.URLParam(r, "type"), chi.URLParam(r, "id"), extra)
	writeJSON(w, http.StatusOK, map[string]any{"metas": metas})
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	svc, ok := s.service(w, r)
	if !ok {
		return
	}
	streams := []addon.Stream{}
	if st, found := svc.Stream(r.Context(), chi.URLParam(r, "id")); found {
		streams = append(streams, st)
	}
	writeJSON(w, http.StatusOK, map[string]any{"streams": streams})
}

func (s *Server) handleMeta(w http.ResponseWriter, r *http.Request) {
	svc, ok := s.service(w, r)
	if !ok {
		return
	}
	if meta, found := svc.Meta(r.Context(), chi.URLParam(r, "id")); found {
		writeJSON(w, http.StatusOK, map[string]any{"meta": meta})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"meta": nil})
}

// parseExtra decodes the Stremio extra path segment, a URL-encoded
// query string like "genre=News&skip=100". ParseQuery supplies the
// one and only unescape pass; decoding beforehand would corrupt
// values with literal percent escapes in them.
func parseExtra(raw string) addon.Extra {
	var extra addon.Extra
	if raw == "" {
		return extra
	}
	values, err := url.ParseQuery(raw)
	if err != nil {
		return extra
	}
	extra.Genre = values.Get("genre")
	extra.Search = values.Get("search")
	if skip, err := strconv.Atoi(values.Get("skip")); err == nil {
		extra.Skip = skip
	}
	return extra
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Debug().
				Str("method", r.Method).
				Str("path", redactToken(r.URL.Path)).
				Int("status", ww.Status()).
				Dur("elapsed", time.Since(start)).
				Msg("request")
		})
	}
}

// redactToken hides the configuration token path segment, which
// carries credentials.
func redactToken(path string) string {
	parts := strings.SplitN(strings.TrimPrefix(path, "/"), "/", 2)
	if len(parts) == 2 && len(parts[0]) >= 8 {
		return "/[token]/" + parts[1]
	}
	return path
}
