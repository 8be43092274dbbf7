// Package config holds the addon configuration model (per-install,
// token-carried) and the process-level settings loaded from the
// environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Settings are process-wide knobs. Load from env; defaults match the
// documented deployment profile.
type Settings struct {
	ListenAddr string

	// Cache layer
	CacheEnabled    bool
	MaxCacheEntries int
	CacheTTL        time.Duration
	RedisURL        string // empty = no shared tier

	// Upstream fetch timeouts
	PlaylistTimeout   time.Duration
	EPGTimeout        time.Duration
	APITimeout        time.Duration
	SeriesInfoTimeout time.Duration

	// Refresh gating
	UpdateInterval time.Duration // skip refresh when last success is younger
	RetryInterval  time.Duration // extra gate while the store is populated

	LogLevel string
}

// Load reads Settings from the environment.
func Load() *Settings {
	s := &Settings{
		ListenAddr:        getEnv("STREMTV_LISTEN", ":7000"),
		CacheEnabled:      getEnvBool("CACHE_ENABLED", true),
		MaxCacheEntries:   getEnvInt("MAX_CACHE_ENTRIES", 100),
		CacheTTL:          getEnvDuration("CACHE_TTL", 6*time.Hour),
		RedisURL:          os.Getenv("REDIS_URL"),
		PlaylistTimeout:   getEnvDuration("STREMTV_PLAYLIST_TIMEOUT", 45*time.Second),
		EPGTimeout:        getEnvDuration("STREMTV_EPG_TIMEOUT", 45*time.Second),
		APITimeout:        getEnvDuration("STREMTV_API_TIMEOUT", 30*time.Second),
		SeriesInfoTimeout: getEnvDuration("STREMTV_SERIES_INFO_TIMEOUT", 25*time.Second),
		UpdateInterval:    getEnvDuration("STREMTV_UPDATE_INTERVAL", time.Hour),
		RetryInterval:     getEnvDuration("STREMTV_RETRY_INTERVAL", 15*time.Minute),
		LogLevel:          getEnv("STREMTV_LOG_LEVEL", "info"),
	}
	if s.MaxCacheEntries <= 0 {
		s.MaxCacheEntries = 100
	}
	if s.CacheTTL <= 0 {
		s.CacheTTL = 6 * time.Hour
	}
	if s.UpdateInterval <= 0 {
		s.UpdateInterval = time.Hour
	}
	if s.RetryInterval <= 0 {
		s.RetryInterval = 15 * time.Minute
	}
	return s
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		n, _ := strconv.Atoi(v)
		return n
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "1" || strings.EqualFold(v, "true") || strings.EqualFold(v, "yes")
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
