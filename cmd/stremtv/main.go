// Command stremtv serves the Stremio IPTV addon: M3U playlists and
// Xtream panels in, catalog/stream/meta resources out.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/snapetech/stremtv/internal/addon"
	"github.com/snapetech/stremtv/internal/cache"
	"github.com/snapetech/stremtv/internal/config"
	"github.com/snapetech/stremtv/internal/provider"
	"github.com/snapetech/stremtv/internal/server"
)

func main() {
	// Local development convenience; absent in production images.
	_ = config.LoadEnvFile(".env")

	settings := config.Load()

	level, err := zerolog.ParseLevel(settings.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()

	var snapshots *cache.Snapshots
	if settings.CacheEnabled {
		var shared cache.Store
		if settings.RedisURL != "" {
			rc, err := cache.NewRedis(settings.RedisURL, log.With().Str("component", "redis").Logger())
			if err != nil {
				log.Warn().Err(err).Msg("redis unreachable, running with local cache only")
			} else {
				shared = rc
				defer rc.Close()
				log.Info().Msg("shared snapshot cache enabled")
			}
		}
		snapshots = cache.NewSnapshots(settings.MaxCacheEntries, settings.CacheTTL,
			shared, log.With().Str("component", "cache").Logger())
	} else {
		log.Info().Msg("caching disabled")
	}

	registry := addon.NewRegistry(addon.RegistryOptions{
		CacheEnabled:   settings.CacheEnabled,
		MaxEntries:     settings.MaxCacheEntries,
		TTL:            settings.CacheTTL,
		UpdateInterval: settings.UpdateInterval,
		RetryInterval:  settings.RetryInterval,
		Provider: provider.Options{
			PlaylistTimeout:   settings.PlaylistTimeout,
			EPGTimeout:        settings.EPGTimeout,
			APITimeout:        settings.APITimeout,
			SeriesInfoTimeout: settings.SeriesInfoTimeout,
			Log:               log.With().Str("component", "provider").Logger(),
		},
		Snapshots: snapshots,
		Log:       log.With().Str("component", "addon").Logger(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(registry, log.With().Str("component", "server").Logger())
	if err := srv.ListenAndServe(ctx, settings.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server exited")
	}
	log.Info().Msg("shutdown complete")
}
