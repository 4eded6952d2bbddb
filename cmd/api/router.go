package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"

	"ghoststream/internal/auth"
	"ghoststream/internal/config"
	"ghoststream/internal/metrics"
	"ghoststream/internal/store"
)

func newRouter(cfg *config.Config, log zerolog.Logger, st store.Store, authSvc *auth.Service, baseURL string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(cfg.LoginRateLimit, cfg.LoginRateWindow))
		r.Post("/auth/login", handleLogin(authSvc, log))
	})

	// Playback routes. Players cannot always attach headers, so a token
	// may arrive as a query parameter; PublicMediaRoutes disables the
	// check entirely for reverse-proxy deployments that enforce their own.
	r.Group(func(r chi.Router) {
		if !cfg.PublicMediaRoutes {
			r.Use(authSvc.RequireAuth)
		}
		manifest := handleManifest(cfg.ChunksPath, baseURL, log)
		chunk := handleChunk(cfg.ChunksPath, log)
		subtitles := handleSubtitles(cfg.ChunksPath, log)
		r.Get("/media/{id}/manifest", manifest)
		r.Post("/media/{id}/manifest", manifest)
		r.Get("/media/{id}/chunk/{name}", chunk)
		r.Post("/media/{id}/chunk/{name}", chunk)
		r.Get("/media/{id}/subtitles/{lang}", subtitles)
		r.Post("/media/{id}/subtitles/{lang}", subtitles)
	})

	r.Group(func(r chi.Router) {
		r.Use(authSvc.RequireAuth)
		r.Get("/media/data", handleMediaData(st, log))
		r.Get("/media/{id}/watch_data", handleMediaWatchData(st, log))
		r.Post("/cover/{id}", handleCover(st, cfg.CoversPath, log))
		r.Post("/user/metadata", handleUserMetadata(st, log))
		r.Post("/profile/add", handleProfileAdd(st, log))
		r.Post("/profile/delete", handleProfileDelete(st, log))
		r.Post("/profile/list", handleProfileList(st, log))
		r.Post("/update_media_metadata", handleUpdateWatchState(st, log))
		r.Post("/admin/reload_credentials", handleReloadCredentials(authSvc, log))
	})

	return r
}
