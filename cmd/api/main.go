package main

import (
	"context"
	"fmt"
	"net/http"

	"ghoststream/internal/auth"
	"ghoststream/internal/config"
	"ghoststream/internal/publicip"
	"ghoststream/internal/store"
	"ghoststream/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		l := logger.New("info")
		l.Fatal().Err(err).Msg("invalid config")
	}
	log := logger.New(cfg.LogLevel)

	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DatabasePath).Msg("open database")
	}
	defer db.Close()

	authSvc := auth.NewService(cfg.AppSecret, cfg.TokenTTL, db.UserSecrets)
	// The snapshot is built once, before the listener starts accepting.
	// Users created later stay invisible until an explicit reload.
	if err := authSvc.Reload(ctx); err != nil {
		log.Fatal().Err(err).Msg("build credential snapshot")
	}

	baseURL, err := resolveBaseURL(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("resolve external base url")
	}
	log.Info().Str("base_url", baseURL).Msg("manifest rewrite target")

	r := newRouter(cfg, log, db, authSvc, baseURL)

	addr := ":" + cfg.Port
	log.Info().Str("addr", addr).Bool("public_media_routes", cfg.PublicMediaRoutes).Msg("gateway listening")
	if err := http.ListenAndServe(addr, r); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

// resolveBaseURL returns the prefix rewritten manifests point at:
// configured override, else http://{domain-or-public-ip}:{port}/media.
func resolveBaseURL(ctx context.Context, cfg *config.Config) (string, error) {
	if cfg.BaseURL != "" {
		return cfg.BaseURL, nil
	}
	host, err := publicip.NewResolver().ExternalHost(ctx, cfg.PublicDomain)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("http://%s:%s/media", host, cfg.Port), nil
}
