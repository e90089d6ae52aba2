package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/tiagomennab/ensaio-fotos-sub001/internal/http/handlers"
	"github.com/tiagomennab/ensaio-fotos-sub001/internal/infra"
	"github.com/tiagomennab/ensaio-fotos-sub001/internal/middleware"
	"github.com/tiagomennab/ensaio-fotos-sub001/internal/storage"
)

// NewRouter wires the API routes. files is nil unless media is kept on the
// local filesystem, in which case stored objects are served at its mount path.
func NewRouter(cfg *infra.Config, logger zerolog.Logger, app *handlers.App, files *storage.FileStore) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(logger),
	)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(middleware.CORS(cfg.CORSAllowedOrigins))
	}

	// Health
	r.Get("/v1/healthz", app.Health)

	// Provider callbacks
	r.With(chimw.Timeout(cfg.WebhookTimeout)).Post("/v1/webhooks/provider", app.ProviderWebhook)

	// Stored media for the filesystem backend
	if files != nil {
		r.Method(http.MethodGet, files.MountPath()+"/*", files.Handler())
	}

	// Realtime stream, only when sessions can be verified
	if cfg.JWTSecret != "" && app.Hub != nil {
		r.With(
			middleware.AuthJWT(cfg.JWTSecret),
			middleware.RateLimit(rateLimit(cfg), time.Minute),
		).Get("/v1/realtime", app.Realtime)
	}

	return r
}

func rateLimit(cfg *infra.Config) int {
	if cfg.RateLimitPerMin > 0 {
		return cfg.RateLimitPerMin
	}
	return 30
}
