package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/tiagomennab/ensaio-fotos-sub001/internal/adapter/repo"
	"github.com/tiagomennab/ensaio-fotos-sub001/internal/classifier"
	"github.com/tiagomennab/ensaio-fotos-sub001/internal/credits"
	"github.com/tiagomennab/ensaio-fotos-sub001/internal/http/handlers"
	httpapi "github.com/tiagomennab/ensaio-fotos-sub001/internal/http/httpapi"
	"github.com/tiagomennab/ensaio-fotos-sub001/internal/infra"
	"github.com/tiagomennab/ensaio-fotos-sub001/internal/media"
	"github.com/tiagomennab/ensaio-fotos-sub001/internal/realtime"
	"github.com/tiagomennab/ensaio-fotos-sub001/internal/reconcile"
	"github.com/tiagomennab/ensaio-fotos-sub001/internal/storage"
)

func main() {
	// Load .env when present
	_ = godotenv.Load(".env", ".env.local")

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()
	runner := infra.NewSQLRunner(dbpool, logger)

	rdb, err := infra.NewRedisClient(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}
	if rdb != nil {
		defer rdb.Close()
	}

	store, err := newObjectStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialise object storage")
	}

	generations := repo.NewGenerationRepository(runner)
	trainings := repo.NewTrainingRepository(runner)
	ledger := repo.NewLedgerRepository(runner)

	thumbs := media.DefaultThumbnailer()
	if cfg.ThumbnailSize > 0 {
		thumbs.Width, thumbs.Height = cfg.ThumbnailSize, cfg.ThumbnailSize
	}
	persister := media.NewPersister(media.Options{
		Fetcher:       media.NewFetcher(nil),
		Store:         store,
		Thumbnails:    thumbs,
		ImagePolicy:   media.Policy{Timeout: cfg.ImageFetchTimeout, MaxBytes: cfg.MaxImageBytes, AllowedTypes: media.ImagePolicy.AllowedTypes},
		VideoPolicy:   media.Policy{Timeout: cfg.VideoFetchTimeout, MaxBytes: cfg.MaxVideoBytes, AllowedTypes: media.VideoPolicy.AllowedTypes},
		UploadTimeout: cfg.UploadTimeout,
		Logger:        logger,
	})

	hub := realtime.NewHub(cfg.CORSAllowedOrigins, logger)
	defer hub.Close()
	publisher, locker := realtimeWiring(ctx, rdb, hub, cfg, logger)

	engine := reconcile.NewEngine(reconcile.Options{
		Classifier:  classifier.New(generations, trainings, logger),
		Generations: generations,
		Trainings:   trainings,
		Media:       persister,
		Credits:     credits.NewService(ledger, logger),
		Publisher:   publisher,
		Locker:      locker,
		Logger:      logger,
	})

	app, err := handlers.NewApp(cfg, logger, engine)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid webhook configuration")
	}
	app.DB = dbpool
	if cfg.JWTSecret != "" {
		app.Hub = hub
	}
	if !cfg.WebhookAuthEnabled() {
		logger.Warn().Msg("WEBHOOK_SECRET is not set: provider callbacks are NOT authenticated")
	}

	files, _ := store.(*storage.FileStore)
	router := httpapi.NewRouter(cfg, logger, app, files)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}

func newObjectStore(ctx context.Context, cfg *infra.Config) (storage.ObjectStore, error) {
	if cfg.StorageBackend == infra.StorageBackendS3 {
		return storage.NewS3Store(ctx, storage.S3Options{
			Bucket:        cfg.S3Bucket,
			Region:        cfg.S3Region,
			Endpoint:      cfg.S3Endpoint,
			PublicBaseURL: cfg.S3PublicBaseURL,
			CacheControl:  cfg.S3CacheControl,
		})
	}
	return storage.NewFileStore(cfg.StoragePath, cfg.StorageBaseURL)
}

// realtimeWiring picks the publish path and job lock. With Redis, events go
// through the shared channel so every instance's hub sees them; without it
// the local hub is published to directly.
func realtimeWiring(ctx context.Context, rdb *redis.Client, hub *realtime.Hub, cfg *infra.Config, logger zerolog.Logger) (realtime.Publisher, reconcile.Locker) {
	if rdb == nil {
		logger.Info().Msg("REDIS_URL not set: using in-process job locks and realtime delivery")
		return hub, reconcile.NewLocalLocker()
	}
	go func() {
		if err := hub.Relay(ctx, rdb); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("realtime relay stopped")
		}
	}()
	lease := cfg.WebhookTimeout + cfg.UploadTimeout
	return realtime.NewRedisPublisher(rdb), reconcile.NewRedisLocker(rdb, lease, logger)
}
