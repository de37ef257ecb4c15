// Command server runs the shopping assistant HTTP API.
//
//	@title			Shopping Assistant API
//	@version		1.0
//	@description	Conversational shopping assistant: stateless query endpoints and a per-user session API.
//	@BasePath		/
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/shopping-assistant/internal/config"
	httpapi "github.com/tbourn/shopping-assistant/internal/http"
	"github.com/tbourn/shopping-assistant/internal/llm"
	"github.com/tbourn/shopping-assistant/internal/observability"
	"github.com/tbourn/shopping-assistant/internal/repo"
	"github.com/tbourn/shopping-assistant/internal/services"
	"github.com/tbourn/shopping-assistant/internal/shopping"
	"github.com/tbourn/shopping-assistant/internal/store"
	"github.com/tbourn/shopping-assistant/internal/sysutil"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg := config.MustLoad()
	sysutil.SetLogLevel(cfg.LogLevel)
	log.Logger = sysutil.NewLogger(os.Stdout, cfg.LogPretty, cfg.OTEL.ServiceName)
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appVersion := sysutil.FirstNonEmpty(os.Getenv("APP_VERSION"), version)
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, appVersion)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open sqlite")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate")
	}

	kv, closeKV := openKV(ctx, cfg, db)
	defer closeKV()

	client, err := llm.Dial(ctx, cfg.LLM)
	if err != nil {
		log.Fatal().Err(err).Msg("gemini client")
	}
	model := llm.NewGemini(client.Models, cfg.LLM, llm.WithLogger(log.Logger))

	searcher, details := productSearch(cfg)

	orch := &services.Orchestrator{
		LLM:           model,
		Search:        searcher,
		Ceiling:       cfg.Store.HistoryCeiling,
		MaxQueryRunes: cfg.MaxQueryRunes,
	}
	app := httpapi.App{
		DB:           db,
		Orchestrator: orch,
		Sessions: &services.Sessions{
			KV:           kv,
			Orchestrator: orch,
			StoreOptions: []store.Option{store.WithCeiling(cfg.Store.HistoryCeiling)},
			Log:          &log.Logger,
		},
		Details:  details,
		Research: &services.ResearchService{Model: model},
	}

	r := gin.New()
	httpapi.RegisterRoutes(r, app, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go purgeIdempotency(ctx, db, time.Hour)
	go evictSessions(ctx, app.Sessions, 5*time.Minute)

	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("store", cfg.Store.Driver).
			Str("base_path", cfg.APIBasePath).
			Str("version", appVersion).
			Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("otel shutdown")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// openKV selects the conversation store backend. The returned func releases
// it.
func openKV(ctx context.Context, cfg config.Config, db *gorm.DB) (repo.KV, func()) {
	switch cfg.Store.Driver {
	case config.StoreMemory:
		return repo.NewMemoryKV(), func() {}
	case config.StoreRedis:
		rdb, err := repo.OpenRedis(ctx, cfg.Store.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("redis")
		}
		return repo.NewRedisKV(rdb, cfg.OTEL.ServiceName+":kv"), func() { _ = rdb.Close() }
	default:
		return repo.NewSQLiteKV(db), func() {}
	}
}

// productSearch uses the shopping provider when a key is configured and the
// local catalog otherwise. Details are only available from the provider.
func productSearch(c config.Config) (shopping.Searcher, shopping.DetailFetcher) {
	cfg := c.Shopping
	if !c.UsesCatalog() {
		s := shopping.NewSerpAPI(cfg, shopping.WithLogger(log.Logger))
		log.Info().Str("gl", cfg.Country).Str("hl", cfg.Language).Msg("product search: shopping provider")
		return s, s
	}

	items := shopping.SampleItems()
	if cfg.CatalogPath != "" {
		loaded, err := shopping.LoadCatalog(cfg.CatalogPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.CatalogPath).Msg("load catalog")
		}
		items = loaded
	}
	cat := shopping.NewCatalog(items, cfg.MaxResults, shopping.WithLogger(log.Logger))
	log.Warn().Int("items", cat.Len()).Msg("SERP_API_KEY not set; product search uses the local catalog")
	return cat, nil
}

// purgeIdempotency deletes expired idempotency records every interval until
// ctx is done.
func purgeIdempotency(ctx context.Context, db *gorm.DB, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := repo.PurgeExpiredIdempotency(ctx, db, now.UTC())
			if err != nil {
				log.Warn().Err(err).Msg("purge idempotency")
				continue
			}
			if n > 0 {
				log.Debug().Int64("rows", n).Msg("purged idempotency records")
			}
		}
	}
}

// evictSessions drops idle per-user controllers every interval until ctx is
// done.
func evictSessions(ctx context.Context, s *services.Sessions, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.EvictIdle()
		}
	}
}
