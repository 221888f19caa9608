package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/guarzo/markethub/internal/api"
	"github.com/guarzo/markethub/internal/cache"
	"github.com/guarzo/markethub/internal/config"
	"github.com/guarzo/markethub/internal/history"
	"github.com/guarzo/markethub/internal/scrape"
	"github.com/guarzo/markethub/internal/service"
	"github.com/guarzo/markethub/internal/store"
	"github.com/guarzo/markethub/internal/tracker"
)

func main() {
	cfg := config.Load()

	level := zerolog.InfoLevel
	if cfg.Debug {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()

	var st store.Store
	pg, err := store.NewPostgres(cfg.DSN())
	if err != nil {
		logger.Warn().Err(err).Msg("postgres unavailable, using in-memory store")
		st = store.NewMemory()
	} else {
		defer pg.Close()
		st = pg
	}

	var ca cache.Store
	if cfg.RedisAddr != "" {
		ca = cache.NewRedis(cfg.RedisAddr, logger)
		logger.Info().Str("addr", cfg.RedisAddr).Msg("using redis cache")
	} else {
		ca = cache.NewMemory()
	}

	scraper := scrape.New(scrape.Config{Timeout: cfg.ScrapeTimeout}, logger)
	ledger := history.NewLedger()
	svc := service.New(st, ca, ledger, scraper, cfg.CacheTTL, logger)

	rehydrate(context.Background(), st, ledger, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tr := tracker.New(svc, tracker.Config{
		CheckSchedule:   cfg.CheckSchedule,
		Workers:         cfg.CheckWorkers,
		ChecksPerMinute: cfg.ChecksPerMinute,
		Retention:       time.Duration(cfg.RetentionDays) * 24 * time.Hour,
	}, logger)
	if err := tr.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("starting tracker")
	}
	defer tr.Stop()

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      api.NewServer(svc, logger).Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
}

// rehydrate loads persisted listing history into the in-process ledger so
// history queries cover samples recorded before this boot.
func rehydrate(ctx context.Context, st store.Store, ledger *history.Ledger, logger zerolog.Logger) {
	listings, err := st.All(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("ledger rehydration skipped")
		return
	}
	for i := range listings {
		ledger.Seed(listings[i].ID, listings[i].PriceHistory)
	}
	logger.Info().Int("listings", len(listings)).Msg("ledger rehydrated")
}
