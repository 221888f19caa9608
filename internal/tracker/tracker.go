// Package tracker runs the scheduled price re-check sweep and history
// retention cleanup. Re-acquisition stays externally triggered one listing
// at a time; the tracker is just the trigger source.
package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/guarzo/markethub/internal/model"
	"github.com/guarzo/markethub/internal/ratelimit"
	"github.com/guarzo/markethub/internal/service"
)

// Config holds tracker scheduling and throttling options.
type Config struct {
	// CheckSchedule is a cron spec ("@every 6h", "0 */6 * * *").
	CheckSchedule string
	// CleanupSchedule defaults to daily.
	CleanupSchedule string
	// Workers bounds concurrent re-checks within one sweep.
	Workers int
	// ChecksPerMinute budgets re-checks across a sweep.
	ChecksPerMinute int
	// Retention is how long history samples are kept.
	Retention time.Duration
}

// SweepResult summarizes one re-check sweep.
type SweepResult struct {
	Checked int
	Failed  int
	Elapsed time.Duration
}

// Tracker drives periodic re-checks through the listing service.
type Tracker struct {
	svc     *service.Listings
	cfg     Config
	limiter *ratelimit.Limiter
	cron    *cron.Cron
	log     zerolog.Logger

	mu      sync.Mutex
	running bool
}

// New creates a tracker. Zero config values select defaults.
func New(svc *service.Listings, cfg Config, logger zerolog.Logger) *Tracker {
	if cfg.CheckSchedule == "" {
		cfg.CheckSchedule = "@every 6h"
	}
	if cfg.CleanupSchedule == "" {
		cfg.CleanupSchedule = "@daily"
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 3
	}
	if cfg.ChecksPerMinute <= 0 {
		cfg.ChecksPerMinute = 30
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 90 * 24 * time.Hour
	}
	return &Tracker{
		svc:     svc,
		cfg:     cfg,
		limiter: ratelimit.PerMinute(cfg.ChecksPerMinute),
		log:     logger.With().Str("component", "tracker").Logger(),
	}
}

// Start registers the cron entries and begins scheduling. Call Stop to
// shut down.
func (t *Tracker) Start(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(t.cfg.CheckSchedule, func() { t.Sweep(ctx) }); err != nil {
		return err
	}
	if _, err := c.AddFunc(t.cfg.CleanupSchedule, func() { t.Cleanup(ctx) }); err != nil {
		return err
	}
	c.Start()
	t.cron = c
	t.log.Info().Str("check", t.cfg.CheckSchedule).Str("cleanup", t.cfg.CleanupSchedule).
		Msg("tracker started")
	return nil
}

// Stop halts the scheduler and waits for a running sweep's cron goroutine.
func (t *Tracker) Stop() {
	if t.cron != nil {
		<-t.cron.Stop().Done()
	}
}

// Sweep re-checks every active listing once, with bounded concurrency and
// the per-minute budget. Overlapping sweeps collapse: a sweep that fires
// while one is running returns immediately.
func (t *Tracker) Sweep(ctx context.Context) SweepResult {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		t.log.Debug().Msg("sweep already running, skipping")
		return SweepResult{}
	}
	t.running = true
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		t.running = false
		t.mu.Unlock()
	}()

	start := time.Now()
	listings, err := t.svc.ActiveListings(ctx)
	if err != nil {
		t.log.Error().Err(err).Msg("sweep aborted: cannot enumerate listings")
		return SweepResult{Elapsed: time.Since(start)}
	}
	if len(listings) == 0 {
		return SweepResult{Elapsed: time.Since(start)}
	}

	jobs := make(chan model.Listing, len(listings))
	for _, l := range listings {
		jobs <- l
	}
	close(jobs)

	var wg sync.WaitGroup
	var mu sync.Mutex
	result := SweepResult{}

	for w := 0; w < t.cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for l := range jobs {
				if ctx.Err() != nil {
					return
				}
				t.limiter.Wait()

				_, sample, err := t.svc.Check(ctx, l.UserID, l.ID)
				mu.Lock()
				if err != nil {
					// The listing vanished mid-sweep; acquisition itself
					// cannot fail.
					result.Failed++
				} else {
					result.Checked++
				}
				mu.Unlock()
				if err == nil {
					t.log.Debug().Str("listing", l.ID).Float64("price", sample.Price).
						Bool("scraped", sample.Scraped).Msg("re-checked")
				}
			}
		}()
	}
	wg.Wait()

	result.Elapsed = time.Since(start)
	t.log.Info().Int("checked", result.Checked).Int("failed", result.Failed).
		Dur("elapsed", result.Elapsed).Msg("sweep completed")
	return result
}

// Cleanup prunes history samples older than the retention window.
func (t *Tracker) Cleanup(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-t.cfg.Retention)
	removed, err := t.svc.PruneHistory(ctx, cutoff)
	if err != nil {
		t.log.Error().Err(err).Msg("history cleanup failed")
		return
	}
	t.log.Info().Int("removed", removed).Time("cutoff", cutoff).Msg("history cleanup completed")
}
