// Package service implements the listing tracking operations: CRUD with
// read-through collection caching, price re-checks, and analytics reads.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/guarzo/markethub/internal/analytics"
	"github.com/guarzo/markethub/internal/cache"
	"github.com/guarzo/markethub/internal/history"
	"github.com/guarzo/markethub/internal/model"
	"github.com/guarzo/markethub/internal/store"
)

// Validation failures surfaced to the boundary as 400s.
var (
	ErrInvalidPlatform       = errors.New("unsupported platform")
	ErrInvalidCurrency       = errors.New("unsupported currency")
	ErrMissingFields         = errors.New("name and url are required")
	ErrTargetNotBelowCurrent = errors.New("target price must be lower than current price")
)

// Acquirer obtains a current price sample for a listing URL. Acquisition is
// total; implementations never return an error.
type Acquirer interface {
	Acquire(ctx context.Context, url string, platform model.Platform) model.PriceSample
}

// Listings is the tracking service over a user's listing collection.
type Listings struct {
	store    store.Store
	cache    cache.Store
	ledger   *history.Ledger
	acquirer Acquirer
	cacheTTL time.Duration
	log      zerolog.Logger
}

// New wires the listing service. A zero ttl selects the default 300s
// collection snapshot lifetime.
func New(st store.Store, ca cache.Store, ledger *history.Ledger, acq Acquirer, ttl time.Duration, logger zerolog.Logger) *Listings {
	if ttl == 0 {
		ttl = cache.DefaultTTL
	}
	return &Listings{
		store:    st,
		cache:    ca,
		ledger:   ledger,
		acquirer: acq,
		cacheTTL: ttl,
		log:      logger.With().Str("component", "service").Logger(),
	}
}

// CreateInput carries the client-supplied fields for a new listing.
type CreateInput struct {
	Name           string         `json:"name"`
	URL            string         `json:"url"`
	Platform       model.Platform `json:"platform"`
	Currency       model.Currency `json:"currency"`
	CurrentPrice   float64        `json:"currentPrice"`
	TargetPrice    *float64       `json:"targetPrice"`
	Specifications string         `json:"specifications"`
}

// Create registers a new listing. When no current price is supplied, one is
// acquired up front. A positive current price seeds the first history
// entry. The target price, when present alongside a current price, must be
// strictly lower than it.
func (s *Listings) Create(ctx context.Context, userID string, in CreateInput) (*model.Listing, error) {
	if in.Name == "" || in.URL == "" {
		return nil, ErrMissingFields
	}
	if !in.Platform.Valid() {
		return nil, ErrInvalidPlatform
	}
	if in.Currency == "" {
		in.Currency = model.CurrencyINR
	}
	if !in.Currency.Valid() {
		return nil, ErrInvalidCurrency
	}

	now := time.Now().UTC()
	l := &model.Listing{
		ID:             uuid.NewString(),
		UserID:         userID,
		Name:           in.Name,
		URL:            in.URL,
		Platform:       in.Platform,
		Currency:       in.Currency,
		CurrentPrice:   in.CurrentPrice,
		TargetPrice:    in.TargetPrice,
		Specifications: in.Specifications,
		LastChecked:    now,
		IsActive:       true,
		CreatedAt:      now,
	}

	if l.CurrentPrice <= 0 {
		sample := s.acquirer.Acquire(ctx, l.URL, l.Platform)
		l.CurrentPrice = sample.Price
		l.LastChecked = sample.Timestamp
	}

	if err := validateTarget(l.TargetPrice, l.CurrentPrice); err != nil {
		return nil, err
	}

	if l.CurrentPrice > 0 {
		l.PriceHistory = []model.PricePoint{{Price: l.CurrentPrice, Date: now}}
	}

	if err := s.store.Create(ctx, l); err != nil {
		return nil, fmt.Errorf("creating listing: %w", err)
	}
	s.ledger.Seed(l.ID, l.PriceHistory)
	s.invalidate(ctx, userID)

	s.log.Info().Str("listing", l.ID).Str("platform", string(l.Platform)).
		Float64("price", l.CurrentPrice).Msg("listing created")
	return l, nil
}

// ListResult is a collection read plus its cache provenance.
type ListResult struct {
	Listings []model.Listing `json:"products"`
	Cached   bool            `json:"cached,omitempty"`
}

// List returns the user's listing collection through the cache: a hit
// serves the cached snapshot as-is, a miss reads the store and populates
// the cache for the next reader.
func (s *Listings) List(ctx context.Context, userID string) (ListResult, error) {
	key := cache.ListingsKey(userID)

	if data, ok := s.cache.Get(ctx, key); ok {
		var cached []model.Listing
		if err := json.Unmarshal(data, &cached); err == nil {
			return ListResult{Listings: cached, Cached: true}, nil
		}
		// Corrupt snapshot: drop it and fall through to the store.
		s.cache.Invalidate(ctx, key)
	}

	listings, err := s.store.List(ctx, userID)
	if err != nil {
		return ListResult{}, fmt.Errorf("listing collection: %w", err)
	}

	if data, err := json.Marshal(listings); err == nil {
		s.cache.Put(ctx, key, data, s.cacheTTL)
	}
	return ListResult{Listings: listings}, nil
}

// Get returns one listing and bumps its view counter.
func (s *Listings) Get(ctx context.Context, userID, id string) (*model.Listing, error) {
	l, err := s.store.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	l.Views++
	if err := s.store.Update(ctx, l); err != nil {
		return nil, fmt.Errorf("recording view: %w", err)
	}
	return l, nil
}

// UpdateInput carries optional field updates; nil fields are untouched.
type UpdateInput struct {
	Name           *string  `json:"name"`
	URL            *string  `json:"url"`
	TargetPrice    *float64 `json:"targetPrice"`
	Specifications *string  `json:"specifications"`
	IsActive       *bool    `json:"isActive"`
}

// Update applies partial updates to a listing, revalidating the target
// price against the current price.
func (s *Listings) Update(ctx context.Context, userID, id string, in UpdateInput) (*model.Listing, error) {
	l, err := s.store.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		l.Name = *in.Name
	}
	if in.URL != nil {
		l.URL = *in.URL
	}
	if in.Specifications != nil {
		l.Specifications = *in.Specifications
	}
	if in.IsActive != nil {
		l.IsActive = *in.IsActive
	}
	if in.TargetPrice != nil {
		if err := validateTarget(in.TargetPrice, l.CurrentPrice); err != nil {
			return nil, err
		}
		l.TargetPrice = in.TargetPrice
	}

	if err := s.store.Update(ctx, l); err != nil {
		return nil, fmt.Errorf("updating listing: %w", err)
	}
	s.invalidate(ctx, userID)
	return l, nil
}

// Delete removes a listing and its history log.
func (s *Listings) Delete(ctx context.Context, userID, id string) error {
	if err := s.store.Delete(ctx, userID, id); err != nil {
		return err
	}
	s.ledger.Drop(id)
	s.invalidate(ctx, userID)
	return nil
}

// Check re-acquires the listing's price: the sample is appended to history,
// the current price and lastChecked snapshot move to the new sample, and
// the price-check counter is bumped. A reached target is logged; delivery
// of notifications is out of scope.
func (s *Listings) Check(ctx context.Context, userID, id string) (*model.Listing, model.PriceSample, error) {
	l, err := s.store.Get(ctx, userID, id)
	if err != nil {
		return nil, model.PriceSample{}, err
	}

	sample := s.acquirer.Acquire(ctx, l.URL, l.Platform)

	s.ledger.Append(l.ID, sample)
	l.PriceHistory = append(l.PriceHistory, model.PricePoint{Price: sample.Price, Date: sample.Timestamp})
	l.CurrentPrice = sample.Price
	l.LastChecked = sample.Timestamp
	l.PriceChecks++

	if err := s.store.Update(ctx, l); err != nil {
		return nil, model.PriceSample{}, fmt.Errorf("recording price check: %w", err)
	}
	s.invalidate(ctx, userID)

	if l.TargetReached() {
		s.log.Info().Str("listing", l.ID).Str("name", l.Name).
			Float64("current", l.CurrentPrice).Float64("target", *l.TargetPrice).
			Msg("target price reached")
	}
	return l, sample, nil
}

// QueryHistory returns samples for the given listings within the range,
// scoped to the user's own listings.
func (s *Listings) QueryHistory(ctx context.Context, userID string, ids []string, r history.Range) ([]history.Entry, error) {
	owned := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := s.store.Get(ctx, userID, id); err == nil {
			owned = append(owned, id)
		}
	}
	return s.ledger.Query(owned, r), nil
}

// Overview computes the collection summary. Analytics reads bypass the
// collection cache and work on a fresh store snapshot.
func (s *Listings) Overview(ctx context.Context, userID string) (analytics.Overview, error) {
	listings, err := s.store.List(ctx, userID)
	if err != nil {
		return analytics.Overview{}, fmt.Errorf("overview: %w", err)
	}
	return analytics.Summarize(listings), nil
}

// Trends computes the daily trend series over the trailing window.
func (s *Listings) Trends(ctx context.Context, userID string, windowDays int) ([]model.TrendPoint, error) {
	listings, err := s.store.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("trends: %w", err)
	}
	return analytics.Trends(listings, windowDays), nil
}

// Performance ranks the user's listings by engagement.
func (s *Listings) Performance(ctx context.Context, userID string, limit int) ([]analytics.PerformanceEntry, error) {
	listings, err := s.store.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("performance: %w", err)
	}
	return analytics.Performance(listings, limit), nil
}

// ActiveListings enumerates every active listing across users, for the
// periodic re-check sweep.
func (s *Listings) ActiveListings(ctx context.Context) ([]model.Listing, error) {
	all, err := s.store.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("enumerating listings: %w", err)
	}
	active := all[:0]
	for _, l := range all {
		if l.IsActive {
			active = append(active, l)
		}
	}
	return active, nil
}

// PruneHistory drops history samples older than the cutoff from both the
// ledger and the persisted listing records, invalidating affected
// collection caches. Returns the number of samples removed from records.
func (s *Listings) PruneHistory(ctx context.Context, cutoff time.Time) (int, error) {
	all, err := s.store.All(ctx)
	if err != nil {
		return 0, fmt.Errorf("enumerating listings: %w", err)
	}

	s.ledger.Prune(cutoff)

	removed := 0
	touched := make(map[string]bool)
	for i := range all {
		l := all[i]
		kept := l.PriceHistory[:0]
		for _, p := range l.PriceHistory {
			if p.Date.Before(cutoff) {
				removed++
				continue
			}
			kept = append(kept, p)
		}
		if len(kept) == len(l.PriceHistory) {
			continue
		}
		l.PriceHistory = kept
		if err := s.store.Update(ctx, &l); err != nil {
			s.log.Warn().Err(err).Str("listing", l.ID).Msg("pruning listing history failed")
			continue
		}
		touched[l.UserID] = true
	}

	for userID := range touched {
		s.invalidate(ctx, userID)
	}
	return removed, nil
}

func (s *Listings) invalidate(ctx context.Context, userID string) {
	s.cache.Invalidate(ctx, cache.ListingsKey(userID))
}

func validateTarget(target *float64, current float64) error {
	if target != nil && current > 0 && *target >= current {
		return ErrTargetNotBelowCurrent
	}
	return nil
}

// IsValidationError reports whether err is a client-input problem rather
// than an internal failure.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidPlatform) ||
		errors.Is(err, ErrInvalidCurrency) ||
		errors.Is(err, ErrMissingFields) ||
		errors.Is(err, ErrTargetNotBelowCurrent)
}
