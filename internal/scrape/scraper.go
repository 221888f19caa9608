package scrape

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/brotli"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/guarzo/markethub/internal/model"
)

const (
	userAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	fetchTimeout = 10 * time.Second
	maxBodySize  = 4 << 20 // cap page reads at 4MB
)

// ExtractionOutcome is the result of one acquisition attempt, discriminated
// between a genuinely scraped price and a synthetic fallback.
type ExtractionOutcome struct {
	Price   float64
	Scraped bool
}

// Scraped builds a real-extraction outcome.
func Scraped(price float64) ExtractionOutcome {
	return ExtractionOutcome{Price: price, Scraped: true}
}

// Fallback builds a synthetic-fallback outcome.
func Fallback(price float64) ExtractionOutcome {
	return ExtractionOutcome{Price: price, Scraped: false}
}

// Config holds scraper construction options. Zero values select defaults.
type Config struct {
	Timeout    time.Duration
	RateLimit  rate.Limit // fetches per second across all platforms
	Strategies map[model.Platform]Strategy
}

// Scraper acquires price samples for tracked listings. Acquisition is
// total: every call returns a usable sample, degrading to a synthetic
// per-platform price when extraction misses for any reason.
type Scraper struct {
	client     *http.Client
	limiter    *rate.Limiter
	strategies map[model.Platform]Strategy
	log        zerolog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a scraper with browser-like request identity and a bounded
// per-fetch timeout.
func New(cfg Config, logger zerolog.Logger) *Scraper {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = fetchTimeout
	}
	limit := cfg.RateLimit
	if limit == 0 {
		limit = rate.Limit(2)
	}
	strats := cfg.Strategies
	if strats == nil {
		strats = strategies
	}
	return &Scraper{
		client:     &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(limit, 1),
		strategies: strats,
		log:        logger.With().Str("component", "scrape").Logger(),
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Acquire fetches a current price for the listing URL. The returned sample
// always carries a usable price: extraction misses and fetch failures fall
// back to a synthetic value with Scraped=false. Acquire never mutates the
// listing; persisting the sample is the caller's job.
func (s *Scraper) Acquire(ctx context.Context, rawURL string, platform model.Platform) model.PriceSample {
	outcome := s.extract(ctx, rawURL, platform)

	sample := model.PriceSample{
		Price:     outcome.Price,
		Timestamp: time.Now().UTC(),
		Scraped:   outcome.Scraped,
	}
	if outcome.Scraped {
		sample.Availability = s.availability()
	} else {
		sample.Availability = true
	}
	return sample
}

// extract is the single consumer of the scraped-vs-fallback distinction.
// Every failure path converges on a synthetic price.
func (s *Scraper) extract(ctx context.Context, rawURL string, platform model.Platform) ExtractionOutcome {
	strat, ok := s.strategies[platform]
	if !ok {
		strat = StrategyFor(platform)
	}

	if !strat.Attempts() || !strat.MatchesHost(rawURL) {
		return Fallback(s.syntheticPrice(strat.Fallback))
	}

	doc, err := s.fetch(ctx, rawURL)
	if err != nil {
		s.log.Warn().Err(err).Str("platform", string(platform)).Str("url", rawURL).
			Msg("fetch failed, using fallback price")
		return Fallback(s.syntheticPrice(strat.Fallback))
	}

	if price, found := strat.Extract(doc); found {
		s.log.Debug().Float64("price", price).Str("platform", string(platform)).
			Msg("price extracted")
		return Scraped(price)
	}

	s.log.Debug().Str("platform", string(platform)).Str("url", rawURL).
		Msg("no selector matched, using fallback price")
	return Fallback(s.syntheticPrice(strat.Fallback))
}

// fetch performs one rate-limited page request and parses the body.
func (s *Scraper) fetch(ctx context.Context, rawURL string) (*goquery.Document, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en-IN,en;q=0.9")
	req.Header.Set("Accept-Encoding", "gzip, br")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("page returned status %d", resp.StatusCode)
	}

	var reader io.Reader
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		defer gz.Close()
		reader = gz
	case "br":
		reader = brotli.NewReader(resp.Body)
	default:
		reader = resp.Body
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(reader, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("parsing page: %w", err)
	}
	return doc, nil
}

// syntheticPrice draws a pseudo-random price from the platform's fallback
// range, rounded to two decimals.
func (s *Scraper) syntheticPrice(r SyntheticRange) float64 {
	s.mu.Lock()
	v := r.Base + s.rng.Float64()*r.Spread
	s.mu.Unlock()
	return round2(v)
}

// availability simulates an in-stock signal at 80/20 odds. It is a
// placeholder carried for compatibility, not a real stock check.
func (s *Scraper) availability() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64() > 0.2
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
