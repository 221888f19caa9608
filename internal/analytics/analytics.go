// Package analytics derives trend, performance, and overview statistics
// from a snapshot of a user's listings. Everything here is a pure read:
// results are recomputed per call and never persisted.
package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/guarzo/markethub/internal/model"
)

const (
	// DefaultWindowDays is the trailing window for daily trend points.
	DefaultWindowDays = 30
	// DefaultPerformanceLimit caps the performance ranking length.
	DefaultPerformanceLimit = 10

	maxNameLen = 20
	dayFormat  = "2006-01-02"
)

// PerformanceEntry ranks one listing by engagement.
type PerformanceEntry struct {
	Product     string `json:"product"`
	Views       int64  `json:"views"`
	PriceChecks int64  `json:"priceChecks"`
}

// Overview summarizes a listing collection.
type Overview struct {
	TotalProducts   int     `json:"totalProducts"`
	TrackedProducts int     `json:"trackedProducts"`
	AvgPrice        float64 `json:"avgPrice"`
	PriceAlerts     int     `json:"priceAlerts"`
}

// Trends buckets every history sample across the given listings by UTC
// calendar day over [today-windowDays, today] and returns one point per
// non-empty day, in chronological order. Days with no samples are omitted
// entirely rather than emitted as zero points.
func Trends(listings []model.Listing, windowDays int) []model.TrendPoint {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}

	byDay := make(map[string][]float64)
	for _, l := range listings {
		for _, p := range l.PriceHistory {
			day := p.Date.UTC().Format(dayFormat)
			byDay[day] = append(byDay[day], p.Price)
		}
	}

	now := time.Now().UTC()
	trends := make([]model.TrendPoint, 0, windowDays+1)
	for i := windowDays; i >= 0; i-- {
		day := now.AddDate(0, 0, -i).Format(dayFormat)
		prices, ok := byDay[day]
		if !ok || len(prices) == 0 {
			continue
		}

		sum, minP, maxP := 0.0, prices[0], prices[0]
		for _, p := range prices {
			sum += p
			if p < minP {
				minP = p
			}
			if p > maxP {
				maxP = p
			}
		}

		trends = append(trends, model.TrendPoint{
			Date:     day,
			AvgPrice: round2(sum / float64(len(prices))),
			MinPrice: round2(minP),
			MaxPrice: round2(maxP),
		})
	}
	return trends
}

// Performance returns the top listings by view count, descending, truncated
// to limit entries. Names are clipped to 20 characters for display.
func Performance(listings []model.Listing, limit int) []PerformanceEntry {
	if limit <= 0 {
		limit = DefaultPerformanceLimit
	}

	ranked := make([]model.Listing, len(listings))
	copy(ranked, listings)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Views > ranked[j].Views
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	out := make([]PerformanceEntry, 0, len(ranked))
	for _, l := range ranked {
		out = append(out, PerformanceEntry{
			Product:     truncate(l.Name, maxNameLen),
			Views:       l.Views,
			PriceChecks: l.PriceChecks,
		})
	}
	return out
}

// Summarize computes the collection overview. An empty collection yields
// all zeros; the average never divides by zero.
func Summarize(listings []model.Listing) Overview {
	ov := Overview{TotalProducts: len(listings)}

	var sum float64
	for i := range listings {
		l := &listings[i]
		sum += l.CurrentPrice
		if l.IsActive {
			ov.TrackedProducts++
		}
		if l.TargetReached() {
			ov.PriceAlerts++
		}
	}

	if ov.TotalProducts > 0 {
		ov.AvgPrice = round2(sum / float64(ov.TotalProducts))
	}
	return ov
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
