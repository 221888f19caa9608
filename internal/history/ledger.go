// Package history keeps the append-only per-listing price sample log.
package history

import (
	"sync"
	"time"

	"github.com/guarzo/markethub/internal/model"
)

// Entry is one sample attributed to a listing.
type Entry struct {
	ListingID string            `json:"listingId"`
	Sample    model.PriceSample `json:"sample"`
}

// Range bounds a history query. Zero values leave the corresponding side
// open.
type Range struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls inside the range (inclusive bounds).
func (r Range) Contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && t.After(r.To) {
		return false
	}
	return true
}

// Ledger is an arena-style log keyed by listing id. Appends for one listing
// serialize on that listing's lock; appends for different listings do not
// contend. Samples are never mutated, reordered, or deduplicated once
// appended.
type Ledger struct {
	mu   sync.RWMutex
	logs map[string]*listingLog
}

type listingLog struct {
	mu      sync.Mutex
	samples []model.PriceSample
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{logs: make(map[string]*listingLog)}
}

func (l *Ledger) logFor(listingID string) *listingLog {
	l.mu.RLock()
	lg, ok := l.logs[listingID]
	l.mu.RUnlock()
	if ok {
		return lg
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if lg, ok = l.logs[listingID]; ok {
		return lg
	}
	lg = &listingLog{}
	l.logs[listingID] = lg
	return lg
}

// Append adds a sample to the end of the listing's history. Two concurrent
// appends for the same listing are serialized; both samples land.
func (l *Ledger) Append(listingID string, sample model.PriceSample) {
	lg := l.logFor(listingID)
	lg.mu.Lock()
	lg.samples = append(lg.samples, sample)
	lg.mu.Unlock()
}

// Seed loads existing history points for a listing, typically when
// rehydrating from the record store. Points are appended in given order.
func (l *Ledger) Seed(listingID string, points []model.PricePoint) {
	lg := l.logFor(listingID)
	lg.mu.Lock()
	for _, p := range points {
		lg.samples = append(lg.samples, model.PriceSample{
			Price:        p.Price,
			Availability: true,
			Timestamp:    p.Date,
			Scraped:      false,
		})
	}
	lg.mu.Unlock()
}

// Query returns every sample across the given listings whose timestamp
// falls inside the range. Each listing's own samples keep their
// chronological order; no ordering holds across listings.
func (l *Ledger) Query(listingIDs []string, r Range) []Entry {
	var out []Entry
	for _, id := range listingIDs {
		l.mu.RLock()
		lg, ok := l.logs[id]
		l.mu.RUnlock()
		if !ok {
			continue
		}

		lg.mu.Lock()
		for _, s := range lg.samples {
			if r.Contains(s.Timestamp) {
				out = append(out, Entry{ListingID: id, Sample: s})
			}
		}
		lg.mu.Unlock()
	}
	return out
}

// Len returns the number of samples recorded for a listing.
func (l *Ledger) Len(listingID string) int {
	l.mu.RLock()
	lg, ok := l.logs[listingID]
	l.mu.RUnlock()
	if !ok {
		return 0
	}
	lg.mu.Lock()
	defer lg.mu.Unlock()
	return len(lg.samples)
}

// Prune drops samples older than the cutoff for every listing and reports
// how many were removed. Retention is the only sanctioned deletion path;
// per-sample immutability still holds for what remains.
func (l *Ledger) Prune(cutoff time.Time) int {
	l.mu.RLock()
	ids := make([]string, 0, len(l.logs))
	for id := range l.logs {
		ids = append(ids, id)
	}
	l.mu.RUnlock()

	removed := 0
	for _, id := range ids {
		l.mu.RLock()
		lg, ok := l.logs[id]
		l.mu.RUnlock()
		if !ok {
			continue
		}

		lg.mu.Lock()
		kept := lg.samples[:0]
		for _, s := range lg.samples {
			if s.Timestamp.Before(cutoff) {
				removed++
				continue
			}
			kept = append(kept, s)
		}
		lg.samples = kept
		lg.mu.Unlock()
	}
	return removed
}

// Drop removes a listing's log entirely, for use when the listing itself is
// deleted at the boundary.
func (l *Ledger) Drop(listingID string) {
	l.mu.Lock()
	delete(l.logs, listingID)
	l.mu.Unlock()
}
