// Package store persists listings. The rest of the system treats it as a
// generic record store: one logical record per listing, history embedded.
package store

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/guarzo/markethub/internal/model"
)

// ErrNotFound is returned when a listing does not exist in the caller's
// scope.
var ErrNotFound = errors.New("listing not found")

// Store is the listing record store.
type Store interface {
	Create(ctx context.Context, l *model.Listing) error
	Update(ctx context.Context, l *model.Listing) error
	Delete(ctx context.Context, userID, id string) error
	Get(ctx context.Context, userID, id string) (*model.Listing, error)
	List(ctx context.Context, userID string) ([]model.Listing, error)
	// All enumerates every listing regardless of owner, for the periodic
	// re-check sweep and retention pruning.
	All(ctx context.Context) ([]model.Listing, error)
}

// Memory is an in-process Store for tests and single-node runs. Writes are
// last-write-wins per listing, matching the record-store contract the
// service layer is built against.
type Memory struct {
	mu       sync.RWMutex
	listings map[string]model.Listing
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{listings: make(map[string]model.Listing)}
}

func cloneListing(l model.Listing) model.Listing {
	out := l
	if l.TargetPrice != nil {
		tp := *l.TargetPrice
		out.TargetPrice = &tp
	}
	out.PriceHistory = append([]model.PricePoint(nil), l.PriceHistory...)
	return out
}

func (m *Memory) Create(_ context.Context, l *model.Listing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.listings[l.ID]; exists {
		return errors.New("duplicate listing id")
	}
	m.listings[l.ID] = cloneListing(*l)
	return nil
}

func (m *Memory) Update(_ context.Context, l *model.Listing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.listings[l.ID]
	if !ok || cur.UserID != l.UserID {
		return ErrNotFound
	}
	m.listings[l.ID] = cloneListing(*l)
	return nil
}

func (m *Memory) Delete(_ context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.listings[id]
	if !ok || cur.UserID != userID {
		return ErrNotFound
	}
	delete(m.listings, id)
	return nil
}

func (m *Memory) Get(_ context.Context, userID, id string) (*model.Listing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cur, ok := m.listings[id]
	if !ok || cur.UserID != userID {
		return nil, ErrNotFound
	}
	out := cloneListing(cur)
	return &out, nil
}

func (m *Memory) List(_ context.Context, userID string) ([]model.Listing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.Listing
	for _, l := range m.listings {
		if l.UserID == userID {
			out = append(out, cloneListing(l))
		}
	}
	// Newest first, matching the collection read order served to clients.
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *Memory) All(_ context.Context) ([]model.Listing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.Listing, 0, len(m.listings))
	for _, l := range m.listings {
		out = append(out, cloneListing(l))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
