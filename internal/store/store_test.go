package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/guarzo/markethub/internal/model"
)

func newListing(id, userID string, created time.Time) *model.Listing {
	return &model.Listing{
		ID:           id,
		UserID:       userID,
		Name:         "Test Product",
		URL:          "https://www.amazon.in/dp/" + id,
		Platform:     model.PlatformAmazon,
		Currency:     model.CurrencyINR,
		CurrentPrice: 1000,
		IsActive:     true,
		LastChecked:  created,
		CreatedAt:    created,
	}
}

func TestMemory_CRUD(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	now := time.Now().UTC()

	l := newListing("l1", "u1", now)
	if err := s.Create(ctx, l); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Create(ctx, l); err == nil {
		t.Error("expected duplicate-id create to fail")
	}

	got, err := s.Get(ctx, "u1", "l1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "Test Product" {
		t.Errorf("Name = %q", got.Name)
	}

	got.CurrentPrice = 900
	got.PriceHistory = append(got.PriceHistory, model.PricePoint{Price: 900, Date: now})
	if err := s.Update(ctx, got); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got2, _ := s.Get(ctx, "u1", "l1")
	if got2.CurrentPrice != 900 || len(got2.PriceHistory) != 1 {
		t.Errorf("update not applied: %+v", got2)
	}

	if err := s.Delete(ctx, "u1", "l1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, "u1", "l1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete: %v, want ErrNotFound", err)
	}
}

func TestMemory_UserScoping(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	now := time.Now().UTC()

	if err := s.Create(ctx, newListing("l1", "u1", now)); err != nil {
		t.Fatal(err)
	}

	if _, err := s.Get(ctx, "u2", "l1"); !errors.Is(err, ErrNotFound) {
		t.Error("listings must not be readable across user scopes")
	}
	if err := s.Delete(ctx, "u2", "l1"); !errors.Is(err, ErrNotFound) {
		t.Error("listings must not be deletable across user scopes")
	}

	other := newListing("l1", "u2", now)
	if err := s.Update(ctx, other); !errors.Is(err, ErrNotFound) {
		t.Error("listings must not be updatable across user scopes")
	}
}

func TestMemory_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"old", "mid", "new"} {
		l := newListing(id, "u1", base.Add(time.Duration(i)*time.Hour))
		if err := s.Create(ctx, l); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Create(ctx, newListing("foreign", "u2", base)); err != nil {
		t.Fatal(err)
	}

	got, err := s.List(ctx, "u1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d listings, want 3", len(got))
	}
	if got[0].ID != "new" || got[2].ID != "old" {
		t.Errorf("order = %s,%s,%s, want new,mid,old", got[0].ID, got[1].ID, got[2].ID)
	}
}

func TestMemory_ReadsAreCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	now := time.Now().UTC()

	l := newListing("l1", "u1", now)
	l.PriceHistory = []model.PricePoint{{Price: 1000, Date: now}}
	if err := s.Create(ctx, l); err != nil {
		t.Fatal(err)
	}

	got, _ := s.Get(ctx, "u1", "l1")
	got.PriceHistory[0].Price = 1 // mutating the copy
	got.Name = "mutated"

	again, _ := s.Get(ctx, "u1", "l1")
	if again.PriceHistory[0].Price != 1000 || again.Name != "Test Product" {
		t.Error("store handed out aliased state; reads must be copies")
	}
}
