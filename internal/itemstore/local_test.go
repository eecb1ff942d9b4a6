package itemstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"lostfound/internal/model"
)

func newTestLocal(t *testing.T) Persistence {
	t.Helper()
	return NewLocalPersistence(filepath.Join(t.TempDir(), "items.json"))
}

func TestLocalPersistenceMissingFileIsEmpty(t *testing.T) {
	p := newTestLocal(t)

	items, err := p.LoadAll(context.Background())
	if err != nil {
		t.Fatalf("LoadAll() error: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected empty collection, got %d items", len(items))
	}
}

func TestLocalPersistenceRoundTrip(t *testing.T) {
	p := newTestLocal(t)
	ctx := context.Background()

	item := model.Item{
		ID:          "a",
		CreatedAt:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		UserID:      "u1",
		ProductName: "Umbrella",
		Place:       model.ItemPlaceFound,
		Date:        time.Date(2025, 5, 30, 0, 0, 0, 0, time.UTC),
		Type:        model.ItemTypeNormal,
		Status:      model.ItemStatusFound,
	}
	if err := p.Insert(ctx, &item); err != nil {
		t.Fatalf("Insert() error: %v", err)
	}

	items, err := p.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll() error: %v", err)
	}
	if len(items) != 1 || items[0].ID != "a" || items[0].ProductName != "Umbrella" {
		t.Fatalf("round trip mismatch: %+v", items)
	}
	if !items[0].CreatedAt.Equal(item.CreatedAt) {
		t.Fatalf("CreatedAt = %v, want %v", items[0].CreatedAt, item.CreatedAt)
	}

	if err := p.UpdateStatus(ctx, "a", model.ItemStatusCompleted); err != nil {
		t.Fatalf("UpdateStatus() error: %v", err)
	}
	items, _ = p.LoadAll(ctx)
	if items[0].Status != model.ItemStatusCompleted {
		t.Fatalf("status = %s, want completed", items[0].Status)
	}

	if err := p.UpdateStatus(ctx, "missing", model.ItemStatusCompleted); err != ErrNotFound {
		t.Fatalf("UpdateStatus(missing) = %v, want ErrNotFound", err)
	}

	if err := p.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	items, _ = p.LoadAll(ctx)
	if len(items) != 0 {
		t.Fatalf("expected empty collection after delete, got %d", len(items))
	}
}

func TestLocalPersistenceDeleteByFilter(t *testing.T) {
	p := newTestLocal(t)
	ctx := context.Background()

	june := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	july := time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC)
	for _, item := range []model.Item{
		{ID: "a", Date: june, Type: model.ItemTypeNormal},
		{ID: "b", Date: june, Type: model.ItemTypeEmergency},
		{ID: "c", Date: july, Type: model.ItemTypeNormal},
	} {
		it := item
		if err := p.Insert(ctx, &it); err != nil {
			t.Fatalf("Insert(%s) error: %v", item.ID, err)
		}
	}

	dr := &DateRange{
		Start: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC),
	}
	removed, err := p.DeleteByFilter(ctx, dr, string(model.ItemTypeNormal))
	if err != nil {
		t.Fatalf("DeleteByFilter() error: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}

	items, _ := p.LoadAll(ctx)
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	for _, item := range items {
		if item.ID == "a" {
			t.Fatal("item a should have been deleted")
		}
	}
}

func TestLocalPersistenceDeleteOlderThan(t *testing.T) {
	p := newTestLocal(t)
	ctx := context.Background()

	now := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	for _, item := range []model.Item{
		{ID: "stale", CreatedAt: now.Add(-40 * 24 * time.Hour)},
		{ID: "fresh", CreatedAt: now.Add(-1 * 24 * time.Hour)},
	} {
		it := item
		if err := p.Insert(ctx, &it); err != nil {
			t.Fatalf("Insert(%s) error: %v", item.ID, err)
		}
	}

	removed, err := p.DeleteOlderThan(ctx, now.Add(-30*24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteOlderThan() error: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}

	items, _ := p.LoadAll(ctx)
	if len(items) != 1 || items[0].ID != "fresh" {
		t.Fatalf("unexpected items after cutoff delete: %+v", items)
	}
}
