package store

import (
	"context"
	"testing"
	"time"

	"github.com/erazemk/nabava/internal/db"
	"github.com/erazemk/nabava/internal/model"
)

func TestNextItemlocSeriesIsMonotonic(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	a, err := NextItemlocSeries(ctx, database)
	if err != nil {
		t.Fatalf("NextItemlocSeries: %v", err)
	}
	b, _ := NextItemlocSeries(ctx, database)
	if a <= 0 || b <= a {
		t.Errorf("expected positive increasing series, got %d then %d", a, b)
	}
}

func TestDistributeSeries(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	f := newFixture(t, database, model.ItemSite{LocCntrl: true})

	locA, _ := CreateLocation(ctx, database, f.site.ID, "A-01")
	locB, _ := CreateLocation(ctx, database, f.site.ID, "B-01")
	series, _ := NextItemlocSeries(ctx, database)

	if _, err := CreateItemlocdistParent(ctx, database, f.itemSite.ID, dec("5"), "RX", series); err != nil {
		t.Fatalf("CreateItemlocdistParent: %v", err)
	}

	tests := []struct {
		name  string
		alloc []model.LocationQty
	}{
		{"short", []model.LocationQty{{LocationID: locA.ID, Qty: dec("4")}}},
		{"zero qty", []model.LocationQty{{LocationID: locA.ID, Qty: dec("5")}, {LocationID: locB.ID, Qty: dec("0")}}},
		{"unknown location", []model.LocationQty{{LocationID: 999, Qty: dec("5")}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := DistributeSeries(ctx, database, series, tt.alloc); err == nil {
				t.Error("expected error")
			}
		})
	}

	err := DistributeSeries(ctx, database, series, []model.LocationQty{
		{LocationID: locA.ID, Qty: dec("2")},
		{LocationID: locB.ID, Qty: dec("3")},
	})
	if err != nil {
		t.Fatalf("DistributeSeries: %v", err)
	}

	dists, _ := ListSeriesDistributions(ctx, database, series)
	if len(dists) != 3 {
		t.Fatalf("expected parent and 2 children, got %d", len(dists))
	}
}

func TestDistributeSeriesRejectsForeignLocation(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	f := newFixture(t, database, model.ItemSite{LocCntrl: true})

	other, _ := CreateSite(ctx, database, "WH2", "")
	foreign, _ := CreateLocation(ctx, database, other.ID, "X-01")
	series, _ := NextItemlocSeries(ctx, database)
	CreateItemlocdistParent(ctx, database, f.itemSite.ID, dec("1"), "RX", series)

	err := DistributeSeries(ctx, database, series, []model.LocationQty{{LocationID: foreign.ID, Qty: dec("1")}})
	if err == nil {
		t.Error("expected error for location at another site")
	}
}

func TestDeleteItemlocSeries(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	f := newFixture(t, database, model.ItemSite{LocCntrl: true})

	loc, _ := CreateLocation(ctx, database, f.site.ID, "A-01")
	series, _ := NextItemlocSeries(ctx, database)
	CreateItemlocdistParent(ctx, database, f.itemSite.ID, dec("1"), "RX", series)
	DistributeSeries(ctx, database, series, []model.LocationQty{{LocationID: loc.ID, Qty: dec("1")}})

	n, err := DeleteItemlocSeries(ctx, database, series)
	if err != nil {
		t.Fatalf("DeleteItemlocSeries: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 rows deleted, got %d", n)
	}
	if c := countRows(t, database, `SELECT COUNT(*) FROM itemlocdist WHERE itemlocdist_series = ?`, series); c != 0 {
		t.Errorf("expected no rows left, got %d", c)
	}
}

func TestCreateItemlocdistParentMissingItemSite(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	_, err := CreateItemlocdistParent(ctx, database, 42, dec("1"), "RX", 1)
	if err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPurgeStaleSeries(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	f := newFixture(t, database, model.ItemSite{LocCntrl: true})

	old, _ := NextItemlocSeries(ctx, database)
	CreateItemlocdistParent(ctx, database, f.itemSite.ID, dec("1"), "RX", old)
	database.Exec(`UPDATE itemlocdist SET itemlocdist_created = '2000-01-01 00:00:00' WHERE itemlocdist_series = ?`, old)

	fresh, _ := NextItemlocSeries(ctx, database)
	CreateItemlocdistParent(ctx, database, f.itemSite.ID, dec("1"), "RX", fresh)

	purged, err := PurgeStaleSeries(ctx, database, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("PurgeStaleSeries: %v", err)
	}
	if len(purged) != 1 || purged[0] != old {
		t.Fatalf("expected only series %d purged, got %v", old, purged)
	}
	if c := countRows(t, database, `SELECT COUNT(*) FROM itemlocdist WHERE itemlocdist_series = ?`, fresh); c != 1 {
		t.Errorf("expected fresh series kept, got %d rows", c)
	}
}
