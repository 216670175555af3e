package store

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/erazemk/nabava/internal/db"
	"github.com/erazemk/nabava/internal/model"
)

func TestInvReceiptUncontrolled(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	f := newFixture(t, database, model.ItemSite{
		QtyOnHand:  dec("10"),
		Value:      dec("20"),
		CostMethod: model.CostMethodAverage,
	})

	series, _ := NextItemlocSeries(ctx, database)
	cost := dec("30")
	got, err := InvReceipt(ctx, database, model.Receipt{
		ItemSiteID: f.itemSite.ID,
		Qty:        dec("5"),
		DocNumber:  "DOC-1",
		Comments:   "found in back room",
		TransDate:  time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Cost:       &cost,
		Series:     series,
		User:       "admin",
	})
	if err != nil {
		t.Fatalf("InvReceipt: %v", err)
	}
	if got != series {
		t.Fatalf("expected result %d, got %d", series, got)
	}

	site, _ := GetItemSite(ctx, database, f.itemSite.ID)
	if !site.QtyOnHand.Equal(dec("15")) {
		t.Errorf("expected QOH 15, got %s", site.QtyOnHand)
	}
	if !site.Value.Equal(dec("50")) {
		t.Errorf("expected value 50, got %s", site.Value)
	}

	hist, _ := ListInvHist(ctx, database, f.itemSite.ID)
	if len(hist) != 1 {
		t.Fatalf("expected 1 history row, got %d", len(hist))
	}
	h := hist[0]
	if h.TransType != model.TransTypeReceipt || !h.QOHBefore.Equal(dec("10")) || !h.QOHAfter.Equal(dec("15")) {
		t.Errorf("unexpected history row %+v", h)
	}
	if !h.UnitCost.Equal(dec("6")) {
		t.Errorf("expected unit cost 6, got %s", h.UnitCost)
	}
	if h.DocNumber != "DOC-1" || h.User != "admin" || h.Series != series {
		t.Errorf("unexpected history row %+v", h)
	}

	byID, err := GetInvHist(ctx, database, h.ID)
	if err != nil || byID == nil {
		t.Fatalf("GetInvHist: %v, %v", byID, err)
	}
	if byID.TransDate.Format(time.DateOnly) != "2024-03-01" {
		t.Errorf("expected trans date 2024-03-01, got %s", byID.TransDate)
	}
}

func TestInvReceiptResultCodes(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	f := newFixture(t, database, model.ItemSite{CostMethod: model.CostMethodJob})

	tests := []struct {
		name string
		qty  decimal.Decimal
		want int64
	}{
		{"zero quantity", dec("0"), ReceiptErrQty},
		{"negative quantity", dec("-2"), ReceiptErrQty},
		{"job cost", dec("1"), ReceiptErrJobCost},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := InvReceipt(ctx, database, model.Receipt{ItemSiteID: f.itemSite.ID, Qty: tt.qty, Series: 1})
			if err != nil {
				t.Fatalf("InvReceipt: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}

	if c := countRows(t, database, `SELECT COUNT(*) FROM invhist`); c != 0 {
		t.Errorf("expected no history rows, got %d", c)
	}
}

func TestInvReceiptMissingItemSite(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	_, err := InvReceipt(ctx, database, model.Receipt{ItemSiteID: 77, Qty: dec("1"), Series: 1})
	if err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestInvReceiptControlledAppliesDistribution(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	f := newFixture(t, database, model.ItemSite{
		StdCost:    dec("2"),
		CostMethod: model.CostMethodStandard,
		LocCntrl:   true,
	})
	loc, _ := CreateLocation(ctx, database, f.site.ID, "A-01")

	series, _ := NextItemlocSeries(ctx, database)
	CreateItemlocdistParent(ctx, database, f.itemSite.ID, dec("4"), "RX", series)

	// Nothing distributed yet.
	got, err := InvReceipt(ctx, database, model.Receipt{ItemSiteID: f.itemSite.ID, Qty: dec("4"), Series: series})
	if err != nil {
		t.Fatalf("InvReceipt: %v", err)
	}
	if got != ReceiptErrDistribution {
		t.Fatalf("expected %d, got %d", ReceiptErrDistribution, got)
	}

	DistributeSeries(ctx, database, series, []model.LocationQty{{LocationID: loc.ID, Qty: dec("4")}})
	got, err = InvReceipt(ctx, database, model.Receipt{ItemSiteID: f.itemSite.ID, Qty: dec("4"), Series: series})
	if err != nil {
		t.Fatalf("InvReceipt: %v", err)
	}
	if got != series {
		t.Fatalf("expected %d, got %d", series, got)
	}

	locs, _ := ListItemLocations(ctx, database, f.itemSite.ID)
	if len(locs) != 1 || !locs[0].Qty.Equal(dec("4")) {
		t.Errorf("expected 4 at A-01, got %+v", locs)
	}
	site, _ := GetItemSite(ctx, database, f.itemSite.ID)
	if !site.Value.Equal(dec("8")) {
		t.Errorf("expected standard cost value 8, got %s", site.Value)
	}
	if c := countRows(t, database, `SELECT COUNT(*) FROM itemlocdist WHERE itemlocdist_series = ?`, series); c != 0 {
		t.Errorf("expected series cleared, got %d rows", c)
	}
}

func TestInvReceiptZeroCostKeepsValue(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	f := newFixture(t, database, model.ItemSite{
		QtyOnHand:  dec("1"),
		Value:      dec("3"),
		CostMethod: model.CostMethodAverage,
	})

	zero := decimal.Zero
	InvReceipt(ctx, database, model.Receipt{ItemSiteID: f.itemSite.ID, Qty: dec("2"), Cost: &zero, Series: 1})

	site, _ := GetItemSite(ctx, database, f.itemSite.ID)
	if !site.Value.Equal(dec("3")) {
		t.Errorf("expected value unchanged at 3, got %s", site.Value)
	}
}

func TestGetInvHistMissing(t *testing.T) {
	database := db.NewTestDB(t)

	h, err := GetInvHist(context.Background(), database, 5)
	if err != nil {
		t.Fatalf("GetInvHist: %v", err)
	}
	if h != nil {
		t.Error("expected nil for missing history row")
	}
}
