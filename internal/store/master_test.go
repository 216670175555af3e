package store

import (
	"context"
	"testing"

	"github.com/erazemk/nabava/internal/db"
	"github.com/erazemk/nabava/internal/model"
)

func TestLookupItemSite(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	f := newFixture(t, database, model.ItemSite{
		QtyOnHand:  dec("10"),
		Value:      dec("25"),
		CostMethod: model.CostMethodAverage,
		LocCntrl:   true,
	})

	got, err := LookupItemSite(ctx, database, f.item.ID, f.site.ID)
	if err != nil {
		t.Fatalf("LookupItemSite: %v", err)
	}
	if got == nil || got.ID != f.itemSite.ID {
		t.Fatalf("expected item site %d, got %+v", f.itemSite.ID, got)
	}
	if !got.Controlled {
		t.Error("expected controlled item site")
	}
	if got.ItemNumber != "BTRUCK1" || got.SiteCode != "WH1" {
		t.Errorf("unexpected item/site %q/%q", got.ItemNumber, got.SiteCode)
	}
	if !got.UnitCost().Equal(dec("2.5")) {
		t.Errorf("expected average unit cost 2.5, got %s", got.UnitCost())
	}

	other, _ := CreateSite(ctx, database, "WH2", "")
	missing, err := LookupItemSite(ctx, database, f.item.ID, other.ID)
	if err != nil {
		t.Fatalf("LookupItemSite: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for item not stocked at site")
	}
}

func TestListItems(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	CreateItem(ctx, database, model.Item{Number: "B"})
	CreateItem(ctx, database, model.Item{Number: "A"})

	items, err := ListItems(ctx, database)
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	if len(items) != 2 || items[0].Number != "A" {
		t.Fatalf("expected 2 items sorted by number, got %+v", items)
	}
	if items[0].UOM != "EA" {
		t.Errorf("expected default UOM EA, got %q", items[0].UOM)
	}
}
