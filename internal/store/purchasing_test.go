package store

import (
	"context"
	"testing"
	"time"

	"github.com/erazemk/nabava/internal/db"
	"github.com/erazemk/nabava/internal/model"
)

func day(d int) time.Time {
	return time.Date(2024, 5, d, 0, 0, 0, 0, time.UTC)
}

func TestListPoItems(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	f := newFixture(t, database, model.ItemSite{})

	vend, _ := CreateVendor(ctx, database, "V1", "Acme Supply")
	po, err := CreatePurchaseOrder(ctx, database, model.PurchaseOrder{
		Number: "PO-100", VendorID: vend.ID, WarehouseID: &f.site.ID, AgentUsername: "alice", Status: model.PoItemOpen,
	})
	if err != nil {
		t.Fatalf("CreatePurchaseOrder: %v", err)
	}

	inv, err := AddPoItem(ctx, database, po.ID, PoLine{ItemSiteID: &f.itemSite.ID, DueDate: day(10), QtyOrdered: dec("10")})
	if err != nil {
		t.Fatalf("AddPoItem: %v", err)
	}
	nonInv, _ := AddPoItem(ctx, database, po.ID, PoLine{VendItemDescr: "Freight", VendUOM: "LOT", DueDate: day(5), QtyOrdered: dec("1")})
	AddPoItem(ctx, database, po.ID, PoLine{ItemSiteID: &f.itemSite.ID, DueDate: day(25), QtyOrdered: dec("3")})

	items, err := ListPoItems(ctx, database, model.PoItemFilter{Start: day(1), End: day(20)})
	if err != nil {
		t.Fatalf("ListPoItems: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items in range, got %d", len(items))
	}
	if items[0].ID != nonInv || items[1].ID != inv {
		t.Errorf("expected items ordered by due date, got %d, %d", items[0].ID, items[1].ID)
	}
	if !items[0].NonInventory() || items[0].ItemDescription != "Freight" {
		t.Errorf("expected non-inventory freight line, got %+v", items[0])
	}
	if items[1].ItemNumber != "BTRUCK1" || items[1].SiteCode != "WH1" || items[1].VendorName != "Acme Supply" {
		t.Errorf("unexpected inventory line %+v", items[1])
	}
	if items[1].Status != model.PoItemOpen || items[1].LineNumber != 1 {
		t.Errorf("expected open line 1, got %+v", items[1])
	}

	SetPoItemStatus(ctx, database, inv, model.PoItemClosed)

	tests := []struct {
		name   string
		filter model.PoItemFilter
		want   int
	}{
		{"open only", model.PoItemFilter{Start: day(1), End: day(31), Items: model.PoItemsOpen}, 2},
		{"closed only", model.PoItemFilter{Start: day(1), End: day(31), Items: model.PoItemsClosed}, 1},
		{"other agent", model.PoItemFilter{Start: day(1), End: day(31), Agent: "bob"}, 0},
		{"agent", model.PoItemFilter{Start: day(1), End: day(31), Agent: "alice"}, 3},
		{"other site", model.PoItemFilter{Start: day(1), End: day(31), WarehouseID: f.site.ID + 1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ListPoItems(ctx, database, tt.filter)
			if err != nil {
				t.Fatalf("ListPoItems: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("expected %d items, got %d", tt.want, len(got))
			}
		})
	}
}

func TestPoItemItemSite(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	f := newFixture(t, database, model.ItemSite{})

	vend, _ := CreateVendor(ctx, database, "V1", "Acme")
	po, _ := CreatePurchaseOrder(ctx, database, model.PurchaseOrder{Number: "PO-1", VendorID: vend.ID})
	id, _ := AddPoItem(ctx, database, po.ID, PoLine{ItemSiteID: &f.itemSite.ID, DueDate: day(1), QtyOrdered: dec("1")})

	got, err := PoItemItemSite(ctx, database, id)
	if err != nil {
		t.Fatalf("PoItemItemSite: %v", err)
	}
	if got == nil || *got != f.itemSite.ID {
		t.Errorf("expected item site %d, got %v", f.itemSite.ID, got)
	}

	if _, err := PoItemItemSite(ctx, database, id+100); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := SetPoItemStatus(ctx, database, id+100, model.PoItemClosed); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRescheduleAndChangeQty(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	f := newFixture(t, database, model.ItemSite{})

	vend, _ := CreateVendor(ctx, database, "V1", "Acme")
	po, _ := CreatePurchaseOrder(ctx, database, model.PurchaseOrder{Number: "PO-1", VendorID: vend.ID, Status: model.PoItemOpen})
	id, _ := AddPoItem(ctx, database, po.ID, PoLine{ItemSiteID: &f.itemSite.ID, DueDate: day(1), QtyOrdered: dec("10")})

	if err := ReschedulePoItem(ctx, database, id, day(15)); err != nil {
		t.Fatalf("ReschedulePoItem: %v", err)
	}
	if err := ReceivePoItem(ctx, database, id, dec("4")); err != nil {
		t.Fatalf("ReceivePoItem: %v", err)
	}
	if err := ChangePoItemQty(ctx, database, id, dec("3")); err == nil {
		t.Error("expected error lowering quantity below received")
	}
	if err := ChangePoItemQty(ctx, database, id, dec("6")); err != nil {
		t.Fatalf("ChangePoItemQty: %v", err)
	}

	items, _ := ListPoItems(ctx, database, model.PoItemFilter{Start: day(15), End: day(15)})
	if len(items) != 1 {
		t.Fatalf("expected rescheduled item on day 15, got %d", len(items))
	}
	if !items[0].QtyOrdered.Equal(dec("6")) || !items[0].QtyReceived.Equal(dec("4")) {
		t.Errorf("unexpected quantities %+v", items[0])
	}

	SetPoItemStatus(ctx, database, id, model.PoItemClosed)
	if err := ReschedulePoItem(ctx, database, id, day(20)); err != ErrNotFound {
		t.Errorf("expected closed line not reschedulable, got %v", err)
	}
}
