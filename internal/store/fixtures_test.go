package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/erazemk/nabava/internal/model"
)

// fixture is a site with one item stocked at it.
type fixture struct {
	site     *model.Site
	item     *model.Item
	itemSite *model.ItemSite
}

func newFixture(t *testing.T, database *sql.DB, s model.ItemSite) fixture {
	t.Helper()
	ctx := context.Background()

	site, err := CreateSite(ctx, database, "WH1", "Main warehouse")
	if err != nil {
		t.Fatalf("CreateSite: %v", err)
	}
	item, err := CreateItem(ctx, database, model.Item{Number: "BTRUCK1", Description: "Truck"})
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}

	s.ItemID = item.ID
	s.WarehouseID = site.ID
	itemSite, err := CreateItemSite(ctx, database, s)
	if err != nil {
		t.Fatalf("CreateItemSite: %v", err)
	}

	return fixture{site: site, item: item, itemSite: itemSite}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func countRows(t *testing.T, database *sql.DB, query string, args ...any) int {
	t.Helper()
	var n int
	if err := database.QueryRow(query, args...).Scan(&n); err != nil {
		t.Fatalf("counting rows: %v", err)
	}
	return n
}
