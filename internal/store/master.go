package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/erazemk/nabava/internal/model"
)

// CreateSite creates an inventory site.
func CreateSite(ctx context.Context, db *sql.DB, code, description string) (*model.Site, error) {
	result, err := db.ExecContext(ctx,
		`INSERT INTO whsinfo (warehous_code, warehous_descrip) VALUES (?, ?)`,
		code, description,
	)
	if err != nil {
		return nil, fmt.Errorf("creating site: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting site id: %w", err)
	}
	return &model.Site{ID: id, Code: code, Description: description, Active: true}, nil
}

// ListSites returns all active sites.
func ListSites(ctx context.Context, db *sql.DB) ([]model.Site, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT warehous_id, warehous_code, warehous_descrip, warehous_active
		 FROM whsinfo WHERE warehous_active ORDER BY warehous_code`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing sites: %w", err)
	}
	defer rows.Close()

	var sites []model.Site
	for rows.Next() {
		var s model.Site
		if err := rows.Scan(&s.ID, &s.Code, &s.Description, &s.Active); err != nil {
			return nil, fmt.Errorf("scanning site: %w", err)
		}
		sites = append(sites, s)
	}
	return sites, rows.Err()
}

// CreateClassCode creates an item class code.
func CreateClassCode(ctx context.Context, db *sql.DB, code, description string) (int64, error) {
	result, err := db.ExecContext(ctx,
		`INSERT INTO classcode (classcode_code, classcode_descrip) VALUES (?, ?)`,
		code, description,
	)
	if err != nil {
		return 0, fmt.Errorf("creating class code: %w", err)
	}
	return result.LastInsertId()
}

// CreateItem creates an item master record.
func CreateItem(ctx context.Context, db *sql.DB, item model.Item) (*model.Item, error) {
	if item.UOM == "" {
		item.UOM = "EA"
	}
	result, err := db.ExecContext(ctx,
		`INSERT INTO item (item_number, item_descrip1, item_inv_uom, item_fractional, item_classcode_id)
		 VALUES (?, ?, ?, ?, ?)`,
		item.Number, item.Description, item.UOM, item.Fractional, item.ClassCodeID,
	)
	if err != nil {
		return nil, fmt.Errorf("creating item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting item id: %w", err)
	}

	return GetItem(ctx, db, id)
}

// GetItem returns an item by ID.
func GetItem(ctx context.Context, db *sql.DB, id int64) (*model.Item, error) {
	item := &model.Item{}
	err := db.QueryRowContext(ctx,
		`SELECT item_id, item_number, item_descrip1, item_inv_uom, item_fractional, item_classcode_id, item_active
		 FROM item WHERE item_id = ?`, id,
	).Scan(&item.ID, &item.Number, &item.Description, &item.UOM, &item.Fractional, &item.ClassCodeID, &item.Active)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return item, nil
}

// ListItems returns all active items.
func ListItems(ctx context.Context, db *sql.DB) ([]model.Item, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT item_id, item_number, item_descrip1, item_inv_uom, item_fractional, item_classcode_id, item_active
		 FROM item WHERE item_active ORDER BY item_number`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		var item model.Item
		if err := rows.Scan(&item.ID, &item.Number, &item.Description, &item.UOM, &item.Fractional, &item.ClassCodeID, &item.Active); err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// CreateItemSite stocks an item at a site.
func CreateItemSite(ctx context.Context, db *sql.DB, s model.ItemSite) (*model.ItemSite, error) {
	if s.CostMethod == "" {
		s.CostMethod = model.CostMethodStandard
	}
	result, err := db.ExecContext(ctx,
		`INSERT INTO itemsite (itemsite_item_id, itemsite_warehous_id, itemsite_qtyonhand, itemsite_value,
		                       itemsite_stdcost, itemsite_costmethod, itemsite_loccntrl)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.ItemID, s.WarehouseID, s.QtyOnHand, s.Value, s.StdCost, s.CostMethod, s.LocCntrl,
	)
	if err != nil {
		return nil, fmt.Errorf("creating item site: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting item site id: %w", err)
	}

	return getItemSite(ctx, db, id)
}

const itemSiteColumns = `s.itemsite_id, s.itemsite_item_id, s.itemsite_warehous_id, s.itemsite_qtyonhand,
	        s.itemsite_value, s.itemsite_stdcost, s.itemsite_costmethod, s.itemsite_loccntrl,
	        s.itemsite_active, i.item_number, i.item_fractional, w.warehous_code`

const itemSiteFrom = ` FROM itemsite s
	 JOIN item i ON i.item_id = s.itemsite_item_id
	 JOIN whsinfo w ON w.warehous_id = s.itemsite_warehous_id`

func scanItemSite(row *sql.Row) (*model.ItemSite, error) {
	s := &model.ItemSite{}
	err := row.Scan(&s.ID, &s.ItemID, &s.WarehouseID, &s.QtyOnHand, &s.Value, &s.StdCost,
		&s.CostMethod, &s.LocCntrl, &s.Active, &s.ItemNumber, &s.Fractional, &s.SiteCode)
	if err != nil {
		return nil, err
	}
	s.Controlled = s.LocCntrl
	return s, nil
}

func getItemSite(ctx context.Context, q querier, id int64) (*model.ItemSite, error) {
	s, err := scanItemSite(q.QueryRowContext(ctx,
		`SELECT `+itemSiteColumns+itemSiteFrom+` WHERE s.itemsite_id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item site: %w", err)
	}
	return s, nil
}

// GetItemSite returns an item site by ID, or nil if it does not exist.
func GetItemSite(ctx context.Context, db *sql.DB, id int64) (*model.ItemSite, error) {
	return getItemSite(ctx, db, id)
}

// LookupItemSite returns the item site of an item at a site, or nil if the
// item is not stocked there.
func LookupItemSite(ctx context.Context, db *sql.DB, itemID, warehouseID int64) (*model.ItemSite, error) {
	s, err := scanItemSite(db.QueryRowContext(ctx,
		`SELECT `+itemSiteColumns+itemSiteFrom+`
		 WHERE s.itemsite_item_id = ? AND s.itemsite_warehous_id = ?`,
		itemID, warehouseID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up item site: %w", err)
	}
	return s, nil
}

// CreateLocation creates a storage location at a site.
func CreateLocation(ctx context.Context, db *sql.DB, warehouseID int64, name string) (*model.Location, error) {
	result, err := db.ExecContext(ctx,
		`INSERT INTO location (location_warehous_id, location_name) VALUES (?, ?)`,
		warehouseID, name,
	)
	if err != nil {
		return nil, fmt.Errorf("creating location: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting location id: %w", err)
	}
	return &model.Location{ID: id, WarehouseID: warehouseID, Name: name}, nil
}

// ListItemLocations returns the per-location quantities of an item site.
func ListItemLocations(ctx context.Context, db *sql.DB, itemSiteID int64) ([]model.ItemLocation, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT il.itemloc_itemsite_id, il.itemloc_location_id, l.location_name, il.itemloc_qty
		 FROM itemloc il
		 JOIN location l ON l.location_id = il.itemloc_location_id
		 WHERE il.itemloc_itemsite_id = ?
		 ORDER BY l.location_name`, itemSiteID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing item locations: %w", err)
	}
	defer rows.Close()

	var locs []model.ItemLocation
	for rows.Next() {
		var l model.ItemLocation
		if err := rows.Scan(&l.ItemSiteID, &l.LocationID, &l.LocationName, &l.Qty); err != nil {
			return nil, fmt.Errorf("scanning item location: %w", err)
		}
		locs = append(locs, l)
	}
	return locs, rows.Err()
}

// addItemLocQty upserts the quantity of an item site at a location.
func addItemLocQty(ctx context.Context, q querier, itemSiteID, locationID int64, qty decimal.Decimal) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO itemloc (itemloc_itemsite_id, itemloc_location_id, itemloc_qty) VALUES (?, ?, ?)
		 ON CONFLICT (itemloc_itemsite_id, itemloc_location_id) DO UPDATE SET itemloc_qty = itemloc_qty + excluded.itemloc_qty`,
		itemSiteID, locationID, qty,
	)
	if err != nil {
		return fmt.Errorf("updating item location: %w", err)
	}
	return nil
}
