package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/erazemk/nabava/internal/model"
)

// CreateVendor creates a vendor.
func CreateVendor(ctx context.Context, db *sql.DB, number, name string) (*model.Vendor, error) {
	result, err := db.ExecContext(ctx,
		`INSERT INTO vendinfo (vend_number, vend_name) VALUES (?, ?)`,
		number, name,
	)
	if err != nil {
		return nil, fmt.Errorf("creating vendor: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting vendor id: %w", err)
	}
	return &model.Vendor{ID: id, Number: number, Name: name}, nil
}

// CreatePurchaseOrder creates a purchase order header.
func CreatePurchaseOrder(ctx context.Context, db *sql.DB, po model.PurchaseOrder) (*model.PurchaseOrder, error) {
	if po.Status == "" {
		po.Status = model.PoItemUnposted
	}
	result, err := db.ExecContext(ctx,
		`INSERT INTO pohead (pohead_number, pohead_vend_id, pohead_warehous_id, pohead_agent_username, pohead_status)
		 VALUES (?, ?, ?, ?, ?)`,
		po.Number, po.VendorID, po.WarehouseID, po.AgentUsername, po.Status,
	)
	if err != nil {
		return nil, fmt.Errorf("creating purchase order: %w", err)
	}
	po.ID, err = result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting purchase order id: %w", err)
	}
	return &po, nil
}

// PoLine holds the editable fields of a new purchase order line.
type PoLine struct {
	ItemSiteID     *int64
	VendItemNumber string
	VendItemDescr  string
	VendUOM        string
	DueDate        time.Time
	QtyOrdered     decimal.Decimal
	UnitPrice      decimal.Decimal
}

// AddPoItem appends a line to a purchase order with the next line number.
// The line takes the status of its header.
func AddPoItem(ctx context.Context, db *sql.DB, poheadID int64, line PoLine) (int64, error) {
	var status string
	var next int
	err := db.QueryRowContext(ctx,
		`SELECT h.pohead_status, COALESCE(MAX(p.poitem_linenumber), 0) + 1
		 FROM pohead h LEFT JOIN poitem p ON p.poitem_pohead_id = h.pohead_id
		 WHERE h.pohead_id = ?
		 GROUP BY h.pohead_id`, poheadID,
	).Scan(&status, &next)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("getting purchase order: %w", err)
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO poitem (poitem_pohead_id, poitem_linenumber, poitem_status, poitem_itemsite_id,
		                     poitem_vend_item_number, poitem_vend_item_descrip, poitem_vend_uom,
		                     poitem_duedate, poitem_qty_ordered, poitem_unitprice)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		poheadID, next, status, line.ItemSiteID, line.VendItemNumber, line.VendItemDescr,
		line.VendUOM, dateArg(line.DueDate), line.QtyOrdered, line.UnitPrice,
	)
	if err != nil {
		return 0, fmt.Errorf("creating purchase order item: %w", err)
	}
	return result.LastInsertId()
}

// ListPoItems returns purchase order lines due within the filter's date range,
// ordered by due date.
func ListPoItems(ctx context.Context, db *sql.DB, f model.PoItemFilter) ([]model.PoItem, error) {
	where := []string{"p.poitem_duedate BETWEEN ? AND ?"}
	args := []any{dateArg(f.Start), dateArg(f.End)}

	if f.WarehouseID != 0 {
		where = append(where, "COALESCE(s.itemsite_warehous_id, h.pohead_warehous_id) = ?")
		args = append(args, f.WarehouseID)
	}
	if f.Agent != "" {
		where = append(where, "h.pohead_agent_username = ?")
		args = append(args, f.Agent)
	}
	switch f.Items {
	case model.PoItemsOpen:
		where = append(where, "p.poitem_status <> 'C'")
	case model.PoItemsClosed:
		where = append(where, "p.poitem_status = 'C'")
	}

	rows, err := db.QueryContext(ctx,
		`SELECT p.poitem_id, p.poitem_pohead_id, p.poitem_linenumber, h.pohead_number,
		        COALESCE(w.warehous_code, ''), p.poitem_status, v.vend_name, p.poitem_duedate,
		        p.poitem_itemsite_id, COALESCE(i.item_number, ''),
		        COALESCE(i.item_descrip1, p.poitem_vend_item_descrip), p.poitem_vend_item_number,
		        COALESCE(i.item_inv_uom, ''), p.poitem_vend_uom,
		        p.poitem_qty_ordered, p.poitem_qty_received, p.poitem_qty_returned
		 FROM poitem p
		 JOIN pohead h ON h.pohead_id = p.poitem_pohead_id
		 JOIN vendinfo v ON v.vend_id = h.pohead_vend_id
		 LEFT JOIN itemsite s ON s.itemsite_id = p.poitem_itemsite_id
		 LEFT JOIN item i ON i.item_id = s.itemsite_item_id
		 LEFT JOIN whsinfo w ON w.warehous_id = COALESCE(s.itemsite_warehous_id, h.pohead_warehous_id)
		 WHERE `+strings.Join(where, " AND ")+`
		 ORDER BY p.poitem_duedate, h.pohead_number, p.poitem_linenumber`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("listing purchase order items: %w", err)
	}
	defer rows.Close()

	var items []model.PoItem
	for rows.Next() {
		var p model.PoItem
		if err := rows.Scan(&p.ID, &p.PoheadID, &p.LineNumber, &p.PoNumber, &p.SiteCode, &p.Status,
			&p.VendorName, &p.DueDate, &p.ItemSiteID, &p.ItemNumber, &p.ItemDescription,
			&p.VendItemNumber, &p.UOM, &p.VendUOM, &p.QtyOrdered, &p.QtyReceived, &p.QtyReturned); err != nil {
			return nil, fmt.Errorf("scanning purchase order item: %w", err)
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

// SetPoItemStatus sets the status of a purchase order line.
func SetPoItemStatus(ctx context.Context, db *sql.DB, poitemID int64, status string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE poitem SET poitem_status = ? WHERE poitem_id = ?`,
		status, poitemID,
	)
	if err != nil {
		return fmt.Errorf("updating purchase order item status: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// PoItemItemSite returns the item site of a purchase order line.
// Non-inventory lines return nil. Returns ErrNotFound if the line is missing.
func PoItemItemSite(ctx context.Context, db *sql.DB, poitemID int64) (*int64, error) {
	var itemSiteID *int64
	err := db.QueryRowContext(ctx,
		`SELECT poitem_itemsite_id FROM poitem WHERE poitem_id = ?`, poitemID,
	).Scan(&itemSiteID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting purchase order item site: %w", err)
	}
	return itemSiteID, nil
}

// ReschedulePoItem moves the due date of an open purchase order line.
func ReschedulePoItem(ctx context.Context, db *sql.DB, poitemID int64, due time.Time) error {
	result, err := db.ExecContext(ctx,
		`UPDATE poitem SET poitem_duedate = ? WHERE poitem_id = ? AND poitem_status <> 'C'`,
		dateArg(due), poitemID,
	)
	if err != nil {
		return fmt.Errorf("rescheduling purchase order item: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ChangePoItemQty changes the ordered quantity of an open purchase order line.
// The new quantity may not drop below what was already received.
func ChangePoItemQty(ctx context.Context, db *sql.DB, poitemID int64, qty decimal.Decimal) error {
	var received decimal.Decimal
	err := db.QueryRowContext(ctx,
		`SELECT poitem_qty_received FROM poitem WHERE poitem_id = ? AND poitem_status <> 'C'`, poitemID,
	).Scan(&received)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("getting purchase order item: %w", err)
	}
	if !qty.IsPositive() || qty.LessThan(received) {
		return fmt.Errorf("%w: quantity %s must be positive and at least the received %s", ErrInvalid, qty, received)
	}

	_, err = db.ExecContext(ctx,
		`UPDATE poitem SET poitem_qty_ordered = ? WHERE poitem_id = ?`,
		qty, poitemID,
	)
	if err != nil {
		return fmt.Errorf("changing purchase order item quantity: %w", err)
	}
	return nil
}

// ReceivePoItem records a received quantity against a purchase order line.
func ReceivePoItem(ctx context.Context, db *sql.DB, poitemID int64, qty decimal.Decimal) error {
	result, err := db.ExecContext(ctx,
		`UPDATE poitem SET poitem_qty_received = poitem_qty_received + ? WHERE poitem_id = ?`,
		qty, poitemID,
	)
	if err != nil {
		return fmt.Errorf("receiving purchase order item: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
