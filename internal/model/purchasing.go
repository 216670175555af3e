package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Purchase order item statuses.
const (
	PoItemUnposted = "U"
	PoItemOpen     = "O"
	PoItemClosed   = "C"
)

// Vendor is a supplier.
type Vendor struct {
	ID     int64  `json:"id"`
	Number string `json:"number"`
	Name   string `json:"name"`
}

// PurchaseOrder is a purchase order header.
type PurchaseOrder struct {
	ID            int64  `json:"id"`
	Number        string `json:"number"`
	VendorID      int64  `json:"vendor_id"`
	WarehouseID   *int64 `json:"warehouse_id,omitempty"`
	AgentUsername string `json:"agent_username,omitempty"`
	Status        string `json:"status"`
}

// PoItem is a purchase order line as shown by the items-by-date display.
type PoItem struct {
	ID              int64           `json:"id"`
	PoheadID        int64           `json:"pohead_id"`
	LineNumber      int             `json:"line_number"`
	PoNumber        string          `json:"po_number"`
	SiteCode        string          `json:"site_code,omitempty"`
	Status          string          `json:"status"`
	StatusLabel     string          `json:"status_label"`
	VendorName      string          `json:"vendor_name"`
	DueDate         time.Time       `json:"due_date"`
	ItemSiteID      *int64          `json:"itemsite_id,omitempty"`
	ItemNumber      string          `json:"item_number"`
	ItemDescription string          `json:"item_description"`
	VendItemNumber  string          `json:"vend_item_number,omitempty"`
	UOM             string          `json:"uom,omitempty"`
	VendUOM         string          `json:"vend_uom,omitempty"`
	QtyOrdered      decimal.Decimal `json:"qty_ordered"`
	QtyReceived     decimal.Decimal `json:"qty_received"`
	QtyReturned     decimal.Decimal `json:"qty_returned"`
}

// NonInventory reports whether the line has no item site behind it.
func (p *PoItem) NonInventory() bool {
	return p.ItemSiteID == nil
}

// Item filters of the purchase order items display.
const (
	PoItemsAll    = "all"
	PoItemsOpen   = "open"
	PoItemsClosed = "closed"
)

// PoItemFilter selects purchase order lines by due date. Zero WarehouseID
// and empty Agent match everything.
type PoItemFilter struct {
	Start       time.Time
	End         time.Time
	WarehouseID int64
	Agent       string
	Items       string
}
