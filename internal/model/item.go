package model

import "github.com/shopspring/decimal"

// Site is an inventory site (warehouse).
type Site struct {
	ID          int64  `json:"id"`
	Code        string `json:"code"`
	Description string `json:"description,omitempty"`
	Active      bool   `json:"active"`
}

// Item is an item master record.
type Item struct {
	ID          int64  `json:"id"`
	Number      string `json:"number"`
	Description string `json:"description,omitempty"`
	UOM         string `json:"uom"`
	Fractional  bool   `json:"fractional"`
	ClassCodeID *int64 `json:"classcode_id,omitempty"`
	Active      bool   `json:"active"`
}

// Cost methods of an item site.
const (
	CostMethodAverage  = "A"
	CostMethodStandard = "S"
	CostMethodJob      = "J"
	CostMethodNone     = "N"
)

// ItemSite is an item stocked at a site.
type ItemSite struct {
	ID          int64           `json:"id"`
	ItemID      int64           `json:"item_id"`
	WarehouseID int64           `json:"warehouse_id"`
	QtyOnHand   decimal.Decimal `json:"qty_on_hand"`
	Value       decimal.Decimal `json:"value"`
	StdCost     decimal.Decimal `json:"std_cost"`
	CostMethod  string          `json:"cost_method"`
	LocCntrl    bool            `json:"loc_cntrl"`
	Active      bool            `json:"active"`

	// Derived by the lookup (not always populated).
	Controlled bool   `json:"controlled"`
	ItemNumber string `json:"item_number,omitempty"`
	Fractional bool   `json:"fractional"`
	SiteCode   string `json:"site_code,omitempty"`
}

// UnitCost is the cost a receipt uses when no cost is supplied: standard cost
// for standard-cost sites, running average otherwise.
func (s *ItemSite) UnitCost() decimal.Decimal {
	if s.CostMethod == CostMethodStandard {
		return s.StdCost
	}
	if s.QtyOnHand.IsPositive() {
		return s.Value.Div(s.QtyOnHand)
	}
	return decimal.Zero
}

// Location is a storage location inside a site.
type Location struct {
	ID          int64  `json:"id"`
	WarehouseID int64  `json:"warehouse_id"`
	Name        string `json:"name"`
}

// ItemLocation is the on-hand quantity of an item site at one location.
type ItemLocation struct {
	ItemSiteID   int64           `json:"itemsite_id"`
	LocationID   int64           `json:"location_id"`
	LocationName string          `json:"location_name,omitempty"`
	Qty          decimal.Decimal `json:"qty"`
}
