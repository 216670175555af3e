package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Inventory transaction types.
const (
	TransTypeReceipt = "RX"
	TransTypeIssueWo = "IM"
)

// InvHist is a posted inventory transaction. Rows are never updated.
type InvHist struct {
	ID         int64           `json:"id"`
	ItemSiteID int64           `json:"itemsite_id"`
	TransType  string          `json:"trans_type"`
	TransDate  time.Time       `json:"trans_date"`
	Qty        decimal.Decimal `json:"qty"`
	QOHBefore  decimal.Decimal `json:"qoh_before"`
	QOHAfter   decimal.Decimal `json:"qoh_after"`
	UnitCost   decimal.Decimal `json:"unit_cost"`
	OrdNumber  string          `json:"ord_number,omitempty"`
	DocNumber  string          `json:"doc_number,omitempty"`
	Comments   string          `json:"comments,omitempty"`
	User       string          `json:"user"`
	Series     int64           `json:"series,omitempty"`
}

// Receipt holds the arguments of a miscellaneous material receipt posting.
// A nil Cost lets the ledger value the receipt at the item site's unit cost.
type Receipt struct {
	ItemSiteID int64
	Qty        decimal.Decimal
	OrdNumber  string
	DocNumber  string
	Comments   string
	TransDate  time.Time
	Cost       *decimal.Decimal
	Series     int64
	User       string
}

// LocationQty is one location allocation of a distribution.
type LocationQty struct {
	LocationID int64           `json:"location_id"`
	Qty        decimal.Decimal `json:"qty"`
}

// Distribution is a pending location distribution staged under a series.
type Distribution struct {
	ID         int64           `json:"id"`
	Series     int64           `json:"series"`
	ItemSiteID int64           `json:"itemsite_id"`
	ParentID   *int64          `json:"parent_id,omitempty"`
	LocationID *int64          `json:"location_id,omitempty"`
	OrderType  string          `json:"order_type,omitempty"`
	Qty        decimal.Decimal `json:"qty"`
}
