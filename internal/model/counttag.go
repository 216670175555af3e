package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// CountTag is a physical inventory count tag.
type CountTag struct {
	ID         int64            `json:"id"`
	TagNumber  string           `json:"tag_number"`
	ItemSiteID int64            `json:"itemsite_id"`
	SiteCode   string           `json:"site_code"`
	ItemNumber string           `json:"item_number"`
	ClassCode  string           `json:"class_code"`
	QOHBefore  *decimal.Decimal `json:"qoh_before,omitempty"`
	QOHAfter   *decimal.Decimal `json:"qoh_after,omitempty"`
	TagDate    time.Time        `json:"tag_date"`
	CountDate  *time.Time       `json:"count_date,omitempty"`
	PostDate   *time.Time       `json:"post_date,omitempty"`
	Posted     bool             `json:"posted"`
}

// CountTagFilter selects count tags by tag date and class code. ClassCode is
// a LIKE pattern; empty selects every class code.
type CountTagFilter struct {
	Start       time.Time
	End         time.Time
	WarehouseID int64
	ClassCodeID int64
	ClassCode   string
}
