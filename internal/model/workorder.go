package model

import "github.com/shopspring/decimal"

// Work order material issue methods.
const (
	IssuePush  = "S"
	IssuePull  = "L"
	IssueMixed = "M"
)

// WorkOrder is a manufacturing work order.
type WorkOrder struct {
	ID         int64           `json:"id"`
	Number     int             `json:"number"`
	SubNumber  int             `json:"sub_number"`
	Status     string          `json:"status"`
	ItemSiteID int64           `json:"itemsite_id"`
	QtyOrdered decimal.Decimal `json:"qty_ordered"`
}

// WoMaterial is a component requirement of a work order.
type WoMaterial struct {
	ID          int64           `json:"id"`
	WoID        int64           `json:"wo_id"`
	ItemSiteID  int64           `json:"itemsite_id"`
	IssueMethod string          `json:"issue_method"`
	QtyRequired decimal.Decimal `json:"qty_required"`
	QtyIssued   decimal.Decimal `json:"qty_issued"`
}

// ManualIssue reports whether material is issued by hand (push or mixed)
// rather than backflushed.
func (m *WoMaterial) ManualIssue() bool {
	return m.IssueMethod == IssuePush || m.IssueMethod == IssueMixed
}
