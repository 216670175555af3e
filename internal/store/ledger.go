package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"github.com/erazemk/nabava/internal/model"
)

// Ledger runs the purchasing and inventory operations against the embedded
// SQLite database. Its methods forward to the package functions of the same
// concern.
type Ledger struct {
	DB *sql.DB
}

// Metric reports a boolean site setting.
func (l Ledger) Metric(ctx context.Context, name string) (bool, error) {
	return GetMetricBool(ctx, l.DB, name)
}

// ItemSite looks up the item site of an item at a warehouse.
func (l Ledger) ItemSite(ctx context.Context, itemID, warehouseID int64) (*model.ItemSite, error) {
	return LookupItemSite(ctx, l.DB, itemID, warehouseID)
}

// InvHist returns a posted inventory history entry.
func (l Ledger) InvHist(ctx context.Context, id int64) (*model.InvHist, error) {
	return GetInvHist(ctx, l.DB, id)
}

// NextSeries allocates a distribution series.
func (l Ledger) NextSeries(ctx context.Context) (int64, error) {
	return NextItemlocSeries(ctx, l.DB)
}

// CreateDistributionParent opens a receipt distribution for series.
func (l Ledger) CreateDistributionParent(ctx context.Context, itemSiteID int64, qty decimal.Decimal, series int64) (int64, error) {
	return CreateItemlocdistParent(ctx, l.DB, itemSiteID, qty, model.TransTypeReceipt, series)
}

// PostReceipt posts r and returns the result code.
func (l Ledger) PostReceipt(ctx context.Context, r model.Receipt) (int64, error) {
	return InvReceipt(ctx, l.DB, r)
}

// DeleteSeries drops every distribution row of series.
func (l Ledger) DeleteSeries(ctx context.Context, series int64) error {
	_, err := DeleteItemlocSeries(ctx, l.DB, series)
	return err
}

// WoMaterial finds the material requirement of a work order.
func (l Ledger) WoMaterial(ctx context.Context, itemID, warehouseID, woID int64) (*model.WoMaterial, error) {
	return FindWoMaterial(ctx, l.DB, itemID, warehouseID, woID)
}

// IssueWoMaterial issues qty against a work order material.
func (l Ledger) IssueWoMaterial(ctx context.Context, womatlID int64, qty decimal.Decimal, user string, date time.Time) (int64, error) {
	return IssueWoMaterial(ctx, l.DB, womatlID, qty, user, date)
}

// ListPoItems returns the purchase order items matching f.
func (l Ledger) ListPoItems(ctx context.Context, f model.PoItemFilter) ([]model.PoItem, error) {
	return ListPoItems(ctx, l.DB, f)
}

// SetPoItemStatus sets the status of a PO item.
func (l Ledger) SetPoItemStatus(ctx context.Context, poitemID int64, status string) error {
	return SetPoItemStatus(ctx, l.DB, poitemID, status)
}

// PoItemItemSite returns the item site of a PO item, nil for non-inventory lines.
func (l Ledger) PoItemItemSite(ctx context.Context, poitemID int64) (*int64, error) {
	return PoItemItemSite(ctx, l.DB, poitemID)
}

// Reschedule moves the due date of a PO item.
func (l Ledger) Reschedule(ctx context.Context, poitemID int64, due time.Time) error {
	return ReschedulePoItem(ctx, l.DB, poitemID, due)
}

// ChangeQty changes the ordered quantity of a PO item.
func (l Ledger) ChangeQty(ctx context.Context, poitemID int64, qty decimal.Decimal) error {
	return ChangePoItemQty(ctx, l.DB, poitemID, qty)
}

// ListCountTags returns the count tags matching f.
func (l Ledger) ListCountTags(ctx context.Context, f model.CountTagFilter) ([]model.CountTag, error) {
	return ListCountTags(ctx, l.DB, f)
}

// PurgeStaleSeries deletes series staged before cutoff and never cleaned up.
func (l Ledger) PurgeStaleSeries(ctx context.Context, cutoff time.Time) ([]int64, error) {
	return PurgeStaleSeries(ctx, l.DB, cutoff)
}

// DistributeSeries allocates the series quantity across locations.
func (l Ledger) DistributeSeries(ctx context.Context, series int64, allocations []model.LocationQty) error {
	return DistributeSeries(ctx, l.DB, series, allocations)
}

// DefaultSite returns the only active site, or 0 when there is not exactly one.
func (l Ledger) DefaultSite(ctx context.Context) (int64, error) {
	sites, err := ListSites(ctx, l.DB)
	if err != nil {
		return 0, err
	}
	if len(sites) != 1 {
		return 0, nil
	}
	return sites[0].ID, nil
}
