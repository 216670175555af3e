// Package purchasing implements the purchase order items by date display:
// parameter validation, the line list with its formatted status, the
// privilege-aware context menu and the actions behind it.
package purchasing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/erazemk/nabava/internal/apperr"
	"github.com/erazemk/nabava/internal/model"
	"github.com/erazemk/nabava/internal/store"
)

// Repository is the database side of the display.
type Repository interface {
	ListPoItems(ctx context.Context, f model.PoItemFilter) ([]model.PoItem, error)
	SetPoItemStatus(ctx context.Context, poitemID int64, status string) error
	// PoItemItemSite returns store.ErrNotFound for a missing line.
	PoItemItemSite(ctx context.Context, poitemID int64) (*int64, error)
}

// Date range sentinels selectable in place of a concrete date.
var (
	Earliest = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)
	Latest   = time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC)
)

// FieldDates is the focus target of date range errors.
const FieldDates = "dates"

// Status labels.
const (
	LabelNonInv   = "NonInv - "
	LabelClosed   = "Closed"
	LabelUnposted = "Unposted"
	LabelPartial  = "Partial"
	LabelReceived = "Received"
	LabelOpen     = "Open"
)

// Params are the display filters. A zero Start or End is missing.
type Params struct {
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	WarehouseID int64     `json:"warehouse_id,omitempty"`
	Agent       string    `json:"agent,omitempty"`
	Items       string    `json:"items,omitempty"`
}

// Validate checks the params, returning an input error focused on the
// offending field.
func (p Params) Validate() error {
	if p.Start.IsZero() {
		return apperr.Input("Enter Start Date", "Please enter a valid Start Date.", FieldDates)
	}
	if p.End.IsZero() {
		return apperr.Input("Enter End Date", "Please enter a valid End Date.", FieldDates)
	}
	switch p.Items {
	case "", model.PoItemsAll, model.PoItemsOpen, model.PoItemsClosed:
	default:
		return apperr.Input("Invalid Filter", fmt.Sprintf("Unknown item filter %q.", p.Items), "items")
	}
	return nil
}

// Display is one purchase order items by date list. It is not safe for
// concurrent use.
type Display struct {
	repo    Repository
	editors Editors
	privs   model.PrivilegeSet

	params Params
	rows   []model.PoItem
}

// New creates a display.
func New(repo Repository, editors Editors, privs model.PrivilegeSet) *Display {
	return &Display{repo: repo, editors: editors, privs: privs}
}

// SetParams validates and stores the filters. Invalid params leave the
// previous filters in place.
func (d *Display) SetParams(p Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	d.params = p
	return nil
}

// Params returns the current filters.
func (d *Display) Params() Params {
	return d.params
}

// Fill runs the list query with the current params.
func (d *Display) Fill(ctx context.Context) error {
	if err := d.params.Validate(); err != nil {
		return err
	}

	items, err := d.repo.ListPoItems(ctx, model.PoItemFilter{
		Start:       d.params.Start,
		End:         d.params.End,
		WarehouseID: d.params.WarehouseID,
		Agent:       d.params.Agent,
		Items:       d.params.Items,
	})
	if err != nil {
		return apperr.Query("Error Retrieving Purchase Order Items", err)
	}

	for i := range items {
		items[i].StatusLabel = StatusLabel(&items[i])
	}
	d.rows = items
	return nil
}

// Rows returns the list from the last Fill.
func (d *Display) Rows() []model.PoItem {
	return d.rows
}

// Row returns the listed line with the given poitem id.
func (d *Display) Row(poitemID int64) (*model.PoItem, bool) {
	for i := range d.rows {
		if d.rows[i].ID == poitemID {
			return &d.rows[i], true
		}
	}
	return nil, false
}

// StatusLabel formats the status of a purchase order line.
func StatusLabel(p *model.PoItem) string {
	var label string
	switch p.Status {
	case model.PoItemUnposted:
		label = LabelUnposted
	case model.PoItemClosed:
		label = LabelClosed
	case model.PoItemOpen:
		received := p.QtyReceived.Sub(p.QtyReturned)
		switch {
		case received.GreaterThanOrEqual(p.QtyOrdered):
			label = LabelReceived
		case received.GreaterThan(decimal.Zero):
			label = LabelPartial
		default:
			label = LabelOpen
		}
	default:
		label = p.Status
	}
	if p.NonInventory() {
		return LabelNonInv + label
	}
	return label
}

// EditOrder opens the order of a line for editing.
func (d *Display) EditOrder(ctx context.Context, poheadID int64) error {
	if !d.privs.Has(model.PrivMaintainPurchaseOrders) {
		return apperr.Forbidden(model.PrivMaintainPurchaseOrders)
	}
	return d.editors.Order(ctx, OrderRequest{Mode: ModeEdit, PoheadID: poheadID})
}

// ViewOrder opens the order of a line read-only.
func (d *Display) ViewOrder(ctx context.Context, poheadID int64) error {
	if !d.canView() {
		return apperr.Forbidden(model.PrivViewPurchaseOrders)
	}
	return d.editors.Order(ctx, OrderRequest{Mode: ModeView, PoheadID: poheadID})
}

// EditItem opens a line for editing.
func (d *Display) EditItem(ctx context.Context, poitemID int64) error {
	if !d.privs.Has(model.PrivMaintainPurchaseOrders) {
		return apperr.Forbidden(model.PrivMaintainPurchaseOrders)
	}
	return d.editors.Item(ctx, ItemRequest{Mode: ModeEdit, PoitemID: poitemID})
}

// ViewItem opens a line read-only.
func (d *Display) ViewItem(ctx context.Context, poitemID int64) error {
	if !d.canView() {
		return apperr.Forbidden(model.PrivViewPurchaseOrders)
	}
	return d.editors.Item(ctx, ItemRequest{Mode: ModeView, PoitemID: poitemID})
}

// RunningAvailability opens the availability view of the line's item site.
func (d *Display) RunningAvailability(ctx context.Context, poitemID int64) error {
	if !d.privs.Has(model.PrivViewInventoryAvailability) {
		return apperr.Forbidden(model.PrivViewInventoryAvailability)
	}

	itemSiteID, err := d.repo.PoItemItemSite(ctx, poitemID)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound("Error Retrieving Item Information",
			fmt.Sprintf("Purchase order item %d was not found.", poitemID))
	}
	if err != nil {
		return apperr.Query("Error Retrieving Item Information", err)
	}
	if itemSiteID == nil {
		return apperr.NotFound("Error Retrieving Item Information",
			fmt.Sprintf("Purchase order item %d is not an inventory item.", poitemID))
	}

	return d.editors.Availability(ctx, AvailabilityRequest{ItemSiteID: *itemSiteID, Run: true})
}

// Reschedule runs the reschedule editor and refreshes the list unless it
// was rejected.
func (d *Display) Reschedule(ctx context.Context, poitemID int64) (Result, error) {
	if !d.privs.Has(model.PrivReschedulePurchaseOrders) {
		return Rejected, apperr.Forbidden(model.PrivReschedulePurchaseOrders)
	}
	res, err := d.editors.Reschedule(ctx, RescheduleRequest{PoitemID: poitemID})
	if err != nil {
		return Rejected, err
	}
	if res == Rejected {
		return res, nil
	}
	return res, d.Fill(ctx)
}

// ChangeQty runs the change quantity editor and refreshes the list unless it
// was rejected.
func (d *Display) ChangeQty(ctx context.Context, poitemID int64) (Result, error) {
	if !d.privs.Has(model.PrivChangePurchaseOrderQty) {
		return Rejected, apperr.Forbidden(model.PrivChangePurchaseOrderQty)
	}
	res, err := d.editors.ChangeQty(ctx, ChangeQtyRequest{PoitemID: poitemID})
	if err != nil {
		return Rejected, err
	}
	if res == Rejected {
		return res, nil
	}
	return res, d.Fill(ctx)
}

// CloseItem closes a line and refreshes the list.
func (d *Display) CloseItem(ctx context.Context, poitemID int64) error {
	return d.setStatus(ctx, poitemID, model.PoItemClosed, "Error Closing Item")
}

// OpenItem reopens a closed line and refreshes the list.
func (d *Display) OpenItem(ctx context.Context, poitemID int64) error {
	return d.setStatus(ctx, poitemID, model.PoItemOpen, "Error Opening Item")
}

func (d *Display) setStatus(ctx context.Context, poitemID int64, status, title string) error {
	if !d.privs.Has(model.PrivMaintainPurchaseOrders) {
		return apperr.Forbidden(model.PrivMaintainPurchaseOrders)
	}

	err := d.repo.SetPoItemStatus(ctx, poitemID, status)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound(title, fmt.Sprintf("Purchase order item %d was not found.", poitemID))
	}
	if err != nil {
		return apperr.Query(title, err)
	}
	slog.Info("po item status changed", "poitem_id", poitemID, "status", status)

	return d.Fill(ctx)
}

func (d *Display) canView() bool {
	return d.privs.Has(model.PrivMaintainPurchaseOrders) || d.privs.Has(model.PrivViewPurchaseOrders)
}
