package purchasing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/erazemk/nabava/internal/apperr"
	"github.com/erazemk/nabava/internal/store"
)

// Editor modes.
const (
	ModeEdit = "edit"
	ModeView = "view"
)

// Result is how a modal editor was dismissed.
type Result int

const (
	Accepted Result = iota
	Rejected
)

func (r Result) String() string {
	if r == Rejected {
		return "rejected"
	}
	return "accepted"
}

// OrderRequest opens a purchase order.
type OrderRequest struct {
	Mode     string
	PoheadID int64
}

// ItemRequest opens a purchase order line.
type ItemRequest struct {
	Mode     string
	PoitemID int64
}

// AvailabilityRequest opens the running availability of an item site.
type AvailabilityRequest struct {
	ItemSiteID int64
	Run        bool
}

// RescheduleRequest asks for a new due date of a line.
type RescheduleRequest struct {
	PoitemID int64
}

// ChangeQtyRequest asks for a new ordered quantity of a line.
type ChangeQtyRequest struct {
	PoitemID int64
}

// Editors are the windows and dialogs the display opens.
type Editors interface {
	Order(ctx context.Context, req OrderRequest) error
	Item(ctx context.Context, req ItemRequest) error
	Availability(ctx context.Context, req AvailabilityRequest) error
	Reschedule(ctx context.Context, req RescheduleRequest) (Result, error)
	ChangeQty(ctx context.Context, req ChangeQtyRequest) (Result, error)
}

// Launch describes a window the caller should open.
type Launch struct {
	Window string         `json:"window"`
	Params map[string]any `json:"params"`
}

// EditRepository applies reschedule and quantity changes.
type EditRepository interface {
	Reschedule(ctx context.Context, poitemID int64, due time.Time) error
	ChangeQty(ctx context.Context, poitemID int64, qty decimal.Decimal) error
}

// Answers are Editors for callers without interactive windows. Window
// requests are recorded as launches for the caller to open; the reschedule
// and change quantity dialogs are answered up front with DueDate and Qty,
// and a missing answer rejects the dialog.
type Answers struct {
	Repo    EditRepository
	DueDate *time.Time
	Qty     *decimal.Decimal

	Launched []Launch
}

func (a *Answers) Order(_ context.Context, req OrderRequest) error {
	a.launch("purchaseOrder", map[string]any{"mode": req.Mode, "pohead_id": req.PoheadID})
	return nil
}

func (a *Answers) Item(_ context.Context, req ItemRequest) error {
	a.launch("purchaseOrderItem", map[string]any{"mode": req.Mode, "poitem_id": req.PoitemID})
	return nil
}

func (a *Answers) Availability(_ context.Context, req AvailabilityRequest) error {
	a.launch("dspRunningAvailability", map[string]any{"itemsite_id": req.ItemSiteID, "run": req.Run})
	return nil
}

func (a *Answers) Reschedule(ctx context.Context, req RescheduleRequest) (Result, error) {
	if a.DueDate == nil {
		return Rejected, nil
	}
	err := a.Repo.Reschedule(ctx, req.PoitemID, *a.DueDate)
	if err != nil {
		return Rejected, editError("Error Rescheduling Item", req.PoitemID, err)
	}
	return Accepted, nil
}

func (a *Answers) ChangeQty(ctx context.Context, req ChangeQtyRequest) (Result, error) {
	if a.Qty == nil {
		return Rejected, nil
	}
	err := a.Repo.ChangeQty(ctx, req.PoitemID, *a.Qty)
	if err != nil {
		return Rejected, editError("Error Changing Quantity", req.PoitemID, err)
	}
	return Accepted, nil
}

func (a *Answers) launch(window string, params map[string]any) {
	a.Launched = append(a.Launched, Launch{Window: window, Params: params})
}

func editError(title string, poitemID int64, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound(title, fmt.Sprintf("Purchase order item %d was not found or is closed.", poitemID))
	}
	if errors.Is(err, store.ErrInvalid) {
		return apperr.Input(title, err.Error(), "")
	}
	return apperr.Query(title, err)
}
