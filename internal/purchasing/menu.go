package purchasing

import (
	"context"
	"fmt"

	"github.com/erazemk/nabava/internal/apperr"
	"github.com/erazemk/nabava/internal/model"
)

// Menu entry names.
const (
	ActionEditOrder           = "Edit Order"
	ActionViewOrder           = "View Order"
	ActionRunningAvailability = "Running Availability"
	ActionEditItem            = "Edit Item"
	ActionViewItem            = "View Item"
	ActionReschedule          = "Reschedule..."
	ActionChangeQty           = "Change Qty"
	ActionCloseItem           = "Close Item..."
	ActionOpenItem            = "Open Item"
)

// Action is one context menu entry. Separators have no name.
type Action struct {
	Name      string `json:"name,omitempty"`
	Enabled   bool   `json:"enabled"`
	Separator bool   `json:"separator,omitempty"`
}

// Menu builds the context menu of a line. Entries the caller lacks the
// privilege for are disabled, not removed.
func Menu(row *model.PoItem, privs model.PrivilegeSet) []Action {
	maintain := privs.Has(model.PrivMaintainPurchaseOrders)
	view := maintain || privs.Has(model.PrivViewPurchaseOrders)
	sep := Action{Separator: true}

	var menu []Action
	if row.Status == model.PoItemUnposted {
		menu = append(menu, Action{Name: ActionEditOrder, Enabled: maintain})
	}
	menu = append(menu,
		Action{Name: ActionViewOrder, Enabled: view},
		Action{Name: ActionRunningAvailability, Enabled: privs.Has(model.PrivViewInventoryAvailability)},
		sep,
	)

	if row.Status == model.PoItemUnposted {
		menu = append(menu, Action{Name: ActionEditItem, Enabled: maintain})
	}
	menu = append(menu, Action{Name: ActionViewItem, Enabled: view})

	if row.Status != model.PoItemClosed {
		menu = append(menu,
			Action{Name: ActionReschedule, Enabled: privs.Has(model.PrivReschedulePurchaseOrders)},
			Action{Name: ActionChangeQty, Enabled: privs.Has(model.PrivChangePurchaseOrderQty)},
			sep,
		)
	}

	switch row.Status {
	case model.PoItemOpen:
		menu = append(menu, Action{Name: ActionCloseItem, Enabled: maintain})
	case model.PoItemClosed:
		menu = append(menu, Action{Name: ActionOpenItem, Enabled: maintain})
	}
	return menu
}

// Invoke runs the named menu action against a listed line. Reschedule and
// change quantity report whether their editor accepted.
func (d *Display) Invoke(ctx context.Context, name string, poitemID int64) (Result, error) {
	row, ok := d.Row(poitemID)
	if !ok {
		return Rejected, apperr.NotFound("Unknown Item", fmt.Sprintf("Purchase order item %d is not listed.", poitemID))
	}

	offered := false
	for _, a := range Menu(row, d.privs) {
		if a.Name == name {
			offered = true
			break
		}
	}
	if !offered {
		return Rejected, apperr.Input("Invalid Action",
			fmt.Sprintf("%q is not available for a %s item.", name, row.StatusLabel), "")
	}

	switch name {
	case ActionEditOrder:
		return Accepted, d.EditOrder(ctx, row.PoheadID)
	case ActionViewOrder:
		return Accepted, d.ViewOrder(ctx, row.PoheadID)
	case ActionRunningAvailability:
		return Accepted, d.RunningAvailability(ctx, row.ID)
	case ActionEditItem:
		return Accepted, d.EditItem(ctx, row.ID)
	case ActionViewItem:
		return Accepted, d.ViewItem(ctx, row.ID)
	case ActionReschedule:
		return d.Reschedule(ctx, row.ID)
	case ActionChangeQty:
		return d.ChangeQty(ctx, row.ID)
	case ActionCloseItem:
		return Accepted, d.CloseItem(ctx, row.ID)
	default:
		return Accepted, d.OpenItem(ctx, row.ID)
	}
}
