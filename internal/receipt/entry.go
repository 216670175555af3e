package receipt

import (
	"context"
	"time"
)

// Entry is a receipt entered in one go, as the API and the command line do.
// Nil cost flags keep what the item site populated.
type Entry struct {
	ItemID      int64
	WarehouseID int64
	IssueToWo   bool
	WoID        int64
	Qty         string
	CostAdjust  *bool
	CostManual  *bool
	Cost        string
	DocNumber   string
	Notes       string
	TransDate   time.Time
}

// Enter sets the form fields in the order an operator fills them, stopping
// at the first rejected field. A zero TransDate keeps today.
func (f *Form) Enter(ctx context.Context, e Entry) error {
	steps := []func() error{
		func() error { return f.SetWarehouse(ctx, e.WarehouseID) },
		func() error { return f.SetItem(ctx, e.ItemID) },
		func() error { return f.SetIssueToWo(ctx, e.IssueToWo, e.WoID) },
		func() error { return f.SetQty(e.Qty) },
		func() error {
			adjust, manual := f.st.CostAdjust, f.st.CostManual
			if e.CostAdjust != nil {
				adjust = *e.CostAdjust
			}
			if e.CostManual != nil {
				manual = *e.CostManual
			}
			return f.SetCost(adjust, manual, e.Cost)
		},
		func() error { return f.SetDocument(e.DocNumber, e.Notes) },
	}
	if !e.TransDate.IsZero() {
		steps = append(steps, func() error { return f.SetTransDate(e.TransDate) })
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}
