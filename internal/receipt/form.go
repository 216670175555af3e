// Package receipt implements the miscellaneous material receipt form: input
// collection, the derived quantity and cost fields, and the posting sequence
// that stages a distribution series, posts the receipt and optionally hands
// the received material to a work order.
package receipt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/erazemk/nabava/internal/apperr"
	"github.com/erazemk/nabava/internal/model"
	"github.com/erazemk/nabava/internal/store"
)

// Ledger is the database side of the receipt form.
type Ledger interface {
	Metric(ctx context.Context, name string) (bool, error)
	ItemSite(ctx context.Context, itemID, warehouseID int64) (*model.ItemSite, error)
	InvHist(ctx context.Context, id int64) (*model.InvHist, error)
	NextSeries(ctx context.Context) (int64, error)
	CreateDistributionParent(ctx context.Context, itemSiteID int64, qty decimal.Decimal, series int64) (int64, error)
	// PostReceipt returns store.ErrNotFound when the procedure yields no row.
	PostReceipt(ctx context.Context, r model.Receipt) (int64, error)
	DeleteSeries(ctx context.Context, series int64) error
	WoMaterial(ctx context.Context, itemID, warehouseID, woID int64) (*model.WoMaterial, error)
}

// Distributor allocates the staged quantity of a series to locations.
// Returning false rejects the distribution.
type Distributor interface {
	SeriesAdjust(ctx context.Context, series int64) (bool, error)
}

// IssueRequest asks for received material to be issued to a work order.
type IssueRequest struct {
	WoID     int64           `json:"wo_id"`
	WomatlID int64           `json:"womatl_id"`
	Qty      decimal.Decimal `json:"qty"`
}

// Issuer issues work order material after a receipt.
type Issuer interface {
	IssueMaterial(ctx context.Context, req IssueRequest) error
}

// Form modes.
const (
	ModeNew  = "new"
	ModeView = "view"
)

// Focus targets.
const (
	FieldItem = "item"
	FieldQty  = "qty"
	FieldCost = "cost"
	FieldDate = "date"
)

// Outcome is how a successful or canceled Post left the form.
type Outcome int

const (
	// OutcomeReset means the receipt posted and the form is ready for the next one.
	OutcomeReset Outcome = iota
	// OutcomeClosed means the receipt posted and the captive form closed.
	OutcomeClosed
	// OutcomeCanceled means the distribution was rejected and nothing posted.
	OutcomeCanceled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeReset:
		return "reset"
	case OutcomeClosed:
		return "closed"
	case OutcomeCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// State is a snapshot of the form fields.
type State struct {
	Mode        string `json:"mode"`
	ItemID      int64  `json:"item_id,omitempty"`
	WarehouseID int64  `json:"warehouse_id,omitempty"`
	Qty         string `json:"qty"`
	CostAdjust  bool   `json:"cost_adjust"`
	// CostAdjustEnabled is false unless the item site is average costed.
	CostAdjustEnabled bool      `json:"cost_adjust_enabled"`
	CostManual        bool      `json:"cost_manual"`
	Cost              string    `json:"cost"`
	DocNumber         string    `json:"doc_number"`
	Notes             string    `json:"notes"`
	IssueToWo         bool      `json:"issue_to_wo"`
	WoID              int64     `json:"wo_id,omitempty"`
	TransDate         time.Time `json:"trans_date"`
	DateEditable      bool      `json:"date_editable"`
	Username          string    `json:"username,omitempty"`
	Captive           bool      `json:"captive"`

	ItemSiteID int64            `json:"itemsite_id,omitempty"`
	Controlled bool             `json:"controlled"`
	BeforeQty  *decimal.Decimal `json:"before_qty,omitempty"`
	AfterQty   *decimal.Decimal `json:"after_qty,omitempty"`
	UnitCost   string           `json:"unit_cost"`
	Focus      string           `json:"focus"`

	SiteHidden    bool `json:"site_hidden"`
	CostTabHidden bool `json:"cost_tab_hidden"`

	// PendingIssue is the work order issue requested by the last post.
	PendingIssue *IssueRequest `json:"pending_issue,omitempty"`
}

// Form is one material receipt entry session. It is not safe for concurrent
// use; each caller owns its own Form.
type Form struct {
	ledger Ledger
	dist   Distributor
	issuer Issuer
	privs  model.PrivilegeSet
	user   string
	now    func() time.Time

	st         State
	cachedQOH  decimal.Decimal
	fractional bool
	itemNumber string
	siteCode   string
}

// Options configures a new Form. Issuer may be nil, in which case the
// follow-up work order issue is only recorded in PendingIssue.
type Options struct {
	Distributor Distributor
	Issuer      Issuer
	Privileges  model.PrivilegeSet
	User        string
	Now         func() time.Time
}

// New creates a form and applies the site metrics.
func New(ctx context.Context, ledger Ledger, opts Options) (*Form, error) {
	f := &Form{
		ledger: ledger,
		dist:   opts.Distributor,
		issuer: opts.Issuer,
		privs:  opts.Privileges,
		user:   opts.User,
		now:    opts.Now,
	}
	if f.now == nil {
		f.now = time.Now
	}

	multiWhs, err := ledger.Metric(ctx, "MultiWhs")
	if err != nil {
		return nil, apperr.Query("Error Retrieving Site Metrics", err)
	}
	avgCost, err := ledger.Metric(ctx, "AllowAvgCostMethod")
	if err != nil {
		return nil, apperr.Query("Error Retrieving Site Metrics", err)
	}

	f.st.SiteHidden = !multiWhs
	f.st.CostTabHidden = !avgCost
	f.st.Focus = FieldItem
	f.st.UnitCost = "N/A"
	if err := f.Set(ctx, ModeNew, 0); err != nil {
		return nil, err
	}
	return f, nil
}

// State returns a copy of the form fields.
func (f *Form) State() State {
	return f.st
}

// Set switches the form into new or view mode. View mode loads a posted
// history row read-only.
func (f *Form) Set(ctx context.Context, mode string, invhistID int64) error {
	switch mode {
	case ModeNew:
		f.st.Mode = ModeNew
		f.st.Username = ""
		f.st.DateEditable = f.privs.Has(model.PrivAlterTransactionDates)
		f.st.TransDate = truncateDay(f.now())
		return nil

	case ModeView:
		h, err := f.ledger.InvHist(ctx, invhistID)
		if err != nil {
			return apperr.Query("Error Retrieving Item Information", err)
		}
		if h == nil {
			return apperr.NotFound("Error Retrieving Item Information",
				fmt.Sprintf("Inventory history %d was not found.", invhistID))
		}

		f.st.Mode = ModeView
		f.st.DateEditable = false
		f.st.ItemSiteID = h.ItemSiteID
		f.st.TransDate = h.TransDate
		f.st.Username = h.User
		f.st.Qty = h.Qty.String()
		before, after := h.QOHBefore, h.QOHAfter
		f.st.BeforeQty = &before
		f.st.AfterQty = &after
		f.st.DocNumber = h.OrdNumber
		if f.st.DocNumber == "" {
			f.st.DocNumber = h.DocNumber
		}
		f.st.Notes = h.Comments
		return nil

	default:
		return apperr.Input("Invalid Mode", fmt.Sprintf("Unknown form mode %q.", mode), "")
	}
}

// SetCaptive makes the form close after a successful post instead of
// resetting for the next entry.
func (f *Form) SetCaptive(captive bool) {
	f.st.Captive = captive
}

// SetItem selects the item and refreshes the quantity fields.
func (f *Form) SetItem(ctx context.Context, itemID int64) error {
	if err := f.editable(); err != nil {
		return err
	}
	f.st.ItemID = itemID
	return f.PopulateQty(ctx)
}

// SetWarehouse selects the site and refreshes the quantity fields.
func (f *Form) SetWarehouse(ctx context.Context, warehouseID int64) error {
	if err := f.editable(); err != nil {
		return err
	}
	f.st.WarehouseID = warehouseID
	return f.PopulateQty(ctx)
}

// SetIssueToWo toggles issuing the receipt to a work order.
func (f *Form) SetIssueToWo(ctx context.Context, issue bool, woID int64) error {
	if err := f.editable(); err != nil {
		return err
	}
	f.st.IssueToWo = issue
	f.st.WoID = woID
	return f.PopulateQty(ctx)
}

// SetQty sets the quantity text. Items that are not fractional only take
// whole quantities.
func (f *Form) SetQty(text string) error {
	if err := f.editable(); err != nil {
		return err
	}
	text = strings.TrimSpace(text)
	if f.st.ItemSiteID != 0 && !f.fractional && text != "" {
		if q, err := decimal.NewFromString(text); err == nil && !q.IsInteger() {
			f.st.Focus = FieldQty
			return apperr.Input("Invalid Quantity",
				"Item "+f.itemNumber+" does not allow fractional quantities.", FieldQty)
		}
	}
	f.st.Qty = text
	f.UpdateQty(text)
	f.CostUpdated()
	return nil
}

// SetCost sets the cost adjustment fields.
func (f *Form) SetCost(adjust, manual bool, cost string) error {
	if err := f.editable(); err != nil {
		return err
	}
	f.st.CostAdjust = adjust
	f.st.CostManual = manual
	f.st.Cost = strings.TrimSpace(cost)
	f.CostUpdated()
	return nil
}

// SetDocument sets the document number and notes.
func (f *Form) SetDocument(docNumber, notes string) error {
	if err := f.editable(); err != nil {
		return err
	}
	f.st.DocNumber = docNumber
	f.st.Notes = notes
	return nil
}

// SetTransDate changes the transaction date. Requires AlterTransactionDates.
func (f *Form) SetTransDate(d time.Time) error {
	if err := f.editable(); err != nil {
		return err
	}
	if !f.st.DateEditable {
		f.st.Focus = FieldDate
		return apperr.Forbidden(model.PrivAlterTransactionDates)
	}
	f.st.TransDate = truncateDay(d)
	return nil
}

// PopulateQty reloads the item site of the selected item and site.
func (f *Form) PopulateQty(ctx context.Context) error {
	if f.st.ItemID == 0 || f.st.WarehouseID == 0 {
		return nil
	}

	site, err := f.ledger.ItemSite(ctx, f.st.ItemID, f.st.WarehouseID)
	if err != nil {
		return apperr.Query("Error Retrieving Inventory Information", err)
	}
	if site == nil {
		f.st.ItemSiteID = 0
		f.st.Controlled = false
		f.st.BeforeQty = nil
		f.st.AfterQty = nil
		f.cachedQOH = decimal.Zero
		f.itemNumber = ""
		f.siteCode = ""
		return nil
	}

	f.st.ItemSiteID = site.ID
	f.st.Controlled = site.Controlled
	f.cachedQOH = site.QtyOnHand
	f.fractional = site.Fractional
	f.itemNumber = site.ItemNumber
	f.siteCode = site.SiteCode
	if f.cachedQOH.IsZero() {
		f.st.CostManual = true
	}
	before := site.QtyOnHand
	f.st.BeforeQty = &before
	f.st.CostAdjust = true
	f.st.CostAdjustEnabled = site.CostMethod == model.CostMethodAverage && !f.st.CostTabHidden

	if f.st.IssueToWo {
		after := site.QtyOnHand
		f.st.AfterQty = &after
	} else if qty := parseQty(f.st.Qty); !qty.IsZero() {
		after := f.cachedQOH.Add(qty)
		f.st.AfterQty = &after
	}
	return nil
}

// UpdateQty recomputes the after quantity for a new quantity text.
func (f *Form) UpdateQty(text string) {
	var after decimal.Decimal
	if f.st.IssueToWo {
		if f.st.BeforeQty != nil {
			after = *f.st.BeforeQty
		}
	} else {
		after = f.cachedQOH.Add(parseQty(text))
	}
	f.st.AfterQty = &after
}

// CostUpdated recomputes the unit cost display.
func (f *Form) CostUpdated() {
	cost := parseQty(f.st.Cost)
	qty := parseQty(f.st.Qty)
	if cost.IsZero() || qty.IsZero() {
		f.st.UnitCost = "N/A"
		return
	}
	f.st.UnitCost = cost.Div(qty).StringFixed(4)
}

// Post runs the posting sequence. Input errors move Focus to the offending
// field and write nothing. Any failure after the series is allocated deletes
// the series before returning.
func (f *Form) Post(ctx context.Context) (Outcome, error) {
	if f.st.Mode == ModeView {
		return 0, apperr.Canceled("Cannot Post Transaction", "This transaction has already been posted.")
	}

	qty := parseQty(f.st.Qty)
	cost := parseQty(f.st.Cost)

	checks := []struct {
		failed bool
		msg    string
		field  string
	}{
		{f.st.ItemID == 0,
			"You must select an Item before posting this transaction.", FieldItem},
		{f.st.Qty == "" || !qty.IsPositive(),
			"You must enter a positive Quantity before posting this Transaction.", FieldQty},
		{f.st.CostAdjustEnabled && f.st.CostAdjust && f.st.CostManual && (f.st.Cost == "" || cost.IsZero()),
			"You must enter a total cost value for the inventory to be transacted.", FieldCost},
	}
	for _, c := range checks {
		if c.failed {
			f.st.Focus = c.field
			return 0, apperr.Input("Cannot Post Transaction", c.msg, c.field)
		}
	}

	series, err := f.ledger.NextSeries(ctx)
	if err != nil {
		return 0, apperr.Query("Failed to Retrieve the Next itemloc_series_seq", err)
	}
	if series <= 0 {
		return 0, apperr.Queryf("Failed to Retrieve the Next itemloc_series_seq", "sequence returned %d", series)
	}

	cleanup := func() {
		if err := f.ledger.DeleteSeries(ctx, series); err != nil {
			slog.Error("failed to delete itemloc series", "series", series, "error", err)
		}
	}

	if f.st.Controlled {
		if _, err := f.ledger.CreateDistributionParent(ctx, f.st.ItemSiteID, qty, series); err != nil {
			return 0, apperr.Query("Error Creating itemlocdist Records", err)
		}

		accepted := false
		if f.dist != nil {
			accepted, err = f.dist.SeriesAdjust(ctx, series)
			if err != nil {
				cleanup()
				if errors.Is(err, store.ErrInvalid) {
					return 0, apperr.Input("Error Distributing Inventory", err.Error(), "locations")
				}
				return 0, apperr.Query("Error Distributing Inventory", err)
			}
		}
		if !accepted {
			cleanup()
			slog.Info("receipt canceled", "series", series, "itemsite_id", f.st.ItemSiteID)
			return OutcomeCanceled, apperr.Canceled("Enter Receipt", "Transaction Canceled")
		}
	}

	r := model.Receipt{
		ItemSiteID: f.st.ItemSiteID,
		Qty:        qty,
		DocNumber:  f.st.DocNumber,
		Comments:   f.st.Notes,
		TransDate:  f.st.TransDate,
		Series:     series,
		User:       f.user,
	}
	if !f.st.CostAdjust {
		zero := decimal.Zero
		r.Cost = &zero
	} else if f.st.CostManual && !f.st.CostTabHidden {
		r.Cost = &cost
	}

	result, err := f.ledger.PostReceipt(ctx, r)
	switch {
	case errors.Is(err, store.ErrNotFound):
		cleanup()
		return 0, apperr.NotFound("Error Occurred", fmt.Sprintf(
			"Enter Receipt: No transaction was done because Item %s was not found at Site %s.",
			f.itemLabel(), f.siteLabel()))
	case err != nil:
		cleanup()
		return 0, apperr.Query("Error Retrieving Inventory Information", err)
	case result < 0 || result != series:
		cleanup()
		return 0, apperr.Queryf("Error Retrieving Inventory Information", "%s", receiptErrorMessage(result))
	}

	slog.Info("receipt posted",
		"series", series,
		"itemsite_id", r.ItemSiteID,
		"qty", qty.String(),
		"user", f.user,
	)

	f.st.PendingIssue = nil
	if f.st.IssueToWo {
		f.issueToWo(ctx, qty)
	}

	if f.st.Captive {
		return OutcomeClosed, nil
	}
	f.reset()
	return OutcomeReset, nil
}

// issueToWo hands the received material to the work order. The receipt is
// already posted, so failures are only logged.
func (f *Form) issueToWo(ctx context.Context, qty decimal.Decimal) {
	m, err := f.ledger.WoMaterial(ctx, f.st.ItemID, f.st.WarehouseID, f.st.WoID)
	if err != nil {
		slog.Error("failed to look up work order material", "wo_id", f.st.WoID, "error", err)
		return
	}
	if m == nil || !m.ManualIssue() {
		return
	}

	req := IssueRequest{WoID: f.st.WoID, WomatlID: m.ID, Qty: qty}
	f.st.PendingIssue = &req
	if f.issuer == nil {
		return
	}
	if err := f.issuer.IssueMaterial(ctx, req); err != nil {
		slog.Error("failed to issue work order material", "wo_id", req.WoID, "womatl_id", req.WomatlID, "error", err)
		return
	}
	f.st.PendingIssue = nil
}

func (f *Form) reset() {
	f.st.ItemID = 0
	f.st.ItemSiteID = 0
	f.st.Controlled = false
	f.st.Qty = ""
	f.st.BeforeQty = nil
	f.st.AfterQty = nil
	f.st.DocNumber = ""
	f.st.IssueToWo = false
	f.st.WoID = 0
	f.st.Notes = ""
	f.st.Focus = FieldItem
	f.cachedQOH = decimal.Zero
}

func (f *Form) editable() error {
	if f.st.Mode == ModeView {
		return apperr.Canceled("Read Only", "Posted transactions cannot be edited.")
	}
	return nil
}

func (f *Form) itemLabel() string {
	if f.itemNumber != "" {
		return f.itemNumber
	}
	return fmt.Sprintf("#%d", f.st.ItemID)
}

func (f *Form) siteLabel() string {
	if f.siteCode != "" {
		return f.siteCode
	}
	return fmt.Sprintf("#%d", f.st.WarehouseID)
}

// parseQty reads a numeric field. Unparseable text reads as zero.
func parseQty(text string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(text))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func receiptErrorMessage(code int64) string {
	switch code {
	case store.ReceiptErrQty:
		return "The receipt quantity must be greater than zero."
	case store.ReceiptErrJobCost:
		return "Job cost item sites cannot receive miscellaneous inventory."
	case store.ReceiptErrDistribution:
		return "The location distribution does not match the receipt quantity."
	default:
		return fmt.Sprintf("invReceipt returned an unexpected result %d.", code)
	}
}
