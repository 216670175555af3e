package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/erazemk/nabava/internal/apperr"
	"github.com/erazemk/nabava/internal/model"
	"github.com/erazemk/nabava/internal/receipt"
)

// InventoryHandler handles receipts, work order issues and count tags.
type InventoryHandler struct {
	Ledger Ledger
}

// defaultSiter is implemented by ledgers that can pick the site of a
// single-site installation.
type defaultSiter interface {
	DefaultSite(ctx context.Context) (int64, error)
}

// numText is a numeric field sent either as a JSON number or a string.
type numText string

func (n *numText) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*n = numText(s)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(b, &num); err != nil {
		return err
	}
	*n = numText(num.String())
	return nil
}

type receiptRequest struct {
	ItemID      int64               `json:"item_id"`
	WarehouseID int64               `json:"warehouse_id"`
	Qty         numText             `json:"qty"`
	CostAdjust  *bool               `json:"cost_adjust"`
	CostManual  *bool               `json:"cost_manual"`
	Cost        numText             `json:"cost"`
	DocNumber   string              `json:"doc_number"`
	Notes       string              `json:"notes"`
	TransDate   string              `json:"trans_date"`
	IssueToWo   bool                `json:"issue_to_wo"`
	WoID        int64               `json:"wo_id"`
	Allocations []model.LocationQty `json:"allocations"`
}

type receiptResponse struct {
	Outcome string        `json:"outcome"`
	State   receipt.State `json:"state"`
}

type issueRequest struct {
	Qty       numText `json:"qty"`
	TransDate string  `json:"trans_date"`
}

type issueResponse struct {
	InvHistID int64 `json:"invhist_id"`
}

// PostReceipt handles POST /api/receipts. The form is captive: a successful
// post closes it and the final state is returned.
func (h *InventoryHandler) PostReceipt(w http.ResponseWriter, r *http.Request) {
	var req receiptRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx := r.Context()
	claims := GetClaims(ctx)
	privs := GetPrivileges(ctx)

	var transDate time.Time
	if req.TransDate != "" {
		d, err := parseDate(req.TransDate)
		if err != nil {
			writeAppError(w, r, apperr.Input("Invalid Date", "Please enter a valid transaction date.", receipt.FieldDate), "")
			return
		}
		transDate = d
	}

	// Without the issue privilege the follow-up is left in PendingIssue.
	var issuer receipt.Issuer
	if privs.Has(model.PrivIssueWoMaterials) {
		issuer = receipt.LedgerIssuer{Ledger: h.Ledger, User: claims.Username, Date: transDate}
	}

	form, err := receipt.New(ctx, h.Ledger, receipt.Options{
		Distributor: receipt.Allocations{Ledger: h.Ledger, Lines: req.Allocations},
		Issuer:      issuer,
		Privileges:  privs,
		User:        claims.Username,
	})
	if err != nil {
		writeAppError(w, r, err, "")
		return
	}
	form.SetCaptive(true)

	warehouseID := req.WarehouseID
	if warehouseID == 0 && form.State().SiteHidden {
		if ds, ok := h.Ledger.(defaultSiter); ok {
			if warehouseID, err = ds.DefaultSite(ctx); err != nil {
				writeAppError(w, r, apperr.Query("Error Retrieving Site", err), "")
				return
			}
		}
	}
	if warehouseID == 0 {
		writeAppError(w, r, apperr.Input("Cannot Post Transaction",
			"You must select a Site before posting this transaction.", "site"), "")
		return
	}

	entry := receipt.Entry{
		ItemID:      req.ItemID,
		WarehouseID: warehouseID,
		IssueToWo:   req.IssueToWo,
		WoID:        req.WoID,
		Qty:         string(req.Qty),
		CostAdjust:  req.CostAdjust,
		CostManual:  req.CostManual,
		Cost:        string(req.Cost),
		DocNumber:   req.DocNumber,
		Notes:       req.Notes,
		TransDate:   transDate,
	}
	if err := form.Enter(ctx, entry); err != nil {
		writeAppError(w, r, err, "")
		return
	}

	outcome, err := form.Post(ctx)
	if err != nil {
		label := ""
		if outcome == receipt.OutcomeCanceled {
			label = outcome.String()
		}
		writeAppError(w, r, err, label)
		return
	}

	jsonResponse(w, http.StatusCreated, receiptResponse{Outcome: outcome.String(), State: form.State()})
}

// ViewReceipt handles GET /api/invhist/{id}, loading a posted transaction
// into a read-only form.
func (h *InventoryHandler) ViewReceipt(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid history id")
		return
	}

	ctx := r.Context()
	form, err := receipt.New(ctx, h.Ledger, receipt.Options{
		Privileges: GetPrivileges(ctx),
		User:       GetClaims(ctx).Username,
	})
	if err != nil {
		writeAppError(w, r, err, "")
		return
	}
	if err := form.Set(ctx, receipt.ModeView, id); err != nil {
		writeAppError(w, r, err, "")
		return
	}
	jsonResponse(w, http.StatusOK, form.State())
}

// IssueMaterial handles POST /api/wo-materials/{id}/issue.
func (h *InventoryHandler) IssueMaterial(w http.ResponseWriter, r *http.Request) {
	womatlID, err := pathID(r, "id")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid work order material id")
		return
	}

	var req issueRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	qty, err := decimal.NewFromString(string(req.Qty))
	if err != nil || !qty.IsPositive() {
		writeAppError(w, r, apperr.Input("Invalid Quantity", "You must enter a positive quantity to issue.", "qty"), "")
		return
	}

	ctx := r.Context()
	privs := GetPrivileges(ctx)
	date := time.Now()
	if req.TransDate != "" {
		if !privs.Has(model.PrivAlterTransactionDates) {
			writeAppError(w, r, apperr.Forbidden(model.PrivAlterTransactionDates), "")
			return
		}
		if date, err = parseDate(req.TransDate); err != nil {
			writeAppError(w, r, apperr.Input("Invalid Date", "Please enter a valid transaction date.", "trans_date"), "")
			return
		}
	}

	claims := GetClaims(ctx)
	histID, err := h.Ledger.IssueWoMaterial(ctx, womatlID, qty, claims.Username, date)
	if err != nil {
		writeAppError(w, r, fmt.Errorf("issuing work order material %d: %w", womatlID, err), "")
		return
	}

	slog.Info("work order material issued",
		"user", claims.Username,
		"womatl_id", womatlID,
		"qty", qty.String(),
		"invhist_id", histID,
	)
	jsonResponse(w, http.StatusCreated, issueResponse{InvHistID: histID})
}

// CountTags handles GET /api/count-tags. Dates are required; the class
// code is either an id or a LIKE pattern.
func (h *InventoryHandler) CountTags(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := model.CountTagFilter{ClassCode: q.Get("classcode")}
	var err error
	if f.Start, err = rangeDate(q.Get("start")); err != nil || f.Start.IsZero() {
		writeAppError(w, r, apperr.Input("Enter Start Date", "Please enter a valid Start Date.", "dates"), "")
		return
	}
	if f.End, err = rangeDate(q.Get("end")); err != nil || f.End.IsZero() {
		writeAppError(w, r, apperr.Input("Enter End Date", "Please enter a valid End Date.", "dates"), "")
		return
	}
	if f.WarehouseID, err = queryID(r, "warehouse_id"); err != nil {
		writeAppError(w, r, apperr.Input("Invalid Site", err.Error(), "warehouse_id"), "")
		return
	}
	if f.ClassCodeID, err = queryID(r, "classcode_id"); err != nil {
		writeAppError(w, r, apperr.Input("Invalid Class Code", err.Error(), "classcode_id"), "")
		return
	}

	tags, err := h.Ledger.ListCountTags(r.Context(), f)
	if err != nil {
		writeAppError(w, r, apperr.Query("Error Retrieving Count Tags", err), "")
		return
	}
	if tags == nil {
		tags = []model.CountTag{}
	}
	jsonResponse(w, http.StatusOK, tags)
}
