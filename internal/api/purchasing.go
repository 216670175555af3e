package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/erazemk/nabava/internal/apperr"
	"github.com/erazemk/nabava/internal/model"
	"github.com/erazemk/nabava/internal/purchasing"
)

// PurchasingHandler serves the purchase order items by date display.
type PurchasingHandler struct {
	Ledger Ledger
}

type poItemRow struct {
	model.PoItem
	Menu []purchasing.Action `json:"menu"`
}

type poItemsResponse struct {
	Params purchasing.Params `json:"params"`
	Rows   []poItemRow       `json:"rows"`
}

type poItemActionRequest struct {
	Action      string `json:"action"`
	Start       string `json:"start"`
	End         string `json:"end"`
	WarehouseID int64  `json:"warehouse_id"`
	Agent       string `json:"agent"`
	Items       string `json:"items"`
	DueDate     string `json:"due_date"`
	Qty         string `json:"qty"`
}

type poItemActionResponse struct {
	Action   string              `json:"action"`
	Result   string              `json:"result"`
	Launched []purchasing.Launch `json:"launched"`
	Rows     []poItemRow         `json:"rows"`
}

// List handles GET /api/po-items.
func (h *PurchasingHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params, err := displayParams(q.Get("start"), q.Get("end"), q.Get("agent"), q.Get("items"))
	if err != nil {
		writeAppError(w, r, err, "")
		return
	}
	params.WarehouseID, err = queryID(r, "warehouse_id")
	if err != nil {
		writeAppError(w, r, apperr.Input("Invalid Site", err.Error(), "warehouse_id"), "")
		return
	}

	privs := GetPrivileges(r.Context())
	d := purchasing.New(h.Ledger, &purchasing.Answers{Repo: h.Ledger}, privs)
	if err := d.SetParams(params); err != nil {
		writeAppError(w, r, err, "")
		return
	}
	if err := d.Fill(r.Context()); err != nil {
		writeAppError(w, r, err, "")
		return
	}

	jsonResponse(w, http.StatusOK, poItemsResponse{Params: d.Params(), Rows: withMenus(d.Rows(), privs)})
}

// Act handles POST /api/po-items/{id}/actions. The reschedule and change
// quantity dialogs take their answers from the request body; windows the
// action opens are returned as launches.
func (h *PurchasingHandler) Act(w http.ResponseWriter, r *http.Request) {
	poitemID, err := pathID(r, "id")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid purchase order item id")
		return
	}

	var req poItemActionRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Action == "" {
		jsonError(w, http.StatusBadRequest, "action required")
		return
	}

	if req.Start == "" {
		req.Start = "earliest"
	}
	if req.End == "" {
		req.End = "latest"
	}
	params, err := displayParams(req.Start, req.End, req.Agent, req.Items)
	if err != nil {
		writeAppError(w, r, err, "")
		return
	}
	params.WarehouseID = req.WarehouseID

	answers := &purchasing.Answers{Repo: h.Ledger}
	if req.DueDate != "" {
		due, err := parseDate(req.DueDate)
		if err != nil {
			writeAppError(w, r, apperr.Input("Invalid Due Date", "Please enter a valid Due Date.", "due_date"), "")
			return
		}
		answers.DueDate = &due
	}
	if answers.Qty, err = parseDecimal(req.Qty); err != nil {
		writeAppError(w, r, apperr.Input("Invalid Quantity", "Please enter a valid quantity.", "qty"), "")
		return
	}

	privs := GetPrivileges(r.Context())
	d := purchasing.New(h.Ledger, answers, privs)
	if err := d.SetParams(params); err != nil {
		writeAppError(w, r, err, "")
		return
	}
	if err := d.Fill(r.Context()); err != nil {
		writeAppError(w, r, err, "")
		return
	}

	result, err := d.Invoke(r.Context(), req.Action, poitemID)
	if err != nil {
		writeAppError(w, r, err, "")
		return
	}

	// Accepted edits refresh the list; the refreshed rows go back either way.
	if result == purchasing.Accepted {
		if err := d.Fill(r.Context()); err != nil {
			writeAppError(w, r, err, "")
			return
		}
	}

	slog.Info("po item action",
		"user", GetClaims(r.Context()).Username,
		"poitem_id", poitemID,
		"action", req.Action,
		"result", result.String(),
	)
	launched := answers.Launched
	if launched == nil {
		launched = []purchasing.Launch{}
	}
	jsonResponse(w, http.StatusOK, poItemActionResponse{
		Action:   req.Action,
		Result:   result.String(),
		Launched: launched,
		Rows:     withMenus(d.Rows(), privs),
	})
}

// displayParams reads the date range and filters. Dates are YYYY-MM-DD or
// one of the words earliest and latest.
func displayParams(start, end, agent, items string) (purchasing.Params, error) {
	var p purchasing.Params
	var err error
	if p.Start, err = rangeDate(start); err != nil {
		return p, apperr.Input("Enter Start Date", "Please enter a valid Start Date.", purchasing.FieldDates)
	}
	if p.End, err = rangeDate(end); err != nil {
		return p, apperr.Input("Enter End Date", "Please enter a valid End Date.", purchasing.FieldDates)
	}
	p.Agent = agent
	p.Items = items
	return p, nil
}

func rangeDate(s string) (time.Time, error) {
	switch strings.ToLower(s) {
	case "earliest":
		return purchasing.Earliest, nil
	case "latest":
		return purchasing.Latest, nil
	}
	return parseDate(s)
}

func withMenus(items []model.PoItem, privs model.PrivilegeSet) []poItemRow {
	rows := make([]poItemRow, 0, len(items))
	for i := range items {
		rows = append(rows, poItemRow{PoItem: items[i], Menu: purchasing.Menu(&items[i], privs)})
	}
	return rows
}
