package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/erazemk/nabava/internal/model"
	"github.com/erazemk/nabava/internal/store"
)

// MasterHandler handles master data endpoints of the embedded ledger.
type MasterHandler struct {
	DB *sql.DB
}

type codeRequest struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type createItemSiteRequest struct {
	ItemID      int64           `json:"item_id"`
	WarehouseID int64           `json:"warehouse_id"`
	CostMethod  string          `json:"cost_method"`
	StdCost     decimal.Decimal `json:"std_cost"`
	LocCntrl    bool            `json:"loc_cntrl"`
}

type createLocationRequest struct {
	WarehouseID int64  `json:"warehouse_id"`
	Name        string `json:"name"`
}

type createVendorRequest struct {
	Number string `json:"number"`
	Name   string `json:"name"`
}

type addPoItemRequest struct {
	ItemSiteID     *int64          `json:"itemsite_id"`
	VendItemNumber string          `json:"vend_item_number"`
	VendItemDescr  string          `json:"vend_item_descr"`
	VendUOM        string          `json:"vend_uom"`
	DueDate        string          `json:"due_date"`
	QtyOrdered     decimal.Decimal `json:"qty_ordered"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
}

type createCountTagRequest struct {
	TagNumber  string `json:"tag_number"`
	ItemSiteID int64  `json:"itemsite_id"`
	TagDate    string `json:"tag_date"`
}

type idResponse struct {
	ID int64 `json:"id"`
}

// ListSites handles GET /api/sites.
func (h *MasterHandler) ListSites(w http.ResponseWriter, r *http.Request) {
	sites, err := store.ListSites(r.Context(), h.DB)
	if err != nil {
		writeAppError(w, r, err, "")
		return
	}
	if sites == nil {
		sites = []model.Site{}
	}
	jsonResponse(w, http.StatusOK, sites)
}

// CreateSite handles POST /api/sites.
func (h *MasterHandler) CreateSite(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		jsonError(w, http.StatusBadRequest, "code required")
		return
	}

	site, err := store.CreateSite(r.Context(), h.DB, req.Code, req.Description)
	if err != nil {
		jsonError(w, http.StatusConflict, "site code already exists")
		return
	}
	jsonResponse(w, http.StatusCreated, site)
}

// CreateClassCode handles POST /api/classcodes.
func (h *MasterHandler) CreateClassCode(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		jsonError(w, http.StatusBadRequest, "code required")
		return
	}

	id, err := store.CreateClassCode(r.Context(), h.DB, req.Code, req.Description)
	if err != nil {
		jsonError(w, http.StatusConflict, "class code already exists")
		return
	}
	jsonResponse(w, http.StatusCreated, idResponse{ID: id})
}

// ListItems handles GET /api/items.
func (h *MasterHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := store.ListItems(r.Context(), h.DB)
	if err != nil {
		writeAppError(w, r, err, "")
		return
	}
	if items == nil {
		items = []model.Item{}
	}
	jsonResponse(w, http.StatusOK, items)
}

// CreateItem handles POST /api/items.
func (h *MasterHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req model.Item
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Number) == "" {
		jsonError(w, http.StatusBadRequest, "number required")
		return
	}
	if req.UOM == "" {
		req.UOM = "EA"
	}
	req.Active = true

	item, err := store.CreateItem(r.Context(), h.DB, req)
	if err != nil {
		jsonError(w, http.StatusConflict, "item number already exists")
		return
	}
	jsonResponse(w, http.StatusCreated, item)
}

// GetItem handles GET /api/items/{id}.
func (h *MasterHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	item, err := store.GetItem(r.Context(), h.DB, id)
	if err != nil {
		writeAppError(w, r, err, "")
		return
	}
	if item == nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// CreateItemSite handles POST /api/itemsites.
func (h *MasterHandler) CreateItemSite(w http.ResponseWriter, r *http.Request) {
	var req createItemSiteRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ItemID <= 0 || req.WarehouseID <= 0 {
		jsonError(w, http.StatusBadRequest, "item_id and warehouse_id required")
		return
	}
	switch req.CostMethod {
	case "":
		req.CostMethod = model.CostMethodStandard
	case model.CostMethodAverage, model.CostMethodStandard, model.CostMethodJob, model.CostMethodNone:
	default:
		jsonError(w, http.StatusBadRequest, "invalid cost_method")
		return
	}

	site, err := store.CreateItemSite(r.Context(), h.DB, model.ItemSite{
		ItemID:      req.ItemID,
		WarehouseID: req.WarehouseID,
		CostMethod:  req.CostMethod,
		StdCost:     req.StdCost,
		LocCntrl:    req.LocCntrl,
		Active:      true,
	})
	if err != nil {
		jsonError(w, http.StatusConflict, "item site already exists")
		return
	}
	jsonResponse(w, http.StatusCreated, site)
}

// GetItemSite handles GET /api/itemsites/{id}.
func (h *MasterHandler) GetItemSite(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid item site id")
		return
	}

	site, err := store.GetItemSite(r.Context(), h.DB, id)
	if err != nil {
		writeAppError(w, r, err, "")
		return
	}
	if site == nil {
		jsonError(w, http.StatusNotFound, "item site not found")
		return
	}
	jsonResponse(w, http.StatusOK, site)
}

// LookupItemSite handles GET /api/itemsites?item_id=&warehouse_id=.
func (h *MasterHandler) LookupItemSite(w http.ResponseWriter, r *http.Request) {
	itemID, err := queryID(r, "item_id")
	if err != nil || itemID == 0 {
		jsonError(w, http.StatusBadRequest, "item_id required")
		return
	}
	warehouseID, err := queryID(r, "warehouse_id")
	if err != nil || warehouseID == 0 {
		jsonError(w, http.StatusBadRequest, "warehouse_id required")
		return
	}

	site, err := store.LookupItemSite(r.Context(), h.DB, itemID, warehouseID)
	if err != nil {
		writeAppError(w, r, err, "")
		return
	}
	if site == nil {
		jsonError(w, http.StatusNotFound, "item site not found")
		return
	}
	jsonResponse(w, http.StatusOK, site)
}

// ItemLocations handles GET /api/itemsites/{id}/locations.
func (h *MasterHandler) ItemLocations(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid item site id")
		return
	}

	locs, err := store.ListItemLocations(r.Context(), h.DB, id)
	if err != nil {
		writeAppError(w, r, err, "")
		return
	}
	if locs == nil {
		locs = []model.ItemLocation{}
	}
	jsonResponse(w, http.StatusOK, locs)
}

// History handles GET /api/itemsites/{id}/history.
func (h *MasterHandler) History(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid item site id")
		return
	}

	hist, err := store.ListInvHist(r.Context(), h.DB, id)
	if err != nil {
		writeAppError(w, r, err, "")
		return
	}
	if hist == nil {
		hist = []model.InvHist{}
	}
	jsonResponse(w, http.StatusOK, hist)
}

// CreateLocation handles POST /api/locations.
func (h *MasterHandler) CreateLocation(w http.ResponseWriter, r *http.Request) {
	var req createLocationRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.WarehouseID <= 0 || strings.TrimSpace(req.Name) == "" {
		jsonError(w, http.StatusBadRequest, "warehouse_id and name required")
		return
	}

	loc, err := store.CreateLocation(r.Context(), h.DB, req.WarehouseID, req.Name)
	if err != nil {
		jsonError(w, http.StatusConflict, "location already exists")
		return
	}
	jsonResponse(w, http.StatusCreated, loc)
}

// CreateVendor handles POST /api/vendors.
func (h *MasterHandler) CreateVendor(w http.ResponseWriter, r *http.Request) {
	var req createVendorRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Number == "" || req.Name == "" {
		jsonError(w, http.StatusBadRequest, "number and name required")
		return
	}

	vend, err := store.CreateVendor(r.Context(), h.DB, req.Number, req.Name)
	if err != nil {
		jsonError(w, http.StatusConflict, "vendor number already exists")
		return
	}
	jsonResponse(w, http.StatusCreated, vend)
}

// CreatePurchaseOrder handles POST /api/purchase-orders.
func (h *MasterHandler) CreatePurchaseOrder(w http.ResponseWriter, r *http.Request) {
	var req model.PurchaseOrder
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Number == "" || req.VendorID <= 0 {
		jsonError(w, http.StatusBadRequest, "number and vendor_id required")
		return
	}
	switch req.Status {
	case "", model.PoItemUnposted, model.PoItemOpen:
	default:
		jsonError(w, http.StatusBadRequest, "invalid status")
		return
	}
	if req.AgentUsername == "" {
		req.AgentUsername = GetClaims(r.Context()).Username
	}

	po, err := store.CreatePurchaseOrder(r.Context(), h.DB, req)
	if err != nil {
		jsonError(w, http.StatusConflict, "purchase order number already exists")
		return
	}
	slog.Info("purchase order created", "user", GetClaims(r.Context()).Username, "po", po.Number)
	jsonResponse(w, http.StatusCreated, po)
}

// AddPoItem handles POST /api/purchase-orders/{id}/items.
func (h *MasterHandler) AddPoItem(w http.ResponseWriter, r *http.Request) {
	poheadID, err := pathID(r, "id")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid purchase order id")
		return
	}

	var req addPoItemRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	due, err := parseDate(req.DueDate)
	if err != nil || due.IsZero() {
		jsonError(w, http.StatusBadRequest, "due_date must be YYYY-MM-DD")
		return
	}
	if !req.QtyOrdered.IsPositive() {
		jsonError(w, http.StatusBadRequest, "qty_ordered must be positive")
		return
	}
	if req.ItemSiteID == nil && req.VendItemNumber == "" {
		jsonError(w, http.StatusBadRequest, "itemsite_id or vend_item_number required")
		return
	}

	id, err := store.AddPoItem(r.Context(), h.DB, poheadID, store.PoLine{
		ItemSiteID:     req.ItemSiteID,
		VendItemNumber: req.VendItemNumber,
		VendItemDescr:  req.VendItemDescr,
		VendUOM:        req.VendUOM,
		DueDate:        due,
		QtyOrdered:     req.QtyOrdered,
		UnitPrice:      req.UnitPrice,
	})
	if err != nil {
		writeAppError(w, r, err, "")
		return
	}
	jsonResponse(w, http.StatusCreated, idResponse{ID: id})
}

// CreateWorkOrder handles POST /api/work-orders.
func (h *MasterHandler) CreateWorkOrder(w http.ResponseWriter, r *http.Request) {
	var req model.WorkOrder
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Number <= 0 || req.ItemSiteID <= 0 {
		jsonError(w, http.StatusBadRequest, "number and itemsite_id required")
		return
	}

	wo, err := store.CreateWorkOrder(r.Context(), h.DB, req)
	if err != nil {
		jsonError(w, http.StatusConflict, "work order already exists")
		return
	}
	jsonResponse(w, http.StatusCreated, wo)
}

// AddWoMaterial handles POST /api/work-orders/{id}/materials.
func (h *MasterHandler) AddWoMaterial(w http.ResponseWriter, r *http.Request) {
	woID, err := pathID(r, "id")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid work order id")
		return
	}

	var req model.WoMaterial
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ItemSiteID <= 0 || !req.QtyRequired.IsPositive() {
		jsonError(w, http.StatusBadRequest, "itemsite_id and a positive qty_required required")
		return
	}
	switch req.IssueMethod {
	case "", model.IssuePush, model.IssuePull, model.IssueMixed:
	default:
		jsonError(w, http.StatusBadRequest, "invalid issue_method")
		return
	}
	req.WoID = woID

	m, err := store.AddWoMaterial(r.Context(), h.DB, req)
	if err != nil {
		writeAppError(w, r, err, "")
		return
	}
	jsonResponse(w, http.StatusCreated, m)
}

// CreateCountTag handles POST /api/count-tags.
func (h *MasterHandler) CreateCountTag(w http.ResponseWriter, r *http.Request) {
	var req createCountTagRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	tagDate, err := parseDate(req.TagDate)
	if err != nil || tagDate.IsZero() || req.TagNumber == "" || req.ItemSiteID <= 0 {
		jsonError(w, http.StatusBadRequest, "tag_number, itemsite_id and tag_date (YYYY-MM-DD) required")
		return
	}

	id, err := store.CreateCountTag(r.Context(), h.DB, req.TagNumber, req.ItemSiteID, tagDate)
	if err != nil {
		jsonError(w, http.StatusConflict, "count tag already exists")
		return
	}
	jsonResponse(w, http.StatusCreated, idResponse{ID: id})
}

// MetricsHandler reads and writes site metrics.
type MetricsHandler struct {
	DB *sql.DB
}

type metricRequest struct {
	Value string `json:"value"`
}

type metricResponse struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// internalSettings share the settings table but are not site metrics.
var internalSettings = map[string]bool{"jwt_secret": true}

// Get handles GET /api/metrics/{name}.
func (h *MetricsHandler) Get(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if internalSettings[name] {
		jsonError(w, http.StatusNotFound, "unknown metric")
		return
	}

	value, err := store.GetMetric(r.Context(), h.DB, name)
	if err != nil {
		writeAppError(w, r, err, "")
		return
	}
	jsonResponse(w, http.StatusOK, metricResponse{Name: name, Value: value})
}

// Set handles PUT /api/metrics/{name}.
func (h *MetricsHandler) Set(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if internalSettings[name] {
		jsonError(w, http.StatusNotFound, "unknown metric")
		return
	}

	var req metricRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := store.SetMetric(r.Context(), h.DB, name, req.Value); err != nil {
		writeAppError(w, r, err, "")
		return
	}
	slog.Info("metric updated", "user", GetClaims(r.Context()).Username, "metric", name, "value", req.Value)
	jsonResponse(w, http.StatusOK, metricResponse{Name: name, Value: req.Value})
}
