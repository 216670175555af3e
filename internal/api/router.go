package api

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/erazemk/nabava/internal/model"
	"github.com/erazemk/nabava/internal/purchasing"
	"github.com/erazemk/nabava/internal/receipt"
	"github.com/erazemk/nabava/internal/store"
)

// Ledger is the ERP backend the inventory endpoints post against. Both the
// embedded store and the PostBooks store implement it.
type Ledger interface {
	receipt.Ledger
	receipt.SeriesDistributor
	receipt.MaterialIssuer
	purchasing.Repository
	purchasing.EditRepository
	ListCountTags(ctx context.Context, f model.CountTagFilter) ([]model.CountTag, error)
}

// NewRouter creates the API router with all endpoints registered. Users,
// tokens and settings always live in db; a nil ledger posts into db as well.
// Master data endpoints are only served for the embedded ledger.
func NewRouter(db *sql.DB, ledger Ledger, jwtSecret string) http.Handler {
	if ledger == nil {
		ledger = store.Ledger{DB: db}
	}
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: db, JWTSecret: jwtSecret}
	usersHandler := &UsersHandler{DB: db}
	metricsHandler := &MetricsHandler{DB: db}
	purchasingHandler := &PurchasingHandler{Ledger: ledger}
	inventoryHandler := &InventoryHandler{Ledger: ledger}

	authMW := AuthMiddleware(jwtSecret, db)
	requireAdmin := RequireRole(model.RoleAdmin)
	requireManager := RequireRole(model.RoleManager)
	priv := func(h http.HandlerFunc, names ...string) http.Handler {
		return authMW(RequirePrivilege(names...)(h))
	}

	// Public: login.
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)

	// Authenticated routes.
	mux.Handle("GET /api/auth/me", authMW(http.HandlerFunc(authHandler.Me)))
	mux.Handle("PUT /api/auth/password", authMW(http.HandlerFunc(authHandler.ChangePassword)))
	mux.Handle("POST /api/auth/logout", authMW(http.HandlerFunc(authHandler.Logout)))

	// Users and privileges (admin only).
	mux.Handle("GET /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.List))))
	mux.Handle("POST /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.Create))))
	mux.Handle("GET /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Get))))
	mux.Handle("PUT /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Update))))
	mux.Handle("PUT /api/users/{id}/password", authMW(requireAdmin(http.HandlerFunc(usersHandler.ResetPassword))))
	mux.Handle("DELETE /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Delete))))
	mux.Handle("GET /api/users/{id}/privileges", authMW(requireAdmin(http.HandlerFunc(usersHandler.Privileges))))
	mux.Handle("PUT /api/users/{id}/privileges/{priv}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Grant))))
	mux.Handle("DELETE /api/users/{id}/privileges/{priv}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Revoke))))

	// Site metrics: read (all roles), write (admin).
	mux.Handle("GET /api/metrics/{name}", authMW(http.HandlerFunc(metricsHandler.Get)))
	mux.Handle("PUT /api/metrics/{name}", authMW(requireAdmin(http.HandlerFunc(metricsHandler.Set))))

	// Purchase order items by date.
	mux.Handle("GET /api/po-items", priv(purchasingHandler.List,
		model.PrivViewPurchaseOrders, model.PrivMaintainPurchaseOrders))
	mux.Handle("POST /api/po-items/{id}/actions", priv(purchasingHandler.Act,
		model.PrivViewPurchaseOrders, model.PrivMaintainPurchaseOrders))

	// Material receipts and the follow-up work order issue.
	mux.Handle("POST /api/receipts", priv(inventoryHandler.PostReceipt, model.PrivCreateReceiptTrans))
	mux.Handle("GET /api/invhist/{id}", priv(inventoryHandler.ViewReceipt, model.PrivViewInventoryHistory))
	mux.Handle("POST /api/wo-materials/{id}/issue", priv(inventoryHandler.IssueMaterial, model.PrivIssueWoMaterials))
	mux.Handle("GET /api/count-tags", priv(inventoryHandler.CountTags, model.PrivViewCountTags))

	if _, ok := ledger.(store.Ledger); ok {
		master := &MasterHandler{DB: db}

		mux.Handle("GET /api/sites", authMW(http.HandlerFunc(master.ListSites)))
		mux.Handle("POST /api/sites", authMW(requireManager(http.HandlerFunc(master.CreateSite))))
		mux.Handle("POST /api/classcodes", authMW(requireManager(http.HandlerFunc(master.CreateClassCode))))
		mux.Handle("GET /api/items", authMW(http.HandlerFunc(master.ListItems)))
		mux.Handle("POST /api/items", authMW(requireManager(http.HandlerFunc(master.CreateItem))))
		mux.Handle("GET /api/items/{id}", authMW(http.HandlerFunc(master.GetItem)))
		mux.Handle("GET /api/itemsites", authMW(http.HandlerFunc(master.LookupItemSite)))
		mux.Handle("POST /api/itemsites", authMW(requireManager(http.HandlerFunc(master.CreateItemSite))))
		mux.Handle("GET /api/itemsites/{id}", authMW(http.HandlerFunc(master.GetItemSite)))
		mux.Handle("GET /api/itemsites/{id}/locations", authMW(http.HandlerFunc(master.ItemLocations)))
		mux.Handle("GET /api/itemsites/{id}/history", priv(master.History, model.PrivViewInventoryHistory))
		mux.Handle("POST /api/locations", authMW(requireManager(http.HandlerFunc(master.CreateLocation))))
		mux.Handle("POST /api/vendors", authMW(requireManager(http.HandlerFunc(master.CreateVendor))))
		mux.Handle("POST /api/purchase-orders", priv(master.CreatePurchaseOrder, model.PrivMaintainPurchaseOrders))
		mux.Handle("POST /api/purchase-orders/{id}/items", priv(master.AddPoItem, model.PrivMaintainPurchaseOrders))
		mux.Handle("POST /api/work-orders", authMW(requireManager(http.HandlerFunc(master.CreateWorkOrder))))
		mux.Handle("POST /api/work-orders/{id}/materials", authMW(requireManager(http.HandlerFunc(master.AddWoMaterial))))
		mux.Handle("POST /api/count-tags", authMW(requireManager(http.HandlerFunc(master.CreateCountTag))))
	}

	return mux
}
