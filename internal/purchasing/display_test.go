package purchasing

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/erazemk/nabava/internal/apperr"
	"github.com/erazemk/nabava/internal/db"
	"github.com/erazemk/nabava/internal/model"
	"github.com/erazemk/nabava/internal/store"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func int64p(v int64) *int64 {
	return &v
}

type fakeRepo struct {
	items   []model.PoItem
	filters []model.PoItemFilter
	status  map[int64]string
}

func (r *fakeRepo) ListPoItems(_ context.Context, f model.PoItemFilter) ([]model.PoItem, error) {
	r.filters = append(r.filters, f)
	out := make([]model.PoItem, len(r.items))
	copy(out, r.items)
	for i := range out {
		if s, ok := r.status[out[i].ID]; ok {
			out[i].Status = s
		}
	}
	return out, nil
}

func (r *fakeRepo) SetPoItemStatus(_ context.Context, id int64, status string) error {
	for _, it := range r.items {
		if it.ID == id {
			if r.status == nil {
				r.status = map[int64]string{}
			}
			r.status[id] = status
			return nil
		}
	}
	return store.ErrNotFound
}

func (r *fakeRepo) PoItemItemSite(_ context.Context, id int64) (*int64, error) {
	for _, it := range r.items {
		if it.ID == id {
			return it.ItemSiteID, nil
		}
	}
	return nil, store.ErrNotFound
}

func validParams() Params {
	return Params{Start: Earliest, End: Latest}
}

func TestParamsValidate(t *testing.T) {
	tests := []struct {
		name   string
		params Params
		msg    string
	}{
		{"missing start", Params{End: Latest}, "Please enter a valid Start Date."},
		{"missing end", Params{Start: Earliest}, "Please enter a valid End Date."},
		{"both missing", Params{}, "Please enter a valid Start Date."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeRepo{}
			d := New(repo, &Answers{}, nil)

			err := d.SetParams(tt.params)
			var ae *apperr.Error
			if !apperr.Is(err, apperr.KindInput) {
				t.Fatalf("expected input error, got %v", err)
			}
			ae = err.(*apperr.Error)
			if ae.Message != tt.msg || ae.Field != FieldDates {
				t.Errorf("expected %q on dates, got %q on %q", tt.msg, ae.Message, ae.Field)
			}
			if err := d.Fill(context.Background()); err == nil {
				t.Error("expected Fill to refuse invalid params")
			}
			if len(repo.filters) != 0 {
				t.Error("expected no query")
			}
		})
	}
}

func TestFillPassesFilters(t *testing.T) {
	repo := &fakeRepo{}
	d := New(repo, &Answers{}, nil)

	p := Params{Start: Earliest, End: Latest, WarehouseID: 3, Agent: "alice", Items: model.PoItemsOpen}
	if err := d.SetParams(p); err != nil {
		t.Fatalf("SetParams: %v", err)
	}
	if err := d.Fill(context.Background()); err != nil {
		t.Fatalf("Fill: %v", err)
	}
	got := repo.filters[0]
	if got.WarehouseID != 3 || got.Agent != "alice" || got.Items != model.PoItemsOpen || !got.Start.Equal(Earliest) {
		t.Errorf("unexpected filter %+v", got)
	}
}

func TestStatusLabel(t *testing.T) {
	site := int64p(1)
	tests := []struct {
		name string
		item model.PoItem
		want string
	}{
		{"unposted", model.PoItem{Status: "U", ItemSiteID: site}, "Unposted"},
		{"closed", model.PoItem{Status: "C", ItemSiteID: site}, "Closed"},
		{"open", model.PoItem{Status: "O", ItemSiteID: site, QtyOrdered: dec("10")}, "Open"},
		{"partial", model.PoItem{Status: "O", ItemSiteID: site, QtyOrdered: dec("10"), QtyReceived: dec("4")}, "Partial"},
		{"received", model.PoItem{Status: "O", ItemSiteID: site, QtyOrdered: dec("10"), QtyReceived: dec("10")}, "Received"},
		{"returned", model.PoItem{Status: "O", ItemSiteID: site, QtyOrdered: dec("10"), QtyReceived: dec("10"), QtyReturned: dec("2")}, "Partial"},
		{"non-inventory", model.PoItem{Status: "C"}, "NonInv - Closed"},
		{"non-inventory open", model.PoItem{Status: "O", QtyOrdered: dec("1")}, "NonInv - Open"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusLabel(&tt.item); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func names(menu []Action) []string {
	var out []string
	for _, a := range menu {
		if a.Separator {
			out = append(out, "-")
		} else {
			out = append(out, a.Name)
		}
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestMenuByStatus(t *testing.T) {
	all := model.FullPrivileges()
	tests := []struct {
		status string
		want   []string
	}{
		{"U", []string{ActionEditOrder, ActionViewOrder, ActionRunningAvailability, "-",
			ActionEditItem, ActionViewItem, ActionReschedule, ActionChangeQty, "-"}},
		{"O", []string{ActionViewOrder, ActionRunningAvailability, "-",
			ActionViewItem, ActionReschedule, ActionChangeQty, "-", ActionCloseItem}},
		{"C", []string{ActionViewOrder, ActionRunningAvailability, "-",
			ActionViewItem, ActionOpenItem}},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			got := names(Menu(&model.PoItem{Status: tt.status}, all))
			if !equal(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestMenuDisablesWithoutPrivilege(t *testing.T) {
	privs := model.PrivilegeSet{model.PrivViewPurchaseOrders: true}
	menu := Menu(&model.PoItem{Status: "U"}, privs)

	enabled := map[string]bool{}
	for _, a := range menu {
		if !a.Separator {
			enabled[a.Name] = a.Enabled
		}
	}
	if len(enabled) != 7 {
		t.Fatalf("expected entries kept when disabled, got %v", names(menu))
	}
	want := map[string]bool{
		ActionEditOrder: false, ActionViewOrder: true, ActionRunningAvailability: false,
		ActionEditItem: false, ActionViewItem: true, ActionReschedule: false, ActionChangeQty: false,
	}
	for name, w := range want {
		if enabled[name] != w {
			t.Errorf("%s: expected enabled=%v", name, w)
		}
	}
}

func TestOrderAndItemLaunches(t *testing.T) {
	repo := &fakeRepo{items: []model.PoItem{{ID: 11, PoheadID: 4, Status: "U", ItemSiteID: int64p(9)}}}
	ans := &Answers{}
	d := New(repo, ans, model.FullPrivileges())
	d.SetParams(validParams())
	d.Fill(context.Background())
	ctx := context.Background()

	d.Invoke(ctx, ActionEditOrder, 11)
	d.Invoke(ctx, ActionViewItem, 11)
	d.Invoke(ctx, ActionRunningAvailability, 11)

	if len(ans.Launched) != 3 {
		t.Fatalf("expected 3 launches, got %+v", ans.Launched)
	}
	if l := ans.Launched[0]; l.Window != "purchaseOrder" || l.Params["mode"] != ModeEdit || l.Params["pohead_id"] != int64(4) {
		t.Errorf("unexpected order launch %+v", l)
	}
	if l := ans.Launched[1]; l.Window != "purchaseOrderItem" || l.Params["mode"] != ModeView || l.Params["poitem_id"] != int64(11) {
		t.Errorf("unexpected item launch %+v", l)
	}
	if l := ans.Launched[2]; l.Params["itemsite_id"] != int64(9) || l.Params["run"] != true {
		t.Errorf("unexpected availability launch %+v", l)
	}
}

func TestRunningAvailabilityErrors(t *testing.T) {
	repo := &fakeRepo{items: []model.PoItem{{ID: 1, Status: "O"}}}
	d := New(repo, &Answers{}, model.FullPrivileges())
	ctx := context.Background()

	if err := d.RunningAvailability(ctx, 1); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("expected not found for non-inventory line, got %v", err)
	}
	if err := d.RunningAvailability(ctx, 2); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("expected not found for missing line, got %v", err)
	}

	d = New(repo, &Answers{}, nil)
	if err := d.RunningAvailability(ctx, 1); !apperr.Is(err, apperr.KindForbidden) {
		t.Errorf("expected forbidden, got %v", err)
	}
}

func TestRescheduleRejectedDoesNotRefresh(t *testing.T) {
	repo := &fakeRepo{items: []model.PoItem{{ID: 1, Status: "O", ItemSiteID: int64p(1)}}}
	d := New(repo, &Answers{}, model.FullPrivileges())
	d.SetParams(validParams())
	d.Fill(context.Background())

	res, err := d.Reschedule(context.Background(), 1)
	if err != nil || res != Rejected {
		t.Fatalf("expected rejected, got %s, %v", res, err)
	}
	if len(repo.filters) != 1 {
		t.Errorf("expected no refresh after rejection, got %d queries", len(repo.filters))
	}
}

func TestInvokeRejectsActionNotOffered(t *testing.T) {
	repo := &fakeRepo{items: []model.PoItem{{ID: 1, Status: "C", ItemSiteID: int64p(1)}}}
	d := New(repo, &Answers{}, model.FullPrivileges())
	d.SetParams(validParams())
	d.Fill(context.Background())

	if _, err := d.Invoke(context.Background(), ActionCloseItem, 1); !apperr.Is(err, apperr.KindInput) {
		t.Errorf("expected input error, got %v", err)
	}
	if _, err := d.Invoke(context.Background(), ActionViewItem, 2); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("expected not found for unlisted line, got %v", err)
	}
}

// Exercises the display against the embedded ledger.
func TestCloseAndReopenItem(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	ledger := store.Ledger{DB: database}

	site, _ := store.CreateSite(ctx, database, "WH1", "")
	item, _ := store.CreateItem(ctx, database, model.Item{Number: "PAINT"})
	is, _ := store.CreateItemSite(ctx, database, model.ItemSite{ItemID: item.ID, WarehouseID: site.ID})
	vend, _ := store.CreateVendor(ctx, database, "V1", "Acme")
	po, _ := store.CreatePurchaseOrder(ctx, database, model.PurchaseOrder{Number: "PO-1", VendorID: vend.ID, Status: model.PoItemOpen})
	id, err := store.AddPoItem(ctx, database, po.ID, store.PoLine{
		ItemSiteID: &is.ID, DueDate: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), QtyOrdered: dec("5"),
	})
	if err != nil {
		t.Fatalf("AddPoItem: %v", err)
	}

	d := New(ledger, &Answers{Repo: ledger}, model.FullPrivileges())
	if err := d.SetParams(validParams()); err != nil {
		t.Fatalf("SetParams: %v", err)
	}
	if err := d.Fill(ctx); err != nil {
		t.Fatalf("Fill: %v", err)
	}

	if _, err := d.Invoke(ctx, ActionCloseItem, id); err != nil {
		t.Fatalf("close: %v", err)
	}
	row, ok := d.Row(id)
	if !ok || row.Status != model.PoItemClosed || row.StatusLabel != LabelClosed {
		t.Fatalf("expected closed row after refresh, got %+v", row)
	}
	menu := names(Menu(row, model.FullPrivileges()))
	for _, n := range menu {
		if n == ActionCloseItem {
			t.Error("expected no Close Item entry for closed line")
		}
	}
	if menu[len(menu)-1] != ActionOpenItem {
		t.Errorf("expected Open Item entry, got %v", menu)
	}

	if _, err := d.Invoke(ctx, ActionOpenItem, id); err != nil {
		t.Fatalf("open: %v", err)
	}
	row, _ = d.Row(id)
	if row.Status != model.PoItemOpen {
		t.Errorf("expected reopened row, got %s", row.Status)
	}
}

func TestChangeQtyAnswered(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	ledger := store.Ledger{DB: database}

	vend, _ := store.CreateVendor(ctx, database, "V1", "Acme")
	po, _ := store.CreatePurchaseOrder(ctx, database, model.PurchaseOrder{Number: "PO-1", VendorID: vend.ID, Status: model.PoItemOpen})
	id, _ := store.AddPoItem(ctx, database, po.ID, store.PoLine{
		VendItemDescr: "Service", DueDate: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), QtyOrdered: dec("5"),
	})

	qty := dec("8")
	d := New(ledger, &Answers{Repo: ledger, Qty: &qty}, model.FullPrivileges())
	d.SetParams(validParams())
	d.Fill(ctx)

	res, err := d.Invoke(ctx, ActionChangeQty, id)
	if err != nil || res != Accepted {
		t.Fatalf("expected accepted, got %s, %v", res, err)
	}
	row, _ := d.Row(id)
	if !row.QtyOrdered.Equal(qty) {
		t.Errorf("expected refreshed qty 8, got %s", row.QtyOrdered)
	}

	bad := dec("0")
	d = New(ledger, &Answers{Repo: ledger, Qty: &bad}, model.FullPrivileges())
	if _, err := d.ChangeQty(ctx, id); !apperr.Is(err, apperr.KindInput) {
		t.Errorf("expected input error for zero qty, got %v", err)
	}
}
