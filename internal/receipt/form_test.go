package receipt

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/erazemk/nabava/internal/apperr"
	"github.com/erazemk/nabava/internal/model"
	"github.com/erazemk/nabava/internal/store"
)

// fakeLedger records the calls made by the form.
type fakeLedger struct {
	metrics  map[string]bool
	site     *model.ItemSite
	hist     *model.InvHist
	series   int64
	material *model.WoMaterial

	seriesErr  error
	parentErr  error
	postResult *int64
	postErr    error

	calls    []string
	receipts []model.Receipt
	deleted  []int64
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		metrics: map[string]bool{"MultiWhs": true, "AllowAvgCostMethod": true},
		site: &model.ItemSite{
			ID: 7, ItemID: 1, WarehouseID: 2, QtyOnHand: decimal.NewFromInt(10),
			CostMethod: model.CostMethodAverage, ItemNumber: "BTRUCK1", SiteCode: "WH1",
		},
		series: 100,
	}
}

func (l *fakeLedger) Metric(_ context.Context, name string) (bool, error) {
	return l.metrics[name], nil
}

func (l *fakeLedger) ItemSite(_ context.Context, itemID, warehouseID int64) (*model.ItemSite, error) {
	l.calls = append(l.calls, "itemsite")
	if l.site == nil || l.site.ItemID != itemID || l.site.WarehouseID != warehouseID {
		return nil, nil
	}
	s := *l.site
	return &s, nil
}

func (l *fakeLedger) InvHist(_ context.Context, id int64) (*model.InvHist, error) {
	if l.hist == nil || l.hist.ID != id {
		return nil, nil
	}
	return l.hist, nil
}

func (l *fakeLedger) NextSeries(context.Context) (int64, error) {
	l.calls = append(l.calls, "nextval")
	return l.series, l.seriesErr
}

func (l *fakeLedger) CreateDistributionParent(_ context.Context, _ int64, _ decimal.Decimal, _ int64) (int64, error) {
	l.calls = append(l.calls, "parent")
	return 1, l.parentErr
}

func (l *fakeLedger) PostReceipt(_ context.Context, r model.Receipt) (int64, error) {
	l.calls = append(l.calls, "invReceipt")
	l.receipts = append(l.receipts, r)
	if l.postErr != nil {
		return 0, l.postErr
	}
	if l.postResult != nil {
		return *l.postResult, nil
	}
	return r.Series, nil
}

func (l *fakeLedger) DeleteSeries(_ context.Context, series int64) error {
	l.calls = append(l.calls, "cleanup")
	l.deleted = append(l.deleted, series)
	return nil
}

func (l *fakeLedger) WoMaterial(_ context.Context, _, _, _ int64) (*model.WoMaterial, error) {
	return l.material, nil
}

type fakeDistributor struct {
	accept bool
	err    error
	called int64
}

func (d *fakeDistributor) SeriesAdjust(_ context.Context, series int64) (bool, error) {
	d.called = series
	return d.accept, d.err
}

type fakeIssuer struct {
	reqs []IssueRequest
	err  error
}

func (i *fakeIssuer) IssueMaterial(_ context.Context, req IssueRequest) error {
	i.reqs = append(i.reqs, req)
	return i.err
}

func newTestForm(t *testing.T, l *fakeLedger, opts Options) *Form {
	t.Helper()
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Date(2024, 4, 2, 15, 30, 0, 0, time.UTC) }
	}
	f, err := New(context.Background(), l, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return f
}

// fill selects the fake ledger's item site and enters a quantity.
func fill(t *testing.T, f *Form, qty string) {
	t.Helper()
	ctx := context.Background()
	if err := f.SetItem(ctx, 1); err != nil {
		t.Fatalf("SetItem: %v", err)
	}
	if err := f.SetWarehouse(ctx, 2); err != nil {
		t.Fatalf("SetWarehouse: %v", err)
	}
	if err := f.SetQty(qty); err != nil {
		t.Fatalf("SetQty: %v", err)
	}
}

func hasCall(l *fakeLedger, name string) bool {
	for _, c := range l.calls {
		if c == name {
			return true
		}
	}
	return false
}

func TestPostValidationGate(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *Form)
		field string
	}{
		{"no item", func(f *Form) { f.SetQty("5") }, FieldItem},
		{"empty quantity", func(f *Form) { fill(t, f, "") }, FieldQty},
		{"zero quantity", func(f *Form) { fill(t, f, "0") }, FieldQty},
		{"negative quantity", func(f *Form) { fill(t, f, "-3") }, FieldQty},
		{"manual cost missing", func(f *Form) {
			fill(t, f, "5")
			f.SetCost(true, true, "")
		}, FieldCost},
		{"manual cost zero", func(f *Form) {
			fill(t, f, "5")
			f.SetCost(true, true, "0.00")
		}, FieldCost},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newFakeLedger()
			f := newTestForm(t, l, Options{})
			tt.setup(f)

			_, err := f.Post(context.Background())
			if !apperr.Is(err, apperr.KindInput) {
				t.Fatalf("expected input error, got %v", err)
			}
			if got := f.State().Focus; got != tt.field {
				t.Errorf("expected focus on %s, got %s", tt.field, got)
			}
			if hasCall(l, "nextval") || hasCall(l, "invReceipt") {
				t.Errorf("expected no database writes, got %v", l.calls)
			}
		})
	}
}

func TestPostManualCostIgnoredWhenAdjustDisabled(t *testing.T) {
	l := newFakeLedger()
	l.site.CostMethod = model.CostMethodStandard
	f := newTestForm(t, l, Options{})
	fill(t, f, "5")
	f.SetCost(true, true, "")

	if _, err := f.Post(context.Background()); err != nil {
		t.Fatalf("Post: %v", err)
	}
}

func TestPostUncontrolledResets(t *testing.T) {
	l := newFakeLedger()
	f := newTestForm(t, l, Options{User: "admin"})
	fill(t, f, "5")
	f.SetDocument("DOC-9", "recount")

	outcome, err := f.Post(context.Background())
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if outcome != OutcomeReset {
		t.Errorf("expected reset, got %s", outcome)
	}
	if hasCall(l, "parent") || hasCall(l, "cleanup") {
		t.Errorf("unexpected calls %v", l.calls)
	}

	r := l.receipts[0]
	if r.ItemSiteID != 7 || !r.Qty.Equal(decimal.NewFromInt(5)) || r.Series != 100 {
		t.Errorf("unexpected receipt %+v", r)
	}
	if r.DocNumber != "DOC-9" || r.Comments != "recount" || r.User != "admin" {
		t.Errorf("unexpected receipt %+v", r)
	}
	if r.TransDate.Format(time.DateOnly) != "2024-04-02" {
		t.Errorf("expected today's date, got %s", r.TransDate)
	}

	st := f.State()
	if st.ItemID != 0 || st.Qty != "" || st.DocNumber != "" || st.Notes != "" || st.BeforeQty != nil || st.AfterQty != nil {
		t.Errorf("expected fields reset, got %+v", st)
	}
	if st.Focus != FieldItem {
		t.Errorf("expected focus on item, got %s", st.Focus)
	}
}

func TestPostCaptiveCloses(t *testing.T) {
	l := newFakeLedger()
	f := newTestForm(t, l, Options{})
	f.SetCaptive(true)
	fill(t, f, "1")

	outcome, err := f.Post(context.Background())
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if outcome != OutcomeClosed {
		t.Errorf("expected closed, got %s", outcome)
	}
	if f.State().ItemID != 1 {
		t.Error("expected captive form to keep its fields")
	}
}

func TestPostCostArgument(t *testing.T) {
	tests := []struct {
		name   string
		adjust bool
		manual bool
		cost   string
		want   *decimal.Decimal
	}{
		{"adjust unchecked", false, false, "", ptr(decimal.Zero)},
		{"manual", true, true, "12.50", ptr(decimal.RequireFromString("12.50"))},
		{"calculated", true, false, "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newFakeLedger()
			f := newTestForm(t, l, Options{})
			fill(t, f, "5")
			f.SetCost(tt.adjust, tt.manual, tt.cost)

			if _, err := f.Post(context.Background()); err != nil {
				t.Fatalf("Post: %v", err)
			}
			got := l.receipts[0].Cost
			switch {
			case tt.want == nil && got != nil:
				t.Errorf("expected NULL cost, got %s", got)
			case tt.want != nil && (got == nil || !got.Equal(*tt.want)):
				t.Errorf("expected cost %s, got %v", tt.want, got)
			}
		})
	}
}

func TestPostControlledRejectedCleansUp(t *testing.T) {
	l := newFakeLedger()
	l.site.Controlled = true
	dist := &fakeDistributor{accept: false}
	f := newTestForm(t, l, Options{Distributor: dist})
	fill(t, f, "5")

	outcome, err := f.Post(context.Background())
	if outcome != OutcomeCanceled || !apperr.Is(err, apperr.KindCanceled) {
		t.Fatalf("expected canceled, got %s, %v", outcome, err)
	}
	if dist.called != 100 {
		t.Errorf("expected distribution of series 100, got %d", dist.called)
	}
	if hasCall(l, "invReceipt") {
		t.Error("expected no receipt posting after rejection")
	}
	if len(l.deleted) != 1 || l.deleted[0] != 100 {
		t.Errorf("expected cleanup of series 100, got %v", l.deleted)
	}
}

func TestPostControlledAccepted(t *testing.T) {
	l := newFakeLedger()
	l.site.Controlled = true
	f := newTestForm(t, l, Options{Distributor: &fakeDistributor{accept: true}})
	fill(t, f, "5")

	if _, err := f.Post(context.Background()); err != nil {
		t.Fatalf("Post: %v", err)
	}
	want := []string{"nextval", "parent", "invReceipt"}
	got := l.calls[len(l.calls)-3:]
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected call order %v, got %v", want, l.calls)
		}
	}
}

func TestPostParentFailureSkipsCleanup(t *testing.T) {
	l := newFakeLedger()
	l.site.Controlled = true
	l.parentErr = errors.New("boom")
	f := newTestForm(t, l, Options{Distributor: &fakeDistributor{accept: true}})
	fill(t, f, "5")

	_, err := f.Post(context.Background())
	var ae *apperr.Error
	if !errors.As(err, &ae) || ae.Title != "Error Creating itemlocdist Records" {
		t.Fatalf("expected itemlocdist error, got %v", err)
	}
	if ae.Location() == "" {
		t.Error("expected reporting location")
	}
}

func TestPostResultMismatchCleansUp(t *testing.T) {
	tests := []struct {
		name   string
		result int64
	}{
		{"negative code", store.ReceiptErrJobCost},
		{"other series", 99},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newFakeLedger()
			l.postResult = &tt.result
			f := newTestForm(t, l, Options{})
			fill(t, f, "5")

			_, err := f.Post(context.Background())
			if !apperr.Is(err, apperr.KindQuery) {
				t.Fatalf("expected query error, got %v", err)
			}
			if len(l.deleted) != 1 || l.deleted[0] != 100 {
				t.Errorf("expected cleanup of series 100, got %v", l.deleted)
			}
			if f.State().ItemID != 1 {
				t.Error("expected fields kept after failure")
			}
		})
	}
}

func TestPostNoRowCleansUp(t *testing.T) {
	l := newFakeLedger()
	l.postErr = store.ErrNotFound
	f := newTestForm(t, l, Options{})
	fill(t, f, "5")

	_, err := f.Post(context.Background())
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if len(l.deleted) != 1 {
		t.Errorf("expected cleanup, got %v", l.deleted)
	}
}

func TestPostSeriesFailure(t *testing.T) {
	l := newFakeLedger()
	l.series = 0
	f := newTestForm(t, l, Options{})
	fill(t, f, "5")

	_, err := f.Post(context.Background())
	if !apperr.Is(err, apperr.KindQuery) {
		t.Fatalf("expected query error, got %v", err)
	}
	if hasCall(l, "cleanup") || hasCall(l, "invReceipt") {
		t.Errorf("unexpected calls %v", l.calls)
	}
}

func TestPostIssuesToWorkOrder(t *testing.T) {
	tests := []struct {
		method string
		want   bool
	}{
		{model.IssuePush, true},
		{model.IssueMixed, true},
		{model.IssuePull, false},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			l := newFakeLedger()
			l.material = &model.WoMaterial{ID: 55, WoID: 9, IssueMethod: tt.method}
			issuer := &fakeIssuer{}
			f := newTestForm(t, l, Options{Issuer: issuer})
			fill(t, f, "5")
			f.SetIssueToWo(context.Background(), true, 9)

			if _, err := f.Post(context.Background()); err != nil {
				t.Fatalf("Post: %v", err)
			}
			if got := len(issuer.reqs) == 1; got != tt.want {
				t.Fatalf("expected issue %v, got %v", tt.want, issuer.reqs)
			}
			if tt.want {
				req := issuer.reqs[0]
				if req.WoID != 9 || req.WomatlID != 55 || !req.Qty.Equal(decimal.NewFromInt(5)) {
					t.Errorf("unexpected issue request %+v", req)
				}
			}
			if f.State().IssueToWo || f.State().WoID != 0 {
				t.Error("expected work order fields reset")
			}
		})
	}
}

func TestPostIssueFailureKeepsReceipt(t *testing.T) {
	l := newFakeLedger()
	l.material = &model.WoMaterial{ID: 55, WoID: 9, IssueMethod: model.IssuePush}
	f := newTestForm(t, l, Options{Issuer: &fakeIssuer{err: errors.New("closed")}})
	fill(t, f, "5")
	f.SetIssueToWo(context.Background(), true, 9)

	outcome, err := f.Post(context.Background())
	if err != nil || outcome != OutcomeReset {
		t.Fatalf("expected posted receipt, got %s, %v", outcome, err)
	}
	if hasCall(l, "cleanup") {
		t.Error("expected no cleanup after a posted receipt")
	}
	if f.State().PendingIssue == nil {
		t.Error("expected pending issue recorded after failed issue")
	}
}

func TestPopulateQty(t *testing.T) {
	l := newFakeLedger()
	l.site.QtyOnHand = decimal.Zero
	l.site.Controlled = true
	f := newTestForm(t, l, Options{})
	fill(t, f, "4")

	st := f.State()
	if st.ItemSiteID != 7 || !st.Controlled {
		t.Errorf("unexpected item site state %+v", st)
	}
	if !st.CostManual || !st.CostAdjust || !st.CostAdjustEnabled {
		t.Errorf("expected manual cost selected and adjust enabled, got %+v", st)
	}
	if st.AfterQty == nil || !st.AfterQty.Equal(decimal.NewFromInt(4)) {
		t.Errorf("expected after qty 4, got %v", st.AfterQty)
	}

	f.SetIssueToWo(context.Background(), true, 3)
	st = f.State()
	if !st.AfterQty.Equal(*st.BeforeQty) {
		t.Errorf("expected after qty to equal before qty when issuing, got %v", st.AfterQty)
	}
}

func TestPopulateQtyCostAdjustByMethod(t *testing.T) {
	l := newFakeLedger()
	l.site.CostMethod = model.CostMethodStandard
	f := newTestForm(t, l, Options{})
	fill(t, f, "1")

	if f.State().CostAdjustEnabled {
		t.Error("expected cost adjust disabled for standard cost")
	}

	l = newFakeLedger()
	l.metrics["AllowAvgCostMethod"] = false
	f = newTestForm(t, l, Options{})
	fill(t, f, "1")
	if !f.State().CostTabHidden || f.State().CostAdjustEnabled {
		t.Error("expected cost tab hidden and adjust disabled")
	}
}

func TestCostUpdated(t *testing.T) {
	l := newFakeLedger()
	f := newTestForm(t, l, Options{})
	fill(t, f, "4")

	if got := f.State().UnitCost; got != "N/A" {
		t.Errorf("expected N/A without cost, got %s", got)
	}
	f.SetCost(true, true, "10")
	if got := f.State().UnitCost; got != "2.5000" {
		t.Errorf("expected 2.5000, got %s", got)
	}
}

func TestSetQtyRejectsFractionForWholeItems(t *testing.T) {
	l := newFakeLedger()
	f := newTestForm(t, l, Options{})
	fill(t, f, "1")

	if err := f.SetQty("1.5"); !apperr.Is(err, apperr.KindInput) {
		t.Errorf("expected input error, got %v", err)
	}

	l.site.Fractional = true
	f.PopulateQty(context.Background())
	if err := f.SetQty("1.5"); err != nil {
		t.Errorf("expected fractional qty accepted, got %v", err)
	}
}

func TestTransDatePrivilege(t *testing.T) {
	l := newFakeLedger()
	f := newTestForm(t, l, Options{})
	if err := f.SetTransDate(time.Now()); !apperr.Is(err, apperr.KindForbidden) {
		t.Errorf("expected forbidden without privilege, got %v", err)
	}

	f = newTestForm(t, l, Options{Privileges: model.PrivilegeSet{model.PrivAlterTransactionDates: true}})
	d := time.Date(2023, 12, 31, 8, 0, 0, 0, time.UTC)
	if err := f.SetTransDate(d); err != nil {
		t.Fatalf("SetTransDate: %v", err)
	}
	if f.State().TransDate.Day() != 31 || f.State().TransDate.Hour() != 0 {
		t.Errorf("unexpected trans date %s", f.State().TransDate)
	}
}

func TestViewMode(t *testing.T) {
	l := newFakeLedger()
	l.hist = &model.InvHist{
		ID: 3, ItemSiteID: 7, User: "clerk", Qty: decimal.NewFromInt(2),
		QOHBefore: decimal.NewFromInt(1), QOHAfter: decimal.NewFromInt(3), DocNumber: "D1", Comments: "n",
	}
	f := newTestForm(t, l, Options{})

	if err := f.Set(context.Background(), ModeView, 3); err != nil {
		t.Fatalf("Set: %v", err)
	}
	st := f.State()
	if st.Username != "clerk" || st.Qty != "2" || st.DocNumber != "D1" || st.DateEditable {
		t.Errorf("unexpected view state %+v", st)
	}
	out, err := f.Post(context.Background())
	if !apperr.Is(err, apperr.KindCanceled) {
		t.Errorf("expected view mode post canceled, got %v", err)
	}
	if out != 0 || len(l.receipts) != 0 || len(l.calls) != 0 {
		t.Errorf("expected nothing posted from view mode, got outcome %v and calls %v", out, l.calls)
	}
	if err := f.SetQty("9"); !apperr.Is(err, apperr.KindCanceled) {
		t.Errorf("expected view mode fields read-only, got %v", err)
	}

	if err := f.Set(context.Background(), ModeView, 4); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func ptr(d decimal.Decimal) *decimal.Decimal {
	return &d
}
