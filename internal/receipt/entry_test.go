package receipt

import (
	"context"
	"testing"
	"time"

	"github.com/erazemk/nabava/internal/apperr"
	"github.com/erazemk/nabava/internal/model"
)

func TestEnterKeepsPopulatedCostFlags(t *testing.T) {
	l := newFakeLedger()
	f := newTestForm(t, l, Options{})

	err := f.Enter(context.Background(), Entry{
		ItemID: 1, WarehouseID: 2, Qty: "4", DocNumber: "D-9", Notes: "dock 3",
	})
	if err != nil {
		t.Fatalf("Enter: %v", err)
	}

	st := f.State()
	if st.ItemSiteID != 7 || st.Qty != "4" || st.DocNumber != "D-9" || st.Notes != "dock 3" {
		t.Errorf("unexpected state %+v", st)
	}
	if !st.CostAdjust || st.CostManual {
		t.Errorf("expected populated cost flags, got adjust=%v manual=%v", st.CostAdjust, st.CostManual)
	}
}

func TestEnterOverridesCostFlags(t *testing.T) {
	l := newFakeLedger()
	f := newTestForm(t, l, Options{})
	adjust, manual := true, true

	err := f.Enter(context.Background(), Entry{
		ItemID: 1, WarehouseID: 2, Qty: "4", CostAdjust: &adjust, CostManual: &manual, Cost: "20",
	})
	if err != nil {
		t.Fatalf("Enter: %v", err)
	}
	if st := f.State(); !st.CostManual || st.Cost != "20" {
		t.Errorf("expected manual cost 20, got %+v", st)
	}
}

func TestEnterStopsAtRejectedField(t *testing.T) {
	l := newFakeLedger()
	f := newTestForm(t, l, Options{})

	err := f.Enter(context.Background(), Entry{
		ItemID: 1, WarehouseID: 2, Qty: "1", DocNumber: "D-1",
		TransDate: time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
	})
	if !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden trans date, got %v", err)
	}
	if f.State().Focus != FieldDate {
		t.Errorf("expected focus on %s, got %q", FieldDate, f.State().Focus)
	}

	f = newTestForm(t, l, Options{Privileges: model.PrivilegeSet{model.PrivAlterTransactionDates: true}})
	err = f.Enter(context.Background(), Entry{
		ItemID: 1, WarehouseID: 2, Qty: "1",
		TransDate: time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Enter: %v", err)
	}
	if f.State().TransDate.Day() != 5 {
		t.Errorf("unexpected trans date %s", f.State().TransDate)
	}
}
