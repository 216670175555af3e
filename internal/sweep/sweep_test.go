package sweep

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/erazemk/nabava/internal/db"
	"github.com/erazemk/nabava/internal/model"
	"github.com/erazemk/nabava/internal/store"
)

type fakePurger struct {
	mu      sync.Mutex
	cutoffs []time.Time
	err     error
}

func (f *fakePurger) PurgeStaleSeries(ctx context.Context, cutoff time.Time) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cutoffs = append(f.cutoffs, cutoff)
	if f.err != nil {
		return nil, f.err
	}
	return []int64{1}, nil
}

func (f *fakePurger) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cutoffs)
}

func TestRunCutoff(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	p := &fakePurger{}
	s := &Sweeper{Purger: p, MaxAge: 2 * time.Hour, Now: func() time.Time { return now }}

	purged, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(purged) != 1 {
		t.Errorf("expected 1 purged series, got %v", purged)
	}
	if want := now.Add(-2 * time.Hour); !p.cutoffs[0].Equal(want) {
		t.Errorf("expected cutoff %v, got %v", want, p.cutoffs[0])
	}
}

func TestRunError(t *testing.T) {
	boom := errors.New("boom")
	s := &Sweeper{Purger: &fakePurger{err: boom}, MaxAge: time.Hour}

	if _, err := s.Run(context.Background()); !errors.Is(err, boom) {
		t.Errorf("expected wrapped error, got %v", err)
	}
}

func TestStartInvalidSchedule(t *testing.T) {
	s := &Sweeper{Purger: &fakePurger{}, MaxAge: time.Hour}
	if _, err := Start(context.Background(), "not a schedule", s); err == nil {
		t.Fatal("expected error for invalid schedule")
	}
}

func TestStartRunsOnSchedule(t *testing.T) {
	p := &fakePurger{}
	s := &Sweeper{Purger: p, MaxAge: time.Hour}

	c, err := Start(context.Background(), "@every 1s", s)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Stop()

	deadline := time.Now().Add(5 * time.Second)
	for p.calls() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("sweep never ran")
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func TestRunAgainstStore(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	site, err := store.CreateSite(ctx, database, "WH1", "Main")
	if err != nil {
		t.Fatal(err)
	}
	item, err := store.CreateItem(ctx, database, model.Item{Number: "BTRUCK1", Description: "Truck"})
	if err != nil {
		t.Fatal(err)
	}
	itemSite, err := store.CreateItemSite(ctx, database, model.ItemSite{ItemID: item.ID, WarehouseID: site.ID, CostMethod: model.CostMethodStandard})
	if err != nil {
		t.Fatal(err)
	}
	series, err := store.NextItemlocSeries(ctx, database)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.CreateItemlocdistParent(ctx, database, itemSite.ID, decimal.NewFromInt(3), model.TransTypeReceipt, series); err != nil {
		t.Fatal(err)
	}

	ledger := store.Ledger{DB: database}

	fresh := &Sweeper{Purger: ledger, MaxAge: time.Hour}
	purged, err := fresh.Run(ctx)
	if err != nil || len(purged) != 0 {
		t.Fatalf("expected nothing purged, got %v, %v", purged, err)
	}

	later := &Sweeper{Purger: ledger, MaxAge: time.Hour, Now: func() time.Time { return time.Now().Add(2 * time.Hour) }}
	purged, err = later.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(purged) != 1 || purged[0] != series {
		t.Errorf("expected series %d purged, got %v", series, purged)
	}
}

type fakeTokens struct {
	at []time.Time
}

func (f *fakeTokens) PurgeExpiredTokens(_ context.Context, now time.Time) (int64, error) {
	f.at = append(f.at, now)
	return 2, nil
}

func TestRunPurgesTokens(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	tokens := &fakeTokens{}
	s := &Sweeper{Purger: &fakePurger{}, Tokens: tokens, MaxAge: time.Hour, Now: func() time.Time { return now }}

	if _, err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(tokens.at) != 1 || !tokens.at[0].Equal(now) {
		t.Errorf("expected token purge at %v, got %v", now, tokens.at)
	}
}

func TestRunSkipsTokensOnSeriesError(t *testing.T) {
	tokens := &fakeTokens{}
	s := &Sweeper{Purger: &fakePurger{err: errors.New("boom")}, Tokens: tokens, MaxAge: time.Hour}

	if _, err := s.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if len(tokens.at) != 0 {
		t.Errorf("expected no token purge, got %d", len(tokens.at))
	}
}
