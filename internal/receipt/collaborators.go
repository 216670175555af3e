package receipt

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/erazemk/nabava/internal/model"
)

// SeriesDistributor is the ledger side of a location distribution.
type SeriesDistributor interface {
	DistributeSeries(ctx context.Context, series int64, allocations []model.LocationQty) error
}

// Allocations distributes a series to a fixed set of locations supplied up
// front by the caller. No allocations rejects the distribution.
type Allocations struct {
	Ledger SeriesDistributor
	Lines  []model.LocationQty
}

func (a Allocations) SeriesAdjust(ctx context.Context, series int64) (bool, error) {
	if len(a.Lines) == 0 {
		return false, nil
	}
	if err := a.Ledger.DistributeSeries(ctx, series, a.Lines); err != nil {
		return false, err
	}
	return true, nil
}

// MaterialIssuer is the ledger side of a work order material issue.
type MaterialIssuer interface {
	IssueWoMaterial(ctx context.Context, womatlID int64, qty decimal.Decimal, user string, date time.Time) (int64, error)
}

// LedgerIssuer issues work order material straight through the ledger.
type LedgerIssuer struct {
	Ledger MaterialIssuer
	User   string
	Date   time.Time
}

func (l LedgerIssuer) IssueMaterial(ctx context.Context, req IssueRequest) error {
	date := l.Date
	if date.IsZero() {
		date = time.Now()
	}
	_, err := l.Ledger.IssueWoMaterial(ctx, req.WomatlID, req.Qty, l.User, date)
	return err
}
