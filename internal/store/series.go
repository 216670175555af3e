package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/erazemk/nabava/internal/model"
)

// NextItemlocSeries allocates a new distribution series id.
func NextItemlocSeries(ctx context.Context, db *sql.DB) (int64, error) {
	result, err := db.ExecContext(ctx, `INSERT INTO itemloc_series_seq DEFAULT VALUES`)
	if err != nil {
		return 0, fmt.Errorf("allocating itemloc series: %w", err)
	}
	series, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting itemloc series: %w", err)
	}
	return series, nil
}

// CreateItemlocdistParent stages the parent distribution record of a series.
// Returns ErrNotFound if the item site does not exist.
func CreateItemlocdistParent(ctx context.Context, db *sql.DB, itemSiteID int64, qty decimal.Decimal, orderType string, series int64) (int64, error) {
	var exists int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM itemsite WHERE itemsite_id = ?`, itemSiteID,
	).Scan(&exists)
	if err != nil {
		return 0, fmt.Errorf("checking item site: %w", err)
	}
	if exists == 0 {
		return 0, ErrNotFound
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO itemlocdist (itemlocdist_series, itemlocdist_itemsite_id, itemlocdist_order_type, itemlocdist_qty)
		 VALUES (?, ?, ?, ?)`,
		series, itemSiteID, orderType, qty,
	)
	if err != nil {
		return 0, fmt.Errorf("creating itemlocdist parent: %w", err)
	}
	return result.LastInsertId()
}

// DistributeSeries allocates the parent quantity of a series across locations.
// Allocations must be positive, belong to the item site's site and add up to
// the parent quantity exactly.
func DistributeSeries(ctx context.Context, db *sql.DB, series int64, allocations []model.LocationQty) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var parentID, itemSiteID, warehouseID int64
	var parentQty decimal.Decimal
	err = tx.QueryRowContext(ctx,
		`SELECT d.itemlocdist_id, d.itemlocdist_itemsite_id, d.itemlocdist_qty, s.itemsite_warehous_id
		 FROM itemlocdist d
		 JOIN itemsite s ON s.itemsite_id = d.itemlocdist_itemsite_id
		 WHERE d.itemlocdist_series = ? AND d.itemlocdist_parent_id IS NULL`, series,
	).Scan(&parentID, &itemSiteID, &parentQty, &warehouseID)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("getting itemlocdist parent: %w", err)
	}

	total := decimal.Zero
	for _, a := range allocations {
		if !a.Qty.IsPositive() {
			return fmt.Errorf("%w: location %d quantity must be positive", ErrInvalid, a.LocationID)
		}

		var locWarehouse int64
		err := tx.QueryRowContext(ctx,
			`SELECT location_warehous_id FROM location WHERE location_id = ?`, a.LocationID,
		).Scan(&locWarehouse)
		if err == sql.ErrNoRows {
			return fmt.Errorf("%w: location %d not found", ErrInvalid, a.LocationID)
		}
		if err != nil {
			return fmt.Errorf("checking location: %w", err)
		}
		if locWarehouse != warehouseID {
			return fmt.Errorf("%w: location %d is not at the item's site", ErrInvalid, a.LocationID)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO itemlocdist (itemlocdist_series, itemlocdist_itemsite_id, itemlocdist_parent_id,
			                          itemlocdist_location_id, itemlocdist_qty)
			 VALUES (?, ?, ?, ?, ?)`,
			series, itemSiteID, parentID, a.LocationID, a.Qty,
		)
		if err != nil {
			return fmt.Errorf("creating itemlocdist: %w", err)
		}
		total = total.Add(a.Qty)
	}

	if !total.Equal(parentQty) {
		return fmt.Errorf("%w: distributed %s of %s", ErrInvalid, total, parentQty)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing distribution: %w", err)
	}
	return nil
}

// DeleteItemlocSeries removes every distribution record tagged with series.
// Returns the number of rows removed.
func DeleteItemlocSeries(ctx context.Context, db *sql.DB, series int64) (int64, error) {
	return deleteItemlocSeries(ctx, db, series)
}

func deleteItemlocSeries(ctx context.Context, q querier, series int64) (int64, error) {
	// Children first so the parent reference never dangles.
	result, err := q.ExecContext(ctx,
		`DELETE FROM itemlocdist WHERE itemlocdist_series = ? AND itemlocdist_parent_id IS NOT NULL`, series,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting itemloc series: %w", err)
	}
	children, _ := result.RowsAffected()

	result, err = q.ExecContext(ctx,
		`DELETE FROM itemlocdist WHERE itemlocdist_series = ?`, series,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting itemloc series: %w", err)
	}
	parents, _ := result.RowsAffected()

	return children + parents, nil
}

// ListSeriesDistributions returns the distribution records of a series.
func ListSeriesDistributions(ctx context.Context, db *sql.DB, series int64) ([]model.Distribution, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT itemlocdist_id, itemlocdist_series, itemlocdist_itemsite_id, itemlocdist_parent_id,
		        itemlocdist_location_id, COALESCE(itemlocdist_order_type, ''), itemlocdist_qty
		 FROM itemlocdist WHERE itemlocdist_series = ?
		 ORDER BY itemlocdist_id`, series,
	)
	if err != nil {
		return nil, fmt.Errorf("listing series distributions: %w", err)
	}
	defer rows.Close()

	var dists []model.Distribution
	for rows.Next() {
		var d model.Distribution
		if err := rows.Scan(&d.ID, &d.Series, &d.ItemSiteID, &d.ParentID, &d.LocationID, &d.OrderType, &d.Qty); err != nil {
			return nil, fmt.Errorf("scanning distribution: %w", err)
		}
		dists = append(dists, d)
	}
	return dists, rows.Err()
}

// PurgeStaleSeries deletes distribution series whose records were staged
// before cutoff and never posted or cleaned up. Returns the purged series.
func PurgeStaleSeries(ctx context.Context, db *sql.DB, cutoff time.Time) ([]int64, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT DISTINCT itemlocdist_series FROM itemlocdist
		 WHERE itemlocdist_created < ?
		 ORDER BY itemlocdist_series`, timestampArg(cutoff),
	)
	if err != nil {
		return nil, fmt.Errorf("finding stale series: %w", err)
	}

	var stale []int64
	for rows.Next() {
		var series int64
		if err := rows.Scan(&series); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning stale series: %w", err)
		}
		stale = append(stale, series)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("finding stale series: %w", err)
	}

	for _, series := range stale {
		if _, err := deleteItemlocSeries(ctx, db, series); err != nil {
			return nil, err
		}
	}
	return stale, nil
}
