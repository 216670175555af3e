package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/erazemk/nabava/internal/model"
)

// Result codes returned by InvReceipt.
const (
	ReceiptErrQty          = -1
	ReceiptErrJobCost      = -2
	ReceiptErrDistribution = -3
)

// InvReceipt posts a miscellaneous receipt and returns r.Series on success or
// a negative result code. Returns ErrNotFound if the item site is missing.
// Staged child distributions of the series are applied to item locations and
// the series is cleared.
func InvReceipt(ctx context.Context, db *sql.DB, r model.Receipt) (int64, error) {
	if !r.Qty.IsPositive() {
		return ReceiptErrQty, nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	site, err := getItemSite(ctx, tx, r.ItemSiteID)
	if err != nil {
		return 0, err
	}
	if site == nil {
		return 0, ErrNotFound
	}
	if site.CostMethod == model.CostMethodJob {
		return ReceiptErrJobCost, nil
	}

	var dists []model.Distribution
	if site.LocCntrl {
		dists, err = seriesChildren(ctx, tx, r.Series)
		if err != nil {
			return 0, err
		}
		total := decimal.Zero
		for _, d := range dists {
			total = total.Add(d.Qty)
		}
		if !total.Equal(r.Qty) {
			return ReceiptErrDistribution, nil
		}
	}

	unitCost := site.UnitCost()
	valueDelta := unitCost.Mul(r.Qty)
	if r.Cost != nil {
		valueDelta = *r.Cost
		unitCost = r.Cost.Div(r.Qty)
	}
	if site.CostMethod == model.CostMethodNone {
		valueDelta = decimal.Zero
	}

	before := site.QtyOnHand
	after := before.Add(r.Qty)

	_, err = tx.ExecContext(ctx,
		`UPDATE itemsite SET itemsite_qtyonhand = ?, itemsite_value = ? WHERE itemsite_id = ?`,
		after, site.Value.Add(valueDelta), site.ID,
	)
	if err != nil {
		return 0, fmt.Errorf("updating item site: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO invhist (invhist_itemsite_id, invhist_transtype, invhist_transdate, invhist_invqty,
		                      invhist_qoh_before, invhist_qoh_after, invhist_unitcost, invhist_ordnumber,
		                      invhist_docnumber, invhist_comments, invhist_user, invhist_series)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		site.ID, model.TransTypeReceipt, dateArg(r.TransDate), r.Qty, before, after, unitCost.Round(6),
		r.OrdNumber, r.DocNumber, r.Comments, r.User, r.Series,
	)
	if err != nil {
		return 0, fmt.Errorf("recording receipt: %w", err)
	}

	for _, d := range dists {
		if err := addItemLocQty(ctx, tx, site.ID, *d.LocationID, d.Qty); err != nil {
			return 0, err
		}
	}

	if _, err := deleteItemlocSeries(ctx, tx, r.Series); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing receipt: %w", err)
	}
	return r.Series, nil
}

func seriesChildren(ctx context.Context, q querier, series int64) ([]model.Distribution, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT itemlocdist_id, itemlocdist_location_id, itemlocdist_qty
		 FROM itemlocdist
		 WHERE itemlocdist_series = ? AND itemlocdist_parent_id IS NOT NULL
		   AND itemlocdist_location_id IS NOT NULL`, series,
	)
	if err != nil {
		return nil, fmt.Errorf("reading series distributions: %w", err)
	}
	defer rows.Close()

	var dists []model.Distribution
	for rows.Next() {
		d := model.Distribution{Series: series}
		if err := rows.Scan(&d.ID, &d.LocationID, &d.Qty); err != nil {
			return nil, fmt.Errorf("scanning distribution: %w", err)
		}
		dists = append(dists, d)
	}
	return dists, rows.Err()
}

// GetInvHist returns a posted inventory transaction, or nil if it does not exist.
func GetInvHist(ctx context.Context, db *sql.DB, id int64) (*model.InvHist, error) {
	h := &model.InvHist{}
	var series sql.NullInt64
	err := db.QueryRowContext(ctx,
		`SELECT invhist_id, invhist_itemsite_id, invhist_transtype, invhist_transdate, invhist_invqty,
		        invhist_qoh_before, invhist_qoh_after, invhist_unitcost, invhist_ordnumber,
		        invhist_docnumber, invhist_comments, invhist_user, invhist_series
		 FROM invhist WHERE invhist_id = ?`, id,
	).Scan(&h.ID, &h.ItemSiteID, &h.TransType, &h.TransDate, &h.Qty, &h.QOHBefore, &h.QOHAfter,
		&h.UnitCost, &h.OrdNumber, &h.DocNumber, &h.Comments, &h.User, &series)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting inventory history: %w", err)
	}
	h.Series = series.Int64
	return h, nil
}

// ListInvHist returns the history of an item site, newest first.
func ListInvHist(ctx context.Context, db *sql.DB, itemSiteID int64) ([]model.InvHist, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT invhist_id, invhist_itemsite_id, invhist_transtype, invhist_transdate, invhist_invqty,
		        invhist_qoh_before, invhist_qoh_after, invhist_unitcost, invhist_ordnumber,
		        invhist_docnumber, invhist_comments, invhist_user, COALESCE(invhist_series, 0)
		 FROM invhist WHERE invhist_itemsite_id = ?
		 ORDER BY invhist_id DESC`, itemSiteID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing inventory history: %w", err)
	}
	defer rows.Close()

	var hist []model.InvHist
	for rows.Next() {
		var h model.InvHist
		if err := rows.Scan(&h.ID, &h.ItemSiteID, &h.TransType, &h.TransDate, &h.Qty, &h.QOHBefore,
			&h.QOHAfter, &h.UnitCost, &h.OrdNumber, &h.DocNumber, &h.Comments, &h.User, &h.Series); err != nil {
			return nil, fmt.Errorf("scanning inventory history: %w", err)
		}
		hist = append(hist, h)
	}
	return hist, rows.Err()
}
