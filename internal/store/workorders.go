package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/erazemk/nabava/internal/model"
)

// CreateWorkOrder creates a work order for an item site.
func CreateWorkOrder(ctx context.Context, db *sql.DB, wo model.WorkOrder) (*model.WorkOrder, error) {
	if wo.Status == "" {
		wo.Status = "O"
	}
	if wo.SubNumber == 0 {
		wo.SubNumber = 1
	}
	result, err := db.ExecContext(ctx,
		`INSERT INTO wo (wo_number, wo_subnumber, wo_status, wo_itemsite_id, wo_qtyord)
		 VALUES (?, ?, ?, ?, ?)`,
		wo.Number, wo.SubNumber, wo.Status, wo.ItemSiteID, wo.QtyOrdered,
	)
	if err != nil {
		return nil, fmt.Errorf("creating work order: %w", err)
	}
	wo.ID, err = result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting work order id: %w", err)
	}
	return &wo, nil
}

// AddWoMaterial adds a component requirement to a work order.
func AddWoMaterial(ctx context.Context, db *sql.DB, m model.WoMaterial) (*model.WoMaterial, error) {
	if m.IssueMethod == "" {
		m.IssueMethod = model.IssuePush
	}
	result, err := db.ExecContext(ctx,
		`INSERT INTO womatl (womatl_wo_id, womatl_itemsite_id, womatl_issuemethod, womatl_qtyreq)
		 VALUES (?, ?, ?, ?)`,
		m.WoID, m.ItemSiteID, m.IssueMethod, m.QtyRequired,
	)
	if err != nil {
		return nil, fmt.Errorf("creating work order material: %w", err)
	}
	m.ID, err = result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting work order material id: %w", err)
	}
	return &m, nil
}

// FindWoMaterial returns the requirement of a work order for an item at a
// site, or nil when the work order does not use it.
func FindWoMaterial(ctx context.Context, db *sql.DB, itemID, warehouseID, woID int64) (*model.WoMaterial, error) {
	m := &model.WoMaterial{}
	err := db.QueryRowContext(ctx,
		`SELECT m.womatl_id, m.womatl_wo_id, m.womatl_itemsite_id, m.womatl_issuemethod,
		        m.womatl_qtyreq, m.womatl_qtyiss
		 FROM womatl m
		 JOIN wo ON wo.wo_id = m.womatl_wo_id
		 JOIN itemsite s ON s.itemsite_id = m.womatl_itemsite_id
		 WHERE wo.wo_id = ? AND s.itemsite_item_id = ? AND s.itemsite_warehous_id = ?`,
		woID, itemID, warehouseID,
	).Scan(&m.ID, &m.WoID, &m.ItemSiteID, &m.IssueMethod, &m.QtyRequired, &m.QtyIssued)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding work order material: %w", err)
	}
	return m, nil
}

// IssueWoMaterial issues qty of a material to its work order: on-hand drops,
// the issued quantity grows and an IM history row is written. Returns the
// history id.
func IssueWoMaterial(ctx context.Context, db *sql.DB, womatlID int64, qty decimal.Decimal, user string, date time.Time) (int64, error) {
	if !qty.IsPositive() {
		return 0, fmt.Errorf("%w: issue quantity must be positive", ErrInvalid)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var itemSiteID, woNumber int64
	var woStatus string
	err = tx.QueryRowContext(ctx,
		`SELECT m.womatl_itemsite_id, wo.wo_number, wo.wo_status
		 FROM womatl m JOIN wo ON wo.wo_id = m.womatl_wo_id
		 WHERE m.womatl_id = ?`, womatlID,
	).Scan(&itemSiteID, &woNumber, &woStatus)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("getting work order material: %w", err)
	}
	if woStatus == "C" {
		return 0, fmt.Errorf("%w: work order %d is closed", ErrInvalid, woNumber)
	}

	site, err := getItemSite(ctx, tx, itemSiteID)
	if err != nil {
		return 0, err
	}
	if site == nil {
		return 0, ErrNotFound
	}

	unitCost := site.UnitCost()
	before := site.QtyOnHand
	after := before.Sub(qty)
	value := site.Value.Sub(unitCost.Mul(qty))
	if site.CostMethod == model.CostMethodNone {
		value = site.Value
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE itemsite SET itemsite_qtyonhand = ?, itemsite_value = ? WHERE itemsite_id = ?`,
		after, value, site.ID,
	)
	if err != nil {
		return 0, fmt.Errorf("updating item site: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE womatl SET womatl_qtyiss = womatl_qtyiss + ? WHERE womatl_id = ?`,
		qty, womatlID,
	)
	if err != nil {
		return 0, fmt.Errorf("updating work order material: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO invhist (invhist_itemsite_id, invhist_transtype, invhist_transdate, invhist_invqty,
		                      invhist_qoh_before, invhist_qoh_after, invhist_unitcost, invhist_ordnumber,
		                      invhist_user)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		site.ID, model.TransTypeIssueWo, dateArg(date), qty.Neg(), before, after, unitCost.Round(6),
		fmt.Sprintf("WO-%d", woNumber), user,
	)
	if err != nil {
		return 0, fmt.Errorf("recording material issue: %w", err)
	}
	histID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting history id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing material issue: %w", err)
	}
	return histID, nil
}
