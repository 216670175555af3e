// Package pgstore runs the purchasing and inventory operations against a
// PostBooks database, calling its stored procedures directly.
package pgstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"github.com/erazemk/nabava/internal/model"
	"github.com/erazemk/nabava/internal/store"
)

// Open connects to a PostBooks database through the pgx driver.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening ledger database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to ledger database: %w", err)
	}
	return db, nil
}

// Ledger is a PostBooks database.
type Ledger struct {
	DB *sql.DB
}

func (l Ledger) Metric(ctx context.Context, name string) (bool, error) {
	var v sql.NullBool
	err := l.DB.QueryRowContext(ctx, `SELECT fetchMetricBool($1) AS result;`, name).Scan(&v)
	if err != nil {
		return false, fmt.Errorf("fetching metric %s: %w", name, err)
	}
	return v.Bool, nil
}

// DefaultSite returns the only active site, or 0 when there is not exactly one.
func (l Ledger) DefaultSite(ctx context.Context) (int64, error) {
	rows, err := l.DB.QueryContext(ctx,
		"SELECT warehous_id FROM whsinfo WHERE (warehous_active) ORDER BY warehous_code LIMIT 2;")
	if err != nil {
		return 0, fmt.Errorf("listing sites: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return 0, fmt.Errorf("scanning site: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("listing sites: %w", err)
	}
	if len(ids) != 1 {
		return 0, nil
	}
	return ids[0], nil
}

func (l Ledger) NextSeries(ctx context.Context) (int64, error) {
	var series int64
	err := l.DB.QueryRowContext(ctx, `SELECT NEXTVAL('itemloc_series_seq') AS result;`).Scan(&series)
	if err != nil {
		return 0, fmt.Errorf("allocating itemloc series: %w", err)
	}
	return series, nil
}

func (l Ledger) ItemSite(ctx context.Context, itemID, warehouseID int64) (*model.ItemSite, error) {
	s := &model.ItemSite{ItemID: itemID, WarehouseID: warehouseID}
	err := l.DB.QueryRowContext(ctx,
		"SELECT itemsite_qtyonhand, itemsite_costmethod, itemsite_id, "+
			"  isControlledItemsite(itemsite_id) AS controlled "+
			"FROM itemsite "+
			"WHERE ( (itemsite_item_id=$1)"+
			" AND (itemsite_warehous_id=$2) );",
		itemID, warehouseID,
	).Scan(&s.QtyOnHand, &s.CostMethod, &s.ID, &s.Controlled)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up item site: %w", err)
	}

	err = l.DB.QueryRowContext(ctx,
		"SELECT item_number, item_fractional, warehous_code "+
			"FROM itemsite JOIN item ON (item_id=itemsite_item_id) "+
			"JOIN whsinfo ON (warehous_id=itemsite_warehous_id) "+
			"WHERE (itemsite_id=$1);",
		s.ID,
	).Scan(&s.ItemNumber, &s.Fractional, &s.SiteCode)
	if err != nil {
		return nil, fmt.Errorf("getting item site labels: %w", err)
	}
	s.LocCntrl = s.Controlled
	s.Active = true
	return s, nil
}

func (l Ledger) InvHist(ctx context.Context, id int64) (*model.InvHist, error) {
	rows, err := l.DB.QueryContext(ctx,
		"SELECT * "+
			"FROM invhist "+
			"WHERE (invhist_id=$1);",
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("getting inventory history: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading inventory history columns: %w", err)
	}
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("scanning inventory history: %w", err)
	}

	row := make(map[string]any, len(cols))
	for i, c := range cols {
		row[c] = values[i]
	}
	return invHistFromRow(row)
}

func invHistFromRow(row map[string]any) (*model.InvHist, error) {
	h := &model.InvHist{
		ID:         asInt(row["invhist_id"]),
		ItemSiteID: asInt(row["invhist_itemsite_id"]),
		TransType:  asString(row["invhist_transtype"]),
		OrdNumber:  asString(row["invhist_ordnumber"]),
		DocNumber:  asString(row["invhist_docnumber"]),
		Comments:   asString(row["invhist_comments"]),
		User:       asString(row["invhist_user"]),
		Series:     asInt(row["invhist_series"]),
	}
	if t, ok := row["invhist_transdate"].(time.Time); ok {
		h.TransDate = t
	}

	var err error
	for col, dst := range map[string]*decimal.Decimal{
		"invhist_invqty":     &h.Qty,
		"invhist_qoh_before": &h.QOHBefore,
		"invhist_qoh_after":  &h.QOHAfter,
		"invhist_unitcost":   &h.UnitCost,
	} {
		if row[col] == nil {
			continue
		}
		if err = dst.Scan(row[col]); err != nil {
			return nil, fmt.Errorf("reading %s: %w", col, err)
		}
	}
	return h, nil
}

func (l Ledger) CreateDistributionParent(ctx context.Context, itemSiteID int64, qty decimal.Decimal, series int64) (int64, error) {
	var id sql.NullInt64
	err := l.DB.QueryRowContext(ctx,
		"SELECT createitemlocdistparent($1, $2, 'RX'::TEXT, NULL, $3) AS result;",
		itemSiteID, qty, series,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, store.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("creating itemlocdist parent: %w", err)
	}
	return id.Int64, nil
}

// DistributeSeries records the location allocations under the series parent
// and lets the database post them.
func (l Ledger) DistributeSeries(ctx context.Context, series int64, allocations []model.LocationQty) error {
	tx, err := l.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, a := range allocations {
		if !a.Qty.IsPositive() {
			return fmt.Errorf("%w: location %d quantity must be positive", store.ErrInvalid, a.LocationID)
		}
		result, err := tx.ExecContext(ctx,
			"INSERT INTO itemlocdist "+
				"( itemlocdist_itemlocdist_id, itemlocdist_source_type, itemlocdist_source_id,"+
				"  itemlocdist_qty, itemlocdist_series ) "+
				"SELECT itemlocdist_id, 'L', $2, $3, $1 "+
				"FROM itemlocdist "+
				"WHERE ( (itemlocdist_series=$1)"+
				" AND (itemlocdist_itemlocdist_id IS NULL) );",
			series, a.LocationID, a.Qty,
		)
		if err != nil {
			return fmt.Errorf("creating itemlocdist: %w", err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return store.ErrNotFound
		}
	}

	var result int64
	err = tx.QueryRowContext(ctx, "SELECT distributeitemlocseries($1) AS result;", series).Scan(&result)
	if err != nil {
		return fmt.Errorf("distributing itemloc series: %w", err)
	}
	if result < 0 {
		return fmt.Errorf("%w: distributeitemlocseries returned %d", store.ErrInvalid, result)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing distribution: %w", err)
	}
	return nil
}

func (l Ledger) PostReceipt(ctx context.Context, r model.Receipt) (int64, error) {
	var cost any
	if r.Cost != nil {
		cost = *r.Cost
	}

	var result int64
	err := l.DB.QueryRowContext(ctx,
		"SELECT invReceipt($1, $2, '', $3,"+
			"                  $4, $5, $6, $7, TRUE) AS result;",
		r.ItemSiteID, r.Qty, r.DocNumber, r.Comments, r.TransDate.Format(time.DateOnly), cost, r.Series,
	).Scan(&result)
	if err == sql.ErrNoRows {
		return 0, store.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("posting receipt: %w", err)
	}
	return result, nil
}

func (l Ledger) DeleteSeries(ctx context.Context, series int64) error {
	_, err := l.DB.ExecContext(ctx, "SELECT deleteitemlocseries($1, TRUE);", series)
	if err != nil {
		return fmt.Errorf("deleting itemloc series: %w", err)
	}
	return nil
}

func (l Ledger) WoMaterial(ctx context.Context, itemID, warehouseID, woID int64) (*model.WoMaterial, error) {
	m := &model.WoMaterial{WoID: woID}
	err := l.DB.QueryRowContext(ctx,
		"SELECT womatl_id, womatl_issuemethod "+
			"FROM womatl, wo, itemsite "+
			"WHERE ( ( womatl_itemsite_id=itemsite_id)"+
			" AND (womatl_wo_id=wo_id)"+
			" AND (itemsite_item_id=$1)"+
			" AND (itemsite_warehous_id=$2)"+
			" AND (wo_id=$3) );",
		itemID, warehouseID, woID,
	).Scan(&m.ID, &m.IssueMethod)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding work order material: %w", err)
	}
	return m, nil
}

// IssueWoMaterial posts a material issue. The database records its own
// session user, so user is only used for the error message.
func (l Ledger) IssueWoMaterial(ctx context.Context, womatlID int64, qty decimal.Decimal, user string, date time.Time) (int64, error) {
	var result int64
	err := l.DB.QueryRowContext(ctx,
		"SELECT issueWoMaterial($1, $2, NEXTVAL('itemloc_series_seq')::INTEGER, TRUE, $3) AS result;",
		womatlID, qty, date,
	).Scan(&result)
	if err != nil {
		return 0, fmt.Errorf("issuing work order material for %s: %w", user, err)
	}
	if result < 0 {
		return 0, fmt.Errorf("%w: issueWoMaterial returned %d", store.ErrInvalid, result)
	}
	return result, nil
}

func (l Ledger) ListPoItems(ctx context.Context, f model.PoItemFilter) ([]model.PoItem, error) {
	args := []any{f.Start.Format(time.DateOnly), f.End.Format(time.DateOnly)}
	where := []string{"(poitem_duedate BETWEEN $1 AND $2)"}

	if f.WarehouseID != 0 {
		args = append(args, f.WarehouseID)
		where = append(where, fmt.Sprintf("(COALESCE(itemsite_warehous_id, pohead_warehous_id)=$%d)", len(args)))
	}
	if f.Agent != "" {
		args = append(args, f.Agent)
		where = append(where, fmt.Sprintf("(pohead_agent_username=$%d)", len(args)))
	}
	switch f.Items {
	case model.PoItemsOpen:
		where = append(where, "(poitem_status<>'C')")
	case model.PoItemsClosed:
		where = append(where, "(poitem_status='C')")
	}

	rows, err := l.DB.QueryContext(ctx,
		"SELECT poitem_id, pohead_id, poitem_linenumber, pohead_number,"+
			"       COALESCE(warehous_code, ''), poitem_status, vend_name, poitem_duedate,"+
			"       poitem_itemsite_id, COALESCE(item_number, ''),"+
			"       COALESCE(item_descrip1, poitem_vend_item_descrip), poitem_vend_item_number,"+
			"       COALESCE(uom_name, ''), poitem_vend_uom,"+
			"       poitem_qty_ordered, poitem_qty_received, poitem_qty_returned "+
			"FROM poitem JOIN pohead ON (pohead_id=poitem_pohead_id)"+
			" JOIN vendinfo ON (vend_id=pohead_vend_id)"+
			" LEFT OUTER JOIN itemsite ON (itemsite_id=poitem_itemsite_id)"+
			" LEFT OUTER JOIN item ON (item_id=itemsite_item_id)"+
			" LEFT OUTER JOIN uom ON (uom_id=item_inv_uom_id)"+
			" LEFT OUTER JOIN whsinfo ON (warehous_id=COALESCE(itemsite_warehous_id, pohead_warehous_id)) "+
			"WHERE "+strings.Join(where, " AND ")+" "+
			"ORDER BY poitem_duedate, pohead_number, poitem_linenumber;",
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("listing purchase order items: %w", err)
	}
	defer rows.Close()

	var items []model.PoItem
	for rows.Next() {
		var p model.PoItem
		if err := rows.Scan(&p.ID, &p.PoheadID, &p.LineNumber, &p.PoNumber, &p.SiteCode, &p.Status,
			&p.VendorName, &p.DueDate, &p.ItemSiteID, &p.ItemNumber, &p.ItemDescription,
			&p.VendItemNumber, &p.UOM, &p.VendUOM, &p.QtyOrdered, &p.QtyReceived, &p.QtyReturned); err != nil {
			return nil, fmt.Errorf("scanning purchase order item: %w", err)
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

func (l Ledger) SetPoItemStatus(ctx context.Context, poitemID int64, status string) error {
	var query string
	switch status {
	case model.PoItemClosed:
		query = "UPDATE poitem SET poitem_status='C' WHERE (poitem_id=$1);"
	case model.PoItemOpen:
		query = "UPDATE poitem SET poitem_status='O' WHERE (poitem_id=$1);"
	default:
		return fmt.Errorf("%w: purchase order item status %q", store.ErrInvalid, status)
	}

	result, err := l.DB.ExecContext(ctx, query, poitemID)
	if err != nil {
		return fmt.Errorf("updating purchase order item status: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (l Ledger) PoItemItemSite(ctx context.Context, poitemID int64) (*int64, error) {
	var id *int64
	err := l.DB.QueryRowContext(ctx,
		"SELECT poitem_itemsite_id"+
			"  FROM poitem"+
			" WHERE (poitem_id=$1); ",
		poitemID,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting purchase order item site: %w", err)
	}
	return id, nil
}

func (l Ledger) Reschedule(ctx context.Context, poitemID int64, due time.Time) error {
	return l.changeResult(ctx, "SELECT changePoitemDueDate($1, $2) AS result;", poitemID, due.Format(time.DateOnly))
}

func (l Ledger) ChangeQty(ctx context.Context, poitemID int64, qty decimal.Decimal) error {
	return l.changeResult(ctx, "SELECT changePoitemQty($1, $2) AS result;", poitemID, qty)
}

func (l Ledger) changeResult(ctx context.Context, query string, poitemID int64, arg any) error {
	var result int64
	err := l.DB.QueryRowContext(ctx, query, poitemID, arg).Scan(&result)
	if err == sql.ErrNoRows {
		return store.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("changing purchase order item: %w", err)
	}
	if result < 0 {
		return fmt.Errorf("%w: result %d", store.ErrInvalid, result)
	}
	return nil
}

func (l Ledger) ListCountTags(ctx context.Context, f model.CountTagFilter) ([]model.CountTag, error) {
	args := []any{f.Start.Format(time.DateOnly), f.End.Format(time.DateOnly)}
	where := []string{"(DATE(invcnt_tagdate) BETWEEN $1 AND $2)"}

	if f.WarehouseID != 0 {
		args = append(args, f.WarehouseID)
		where = append(where, fmt.Sprintf("(itemsite_warehous_id=$%d)", len(args)))
	}
	if f.ClassCodeID != 0 {
		args = append(args, f.ClassCodeID)
		where = append(where, fmt.Sprintf("(classcode_id=$%d)", len(args)))
	} else if f.ClassCode != "" {
		args = append(args, f.ClassCode)
		where = append(where, fmt.Sprintf("(classcode_code LIKE $%d)", len(args)))
	}

	rows, err := l.DB.QueryContext(ctx,
		"SELECT invcnt_id, invcnt_tagnumber, invcnt_itemsite_id, warehous_code, item_number,"+
			"       COALESCE(classcode_code, ''), invcnt_qoh_before, invcnt_qoh_after,"+
			"       DATE(invcnt_tagdate), DATE(invcnt_cntdate), DATE(invcnt_postdate), invcnt_posted "+
			"FROM invcnt JOIN itemsite ON (itemsite_id=invcnt_itemsite_id)"+
			" JOIN item ON (item_id=itemsite_item_id)"+
			" JOIN whsinfo ON (warehous_id=itemsite_warehous_id)"+
			" LEFT OUTER JOIN classcode ON (classcode_id=item_classcode_id) "+
			"WHERE "+strings.Join(where, " AND ")+" "+
			"ORDER BY invcnt_tagnumber;",
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("listing count tags: %w", err)
	}
	defer rows.Close()

	var tags []model.CountTag
	for rows.Next() {
		var t model.CountTag
		if err := rows.Scan(&t.ID, &t.TagNumber, &t.ItemSiteID, &t.SiteCode, &t.ItemNumber, &t.ClassCode,
			&t.QOHBefore, &t.QOHAfter, &t.TagDate, &t.CountDate, &t.PostDate, &t.Posted); err != nil {
			return nil, fmt.Errorf("scanning count tag: %w", err)
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

func asInt(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int32:
		return int64(n)
	case int:
		return int64(n)
	default:
		return 0
	}
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	default:
		return ""
	}
}
