package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/erazemk/nabava/internal/model"
)

// CreateCountTag issues a count tag for an item site.
func CreateCountTag(ctx context.Context, db *sql.DB, tagNumber string, itemSiteID int64, tagDate time.Time) (int64, error) {
	result, err := db.ExecContext(ctx,
		`INSERT INTO invcnt (invcnt_tagnumber, invcnt_itemsite_id, invcnt_qoh_before, invcnt_tagdate)
		 SELECT ?, itemsite_id, itemsite_qtyonhand, ? FROM itemsite WHERE itemsite_id = ?`,
		tagNumber, dateArg(tagDate), itemSiteID,
	)
	if err != nil {
		return 0, fmt.Errorf("creating count tag: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return 0, ErrNotFound
	}
	return result.LastInsertId()
}

// ListCountTags returns count tags matching the filter, ordered by tag number.
func ListCountTags(ctx context.Context, db *sql.DB, f model.CountTagFilter) ([]model.CountTag, error) {
	where := []string{"t.invcnt_tagdate BETWEEN ? AND ?"}
	args := []any{dateArg(f.Start), dateArg(f.End)}

	if f.WarehouseID != 0 {
		where = append(where, "s.itemsite_warehous_id = ?")
		args = append(args, f.WarehouseID)
	}
	if f.ClassCodeID != 0 {
		where = append(where, "c.classcode_id = ?")
		args = append(args, f.ClassCodeID)
	} else if f.ClassCode != "" {
		where = append(where, "c.classcode_code LIKE ?")
		args = append(args, f.ClassCode)
	}

	rows, err := db.QueryContext(ctx,
		`SELECT t.invcnt_id, t.invcnt_tagnumber, t.invcnt_itemsite_id, w.warehous_code, i.item_number,
		        COALESCE(c.classcode_code, ''), t.invcnt_qoh_before, t.invcnt_qoh_after,
		        t.invcnt_tagdate, t.invcnt_cntdate, t.invcnt_postdate, t.invcnt_posted
		 FROM invcnt t
		 JOIN itemsite s ON s.itemsite_id = t.invcnt_itemsite_id
		 JOIN item i ON i.item_id = s.itemsite_item_id
		 JOIN whsinfo w ON w.warehous_id = s.itemsite_warehous_id
		 LEFT JOIN classcode c ON c.classcode_id = i.item_classcode_id
		 WHERE `+strings.Join(where, " AND ")+`
		 ORDER BY t.invcnt_tagnumber`,
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
