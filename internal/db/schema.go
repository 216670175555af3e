package db

import (
	"database/sql"
	"fmt"
)

// schema is the full database schema. Application tables (users, settings,
// tokens, privileges) sit next to the embedded ERP tables, which keep the
// PostBooks column names so statements read the same on both backends.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id            INTEGER PRIMARY KEY,
    username      TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    role          TEXT NOT NULL DEFAULT 'user' CHECK (role IN ('admin', 'manager', 'user')),
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at    DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username_active
    ON users(username) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS usrpriv (
    usrpriv_user_id INTEGER NOT NULL REFERENCES users(id),
    usrpriv_priv    TEXT NOT NULL,
    PRIMARY KEY (usrpriv_user_id, usrpriv_priv)
);

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS revoked_tokens (
    jti        TEXT PRIMARY KEY,
    expires_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS whsinfo (
    warehous_id      INTEGER PRIMARY KEY,
    warehous_code    TEXT NOT NULL UNIQUE,
    warehous_descrip TEXT NOT NULL DEFAULT '',
    warehous_active  BOOLEAN NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS classcode (
    classcode_id      INTEGER PRIMARY KEY,
    classcode_code    TEXT NOT NULL UNIQUE,
    classcode_descrip TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS item (
    item_id           INTEGER PRIMARY KEY,
    item_number       TEXT NOT NULL UNIQUE,
    item_descrip1     TEXT NOT NULL DEFAULT '',
    item_inv_uom      TEXT NOT NULL DEFAULT 'EA',
    item_fractional   BOOLEAN NOT NULL DEFAULT 0,
    item_classcode_id INTEGER REFERENCES classcode(classcode_id),
    item_active       BOOLEAN NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS itemsite (
    itemsite_id          INTEGER PRIMARY KEY,
    itemsite_item_id     INTEGER NOT NULL REFERENCES item(item_id),
    itemsite_warehous_id INTEGER NOT NULL REFERENCES whsinfo(warehous_id),
    itemsite_qtyonhand   NUMERIC NOT NULL DEFAULT 0,
    itemsite_value       NUMERIC NOT NULL DEFAULT 0,
    itemsite_stdcost     NUMERIC NOT NULL DEFAULT 0,
    itemsite_costmethod  TEXT NOT NULL DEFAULT 'S' CHECK (itemsite_costmethod IN ('A', 'S', 'J', 'N')),
    itemsite_loccntrl    BOOLEAN NOT NULL DEFAULT 0,
    itemsite_active      BOOLEAN NOT NULL DEFAULT 1,
    UNIQUE (itemsite_item_id, itemsite_warehous_id)
);

CREATE TABLE IF NOT EXISTS location (
    location_id          INTEGER PRIMARY KEY,
    location_warehous_id INTEGER NOT NULL REFERENCES whsinfo(warehous_id),
    location_name        TEXT NOT NULL,
    UNIQUE (location_warehous_id, location_name)
);

CREATE TABLE IF NOT EXISTS itemloc (
    itemloc_id          INTEGER PRIMARY KEY,
    itemloc_itemsite_id INTEGER NOT NULL REFERENCES itemsite(itemsite_id),
    itemloc_location_id INTEGER NOT NULL REFERENCES location(location_id),
    itemloc_qty         NUMERIC NOT NULL DEFAULT 0,
    UNIQUE (itemloc_itemsite_id, itemloc_location_id)
);

CREATE TABLE IF NOT EXISTS itemloc_series_seq (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS itemlocdist (
    itemlocdist_id          INTEGER PRIMARY KEY,
    itemlocdist_series      INTEGER NOT NULL,
    itemlocdist_itemsite_id INTEGER NOT NULL REFERENCES itemsite(itemsite_id),
    itemlocdist_parent_id   INTEGER REFERENCES itemlocdist(itemlocdist_id),
    itemlocdist_location_id INTEGER REFERENCES location(location_id),
    itemlocdist_order_type  TEXT,
    itemlocdist_qty         NUMERIC NOT NULL,
    itemlocdist_created     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_itemlocdist_series ON itemlocdist(itemlocdist_series);

CREATE TABLE IF NOT EXISTS invhist (
    invhist_id          INTEGER PRIMARY KEY,
    invhist_itemsite_id INTEGER NOT NULL REFERENCES itemsite(itemsite_id),
    invhist_transtype   TEXT NOT NULL,
    invhist_transdate   DATE NOT NULL,
    invhist_invqty      NUMERIC NOT NULL,
    invhist_qoh_before  NUMERIC NOT NULL,
    invhist_qoh_after   NUMERIC NOT NULL,
    invhist_unitcost    NUMERIC NOT NULL DEFAULT 0,
    invhist_ordnumber   TEXT NOT NULL DEFAULT '',
    invhist_docnumber   TEXT NOT NULL DEFAULT '',
    invhist_comments    TEXT NOT NULL DEFAULT '',
    invhist_user        TEXT NOT NULL DEFAULT '',
    invhist_series      INTEGER,
    invhist_created     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS vendinfo (
    vend_id     INTEGER PRIMARY KEY,
    vend_number TEXT NOT NULL UNIQUE,
    vend_name   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS pohead (
    pohead_id             INTEGER PRIMARY KEY,
    pohead_number         TEXT NOT NULL UNIQUE,
    pohead_vend_id        INTEGER NOT NULL REFERENCES vendinfo(vend_id),
    pohead_warehous_id    INTEGER REFERENCES whsinfo(warehous_id),
    pohead_agent_username TEXT NOT NULL DEFAULT '',
    pohead_status         TEXT NOT NULL DEFAULT 'U' CHECK (pohead_status IN ('U', 'O', 'C'))
);

CREATE TABLE IF NOT EXISTS poitem (
    poitem_id                INTEGER PRIMARY KEY,
    poitem_pohead_id         INTEGER NOT NULL REFERENCES pohead(pohead_id),
    poitem_linenumber        INTEGER NOT NULL,
    poitem_status            TEXT NOT NULL DEFAULT 'U' CHECK (poitem_status IN ('U', 'O', 'C')),
    poitem_itemsite_id       INTEGER REFERENCES itemsite(itemsite_id),
    poitem_vend_item_number  TEXT NOT NULL DEFAULT '',
    poitem_vend_item_descrip TEXT NOT NULL DEFAULT '',
    poitem_vend_uom          TEXT NOT NULL DEFAULT '',
    poitem_duedate           DATE NOT NULL,
    poitem_qty_ordered       NUMERIC NOT NULL DEFAULT 0,
    poitem_qty_received      NUMERIC NOT NULL DEFAULT 0,
    poitem_qty_returned      NUMERIC NOT NULL DEFAULT 0,
    poitem_unitprice         NUMERIC NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_poitem_duedate ON poitem(poitem_duedate);

CREATE TABLE IF NOT EXISTS wo (
    wo_id          INTEGER PRIMARY KEY,
    wo_number      INTEGER NOT NULL,
    wo_subnumber   INTEGER NOT NULL DEFAULT 1,
    wo_status      TEXT NOT NULL DEFAULT 'O' CHECK (wo_status IN ('O', 'E', 'R', 'I', 'C')),
    wo_itemsite_id INTEGER NOT NULL REFERENCES itemsite(itemsite_id),
    wo_qtyord      NUMERIC NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS womatl (
    womatl_id          INTEGER PRIMARY KEY,
    womatl_wo_id       INTEGER NOT NULL REFERENCES wo(wo_id),
    womatl_itemsite_id INTEGER NOT NULL REFERENCES itemsite(itemsite_id),
    womatl_issuemethod TEXT NOT NULL DEFAULT 'S' CHECK (womatl_issuemethod IN ('S', 'L', 'M')),
    womatl_qtyreq      NUMERIC NOT NULL DEFAULT 0,
    womatl_qtyiss      NUMERIC NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS invcnt (
    invcnt_id          INTEGER PRIMARY KEY,
    invcnt_tagnumber   TEXT NOT NULL,
    invcnt_itemsite_id INTEGER NOT NULL REFERENCES itemsite(itemsite_id),
    invcnt_qoh_before  NUMERIC,
    invcnt_qoh_after   NUMERIC,
    invcnt_tagdate     DATE NOT NULL,
    invcnt_cntdate     DATE,
    invcnt_postdate    DATE,
    invcnt_posted      BOOLEAN NOT NULL DEFAULT 0
);
`

// EnsureSchema creates all tables and indexes if they don't already exist.
func EnsureSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}
