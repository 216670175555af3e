package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/nabava/internal/model"
)

// GrantPrivilege grants a named privilege to a user.
func GrantPrivilege(ctx context.Context, db *sql.DB, userID int64, priv string) error {
	_, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO usrpriv (usrpriv_user_id, usrpriv_priv) VALUES (?, ?)`,
		userID, priv,
	)
	if err != nil {
		return fmt.Errorf("granting privilege: %w", err)
	}
	return nil
}

// RevokePrivilege removes a named privilege from a user.
func RevokePrivilege(ctx context.Context, db *sql.DB, userID int64, priv string) error {
	_, err := db.ExecContext(ctx,
		`DELETE FROM usrpriv WHERE usrpriv_user_id = ? AND usrpriv_priv = ?`,
		userID, priv,
	)
	if err != nil {
		return fmt.Errorf("revoking privilege: %w", err)
	}
	return nil
}

// UserPrivileges returns the privileges granted to a user.
func UserPrivileges(ctx context.Context, db *sql.DB, userID int64) (model.PrivilegeSet, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT usrpriv_priv FROM usrpriv WHERE usrpriv_user_id = ?`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing privileges: %w", err)
	}
	defer rows.Close()

	privs := model.PrivilegeSet{}
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scanning privilege: %w", err)
		}
		privs[p] = true
	}
	return privs, rows.Err()
}
