package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/erazemk/nabava/internal/model"
)

const userColumns = `id, username, password_hash, role, created_at, deleted_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	u := &model.User{}
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.DeletedAt); err != nil {
		return nil, err
	}
	return u, nil
}

// getUser returns the single user matching where, or nil.
func getUser(ctx context.Context, q querier, where string, arg any) (*model.User, error) {
	u, err := scanUser(q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return u, err
}

// CreateUser creates a new user. A taken username is ErrInvalid.
func CreateUser(ctx context.Context, db *sql.DB, username, passwordHash, role string) (*model.User, error) {
	taken, err := getUser(ctx, db, `username = ?`, username)
	if err != nil {
		return nil, fmt.Errorf("checking username %q: %w", username, err)
	}
	if taken != nil {
		return nil, fmt.Errorf("username %q already exists: %w", username, ErrInvalid)
	}

	res, err := db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, role) VALUES (?, ?, ?)`,
		username, passwordHash, role,
	)
	if err != nil {
		return nil, fmt.Errorf("creating user %q: %w", username, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting user id: %w", err)
	}
	return GetUser(ctx, db, id)
}

// GetUser returns a user by ID, or nil.
func GetUser(ctx context.Context, db *sql.DB, id int64) (*model.User, error) {
	u, err := getUser(ctx, db, `id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("getting user %d: %w", id, err)
	}
	return u, nil
}

// GetUserByUsername returns a user by username, soft-deleted ones included
// so logins of removed accounts can be told apart from unknown names.
func GetUserByUsername(ctx context.Context, db *sql.DB, username string) (*model.User, error) {
	u, err := getUser(ctx, db, `username = ?`, username)
	if err != nil {
		return nil, fmt.Errorf("getting user %q: %w", username, err)
	}
	return u, nil
}

// ListUsers returns all active users.
func ListUsers(ctx context.Context, db *sql.DB) ([]model.User, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE deleted_at IS NULL ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// updateActive runs an update against one active user. No such user is
// ErrNotFound.
func updateActive(ctx context.Context, q querier, what string, id int64, query string, args ...any) error {
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s of user %d: %w", what, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s of user %d: %w", what, id, err)
	}
	if n == 0 {
		return fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	return nil
}

// UpdateUser changes a user's role.
func UpdateUser(ctx context.Context, db *sql.DB, id int64, role string) error {
	return updateActive(ctx, db, "updating role", id,
		`UPDATE users SET role = ? WHERE id = ? AND deleted_at IS NULL`, role, id)
}

// UpdateUserPassword replaces a user's password hash.
func UpdateUserPassword(ctx context.Context, db *sql.DB, id int64, passwordHash string) error {
	return updateActive(ctx, db, "updating password", id,
		`UPDATE users SET password_hash = ? WHERE id = ? AND deleted_at IS NULL`, passwordHash, id)
}

// DeleteUser soft-deletes a user and drops their privileges.
func DeleteUser(ctx context.Context, db *sql.DB, id int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	err = updateActive(ctx, tx, "deleting", id,
		`UPDATE users SET deleted_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted_at IS NULL`, id)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM usrpriv WHERE usrpriv_user_id = ?`, id); err != nil {
		return fmt.Errorf("deleting privileges of user %d: %w", id, err)
	}
	return tx.Commit()
}

// UserPrivilegeSet returns the effective privileges of a user. Admins hold
// every privilege regardless of grants.
func UserPrivilegeSet(ctx context.Context, db *sql.DB, u *model.User) (model.PrivilegeSet, error) {
	if u.Role == model.RoleAdmin {
		return model.FullPrivileges(), nil
	}
	return UserPrivileges(ctx, db, u.ID)
}
