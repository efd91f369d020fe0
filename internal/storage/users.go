package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/hexborne/warden/internal/domain"
)

// CreateUserParams carries the fields for a new account.
type CreateUserParams struct {
	Username     string
	PasswordHash string
	SteamID      string
	DisplayName  string
	IsStaff      bool
	IsAdmin      bool
}

// CreateUser inserts a new user and returns it.
func (s *Store) CreateUser(ctx context.Context, p CreateUserParams) (*domain.User, error) {
	if p.DisplayName == "" {
		p.DisplayName = p.Username
	}
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password_hash, steam_id, display_name, is_staff, is_admin)
		VALUES (?, ?, ?, ?, ?, ?)
	`, p.Username, p.PasswordHash, p.SteamID, p.DisplayName, p.IsStaff, p.IsAdmin)
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}
	id, _ := result.LastInsertId()
	return s.GetUserByID(ctx, id)
}

// GetUserByID returns a user by ID
func (s *Store) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = ?", id))
}

// GetUserByUsername returns a user by username
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE username = ?", username))
}

// GetUserBySteamID returns the user linked to the given Steam64
func (s *Store) GetUserBySteamID(ctx context.Context, steamID string) (*domain.User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE steam_id = ?", steamID))
}

// ListUsers returns users with optional name search and pagination.
func (s *Store) ListUsers(ctx context.Context, search string, limit, offset int) ([]domain.User, int, error) {
	where := ""
	args := []any{}
	if search != "" {
		where = "WHERE username LIKE ? OR display_name LIKE ? OR steam_id LIKE ?"
		pattern := "%" + search + "%"
		args = append(args, pattern, pattern, pattern)
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM users "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := "SELECT " + userColumns + " FROM users " + where + " ORDER BY username LIMIT ? OFFSET ?"
	args = append(args, limit, offset)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, *u)
	}
	return users, total, rows.Err()
}

// UserFlagsUpdate is a partial role/flag change; nil fields stay unchanged.
type UserFlagsUpdate struct {
	RoleMain    *bool `json:"role_main,omitempty"`
	RoleReserve *bool `json:"role_reserve,omitempty"`
	IsStaff     *bool `json:"is_staff,omitempty"`
	IsAdmin     *bool `json:"is_admin,omitempty"`
}

// UpdateUserFlags toggles whitelist/staff/admin flags on a user.
func (s *Store) UpdateUserFlags(ctx context.Context, id int64, upd UserFlagsUpdate) error {
	set := ""
	var args []any
	add := func(col string, v *bool) {
		if v == nil {
			return
		}
		if set != "" {
			set += ", "
		}
		set += col + " = ?"
		args = append(args, *v)
	}
	add("role_main", upd.RoleMain)
	add("role_reserve", upd.RoleReserve)
	add("is_staff", upd.IsStaff)
	add("is_admin", upd.IsAdmin)
	if set == "" {
		return nil
	}
	args = append(args, id)
	_, err := s.db.ExecContext(ctx, "UPDATE users SET "+set+" WHERE id = ?", args...)
	return err
}

// LinkSteamID attaches a Steam64 identity to a user record.
func (s *Store) LinkSteamID(ctx context.Context, id int64, steamID string) error {
	_, err := s.db.ExecContext(ctx, "UPDATE users SET steam_id = ? WHERE id = ?", steamID, id)
	return err
}

// UpdateUserPassword sets a new password hash and clears the change-required flag.
func (s *Store) UpdateUserPassword(ctx context.Context, id int64, hash string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET password_hash = ?, password_change_required = 0 WHERE id = ?
	`, hash, id)
	return err
}

// ResetUserPassword sets a new password hash and forces a change on next login.
func (s *Store) ResetUserPassword(ctx context.Context, id int64, hash string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET password_hash = ?, password_change_required = 1 WHERE id = ?
	`, hash, id)
	return err
}

// UpdateUserLastLogin records a successful login timestamp.
func (s *Store) UpdateUserLastLogin(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE users SET last_login = ? WHERE id = ?", formatTimestamp(time.Now()), id)
	return err
}

// DeleteUser removes a user by username.
func (s *Store) DeleteUser(ctx context.Context, username string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM users WHERE username = ?", username)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("user %q not found", username)
	}
	return nil
}
