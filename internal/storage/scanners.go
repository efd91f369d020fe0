package storage

import (
	"database/sql"

	"github.com/hexborne/warden/internal/domain"
)

// rowScanner abstracts sql.Row and sql.Rows for the scan helpers.
type rowScanner interface {
	Scan(dest ...any) error
}

const userColumns = `id, username, password_hash, steam_id, display_name,
	role_main, role_reserve, is_staff, is_admin, password_change_required,
	created_at, last_login`

func scanUser(row rowScanner) (*domain.User, error) {
	var u domain.User
	var lastLogin sql.NullTime
	err := row.Scan(
		&u.ID, &u.Username, &u.PasswordHash, &u.SteamID, &u.DisplayName,
		&u.RoleMain, &u.RoleReserve, &u.IsStaff, &u.IsAdmin, &u.PasswordChangeRequired,
		&u.CreatedAt, &lastLogin,
	)
	if err != nil {
		return nil, err
	}
	if lastLogin.Valid {
		u.LastLogin = &lastLogin.Time
	}
	return &u, nil
}

const banColumns = `id, user_id, banned_by_user_id, ban_type, server_kick, server_ban,
	ban_reason, ban_date, ban_expires, is_active,
	unbanned_by_user_id, unban_date, unban_reason`

func scanBan(row rowScanner) (*domain.Ban, error) {
	var b domain.Ban
	var scope string
	var expires, unbanDate sql.NullTime
	var bannedBy, unbannedBy sql.NullInt64
	var unbanReason sql.NullString
	err := row.Scan(
		&b.ID, &b.UserID, &bannedBy, &scope, &b.ServerKick, &b.ServerBan,
		&b.Reason, &b.BannedAt, &expires, &b.Active,
		&unbannedBy, &unbanDate, &unbanReason,
	)
	if err != nil {
		return nil, err
	}
	b.Scope = domain.BanScope(scope)
	b.BannedBy = bannedBy.Int64
	if expires.Valid {
		b.ExpiresAt = &expires.Time
	}
	if unbannedBy.Valid {
		b.UnbannedBy = &unbannedBy.Int64
	}
	if unbanDate.Valid {
		b.UnbannedAt = &unbanDate.Time
	}
	b.UnbanReason = unbanReason.String
	return &b, nil
}
