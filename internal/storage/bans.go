package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hexborne/warden/internal/domain"
)

var (
	// ErrProtectedUser: staff and admin accounts are exempt from whitelist bans.
	ErrProtectedUser = errors.New("user is staff-protected and cannot be banned")
	// ErrNoActiveBan: revoke was requested for a user with no active ban.
	ErrNoActiveBan = errors.New("user has no active ban")
	// ErrInvalidScope: unrecognized ban scope.
	ErrInvalidScope = errors.New("invalid ban scope")
)

// IssueBanParams carries one whitelist ban request.
type IssueBanParams struct {
	UserID     int64
	ActorID    int64
	Scope      domain.BanScope
	Reason     string
	ExpiresAt  *time.Time
	ServerKick bool
	ServerBan  bool
}

// IssueBan records a whitelist ban in one transaction: the target must not be
// staff-protected, any prior active ban row is deactivated, a new active row
// is inserted and the scope's whitelist roles are revoked. Nothing touches
// the game server here; the caller mirrors the ban over RCON only after this
// commits.
func (s *Store) IssueBan(ctx context.Context, p IssueBanParams) (*domain.Ban, error) {
	if !p.Scope.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidScope, p.Scope)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	user, err := scanUser(tx.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = ?", p.UserID))
	if err != nil {
		return nil, fmt.Errorf("loading ban target: %w", err)
	}
	if user.Protected() {
		return nil, ErrProtectedUser
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE whitelist_bans SET is_active = 0 WHERE user_id = ? AND is_active = 1
	`, p.UserID); err != nil {
		return nil, fmt.Errorf("deactivating prior bans: %w", err)
	}

	now := time.Now()
	var expires any
	if p.ExpiresAt != nil {
		expires = formatTimestamp(*p.ExpiresAt)
	}
	result, err := tx.ExecContext(ctx, `
		INSERT INTO whitelist_bans
			(user_id, banned_by_user_id, ban_type, server_kick, server_ban, ban_reason, ban_date, ban_expires, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1)
	`, p.UserID, actorRef(p.ActorID), string(p.Scope), p.ServerKick, p.ServerBan, p.Reason, formatTimestamp(now), expires)
	if err != nil {
		return nil, fmt.Errorf("inserting ban: %w", err)
	}
	banID, _ := result.LastInsertId()

	roleUpdate := "role_main = 0, role_reserve = 0"
	switch p.Scope {
	case domain.BanScopeMain:
		roleUpdate = "role_main = 0"
	case domain.BanScopeReserve:
		roleUpdate = "role_reserve = 0"
	}
	if _, err := tx.ExecContext(ctx, "UPDATE users SET "+roleUpdate+" WHERE id = ?", p.UserID); err != nil {
		return nil, fmt.Errorf("revoking whitelist roles: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}

	return s.GetBanByID(ctx, banID)
}

// RevokeBan marks the user's active ban inactive, recording who lifted it and
// why. Returns the ban row as it was, so the caller can check whether a
// server-side unban is due.
func (s *Store) RevokeBan(ctx context.Context, userID, actorID int64, reason string) (*domain.Ban, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	ban, err := scanBan(tx.QueryRowContext(ctx, `
		SELECT `+banColumns+` FROM whitelist_bans
		WHERE user_id = ? AND is_active = 1
		ORDER BY ban_date DESC LIMIT 1
	`, userID))
	if err == sql.ErrNoRows {
		return nil, ErrNoActiveBan
	}
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if _, err := tx.ExecContext(ctx, `
		UPDATE whitelist_bans
		SET is_active = 0, unbanned_by_user_id = ?, unban_date = ?, unban_reason = ?
		WHERE id = ?
	`, actorRef(actorID), formatTimestamp(now), reason, ban.ID); err != nil {
		return nil, fmt.Errorf("revoking ban: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}

	ban.Active = false
	if actorID > 0 {
		ban.UnbannedBy = &actorID
	}
	ban.UnbannedAt = &now
	ban.UnbanReason = reason
	return ban, nil
}

// ExpireBans deactivates every active ban whose expiry has passed. Run before
// any ban-status read; lazy expiry instead of a background scheduler. A no-op
// on already-inactive rows.
func (s *Store) ExpireBans(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE whitelist_bans SET is_active = 0
		WHERE is_active = 1 AND ban_expires IS NOT NULL AND ban_expires < ?
	`, formatTimestamp(time.Now()))
	return err
}

// ActiveBan returns the user's active ban, or ErrNoActiveBan. Expired bans
// are flagged inactive first.
func (s *Store) ActiveBan(ctx context.Context, userID int64) (*domain.Ban, error) {
	if err := s.ExpireBans(ctx); err != nil {
		return nil, err
	}
	ban, err := scanBan(s.db.QueryRowContext(ctx, `
		SELECT `+banColumns+` FROM whitelist_bans
		WHERE user_id = ? AND is_active = 1
		ORDER BY ban_date DESC LIMIT 1
	`, userID))
	if err == sql.ErrNoRows {
		return nil, ErrNoActiveBan
	}
	return ban, err
}

// IsUserBanned reports whether the user has an active, unexpired ban.
func (s *Store) IsUserBanned(ctx context.Context, userID int64) (bool, error) {
	_, err := s.ActiveBan(ctx, userID)
	if err == ErrNoActiveBan {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetBanByID returns a single ban row.
func (s *Store) GetBanByID(ctx context.Context, id int64) (*domain.Ban, error) {
	return scanBan(s.db.QueryRowContext(ctx,
		"SELECT "+banColumns+" FROM whitelist_bans WHERE id = ?", id))
}

// ListBans returns ban rows, newest first, optionally only active ones.
func (s *Store) ListBans(ctx context.Context, activeOnly bool, limit, offset int) ([]domain.Ban, int, error) {
	if err := s.ExpireBans(ctx); err != nil {
		return nil, 0, err
	}

	where := ""
	if activeOnly {
		where = "WHERE is_active = 1"
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM whitelist_bans "+where).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+banColumns+" FROM whitelist_bans "+where+" ORDER BY ban_date DESC LIMIT ? OFFSET ?",
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var bans []domain.Ban
	for rows.Next() {
		b, err := scanBan(rows)
		if err != nil {
			return nil, 0, err
		}
		bans = append(bans, *b)
	}
	return bans, total, rows.Err()
}

// BansForUser returns the user's full ban history, newest first.
func (s *Store) BansForUser(ctx context.Context, userID int64) ([]domain.Ban, error) {
	if err := s.ExpireBans(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+banColumns+" FROM whitelist_bans WHERE user_id = ? ORDER BY ban_date DESC", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bans []domain.Ban
	for rows.Next() {
		b, err := scanBan(rows)
		if err != nil {
			return nil, err
		}
		bans = append(bans, *b)
	}
	return bans, rows.Err()
}
