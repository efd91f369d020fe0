package domain

import "time"

// BanScope selects which whitelist roles a ban revokes.
type BanScope string

const (
	// BanScopeFull revokes every whitelist role.
	BanScopeFull BanScope = "full"
	// BanScopeMain revokes only the main whitelist role.
	BanScopeMain BanScope = "main"
	// BanScopeReserve revokes only the reserve whitelist role.
	BanScopeReserve BanScope = "reserve"
)

// Valid reports whether the scope is one of the recognized values.
func (s BanScope) Valid() bool {
	switch s {
	case BanScopeFull, BanScopeMain, BanScopeReserve:
		return true
	}
	return false
}

// Ban is one whitelist ban row. ServerKick and ServerBan record whether the
// issuer asked for a mirrored game-server action; unban logic reads ServerBan
// later to decide whether an RCON unban is due.
type Ban struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"user_id"`
	BannedBy    int64      `json:"banned_by"`
	Scope       BanScope   `json:"scope"`
	ServerKick  bool       `json:"server_kick"`
	ServerBan   bool       `json:"server_ban"`
	Reason      string     `json:"reason"`
	BannedAt    time.Time  `json:"banned_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	Active      bool       `json:"active"`
	UnbannedBy  *int64     `json:"unbanned_by,omitempty"`
	UnbannedAt  *time.Time `json:"unbanned_at,omitempty"`
	UnbanReason string     `json:"unban_reason,omitempty"`
}

// Expired reports whether the ban has an expiry in the past.
func (b *Ban) Expired(now time.Time) bool {
	return b.ExpiresAt != nil && b.ExpiresAt.Before(now)
}
