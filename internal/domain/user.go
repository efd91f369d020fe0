package domain

import "time"

// User is a dashboard account. SteamID links the account to the game identity
// used for whitelist checks and server-side actions; it is empty until linked.
type User struct {
	ID                     int64      `json:"id"`
	Username               string     `json:"username"`
	PasswordHash           string     `json:"-"`
	SteamID                string     `json:"steam_id,omitempty"`
	DisplayName            string     `json:"display_name"`
	RoleMain               bool       `json:"role_main"`
	RoleReserve            bool       `json:"role_reserve"`
	IsStaff                bool       `json:"is_staff"`
	IsAdmin                bool       `json:"is_admin"`
	PasswordChangeRequired bool       `json:"password_change_required"`
	CreatedAt              time.Time  `json:"created_at"`
	LastLogin              *time.Time `json:"last_login,omitempty"`
}

// Protected reports whether the user is exempt from whitelist bans.
// Staff and admin accounts cannot be banned.
func (u *User) Protected() bool {
	return u.IsStaff || u.IsAdmin
}

// Whitelisted reports whether the user holds any whitelist role.
func (u *User) Whitelisted() bool {
	return u.RoleMain || u.RoleReserve
}
