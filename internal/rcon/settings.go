package rcon

import (
	"net"
	"strconv"
)

// Settings is the persisted RCON configuration. It is loaded from the generic
// server-settings table and only mutated through an explicit administrative
// update; the client itself never writes it back.
type Settings struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Password string `json:"-"`
}

// Usable reports whether the settings describe a reachable configuration:
// enabled with a host, a password and a valid port. Pure, no I/O.
func (s Settings) Usable() bool {
	return s.Enabled && s.Host != "" && s.Password != "" && s.Port > 0 && s.Port <= 65535
}

// Address returns the host:port dial target.
func (s Settings) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// SettingsUpdate is a partial settings change. Nil fields keep the stored
// value; in particular an omitted password leaves the existing one in place.
type SettingsUpdate struct {
	Enabled  *bool   `json:"enabled,omitempty"`
	Host     *string `json:"host,omitempty"`
	Port     *int    `json:"port,omitempty"`
	Password *string `json:"password,omitempty"`
}
