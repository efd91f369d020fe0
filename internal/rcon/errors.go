package rcon

import "errors"

// Error kinds callers are expected to branch on. Transport failures wrap
// ErrTransport so the originating network error stays inspectable.
var (
	// ErrNotConfigured: RCON disabled, incomplete settings, or no transport
	// capability. Raised before any network I/O.
	ErrNotConfigured = errors.New("rcon is not configured")

	// ErrTransport: dial or command exchange failed against the game server.
	ErrTransport = errors.New("rcon transport failure")

	// ErrPlayerNotFound: an identifier could not be mapped to a connected
	// player. Raised before any mutating command is sent.
	ErrPlayerNotFound = errors.New("player not found on server")

	// ErrBanNotFound: no server-side ban entry matches the given GUID.
	ErrBanNotFound = errors.New("no matching ban on server")

	// ErrInvalidDuration: ban duration must be zero (permanent) or positive.
	ErrInvalidDuration = errors.New("invalid ban duration")
)
