// Package rcon is the single point of contact with the game server's
// BattlEye admin port. The client owns one lazily-dialed connection, hides
// its lifecycle from callers, and mirrors every connect attempt and command
// exchange to the debug log sink.
package rcon

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/hexborne/warden/internal/debuglog"
)

// DefaultKickReason is substituted when a kick is requested with a blank reason.
const DefaultKickReason = "Kicked by an administrator"

// DefaultBanReason is substituted when a ban is requested with a blank reason.
const DefaultBanReason = "Banned by an administrator"

var steam64Pattern = regexp.MustCompile(`^\d{17}$`)

// Client is the RCON session client. State machine: no connection until the
// first command needs one; the connection is then reused across calls. A
// transport or protocol failure discards it so the next call redials; a
// resolution failure (player not found) keeps it, since the exchange itself
// worked. Calls are serialized behind a mutex, so one client is safe for
// concurrent admin requests but never issues overlapping commands.
type Client struct {
	mu       sync.Mutex
	settings Settings
	dialer   Dialer
	debug    *debuglog.Sink
	conn     Conn
}

// NewClient builds a client from settings loaded once by the caller. A nil
// dialer marks the transport capability as absent: Usable reports false and
// every operation fails with ErrNotConfigured before any network I/O.
func NewClient(settings Settings, dialer Dialer, debug *debuglog.Sink) *Client {
	return &Client{settings: settings, dialer: dialer, debug: debug}
}

// Usable reports whether commands can be attempted: transport present and
// settings enabled with host, password and port. Pure, no I/O.
func (c *Client) Usable() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dialer != nil && c.settings.Usable()
}

// Reload swaps in new settings and discards any cached connection so the
// next command dials with the updated configuration.
func (c *Client) Reload(settings Settings) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settings = settings
	c.dropConnLocked()
}

// Close discards the cached connection, if any.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropConnLocked()
}

func (c *Client) dropConnLocked() {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

// exchange sends one command over the (lazily dialed) connection. On any
// transport failure the connection is dropped so the next call reconnects.
func (c *Client) exchange(command string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.dialer == nil || !c.settings.Usable() {
		return "", ErrNotConfigured
	}

	if c.conn == nil {
		addr := c.settings.Address()
		c.debug.Append("connecting", map[string]any{"address": addr})
		conn, err := c.dialer.Dial(addr, c.settings.Password)
		if err != nil {
			c.debug.Append("connect failed", map[string]any{"address": addr, "error": err.Error()})
			return "", fmt.Errorf("%w: connecting to %s: %v", ErrTransport, addr, err)
		}
		c.debug.Append("connected", map[string]any{"address": addr})
		c.conn = conn
	}

	c.debug.Append("command", map[string]any{"command": truncateCommand(command)})
	response, err := c.conn.Execute(command)
	if err != nil {
		c.debug.Append("command failed", map[string]any{
			"command": truncateCommand(command),
			"error":   err.Error(),
		})
		c.dropConnLocked()
		return "", fmt.Errorf("%w: %v", ErrTransport, err)
	}
	c.debug.Append("response", map[string]any{
		"command":  truncateCommand(command),
		"response": response,
	})
	return response, nil
}

// truncateCommand caps very long commands so broadcasts don't bloat the trail.
// The trail is admin-only; commands are logged as sent, not redacted.
func truncateCommand(command string) string {
	if len(command) > 200 {
		return command[:200] + "..."
	}
	return command
}

// TestConnection validates reachability by fetching the player list. It never
// mutates server state. Returns the current player count.
func (c *Client) TestConnection() (int, error) {
	players, err := c.ListPlayers()
	if err != nil {
		return 0, err
	}
	return len(players), nil
}

// ListPlayers fetches a fresh player listing. Results are never cached.
func (c *Client) ListPlayers() ([]Player, error) {
	response, err := c.exchange("players")
	if err != nil {
		return nil, err
	}
	players, err := parsePlayers(response)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	return players, nil
}

// resolvePlayer maps an identifier (Steam64 GUID, slot number, or name) to a
// currently connected player via a fresh listing.
func (c *Client) resolvePlayer(identifier string) (*Player, error) {
	players, err := c.ListPlayers()
	if err != nil {
		return nil, err
	}

	bySteamID := steam64Pattern.MatchString(identifier)
	for i := range players {
		p := &players[i]
		if bySteamID && p.GUID == identifier {
			return p, nil
		}
		if !bySteamID && strings.EqualFold(p.Name, identifier) {
			return p, nil
		}
		if !bySteamID && fmt.Sprintf("%d", p.Slot) == identifier {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrPlayerNotFound, identifier)
}

// KickPlayer removes a connected player from the server. The kick command
// addresses players by transient slot number, so the identifier is resolved
// against a fresh player list first.
func (c *Client) KickPlayer(identifier, reason string) error {
	if reason == "" {
		reason = DefaultKickReason
	}
	player, err := c.resolvePlayer(identifier)
	if err != nil {
		return err
	}
	_, err = c.exchange(fmt.Sprintf("kick %d %s", player.Slot, reason))
	return err
}

// BanPlayer bans a player. A Steam64 identifier is banned by GUID directly
// (addBan works for offline players too); anything else is resolved to a
// connected player and banned by slot. minutes == 0 means permanent.
func (c *Client) BanPlayer(identifier, reason string, minutes int) error {
	if minutes < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidDuration, minutes)
	}
	if reason == "" {
		reason = DefaultBanReason
	}

	if steam64Pattern.MatchString(identifier) {
		_, err := c.exchange(fmt.Sprintf("addBan %s %d %s", identifier, minutes, reason))
		return err
	}

	player, err := c.resolvePlayer(identifier)
	if err != nil {
		return err
	}
	_, err = c.exchange(fmt.Sprintf("ban %d %d %s", player.Slot, minutes, reason))
	return err
}

// UnbanPlayer removes every server-side ban entry matching the GUID. The
// removeBan command addresses bans by list index, so the current ban listing
// is scanned for the GUID first.
func (c *Client) UnbanPlayer(guid string) error {
	response, err := c.exchange("bans")
	if err != nil {
		return err
	}

	var matched bool
	// Walk indexes high to low so earlier removals don't shift later ones.
	entries := parseBans(response)
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].GUID != guid {
			continue
		}
		matched = true
		if _, err := c.exchange(fmt.Sprintf("removeBan %d", entries[i].Index)); err != nil {
			return err
		}
	}
	if !matched {
		return fmt.Errorf("%w: %s", ErrBanNotFound, guid)
	}

	log.Debug().Str("guid", guid).Msg("removed server ban")
	return nil
}

// Broadcast sends a chat message to all connected players.
func (c *Client) Broadcast(text string) error {
	_, err := c.exchange(fmt.Sprintf("say -1 %s", text))
	return err
}

// Exec is the escape hatch for arbitrary protocol commands.
func (c *Client) Exec(command string) (string, error) {
	return c.exchange(command)
}
