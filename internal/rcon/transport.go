package rcon

import (
	"time"
)

// Conn is one live exchange channel to the game server's admin port.
type Conn interface {
	Execute(command string) (string, error)
	Close() error
}

// Dialer is the transport capability. A nil Dialer means the protocol
// implementation is absent and the client degrades to "not configured"
// instead of failing at call time.
type Dialer interface {
	Dial(address, password string) (Conn, error)
}

// battleyeDialer dials the BattlEye admin protocol with bounded timeouts.
// Any hang in the exchange surfaces as a deadline error instead of blocking
// the calling request forever.
type battleyeDialer struct {
	dialTimeout time.Duration
	execTimeout time.Duration
}

// NewBattlEyeDialer returns the production transport. Zero timeouts fall back
// to 5s dial / 10s exchange.
func NewBattlEyeDialer(dialTimeout, execTimeout time.Duration) Dialer {
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}
	if execTimeout <= 0 {
		execTimeout = 10 * time.Second
	}
	return &battleyeDialer{dialTimeout: dialTimeout, execTimeout: execTimeout}
}

func (d *battleyeDialer) Dial(address, password string) (Conn, error) {
	return dialBattlEye(address, password, d.dialTimeout, d.execTimeout)
}
