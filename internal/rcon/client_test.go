package rcon

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	responses map[string]string
	failures  map[string]error
	commands  []string
	closed    bool
}

func (c *fakeConn) Execute(command string) (string, error) {
	c.commands = append(c.commands, command)
	for prefix, err := range c.failures {
		if strings.HasPrefix(command, prefix) {
			return "", err
		}
	}
	for prefix, response := range c.responses {
		if strings.HasPrefix(command, prefix) {
			return response, nil
		}
	}
	return "", nil
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

type fakeDialer struct {
	conn    *fakeConn
	dialErr error
	dials   int
}

func (d *fakeDialer) Dial(address, password string) (Conn, error) {
	d.dials++
	if d.dialErr != nil {
		return nil, d.dialErr
	}
	return d.conn, nil
}

func testSettings() Settings {
	return Settings{Enabled: true, Host: "192.168.1.10", Port: 2306, Password: "secret"}
}

func newTestClient(conn *fakeConn) (*Client, *fakeDialer) {
	dialer := &fakeDialer{conn: conn}
	return NewClient(testSettings(), dialer, nil), dialer
}

func TestClientNotConfigured(t *testing.T) {
	cases := []struct {
		name     string
		settings Settings
		dialer   Dialer
	}{
		{"disabled", Settings{Host: "h", Port: 2306, Password: "p"}, &fakeDialer{conn: &fakeConn{}}},
		{"no host", Settings{Enabled: true, Port: 2306, Password: "p"}, &fakeDialer{conn: &fakeConn{}}},
		{"no password", Settings{Enabled: true, Host: "h", Port: 2306}, &fakeDialer{conn: &fakeConn{}}},
		{"bad port", Settings{Enabled: true, Host: "h", Port: 0, Password: "p"}, &fakeDialer{conn: &fakeConn{}}},
		{"no transport", testSettings(), nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := NewClient(tc.settings, tc.dialer, nil)
			assert.False(t, c.Usable())
			_, err := c.ListPlayers()
			assert.ErrorIs(t, err, ErrNotConfigured)
		})
	}
}

func TestClientLazyDialAndReuse(t *testing.T) {
	conn := &fakeConn{responses: map[string]string{"players": playersResponse}}
	c, dialer := newTestClient(conn)

	assert.True(t, c.Usable())
	assert.Zero(t, dialer.dials, "construction must not dial")

	_, err := c.ListPlayers()
	require.NoError(t, err)
	_, err = c.ListPlayers()
	require.NoError(t, err)

	assert.Equal(t, 1, dialer.dials, "connection must be reused across commands")
}

func TestClientDialFailure(t *testing.T) {
	dialer := &fakeDialer{dialErr: errors.New("connection refused")}
	c := NewClient(testSettings(), dialer, nil)

	_, err := c.TestConnection()
	assert.ErrorIs(t, err, ErrTransport)
	assert.Contains(t, err.Error(), "192.168.1.10:2306")
}

func TestClientDropsConnOnTransportFailure(t *testing.T) {
	conn := &fakeConn{
		responses: map[string]string{"players": playersResponse},
		failures:  map[string]error{"say": errors.New("write timeout")},
	}
	c, dialer := newTestClient(conn)

	_, err := c.ListPlayers()
	require.NoError(t, err)
	require.Equal(t, 1, dialer.dials)

	err = c.Broadcast("hello")
	assert.ErrorIs(t, err, ErrTransport)
	assert.True(t, conn.closed, "failed connection must be closed")

	_, err = c.ListPlayers()
	require.NoError(t, err)
	assert.Equal(t, 2, dialer.dials, "next command must redial")
}

func TestClientKeepsConnOnResolutionFailure(t *testing.T) {
	conn := &fakeConn{responses: map[string]string{"players": playersResponse}}
	c, dialer := newTestClient(conn)

	err := c.KickPlayer("NoSuchPlayer", "")
	assert.ErrorIs(t, err, ErrPlayerNotFound)
	assert.False(t, conn.closed)

	_, err = c.ListPlayers()
	require.NoError(t, err)
	assert.Equal(t, 1, dialer.dials, "resolution failure must not drop the connection")
}

func TestClientReloadDropsConnection(t *testing.T) {
	conn := &fakeConn{responses: map[string]string{"players": playersResponse}}
	c, dialer := newTestClient(conn)

	_, err := c.ListPlayers()
	require.NoError(t, err)

	c.Reload(Settings{Enabled: true, Host: "10.0.0.2", Port: 2310, Password: "new"})
	assert.True(t, conn.closed)

	_, err = c.ListPlayers()
	require.NoError(t, err)
	assert.Equal(t, 2, dialer.dials)
}

func TestKickResolvesIdentifier(t *testing.T) {
	cases := []struct {
		identifier string
		wantSlot   int
	}{
		{"76561198000000002", 1},
		{"alice", 0},
		{"2", 2},
	}

	for _, tc := range cases {
		t.Run(tc.identifier, func(t *testing.T) {
			conn := &fakeConn{responses: map[string]string{"players": playersResponse}}
			c, _ := newTestClient(conn)

			require.NoError(t, c.KickPlayer(tc.identifier, "breaking rules"))
			require.Len(t, conn.commands, 2)
			assert.Equal(t, fmt.Sprintf("kick %d breaking rules", tc.wantSlot), conn.commands[1])
		})
	}
}

func TestKickDefaultReason(t *testing.T) {
	conn := &fakeConn{responses: map[string]string{"players": playersResponse}}
	c, _ := newTestClient(conn)

	require.NoError(t, c.KickPlayer("Alice", ""))
	assert.Equal(t, "kick 0 "+DefaultKickReason, conn.commands[len(conn.commands)-1])
}

func TestKickUnknownPlayerSendsNoKick(t *testing.T) {
	conn := &fakeConn{responses: map[string]string{"players": playersResponse}}
	c, _ := newTestClient(conn)

	err := c.KickPlayer("76561198999999999", "reason")
	assert.ErrorIs(t, err, ErrPlayerNotFound)
	for _, cmd := range conn.commands {
		assert.False(t, strings.HasPrefix(cmd, "kick"), "no kick may be sent for an unresolved identifier")
	}
}

func TestBanBySteamIDGoesDirect(t *testing.T) {
	conn := &fakeConn{}
	c, _ := newTestClient(conn)

	require.NoError(t, c.BanPlayer("76561198000000005", "cheating", 1440))
	require.Len(t, conn.commands, 1, "Steam64 bans must not fetch the player list")
	assert.Equal(t, "addBan 76561198000000005 1440 cheating", conn.commands[0])
}

func TestBanByNameResolvesSlot(t *testing.T) {
	conn := &fakeConn{responses: map[string]string{"players": playersResponse}}
	c, _ := newTestClient(conn)

	require.NoError(t, c.BanPlayer("Charlie", "", 0))
	assert.Equal(t, "ban 2 0 "+DefaultBanReason, conn.commands[len(conn.commands)-1])
}

func TestBanNegativeDuration(t *testing.T) {
	conn := &fakeConn{}
	c, _ := newTestClient(conn)

	err := c.BanPlayer("76561198000000005", "x", -1)
	assert.ErrorIs(t, err, ErrInvalidDuration)
	assert.Empty(t, conn.commands, "invalid duration must be rejected before any I/O")
}

func TestUnbanRemovesMatchesHighToLow(t *testing.T) {
	conn := &fakeConn{responses: map[string]string{"bans": bansResponse}}
	c, _ := newTestClient(conn)

	require.NoError(t, c.UnbanPlayer("76561198000000001"))
	require.Len(t, conn.commands, 3)
	assert.Equal(t, "bans", conn.commands[0])
	assert.Equal(t, "removeBan 2", conn.commands[1])
	assert.Equal(t, "removeBan 0", conn.commands[2])
}

func TestUnbanUnknownGUID(t *testing.T) {
	conn := &fakeConn{responses: map[string]string{"bans": bansResponse}}
	c, _ := newTestClient(conn)

	err := c.UnbanPlayer("76561198999999999")
	assert.ErrorIs(t, err, ErrBanNotFound)
	assert.Len(t, conn.commands, 1, "no removeBan may be sent without a match")
}

func TestBroadcast(t *testing.T) {
	conn := &fakeConn{}
	c, _ := newTestClient(conn)

	require.NoError(t, c.Broadcast("restart in 5 minutes"))
	assert.Equal(t, []string{"say -1 restart in 5 minutes"}, conn.commands)
}

func TestTestConnectionReportsPlayerCount(t *testing.T) {
	conn := &fakeConn{responses: map[string]string{"players": playersResponse}}
	c, _ := newTestClient(conn)

	count, err := c.TestConnection()
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestTruncateCommand(t *testing.T) {
	assert.Equal(t, "players", truncateCommand("players"))

	long := strings.Repeat("x", 300)
	got := truncateCommand(long)
	assert.Len(t, got, 203)
	assert.True(t, strings.HasSuffix(got, "..."))
}
