package rcon

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"net"
	"time"
)

// BattlEye RCON wire protocol. Every datagram is framed as
// 'B' 'E' <crc32 little-endian> 0xFF <type> <payload>, with the checksum
// computed over the bytes from 0xFF onward.
const (
	bePacketLogin   = 0x00
	bePacketCommand = 0x01
	bePacketMessage = 0x02

	// BattlEye splits long responses at ~1400 bytes, one datagram each.
	beMaxPacket = 4096
)

var (
	errLoginRefused = errors.New("login refused, check the rcon password")
	errBadPacket    = errors.New("malformed battleye packet")
)

// buildPacket frames one payload for the wire.
func buildPacket(kind byte, payload []byte) []byte {
	body := make([]byte, 0, len(payload)+2)
	body = append(body, 0xFF, kind)
	body = append(body, payload...)

	packet := make([]byte, 0, len(body)+6)
	packet = append(packet, 'B', 'E')
	packet = binary.LittleEndian.AppendUint32(packet, crc32.ChecksumIEEE(body))
	return append(packet, body...)
}

// parsePacket validates the frame and returns its type and payload. The
// payload aliases the input buffer.
func parsePacket(packet []byte) (kind byte, payload []byte, err error) {
	if len(packet) < 8 || packet[0] != 'B' || packet[1] != 'E' || packet[6] != 0xFF {
		return 0, nil, errBadPacket
	}
	if crc32.ChecksumIEEE(packet[6:]) != binary.LittleEndian.Uint32(packet[2:6]) {
		return 0, nil, fmt.Errorf("%w: checksum mismatch", errBadPacket)
	}
	return packet[7], packet[8:], nil
}

// beConn is one logged-in BattlEye session over UDP. Not safe for concurrent
// use; the Client serializes all exchanges behind its mutex.
type beConn struct {
	conn        net.Conn
	execTimeout time.Duration
	seq         byte
	buf         []byte
}

// dialBattlEye connects and authenticates. The server drops sessions that
// stay idle past its keep-alive window; a later Execute on such a session
// times out, which makes the Client discard the connection and redial.
func dialBattlEye(address, password string, dialTimeout, execTimeout time.Duration) (*beConn, error) {
	conn, err := net.DialTimeout("udp", address, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", address, err)
	}

	c := &beConn{conn: conn, execTimeout: execTimeout, buf: make([]byte, beMaxPacket)}
	if err := c.login(password, dialTimeout); err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

func (c *beConn) login(password string, timeout time.Duration) error {
	c.conn.SetDeadline(time.Now().Add(timeout))
	if _, err := c.conn.Write(buildPacket(bePacketLogin, []byte(password))); err != nil {
		return fmt.Errorf("sending login: %w", err)
	}

	for {
		kind, payload, err := c.read()
		if err != nil {
			return fmt.Errorf("reading login response: %w", err)
		}
		if kind != bePacketLogin {
			continue
		}
		if len(payload) < 1 || payload[0] != 0x01 {
			return errLoginRefused
		}
		return nil
	}
}

// read returns the next valid packet, copying the payload out of the shared
// read buffer. Packets that fail checksum validation are dropped.
func (c *beConn) read() (byte, []byte, error) {
	for {
		n, err := c.conn.Read(c.buf)
		if err != nil {
			return 0, nil, err
		}
		kind, payload, err := parsePacket(c.buf[:n])
		if err != nil {
			continue
		}
		out := make([]byte, len(payload))
		copy(out, payload)
		return kind, out, nil
	}
}

// Execute sends one command and collects the response, reassembling
// multi-part replies. Chat pushes that arrive while waiting are acknowledged
// and skipped, as the protocol requires.
func (c *beConn) Execute(command string) (string, error) {
	c.seq++
	seq := c.seq

	c.conn.SetDeadline(time.Now().Add(c.execTimeout))
	if _, err := c.conn.Write(buildPacket(bePacketCommand, append([]byte{seq}, command...))); err != nil {
		return "", fmt.Errorf("sending command: %w", err)
	}

	parts := make(map[byte][]byte)
	total := byte(1)
	for {
		kind, payload, err := c.read()
		if err != nil {
			return "", fmt.Errorf("reading response: %w", err)
		}
		switch kind {
		case bePacketMessage:
			if len(payload) >= 1 {
				_, _ = c.conn.Write(buildPacket(bePacketMessage, payload[:1]))
			}
		case bePacketCommand:
			if len(payload) < 1 || payload[0] != seq {
				continue
			}
			data := payload[1:]
			// A 0x00 marker after the sequence byte introduces a
			// multi-part response: total count, this part's index, data.
			if len(data) >= 3 && data[0] == 0x00 {
				total = data[1]
				parts[data[2]] = data[3:]
			} else {
				parts[0] = data
			}
			if len(parts) >= int(total) {
				var response []byte
				for i := byte(0); i < total; i++ {
					response = append(response, parts[i]...)
				}
				return string(response), nil
			}
		}
	}
}

func (c *beConn) Close() error {
	return c.conn.Close()
}
