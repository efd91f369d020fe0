package rcon

import (
	"fmt"
	"strconv"
	"strings"
)

// SessionTimeUnavailable is the fixed marker for the session time column.
// The BattlEye protocol does not report elapsed session time, so every
// player row carries this placeholder.
const SessionTimeUnavailable = "--"

// Player is one row of the live player listing. Slot is the server's
// transient per-session index; GUID is the persistent identity (may be empty
// while the server is still verifying the client).
type Player struct {
	Slot        int    `json:"slot"`
	Name        string `json:"name"`
	GUID        string `json:"guid"`
	Endpoint    string `json:"endpoint"`
	Ping        int    `json:"ping"`
	InLobby     bool   `json:"in_lobby"`
	SessionTime string `json:"session_time"`
}

// BanEntry is one row of the server-side GUID ban listing. MinutesLeft is
// the raw column value ("perm" or a number).
type BanEntry struct {
	Index       int    `json:"index"`
	GUID        string `json:"guid"`
	MinutesLeft string `json:"minutes_left"`
	Reason      string `json:"reason"`
}

// parsePlayers parses the plain-text response of the "players" command:
//
//	Players on server:
//	[#] [IP Address]:[Port] [Ping] [GUID] [Name]
//	--------------------------------------------------
//	0   192.168.1.15:2316   47   b618...(OK) Alice
//	1   10.0.0.7:2304       15   -          Bob (Lobby)
//	(2 players in total)
func parsePlayers(response string) ([]Player, error) {
	var players []Player
	inTable := false

	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.HasPrefix(line, "----") {
			inTable = true
			continue
		}
		if !inTable || strings.TrimSpace(line) == "" {
			continue
		}
		if strings.HasPrefix(line, "(") {
			break
		}

		fields := strings.Fields(line)
		if len(fields) < 4 {
			return nil, fmt.Errorf("malformed player row %q", line)
		}

		slot, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("malformed player slot in %q", line)
		}
		ping, _ := strconv.Atoi(fields[2])

		p := Player{
			Slot:        slot,
			Endpoint:    fields[1],
			Ping:        ping,
			GUID:        cleanGUID(fields[3]),
			SessionTime: SessionTimeUnavailable,
		}

		name := strings.Join(fields[4:], " ")
		if strings.HasSuffix(name, " (Lobby)") {
			name = strings.TrimSuffix(name, " (Lobby)")
			p.InLobby = true
		}
		p.Name = name

		players = append(players, p)
	}

	return players, nil
}

// cleanGUID strips the verification suffix the server appends to the GUID
// column ("(OK)", "(?)") and maps the placeholder dash to empty.
func cleanGUID(token string) string {
	if i := strings.IndexByte(token, '('); i >= 0 {
		token = token[:i]
	}
	if token == "-" {
		return ""
	}
	return token
}

// parseBans parses the GUID section of the "bans" command response. The IP
// ban section that follows it is ignored; warden only manages GUID bans.
func parseBans(response string) []BanEntry {
	var bans []BanEntry
	inGUIDSection := false
	inTable := false

	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimRight(line, "\r")
		trimmed := strings.TrimSpace(line)

		switch {
		case strings.HasPrefix(trimmed, "GUID Bans"):
			inGUIDSection = true
			inTable = false
			continue
		case strings.HasPrefix(trimmed, "IP Bans"):
			return bans
		case strings.HasPrefix(trimmed, "----"):
			inTable = inGUIDSection
			continue
		}
		if !inTable || trimmed == "" {
			continue
		}

		fields := strings.Fields(trimmed)
		if len(fields) < 3 {
			continue
		}
		index, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		entry := BanEntry{
			Index:       index,
			GUID:        fields[1],
			MinutesLeft: fields[2],
		}
		if len(fields) > 3 {
			entry.Reason = strings.Join(fields[3:], " ")
		}
		bans = append(bans, entry)
	}

	return bans
}
