package domain

import "time"

// LeaderboardEntry is one pre-aggregated player_stats row. The rows are
// produced by external triggers on the game database; warden only reads them.
type LeaderboardEntry struct {
	SteamID         string     `json:"steam_id"`
	PlayerName      string     `json:"player_name"`
	Kills           int        `json:"kills"`
	Deaths          int        `json:"deaths"`
	VehicleKills    int        `json:"vehicle_kills"`
	TeamKills       int        `json:"team_kills"`
	Connections     int        `json:"connections"`
	PlaytimeMinutes int        `json:"playtime_minutes"`
	LastSeen        *time.Time `json:"last_seen,omitempty"`
}
