package storage

import (
	"context"
	"database/sql"

	"github.com/hexborne/warden/internal/domain"
)

// leaderboardColumns maps API categories to ORDER BY columns. Categories are
// validated here (not just at the API edge) since the column name is spliced
// into the query.
var leaderboardColumns = map[string]string{
	"kills":         "kills",
	"deaths":        "deaths",
	"vehicle_kills": "vehicle_kills",
	"playtime":      "playtime_minutes",
	"connections":   "connections",
}

// ValidLeaderboardCategory reports whether the category is queryable.
func ValidLeaderboardCategory(category string) bool {
	_, ok := leaderboardColumns[category]
	return ok
}

// Leaderboard returns the top player_stats rows for a category. The rows are
// pre-aggregated externally; this is a plain read.
func (s *Store) Leaderboard(ctx context.Context, category string, limit int) ([]domain.LeaderboardEntry, error) {
	column, ok := leaderboardColumns[category]
	if !ok {
		column = "kills"
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT steam_id, player_name, kills, deaths, vehicle_kills, team_kills,
			connections, playtime_minutes, last_seen
		FROM player_stats
		ORDER BY `+column+` DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.LeaderboardEntry
	for rows.Next() {
		var e domain.LeaderboardEntry
		var lastSeen sql.NullTime
		if err := rows.Scan(&e.SteamID, &e.PlayerName, &e.Kills, &e.Deaths, &e.VehicleKills,
			&e.TeamKills, &e.Connections, &e.PlaytimeMinutes, &lastSeen); err != nil {
			return nil, err
		}
		if lastSeen.Valid {
			e.LastSeen = &lastSeen.Time
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
