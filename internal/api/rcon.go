package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/klauspost/compress/gzip"

	"github.com/hexborne/warden/internal/domain"
	"github.com/hexborne/warden/internal/rcon"
)

// handleRconStatus reports whether the RCON client is usable (no I/O)
func (r *Router) handleRconStatus(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"usable": r.rcon.Usable()})
}

// handleRconTest validates reachability by fetching the player list
func (r *Router) handleRconTest(w http.ResponseWriter, req *http.Request) {
	count, err := r.rcon.TestConnection()
	if err != nil {
		writeJSON(w, rconStatusCode(err), map[string]interface{}{
			"reachable": false,
			"message":   err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reachable":    true,
		"message":      "connection ok",
		"player_count": count,
	})
}

// handleRconPlayers returns the live player list
func (r *Router) handleRconPlayers(w http.ResponseWriter, req *http.Request) {
	players, err := r.rcon.ListPlayers()
	if err != nil {
		writeError(w, rconStatusCode(err), err.Error())
		return
	}
	if players == nil {
		players = []rcon.Player{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"players": players,
		"total":   len(players),
	})
}

// RconTargetRequest addresses a player by Steam64, slot number or name
type RconTargetRequest struct {
	Identifier string `json:"identifier"`
	Reason     string `json:"reason"`
	Minutes    int    `json:"minutes"`
}

// handleRconKick kicks a connected player
func (r *Router) handleRconKick(w http.ResponseWriter, req *http.Request) {
	var body RconTargetRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body.Identifier == "" {
		writeError(w, http.StatusBadRequest, "identifier is required")
		return
	}

	if err := r.rcon.KickPlayer(body.Identifier, body.Reason); err != nil {
		writeJSON(w, rconStatusCode(err), map[string]interface{}{"success": false, "error": err.Error()})
		return
	}
	r.wsHub.Broadcast(domain.NewEvent(domain.EventPlayerKicked, map[string]any{"identifier": body.Identifier}))
	writeJSON(w, http.StatusOK, outcomeResponse{Success: true, Message: "Player kicked from game server"})
}

// handleRconBan bans a player on the game server only
func (r *Router) handleRconBan(w http.ResponseWriter, req *http.Request) {
	var body RconTargetRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body.Identifier == "" {
		writeError(w, http.StatusBadRequest, "identifier is required")
		return
	}

	if err := r.rcon.BanPlayer(body.Identifier, body.Reason, body.Minutes); err != nil {
		writeJSON(w, rconStatusCode(err), map[string]interface{}{"success": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, outcomeResponse{Success: true, Message: "Player banned on game server"})
}

// handleRconUnban removes server-side ban entries for a GUID
func (r *Router) handleRconUnban(w http.ResponseWriter, req *http.Request) {
	var body struct {
		GUID string `json:"guid"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body.GUID == "" {
		writeError(w, http.StatusBadRequest, "guid is required")
		return
	}

	if err := r.rcon.UnbanPlayer(body.GUID); err != nil {
		writeJSON(w, rconStatusCode(err), map[string]interface{}{"success": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, outcomeResponse{Success: true, Message: "Server ban removed"})
}

// handleRconBroadcast sends a global chat message
func (r *Router) handleRconBroadcast(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	if err := r.rcon.Broadcast(body.Message); err != nil {
		writeJSON(w, rconStatusCode(err), map[string]interface{}{"success": false, "error": err.Error()})
		return
	}
	r.wsHub.Broadcast(domain.NewEvent(domain.EventBroadcastSent, map[string]any{"message": body.Message}))
	writeJSON(w, http.StatusOK, outcomeResponse{Success: true, Message: "Broadcast sent"})
}

// RconCommandRequest is the request body for raw commands
type RconCommandRequest struct {
	Command string `json:"command"`
}

// handleRconCommand executes a raw protocol command (admin escape hatch)
func (r *Router) handleRconCommand(w http.ResponseWriter, req *http.Request) {
	var body RconCommandRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Command == "" {
		writeError(w, http.StatusBadRequest, "command is required")
		return
	}

	output, err := r.rcon.Exec(body.Command)
	if err != nil {
		writeError(w, rconStatusCode(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"output": output})
}

// handleGetRconSettings returns the stored RCON settings. The password is
// never echoed back; only whether one is set.
func (r *Router) handleGetRconSettings(w http.ResponseWriter, req *http.Request) {
	settings, err := r.store.RconSettings(req.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"enabled":      settings.Enabled,
		"host":         settings.Host,
		"port":         settings.Port,
		"password_set": settings.Password != "",
		"usable":       settings.Usable(),
	})
}

// handleUpdateRconSettings updates the stored settings transactionally and
// reloads the live client so the next command uses the new configuration
func (r *Router) handleUpdateRconSettings(w http.ResponseWriter, req *http.Request) {
	var upd rcon.SettingsUpdate
	if err := json.NewDecoder(req.Body).Decode(&upd); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	claims := r.getAuthClaims(req)
	if err := r.store.UpdateRconSettings(req.Context(), upd, claims.UserID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	settings, err := r.store.RconSettings(req.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	r.rcon.Reload(settings)

	r.wsHub.Broadcast(domain.NewEvent(domain.EventSettingsUpdated, nil))
	writeJSON(w, http.StatusOK, map[string]string{"message": "settings updated"})
}

// handleDebugLog returns the debug trail content and file metadata
func (r *Router) handleDebugLog(w http.ResponseWriter, req *http.Request) {
	content := r.debug.ReadAll()
	if tail := req.URL.Query().Get("tail"); tail != "" {
		if n, err := strconv.Atoi(tail); err == nil && n > 0 {
			content = r.debug.ReadTail(n)
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"content": content,
		"file":    r.debug.Info(),
	})
}

// handleDebugLogAction clears the debug trail
func (r *Router) handleDebugLogAction(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Action string `json:"action"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Action != "clear" {
		writeError(w, http.StatusBadRequest, "unsupported action")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"cleared": r.debug.Clear()})
}

// handleDebugLogDownload streams the debug trail as a gzip attachment
func (r *Router) handleDebugLogDownload(w http.ResponseWriter, req *http.Request) {
	f, err := r.debug.Open()
	if err != nil {
		writeError(w, http.StatusNotFound, "debug log does not exist")
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/gzip")
	w.Header().Set("Content-Disposition", `attachment; filename="rcon-debug.log.gz"`)
	gz := gzip.NewWriter(w)
	defer gz.Close()
	io.Copy(gz, f)
}

// rconStatusCode maps RCON error kinds to HTTP statuses: not configured is a
// conflict with server state, resolution failures are 404s, transport
// failures are bad gateway.
func rconStatusCode(err error) int {
	switch {
	case errors.Is(err, rcon.ErrNotConfigured):
		return http.StatusConflict
	case errors.Is(err, rcon.ErrPlayerNotFound), errors.Is(err, rcon.ErrBanNotFound):
		return http.StatusNotFound
	case errors.Is(err, rcon.ErrInvalidDuration):
		return http.StatusBadRequest
	case errors.Is(err, rcon.ErrTransport):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
