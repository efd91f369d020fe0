package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/hexborne/warden/internal/bans"
	"github.com/hexborne/warden/internal/domain"
	"github.com/hexborne/warden/internal/storage"
)

// IssueBanRequest is the request body for issuing a whitelist ban
type IssueBanRequest struct {
	Scope     string     `json:"scope"`
	Reason    string     `json:"reason"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Kick      bool       `json:"kick"`
	ServerBan bool       `json:"server_ban"`
}

// handleIssueBan issues a whitelist ban, optionally mirrored to the game server
func (r *Router) handleIssueBan(w http.ResponseWriter, req *http.Request) {
	userID, err := parseID(req, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var body IssueBanRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	scope := domain.BanScope(body.Scope)
	if !scope.Valid() {
		writeError(w, http.StatusBadRequest, "invalid ban scope")
		return
	}
	if body.ExpiresAt != nil && body.ExpiresAt.Before(time.Now()) {
		writeError(w, http.StatusBadRequest, "expires_at is in the past")
		return
	}

	claims := r.getAuthClaims(req)
	outcome, err := r.orch.IssueBan(req.Context(), bans.BanRequest{
		UserID:    userID,
		ActorID:   claims.UserID,
		Scope:     scope,
		Reason:    body.Reason,
		ExpiresAt: body.ExpiresAt,
		Kick:      body.Kick,
		ServerBan: body.ServerBan,
	})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, storage.ErrProtectedUser) || errors.Is(err, storage.ErrInvalidScope) {
			status = http.StatusForbidden
		}
		writeJSON(w, status, map[string]interface{}{"success": false, "error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, outcomeResponse{Success: outcome.Success, Message: outcome.Message()})
}

// RevokeBanRequest is the request body for lifting a ban
type RevokeBanRequest struct {
	Reason string `json:"reason"`
}

// handleRevokeBan lifts the user's active whitelist ban
func (r *Router) handleRevokeBan(w http.ResponseWriter, req *http.Request) {
	userID, err := parseID(req, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var body RevokeBanRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	claims := r.getAuthClaims(req)
	outcome, err := r.orch.RevokeBan(req.Context(), userID, claims.UserID, body.Reason)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, storage.ErrNoActiveBan) {
			status = http.StatusNotFound
		}
		writeJSON(w, status, map[string]interface{}{"success": false, "error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, outcomeResponse{Success: outcome.Success, Message: outcome.Message()})
}

// KickRequest is the request body for kicking a user from the game server
type KickRequest struct {
	Reason string `json:"reason"`
}

// handleKickUser kicks a user's player from the game server (no whitelist change)
func (r *Router) handleKickUser(w http.ResponseWriter, req *http.Request) {
	userID, err := parseID(req, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var body KickRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	claims := r.getAuthClaims(req)
	outcome, err := r.orch.Kick(req.Context(), userID, claims.UserID, body.Reason)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, bans.ErrRconUnavailable) {
			status = http.StatusConflict
		}
		writeJSON(w, status, map[string]interface{}{"success": false, "error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, outcomeResponse{Success: outcome.Success, Message: outcome.Message()})
}

// handleListBans returns ban rows, newest first
func (r *Router) handleListBans(w http.ResponseWriter, req *http.Request) {
	activeOnly := req.URL.Query().Get("active") == "true"
	limit := parseLimit(req, 50, 200)
	offset := parseOffset(req)

	list, total, err := r.store.ListBans(req.Context(), activeOnly, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"bans":   list,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// handleUserBans returns a user's full ban history
func (r *Router) handleUserBans(w http.ResponseWriter, req *http.Request) {
	userID, err := parseID(req, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	history, err := r.store.BansForUser(req.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, history)
}
