package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/hexborne/warden/internal/storage"
)

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// outcomeResponse is the AJAX shape for orchestrated ban/kick results.
type outcomeResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// parseID parses an ID from the URL path
func parseID(req *http.Request, param string) (int64, error) {
	idStr := req.PathValue(param)
	return strconv.ParseInt(idStr, 10, 64)
}

// handleHealth returns a simple health check response
func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// handleListUsers returns users with optional search and pagination
func (r *Router) handleListUsers(w http.ResponseWriter, req *http.Request) {
	search := req.URL.Query().Get("search")
	limit := parseLimit(req, 50, 200)
	offset := parseOffset(req)

	users, total, err := r.store.ListUsers(req.Context(), search, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"users":  users,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// handleGetUser returns a single user with ban status
func (r *Router) handleGetUser(w http.ResponseWriter, req *http.Request) {
	id, err := parseID(req, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	user, err := r.store.GetUserByID(req.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	banned, err := r.store.IsUserBanned(req.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user":   user,
		"banned": banned,
	})
}

// handleUpdateUserFlags toggles whitelist/staff/admin flags (admin only)
func (r *Router) handleUpdateUserFlags(w http.ResponseWriter, req *http.Request) {
	id, err := parseID(req, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var upd storage.UserFlagsUpdate
	if err := json.NewDecoder(req.Body).Decode(&upd); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := r.store.UpdateUserFlags(req.Context(), id, upd); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update user")
		return
	}

	user, err := r.store.GetUserByID(req.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// handleListNotes returns a user's staff notes
func (r *Router) handleListNotes(w http.ResponseWriter, req *http.Request) {
	id, err := parseID(req, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	notes, err := r.store.NotesForUser(req.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, notes)
}

// handleAddNote attaches a staff note to a user
func (r *Router) handleAddNote(w http.ResponseWriter, req *http.Request) {
	id, err := parseID(req, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var body struct {
		Body string `json:"body"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Body == "" {
		writeError(w, http.StatusBadRequest, "note body is required")
		return
	}

	claims := r.getAuthClaims(req)
	note, err := r.store.AddNote(req.Context(), id, claims.UserID, body.Body)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

// handleDeleteNote removes a staff note
func (r *Router) handleDeleteNote(w http.ResponseWriter, req *http.Request) {
	id, err := parseID(req, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid note id")
		return
	}

	if err := r.store.DeleteNote(req.Context(), id); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "note deleted"})
}

// handleLeaderboard returns top players by category
func (r *Router) handleLeaderboard(w http.ResponseWriter, req *http.Request) {
	limit := parseLimit(req, 50, 100)

	category := req.URL.Query().Get("category")
	if category == "" {
		category = "kills"
	}
	if !storage.ValidLeaderboardCategory(category) {
		writeError(w, http.StatusBadRequest, "invalid category")
		return
	}

	entries, err := r.store.Leaderboard(req.Context(), category, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"category": category,
		"entries":  entries,
	})
}
