package api

import (
	"net/http"
	"regexp"
	"strconv"

	"github.com/hexborne/warden/internal/storage"
)

var steamIDPattern = regexp.MustCompile(`^\d{17}$`)

// validSteamID checks the 17-digit Steam64 shape.
func validSteamID(id string) bool {
	return steamIDPattern.MatchString(id)
}

// parseLimit parses and validates a limit parameter with default and max values
func parseLimit(r *http.Request, defaultLimit, maxLimit int) int {
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= maxLimit {
			return parsed
		}
	}
	return defaultLimit
}

// parseOffset parses and validates an offset parameter
func parseOffset(r *http.Request) int {
	if o := r.URL.Query().Get("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			return parsed
		}
	}
	return 0
}

// storageCreateParams maps a create-user request onto storage params.
func storageCreateParams(body CreateUserRequest, hash string) storage.CreateUserParams {
	return storage.CreateUserParams{
		Username:     body.Username,
		PasswordHash: hash,
		SteamID:      body.SteamID,
		DisplayName:  body.DisplayName,
		IsStaff:      body.IsStaff,
		IsAdmin:      body.IsAdmin,
	}
}
