package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hexborne/warden/internal/auth"
	"github.com/hexborne/warden/internal/bans"
	"github.com/hexborne/warden/internal/debuglog"
	"github.com/hexborne/warden/internal/rcon"
	"github.com/hexborne/warden/internal/storage"
)

type testEnv struct {
	router *Router
	store  *storage.Store
	debug  *debuglog.Sink
	auth   *auth.Service
}

// newTestEnv builds a full router over a fresh database. The RCON client has
// no transport, so server actions report not-configured.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store, err := storage.Open(context.Background(), filepath.Join(t.TempDir(), "warden.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	sink := debuglog.New(filepath.Join(t.TempDir(), "rcon-debug.log"))
	rconClient := rcon.NewClient(rcon.Settings{}, nil, sink)
	authService := auth.NewService("test-secret", time.Hour)
	hub := NewWebSocketHub()
	orch := bans.New(store, rconClient, hub)

	return &testEnv{
		router: NewRouter(store, rconClient, orch, sink, authService, hub, ""),
		store:  store,
		debug:  sink,
		auth:   authService,
	}
}

// createUser inserts a user with the given password and role flags and
// returns its id and a valid bearer token.
func (e *testEnv) createUser(t *testing.T, username, password string, staff, admin bool) (int64, string) {
	t.Helper()

	hash, err := auth.HashPassword(password)
	require.NoError(t, err)
	user, err := e.store.CreateUser(context.Background(), storage.CreateUserParams{
		Username:     username,
		PasswordHash: hash,
		IsStaff:      staff,
		IsAdmin:      admin,
	})
	require.NoError(t, err)

	token, err := e.auth.GenerateToken(user.ID, user.Username, staff, admin, false)
	require.NoError(t, err)
	return user.ID, token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, "GET", "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "alice", "hunter2hunter2", true, false)

	rec := env.do(t, "POST", "/api/auth/login", "", map[string]string{
		"username": "alice",
		"password": "hunter2hunter2",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeJSON(t, rec)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	assert.Equal(t, true, body["is_staff"])

	check := env.do(t, "GET", "/api/auth/check", token, nil)
	require.Equal(t, http.StatusOK, check.Code)
	assert.Equal(t, true, decodeJSON(t, check)["authenticated"])
}

func TestLoginBadCredentials(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "alice", "hunter2hunter2", false, false)

	rec := env.do(t, "POST", "/api/auth/login", "", map[string]string{
		"username": "alice",
		"password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, "POST", "/api/auth/login", "", map[string]string{
		"username": "nobody",
		"password": "whatever",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthCheckWithoutToken(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, "GET", "/api/auth/check", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decodeJSON(t, rec)["authenticated"])
}

func TestRoleEnforcement(t *testing.T) {
	env := newTestEnv(t)
	_, memberToken := env.createUser(t, "member", "passwordpass", false, false)
	_, staffToken := env.createUser(t, "staff", "passwordpass", true, false)
	_, adminToken := env.createUser(t, "admin", "passwordpass", false, true)

	rec := env.do(t, "GET", "/api/users", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, "GET", "/api/users", memberToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, "GET", "/api/users", staffToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, "GET", "/api/rcon/settings", staffToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code, "settings are admin only")

	rec = env.do(t, "GET", "/api/rcon/settings", adminToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestIssueAndRevokeBanEndpoint(t *testing.T) {
	env := newTestEnv(t)
	targetID, _ := env.createUser(t, "target", "passwordpass", false, false)
	_, staffToken := env.createUser(t, "staff", "passwordpass", true, false)

	rec := env.do(t, "POST", fmt.Sprintf("/api/users/%d/ban", targetID), staffToken, map[string]any{
		"scope":  "full",
		"reason": "teamkilling",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeJSON(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Contains(t, body["message"], "Whitelist ban issued")

	banned, err := env.store.IsUserBanned(context.Background(), targetID)
	require.NoError(t, err)
	assert.True(t, banned)

	rec = env.do(t, "POST", fmt.Sprintf("/api/users/%d/unban", targetID), staffToken, map[string]string{
		"reason": "appeal accepted",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeJSON(t, rec)["success"])

	rec = env.do(t, "POST", fmt.Sprintf("/api/users/%d/unban", targetID), staffToken, map[string]string{})
	assert.Equal(t, http.StatusNotFound, rec.Code, "revoking twice finds no active ban")
}

func TestBanEndpointValidation(t *testing.T) {
	env := newTestEnv(t)
	targetID, _ := env.createUser(t, "target", "passwordpass", false, false)
	staffID, staffToken := env.createUser(t, "staff", "passwordpass", true, false)

	rec := env.do(t, "POST", fmt.Sprintf("/api/users/%d/ban", targetID), staffToken, map[string]any{
		"scope": "everything",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	past := time.Now().Add(-time.Hour)
	rec = env.do(t, "POST", fmt.Sprintf("/api/users/%d/ban", targetID), staffToken, map[string]any{
		"scope":      "full",
		"expires_at": past,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, "POST", fmt.Sprintf("/api/users/%d/ban", staffID), staffToken, map[string]any{
		"scope": "full",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code, "staff accounts cannot be banned")
}

func TestServerBanWithoutRconStillSucceeds(t *testing.T) {
	env := newTestEnv(t)
	targetID, _ := env.createUser(t, "target", "passwordpass", false, false)
	_, staffToken := env.createUser(t, "staff", "passwordpass", true, false)

	rec := env.do(t, "POST", fmt.Sprintf("/api/users/%d/ban", targetID), staffToken, map[string]any{
		"scope":      "full",
		"reason":     "x",
		"server_ban": true,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeJSON(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Contains(t, body["message"], "RCON is not enabled")
}

func TestKickEndpointWithoutRcon(t *testing.T) {
	env := newTestEnv(t)
	targetID, _ := env.createUser(t, "target", "passwordpass", false, false)
	_, staffToken := env.createUser(t, "staff", "passwordpass", true, false)

	rec := env.do(t, "POST", fmt.Sprintf("/api/users/%d/kick", targetID), staffToken, map[string]string{
		"reason": "x",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRconStatusAndPlayersUnconfigured(t *testing.T) {
	env := newTestEnv(t)
	_, staffToken := env.createUser(t, "staff", "passwordpass", true, false)

	rec := env.do(t, "GET", "/api/rcon/status", staffToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decodeJSON(t, rec)["usable"])

	rec = env.do(t, "GET", "/api/rcon/players", staffToken, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestUpdateRconSettingsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	_, adminToken := env.createUser(t, "admin", "passwordpass", false, true)

	rec := env.do(t, "PUT", "/api/rcon/settings", adminToken, map[string]any{
		"enabled":  true,
		"host":     "192.168.1.10",
		"port":     2306,
		"password": "secret",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, "GET", "/api/rcon/settings", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeJSON(t, rec)
	assert.Equal(t, true, body["enabled"])
	assert.Equal(t, "192.168.1.10", body["host"])
	assert.Equal(t, float64(2306), body["port"])
	assert.Equal(t, true, body["password_set"])
	assert.NotContains(t, rec.Body.String(), "secret", "the password is never echoed back")

	rec = env.do(t, "PUT", "/api/rcon/settings", adminToken, map[string]any{"port": 99999})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDebugLogEndpoints(t *testing.T) {
	env := newTestEnv(t)
	_, adminToken := env.createUser(t, "admin", "passwordpass", false, true)

	rec := env.do(t, "GET", "/api/rcon/debuglog", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), debuglog.MissingSentinel)

	rec = env.do(t, "GET", "/api/rcon/debuglog/download", adminToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	env.debug.Append("connecting", map[string]any{"address": "192.168.1.10:2306"})

	rec = env.do(t, "GET", "/api/rcon/debuglog", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "connecting")

	rec = env.do(t, "GET", "/api/rcon/debuglog/download", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/gzip", rec.Header().Get("Content-Type"))
	gz, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	content, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.Contains(t, string(content), "connecting")

	rec = env.do(t, "POST", "/api/rcon/debuglog", adminToken, map[string]string{"action": "clear"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeJSON(t, rec)["cleared"])

	rec = env.do(t, "POST", "/api/rcon/debuglog", adminToken, map[string]string{"action": "rotate"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUserCRUDEndpoints(t *testing.T) {
	env := newTestEnv(t)
	_, adminToken := env.createUser(t, "admin", "passwordpass", false, true)

	rec := env.do(t, "POST", "/api/users", adminToken, map[string]any{
		"username": "newbie",
		"password": "longenoughpass",
		"steam_id": "76561198000000009",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, "POST", "/api/users", adminToken, map[string]any{
		"username": "newbie2",
		"password": "longenoughpass",
		"steam_id": "not-a-steam-id",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, "POST", "/api/users", adminToken, map[string]any{
		"username": "newbie",
		"password": "longenoughpass",
		"steam_id": "76561198000000010",
	})
	assert.Equal(t, http.StatusConflict, rec.Code, "duplicate usernames are rejected")

	rec = env.do(t, "DELETE", "/api/users/newbie", adminToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, "DELETE", "/api/users/admin", adminToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code, "self-deletion is refused")
}
