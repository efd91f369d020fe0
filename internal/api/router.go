package api

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/hexborne/warden/internal/auth"
	"github.com/hexborne/warden/internal/bans"
	"github.com/hexborne/warden/internal/debuglog"
	"github.com/hexborne/warden/internal/rcon"
	"github.com/hexborne/warden/internal/storage"
)

// Router holds the HTTP routes and dependencies
type Router struct {
	mux       *http.ServeMux
	store     *storage.Store
	rcon      *rcon.Client
	orch      *bans.Orchestrator
	debug     *debuglog.Sink
	wsHub     *WebSocketHub
	auth      *auth.Service
	staticDir string
}

// NewRouter creates a new HTTP router
func NewRouter(store *storage.Store, rconClient *rcon.Client, orch *bans.Orchestrator, debug *debuglog.Sink, authService *auth.Service, hub *WebSocketHub, staticDir string) *Router {
	r := &Router{
		mux:       http.NewServeMux(),
		store:     store,
		rcon:      rconClient,
		orch:      orch,
		debug:     debug,
		wsHub:     hub,
		auth:      authService,
		staticDir: staticDir,
	}

	// Auth routes
	r.mux.HandleFunc("POST /api/auth/login", r.handleLogin)
	r.mux.HandleFunc("POST /api/auth/logout", r.handleLogout)
	r.mux.HandleFunc("GET /api/auth/check", r.handleAuthCheck)
	r.mux.HandleFunc("POST /api/auth/change-password", r.requireAuth(r.handleChangePassword))

	// User management (staff can browse, admin mutates)
	r.mux.HandleFunc("GET /api/users", r.requireStaff(r.handleListUsers))
	r.mux.HandleFunc("GET /api/users/{id}", r.requireStaff(r.handleGetUser))
	r.mux.HandleFunc("POST /api/users", r.requireAdmin(r.handleCreateUser))
	r.mux.HandleFunc("PATCH /api/users/{id}", r.requireAdmin(r.handleUpdateUserFlags))
	r.mux.HandleFunc("DELETE /api/users/{username}", r.requireAdmin(r.handleDeleteUser))
	r.mux.HandleFunc("POST /api/users/{id}/reset-password", r.requireAdmin(r.handleResetUserPassword))

	// Ban workflow (staff)
	r.mux.HandleFunc("GET /api/bans", r.requireStaff(r.handleListBans))
	r.mux.HandleFunc("GET /api/users/{id}/bans", r.requireStaff(r.handleUserBans))
	r.mux.HandleFunc("POST /api/users/{id}/ban", r.requireStaff(r.handleIssueBan))
	r.mux.HandleFunc("POST /api/users/{id}/unban", r.requireStaff(r.handleRevokeBan))
	r.mux.HandleFunc("POST /api/users/{id}/kick", r.requireStaff(r.handleKickUser))

	// Staff notes
	r.mux.HandleFunc("GET /api/users/{id}/notes", r.requireStaff(r.handleListNotes))
	r.mux.HandleFunc("POST /api/users/{id}/notes", r.requireStaff(r.handleAddNote))
	r.mux.HandleFunc("DELETE /api/notes/{id}", r.requireStaff(r.handleDeleteNote))

	// Leaderboard (public)
	r.mux.HandleFunc("GET /api/leaderboard", r.handleLeaderboard)

	// RCON (staff operates, admin configures)
	r.mux.HandleFunc("GET /api/rcon/status", r.requireStaff(r.handleRconStatus))
	r.mux.HandleFunc("POST /api/rcon/test", r.requireStaff(r.handleRconTest))
	r.mux.HandleFunc("GET /api/rcon/players", r.requireStaff(r.handleRconPlayers))
	r.mux.HandleFunc("POST /api/rcon/kick", r.requireStaff(r.handleRconKick))
	r.mux.HandleFunc("POST /api/rcon/ban", r.requireStaff(r.handleRconBan))
	r.mux.HandleFunc("POST /api/rcon/unban", r.requireStaff(r.handleRconUnban))
	r.mux.HandleFunc("POST /api/rcon/broadcast", r.requireStaff(r.handleRconBroadcast))
	r.mux.HandleFunc("POST /api/rcon/command", r.requireAdmin(r.handleRconCommand))
	r.mux.HandleFunc("GET /api/rcon/settings", r.requireAdmin(r.handleGetRconSettings))
	r.mux.HandleFunc("PUT /api/rcon/settings", r.requireAdmin(r.handleUpdateRconSettings))

	// RCON debug log viewer (admin only)
	r.mux.HandleFunc("GET /api/rcon/debuglog", r.requireAdmin(r.handleDebugLog))
	r.mux.HandleFunc("POST /api/rcon/debuglog", r.requireAdmin(r.handleDebugLogAction))
	r.mux.HandleFunc("GET /api/rcon/debuglog/download", r.requireAdmin(r.handleDebugLogDownload))

	// WebSocket event stream
	r.mux.HandleFunc("GET /ws", r.handleWebSocket)

	// Health check
	r.mux.HandleFunc("GET /health", r.handleHealth)

	// Static files - only serve if staticDir is configured
	if staticDir != "" {
		r.mux.HandleFunc("GET /", r.handleStatic)
	}

	return r
}

// ServeHTTP implements http.Handler
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	// CORS headers for API
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

	if req.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}

	r.mux.ServeHTTP(w, req)
}

// handleStatic serves static files from the configured directory
// For SPA support, serves index.html for any path that doesn't match a file
func (r *Router) handleStatic(w http.ResponseWriter, req *http.Request) {
	path := filepath.Clean(req.URL.Path)
	if path == "/" {
		path = "/index.html"
	}

	fullPath := filepath.Join(r.staticDir, path)

	// Security: ensure the path is within staticDir
	absStaticDir, _ := filepath.Abs(r.staticDir)
	absPath, _ := filepath.Abs(fullPath)
	if !strings.HasPrefix(absPath, absStaticDir) {
		http.NotFound(w, req)
		return
	}

	info, err := os.Stat(fullPath)
	if err != nil || info.IsDir() {
		// SPA fallback: serve index.html for unknown paths
		fullPath = filepath.Join(r.staticDir, "index.html")
		if _, err := os.Stat(fullPath); err != nil {
			http.NotFound(w, req)
			return
		}
	}

	http.ServeFile(w, req, fullPath)
}
