package storage

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hexborne/warden/internal/domain"
	"github.com/hexborne/warden/internal/rcon"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "warden.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func createTestUser(t *testing.T, store *Store, username string, staff, admin bool) *domain.User {
	t.Helper()
	user, err := store.CreateUser(context.Background(), CreateUserParams{
		Username:     username,
		PasswordHash: "hash",
		SteamID:      "76561198000000001",
		IsStaff:      staff,
		IsAdmin:      admin,
	})
	require.NoError(t, err)
	return user
}

func setWhitelistRoles(t *testing.T, store *Store, userID int64, main, reserve bool) {
	t.Helper()
	err := store.UpdateUserFlags(context.Background(), userID, UserFlagsUpdate{
		RoleMain:    &main,
		RoleReserve: &reserve,
	})
	require.NoError(t, err)
}

func TestCreateAndGetUser(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user := createTestUser(t, store, "alice", false, false)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "alice", user.DisplayName, "display name defaults to username")
	assert.False(t, user.Protected())
	assert.False(t, user.CreatedAt.IsZero(), "created_at must scan back as a time")
	assert.Nil(t, user.LastLogin)

	require.NoError(t, store.UpdateUserLastLogin(ctx, user.ID))
	reloaded, err := store.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.LastLogin)
	assert.WithinDuration(t, time.Now(), *reloaded.LastLogin, 5*time.Second)

	byName, err := store.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byName.ID)

	bySteam, err := store.GetUserBySteamID(ctx, "76561198000000001")
	require.NoError(t, err)
	assert.Equal(t, user.ID, bySteam.ID)

	_, err = store.GetUserByUsername(ctx, "nobody")
	assert.Error(t, err)
}

func TestListUsersSearch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.CreateUser(ctx, CreateUserParams{Username: "alice", PasswordHash: "h", SteamID: "76561198000000001"})
	require.NoError(t, err)
	_, err = store.CreateUser(ctx, CreateUserParams{Username: "bob", PasswordHash: "h", SteamID: "76561198000000002"})
	require.NoError(t, err)

	users, total, err := store.ListUsers(ctx, "", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, users, 2)

	users, total, err = store.ListUsers(ctx, "ali", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, users, 1)
	assert.Equal(t, "alice", users[0].Username)

	users, total, err = store.ListUsers(ctx, "76561198000000002", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, users, 1)
	assert.Equal(t, "bob", users[0].Username)
}

func TestPasswordLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user := createTestUser(t, store, "alice", false, false)
	assert.False(t, user.PasswordChangeRequired)

	require.NoError(t, store.ResetUserPassword(ctx, user.ID, "newhash"))
	reloaded, err := store.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.PasswordChangeRequired, "reset forces a change on next login")
	assert.Equal(t, "newhash", reloaded.PasswordHash)

	require.NoError(t, store.UpdateUserPassword(ctx, user.ID, "ownhash"))
	reloaded, err = store.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, reloaded.PasswordChangeRequired, "a self-chosen password clears the flag")
}

func TestDeleteUser(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	createTestUser(t, store, "alice", false, false)
	require.NoError(t, store.DeleteUser(ctx, "alice"))
	_, err := store.GetUserByUsername(ctx, "alice")
	assert.Error(t, err)

	assert.Error(t, store.DeleteUser(ctx, "alice"), "deleting a missing user fails")
}

func TestIssueBanFullScope(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user := createTestUser(t, store, "alice", false, false)
	actor := createTestUser(t, store, "staff", true, false)
	setWhitelistRoles(t, store, user.ID, true, true)

	ban, err := store.IssueBan(ctx, IssueBanParams{
		UserID:  user.ID,
		ActorID: actor.ID,
		Scope:   domain.BanScopeFull,
		Reason:  "teamkilling",
	})
	require.NoError(t, err)
	assert.True(t, ban.Active)
	assert.Equal(t, domain.BanScopeFull, ban.Scope)
	assert.Equal(t, "teamkilling", ban.Reason)
	assert.Nil(t, ban.ExpiresAt)

	reloaded, err := store.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, reloaded.RoleMain, "full bans revoke the main role")
	assert.False(t, reloaded.RoleReserve, "full bans revoke the reserve role")

	banned, err := store.IsUserBanned(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, banned)
}

func TestIssueBanScopedRoleRevocation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user := createTestUser(t, store, "alice", false, false)
	setWhitelistRoles(t, store, user.ID, true, true)

	_, err := store.IssueBan(ctx, IssueBanParams{
		UserID: user.ID,
		Scope:  domain.BanScopeMain,
		Reason: "x",
	})
	require.NoError(t, err)

	reloaded, err := store.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, reloaded.RoleMain)
	assert.True(t, reloaded.RoleReserve, "a main-scope ban leaves the reserve role intact")
}

func TestIssueBanProtectedUser(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	staff := createTestUser(t, store, "staff", true, false)
	admin := createTestUser(t, store, "admin", false, true)

	for _, user := range []*domain.User{staff, admin} {
		_, err := store.IssueBan(ctx, IssueBanParams{UserID: user.ID, Scope: domain.BanScopeFull, Reason: "x"})
		assert.ErrorIs(t, err, ErrProtectedUser)

		banned, err := store.IsUserBanned(ctx, user.ID)
		require.NoError(t, err)
		assert.False(t, banned, "a refused ban must leave no ban row")
	}
}

func TestIssueBanInvalidScope(t *testing.T) {
	store := newTestStore(t)
	user := createTestUser(t, store, "alice", false, false)

	_, err := store.IssueBan(context.Background(), IssueBanParams{
		UserID: user.ID,
		Scope:  domain.BanScope("partial"),
		Reason: "x",
	})
	assert.ErrorIs(t, err, ErrInvalidScope)
}

func TestIssueBanReplacesPriorActive(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user := createTestUser(t, store, "alice", false, false)

	_, err := store.IssueBan(ctx, IssueBanParams{UserID: user.ID, Scope: domain.BanScopeReserve, Reason: "first"})
	require.NoError(t, err)
	second, err := store.IssueBan(ctx, IssueBanParams{UserID: user.ID, Scope: domain.BanScopeFull, Reason: "second"})
	require.NoError(t, err)

	active, err := store.ActiveBan(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, active.ID, "only the newest ban stays active")

	history, err := store.BansForUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2, "prior bans stay in the history")
}

func TestRevokeBan(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user := createTestUser(t, store, "alice", false, false)
	actor := createTestUser(t, store, "staff", true, false)

	_, err := store.IssueBan(ctx, IssueBanParams{
		UserID:    user.ID,
		Scope:     domain.BanScopeFull,
		Reason:    "x",
		ServerBan: true,
	})
	require.NoError(t, err)

	revoked, err := store.RevokeBan(ctx, user.ID, actor.ID, "appeal accepted")
	require.NoError(t, err)
	assert.False(t, revoked.Active)
	assert.True(t, revoked.ServerBan, "the caller needs the flag to mirror the unban")
	require.NotNil(t, revoked.UnbannedBy)
	assert.Equal(t, actor.ID, *revoked.UnbannedBy)
	assert.Equal(t, "appeal accepted", revoked.UnbanReason)

	banned, err := store.IsUserBanned(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, banned)

	_, err = store.RevokeBan(ctx, user.ID, actor.ID, "again")
	assert.ErrorIs(t, err, ErrNoActiveBan)
}

func TestBanExpiry(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user := createTestUser(t, store, "alice", false, false)

	past := time.Now().Add(-time.Hour)
	_, err := store.IssueBan(ctx, IssueBanParams{
		UserID:    user.ID,
		Scope:     domain.BanScopeFull,
		Reason:    "x",
		ExpiresAt: &past,
	})
	require.NoError(t, err)

	banned, err := store.IsUserBanned(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, banned, "an expired ban reads as inactive")

	future := time.Now().Add(time.Hour)
	_, err = store.IssueBan(ctx, IssueBanParams{
		UserID:    user.ID,
		Scope:     domain.BanScopeFull,
		Reason:    "x",
		ExpiresAt: &future,
	})
	require.NoError(t, err)

	banned, err = store.IsUserBanned(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, banned)
}

func TestListBansActiveFilter(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	alice := createTestUser(t, store, "alice", false, false)
	bob := createTestUser(t, store, "bob", false, false)

	_, err := store.IssueBan(ctx, IssueBanParams{UserID: alice.ID, Scope: domain.BanScopeFull, Reason: "x"})
	require.NoError(t, err)
	_, err = store.IssueBan(ctx, IssueBanParams{UserID: bob.ID, Scope: domain.BanScopeFull, Reason: "y"})
	require.NoError(t, err)
	_, err = store.RevokeBan(ctx, bob.ID, alice.ID, "")
	require.NoError(t, err)

	_, total, err := store.ListBans(ctx, false, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	active, total, err := store.ListBans(ctx, true, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, active, 1)
	assert.Equal(t, alice.ID, active[0].UserID)
}

func TestRconSettingsRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	admin := createTestUser(t, store, "admin", false, true)

	settings, err := store.RconSettings(ctx)
	require.NoError(t, err)
	assert.False(t, settings.Enabled, "unconfigured settings read as disabled")
	assert.False(t, settings.Usable())

	enabled := true
	host := "192.168.1.10"
	port := 2306
	password := "secret"
	err = store.UpdateRconSettings(ctx, rcon.SettingsUpdate{
		Enabled:  &enabled,
		Host:     &host,
		Port:     &port,
		Password: &password,
	}, admin.ID)
	require.NoError(t, err)

	settings, err = store.RconSettings(ctx)
	require.NoError(t, err)
	assert.True(t, settings.Enabled)
	assert.Equal(t, "192.168.1.10", settings.Host)
	assert.Equal(t, 2306, settings.Port)
	assert.Equal(t, "secret", settings.Password)
	assert.True(t, settings.Usable())

	newHost := "10.0.0.2"
	err = store.UpdateRconSettings(ctx, rcon.SettingsUpdate{Host: &newHost}, admin.ID)
	require.NoError(t, err)

	settings, err = store.RconSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.2", settings.Host)
	assert.Equal(t, "secret", settings.Password, "a nil password keeps the stored one")
	assert.True(t, settings.Enabled)
}

func TestRconSettingsConsoleActor(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Console commands carry actor id 0. The foreign key on updated_by must
	// not reject them, and nothing may be attributed to a user.
	enabled := true
	host := "10.0.0.1"
	err := store.UpdateRconSettings(ctx, rcon.SettingsUpdate{Enabled: &enabled, Host: &host}, 0)
	require.NoError(t, err)

	settings, err := store.RconSettings(ctx)
	require.NoError(t, err)
	assert.True(t, settings.Enabled)
	assert.Equal(t, "10.0.0.1", settings.Host)

	var updatedBy sql.NullInt64
	err = store.db.QueryRowContext(ctx,
		"SELECT updated_by FROM server_settings WHERE setting_key = 'rcon_host'").Scan(&updatedBy)
	require.NoError(t, err)
	assert.False(t, updatedBy.Valid, "console changes store a NULL actor")
}

func TestIssueBanConsoleActor(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user := createTestUser(t, store, "alice", false, false)

	ban, err := store.IssueBan(ctx, IssueBanParams{UserID: user.ID, Scope: domain.BanScopeFull, Reason: "x"})
	require.NoError(t, err)
	assert.Zero(t, ban.BannedBy, "a console ban has no issuing user")

	revoked, err := store.RevokeBan(ctx, user.ID, 0, "lifted at console")
	require.NoError(t, err)
	assert.Nil(t, revoked.UnbannedBy)
	assert.Equal(t, "lifted at console", revoked.UnbanReason)
}

func TestUpdateRconSettingsInvalidPort(t *testing.T) {
	store := newTestStore(t)

	for _, port := range []int{0, -1, 65536} {
		p := port
		err := store.UpdateRconSettings(context.Background(), rcon.SettingsUpdate{Port: &p}, 1)
		assert.Error(t, err)
	}
}

func TestRconSettingsMissingTable(t *testing.T) {
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "bare.db"))
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db)
	settings, err := store.RconSettings(context.Background())
	require.NoError(t, err, "a missing settings table must not fail the load")
	assert.False(t, settings.Enabled)
	assert.False(t, settings.Usable())
}

func TestNotes(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user := createTestUser(t, store, "alice", false, false)
	author := createTestUser(t, store, "staff", true, false)

	note, err := store.AddNote(ctx, user.ID, author.ID, "spoke to them about teamkilling")
	require.NoError(t, err)

	notes, err := store.NotesForUser(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, note.ID, notes[0].ID)
	assert.Equal(t, "staff", notes[0].AuthorName)

	require.NoError(t, store.DeleteNote(ctx, note.ID))
	notes, err = store.NotesForUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, notes)
}
