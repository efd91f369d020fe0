// warden - Arma 3 community whitelist and server administration
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog/log"
	flag "github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/hexborne/warden/internal/api"
	"github.com/hexborne/warden/internal/auth"
	"github.com/hexborne/warden/internal/bans"
	"github.com/hexborne/warden/internal/config"
	"github.com/hexborne/warden/internal/debuglog"
	"github.com/hexborne/warden/internal/logger"
	"github.com/hexborne/warden/internal/rcon"
	"github.com/hexborne/warden/internal/storage"
)

var version = "dev"

const defaultConfigPath = "/etc/warden/config.yml"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		cmdServe(os.Args[2:])
	case "user":
		cmdUser(os.Args[2:])
	case "settings":
		cmdSettings(os.Args[2:])
	case "rcon":
		cmdRcon(os.Args[2:])
	case "log":
		cmdLog(os.Args[2:])
	case "version":
		fmt.Printf("warden %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: warden <command> [options] [args]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve                               Start the dashboard server")
	fmt.Println("  user add [--staff] [--admin] [--steam-id N] <username>")
	fmt.Println("                                      Add a user (prompts for password)")
	fmt.Println("  user remove <username>              Remove a user")
	fmt.Println("  user list [--search S]              List users")
	fmt.Println("  user reset <username>               Reset a user's password")
	fmt.Println("  user staff <username>               Toggle staff status for a user")
	fmt.Println("  user admin <username>               Toggle admin status for a user")
	fmt.Println("  settings show                       Show stored RCON settings")
	fmt.Println("  settings rcon [--enable|--disable] [--host H] [--port N] [--password]")
	fmt.Println("                                      Update stored RCON settings")
	fmt.Println("  rcon test                           Check game server reachability")
	fmt.Println("  rcon players                        List connected players")
	fmt.Println("  rcon kick <target> [--reason R]     Kick a player (Steam64, slot or name)")
	fmt.Println("  rcon ban <target> [--minutes N] [--reason R]")
	fmt.Println("                                      Ban a player on the game server")
	fmt.Println("  rcon unban <guid>                   Remove server bans for a GUID")
	fmt.Println("  rcon say <message>                  Broadcast a global chat message")
	fmt.Println("  rcon exec <command>                 Execute a raw protocol command")
	fmt.Println("  log show                            Print the RCON debug trail")
	fmt.Println("  log tail [N]                        Print the last N trail entries (default: 10)")
	fmt.Println("  log clear                           Delete the RCON debug trail")
	fmt.Println("  version                             Show version")
	fmt.Println("  help                                Show this help")
	fmt.Println()
	fmt.Println("Global Options:")
	fmt.Println("  --config <path>    Path to configuration file (default /etc/warden/config.yml)")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  warden serve --config /etc/warden/config.yml")
	fmt.Println("  warden user add --staff --steam-id 76561198000000001 myuser")
	fmt.Println("  warden settings rcon --enable --host 192.168.1.10 --port 2306 --password")
	fmt.Println("  warden rcon kick 76561198000000001 --reason \"teamkilling\"")
}

// cmdServe starts the dashboard server
func cmdServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	fs.Parse(args)

	cfgPath := *configPath
	if cfgPath == "" {
		if _, err := os.Stat(defaultConfigPath); err == nil {
			cfgPath = defaultConfigPath
		} else {
			fmt.Fprintf(os.Stderr, "No config file found at %s. Use --config to specify a config file.\n", defaultConfigPath)
			os.Exit(1)
		}
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Log)
	log.Info().Str("version", version).Msg("warden starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := storage.Open(ctx, cfg.Database.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize database")
	}
	defer store.Close()
	log.Info().Str("path", cfg.Database.Path).Msg("database initialized")

	debugSink := debuglog.New(cfg.Rcon.DebugLogPath)

	settings, err := store.RconSettings(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("load rcon settings")
	}
	dialer := rcon.NewBattlEyeDialer(cfg.Rcon.DialTimeout, cfg.Rcon.ExecTimeout)
	rconClient := rcon.NewClient(settings, dialer, debugSink)
	defer rconClient.Close()
	if settings.Usable() {
		log.Info().Str("address", settings.Address()).Msg("rcon configured")
	} else {
		log.Info().Msg("rcon not configured, server actions disabled")
	}

	authService := auth.NewService(cfg.Auth.JWTSecret, cfg.Auth.TokenDuration)
	if cfg.Auth.JWTSecret == "" {
		log.Warn().Msg("no JWT secret configured, auth tokens will use an empty secret")
	}

	hub := api.NewWebSocketHub()
	go hub.Run()

	orch := bans.New(store, rconClient, hub)

	router := api.NewRouter(store, rconClient, orch, debugSink, authService, hub, cfg.Server.StaticDir)
	if cfg.Server.StaticDir != "" {
		log.Info().Str("dir", cfg.Server.StaticDir).Msg("serving static files")
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.ListenAddr, cfg.Server.HTTPPort)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-serverErr:
		log.Fatal().Err(err).Msg("http server")
	}

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer httpCancel()
	if err := server.Shutdown(httpCtx); err != nil {
		log.Warn().Err(err).Msg("http server shutdown")
	}

	cancel()
	log.Info().Msg("shutdown complete")
}

// openCLI loads the config and opens the database for CLI commands
func openCLI(configPath string) (*config.Config, *storage.Store) {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to load config from %s: %v\n", configPath, err)
		os.Exit(1)
	}

	store, err := storage.Open(context.Background(), cfg.Database.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open database: %v\n", err)
		os.Exit(1)
	}
	return cfg, store
}

// promptPassword reads and confirms a password without echo
func promptPassword() (string, error) {
	fmt.Print("Enter password: ")
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	if len(password) < 8 {
		return "", fmt.Errorf("password must be at least 8 characters")
	}

	fmt.Print("Confirm password: ")
	confirm, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	if string(password) != string(confirm) {
		return "", fmt.Errorf("passwords do not match")
	}
	return string(password), nil
}

// cmdUser handles user subcommands
func cmdUser(args []string) {
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "Error: user subcommand required: add, remove, list, reset, staff, admin\n")
		os.Exit(1)
	}
	subCmd := args[0]

	fs := flag.NewFlagSet("user", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "path to configuration file")
	isStaff := fs.Bool("staff", false, "create as staff user")
	isAdmin := fs.Bool("admin", false, "create as admin user")
	steamID := fs.String("steam-id", "", "link a Steam64 ID")
	displayName := fs.String("name", "", "display name (defaults to username)")
	search := fs.String("search", "", "filter by username, display name or Steam64 ID")
	fs.Parse(args[1:])
	remaining := fs.Args()

	_, store := openCLI(*configPath)
	defer store.Close()

	ctx := context.Background()

	var err error
	switch subCmd {
	case "add":
		err = cmdUserAdd(ctx, store, remaining, *isStaff, *isAdmin, *steamID, *displayName)
	case "remove":
		err = cmdUserRemove(ctx, store, remaining)
	case "list":
		err = cmdUserList(ctx, store, *search)
	case "reset":
		err = cmdUserReset(ctx, store, remaining)
	case "staff":
		err = cmdUserToggle(ctx, store, remaining, "staff")
	case "admin":
		err = cmdUserToggle(ctx, store, remaining, "admin")
	default:
		err = fmt.Errorf("unknown user command: %s (use: add, remove, list, reset, staff, admin)", subCmd)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func cmdUserAdd(ctx context.Context, store *storage.Store, args []string, isStaff, isAdmin bool, steamID, displayName string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: warden user add [--staff] [--admin] [--steam-id N] [--name S] <username>")
	}
	username := args[0]

	if _, err := store.GetUserByUsername(ctx, username); err == nil {
		return fmt.Errorf("user '%s' already exists", username)
	}

	password, err := promptPassword()
	if err != nil {
		return err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := store.CreateUser(ctx, storage.CreateUserParams{
		Username:     username,
		PasswordHash: hash,
		SteamID:      steamID,
		DisplayName:  displayName,
		IsStaff:      isStaff,
		IsAdmin:      isAdmin,
	})
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	role := "member"
	if user.IsAdmin {
		role = "admin"
	} else if user.IsStaff {
		role = "staff"
	}
	fmt.Printf("User '%s' created successfully (role: %s)\n", username, role)
	return nil
}

func cmdUserRemove(ctx context.Context, store *storage.Store, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: warden user remove <username>")
	}
	username := args[0]

	if err := store.DeleteUser(ctx, username); err != nil {
		return fmt.Errorf("failed to remove user: %w", err)
	}

	fmt.Printf("User '%s' removed\n", username)
	return nil
}

func cmdUserList(ctx context.Context, store *storage.Store, search string) error {
	users, total, err := store.ListUsers(ctx, search, 500, 0)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	if len(users) == 0 {
		fmt.Println("No users found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "USERNAME\tSTEAM64\tROLE\tWHITELIST\tLAST_LOGIN")
	fmt.Fprintln(w, "--------\t-------\t----\t---------\t----------")

	for _, user := range users {
		role := "member"
		if user.IsAdmin {
			role = "admin"
		} else if user.IsStaff {
			role = "staff"
		}
		steam := "-"
		if user.SteamID != "" {
			steam = user.SteamID
		}
		whitelist := []string{}
		if user.RoleMain {
			whitelist = append(whitelist, "main")
		}
		if user.RoleReserve {
			whitelist = append(whitelist, "reserve")
		}
		wl := "-"
		if len(whitelist) > 0 {
			wl = strings.Join(whitelist, ",")
		}
		lastLogin := "never"
		if user.LastLogin != nil {
			lastLogin = user.LastLogin.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", user.Username, steam, role, wl, lastLogin)
	}
	w.Flush()
	fmt.Printf("\n%d users total\n", total)
	return nil
}

func cmdUserReset(ctx context.Context, store *storage.Store, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: warden user reset <username>")
	}
	username := args[0]

	user, err := store.GetUserByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("user not found: %s", username)
	}

	password, err := promptPassword()
	if err != nil {
		return err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := store.ResetUserPassword(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("failed to reset password: %w", err)
	}

	fmt.Printf("Password reset for '%s' (user will be required to change it on next login)\n", username)
	return nil
}

func cmdUserToggle(ctx context.Context, store *storage.Store, args []string, flagName string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: warden user %s <username>", flagName)
	}
	username := args[0]

	user, err := store.GetUserByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("user not found: %s", username)
	}

	var upd storage.UserFlagsUpdate
	var next bool
	if flagName == "admin" {
		next = !user.IsAdmin
		upd.IsAdmin = &next
	} else {
		next = !user.IsStaff
		upd.IsStaff = &next
	}

	if err := store.UpdateUserFlags(ctx, user.ID, upd); err != nil {
		return fmt.Errorf("failed to update %s status: %w", flagName, err)
	}

	status := "removed from"
	if next {
		status = "granted"
	}
	fmt.Printf("User '%s': %s status %s\n", username, flagName, status)
	return nil
}

// cmdSettings handles settings subcommands
func cmdSettings(args []string) {
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "Error: settings subcommand required: show, rcon\n")
		os.Exit(1)
	}
	subCmd := args[0]

	fs := flag.NewFlagSet("settings", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "path to configuration file")
	enable := fs.Bool("enable", false, "enable RCON integration")
	disable := fs.Bool("disable", false, "disable RCON integration")
	host := fs.String("host", "", "game server host")
	port := fs.Int("port", 0, "game server RCON port")
	password := fs.Bool("password", false, "prompt for a new RCON password")
	fs.Parse(args[1:])

	_, store := openCLI(*configPath)
	defer store.Close()

	ctx := context.Background()

	switch subCmd {
	case "show":
		settings, err := store.RconSettings(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "Enabled:\t%v\n", settings.Enabled)
		fmt.Fprintf(w, "Host:\t%s\n", settings.Host)
		fmt.Fprintf(w, "Port:\t%d\n", settings.Port)
		passwordSet := "no"
		if settings.Password != "" {
			passwordSet = "yes"
		}
		fmt.Fprintf(w, "Password set:\t%s\n", passwordSet)
		fmt.Fprintf(w, "Usable:\t%v\n", settings.Usable())
		w.Flush()

	case "rcon":
		var upd rcon.SettingsUpdate
		if *enable && *disable {
			fmt.Fprintln(os.Stderr, "Error: --enable and --disable are mutually exclusive")
			os.Exit(1)
		}
		if *enable || *disable {
			upd.Enabled = enable
		}
		if *host != "" {
			upd.Host = host
		}
		if *port != 0 {
			upd.Port = port
		}
		if *password {
			fmt.Print("Enter RCON password: ")
			pw, err := term.ReadPassword(int(os.Stdin.Fd()))
			fmt.Println()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: failed to read password: %v\n", err)
				os.Exit(1)
			}
			s := string(pw)
			upd.Password = &s
		}

		if err := store.UpdateRconSettings(ctx, upd, 0); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("RCON settings updated")

	default:
		fmt.Fprintf(os.Stderr, "Error: unknown settings command: %s (use: show, rcon)\n", subCmd)
		os.Exit(1)
	}
}

// rconCLIClient builds a client from stored settings for one-shot commands
func rconCLIClient(configPath string) *rcon.Client {
	cfg, store := openCLI(configPath)
	defer store.Close()

	settings, err := store.RconSettings(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if !settings.Usable() {
		fmt.Fprintln(os.Stderr, "Error: RCON is not configured. Run 'warden settings rcon' first.")
		os.Exit(1)
	}

	sink := debuglog.New(cfg.Rcon.DebugLogPath)
	dialer := rcon.NewBattlEyeDialer(cfg.Rcon.DialTimeout, cfg.Rcon.ExecTimeout)
	return rcon.NewClient(settings, dialer, sink)
}

// cmdRcon handles live game server subcommands
func cmdRcon(args []string) {
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "Error: rcon subcommand required: test, players, kick, ban, unban, say, exec\n")
		os.Exit(1)
	}
	subCmd := args[0]

	fs := flag.NewFlagSet("rcon", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "path to configuration file")
	reason := fs.String("reason", "", "kick or ban reason shown to the player")
	minutes := fs.Int("minutes", 0, "ban duration in minutes (0 = permanent)")
	fs.Parse(args[1:])
	remaining := fs.Args()

	client := rconCLIClient(*configPath)
	defer client.Close()

	var err error
	switch subCmd {
	case "test":
		var count int
		count, err = client.TestConnection()
		if err == nil {
			fmt.Printf("Connection ok, %d players online\n", count)
		}

	case "players":
		var players []rcon.Player
		players, err = client.ListPlayers()
		if err == nil {
			if len(players) == 0 {
				fmt.Println("No players connected")
				break
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SLOT\tNAME\tGUID\tPING\tSTATE")
			fmt.Fprintln(w, "----\t----\t----\t----\t-----")
			for _, p := range players {
				state := "In Game"
				if p.InLobby {
					state = "Lobby"
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\n", p.Slot, p.Name, p.GUID, p.Ping, state)
			}
			w.Flush()
		}

	case "kick":
		if len(remaining) < 1 {
			err = fmt.Errorf("usage: warden rcon kick <target> [--reason R]")
			break
		}
		if err = client.KickPlayer(remaining[0], *reason); err == nil {
			fmt.Println("Player kicked")
		}

	case "ban":
		if len(remaining) < 1 {
			err = fmt.Errorf("usage: warden rcon ban <target> [--minutes N] [--reason R]")
			break
		}
		if err = client.BanPlayer(remaining[0], *reason, *minutes); err == nil {
			fmt.Println("Player banned on game server")
		}

	case "unban":
		if len(remaining) < 1 {
			err = fmt.Errorf("usage: warden rcon unban <guid>")
			break
		}
		if err = client.UnbanPlayer(remaining[0]); err == nil {
			fmt.Println("Server ban removed")
		}

	case "say":
		if len(remaining) < 1 {
			err = fmt.Errorf("usage: warden rcon say <message>")
			break
		}
		if err = client.Broadcast(strings.Join(remaining, " ")); err == nil {
			fmt.Println("Broadcast sent")
		}

	case "exec":
		if len(remaining) < 1 {
			err = fmt.Errorf("usage: warden rcon exec <command>")
			break
		}
		var output string
		if output, err = client.Exec(strings.Join(remaining, " ")); err == nil {
			fmt.Println(output)
		}

	default:
		err = fmt.Errorf("unknown rcon command: %s (use: test, players, kick, ban, unban, say, exec)", subCmd)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// cmdLog handles debug trail subcommands
func cmdLog(args []string) {
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "Error: log subcommand required: show, tail, clear\n")
		os.Exit(1)
	}
	subCmd := args[0]

	fs := flag.NewFlagSet("log", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "path to configuration file")
	fs.Parse(args[1:])
	remaining := fs.Args()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to load config from %s: %v\n", *configPath, err)
		os.Exit(1)
	}
	sink := debuglog.New(cfg.Rcon.DebugLogPath)

	switch subCmd {
	case "show":
		fmt.Println(sink.ReadAll())

	case "tail":
		n := 10
		if len(remaining) > 0 {
			if v, err := strconv.Atoi(remaining[0]); err == nil && v > 0 {
				n = v
			}
		}
		fmt.Println(sink.ReadTail(n))

	case "clear":
		if sink.Clear() {
			fmt.Println("Debug trail cleared")
		} else {
			fmt.Println("Debug trail was already empty")
		}

	default:
		fmt.Fprintf(os.Stderr, "Error: unknown log command: %s (use: show, tail, clear)\n", subCmd)
		os.Exit(1)
	}
}
