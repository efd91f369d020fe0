package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Rcon     RconConfig     `yaml:"rcon"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	HTTPPort   int    `yaml:"http_port"`
	StaticDir  string `yaml:"static_dir"`
}

// DatabaseConfig holds SQLite settings
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds authentication settings
type AuthConfig struct {
	JWTSecret     string        `yaml:"jwt_secret"`
	TokenDuration time.Duration `yaml:"token_duration"`
}

// RconConfig holds client-side RCON behavior. Connection details
// (host/port/password/enabled) live in the database settings table so staff
// can change them from the dashboard; only timeouts and the debug trail
// location are file configuration.
type RconConfig struct {
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ExecTimeout  time.Duration `yaml:"exec_timeout"`
	DebugLogPath string        `yaml:"debug_log_path"`
}

// LogConfig holds application logger settings
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Set defaults
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = "127.0.0.1"
	}
	if cfg.Server.HTTPPort == 0 {
		cfg.Server.HTTPPort = 8080
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "/var/lib/warden/warden.db"
	}
	// Note: StaticDir intentionally has no default - empty means don't serve static files

	// Auth defaults
	if cfg.Auth.TokenDuration == 0 {
		cfg.Auth.TokenDuration = 24 * time.Hour
	}

	// RCON defaults
	if cfg.Rcon.DialTimeout == 0 {
		cfg.Rcon.DialTimeout = 5 * time.Second
	}
	if cfg.Rcon.ExecTimeout == 0 {
		cfg.Rcon.ExecTimeout = 10 * time.Second
	}
	if cfg.Rcon.DebugLogPath == "" {
		cfg.Rcon.DebugLogPath = "/var/lib/warden/rcon-debug.log"
	}

	// Logger defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stderr"
	}

	return &cfg, nil
}
