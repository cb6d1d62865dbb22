package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Bootstrap modes for establishing a session.
const (
	AuthModeLogin = "login"
	AuthModeDemo  = "demo"
)

// ServerEndpoint holds the REST service location.
type ServerEndpoint struct {
	BaseURL    string `mapstructure:"base_url" yaml:"base_url"`
	TimeoutSec int    `mapstructure:"timeout_sec" yaml:"timeout_sec"`
}

// AuthConfig selects how a session is established on startup.
type AuthConfig struct {
	// Mode is "login" (prompt for credentials) or "demo" (auto-provision
	// a fixed demo account).
	Mode         string `mapstructure:"mode" yaml:"mode"`
	DemoUsername string `mapstructure:"demo_username" yaml:"demo_username"`
	DemoPassword string `mapstructure:"demo_password" yaml:"demo_password"`
	DemoEmail    string `mapstructure:"demo_email" yaml:"demo_email"`
}

// SyncConfig tunes the view synchronization engine.
type SyncConfig struct {
	DebounceMS       int `mapstructure:"debounce_ms" yaml:"debounce_ms"`
	PageSize         int `mapstructure:"page_size" yaml:"page_size"`
	OverviewPageSize int `mapstructure:"overview_page_size" yaml:"overview_page_size"`
}

// CredentialsConfig locates the file-backed keyring fallback.
type CredentialsConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	File  string `mapstructure:"file" yaml:"file"`
}

// AppConfig is the top-level client configuration.
type AppConfig struct {
	Server      ServerEndpoint    `mapstructure:"server" yaml:"server"`
	Auth        AuthConfig        `mapstructure:"auth" yaml:"auth"`
	Sync        SyncConfig        `mapstructure:"sync" yaml:"sync"`
	Credentials CredentialsConfig `mapstructure:"credentials" yaml:"credentials"`
	Log         LogConfig         `mapstructure:"log" yaml:"log"`
}

// Debounce returns the configured quiet period as a duration.
func (c *AppConfig) Debounce() time.Duration {
	return time.Duration(c.Sync.DebounceMS) * time.Millisecond
}

// Timeout returns the HTTP timeout as a duration.
func (c *AppConfig) Timeout() time.Duration {
	return time.Duration(c.Server.TimeoutSec) * time.Second
}

// ServerConfig is the configuration of the reference backend.
type ServerConfig struct {
	Listen        string `mapstructure:"listen" yaml:"listen"`
	DBPath        string `mapstructure:"db_path" yaml:"db_path"`
	TokenTTLSec   int    `mapstructure:"token_ttl_sec" yaml:"token_ttl_sec"`
	AdminUsername string `mapstructure:"admin_username" yaml:"admin_username"`
	AdminPassword string `mapstructure:"admin_password" yaml:"admin_password"`
	AdminEmail    string `mapstructure:"admin_email" yaml:"admin_email"`
}

// TokenTTL returns the session token lifetime.
func (c *ServerConfig) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLSec) * time.Second
}

// ConfigDir returns ~/.config/todosync, falling back to the working
// directory when the home directory cannot be resolved.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "todosync")
}

// DefaultConfigPath returns the default path for the client configuration
// file, located at ~/.config/todosync/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// DefaultServerConfigPath returns ~/.config/todosync/server.yaml.
func DefaultServerConfigPath() string {
	return filepath.Join(ConfigDir(), "server.yaml")
}

// clientDefaults registers every client default on v.
func clientDefaults(v *viper.Viper) {
	v.SetDefault("server.base_url", "http://127.0.0.1:8000/api/v1")
	v.SetDefault("server.timeout_sec", 30)
	v.SetDefault("auth.mode", AuthModeLogin)
	v.SetDefault("auth.demo_username", "demo")
	v.SetDefault("auth.demo_password", "123456")
	v.SetDefault("auth.demo_email", "demo@example.com")
	v.SetDefault("sync.debounce_ms", 300)
	v.SetDefault("sync.page_size", 50)
	v.SetDefault("sync.overview_page_size", 100)
	v.SetDefault("credentials.dir", filepath.Join(ConfigDir(), "credentials"))
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
}

// serverDefaults registers every backend default on v.
func serverDefaults(v *viper.Viper) {
	v.SetDefault("listen", ":8000")
	v.SetDefault("db_path", filepath.Join(ConfigDir(), "todo.db"))
	v.SetDefault("token_ttl_sec", 86400)
	v.SetDefault("admin_username", "admin")
	v.SetDefault("admin_password", "Admin@123456")
	v.SetDefault("admin_email", "")
}

// NewClientViper returns a viper instance with client defaults, reading
// path when it exists. Callers may bind flags to it before calling
// DecodeClientConfig.
func NewClientViper(path string) (*viper.Viper, error) {
	v := viper.New()
	clientDefaults(v)
	v.SetEnvPrefix("TODOSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := readIfPresent(v, path); err != nil {
		return nil, err
	}
	return v, nil
}

// DecodeClientConfig unmarshals v into an AppConfig and validates it.
func DecodeClientConfig(v *viper.Viper) (*AppConfig, error) {
	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.Auth.Mode != AuthModeLogin && cfg.Auth.Mode != AuthModeDemo {
		return nil, fmt.Errorf("invalid auth.mode %q: want %q or %q",
			cfg.Auth.Mode, AuthModeLogin, AuthModeDemo)
	}
	if cfg.Sync.DebounceMS < 0 {
		cfg.Sync.DebounceMS = 0
	}
	if cfg.Sync.PageSize <= 0 {
		cfg.Sync.PageSize = 50
	}
	if cfg.Sync.OverviewPageSize <= 0 {
		cfg.Sync.OverviewPageSize = 100
	}
	return cfg, nil
}

// LoadConfig reads client configuration from the given YAML file path.
// If the file does not exist, defaults are returned.
func LoadConfig(path string) (*AppConfig, error) {
	v, err := NewClientViper(path)
	if err != nil {
		return nil, err
	}
	return DecodeClientConfig(v)
}

// NewServerViper returns a viper instance with backend defaults, reading
// path when it exists.
func NewServerViper(path string) (*viper.Viper, error) {
	v := viper.New()
	serverDefaults(v)
	v.SetEnvPrefix("TODOSERVER")
	v.AutomaticEnv()
	if err := readIfPresent(v, path); err != nil {
		return nil, err
	}
	return v, nil
}

// DecodeServerConfig unmarshals v into a ServerConfig.
func DecodeServerConfig(v *viper.Viper) (*ServerConfig, error) {
	cfg := &ServerConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing server config: %w", err)
	}
	if cfg.TokenTTLSec <= 0 {
		cfg.TokenTTLSec = 86400
	}
	return cfg, nil
}

func readIfPresent(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("reading config %s: %w", path, err)
	}
	return nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("server", cfg.Server)
	v.Set("auth", cfg.Auth)
	v.Set("sync", cfg.Sync)
	v.Set("credentials", cfg.Credentials)
	v.Set("log", cfg.Log)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
