package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

const (
	EnvConfig    = "THEMESWITCH_CONFIG"
	EnvAPIKey    = "THEMESWITCH_API_KEY"
	EnvAPISecret = "THEMESWITCH_API_SECRET"
)

const (
	SchemeAuto  = ""
	SchemeLight = "light"
	SchemeDark  = "dark"
)

type Config struct {
	Bind        string `json:"bind" toml:"bind"`
	Host        string `json:"host" toml:"host"`
	Port        int    `json:"port" toml:"port"`
	BasePath    string `json:"base_path" toml:"base_path"`
	LogLevel    string `json:"log_level" toml:"log_level"`
	LogFile     string `json:"log_file" toml:"log_file"`
	DataDir     string `json:"data_dir" toml:"data_dir"`
	HTTPS       bool   `json:"https" toml:"https"`
	CertFile    string `json:"cert_file" toml:"cert_file"`
	KeyFile     string `json:"key_file" toml:"key_file"`
	ColorScheme string `json:"color_scheme" toml:"color_scheme"`

	ProviderURL      string   `json:"provider_url" toml:"provider_url"`
	InstalledApps    []string `json:"installed_apps" toml:"installed_apps"`
	CandidateTimeout string   `json:"candidate_timeout" toml:"candidate_timeout"`
	StylesheetBase   string   `json:"stylesheet_base" toml:"stylesheet_base"`

	ExtensionEnabled bool   `json:"extension_enabled" toml:"extension_enabled"`
	ExtensionApp     string `json:"extension_app" toml:"extension_app"`
	ThemesDir        string `json:"themes_dir" toml:"themes_dir"`

	APIKey    string `json:"-" toml:"-"`
	APISecret string `json:"-" toml:"-"`
}

func DefaultPaths() (configPath, dataDir string, err error) {
	cfgRoot, err := os.UserConfigDir()
	if err != nil {
		return "", "", fmt.Errorf("resolve user config dir: %w", err)
	}
	var dataRoot string
	switch runtime.GOOS {
	case "windows":
		dataRoot = cfgRoot
	default:
		if p, derr := os.UserHomeDir(); derr == nil {
			dataRoot = filepath.Join(p, ".local", "share")
		} else {
			dataRoot = cfgRoot
		}
	}
	configPath = filepath.Join(cfgRoot, "themeswitch", "config.json")
	dataDir = filepath.Join(dataRoot, "themeswitch")
	return configPath, dataDir, nil
}

func Default(dataDir string) Config {
	return Config{
		Bind:             "0.0.0.0",
		Port:             7341,
		BasePath:         "/",
		LogLevel:         "info",
		DataDir:          dataDir,
		CandidateTimeout: "10s",
		ExtensionEnabled: true,
		ExtensionApp:     "themeswitch",
		ThemesDir:        filepath.Join(dataDir, "themes"),
	}
}

func NormalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if u, err := url.Parse(p); err == nil && u.Scheme != "" && u.Host != "" {
		p = u.Path
	}
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	return path.Clean("/" + p)
}

// LoadOrDefault reads configPath (JSON, or TOML for a .toml extension) over
// the defaults. A missing file is not an error. Credentials come from the
// environment, with a .env file next to the config as fallback.
func LoadOrDefault(configPath, dataDirOverride string) (Config, error) {
	_, defaultData, err := DefaultPaths()
	if err != nil {
		return Config{}, err
	}
	if dataDirOverride != "" {
		defaultData = dataDirOverride
	}
	cfg := Default(defaultData)

	b, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := decode(configPath, b, &cfg); err != nil {
			return Config{}, err
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if dataDirOverride != "" {
		cfg.DataDir = dataDirOverride
	}
	cfg.BasePath = NormalizeBasePath(cfg.BasePath)
	if err := LoadCredentials(&cfg, filepath.Join(filepath.Dir(configPath), ".env"), ".env"); err != nil {
		return Config{}, err
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decode(configPath string, b []byte, cfg *Config) error {
	if strings.EqualFold(filepath.Ext(configPath), ".toml") {
		if err := toml.Unmarshal(b, cfg); err != nil {
			return fmt.Errorf("decode config: %w", err)
		}
		return nil
	}
	if err := json.Unmarshal(b, cfg); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

func LoadCredentials(cfg *Config, envFiles ...string) error {
	var present []string
	for _, f := range envFiles {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		}
	}
	if len(present) > 0 {
		if err := godotenv.Load(present...); err != nil {
			return fmt.Errorf("load env file: %w", err)
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvAPIKey)); v != "" {
		cfg.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvAPISecret)); v != "" {
		cfg.APISecret = v
	}
	return nil
}

func Save(configPath string, cfg Config) error {
	if err := Validate(cfg); err != nil {
		return err
	}
	cfg.BasePath = NormalizeBasePath(cfg.BasePath)
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	var (
		buf []byte
		err error
	)
	if strings.EqualFold(filepath.Ext(configPath), ".toml") {
		buf, err = toml.Marshal(cfg)
	} else {
		buf, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(configPath, buf, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func Validate(cfg Config) error {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("invalid port %d", cfg.Port)
	}
	switch strings.ToLower(cfg.LogLevel) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log level %q", cfg.LogLevel)
	}
	switch cfg.ColorScheme {
	case SchemeAuto, SchemeLight, SchemeDark:
	default:
		return fmt.Errorf("invalid color scheme %q", cfg.ColorScheme)
	}
	if cfg.CandidateTimeout != "" {
		d, err := time.ParseDuration(cfg.CandidateTimeout)
		if err != nil || d <= 0 {
			return fmt.Errorf("invalid candidate timeout %q", cfg.CandidateTimeout)
		}
	}
	if cfg.ProviderURL != "" {
		u, err := url.Parse(cfg.ProviderURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid provider url %q", cfg.ProviderURL)
		}
	}
	if cfg.ExtensionEnabled && strings.TrimSpace(cfg.ExtensionApp) == "" {
		return fmt.Errorf("extension enabled but extension_app is empty")
	}
	if cfg.HTTPS && (cfg.CertFile == "" || cfg.KeyFile == "") {
		return fmt.Errorf("https enabled but cert/key missing")
	}
	return nil
}

func (c Config) Timeout() time.Duration {
	d, err := time.ParseDuration(c.CandidateTimeout)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

// Apps is the configured installed-app list, or the extension app alone
// when the built-in provider host is the only backend.
func (c Config) Apps() []string {
	if len(c.InstalledApps) > 0 {
		return c.InstalledApps
	}
	if c.ProviderURL == "" && c.ExtensionEnabled {
		return []string{c.ExtensionApp}
	}
	return nil
}

func ConfigPathFromEnv() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfig)); p != "" {
		return p, nil
	}
	cfgPath, _, err := DefaultPaths()
	return cfgPath, err
}
