// Package config loads service settings from a YAML or TOML file, then
// applies environment overrides and defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/dynresp/auth"
)

// EnvLocal is the development environment. It forces Debug on.
const EnvLocal = "local"

// Config holds all dynresp configuration.
type Config struct {
	Env       string          `yaml:"env" toml:"env"`
	Debug     bool            `yaml:"debug" toml:"debug"`
	LogLevel  string          `yaml:"log_level" toml:"log_level"`
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Templates TemplatesConfig `yaml:"templates" toml:"templates"`
	Browser   BrowserConfig   `yaml:"browser" toml:"browser"`
	RichText  RichTextConfig  `yaml:"rich_text" toml:"rich_text"`
	Audit     AuditConfig     `yaml:"audit" toml:"audit"`
	Auth      AuthConfig      `yaml:"auth" toml:"auth"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host            string          `yaml:"host" toml:"host"`
	Port            int             `yaml:"port" toml:"port"`
	ReadTimeout     Duration        `yaml:"read_timeout" toml:"read_timeout"`
	WriteTimeout    Duration        `yaml:"write_timeout" toml:"write_timeout"`
	ShutdownTimeout Duration        `yaml:"shutdown_timeout" toml:"shutdown_timeout"`
	MaxBody         int64           `yaml:"max_body" toml:"max_body"`
	RateLimit       RateLimitConfig `yaml:"rate_limit" toml:"rate_limit"`
}

// RateLimitConfig is a per-IP fixed window. Zero MaxRequests disables it.
type RateLimitConfig struct {
	MaxRequests int      `yaml:"max_requests" toml:"max_requests"`
	Window      Duration `yaml:"window" toml:"window"`
}

// TemplatesConfig points at a directory of view overrides.
type TemplatesConfig struct {
	Dir string `yaml:"dir" toml:"dir"`
}

// BrowserConfig controls the headless Chrome used for images and PDFs.
type BrowserConfig struct {
	Disabled        bool     `yaml:"disabled" toml:"disabled"`
	RemoteURL       string   `yaml:"remote_url" toml:"remote_url"`
	Bin             string   `yaml:"bin" toml:"bin"`
	Stealth         bool     `yaml:"stealth" toml:"stealth"`
	NoSandbox       bool     `yaml:"no_sandbox" toml:"no_sandbox"`
	MaxConcurrent   int      `yaml:"max_concurrent" toml:"max_concurrent"`
	RecycleInterval Duration `yaml:"recycle_interval" toml:"recycle_interval"`
	RenderTimeout   Duration `yaml:"render_timeout" toml:"render_timeout"`
	ViewportWidth   int      `yaml:"viewport_width" toml:"viewport_width"`
	ViewportHeight  int      `yaml:"viewport_height" toml:"viewport_height"`
	BlockResources  []string `yaml:"block_resources" toml:"block_resources"`
}

// RichTextConfig controls the console panel.
type RichTextConfig struct {
	Width int  `yaml:"width" toml:"width"`
	Color bool `yaml:"color" toml:"color"`
}

// AuditConfig enables the sqlite event store when DBPath is set.
type AuditConfig struct {
	DBPath string `yaml:"db_path" toml:"db_path"`
	Buffer int    `yaml:"buffer" toml:"buffer"`
}

// AuthConfig holds the Basic user table and the JWT signing secret.
type AuthConfig struct {
	JWTSecret string      `yaml:"jwt_secret" toml:"jwt_secret"`
	TokenTTL  Duration    `yaml:"token_ttl" toml:"token_ttl"`
	Users     []auth.User `yaml:"users" toml:"users"`
}

// Addr returns host:port.
func (c *Config) Addr() string {
	return c.Server.Host + ":" + strconv.Itoa(c.Server.Port)
}

func (c *Config) defaults() {
	if c.Env == "" {
		c.Env = "production"
	}
	if c.Env == EnvLocal {
		c.Debug = true
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Debug {
		c.LogLevel = "debug"
	}
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port <= 0 {
		c.Server.Port = 8000
	}
	if c.Server.ReadTimeout <= 0 {
		c.Server.ReadTimeout = Duration(15 * time.Second)
	}
	if c.Server.WriteTimeout <= 0 {
		c.Server.WriteTimeout = Duration(60 * time.Second)
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = Duration(10 * time.Second)
	}
	if c.Server.MaxBody <= 0 {
		c.Server.MaxBody = 1 << 20
	}
	if c.Server.RateLimit.MaxRequests > 0 && c.Server.RateLimit.Window <= 0 {
		c.Server.RateLimit.Window = Duration(time.Minute)
	}
	if c.RichText.Width <= 0 {
		c.RichText.Width = 80
	}
	if c.Audit.Buffer <= 0 {
		c.Audit.Buffer = 1024
	}
	if c.Auth.TokenTTL <= 0 {
		c.Auth.TokenTTL = Duration(24 * time.Hour)
	}
}

// Default returns a configuration with only defaults applied.
func Default() *Config {
	c := &Config{}
	c.defaults()
	return c
}

// Load reads path (or the first dynresp config found under the XDG config
// dirs when path is empty), applies environment overrides, then defaults.
// A missing XDG file is not an error; a missing explicit path is.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path == "" {
		path = discover()
	}
	if path != "" {
		if err := LoadFile(path, cfg); err != nil {
			return nil, err
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	cfg.defaults()
	return cfg, nil
}

// LoadFile decodes path into cfg. Files ending in .toml are TOML,
// anything else YAML.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	default:
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func discover() string {
	for _, name := range []string{"dynresp/config.yaml", "dynresp/config.yml", "dynresp/config.toml"} {
		if p, err := xdg.SearchConfigFile(name); err == nil {
			return p
		}
	}
	return ""
}

func applyEnv(c *Config) error {
	str := map[string]*string{
		"DYNRESP_ENV":   &c.Env,
		"DYNRESP_HOST":  &c.Server.Host,
		"LOG_LEVEL":     &c.LogLevel,
		"TEMPLATES_DIR": &c.Templates.Dir,
		"CHROME_URL":    &c.Browser.RemoteURL,
		"CHROME_BIN":    &c.Browser.Bin,
		"AUDIT_DB":      &c.Audit.DBPath,
		"JWT_SECRET":    &c.Auth.JWTSecret,
	}
	for k, dst := range str {
		if v, ok := os.LookupEnv(k); ok && v != "" {
			*dst = v
		}
	}
	if v := os.Getenv("DYNRESP_DEBUG"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: DYNRESP_DEBUG: %w", err)
		}
		c.Debug = b
	}
	if v := os.Getenv("PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil || p <= 0 || p > 65535 {
			return fmt.Errorf("config: PORT %q is not a valid port", v)
		}
		c.Server.Port = p
	}
	return nil
}
