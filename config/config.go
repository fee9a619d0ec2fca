// CLAUDE:SUMMARY ultradoc configuration: YAML or TOML file with pipeline, fetch, server and store sections, defaults and validation.
// Package config loads the ultradoc configuration file.
//
// The format follows the extension: .yaml/.yml or .toml. Unknown keys are
// rejected in both. The default path comes from $ULTRADOC_CONFIG.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/ultradoc/docpipe"
	"github.com/hazyhaar/ultradoc/opendoc"
	"github.com/hazyhaar/ultradoc/scanner"
)

// EnvPath names the environment variable holding the default config path.
const EnvPath = "ULTRADOC_CONFIG"

// ErrUnsupportedFormat is returned for config files that are neither YAML
// nor TOML.
var ErrUnsupportedFormat = errors.New("config: unsupported file format")

// Config is the top-level ultradoc configuration.
type Config struct {
	Pipeline docpipe.Config `yaml:"pipeline" toml:"pipeline"`
	Fetch    FetchConfig    `yaml:"fetch" toml:"fetch"`
	Server   ServerConfig   `yaml:"server" toml:"server"`
	Store    StoreConfig    `yaml:"store" toml:"store"`
}

// FetchConfig controls document acquisition.
type FetchConfig struct {
	Mode       string        `yaml:"mode" toml:"mode"` // http | browser
	BaseURL    string        `yaml:"base_url" toml:"base_url"`
	UserAgent  string        `yaml:"user_agent" toml:"user_agent"`
	Timeout    time.Duration `yaml:"timeout" toml:"timeout"`
	CookieFile string        `yaml:"cookie_file" toml:"cookie_file"`
	MaxBody    int64         `yaml:"max_body" toml:"max_body"`
	Browser    BrowserConfig `yaml:"browser" toml:"browser"`
}

// BrowserConfig controls the Chrome used in browser mode.
type BrowserConfig struct {
	Remote       string `yaml:"remote" toml:"remote"`
	Headful      bool   `yaml:"headful" toml:"headful"`
	CookieDomain string `yaml:"cookie_domain" toml:"cookie_domain"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Addr         string        `yaml:"addr" toml:"addr"`
	MaxBody      int64         `yaml:"max_body" toml:"max_body"`
	ReadTimeout  time.Duration `yaml:"read_timeout" toml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" toml:"write_timeout"`
	// BasicAuthUser enables Basic Auth when set; BasicAuthHash is the
	// bcrypt hash of the password.
	BasicAuthUser string `yaml:"basic_auth_user" toml:"basic_auth_user"`
	BasicAuthHash string `yaml:"basic_auth_hash" toml:"basic_auth_hash"`
}

// StoreConfig controls the conversion store. An empty Path disables it
// along with the audit log kept in the same database.
type StoreConfig struct {
	Path           string        `yaml:"path" toml:"path"`
	AuditRetention time.Duration `yaml:"audit_retention" toml:"audit_retention"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads path, or $ULTRADOC_CONFIG when path is empty, or returns
// Default when both are empty.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvPath)
	}
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile reads a YAML or TOML configuration file.
func LoadFile(path string) (*Config, error) {
	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	case ".toml":
		meta, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return nil, fmt.Errorf("config: %s: unknown keys %s", path, strings.Join(keys, ", "))
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Pipeline.HeadingAnchor == "" {
		c.Pipeline.HeadingAnchor = "start"
	}
	if c.Fetch.Mode == "" {
		c.Fetch.Mode = "http"
	}
	if c.Fetch.BaseURL == "" {
		c.Fetch.BaseURL = opendoc.DefaultBaseURL
	}
	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = opendoc.DefaultUserAgent
	}
	if c.Fetch.Timeout <= 0 {
		c.Fetch.Timeout = 60 * time.Second
	}
	if c.Fetch.MaxBody <= 0 {
		c.Fetch.MaxBody = 64 << 20
	}
	if c.Fetch.Browser.CookieDomain == "" {
		c.Fetch.Browser.CookieDomain = ".qq.com"
	}
	if c.Store.AuditRetention <= 0 {
		c.Store.AuditRetention = 30 * 24 * time.Hour
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.MaxBody <= 0 {
		c.Server.MaxBody = 64 << 20
	}
	if c.Server.ReadTimeout <= 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout <= 0 {
		c.Server.WriteTimeout = 60 * time.Second
	}
}

// Validate checks values that defaults cannot repair.
func (c *Config) Validate() error {
	if _, ok := scanner.ParseHeadingAnchor(c.Pipeline.HeadingAnchor); !ok {
		return fmt.Errorf("pipeline.heading_anchor: %q is not start or end", c.Pipeline.HeadingAnchor)
	}
	switch c.Fetch.Mode {
	case "http", "browser":
	default:
		return fmt.Errorf("fetch.mode: %q is not http or browser", c.Fetch.Mode)
	}
	if (c.Server.BasicAuthUser == "") != (c.Server.BasicAuthHash == "") {
		return errors.New("server: basic_auth_user and basic_auth_hash go together")
	}
	if c.Server.BasicAuthHash != "" {
		if _, err := bcrypt.Cost([]byte(c.Server.BasicAuthHash)); err != nil {
			return fmt.Errorf("server.basic_auth_hash: %w", err)
		}
	}
	return nil
}
