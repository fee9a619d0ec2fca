package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFile_YAML(t *testing.T) {
	path := writeConfig(t, "ultradoc.yaml", `
pipeline:
  max_payload_size: 1048576
  heading_anchor: end
  workers: 3
fetch:
  mode: browser
  timeout: 45s
  cookie_file: /etc/ultradoc/cookies.txt
  browser:
    remote: ws://chrome:9222/devtools/browser/x
server:
  addr: 127.0.0.1:9000
store:
  path: /var/lib/ultradoc/ultradoc.db
  audit_retention: 168h
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Pipeline.MaxPayloadSize != 1<<20 || cfg.Pipeline.HeadingAnchor != "end" || cfg.Pipeline.Workers != 3 {
		t.Errorf("pipeline = %+v", cfg.Pipeline)
	}
	if cfg.Fetch.Mode != "browser" || cfg.Fetch.Timeout != 45*time.Second || cfg.Fetch.Browser.Remote == "" {
		t.Errorf("fetch = %+v", cfg.Fetch)
	}
	if cfg.Server.Addr != "127.0.0.1:9000" || cfg.Server.MaxBody != 64<<20 {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Store.Path != "/var/lib/ultradoc/ultradoc.db" || cfg.Store.AuditRetention != 7*24*time.Hour {
		t.Errorf("store = %+v", cfg.Store)
	}
}

func TestLoadFile_TOML(t *testing.T) {
	path := writeConfig(t, "ultradoc.toml", `
[pipeline]
max_depth = 12

[fetch]
user_agent = "ultradoc-test"
timeout = "10s"
max_body = 2048

[fetch.browser]
headful = true
cookie_domain = "doc.weixin.qq.com"

[server]
read_timeout = "5s"
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Pipeline.MaxDepth != 12 || cfg.Pipeline.HeadingAnchor != "start" {
		t.Errorf("pipeline = %+v", cfg.Pipeline)
	}
	if cfg.Fetch.UserAgent != "ultradoc-test" || cfg.Fetch.Timeout != 10*time.Second || cfg.Fetch.MaxBody != 2048 {
		t.Errorf("fetch = %+v", cfg.Fetch)
	}
	if !cfg.Fetch.Browser.Headful || cfg.Fetch.Browser.CookieDomain != "doc.weixin.qq.com" {
		t.Errorf("browser = %+v", cfg.Fetch.Browser)
	}
	if cfg.Server.ReadTimeout != 5*time.Second || cfg.Server.Addr != ":8080" {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Store.AuditRetention != 30*24*time.Hour {
		t.Errorf("audit retention = %v", cfg.Store.AuditRetention)
	}
}

func TestLoadFile_UnknownKeys(t *testing.T) {
	yamlPath := writeConfig(t, "bad.yml", "fetch:\n  mdoe: http\n")
	if _, err := LoadFile(yamlPath); err == nil {
		t.Error("yaml: expected error for unknown key")
	}

	tomlPath := writeConfig(t, "bad.toml", "[fetch]\nmdoe = \"http\"\n")
	_, err := LoadFile(tomlPath)
	if err == nil || !strings.Contains(err.Error(), "fetch.mdoe") {
		t.Errorf("toml: err = %v, want unknown key fetch.mdoe", err)
	}
}

func TestLoadFile_Errors(t *testing.T) {
	if _, err := LoadFile(writeConfig(t, "cfg.json", "{}")); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("json: err = %v, want ErrUnsupportedFormat", err)
	}
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := LoadFile(writeConfig(t, "cfg.yaml", "pipeline: [1, 2")); err == nil {
		t.Error("expected error for malformed yaml")
	}
}

func TestLoadFile_Empty(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, "empty.yaml", ""))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Fetch.Mode != "http" || cfg.Server.Addr != ":8080" {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"bad anchor", func(c *Config) { c.Pipeline.HeadingAnchor = "middle" }, true},
		{"bad mode", func(c *Config) { c.Fetch.Mode = "ftp" }, true},
		{"user without hash", func(c *Config) { c.Server.BasicAuthUser = "admin" }, true},
		{"bad hash", func(c *Config) {
			c.Server.BasicAuthUser = "admin"
			c.Server.BasicAuthHash = "plaintext"
		}, true},
		{"auth", func(c *Config) {
			c.Server.BasicAuthUser = "admin"
			c.Server.BasicAuthHash = string(hash)
		}, false},
	}
	for _, tt := range tests {
		cfg := Default()
		tt.mutate(cfg)
		if err := cfg.Validate(); (err != nil) != tt.wantErr {
			t.Errorf("%s: err = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
	}
}

func TestLoad_Env(t *testing.T) {
	path := writeConfig(t, "env.yaml", "server:\n  addr: :9999\n")
	t.Setenv(EnvPath, path)

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Addr != ":9999" {
		t.Errorf("addr = %q, want :9999 from $%s", cfg.Server.Addr, EnvPath)
	}

	t.Setenv(EnvPath, "")
	cfg, err = Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("default addr = %q", cfg.Server.Addr)
	}
}
