package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func envMap(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(LoadOptions{Cwd: dir, HomeDir: dir, LookupEnv: envMap(nil)})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Addr() != "0.0.0.0:8001" {
		t.Fatalf("Addr() = %q", cfg.Addr())
	}
	if cfg.BackendURL != DefaultBackendURL || cfg.RequestTimeout != 5*time.Second {
		t.Fatalf("backend = %q timeout = %s", cfg.BackendURL, cfg.RequestTimeout)
	}
	if cfg.Transport != TransportAuto || cfg.UserID != "default-user" || cfg.APIPrefix != "/api/v1" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "*" {
		t.Fatalf("CORSOrigins = %v", cfg.CORSOrigins)
	}
	if cfg.Source != "" {
		t.Fatalf("Source = %q, want none", cfg.Source)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestLoadLayering(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "taskgate.yaml"), `
server:
  port: 9000
  host: 127.0.0.1
  cors_origins: [https://a.example, https://b.example]
backend:
  url: http://file-backend:8002
  timeout: 750ms
  user_id: file-user
log:
  level: warn
`)
	writeFile(t, filepath.Join(dir, ".env"), "BACKEND_URL=http://dotenv-backend:8002\nMCP_PORT=9100\nLOG_FORMAT=json\n")

	cfg, err := Load(LoadOptions{
		Cwd:     dir,
		HomeDir: t.TempDir(),
		LookupEnv: envMap(map[string]string{
			"MCP_PORT":        "9200",
			"FORCE_HTTP_MODE": "true",
		}),
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Source != filepath.Join(dir, "taskgate.yaml") {
		t.Fatalf("Source = %q", cfg.Source)
	}
	if cfg.Port != 9200 {
		t.Fatalf("Port = %d, want environment to beat .env and file", cfg.Port)
	}
	if cfg.BackendURL != "http://dotenv-backend:8002" {
		t.Fatalf("BackendURL = %q, want .env to beat file", cfg.BackendURL)
	}
	if cfg.Host != "127.0.0.1" || cfg.UserID != "file-user" || cfg.LogLevel != "warn" || cfg.LogFormat != "json" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.RequestTimeout != 750*time.Millisecond || !cfg.ForceHTTP {
		t.Fatalf("timeout = %s force = %v", cfg.RequestTimeout, cfg.ForceHTTP)
	}
	if strings.Join(cfg.CORSOrigins, ",") != "https://a.example,https://b.example" {
		t.Fatalf("CORSOrigins = %v", cfg.CORSOrigins)
	}
}

func TestLoadEnvParsing(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(LoadOptions{
		Cwd:        dir,
		HomeDir:    dir,
		DotEnvPath: "-",
		LookupEnv: envMap(map[string]string{
			"REQUEST_TIMEOUT":             "12",
			"CORS_ORIGINS":                " https://x.example , ,https://y.example",
			"MCP_TRANSPORT":               "STDIO",
			"DEBUG":                       "TRUE",
			"BACKEND_OAUTH_TOKEN_URL":     "https://auth.example/token",
			"BACKEND_OAUTH_CLIENT_ID":     "gateway",
			"BACKEND_OAUTH_SCOPES":        "tasks.read,tasks.write",
			"BACKEND_OAUTH_CLIENT_SECRET": "s3cret",
		}),
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.RequestTimeout != 12*time.Second || cfg.Transport != TransportStdio || !cfg.Debug {
		t.Fatalf("cfg = %+v", cfg)
	}
	if strings.Join(cfg.CORSOrigins, ",") != "https://x.example,https://y.example" {
		t.Fatalf("CORSOrigins = %v", cfg.CORSOrigins)
	}
	if !cfg.OAuth.Enabled() || len(cfg.OAuth.Scopes) != 2 || cfg.OAuth.Backend().ClientSecret != "s3cret" {
		t.Fatalf("OAuth = %+v", cfg.OAuth)
	}
}

func TestLoadRejectsBadEnvValues(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(LoadOptions{
		Cwd:       dir,
		HomeDir:   dir,
		LookupEnv: envMap(map[string]string{"MCP_PORT": "eighty", "REQUEST_TIMEOUT": "soon"}),
	})
	if err == nil || !strings.Contains(err.Error(), "MCP_PORT") || !strings.Contains(err.Error(), "REQUEST_TIMEOUT") {
		t.Fatalf("Load() error = %v", err)
	}
}

func TestLoadExplicitPathMustExist(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(LoadOptions{
		ExplicitPath: filepath.Join(dir, "missing.yaml"),
		Cwd:          dir,
		HomeDir:      dir,
		LookupEnv:    envMap(nil),
	})
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("Load() error = %v", err)
	}
}

func TestLoadConfigPathFromEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	writeFile(t, path, "backend:\n  api_prefix: /api/v2\n")

	cfg, err := Load(LoadOptions{
		Cwd:       t.TempDir(),
		HomeDir:   dir,
		LookupEnv: envMap(map[string]string{ConfigPathEnv: path}),
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.APIPrefix != "/api/v2" || cfg.Source != path {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestDiscoverPathFromFirstMatch(t *testing.T) {
	cwd := t.TempDir()
	home := t.TempDir()
	homeConfig := filepath.Join(home, ".taskgate", "config.yaml")
	writeFile(t, homeConfig, "{}\n")

	path, found, err := DiscoverPathFrom("", cwd, home)
	if err != nil || !found || path != homeConfig {
		t.Fatalf("DiscoverPathFrom() = %q, %v, %v; want home config", path, found, err)
	}

	projectConfig := filepath.Join(cwd, "taskgate.yaml")
	writeFile(t, projectConfig, "{}\n")
	path, found, err = DiscoverPathFrom("", cwd, home)
	if err != nil || !found || path != projectConfig {
		t.Fatalf("DiscoverPathFrom() = %q, %v, %v; want project config", path, found, err)
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"port":      func(c *Config) { c.Port = 0 },
		"timeout":   func(c *Config) { c.RequestTimeout = 0 },
		"url":       func(c *Config) { c.BackendURL = "localhost:8002" },
		"transport": func(c *Config) { c.Transport = "carrier-pigeon" },
		"body":      func(c *Config) { c.MaxBodyBytes = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("Validate() error = nil, want non-nil")
			}
		})
	}
}
