// Package config loads taskgate settings from defaults, an optional YAML
// file, an optional .env file and the process environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/petal-labs/taskgate/backend"
)

const (
	projectConfigName = "taskgate.yaml"
	homeConfigName    = "config.yaml"
	homeConfigDir     = ".taskgate"

	// ConfigPathEnv names an explicit config file.
	ConfigPathEnv = "TASKGATE_CONFIG"
)

// Defaults.
const (
	DefaultHost           = "0.0.0.0"
	DefaultPort           = 8001
	DefaultBackendURL     = "http://localhost:8002"
	DefaultRequestTimeout = 5 * time.Second
	DefaultMaxBodyBytes   = 1 << 20
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "text"
	ServerName            = "taskgate"
	ServerVersion         = "1.0.0"
)

// OAuth holds optional client-credentials settings for the backend.
type OAuth struct {
	TokenURL     string   `yaml:"token_url,omitempty"`
	ClientID     string   `yaml:"client_id,omitempty"`
	ClientSecret string   `yaml:"client_secret,omitempty"`
	Scopes       []string `yaml:"scopes,omitempty"`
}

// Enabled reports whether a token endpoint and client id are configured.
func (o OAuth) Enabled() bool {
	return strings.TrimSpace(o.TokenURL) != "" && strings.TrimSpace(o.ClientID) != ""
}

// Backend converts to the backend client's OAuth settings.
func (o OAuth) Backend() backend.OAuthConfig {
	return backend.OAuthConfig{
		TokenURL:     o.TokenURL,
		ClientID:     o.ClientID,
		ClientSecret: o.ClientSecret,
		Scopes:       append([]string(nil), o.Scopes...),
	}
}

// Config is the resolved process configuration.
type Config struct {
	Host           string
	Port           int
	Transport      Transport
	ForceHTTP      bool
	BackendURL     string
	APIPrefix      string
	UserID         string
	RequestTimeout time.Duration
	CORSOrigins    []string
	MaxBodyBytes   int64
	LogLevel       string
	LogFormat      string
	Debug          bool
	OAuth          OAuth
	ServerName     string
	ServerVersion  string
	// Source is the config file that was loaded, if any.
	Source string
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Host:           DefaultHost,
		Port:           DefaultPort,
		Transport:      TransportAuto,
		BackendURL:     DefaultBackendURL,
		APIPrefix:      backend.DefaultAPIPrefix,
		UserID:         backend.DefaultUserID,
		RequestTimeout: DefaultRequestTimeout,
		CORSOrigins:    []string{"*"},
		MaxBodyBytes:   DefaultMaxBodyBytes,
		LogLevel:       DefaultLogLevel,
		LogFormat:      DefaultLogFormat,
		ServerName:     ServerName,
		ServerVersion:  ServerVersion,
	}
}

// Addr is the HTTP listen address.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate rejects settings the gateway cannot start with.
func (c Config) Validate() error {
	var errs []error
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("request timeout must be positive, got %s", c.RequestTimeout))
	}
	if c.MaxBodyBytes <= 0 {
		errs = append(errs, fmt.Errorf("max body bytes must be positive, got %d", c.MaxBodyBytes))
	}
	if u, err := url.Parse(strings.TrimSpace(c.BackendURL)); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("backend url %q must be an absolute http(s) URL", c.BackendURL))
	}
	if _, err := ParseTransport(string(c.Transport)); err != nil {
		errs = append(errs, err)
	}
	if c.OAuth.Enabled() {
		if u, err := url.Parse(c.OAuth.TokenURL); err != nil || u.Host == "" {
			errs = append(errs, fmt.Errorf("oauth token url %q is invalid", c.OAuth.TokenURL))
		}
	}
	return errors.Join(errs...)
}

// LoadOptions control where Load looks. Zero values use the process state.
type LoadOptions struct {
	// ExplicitPath is the --config flag value.
	ExplicitPath string
	Cwd          string
	HomeDir      string
	// LookupEnv defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)
	// DotEnvPath defaults to ".env" in Cwd. Set to "-" to skip.
	DotEnvPath string
}

// Load resolves the configuration. Later layers win: defaults, YAML file,
// .env file, process environment. Values from .env never replace variables
// already present in the environment.
func Load(opts LoadOptions) (Config, error) {
	if opts.LookupEnv == nil {
		opts.LookupEnv = os.LookupEnv
	}
	if opts.Cwd == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("resolve working directory: %w", err)
		}
		opts.Cwd = cwd
	}
	if opts.HomeDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			opts.HomeDir = home
		}
	}

	cfg := Default()

	explicit := strings.TrimSpace(opts.ExplicitPath)
	if explicit == "" {
		explicit, _ = opts.LookupEnv(ConfigPathEnv)
	}
	path, found, err := DiscoverPathFrom(explicit, opts.Cwd, opts.HomeDir)
	if err != nil {
		return Config{}, err
	}
	if found {
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, err
		}
		cfg.Source = path
	}

	lookup := opts.LookupEnv
	if opts.DotEnvPath != "-" {
		dotenv := opts.DotEnvPath
		if dotenv == "" {
			dotenv = filepath.Join(opts.Cwd, ".env")
		}
		values, err := readDotEnv(dotenv)
		if err != nil {
			return Config{}, err
		}
		lookup = layeredLookup(opts.LookupEnv, values)
	}
	if err := applyEnv(&cfg, lookup); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DiscoverPathFrom resolves the config file with first-match semantics: the
// explicit path if given (and then it must exist), else ./taskgate.yaml, else
// ~/.taskgate/config.yaml.
func DiscoverPathFrom(explicitPath, cwd, homeDir string) (string, bool, error) {
	candidates := make([]string, 0, 2)
	if clean := strings.TrimSpace(explicitPath); clean != "" {
		candidates = append(candidates, filepath.Clean(clean))
	} else {
		candidates = append(candidates, filepath.Join(cwd, projectConfigName))
		if homeDir != "" {
			candidates = append(candidates, filepath.Join(homeDir, homeConfigDir, homeConfigName))
		}
	}

	for i, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return candidate, true, nil
		}
		if errors.Is(err, os.ErrNotExist) || err == nil {
			if i == 0 && strings.TrimSpace(explicitPath) != "" {
				return "", false, fmt.Errorf("config file %q not found", candidate)
			}
			continue
		}
		return "", false, fmt.Errorf("checking config path %q: %w", candidate, err)
	}
	return "", false, nil
}

type fileConfig struct {
	Server struct {
		Host         *string  `yaml:"host"`
		Port         *int     `yaml:"port"`
		Transport    *string  `yaml:"transport"`
		ForceHTTP    *bool    `yaml:"force_http"`
		CORSOrigins  []string `yaml:"cors_origins"`
		MaxBodyBytes *int64   `yaml:"max_body_bytes"`
	} `yaml:"server"`
	Backend struct {
		URL       *string `yaml:"url"`
		APIPrefix *string `yaml:"api_prefix"`
		UserID    *string `yaml:"user_id"`
		Timeout   *string `yaml:"timeout"`
		OAuth     *OAuth  `yaml:"oauth"`
	} `yaml:"backend"`
	Log struct {
		Level  *string `yaml:"level"`
		Format *string `yaml:"format"`
		Debug  *bool   `yaml:"debug"`
	} `yaml:"log"`
}

func applyFile(cfg *Config, path string) error {
	// #nosec G304 -- path resolved from explicit local config discovery.
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config %q: %w", path, err)
	}
	var file fileConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parsing config %q: %w", path, err)
	}

	setString(&cfg.Host, file.Server.Host)
	setValue(&cfg.Port, file.Server.Port)
	setValue(&cfg.ForceHTTP, file.Server.ForceHTTP)
	setValue(&cfg.MaxBodyBytes, file.Server.MaxBodyBytes)
	if file.Server.Transport != nil {
		cfg.Transport = Transport(strings.ToLower(strings.TrimSpace(*file.Server.Transport)))
	}
	if len(file.Server.CORSOrigins) > 0 {
		cfg.CORSOrigins = cleanList(file.Server.CORSOrigins)
	}

	setString(&cfg.BackendURL, file.Backend.URL)
	setString(&cfg.APIPrefix, file.Backend.APIPrefix)
	setString(&cfg.UserID, file.Backend.UserID)
	if file.Backend.Timeout != nil {
		timeout, err := parseTimeout(*file.Backend.Timeout)
		if err != nil {
			return fmt.Errorf("parsing config %q: backend.timeout: %w", path, err)
		}
		cfg.RequestTimeout = timeout
	}
	if file.Backend.OAuth != nil {
		cfg.OAuth = *file.Backend.OAuth
		cfg.OAuth.ClientSecret = os.ExpandEnv(cfg.OAuth.ClientSecret)
	}

	setString(&cfg.LogLevel, file.Log.Level)
	setString(&cfg.LogFormat, file.Log.Format)
	setValue(&cfg.Debug, file.Log.Debug)
	return nil
}

func readDotEnv(path string) (map[string]string, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	values, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("reading env file %q: %w", path, err)
	}
	return values, nil
}

func layeredLookup(env func(string) (string, bool), dotenv map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		if value, ok := env(key); ok {
			return value, true
		}
		value, ok := dotenv[key]
		return value, ok
	}
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	var errs []error
	str := func(key string, dst *string) {
		if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
			*dst = strings.TrimSpace(value)
		}
	}
	boolean := func(key string, dst *bool) {
		if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
			*dst = parseBool(value)
		}
	}

	str("MCP_HOST", &cfg.Host)
	if value, ok := lookup("MCP_PORT"); ok && strings.TrimSpace(value) != "" {
		port, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			errs = append(errs, fmt.Errorf("MCP_PORT: %w", err))
		} else {
			cfg.Port = port
		}
	}
	if value, ok := lookup("MCP_TRANSPORT"); ok && strings.TrimSpace(value) != "" {
		cfg.Transport = Transport(strings.ToLower(strings.TrimSpace(value)))
	}
	boolean("FORCE_HTTP_MODE", &cfg.ForceHTTP)
	str("BACKEND_URL", &cfg.BackendURL)
	str("BACKEND_API_PREFIX", &cfg.APIPrefix)
	str("BACKEND_USER_ID", &cfg.UserID)
	if value, ok := lookup("REQUEST_TIMEOUT"); ok && strings.TrimSpace(value) != "" {
		timeout, err := parseTimeout(value)
		if err != nil {
			errs = append(errs, fmt.Errorf("REQUEST_TIMEOUT: %w", err))
		} else {
			cfg.RequestTimeout = timeout
		}
	}
	if value, ok := lookup("CORS_ORIGINS"); ok && strings.TrimSpace(value) != "" {
		cfg.CORSOrigins = cleanList(strings.Split(value, ","))
	}
	if value, ok := lookup("MAX_BODY_BYTES"); ok && strings.TrimSpace(value) != "" {
		n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("MAX_BODY_BYTES: %w", err))
		} else {
			cfg.MaxBodyBytes = n
		}
	}
	str("LOG_LEVEL", &cfg.LogLevel)
	str("LOG_FORMAT", &cfg.LogFormat)
	boolean("DEBUG", &cfg.Debug)
	str("BACKEND_OAUTH_TOKEN_URL", &cfg.OAuth.TokenURL)
	str("BACKEND_OAUTH_CLIENT_ID", &cfg.OAuth.ClientID)
	str("BACKEND_OAUTH_CLIENT_SECRET", &cfg.OAuth.ClientSecret)
	if value, ok := lookup("BACKEND_OAUTH_SCOPES"); ok && strings.TrimSpace(value) != "" {
		cfg.OAuth.Scopes = cleanList(strings.Split(value, ","))
	}
	return errors.Join(errs...)
}

// parseTimeout accepts a Go duration ("750ms") or a whole number of seconds.
func parseTimeout(value string) (time.Duration, error) {
	clean := strings.TrimSpace(value)
	if seconds, err := strconv.Atoi(clean); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}
	d, err := time.ParseDuration(clean)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q", value)
	}
	return d, nil
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func cleanList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if clean := strings.TrimSpace(v); clean != "" {
			out = append(out, clean)
		}
	}
	return out
}

func setString(dst *string, src *string) {
	if src != nil && strings.TrimSpace(*src) != "" {
		*dst = strings.TrimSpace(*src)
	}
}

func setValue[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
