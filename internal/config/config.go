// Package config provides configuration management for vkcall.
// It loads YAML or TOML configuration files over built-in defaults, applies
// environment overrides and exposes the endpoints, client identity, token
// store selection and logging settings used by the rest of the application.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"dario.cat/mergo"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Default endpoint and presentation values.
const (
	DefaultAPIBaseURL  = "https://api.vk.com/method"
	DefaultAPIVersion  = "5.199"
	DefaultAuthBaseURL = "https://id.vk.com"
	DefaultTitle       = "New call"
	DefaultAuthDir     = "~/.vkcall"
	DefaultScheme      = "vkcall"
	DefaultCommand     = "create-call"

	// DefaultWaitTimeoutSeconds bounds how long -wait blocks for the deep link.
	DefaultWaitTimeoutSeconds = 300
)

// Store backend identifiers accepted by StoreConfig.Type.
const (
	StoreFile     = "file"
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
	StoreObject   = "object"
	StoreGit      = "git"
)

// Config represents the application's configuration, loaded from a YAML or TOML file.
type Config struct {
	// APIBaseURL is the VK API method root, e.g. https://api.vk.com/method.
	APIBaseURL string `yaml:"api-base-url" toml:"api-base-url" json:"api-base-url"`

	// APIVersion is sent as the "v" parameter of every API call.
	APIVersion string `yaml:"api-version" toml:"api-version" json:"api-version"`

	// AuthBaseURL hosts the /authorize page and the /oauth2/auth token endpoint.
	AuthBaseURL string `yaml:"auth-base-url" toml:"auth-base-url" json:"auth-base-url"`

	// RedirectBaseURL is the auth redirect service exposing /start and /verify.
	RedirectBaseURL string `yaml:"redirect-base-url" toml:"redirect-base-url" json:"redirect-base-url"`

	// ClientID is the VK ID application identifier.
	ClientID string `yaml:"client-id" toml:"client-id" json:"client-id"`

	// DefaultTitle replaces an empty meeting title.
	DefaultTitle string `yaml:"default-title" toml:"default-title" json:"default-title"`

	// AuthDir holds the file token store and, when writable, the log directory.
	AuthDir string `yaml:"auth-dir" toml:"auth-dir" json:"auth-dir"`

	// ProxyURL is the URL of an optional proxy server to use for outbound requests.
	ProxyURL string `yaml:"proxy-url" toml:"proxy-url" json:"proxy-url"`

	// RequestTimeoutSeconds bounds each outbound HTTP request. <= 0 disables the timeout.
	RequestTimeoutSeconds int `yaml:"request-timeout-seconds" toml:"request-timeout-seconds" json:"request-timeout-seconds"`

	// Debug enables debug level logging.
	Debug bool `yaml:"debug" toml:"debug" json:"debug"`

	// LoggingToFile writes logs to a rotating file instead of stdout.
	LoggingToFile bool `yaml:"logging-to-file" toml:"logging-to-file" json:"logging-to-file"`

	// LogsMaxTotalSizeMB caps the total size of the log directory. <= 0 disables the cleaner.
	LogsMaxTotalSizeMB int `yaml:"logs-max-total-size-mb" toml:"logs-max-total-size-mb" json:"logs-max-total-size-mb"`

	// NoBrowser prints the authorization URL instead of opening it.
	NoBrowser bool `yaml:"no-browser" toml:"no-browser" json:"no-browser"`

	// DeepLink configures how the command is re-invoked after authorization.
	DeepLink DeepLinkConfig `yaml:"deeplink" toml:"deeplink" json:"deeplink"`

	// Store selects and configures the persistent token store backend.
	Store StoreConfig `yaml:"store" toml:"store" json:"store"`
}

// DeepLinkConfig describes the URL that resumes the command.
type DeepLinkConfig struct {
	// Scheme is the URL scheme registered for the command, e.g. "vkcall".
	Scheme string `yaml:"scheme" toml:"scheme" json:"scheme"`

	// Command is the command name placed in the deep link host/path.
	Command string `yaml:"command" toml:"command" json:"command"`

	// Listen is the loopback address -wait serves the deep link on,
	// e.g. "127.0.0.1:19455". Empty picks a free port.
	Listen string `yaml:"listen" toml:"listen" json:"listen"`

	// WaitTimeoutSeconds bounds how long -wait blocks for the redirect.
	WaitTimeoutSeconds int `yaml:"wait-timeout-seconds" toml:"wait-timeout-seconds" json:"wait-timeout-seconds"`
}

// StoreConfig captures the settings of every supported store backend.
// Only the fields of the selected Type are used.
type StoreConfig struct {
	Type string `yaml:"type" toml:"type" json:"type"`

	// Path is the file or sqlite database location. Defaults inside AuthDir.
	Path string `yaml:"path" toml:"path" json:"path"`

	// DSN, Schema and Table configure the postgres backend.
	DSN    string `yaml:"dsn" toml:"dsn" json:"dsn"`
	Schema string `yaml:"schema" toml:"schema" json:"schema"`
	Table  string `yaml:"table" toml:"table" json:"table"`

	// RedisURL and KeyPrefix configure the redis backend.
	RedisURL  string `yaml:"redis-url" toml:"redis-url" json:"redis-url"`
	KeyPrefix string `yaml:"key-prefix" toml:"key-prefix" json:"key-prefix"`

	// Object storage (S3 compatible) settings.
	Endpoint  string `yaml:"endpoint" toml:"endpoint" json:"endpoint"`
	Bucket    string `yaml:"bucket" toml:"bucket" json:"bucket"`
	AccessKey string `yaml:"access-key" toml:"access-key" json:"access-key"`
	SecretKey string `yaml:"secret-key" toml:"secret-key" json:"secret-key"`
	Region    string `yaml:"region" toml:"region" json:"region"`
	Prefix    string `yaml:"prefix" toml:"prefix" json:"prefix"`
	UseSSL    bool   `yaml:"use-ssl" toml:"use-ssl" json:"use-ssl"`

	// Git backend settings. An empty GitURL keeps commits local.
	GitURL      string `yaml:"git-url" toml:"git-url" json:"git-url"`
	GitUsername string `yaml:"git-username" toml:"git-username" json:"git-username"`
	GitToken    string `yaml:"git-token" toml:"git-token" json:"git-token"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		APIBaseURL:   DefaultAPIBaseURL,
		APIVersion:   DefaultAPIVersion,
		AuthBaseURL:  DefaultAuthBaseURL,
		DefaultTitle: DefaultTitle,
		AuthDir:      DefaultAuthDir,
		DeepLink: DeepLinkConfig{
			Scheme:             DefaultScheme,
			Command:            DefaultCommand,
			WaitTimeoutSeconds: DefaultWaitTimeoutSeconds,
		},
		Store: StoreConfig{
			Type: StoreFile,
		},
	}
}

// DefaultConfigPath returns ~/.vkcall/config.yaml, or an empty string when
// the home directory cannot be determined.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".vkcall", "config.yaml")
}

// LoadConfig reads the configuration file at configFile. The file must exist.
func LoadConfig(configFile string) (*Config, error) {
	return LoadConfigOptional(configFile, false)
}

// LoadConfigOptional builds a configuration in this order:
//  1. built-in defaults
//  2. values from configFile merged over the defaults (skipped when the file is
//     missing and optional is true)
//  3. environment overrides
func LoadConfigOptional(configFile string, optional bool) (*Config, error) {
	return load(configFile, optional, os.LookupEnv)
}

func load(configFile string, optional bool, lookup LookupFunc) (*Config, error) {
	cfg := Default()

	if path := strings.TrimSpace(configFile); path != "" {
		fileCfg, err := readFile(path)
		switch {
		case err == nil:
			if errMerge := mergo.Merge(cfg, fileCfg, mergo.WithOverride); errMerge != nil {
				return nil, fmt.Errorf("config: merge %s: %w", path, errMerge)
			}
		case errors.Is(err, os.ErrNotExist) && optional:
		default:
			return nil, err
		}
	}

	ApplyEnv(cfg, lookup)
	cfg.normalize()
	return cfg, nil
}

func readFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	fileCfg := &Config{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err = toml.Unmarshal(data, fileCfg); err != nil {
			return nil, fmt.Errorf("config: parse toml %s: %w", path, err)
		}
	default:
		if err = yaml.Unmarshal(data, fileCfg); err != nil {
			return nil, fmt.Errorf("config: parse yaml %s: %w", path, err)
		}
	}
	return fileCfg, nil
}

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides cfg with environment values. Both upper and lower case
// variable names are accepted. An explicit VKCALL_STORE wins over the
// backend implied by PGSTORE_*, REDIS_URL, OBJECTSTORE_* or GITSTORE_*.
func ApplyEnv(cfg *Config, lookup LookupFunc) {
	if cfg == nil || lookup == nil {
		return
	}
	get := func(keys ...string) (string, bool) {
		for _, key := range keys {
			for _, candidate := range []string{key, strings.ToLower(key)} {
				if value, ok := lookup(candidate); ok {
					if trimmed := strings.TrimSpace(value); trimmed != "" {
						return trimmed, true
					}
				}
			}
		}
		return "", false
	}
	setString := func(dst *string, keys ...string) {
		if value, ok := get(keys...); ok {
			*dst = value
		}
	}
	setBool := func(dst *bool, keys ...string) {
		if value, ok := get(keys...); ok {
			if parsed, err := strconv.ParseBool(value); err == nil {
				*dst = parsed
			}
		}
	}

	setString(&cfg.APIBaseURL, "VKCALL_API_BASE_URL")
	setString(&cfg.APIVersion, "VKCALL_API_VERSION")
	setString(&cfg.AuthBaseURL, "VKCALL_AUTH_BASE_URL")
	setString(&cfg.RedirectBaseURL, "VKCALL_REDIRECT_BASE_URL")
	setString(&cfg.ClientID, "VKCALL_CLIENT_ID")
	setString(&cfg.DefaultTitle, "VKCALL_DEFAULT_TITLE")
	setString(&cfg.AuthDir, "VKCALL_AUTH_DIR", "WRITABLE_PATH")
	setString(&cfg.ProxyURL, "VKCALL_PROXY_URL")
	setBool(&cfg.Debug, "VKCALL_DEBUG")
	setBool(&cfg.NoBrowser, "VKCALL_NO_BROWSER")
	setString(&cfg.DeepLink.Listen, "VKCALL_DEEPLINK_LISTEN")

	implied := ""
	if value, ok := get("PGSTORE_DSN"); ok {
		implied = StorePostgres
		cfg.Store.DSN = value
		setString(&cfg.Store.Schema, "PGSTORE_SCHEMA")
	} else if value, ok = get("REDIS_URL"); ok {
		implied = StoreRedis
		cfg.Store.RedisURL = value
	} else if value, ok = get("OBJECTSTORE_ENDPOINT"); ok {
		implied = StoreObject
		cfg.Store.Endpoint = value
		setString(&cfg.Store.AccessKey, "OBJECTSTORE_ACCESS_KEY")
		setString(&cfg.Store.SecretKey, "OBJECTSTORE_SECRET_KEY")
		setString(&cfg.Store.Bucket, "OBJECTSTORE_BUCKET")
	} else if value, ok = get("GITSTORE_GIT_URL"); ok {
		implied = StoreGit
		cfg.Store.GitURL = value
		setString(&cfg.Store.GitUsername, "GITSTORE_GIT_USERNAME")
		setString(&cfg.Store.GitToken, "GITSTORE_GIT_TOKEN")
	}
	if implied != "" {
		cfg.Store.Type = implied
	}
	setString(&cfg.Store.Type, "VKCALL_STORE")
}

func (cfg *Config) normalize() {
	cfg.APIBaseURL = strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")
	cfg.AuthBaseURL = strings.TrimRight(strings.TrimSpace(cfg.AuthBaseURL), "/")
	cfg.RedirectBaseURL = strings.TrimRight(strings.TrimSpace(cfg.RedirectBaseURL), "/")
	cfg.ClientID = strings.TrimSpace(cfg.ClientID)
	cfg.Store.Type = strings.ToLower(strings.TrimSpace(cfg.Store.Type))
	if cfg.Store.Type == "" {
		cfg.Store.Type = StoreFile
	}
	if strings.TrimSpace(cfg.DefaultTitle) == "" {
		cfg.DefaultTitle = DefaultTitle
	}
}

// Validate reports the first setting that prevents authorization or API calls.
func (cfg *Config) Validate() error {
	switch {
	case cfg == nil:
		return errors.New("config: nil configuration")
	case cfg.APIBaseURL == "":
		return errors.New("config: api-base-url is required")
	case cfg.AuthBaseURL == "":
		return errors.New("config: auth-base-url is required")
	case cfg.RedirectBaseURL == "":
		return errors.New("config: redirect-base-url is required")
	case cfg.ClientID == "":
		return errors.New("config: client-id is required")
	}
	switch cfg.Store.Type {
	case StoreFile, StoreMemory, StoreSQLite, StorePostgres, StoreRedis, StoreObject, StoreGit:
	default:
		return fmt.Errorf("config: unknown store type %q", cfg.Store.Type)
	}
	return nil
}

// RedirectURI is the redirect_uri registered for the application.
func (cfg *Config) RedirectURI() string {
	return cfg.RedirectBaseURL + "/verify"
}
