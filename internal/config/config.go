package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where the config file is searched, in order.
var DefaultConfigPaths = []string{
	"config.json",
	"/etc/ghoststream/config.json",
}

// ConfigPathEnvVar overrides the config file path when set.
const ConfigPathEnvVar = "GHOSTSTREAM_CONFIG"

// envPrefix namespaces the environment overlay, e.g.
// GHOSTSTREAM_DATABASE_PATH -> databasePath.
const envPrefix = "GHOSTSTREAM_"

// Config is the full gateway configuration. Precedence: env > file > defaults.
type Config struct {
	Port         string `koanf:"port"`
	DatabasePath string `koanf:"databasePath"`
	CoversPath   string `koanf:"coversPath"`
	ChunksPath   string `koanf:"chunksPath"`

	// AppSecret signs bearer tokens. Required.
	AppSecret string `koanf:"appSecret"`

	// TokenTTL of zero means tokens never expire (process-uptime bound).
	TokenTTL time.Duration `koanf:"tokenTTL"`

	// PublicDomain, when set, is used as the externally reachable host in
	// rewritten manifests instead of a dynamic IP lookup.
	PublicDomain string `koanf:"publicDomain"`

	// BaseURL overrides the derived external base URL entirely.
	BaseURL string `koanf:"baseURL"`

	// PublicMediaRoutes disables the credential check on the manifest,
	// chunk and subtitle routes. Off by default.
	PublicMediaRoutes bool `koanf:"publicMediaRoutes"`

	LogLevel string `koanf:"logLevel"`

	CORSOrigins []string `koanf:"corsOrigins"`

	LoginRateLimit  int           `koanf:"loginRateLimit"`
	LoginRateWindow time.Duration `koanf:"loginRateWindow"`
}

func defaultConfig() *Config {
	return &Config{
		Port:            "18080",
		LogLevel:        "info",
		CORSOrigins:     []string{"*"},
		LoginRateLimit:  10,
		LoginRateWindow: time.Minute,
	}
}

// Load reads configuration from defaults, the JSON config file and the
// environment, then validates it.
func Load() (*Config, error) {
	return LoadFile(findConfigFile())
}

// LoadFile is Load with an explicit config file path; an empty path skips
// the file layer.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), json.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the required fields.
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("databasePath is required")
	}
	if c.CoversPath == "" {
		return fmt.Errorf("coversPath is required")
	}
	if c.ChunksPath == "" {
		return fmt.Errorf("chunksPath is required")
	}
	if c.AppSecret == "" {
		return fmt.Errorf("appSecret is required")
	}
	if c.Port == "" {
		return fmt.Errorf("port must not be empty")
	}
	return nil
}

// envTransform maps GHOSTSTREAM_DATABASE_PATH to databasePath and so on:
// strip the prefix, lowercase, and camel-case at underscores to match the
// JSON field names.
func envTransform(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	parts := strings.Split(strings.ToLower(s), "_")
	for i := 1; i < len(parts); i++ {
		if parts[i] == "" {
			continue
		}
		parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
	}
	return strings.Join(parts, "")
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		return p
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
