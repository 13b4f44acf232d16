package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"sort"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

var ErrMissingRequiredValue = errors.New("missing required value")
var ErrInvalidValue = errors.New("invalid value")

const (
	envPrefix     = "STATS_"
	configFileEnv = "STATS_CONFIG"
)

type environment string

const (
	production  environment = "production"
	staging     environment = "staging"
	development environment = "development"
)

// Database is a stats database a server binding can refer to by name
type Database struct {
	Driver string `koanf:"driver"`
	DSN    string `koanf:"dsn"`
}

type rawConfig struct {
	Environment    string              `koanf:"environment"`
	Port           int                 `koanf:"port"`
	DatabaseURL    string              `koanf:"database_url"`
	SentryDSN      string              `koanf:"sentry_dsn"`
	SteamAPIKey    string              `koanf:"steam_api_key"`
	SiteURL        string              `koanf:"site_url"`
	AssetURL       string              `koanf:"asset_url"`
	DateFormat     string              `koanf:"date_format"`
	Debug          bool                `koanf:"debug"`
	RedisURL       string              `koanf:"redis_url"`
	AllowedOrigins string              `koanf:"allowed_origins"`
	Databases      map[string]Database `koanf:"databases"`
}

func defaults() rawConfig {
	return rawConfig{
		Port:       8123,
		DateFormat: "02.01.2006 15:04",
		Databases:  map[string]Database{},
	}
}

type Config struct {
	env            environment
	port           int
	databaseURL    string
	sentryDSN      string
	steamAPIKey    string
	siteURL        string
	assetURL       string
	dateFormat     string
	debug          bool
	redisURL       string
	allowedOrigins []string
	databases      map[string]Database
}

func (c *Config) Port() int {
	return c.port
}

func (c *Config) DatabaseURL() string {
	return c.databaseURL
}

func (c *Config) SentryDSN() string {
	return c.sentryDSN
}

func (c *Config) SteamAPIKey() string {
	return c.steamAPIKey
}

func (c *Config) SiteURL() string {
	return c.siteURL
}

// AssetURL is where static assets are served from. Defaults to SiteURL.
func (c *Config) AssetURL() string {
	if c.assetURL == "" {
		return c.siteURL
	}
	return c.assetURL
}

func (c *Config) DateFormat() string {
	return c.dateFormat
}

// Debug disables masking of storage errors
func (c *Config) Debug() bool {
	return c.debug
}

func (c *Config) RedisURL() string {
	return c.redisURL
}

func (c *Config) AllowedOrigins() []string {
	return slices.Clone(c.allowedOrigins)
}

func (c *Config) Databases() map[string]Database {
	databases := make(map[string]Database, len(c.databases))
	for ref, database := range c.databases {
		databases[ref] = database
	}
	return databases
}

// Environment is the name of the deployment environment
func (c *Config) Environment() string {
	return string(c.env)
}

func (c *Config) IsProduction() bool {
	return c.env == production
}

func (c *Config) IsStaging() bool {
	return c.env == staging
}

func (c *Config) IsDevelopment() bool {
	return c.env == development
}

// Return a string representation suitable for logging etc
func (c *Config) NonSensitiveString() string {
	refs := make([]string, 0, len(c.databases))
	for ref := range c.databases {
		refs = append(refs, ref)
	}
	sort.Strings(refs)

	return fmt.Sprintf(
		"Config{env: %s, port: %d, siteURL: %s, debug: %t, databases: [%s], ...}",
		string(c.env), c.port, c.siteURL, c.debug, strings.Join(refs, ", "),
	)
}

func envKey(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	s = strings.ToLower(s)
	// STATS_DATABASES__MAIN__DSN -> databases.main.dsn
	return strings.ReplaceAll(s, "__", ".")
}

// Load layers the defaults, the optional YAML file at $STATS_CONFIG and the
// STATS_ environment variables, in increasing order of precedence
func Load() (Config, error) {
	k := koanf.New(".")

	if path := os.Getenv(configFileEnv); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		if s == configFileEnv {
			return ""
		}
		return envKey(s)
	})
	if err := k.Load(envProvider, nil); err != nil {
		return Config{}, fmt.Errorf("failed to load config from environment: %w", err)
	}

	raw := defaults()
	if err := k.UnmarshalWithConf("", &raw, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidValue, err)
	}

	return fromRaw(raw)
}

func fromRaw(raw rawConfig) (Config, error) {
	missingKey := func(key string) (Config, error) {
		return Config{}, fmt.Errorf("%w: %s", ErrMissingRequiredValue, key)
	}

	var env environment
	switch raw.Environment {
	case "":
		return missingKey("environment")
	case "production":
		env = production
	case "staging":
		env = staging
	case "development":
		env = development
	default:
		return Config{}, fmt.Errorf("%w: environment (%s)", ErrInvalidValue, raw.Environment)
	}

	if raw.Port <= 0 || raw.Port > 65535 {
		return Config{}, fmt.Errorf("%w: port (%d)", ErrInvalidValue, raw.Port)
	}

	if env == production || env == staging {
		if raw.DatabaseURL == "" {
			return missingKey("database_url")
		}
		if raw.SentryDSN == "" {
			return missingKey("sentry_dsn")
		}
		if raw.SteamAPIKey == "" {
			return missingKey("steam_api_key")
		}
		if raw.SiteURL == "" {
			return missingKey("site_url")
		}
	}

	databases := make(map[string]Database, len(raw.Databases))
	for ref, database := range raw.Databases {
		if database.Driver == "" {
			return missingKey(fmt.Sprintf("databases.%s.driver", ref))
		}
		if database.DSN == "" {
			return missingKey(fmt.Sprintf("databases.%s.dsn", ref))
		}
		databases[ref] = database
	}

	allowedOrigins := []string{}
	for _, origin := range strings.Split(raw.AllowedOrigins, ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			allowedOrigins = append(allowedOrigins, origin)
		}
	}

	return Config{
		env:            env,
		port:           raw.Port,
		databaseURL:    raw.DatabaseURL,
		sentryDSN:      raw.SentryDSN,
		steamAPIKey:    raw.SteamAPIKey,
		siteURL:        strings.TrimSuffix(raw.SiteURL, "/"),
		assetURL:       strings.TrimSuffix(raw.AssetURL, "/"),
		dateFormat:     raw.DateFormat,
		debug:          raw.Debug,
		redisURL:       raw.RedisURL,
		allowedOrigins: allowedOrigins,
		databases:      databases,
	}, nil
}

// NewDevelopmentConfig is meant for tests and local tooling
func NewDevelopmentConfig(siteURL string, databases map[string]Database) Config {
	raw := defaults()
	raw.Environment = string(development)
	raw.SiteURL = siteURL
	if databases != nil {
		raw.Databases = databases
	}

	conf, err := fromRaw(raw)
	if err != nil {
		panic(fmt.Sprintf("invalid development config: %s", err))
	}
	return conf
}
