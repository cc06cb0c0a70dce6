// Package config loads server settings from an optional YAML file and the
// environment, environment winning.
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/tokengate/tokengate-go/internal/crypto"
	"github.com/tokengate/tokengate-go/internal/repository"
)

var (
	ErrSecretRequired = errors.New("JWT_SECRET is required")
	ErrDefaultSecret  = errors.New("JWT_SECRET is a well-known default value")
	ErrUnknownDriver  = errors.New("unknown STORE_DRIVER")
	ErrDSNRequired    = errors.New("STORE_DSN is required for SQL store drivers")
	ErrSeedDemoInProd = errors.New("STORE_SEED_DEMO must be off in production")
	ErrTrustedProxy   = errors.New("invalid TRUSTED_PROXIES entry")
)

// Secrets that shipped as fallbacks in sample configs and must never sign
// real tokens.
var defaultSecrets = []string{
	"dev-secret-change-in-production",
	"your-secret-key-change-in-production",
	"a7f3b9c2e1d8f5h4j6k8l0m2n4p6q8r0s2t4u6v8w0x2y4z6a8b0c2d4e6f8g0",
	"secret",
	"changeme",
}

// envKeys maps accepted environment variables to config keys. Anything
// else in the environment is ignored.
var envKeys = map[string]string{
	"PORT":                  "port",
	"ENV":                   "env",
	"LOG_LEVEL":             "log.level",
	"LOG_FORMAT":            "log.format",
	"JWT_SECRET":            "jwt_secret",
	"STORE_DRIVER":          "store.driver",
	"STORE_DSN":             "store.dsn",
	"STORE_SEED_DEMO":       "store.seed_demo",
	"UPSTREAM_URL":          "upstream_url",
	"LOCALES":               "locales",
	"AUTH_RATE_LIMIT_RPS":   "rate_limit.rps",
	"AUTH_RATE_LIMIT_BURST": "rate_limit.burst",
	"TRUSTED_PROXIES":       "rate_limit.trusted_proxies",
}

// listKeys are split on commas when read from the environment.
var listKeys = map[string]bool{
	"locales":                    true,
	"rate_limit.trusted_proxies": true,
}

type Config struct {
	Port        string    `koanf:"port"`
	Env         string    `koanf:"env"`
	Log         Log       `koanf:"log"`
	JWTSecret   string    `koanf:"jwt_secret"`
	Store       Store     `koanf:"store"`
	UpstreamURL string    `koanf:"upstream_url"`
	Locales     []string  `koanf:"locales"`
	RateLimit   RateLimit `koanf:"rate_limit"`
}

type Log struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type Store struct {
	Driver   string `koanf:"driver"`
	DSN      string `koanf:"dsn"`
	SeedDemo bool   `koanf:"seed_demo"`
}

type RateLimit struct {
	RPS   float64 `koanf:"rps"`
	Burst int     `koanf:"burst"`

	// TrustedProxies lists proxy addresses or CIDR ranges whose forwarding
	// headers identify the client. Empty means every peer is the client.
	TrustedProxies []string `koanf:"trusted_proxies"`
}

// TrustedPrefixes parses TrustedProxies. A bare address becomes a single
// host prefix.
func (r RateLimit) TrustedPrefixes() ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(r.TrustedProxies))
	for _, entry := range r.TrustedProxies {
		if p, err := netip.ParsePrefix(entry); err == nil {
			prefixes = append(prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrTrustedProxy, entry)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

func defaults() map[string]any {
	return map[string]any{
		"port": "8080",
		"env":  "development",
		"log": map[string]any{
			"level":  "info",
			"format": "json",
		},
		"store": map[string]any{
			"driver":    repository.DriverMemory,
			"seed_demo": false,
		},
		"locales": []string{"en", "zh", "de", "it"},
		"rate_limit": map[string]any{
			"rps":   5.0,
			"burst": 10,
		},
	}
}

// Load reads the YAML file at path (skipped when empty) and then the
// environment. It does not validate; call Validate before using the result.
func Load(path string) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(mapProvider(defaults()), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.ProviderWithValue("", ".", envValue), nil); err != nil {
		return Config{}, fmt.Errorf("load env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// envValue maps an environment variable to its config key. A blank key
// tells koanf to skip the variable.
func envValue(name, value string) (string, any) {
	key, ok := envKeys[name]
	if !ok || value == "" {
		return "", nil
	}
	if listKeys[key] {
		return key, splitList(value)
	}
	return key, value
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate refuses settings the server must not start with.
func (c Config) Validate() error {
	if err := ValidateSecret(c.JWTSecret); err != nil {
		return err
	}

	switch c.Store.Driver {
	case repository.DriverMemory:
	case repository.DriverMySQL, repository.DriverSQLite, repository.DriverPostgres:
		if c.Store.DSN == "" {
			return ErrDSNRequired
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDriver, c.Store.Driver)
	}

	if c.IsProduction() && c.Store.SeedDemo {
		return ErrSeedDemoInProd
	}

	if _, err := c.RateLimit.TrustedPrefixes(); err != nil {
		return err
	}
	return nil
}

// ValidateSecret checks a signing secret on its own, for tools that do not
// load the full server config.
func ValidateSecret(secret string) error {
	if secret == "" {
		return ErrSecretRequired
	}
	for _, d := range defaultSecrets {
		if secret == d {
			return ErrDefaultSecret
		}
	}
	if len(secret) < crypto.MinSecretBytes {
		return fmt.Errorf("JWT_SECRET: %w", crypto.ErrSecretTooShort)
	}
	return nil
}

// IsProduction reports whether the server runs in production mode.
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

// mapProvider feeds a plain map into koanf.
type mapProvider map[string]any

func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, errors.New("config: map provider has no byte form")
}

func (m mapProvider) Read() (map[string]any, error) {
	return m, nil
}
