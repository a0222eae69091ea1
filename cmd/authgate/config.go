package main

import (
	"net/http"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/obsvault/authgate"
	"github.com/obsvault/authgate/middleware"
)

const envPrefix = "AUTHGATE_"

type serverConfig struct {
	HTTP     httpConfig     `koanf:"http"`
	Log      logConfig      `koanf:"log"`
	Redis    redisConfig    `koanf:"redis"`
	Postgres postgresConfig `koanf:"postgres"`
	Tokens   tokensConfig   `koanf:"tokens"`
	Cookies  cookiesConfig  `koanf:"cookies"`
	Accounts accountsConfig `koanf:"accounts"`
	Throttle throttleConfig `koanf:"throttle"`
	Audit    auditConfig    `koanf:"audit"`
}

type httpConfig struct {
	Addr            string        `koanf:"addr"`
	TrustProxy      bool          `koanf:"trust_proxy"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	RequestTimeout  time.Duration `koanf:"request_timeout"`
	// AllowedOrigins lists browser origins allowed to call with cookies.
	// Comma-separated in AUTHGATE_HTTP__ALLOWED_ORIGINS.
	AllowedOrigins []string `koanf:"allowed_origins"`
}

type logConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type redisConfig struct {
	Addr      string `koanf:"addr"`
	Password  string `koanf:"password"`
	DB        int    `koanf:"db"`
	KeyPrefix string `koanf:"key_prefix"`
}

// postgresConfig: an empty DSN keeps users in memory.
type postgresConfig struct {
	DSN string `koanf:"dsn"`
	// VersionStore selects where refresh-token versions live: "redis" or
	// "postgres".
	VersionStore string `koanf:"version_store"`
}

type tokensConfig struct {
	AccessSecret  string        `koanf:"access_secret"`
	RefreshSecret string        `koanf:"refresh_secret"`
	Issuer        string        `koanf:"issuer"`
	Audience      string        `koanf:"audience"`
	AccessTTL     time.Duration `koanf:"access_ttl"`
	RefreshTTL    time.Duration `koanf:"refresh_ttl"`
	Leeway        time.Duration `koanf:"leeway"`
}

type cookiesConfig struct {
	Secure   bool   `koanf:"secure"`
	Domain   string `koanf:"domain"`
	SameSite string `koanf:"same_site"`
}

type accountsConfig struct {
	DefaultCallLimit int `koanf:"default_call_limit"`
}

type throttleConfig struct {
	Enabled          bool          `koanf:"enabled"`
	MaxLoginAttempts int           `koanf:"max_login_attempts"`
	LoginCooldown    time.Duration `koanf:"login_cooldown"`
	IPThrottle       bool          `koanf:"ip_throttle"`
}

type auditConfig struct {
	Enabled    bool   `koanf:"enabled"`
	Sink       string `koanf:"sink"`
	BufferSize int    `koanf:"buffer_size"`
}

func defaultServerConfig() serverConfig {
	lib := authgate.DefaultConfig()
	return serverConfig{
		HTTP:     httpConfig{Addr: ":8080", ShutdownTimeout: 15 * time.Second, RequestTimeout: 30 * time.Second},
		Log:      logConfig{Level: "info", Format: "json"},
		Redis:    redisConfig{Addr: "localhost:6379"},
		Postgres: postgresConfig{VersionStore: "redis"},
		Tokens: tokensConfig{
			Issuer:     "authgate",
			Audience:   "obs-vault",
			AccessTTL:  lib.Tokens.AccessTTL,
			RefreshTTL: lib.Tokens.RefreshTTL,
		},
		Cookies:  cookiesConfig{Secure: true, SameSite: "lax"},
		Accounts: accountsConfig{DefaultCallLimit: lib.Accounts.DefaultCallLimit},
		Throttle: throttleConfig{
			Enabled:          true,
			MaxLoginAttempts: lib.Throttle.MaxLoginAttempts,
			LoginCooldown:    lib.Throttle.LoginCooldown,
			IPThrottle:       lib.Throttle.EnableIPThrottle,
		},
		Audit: auditConfig{Enabled: true, Sink: "log", BufferSize: lib.Audit.BufferSize},
	}
}

// flagKeys maps serve flags to config keys.
var flagKeys = map[string]string{
	"addr":         "http.addr",
	"log-level":    "log.level",
	"log-format":   "log.format",
	"redis-addr":   "redis.addr",
	"postgres-dsn": "postgres.dsn",
}

// loadConfig layers defaults, the YAML file at path, AUTHGATE_* environment
// variables and changed flags, in that order. In variable names "__"
// separates nesting levels: AUTHGATE_TOKENS__ACCESS_SECRET. The result is
// not validated; serve calls validate, migrate needs only the DSN.
func loadConfig(path string, flags *pflag.FlagSet) (serverConfig, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return serverConfig{}, oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".")
	}), nil); err != nil {
		return serverConfig{}, oops.Code("CONFIG_LOAD_FAILED").Wrap(err)
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", nil, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return serverConfig{}, oops.Code("CONFIG_LOAD_FAILED").Wrap(err)
		}
	}

	cfg := defaultServerConfig()
	if err := k.Unmarshal("", &cfg); err != nil {
		return serverConfig{}, oops.Code("CONFIG_INVALID").Wrap(err)
	}
	return cfg, nil
}

func (c serverConfig) validate() error {
	switch c.Postgres.VersionStore {
	case "redis":
	case "postgres":
		if c.Postgres.DSN == "" {
			return oops.Code("CONFIG_INVALID").Errorf("postgres.version_store=postgres requires postgres.dsn")
		}
	default:
		return oops.Code("CONFIG_INVALID").Errorf("postgres.version_store must be redis or postgres, got %q", c.Postgres.VersionStore)
	}
	switch c.Audit.Sink {
	case "log", "stdout", "none":
	default:
		return oops.Code("CONFIG_INVALID").Errorf("audit.sink must be log, stdout or none, got %q", c.Audit.Sink)
	}
	if _, err := parseSameSite(c.Cookies.SameSite); err != nil {
		return err
	}
	lib := c.library()
	if err := lib.Validate(); err != nil {
		return oops.Code("CONFIG_INVALID").Wrap(err)
	}
	return nil
}

// library translates the file configuration into an authgate.Config.
func (c serverConfig) library() authgate.Config {
	cfg := authgate.DefaultConfig()
	cfg.Tokens = authgate.TokenConfig{
		AccessSecret:  c.Tokens.AccessSecret,
		RefreshSecret: c.Tokens.RefreshSecret,
		Issuer:        c.Tokens.Issuer,
		Audience:      c.Tokens.Audience,
		AccessTTL:     c.Tokens.AccessTTL,
		RefreshTTL:    c.Tokens.RefreshTTL,
		Leeway:        c.Tokens.Leeway,
	}
	cfg.Accounts.DefaultCallLimit = c.Accounts.DefaultCallLimit
	cfg.Accounts.RequireUsageCounter = true
	cfg.Throttle = authgate.ThrottleConfig{
		MaxLoginAttempts: c.Throttle.MaxLoginAttempts,
		LoginCooldown:    c.Throttle.LoginCooldown,
		EnableIPThrottle: c.Throttle.IPThrottle,
	}
	cfg.Audit.Enabled = c.Audit.Enabled && c.Audit.Sink != "none"
	cfg.Audit.BufferSize = c.Audit.BufferSize
	return cfg
}

func (c serverConfig) cookies() middleware.CookieConfig {
	sameSite, _ := parseSameSite(c.Cookies.SameSite)
	return middleware.CookieConfig{
		Secure:   c.Cookies.Secure,
		Domain:   c.Cookies.Domain,
		SameSite: sameSite,
		MaxAge:   c.Tokens.RefreshTTL,
	}
}

func parseSameSite(s string) (http.SameSite, error) {
	switch strings.ToLower(s) {
	case "", "lax":
		return http.SameSiteLaxMode, nil
	case "strict":
		return http.SameSiteStrictMode, nil
	case "none":
		return http.SameSiteNoneMode, nil
	default:
		return 0, oops.Code("CONFIG_INVALID").Errorf("cookies.same_site must be lax, strict or none, got %q", s)
	}
}
