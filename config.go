package authgate

import (
	"errors"
	"fmt"
	"time"
)

const minSecretBytes = 32

// Config is the complete Service configuration. Build it with [DefaultConfig]
// and override fields before passing it to [Builder.WithConfig].
type Config struct {
	Tokens   TokenConfig
	Password PasswordConfig
	Accounts AccountConfig
	Throttle ThrottleConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig binds the two token classes. Access and refresh tokens must use
// different secrets.
type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string
	Issuer        string
	Audience      string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Leeway        time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds Argon2id cost parameters.
type PasswordConfig struct {
	MinLength      int
	Memory         uint32
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	UpgradeOnLogin bool
}

/*
====================================
ACCOUNT CONFIG
====================================
*/

// AccountConfig holds signup defaults.
type AccountConfig struct {
	DefaultUserType     UserType
	DefaultCallLimit    int
	RequireUsageCounter bool
}

/*
====================================
LOGIN THROTTLE CONFIG
====================================
*/

// ThrottleConfig limits failed logins. It takes effect only when a Redis
// client is supplied through [Builder.WithLoginThrottle].
type ThrottleConfig struct {
	MaxLoginAttempts int
	LoginCooldown    time.Duration
	EnableIPThrottle bool
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns production defaults. Secrets, issuer and audience are
// left empty and must be supplied.
func DefaultConfig() Config {
	return Config{
		Tokens: TokenConfig{
			AccessTTL:  5 * time.Minute,
			RefreshTTL: 30 * 24 * time.Hour,
		},
		Password: PasswordConfig{
			MinLength:      6,
			Memory:         65536,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			UpgradeOnLogin: true,
		},
		Accounts: AccountConfig{
			DefaultUserType:  UserTypeRegular,
			DefaultCallLimit: 20,
		},
		Throttle: ThrottleConfig{
			MaxLoginAttempts: 5,
			LoginCooldown:    15 * time.Minute,
			EnableIPThrottle: true,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
	}
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	t := c.Tokens
	if len(t.AccessSecret) < minSecretBytes {
		return fmt.Errorf("Tokens AccessSecret must be at least %d bytes", minSecretBytes)
	}
	if len(t.RefreshSecret) < minSecretBytes {
		return fmt.Errorf("Tokens RefreshSecret must be at least %d bytes", minSecretBytes)
	}
	if t.AccessSecret == t.RefreshSecret {
		return errors.New("Tokens AccessSecret and RefreshSecret must differ")
	}
	if t.Issuer == "" {
		return errors.New("Tokens Issuer is required")
	}
	if t.Audience == "" {
		return errors.New("Tokens Audience is required")
	}
	if t.AccessTTL <= 0 {
		return errors.New("Tokens AccessTTL must be > 0")
	}
	if t.RefreshTTL <= 0 {
		return errors.New("Tokens RefreshTTL must be > 0")
	}
	if t.RefreshTTL <= t.AccessTTL {
		return errors.New("Tokens RefreshTTL must be greater than AccessTTL")
	}
	if t.Leeway < 0 || t.Leeway > 2*time.Minute {
		return errors.New("Tokens Leeway must be between 0 and 2m")
	}

	if c.Password.MinLength < 1 {
		return errors.New("Password MinLength must be >= 1")
	}

	switch c.Accounts.DefaultUserType {
	case UserTypeRegular, UserTypeAdmin:
	default:
		return fmt.Errorf("Accounts DefaultUserType %q is not a known user type", c.Accounts.DefaultUserType)
	}
	if c.Accounts.DefaultCallLimit < 0 {
		return errors.New("Accounts DefaultCallLimit must be >= 0")
	}

	if c.Throttle.MaxLoginAttempts < 1 {
		return errors.New("Throttle MaxLoginAttempts must be >= 1")
	}
	if c.Throttle.LoginCooldown <= 0 {
		return errors.New("Throttle LoginCooldown must be > 0")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}
	return nil
}
