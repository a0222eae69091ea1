package authgate

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/obsvault/authgate/internal/audit"
	"github.com/obsvault/authgate/internal/flows"
	"github.com/obsvault/authgate/internal/rate"
	"github.com/obsvault/authgate/jwt"
	"github.com/obsvault/authgate/password"
	"github.com/obsvault/authgate/permission"
	"github.com/obsvault/authgate/session"
)

// Role ranks registered by [Builder.Build]. An ADMIN satisfies every
// requirement a REG_USER does.
const (
	rankRegularUser = 10
	rankAdmin       = 100
)

// Builder assembles a [Service]. A Builder can be built once.
type Builder struct {
	config Config

	users     UserStore
	versions  session.VersionStore
	usage     UsageCounter
	auditSink AuditSink
	throttle  redis.UniversalClient
	logger    *slog.Logger
	now       func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{config: DefaultConfig()}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithUserStore sets the user lookup. If store also implements
// [UserRepository], signup and user updates are enabled.
func (b *Builder) WithUserStore(store UserStore) *Builder {
	b.users = store
	return b
}

// WithVersionStore sets the refresh-token version store. If it also
// implements [session.Provisioner], signup provisions new users.
func (b *Builder) WithVersionStore(store session.VersionStore) *Builder {
	b.versions = store
	return b
}

func (b *Builder) WithUsageCounter(counter UsageCounter) *Builder {
	b.usage = counter
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLoginThrottle enables failed-login throttling backed by client, using
// the limits in [ThrottleConfig].
func (b *Builder) WithLoginThrottle(client redis.UniversalClient) *Builder {
	b.throttle = client
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides the clock used to sign and verify tokens.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires every component.
func (b *Builder) Build() (*Service, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.users == nil {
		return nil, errors.New("user store required")
	}
	if b.versions == nil {
		return nil, errors.New("version store required")
	}
	if cfg.Accounts.RequireUsageCounter && b.usage == nil {
		return nil, errors.New("Accounts RequireUsageCounter is set but no usage counter was provided")
	}

	now := b.now
	if now == nil {
		now = time.Now
	}
	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	// -------- TOKEN CODECS --------
	access, err := jwt.NewCodec(jwt.Config{
		Secret:   []byte(cfg.Tokens.AccessSecret),
		TTL:      cfg.Tokens.AccessTTL,
		Issuer:   cfg.Tokens.Issuer,
		Audience: cfg.Tokens.Audience,
		Leeway:   cfg.Tokens.Leeway,
		Now:      now,
	})
	if err != nil {
		return nil, fmt.Errorf("access token codec: %w", err)
	}
	refresh, err := jwt.NewCodec(jwt.Config{
		Secret:   []byte(cfg.Tokens.RefreshSecret),
		TTL:      cfg.Tokens.RefreshTTL,
		Issuer:   cfg.Tokens.Issuer,
		Audience: cfg.Tokens.Audience,
		Leeway:   cfg.Tokens.Leeway,
		Now:      now,
	})
	if err != nil {
		return nil, fmt.Errorf("refresh token codec: %w", err)
	}

	// -------- ROLES --------
	roles := permission.NewHierarchy()
	if err := roles.Register(string(UserTypeRegular), rankRegularUser); err != nil {
		return nil, err
	}
	if err := roles.Register(string(UserTypeAdmin), rankAdmin); err != nil {
		return nil, err
	}
	roles.Freeze()

	// -------- PASSWORDS --------
	hasher, err := password.NewArgon2(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
		MinLength:   cfg.Password.MinLength,
	})
	if err != nil {
		return nil, err
	}

	s := &Service{
		config:   cfg,
		users:    b.users,
		versions: b.versions,
		usage:    b.usage,
		access:   access,
		refresh:  refresh,
		hasher:   hasher,
		roles:    roles,
		logger:   logger.With(slog.String("component", "authgate")),
		now:      now,
		metrics:  NewMetrics(cfg.Metrics),
		audit: audit.NewDispatcher(audit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, b.auditSink),
	}
	if repo, ok := b.users.(UserRepository); ok {
		s.accounts = repo
	}
	if p, ok := b.versions.(session.Provisioner); ok {
		s.provisioner = p
	}
	if b.throttle != nil {
		s.throttle = rate.New(b.throttle, rate.Config{
			EnableIPThrottle: cfg.Throttle.EnableIPThrottle,
			MaxLoginAttempts: cfg.Throttle.MaxLoginAttempts,
			LoginCooldown:    cfg.Throttle.LoginCooldown,
		})
	}

	s.flows = flows.New(flows.Deps{
		Tokens: flows.TokenDeps{
			SignAccess:    s.signAccess,
			SignRefresh:   s.signRefresh,
			VerifyAccess:  s.verifyAccess,
			VerifyRefresh: s.verifyRefresh,
			LoadSubject:   s.loadSubject,
			UserNotFound:  ErrUserNotFound,
			Versions:      b.versions,
		},
	})

	b.built = true
	return s, nil
}
