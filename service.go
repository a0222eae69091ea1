package authgate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/obsvault/authgate/internal/audit"
	"github.com/obsvault/authgate/internal/flows"
	"github.com/obsvault/authgate/internal/rate"
	"github.com/obsvault/authgate/jwt"
	"github.com/obsvault/authgate/password"
	"github.com/obsvault/authgate/permission"
	"github.com/obsvault/authgate/session"
)

// Service owns the dual-token session lifecycle. It holds no per-user state
// in memory, so any number of replicas can share the same stores.
type Service struct {
	config Config

	users       UserStore
	accounts    UserRepository
	versions    session.VersionStore
	provisioner session.Provisioner
	usage       UsageCounter

	access   *jwt.Codec
	refresh  *jwt.Codec
	hasher   *password.Argon2
	roles    *permission.Hierarchy
	throttle *rate.Limiter
	flows    flows.Service

	audit   *audit.Dispatcher
	metrics *Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// Close flushes queued audit events. It is safe to call more than once.
func (s *Service) Close() {
	if s == nil {
		return
	}
	s.audit.Close()
}

// AuditDropped reports how many audit events were discarded because the
// buffer was full.
func (s *Service) AuditDropped() uint64 {
	if s == nil {
		return 0
	}
	return s.audit.Dropped()
}

// Metrics exposes the live counters, for example to a Prometheus exporter.
func (s *Service) Metrics() *Metrics {
	if s == nil {
		return nil
	}
	return s.metrics
}

func (s *Service) MetricsSnapshot() MetricsSnapshot {
	if s == nil {
		return (*Metrics)(nil).Snapshot()
	}
	return s.metrics.Snapshot()
}

func (s *Service) ready() bool {
	return s != nil && s.flows.Initialized()
}

/*
====================================
TOKEN LIFECYCLE
====================================
*/

// CreateAuthTokens signs a fresh access and refresh token for user. The
// refresh token embeds the user's current version, so a user without a
// version record fails with [ErrMissingSessionRecord].
func (s *Service) CreateAuthTokens(ctx context.Context, user User) (AuthTokenPair, error) {
	if !s.ready() {
		return AuthTokenPair{}, ErrServiceNotReady
	}

	res := s.flows.Issue(ctx, subjectOf(user))
	switch res.Failure {
	case flows.IssueFailureNone:
	case flows.IssueFailureMissingVersion:
		s.metrics.Inc(MetricMissingSessionRecord)
		s.logger.ErrorContext(ctx, "user has no refresh token version",
			slog.String("user_id", user.ID))
		s.emitAudit(ctx, auditEventSessionRecordMissing, false, user.ID, ErrMissingSessionRecord, nil)
		return AuthTokenPair{}, ErrMissingSessionRecord
	case flows.IssueFailureVersionLookup:
		return AuthTokenPair{}, s.storeFailure(ctx, "get refresh token version", user.ID, res.Err)
	default:
		return AuthTokenPair{}, fmt.Errorf("sign tokens: %w", res.Err)
	}

	s.metrics.Inc(MetricTokensIssued)
	s.emitAudit(ctx, auditEventTokensIssued, true, user.ID, nil, versionMetadata(res.Version))
	return AuthTokenPair{AccessToken: res.AccessToken, RefreshToken: res.RefreshToken}, nil
}

// CheckAuthTokens verifies pair. A valid access token is returned unchanged.
// Only an expired access token falls through to the refresh token, which
// yields a newly signed access token built from the user's current record.
// The refresh token is never reissued.
//
// A tampered or foreign access token fails with [ErrUnauthorized] even when
// it has also expired. An expired or revoked refresh token fails with
// [ErrSessionExpired].
func (s *Service) CheckAuthTokens(ctx context.Context, pair AuthTokenPair) (CheckResult, error) {
	if !s.ready() {
		return CheckResult{}, ErrServiceNotReady
	}
	if s.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() { s.metrics.Observe(MetricCheckLatency, time.Since(start)) }()
	}

	res := s.flows.Check(ctx, pair.AccessToken, pair.RefreshToken)
	switch res.Failure {
	case flows.CheckFailureNone:
		if !res.Refreshed {
			s.metrics.Inc(MetricAccessFastPath)
			return CheckResult{Claims: res.Claims, AccessToken: res.AccessToken}, nil
		}
		s.metrics.Inc(MetricAccessRefreshed)
		s.emitAudit(ctx, auditEventAccessRefreshed, true, res.UserID, nil, nil)
		return CheckResult{Claims: res.Claims, AccessToken: res.AccessToken, Refreshed: true}, nil

	case flows.CheckFailureAccessRejected:
		s.metrics.Inc(MetricAccessRejected)
		level := slog.LevelDebug
		if res.AccessKind == jwt.KindInvalidSignature {
			level = slog.LevelWarn
		}
		s.logger.Log(ctx, level, "access token rejected",
			slog.String("kind", res.AccessKind.String()))
		s.emitAudit(ctx, auditEventAccessRejected, false, "", ErrUnauthorized, kindMetadata(res.AccessKind))
		return CheckResult{}, fmt.Errorf("%w: %w", ErrUnauthorized, res.Err)

	case flows.CheckFailureRefreshExpired:
		s.metrics.Inc(MetricSessionExpired)
		s.logger.DebugContext(ctx, "refresh token expired")
		s.emitAudit(ctx, auditEventSessionExpired, false, "", ErrSessionExpired, nil)
		return CheckResult{}, fmt.Errorf("%w: %w", ErrSessionExpired, res.Err)

	case flows.CheckFailureRefreshRejected:
		s.metrics.Inc(MetricRefreshRejected)
		kind, _ := jwt.KindOf(res.Err)
		level := slog.LevelDebug
		if kind == jwt.KindInvalidSignature {
			level = slog.LevelWarn
		}
		s.logger.Log(ctx, level, "refresh token rejected", slog.String("kind", kind.String()))
		s.emitAudit(ctx, auditEventRefreshRejected, false, "", ErrUnauthorized, kindMetadata(kind))
		return CheckResult{}, fmt.Errorf("%w: %w", ErrUnauthorized, res.Err)

	case flows.CheckFailureUserMissing:
		s.metrics.Inc(MetricUserMissing)
		s.logger.WarnContext(ctx, "refresh token references unknown user",
			slog.String("user_id", res.UserID))
		s.emitAudit(ctx, auditEventRefreshRejected, false, res.UserID, ErrUnauthorized, nil)
		return CheckResult{}, ErrUnauthorized

	case flows.CheckFailureMissingVersion:
		s.metrics.Inc(MetricMissingSessionRecord)
		s.logger.ErrorContext(ctx, "user has no refresh token version",
			slog.String("user_id", res.UserID))
		s.emitAudit(ctx, auditEventSessionRecordMissing, false, res.UserID, ErrMissingSessionRecord, nil)
		return CheckResult{}, ErrMissingSessionRecord

	case flows.CheckFailureVersionMismatch:
		s.metrics.Inc(MetricVersionMismatch)
		s.metrics.Inc(MetricSessionExpired)
		s.logger.InfoContext(ctx, "refresh token revoked",
			slog.String("user_id", res.UserID),
			slog.Int64("token_version", res.TokenVersion),
			slog.Int64("stored_version", res.StoredVersion))
		s.emitAudit(ctx, auditEventSessionExpired, false, res.UserID, ErrSessionExpired, func() map[string]string {
			return map[string]string{"reason": "revoked"}
		})
		return CheckResult{}, ErrSessionExpired

	case flows.CheckFailureUserLookup:
		return CheckResult{}, s.storeFailure(ctx, "load user", res.UserID, res.Err)
	case flows.CheckFailureVersionLookup:
		return CheckResult{}, s.storeFailure(ctx, "get refresh token version", res.UserID, res.Err)
	default:
		return CheckResult{}, fmt.Errorf("sign access token: %w", res.Err)
	}
}

// InvalidateAllCurrentRefreshTokensWithUserID revokes every refresh token
// issued to the user by bumping the stored version by exactly one. Access
// tokens already issued stay valid until they expire. It returns the new
// version.
func (s *Service) InvalidateAllCurrentRefreshTokensWithUserID(ctx context.Context, userID string) (int64, error) {
	if !s.ready() {
		return 0, ErrServiceNotReady
	}

	res := s.flows.Invalidate(ctx, userID)
	switch res.Failure {
	case flows.InvalidateFailureNone:
	case flows.InvalidateFailureUserMissing:
		return 0, ErrUserNotFound
	case flows.InvalidateFailureMissingVersion:
		s.metrics.Inc(MetricMissingSessionRecord)
		s.logger.ErrorContext(ctx, "user has no refresh token version",
			slog.String("user_id", userID))
		s.emitAudit(ctx, auditEventSessionRecordMissing, false, userID, ErrMissingSessionRecord, nil)
		return 0, ErrMissingSessionRecord
	case flows.InvalidateFailureUserLookup:
		return 0, s.storeFailure(ctx, "load user", userID, res.Err)
	default:
		return 0, s.storeFailure(ctx, "increment refresh token version", userID, res.Err)
	}

	s.metrics.Inc(MetricSessionsInvalidated)
	s.logger.InfoContext(ctx, "refresh tokens invalidated",
		slog.String("user_id", userID), slog.Int64("version", res.Version))
	s.emitAudit(ctx, auditEventSessionsInvalidated, true, userID, nil, versionMetadata(res.Version))
	return res.Version, nil
}

// AuthorizeRole returns nil when have dominates required in the role
// hierarchy and [ErrForbidden] otherwise. Unknown roles never dominate.
func (s *Service) AuthorizeRole(ctx context.Context, have, required UserType) error {
	if s == nil || s.roles == nil {
		return ErrServiceNotReady
	}
	if s.roles.Dominates(string(have), string(required)) {
		return nil
	}
	s.metrics.Inc(MetricForbidden)
	s.emitAudit(ctx, auditEventForbidden, false, "", ErrForbidden, func() map[string]string {
		return map[string]string{"have": string(have), "required": string(required)}
	})
	return ErrForbidden
}

// KnownUserType reports whether t is registered in the role hierarchy.
func (s *Service) KnownUserType(t UserType) bool {
	return s != nil && s.roles != nil && s.roles.Known(string(t))
}

/*
====================================
FLOW ADAPTERS
====================================
*/

func (s *Service) signAccess(sub flows.Subject) (string, *jwt.AccessClaims, error) {
	claims := &jwt.AccessClaims{
		UserID:              sub.UserID,
		Email:               sub.Email,
		UserType:            sub.UserType,
		APIServiceCallLimit: sub.APIServiceCallLimit,
	}
	token, err := s.access.Sign(claims)
	if err != nil {
		return "", nil, err
	}
	return token, claims, nil
}

func (s *Service) signRefresh(userID string, version int64) (string, error) {
	return s.refresh.Sign(&jwt.RefreshClaims{UserID: userID, RefreshTokenVersion: version})
}

func (s *Service) verifyAccess(token string) (*jwt.AccessClaims, error) {
	claims := &jwt.AccessClaims{}
	if err := s.access.Verify(token, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func (s *Service) verifyRefresh(token string) (*jwt.RefreshClaims, error) {
	claims := &jwt.RefreshClaims{}
	if err := s.refresh.Verify(token, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func (s *Service) loadSubject(ctx context.Context, userID string) (flows.Subject, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return flows.Subject{}, err
	}
	return subjectOf(user), nil
}

func subjectOf(u User) flows.Subject {
	return flows.Subject{
		UserID:              u.ID,
		Email:               u.Email,
		UserType:            string(u.UserType),
		APIServiceCallLimit: u.APIServiceCallLimit,
	}
}

func kindMetadata(kind jwt.Kind) func() map[string]string {
	return func() map[string]string {
		return map[string]string{"kind": kind.String()}
	}
}

// storeFailure records an ambiguous backend error and wraps it in
// ErrStoreUnavailable. Context cancellation is passed through unchanged.
func (s *Service) storeFailure(ctx context.Context, op, userID string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	s.metrics.Inc(MetricStoreFailure)
	s.logger.ErrorContext(ctx, "store operation failed",
		slog.String("op", op),
		slog.String("user_id", userID),
		slog.Any("error", err))
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}
