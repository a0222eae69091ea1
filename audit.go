package authgate

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"

	"github.com/obsvault/authgate/internal/audit"
)

// AuditEvent is a security-relevant outcome. It never carries tokens or
// password material.
type AuditEvent = audit.Event

// AuditSink receives audit events off the request path.
type AuditSink = audit.Sink

// NoOpSink drops audit events.
type NoOpSink = audit.NoOpSink

// NewChannelSink returns a sink that buffers events on a channel.
func NewChannelSink(buffer int) *audit.ChannelSink {
	return audit.NewChannelSink(buffer)
}

// NewJSONWriterSink returns a sink that writes JSON lines to w.
func NewJSONWriterSink(w io.Writer) *audit.JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

// NewLogSink returns a sink that logs each event through logger.
func NewLogSink(logger *slog.Logger) *audit.LogSink {
	return audit.NewLogSink(logger)
}

const (
	auditEventTokensIssued         = "tokens_issued"
	auditEventAccessRefreshed      = "access_refreshed"
	auditEventAccessRejected       = "access_rejected"
	auditEventRefreshRejected      = "refresh_rejected"
	auditEventSessionExpired       = "session_expired"
	auditEventSessionRecordMissing = "session_record_missing"
	auditEventSessionsInvalidated  = "sessions_invalidated"
	auditEventLoginSuccess         = "login_success"
	auditEventLoginFailure         = "login_failure"
	auditEventLoginThrottled       = "login_throttled"
	auditEventSignupSuccess        = "signup_success"
	auditEventSignupFailure        = "signup_failure"
	auditEventLogout               = "logout"
	auditEventUserUpdated          = "user_updated"
	auditEventForbidden            = "forbidden"
	auditEventAPICallLimited       = "api_call_limited"
)

// AuditErrorCode is the stable error label written into audit events.
type AuditErrorCode string

const (
	auditErrUnauthorized       AuditErrorCode = "unauthorized"
	auditErrSessionExpired     AuditErrorCode = "session_expired"
	auditErrMissingSession     AuditErrorCode = "missing_session_record"
	auditErrMissingUsage       AuditErrorCode = "missing_usage_record"
	auditErrUserNotFound       AuditErrorCode = "user_not_found"
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrDuplicate          AuditErrorCode = "duplicate"
	auditErrValidation         AuditErrorCode = "validation"
	auditErrForbidden          AuditErrorCode = "forbidden"
	auditErrLimitExceeded      AuditErrorCode = "limit_exceeded"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (s *Service) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if s == nil || s.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: s.now().UTC(),
		EventType: eventType,
		UserID:    userID,
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	s.audit.Emit(ctx, event)
}

func versionMetadata(version int64) func() map[string]string {
	return func() map[string]string {
		return map[string]string{"version": strconv.FormatInt(version, 10)}
	}
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrMissingAuthTokens):
		return auditErrUnauthorized
	case errors.Is(err, ErrSessionExpired):
		return auditErrSessionExpired
	case errors.Is(err, ErrMissingSessionRecord):
		return auditErrMissingSession
	case errors.Is(err, ErrMissingUsageRecord):
		return auditErrMissingUsage
	case errors.Is(err, ErrUserNotFound):
		return auditErrUserNotFound
	case errors.Is(err, ErrEmailNotFound), errors.Is(err, ErrIncorrectPassword):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrEmailTaken):
		return auditErrDuplicate
	case errors.Is(err, ErrInvalidEmail),
		errors.Is(err, ErrEmptyEmail),
		errors.Is(err, ErrEmptyPassword),
		errors.Is(err, ErrPasswordPolicy),
		errors.Is(err, ErrInvalidUserType),
		errors.Is(err, ErrInvalidCallLimit),
		errors.Is(err, ErrInvalidRequest):
		return auditErrValidation
	case errors.Is(err, ErrForbidden):
		return auditErrForbidden
	case errors.Is(err, ErrAPICallLimitExceeded), errors.Is(err, ErrLoginThrottled):
		return auditErrLimitExceeded
	case errors.Is(err, ErrStoreUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
