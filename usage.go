package authgate

import (
	"context"
	"errors"
	"log/slog"

	"github.com/obsvault/authgate/jwt"
	"github.com/obsvault/authgate/usage"
)

// ConsumeAPICall records one downstream call against the limit stamped into
// claims. The limit travels in the access token, so an administrative change
// to it applies once the client's access token is refreshed.
func (s *Service) ConsumeAPICall(ctx context.Context, claims *jwt.AccessClaims) (Usage, error) {
	if s == nil {
		return Usage{}, ErrServiceNotReady
	}
	if s.usage == nil {
		return Usage{}, ErrUsageNotConfigured
	}
	if claims == nil || claims.UserID == "" {
		return Usage{}, ErrMissingAuthContext
	}

	used, err := s.usage.Consume(ctx, claims.UserID, claims.APIServiceCallLimit)
	switch {
	case errors.Is(err, usage.ErrLimitExceeded):
		s.metrics.Inc(MetricAPICallLimited)
		s.logger.InfoContext(ctx, "api call limit reached",
			slog.String("user_id", claims.UserID),
			slog.Int("limit", claims.APIServiceCallLimit))
		s.emitAudit(ctx, auditEventAPICallLimited, false, claims.UserID, ErrAPICallLimitExceeded, nil)
		return Usage{Used: int64(claims.APIServiceCallLimit), Limit: claims.APIServiceCallLimit}, ErrAPICallLimitExceeded
	case errors.Is(err, usage.ErrEntryNotFound):
		s.logger.ErrorContext(ctx, "user has no api usage entry", slog.String("user_id", claims.UserID))
		return Usage{}, ErrMissingUsageRecord
	case err != nil:
		return Usage{}, s.storeFailure(ctx, "consume api call", claims.UserID, err)
	}

	s.metrics.Inc(MetricAPICallConsumed)
	return Usage{Used: used, Limit: claims.APIServiceCallLimit}, nil
}

// APIUsage reports consumed calls without consuming one.
func (s *Service) APIUsage(ctx context.Context, claims *jwt.AccessClaims) (Usage, error) {
	if s == nil {
		return Usage{}, ErrServiceNotReady
	}
	if s.usage == nil {
		return Usage{}, ErrUsageNotConfigured
	}
	if claims == nil || claims.UserID == "" {
		return Usage{}, ErrMissingAuthContext
	}

	used, err := s.usage.Used(ctx, claims.UserID)
	switch {
	case errors.Is(err, usage.ErrEntryNotFound):
		return Usage{}, ErrMissingUsageRecord
	case err != nil:
		return Usage{}, s.storeFailure(ctx, "read usage entry", claims.UserID, err)
	}
	return Usage{Used: used, Limit: claims.APIServiceCallLimit}, nil
}
