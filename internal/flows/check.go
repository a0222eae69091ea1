package flows

import (
	"context"
	"errors"

	"github.com/obsvault/authgate/jwt"
	"github.com/obsvault/authgate/session"
)

// CheckFailureKind classifies dual-token check failures.
type CheckFailureKind int

const (
	CheckFailureNone CheckFailureKind = iota
	// CheckFailureAccessRejected covers every access-token failure except expiry.
	CheckFailureAccessRejected
	CheckFailureRefreshRejected
	CheckFailureRefreshExpired
	CheckFailureUserMissing
	CheckFailureUserLookup
	CheckFailureMissingVersion
	CheckFailureVersionLookup
	CheckFailureVersionMismatch
	CheckFailureIssueAccess
)

// CheckResult carries verified claims or failure metadata.
type CheckResult struct {
	Failure     CheckFailureKind
	Err         error
	Claims      *jwt.AccessClaims
	AccessToken string
	// Refreshed is true when AccessToken was minted by this call.
	Refreshed bool
	// UserID is known once the refresh token verified.
	UserID string
	// AccessKind is the access token failure kind when the fast path missed.
	AccessKind jwt.Kind
	// StoredVersion and TokenVersion are set on a version mismatch.
	StoredVersion int64
	TokenVersion  int64
}

// RunCheck verifies the access token and, only when it has expired, falls back
// to the refresh token. The refresh token is never reissued.
func RunCheck(ctx context.Context, accessToken, refreshToken string, deps TokenDeps) CheckResult {
	claims, err := deps.VerifyAccess(accessToken)
	if err == nil {
		return CheckResult{
			Failure:     CheckFailureNone,
			Claims:      claims,
			AccessToken: accessToken,
		}
	}
	accessKind, _ := jwt.KindOf(err)
	if accessKind != jwt.KindExpired {
		return CheckResult{Failure: CheckFailureAccessRejected, Err: err, AccessKind: accessKind}
	}

	refresh, err := deps.VerifyRefresh(refreshToken)
	if err != nil {
		if errors.Is(err, jwt.ErrExpired) {
			return CheckResult{Failure: CheckFailureRefreshExpired, Err: err, AccessKind: accessKind}
		}
		return CheckResult{Failure: CheckFailureRefreshRejected, Err: err, AccessKind: accessKind}
	}
	userID := refresh.UserID

	subject, err := deps.LoadSubject(ctx, userID)
	if err != nil {
		failure := CheckFailureUserLookup
		if deps.UserNotFound != nil && errors.Is(err, deps.UserNotFound) {
			failure = CheckFailureUserMissing
		}
		return CheckResult{Failure: failure, Err: err, UserID: userID, AccessKind: accessKind}
	}

	stored, err := deps.Versions.GetVersion(ctx, userID)
	if err != nil {
		failure := CheckFailureVersionLookup
		if errors.Is(err, session.ErrVersionNotFound) {
			failure = CheckFailureMissingVersion
		}
		return CheckResult{Failure: failure, Err: err, UserID: userID, AccessKind: accessKind}
	}
	if stored != refresh.RefreshTokenVersion {
		return CheckResult{
			Failure:       CheckFailureVersionMismatch,
			UserID:        userID,
			AccessKind:    accessKind,
			StoredVersion: stored,
			TokenVersion:  refresh.RefreshTokenVersion,
		}
	}

	access, minted, err := deps.SignAccess(subject)
	if err != nil {
		return CheckResult{Failure: CheckFailureIssueAccess, Err: err, UserID: userID, AccessKind: accessKind}
	}

	return CheckResult{
		Failure:     CheckFailureNone,
		Claims:      minted,
		AccessToken: access,
		Refreshed:   true,
		UserID:      userID,
		AccessKind:  accessKind,
	}
}
