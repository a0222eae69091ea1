package flows

import (
	"context"
	"errors"

	"github.com/obsvault/authgate/session"
)

// InvalidateFailureKind classifies revocation failures.
type InvalidateFailureKind int

const (
	InvalidateFailureNone InvalidateFailureKind = iota
	InvalidateFailureUserMissing
	InvalidateFailureUserLookup
	InvalidateFailureMissingVersion
	InvalidateFailureIncrement
)

// InvalidateResult carries the new version or failure metadata.
type InvalidateResult struct {
	Failure InvalidateFailureKind
	Err     error
	Version int64
}

// RunInvalidate bumps the user's version by exactly one. The increment is
// delegated to the store, which performs it atomically.
func RunInvalidate(ctx context.Context, userID string, deps TokenDeps) InvalidateResult {
	if _, err := deps.LoadSubject(ctx, userID); err != nil {
		if deps.UserNotFound != nil && errors.Is(err, deps.UserNotFound) {
			return InvalidateResult{Failure: InvalidateFailureUserMissing, Err: err}
		}
		return InvalidateResult{Failure: InvalidateFailureUserLookup, Err: err}
	}

	version, err := deps.Versions.IncrementVersion(ctx, userID)
	if err != nil {
		if errors.Is(err, session.ErrVersionNotFound) {
			return InvalidateResult{Failure: InvalidateFailureMissingVersion, Err: err}
		}
		return InvalidateResult{Failure: InvalidateFailureIncrement, Err: err}
	}
	return InvalidateResult{Failure: InvalidateFailureNone, Version: version}
}
