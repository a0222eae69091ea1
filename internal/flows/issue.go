package flows

import (
	"context"
	"errors"

	"github.com/obsvault/authgate/session"
)

// IssueFailureKind classifies token issuance failures.
type IssueFailureKind int

const (
	IssueFailureNone IssueFailureKind = iota
	IssueFailureMissingVersion
	IssueFailureVersionLookup
	IssueFailureSignRefresh
	IssueFailureSignAccess
)

// IssueResult carries a fresh token pair or failure metadata.
type IssueResult struct {
	Failure      IssueFailureKind
	Err          error
	Version      int64
	AccessToken  string
	RefreshToken string
}

// RunIssue reads the current version and signs a refresh and an access token.
// The only side effect is the version read.
func RunIssue(ctx context.Context, subject Subject, deps TokenDeps) IssueResult {
	version, err := deps.Versions.GetVersion(ctx, subject.UserID)
	if err != nil {
		if errors.Is(err, session.ErrVersionNotFound) {
			return IssueResult{Failure: IssueFailureMissingVersion, Err: err}
		}
		return IssueResult{Failure: IssueFailureVersionLookup, Err: err}
	}

	refresh, err := deps.SignRefresh(subject.UserID, version)
	if err != nil {
		return IssueResult{Failure: IssueFailureSignRefresh, Err: err, Version: version}
	}

	access, _, err := deps.SignAccess(subject)
	if err != nil {
		return IssueResult{Failure: IssueFailureSignAccess, Err: err, Version: version}
	}

	return IssueResult{
		Failure:      IssueFailureNone,
		Version:      version,
		AccessToken:  access,
		RefreshToken: refresh,
	}
}
