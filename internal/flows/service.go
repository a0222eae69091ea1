package flows

import "context"

// Service is the flow runner built once by the root Service.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.Tokens.VerifyAccess != nil && s.deps.Tokens.Versions != nil
}

func (s Service) Issue(ctx context.Context, subject Subject) IssueResult {
	return RunIssue(ctx, subject, s.deps.Tokens)
}

func (s Service) Check(ctx context.Context, accessToken, refreshToken string) CheckResult {
	return RunCheck(ctx, accessToken, refreshToken, s.deps.Tokens)
}

func (s Service) Invalidate(ctx context.Context, userID string) InvalidateResult {
	return RunInvalidate(ctx, userID, s.deps.Tokens)
}
