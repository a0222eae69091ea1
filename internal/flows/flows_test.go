package flows

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/obsvault/authgate/jwt"
	"github.com/obsvault/authgate/session"
)

var errNoUser = errors.New("no such user")

type fakeVersions struct {
	mu       sync.Mutex
	versions map[string]int64
	err      error
}

func (f *fakeVersions) GetVersion(_ context.Context, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	v, ok := f.versions[userID]
	if !ok {
		return 0, session.ErrVersionNotFound
	}
	return v, nil
}

func (f *fakeVersions) IncrementVersion(_ context.Context, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	v, ok := f.versions[userID]
	if !ok {
		return 0, session.ErrVersionNotFound
	}
	f.versions[userID] = v + 1
	return v + 1, nil
}

type fixture struct {
	now      time.Time
	access   *jwt.Codec
	refresh  *jwt.Codec
	versions *fakeVersions
	subjects map[string]Subject
	deps     TokenDeps
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		now:      time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		versions: &fakeVersions{versions: map[string]int64{"u-1": 1}},
		subjects: map[string]Subject{
			"u-1": {UserID: "u-1", Email: "a@x.com", UserType: "REG_USER", APIServiceCallLimit: 20},
		},
	}
	clock := func() time.Time { return f.now }

	var err error
	f.access, err = jwt.NewCodec(jwt.Config{
		Secret: []byte("flows-access-secret-0123456789abcdef"), TTL: 5 * time.Minute,
		Issuer: "iss", Audience: "aud", Now: clock,
	})
	if err != nil {
		t.Fatalf("access codec: %v", err)
	}
	f.refresh, err = jwt.NewCodec(jwt.Config{
		Secret: []byte("flows-refresh-secret-0123456789abcdef"), TTL: 30 * 24 * time.Hour,
		Issuer: "iss", Audience: "aud", Now: clock,
	})
	if err != nil {
		t.Fatalf("refresh codec: %v", err)
	}

	f.deps = TokenDeps{
		SignAccess: func(s Subject) (string, *jwt.AccessClaims, error) {
			claims := &jwt.AccessClaims{UserID: s.UserID, Email: s.Email, UserType: s.UserType, APIServiceCallLimit: s.APIServiceCallLimit}
			token, err := f.access.Sign(claims)
			return token, claims, err
		},
		SignRefresh: func(userID string, version int64) (string, error) {
			return f.refresh.Sign(&jwt.RefreshClaims{UserID: userID, RefreshTokenVersion: version})
		},
		VerifyAccess: func(token string) (*jwt.AccessClaims, error) {
			var c jwt.AccessClaims
			if err := f.access.Verify(token, &c); err != nil {
				return nil, err
			}
			return &c, nil
		},
		VerifyRefresh: func(token string) (*jwt.RefreshClaims, error) {
			var c jwt.RefreshClaims
			if err := f.refresh.Verify(token, &c); err != nil {
				return nil, err
			}
			return &c, nil
		},
		LoadSubject: func(_ context.Context, userID string) (Subject, error) {
			s, ok := f.subjects[userID]
			if !ok {
				return Subject{}, errNoUser
			}
			return s, nil
		},
		UserNotFound: errNoUser,
		Versions:     f.versions,
	}
	return f
}

func (f *fixture) issue(t *testing.T) IssueResult {
	t.Helper()
	res := RunIssue(context.Background(), f.subjects["u-1"], f.deps)
	if res.Failure != IssueFailureNone {
		t.Fatalf("RunIssue failure %v: %v", res.Failure, res.Err)
	}
	return res
}

func TestRunIssueMissingVersion(t *testing.T) {
	f := newFixture(t)
	delete(f.versions.versions, "u-1")

	res := RunIssue(context.Background(), f.subjects["u-1"], f.deps)
	if res.Failure != IssueFailureMissingVersion {
		t.Fatalf("failure = %v", res.Failure)
	}
}

func TestRunIssueVersionLookupError(t *testing.T) {
	f := newFixture(t)
	f.versions.err = session.ErrRedisUnavailable

	res := RunIssue(context.Background(), f.subjects["u-1"], f.deps)
	if res.Failure != IssueFailureVersionLookup || !errors.Is(res.Err, session.ErrRedisUnavailable) {
		t.Fatalf("failure = %v, err = %v", res.Failure, res.Err)
	}
}

func TestRunCheckFastPathSkipsStore(t *testing.T) {
	f := newFixture(t)
	pair := f.issue(t)
	f.versions.err = errors.New("store must not be touched")

	res := RunCheck(context.Background(), pair.AccessToken, pair.RefreshToken, f.deps)
	if res.Failure != CheckFailureNone {
		t.Fatalf("failure = %v: %v", res.Failure, res.Err)
	}
	if res.Refreshed || res.AccessToken != pair.AccessToken {
		t.Fatal("fast path must return the same access token")
	}
}

func TestRunCheckTable(t *testing.T) {
	cases := []struct {
		name    string
		prepare func(f *fixture, pair *IssueResult)
		want    CheckFailureKind
	}{
		{
			name: "expired access refreshes",
			prepare: func(f *fixture, _ *IssueResult) {
				f.now = f.now.Add(6 * time.Minute)
			},
			want: CheckFailureNone,
		},
		{
			name: "garbage access is rejected without refresh",
			prepare: func(f *fixture, pair *IssueResult) {
				pair.AccessToken = "garbage"
			},
			want: CheckFailureAccessRejected,
		},
		{
			name: "expired refresh",
			prepare: func(f *fixture, _ *IssueResult) {
				f.now = f.now.Add(31 * 24 * time.Hour)
			},
			want: CheckFailureRefreshExpired,
		},
		{
			name: "invalid refresh",
			prepare: func(f *fixture, pair *IssueResult) {
				f.now = f.now.Add(6 * time.Minute)
				pair.RefreshToken = pair.AccessToken
			},
			want: CheckFailureRefreshRejected,
		},
		{
			name: "user gone",
			prepare: func(f *fixture, _ *IssueResult) {
				f.now = f.now.Add(6 * time.Minute)
				delete(f.subjects, "u-1")
			},
			want: CheckFailureUserMissing,
		},
		{
			name: "version record gone",
			prepare: func(f *fixture, _ *IssueResult) {
				f.now = f.now.Add(6 * time.Minute)
				delete(f.versions.versions, "u-1")
			},
			want: CheckFailureMissingVersion,
		},
		{
			name: "store down",
			prepare: func(f *fixture, _ *IssueResult) {
				f.now = f.now.Add(6 * time.Minute)
				f.versions.err = session.ErrRedisUnavailable
			},
			want: CheckFailureVersionLookup,
		},
		{
			name: "version bumped",
			prepare: func(f *fixture, _ *IssueResult) {
				f.now = f.now.Add(6 * time.Minute)
				f.versions.versions["u-1"] = 2
			},
			want: CheckFailureVersionMismatch,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			pair := f.issue(t)
			tc.prepare(f, &pair)

			res := RunCheck(context.Background(), pair.AccessToken, pair.RefreshToken, f.deps)
			if res.Failure != tc.want {
				t.Fatalf("failure = %v, want %v (err %v)", res.Failure, tc.want, res.Err)
			}
		})
	}
}

func TestRunCheckRefreshMintsNewAccessOnly(t *testing.T) {
	f := newFixture(t)
	pair := f.issue(t)
	f.now = f.now.Add(6 * time.Minute)

	res := RunCheck(context.Background(), pair.AccessToken, pair.RefreshToken, f.deps)
	if res.Failure != CheckFailureNone || !res.Refreshed {
		t.Fatalf("expected refresh, got %v: %v", res.Failure, res.Err)
	}
	if res.AccessToken == pair.AccessToken {
		t.Fatal("expected a new access token")
	}
	if res.Claims.Email != "a@x.com" || res.Claims.APIServiceCallLimit != 20 {
		t.Fatalf("claims = %+v", res.Claims)
	}
	if !res.Claims.ExpiresAt.Time.Equal(f.now.Add(5 * time.Minute)) {
		t.Fatalf("new expiry = %v", res.Claims.ExpiresAt.Time)
	}
	if res.AccessKind != jwt.KindExpired {
		t.Fatalf("access kind = %v", res.AccessKind)
	}
}

func TestRunCheckVersionMismatchReportsVersions(t *testing.T) {
	f := newFixture(t)
	pair := f.issue(t)
	f.versions.versions["u-1"] = 5
	f.now = f.now.Add(6 * time.Minute)

	res := RunCheck(context.Background(), pair.AccessToken, pair.RefreshToken, f.deps)
	if res.StoredVersion != 5 || res.TokenVersion != 1 {
		t.Fatalf("versions = stored %d token %d", res.StoredVersion, res.TokenVersion)
	}
}

func TestRunInvalidate(t *testing.T) {
	f := newFixture(t)

	res := RunInvalidate(context.Background(), "u-1", f.deps)
	if res.Failure != InvalidateFailureNone || res.Version != 2 {
		t.Fatalf("RunInvalidate = %+v", res)
	}

	if res := RunInvalidate(context.Background(), "ghost", f.deps); res.Failure != InvalidateFailureUserMissing {
		t.Fatalf("unknown user failure = %v", res.Failure)
	}

	f.subjects["u-2"] = Subject{UserID: "u-2"}
	if res := RunInvalidate(context.Background(), "u-2", f.deps); res.Failure != InvalidateFailureMissingVersion {
		t.Fatalf("unprovisioned user failure = %v", res.Failure)
	}

	f.versions.err = session.ErrRedisUnavailable
	if res := RunInvalidate(context.Background(), "u-1", f.deps); res.Failure != InvalidateFailureIncrement {
		t.Fatalf("store down failure = %v", res.Failure)
	}
}

func TestServiceInitialized(t *testing.T) {
	if (Service{}).Initialized() {
		t.Fatal("zero Service must not report initialized")
	}
	f := newFixture(t)
	if !New(Deps{Tokens: f.deps}).Initialized() {
		t.Fatal("wired Service must report initialized")
	}
}
