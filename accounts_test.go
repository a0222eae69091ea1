package authgate

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestSignupProvisionsAndIssuesTokens(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)
	ctx := context.Background()

	user, pair, err := env.svc.Signup(ctx, "  A@X.com ", "hunter22")
	if err != nil {
		t.Fatalf("Signup failed: %v", err)
	}
	if user.Email != "a@x.com" {
		t.Fatalf("expected normalized email, got %q", user.Email)
	}
	if user.UserType != UserTypeRegular || user.APIServiceCallLimit != 20 {
		t.Fatalf("unexpected defaults: %+v", user)
	}
	if strings.Contains(user.PasswordHash, "hunter22") || !strings.HasPrefix(user.PasswordHash, "$argon2id$") {
		t.Fatalf("password must be stored as an argon2id hash, got %q", user.PasswordHash)
	}

	if v, err := env.versions.GetVersion(ctx, user.ID); err != nil || v != 1 {
		t.Fatalf("expected version 1, got %d err=%v", v, err)
	}
	if used, err := env.counter.Used(ctx, user.ID); err != nil || used != 0 {
		t.Fatalf("expected usage entry at 0, got %d err=%v", used, err)
	}
	if _, err := env.svc.CheckAuthTokens(ctx, pair); err != nil {
		t.Fatalf("signup tokens should verify: %v", err)
	}
}

func TestSignupValidation(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)
	ctx := context.Background()

	cases := []struct {
		name, email, password string
		want                  error
	}{
		{"empty email", "", "hunter22", ErrEmptyEmail},
		{"invalid email", "not-an-email", "hunter22", ErrInvalidEmail},
		{"display name", "Bob <b@x.com>", "hunter22", ErrInvalidEmail},
		{"empty password", "b@x.com", "", ErrEmptyPassword},
		{"short password", "b@x.com", "abc", ErrPasswordPolicy},
		{"long password", "b@x.com", strings.Repeat("p", 2000), ErrPasswordPolicy},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := env.svc.Signup(ctx, tc.email, tc.password)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
	if env.users.count() != 0 {
		t.Fatal("rejected signups must not create users")
	}
}

func TestSignupDuplicateEmail(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)
	ctx := context.Background()

	if _, _, err := env.svc.Signup(ctx, "a@x.com", "hunter22"); err != nil {
		t.Fatalf("first signup failed: %v", err)
	}
	if _, _, err := env.svc.Signup(ctx, "A@x.com", "hunter23"); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
	if env.svc.MetricsSnapshot().Counters[MetricSignupDuplicate] != 1 {
		t.Fatal("expected duplicate signup metric")
	}
}

func TestSignupRollsBackWhenProvisioningFails(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)
	ctx := context.Background()

	// A leftover version record makes provisioning fail for the next id.
	if _, err := env.versions.CreateVersion(ctx, "u1"); err != nil {
		t.Fatalf("seed version: %v", err)
	}

	_, _, err := env.svc.Signup(ctx, "a@x.com", "hunter22")
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if env.users.count() != 0 {
		t.Fatal("expected the user to be removed after a failed signup")
	}
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)
	ctx := context.Background()

	signedUp, _, err := env.svc.Signup(ctx, "a@x.com", "hunter22")
	if err != nil {
		t.Fatalf("Signup failed: %v", err)
	}

	user, pair, err := env.svc.Login(ctx, "A@x.com", "hunter22")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if user.ID != signedUp.ID {
		t.Fatalf("expected user %s, got %s", signedUp.ID, user.ID)
	}
	res, err := env.svc.CheckAuthTokens(ctx, pair)
	if err != nil {
		t.Fatalf("login tokens should verify: %v", err)
	}
	if res.Claims.UserID != user.ID {
		t.Fatal("claims should carry the user id")
	}

	if _, _, err := env.svc.Login(ctx, "a@x.com", "wrong-pass"); !errors.Is(err, ErrIncorrectPassword) {
		t.Fatalf("expected ErrIncorrectPassword, got %v", err)
	}
	if _, _, err := env.svc.Login(ctx, "nobody@x.com", "hunter22"); !errors.Is(err, ErrEmailNotFound) {
		t.Fatalf("expected ErrEmailNotFound, got %v", err)
	}
	if _, _, err := env.svc.Login(ctx, "a@x.com", ""); !errors.Is(err, ErrEmptyPassword) {
		t.Fatalf("expected ErrEmptyPassword, got %v", err)
	}

	snap := env.svc.MetricsSnapshot()
	if snap.Counters[MetricLoginSuccess] != 1 || snap.Counters[MetricLoginFailure] != 2 {
		t.Fatalf("unexpected login metrics: %+v", snap.Counters)
	}
}

func TestLoginUpgradesStaleHash(t *testing.T) {
	weak := testConfig()
	env := newTestEnv(t, weak, nil)
	ctx := context.Background()

	user, _, err := env.svc.Signup(ctx, "a@x.com", "hunter22")
	if err != nil {
		t.Fatalf("Signup failed: %v", err)
	}
	oldHash := user.PasswordHash

	stronger := weak
	stronger.Password.Time = 2
	upgraded, err := New().
		WithConfig(stronger).
		WithUserStore(env.users).
		WithVersionStore(env.versions).
		WithUsageCounter(env.counter).
		WithClock(env.clock.Now).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer upgraded.Close()

	if _, _, err := upgraded.Login(ctx, "a@x.com", "hunter22"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	stored, _ := env.users.FindByID(ctx, user.ID)
	if stored.PasswordHash == oldHash || !strings.Contains(stored.PasswordHash, "t=2") {
		t.Fatalf("expected hash to be upgraded, got %q", stored.PasswordHash)
	}
}

func TestLogoutRevokesEveryDevice(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)
	ctx := context.Background()

	user, phone, err := env.svc.Signup(ctx, "a@x.com", "hunter22")
	if err != nil {
		t.Fatalf("Signup failed: %v", err)
	}
	_, laptop, err := env.svc.Login(ctx, "a@x.com", "hunter22")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if err := env.svc.Logout(ctx, user.ID); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	env.clock.Advance(6 * time.Minute)

	for name, pair := range map[string]AuthTokenPair{"phone": phone, "laptop": laptop} {
		if _, err := env.svc.CheckAuthTokens(ctx, pair); !errors.Is(err, ErrSessionExpired) {
			t.Fatalf("%s: expected ErrSessionExpired, got %v", name, err)
		}
	}

	_, fresh, err := env.svc.Login(ctx, "a@x.com", "hunter22")
	if err != nil {
		t.Fatalf("Login after logout failed: %v", err)
	}
	env.clock.Advance(6 * time.Minute)
	if _, err := env.svc.CheckAuthTokens(ctx, fresh); err != nil {
		t.Fatalf("new session should refresh: %v", err)
	}
}

func TestProfile(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)
	ctx := context.Background()

	user, pair, err := env.svc.Signup(ctx, "a@x.com", "hunter22")
	if err != nil {
		t.Fatalf("Signup failed: %v", err)
	}
	res, err := env.svc.CheckAuthTokens(ctx, pair)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if _, err := env.svc.ConsumeAPICall(ctx, res.Claims); err != nil {
		t.Fatalf("consume: %v", err)
	}

	p, err := env.svc.Profile(ctx, user.ID)
	if err != nil {
		t.Fatalf("Profile failed: %v", err)
	}
	if p.Email != "a@x.com" || p.APIServiceCallLimit != 20 || p.APIServiceCallsUsed != 1 {
		t.Fatalf("unexpected profile: %+v", p)
	}

	if _, err := env.svc.Profile(ctx, "missing"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}

	if err := env.counter.Delete(ctx, user.ID); err != nil {
		t.Fatalf("delete usage: %v", err)
	}
	if _, err := env.svc.Profile(ctx, user.ID); !errors.Is(err, ErrMissingUsageRecord) {
		t.Fatalf("expected ErrMissingUsageRecord, got %v", err)
	}
}

func TestUpdateUser(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)
	ctx := context.Background()

	user, pair, err := env.svc.Signup(ctx, "a@x.com", "hunter22")
	if err != nil {
		t.Fatalf("Signup failed: %v", err)
	}
	if _, _, err := env.svc.Signup(ctx, "b@x.com", "hunter22"); err != nil {
		t.Fatalf("Signup failed: %v", err)
	}

	admin := UserTypeAdmin
	limit := 100
	updated, err := env.svc.UpdateUser(ctx, user.ID, UserUpdate{UserType: &admin, APIServiceCallLimit: &limit})
	if err != nil {
		t.Fatalf("UpdateUser failed: %v", err)
	}
	if updated.UserType != UserTypeAdmin || updated.APIServiceCallLimit != 100 {
		t.Fatalf("unexpected user: %+v", updated)
	}

	// Role changes reach the client on the next refresh; the session survives.
	env.clock.Advance(6 * time.Minute)
	res, err := env.svc.CheckAuthTokens(ctx, pair)
	if err != nil {
		t.Fatalf("check after update: %v", err)
	}
	if res.Claims.UserType != string(UserTypeAdmin) {
		t.Fatalf("expected refreshed claims to carry ADMIN, got %s", res.Claims.UserType)
	}

	bad := UserType("ROOT")
	negative := -1
	taken := "b@x.com"
	cases := []struct {
		name   string
		update UserUpdate
		want   error
	}{
		{"empty", UserUpdate{}, ErrInvalidRequest},
		{"unknown type", UserUpdate{UserType: &bad}, ErrInvalidUserType},
		{"negative limit", UserUpdate{APIServiceCallLimit: &negative}, ErrInvalidCallLimit},
		{"email taken", UserUpdate{Email: &taken}, ErrEmailTaken},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := env.svc.UpdateUser(ctx, user.ID, tc.update); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	if _, err := env.svc.UpdateUser(ctx, "missing", UserUpdate{APIServiceCallLimit: &limit}); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestUpdatePasswordRevokesSessions(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)
	ctx := context.Background()

	user, pair, err := env.svc.Signup(ctx, "a@x.com", "hunter22")
	if err != nil {
		t.Fatalf("Signup failed: %v", err)
	}
	newPassword := "correct-horse"
	if _, err := env.svc.UpdateUser(ctx, user.ID, UserUpdate{Password: &newPassword}); err != nil {
		t.Fatalf("UpdateUser failed: %v", err)
	}

	env.clock.Advance(6 * time.Minute)
	if _, err := env.svc.CheckAuthTokens(ctx, pair); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
	if _, _, err := env.svc.Login(ctx, "a@x.com", "hunter22"); !errors.Is(err, ErrIncorrectPassword) {
		t.Fatalf("old password should fail, got %v", err)
	}
	if _, _, err := env.svc.Login(ctx, "a@x.com", newPassword); err != nil {
		t.Fatalf("new password should work: %v", err)
	}
}

func TestAccountsNotConfigured(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)

	readOnly, err := New().
		WithConfig(testConfig()).
		WithUserStore(struct{ UserStore }{env.users}).
		WithVersionStore(env.versions).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer readOnly.Close()

	if _, _, err := readOnly.Signup(context.Background(), "a@x.com", "hunter22"); !errors.Is(err, ErrAccountsNotConfigured) {
		t.Fatalf("expected ErrAccountsNotConfigured, got %v", err)
	}
}

func TestLoginThrottle(t *testing.T) {
	cfg := testConfig()
	cfg.Throttle.MaxLoginAttempts = 3
	env := newTestEnv(t, cfg, nil)
	ctx := WithClientIP(context.Background(), "203.0.113.7")

	if _, _, err := env.svc.Signup(ctx, "a@x.com", "hunter22"); err != nil {
		t.Fatalf("Signup failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, _, err := env.svc.Login(ctx, "a@x.com", "wrong-pass"); !errors.Is(err, ErrIncorrectPassword) {
			t.Fatalf("attempt %d: expected ErrIncorrectPassword, got %v", i, err)
		}
	}
	if _, _, err := env.svc.Login(ctx, "a@x.com", "hunter22"); !errors.Is(err, ErrLoginThrottled) {
		t.Fatalf("expected ErrLoginThrottled even with the right password, got %v", err)
	}
	if env.svc.MetricsSnapshot().Counters[MetricLoginThrottled] != 1 {
		t.Fatal("expected throttled metric")
	}

	env.mr.FastForward(cfg.Throttle.LoginCooldown + time.Second)
	if _, _, err := env.svc.Login(ctx, "a@x.com", "hunter22"); err != nil {
		t.Fatalf("login after cooldown failed: %v", err)
	}
}

func TestLoginSuccessResetsThrottle(t *testing.T) {
	cfg := testConfig()
	cfg.Throttle.MaxLoginAttempts = 2
	cfg.Throttle.EnableIPThrottle = false
	env := newTestEnv(t, cfg, nil)
	ctx := context.Background()

	if _, _, err := env.svc.Signup(ctx, "a@x.com", "hunter22"); err != nil {
		t.Fatalf("Signup failed: %v", err)
	}
	for round := 0; round < 3; round++ {
		if _, _, err := env.svc.Login(ctx, "a@x.com", "wrong-pass"); !errors.Is(err, ErrIncorrectPassword) {
			t.Fatalf("round %d: expected ErrIncorrectPassword, got %v", round, err)
		}
		if _, _, err := env.svc.Login(ctx, "a@x.com", "hunter22"); err != nil {
			t.Fatalf("round %d: login failed: %v", round, err)
		}
	}
}
