package authgate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/obsvault/authgate/internal/rate"
	"github.com/obsvault/authgate/password"
	"github.com/obsvault/authgate/usage"
)

// Signup creates a user with the configured default role and call limit,
// provisions its refresh-token version and usage entry, and returns a fresh
// token pair. Partially created records are removed when a later step fails.
func (s *Service) Signup(ctx context.Context, email, plain string) (User, AuthTokenPair, error) {
	if !s.ready() {
		return User{}, AuthTokenPair{}, ErrServiceNotReady
	}
	if s.accounts == nil || s.provisioner == nil {
		return User{}, AuthTokenPair{}, ErrAccountsNotConfigured
	}

	email, err := normalizeEmail(email)
	if err != nil {
		s.emitAudit(ctx, auditEventSignupFailure, false, "", err, nil)
		return User{}, AuthTokenPair{}, err
	}
	hash, err := s.hashPassword(plain)
	if err != nil {
		s.emitAudit(ctx, auditEventSignupFailure, false, "", err, nil)
		return User{}, AuthTokenPair{}, err
	}

	user, err := s.accounts.Create(ctx, NewUser{
		Email:               email,
		PasswordHash:        hash,
		UserType:            s.config.Accounts.DefaultUserType,
		APIServiceCallLimit: s.config.Accounts.DefaultCallLimit,
	})
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			s.metrics.Inc(MetricSignupDuplicate)
			s.emitAudit(ctx, auditEventSignupFailure, false, "", ErrEmailTaken, nil)
			return User{}, AuthTokenPair{}, ErrEmailTaken
		}
		return User{}, AuthTokenPair{}, s.storeFailure(ctx, "create user", "", err)
	}

	if _, err := s.provisioner.CreateVersion(ctx, user.ID); err != nil {
		s.rollbackSignup(ctx, user.ID, false, false)
		return User{}, AuthTokenPair{}, s.storeFailure(ctx, "create refresh token version", user.ID, err)
	}
	if s.usage != nil {
		if err := s.usage.Create(ctx, user.ID); err != nil {
			s.rollbackSignup(ctx, user.ID, true, false)
			return User{}, AuthTokenPair{}, s.storeFailure(ctx, "create usage entry", user.ID, err)
		}
	}

	pair, err := s.CreateAuthTokens(ctx, user)
	if err != nil {
		s.rollbackSignup(ctx, user.ID, true, s.usage != nil)
		return User{}, AuthTokenPair{}, err
	}

	s.metrics.Inc(MetricSignupSuccess)
	s.logger.InfoContext(ctx, "user signed up", slog.String("user_id", user.ID))
	s.emitAudit(ctx, auditEventSignupSuccess, true, user.ID, nil, nil)
	return user, pair, nil
}

func (s *Service) rollbackSignup(ctx context.Context, userID string, version, usageEntry bool) {
	ctx = context.WithoutCancel(ctx)
	if usageEntry {
		if err := s.usage.Delete(ctx, userID); err != nil {
			s.logger.ErrorContext(ctx, "signup rollback: delete usage entry",
				slog.String("user_id", userID), slog.Any("error", err))
		}
	}
	if version {
		if err := s.provisioner.DeleteVersion(ctx, userID); err != nil {
			s.logger.ErrorContext(ctx, "signup rollback: delete refresh token version",
				slog.String("user_id", userID), slog.Any("error", err))
		}
	}
	if err := s.accounts.Delete(ctx, userID); err != nil {
		s.logger.ErrorContext(ctx, "signup rollback: delete user",
			slog.String("user_id", userID), slog.Any("error", err))
	}
}

// Login verifies the password for email and returns a fresh token pair.
// Existing sessions on other devices are left untouched.
func (s *Service) Login(ctx context.Context, email, plain string) (User, AuthTokenPair, error) {
	if !s.ready() {
		return User{}, AuthTokenPair{}, ErrServiceNotReady
	}

	email, err := normalizeEmail(email)
	if err != nil {
		return User{}, AuthTokenPair{}, err
	}
	if plain == "" {
		return User{}, AuthTokenPair{}, ErrEmptyPassword
	}
	if err := s.checkLoginThrottle(ctx, email); err != nil {
		return User{}, AuthTokenPair{}, err
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.metrics.Inc(MetricLoginFailure)
			s.recordLoginFailure(ctx, email)
			s.emitAudit(ctx, auditEventLoginFailure, false, "", ErrEmailNotFound, nil)
			return User{}, AuthTokenPair{}, ErrEmailNotFound
		}
		return User{}, AuthTokenPair{}, s.storeFailure(ctx, "find user by email", "", err)
	}

	ok, err := s.hasher.Verify(plain, user.PasswordHash)
	if err != nil {
		s.logger.ErrorContext(ctx, "stored password hash is unreadable",
			slog.String("user_id", user.ID), slog.Any("error", err))
		return User{}, AuthTokenPair{}, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		s.metrics.Inc(MetricLoginFailure)
		s.recordLoginFailure(ctx, email)
		s.emitAudit(ctx, auditEventLoginFailure, false, user.ID, ErrIncorrectPassword, nil)
		return User{}, AuthTokenPair{}, ErrIncorrectPassword
	}

	if s.config.Password.UpgradeOnLogin {
		s.upgradePasswordHash(ctx, user, plain)
	}

	pair, err := s.CreateAuthTokens(ctx, user)
	if err != nil {
		return User{}, AuthTokenPair{}, err
	}

	if s.throttle != nil {
		if err := s.throttle.Reset(ctx, email); err != nil {
			s.logger.WarnContext(ctx, "login throttle reset failed",
				slog.String("user_id", user.ID), slog.Any("error", err))
		}
	}

	s.metrics.Inc(MetricLoginSuccess)
	s.emitAudit(ctx, auditEventLoginSuccess, true, user.ID, nil, nil)
	return user, pair, nil
}

func (s *Service) checkLoginThrottle(ctx context.Context, email string) error {
	if s.throttle == nil {
		return nil
	}
	err := s.throttle.CheckLogin(ctx, email, clientIPFromContext(ctx))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rate.ErrRateLimited):
		s.metrics.Inc(MetricLoginThrottled)
		s.emitAudit(ctx, auditEventLoginThrottled, false, "", ErrLoginThrottled, nil)
		return ErrLoginThrottled
	default:
		return s.storeFailure(ctx, "check login throttle", "", err)
	}
}

// recordLoginFailure never fails the login it is called from; the caller
// already has a more specific error to return.
func (s *Service) recordLoginFailure(ctx context.Context, email string) {
	if s.throttle == nil {
		return
	}
	if err := s.throttle.RecordFailure(ctx, email, clientIPFromContext(ctx)); err != nil {
		s.logger.WarnContext(ctx, "login throttle update failed", slog.Any("error", err))
	}
}

// upgradePasswordHash rehashes with the current cost parameters. Failure is
// logged and does not fail the login.
func (s *Service) upgradePasswordHash(ctx context.Context, user User, plain string) {
	if s.accounts == nil {
		return
	}
	stale, err := s.hasher.NeedsUpgrade(user.PasswordHash)
	if err != nil || !stale {
		return
	}
	hash, err := s.hasher.Hash(plain)
	if err != nil {
		return
	}
	if _, err := s.accounts.Update(ctx, user.ID, UserPatch{PasswordHash: &hash}); err != nil {
		s.logger.WarnContext(ctx, "password hash upgrade failed",
			slog.String("user_id", user.ID), slog.Any("error", err))
	}
}

// Logout revokes every refresh token of userID, signing the user out on all
// devices once their access tokens expire.
func (s *Service) Logout(ctx context.Context, userID string) error {
	if _, err := s.InvalidateAllCurrentRefreshTokensWithUserID(ctx, userID); err != nil {
		return err
	}
	s.metrics.Inc(MetricLogout)
	s.emitAudit(ctx, auditEventLogout, true, userID, nil, nil)
	return nil
}

// Profile returns the stored user together with the consumed call count.
func (s *Service) Profile(ctx context.Context, userID string) (Profile, error) {
	if !s.ready() {
		return Profile{}, ErrServiceNotReady
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return Profile{}, ErrUserNotFound
		}
		return Profile{}, s.storeFailure(ctx, "find user", userID, err)
	}

	p := Profile{
		ID:                  user.ID,
		Email:               user.Email,
		UserType:            user.UserType,
		APIServiceCallLimit: user.APIServiceCallLimit,
	}
	if s.usage != nil {
		used, err := s.usage.Used(ctx, userID)
		switch {
		case errors.Is(err, usage.ErrEntryNotFound):
			return Profile{}, ErrMissingUsageRecord
		case err != nil:
			return Profile{}, s.storeFailure(ctx, "read usage entry", userID, err)
		}
		p.APIServiceCallsUsed = used
	}
	return p, nil
}

// UpdateUser applies an administrative change. A password change also
// revokes every refresh token of the user. Other changes reach the client
// with the next access token, so they take effect within one access TTL.
func (s *Service) UpdateUser(ctx context.Context, userID string, update UserUpdate) (User, error) {
	if !s.ready() {
		return User{}, ErrServiceNotReady
	}
	if s.accounts == nil {
		return User{}, ErrAccountsNotConfigured
	}

	var patch UserPatch
	if update.Email != nil {
		email, err := normalizeEmail(*update.Email)
		if err != nil {
			return User{}, err
		}
		patch.Email = &email
	}
	if update.Password != nil {
		hash, err := s.hashPassword(*update.Password)
		if err != nil {
			return User{}, err
		}
		patch.PasswordHash = &hash
	}
	if update.UserType != nil {
		if !s.KnownUserType(*update.UserType) {
			return User{}, ErrInvalidUserType
		}
		userType := *update.UserType
		patch.UserType = &userType
	}
	if update.APIServiceCallLimit != nil {
		if *update.APIServiceCallLimit < 0 {
			return User{}, ErrInvalidCallLimit
		}
		limit := *update.APIServiceCallLimit
		patch.APIServiceCallLimit = &limit
	}
	if patch.Empty() {
		return User{}, ErrInvalidRequest
	}

	user, err := s.accounts.Update(ctx, userID, patch)
	if err != nil {
		switch {
		case errors.Is(err, ErrUserNotFound):
			return User{}, ErrUserNotFound
		case errors.Is(err, ErrEmailTaken):
			return User{}, ErrEmailTaken
		}
		return User{}, s.storeFailure(ctx, "update user", userID, err)
	}

	s.emitAudit(ctx, auditEventUserUpdated, true, userID, nil, func() map[string]string {
		fields := make([]string, 0, 4)
		if patch.Email != nil {
			fields = append(fields, "email")
		}
		if patch.PasswordHash != nil {
			fields = append(fields, "password")
		}
		if patch.UserType != nil {
			fields = append(fields, "userType")
		}
		if patch.APIServiceCallLimit != nil {
			fields = append(fields, "apiServiceCallLimit")
		}
		return map[string]string{"fields": strings.Join(fields, ",")}
	})

	if patch.PasswordHash != nil {
		if _, err := s.InvalidateAllCurrentRefreshTokensWithUserID(ctx, userID); err != nil {
			return user, err
		}
	}
	return user, nil
}

func (s *Service) hashPassword(plain string) (string, error) {
	if plain == "" {
		return "", ErrEmptyPassword
	}
	hash, err := s.hasher.Hash(plain)
	switch {
	case errors.Is(err, password.ErrTooShort), errors.Is(err, password.ErrTooLong):
		return "", fmt.Errorf("%w: %w", ErrPasswordPolicy, err)
	case err != nil:
		return "", fmt.Errorf("hash password: %w", err)
	}
	return hash, nil
}

// normalizeEmail trims and lowercases raw and rejects anything that is not
// a bare address.
func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", ErrEmptyEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}
