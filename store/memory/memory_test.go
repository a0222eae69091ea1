package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obsvault/authgate"
	"github.com/obsvault/authgate/session"
)

func TestUsersCreateAndFind(t *testing.T) {
	ctx := context.Background()
	s := NewUsers()

	u, err := s.Create(ctx, authgate.NewUser{Email: "a@x.com", UserType: authgate.UserTypeRegular, APIServiceCallLimit: 20})
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)
	assert.False(t, u.CreatedAt.IsZero())

	byID, err := s.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u, byID)

	byEmail, err := s.FindByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)

	_, err = s.Create(ctx, authgate.NewUser{Email: "a@x.com"})
	assert.ErrorIs(t, err, authgate.ErrEmailTaken)

	_, err = s.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, authgate.ErrUserNotFound)
	_, err = s.FindByEmail(ctx, "missing@x.com")
	assert.ErrorIs(t, err, authgate.ErrUserNotFound)
}

func TestUsersUpdate(t *testing.T) {
	ctx := context.Background()
	s := NewUsers()
	a, err := s.Create(ctx, authgate.NewUser{Email: "a@x.com"})
	require.NoError(t, err)
	_, err = s.Create(ctx, authgate.NewUser{Email: "b@x.com"})
	require.NoError(t, err)

	email := "c@x.com"
	limit := 7
	updated, err := s.Update(ctx, a.ID, authgate.UserPatch{Email: &email, APIServiceCallLimit: &limit})
	require.NoError(t, err)
	assert.Equal(t, "c@x.com", updated.Email)
	assert.Equal(t, 7, updated.APIServiceCallLimit)

	_, err = s.FindByEmail(ctx, "a@x.com")
	assert.ErrorIs(t, err, authgate.ErrUserNotFound, "old email must be released")

	taken := "b@x.com"
	_, err = s.Update(ctx, a.ID, authgate.UserPatch{Email: &taken})
	assert.ErrorIs(t, err, authgate.ErrEmailTaken)

	_, err = s.Update(ctx, "missing", authgate.UserPatch{Email: &email})
	assert.ErrorIs(t, err, authgate.ErrUserNotFound)
}

func TestUsersDeleteIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewUsers()
	u, err := s.Create(ctx, authgate.NewUser{Email: "a@x.com"})
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, u.ID))
	require.NoError(t, s.Delete(ctx, u.ID))
	assert.Equal(t, 0, s.Len())

	_, err = s.Create(ctx, authgate.NewUser{Email: "a@x.com"})
	assert.NoError(t, err, "email should be reusable after delete")
}

func TestVersionsLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewVersions()

	_, err := s.GetVersion(ctx, "u1")
	assert.ErrorIs(t, err, session.ErrVersionNotFound)
	_, err = s.IncrementVersion(ctx, "u1")
	assert.ErrorIs(t, err, session.ErrVersionNotFound)

	v, err := s.CreateVersion(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, session.InitialVersion, v)

	_, err = s.CreateVersion(ctx, "u1")
	assert.ErrorIs(t, err, session.ErrVersionExists)

	v, err = s.IncrementVersion(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)

	require.NoError(t, s.DeleteVersion(ctx, "u1"))
	_, err = s.GetVersion(ctx, "u1")
	assert.True(t, errors.Is(err, session.ErrVersionNotFound))
}

func TestVersionsConcurrentIncrement(t *testing.T) {
	ctx := context.Background()
	s := NewVersions()
	_, err := s.CreateVersion(ctx, "u1")
	require.NoError(t, err)

	const n = 100
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.IncrementVersion(ctx, "u1")
		}()
	}
	wg.Wait()

	v, err := s.GetVersion(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, session.InitialVersion+n, v)
}
