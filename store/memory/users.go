package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/obsvault/authgate"
)

// Users is an in-memory [authgate.UserRepository]. Email lookups are exact;
// callers normalize addresses before storing them.
type Users struct {
	mu      sync.RWMutex
	byID    map[string]authgate.User
	byEmail map[string]string
	now     func() time.Time
}

var _ authgate.UserRepository = (*Users)(nil)

func NewUsers() *Users {
	return &Users{
		byID:    map[string]authgate.User{},
		byEmail: map[string]string{},
		now:     time.Now,
	}
}

func (s *Users) FindByID(_ context.Context, id string) (authgate.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byID[id]
	if !ok {
		return authgate.User{}, authgate.ErrUserNotFound
	}
	return u, nil
}

func (s *Users) FindByEmail(_ context.Context, email string) (authgate.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[email]
	if !ok {
		return authgate.User{}, authgate.ErrUserNotFound
	}
	return s.byID[id], nil
}

func (s *Users) Create(_ context.Context, nu authgate.NewUser) (authgate.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byEmail[nu.Email]; taken {
		return authgate.User{}, authgate.ErrEmailTaken
	}

	now := s.now().UTC()
	u := authgate.User{
		ID:                  uuid.NewString(),
		Email:               nu.Email,
		PasswordHash:        nu.PasswordHash,
		UserType:            nu.UserType,
		APIServiceCallLimit: nu.APIServiceCallLimit,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	s.byID[u.ID] = u
	s.byEmail[u.Email] = u.ID
	return u, nil
}

func (s *Users) Update(_ context.Context, id string, p authgate.UserPatch) (authgate.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return authgate.User{}, authgate.ErrUserNotFound
	}
	if p.Email != nil && *p.Email != u.Email {
		if _, taken := s.byEmail[*p.Email]; taken {
			return authgate.User{}, authgate.ErrEmailTaken
		}
		delete(s.byEmail, u.Email)
		u.Email = *p.Email
		s.byEmail[u.Email] = id
	}
	if p.PasswordHash != nil {
		u.PasswordHash = *p.PasswordHash
	}
	if p.UserType != nil {
		u.UserType = *p.UserType
	}
	if p.APIServiceCallLimit != nil {
		u.APIServiceCallLimit = *p.APIServiceCallLimit
	}
	u.UpdatedAt = s.now().UTC()
	s.byID[id] = u
	return u, nil
}

// Delete is idempotent.
func (s *Users) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.byID[id]; ok {
		delete(s.byEmail, u.Email)
		delete(s.byID, id)
	}
	return nil
}

func (s *Users) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}
