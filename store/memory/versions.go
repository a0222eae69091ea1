package memory

import (
	"context"
	"sync"

	"github.com/obsvault/authgate/session"
)

// Versions is an in-memory refresh-token version store.
type Versions struct {
	mu       sync.Mutex
	versions map[string]int64
}

var (
	_ session.VersionStore = (*Versions)(nil)
	_ session.Provisioner  = (*Versions)(nil)
)

func NewVersions() *Versions {
	return &Versions{versions: map[string]int64{}}
}

func (s *Versions) CreateVersion(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.versions[userID]; ok {
		return 0, session.ErrVersionExists
	}
	s.versions[userID] = session.InitialVersion
	return session.InitialVersion, nil
}

func (s *Versions) GetVersion(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.versions[userID]
	if !ok {
		return 0, session.ErrVersionNotFound
	}
	return v, nil
}

func (s *Versions) IncrementVersion(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.versions[userID]
	if !ok {
		return 0, session.ErrVersionNotFound
	}
	v++
	s.versions[userID] = v
	return v, nil
}

func (s *Versions) DeleteVersion(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.versions, userID)
	return nil
}
