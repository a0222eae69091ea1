package permission

import (
	"errors"
	"sync"
)

var (
	// ErrFrozen is returned by Register after Freeze.
	ErrFrozen = errors.New("role hierarchy frozen")
	// ErrDuplicateRole is returned when a role is registered twice.
	ErrDuplicateRole = errors.New("role already registered")
	// ErrEmptyRole is returned for an empty role name.
	ErrEmptyRole = errors.New("role name empty")
)

// Hierarchy maps role names to ranks.
type Hierarchy struct {
	mu     sync.RWMutex
	ranks  map[string]int
	frozen bool
}

// NewHierarchy returns an empty, unfrozen hierarchy.
func NewHierarchy() *Hierarchy {
	return &Hierarchy{ranks: make(map[string]int)}
}

// Register adds role with the given rank. Roles may share a rank.
func (h *Hierarchy) Register(role string, rank int) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.frozen {
		return ErrFrozen
	}
	if role == "" {
		return ErrEmptyRole
	}
	if _, exists := h.ranks[role]; exists {
		return ErrDuplicateRole
	}
	h.ranks[role] = rank
	return nil
}

// Freeze makes the hierarchy read-only.
func (h *Hierarchy) Freeze() {
	h.mu.Lock()
	h.frozen = true
	h.mu.Unlock()
}

// Known reports whether role was registered.
func (h *Hierarchy) Known(role string) bool {
	h.mu.RLock()
	_, ok := h.ranks[role]
	h.mu.RUnlock()
	return ok
}

// Dominates reports whether have ranks at or above required. Unknown roles
// never dominate and are never dominated.
func (h *Hierarchy) Dominates(have, required string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	haveRank, ok := h.ranks[have]
	if !ok {
		return false
	}
	requiredRank, ok := h.ranks[required]
	if !ok {
		return false
	}
	return haveRank >= requiredRank
}
