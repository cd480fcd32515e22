package users

import (
	"context"
	"sync"

	"github.com/nimbusdrive/nimbusdrive/internal/shared"
)

// AvatarStore persists avatar images. The backing blob storage is an
// external collaborator; only this contract is part of the core.
type AvatarStore interface {
	SaveAvatar(ctx context.Context, userID string, avatar Avatar) error
	GetAvatar(ctx context.Context, userID string) (Avatar, error)
}

// MemoryAvatarStore keeps avatars in process memory.
type MemoryAvatarStore struct {
	mu      sync.RWMutex
	avatars map[string]Avatar
}

// NewMemoryAvatarStore constructs an empty in-memory store.
func NewMemoryAvatarStore() *MemoryAvatarStore {
	return &MemoryAvatarStore{avatars: make(map[string]Avatar)}
}

// SaveAvatar stores the avatar for a user.
func (s *MemoryAvatarStore) SaveAvatar(_ context.Context, userID string, avatar Avatar) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.avatars[userID] = avatar
	return nil
}

// GetAvatar fetches the avatar for a user.
func (s *MemoryAvatarStore) GetAvatar(_ context.Context, userID string) (Avatar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	avatar, ok := s.avatars[userID]
	if !ok {
		return Avatar{}, shared.ErrNotFound
	}
	return avatar, nil
}

var _ AvatarStore = (*MemoryAvatarStore)(nil)
