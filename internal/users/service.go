package users

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/nimbusdrive/nimbusdrive/internal/authz"
	"github.com/nimbusdrive/nimbusdrive/internal/credentials"
	"github.com/nimbusdrive/nimbusdrive/internal/shared"
)

// CodeVerifier checks registration verification codes. Implemented by the
// verification service.
type CodeVerifier interface {
	VerifyEmailCode(ctx context.Context, email, code string) error
}

// Service handles user business logic. Every mutation that feeds the
// identity snapshot calls the invalidator, which the constructor requires.
type Service struct {
	repo        Repository
	invalidator authz.Invalidator
	codes       CodeVerifier
	avatars     AvatarStore
}

// NewService builds a Service instance.
func NewService(repo Repository, invalidator authz.Invalidator, codes CodeVerifier, avatars AvatarStore) *Service {
	return &Service{repo: repo, invalidator: invalidator, codes: codes, avatars: avatars}
}

// GetUser fetches a user by ID.
func (s *Service) GetUser(ctx context.Context, id string) (*User, error) {
	return s.repo.GetUser(ctx, id)
}

// ListUsers returns a page of users.
func (s *Service) ListUsers(ctx context.Context, filter Filter, page, size int) ([]User, shared.Pagination, error) {
	pagination := shared.NewPagination(page, size, 0)
	list, total, err := s.repo.ListUsers(ctx, filter, pagination.PerPage, pagination.Offset())
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return list, shared.NewPagination(page, size, total), nil
}

// AddUser creates a user directly (management path, no verification).
func (s *Service) AddUser(ctx context.Context, email, nickname, password string) (*User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return nil, errors.New("users: email and password required")
	}
	user := User{
		ID:       uuid.NewString(),
		Email:    email,
		Nickname: normalizeNickname(nickname),
	}
	if err := s.repo.CreateUser(ctx, user, credentials.Digest(email, password)); err != nil {
		return nil, err
	}
	return &user, nil
}

// Register creates a user after checking the email verification code.
func (s *Service) Register(ctx context.Context, email, code, nickname, password string) (*User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if err := s.codes.VerifyEmailCode(ctx, email, code); err != nil {
		return nil, err
	}
	user := User{
		ID:       uuid.NewString(),
		Email:    email,
		Nickname: normalizeNickname(nickname),
	}
	if err := s.repo.CreateUser(ctx, user, credentials.Digest(email, password)); err != nil {
		return nil, err
	}
	return &user, nil
}

// Delete removes a user and drops its cached identity.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.DeleteUser(ctx, id); err != nil {
		return err
	}
	return s.invalidator.Invalidate(ctx, id)
}

// SetDisabled enables or disables a user and drops its cached identity.
func (s *Service) SetDisabled(ctx context.Context, id string, disabled bool) error {
	if err := s.repo.SetDisabled(ctx, id, disabled); err != nil {
		return err
	}
	return s.invalidator.Invalidate(ctx, id)
}

// ResetPassword replaces the credential digest and drops the cached identity.
func (s *Service) ResetPassword(ctx context.Context, id, newPassword string) error {
	user, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.SetCredentialDigest(ctx, id, credentials.Digest(user.Email, newPassword)); err != nil {
		return err
	}
	return s.invalidator.Invalidate(ctx, id)
}

// UpdateInfo updates profile fields and drops the cached identity.
func (s *Service) UpdateInfo(ctx context.Context, id, nickname string) error {
	if err := s.repo.UpdateInfo(ctx, id, normalizeNickname(nickname)); err != nil {
		return err
	}
	return s.invalidator.Invalidate(ctx, id)
}

// GetRoles lists the role IDs held by a user.
func (s *Service) GetRoles(ctx context.Context, id string) ([]string, error) {
	if _, err := s.repo.GetUser(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.GetRoles(ctx, id)
}

// AddRoles attaches roles and drops the cached identity.
func (s *Service) AddRoles(ctx context.Context, id string, roleIDs []string) error {
	if err := s.repo.AddRoles(ctx, id, roleIDs); err != nil {
		return err
	}
	return s.invalidator.Invalidate(ctx, id)
}

// RemoveRoles detaches roles and drops the cached identity.
func (s *Service) RemoveRoles(ctx context.Context, id string, roleIDs []string) error {
	if err := s.repo.RemoveRoles(ctx, id, roleIDs); err != nil {
		return err
	}
	return s.invalidator.Invalidate(ctx, id)
}

// SaveAvatar stores the caller's avatar.
func (s *Service) SaveAvatar(ctx context.Context, userID string, avatar Avatar) error {
	return s.avatars.SaveAvatar(ctx, userID, avatar)
}

// GetAvatar fetches the caller's avatar.
func (s *Service) GetAvatar(ctx context.Context, userID string) (Avatar, error) {
	return s.avatars.GetAvatar(ctx, userID)
}

// normalizeNickname canonicalises user-supplied display names so equal-looking
// names compare equal.
func normalizeNickname(nickname string) string {
	return norm.NFC.String(strings.TrimSpace(nickname))
}
