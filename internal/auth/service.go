package auth

import (
	"context"
	"time"

	"github.com/nimbusdrive/nimbusdrive/internal/credentials"
	"github.com/nimbusdrive/nimbusdrive/internal/shared"
)

// Service wraps authentication business rules. Incoming passwords have
// already been normalized to digests by the credentials middleware, so the
// comparison here never touches plaintext.
type Service struct {
	repo Repository
}

// NewService constructs a new Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Authenticate validates an email/credential-digest pair.
func (s *Service) Authenticate(ctx context.Context, email, digest string) (*Account, error) {
	account, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if account.Disabled {
		return nil, shared.ErrInvalidCredentials
	}
	if !credentials.VerifyDigest(digest, account.CredentialDigest) {
		return nil, shared.ErrInvalidCredentials
	}
	return account, nil
}

// RegisterSession persists the session metadata in postgres.
func (s *Service) RegisterSession(ctx context.Context, id, userID string, expiresAt time.Time, ip, ua string) error {
	return s.repo.CreateSession(ctx, id, userID, expiresAt, ip, ua)
}

// RemoveSession deletes a session record from postgres.
func (s *Service) RemoveSession(ctx context.Context, id string) error {
	return s.repo.DeleteSession(ctx, id)
}
