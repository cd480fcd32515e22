// Package verification issues and checks email verification codes for the
// registration flow.
package verification

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nimbusdrive/nimbusdrive/internal/shared"
)

const codeKeyPrefix = "verify:email:"

// MailEnqueuer hands the verification mail to the background worker.
type MailEnqueuer interface {
	EnqueueVerifyCode(ctx context.Context, email, code string) error
}

// Service stores verification codes in Redis with a TTL and delegates mail
// delivery to the job queue.
type Service struct {
	client   *redis.Client
	enqueuer MailEnqueuer
	ttl      time.Duration
	logger   *slog.Logger
}

// NewService constructs a Service.
func NewService(client *redis.Client, enqueuer MailEnqueuer, ttl time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{client: client, enqueuer: enqueuer, ttl: ttl, logger: logger}
}

// SendEmailVerifyCode generates a code, stores it under the email with a TTL
// and enqueues the delivery mail. Re-issuing overwrites the previous code.
func (s *Service) SendEmailVerifyCode(ctx context.Context, email string) error {
	code, err := generateCode()
	if err != nil {
		return fmt.Errorf("verification: generate code: %w", err)
	}
	if err := s.client.Set(ctx, codeKeyPrefix+email, code, s.ttl).Err(); err != nil {
		return fmt.Errorf("verification: store code: %w", err)
	}
	if err := s.enqueuer.EnqueueVerifyCode(ctx, email, code); err != nil {
		return fmt.Errorf("verification: enqueue mail: %w", err)
	}
	s.logger.Info("verification code issued", slog.String("email", email))
	return nil
}

// VerifyEmailCode checks the code for an email and consumes it on success.
func (s *Service) VerifyEmailCode(ctx context.Context, email, code string) error {
	stored, err := s.client.Get(ctx, codeKeyPrefix+email).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return shared.ErrVerifyCodeMismatch
		}
		return fmt.Errorf("verification: load code: %w", err)
	}
	if stored != code {
		return shared.ErrVerifyCodeMismatch
	}
	// Single use.
	if err := s.client.Del(ctx, codeKeyPrefix+email).Err(); err != nil && !errors.Is(err, redis.Nil) {
		s.logger.Warn("verification code delete failed", slog.String("email", email), slog.Any("error", err))
	}
	return nil
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
