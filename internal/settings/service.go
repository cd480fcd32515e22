// Package settings stores runtime-togglable application flags in Redis.
package settings

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const registerEnabledKey = "settings:register_enabled"

// Service reads and writes application settings. Flags default to their
// open state when no value has been written yet.
type Service struct {
	client *redis.Client
}

// NewService constructs a Service instance.
func NewService(client *redis.Client) *Service {
	return &Service{client: client}
}

// RegisterEnabled reports whether self-service registration is open.
// Registration is open until an operator explicitly closes it.
func (s *Service) RegisterEnabled(ctx context.Context) (bool, error) {
	value, err := s.client.Get(ctx, registerEnabledKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return true, nil
		}
		return false, fmt.Errorf("settings: read register flag: %w", err)
	}
	return value != "0", nil
}

// SetRegisterEnabled opens or closes self-service registration.
func (s *Service) SetRegisterEnabled(ctx context.Context, enabled bool) error {
	value := "1"
	if !enabled {
		value = "0"
	}
	if err := s.client.Set(ctx, registerEnabledKey, value, 0).Err(); err != nil {
		return fmt.Errorf("settings: write register flag: %w", err)
	}
	return nil
}
