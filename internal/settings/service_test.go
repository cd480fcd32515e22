package settings_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/nimbusdrive/nimbusdrive/internal/settings"
	_ "github.com/nimbusdrive/nimbusdrive/testing"
)

func newService(t *testing.T) *settings.Service {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return settings.NewService(client)
}

func TestRegisterEnabledDefaultsOpen(t *testing.T) {
	svc := newService(t)

	enabled, err := svc.RegisterEnabled(context.Background())
	if err != nil {
		t.Fatalf("read flag: %v", err)
	}
	if !enabled {
		t.Fatalf("registration must be open before any operator touched the flag")
	}
}

func TestSetRegisterEnabledRoundTrip(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	if err := svc.SetRegisterEnabled(ctx, false); err != nil {
		t.Fatalf("close registration: %v", err)
	}
	enabled, err := svc.RegisterEnabled(ctx)
	if err != nil {
		t.Fatalf("read flag: %v", err)
	}
	if enabled {
		t.Fatalf("expected registration closed")
	}

	if err := svc.SetRegisterEnabled(ctx, true); err != nil {
		t.Fatalf("reopen registration: %v", err)
	}
	enabled, err = svc.RegisterEnabled(ctx)
	if err != nil {
		t.Fatalf("read flag: %v", err)
	}
	if !enabled {
		t.Fatalf("expected registration reopened")
	}
}
