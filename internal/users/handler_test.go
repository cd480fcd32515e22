package users

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/nimbusdrive/nimbusdrive/internal/authz"
	"github.com/nimbusdrive/nimbusdrive/internal/settings"
	"github.com/nimbusdrive/nimbusdrive/internal/shared"
	_ "github.com/nimbusdrive/nimbusdrive/testing"
)

type stubIdentityStore struct {
	users     map[string]authz.UserRecord
	rolePerms map[string][]authz.Permission
}

func (s *stubIdentityStore) LoadUser(ctx context.Context, userID string) (authz.UserRecord, error) {
	record, ok := s.users[userID]
	if !ok {
		return authz.UserRecord{}, authz.ErrIdentityNotFound
	}
	return record, nil
}

func (s *stubIdentityStore) LoadRolePermissions(ctx context.Context, roleID string) ([]authz.Permission, error) {
	return s.rolePerms[roleID], nil
}

type recordedSender struct {
	emails []string
}

func (r *recordedSender) SendEmailVerifyCode(ctx context.Context, email string) error {
	r.emails = append(r.emails, email)
	return nil
}

type handlerFixture struct {
	router   *chi.Mux
	settings *settings.Service
	sender   *recordedSender
	repo     *mockRepository
}

func newHandlerFixture(t *testing.T, store *stubIdentityStore) *handlerFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	guard := authz.Guard{
		Cache:  authz.NewCache(client, store, time.Minute, nil),
		Logger: slog.New(slog.DiscardHandler),
	}

	repo := newMockRepository()
	service := newTestService(repo, &recordedInvalidator{}, &stubVerifier{})
	gate := settings.NewService(client)
	sender := &recordedSender{}
	handler := NewHandler(slog.New(slog.DiscardHandler), service, sender, gate)

	passthrough := func(next http.Handler) http.Handler { return next }
	router := chi.NewRouter()
	router.Route("/user", func(r chi.Router) {
		handler.MountRoutes(r, guard, passthrough)
	})
	return &handlerFixture{router: router, settings: gate, sender: sender, repo: repo}
}

func (f *handlerFixture) do(t *testing.T, method, path, body, userID string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	sm := shared.NewSessionManager(nil, "test_session", "secret", time.Hour, false)
	sess, err := sm.Load(context.Background(), req)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	if userID != "" {
		sess.SetUser(userID)
	}
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))

	res := httptest.NewRecorder()
	f.router.ServeHTTP(res, req)
	return res
}

func TestSelfPermissionsEndpoint(t *testing.T) {
	store := &stubIdentityStore{
		users: map[string]authz.UserRecord{
			"u1": {ID: "u1", RoleIDs: []string{"viewer"}},
		},
		rolePerms: map[string][]authz.Permission{
			"viewer": {authz.PermUserView, authz.PermAnnouncementGetAll},
		},
	}
	f := newHandlerFixture(t, store)

	res := f.do(t, http.MethodGet, "/user/permission", "", "")
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for anonymous, got %d", res.Code)
	}

	res = f.do(t, http.MethodGet, "/user/permission", "", "u1")
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	body := res.Body.String()
	if !strings.Contains(body, string(authz.PermUserView)) || !strings.Contains(body, string(authz.PermAnnouncementGetAll)) {
		t.Fatalf("expected the caller's resolved permissions, got %s", body)
	}
}

func TestSelfRolesEndpoint(t *testing.T) {
	store := &stubIdentityStore{
		users: map[string]authz.UserRecord{
			"u1": {ID: "u1", RoleIDs: []string{"viewer", "publisher"}},
		},
		rolePerms: map[string][]authz.Permission{},
	}
	f := newHandlerFixture(t, store)

	res := f.do(t, http.MethodGet, "/user/role", "", "u1")
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	body := res.Body.String()
	if !strings.Contains(body, "viewer") || !strings.Contains(body, "publisher") {
		t.Fatalf("expected the caller's role IDs, got %s", body)
	}
}

func TestRegistrationGateClosesBothEndpoints(t *testing.T) {
	f := newHandlerFixture(t, &stubIdentityStore{users: map[string]authz.UserRecord{}})
	ctx := context.Background()

	if err := f.settings.SetRegisterEnabled(ctx, false); err != nil {
		t.Fatalf("close registration: %v", err)
	}

	res := f.do(t, http.MethodPost, "/user/register/email", `{"email":"new@test.local"}`, "")
	if res.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for code issuance while closed, got %d", res.Code)
	}
	if len(f.sender.emails) != 0 {
		t.Fatalf("no code may be sent while registration is closed")
	}

	res = f.do(t, http.MethodPost, "/user/register", `{"email":"new@test.local","code":"123456","nickname":"New","password":"hunter22"}`, "")
	if res.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for register while closed, got %d", res.Code)
	}
	if len(f.repo.users) != 0 {
		t.Fatalf("no account may exist while registration is closed")
	}

	// Reopening restores both endpoints.
	if err := f.settings.SetRegisterEnabled(ctx, true); err != nil {
		t.Fatalf("reopen registration: %v", err)
	}
	res = f.do(t, http.MethodPost, "/user/register/email", `{"email":"new@test.local"}`, "")
	if res.Code != http.StatusNoContent {
		t.Fatalf("expected 204 after reopening, got %d: %s", res.Code, res.Body.String())
	}
	if len(f.sender.emails) != 1 || f.sender.emails[0] != "new@test.local" {
		t.Fatalf("expected one issued code, got %v", f.sender.emails)
	}
	res = f.do(t, http.MethodPost, "/user/register", `{"email":"new@test.local","code":"123456","nickname":"New","password":"hunter22"}`, "")
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201 after reopening, got %d: %s", res.Code, res.Body.String())
	}
}

func TestRegisterStatusTogglePermission(t *testing.T) {
	store := &stubIdentityStore{
		users: map[string]authz.UserRecord{
			"admin":  {ID: "admin", RoleIDs: []string{"admin"}},
			"viewer": {ID: "viewer", RoleIDs: []string{"viewer"}},
		},
		rolePerms: map[string][]authz.Permission{
			"admin":  {authz.PermUserUpdate},
			"viewer": {authz.PermUserView},
		},
	}
	f := newHandlerFixture(t, store)

	res := f.do(t, http.MethodPut, "/user/register/status?enabled=false", "", "viewer")
	if res.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without user.update, got %d", res.Code)
	}

	res = f.do(t, http.MethodPut, "/user/register/status?enabled=false", "", "admin")
	if res.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", res.Code, res.Body.String())
	}
	enabled, err := f.settings.RegisterEnabled(context.Background())
	if err != nil {
		t.Fatalf("read flag: %v", err)
	}
	if enabled {
		t.Fatalf("expected registration closed after the toggle")
	}

	res = f.do(t, http.MethodPut, "/user/register/status?enabled=maybe", "", "admin")
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a malformed flag, got %d", res.Code)
	}
}
