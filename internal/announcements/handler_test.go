package announcements_test

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/nimbusdrive/nimbusdrive/internal/announcements"
	"github.com/nimbusdrive/nimbusdrive/internal/authz"
	"github.com/nimbusdrive/nimbusdrive/internal/shared"
	_ "github.com/nimbusdrive/nimbusdrive/testing"
)

type memoryRepo struct {
	mu    sync.Mutex
	items map[string]*announcements.Announcement
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{items: make(map[string]*announcements.Announcement)}
}

func (m *memoryRepo) Get(ctx context.Context, id string) (*announcements.Announcement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.items[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *a
	return &copied, nil
}

func (m *memoryRepo) List(ctx context.Context, filter announcements.Filter, limit, offset int) ([]announcements.Announcement, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]announcements.Announcement, 0, len(m.items))
	for _, a := range m.items {
		result = append(result, *a)
	}
	return result, len(result), nil
}

func (m *memoryRepo) ListEnabled(ctx context.Context) ([]announcements.Announcement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]announcements.Announcement, 0, len(m.items))
	for _, a := range m.items {
		if a.Enabled {
			result = append(result, *a)
		}
	}
	return result, nil
}

func (m *memoryRepo) Create(ctx context.Context, announcement announcements.Announcement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[announcement.ID] = &announcement
	return nil
}

func (m *memoryRepo) Update(ctx context.Context, id, title, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.items[id]
	if !ok {
		return shared.ErrNotFound
	}
	a.Title = title
	a.Content = content
	return nil
}

func (m *memoryRepo) SetEnabled(ctx context.Context, id string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.items[id]
	if !ok {
		return shared.ErrNotFound
	}
	a.Enabled = enabled
	return nil
}

func (m *memoryRepo) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.items, id)
	return nil
}

// mutableStore is a durable identity source whose role grants can change
// mid-test, mirroring a role edit in the database.
type mutableStore struct {
	mu        sync.Mutex
	roleIDs   map[string][]string
	rolePerms map[string][]authz.Permission
}

func (s *mutableStore) LoadUser(ctx context.Context, userID string) (authz.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	roles, ok := s.roleIDs[userID]
	if !ok {
		return authz.UserRecord{}, authz.ErrIdentityNotFound
	}
	return authz.UserRecord{ID: userID, RoleIDs: roles}, nil
}

func (s *mutableStore) LoadRolePermissions(ctx context.Context, roleID string) ([]authz.Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rolePerms[roleID], nil
}

func (s *mutableStore) setRoles(userID string, roleIDs []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roleIDs[userID] = roleIDs
}

type fixture struct {
	router *chi.Mux
	store  *mutableStore
	cache  *authz.Cache
	repo   *memoryRepo
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := &mutableStore{
		roleIDs:   make(map[string][]string),
		rolePerms: make(map[string][]authz.Permission),
	}
	cache := authz.NewCache(client, store, time.Minute, nil)
	guard := authz.Guard{Cache: cache, Logger: slog.New(slog.DiscardHandler)}

	repo := newMemoryRepo()
	handler := announcements.NewHandler(slog.New(slog.DiscardHandler), announcements.NewService(repo))

	router := chi.NewRouter()
	router.Route("/announcement", func(r chi.Router) {
		handler.MountRoutes(r, guard)
	})
	return &fixture{router: router, store: store, cache: cache, repo: repo}
}

func (f *fixture) do(t *testing.T, method, path, body, userID string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
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

func TestPermissionGrantAndRevocationFlow(t *testing.T) {
	f := newFixture(t)
	f.store.rolePerms["publisher"] = []authz.Permission{authz.PermAnnouncementAdd}
	f.store.setRoles("u1", nil)

	// Without the role, posting is forbidden.
	res := f.do(t, http.MethodPost, "/announcement/", `{"title":"Maintenance","content":"Sunday 2am"}`, "u1")
	if res.Code != http.StatusForbidden {
		t.Fatalf("expected 403 before grant, got %d", res.Code)
	}

	// Grant the role and drop the cached snapshot, as the roles service does.
	f.store.setRoles("u1", []string{"publisher"})
	if err := f.cache.Invalidate(context.Background(), "u1"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}

	res = f.do(t, http.MethodPost, "/announcement/", `{"title":"Maintenance","content":"Sunday 2am"}`, "u1")
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201 after grant, got %d: %s", res.Code, res.Body.String())
	}

	// Revoke and invalidate again; the next attempt is forbidden.
	f.store.setRoles("u1", nil)
	if err := f.cache.Invalidate(context.Background(), "u1"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}

	res = f.do(t, http.MethodPost, "/announcement/", `{"title":"Another","content":""}`, "u1")
	if res.Code != http.StatusForbidden {
		t.Fatalf("expected 403 after revocation, got %d", res.Code)
	}
}

func TestAddRecordsAuthor(t *testing.T) {
	f := newFixture(t)
	f.store.rolePerms["publisher"] = []authz.Permission{authz.PermAnnouncementAdd}
	f.store.setRoles("u1", []string{"publisher"})

	res := f.do(t, http.MethodPost, "/announcement/", `{"title":"Hello","content":"world"}`, "u1")
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", res.Code, res.Body.String())
	}

	f.repo.mu.Lock()
	defer f.repo.mu.Unlock()
	if len(f.repo.items) != 1 {
		t.Fatalf("expected one stored announcement, got %d", len(f.repo.items))
	}
	for _, a := range f.repo.items {
		if a.AuthorID != "u1" {
			t.Fatalf("expected author u1, got %q", a.AuthorID)
		}
		if !a.Enabled {
			t.Fatalf("new announcements start enabled")
		}
	}
}

func TestDisplayListIsAuthenticatedOnly(t *testing.T) {
	f := newFixture(t)
	f.store.setRoles("u1", nil)

	// Anonymous callers get 401 from the index listing.
	res := f.do(t, http.MethodGet, "/announcement/index", "", "")
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for anonymous, got %d", res.Code)
	}

	// Any authenticated user may read it, no permission needed.
	res = f.do(t, http.MethodGet, "/announcement/index", "", "u1")
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 for authenticated, got %d", res.Code)
	}
}

func TestStatusToggle(t *testing.T) {
	f := newFixture(t)
	f.store.rolePerms["admin"] = []authz.Permission{
		authz.PermAnnouncementAdd,
		authz.PermAnnouncementUpdate,
	}
	f.store.setRoles("u1", []string{"admin"})

	res := f.do(t, http.MethodPost, "/announcement/", `{"title":"Toggle me","content":""}`, "u1")
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", res.Code)
	}
	var id string
	f.repo.mu.Lock()
	for k := range f.repo.items {
		id = k
	}
	f.repo.mu.Unlock()

	res = f.do(t, http.MethodPut, "/announcement/"+id+"/status?disabled=true", "", "u1")
	if res.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", res.Code)
	}

	a, err := f.repo.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if a.Enabled {
		t.Fatalf("expected announcement disabled after toggle")
	}
}
