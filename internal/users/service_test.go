package users

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbusdrive/nimbusdrive/internal/credentials"
	"github.com/nimbusdrive/nimbusdrive/internal/shared"
)

type mockRepository struct {
	users   map[string]*User
	digests map[string]string
	roles   map[string][]string

	createError error
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		users:   make(map[string]*User),
		digests: make(map[string]string),
		roles:   make(map[string][]string),
	}
}

func (m *mockRepository) GetUser(ctx context.Context, id string) (*User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (m *mockRepository) ListUsers(ctx context.Context, filter Filter, limit, offset int) ([]User, int, error) {
	result := make([]User, 0, len(m.users))
	for _, u := range m.users {
		result = append(result, *u)
	}
	return result, len(result), nil
}

func (m *mockRepository) CreateUser(ctx context.Context, user User, credentialDigest string) error {
	if m.createError != nil {
		return m.createError
	}
	for _, existing := range m.users {
		if existing.Email == user.Email {
			return shared.ErrEmailTaken
		}
	}
	m.users[user.ID] = &user
	m.digests[user.ID] = credentialDigest
	return nil
}

func (m *mockRepository) DeleteUser(ctx context.Context, id string) error {
	if _, ok := m.users[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.users, id)
	delete(m.digests, id)
	return nil
}

func (m *mockRepository) SetDisabled(ctx context.Context, id string, disabled bool) error {
	u, ok := m.users[id]
	if !ok {
		return shared.ErrNotFound
	}
	u.Disabled = disabled
	return nil
}

func (m *mockRepository) SetCredentialDigest(ctx context.Context, id, digest string) error {
	if _, ok := m.users[id]; !ok {
		return shared.ErrNotFound
	}
	m.digests[id] = digest
	return nil
}

func (m *mockRepository) UpdateInfo(ctx context.Context, id, nickname string) error {
	u, ok := m.users[id]
	if !ok {
		return shared.ErrNotFound
	}
	u.Nickname = nickname
	return nil
}

func (m *mockRepository) GetRoles(ctx context.Context, userID string) ([]string, error) {
	return m.roles[userID], nil
}

func (m *mockRepository) AddRoles(ctx context.Context, userID string, roleIDs []string) error {
	m.roles[userID] = append(m.roles[userID], roleIDs...)
	return nil
}

func (m *mockRepository) RemoveRoles(ctx context.Context, userID string, roleIDs []string) error {
	kept := m.roles[userID][:0]
	for _, held := range m.roles[userID] {
		drop := false
		for _, r := range roleIDs {
			if held == r {
				drop = true
			}
		}
		if !drop {
			kept = append(kept, held)
		}
	}
	m.roles[userID] = kept
	return nil
}

type recordedInvalidator struct {
	userIDs []string
}

func (r *recordedInvalidator) Invalidate(ctx context.Context, userID string) error {
	r.userIDs = append(r.userIDs, userID)
	return nil
}

type stubVerifier struct {
	err error
}

func (s *stubVerifier) VerifyEmailCode(ctx context.Context, email, code string) error {
	return s.err
}

func newTestService(repo Repository, inv *recordedInvalidator, verifier CodeVerifier) *Service {
	return NewService(repo, inv, verifier, NewMemoryAvatarStore())
}

func TestAddUserDigestsCredential(t *testing.T) {
	repo := newMockRepository()
	inv := &recordedInvalidator{}
	svc := newTestService(repo, inv, &stubVerifier{})

	user, err := svc.AddUser(context.Background(), "User@Test.Local", "  Alice ", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, "user@test.local", user.Email)
	assert.Equal(t, "Alice", user.Nickname)

	// The stored digest matches the deterministic transformation, never the
	// plaintext.
	assert.Equal(t, credentials.Digest("user@test.local", "hunter22"), repo.digests[user.ID])
	assert.NotEqual(t, "hunter22", repo.digests[user.ID])
}

func TestAddUserRejectsEmptyCredentials(t *testing.T) {
	svc := newTestService(newMockRepository(), &recordedInvalidator{}, &stubVerifier{})

	_, err := svc.AddUser(context.Background(), "", "nick", "hunter22")
	require.Error(t, err)
	_, err = svc.AddUser(context.Background(), "user@test.local", "nick", "")
	require.Error(t, err)
}

func TestRegisterChecksVerifyCode(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo, &recordedInvalidator{}, &stubVerifier{err: shared.ErrVerifyCodeMismatch})

	_, err := svc.Register(context.Background(), "user@test.local", "000000", "Alice", "hunter22")
	require.ErrorIs(t, err, shared.ErrVerifyCodeMismatch)
	assert.Empty(t, repo.users, "no account may exist after a failed code check")
}

func TestRegisterCreatesAccount(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo, &recordedInvalidator{}, &stubVerifier{})

	user, err := svc.Register(context.Background(), "user@test.local", "123456", "Alice", "hunter22")
	require.NoError(t, err)
	require.Contains(t, repo.users, user.ID)
	assert.Equal(t, credentials.Digest("user@test.local", "hunter22"), repo.digests[user.ID])
}

func TestRegisterDuplicateEmail(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo, &recordedInvalidator{}, &stubVerifier{})

	_, err := svc.Register(context.Background(), "user@test.local", "123456", "Alice", "hunter22")
	require.NoError(t, err)
	_, err = svc.Register(context.Background(), "user@test.local", "123456", "Bob", "hunter23")
	require.ErrorIs(t, err, shared.ErrEmailTaken)
}

func TestMutationsInvalidateIdentity(t *testing.T) {
	repo := newMockRepository()
	inv := &recordedInvalidator{}
	svc := newTestService(repo, inv, &stubVerifier{})

	user, err := svc.AddUser(context.Background(), "user@test.local", "Alice", "hunter22")
	require.NoError(t, err)

	require.NoError(t, svc.SetDisabled(context.Background(), user.ID, true))
	require.NoError(t, svc.UpdateInfo(context.Background(), user.ID, "Alicia"))
	require.NoError(t, svc.AddRoles(context.Background(), user.ID, []string{"r1"}))
	require.NoError(t, svc.RemoveRoles(context.Background(), user.ID, []string{"r1"}))
	require.NoError(t, svc.ResetPassword(context.Background(), user.ID, "newpass99"))
	require.NoError(t, svc.Delete(context.Background(), user.ID))

	assert.Equal(t, []string{user.ID, user.ID, user.ID, user.ID, user.ID, user.ID}, inv.userIDs)
}

func TestMutationSkipsInvalidationOnRepoError(t *testing.T) {
	repo := newMockRepository()
	inv := &recordedInvalidator{}
	svc := newTestService(repo, inv, &stubVerifier{})

	err := svc.SetDisabled(context.Background(), "ghost", true)
	require.ErrorIs(t, err, shared.ErrNotFound)
	assert.Empty(t, inv.userIDs, "failed mutations must not invalidate")
}

func TestResetPasswordUsesAccountEmailSalt(t *testing.T) {
	repo := newMockRepository()
	inv := &recordedInvalidator{}
	svc := newTestService(repo, inv, &stubVerifier{})

	user, err := svc.AddUser(context.Background(), "user@test.local", "Alice", "hunter22")
	require.NoError(t, err)

	require.NoError(t, svc.ResetPassword(context.Background(), user.ID, "newpass99"))
	assert.Equal(t, credentials.Digest("user@test.local", "newpass99"), repo.digests[user.ID])
}

func TestAvatarRoundTrip(t *testing.T) {
	svc := newTestService(newMockRepository(), &recordedInvalidator{}, &stubVerifier{})

	avatar := Avatar{ContentType: "image/png", Content: []byte{0x89, 0x50, 0x4e, 0x47}}
	require.NoError(t, svc.SaveAvatar(context.Background(), "u1", avatar))

	got, err := svc.GetAvatar(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, avatar.ContentType, got.ContentType)
	assert.Equal(t, avatar.Content, got.Content)

	_, err = svc.GetAvatar(context.Background(), "nobody")
	require.ErrorIs(t, err, shared.ErrNotFound)
}
