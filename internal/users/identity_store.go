package users

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nimbusdrive/nimbusdrive/internal/authz"
)

// IdentityStore adapts the user and role tables to the identity cache's
// durable-store contract.
type IdentityStore struct {
	pool *pgxpool.Pool
}

// NewIdentityStore constructs the adapter.
func NewIdentityStore(pool *pgxpool.Pool) *IdentityStore {
	return &IdentityStore{pool: pool}
}

// LoadUser fetches the auth-relevant user record plus its role IDs.
func (s *IdentityStore) LoadUser(ctx context.Context, userID string) (authz.UserRecord, error) {
	var record authz.UserRecord
	err := s.pool.QueryRow(ctx,
		`SELECT id, credential_digest, disabled FROM users WHERE id = $1`,
		userID,
	).Scan(&record.ID, &record.CredentialDigest, &record.Disabled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return authz.UserRecord{}, authz.ErrIdentityNotFound
		}
		return authz.UserRecord{}, err
	}

	rows, err := s.pool.Query(ctx, `SELECT role_id FROM user_roles WHERE user_id = $1 ORDER BY role_id`, userID)
	if err != nil {
		return authz.UserRecord{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var roleID string
		if err := rows.Scan(&roleID); err != nil {
			return authz.UserRecord{}, err
		}
		record.RoleIDs = append(record.RoleIDs, roleID)
	}
	if err := rows.Err(); err != nil {
		return authz.UserRecord{}, err
	}
	return record, nil
}

// LoadRolePermissions fetches the permissions granted by a role.
func (s *IdentityStore) LoadRolePermissions(ctx context.Context, roleID string) ([]authz.Permission, error) {
	rows, err := s.pool.Query(ctx, `SELECT permission FROM role_permissions WHERE role_id = $1 ORDER BY permission`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []authz.Permission
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		perms = append(perms, authz.Permission(p))
	}
	return perms, rows.Err()
}

var _ authz.Store = (*IdentityStore)(nil)
