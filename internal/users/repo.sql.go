package users

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nimbusdrive/nimbusdrive/internal/shared"
)

// PGRepository provides PostgreSQL backed persistence.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// GetUser fetches a user by ID.
func (r *PGRepository) GetUser(ctx context.Context, id string) (*User, error) {
	var user User
	err := r.pool.QueryRow(ctx,
		`SELECT id, email, nickname, disabled, created_at, updated_at FROM users WHERE id = $1`,
		id,
	).Scan(&user.ID, &user.Email, &user.Nickname, &user.Disabled, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// ListUsers returns a page of users plus the unfiltered total.
func (r *PGRepository) ListUsers(ctx context.Context, filter Filter, limit, offset int) ([]User, int, error) {
	pattern := "%" + filter.Expression + "%"
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM users WHERE ($1 = '%%' OR email ILIKE $1 OR nickname ILIKE $1)`,
		pattern,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, email, nickname, disabled, created_at, updated_at
		 FROM users
		 WHERE ($1 = '%%' OR email ILIKE $1 OR nickname ILIKE $1)
		 ORDER BY created_at, id
		 LIMIT $2 OFFSET $3`,
		pattern, limit, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var user User
		if err := rows.Scan(&user.ID, &user.Email, &user.Nickname, &user.Disabled, &user.CreatedAt, &user.UpdatedAt); err != nil {
			return nil, 0, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// CreateUser inserts a new user with its credential digest.
func (r *PGRepository) CreateUser(ctx context.Context, user User, credentialDigest string) error {
	now := time.Now().UTC()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO users (id, email, nickname, credential_digest, disabled, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $6)`,
		user.ID, user.Email, user.Nickname, credentialDigest, user.Disabled, now,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return shared.ErrEmailTaken
		}
		return err
	}
	return nil
}

// DeleteUser removes a user.
func (r *PGRepository) DeleteUser(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// SetDisabled flips the disabled flag.
func (r *PGRepository) SetDisabled(ctx context.Context, id string, disabled bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET disabled = $2, updated_at = $3 WHERE id = $1`,
		id, disabled, time.Now().UTC(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// SetCredentialDigest replaces the stored credential digest.
func (r *PGRepository) SetCredentialDigest(ctx context.Context, id, digest string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET credential_digest = $2, updated_at = $3 WHERE id = $1`,
		id, digest, time.Now().UTC(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// UpdateInfo updates mutable profile fields.
func (r *PGRepository) UpdateInfo(ctx context.Context, id, nickname string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET nickname = $2, updated_at = $3 WHERE id = $1`,
		id, nickname, time.Now().UTC(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// GetRoles lists the role IDs held by a user.
func (r *PGRepository) GetRoles(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT role_id FROM user_roles WHERE user_id = $1 ORDER BY role_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roleIDs []string
	for rows.Next() {
		var roleID string
		if err := rows.Scan(&roleID); err != nil {
			return nil, err
		}
		roleIDs = append(roleIDs, roleID)
	}
	return roleIDs, rows.Err()
}

// AddRoles attaches roles to a user, ignoring duplicates.
func (r *PGRepository) AddRoles(ctx context.Context, userID string, roleIDs []string) error {
	for _, roleID := range roleIDs {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO user_roles (user_id, role_id, created_at) VALUES ($1, $2, $3)
			 ON CONFLICT (user_id, role_id) DO NOTHING`,
			userID, roleID, time.Now().UTC(),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// RemoveRoles detaches roles from a user.
func (r *PGRepository) RemoveRoles(ctx context.Context, userID string, roleIDs []string) error {
	for _, roleID := range roleIDs {
		if _, err := r.pool.Exec(ctx,
			`DELETE FROM user_roles WHERE user_id = $1 AND role_id = $2`,
			userID, roleID,
		); err != nil {
			return err
		}
	}
	return nil
}

var _ Repository = (*PGRepository)(nil)
