package announcements

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
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

// Get fetches an announcement by ID.
func (r *PGRepository) Get(ctx context.Context, id string) (*Announcement, error) {
	var a Announcement
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, content, author_id, enabled, created_at, updated_at FROM announcements WHERE id = $1`,
		id,
	).Scan(&a.ID, &a.Title, &a.Content, &a.AuthorID, &a.Enabled, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// List returns a page of announcements plus the total count.
func (r *PGRepository) List(ctx context.Context, filter Filter, limit, offset int) ([]Announcement, int, error) {
	pattern := "%" + filter.Expression + "%"
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM announcements WHERE ($1 = '%%' OR title ILIKE $1 OR content ILIKE $1)`,
		pattern,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, title, content, author_id, enabled, created_at, updated_at
		 FROM announcements
		 WHERE ($1 = '%%' OR title ILIKE $1 OR content ILIKE $1)
		 ORDER BY created_at DESC, id
		 LIMIT $2 OFFSET $3`,
		pattern, limit, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var list []Announcement
	for rows.Next() {
		var a Announcement
		if err := rows.Scan(&a.ID, &a.Title, &a.Content, &a.AuthorID, &a.Enabled, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, 0, err
		}
		list = append(list, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// ListEnabled returns enabled announcements, newest first.
func (r *PGRepository) ListEnabled(ctx context.Context) ([]Announcement, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, title, content, author_id, enabled, created_at, updated_at
		 FROM announcements WHERE enabled ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []Announcement
	for rows.Next() {
		var a Announcement
		if err := rows.Scan(&a.ID, &a.Title, &a.Content, &a.AuthorID, &a.Enabled, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

// Create inserts a new announcement.
func (r *PGRepository) Create(ctx context.Context, a Announcement) error {
	now := time.Now().UTC()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO announcements (id, title, content, author_id, enabled, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $6)`,
		a.ID, a.Title, a.Content, a.AuthorID, a.Enabled, now,
	)
	return err
}

// Update replaces title and content.
func (r *PGRepository) Update(ctx context.Context, id, title, content string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE announcements SET title = $2, content = $3, updated_at = $4 WHERE id = $1`,
		id, title, content, time.Now().UTC(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// SetEnabled flips the enabled flag.
func (r *PGRepository) SetEnabled(ctx context.Context, id string, enabled bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE announcements SET enabled = $2, updated_at = $3 WHERE id = $1`,
		id, enabled, time.Now().UTC(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Delete removes an announcement.
func (r *PGRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM announcements WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

var _ Repository = (*PGRepository)(nil)
