// Package banned persists question ids that moderators have banned from
// ever appearing in a game again.
package banned

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/victornm/etrivia/internal/domain"
)

type Config struct {
	DB *pgxpool.Pool
}

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(c Config) *Repository {
	return &Repository{db: c.DB}
}

// IsBanned reports whether the (id, source) pair is on the ban list.
func (r *Repository) IsBanned(ctx context.Context, id string, source domain.Source) (bool, error) {
	const stmt = `SELECT EXISTS (SELECT 1 FROM banned_questions WHERE question_id = $1 AND source = $2);`

	var banned bool
	if err := r.db.QueryRow(ctx, stmt, id, source).Scan(&banned); err != nil {
		return false, fmt.Errorf("banned: query %s/%s: %w", source, id, err)
	}
	return banned, nil
}

// Ban adds the (id, source) pair to the ban list, recording who requested
// it. Banning an already-banned question is a no-op.
func (r *Repository) Ban(ctx context.Context, id string, source domain.Source, requestingUserID string) error {
	const stmt = `
INSERT INTO banned_questions (question_id, source, banned_by, create_time)
VALUES ($1, $2, $3, $4)
ON CONFLICT (question_id, source) DO NOTHING;`

	if _, err := r.db.Exec(ctx, stmt, id, source, requestingUserID, time.Now()); err != nil {
		return fmt.Errorf("banned: insert %s/%s: %w", source, id, err)
	}
	return nil
}

// Unban removes the (id, source) pair from the ban list.
func (r *Repository) Unban(ctx context.Context, id string, source domain.Source) error {
	const stmt = `DELETE FROM banned_questions WHERE question_id = $1 AND source = $2;`

	if _, err := r.db.Exec(ctx, stmt, id, source); err != nil {
		return fmt.Errorf("banned: delete %s/%s: %w", source, id, err)
	}
	return nil
}
