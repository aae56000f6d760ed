package question

import (
	"context"
	stderrors "errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/victornm/etrivia/internal/domain"
	"github.com/victornm/etrivia/internal/errors"
)

type PGLocalConfig struct {
	DB *pgxpool.Pool
}

// PGLocalSource serves curated questions from the local trivia_questions
// table. It backs domain.SourceLocal; callers opt out with
// FetchOptions.ExcludeLocal.
type PGLocalSource struct {
	db *pgxpool.Pool
}

func NewPGLocalSource(c PGLocalConfig) *PGLocalSource {
	return &PGLocalSource{db: c.DB}
}

func (s *PGLocalSource) Fetch(ctx context.Context, opts domain.FetchOptions) (domain.Question, error) {
	const stmt = `
SELECT id, type, text, category, category_id, difficulty, correct_answers, responses
FROM trivia_questions
WHERE ($1 = '' OR type = $1)
  AND NOT (type = ANY($2))
ORDER BY random()
LIMIT 1;`

	excluded := make([]string, 0, len(opts.ExcludeTypes))
	for _, t := range opts.ExcludeTypes {
		excluded = append(excluded, string(t))
	}

	q := domain.Question{Source: domain.SourceLocal}
	err := s.db.QueryRow(ctx, stmt, string(opts.RequireType), excluded).Scan(
		&q.ID, &q.Type, &q.Text, &q.Category, &q.CategoryID, &q.Difficulty,
		&q.CorrectAnswers, &q.Responses,
	)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return domain.Question{}, errors.New(errors.CodeNotFound,
			errors.WithMessagef("no local question matches the requested types"))
	}
	if err != nil {
		return domain.Question{}, err
	}

	return q, nil
}
