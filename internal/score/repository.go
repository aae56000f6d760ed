package score

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/victornm/etrivia/internal/domain"
	"github.com/victornm/etrivia/internal/errors"
)

type PGConfig struct {
	DB *pgxpool.Pool
}

// PGRepository stores one row per settlement and derives the running total
// per (channel, user) on the way out.
type PGRepository struct {
	db *pgxpool.Pool
}

func NewPGRepository(c PGConfig) *PGRepository {
	return &PGRepository{db: c.DB}
}

func (r *PGRepository) Award(ctx context.Context, channelID, userID, gameID string, delta decimal.Decimal) (domain.ScoreResult, error) {
	return r.insert(ctx, channelID, userID, gameID, delta)
}

func (r *PGRepository) Penalize(ctx context.Context, channelID, userID, gameID string, delta decimal.Decimal) (domain.ScoreResult, error) {
	return r.insert(ctx, channelID, userID, gameID, delta.Neg())
}

func (r *PGRepository) insert(ctx context.Context, channelID, userID, gameID string, delta decimal.Decimal) (domain.ScoreResult, error) {
	const stmt = `
WITH inserted AS (
	INSERT INTO trivia_scores (channel_id, user_id, game_id, delta, create_time)
	VALUES ($1, $2, $3, $4, $5)
)
SELECT COALESCE(SUM(delta), 0) AS total FROM trivia_scores WHERE channel_id = $1 AND user_id = $2;`

	var total decimal.Decimal
	err := r.db.QueryRow(ctx, stmt, channelID, userID, gameID, delta, time.Now()).Scan(&total)

	var pgErr *pgconn.PgError
	const codeUniqueViolation = "23505"
	if stderrors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation {
		return domain.ScoreResult{}, errors.New(errors.CodeAlreadyExists,
			errors.WithMessagef("score already settled: game=%s user=%s", gameID, userID),
			errors.WithCause(err))
	}

	if err != nil {
		return domain.ScoreResult{}, err
	}

	return domain.ScoreResult{
		ChannelID: channelID,
		UserID:    userID,
		Delta:     delta,
		Total:     total.Add(delta),
	}, nil
}

// ListTotals returns per-user score totals for a channel, highest first.
func (r *PGRepository) ListTotals(ctx context.Context, channelID string) ([]domain.ScoreResult, error) {
	const stmt = `
SELECT user_id, SUM(delta) AS total
FROM trivia_scores
WHERE channel_id = $1
GROUP BY user_id
ORDER BY total DESC;`

	rows, err := r.db.Query(ctx, stmt, channelID)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.ScoreResult, error) {
		sr := domain.ScoreResult{ChannelID: channelID}
		if err := row.Scan(&sr.UserID, &sr.Total); err != nil {
			return domain.ScoreResult{}, err
		}
		return sr, nil
	})
}
