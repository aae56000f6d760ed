package score

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/victornm/etrivia/internal/domain"
	"github.com/victornm/etrivia/internal/event"
)

// Repository persists point deltas and returns the user's running total.
type Repository interface {
	Award(ctx context.Context, channelID, userID, gameID string, delta decimal.Decimal) (domain.ScoreResult, error)
	Penalize(ctx context.Context, channelID, userID, gameID string, delta decimal.Decimal) (domain.ScoreResult, error)
}

type Config struct {
	EventBus   *event.Bus
	Repository Repository
}

// Settler computes point deltas for finished games and forwards them to the
// score repository. It never touches the session store; the engine has
// already removed the session before settlement runs.
type Settler struct {
	eb   *event.Bus
	repo Repository
}

func NewSettler(c Config) *Settler {
	return &Settler{
		eb:   c.EventBus,
		repo: c.Repository,
	}
}

// SettleWin awards the session's final points (multiplier already applied at
// game creation) to the winner.
func (s *Settler) SettleWin(ctx context.Context, session domain.GameSession, userID string) (domain.ScoreResult, error) {
	delta := decimal.NewFromInt(int64(session.FinalPoints))

	result, err := s.repo.Award(ctx, session.ChannelID, userID, session.GameID, delta)
	if err != nil {
		return domain.ScoreResult{}, err
	}

	s.eb.Publish(ctx, domain.EventScoreSettled{
		Channel: session.Channel,
		Score:   result,
	})
	return result, nil
}

// SettlePenalty applies the toxic punishment to a user who failed a toxic
// game: base points times the toxic multiplier, as a negative delta.
func (s *Settler) SettlePenalty(ctx context.Context, session domain.GameSession, userID string) (domain.ScoreResult, error) {
	multiplier := session.ToxicMultiplier
	if multiplier <= 0 {
		multiplier = 1
	}
	delta := decimal.NewFromInt(int64(session.BasePoints * multiplier))

	result, err := s.repo.Penalize(ctx, session.ChannelID, userID, session.GameID, delta)
	if err != nil {
		return domain.ScoreResult{}, err
	}

	s.eb.Publish(ctx, domain.EventScoreSettled{
		Channel: session.Channel,
		Score:   result,
	})
	return result, nil
}
