package score_test

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/victornm/etrivia/internal/domain"
	"github.com/victornm/etrivia/internal/event"
	"github.com/victornm/etrivia/internal/score"
)

func TestSettler_SettleWin(t *testing.T) {
	t.Parallel()

	repo := &fakeRepository{}
	eb := event.NewBus()

	var (
		mu      sync.Mutex
		settled []domain.EventScoreSettled
	)
	eb.Subscribe(domain.EventNameScoreSettled, func(ctx context.Context, e event.Event) error {
		mu.Lock()
		settled = append(settled, e.(domain.EventScoreSettled))
		mu.Unlock()
		return nil
	})

	s := score.NewSettler(score.Config{EventBus: eb, Repository: repo})

	session := domain.GameSession{
		Mode:        domain.ModeNormal,
		GameID:      "g1",
		Channel:     "somechannel",
		ChannelID:   "chan1",
		BasePoints:  5,
		FinalPoints: 10, // shiny already applied
	}

	result, err := s.SettleWin(context.Background(), session, "u1")
	require.NoError(t, err)
	require.True(t, decimal.NewFromInt(10).Equal(result.Delta))

	require.Len(t, repo.awards, 1)
	require.Equal(t, "g1", repo.awards[0].gameID)

	eb.Stop()
	require.Len(t, settled, 1)
	require.Equal(t, "somechannel", settled[0].Channel)
}

func TestSettler_SettlePenalty(t *testing.T) {
	t.Parallel()

	repo := &fakeRepository{}
	s := score.NewSettler(score.Config{EventBus: event.NewBus(), Repository: repo})

	session := domain.GameSession{
		Mode:            domain.ModeSuper,
		GameID:          "g1",
		ChannelID:       "chan1",
		BasePoints:      25,
		Special:         domain.SpecialToxic,
		ToxicMultiplier: 2,
	}

	result, err := s.SettlePenalty(context.Background(), session, "u1")
	require.NoError(t, err)
	require.True(t, decimal.NewFromInt(-50).Equal(result.Delta), "penalty is base points times the toxic multiplier, negated; got %s", result.Delta)
}

type awardCall struct {
	channelID string
	userID    string
	gameID    string
	delta     decimal.Decimal
}

type fakeRepository struct {
	awards    []awardCall
	penalties []awardCall
}

func (f *fakeRepository) Award(_ context.Context, channelID, userID, gameID string, delta decimal.Decimal) (domain.ScoreResult, error) {
	f.awards = append(f.awards, awardCall{channelID, userID, gameID, delta})
	return domain.ScoreResult{ChannelID: channelID, UserID: userID, Delta: delta, Total: delta}, nil
}

func (f *fakeRepository) Penalize(_ context.Context, channelID, userID, gameID string, delta decimal.Decimal) (domain.ScoreResult, error) {
	f.penalties = append(f.penalties, awardCall{channelID, userID, gameID, delta})
	return domain.ScoreResult{ChannelID: channelID, UserID: userID, Delta: delta.Neg(), Total: delta.Neg()}, nil
}
