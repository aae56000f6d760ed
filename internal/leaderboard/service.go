// Package leaderboard keeps a per-channel ranking of total points in a redis
// sorted set, fed by settlement events from the game engine.
package leaderboard

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/victornm/etrivia/internal/domain"
	"github.com/victornm/etrivia/internal/errors"
	"github.com/victornm/etrivia/internal/event"
)

// publishInterval debounces leaderboard.updated events. Super games settle a
// burst of penalties at once; one published snapshot covers the burst.
const publishInterval = 200 * time.Millisecond

type Config struct {
	EventBus *event.Bus
	Redis    redis.UniversalClient
	Prefix   string
}

type Service struct {
	eb     *event.Bus
	redis  redis.UniversalClient
	prefix string
}

func NewService(c Config) *Service {
	s := &Service{
		eb:     c.EventBus,
		redis:  c.Redis,
		prefix: c.Prefix,
	}

	s.eb.Subscribe(domain.EventNameScoreSettled, func(ctx context.Context, e event.Event) error {
		return s.UpdateLeaderboard(ctx, e.(domain.EventScoreSettled))
	})

	return s
}

type GetLeaderboardRequest struct {
	ChannelID string
}

// GetLeaderboard returns the channel's full ranking, highest total first.
func (s *Service) GetLeaderboard(ctx context.Context, req GetLeaderboardRequest) (*domain.Leaderboard, error) {
	res, err := s.redis.ZRevRangeWithScores(ctx, s.getLeaderboardKey(req.ChannelID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("get leaderboard: %w", err)
	}

	if len(res) == 0 {
		return nil, errors.New(errors.CodeNotFound, errors.WithMessagef("leaderboard not found: channel=%s", req.ChannelID))
	}

	entries := make([]domain.LeaderboardEntry, 0, len(res))
	for _, z := range res {
		entries = append(entries, domain.LeaderboardEntry{
			UserID: z.Member.(string),
			Score:  z.Score,
		})
	}

	return &domain.Leaderboard{
		ChannelID: req.ChannelID,
		Entries:   entries,
	}, nil
}

// UpdateLeaderboard overwrites the user's total in the channel ranking.
func (s *Service) UpdateLeaderboard(ctx context.Context, e domain.EventScoreSettled) error {
	sc := e.Score

	if err := s.redis.ZAdd(ctx, s.getLeaderboardKey(sc.ChannelID), redis.Z{
		Score:  sc.Total.InexactFloat64(),
		Member: sc.UserID,
	}).Err(); err != nil {
		return fmt.Errorf("update leaderboard: %w", err)
	}

	return s.schedulePublishLeaderboard(ctx, sc.ChannelID)
}

// schedulePublishLeaderboard publishes at most one snapshot per channel per
// publishInterval. The SetNX lease also keeps multiple instances from
// publishing the same snapshot.
func (s *Service) schedulePublishLeaderboard(ctx context.Context, channelID string) error {
	ok, err := s.redis.SetNX(ctx, s.getLeaderboardTimeKey(channelID), time.Now().UnixMilli(), publishInterval).Result()
	if err != nil {
		return fmt.Errorf("setnx: %w", err)
	}

	if !ok {
		return nil
	}

	return s.publishLeaderboard(ctx, channelID)
}

func (s *Service) publishLeaderboard(ctx context.Context, channelID string) error {
	l, err := s.GetLeaderboard(ctx, GetLeaderboardRequest{ChannelID: channelID})
	if err != nil {
		return fmt.Errorf("get leaderboard failed: channel=%s: %w", channelID, err)
	}

	s.eb.Publish(ctx, domain.EventLeaderboardUpdated{
		Leaderboard: *l,
	})
	return nil
}

func (s *Service) getLeaderboardKey(channelID string) string {
	return fmt.Sprintf("%s:%s:leaderboard", s.prefix, channelID)
}

func (s *Service) getLeaderboardTimeKey(channelID string) string {
	return fmt.Sprintf("%s:%s:time", s.prefix, channelID)
}
