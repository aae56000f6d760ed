// Package api fans game engine events out to redis pub/sub for the chat
// frontends. Channel-wide traffic goes to a per-channel topic; whispers
// (no-game nudges, leaderboard updates) go to per-user topics.
package api

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/victornm/etrivia/internal/domain"
	"github.com/victornm/etrivia/internal/event"
)

type Config struct {
	EventBus     *event.Bus
	Redis        Redis
	PubsubPrefix string
}

type Redis interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

type API struct {
	redis  Redis
	prefix string
}

func New(c Config) *API {
	a := &API{
		redis:  c.Redis,
		prefix: c.PubsubPrefix,
	}

	eb := c.EventBus
	eb.Subscribe(domain.EventNameNewGame, func(ctx context.Context, e event.Event) error {
		return a.PublishNewGame(ctx, e.(domain.EventNewGame))
	})
	eb.Subscribe(domain.EventNameNewSuperGame, func(ctx context.Context, e event.Event) error {
		return a.PublishNewSuperGame(ctx, e.(domain.EventNewSuperGame))
	})
	eb.Subscribe(domain.EventNameCorrectAnswer, func(ctx context.Context, e event.Event) error {
		return a.PublishCorrectAnswer(ctx, e.(domain.EventCorrectAnswer))
	})
	eb.Subscribe(domain.EventNameIncorrectAnswer, func(ctx context.Context, e event.Event) error {
		return a.PublishIncorrectAnswer(ctx, e.(domain.EventIncorrectAnswer))
	})
	eb.Subscribe(domain.EventNameInvalidAnswer, func(ctx context.Context, e event.Event) error {
		return a.PublishInvalidAnswer(ctx, e.(domain.EventInvalidAnswer))
	})
	eb.Subscribe(domain.EventNameOutOfTime, func(ctx context.Context, e event.Event) error {
		return a.PublishOutOfTime(ctx, e.(domain.EventOutOfTime))
	})
	eb.Subscribe(domain.EventNameNoGameForUser, func(ctx context.Context, e event.Event) error {
		return a.PublishNoGameForUser(ctx, e.(domain.EventNoGameForUser))
	})
	eb.Subscribe(domain.EventNameClearedQueue, func(ctx context.Context, e event.Event) error {
		return a.PublishClearedQueue(ctx, e.(domain.EventClearedQueue))
	})
	eb.Subscribe(domain.EventNameLeaderboardUpdated, func(ctx context.Context, e event.Event) error {
		return a.PublishLeaderboardUpdated(ctx, e.(domain.EventLeaderboardUpdated))
	})

	return a
}
