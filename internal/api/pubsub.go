package api

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/victornm/etrivia/internal/domain"
)

const maxConcurrent = 100

type (
	Notification struct {
		Event string `json:"event"`
		Data  any    `json:"data"`
	}

	// Game is the public view of a session. Correct answers never appear
	// here, and toxic status stays hidden until the game resolves.
	Game struct {
		GameID        string   `json:"game_id"`
		Mode          string   `json:"mode"`
		Channel       string   `json:"channel"`
		Question      string   `json:"question"`
		Category      string   `json:"category,omitempty"`
		Responses     []string `json:"responses,omitempty"`
		Emblem        string   `json:"emblem"`
		Points        int      `json:"points"`
		SecondsToLive int      `json:"seconds_to_live"`
		Shiny         bool     `json:"shiny"`
	}

	AnswerResult struct {
		GameID       string `json:"game_id"`
		UserID       string `json:"user_id"`
		Answer       string `json:"answer"`
		Delta        string `json:"delta,omitempty"`
		Total        string `json:"total,omitempty"`
		AttemptsLeft int    `json:"attempts_left"`
	}

	OutOfTime struct {
		GameID         string    `json:"game_id"`
		Question       string    `json:"question"`
		CorrectAnswers []string  `json:"correct_answers"`
		Toxic          bool      `json:"toxic"`
		Penalties      []Penalty `json:"penalties,omitempty"`
	}

	Penalty struct {
		UserID string `json:"user_id"`
		Delta  string `json:"delta"`
	}

	ClearedQueue struct {
		RemovedActive int `json:"removed_active"`
		RemovedQueued int `json:"removed_queued"`
	}

	Leaderboard struct {
		ChannelID string             `json:"channel_id"`
		Entries   []LeaderboardEntry `json:"entries"`
	}

	LeaderboardEntry struct {
		UserID string  `json:"user_id"`
		Score  float64 `json:"score"`
	}
)

func gameView(s domain.GameSession) Game {
	return Game{
		GameID:        s.GameID,
		Mode:          string(s.Mode),
		Channel:       s.Channel,
		Question:      s.Question.Text,
		Category:      s.Question.Category,
		Responses:     s.Question.Responses,
		Emblem:        s.Emblem,
		Points:        s.FinalPoints,
		SecondsToLive: s.SecondsToLive,
		Shiny:         s.Special == domain.SpecialShiny,
	}
}

func (a *API) PublishNewGame(ctx context.Context, e domain.EventNewGame) error {
	return a.publishToChannel(ctx, e.Session.ChannelID, e.Name(), gameView(e.Session))
}

func (a *API) PublishNewSuperGame(ctx context.Context, e domain.EventNewSuperGame) error {
	return a.publishToChannel(ctx, e.Session.ChannelID, e.Name(), gameView(e.Session))
}

func (a *API) PublishCorrectAnswer(ctx context.Context, e domain.EventCorrectAnswer) error {
	return a.publishToChannel(ctx, e.Session.ChannelID, e.Name(), AnswerResult{
		GameID: e.Session.GameID,
		UserID: e.UserID,
		Answer: e.Answer,
		Delta:  e.Score.Delta.String(),
		Total:  e.Score.Total.String(),
	})
}

func (a *API) PublishIncorrectAnswer(ctx context.Context, e domain.EventIncorrectAnswer) error {
	return a.publishToChannel(ctx, e.Session.ChannelID, e.Name(), AnswerResult{
		GameID:       e.Session.GameID,
		UserID:       e.UserID,
		Answer:       e.Answer,
		AttemptsLeft: e.AttemptsLeft,
	})
}

func (a *API) PublishInvalidAnswer(ctx context.Context, e domain.EventInvalidAnswer) error {
	return a.publishToUser(ctx, e.UserID, e.Name(), AnswerResult{
		GameID: e.Session.GameID,
		UserID: e.UserID,
		Answer: e.Answer,
	})
}

func (a *API) PublishOutOfTime(ctx context.Context, e domain.EventOutOfTime) error {
	data := OutOfTime{
		GameID:         e.Session.GameID,
		Question:       e.Session.Question.Text,
		CorrectAnswers: e.Session.Question.CorrectAnswers,
		Toxic:          e.Session.Special == domain.SpecialToxic,
		Penalties:      make([]Penalty, 0, len(e.Penalties)),
	}
	for _, p := range e.Penalties {
		data.Penalties = append(data.Penalties, Penalty{
			UserID: p.UserID,
			Delta:  p.Delta.String(),
		})
	}
	return a.publishToChannel(ctx, e.Session.ChannelID, e.Name(), data)
}

func (a *API) PublishNoGameForUser(ctx context.Context, e domain.EventNoGameForUser) error {
	return a.publishToUser(ctx, e.UserID, e.Name(), AnswerResult{
		UserID: e.UserID,
		Answer: e.Answer,
	})
}

func (a *API) PublishClearedQueue(ctx context.Context, e domain.EventClearedQueue) error {
	return a.publishToChannel(ctx, e.ChannelID, e.Name(), ClearedQueue{
		RemovedActive: e.RemovedActive,
		RemovedQueued: e.RemovedQueued,
	})
}

// PublishLeaderboardUpdated whispers the fresh ranking to every ranked user.
func (a *API) PublishLeaderboardUpdated(ctx context.Context, e domain.EventLeaderboardUpdated) error {
	l := e.Leaderboard

	data := Leaderboard{
		ChannelID: l.ChannelID,
		Entries:   make([]LeaderboardEntry, 0, len(l.Entries)),
	}
	for _, entry := range l.Entries {
		data.Entries = append(data.Entries, LeaderboardEntry{
			UserID: entry.UserID,
			Score:  entry.Score,
		})
	}

	var eg errgroup.Group
	eg.SetLimit(maxConcurrent)

	for _, entry := range data.Entries {
		eg.Go(func() error {
			return a.publishToUser(ctx, entry.UserID, e.Name(), data)
		})
	}

	return eg.Wait()
}

func (a *API) publishToChannel(ctx context.Context, channelID, event string, data any) error {
	return a.publish(ctx, fmt.Sprintf("%s:channel:%s", a.prefix, channelID), event, data)
}

func (a *API) publishToUser(ctx context.Context, userID, event string, data any) error {
	return a.publish(ctx, fmt.Sprintf("%s:user:%s", a.prefix, userID), event, data)
}

func (a *API) publish(ctx context.Context, topic, event string, data any) error {
	n := Notification{
		Event: event,
		Data:  data,
	}

	b, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("pubsub: marshal %s: %v", event, err)
	}

	return a.redis.Publish(ctx, topic, b).Err()
}
