package api_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/victornm/etrivia/internal/api"
	"github.com/victornm/etrivia/internal/domain"
	"github.com/victornm/etrivia/internal/event"
)

func TestAPI_PublishNewGame(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	rs := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{rs.Addr()},
	})
	require.NoError(t, rc.Ping(ctx).Err())

	sub := rc.Subscribe(ctx, "trivia:channel:chan1")
	_, err := sub.Receive(ctx)
	require.NoError(t, err, "should confirm subscription")

	a := api.New(api.Config{
		EventBus:     event.NewBus(),
		Redis:        rc,
		PubsubPrefix: "trivia",
	})

	session := domain.GameSession{
		Mode:      domain.ModeNormal,
		GameID:    "g1",
		Channel:   "somechannel",
		ChannelID: "chan1",
		Question: domain.Question{
			Type:           domain.TypeQuestionAnswer,
			ID:             "q1",
			Text:           "what is the capital of peru",
			CorrectAnswers: []string{"lima"},
		},
		FinalPoints:   10,
		SecondsToLive: 45,
		Special:       domain.SpecialToxic,
	}
	require.NoError(t, a.PublishNewGame(ctx, domain.EventNewGame{Session: session}))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)

	var n struct {
		Event string   `json:"event"`
		Data  api.Game `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &n))

	require.Equal(t, domain.EventNameNewGame, n.Event)
	require.Equal(t, "g1", n.Data.GameID)
	require.Equal(t, 10, n.Data.Points)
	require.False(t, n.Data.Shiny, "toxic must not be announced as shiny")
	require.NotContains(t, msg.Payload, "lima", "correct answers must not leak to chat")
	require.NotContains(t, msg.Payload, "toxic", "toxic status stays hidden until resolution")
}
