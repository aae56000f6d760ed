package store_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/victornm/etrivia/internal/domain"
	"github.com/victornm/etrivia/internal/store"
)

func TestStore_NormalLifecycle(t *testing.T) {
	t.Parallel()

	s := store.New()

	_, ok := s.GetNormal("chan1", "u1")
	require.False(t, ok)

	s.Add(normalSession("g1", "chan1", "u1"))

	got, ok := s.GetNormal("chan1", "u1")
	require.True(t, ok)
	require.Equal(t, "g1", got.GameID)

	_, ok = s.GetNormal("chan1", "u2")
	require.False(t, ok, "normal sessions are keyed by channel and user")

	require.True(t, s.RemoveNormal("chan1", "u1"))
	require.False(t, s.RemoveNormal("chan1", "u1"), "remove is idempotent")
}

func TestStore_SuperLifecycle(t *testing.T) {
	t.Parallel()

	s := store.New()

	s.Add(superSession("g1", "chan1"))
	s.Add(superSession("g2", "chan2"))

	got, ok := s.GetSuper("chan1")
	require.True(t, ok)
	require.Equal(t, "g1", got.GameID)

	require.ElementsMatch(t, []string{"chan1", "chan2"}, s.ChannelsWithActiveSuper())

	require.True(t, s.RemoveSuper("chan1"))
	require.False(t, s.RemoveSuper("chan1"))
	require.ElementsMatch(t, []string{"chan2"}, s.ChannelsWithActiveSuper())
}

func TestStore_ReadsAreCopies(t *testing.T) {
	t.Parallel()

	s := store.New()
	s.Add(superSession("g1", "chan1"))

	got, ok := s.GetSuper("chan1")
	require.True(t, ok)

	// Mutating the copy must not leak back into the store.
	got.Attempts["u1"] = 99
	got.GameID = "tampered"

	again, ok := s.GetSuper("chan1")
	require.True(t, ok)
	require.Equal(t, "g1", again.GameID)
	require.Zero(t, again.Attempts["u1"])
}

func TestStore_Update(t *testing.T) {
	t.Parallel()

	s := store.New()
	s.Add(superSession("g1", "chan1"))

	session, _ := s.GetSuper("chan1")
	session.Attempts["u1"] = 1
	require.True(t, s.Update(session))

	got, _ := s.GetSuper("chan1")
	require.Equal(t, 1, got.Attempts["u1"])

	s.RemoveSuper("chan1")
	require.False(t, s.Update(session), "update must not resurrect a removed session")
	_, ok := s.GetSuper("chan1")
	require.False(t, ok)
}

func TestStore_ConcurrentReaders(t *testing.T) {
	t.Parallel()

	s := store.New()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				s.GetAll()
				s.GetSuper("chan1")
				s.ChannelsWithActiveSuper()
			}
		}()
	}

	for j := 0; j < 1000; j++ {
		s.Add(superSession("g", "chan1"))
		session, ok := s.GetSuper("chan1")
		if ok {
			session.Attempts["u1"]++
			s.Update(session)
		}
		s.RemoveSuper("chan1")
	}

	wg.Wait()
}

func normalSession(gameID, channelID, userID string) domain.GameSession {
	return domain.GameSession{
		Mode:      domain.ModeNormal,
		GameID:    gameID,
		ChannelID: channelID,
		UserID:    userID,
	}
}

func superSession(gameID, channelID string) domain.GameSession {
	return domain.GameSession{
		Mode:      domain.ModeSuper,
		GameID:    gameID,
		ChannelID: channelID,
		Attempts:  map[string]int{},
	}
}
