package reliability_test

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/victornm/etrivia/internal/config"
	"github.com/victornm/etrivia/internal/domain"
	"github.com/victornm/etrivia/internal/reliability"
)

func TestTracker_ErrorCount(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := &fakeClock{t: now}

	tr := reliability.NewTracker(reliability.Config{
		Settings: makeSettings(t),
		Now:      clock.Now,
	})

	require.Equal(t, 0, tr.ErrorCount(domain.SourceOpenTrivia), "no errors recorded yet")

	require.Equal(t, 1, tr.IncrementError(domain.SourceOpenTrivia))
	require.Equal(t, 2, tr.IncrementError(domain.SourceOpenTrivia))
	require.Equal(t, 2, tr.ErrorCount(domain.SourceOpenTrivia))

	require.Equal(t, 0, tr.ErrorCount(domain.SourceJService), "other sources unaffected")
}

func TestTracker_FallOffWindow(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	settings := makeSettings(t)

	tr := reliability.NewTracker(reliability.Config{
		Settings: settings,
		Now:      clock.Now,
	})

	tr.IncrementError(domain.SourceOpenTrivia)
	tr.IncrementError(domain.SourceOpenTrivia)
	tr.IncrementError(domain.SourceOpenTrivia)
	require.True(t, tr.IsUnstable(domain.SourceOpenTrivia), "3 errors reach the default threshold")

	clock.Advance(19 * time.Minute)
	require.True(t, tr.IsUnstable(domain.SourceOpenTrivia), "still within the 20 minute window")

	clock.Advance(2 * time.Minute)
	require.Equal(t, 0, tr.ErrorCount(domain.SourceOpenTrivia), "count decays once the window lapses")
	require.False(t, tr.IsUnstable(domain.SourceOpenTrivia))

	require.Equal(t, 1, tr.IncrementError(domain.SourceOpenTrivia), "fresh errors start a new window")
}

func TestTracker_WindowResetOnIncrement(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}

	tr := reliability.NewTracker(reliability.Config{
		Settings: makeSettings(t),
		Now:      clock.Now,
	})

	tr.IncrementError(domain.SourceWillFry)
	tr.IncrementError(domain.SourceWillFry)

	clock.Advance(30 * time.Minute)
	require.Equal(t, 1, tr.IncrementError(domain.SourceWillFry), "stale count resets before incrementing")
}

func makeSettings(t *testing.T) *config.Settings {
	t.Helper()
	return config.NewSettings(viper.New())
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }
