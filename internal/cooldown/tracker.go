// Package cooldown enforces the minimum interval between super games per
// channel.
package cooldown

import (
	"sync"
	"time"

	"github.com/victornm/etrivia/internal/config"
)

type Config struct {
	Settings *config.Settings

	// Now is overridable for tests; defaults to time.Now.
	Now func() time.Time
}

// Tracker maps channel ids to the earliest time a new super game may start.
// The cooldown length is read from live settings when a use is recorded, not
// cached, so operators can retune it between games.
type Tracker struct {
	settings *config.Settings
	now      func() time.Time

	mu      sync.Mutex
	readyAt map[string]time.Time
}

func NewTracker(c Config) *Tracker {
	if c.Now == nil {
		c.Now = time.Now
	}
	return &Tracker{
		settings: c.Settings,
		now:      c.Now,
		readyAt:  make(map[string]time.Time),
	}
}

// IsReady reports whether the channel's cooldown has elapsed.
func (t *Tracker) IsReady(channelID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return !t.now().Before(t.readyAt[channelID])
}

// MarkUsed starts a fresh cooldown for the channel.
func (t *Tracker) MarkUsed(channelID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.readyAt[channelID] = t.now().Add(t.settings.SuperCooldown())
}
