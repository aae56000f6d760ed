// Package reliability tracks recent fetch failures per question source so
// the fetcher can route around sources that are currently misbehaving.
package reliability

import (
	"sync"
	"time"

	"github.com/victornm/etrivia/internal/config"
	"github.com/victornm/etrivia/internal/domain"
	"github.com/victornm/etrivia/internal/telemetry"
)

type Config struct {
	Settings *config.Settings

	// Now is overridable for tests; defaults to time.Now.
	Now func() time.Time
}

type record struct {
	count     int
	lastError time.Time
}

// Tracker is a time-windowed error counter per source. A source whose count
// reaches the instability threshold is reported unstable and excluded from
// selection; once its last error falls outside the fall-off window the count
// implicitly resets to zero and the source recovers.
type Tracker struct {
	settings *config.Settings
	now      func() time.Time

	mu      sync.Mutex
	records map[domain.Source]record
}

func NewTracker(c Config) *Tracker {
	if c.Now == nil {
		c.Now = time.Now
	}
	return &Tracker{
		settings: c.Settings,
		now:      c.Now,
		records:  make(map[domain.Source]record),
	}
}

// IncrementError records a failure for the source and returns the new count.
// A stale record is reset before incrementing, so the count only reflects
// errors within the current fall-off window.
func (t *Tracker) IncrementError(source domain.Source) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	r := t.records[source]
	if t.stale(r, now) {
		r = record{}
	}
	r.count++
	r.lastError = now
	t.records[source] = r

	t.export(source, r, now)
	return r.count
}

// ErrorCount returns the number of errors within the fall-off window,
// resetting to 0 once the last error is older than the window.
func (t *Tracker) ErrorCount(source domain.Source) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	r := t.records[source]
	if t.stale(r, now) {
		delete(t.records, source)
		t.export(source, record{}, now)
		return 0
	}
	return r.count
}

// IsUnstable reports whether the source has reached the instability
// threshold within the current window.
func (t *Tracker) IsUnstable(source domain.Source) bool {
	return t.ErrorCount(source) >= t.settings.InstabilityThreshold()
}

func (t *Tracker) stale(r record, now time.Time) bool {
	return r.count == 0 || now.Sub(r.lastError) > t.settings.FallOffWindow()
}

func (t *Tracker) export(source domain.Source, r record, now time.Time) {
	open := 0.0
	if r.count >= t.settings.InstabilityThreshold() && !t.stale(r, now) {
		open = 1.0
	}
	telemetry.SourceBreakerOpen.WithLabelValues(string(source)).Set(open)
}
