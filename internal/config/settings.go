package config

import (
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/victornm/etrivia/internal/domain"
)

// Settings is the live tuning surface for the game engine. Every getter
// reads from the underlying viper instance at call time, so operators can
// change values (via the watched config file) without a restart.
type Settings struct {
	mu sync.RWMutex
	v  *viper.Viper
}

// NewSettings wraps a viper instance and registers defaults for every
// tunable. The caller owns reading/watching the config file.
func NewSettings(v *viper.Viper) *Settings {
	v.SetDefault("trivia.fetch.max_retries", 5)
	v.SetDefault("trivia.reliability.instability_threshold", 3)
	v.SetDefault("trivia.reliability.falloff_minutes", 20)
	v.SetDefault("trivia.special.shiny_probability", 0.05)
	v.SetDefault("trivia.special.toxic_probability", 0.01)
	v.SetDefault("trivia.special.shiny_multiplier", 2)
	v.SetDefault("trivia.special.toxic_multiplier", 2)
	v.SetDefault("trivia.normal.base_points", 5)
	v.SetDefault("trivia.normal.seconds_to_live", 45)
	v.SetDefault("trivia.normal.emblem", "🎲")
	v.SetDefault("trivia.super.base_points", 25)
	v.SetDefault("trivia.super.seconds_to_live", 50)
	v.SetDefault("trivia.super.emblem", "✨")
	v.SetDefault("trivia.super.cooldown_seconds", 480)
	v.SetDefault("trivia.super.attempts_per_user", 2)
	v.SetDefault("trivia.super.queue_cap", 8)
	v.SetDefault("trivia.history.retention_days", 7)

	return &Settings{v: v}
}

// NewSettingsFromFile loads the file into a fresh viper instance and keeps
// watching it for changes.
func NewSettingsFromFile(file string) (*Settings, error) {
	v := viper.New()
	v.SetConfigFile(file)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	v.WatchConfig()
	return NewSettings(v), nil
}

// SourceWeights returns the configured selection weight per question source.
// Sources absent from config or with non-positive weight are never drawn.
func (s *Settings) SourceWeights() map[domain.Source]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	raw := s.v.GetStringMap("trivia.sources.weights")
	weights := make(map[domain.Source]int, len(raw))
	for name := range raw {
		w := s.v.GetInt("trivia.sources.weights." + name)
		if w > 0 {
			weights[domain.Source(name)] = w
		}
	}
	return weights
}

func (s *Settings) MaxRetryCount() int {
	return clamp(s.getInt("trivia.fetch.max_retries"), 1, 10)
}

func (s *Settings) InstabilityThreshold() int {
	return s.getInt("trivia.reliability.instability_threshold")
}

func (s *Settings) FallOffWindow() time.Duration {
	return time.Duration(s.getInt("trivia.reliability.falloff_minutes")) * time.Minute
}

func (s *Settings) ShinyProbability() float64 {
	return s.getFloat("trivia.special.shiny_probability")
}

func (s *Settings) ToxicProbability() float64 {
	return s.getFloat("trivia.special.toxic_probability")
}

func (s *Settings) ShinyMultiplier() int {
	return s.getInt("trivia.special.shiny_multiplier")
}

func (s *Settings) ToxicMultiplier() int {
	return s.getInt("trivia.special.toxic_multiplier")
}

func (s *Settings) BasePoints(mode domain.GameMode) int {
	return s.getInt("trivia." + string(mode) + ".base_points")
}

func (s *Settings) SecondsToLive(mode domain.GameMode) int {
	return s.getInt("trivia." + string(mode) + ".seconds_to_live")
}

func (s *Settings) Emblem(mode domain.GameMode) string {
	return s.getString("trivia." + string(mode) + ".emblem")
}

func (s *Settings) SuperCooldown() time.Duration {
	return time.Duration(s.getInt("trivia.super.cooldown_seconds")) * time.Second
}

func (s *Settings) AttemptsPerUser() int {
	return clamp(s.getInt("trivia.super.attempts_per_user"), 1, 3)
}

func (s *Settings) SuperQueueCap() int {
	return s.getInt("trivia.super.queue_cap")
}

func (s *Settings) BannedWords() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v.GetStringSlice("trivia.content.banned_words")
}

func (s *Settings) HistoryRetention() time.Duration {
	return time.Duration(s.getInt("trivia.history.retention_days")) * 24 * time.Hour
}

// Set overrides a single value at runtime. Tests and admin tooling use this;
// normal operation tunes via the watched config file.
func (s *Settings) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.v.Set(key, value)
}

func (s *Settings) getInt(key string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v.GetInt(key)
}

func (s *Settings) getFloat(key string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v.GetFloat64(key)
}

func (s *Settings) getString(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v.GetString(key)
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
