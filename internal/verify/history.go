package verify

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/victornm/etrivia/internal/config"
	"github.com/victornm/etrivia/internal/domain"
)

// RedisHistory tracks which questions a channel has seen recently. A key per
// (channel, source, question) with a retention TTL makes the duplicate check
// and the emission record a single SETNX.
type RedisHistory struct {
	settings *config.Settings
	redis    redis.UniversalClient
	prefix   string
}

type RedisHistoryConfig struct {
	Settings *config.Settings
	Redis    redis.UniversalClient
	Prefix   string
}

func NewRedisHistory(c RedisHistoryConfig) *RedisHistory {
	return &RedisHistory{
		settings: c.Settings,
		redis:    c.Redis,
		prefix:   c.Prefix,
	}
}

// Verify returns false when the question was already shown to the channel
// within the retention window. On true, the emission is recorded as a side
// effect.
func (h *RedisHistory) Verify(ctx context.Context, q domain.Question, channelID string) (bool, error) {
	key := h.key(q, channelID)

	ok, err := h.redis.SetNX(ctx, key, 1, h.settings.HistoryRetention()).Result()
	if err != nil {
		return false, fmt.Errorf("history: setnx %s: %w", key, err)
	}
	return ok, nil
}

func (h *RedisHistory) key(q domain.Question, channelID string) string {
	return fmt.Sprintf("%s:history:%s:%s:%s", h.prefix, channelID, q.Source, q.ID)
}
