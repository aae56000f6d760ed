// Package server wires infrastructure (redis, postgres, the event bus) to
// the game engine and exposes the HTTP surface chat workers drive it with.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/victornm/etrivia/internal/api"
	"github.com/victornm/etrivia/internal/banned"
	"github.com/victornm/etrivia/internal/config"
	"github.com/victornm/etrivia/internal/cooldown"
	"github.com/victornm/etrivia/internal/domain"
	"github.com/victornm/etrivia/internal/engine"
	"github.com/victornm/etrivia/internal/event"
	"github.com/victornm/etrivia/internal/leaderboard"
	"github.com/victornm/etrivia/internal/question"
	"github.com/victornm/etrivia/internal/reliability"
	"github.com/victornm/etrivia/internal/score"
	"github.com/victornm/etrivia/internal/special"
	"github.com/victornm/etrivia/internal/store"
	"github.com/victornm/etrivia/internal/telemetry"
	"github.com/victornm/etrivia/internal/verify"
)

type Config struct {
	HTTP struct {
		Port int32
	}

	// Settings.File is the watched tunables file (weights, probabilities,
	// cooldowns). Empty means built-in defaults only.
	Settings struct {
		File string
	}

	Engine struct {
		QueueSize int
	}

	Redis struct {
		History struct {
			Addrs  []string
			Pass   string
			Prefix string
		}

		Leaderboard struct {
			Addrs  []string
			Pass   string
			Prefix string
		}

		Pubsub struct {
			Addrs  []string
			Pass   string
			Prefix string
		}
	}

	Postgres struct {
		Trivia struct {
			Addr string
			User string
			Pass string
			Name string
		}
	}
}

// Option customizes pieces Config cannot carry, such as upstream question
// source clients.
type Option func(s *Server)

// WithQuestionSource registers an upstream question provider. The local
// postgres source is always registered; everything else is plugged in here.
func WithQuestionSource(src domain.Source, qs question.Source) Option {
	return func(s *Server) {
		s.sources[src] = qs
	}
}

type Server struct {
	c Config

	eb       *event.Bus
	settings *config.Settings
	sources  map[domain.Source]question.Source

	infra struct {
		redis struct {
			history     redis.UniversalClient
			leaderboard redis.UniversalClient
			pubsub      redis.UniversalClient
		}

		postgres struct {
			trivia *pgxpool.Pool
		}
	}

	service struct {
		store       *store.Store
		engine      *engine.Engine
		leaderboard *leaderboard.Service
		banned      *banned.Repository
	}

	http   *http.Server
	cancel context.CancelFunc
}

func Init(c Config, opts ...Option) (*Server, error) {
	s := &Server{
		c:       c,
		sources: make(map[domain.Source]question.Source),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.eb = event.NewBus()

	if err := s.initSettings(); err != nil {
		return nil, fmt.Errorf("server: init settings: %w", err)
	}

	if err := s.initInfra(); err != nil {
		return nil, fmt.Errorf("server: init infra: %w", err)
	}

	s.initService()
	s.initAPI()
	return s, nil
}

func (s *Server) initSettings() error {
	if s.c.Settings.File == "" {
		s.settings = config.NewSettings(viper.New())
		return nil
	}

	settings, err := config.NewSettingsFromFile(s.c.Settings.File)
	if err != nil {
		return err
	}
	s.settings = settings
	return nil
}

func (s *Server) initInfra() error {
	if err := s.initRedis(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	if err := s.initPostgres(); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}

	return nil
}

func (s *Server) initRedis() error {
	connect := func(addrs []string, pass string) (redis.UniversalClient, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		r := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    addrs,
			Password: pass,
		})

		if err := telemetry.MonitorRedis(r); err != nil {
			return nil, err
		}

		if err := r.Ping(ctx).Err(); err != nil {
			return nil, err
		}

		return r, nil
	}

	var err error
	s.infra.redis.history, err = connect(s.c.Redis.History.Addrs, s.c.Redis.History.Pass)
	if err != nil {
		return fmt.Errorf("history: %w", err)
	}

	s.infra.redis.leaderboard, err = connect(s.c.Redis.Leaderboard.Addrs, s.c.Redis.Leaderboard.Pass)
	if err != nil {
		return fmt.Errorf("leaderboard: %w", err)
	}

	s.infra.redis.pubsub, err = connect(s.c.Redis.Pubsub.Addrs, s.c.Redis.Pubsub.Pass)
	if err != nil {
		return fmt.Errorf("pubsub: %w", err)
	}

	return nil
}

func (s *Server) initPostgres() (err error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	p := s.c.Postgres.Trivia
	cc, err := pgxpool.ParseConfig(fmt.Sprintf("postgres://%s:%s@%s/%s", p.User, p.Pass, p.Addr, p.Name))
	if err != nil {
		return err
	}

	db, err := pgxpool.NewWithConfig(ctx, cc)
	if err != nil {
		return err
	}

	if err := db.Ping(ctx); err != nil {
		return err
	}

	s.infra.postgres.trivia = db
	return nil
}

func (s *Server) initService() {
	tracker := reliability.NewTracker(reliability.Config{
		Settings: s.settings,
	})

	s.sources[domain.SourceLocal] = question.NewPGLocalSource(question.PGLocalConfig{
		DB: s.infra.postgres.trivia,
	})

	fetcher := question.NewFetcher(question.Config{
		Settings:    s.settings,
		Reliability: tracker,
		Sources:     s.sources,
	})

	s.service.banned = banned.NewRepository(banned.Config{
		DB: s.infra.postgres.trivia,
	})

	chain := verify.NewChain(verify.Config{
		Banned:  s.service.banned,
		Scanner: verify.NewScanner(s.settings),
		History: verify.NewRedisHistory(verify.RedisHistoryConfig{
			Settings: s.settings,
			Redis:    s.infra.redis.history,
			Prefix:   s.c.Redis.History.Prefix,
		}),
	})

	settler := score.NewSettler(score.Config{
		EventBus: s.eb,
		Repository: score.NewPGRepository(score.PGConfig{
			DB: s.infra.postgres.trivia,
		}),
	})

	s.service.leaderboard = leaderboard.NewService(leaderboard.Config{
		EventBus: s.eb,
		Redis:    s.infra.redis.leaderboard,
		Prefix:   s.c.Redis.Leaderboard.Prefix,
	})

	s.service.store = store.New()

	s.service.engine = engine.New(engine.Config{
		Settings:  s.settings,
		Store:     s.service.store,
		Fetcher:   fetcher,
		Verifier:  chain,
		Special:   special.NewAssigner(special.Config{Settings: s.settings}),
		Cooldown:  cooldown.NewTracker(cooldown.Config{Settings: s.settings}),
		Settler:   settler,
		EventBus:  s.eb,
		QueueSize: s.c.Engine.QueueSize,
	})
}

func (s *Server) initAPI() {
	e := gin.New()
	e.Use(gin.Recovery())
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	pprof.Register(e, "/debug/pprof")

	e.GET("/debug/sessions", s.listSessions)
	e.GET("/channels/:channelID/leaderboard", s.getLeaderboard)
	e.POST("/channels/:channelID/games", s.startNormalGame)
	e.POST("/channels/:channelID/super-games", s.startSuperGame)
	e.POST("/channels/:channelID/answers", s.checkAnswer)
	e.DELETE("/channels/:channelID/super-queue", s.clearSuperQueue)
	e.POST("/questions/banned", s.banQuestion)
	e.DELETE("/questions/banned", s.unbanQuestion)

	api.New(api.Config{
		EventBus:     s.eb,
		Redis:        s.infra.redis.pubsub,
		PubsubPrefix: s.c.Redis.Pubsub.Prefix,
	})

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           e,
		ReadHeaderTimeout: 60 * time.Second,
	}
}

func (s *Server) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	var eg errgroup.Group
	eg.Go(func() error {
		slog.InfoContext(ctx, "server: engine loop starting")
		if err := s.service.engine.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: HTTP listening on port %d", s.c.HTTP.Port))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if err := eg.Wait(); err != nil {
		slog.ErrorContext(ctx, "server: shutdown with error", "error", err)
	}
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if s.cancel != nil {
		s.cancel()
	}

	if err := s.http.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "server: shutdown HTTP failed", "error", err)
	}

	s.eb.Stop()

	slog.InfoContext(ctx, "server: shutdown completed")
}
