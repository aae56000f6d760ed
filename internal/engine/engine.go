// Package engine runs the trivia game state machine. A single goroutine
// consumes actions from a bounded queue and is the only writer of the
// session store, the reliability tracker and the cooldown tracker; timers
// and command handlers communicate with it exclusively by enqueueing.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/victornm/etrivia/internal/config"
	"github.com/victornm/etrivia/internal/cooldown"
	"github.com/victornm/etrivia/internal/domain"
	"github.com/victornm/etrivia/internal/errors"
	"github.com/victornm/etrivia/internal/event"
	"github.com/victornm/etrivia/internal/question"
	"github.com/victornm/etrivia/internal/score"
	"github.com/victornm/etrivia/internal/special"
	"github.com/victornm/etrivia/internal/store"
	"github.com/victornm/etrivia/internal/telemetry"
	"github.com/victornm/etrivia/internal/verify"
)

const defaultQueueSize = 1024

type Config struct {
	Settings *config.Settings
	Store    *store.Store
	Fetcher  *question.Fetcher
	Verifier *verify.Chain
	Special  *special.Assigner
	Cooldown *cooldown.Tracker
	Settler  *score.Settler
	EventBus *event.Bus

	QueueSize int

	// Now and Schedule are overridable for tests; they default to time.Now
	// and time.AfterFunc.
	Now      func() time.Time
	Schedule func(d time.Duration, fn func())
}

type Engine struct {
	settings *config.Settings
	store    *store.Store
	fetcher  *question.Fetcher
	verifier *verify.Chain
	special  *special.Assigner
	cooldown *cooldown.Tracker
	settler  *score.Settler
	eb       *event.Bus

	now      func() time.Time
	schedule func(d time.Duration, fn func())

	actions chan Action

	// pendingSuper holds queued super game requests per channel. Only the
	// engine loop touches it.
	pendingSuper map[string][]StartSuperGame
}

func New(c Config) *Engine {
	if c.QueueSize <= 0 {
		c.QueueSize = defaultQueueSize
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Schedule == nil {
		c.Schedule = func(d time.Duration, fn func()) { time.AfterFunc(d, fn) }
	}

	return &Engine{
		settings:     c.Settings,
		store:        c.Store,
		fetcher:      c.Fetcher,
		verifier:     c.Verifier,
		special:      c.Special,
		cooldown:     c.Cooldown,
		settler:      c.Settler,
		eb:           c.EventBus,
		now:          c.Now,
		schedule:     c.Schedule,
		actions:      make(chan Action, c.QueueSize),
		pendingSuper: make(map[string][]StartSuperGame),
	}
}

// Submit enqueues an action. It acknowledges the enqueue only; outcomes are
// observed through emitted events (or a start action's Result channel).
func (e *Engine) Submit(a Action) error {
	select {
	case e.actions <- a:
		return nil
	default:
		return errors.New(errors.CodeResourceExhausted,
			errors.WithMessagef("engine: action queue full"))
	}
}

// Run consumes actions until ctx is cancelled. It never returns early: a
// panicking or failing action is logged and the loop moves on, so one
// channel's bad day cannot stall the others.
func (e *Engine) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case a := <-e.actions:
			e.process(ctx, a)
		}
	}
}

func (e *Engine) process(ctx context.Context, a Action) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "engine: action panic",
				"action", fmt.Sprintf("%T", a),
				"error", fmt.Errorf("%v, stack: %s", r, debug.Stack()),
			)
		}
	}()

	err := e.handle(ctx, a)
	if err != nil {
		slog.WarnContext(ctx, "engine: action failed",
			"action", fmt.Sprintf("%T", a),
			"error", err,
		)
	}

	switch a := a.(type) {
	case StartNormalGame:
		reply(a.Result, err)
	case StartSuperGame:
		reply(a.Result, err)
	}
}

func (e *Engine) handle(ctx context.Context, a Action) error {
	switch a := a.(type) {
	case StartNormalGame:
		return e.startNormal(ctx, a)
	case StartSuperGame:
		return e.startSuper(ctx, a)
	case CheckAnswer:
		return e.checkAnswer(ctx, a)
	case CheckSuperAnswer:
		return e.checkSuperAnswer(ctx, a)
	case ClearSuperQueue:
		return e.clearSuperQueue(ctx, a)
	case ExpireGame:
		return e.expire(ctx, a)
	default:
		return errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("unknown action %T", a))
	}
}

func (e *Engine) startNormal(ctx context.Context, a StartNormalGame) error {
	if _, ok := e.store.GetNormal(a.Options.ChannelID, a.UserID); ok {
		// Duplicate game, reject silently.
		slog.DebugContext(ctx, "engine: normal game already active",
			"channel_id", a.Options.ChannelID,
			"user_id", a.UserID,
		)
		return nil
	}

	q, err := e.acquireQuestion(ctx, a.Options)
	if err != nil {
		return err
	}

	// The fetch may have suspended this action for a while; re-check the
	// precondition before storing.
	if _, ok := e.store.GetNormal(a.Options.ChannelID, a.UserID); ok {
		return nil
	}

	session, err := e.buildSession(domain.ModeNormal, a.ActionID, a.Options, q)
	if err != nil {
		return err
	}
	session.UserID = a.UserID

	e.store.Add(session)
	e.scheduleExpiry(session)
	telemetry.GamesStarted.WithLabelValues(string(domain.ModeNormal)).Inc()

	e.eb.Publish(ctx, domain.EventNewGame{Session: session})
	return nil
}

func (e *Engine) startSuper(ctx context.Context, a StartSuperGame) error {
	channelID := a.Options.ChannelID

	if _, ok := e.store.GetSuper(channelID); ok {
		if limit := e.settings.SuperQueueCap(); len(e.pendingSuper[channelID]) >= limit {
			return errors.New(errors.CodeResourceExhausted,
				errors.WithMessagef("super game queue full for channel %s", channelID))
		}
		e.pendingSuper[channelID] = append(e.pendingSuper[channelID], a)
		return nil
	}

	if !e.cooldown.IsReady(channelID) {
		// Cooldown still running, reject silently before any fetch.
		slog.DebugContext(ctx, "engine: super game on cooldown",
			"channel_id", channelID,
		)
		return errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("super game cooldown not elapsed for channel %s", channelID))
	}

	return e.startSuperNow(ctx, a)
}

// startSuperNow runs the fetch/verify/assign/store flow for a super game.
// The caller has already dealt with queueing and cooldown eligibility.
func (e *Engine) startSuperNow(ctx context.Context, a StartSuperGame) error {
	channelID := a.Options.ChannelID
	e.cooldown.MarkUsed(channelID)

	q, err := e.acquireQuestion(ctx, a.Options)
	if err != nil {
		return err
	}

	if _, ok := e.store.GetSuper(channelID); ok {
		return nil
	}

	session, err := e.buildSession(domain.ModeSuper, a.ActionID, a.Options, q)
	if err != nil {
		return err
	}
	session.AttemptsPerUser = e.settings.AttemptsPerUser()
	session.Attempts = make(map[string]int)
	session.ToxicMultiplier = e.settings.ToxicMultiplier()

	e.store.Add(session)
	e.scheduleExpiry(session)
	telemetry.GamesStarted.WithLabelValues(string(domain.ModeSuper)).Inc()

	e.eb.Publish(ctx, domain.EventNewSuperGame{Session: session})
	return nil
}

func (e *Engine) checkAnswer(ctx context.Context, a CheckAnswer) error {
	session, ok := e.store.GetNormal(a.ChannelID, a.UserID)
	if !ok {
		e.eb.Publish(ctx, domain.EventNoGameForUser{
			ChannelID: a.ChannelID,
			UserID:    a.UserID,
			Answer:    a.Answer,
		})
		return nil
	}

	answer := strings.TrimSpace(a.Answer)
	if answer == "" {
		e.eb.Publish(ctx, domain.EventInvalidAnswer{
			Session: session,
			UserID:  a.UserID,
			Answer:  a.Answer,
		})
		return nil
	}

	if session.Question.AnswerMatches(answer) {
		e.store.RemoveNormal(a.ChannelID, a.UserID)
		telemetry.GamesFinished.WithLabelValues(string(domain.ModeNormal), "won").Inc()

		result := e.settleWin(ctx, session, a.UserID)
		e.eb.Publish(ctx, domain.EventCorrectAnswer{
			Session: session,
			UserID:  a.UserID,
			Answer:  a.Answer,
			Score:   result,
		})
		return nil
	}

	// A normal game grants a single attempt; a wrong answer ends it.
	e.store.RemoveNormal(a.ChannelID, a.UserID)
	telemetry.GamesFinished.WithLabelValues(string(domain.ModeNormal), "lost").Inc()

	if session.Special == domain.SpecialToxic {
		e.settlePenalty(ctx, session, a.UserID)
	}

	e.eb.Publish(ctx, domain.EventIncorrectAnswer{
		Session:      session,
		UserID:       a.UserID,
		Answer:       a.Answer,
		AttemptsLeft: 0,
	})
	return nil
}

func (e *Engine) checkSuperAnswer(ctx context.Context, a CheckSuperAnswer) error {
	session, ok := e.store.GetSuper(a.ChannelID)
	if !ok {
		// Stragglers answering a finished super game are routine; stay quiet.
		return nil
	}

	used := session.Attempts[a.UserID]
	if used >= session.AttemptsPerUser {
		return nil
	}

	answer := strings.TrimSpace(a.Answer)
	if answer == "" {
		e.eb.Publish(ctx, domain.EventInvalidAnswer{
			Session: session,
			UserID:  a.UserID,
			Answer:  a.Answer,
		})
		return nil
	}

	// The attempt is consumed whether or not the answer is right.
	session.Attempts[a.UserID] = used + 1
	e.store.Update(session)

	if session.Question.AnswerMatches(answer) {
		e.store.RemoveSuper(a.ChannelID)
		telemetry.GamesFinished.WithLabelValues(string(domain.ModeSuper), "won").Inc()

		result := e.settleWin(ctx, session, a.UserID)
		e.eb.Publish(ctx, domain.EventCorrectAnswer{
			Session: session,
			UserID:  a.UserID,
			Answer:  a.Answer,
			Score:   result,
		})
		return e.startNextQueued(ctx, a.ChannelID)
	}

	e.eb.Publish(ctx, domain.EventIncorrectAnswer{
		Session:      session,
		UserID:       a.UserID,
		Answer:       a.Answer,
		AttemptsLeft: session.AttemptsPerUser - session.Attempts[a.UserID],
	})
	return nil
}

func (e *Engine) expire(ctx context.Context, a ExpireGame) error {
	var (
		session domain.GameSession
		ok      bool
	)
	switch a.Mode {
	case domain.ModeSuper:
		session, ok = e.store.GetSuper(a.ChannelID)
	default:
		session, ok = e.store.GetNormal(a.ChannelID, a.UserID)
	}

	// Already won, cleared, or replaced by a newer game under the same key.
	if !ok || session.GameID != a.GameID {
		return nil
	}

	switch a.Mode {
	case domain.ModeSuper:
		e.store.RemoveSuper(a.ChannelID)
	default:
		e.store.RemoveNormal(a.ChannelID, a.UserID)
	}
	telemetry.GamesFinished.WithLabelValues(string(session.Mode), "expired").Inc()

	var penalties []domain.ScoreResult
	if session.Special == domain.SpecialToxic {
		penalties = e.punishToxicTimeout(ctx, session)
	}

	e.eb.Publish(ctx, domain.EventOutOfTime{
		Session:   session,
		Penalties: penalties,
	})

	if a.Mode == domain.ModeSuper {
		return e.startNextQueued(ctx, a.ChannelID)
	}
	return nil
}

// punishToxicTimeout applies the toxic penalty after a loss by timeout: the
// owner for a normal game, every user who spent an attempt for a super game.
func (e *Engine) punishToxicTimeout(ctx context.Context, session domain.GameSession) []domain.ScoreResult {
	var penalties []domain.ScoreResult

	switch session.Mode {
	case domain.ModeSuper:
		for userID, used := range session.Attempts {
			if used <= 0 {
				continue
			}
			if result, ok := e.settlePenaltyResult(ctx, session, userID); ok {
				penalties = append(penalties, result)
			}
		}
	default:
		if result, ok := e.settlePenaltyResult(ctx, session, session.UserID); ok {
			penalties = append(penalties, result)
		}
	}

	return penalties
}

func (e *Engine) clearSuperQueue(ctx context.Context, a ClearSuperQueue) error {
	removedActive := 0
	if e.store.RemoveSuper(a.ChannelID) {
		removedActive = 1
		telemetry.GamesFinished.WithLabelValues(string(domain.ModeSuper), "cleared").Inc()
	}

	removedQueued := len(e.pendingSuper[a.ChannelID])
	delete(e.pendingSuper, a.ChannelID)

	e.eb.Publish(ctx, domain.EventClearedQueue{
		ChannelID:     a.ChannelID,
		RemovedActive: removedActive,
		RemovedQueued: removedQueued,
	})
	return nil
}

// startNextQueued starts the oldest queued super game for the channel, if
// any. Queued games skip the IsReady gate (their wait in the queue already
// exceeded a game's lifetime) but still restart the cooldown.
func (e *Engine) startNextQueued(ctx context.Context, channelID string) error {
	for len(e.pendingSuper[channelID]) > 0 {
		next := e.pendingSuper[channelID][0]
		e.pendingSuper[channelID] = e.pendingSuper[channelID][1:]
		if len(e.pendingSuper[channelID]) == 0 {
			delete(e.pendingSuper, channelID)
		}

		err := e.startSuperNow(ctx, next)
		if err == nil {
			return nil
		}

		reply(next.Result, err)
		slog.WarnContext(ctx, "engine: queued super game failed to start",
			"channel_id", channelID,
			"error", err,
		)
	}
	return nil
}

// acquireQuestion runs the fetch → verify loop. Fetch-level retries are
// bounded inside the fetcher; verification rejections get the same budget
// here, so a run of duplicates cannot spin forever.
func (e *Engine) acquireQuestion(ctx context.Context, opts domain.FetchOptions) (domain.Question, error) {
	retries := e.settings.MaxRetryCount()

	for attempt := 1; attempt <= retries; attempt++ {
		q, err := e.fetcher.Fetch(ctx, opts)
		if err != nil {
			return domain.Question{}, err
		}

		result, err := e.verifier.Verify(ctx, q, opts)
		if err != nil {
			// Collaborator failure; treat like a failed fetch and redraw.
			slog.WarnContext(ctx, "engine: verification error",
				"question_id", q.ID,
				"source", q.Source,
				"error", err,
			)
			continue
		}
		if result != verify.ResultOK {
			slog.DebugContext(ctx, "engine: question rejected",
				"question_id", q.ID,
				"source", q.Source,
				"result", result,
			)
			continue
		}

		return q, nil
	}

	return domain.Question{}, errors.New(errors.CodeResourceExhausted,
		errors.WithMessagef("no verifiable question after %d attempts", retries))
}

func (e *Engine) buildSession(mode domain.GameMode, actionID string, opts domain.FetchOptions, q domain.Question) (domain.GameSession, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return domain.GameSession{}, fmt.Errorf("generate game ID: %w", err)
	}

	basePoints := e.settings.BasePoints(mode)
	finalPoints := basePoints
	sp := e.special.Assign()
	if sp == domain.SpecialShiny {
		finalPoints = basePoints * e.settings.ShinyMultiplier()
	}

	ttl := e.settings.SecondsToLive(mode)

	return domain.GameSession{
		Mode:          mode,
		GameID:        id.String(),
		ActionID:      actionID,
		Channel:       opts.Channel,
		ChannelID:     opts.ChannelID,
		Question:      q,
		BasePoints:    basePoints,
		FinalPoints:   finalPoints,
		SecondsToLive: ttl,
		EndTime:       e.now().Add(time.Duration(ttl) * time.Second),
		Special:       sp,
		Emblem:        e.settings.Emblem(mode),
	}, nil
}

// scheduleExpiry arms the session's timeout. The timer only enqueues; the
// expiry itself runs on the engine loop like any other action.
func (e *Engine) scheduleExpiry(session domain.GameSession) {
	a := ExpireGame{
		GameID:    session.GameID,
		Mode:      session.Mode,
		ChannelID: session.ChannelID,
		UserID:    session.UserID,
	}

	e.schedule(time.Duration(session.SecondsToLive)*time.Second, func() {
		if err := e.Submit(a); err != nil {
			slog.Error("engine: enqueue expiry failed",
				"game_id", a.GameID,
				"error", err,
			)
		}
	})
}

func (e *Engine) settleWin(ctx context.Context, session domain.GameSession, userID string) domain.ScoreResult {
	result, err := e.settler.SettleWin(ctx, session, userID)
	if err != nil {
		// The game is already decided; a settlement failure must not undo it.
		slog.ErrorContext(ctx, "engine: settle win failed",
			"game_id", session.GameID,
			"user_id", userID,
			"error", err,
		)
	}
	return result
}

func (e *Engine) settlePenalty(ctx context.Context, session domain.GameSession, userID string) {
	e.settlePenaltyResult(ctx, session, userID)
}

func (e *Engine) settlePenaltyResult(ctx context.Context, session domain.GameSession, userID string) (domain.ScoreResult, bool) {
	result, err := e.settler.SettlePenalty(ctx, session, userID)
	if err != nil {
		slog.ErrorContext(ctx, "engine: settle penalty failed",
			"game_id", session.GameID,
			"user_id", userID,
			"error", err,
		)
		return domain.ScoreResult{}, false
	}
	return result, true
}

func reply(ch chan<- error, err error) {
	if ch == nil {
		return
	}
	select {
	case ch <- err:
	default:
	}
}
