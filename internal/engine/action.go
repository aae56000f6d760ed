package engine

import "github.com/victornm/etrivia/internal/domain"

// Action is one unit of work for the engine loop. Producers (chat command
// handlers, redemption handlers, timers) only ever enqueue actions; all
// session mutation happens inside the loop, one action at a time.
type Action interface {
	action()
}

// StartNormalGame starts a one-user game on the channel named in Options.
type StartNormalGame struct {
	ActionID string
	UserID   string
	Options  domain.FetchOptions

	// Result, when non-nil, receives the processing outcome (nil on
	// success). Sends are non-blocking; use a buffered channel.
	Result chan<- error
}

// StartSuperGame starts an all-chat game on the channel named in Options,
// or queues one when a super game is already running there.
type StartSuperGame struct {
	ActionID string
	Options  domain.FetchOptions

	Result chan<- error
}

// CheckAnswer checks a user's answer against their own normal game.
type CheckAnswer struct {
	ChannelID string
	UserID    string
	Answer    string
}

// CheckSuperAnswer checks a user's answer against the channel's super game.
type CheckSuperAnswer struct {
	ChannelID string
	UserID    string
	Answer    string
}

// ClearSuperQueue removes the channel's active super game and any queued
// ones.
type ClearSuperQueue struct {
	ChannelID string
}

// ExpireGame times out a session. Only the engine itself enqueues these,
// from the timer scheduled at session creation; the GameID guards against
// expiring a successor session under the same key.
type ExpireGame struct {
	GameID    string
	Mode      domain.GameMode
	ChannelID string
	UserID    string
}

func (StartNormalGame) action()  {}
func (StartSuperGame) action()   {}
func (CheckAnswer) action()      {}
func (CheckSuperAnswer) action() {}
func (ClearSuperQueue) action()  {}
func (ExpireGame) action()       {}
