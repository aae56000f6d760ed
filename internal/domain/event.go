package domain

const (
	EventNameNewGame         = "game.new"
	EventNameNewSuperGame    = "game.new_super"
	EventNameCorrectAnswer   = "game.correct_answer"
	EventNameIncorrectAnswer = "game.incorrect_answer"
	EventNameInvalidAnswer   = "game.invalid_answer"
	EventNameOutOfTime       = "game.out_of_time"
	EventNameNoGameForUser   = "game.no_game_for_user"
	EventNameClearedQueue    = "game.cleared_queue"
	EventNameScoreSettled    = "score.settled"

	EventNameLeaderboardUpdated = "leaderboard.updated"
)

type EventNewGame struct {
	Session GameSession
}

func (EventNewGame) Name() string { return EventNameNewGame }

type EventNewSuperGame struct {
	Session GameSession
}

func (EventNewSuperGame) Name() string { return EventNameNewSuperGame }

type EventCorrectAnswer struct {
	Session GameSession
	UserID  string
	Answer  string
	Score   ScoreResult
}

func (EventCorrectAnswer) Name() string { return EventNameCorrectAnswer }

type EventIncorrectAnswer struct {
	Session GameSession
	UserID  string
	Answer  string
	// AttemptsLeft is the answering user's remaining attempts; always 0 for
	// normal games.
	AttemptsLeft int
}

func (EventIncorrectAnswer) Name() string { return EventNameIncorrectAnswer }

type EventInvalidAnswer struct {
	Session GameSession
	UserID  string
	Answer  string
}

func (EventInvalidAnswer) Name() string { return EventNameInvalidAnswer }

type EventOutOfTime struct {
	Session GameSession
	// Penalties lists toxic punishments applied on timeout, if any.
	Penalties []ScoreResult
}

func (EventOutOfTime) Name() string { return EventNameOutOfTime }

type EventNoGameForUser struct {
	ChannelID string
	UserID    string
	Answer    string
}

func (EventNoGameForUser) Name() string { return EventNameNoGameForUser }

type EventClearedQueue struct {
	ChannelID     string
	RemovedActive int
	RemovedQueued int
}

func (EventClearedQueue) Name() string { return EventNameClearedQueue }

// EventScoreSettled fires for every award or penalty, win or punishment.
type EventScoreSettled struct {
	Channel string
	Score   ScoreResult
}

func (EventScoreSettled) Name() string { return EventNameScoreSettled }

type EventLeaderboardUpdated struct {
	Leaderboard Leaderboard
}

func (EventLeaderboardUpdated) Name() string { return EventNameLeaderboardUpdated }
