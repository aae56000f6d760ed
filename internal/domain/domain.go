package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// QuestionType tags the variant of a Question. Variant-specific payloads are
// carried on the Question struct and interpreted per type, so callers switch
// exhaustively on Type instead of type-asserting.
type QuestionType string

const (
	TypeMultipleChoice QuestionType = "multiple_choice"
	TypeQuestionAnswer QuestionType = "question_answer"
	TypeTrueFalse      QuestionType = "true_false"
)

type Difficulty string

const (
	DifficultyUnknown Difficulty = "unknown"
	DifficultyEasy    Difficulty = "easy"
	DifficultyMedium  Difficulty = "medium"
	DifficultyHard    Difficulty = "hard"
)

// Source identifies where a question came from. Sources are configured with
// selection weights; SourceLocal questions never leave the process.
type Source string

const (
	SourceFuntoon    Source = "funtoon"
	SourceJService   Source = "jservice"
	SourceOpenTrivia Source = "open_trivia"
	SourceTriviaAPI  Source = "trivia_api"
	SourceWillFry    Source = "will_fry"
	SourceLocal      Source = "local"
)

// Question is a single trivia question of any variant.
type Question struct {
	Type       QuestionType
	ID         string
	Source     Source
	Text       string
	Category   string
	CategoryID string
	Difficulty Difficulty

	// CorrectAnswers is non-empty for every variant. For TypeTrueFalse the
	// entries are "true"/"false".
	CorrectAnswers []string

	// Responses is the full choice list for TypeMultipleChoice and unused
	// otherwise.
	Responses []string
}

// Validate checks the structural invariants a question must hold before it
// may enter a game session.
func (q Question) Validate() error {
	if q.ID == "" {
		return fmt.Errorf("question: empty id")
	}
	if strings.TrimSpace(q.Text) == "" {
		return fmt.Errorf("question %s: empty text", q.ID)
	}
	if len(q.CorrectAnswers) == 0 {
		return fmt.Errorf("question %s: no correct answers", q.ID)
	}

	switch q.Type {
	case TypeMultipleChoice:
		seen := make(map[string]struct{}, len(q.Responses))
		for _, r := range q.Responses {
			seen[strings.ToLower(strings.TrimSpace(r))] = struct{}{}
		}
		if len(seen) < 2 {
			return fmt.Errorf("question %s: multiple choice needs at least 2 distinct responses", q.ID)
		}
		for _, a := range q.CorrectAnswers {
			if _, ok := seen[strings.ToLower(strings.TrimSpace(a))]; !ok {
				return fmt.Errorf("question %s: correct answer %q missing from responses", q.ID, a)
			}
		}
	case TypeQuestionAnswer, TypeTrueFalse:
	default:
		return fmt.Errorf("question %s: unknown type %q", q.ID, q.Type)
	}

	return nil
}

// AnswerMatches reports whether the given user text matches any correct
// answer, after trimming and case folding.
func (q Question) AnswerMatches(answer string) bool {
	answer = strings.ToLower(strings.TrimSpace(answer))
	if answer == "" {
		return false
	}
	for _, a := range q.CorrectAnswers {
		if strings.ToLower(strings.TrimSpace(a)) == answer {
			return true
		}
	}
	return false
}

// FetchOptions narrows which questions a fetch may return.
type FetchOptions struct {
	Channel   string
	ChannelID string

	// RequireType, when set, restricts the fetch to a single variant.
	RequireType QuestionType
	// ExcludeTypes lists variants the caller refuses.
	ExcludeTypes []QuestionType
	// ExcludeLocal excludes the process-local question source from selection.
	ExcludeLocal bool
}

// AllowsType reports whether a question of type t satisfies the options.
func (o FetchOptions) AllowsType(t QuestionType) bool {
	if o.RequireType != "" && o.RequireType != t {
		return false
	}
	for _, e := range o.ExcludeTypes {
		if e == t {
			return false
		}
	}
	return true
}

// GameMode distinguishes one-user games from all-chat games.
type GameMode string

const (
	ModeNormal GameMode = "normal"
	ModeSuper  GameMode = "super"
)

// Special is the bonus/punishment status assigned at game creation.
type Special string

const (
	SpecialNone  Special = "none"
	SpecialShiny Special = "shiny"
	SpecialToxic Special = "toxic"
)

// GameSession is a live trivia game. Normal games are keyed by
// (ChannelID, UserID) with a single attempt; Super games are keyed by
// ChannelID with a bounded per-user attempt count.
type GameSession struct {
	Mode     GameMode
	GameID   string
	ActionID string

	Channel   string
	ChannelID string

	Question Question

	BasePoints    int
	FinalPoints   int
	SecondsToLive int
	EndTime       time.Time

	Special Special
	Emblem  string

	// UserID owns a Normal session; unused for Super.
	UserID string

	// Super-only fields.
	AttemptsPerUser int
	Attempts        map[string]int
	ToxicMultiplier int
}

// Clone returns a deep copy safe to hand to readers outside the engine loop.
func (s GameSession) Clone() GameSession {
	out := s
	if s.Attempts != nil {
		out.Attempts = make(map[string]int, len(s.Attempts))
		for k, v := range s.Attempts {
			out.Attempts[k] = v
		}
	}
	return out
}

// ScoreResult is what settlement reports back after an award or penalty.
type ScoreResult struct {
	ChannelID string
	UserID    string
	Delta     decimal.Decimal
	Total     decimal.Decimal
}

// Leaderboard is a channel's users ranked by total points, highest first.
type Leaderboard struct {
	ChannelID string
	Entries   []LeaderboardEntry
}

type LeaderboardEntry struct {
	UserID string
	Score  float64
}
