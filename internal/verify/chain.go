// Package verify gates fetched questions before they may enter a game
// session: ban list, content scan, then recent-history deduplication, in
// that order.
package verify

import (
	"context"

	"github.com/victornm/etrivia/internal/domain"
	"github.com/victornm/etrivia/internal/telemetry"
)

// Result is the outcome of running a question through the chain. Anything
// but ResultOK means the caller should discard the question and fetch again.
type Result string

const (
	ResultOK               Result = "ok"
	ResultTypeNotAllowed   Result = "type_not_allowed"
	ResultBanned           Result = "banned"
	ResultContentViolation Result = "content_violation"
	ResultDuplicateRecent  Result = "duplicate_recent"
)

// BannedQuestionRepository answers whether a question id has been banned for
// a given source.
type BannedQuestionRepository interface {
	IsBanned(ctx context.Context, id string, source domain.Source) (bool, error)
}

// ContentScanner checks a single piece of text for banned words or URLs.
type ContentScanner interface {
	Scan(ctx context.Context, text string) (ScanResult, error)
}

// HistoryRepository rejects questions shown to a channel too recently, and
// records the emission when it accepts one.
type HistoryRepository interface {
	Verify(ctx context.Context, q domain.Question, channelID string) (bool, error)
}

type Config struct {
	Banned  BannedQuestionRepository
	Scanner ContentScanner
	History HistoryRepository
}

type Chain struct {
	banned  BannedQuestionRepository
	scanner ContentScanner
	history HistoryRepository
}

func NewChain(c Config) *Chain {
	return &Chain{
		banned:  c.Banned,
		scanner: c.Scanner,
		history: c.History,
	}
}

// Verify short-circuits on the first failing check. Collaborator errors are
// returned as-is; the caller treats them like fetch failures.
func (c *Chain) Verify(ctx context.Context, q domain.Question, opts domain.FetchOptions) (Result, error) {
	r, err := c.verify(ctx, q, opts)
	if err == nil && r != ResultOK {
		telemetry.VerificationRejections.WithLabelValues(string(r)).Inc()
	}
	return r, err
}

func (c *Chain) verify(ctx context.Context, q domain.Question, opts domain.FetchOptions) (Result, error) {
	if !opts.AllowsType(q.Type) {
		return ResultTypeNotAllowed, nil
	}

	banned, err := c.banned.IsBanned(ctx, q.ID, q.Source)
	if err != nil {
		return "", err
	}
	if banned {
		return ResultBanned, nil
	}

	for _, text := range scannableText(q) {
		sr, err := c.scanner.Scan(ctx, text)
		if err != nil {
			return "", err
		}
		if sr != ScanOK {
			return ResultContentViolation, nil
		}
	}

	fresh, err := c.history.Verify(ctx, q, opts.ChannelID)
	if err != nil {
		return "", err
	}
	if !fresh {
		return ResultDuplicateRecent, nil
	}

	return ResultOK, nil
}

func scannableText(q domain.Question) []string {
	texts := make([]string, 0, 1+len(q.CorrectAnswers)+len(q.Responses))
	texts = append(texts, q.Text)
	texts = append(texts, q.CorrectAnswers...)
	texts = append(texts, q.Responses...)
	return texts
}
