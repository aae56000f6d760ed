// Package question selects among configured trivia question sources and
// fetches a single question, routing around sources that are currently
// unstable.
package question

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sort"

	"github.com/victornm/etrivia/internal/config"
	"github.com/victornm/etrivia/internal/domain"
	"github.com/victornm/etrivia/internal/errors"
	"github.com/victornm/etrivia/internal/reliability"
	"github.com/victornm/etrivia/internal/telemetry"
)

// Source fetches one question matching the options. Implementations are the
// per-provider HTTP clients, registered by source name.
type Source interface {
	Fetch(ctx context.Context, opts domain.FetchOptions) (domain.Question, error)
}

type Config struct {
	Settings    *config.Settings
	Reliability *reliability.Tracker
	Sources     map[domain.Source]Source

	// IntN is overridable for deterministic draws in tests; defaults to
	// rand.IntN.
	IntN func(n int) int
}

type Fetcher struct {
	settings    *config.Settings
	reliability *reliability.Tracker
	sources     map[domain.Source]Source
	intn        func(n int) int
}

func NewFetcher(c Config) *Fetcher {
	if c.IntN == nil {
		c.IntN = rand.IntN
	}
	return &Fetcher{
		settings:    c.Settings,
		reliability: c.Reliability,
		sources:     c.Sources,
		intn:        c.IntN,
	}
}

// Fetch draws a source by weight and asks it for one question. A failed
// fetch or a structurally invalid question counts against the source and
// triggers a redraw, up to the configured retry budget.
func (f *Fetcher) Fetch(ctx context.Context, opts domain.FetchOptions) (domain.Question, error) {
	retries := f.settings.MaxRetryCount()

	for attempt := 1; attempt <= retries; attempt++ {
		src, ok := f.draw(opts)
		if !ok {
			return domain.Question{}, errors.New(errors.CodeFailedPrecondition,
				errors.WithMessagef("no question sources configured"))
		}

		q, err := f.fetchOne(ctx, src, opts)
		if err != nil {
			count := f.reliability.IncrementError(src)
			telemetry.QuestionFetchFailures.WithLabelValues(string(src)).Inc()
			slog.WarnContext(ctx, "question: fetch failed",
				"source", src,
				"attempt", attempt,
				"error_count", count,
				"error", err,
			)
			continue
		}

		return q, nil
	}

	return domain.Question{}, errors.New(errors.CodeResourceExhausted,
		errors.WithMessagef("no question available after %d attempts", retries))
}

func (f *Fetcher) fetchOne(ctx context.Context, src domain.Source, opts domain.FetchOptions) (domain.Question, error) {
	q, err := f.sources[src].Fetch(ctx, opts)
	if err != nil {
		return domain.Question{}, err
	}
	if q.Source == "" {
		q.Source = src
	}
	if err := q.Validate(); err != nil {
		// A malformed question is the source's fault; treat like a failed
		// fetch and never let it reach a session.
		return domain.Question{}, err
	}
	return q, nil
}

// draw picks one eligible source by weighted random selection. Unstable
// sources are excluded unless that would empty the pool entirely; total
// starvation is worse than retrying a flaky source.
func (f *Fetcher) draw(opts domain.FetchOptions) (domain.Source, bool) {
	weights := f.settings.SourceWeights()

	candidates := make([]domain.Source, 0, len(weights))
	for src := range weights {
		if _, ok := f.sources[src]; !ok {
			continue
		}
		if opts.ExcludeLocal && src == domain.SourceLocal {
			continue
		}
		candidates = append(candidates, src)
	}
	if len(candidates) == 0 {
		return "", false
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i] < candidates[j] })

	eligible := candidates[:0:len(candidates)]
	for _, src := range candidates {
		if !f.reliability.IsUnstable(src) {
			eligible = append(eligible, src)
		}
	}
	if len(eligible) == 0 {
		eligible = candidates
	}

	total := 0
	for _, src := range eligible {
		total += weights[src]
	}

	n := f.intn(total)
	for _, src := range eligible {
		n -= weights[src]
		if n < 0 {
			return src, true
		}
	}
	return eligible[len(eligible)-1], true
}
