package question_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/victornm/etrivia/internal/config"
	"github.com/victornm/etrivia/internal/domain"
	"github.com/victornm/etrivia/internal/errors"
	"github.com/victornm/etrivia/internal/question"
	"github.com/victornm/etrivia/internal/reliability"
)

func TestFetcher_WeightedSelection(t *testing.T) {
	settings := makeSettings(t, map[string]int{"open_trivia": 3, "jservice": 1})

	counts := map[domain.Source]int{}
	f := question.NewFetcher(question.Config{
		Settings:    settings,
		Reliability: makeTracker(settings),
		Sources: map[domain.Source]question.Source{
			domain.SourceOpenTrivia: countingSource(domain.SourceOpenTrivia, counts),
			domain.SourceJService:   countingSource(domain.SourceJService, counts),
		},
	})

	const draws = 10000
	for i := 0; i < draws; i++ {
		_, err := f.Fetch(context.Background(), domain.FetchOptions{})
		require.NoError(t, err)
	}

	ratio := float64(counts[domain.SourceOpenTrivia]) / float64(counts[domain.SourceJService])
	require.InDelta(t, 3.0, ratio, 0.5, "selection ratio should approximate the 3:1 weights, got %d:%d", counts[domain.SourceOpenTrivia], counts[domain.SourceJService])
}

func TestFetcher_UnstableSourceExcluded(t *testing.T) {
	settings := makeSettings(t, map[string]int{"open_trivia": 3, "jservice": 1})
	tracker := makeTracker(settings)

	counts := map[domain.Source]int{}
	f := question.NewFetcher(question.Config{
		Settings:    settings,
		Reliability: tracker,
		Sources: map[domain.Source]question.Source{
			domain.SourceOpenTrivia: countingSource(domain.SourceOpenTrivia, counts),
			domain.SourceJService:   countingSource(domain.SourceJService, counts),
		},
	})

	// Trip the breaker on the heavier source.
	for i := 0; i < settings.InstabilityThreshold(); i++ {
		tracker.IncrementError(domain.SourceOpenTrivia)
	}

	for i := 0; i < 100; i++ {
		q, err := f.Fetch(context.Background(), domain.FetchOptions{})
		require.NoError(t, err)
		require.Equal(t, domain.SourceJService, q.Source)
	}
	require.Zero(t, counts[domain.SourceOpenTrivia], "unstable source must not be drawn")
}

func TestFetcher_AllSourcesOpenStillDraws(t *testing.T) {
	settings := makeSettings(t, map[string]int{"jservice": 1})
	tracker := makeTracker(settings)

	for i := 0; i < settings.InstabilityThreshold(); i++ {
		tracker.IncrementError(domain.SourceJService)
	}

	f := question.NewFetcher(question.Config{
		Settings:    settings,
		Reliability: tracker,
		Sources: map[domain.Source]question.Source{
			domain.SourceJService: countingSource(domain.SourceJService, map[domain.Source]int{}),
		},
	})

	// The only source is unstable, but excluding it would starve fetches
	// entirely, so it stays eligible.
	q, err := f.Fetch(context.Background(), domain.FetchOptions{})
	require.NoError(t, err)
	require.Equal(t, domain.SourceJService, q.Source)
}

func TestFetcher_RetriesThenExhausts(t *testing.T) {
	settings := makeSettings(t, map[string]int{"open_trivia": 1})
	settings.Set("trivia.fetch.max_retries", 3)
	tracker := makeTracker(settings)

	calls := 0
	f := question.NewFetcher(question.Config{
		Settings:    settings,
		Reliability: tracker,
		Sources: map[domain.Source]question.Source{
			domain.SourceOpenTrivia: sourceFunc(func(ctx context.Context, opts domain.FetchOptions) (domain.Question, error) {
				calls++
				return domain.Question{}, fmt.Errorf("connection refused")
			}),
		},
	})

	_, err := f.Fetch(context.Background(), domain.FetchOptions{})
	require.True(t, errors.IsCode(err, errors.CodeResourceExhausted), "got %v", err)
	require.Equal(t, 3, calls)
	require.Equal(t, 3, tracker.ErrorCount(domain.SourceOpenTrivia), "every failure counts against the source")
}

func TestFetcher_MalformedQuestionTreatedAsFailure(t *testing.T) {
	settings := makeSettings(t, map[string]int{"open_trivia": 1})
	settings.Set("trivia.fetch.max_retries", 2)
	tracker := makeTracker(settings)

	f := question.NewFetcher(question.Config{
		Settings:    settings,
		Reliability: tracker,
		Sources: map[domain.Source]question.Source{
			domain.SourceOpenTrivia: sourceFunc(func(ctx context.Context, opts domain.FetchOptions) (domain.Question, error) {
				// Multiple choice with a single response violates the model.
				return domain.Question{
					Type:           domain.TypeMultipleChoice,
					ID:             "q1",
					Text:           "?",
					CorrectAnswers: []string{"a"},
					Responses:      []string{"a"},
				}, nil
			}),
		},
	})

	_, err := f.Fetch(context.Background(), domain.FetchOptions{})
	require.True(t, errors.IsCode(err, errors.CodeResourceExhausted), "got %v", err)
	require.Equal(t, 2, tracker.ErrorCount(domain.SourceOpenTrivia))
}

func TestFetcher_ExcludeLocal(t *testing.T) {
	settings := makeSettings(t, map[string]int{"local": 10, "jservice": 1})

	f := question.NewFetcher(question.Config{
		Settings:    settings,
		Reliability: makeTracker(settings),
		Sources: map[domain.Source]question.Source{
			domain.SourceLocal:    countingSource(domain.SourceLocal, map[domain.Source]int{}),
			domain.SourceJService: countingSource(domain.SourceJService, map[domain.Source]int{}),
		},
	})

	for i := 0; i < 50; i++ {
		q, err := f.Fetch(context.Background(), domain.FetchOptions{ExcludeLocal: true})
		require.NoError(t, err)
		require.Equal(t, domain.SourceJService, q.Source)
	}
}

func makeSettings(t *testing.T, weights map[string]int) *config.Settings {
	t.Helper()

	s := config.NewSettings(viper.New())
	for name, w := range weights {
		s.Set("trivia.sources.weights."+name, w)
	}
	return s
}

func makeTracker(s *config.Settings) *reliability.Tracker {
	return reliability.NewTracker(reliability.Config{
		Settings: s,
		Now:      func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) },
	})
}

type sourceFunc func(ctx context.Context, opts domain.FetchOptions) (domain.Question, error)

func (f sourceFunc) Fetch(ctx context.Context, opts domain.FetchOptions) (domain.Question, error) {
	return f(ctx, opts)
}

func countingSource(src domain.Source, counts map[domain.Source]int) question.Source {
	return sourceFunc(func(ctx context.Context, opts domain.FetchOptions) (domain.Question, error) {
		counts[src]++
		return domain.Question{
			Type:           domain.TypeQuestionAnswer,
			ID:             fmt.Sprintf("%s-%d", src, counts[src]),
			Source:         src,
			Text:           "what is the answer",
			CorrectAnswers: []string{"42"},
		}, nil
	})
}
