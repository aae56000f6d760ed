package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	QuestionFetchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "etrivia",
		Name:      "question_fetch_failures_total",
		Help:      "Failed question fetches, by source.",
	}, []string{"source"})

	SourceBreakerOpen = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "etrivia",
		Name:      "source_breaker_open",
		Help:      "1 when a question source is excluded from selection for instability.",
	}, []string{"source"})

	VerificationRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "etrivia",
		Name:      "verification_rejections_total",
		Help:      "Questions rejected by the verification chain, by result.",
	}, []string{"result"})

	GamesStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "etrivia",
		Name:      "games_started_total",
		Help:      "Trivia games started, by mode.",
	}, []string{"mode"})

	GamesFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "etrivia",
		Name:      "games_finished_total",
		Help:      "Trivia games finished, by mode and outcome.",
	}, []string{"mode", "outcome"})

	ActiveSessions = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "etrivia",
		Name:      "active_sessions",
		Help:      "Currently active game sessions, by mode.",
	}, []string{"mode"})
)
