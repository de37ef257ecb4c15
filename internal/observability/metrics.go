package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels shared by the provider counters.
const (
	OutcomeOK       = "ok"
	OutcomeError    = "error"
	OutcomeTimeout  = "timeout"
	OutcomeEmpty    = "empty"
	OutcomeFallback = "fallback"
)

var (
	// LLMRequests counts language-model calls by outcome.
	LLMRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_requests_total",
			Help: "Language-model calls by outcome.",
		},
		[]string{"outcome"},
	)

	// LLMLatency records language-model call duration in seconds.
	LLMLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "llm_request_duration_seconds",
			Help:    "Duration of language-model calls in seconds.",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 60},
		},
	)

	// ShoppingSearches counts product searches by source (catalog|shopping)
	// and outcome.
	ShoppingSearches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopping_search_total",
			Help: "Product searches by source and outcome.",
		},
		[]string{"source", "outcome"},
	)

	// AssistantTurns counts model messages appended, by message type and stage.
	AssistantTurns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_turns_total",
			Help: "Assistant replies by message type and dialogue stage.",
		},
		[]string{"type", "stage"},
	)

	// ReplyParseTier counts which interpreter step produced a reply.
	ReplyParseTier = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reply_parse_total",
			Help: "Structured-reply parses by recovery tier.",
		},
		[]string{"tier"},
	)
)

func init() {
	prometheus.MustRegister(LLMRequests, LLMLatency, ShoppingSearches, AssistantTurns, ReplyParseTier)
}
