// Package metrics holds the Prometheus collectors shared by the supervisor,
// the chat client and the KV engine. They are registered with the default
// registry so the HTTP layer can expose them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "essaylens"

var (
	SupervisorStartsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "supervisor",
			Name:      "starts_total",
			Help:      "llama-server launch attempts by result",
		},
		[]string{"result"},
	)

	SupervisorReadySeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "supervisor",
			Name:      "ready_seconds",
			Help:      "Time from process spawn until the first successful readiness ping",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
	)

	ChatRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "requests_total",
			Help:      "Chat completion calls by mode and outcome",
		},
		[]string{"mode", "outcome"},
	)

	ChatDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "duration_seconds",
			Help:      "Duration of chat completion calls",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"mode"},
	)

	KVIngestTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "kv",
			Name:      "ingest_total",
			Help:      "Prefix ingestions (full cache resets)",
		},
	)

	KVPrefixTokens = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "kv",
			Name:      "prefix_tokens",
			Help:      "Token count of ingested prefixes",
			Buckets:   prometheus.ExponentialBuckets(32, 2, 9),
		},
	)

	KVGenerateTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "kv",
			Name:      "generate_total",
			Help:      "Generations by cache path and halt reason",
		},
		[]string{"path", "reason"},
	)

	KVGenerateDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "kv",
			Name:      "generate_duration_seconds",
			Help:      "Duration of KV engine generations",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"path"},
	)

	KVTokensGenerated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "kv",
			Name:      "tokens_generated_total",
			Help:      "Tokens sampled by the KV engine",
		},
	)

	KVReprimeTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "kv",
			Name:      "reprime_total",
			Help:      "Prefix re-evaluations after the cache was reused by an uncached generation",
		},
	)
)

func init() {
	prometheus.MustRegister(
		SupervisorStartsTotal, SupervisorReadySeconds,
		ChatRequestsTotal, ChatDuration,
		KVIngestTotal, KVPrefixTokens, KVGenerateTotal, KVGenerateDuration, KVTokensGenerated, KVReprimeTotal,
	)
}
