package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Message outcome labels.
const (
	OutcomeAppended  = "appended"
	OutcomeDuplicate = "duplicate"
	OutcomeEmpty     = "empty"
	OutcomeFailed    = "failed"
	OutcomeDropped   = "dropped"
	OutcomeOutside   = "outside_window"
)

var (
	MessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_messages_total",
		Help: "Source messages seen by the pipeline, by outcome",
	}, []string{"mode", "outcome"})

	LLMCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_llm_calls_total",
		Help: "Extraction service calls by status",
	}, []string{"provider", "status"})

	LLMRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_llm_retries_total",
		Help: "Extraction calls retried after a failure",
	})

	LLMRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_llm_request_duration_seconds",
		Help:    "Duration of extraction service requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider"})

	RateLimitWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ledger_ratelimit_wait_seconds",
		Help:    "Time spent waiting for the RPM window",
		Buckets: []float64{0.01, 0.1, 1, 5, 10, 30, 60},
	})

	BatchParseTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_batch_parse_total",
		Help: "Batch extraction responses by parse status",
	}, []string{"status"})

	RowsAppendedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_rows_appended_total",
		Help: "Rows appended to the destination table",
	})

	AppendRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_append_retries_total",
		Help: "Append calls retried after a store failure",
	})

	WatermarkGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ledger_watermark_message_id",
		Help: "Highest message id present in the destination table at run start",
	})
)
