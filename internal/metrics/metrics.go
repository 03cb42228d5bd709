package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RecordsStored counts rows written to the analytical store.
	RecordsStored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawler_records_stored_total",
			Help: "Total number of records persisted",
		},
		[]string{"kind"},
	)

	RecordsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawler_records_skipped_total",
			Help: "Raw records intentionally ignored by the parser",
		},
		[]string{"kind"},
	)

	ParseErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawler_parse_errors_total",
			Help: "Raw records dropped because they could not be parsed",
		},
		[]string{"kind"},
	)

	AccountFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawler_account_failures_total",
			Help: "Account crawls that ended with an error",
		},
		[]string{"kind", "stage"},
	)

	CrawlDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crawler_account_duration_seconds",
			Help:    "Time spent crawling one account",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	// Watermark is the last persisted block timestamp in milliseconds.
	Watermark = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "crawler_watermark_ms",
			Help: "Latest persisted block timestamp per account",
		},
		[]string{"kind", "account"},
	)

	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawler_trongrid_requests_total",
			Help: "TronGrid HTTP requests by outcome",
		},
		[]string{"path", "code"},
	)

	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crawler_trongrid_latency_seconds",
			Help:    "TronGrid request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path"},
	)
)
