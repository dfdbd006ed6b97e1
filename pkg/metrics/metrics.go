// Package metrics defines the Prometheus collectors the relayer exposes
// on its /metrics endpoint. Collectors are registered against the
// default registry via promauto, matching how client_golang programs
// are conventionally wired.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PendingPings = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relayer_pending_pings",
		Help: "Number of pings observed but not yet submitted to the target chain.",
	})

	ProcessedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relayer_processed_total",
		Help: "Total number of source ping events processed.",
	})

	DuplicateTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relayer_duplicate_total",
		Help: "Total number of source ping events rejected as duplicates.",
	})

	InvalidTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relayer_invalid_total",
		Help: "Total number of malformed events dropped.",
	})

	FilteredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relayer_filtered_total",
		Help: "Total number of logs ignored because their topic didn't match the tracked event.",
	})

	StoredHashes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relayer_stored_hashes",
		Help: "Number of attested block hashes currently tracked.",
	})

	SubmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relayer_submissions_total",
		Help: "Total number of proof submissions to the verifier contract, by result.",
	}, []string{"result"})

	ProofBuildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "relayer_proof_build_duration_seconds",
		Help:    "Time spent constructing a receipt proof, from receipt fetch to RLP header encode.",
		Buckets: prometheus.DefBuckets,
	})

	ListenerLastProcessedBlock = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "relayer_listener_last_processed_block",
		Help: "Highest block number each listener has fully dispatched.",
	}, []string{"chain"})
)

// SubmissionResult labels used with SubmissionsTotal.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)
