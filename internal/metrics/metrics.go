package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BlocksScanned tracks blocks covered by completed scan windows
	BlocksScanned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "innernode_blocks_scanned_total",
			Help: "Total number of blocks scanned",
		},
		[]string{"chain"},
	)

	// EventsDecoded tracks successfully decoded bridge events
	EventsDecoded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "innernode_events_decoded_total",
			Help: "Total number of bridge events decoded",
		},
		[]string{"chain"},
	)

	// DecodeFailures tracks logs that could not be decoded
	DecodeFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "innernode_decode_failures_total",
			Help: "Total number of logs skipped because decoding failed",
		},
		[]string{"chain"},
	)

	// Attestations tracks settled deliveries by outcome
	Attestations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "innernode_attestations_total",
			Help: "Total number of settled attestation deliveries",
		},
		[]string{"chain", "outcome"},
	)

	// AttestationRetries tracks in-place delivery retries
	AttestationRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "innernode_attestation_retries_total",
			Help: "Total number of attestation delivery retries",
		},
		[]string{"chain"},
	)

	// LedgerFailures tracks ticks where the ledger was unreachable
	LedgerFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "innernode_ledger_failures_total",
			Help: "Total number of failed ledger scans",
		},
		[]string{"chain"},
	)

	// DeadLettersPruned tracks dead letters removed by retention
	DeadLettersPruned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "innernode_dead_letters_pruned_total",
			Help: "Total number of dead letters removed by the retention pruner",
		},
		[]string{"chain"},
	)

	// CursorHeight tracks the last fully resolved block height
	CursorHeight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "innernode_cursor_height",
			Help: "Last block height whose batch was fully resolved",
		},
		[]string{"chain"},
	)

	// SafeHeight tracks head minus the confirmation delay
	SafeHeight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "innernode_safe_height",
			Help: "Highest block height considered final",
		},
		[]string{"chain"},
	)

	// ScanDuration tracks how long one scan takes
	ScanDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "innernode_scan_duration_seconds",
			Help:    "Scan duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"chain"},
	)

	// DeliveryDuration tracks how long one record takes to settle
	DeliveryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "innernode_delivery_duration_seconds",
			Help:    "Attestation delivery duration in seconds, retries included",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"chain"},
	)
)
