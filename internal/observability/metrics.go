package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the vault core.
type Metrics struct {
	// --- Core transitions ---
	OpsApplied   *prometheus.CounterVec
	OpsRejected  *prometheus.CounterVec
	OpDuration   *prometheus.HistogramVec
	CoreSequence prometheus.Gauge

	// --- NAV / fees ---
	NavPerShare      prometheus.Gauge
	GrossAum         prometheus.Gauge
	HighWaterMark    prometheus.Gauge
	AccruedFees      *prometheus.GaugeVec
	FeesPaidTotal    prometheus.Counter
	PayoutShortfalls *prometheus.CounterVec

	// --- Queues ---
	QueueDepth     *prometheus.GaugeVec
	QueueEnqueued  *prometheus.CounterVec
	QueueProcessed *prometheus.CounterVec
	QueueSkipped   *prometheus.CounterVec
	QueueCancelled *prometheus.CounterVec

	// --- Emergency ---
	EmergencyActive      prometheus.Gauge
	EmergencySnapshot    prometheus.Gauge
	EmergencyDistributed prometheus.Gauge
	EmergencyClaims      prometheus.Counter

	// --- Channels & backpressure ---
	ChannelSize         *prometheus.GaugeVec
	ChannelCapacity     *prometheus.GaugeVec
	ProjectionDrops     prometheus.Counter
	PublishDrops        prometheus.Counter
	PersistBackpressure prometheus.Counter

	// --- Persistence ---
	PersistEventsWritten prometheus.Counter
	PersistBatchSize     prometheus.Histogram
	PersistBatchDur      prometheus.Histogram
	PersistErrors        *prometheus.CounterVec
	PersistRetry         prometheus.Counter
	PersistLastSequence  prometheus.Gauge

	// --- Query API ---
	QueryRequests *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec
	QueryErrors   *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	latencyBuckets := []float64{
		0.000001, 0.000005, 0.00001, 0.000025, 0.00005,
		0.0001, 0.00025, 0.0005, 0.001, 0.002, 0.005, 0.01,
	}

	return &Metrics{
		OpsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vault_core_ops_applied_total",
			Help: "Operations successfully applied by the core",
		}, []string{"op"}),

		OpsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vault_core_ops_rejected_total",
			Help: "Operations rejected (input, precondition, economic)",
		}, []string{"op", "reason"}),

		OpDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vault_core_op_duration_seconds",
			Help:    "Time to apply a single operation in the core",
			Buckets: latencyBuckets,
		}, []string{"op"}),

		CoreSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "vault_core_sequence",
			Help: "Current global sequence number",
		}),

		NavPerShare: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "vault_nav_per_share",
			Help: "Current NAV per share (normalized, float approximation)",
		}),

		GrossAum: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "vault_gross_aum",
			Help: "Current gross AUM (normalized, float approximation)",
		}),

		HighWaterMark: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "vault_high_water_mark",
			Help: "Current HWM (normalized, float approximation)",
		}),

		AccruedFees: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "vault_accrued_fees",
			Help: "Accrued fee balance by type (normalized, float approximation)",
		}, []string{"fee_type"}),

		FeesPaidTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vault_fees_paid_total",
			Help: "Fee payout operations completed",
		}),

		PayoutShortfalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vault_payout_shortfalls_total",
			Help: "Partial payouts surfaced, by reason",
		}, []string{"reason"}),

		QueueDepth: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "vault_queue_depth",
			Help: "Live (uncompacted) queue length",
		}, []string{"queue"}),

		QueueEnqueued: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vault_queue_enqueued_total",
			Help: "Requests accepted into a queue",
		}, []string{"queue"}),

		QueueProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vault_queue_processed_total",
			Help: "Queue items committed",
		}, []string{"queue"}),

		QueueSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vault_queue_skipped_total",
			Help: "Queue items skipped for retry, by reason",
		}, []string{"queue", "reason"}),

		QueueCancelled: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vault_queue_cancelled_total",
			Help: "Queue items cancelled",
		}, []string{"queue"}),

		EmergencyActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "vault_emergency_active",
			Help: "1 while emergency liquidation mode is active",
		}),

		EmergencySnapshot: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "vault_emergency_snapshot",
			Help: "AUM snapshot at emergency activation (float approximation)",
		}),

		EmergencyDistributed: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "vault_emergency_distributed",
			Help: "Cumulative entitlement distributed under the snapshot (float approximation)",
		}),

		EmergencyClaims: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vault_emergency_claims_total",
			Help: "Emergency claims processed",
		}),

		ChannelSize: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "vault_channel_size",
			Help: "Current items in channel",
		}, []string{"name"}),

		ChannelCapacity: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "vault_channel_capacity",
			Help: "Channel capacity (constant)",
		}, []string{"name"}),

		ProjectionDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vault_projection_drops_total",
			Help: "Events dropped due to full projection channel",
		}),

		PublishDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vault_publish_drops_total",
			Help: "Events dropped due to full publish channel",
		}),

		PersistBackpressure: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vault_persist_backpressure_total",
			Help: "Times the core blocked on the persist channel",
		}),

		PersistEventsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vault_persist_events_written_total",
			Help: "Events committed to the event log",
		}),

		PersistBatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "vault_persist_batch_size",
			Help:    "Events per persisted batch",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250},
		}),

		PersistBatchDur: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "vault_persist_batch_duration_seconds",
			Help:    "Postgres batch write duration",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),

		PersistErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vault_persist_errors_total",
			Help: "Event log write errors",
		}, []string{"kind"}),

		PersistRetry: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vault_persist_retry_total",
			Help: "Event log write retries",
		}),

		PersistLastSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "vault_persist_last_sequence",
			Help: "Highest sequence committed to the event log",
		}),

		QueryRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vault_query_requests_total",
			Help: "Query API requests",
		}, []string{"endpoint"}),

		QueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vault_query_duration_seconds",
			Help:    "Query API request duration",
			Buckets: latencyBuckets,
		}, []string{"endpoint"}),

		QueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vault_query_errors_total",
			Help: "Query API errors",
		}, []string{"endpoint"}),
	}
}
