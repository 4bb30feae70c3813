package observability

import (
	"math/big"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the vault service.
type Metrics struct {
	// --- Engine operations ---
	OpsApplied  *prometheus.CounterVec
	OpsRejected *prometheus.CounterVec
	OpDuration  *prometheus.HistogramVec

	// --- Debt state (float approximations of exact on-ledger integers) ---
	AbsoluteDebt    *prometheus.GaugeVec
	NormalizedDebt  *prometheus.GaugeVec
	HeadroomWad     *prometheus.GaugeVec
	CeilingWad      *prometheus.GaugeVec
	RateAccumulator *prometheus.GaugeVec
	BufferBalance   *prometheus.GaugeVec

	// --- Fee accrual ---
	AccrualsTotal *prometheus.CounterVec

	// --- Ingestion ---
	CommandsReceived  *prometheus.CounterVec
	CommandDuplicates *prometheus.CounterVec
	PublishDrops      prometheus.Counter

	// --- Persistence ---
	PersistEventsWritten prometheus.Counter
	PersistErrors        *prometheus.CounterVec
	PersistBatchDur      prometheus.Histogram
	PersistBatchSize     prometheus.Histogram
	PersistLastSequence  prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	latencyBuckets := []float64{
		0.000005, 0.00001, 0.000025, 0.00005, 0.0001,
		0.00025, 0.0005, 0.001, 0.002, 0.005, 0.01, 0.05,
	}

	return &Metrics{
		OpsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vault_ops_applied_total",
			Help: "Vault operations successfully applied",
		}, []string{"op"}),

		OpsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vault_ops_rejected_total",
			Help: "Vault operations rejected (unauthorized, ceiling, balance, state)",
		}, []string{"op", "reason"}),

		OpDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vault_op_duration_seconds",
			Help:    "Time to execute a vault operation",
			Buckets: latencyBuckets,
		}, []string{"op"}),

		AbsoluteDebt: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "vault_absolute_debt_wad",
			Help: "Absolute debt (normalized debt x rate) in whole tokens",
		}, []string{"ilk"}),

		NormalizedDebt: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "vault_normalized_debt_wad",
			Help: "Normalized debt in whole tokens",
		}, []string{"ilk"}),

		HeadroomWad: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "vault_headroom_wad",
			Help: "Remaining headroom beneath the debt ceiling in whole tokens",
		}, []string{"ilk"}),

		CeilingWad: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "vault_ceiling_wad",
			Help: "Debt ceiling last observed from the oracle in whole tokens",
		}, []string{"ilk"}),

		RateAccumulator: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "vault_rate_accumulator",
			Help: "Rate accumulator (1.0 = no accrued fees)",
		}, []string{"ilk"}),

		BufferBalance: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "vault_buffer_balance_wad",
			Help: "Collateral buffer token balance in whole tokens",
		}, []string{"ilk"}),

		AccrualsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vault_accruals_total",
			Help: "Fee accrual invocations, including same-second no-ops",
		}, []string{"ilk"}),

		CommandsReceived: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vault_commands_received_total",
			Help: "Inbound commands received from NATS",
		}, []string{"type"}),

		CommandDuplicates: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vault_command_duplicates_total",
			Help: "Inbound commands suppressed as duplicates",
		}, []string{"type", "tier"}),

		PublishDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vault_publish_drops_total",
			Help: "Outbound events dropped due to a full publish channel",
		}),

		PersistEventsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vault_persist_events_written_total",
			Help: "Events written to the Postgres event log",
		}),

		PersistErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vault_persist_errors_total",
			Help: "Persistence failures by stage",
		}, []string{"stage"}),

		PersistBatchDur: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "vault_persist_batch_duration_seconds",
			Help:    "Time to flush one persistence batch",
			Buckets: latencyBuckets,
		}),

		PersistBatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "vault_persist_batch_size",
			Help:    "Events per persistence batch",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250},
		}),

		PersistLastSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "vault_persist_last_sequence",
			Help: "Highest sequence flushed to Postgres",
		}),
	}
}

// WadFloat converts a wad big.Int to a float64 of whole tokens for gauges.
// Lossy: the ledger keeps the exact integers.
func WadFloat(wad *big.Int) float64 {
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(wad), big.NewFloat(1e18)).Float64()
	return f
}

// RayFloat converts a ray big.Int to a float64 rate for gauges.
func RayFloat(ray *big.Int) float64 {
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(ray), big.NewFloat(1e27)).Float64()
	return f
}
