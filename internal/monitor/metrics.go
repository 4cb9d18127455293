package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains the Prometheus metrics for the monitor.
type Metrics struct {
	CurrentBlock     prometheus.Gauge
	ValidPositions   prometheus.Gauge
	CyclesTotal      *prometheus.CounterVec
	CycleDuration    prometheus.Histogram
	CandidatesTotal  prometheus.Counter
	SkippedZeroSalt  prometheus.Counter
	UnresolvedTokens prometheus.Counter
	OwnershipChanges prometheus.Counter
}

// NewMetrics creates and registers the monitor metrics. A nil registerer
// falls back to the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &Metrics{
		CurrentBlock: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "positionscope_current_block",
			Help: "The next block the scanner will process.",
		}),
		ValidPositions: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "positionscope_valid_positions",
			Help: "Number of positions currently classified valid.",
		}),
		CyclesTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "positionscope_reconciliation_cycles_total",
			Help: "Total reconciliation cycles, labeled by outcome.",
		}, []string{"outcome"}),
		CycleDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "positionscope_reconciliation_duration_seconds",
			Help:    "Time spent in a full reconciliation cycle.",
			Buckets: prometheus.DefBuckets,
		}),
		CandidatesTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "positionscope_candidates_decoded_total",
			Help: "Total candidate position records decoded from logs.",
		}),
		SkippedZeroSalt: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "positionscope_skipped_zero_salt_total",
			Help: "Logs skipped because the salt was zero (not an NFT position).",
		}),
		UnresolvedTokens: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "positionscope_unresolved_tokens_total",
			Help: "Tokens whose owner lookup failed for a batch.",
		}),
		OwnershipChanges: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "positionscope_ownership_changes_total",
			Help: "Valid positions observed with a new non-zero owner.",
		}),
	}
}
