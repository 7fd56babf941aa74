package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the engine's prometheus collectors.
type Metrics struct {
	// FilesParsed counts parsed source files by outcome ("ok", "error",
	// "unchanged").
	FilesParsed *prometheus.CounterVec

	// RecordErrors counts content records that carry a parse error.
	RecordErrors prometheus.Counter

	// RootRefreshes counts root updates by kind ("refresh", "removed").
	RootRefreshes *prometheus.CounterVec

	// AssembleDuration tracks package assembly latency.
	AssembleDuration prometheus.Histogram

	// CollectionConflicts counts groups that resolved to a type conflict
	// on the last assembly of each root.
	CollectionConflicts prometheus.Counter
}

// NewMetrics registers the engine collectors on reg. A nil reg creates
// unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		FilesParsed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ironledger_files_parsed_total",
			Help: "Source files parsed by outcome",
		}, []string{"result"}),
		RecordErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "ironledger_record_errors_total",
			Help: "Content records that failed to parse",
		}),
		RootRefreshes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ironledger_root_refreshes_total",
			Help: "Root update notifications by kind",
		}, []string{"kind"}),
		AssembleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "ironledger_assemble_duration_seconds",
			Help:    "Package assembly duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14), // 0.1ms to ~1.6s
		}),
		CollectionConflicts: f.NewCounter(prometheus.CounterOpts{
			Name: "ironledger_collection_conflicts_total",
			Help: "Collections whose children admit no common type",
		}),
	}
}
