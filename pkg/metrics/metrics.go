// Package metrics holds the prometheus collectors of the CRM: HTTP request
// metrics for the gin server and business counters for import and sweep.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const Subsystem = "crm"

// HistogramBuckets are latency buckets in milliseconds.
var HistogramBuckets = []float64{
	5, 10, 25, 50, 100, 250, 500, 750,
	1000, 2500, 5000, 10000, 30000, 60000,
}

var (
	// ImportRows counts reconciled import rows by result ("imported", "failed").
	ImportRows = prometheus.NewCounterVec(prometheus.CounterOpts{
		Subsystem: Subsystem,
		Name:      "import_rows_total",
		Help:      "Import rows processed, partitioned by result.",
	}, []string{"result"})

	// SweepAlerts counts reminder decisions by window ("2d", "7d") and result
	// ("sent", "failed").
	SweepAlerts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Subsystem: Subsystem,
		Name:      "sweep_alerts_total",
		Help:      "Expiration reminders, partitioned by window and result.",
	}, []string{"window", "result"})

	// ProcessDuration is the latency of batch processes such as an import
	// or a sweep run.
	ProcessDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Subsystem: Subsystem,
		Name:      "bp_dur_ms",
		Help:      "Business process latency in milliseconds.",
		Buckets:   HistogramBuckets,
	}, []string{"type", "subtype"})
)

func init() {
	prometheus.MustRegister(ImportRows, SweepAlerts, ProcessDuration)
}

// MillisecondsSince returns the elapsed time since start in milliseconds.
func MillisecondsSince(start time.Time) float64 {
	return float64(time.Since(start)) / float64(time.Millisecond)
}

// ObserveProcess records the duration of a business process.
func ObserveProcess(kind, subtype string, start time.Time) {
	ProcessDuration.WithLabelValues(kind, subtype).Observe(MillisecondsSince(start))
}
