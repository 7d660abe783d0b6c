// Package metrics exposes Prometheus counters for the spool queue.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the counters tracked per destination.
type Metrics struct {
	BatchesSent      *prometheus.CounterVec
	BatchesRecovered *prometheus.CounterVec
	BatchSplits      *prometheus.CounterVec
	FilesSent        *prometheus.CounterVec
	SendFailures     *prometheus.CounterVec
	FilesQuarantined *prometheus.CounterVec
}

// New registers the shardspool counters with reg and returns them.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	labels := []string{"destination"}
	return &Metrics{
		BatchesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "shardspool_batches_sent_total",
			Help: "Batches delivered as a single combined operation.",
		}, labels),
		BatchesRecovered: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "shardspool_batches_recovered_total",
			Help: "In-flight batches reconstructed from disk after a restart.",
		}, labels),
		BatchSplits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "shardspool_batch_splits_total",
			Help: "Whole-batch sends that degraded to per-file sends.",
		}, labels),
		FilesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "shardspool_files_sent_total",
			Help: "Spool files confirmed delivered and removed.",
		}, labels),
		SendFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "shardspool_send_failures_total",
			Help: "Send attempts that failed and were left for retry.",
		}, labels),
		FilesQuarantined: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "shardspool_files_quarantined_total",
			Help: "Unreadable spool files moved to the broken subdirectory.",
		}, labels),
	}
}

// Handler returns an HTTP handler serving the metrics of g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
