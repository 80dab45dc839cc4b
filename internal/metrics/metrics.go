// Package metrics provides Prometheus metrics for remote z/OSMF calls and tree listing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Remote operation labels
const (
	OpList     = "list"
	OpDownload = "download"
	OpUpload   = "upload"
	OpCreate   = "create"
	OpDelete   = "delete"
)

var (
	remoteRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ussfs_remote_requests_total",
			Help: "Total number of remote z/OSMF requests",
		},
		[]string{"op", "status"},
	)

	remoteRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ussfs_remote_request_duration_seconds",
			Help:    "Remote z/OSMF request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	listCoalescedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ussfs_list_coalesced_total",
			Help: "Directory listings served by joining an in-flight request",
		},
	)
)

// RecordRemote records the outcome of a remote call. status is a short outcome
// label such as "ok", "error" or an HTTP status code.
func RecordRemote(op, status string, start time.Time) {
	remoteRequestsTotal.WithLabelValues(op, status).Inc()
	remoteRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// RecordListCoalesced counts a listing that joined an in-flight fetch
func RecordListCoalesced() {
	listCoalescedTotal.Inc()
}

// Handler returns the HTTP handler serving the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}
