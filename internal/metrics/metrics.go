package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SyncedUsers = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "smssync", Name: "users_total", Help: "Users touched by sync, by action",
	}, []string{"action"})
	SyncErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "smssync", Name: "errors_total", Help: "Logged sync errors, by code",
	}, []string{"code"})
	VendorRequests = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "smssync", Name: "vendor_request_seconds", Help: "Vendor API request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"vendor", "endpoint"})
	DBPing = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "smssync", Name: "db_ping_seconds", Help: "DB ping latency",
		Buckets: prometheus.DefBuckets,
	})
)

func init() {
	prometheus.MustRegister(SyncedUsers, SyncErrors, VendorRequests, DBPing)
}

func Handler() http.Handler { return promhttp.Handler() }

func ObserveDBPing(d time.Duration) { DBPing.Observe(d.Seconds()) }

func ObserveVendorRequest(vendor, endpoint string, d time.Duration) {
	VendorRequests.WithLabelValues(vendor, endpoint).Observe(d.Seconds())
}
