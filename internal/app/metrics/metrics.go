package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	storageOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "helphub",
			Subsystem: "storage",
			Name:      "operations_total",
			Help:      "Total number of storage operations by name and outcome.",
		},
		[]string{"operation", "outcome"},
	)

	notificationsFanned = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "helphub",
			Subsystem: "notifications",
			Name:      "fanout_total",
			Help:      "Total number of notifications created, by type.",
		},
		[]string{"type"},
	)

	otpVerifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "helphub",
			Subsystem: "otp",
			Name:      "verifications_total",
			Help:      "Total number of OTP verification attempts.",
		},
		[]string{"outcome"},
	)

	rankingDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "helphub",
			Subsystem: "reputation",
			Name:      "ranking_duration_seconds",
			Help:      "Duration of community ranking recomputation.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
	)
)

func init() {
	Registry.MustRegister(
		storageOps,
		notificationsFanned,
		otpVerifications,
		rankingDuration,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordStorageOp counts one storage operation.
func RecordStorageOp(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	storageOps.WithLabelValues(operation, outcome).Inc()
}

// RecordNotification counts one fanned-out notification.
func RecordNotification(notificationType string) {
	notificationsFanned.WithLabelValues(notificationType).Inc()
}

// RecordOtpVerification counts one verification attempt.
func RecordOtpVerification(ok bool) {
	outcome := "failed"
	if ok {
		outcome = "verified"
	}
	otpVerifications.WithLabelValues(outcome).Inc()
}

// RecordRankingDuration records one ranking recomputation.
func RecordRankingDuration(d time.Duration) {
	if d <= 0 {
		d = time.Millisecond
	}
	rankingDuration.Observe(d.Seconds())
}
