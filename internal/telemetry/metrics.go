package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	JobsEnqueued     = prometheus.NewCounter(prometheus.CounterOpts{Name: "labelrelay_jobs_enqueued_total", Help: "Print jobs accepted into the queue"})
	JobsPrinted      = prometheus.NewCounter(prometheus.CounterOpts{Name: "labelrelay_jobs_printed_total", Help: "Print jobs delivered successfully"})
	JobsRetried      = prometheus.NewCounter(prometheus.CounterOpts{Name: "labelrelay_jobs_retried_total", Help: "Delivery failures that were requeued for retry"})
	JobsFailed       = prometheus.NewCounter(prometheus.CounterOpts{Name: "labelrelay_jobs_failed_total", Help: "Print jobs that exhausted their retry budget"})
	RateLimitRejects = prometheus.NewCounter(prometheus.CounterOpts{Name: "labelrelay_rate_limit_rejects_total", Help: "Requests rejected by the rate limiter"})
	SignatureRejects = prometheus.NewCounter(prometheus.CounterOpts{Name: "labelrelay_signature_rejects_total", Help: "Requests rejected by the signature gate"})
	FailureAlerts    = prometheus.NewCounter(prometheus.CounterOpts{Name: "labelrelay_failure_alerts_total", Help: "Alerts raised by the failure monitor"})
)

// Handler exposes the /metrics HTTP handler with a singleton registration.
func Handler() http.Handler {
	once.Do(func() {
		prometheus.MustRegister(
			JobsEnqueued,
			JobsPrinted,
			JobsRetried,
			JobsFailed,
			RateLimitRejects,
			SignatureRejects,
			FailureAlerts,
		)
	})
	return promhttp.Handler()
}
