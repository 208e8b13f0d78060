package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var providerLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "smsrent_provider_request_duration_seconds",
	Help:    "Outbound provider call latency by operation and outcome.",
	Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
}, []string{"provider", "operation", "code"})

func observeProviderLatency(provider, operation, code string, elapsed time.Duration) {
	if code == "" {
		code = "ok"
	}
	providerLatency.WithLabelValues(
		strings.TrimSpace(provider),
		strings.TrimSpace(operation),
		code,
	).Observe(elapsed.Seconds())
}
