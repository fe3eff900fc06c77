package http

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records request counts and latencies per upstream.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates and registers the transport metrics. A nil registerer
// disables metrics and returns nil. Collectors already registered on the same
// registerer are reused.
func NewMetrics(registerer prometheus.Registerer) (*Metrics, error) {
	if registerer == nil {
		return nil, nil //nolint:nilnil // metrics disabled
	}

	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "apisix",
			Subsystem: "client",
			Name:      "requests_total",
			Help:      "Total number of gateway requests by upstream, method and status code",
		}, []string{"upstream", "method", "code"}),

		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "apisix",
			Subsystem: "client",
			Name:      "request_duration_seconds",
			Help:      "Gateway request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"upstream", "method"}),
	}

	requests, err := register(registerer, m.requests)
	if err != nil {
		return nil, err
	}

	duration, err := register(registerer, m.duration)
	if err != nil {
		return nil, err
	}

	m.requests = requests
	m.duration = duration

	return m, nil
}

func register[T prometheus.Collector](registerer prometheus.Registerer, collector T) (T, error) {
	err := registerer.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegErr prometheus.AlreadyRegisteredError
	if errors.As(err, &alreadyRegErr) {
		if existing, ok := alreadyRegErr.ExistingCollector.(T); ok {
			return existing, nil
		}
	}

	return collector, fmt.Errorf("registering metrics: %w", err)
}

func (m *Metrics) observe(upstream, method, code string, duration time.Duration) {
	if m == nil {
		return
	}

	m.requests.WithLabelValues(upstream, method, code).Inc()
	m.duration.WithLabelValues(upstream, method).Observe(duration.Seconds())
}
