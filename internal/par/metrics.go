package par

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	outcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "par",
		Name:      "requests_total",
		Help:      "Pushed authorization requests by terminal state.",
	}, []string{"state"})

	persistSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "par",
		Name:      "persist_duration_seconds",
		Help:      "Latency of the durable and cache writes.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"store", "result"})
)

func init() {
	prometheus.MustRegister(outcomes, persistSeconds)
}

func observeOutcome(s State) { outcomes.WithLabelValues(string(s)).Inc() }

func observePersist(store string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	persistSeconds.WithLabelValues(store, result).Observe(time.Since(start).Seconds())
}
