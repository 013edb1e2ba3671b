package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	subscribersCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "preloader_animate",
		Subsystem: "intake",
		Name:      "subscribers_created_total",
		Help:      "Number of subscribers persisted, labeled by storage backend.",
	}, []string{"backend"})
	validationRejected = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "preloader_animate",
		Subsystem: "intake",
		Name:      "validation_rejected_total",
		Help:      "Number of intake submissions rejected before persistence.",
	})
	fallbackWrites = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "preloader_animate",
		Subsystem: "intake",
		Name:      "fallback_writes_total",
		Help:      "Number of subscribers served by the volatile store because the durable backend was unavailable.",
	})
	subscriberPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "preloader_animate",
		Subsystem: "persistence",
		Name:      "last_subscriber_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent subscriber persisted.",
	})
	sequencesFinished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "preloader_animate",
		Subsystem: "preloader",
		Name:      "sequences_total",
		Help:      "Number of streamed reveal sequences, labeled by outcome.",
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(subscribersCreated, validationRejected, fallbackWrites, subscriberPersistGauge, sequencesFinished)
}

// RecordSubscriberPersisted counts a stored subscriber and moves the persistence watermark.
func RecordSubscriberPersisted(backend string, ts time.Time) {
	subscribersCreated.WithLabelValues(backend).Inc()
	if ts.IsZero() {
		return
	}
	subscriberPersistGauge.Set(float64(ts.Unix()))
}

// RecordValidationRejected counts a submission that failed validation.
func RecordValidationRejected() {
	validationRejected.Inc()
}

// RecordFallbackWrite counts a write diverted to the volatile store.
func RecordFallbackWrite() {
	fallbackWrites.Inc()
}

// RecordSequence counts a finished reveal sequence ("completed" or "cancelled").
func RecordSequence(outcome string) {
	sequencesFinished.WithLabelValues(outcome).Inc()
}
