// Package observability exposes the relay's Prometheus metrics.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	receivedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bss_relay",
		Subsystem: "bus",
		Name:      "messages_received_total",
		Help:      "Number of inbound bus messages per event kind.",
	}, []string{"kind"})

	droppedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bss_relay",
		Subsystem: "bus",
		Name:      "messages_dropped_total",
		Help:      "Number of inbound messages dropped, grouped by reason.",
	}, []string{"reason"})

	recordWriteCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bss_relay",
		Subsystem: "record",
		Name:      "writes_total",
		Help:      "Number of swap record write attempts by outcome.",
	}, []string{"outcome"})

	abandonedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "bss_relay",
		Subsystem: "session",
		Name:      "attempts_abandoned_total",
		Help:      "Number of open swap attempts replaced by a newer initiate.",
	})

	openAttemptsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "bss_relay",
		Subsystem: "session",
		Name:      "open_attempts",
		Help:      "Number of in-flight swap attempts.",
	})

	sinkErrorCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bss_relay",
		Subsystem: "publish",
		Name:      "sink_errors_total",
		Help:      "Number of delivery failures per sink (bus, hub, stream).",
	}, []string{"sink"})

	subscribersGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "bss_relay",
		Subsystem: "hub",
		Name:      "subscribers",
		Help:      "Number of connected live subscribers.",
	})

	busConnectedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "bss_relay",
		Subsystem: "bus",
		Name:      "connected",
		Help:      "1 while the MQTT connection is up.",
	})
)

func init() {
	prometheus.MustRegister(
		receivedCounter, droppedCounter, recordWriteCounter,
		abandonedCounter, openAttemptsGauge, sinkErrorCounter,
		subscribersGauge, busConnectedGauge,
	)
}

func RecordReceived(kind string)  { receivedCounter.WithLabelValues(kind).Inc() }
func RecordDropped(reason string) { droppedCounter.WithLabelValues(reason).Inc() }
func RecordWrite(outcome string)  { recordWriteCounter.WithLabelValues(outcome).Inc() }
func RecordAbandoned()            { abandonedCounter.Inc() }
func SetOpenAttempts(n int)       { openAttemptsGauge.Set(float64(n)) }
func RecordSinkError(sink string) { sinkErrorCounter.WithLabelValues(sink).Inc() }
func SetSubscribers(n int)        { subscribersGauge.Set(float64(n)) }

func SetBusConnected(connected bool) {
	if connected {
		busConnectedGauge.Set(1)
	} else {
		busConnectedGauge.Set(0)
	}
}

// Handler serves the metrics endpoint.
func Handler() http.Handler { return promhttp.Handler() }
