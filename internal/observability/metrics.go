package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reguctl",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"regulator", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "reguctl",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"regulator", "method", "path", "status"},
	)
	protocolFrames = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reguctl",
			Subsystem: "protocol",
			Name:      "frames_total",
			Help:      "Telecontrol frames by direction and code.",
		},
		[]string{"regulator", "direction", "code"},
	)
	protocolChecksumErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reguctl",
			Subsystem: "protocol",
			Name:      "checksum_errors_total",
			Help:      "Frames rejected for a bad checksum.",
		},
		[]string{"regulator"},
	)
	protocolNAKs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reguctl",
			Subsystem: "protocol",
			Name:      "naks_total",
			Help:      "NAK link controls by direction.",
		},
		[]string{"regulator", "direction"},
	)
	phaseChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reguctl",
			Subsystem: "engine",
			Name:      "phase_changes_total",
			Help:      "Phase transitions completed.",
		},
		[]string{"regulator", "plan"},
	)
	sessionConnected = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "reguctl",
			Subsystem: "session",
			Name:      "connected",
			Help:      "Whether a center session is established.",
		},
		[]string{"regulator"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests, httpDuration,
			protocolFrames, protocolChecksumErrors, protocolNAKs,
			phaseChanges, sessionConnected,
		)
	})
}

func RecordHTTPRequest(regulator, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(regulator, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(regulator, method, path, statusLabel).Observe(duration.Seconds())
}

func RecordFrame(regulator, direction, code string) {
	RegisterMetrics()
	protocolFrames.WithLabelValues(regulator, direction, code).Inc()
}

func RecordChecksumError(regulator string) {
	RegisterMetrics()
	protocolChecksumErrors.WithLabelValues(regulator).Inc()
}

func RecordNAK(regulator, direction string) {
	RegisterMetrics()
	protocolNAKs.WithLabelValues(regulator, direction).Inc()
}

func RecordPhaseChange(regulator string, plan int) {
	RegisterMetrics()
	phaseChanges.WithLabelValues(regulator, strconv.Itoa(plan)).Inc()
}

func SetSessionConnected(regulator string, connected bool) {
	RegisterMetrics()
	v := 0.0
	if connected {
		v = 1.0
	}
	sessionConnected.WithLabelValues(regulator).Set(v)
}
