package telakit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsNamespace пространство имён метрик сервера.
const MetricsNamespace = "tela"

// Metrics счетчики сервера Tela. Все методы безопасны для nil *Metrics.
type Metrics struct {
	connectionsTotal  prometheus.Counter
	activeConnections prometheus.Gauge
	rejectedTotal     prometheus.Counter
	commandsTotal     *prometheus.CounterVec
	decodeErrors      *prometheus.CounterVec
	skippedLines      prometheus.Counter
	transportErrors   prometheus.Counter
}

// NewMetrics регистрирует метрики в registry.
// Если registry nil, используется prometheus.DefaultRegisterer.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		connectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "connections_total",
			Help:      "Total number of accepted connections",
		}),
		activeConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Name:      "active_connections",
			Help:      "Number of open connections",
		}),
		rejectedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "rejected_connections_total",
			Help:      "Connections closed because the connection limit was reached",
		}),
		commandsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "commands_total",
			Help:      "Commands applied to the drawing surface by opcode",
		}, []string{"opcode"}),
		decodeErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "decode_errors_total",
			Help:      "Dropped protocol lines by opcode",
		}, []string{"opcode"}),
		skippedLines: factory.NewCounter(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "skipped_lines_total",
			Help:      "Lines shorter than 3 bytes skipped without decoding",
		}),
		transportErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "transport_errors_total",
			Help:      "Connections terminated by a read error",
		}),
	}
}

func (m *Metrics) connectionOpened() {
	if m == nil {
		return
	}
	m.connectionsTotal.Inc()
	m.activeConnections.Inc()
}

func (m *Metrics) connectionClosed() {
	if m == nil {
		return
	}
	m.activeConnections.Dec()
}

func (m *Metrics) connectionRejected() {
	if m == nil {
		return
	}
	m.rejectedTotal.Inc()
}

func (m *Metrics) commandApplied(op Opcode) {
	if m == nil {
		return
	}
	m.commandsTotal.WithLabelValues(string(op)).Inc()
}

func (m *Metrics) decodeFailed(op Opcode) {
	if m == nil {
		return
	}
	if _, known := arity[op]; !known {
		op = "unknown"
	}
	m.decodeErrors.WithLabelValues(string(op)).Inc()
}

func (m *Metrics) lineSkipped() {
	if m == nil {
		return
	}
	m.skippedLines.Inc()
}

func (m *Metrics) transportError() {
	if m == nil {
		return
	}
	m.transportErrors.Inc()
}
