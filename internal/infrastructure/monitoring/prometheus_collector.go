package monitoring

import (
	"strconv"

	"streamctl/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type PrometheusCollector struct {
	// Sessions
	sessionsActive prometheus.Gauge
	sessionsTotal  prometheus.Counter
	authAttempts   *prometheus.CounterVec

	// Config and stream
	configApplies  *prometheus.CounterVec
	streamingState prometheus.Gauge

	// Network
	interfaceThroughput *prometheus.GaugeVec

	// Persistence
	documentWrites *prometheus.CounterVec
}

// NewPrometheusCollector registers the streamctl metrics with reg.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	factory := promauto.With(reg)
	return &PrometheusCollector{
		sessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "streamctl_sessions_active",
			Help: "Number of open control sessions",
		}),

		sessionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "streamctl_sessions_total",
			Help: "Total number of control sessions opened",
		}),

		authAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "streamctl_auth_attempts_total",
			Help: "Authentication attempts by method and outcome",
		}, []string{"method", "success"}),

		configApplies: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "streamctl_config_applies_total",
			Help: "Configuration apply attempts by result",
		}, []string{"result"}),

		streamingState: factory.NewGauge(prometheus.GaugeOpts{
			Name: "streamctl_streaming",
			Help: "1 while the encoder is running, 0 otherwise",
		}),

		interfaceThroughput: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "streamctl_interface_tx_bytes_per_second",
			Help: "Transmit throughput of each uplink interface",
		}, []string{"interface"}),

		documentWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "streamctl_document_writes_total",
			Help: "Persisted document writes by document and outcome",
		}, []string{"document", "success"}),
	}
}

func (p *PrometheusCollector) RecordSessionOpened() {
	p.sessionsActive.Inc()
	p.sessionsTotal.Inc()
}

func (p *PrometheusCollector) RecordSessionClosed() {
	p.sessionsActive.Dec()
}

func (p *PrometheusCollector) RecordAuthAttempt(method string, success bool) {
	p.authAttempts.WithLabelValues(method, strconv.FormatBool(success)).Inc()
}

func (p *PrometheusCollector) RecordConfigApply(result string) {
	p.configApplies.WithLabelValues(result).Inc()
}

func (p *PrometheusCollector) RecordStreamingState(state domain.StreamingState) {
	if state == domain.StreamingRunning {
		p.streamingState.Set(1)
		return
	}
	p.streamingState.Set(0)
}

func (p *PrometheusCollector) RecordInterfaceThroughput(name string, bytesPerSecond uint64) {
	p.interfaceThroughput.WithLabelValues(name).Set(float64(bytesPerSecond))
}

// ForgetInterface drops the series of an interface that disappeared.
func (p *PrometheusCollector) ForgetInterface(name string) {
	p.interfaceThroughput.DeleteLabelValues(name)
}

func (p *PrometheusCollector) RecordDocumentWrite(document string, err error) {
	p.documentWrites.WithLabelValues(document, strconv.FormatBool(err == nil)).Inc()
}
