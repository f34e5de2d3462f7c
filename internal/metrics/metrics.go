package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the consultation service.
type Metrics struct {
	ConsultationsTotal *prometheus.CounterVec
	AdapterRequests    *prometheus.CounterVec
	AdapterDuration    *prometheus.HistogramVec
	BreakerState       *prometheus.GaugeVec
	WSClients          prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ConsultationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "medconsult_consultations_total",
			Help: "Consultations processed, by mode and urgency.",
		}, []string{"mode", "urgency"}),
		AdapterRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "medconsult_adapter_requests_total",
			Help: "Upstream model service calls, by service and outcome.",
		}, []string{"service", "outcome"}),
		AdapterDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "medconsult_adapter_duration_seconds",
			Help:    "Latency of upstream model service calls.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"service"}),
		BreakerState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "medconsult_circuit_breaker_state",
			Help: "Circuit breaker state per service (0=closed, 1=open, 2=half-open).",
		}, []string{"service"}),
		WSClients: factory.NewGauge(prometheus.GaugeOpts{
			Name: "medconsult_websocket_clients",
			Help: "Currently connected WebSocket clients.",
		}),
	}
}

// ObserveAdapterCall records one upstream call.
func (m *Metrics) ObserveAdapterCall(service string, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.AdapterRequests.WithLabelValues(service, outcome).Inc()
	m.AdapterDuration.WithLabelValues(service).Observe(time.Since(start).Seconds())
}

// SetBreakerState mirrors a breaker transition into the gauge.
func (m *Metrics) SetBreakerState(service string, state int) {
	m.BreakerState.WithLabelValues(service).Set(float64(state))
}
